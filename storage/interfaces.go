package storage

import "argus/core"

// RuleStore persists sequence rule definitions. Implementations must return
// ErrRuleNotFound for missing rules and ErrDuplicateRule when creating a rule
// whose ID is already taken. Stored definitions are raw; compilation and
// validation remain the detect package's concern.
type RuleStore interface {
	// ListRules returns every stored definition. Order is implementation
	// defined but stable.
	ListRules() ([]*core.RuleDefinition, error)

	// GetRule returns the definition with the given ID.
	GetRule(id string) (*core.RuleDefinition, error)

	// CreateRule stores a new definition under def.ID.
	CreateRule(def *core.RuleDefinition) error

	// UpdateRule replaces the definition stored under id. When def.ID
	// differs from id the rule is re-keyed: the old entry is removed and
	// the definition stored under its new ID.
	UpdateRule(id string, def *core.RuleDefinition) error

	// DeleteRule removes the definition with the given ID.
	DeleteRule(id string) error

	// Close releases any underlying resources.
	Close() error
}
