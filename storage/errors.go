package storage

import "errors"

var (
	// ErrRuleNotFound is returned when a rule is not found
	ErrRuleNotFound = errors.New("rule not found")

	// ErrDuplicateRule is returned when attempting to create a rule that already exists
	ErrDuplicateRule = errors.New("rule already exists")

	// ErrInvalidRuleID is returned when a rule ID cannot name a storage entry
	ErrInvalidRuleID = errors.New("invalid rule id")
)
