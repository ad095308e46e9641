package core

import "time"

// SequenceMatch is one successful, in-order, in-window binding of a rule's
// steps to distinct events within a correlation group. Matches are produced
// fresh per matcher invocation and are never persisted by the engine.
type SequenceMatch struct {
	RuleID   string `json:"rule_id"`
	RuleName string `json:"rule_name"`

	// MatchedEventIDs lists the bound events' IDs in step order.
	MatchedEventIDs []string `json:"matched_event_ids"`

	// Timestamp is the timestamp of the event bound to the rule's
	// output.timestamp_ref step.
	Timestamp time.Time `json:"timestamp"`

	// Message is the rendered output format template.
	Message string `json:"message"`

	// Steps traces every step of the sequence in order.
	Steps []StepTrace `json:"steps"`
}

// StepTrace records the outcome of one step within a match attempt.
type StepTrace struct {
	// Step is the 1-based position of the step in the rule's sequence.
	Step int `json:"step"`

	// Alias is the step's rule-scoped alias.
	Alias string `json:"alias"`

	// Matched reports whether an event was bound to this step.
	Matched bool `json:"matched"`

	// Event summarizes the bound event; nil when Matched is false.
	Event *StepEvent `json:"event,omitempty"`
}

// StepEvent is the reported summary of an event bound to a step.
type StepEvent struct {
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
}
