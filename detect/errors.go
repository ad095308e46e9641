package detect

import (
	"fmt"
	"strings"
)

// SyntaxError reports a predicate expression that failed to compile. It is
// raised at compile time only; predicate evaluation never errors.
type SyntaxError struct {
	// Expression is the offending expression source text.
	Expression string

	// Reason describes why compilation failed.
	Reason string
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid expression %q: %s", e.Expression, e.Reason)
}

// syntaxErrorf builds a SyntaxError with a formatted reason.
func syntaxErrorf(expr, format string, args ...interface{}) *SyntaxError {
	return &SyntaxError{Expression: expr, Reason: fmt.Sprintf(format, args...)}
}

// ValidationError aggregates every structural problem found while compiling a
// rule definition, so a caller can surface the complete list to a user in one
// pass instead of fixing violations one at a time.
type ValidationError struct {
	// RuleID identifies the offending rule definition; may be empty when
	// the definition itself is missing an id.
	RuleID string

	// Violations lists every problem discovered, in discovery order.
	Violations []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	id := e.RuleID
	if id == "" {
		id = "<unknown>"
	}
	return fmt.Sprintf("rule %s is invalid: %s", id, strings.Join(e.Violations, "; "))
}

// add records one violation.
func (e *ValidationError) add(format string, args ...interface{}) {
	e.Violations = append(e.Violations, fmt.Sprintf(format, args...))
}
