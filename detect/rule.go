package detect

import (
	"fmt"
	"time"

	"argus/core"
	"argus/metrics"
)

// Step is one compiled element of a rule's sequence: an alias plus the
// predicate an event must satisfy to bind to it.
type Step struct {
	// Alias is the rule-scoped label naming this step.
	Alias string

	// Predicate is the compiled where condition.
	Predicate *Predicate
}

// SequenceRule is the validated, immutable in-memory form of a detection
// rule. It is constructed once by CompileRule and may be reused across many
// matcher invocations concurrently.
type SequenceRule struct {
	// ID and Name identify the rule in match output. Opaque to matching.
	ID   string
	Name string

	// GroupBy lists the field paths whose value tuple partitions events
	// into independent correlation groups.
	GroupBy []string

	// Window is the maximum elapsed time between the first and last
	// matched step of a sequence. The boundary is inclusive.
	Window time.Duration

	// Steps is the ordered sequence; always at least two entries.
	Steps []Step

	// Output controls match reporting.
	Output core.OutputDefinition
}

// CompileRule validates a rule definition and compiles its step predicates.
// Validation is exhaustive: every violation found is collected into a single
// *ValidationError rather than stopping at the first, so rule authors see the
// complete list in one pass. A definition that fails to compile must never be
// used for matching.
//
// A nil compiler-cache is allowed; predicates are then compiled uncached.
func CompileRule(def core.RuleDefinition, cache *PredicateCache) (*SequenceRule, error) {
	verr := &ValidationError{RuleID: def.ID}

	if def.ID == "" {
		verr.add("missing required field: id")
	}
	if def.Name == "" {
		verr.add("missing required field: name")
	}
	if def.WithinSeconds < 0 {
		verr.add("within_seconds must not be negative, got %v", def.WithinSeconds)
	}
	if len(def.Sequence) < 2 {
		verr.add("sequence must contain at least 2 steps, got %d", len(def.Sequence))
	}
	if def.Output.TimestampRef == "" {
		verr.add("missing required field: output.timestamp_ref")
	}
	if def.Output.Format == "" {
		verr.add("missing required field: output.format")
	}

	steps := make([]Step, 0, len(def.Sequence))
	aliases := make(map[string]bool, len(def.Sequence))
	for i, sd := range def.Sequence {
		if sd.As == "" {
			verr.add("step %d: missing required field: as", i+1)
		} else if aliases[sd.As] {
			verr.add("step %d: duplicate alias %q", i+1, sd.As)
		} else {
			aliases[sd.As] = true
		}

		if sd.Where == "" {
			verr.add("step %d: missing required field: where", i+1)
			continue
		}

		pred, err := compileWhere(sd.Where, cache)
		if err != nil {
			verr.add("step %d: %v", i+1, err)
			continue
		}
		steps = append(steps, Step{Alias: sd.As, Predicate: pred})
	}

	if def.Output.TimestampRef != "" && !aliases[def.Output.TimestampRef] {
		verr.add("output.timestamp_ref %q does not match any step alias", def.Output.TimestampRef)
	}

	if len(verr.Violations) > 0 {
		metrics.RuleCompileFailures.Inc()
		return nil, verr
	}

	metrics.RulesCompiled.Inc()
	return &SequenceRule{
		ID:      def.ID,
		Name:    def.Name,
		GroupBy: append([]string(nil), def.By...),
		Window:  time.Duration(def.WithinSeconds * float64(time.Second)),
		Steps:   steps,
		Output:  def.Output,
	}, nil
}

// CompileRules compiles several definitions, failing on the first invalid
// one with its rule id attached.
func CompileRules(defs []core.RuleDefinition, cache *PredicateCache) ([]*SequenceRule, error) {
	rules := make([]*SequenceRule, 0, len(defs))
	for _, def := range defs {
		rule, err := CompileRule(def, cache)
		if err != nil {
			return nil, fmt.Errorf("failed to compile rule %q: %w", def.ID, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// compileWhere compiles one where expression, through the cache when one is
// supplied.
func compileWhere(expr string, cache *PredicateCache) (*Predicate, error) {
	if cache != nil {
		return cache.Compile(expr)
	}
	return CompilePredicate(expr)
}
