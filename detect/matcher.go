package detect

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"argus/core"
	"argus/metrics"

	"go.uber.org/zap"
)

// Matcher searches a finite batch of events for ordered, in-window matches of
// a sequence rule. It is stateless across invocations and read-only with
// respect to the rule and the events, so one Matcher may serve any number of
// concurrent Match calls.
type Matcher struct {
	logger *zap.SugaredLogger
}

// NewMatcher creates a Matcher.
func NewMatcher(logger *zap.SugaredLogger) *Matcher {
	return &Matcher{logger: logger}
}

// group is one correlation partition of the input batch: the events sharing a
// group-by value tuple, plus the resolved tuple itself for message templating.
type group struct {
	key       string
	keyValues map[string]interface{}
	events    []*core.Event
}

// Match partitions events by the rule's group-by fields and scans each group
// independently for complete step sequences. Every successful binding is
// reported; overlapping matches from different starting events are not
// deduplicated. Match never fails for data-shape reasons: an empty batch or a
// rule that can never bind yields an empty (nil) result.
func (m *Matcher) Match(rule *SequenceRule, events []*core.Event) []core.SequenceMatch {
	start := time.Now()

	var matches []core.SequenceMatch
	for _, g := range groupEvents(rule.GroupBy, events) {
		sortByTimestamp(g.events)
		for i := range g.events {
			if match, ok := m.tryMatch(rule, g, i); ok {
				matches = append(matches, match)
			}
		}
	}

	metrics.MatchInvocations.Inc()
	metrics.MatchesEmitted.Add(float64(len(matches)))
	metrics.MatchDuration.Observe(time.Since(start).Seconds())

	if m.logger != nil && len(matches) > 0 {
		m.logger.Debugw("sequence rule matched",
			"rule_id", rule.ID,
			"matches", len(matches),
			"events", len(events))
	}
	return matches
}

// tryMatch attempts to bind every rule step to events of one group, scanning
// forward from starting index start. The scan is greedy with a single
// cursor: each step binds the first qualifying event at or after the
// previous binding, an event binds at most one step per attempt, and there
// is no backtracking. Returns false when the group is exhausted before all
// steps bind or the bound span exceeds the rule window.
func (m *Matcher) tryMatch(rule *SequenceRule, g group, start int) (core.SequenceMatch, bool) {
	bound := make([]*core.Event, 0, len(rule.Steps))
	next := start

	for _, step := range rule.Steps {
		found := false
		for ; next < len(g.events); next++ {
			evt := g.events[next]

			// Once the first step is bound, anything past the window
			// cannot complete this attempt: timestamps only grow.
			if len(bound) > 0 && evt.Timestamp.Sub(bound[0].Timestamp) > rule.Window {
				return core.SequenceMatch{}, false
			}
			if step.Predicate.Eval(evt.Fields) {
				bound = append(bound, evt)
				next++
				found = true
				break
			}
		}
		if !found {
			return core.SequenceMatch{}, false
		}
	}

	// Window check over the full binding; the boundary is inclusive.
	if bound[len(bound)-1].Timestamp.Sub(bound[0].Timestamp) > rule.Window {
		return core.SequenceMatch{}, false
	}

	return emitMatch(rule, g, bound), true
}

// emitMatch builds the reported match for a complete binding.
func emitMatch(rule *SequenceRule, g group, bound []*core.Event) core.SequenceMatch {
	ids := make([]string, len(bound))
	traces := make([]core.StepTrace, len(bound))
	var refEvent *core.Event

	for i, evt := range bound {
		ids[i] = evt.EventID
		traces[i] = core.StepTrace{
			Step:    i + 1,
			Alias:   rule.Steps[i].Alias,
			Matched: true,
			Event: &core.StepEvent{
				EventID:   evt.EventID,
				Timestamp: evt.Timestamp,
			},
		}
		if rule.Steps[i].Alias == rule.Output.TimestampRef {
			refEvent = evt
		}
	}

	// timestamp_ref is validated against step aliases at compile time, so
	// refEvent is always set; guard anyway to keep emit total.
	if refEvent == nil {
		refEvent = bound[len(bound)-1]
	}

	return core.SequenceMatch{
		RuleID:          rule.ID,
		RuleName:        rule.Name,
		MatchedEventIDs: ids,
		Timestamp:       refEvent.Timestamp,
		Message:         renderTemplate(rule.Output.Format, refEvent, g.keyValues),
		Steps:           traces,
	}
}

// groupKeySentinel stands in for a missing group-by value so that events all
// missing the same field still land in one group.
const groupKeySentinel = "null"

// groupEvents partitions events by the tuple of group-by values. An empty
// group-by list yields a single implicit group holding every event. Group
// order follows first appearance in the input, keeping output deterministic.
func groupEvents(groupBy []string, events []*core.Event) []group {
	if len(groupBy) == 0 {
		if len(events) == 0 {
			return nil
		}
		// Copy so the later sort cannot reorder the caller's slice.
		all := group{key: "", keyValues: map[string]interface{}{}}
		all.events = append(all.events, events...)
		return []group{all}
	}

	index := make(map[string]int)
	var groups []group

	for _, evt := range events {
		keyValues := make(map[string]interface{}, len(groupBy))
		parts := make([]string, len(groupBy))
		for i, path := range groupBy {
			value := evt.Get(path, nil)
			keyValues[path] = value
			parts[i] = encodeKeyPart(value)
		}
		key := joinKeyParts(parts)

		pos, ok := index[key]
		if !ok {
			pos = len(groups)
			index[key] = pos
			groups = append(groups, group{key: key, keyValues: keyValues})
		}
		groups[pos].events = append(groups[pos].events, evt)
	}
	return groups
}

// joinKeyParts assembles encoded group-by values into one map key.
func joinKeyParts(parts []string) string {
	return strings.Join(parts, "|")
}

// encodeKeyPart renders one group-by value for key construction. The value is
// length-prefixed so that composite keys cannot collide across separator
// boundaries.
func encodeKeyPart(value interface{}) string {
	s := groupKeySentinel
	if value != nil {
		s = coerceString(value)
	}
	return fmt.Sprintf("%d:%s", len(s), s)
}

// sortByTimestamp orders a group's events ascending by timestamp. The sort is
// stable: events sharing a timestamp keep their original input order.
func sortByTimestamp(events []*core.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
}
