package detect

import (
	"sync"
	"time"

	"argus/core"
)

// correlationState tracks one group's progress through a rule's step
// sequence for the streaming engine.
type correlationState struct {
	key        string
	keyValues  map[string]interface{}
	stepIndex  int
	matchedIDs []string
	bound      []*core.Event
	firstTS    time.Time
	lastTS     time.Time
}

// reset returns the state to its initial conditions.
func (s *correlationState) reset() {
	s.stepIndex = 0
	s.matchedIDs = s.matchedIDs[:0]
	s.bound = s.bound[:0]
	s.firstTS = time.Time{}
	s.lastTS = time.Time{}
}

// advance binds an event to the current step and moves the cursor forward.
func (s *correlationState) advance(evt *core.Event) {
	s.matchedIDs = append(s.matchedIDs, evt.EventID)
	s.bound = append(s.bound, evt)
	if s.firstTS.IsZero() {
		s.firstTS = evt.Timestamp
	}
	s.lastTS = evt.Timestamp
	s.stepIndex++
}

// ruleState holds the per-group states of one rule.
type ruleState struct {
	rule   *SequenceRule
	groups map[string]*correlationState
}

// StreamEngine is the online counterpart of Matcher: it consumes events one
// at a time and emits a match the moment a group completes a rule's step
// sequence within its window. Unlike Matcher it holds mutable correlation
// state, guarded by a mutex, and advances each group's cursor greedily
// without revisiting earlier events; use Matcher for exhaustive batch
// analysis.
type StreamEngine struct {
	mu    sync.Mutex
	rules []*ruleState
}

// NewStreamEngine creates an empty streaming engine.
func NewStreamEngine() *StreamEngine {
	return &StreamEngine{}
}

// LoadRule registers a compiled rule for processing.
func (se *StreamEngine) LoadRule(rule *SequenceRule) {
	se.mu.Lock()
	defer se.mu.Unlock()
	se.rules = append(se.rules, &ruleState{
		rule:   rule,
		groups: make(map[string]*correlationState),
	})
}

// LoadRules registers several compiled rules.
func (se *StreamEngine) LoadRules(rules []*SequenceRule) {
	for _, rule := range rules {
		se.LoadRule(rule)
	}
}

// Reset clears all correlation state for all loaded rules.
func (se *StreamEngine) Reset() {
	se.mu.Lock()
	defer se.mu.Unlock()
	for _, rs := range se.rules {
		rs.groups = make(map[string]*correlationState)
	}
}

// ProcessEvent advances every loaded rule with one event, in event-arrival
// order, and returns any sequences it completed. Expired group states are
// dropped opportunistically as the event's timestamp moves forward.
func (se *StreamEngine) ProcessEvent(evt *core.Event) []core.SequenceMatch {
	se.mu.Lock()
	defer se.mu.Unlock()

	var matches []core.SequenceMatch
	for _, rs := range se.rules {
		if match, ok := se.processForRule(rs, evt); ok {
			matches = append(matches, match)
		}
		se.expireGroups(rs, evt.Timestamp)
	}
	return matches
}

// ProcessEvents feeds a batch of events through the engine in order.
func (se *StreamEngine) ProcessEvents(events []*core.Event) []core.SequenceMatch {
	var matches []core.SequenceMatch
	for _, evt := range events {
		matches = append(matches, se.ProcessEvent(evt)...)
	}
	return matches
}

// processForRule advances one rule's group state with an event.
func (se *StreamEngine) processForRule(rs *ruleState, evt *core.Event) (core.SequenceMatch, bool) {
	rule := rs.rule

	keyValues := core.ResolveFields(evt.Fields, rule.GroupBy, nil)
	key := streamGroupKey(rule.GroupBy, keyValues)

	state, ok := rs.groups[key]
	if !ok {
		state = &correlationState{key: key, keyValues: keyValues}
		rs.groups[key] = state
	}

	step := rule.Steps[state.stepIndex]
	if !step.Predicate.Eval(evt.Fields) {
		return core.SequenceMatch{}, false
	}

	// Binding this event must keep the sequence inside the window;
	// otherwise the partial sequence is stale and the event starts a new
	// attempt from step one.
	if !state.firstTS.IsZero() && evt.Timestamp.Sub(state.firstTS) > rule.Window {
		state.reset()
		if !rule.Steps[0].Predicate.Eval(evt.Fields) {
			return core.SequenceMatch{}, false
		}
	}

	state.advance(evt)

	if state.stepIndex < len(rule.Steps) {
		return core.SequenceMatch{}, false
	}

	match := emitMatch(rule, group{key: key, keyValues: state.keyValues}, state.bound)
	state.reset()
	return match, true
}

// expireGroups drops group states whose window can no longer be satisfied at
// the given time.
func (se *StreamEngine) expireGroups(rs *ruleState, now time.Time) {
	for key, state := range rs.groups {
		if state.firstTS.IsZero() {
			continue
		}
		if now.Sub(state.firstTS) > rs.rule.Window {
			delete(rs.groups, key)
		}
	}
}

// GroupStateSummary describes one in-flight correlation group for
// introspection endpoints and debugging.
type GroupStateSummary struct {
	RuleID          string    `json:"rule_id"`
	GroupKey        string    `json:"group_key"`
	CurrentStep     int       `json:"current_step"`
	MatchedEvents   int       `json:"matched_events"`
	FirstTimestamp  time.Time `json:"first_timestamp"`
	LastTimestamp   time.Time `json:"last_timestamp"`
	DurationSeconds float64   `json:"duration_seconds"`
}

// StateSummary reports every in-flight correlation group across all rules.
func (se *StreamEngine) StateSummary() []GroupStateSummary {
	se.mu.Lock()
	defer se.mu.Unlock()

	var summary []GroupStateSummary
	for _, rs := range se.rules {
		for key, state := range rs.groups {
			duration := 0.0
			if !state.firstTS.IsZero() && !state.lastTS.IsZero() {
				duration = state.lastTS.Sub(state.firstTS).Seconds()
			}
			summary = append(summary, GroupStateSummary{
				RuleID:          rs.rule.ID,
				GroupKey:        key,
				CurrentStep:     state.stepIndex,
				MatchedEvents:   len(state.matchedIDs),
				FirstTimestamp:  state.firstTS,
				LastTimestamp:   state.lastTS,
				DurationSeconds: duration,
			})
		}
	}
	return summary
}

// streamGroupKey builds the state-map key from resolved group-by values.
func streamGroupKey(groupBy []string, keyValues map[string]interface{}) string {
	if len(groupBy) == 0 {
		return ""
	}
	parts := make([]string, len(groupBy))
	for i, path := range groupBy {
		parts[i] = encodeKeyPart(keyValues[path])
	}
	return joinKeyParts(parts)
}
