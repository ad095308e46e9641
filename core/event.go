package core

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// timestampField is the top-level field consulted when no explicit timestamp
// is supplied at construction.
const timestampField = "timestamp"

// Event represents one structured, timestamped security event derived from an
// external log line. Events are immutable once constructed: matching logic
// only ever reads Fields, Timestamp and EventID.
type Event struct {
	// EventID is a content hash of Fields, stable across processes. It is
	// used only for reporting which events matched, never for equality or
	// ordering decisions.
	EventID string `json:"event_id"`

	// Timestamp orders the event within its group.
	Timestamp time.Time `json:"timestamp"`

	// Fields holds the decoded record: string keys mapped to JSON-like
	// values (string, float64, bool, nil, nested map, list).
	Fields map[string]interface{} `json:"fields"`
}

// NewEvent creates an Event from decoded record fields. The event ID is a
// hex-encoded SHA-256 over the canonical JSON serialization of the fields
// (encoding/json sorts map keys), so identical content always yields the same
// ID. The timestamp is taken from a top-level "timestamp" field when it holds
// a parseable ISO-8601 string, otherwise the current wall-clock time.
func NewEvent(fields map[string]interface{}) *Event {
	return &Event{
		EventID:   contentHash(fields),
		Timestamp: timestampFrom(fields),
		Fields:    fields,
	}
}

// NewEventAt creates an Event with an explicit timestamp.
func NewEventAt(fields map[string]interface{}, ts time.Time) *Event {
	return &Event{
		EventID:   contentHash(fields),
		Timestamp: ts,
		Fields:    fields,
	}
}

// NewEventWithID creates an Event with a caller-supplied ID and timestamp,
// bypassing content hashing. Intended for replaying stored events whose IDs
// were assigned at ingestion time.
func NewEventWithID(id string, fields map[string]interface{}, ts time.Time) *Event {
	return &Event{
		EventID:   id,
		Timestamp: ts,
		Fields:    fields,
	}
}

// Get resolves a dotted field path against the event's fields.
func (e *Event) Get(path string, def interface{}) interface{} {
	return ResolveField(e.Fields, path, def)
}

// contentHash returns the hex SHA-256 of the canonical JSON encoding of
// fields. Marshal failures (cyclic or non-JSON values) fall back to hashing
// the empty encoding; such records cannot originate from JSON input.
func contentHash(fields map[string]interface{}) string {
	encoded, err := json.Marshal(fields)
	if err != nil {
		encoded = nil
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}

// timestampLayouts are the accepted wire formats for event timestamps, tried
// in order. Offset-less layouts are interpreted as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// timestampFrom resolves the event timestamp from the record's top-level
// "timestamp" field, defaulting to the current time when absent or
// unparseable.
func timestampFrom(fields map[string]interface{}) time.Time {
	raw, ok := ResolveField(fields, timestampField, nil).(string)
	if !ok {
		return time.Now().UTC()
	}
	if ts, err := ParseTimestamp(raw); err == nil {
		return ts
	}
	return time.Now().UTC()
}

// ParseTimestamp parses an ISO-8601 timestamp string in one of the accepted
// layouts.
func ParseTimestamp(value string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		ts, err := time.ParseInLocation(layout, value, time.UTC)
		if err == nil {
			return ts, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
