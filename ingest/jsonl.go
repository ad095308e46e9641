package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"argus/core"
	"argus/metrics"
)

// DefaultMaxBatchSize caps how many records a single JSONL parse may
// produce before it is rejected outright.
const DefaultMaxBatchSize = 100000

// maxLineBytes bounds a single JSONL line. Events larger than this are
// almost certainly garbage or an attack on memory.
const maxLineBytes = 1024 * 1024

// ParseError reports a malformed JSONL line. Line numbers are 1-based and
// count every line of the input, including blanks and comments.
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

func parseErrorf(line int, format string, args ...interface{}) *ParseError {
	return &ParseError{Line: line, Reason: fmt.Sprintf(format, args...)}
}

// Parser reads JSONL event batches. The zero value is not usable; call
// NewParser.
type Parser struct {
	maxBatchSize int
}

// NewParser creates a JSONL parser. A non-positive maxBatchSize selects the
// default cap.
func NewParser(maxBatchSize int) *Parser {
	if maxBatchSize <= 0 {
		maxBatchSize = DefaultMaxBatchSize
	}
	return &Parser{maxBatchSize: maxBatchSize}
}

// Parse reads JSONL from r and returns one field map per record. Blank
// lines and lines starting with '#' are skipped. Any other line must be a
// JSON object; the first violation aborts the parse with a *ParseError
// carrying the offending line number.
func (p *Parser) Parse(r io.Reader) ([]map[string]interface{}, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var records []map[string]interface{}
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if len(records) >= p.maxBatchSize {
			metrics.ParseFailures.Inc()
			return nil, parseErrorf(lineNo, "batch exceeds %d records", p.maxBatchSize)
		}

		record, err := decodeObject(line)
		if err != nil {
			metrics.ParseFailures.Inc()
			return nil, parseErrorf(lineNo, "%v", err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		metrics.ParseFailures.Inc()
		return nil, parseErrorf(lineNo+1, "read: %v", err)
	}

	metrics.EventsParsed.WithLabelValues("jsonl").Add(float64(len(records)))
	return records, nil
}

// ParseJSONL parses a JSONL document with the default batch cap.
func ParseJSONL(input string) ([]map[string]interface{}, error) {
	return NewParser(0).Parse(strings.NewReader(input))
}

// decodeObject unmarshals a single line and insists on a JSON object.
// Arrays, scalars and null are valid JSON but not valid events.
func decodeObject(line string) (map[string]interface{}, error) {
	var raw interface{}
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	record, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("not a JSON object")
	}
	return record, nil
}

// EventsFromRecords wraps parsed records into events, hashing each record
// for its event ID and extracting its timestamp field.
func EventsFromRecords(records []map[string]interface{}) []*core.Event {
	events := make([]*core.Event, 0, len(records))
	for _, record := range records {
		events = append(events, core.NewEvent(record))
	}
	return events
}

// ParseEvents is the common parse-then-wrap path used by the CLI and the
// rule-test API.
func (p *Parser) ParseEvents(r io.Reader) ([]*core.Event, error) {
	records, err := p.Parse(r)
	if err != nil {
		return nil, err
	}
	return EventsFromRecords(records), nil
}
