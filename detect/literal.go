package detect

import (
	"fmt"
	"strconv"
	"strings"
)

// LiteralKind tags the type of a parsed literal value.
type LiteralKind int

const (
	// LiteralString is a quoted or bare string token.
	LiteralString LiteralKind = iota
	// LiteralNumber is an integer or floating point number.
	LiteralNumber
	// LiteralBool is an unquoted true/false token.
	LiteralBool
	// LiteralNull is an unquoted null/none token.
	LiteralNull
)

// Literal is a typed predicate comparison value. Keeping the variants
// explicit makes the comparison rules in Equals exhaustive instead of relying
// on reflect-style runtime inspection.
type Literal struct {
	Kind LiteralKind
	Str  string
	Num  float64
	Bool bool
}

// String returns the literal's value coerced to a string, primarily for
// rendering predicates back to humans.
func (l Literal) String() string {
	switch l.Kind {
	case LiteralString:
		return l.Str
	case LiteralNumber:
		return strconv.FormatFloat(l.Num, 'f', -1, 64)
	case LiteralBool:
		return strconv.FormatBool(l.Bool)
	default:
		return "null"
	}
}

// Equals compares a resolved field value against the literal. Comparison is
// typed: a string field never equals a numeric literal, and a type mismatch
// is simply not-equal, never an error. Numeric field values are compared by
// value regardless of the decoder's concrete integer/float representation.
func (l Literal) Equals(value interface{}) bool {
	switch l.Kind {
	case LiteralNull:
		return value == nil
	case LiteralBool:
		b, ok := value.(bool)
		return ok && b == l.Bool
	case LiteralNumber:
		n, ok := asNumber(value)
		return ok && n == l.Num
	case LiteralString:
		s, ok := value.(string)
		return ok && s == l.Str
	default:
		return false
	}
}

// asNumber normalizes the numeric types a JSON or YAML decoder can produce.
func asNumber(value interface{}) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// parseLiteral parses a literal token: quoted strings keep their content with
// the delimiters stripped (no escape processing), unquoted true/false/null
// parse to their typed values, numeric tokens parse as numbers, and any other
// bare token round-trips as a string for lenient rule authoring.
func parseLiteral(token string) Literal {
	token = strings.TrimSpace(token)

	if quoted, ok := unquote(token); ok {
		return Literal{Kind: LiteralString, Str: quoted}
	}

	switch strings.ToLower(token) {
	case "true":
		return Literal{Kind: LiteralBool, Bool: true}
	case "false":
		return Literal{Kind: LiteralBool, Bool: false}
	case "null", "none":
		return Literal{Kind: LiteralNull}
	}

	if n, err := strconv.ParseFloat(token, 64); err == nil {
		return Literal{Kind: LiteralNumber, Num: n}
	}

	return Literal{Kind: LiteralString, Str: token}
}

// unquote strips a matched pair of single or double quote delimiters.
func unquote(token string) (string, bool) {
	if len(token) >= 2 {
		if (token[0] == '"' && token[len(token)-1] == '"') ||
			(token[0] == '\'' && token[len(token)-1] == '\'') {
			return token[1 : len(token)-1], true
		}
	}
	return "", false
}

// unbalancedQuote reports a token that opens a quote without closing it.
// Used by the function and list forms, where a dangling quote is a syntax
// error rather than a bare string.
func unbalancedQuote(token string) bool {
	if len(token) == 0 {
		return false
	}
	if token[0] == '"' || token[0] == '\'' {
		_, ok := unquote(token)
		return !ok
	}
	return false
}

// coerceString renders a field value the way predicate substring and regex
// matching see it. Integral floats print without a trailing ".0" so that
// numeric fields behave the same whether the decoder produced ints or floats.
func coerceString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(value)
	}
}
