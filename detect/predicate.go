package detect

import (
	"regexp"
	"strings"

	"argus/core"
)

// PredicateKind tags the grammar form a predicate was compiled from.
type PredicateKind int

const (
	// PredicateEquals is `<path> == <literal>`.
	PredicateEquals PredicateKind = iota
	// PredicateNotEquals is `<path> != <literal>`.
	PredicateNotEquals
	// PredicateIn is `<path> in [<literal>, ...]`.
	PredicateIn
	// PredicateContains is `contains(<path>, <string>)`.
	PredicateContains
	// PredicateRegex is `regex(<path>, <pattern>)`.
	PredicateRegex
)

// Predicate is a compiled step condition: a boolean test over one event's
// fields. Predicates are tagged variants rather than opaque closures so they
// stay introspectable (and cheap to cache); Eval dispatches on Kind and only
// performs field resolution plus comparison, never re-parsing.
//
// A compiled predicate is immutable and safe for concurrent evaluation.
type Predicate struct {
	// Kind selects the comparison performed by Eval.
	Kind PredicateKind

	// Path is the dotted field path the predicate resolves.
	Path string

	// Literal is the comparison value for the equals/not-equals forms.
	Literal Literal

	// Literals are the membership candidates for the in form.
	Literals []Literal

	// Substring is the search text for the contains form.
	Substring string

	// Pattern is the compiled expression for the regex form.
	Pattern *regexp.Regexp

	source string
}

// Source returns the expression text the predicate was compiled from.
func (p *Predicate) Source() string {
	return p.source
}

// Eval tests the predicate against an event's fields. Evaluation never
// errors: an absent or null field makes the contains/regex forms false, and a
// type mismatch in the comparison forms is simply not-equal. A well-formed
// but never-matching predicate cannot crash the matcher.
func (p *Predicate) Eval(fields map[string]interface{}) bool {
	value := core.ResolveField(fields, p.Path, nil)

	switch p.Kind {
	case PredicateEquals:
		return p.Literal.Equals(value)
	case PredicateNotEquals:
		return !p.Literal.Equals(value)
	case PredicateIn:
		for _, lit := range p.Literals {
			if lit.Equals(value) {
				return true
			}
		}
		return false
	case PredicateContains:
		if value == nil {
			return false
		}
		return strings.Contains(coerceString(value), p.Substring)
	case PredicateRegex:
		if value == nil {
			return false
		}
		return p.Pattern.MatchString(coerceString(value))
	default:
		return false
	}
}

var (
	// containsPattern captures the path and search argument of the
	// contains(...) form. The second group is greedy so search text may
	// itself contain parentheses.
	containsPattern = regexp.MustCompile(`^contains\s*\(\s*(.+?)\s*,\s*(.+)\s*\)$`)

	// regexPattern captures the path and pattern argument of the
	// regex(...) form.
	regexPattern = regexp.MustCompile(`^regex\s*\(\s*(.+?)\s*,\s*(.+)\s*\)$`)

	// inPattern captures the path and bracketed list of the membership
	// form.
	inPattern = regexp.MustCompile(`^(.+?)\s+in\s*\[(.+)\]$`)

	// inShaped recognizes expressions that were clearly meant to be the
	// membership form, so unbalanced brackets report as such instead of
	// falling through to the comparison forms.
	inShaped = regexp.MustCompile(`\s+in\s*\[`)
)

// CompilePredicate parses a predicate expression into an evaluable Predicate.
// The five grammar forms are tried in order: contains(path, "text"),
// regex(path, "pattern"), `path in [lit, ...]`, `path != lit`,
// `path == lit`. Any expression matching none of them, an empty expression,
// unbalanced delimiters in the function/list forms, or an invalid regex
// pattern fails with a *SyntaxError carrying the expression text.
func CompilePredicate(expression string) (*Predicate, error) {
	expr := strings.TrimSpace(expression)
	if expr == "" {
		return nil, syntaxErrorf(expression, "empty expression")
	}

	switch {
	case strings.Contains(expr, "contains("):
		return compileContains(expr)
	case strings.Contains(expr, "regex("):
		return compileRegex(expr)
	case inShaped.MatchString(expr):
		return compileIn(expr)
	case strings.Contains(expr, "!="):
		return compileComparison(expr, "!=")
	case strings.Contains(expr, "=="):
		return compileComparison(expr, "==")
	default:
		return nil, syntaxErrorf(expr, "unsupported expression syntax")
	}
}

// compileContains parses the contains(path, "text") form. The search value
// must be a string literal.
func compileContains(expr string) (*Predicate, error) {
	m := containsPattern.FindStringSubmatch(expr)
	if m == nil {
		return nil, syntaxErrorf(expr, "malformed contains expression")
	}

	lit, err := parseStrictLiteral(expr, m[2])
	if err != nil {
		return nil, err
	}
	if lit.Kind != LiteralString {
		return nil, syntaxErrorf(expr, "contains search value must be a string")
	}

	return &Predicate{
		Kind:      PredicateContains,
		Path:      m[1],
		Substring: lit.Str,
		source:    expr,
	}, nil
}

// compileRegex parses the regex(path, "pattern") form. The pattern must be a
// string literal and a valid regular expression.
func compileRegex(expr string) (*Predicate, error) {
	m := regexPattern.FindStringSubmatch(expr)
	if m == nil {
		return nil, syntaxErrorf(expr, "malformed regex expression")
	}

	lit, err := parseStrictLiteral(expr, m[2])
	if err != nil {
		return nil, err
	}
	if lit.Kind != LiteralString {
		return nil, syntaxErrorf(expr, "regex pattern must be a string")
	}

	pattern, err := regexp.Compile(lit.Str)
	if err != nil {
		return nil, syntaxErrorf(expr, "invalid regex pattern %q: %v", lit.Str, err)
	}

	return &Predicate{
		Kind:    PredicateRegex,
		Path:    m[1],
		Pattern: pattern,
		source:  expr,
	}, nil
}

// compileIn parses the `path in [a, b, c]` membership form.
func compileIn(expr string) (*Predicate, error) {
	m := inPattern.FindStringSubmatch(expr)
	if m == nil {
		return nil, syntaxErrorf(expr, "malformed 'in' expression")
	}

	var literals []Literal
	for _, item := range strings.Split(m[2], ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		lit, err := parseStrictLiteral(expr, item)
		if err != nil {
			return nil, err
		}
		literals = append(literals, lit)
	}
	if len(literals) == 0 {
		return nil, syntaxErrorf(expr, "'in' list must contain at least one value")
	}

	return &Predicate{
		Kind:     PredicateIn,
		Path:     strings.TrimSpace(m[1]),
		Literals: literals,
		source:   expr,
	}, nil
}

// compileComparison parses the == and != forms.
func compileComparison(expr, operator string) (*Predicate, error) {
	parts := strings.SplitN(expr, operator, 2)
	if len(parts) != 2 {
		return nil, syntaxErrorf(expr, "malformed %s expression", operator)
	}

	path := strings.TrimSpace(parts[0])
	token := strings.TrimSpace(parts[1])
	if path == "" || token == "" {
		return nil, syntaxErrorf(expr, "malformed %s expression", operator)
	}

	kind := PredicateEquals
	if operator == "!=" {
		kind = PredicateNotEquals
	}

	return &Predicate{
		Kind:    kind,
		Path:    path,
		Literal: parseLiteral(token),
		source:  expr,
	}, nil
}

// parseStrictLiteral parses a literal token in a context where a dangling
// quote is a syntax error rather than a bare string token.
func parseStrictLiteral(expr, token string) (Literal, error) {
	token = strings.TrimSpace(token)
	if unbalancedQuote(token) {
		return Literal{}, syntaxErrorf(expr, "unbalanced quote in %q", token)
	}
	return parseLiteral(token), nil
}
