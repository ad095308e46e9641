package detect

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nested(path string, value interface{}) map[string]interface{} {
	return map[string]interface{}{
		path: value,
	}
}

func ruleID(id string) map[string]interface{} {
	return map[string]interface{}{
		"rule": map[string]interface{}{"id": id},
	}
}

func TestCompilePredicate_Equality(t *testing.T) {
	p, err := CompilePredicate(`rule.id == "5710"`)
	require.NoError(t, err)
	assert.Equal(t, PredicateEquals, p.Kind)

	assert.True(t, p.Eval(ruleID("5710")))
	assert.False(t, p.Eval(ruleID("5715")))
	assert.False(t, p.Eval(map[string]interface{}{}), "missing field is false, not an error")
}

func TestCompilePredicate_EqualitySingleQuotes(t *testing.T) {
	p, err := CompilePredicate(`rule.id == '5710'`)
	require.NoError(t, err)
	assert.True(t, p.Eval(ruleID("5710")))
}

func TestCompilePredicate_EqualityTypes(t *testing.T) {
	tests := []struct {
		name   string
		expr   string
		fields map[string]interface{}
		want   bool
	}{
		{"number matches float64", "level == 7", nested("level", 7.0), true},
		{"number matches int", "level == 7", nested("level", 7), true},
		{"float literal", "score == 4.5", nested("score", 4.5), true},
		{"number vs string mismatch", "level == 7", nested("level", "7"), false},
		{"string vs number mismatch", `level == "7"`, nested("level", 7.0), false},
		{"bool true", "active == true", nested("active", true), true},
		{"bool false literal", "active == false", nested("active", true), false},
		{"null literal on missing", "gone == null", map[string]interface{}{}, true},
		{"null literal on present", "gone == null", nested("gone", "x"), false},
		{"none alias for null", "gone == none", map[string]interface{}{}, true},
		{"bare token as string", "status == success", nested("status", "success"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := CompilePredicate(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Eval(tt.fields))
		})
	}
}

func TestCompilePredicate_NotEquals(t *testing.T) {
	p, err := CompilePredicate(`status != "success"`)
	require.NoError(t, err)
	assert.Equal(t, PredicateNotEquals, p.Kind)

	assert.True(t, p.Eval(nested("status", "failure")))
	assert.False(t, p.Eval(nested("status", "success")))
	assert.True(t, p.Eval(map[string]interface{}{}), "missing field differs from the literal")
}

func TestCompilePredicate_In(t *testing.T) {
	p, err := CompilePredicate(`rule.id in ["5710", "5715"]`)
	require.NoError(t, err)
	assert.Equal(t, PredicateIn, p.Kind)

	assert.True(t, p.Eval(ruleID("5710")))
	assert.True(t, p.Eval(ruleID("5715")))
	assert.False(t, p.Eval(ruleID("9999")))
}

func TestCompilePredicate_InMixedTypes(t *testing.T) {
	p, err := CompilePredicate(`level in [3, 7, "high"]`)
	require.NoError(t, err)

	assert.True(t, p.Eval(nested("level", 7.0)))
	assert.True(t, p.Eval(nested("level", "high")))
	assert.False(t, p.Eval(nested("level", 5.0)))
}

func TestCompilePredicate_Contains(t *testing.T) {
	p, err := CompilePredicate(`contains(full_log, "Failed password")`)
	require.NoError(t, err)
	assert.Equal(t, PredicateContains, p.Kind)

	assert.True(t, p.Eval(nested("full_log", "sshd: Failed password for root")))
	assert.False(t, p.Eval(nested("full_log", "accepted password")), "matching is case-sensitive")
	assert.False(t, p.Eval(map[string]interface{}{}), "absent field is false, not an error")
}

func TestCompilePredicate_ContainsCoercesNumbers(t *testing.T) {
	p, err := CompilePredicate(`contains(rule.id, "571")`)
	require.NoError(t, err)
	assert.True(t, p.Eval(nested("rule", map[string]interface{}{"id": 5710.0})))
}

func TestCompilePredicate_ContainsNonStringArg(t *testing.T) {
	_, err := CompilePredicate(`contains(full_log, 42)`)
	var serr *SyntaxError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, `contains(full_log, 42)`, serr.Expression)
}

func TestCompilePredicate_Regex(t *testing.T) {
	p, err := CompilePredicate(`regex(ip, "192\.168\..*")`)
	require.NoError(t, err)
	assert.Equal(t, PredicateRegex, p.Kind)

	assert.True(t, p.Eval(nested("ip", "192.168.1.100")))
	assert.False(t, p.Eval(nested("ip", "10.0.0.1")))
	assert.False(t, p.Eval(map[string]interface{}{}))
}

func TestCompilePredicate_RegexSubstringMatch(t *testing.T) {
	p, err := CompilePredicate(`regex(msg, "fail(ed|ure)")`)
	require.NoError(t, err)
	assert.True(t, p.Eval(nested("msg", "login failure detected")), "patterns match anywhere in the value")
}

func TestCompilePredicate_RegexInvalidPattern(t *testing.T) {
	_, err := CompilePredicate(`regex(ip, "[unterminated")`)
	var serr *SyntaxError
	require.ErrorAs(t, err, &serr)
	assert.Contains(t, serr.Reason, "invalid regex pattern")
}

func TestCompilePredicate_SyntaxErrors(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"no operator", "rule.id 5710"},
		{"missing right operand", "rule.id == "},
		{"missing left operand", ` == "5710"`},
		{"unbalanced in bracket", `rule.id in ["5710", "5715"`},
		{"empty in list", `rule.id in []`},
		{"unbalanced quote in list", `rule.id in ["5710]`},
		{"contains missing paren", `contains(full_log, "x"`},
		{"contains unbalanced quote", `contains(full_log, "x)`},
		{"regex missing args", `regex(ip)`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompilePredicate(tt.expr)
			var serr *SyntaxError
			require.ErrorAs(t, err, &serr, "expected SyntaxError for %q", tt.expr)
			assert.NotEmpty(t, serr.Reason)
		})
	}
}

func TestCompilePredicate_Purity(t *testing.T) {
	inputs := []map[string]interface{}{
		ruleID("5710"),
		ruleID("5715"),
		{},
		nested("rule", "scalar"),
	}

	a, err := CompilePredicate(`rule.id == "5710"`)
	require.NoError(t, err)
	b, err := CompilePredicate(`rule.id == "5710"`)
	require.NoError(t, err)

	for _, fields := range inputs {
		assert.Equal(t, a.Eval(fields), b.Eval(fields))
	}
}

func TestPredicate_Source(t *testing.T) {
	expr := `rule.id == "5710"`
	p, err := CompilePredicate(expr)
	require.NoError(t, err)
	assert.Equal(t, expr, p.Source())
}

func TestSyntaxError_Unwrap(t *testing.T) {
	_, err := CompilePredicate("")
	assert.True(t, errors.As(err, new(*SyntaxError)))
}
