package eval

import (
	"testing"

	"github.com/stretchr/testify/require"

	"recdb/internal/core"
	"recdb/internal/sex/parser"
)

func rec(pairs ...[2]string) *core.Record {
	r := core.NewRecord()
	for _, p := range pairs {
		r.AppendField(core.NewField(p[0], p[1]))
	}
	return r
}

func evalExpr(t *testing.T, expr string, r *core.Record) bool {
	t.Helper()
	root, err := parser.Parse(expr)
	require.NoError(t, err)
	return New(root).Eval(r)
}

func TestEvalSimpleComparison(t *testing.T) {
	r := rec([2]string{"Age", "25"})
	require.True(t, evalExpr(t, "Age > 18", r), "Age > 18 with Age=25 should be true")
	require.False(t, evalExpr(t, "Age < 18", r), "Age < 18 with Age=25 should be false")
}

func TestEvalStringEquality(t *testing.T) {
	r := rec([2]string{"Name", "Alice"})
	require.True(t, evalExpr(t, `Name = "Alice"`, r), `Name = "Alice" should be true`)
	require.False(t, evalExpr(t, `Name = "alice"`, r), `Name = "alice" (case sensitive) should be false`)
}

func TestEvalIgnoreCase(t *testing.T) {
	r := rec([2]string{"Name", "Alice"})
	root, err := parser.Parse(`Name = "alice"`)
	require.NoError(t, err)
	ev := New(root)
	ev.IgnoreCase = true
	require.True(t, ev.Eval(r), `Name = "alice" with IgnoreCase should be true`)
}

func TestEvalConcatFallbackOnNonNumeric(t *testing.T) {
	r := rec([2]string{"First", "foo"}, [2]string{"Second", "bar"})
	require.True(t, evalExpr(t, `First + Second = "foobar"`, r),
		"First + Second should concatenate to foobar when operands are non-numeric")
}

func TestEvalAddIsArithmeticOnNumbers(t *testing.T) {
	r := rec([2]string{"A", "2"}, [2]string{"B", "3"})
	require.True(t, evalExpr(t, "A + B = 5", r), "A + B should add numerically to 5")
}

func TestEvalAndOr(t *testing.T) {
	r := rec([2]string{"A", "1"}, [2]string{"B", "0"})
	require.True(t, evalExpr(t, "A = 1 || B = 1", r), "A=1 || B=1 should be true")
	require.False(t, evalExpr(t, "A = 1 && B = 1", r), "A=1 && B=1 should be false")
}

func TestEvalHashOpCountsOccurrences(t *testing.T) {
	r := rec([2]string{"Email", "a@x.com"}, [2]string{"Email", "b@x.com"})
	require.True(t, evalExpr(t, "#Email = 2", r), "#Email should count 2 occurrences")
}

func TestEvalMissingFieldIsEmptyString(t *testing.T) {
	r := rec([2]string{"Name", "Alice"})
	require.True(t, evalExpr(t, `Missing = ""`, r), "a missing field should evaluate to empty string")
}

func TestEvalMatchRegexp(t *testing.T) {
	r := rec([2]string{"Name", "Alice"})
	require.True(t, evalExpr(t, `Name ~ "^Al"`, r), `Name ~ "^Al" should match Alice`)
}

func TestEvalTernary(t *testing.T) {
	r := rec([2]string{"Age", "25"})
	require.True(t, evalExpr(t, `(Age > 18 ? 1 : 0) = 1`, r),
		"ternary with true condition should select the then-branch")
}

func TestEvalFieldLatchingMatchesAnyOccurrence(t *testing.T) {
	// A predicate on a repeated field matches if ANY occurrence satisfies
	// it, per the field-latching iteration algorithm: the whole-record
	// pass fails (no single evaluation sees both values at once), so the
	// evaluator must re-try per-occurrence.
	r := rec([2]string{"Email", "a@x.com"}, [2]string{"Email", "b@y.com"})
	require.True(t, evalExpr(t, `Email = "b@y.com"`, r),
		"predicate should match the second occurrence of a repeated field")
	require.False(t, evalExpr(t, `Email = "c@z.com"`, r),
		"predicate should not match when no occurrence satisfies it")
}

func TestEvalExplicitSubscriptPinsOccurrence(t *testing.T) {
	r := rec([2]string{"Email", "a@x.com"}, [2]string{"Email", "b@y.com"})
	require.True(t, evalExpr(t, `Email[1] = "b@y.com"`, r),
		"Email[1] should pin the second (0-based index 1) occurrence")
	require.False(t, evalExpr(t, `Email[1] = "a@x.com"`, r),
		"Email[1] should not match the first occurrence's value")
}

func TestEvalDivisionByZeroFails(t *testing.T) {
	r := rec([2]string{"A", "1"}, [2]string{"B", "0"})
	require.False(t, evalExpr(t, "A / B = 1", r),
		"division by zero should make the predicate false (evaluation failure)")
}

func TestEvalBangNegates(t *testing.T) {
	r := rec([2]string{"Age", "25"})
	require.True(t, evalExpr(t, "!(Age > 100)", r), "!(Age > 100) with Age=25 should be true")
	require.False(t, evalExpr(t, "!(Age > 18)", r), "!(Age > 18) with Age=25 should be false")
}
