package rectype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIntBoolLine(t *testing.T) {
	for _, kw := range []string{"int", "bool", "real", "line", "field", "email", "date", "uuid"} {
		ty, err := New(kw)
		require.NoError(t, err, kw)
		assert.Equal(t, kw, ty.Source)
	}
}

func TestNewRange(t *testing.T) {
	ty, err := New("range 1 10")
	require.NoError(t, err)
	assert.Equal(t, Range, ty.Kind)
	assert.Equal(t, 1, ty.Min)
	assert.Equal(t, 10, ty.Max)

	single, err := New("range 5")
	require.NoError(t, err)
	assert.Equal(t, 0, single.Min)
	assert.Equal(t, 5, single.Max)
}

func TestNewSize(t *testing.T) {
	ty, err := New("size 42")
	require.NoError(t, err)
	assert.Equal(t, Size, ty.Kind)
	assert.Equal(t, 42, ty.SizeN)

	_, err = New("size -1")
	assert.Error(t, err)
}

func TestNewEnum(t *testing.T) {
	ty, err := New("enum RED GREEN BLUE")
	require.NoError(t, err)
	require.Len(t, ty.EnumValues, 3)
	assert.Equal(t, "GREEN", ty.EnumValues[1])

	_, err = New("enum")
	assert.Error(t, err, "enum with no values should error")
}

func TestNewEnumStripsParenComments(t *testing.T) {
	ty, err := New("enum RED(blood) GREEN(grass)")
	require.NoError(t, err)
	assert.Equal(t, []string{"RED", "GREEN"}, ty.EnumValues)
}

func TestNewRec(t *testing.T) {
	ty, err := New("rec Person")
	require.NoError(t, err)
	assert.Equal(t, Rec, ty.Kind)
	assert.Equal(t, "Person", ty.RecType)

	_, err = New("rec")
	assert.Error(t, err, "rec with no type name should error")
}

func TestNewRegexpDelimited(t *testing.T) {
	ty, err := New("regexp /^[a-z]+$/")
	require.NoError(t, err)
	assert.Equal(t, Regexp, ty.Kind)
	assert.True(t, ty.Regexp.MatchString("abc"))
	assert.False(t, ty.Regexp.MatchString("ABC"))
}

func TestNewUnknownKeyword(t *testing.T) {
	_, err := New("bogus")
	require.Error(t, err)
	_, ok := err.(*UnknownKindError)
	assert.True(t, ok, "error type should be *UnknownKindError")
}

func TestCheckInt(t *testing.T) {
	ty, _ := New("int")
	ok, _ := ty.Check("42", nil)
	assert.True(t, ok)

	ok, msg := ty.Check("abc", nil)
	assert.False(t, ok)
	assert.NotEmpty(t, msg)
}

func TestCheckRange(t *testing.T) {
	ty, _ := New("range 1 5")
	ok, _ := ty.Check("3", nil)
	assert.True(t, ok)
	ok, _ = ty.Check("9", nil)
	assert.False(t, ok)
}

func TestCheckEnum(t *testing.T) {
	ty, _ := New("enum RED GREEN")
	ok, _ := ty.Check("RED", nil)
	assert.True(t, ok)
	ok, _ = ty.Check("YELLOW", nil)
	assert.False(t, ok)
}

func TestCheckEmail(t *testing.T) {
	ty, _ := New("email")
	ok, _ := ty.Check("a@b.com", nil)
	assert.True(t, ok)
	ok, _ = ty.Check("not-an-email", nil)
	assert.False(t, ok)
}

type fakeResolver struct {
	pk *Type
	ok bool
}

func (f fakeResolver) PrimaryKeyType(recTypeName string) (*Type, bool) { return f.pk, f.ok }

func TestCheckRecDelegatesToResolver(t *testing.T) {
	ty, _ := New("rec Person")
	intType, _ := New("int")
	resolver := fakeResolver{pk: intType, ok: true}
	ok, _ := ty.Check("42", resolver)
	assert.True(t, ok)
	ok, _ = ty.Check("abc", resolver)
	assert.False(t, ok)
}

func TestCompareIntNumeric(t *testing.T) {
	ty, _ := New("int")
	assert.Negative(t, ty.Compare("2", "10"), "int comparison should sort numerically")
}

func TestCompareFallsBackToLexicographic(t *testing.T) {
	ty := &Type{Kind: Line}
	assert.Negative(t, ty.Compare("a", "b"))
}

func TestParseDate(t *testing.T) {
	_, ok := ParseDate("2024-01-15")
	assert.True(t, ok)
	_, ok = ParseDate("not a date")
	assert.False(t, ok)
}
