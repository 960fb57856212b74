package recwriter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recdb/internal/core"
	"recdb/internal/recparser"
)

func buildRecord(pairs ...[2]string) *core.Record {
	r := core.NewRecord()
	for _, p := range pairs {
		r.AppendField(core.NewField(p[0], p[1]))
	}
	return r
}

func TestRenderRecordNormal(t *testing.T) {
	r := buildRecord([2]string{"Name", "Alice"}, [2]string{"Email", "a@x.com"})
	got := RenderRecord(r, Normal)
	assert.Equal(t, "Name: Alice\nEmail: a@x.com\n", got)
}

func TestRenderRecordNormalMultilineContinuation(t *testing.T) {
	r := buildRecord([2]string{"Note", "line1\nline2"})
	got := RenderRecord(r, Normal)
	assert.Equal(t, "Note: line1\n+ line2\n", got)
}

func TestRenderRecordValues(t *testing.T) {
	r := buildRecord([2]string{"Name", "Alice"}, [2]string{"Email", "a@x.com"})
	got := RenderRecord(r, Values)
	assert.Equal(t, "Alice\na@x.com\n", got)
}

func TestRenderRecordValuesRow(t *testing.T) {
	r := buildRecord([2]string{"Name", "Alice"}, [2]string{"Email", "a@x.com"})
	got := RenderRecord(r, ValuesRow)
	assert.Equal(t, "Alice a@x.com\n", got)
}

func TestRenderRecordSexp(t *testing.T) {
	r := buildRecord([2]string{"Name", "Alice"})
	r.Position = 3
	r.Fields()[0].Line = 3
	got := RenderRecord(r, Sexp)
	assert.Equal(t, `(record 3 ((field 3 "Name" "Alice")))`+"\n", got)
}

func TestSexpQuoteEscapesSpecialChars(t *testing.T) {
	r := buildRecord([2]string{"Note", "a \"quoted\" \\ value\nnext line"})
	got := RenderRecord(r, Sexp)
	assert.Contains(t, got, `\"quoted\"`)
	assert.Contains(t, got, `\\`)
	assert.Contains(t, got, `\n`)
}

func TestWriteRSetDescriptorAtPositionZero(t *testing.T) {
	rs := core.NewRSet("")
	descr := buildRecord([2]string{"%rec", "Person"})
	_ = rs.SetDescriptor(descr, 0)
	rs.AppendRecord(buildRecord([2]string{"Name", "Alice"}))

	var b strings.Builder
	w := New(&b, Options{Mode: Normal})
	require.NoError(t, w.WriteRSet(rs))
	assert.True(t, strings.HasPrefix(b.String(), "%rec: Person\n"), "output = %q, want descriptor first", b.String())
}

func TestWriteRSetDescriptorPastEndOfEmptySetAddsTrailingBlank(t *testing.T) {
	rs := core.NewRSet("")
	descr := buildRecord([2]string{"%rec", "Person"})
	_ = rs.SetDescriptor(descr, 0)
	rs.DescriptorPos = 0 // still the only element, and records is empty

	var b strings.Builder
	w := New(&b, Options{Mode: Normal})
	require.NoError(t, w.WriteRSet(rs))
	assert.True(t, strings.HasSuffix(b.String(), "\n\n"), "output = %q, want trailing blank line after a lone descriptor", b.String())
}

func TestWriteRSetCollapseOmitsBlankLines(t *testing.T) {
	rs := core.NewRSet("")
	rs.AppendRecord(buildRecord([2]string{"Name", "Alice"}))
	rs.AppendRecord(buildRecord([2]string{"Name", "Bob"}))

	var b strings.Builder
	w := New(&b, Options{Mode: Normal, Collapse: true})
	require.NoError(t, w.WriteRSet(rs))
	assert.NotContains(t, b.String(), "\n\n", "Collapse output still has a blank separator")
}

func TestWriteRSetSkipComments(t *testing.T) {
	rs := core.NewRSet("")
	r := buildRecord([2]string{"Name", "Alice"})
	r.AppendComment(core.NewComment("a comment"))
	rs.AppendRecord(r)

	var b strings.Builder
	w := New(&b, Options{Mode: Normal, SkipComments: true})
	require.NoError(t, w.WriteRecord(r))
	assert.NotContains(t, b.String(), "comment")
}

func TestParseThenRenderRoundTrip(t *testing.T) {
	src := "%rec: Person\n%key: Id\n\nId: 1\nName: Alice\n\nId: 2\nName: Bob\n"
	db, err := recparser.Parse("test", []byte(src))
	require.NoError(t, err)
	out, err := RenderDatabase(db, Options{Mode: Normal})
	require.NoError(t, err)

	db2, err := recparser.Parse("test", []byte(out))
	require.NoError(t, err)
	rs1, _ := db.ByType("Person")
	rs2, _ := db2.ByType("Person")
	require.Equal(t, rs1.Count(), rs2.Count(), "round trip changed record count")
	for i, r := range rs1.Records() {
		r2 := rs2.Records()[i]
		assert.Equal(t, r.FieldByName("Id", 0).Value, r2.FieldByName("Id", 0).Value, "record %d's Id", i)
		assert.Equal(t, r.FieldByName("Name", 0).Value, r2.FieldByName("Name", 0).Value, "record %d's Name", i)
	}
}
