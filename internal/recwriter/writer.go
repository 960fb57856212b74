// Package recwriter renders a core.Database (or any of its pieces) back
// to text, in one of four output modes.
package recwriter

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"recdb/internal/core"
)

// Mode selects the textual rendering of a record.
type Mode int

const (
	// Normal is canonical rec syntax: "name: value" with '+'
	// continuation lines for embedded newlines.
	Normal Mode = iota
	// Sexp renders s-expressions: (record CHARLOC ((field LOC "name" "value") ...))
	Sexp
	// Values renders one field value per line, no names, no comments.
	Values
	// ValuesRow renders every field value on one line, space-separated.
	ValuesRow
)

// Options controls optional writer behavior, independent of Mode.
type Options struct {
	Mode Mode

	// Collapse omits the blank line normally separating consecutive
	// records within a set.
	Collapse bool

	// SkipComments drops every comment (record-level and top-level)
	// from the output.
	SkipComments bool
}

// Writer renders rec data to an underlying io.Writer. It assembles each
// chunk of output in a core.Buffer before flushing it downstream, the
// same growable byte sink the parser uses while assembling field values.
type Writer struct {
	w    io.Writer
	opts Options
	err  error
	buf  *core.Buffer
}

// New returns a Writer over w using opts.
func New(w io.Writer, opts Options) *Writer {
	return &Writer{w: w, opts: opts, buf: core.NewBuffer()}
}

func (w *Writer) writeString(s string) {
	if w.err != nil {
		return
	}
	w.buf.PutStr(s)
}

// flush drains the buffer to the underlying io.Writer.
func (w *Writer) flush() error {
	if w.err != nil {
		return w.err
	}
	if w.buf.Len() == 0 {
		return nil
	}
	if _, err := w.w.Write(w.buf.Bytes()); err != nil {
		w.err = err
	}
	w.buf.Rewind(0)
	return w.err
}

// Err returns the first error encountered by any Write* call.
func (w *Writer) Err() error { return w.err }

// WriteDatabase renders every record set in db, in order, separated by a
// blank line between sets.
func (w *Writer) WriteDatabase(db *core.Database) error {
	for i, rs := range db.RSets() {
		if i > 0 {
			w.writeString("\n")
		}
		w.WriteRSet(rs)
	}
	w.flush()
	return w.err
}

// WriteRSet renders one record set: its descriptor (at its recorded
// relative position) plus every record and top-level comment, in order.
func (w *Writer) WriteRSet(rs *core.RSet) error {
	records := rs.Records()
	pos := rs.DescriptorPos
	if pos < 0 || pos > len(records) {
		pos = len(records)
	}

	emitDescriptor := func() {
		if rs.Descriptor == nil {
			return
		}
		w.WriteRecord(rs.Descriptor)
		if pos == len(records) && len(records) == 0 {
			// Descriptor alone past the end of an empty set still gets a
			// trailing blank line, per the writer contract.
			w.writeString("\n")
		}
	}

	wroteAny := false
	emitSep := func() {
		if wroteAny && !w.opts.Collapse {
			w.writeString("\n")
		}
		wroteAny = true
	}

	if pos == 0 {
		emitSep()
		emitDescriptor()
	}
	n := 0
	for _, it := range rs.Elements() {
		switch v := it.(type) {
		case *core.Record:
			emitSep()
			w.WriteRecord(v)
			n++
			if n == pos {
				emitSep()
				emitDescriptor()
			}
		case *core.Comment:
			if !w.opts.SkipComments {
				emitSep()
				w.writeComment(v)
			}
		}
	}
	w.flush()
	return w.err
}

// WriteRecord renders a single record in the Writer's configured Mode.
func (w *Writer) WriteRecord(r *core.Record) error {
	switch w.opts.Mode {
	case Sexp:
		w.writeRecordSexp(r)
	case Values:
		w.writeRecordValues(r)
	case ValuesRow:
		w.writeRecordValuesRow(r)
	default:
		w.writeRecordNormal(r)
	}
	w.flush()
	return w.err
}

func (w *Writer) writeRecordNormal(r *core.Record) {
	for _, it := range r.Elements() {
		switch v := it.(type) {
		case *core.Field:
			w.writeFieldNormal(v)
		case *core.Comment:
			if !w.opts.SkipComments {
				w.writeComment(v)
			}
		}
	}
}

func (w *Writer) writeFieldNormal(f *core.Field) {
	w.writeString(f.Name)
	w.writeString(": ")
	lines := strings.Split(f.Value, "\n")
	w.writeString(lines[0])
	w.writeString("\n")
	for _, l := range lines[1:] {
		w.writeString("+ ")
		w.writeString(l)
		w.writeString("\n")
	}
}

func (w *Writer) writeComment(c *core.Comment) {
	for _, line := range strings.Split(c.Text, "\n") {
		w.writeString("#")
		w.writeString(line)
		w.writeString("\n")
	}
}

// writeRecordValues renders one value per line (field names and comments
// dropped entirely, regardless of SkipComments).
func (w *Writer) writeRecordValues(r *core.Record) {
	for _, f := range r.Fields() {
		w.writeString(f.Value)
		w.writeString("\n")
	}
}

// writeRecordValuesRow renders every field value on one line, joined by
// a single space.
func (w *Writer) writeRecordValuesRow(r *core.Record) {
	fields := r.Fields()
	vals := make([]string, len(fields))
	for i, f := range fields {
		vals[i] = f.Value
	}
	w.writeString(strings.Join(vals, " "))
	w.writeString("\n")
}

// writeRecordSexp renders "(record CHARLOC ((field LOC \"name\" \"value\") ...))".
func (w *Writer) writeRecordSexp(r *core.Record) {
	w.writeString("(record ")
	w.writeString(strconv.Itoa(r.Position))
	w.writeString(" (")
	first := true
	for _, f := range r.Fields() {
		if !first {
			w.writeString(" ")
		}
		first = false
		w.writeString("(field ")
		w.writeString(strconv.Itoa(f.Line))
		w.writeString(" ")
		w.writeString(sexpQuote(f.Name))
		w.writeString(" ")
		w.writeString(sexpQuote(f.Value))
		w.writeString(")")
	}
	w.writeString("))\n")
}

// sexpQuote quotes s as an s-expression string literal, escaping '\\',
// '"' and embedded newlines.
func sexpQuote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// RenderRecord is a convenience wrapper returning a record's rendering in
// mode as a string.
func RenderRecord(r *core.Record, mode Mode) string {
	var b strings.Builder
	w := New(&b, Options{Mode: mode})
	w.WriteRecord(r)
	return b.String()
}

// RenderDatabase is a convenience wrapper returning db's full rendering
// as a string, using opts.
func RenderDatabase(db *core.Database, opts Options) (string, error) {
	var b strings.Builder
	w := New(&b, opts)
	if err := w.WriteDatabase(db); err != nil {
		return "", fmt.Errorf("recwriter: %w", err)
	}
	return b.String(), nil
}
