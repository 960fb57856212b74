package core

import "strings"

// Field is a (name, value) pair plus source-location metadata used for
// error reporting and by the SEX iteration algorithm.
//
// Name matches [A-Za-z%][A-Za-z0-9_]*; two names are equal iff they are
// byte-equal (case-sensitive, no normalization of '_', '-' or '%').
type Field struct {
	Name  string
	Value string

	Source   string
	Line     int
	Offset   int
	CharLine int

	mark int
}

// NewField returns a new field with name and value.
func NewField(name, value string) *Field {
	return &Field{Name: name, Value: value}
}

// Kind implements Item.
func (f *Field) Kind() Kind { return KindField }

// Equal compares fields by name only, per spec: field equality ignores
// value.
func (f *Field) Equal(other *Field) bool {
	return f.Name == other.Name
}

// SetMark sets the field's integer mark, used by the SEX evaluator and by
// mark-then-mutate iteration in query/mutate operations.
func (f *Field) SetMark(m int) { f.mark = m }

// Mark returns the field's current mark.
func (f *Field) Mark() int { return f.mark }

// Dup returns a detached deep copy of f, preserving source metadata.
func (f *Field) Dup() *Field {
	nf := *f
	return &nf
}

// renderNormal renders "name: value" with '+' continuation lines for
// embedded newlines, exactly as the NORMAL writer mode renders a single
// field, but without the dependency on the writer package (Field.ToComment
// needs only this one rendering, never the other three writer modes).
func (f *Field) renderNormal() string {
	var b strings.Builder
	b.WriteString(f.Name)
	b.WriteString(": ")
	lines := strings.Split(f.Value, "\n")
	b.WriteString(lines[0])
	for _, l := range lines[1:] {
		b.WriteString("\n+ ")
		b.WriteString(l)
	}
	return b.String()
}

// ToComment renders the field in its textual NORMAL form (with any
// trailing newline stripped) and wraps it as a Comment.
func (f *Field) ToComment() *Comment {
	s := f.renderNormal()
	s = strings.TrimSuffix(s, "\n")
	return NewComment(s)
}
