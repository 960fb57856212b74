package core

import "strings"

// Record is an ordered multi-set of fields and comments, in insertion
// order. It owns its elements.
type Record struct {
	mset *MSet

	// Container is the record set currently holding this record. It is a
	// non-owning back-reference and must be refreshed whenever the record
	// moves between containers.
	Container *RSet

	// Position is the record's starting line number in its source text,
	// set by the parser. It is used as the location identifier in SEXP
	// output and in integrity error messages; it is not load-bearing for
	// equality.
	Position int
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{mset: NewMSet()}
}

// Kind implements Item so a Record can itself live inside an RSet's MSet.
func (r *Record) Kind() Kind { return KindRecord }

// Fields returns every field in insertion order.
func (r *Record) Fields() []*Field {
	items := r.mset.OfKind(KindField)
	out := make([]*Field, len(items))
	for i, it := range items {
		out[i] = it.(*Field)
	}
	return out
}

// Comments returns every comment in insertion order.
func (r *Record) Comments() []*Comment {
	items := r.mset.OfKind(KindComment)
	out := make([]*Comment, len(items))
	for i, it := range items {
		out[i] = it.(*Comment)
	}
	return out
}

// Elements returns fields and comments interleaved in insertion order.
func (r *Record) Elements() []Item {
	return r.mset.All()
}

// AppendField appends a new field to the record.
func (r *Record) AppendField(f *Field) {
	r.mset.Append(f)
}

// PrependField inserts f before every existing element.
func (r *Record) PrependField(f *Field) {
	r.mset.InsertAt(KindAny, 0, f)
}

// AppendComment appends a comment to the record.
func (r *Record) AppendComment(c *Comment) {
	r.mset.Append(c)
}

// NumFieldsByName returns the number of fields named name.
func (r *Record) NumFieldsByName(name string) int {
	n := 0
	for _, f := range r.Fields() {
		if f.Name == name {
			n++
		}
	}
	return n
}

// FieldByName returns the k-th (0-based) field named name, or nil.
func (r *Record) FieldByName(name string, k int) *Field {
	n := 0
	for _, f := range r.Fields() {
		if f.Name == name {
			if n == k {
				return f
			}
			n++
		}
	}
	return nil
}

// RemoveFieldByName removes the k-th field named name; k == -1 removes
// every field named name. It returns the number of fields removed.
func (r *Record) RemoveFieldByName(name string, k int) int {
	removed := 0
	if k == -1 {
		var toRemove []Item
		for _, it := range r.mset.OfKind(KindField) {
			if it.(*Field).Name == name {
				toRemove = append(toRemove, it)
			}
		}
		for _, it := range toRemove {
			if r.mset.Remove(it) {
				removed++
			}
		}
		return removed
	}

	n := 0
	for _, it := range r.mset.OfKind(KindField) {
		f := it.(*Field)
		if f.Name != name {
			continue
		}
		if n == k {
			if r.mset.Remove(it) {
				removed = 1
			}
			break
		}
		n++
	}
	return removed
}

// GetFieldIndex returns the zero-based position of field among ALL
// fields in the record (comments excluded), or -1 if not present.
func (r *Record) GetFieldIndex(field *Field) int {
	for i, f := range r.Fields() {
		if f == field {
			return i
		}
	}
	return -1
}

// GetFieldIndexByName returns the zero-based position of field among
// fields sharing its own name, or -1 if not present.
func (r *Record) GetFieldIndexByName(field *Field) int {
	n := 0
	for _, f := range r.Fields() {
		if f.Name != field.Name {
			continue
		}
		if f == field {
			return n
		}
		n++
	}
	return -1
}

// ContainsValue reports whether any field's value contains s as a
// substring, optionally case-insensitively.
func (r *Record) ContainsValue(s string, caseInsensitive bool) bool {
	needle := s
	if caseInsensitive {
		needle = strings.ToLower(needle)
	}
	for _, f := range r.Fields() {
		v := f.Value
		if caseInsensitive {
			v = strings.ToLower(v)
		}
		if strings.Contains(v, needle) {
			return true
		}
	}
	return false
}

// ContainsField reports whether the record has a field with exactly
// name and value.
func (r *Record) ContainsField(name, value string) bool {
	for _, f := range r.Fields() {
		if f.Name == name && f.Value == value {
			return true
		}
	}
	return false
}

// renderNormal renders the whole record (fields and comments, in
// insertion order) in NORMAL textual form, one element per line.
func (r *Record) renderNormal() string {
	var b strings.Builder
	for _, it := range r.Elements() {
		switch v := it.(type) {
		case *Field:
			b.WriteString(v.renderNormal())
			b.WriteByte('\n')
		case *Comment:
			for _, line := range strings.Split(v.Text, "\n") {
				b.WriteByte('#')
				b.WriteString(line)
				b.WriteByte('\n')
			}
		}
	}
	return b.String()
}

// ToComment serializes the whole record in NORMAL form and wraps the
// result (trailing newline stripped) as a single Comment.
func (r *Record) ToComment() *Comment {
	s := strings.TrimSuffix(r.renderNormal(), "\n")
	return NewComment(s)
}

// Uniq removes later fields that duplicate an earlier field's (name,
// value) pair, keeping the earliest occurrence.
func (r *Record) Uniq() {
	seen := make(map[[2]string]bool)
	var dup []Item
	for _, it := range r.mset.OfKind(KindField) {
		f := it.(*Field)
		key := [2]string{f.Name, f.Value}
		if seen[key] {
			dup = append(dup, it)
			continue
		}
		seen[key] = true
	}
	for _, it := range dup {
		r.mset.Remove(it)
	}
}

// Append copies every field of src onto r, preserving src's order.
func (r *Record) Append(src *Record) {
	for _, f := range src.Fields() {
		r.AppendField(f.Dup())
	}
}

// ResetMarks clears the mark of every field in the record.
func (r *Record) ResetMarks() {
	for _, f := range r.Fields() {
		f.SetMark(0)
	}
}

// Dup returns a detached deep copy of r: every field and comment is
// itself duplicated, source metadata is preserved, but Container is left
// nil (the copy belongs to no record set until inserted).
func (r *Record) Dup() *Record {
	nr := NewRecord()
	for _, it := range r.Elements() {
		switch v := it.(type) {
		case *Field:
			nr.mset.Append(v.Dup())
		case *Comment:
			nr.mset.Append(v.Dup())
		}
	}
	return nr
}
