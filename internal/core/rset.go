package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"recdb/internal/rectype"
)

// Predicate is a compiled boolean test over a record. The SEX compiler
// (package sex) implements this without core importing sex, which would
// otherwise create an import cycle (sex needs *Record).
type Predicate interface {
	Eval(r *Record) bool
	Source() string
}

// CompileSex is installed by package sex's init function. RSet descriptor
// rebuilds call it to turn %constraint values into Predicates.
var CompileSex func(expr string) (Predicate, error)

// FieldProps holds the derived per-field-name properties declared by an
// RSet's descriptor.
type FieldProps struct {
	Key          bool
	Auto         bool
	Confidential bool
	TypeName     string        // non-"" if the field refers to a named type
	Type         *rectype.Type // resolved (or anonymous) type, nil if untyped
}

// RSet is an ordered multi-set of records and comments, with an optional
// descriptor and the derived state (re)computed from it.
type RSet struct {
	TypeName           string // "" for the unnamed/default record set
	ExternalDescriptor string // URL or path from "%rec: T URL|PATH"

	Descriptor    *Record
	DescriptorPos int // 0 = before any record; len(records) = after all

	mset *MSet

	// Derived state, fully rebuilt by Rebuild() whenever the descriptor
	// changes.
	Props        map[string]*FieldProps
	Types        *rectype.Registry
	MinSize      int64
	MaxSize      int64
	Constraints  []Predicate
	OrderByField []string
}

// NewRSet returns an empty record set with no descriptor.
func NewRSet(typeName string) *RSet {
	return &RSet{
		TypeName: typeName,
		mset:     NewMSet(),
		Props:    make(map[string]*FieldProps),
		Types:    rectype.NewRegistry(),
		MinSize:  0,
		MaxSize:  math.MaxInt64,
	}
}

// Records returns every record in insertion order.
func (s *RSet) Records() []*Record {
	items := s.mset.OfKind(KindRecord)
	out := make([]*Record, len(items))
	for i, it := range items {
		r := it.(*Record)
		out[i] = r
	}
	return out
}

// Comments returns every top-level comment in insertion order.
func (s *RSet) Comments() []*Comment {
	items := s.mset.OfKind(KindComment)
	out := make([]*Comment, len(items))
	for i, it := range items {
		out[i] = it.(*Comment)
	}
	return out
}

// Elements returns records and comments interleaved in insertion order.
func (s *RSet) Elements() []Item {
	return s.mset.All()
}

// AppendRecord appends r, setting its Container back-reference.
func (s *RSet) AppendRecord(r *Record) {
	r.Container = s
	s.mset.Append(r)
}

// InsertRecordAt inserts r as the pos-th record.
func (s *RSet) InsertRecordAt(pos int, r *Record) {
	r.Container = s
	s.mset.InsertAt(KindRecord, pos, r)
}

// RemoveRecordAt removes and returns the pos-th record.
func (s *RSet) RemoveRecordAt(pos int) *Record {
	it := s.mset.RemoveAt(KindRecord, pos)
	if it == nil {
		return nil
	}
	return it.(*Record)
}

// RemoveRecord removes r from the set.
func (s *RSet) RemoveRecord(r *Record) bool {
	return s.mset.Remove(r)
}

// AppendComment appends a top-level comment.
func (s *RSet) AppendComment(c *Comment) {
	s.mset.Append(c)
}

// Count returns the number of records in the set.
func (s *RSet) Count() int {
	return s.mset.Count(KindRecord)
}

// SetDescriptor installs descr (which may be nil to clear it) at
// relative position pos and fully rebuilds derived state.
func (s *RSet) SetDescriptor(descr *Record, pos int) error {
	s.Descriptor = descr
	s.DescriptorPos = pos
	return s.Rebuild()
}

// Rebuild recomputes every piece of derived state (type registry, field
// properties, size bounds, constraints, sort key) from the current
// descriptor. It must be called after ANY descriptor mutation; nothing
// may patch derived state incrementally.
func (s *RSet) Rebuild() error {
	s.Props = make(map[string]*FieldProps)
	s.Types = rectype.NewRegistry()
	s.MinSize = 0
	s.MaxSize = math.MaxInt64
	s.Constraints = nil
	s.OrderByField = nil
	s.TypeName = ""
	s.ExternalDescriptor = ""

	if s.Descriptor == nil {
		return nil
	}

	prop := func(name string) *FieldProps {
		p, ok := s.Props[name]
		if !ok {
			p = &FieldProps{}
			s.Props[name] = p
		}
		return p
	}

	for _, f := range s.Descriptor.Fields() {
		switch f.Name {
		case "%rec":
			parts := strings.Fields(f.Value)
			if len(parts) >= 1 {
				s.TypeName = parts[0]
			}
			if len(parts) >= 2 {
				s.ExternalDescriptor = parts[1]
			}

		case "%type":
			fexStr, typeStr, ok := splitFirstToken(f.Value)
			if !ok {
				return fmt.Errorf("malformed %%type field %q", f.Value)
			}
			names, err := csvNames(fexStr)
			if err != nil {
				return fmt.Errorf("bad %%type field expression: %w", err)
			}
			t, err := s.resolveTypeDescr(typeStr)
			if err != nil {
				return fmt.Errorf("bad %%type descriptor: %w", err)
			}
			for _, n := range names {
				prop(n).Type = t
			}

		case "%typedef":
			name, typeStr, ok := splitFirstToken(f.Value)
			if !ok {
				return fmt.Errorf("malformed %%typedef field %q", f.Value)
			}
			if err := s.Types.Define(name, typeStr); err != nil {
				return err
			}

		case "%key":
			for _, n := range strings.Fields(f.Value) {
				prop(n).Key = true
			}

		case "%auto":
			for _, n := range strings.Fields(f.Value) {
				prop(n).Auto = true
			}

		case "%mandatory", "%unique", "%prohibit", "%allowed":
			// Not recorded in derived state; package integrity re-reads
			// these fields from the descriptor (the RSet keeps the
			// descriptor around).

		case "%confidential":
			for _, n := range strings.Fields(f.Value) {
				prop(n).Confidential = true
			}

		case "%size":
			lo, hi, err := parseSizeConstraint(f.Value)
			if err != nil {
				return err
			}
			s.MinSize, s.MaxSize = lo, hi

		case "%sort":
			names, err := csvNames(f.Value)
			if err != nil {
				return fmt.Errorf("bad %%sort field expression: %w", err)
			}
			s.OrderByField = names

		case "%constraint":
			if CompileSex == nil {
				return fmt.Errorf("%%constraint present but no SEX compiler installed")
			}
			pred, err := CompileSex(f.Value)
			if err != nil {
				return fmt.Errorf("bad %%constraint: %w", err)
			}
			s.Constraints = append(s.Constraints, pred)
		}
	}

	// %auto fields with no explicit type default to int.
	for name, p := range s.Props {
		if p.Auto && p.Type == nil {
			p.Type = &rectype.Type{Kind: rectype.Int}
		}
		_ = name
	}

	return nil
}

func splitFirstToken(s string) (first, rest string, ok bool) {
	s = strings.TrimSpace(s)
	idx := strings.IndexAny(s, " \t")
	if idx < 0 {
		return "", "", false
	}
	return s[:idx], strings.TrimSpace(s[idx+1:]), true
}

func csvNames(s string) ([]string, error) {
	var out []string
	for _, f := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' }) {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out, nil
}

// resolveTypeDescr parses typeStr as an inline kind descriptor; if that
// fails, it is treated as a reference to a named type in the registry,
// looked up immediately. The descriptor's fields are processed in
// declaration order, so a %typedef must precede any %type that refers to
// it; a later %typedef is not seen and the reference is an error.
func (s *RSet) resolveTypeDescr(typeStr string) (*rectype.Type, error) {
	if t, err := rectype.New(typeStr); err == nil {
		return t, nil
	}
	if t, ok := s.Types.Lookup(strings.TrimSpace(typeStr)); ok {
		return t, nil
	}
	return nil, fmt.Errorf("unknown type %q", typeStr)
}

func parseSizeConstraint(s string) (min, max int64, err error) {
	s = strings.TrimSpace(s)
	op := "="
	for _, candidate := range []string{"<=", ">=", "<", ">"} {
		if strings.HasPrefix(s, candidate) {
			op = candidate
			s = strings.TrimSpace(strings.TrimPrefix(s, candidate))
			break
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad %%size value %q", s)
	}
	switch op {
	case "<":
		return 0, n - 1, nil
	case "<=":
		return 0, n, nil
	case ">":
		return n + 1, math.MaxInt64, nil
	case ">=":
		return n, math.MaxInt64, nil
	default:
		return n, n, nil
	}
}

// typeForField resolves the effective Type for a field name: its own
// property if declared, else nil (untyped, compared lexicographically).
func (s *RSet) typeForField(name string) *rectype.Type {
	if p, ok := s.Props[name]; ok {
		return p.Type
	}
	return nil
}

// Sort sets the order-by key (if key is non-empty) then performs a
// stable sort using each field's typed comparator, lexicographically
// over the key fields. A record missing a key field sorts before one
// that has it; if both lack it the tie is broken as "-1" (first operand
// wins) rather than treated as equal, reproducing the original source's
// documented (if arbitrary) behavior.
func (s *RSet) Sort(key []string) {
	if len(key) > 0 {
		s.OrderByField = key
	}
	k := s.OrderByField
	s.mset.SortStable(func(a, b Item) bool {
		ra, aok := a.(*Record)
		rb, bok := b.(*Record)
		if !aok || !bok {
			return false
		}
		return s.compareByKey(ra, rb, k) < 0
	})
}

func (s *RSet) compareByKey(a, b *Record, key []string) int {
	for _, name := range key {
		fa := a.FieldByName(name, 0)
		fb := b.FieldByName(name, 0)
		switch {
		case fa == nil && fb == nil:
			return -1
		case fa == nil:
			return -1
		case fb == nil:
			return 1
		default:
			t := s.typeForField(name)
			var c int
			if t != nil {
				c = t.Compare(fa.Value, fb.Value)
			} else {
				c = strings.Compare(fa.Value, fb.Value)
			}
			if c != 0 {
				return c
			}
		}
	}
	return 0
}

// Group assumes the set is already sorted by key; it merges consecutive
// records whose first-occurrence values of every key field match, folding
// later records' non-key fields into the first and discarding the rest.
func (s *RSet) Group(key []string) {
	records := s.Records()
	if len(records) == 0 {
		return
	}
	isKey := make(map[string]bool, len(key))
	for _, k := range key {
		isKey[k] = true
	}

	var toRemove []*Record
	head := records[0]
	for i := 1; i < len(records); i++ {
		cur := records[i]
		if s.compareByKey(head, cur, key) == 0 {
			for _, f := range cur.Fields() {
				if isKey[f.Name] {
					continue
				}
				head.AppendField(f.Dup())
			}
			toRemove = append(toRemove, cur)
		} else {
			head = cur
		}
	}
	for _, r := range toRemove {
		s.RemoveRecord(r)
	}
}

// AddAutoFields prepends a generated value for each declared auto field
// not already present in record.
func (s *RSet) AddAutoFields(record *Record) {
	for name, p := range s.Props {
		if !p.Auto || record.NumFieldsByName(name) > 0 {
			continue
		}
		value, ok := s.generateAutoValue(name, p)
		if !ok {
			continue
		}
		record.PrependField(NewField(name, value))
	}
}

func (s *RSet) generateAutoValue(name string, p *FieldProps) (string, bool) {
	kind := rectype.Int
	if p.Type != nil {
		kind = p.Type.Kind
	}
	switch kind {
	case rectype.Int, rectype.Range:
		max := -1
		for _, r := range s.Records() {
			for _, f := range r.Fields() {
				if f.Name != name {
					continue
				}
				if n, err := strconv.Atoi(strings.TrimSpace(f.Value)); err == nil && n > max {
					max = n
				}
			}
		}
		return strconv.Itoa(max + 1), true
	case rectype.Date:
		return time.Now().Format("Mon, 02 Jan 2006 15:04:05 -0700"), true
	case rectype.UUID:
		return uuid.New().String(), true
	default:
		return "", false
	}
}

// Dup returns a detached deep copy of s, including a copy of the
// descriptor (if any) and every record/comment, in order.
func (s *RSet) Dup() *RSet {
	ns := NewRSet(s.TypeName)
	ns.ExternalDescriptor = s.ExternalDescriptor
	ns.DescriptorPos = s.DescriptorPos
	if s.Descriptor != nil {
		ns.Descriptor = s.Descriptor.Dup()
		_ = ns.Rebuild()
	}
	for _, it := range s.Elements() {
		switch v := it.(type) {
		case *Record:
			ns.AppendRecord(v.Dup())
		case *Comment:
			ns.AppendComment(v.Dup())
		}
	}
	return ns
}
