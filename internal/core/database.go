package core

import "fmt"

// Aggregator resolves an aggregate-function call (count/sum/avg/min/max
// and any others registered) against a record set or a single record. It
// is implemented by package aggregate; Database only depends on the
// interface to avoid an import cycle.
type Aggregator interface {
	Call(name string, rset *RSet, record *Record, fieldName string) (string, bool)
}

// Database is an ordered list of record sets plus an aggregate-function
// registry. The default (unnamed) record set, if present, is always the
// first one.
type Database struct {
	rsets      []*RSet
	Aggregates Aggregator
}

// NewDatabase returns an empty database.
func NewDatabase() *Database {
	return &Database{}
}

// Size returns the number of record sets.
func (d *Database) Size() int {
	return len(d.rsets)
}

// RSets returns every record set in order.
func (d *Database) RSets() []*RSet {
	return d.rsets
}

// TypeP reports whether a record set named name exists.
func (d *Database) TypeP(name string) bool {
	_, ok := d.ByType(name)
	return ok
}

// ByType returns the record set named name.
func (d *Database) ByType(name string) (*RSet, bool) {
	for _, s := range d.rsets {
		if s.TypeName == name {
			return s, true
		}
	}
	return nil, false
}

// Default returns the unnamed record set (position 0), if the database
// has one.
func (d *Database) Default() (*RSet, bool) {
	if len(d.rsets) > 0 && d.rsets[0].TypeName == "" {
		return d.rsets[0], true
	}
	return nil, false
}

// InsertRSet inserts s at pos, except that when s is unnamed it is always
// forced to position 0 (the default record set invariant). It is an
// error to insert a named record set whose type name already exists.
func (d *Database) InsertRSet(pos int, s *RSet) error {
	if s.TypeName != "" {
		if _, exists := d.ByType(s.TypeName); exists {
			return fmt.Errorf("record set of type %q already exists", s.TypeName)
		}
	} else {
		pos = 0
	}
	if pos < 0 || pos > len(d.rsets) {
		pos = len(d.rsets)
	}
	d.rsets = append(d.rsets, nil)
	copy(d.rsets[pos+1:], d.rsets[pos:])
	d.rsets[pos] = s
	return nil
}

// AppendRSet appends s (or merges it into the existing default record set
// if s is unnamed and a default already exists, per the "multiple unnamed
// rsets are merged" invariant).
func (d *Database) AppendRSet(s *RSet) error {
	if s.TypeName == "" {
		if def, ok := d.Default(); ok {
			for _, it := range s.Elements() {
				switch v := it.(type) {
				case *Record:
					def.AppendRecord(v)
				case *Comment:
					def.AppendComment(v)
				}
			}
			return nil
		}
		return d.InsertRSet(0, s)
	}
	return d.InsertRSet(len(d.rsets), s)
}

// RemoveRSetAt removes and returns the record set at pos.
func (d *Database) RemoveRSetAt(pos int) *RSet {
	if pos < 0 || pos >= len(d.rsets) {
		return nil
	}
	s := d.rsets[pos]
	d.rsets = append(d.rsets[:pos], d.rsets[pos+1:]...)
	return s
}
