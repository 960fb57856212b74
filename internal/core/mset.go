package core

// Kind tags the concrete type of an element stored in an MSet. A zero
// value of Kind (KindAny) never tags a real element; it is only used as
// the wildcard argument to Count/At/iteration.
type Kind int

const (
	// KindAny matches every element regardless of its concrete kind.
	KindAny Kind = iota
	KindField
	KindComment
	KindRecord
)

// Item is anything an MSet can hold. Field, Comment and Record all
// implement it.
type Item interface {
	Kind() Kind
}

type melem struct {
	kind Kind
	data Item
}

// MSet is an ordered heterogeneous list of Items with per-kind counts,
// insertion-order iteration and a stable sort. It backs both Record
// (fields + comments) and RSet (records + comments).
type MSet struct {
	elems  []*melem
	counts map[Kind]int
}

// NewMSet returns an empty multi-set.
func NewMSet() *MSet {
	return &MSet{counts: make(map[Kind]int)}
}

// Count returns the number of elements of the given kind, or the total
// element count if kind is KindAny.
func (m *MSet) Count(kind Kind) int {
	if kind == KindAny {
		return len(m.elems)
	}
	return m.counts[kind]
}

// At returns the pos-th element of the given kind (or the pos-th element
// overall if kind is KindAny), or nil if pos is out of range.
func (m *MSet) At(kind Kind, pos int) Item {
	if pos < 0 {
		return nil
	}
	if kind == KindAny {
		if pos >= len(m.elems) {
			return nil
		}
		return m.elems[pos].data
	}
	n := 0
	for _, e := range m.elems {
		if e.kind == kind {
			if n == pos {
				return e.data
			}
			n++
		}
	}
	return nil
}

// indexOfNth returns the index into m.elems of the pos-th element of the
// given kind (KindAny matches anything), or -1.
func (m *MSet) indexOfNth(kind Kind, pos int) int {
	if pos < 0 {
		return -1
	}
	if kind == KindAny {
		if pos >= len(m.elems) {
			return -1
		}
		return pos
	}
	n := 0
	for i, e := range m.elems {
		if e.kind == kind {
			if n == pos {
				return i
			}
			n++
		}
	}
	return -1
}

// InsertAt inserts data, tagged with kind, so that it becomes the pos-th
// element of that kind (KindAny: pos-th element overall).
func (m *MSet) InsertAt(kind Kind, pos int, data Item) {
	idx := len(m.elems)
	if found := m.indexOfNth(kind, pos); found >= 0 {
		idx = found
	}
	el := &melem{kind: data.Kind(), data: data}
	m.elems = append(m.elems, nil)
	copy(m.elems[idx+1:], m.elems[idx:])
	m.elems[idx] = el
	m.counts[el.kind]++
}

// Append adds data at the end of the multi-set.
func (m *MSet) Append(data Item) {
	kind := data.Kind()
	m.elems = append(m.elems, &melem{kind: kind, data: data})
	m.counts[kind]++
}

// RemoveAt removes and returns the pos-th element of the given kind.
func (m *MSet) RemoveAt(kind Kind, pos int) Item {
	idx := m.indexOfNth(kind, pos)
	if idx < 0 {
		return nil
	}
	el := m.elems[idx]
	m.elems = append(m.elems[:idx], m.elems[idx+1:]...)
	m.counts[el.kind]--
	return el.data
}

// Remove removes the first element equal (by pointer identity) to data.
func (m *MSet) Remove(data Item) bool {
	for i, e := range m.elems {
		if e.data == data {
			m.elems = append(m.elems[:i], m.elems[i+1:]...)
			m.counts[e.kind]--
			return true
		}
	}
	return false
}

// All returns every element in insertion order.
func (m *MSet) All() []Item {
	out := make([]Item, len(m.elems))
	for i, e := range m.elems {
		out[i] = e.data
	}
	return out
}

// OfKind returns every element of the given kind, in insertion order.
func (m *MSet) OfKind(kind Kind) []Item {
	var out []Item
	for _, e := range m.elems {
		if kind == KindAny || e.kind == kind {
			out = append(out, e.data)
		}
	}
	return out
}

// SortStable reorders elements using less, a strict-weak-order comparator.
// Ties (neither less(a,b) nor less(b,a)) preserve insertion order.
func (m *MSet) SortStable(less func(a, b Item) bool) {
	els := m.elems
	n := len(els)
	// Insertion sort: stable and fine at record-set scale, and it matches
	// the "insertion order wins on ties" contract without extra bookkeeping.
	for i := 1; i < n; i++ {
		cur := els[i]
		j := i - 1
		for j >= 0 && less(cur.data, els[j].data) {
			els[j+1] = els[j]
			j--
		}
		els[j+1] = cur
	}
}

// Clear empties the multi-set.
func (m *MSet) Clear() {
	m.elems = nil
	m.counts = make(map[Kind]int)
}
