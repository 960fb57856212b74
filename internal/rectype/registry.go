package rectype

// Registry maps a named type (declared via %typedef) to its Type,
// including forwarding entries for synonyms ("%typedef: A B" where B is
// itself a registered type name rather than a kind keyword).
type Registry struct {
	direct   map[string]*Type
	synonym  map[string]string
}

// NewRegistry returns an empty type registry.
func NewRegistry() *Registry {
	return &Registry{
		direct:  make(map[string]*Type),
		synonym: make(map[string]string),
	}
}

// Define inserts-or-replaces descr under name. If descr parses as a known
// kind keyword it is stored directly; if descr is (only) the name of
// another already- or not-yet-registered type, it is stored as a
// forwarding synonym instead.
func (r *Registry) Define(name, descr string) error {
	if t, err := New(descr); err == nil {
		r.direct[name] = t
		delete(r.synonym, name)
		return nil
	}
	// Not a parseable kind descriptor: treat descr as a synonym target,
	// i.e. the bare name of another type.
	r.synonym[name] = descr
	delete(r.direct, name)
	return nil
}

// Lookup resolves name to its Type, following synonym chains with
// cycle detection (each visited name is marked, then cleared once
// resolution of the whole chain completes).
func (r *Registry) Lookup(name string) (*Type, bool) {
	visited := make(map[string]bool)
	return r.lookup(name, visited)
}

func (r *Registry) lookup(name string, visited map[string]bool) (*Type, bool) {
	if visited[name] {
		return nil, false
	}
	visited[name] = true

	if t, ok := r.direct[name]; ok {
		return t, true
	}
	if target, ok := r.synonym[name]; ok {
		return r.lookup(target, visited)
	}
	return nil, false
}

// Names returns every directly- or synonym-registered type name.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.direct)+len(r.synonym))
	for n := range r.direct {
		out = append(out, n)
	}
	for n := range r.synonym {
		out = append(out, n)
	}
	return out
}
