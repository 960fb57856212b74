// Package aggregate implements the standard aggregate functions
// (count/sum/avg/min/max) and the name-to-function registry used by
// projection's aggregate fex elements.
package aggregate

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"recdb/internal/core"
)

// Func computes an aggregate over a field, either within a single record
// (record != nil) or across every record of rset (record == nil).
type Func func(rset *core.RSet, record *core.Record, fieldName string) string

const maxRegistryEntries = 40

// Registry is a case-insensitive name -> Func table, capped at 40
// entries like the original implementation. It implements
// core.Aggregator so a Database can hold one without importing this
// package.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// NewRegistry returns a registry pre-populated with count/sum/avg/min/max.
func NewRegistry() *Registry {
	r := &Registry{funcs: make(map[string]Func)}
	r.Register("count", Count)
	r.Register("sum", Sum)
	r.Register("avg", Avg)
	r.Register("min", Min)
	r.Register("max", Max)
	return r
}

// Register adds or replaces the function under name (case-insensitively).
func (r *Registry) Register(name string, fn Func) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(name)
	if _, exists := r.funcs[key]; !exists && len(r.funcs) >= maxRegistryEntries {
		return fmt.Errorf("aggregate: registry full (max %d entries)", maxRegistryEntries)
	}
	r.funcs[key] = fn
	return nil
}

// Call implements core.Aggregator.
func (r *Registry) Call(name string, rset *core.RSet, record *core.Record, fieldName string) (string, bool) {
	r.mu.RLock()
	fn, ok := r.funcs[strings.ToLower(name)]
	r.mu.RUnlock()
	if !ok {
		return "", false
	}
	return fn(rset, record, fieldName), true
}

func fieldValues(rset *core.RSet, record *core.Record, fieldName string) []string {
	if record != nil {
		var out []string
		for _, f := range record.Fields() {
			if f.Name == fieldName {
				out = append(out, f.Value)
			}
		}
		return out
	}
	var out []string
	if rset == nil {
		return out
	}
	for _, rec := range rset.Records() {
		for _, f := range rec.Fields() {
			if f.Name == fieldName {
				out = append(out, f.Value)
			}
		}
	}
	return out
}

// Count returns the number of fields named fieldName, formatted as an
// unsigned decimal integer.
func Count(rset *core.RSet, record *core.Record, fieldName string) string {
	return strconv.Itoa(len(fieldValues(rset, record, fieldName)))
}

func numericValues(rset *core.RSet, record *core.Record, fieldName string) []float64 {
	var out []float64
	for _, v := range fieldValues(rset, record, fieldName) {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			out = append(out, f)
		}
	}
	return out
}

// Sum returns the sum of the numeric values of fieldName, formatted %g.
func Sum(rset *core.RSet, record *core.Record, fieldName string) string {
	var s float64
	for _, v := range numericValues(rset, record, fieldName) {
		s += v
	}
	return formatG(s)
}

// Avg returns the arithmetic mean of the numeric values of fieldName.
func Avg(rset *core.RSet, record *core.Record, fieldName string) string {
	vals := numericValues(rset, record, fieldName)
	if len(vals) == 0 {
		return formatG(0)
	}
	var s float64
	for _, v := range vals {
		s += v
	}
	return formatG(s / float64(len(vals)))
}

// Min returns the minimum numeric value of fieldName, or +Inf's %g
// rendering if no value was numeric.
func Min(rset *core.RSet, record *core.Record, fieldName string) string {
	m := math.Inf(1)
	for _, v := range numericValues(rset, record, fieldName) {
		if v < m {
			m = v
		}
	}
	return formatG(m)
}

// Max returns the maximum numeric value of fieldName, or -Inf's %g
// rendering if no value was numeric.
func Max(rset *core.RSet, record *core.Record, fieldName string) string {
	m := math.Inf(-1)
	for _, v := range numericValues(rset, record, fieldName) {
		if v > m {
			m = v
		}
	}
	return formatG(m)
}

func formatG(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
