// Package integrity implements the multi-rule record and record-set
// checker, external-descriptor merging, and a non-mutating fix-suggestion
// pass.
package integrity

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"

	"recdb/internal/core"
	"recdb/internal/crypt"
	"recdb/internal/fex"
	"recdb/internal/recparser"
	"recdb/internal/rectype"
)

// ErrorList accumulates "source:line: error: message" diagnostics; its
// length is the error count check_db/check_rset return.
type ErrorList struct {
	entries []string
}

// Add appends one formatted diagnostic.
func (e *ErrorList) Add(source string, line int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if source == "" {
		source = "<memory>"
	}
	e.entries = append(e.entries, fmt.Sprintf("%s:%d: error: %s", source, line, msg))
}

// Count returns the number of accumulated errors.
func (e *ErrorList) Count() int { return len(e.entries) }

// Errors returns every diagnostic line, in the order encountered.
func (e *ErrorList) Errors() []string { return e.entries }

// Resolver adapts a *core.Database to rectype.RecResolver, letting a
// "rec" type's Check delegate to the referred record set's primary-key
// type.
type Resolver struct {
	db *core.Database
}

// NewResolver wraps db.
func NewResolver(db *core.Database) *Resolver {
	return &Resolver{db: db}
}

// PrimaryKeyType implements rectype.RecResolver.
func (r *Resolver) PrimaryKeyType(recTypeName string) (*rectype.Type, bool) {
	rs, ok := r.db.ByType(recTypeName)
	if !ok {
		return nil, false
	}
	name := primaryKeyName(rs)
	if name == "" {
		return nil, false
	}
	p, ok := rs.Props[name]
	if !ok || p.Type == nil {
		return nil, false
	}
	return p.Type, true
}

func primaryKeyName(rs *core.RSet) string {
	if rs.Descriptor == nil {
		return ""
	}
	for _, f := range rs.Descriptor.Fields() {
		if f.Name == "%key" {
			parts := strings.Fields(f.Value)
			if len(parts) > 0 {
				return parts[0]
			}
		}
	}
	return ""
}

func simpleNameSet(rs *core.RSet, fieldName string) (map[string]bool, bool) {
	set := make(map[string]bool)
	present := false
	if rs.Descriptor == nil {
		return set, present
	}
	for _, f := range rs.Descriptor.Fields() {
		if f.Name != fieldName {
			continue
		}
		present = true
		fx, err := fex.NewSimple(f.Value)
		if err != nil {
			continue
		}
		for _, n := range fx.Names() {
			set[n] = true
		}
	}
	return set, present
}

// CheckDB runs CheckRSet over every record set in db and concatenates
// the results.
func CheckDB(db *core.Database, source string) *ErrorList {
	all := &ErrorList{}
	for _, rs := range db.RSets() {
		sub := CheckRSet(db, rs, source)
		all.entries = append(all.entries, sub.entries...)
	}
	return all
}

// CheckRSet runs the descriptor-level checks once, then the ordered
// per-record checks (key, type, mandatory, unique, secrets, prohibit,
// sex constraints, allowed) over every record of rs.
func CheckRSet(db *core.Database, rs *core.RSet, source string) *ErrorList {
	errs := &ErrorList{}
	checkDescriptorShape(rs, source, errs)

	count := int64(rs.Count())
	if count < rs.MinSize || count > rs.MaxSize {
		errs.Add(source, 0, "record set %q has %d records, outside the declared size bounds [%d,%d]",
			displayType(rs), count, rs.MinSize, rs.MaxSize)
	}

	resolver := NewResolver(db)
	mandatory, _ := simpleNameSet(rs, "%mandatory")
	unique, _ := simpleNameSet(rs, "%unique")
	prohibit, _ := simpleNameSet(rs, "%prohibit")
	allowed, allowedPresent := simpleNameSet(rs, "%allowed")

	var keyNames []string
	for name, p := range rs.Props {
		if p.Key {
			keyNames = append(keyNames, name)
		}
	}
	sort.Strings(keyNames)
	keySeen := make(map[string]map[string]bool, len(keyNames))
	for _, n := range keyNames {
		keySeen[n] = make(map[string]bool)
	}

	for _, r := range rs.Records() {
		checkRecord(rs, r, source, errs, resolver, keyNames, keySeen, mandatory, unique, prohibit, allowed, allowedPresent)
	}
	return errs
}

func displayType(rs *core.RSet) string {
	if rs.TypeName == "" {
		return "<unnamed>"
	}
	return rs.TypeName
}

func checkRecord(
	rs *core.RSet,
	r *core.Record,
	source string,
	errs *ErrorList,
	resolver rectype.RecResolver,
	keyNames []string,
	keySeen map[string]map[string]bool,
	mandatory, unique, prohibit, allowed map[string]bool,
	allowedPresent bool,
) {
	line := r.Position

	// 1. Key.
	for _, name := range keyNames {
		n := r.NumFieldsByName(name)
		if n != 1 {
			errs.Add(source, line, "key field %q must appear exactly once (found %d)", name, n)
			continue
		}
		v := r.FieldByName(name, 0).Value
		if keySeen[name][v] {
			errs.Add(source, line, "duplicate value %q for key field %q", v, name)
		} else {
			keySeen[name][v] = true
		}
	}

	// 2. Type.
	for _, f := range r.Fields() {
		p, ok := rs.Props[f.Name]
		if !ok || p.Type == nil {
			continue
		}
		if ok, msg := p.Type.Check(f.Value, resolver); !ok {
			errs.Add(source, f.Line, "field %q: %s", f.Name, msg)
		}
	}

	// 3. Mandatory.
	for name := range mandatory {
		if r.NumFieldsByName(name) == 0 {
			errs.Add(source, line, "mandatory field %q is missing", name)
		}
	}

	// 4. Unique.
	for name := range unique {
		if n := r.NumFieldsByName(name); n > 1 {
			errs.Add(source, line, "field %q declared unique appears %d times", name, n)
		}
	}

	// 5. Secrets.
	for name, p := range rs.Props {
		if !p.Confidential {
			continue
		}
		for _, f := range r.Fields() {
			if f.Name == name && !crypt.IsEncrypted(f.Value) {
				errs.Add(source, f.Line, "confidential field %q is not encrypted", name)
			}
		}
	}

	// 6. Prohibit.
	for name := range prohibit {
		if r.NumFieldsByName(name) > 0 {
			errs.Add(source, line, "field %q is prohibited", name)
		}
	}

	// 7. Sex constraints.
	for _, pred := range rs.Constraints {
		if !pred.Eval(r) {
			errs.Add(source, line, "constraint %q failed", pred.Source())
		}
	}

	// 8. Allowed.
	if allowedPresent {
		union := make(map[string]bool, len(allowed)+len(mandatory)+len(keyNames))
		for n := range allowed {
			union[n] = true
		}
		for n := range mandatory {
			union[n] = true
		}
		for _, n := range keyNames {
			union[n] = true
		}
		for _, f := range r.Fields() {
			if !union[f.Name] {
				errs.Add(source, f.Line, "field %q is not in %%allowed", f.Name)
			}
		}
	}
}

// checkDescriptorShape validates the descriptor-level constraints:
// exactly one %rec, at most one %key/%size/%sort, that the simple-fex
// fields (%mandatory, %unique, %prohibit, %auto, %sort, %allowed) parse,
// and that %auto fields are int, range, date or uuid. It does not
// re-check %type, %typedef or %constraint; those are only parsed when
// the descriptor is installed (RSet.Rebuild).
func checkDescriptorShape(rs *core.RSet, source string, errs *ErrorList) {
	if rs.Descriptor == nil {
		return
	}
	line := rs.Descriptor.Position
	counts := make(map[string]int)
	for _, f := range rs.Descriptor.Fields() {
		counts[f.Name]++
	}
	if counts["%rec"] != 1 {
		errs.Add(source, line, "record descriptor must have exactly one %%rec field (found %d)", counts["%rec"])
	}
	for _, name := range []string{"%key", "%size", "%sort"} {
		if counts[name] > 1 {
			errs.Add(source, line, "record descriptor may have at most one %s field (found %d)", name, counts[name])
		}
	}
	for _, name := range []string{"%mandatory", "%unique", "%prohibit", "%auto", "%sort", "%allowed"} {
		for _, f := range rs.Descriptor.Fields() {
			if f.Name != name {
				continue
			}
			if _, err := fex.NewSimple(f.Value); err != nil {
				errs.Add(source, f.Line, "%%%s field does not parse as a simple field expression: %v", name[1:], err)
			}
		}
	}
	for name, p := range rs.Props {
		if p.Auto && p.Type != nil {
			switch p.Type.Kind {
			case rectype.Int, rectype.Range, rectype.Date, rectype.UUID:
			default:
				errs.Add(source, line, "auto field %q has unsupported type %s", name, p.Type.Kind)
			}
		}
	}
}

// MergeExternal fetches the remote descriptor referenced by rs's
// "%rec: Type URL|PATH" field (if any) and merges its fields into a copy
// of the local descriptor, skipping any field name already present
// locally (local fields win ties) and never importing the remote's own
// %rec field. The merged descriptor replaces rs.Descriptor and rs is
// rebuilt.
func MergeExternal(rs *core.RSet) error {
	if rs.ExternalDescriptor == "" || rs.Descriptor == nil {
		return nil
	}
	data, err := fetchExternal(rs.ExternalDescriptor)
	if err != nil {
		return fmt.Errorf("integrity: fetching external descriptor %q: %w", rs.ExternalDescriptor, err)
	}
	extDB, err := recparser.Parse(rs.ExternalDescriptor, data)
	if err != nil {
		return fmt.Errorf("integrity: parsing external descriptor %q: %w", rs.ExternalDescriptor, err)
	}

	for _, extRS := range extDB.RSets() {
		if extRS.Descriptor == nil || extRS.TypeName != rs.TypeName {
			continue
		}
		merged := rs.Descriptor.Dup()
		localNames := make(map[string]bool)
		for _, f := range merged.Fields() {
			localNames[f.Name] = true
		}
		for _, f := range extRS.Descriptor.Fields() {
			if f.Name == "%rec" || localNames[f.Name] {
				continue
			}
			merged.AppendField(f.Dup())
		}
		rs.Descriptor = merged
		return rs.Rebuild()
	}
	return nil
}

func fetchExternal(ref string) ([]byte, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		resp, err := http.Get(ref)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %s", resp.Status)
		}
		return io.ReadAll(resp.Body)
	}
	return os.ReadFile(ref)
}

// Suggestion is one proposed, non-applied fix for an integrity problem.
type Suggestion struct {
	Line        int
	Description string
}

// SuggestFixes runs a non-mutating pass over rs proposing the minimal
// fix for two common violations: a missing mandatory field (add it with
// an empty value) and a field colliding with %prohibit (rename it).
// It does not replicate every check_rset rule — only the two whose fix
// is unambiguous enough to propose automatically.
func SuggestFixes(rs *core.RSet) []Suggestion {
	mandatory, _ := simpleNameSet(rs, "%mandatory")
	prohibit, _ := simpleNameSet(rs, "%prohibit")

	var out []Suggestion
	for _, r := range rs.Records() {
		for name := range mandatory {
			if r.NumFieldsByName(name) == 0 {
				out = append(out, Suggestion{
					Line:        r.Position,
					Description: fmt.Sprintf("add missing mandatory field %q with an empty value", name),
				})
			}
		}
		for name := range prohibit {
			if r.NumFieldsByName(name) > 0 {
				out = append(out, Suggestion{
					Line:        r.Position,
					Description: fmt.Sprintf("rename prohibited field %q (e.g. to %q)", name, name+"_renamed"),
				})
			}
		}
	}
	return out
}
