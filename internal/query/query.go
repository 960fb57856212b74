// Package query implements the four mutating/non-mutating database
// operations: select (query), insert, delete and set.
package query

import (
	"fmt"
	"math/rand"
	"strings"

	"recdb/internal/core"
	"recdb/internal/crypt"
	"recdb/internal/fex"
	"recdb/internal/rectype"
	"recdb/internal/sex"
)

// Flags is a bit set of REC_F_* options.
type Flags int

const (
	FDescriptor Flags = 1 << iota
	FICase
	FUniq
	FNoAuto
	FCommentOut
)

func (f Flags) has(bit Flags) bool { return f&bit != 0 }

// IndexRange is an inclusive [Min,Max] record-index selector.
type IndexRange struct {
	Min, Max int
}

// Selector picks a subset of a record set's records; at most one of
// Random, Index, Sex, FastString should be set (Random takes highest
// precedence, matching the original's mutual-exclusion rule).
type Selector struct {
	Index      []IndexRange
	Sex        string
	FastString string
	Random     int
}

func (s Selector) empty() bool {
	return s.Random <= 0 && len(s.Index) == 0 && s.Sex == "" && s.FastString == ""
}

// Params bundles every query() argument besides the database itself.
type Params struct {
	Type     string
	Join     string
	Selector Selector
	Fex      *fex.Fex
	Password string
	GroupBy  []string
	SortBy   []string
	Flags    Flags
}

// ResolveRSet finds the record set named typeName, or the database's
// only record set if typeName is empty. A typeName that names no
// record set, or an empty typeName in a database with neither a
// single nor a default record set, is not an error: it yields an
// empty record set, matching rec_db_query's behavior of an empty
// result rather than a failure.
func ResolveRSet(db *core.Database, typeName string) (*core.RSet, error) {
	if typeName == "" {
		if db.Size() == 1 {
			return db.RSets()[0], nil
		}
		if rs, ok := db.Default(); ok {
			return rs, nil
		}
		return core.NewRSet(""), nil
	}
	rs, ok := db.ByType(typeName)
	if !ok {
		return core.NewRSet(typeName), nil
	}
	return rs, nil
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

// join computes the inner join of rs.joinField against its referred
// record set's primary key, producing a fresh unnamed result set whose
// matched records carry the referenced fields renamed "joinField_Name".
func join(db *core.Database, rs *core.RSet, joinField string) (*core.RSet, error) {
	props, ok := rs.Props[joinField]
	if !ok || props.Type == nil || props.Type.Kind != rectype.Rec {
		return nil, fmt.Errorf("query: join field %q is not declared as type \"rec\"", joinField)
	}
	refRSet, ok := db.ByType(props.Type.RecType)
	if !ok {
		return nil, fmt.Errorf("query: join target record set %q not found", props.Type.RecType)
	}
	keyName := primaryKeyName(refRSet)
	if keyName == "" {
		return nil, fmt.Errorf("query: join target %q declares no primary key", props.Type.RecType)
	}

	byKey := make(map[string]*core.Record)
	for _, r := range refRSet.Records() {
		if kf := r.FieldByName(keyName, 0); kf != nil {
			byKey[kf.Value] = r
		}
	}

	out := core.NewRSet("")
	for _, r := range rs.Records() {
		jf := r.FieldByName(joinField, 0)
		if jf == nil {
			continue
		}
		ref, ok := byKey[jf.Value]
		if !ok {
			continue
		}
		merged := r.Dup()
		merged.RemoveFieldByName(joinField, -1)
		for _, rf := range ref.Fields() {
			merged.AppendField(core.NewField(joinField+"_"+rf.Name, rf.Value))
		}
		out.AppendRecord(merged)
	}
	return out, nil
}

func compilePredicate(expr string, icase bool) (core.Predicate, error) {
	e, err := sex.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("query: bad sex expression: %w", err)
	}
	return e.WithIgnoreCase(icase), nil
}

func randomIndexes(n, count int) map[int]bool {
	out := make(map[int]bool, count)
	if n <= 0 || count <= 0 {
		return out
	}
	if count > n {
		count = n
	}
	for len(out) < count {
		out[rand.Intn(n)] = true
	}
	return out
}

func inIndexRanges(ranges []IndexRange, i int) bool {
	for _, r := range ranges {
		if i >= r.Min && i <= r.Max {
			return true
		}
	}
	return false
}

// selectedIndexes returns the set of record indexes (into rs.Records())
// chosen by sel, applying the documented precedence: random, then
// fast_string, then sex, then index list, then "everything".
func selectedIndexes(rs *core.RSet, sel Selector, icase bool) (map[int]bool, error) {
	records := rs.Records()
	out := make(map[int]bool)

	switch {
	case sel.Random > 0:
		return randomIndexes(len(records), sel.Random), nil
	case sel.FastString != "":
		for i, r := range records {
			if r.ContainsValue(sel.FastString, icase) {
				out[i] = true
			}
		}
		return out, nil
	case sel.Sex != "":
		pred, err := compilePredicate(sel.Sex, icase)
		if err != nil {
			return nil, err
		}
		for i, r := range records {
			if pred.Eval(r) {
				out[i] = true
			}
		}
		return out, nil
	case len(sel.Index) > 0:
		for i := range records {
			if inIndexRanges(sel.Index, i) {
				out[i] = true
			}
		}
		return out, nil
	default:
		for i := range records {
			out[i] = true
		}
		return out, nil
	}
}

// elemRange normalizes a fex.Elem's subscript bounds for range
// comparisons: a bare NAME[N] subscript parses as Min=N, Max=-1 (no
// upper bound given), which callers normalize to Max=Min at use time
// rather than at parse time.
func elemRange(elem fex.Elem) (min, max int) {
	if elem.Min != -1 && elem.Max == -1 {
		return elem.Min, elem.Min
	}
	return elem.Min, elem.Max
}

// projectField builds the fields a single fex.Elem contributes to a
// projected record: an aggregate call if FunctionName is set, else a
// duplicate (optionally renamed) of every matching field.
func projectField(db *core.Database, rs *core.RSet, record *core.Record, elem fex.Elem, out *core.Record) {
	if elem.FunctionName != "" {
		if db.Aggregates == nil {
			return
		}
		val, ok := db.Aggregates.Call(elem.FunctionName, rs, record, elem.FieldName)
		if !ok {
			return
		}
		name := elem.RewriteTo
		if name == "" {
			name = elem.FunctionName + "_" + elem.FieldName
		}
		out.AppendField(core.NewField(name, val))
		return
	}

	emin, emax := elemRange(elem)
	n := 0
	for _, f := range record.Fields() {
		if f.Name != elem.FieldName {
			continue
		}
		if emin != -1 && (n < emin || n > emax) {
			n++
			continue
		}
		n++
		name := f.Name
		if elem.RewriteTo != "" {
			name = elem.RewriteTo
		}
		out.AppendField(core.NewField(name, f.Value))
	}
}

func project(db *core.Database, rs *core.RSet, record *core.Record, fx *fex.Fex) *core.Record {
	if fx == nil {
		return record.Dup()
	}
	out := core.NewRecord()
	for _, elem := range fx.Elements {
		projectField(db, rs, record, elem, out)
	}
	return out
}

// singleAggregate builds the one-record result for a fex whose every
// element is a function call, applied over the whole record set with no
// per-record context.
func singleAggregate(db *core.Database, rs *core.RSet, fx *fex.Fex) *core.RSet {
	rec := core.NewRecord()
	for _, elem := range fx.Elements {
		if db.Aggregates == nil {
			continue
		}
		val, ok := db.Aggregates.Call(elem.FunctionName, rs, nil, elem.FieldName)
		if !ok {
			continue
		}
		name := elem.RewriteTo
		if name == "" {
			name = elem.FunctionName + "_" + elem.FieldName
		}
		rec.AppendField(core.NewField(name, val))
	}
	out := core.NewRSet(rs.TypeName)
	out.AppendRecord(rec)
	return out
}

// Select runs query(db, params): resolving the source record set
// (optionally joined), selecting, grouping/sorting, projecting and
// decrypting, per the documented algorithm.
func Select(db *core.Database, params Params) (*core.RSet, error) {
	rs, err := ResolveRSet(db, params.Type)
	if err != nil {
		return nil, err
	}

	if params.Join != "" {
		rs, err = join(db, rs, params.Join)
		if err != nil {
			return nil, err
		}
	}

	icase := params.Flags.has(FICase)

	if params.Fex != nil && len(params.GroupBy) == 0 && params.Fex.AllCalls() {
		return singleAggregate(db, rs, params.Fex), nil
	}

	working := rs
	if len(params.GroupBy) > 0 || len(params.SortBy) > 0 {
		working = rs.Dup()
		if len(params.GroupBy) > 0 {
			working.Sort(params.GroupBy)
			working.Group(params.GroupBy)
		}
		sortKey := params.SortBy
		if len(sortKey) == 0 {
			sortKey = working.OrderByField
		}
		if len(sortKey) > 0 {
			working.Sort(sortKey)
		}
	}

	idx, err := selectedIndexes(working, params.Selector, icase)
	if err != nil {
		return nil, err
	}

	out := core.NewRSet(rs.TypeName)
	if params.Flags.has(FDescriptor) && rs.Descriptor != nil {
		if err := out.SetDescriptor(rs.Descriptor.Dup(), 0); err != nil {
			return nil, err
		}
	}

	records := working.Records()
	for i, r := range records {
		if !idx[i] {
			continue
		}
		pr := project(db, rs, r, params.Fex)
		if params.Flags.has(FUniq) {
			pr.Uniq()
		}
		if len(pr.Fields()) == 0 {
			continue
		}
		if params.Password != "" {
			crypt.DecryptRecord(rs, pr, params.Password)
		}
		out.AppendRecord(pr)
	}
	return out, nil
}

// Insert implements insert(): replace every selected record with a deep
// copy of record, or append record as a new record if no selector was
// given.
func Insert(db *core.Database, typeName string, sel Selector, password string, record *core.Record, flags Flags) error {
	rs, err := ResolveRSet(db, typeName)
	if err != nil {
		return err
	}
	inDB := false
	for _, s := range db.RSets() {
		inDB = inDB || s == rs
	}
	if !inDB {
		// ResolveRSet handed back a detached empty set: create it in db.
		if typeName == "" {
			if err := db.InsertRSet(0, rs); err != nil {
				return err
			}
		} else {
			descr := core.NewRecord()
			descr.AppendField(core.NewField("%rec", typeName))
			if err := rs.SetDescriptor(descr, 0); err != nil {
				return err
			}
			if err := db.AppendRSet(rs); err != nil {
				return err
			}
		}
	}

	if !sel.empty() {
		idx, err := selectedIndexes(rs, sel, flags.has(FICase))
		if err != nil {
			return err
		}
		records := rs.Records()
		for i, r := range records {
			if !idx[i] {
				continue
			}
			nr := record.Dup()
			nr.Container = r.Container
			rs.RemoveRecordAt(i)
			rs.InsertRecordAt(i, nr)
		}
		return nil
	}

	nr := record.Dup()
	if !flags.has(FNoAuto) {
		rs.AddAutoFields(nr)
	}
	if password != "" {
		if err := crypt.EncryptRecord(rs, nr, password); err != nil {
			return err
		}
	}
	rs.AppendRecord(nr)
	return nil
}

// Delete implements delete(): removes every selected record, or
// converts it to a comment when REC_F_COMMENT_OUT is set.
func Delete(db *core.Database, typeName string, sel Selector, flags Flags) error {
	rs, err := ResolveRSet(db, typeName)
	if err != nil {
		return err
	}
	idx, err := selectedIndexes(rs, sel, flags.has(FICase))
	if err != nil {
		return err
	}
	records := rs.Records()
	for i, r := range records {
		if !idx[i] {
			continue
		}
		if flags.has(FCommentOut) {
			c := r.ToComment()
			rs.RemoveRecord(r)
			rs.AppendComment(c)
		} else {
			rs.RemoveRecord(r)
		}
	}
	return nil
}

// Action is a set() mutation kind.
type Action int

const (
	Rename Action = iota
	Set
	Add
	SetAdd
	Delete
	Comment
)

// SetFields implements set(): applies action to every field the fex
// matches in every selected record, and (for RENAME, on the first
// matched field when no selector was given) renames every descriptor
// field whose own name is the old field name. Field names mentioned
// inside descriptor values (%key, %type, %mandatory and the like) are
// not renamed.
func SetFields(db *core.Database, typeName string, sel Selector, fx *fex.Fex, action Action, arg string, flags Flags) error {
	rs, err := ResolveRSet(db, typeName)
	if err != nil {
		return err
	}
	if fx == nil || len(fx.Elements) == 0 {
		return fmt.Errorf("query: set() requires a non-empty field expression")
	}
	if action == Rename && len(fx.Elements) != 1 {
		return fmt.Errorf("query: RENAME requires exactly one field expression element")
	}

	idx, err := selectedIndexes(rs, sel, flags.has(FICase))
	if err != nil {
		return err
	}

	renamedDescriptor := false
	records := rs.Records()
	for i, r := range records {
		if !idx[i] {
			continue
		}
		for _, elem := range fx.Elements {
			applySetAction(r, elem, action, arg)
		}
		if action == Rename && sel.empty() && !renamedDescriptor {
			renameDescriptorField(rs, fx.Elements[0].FieldName, arg)
			renamedDescriptor = true
		}
	}
	if action == Rename {
		return rs.Rebuild()
	}
	return nil
}

func applySetAction(r *core.Record, elem fex.Elem, action Action, arg string) {
	emin, emax := elemRange(elem)
	switch action {
	case Rename:
		n := 0
		for _, f := range r.Fields() {
			if f.Name != elem.FieldName {
				continue
			}
			if emin != -1 && (n < emin || n > emax) {
				n++
				continue
			}
			n++
			f.Name = arg
		}

	case Set:
		n := 0
		for _, f := range r.Fields() {
			if f.Name != elem.FieldName {
				continue
			}
			if emin != -1 && (n < emin || n > emax) {
				n++
				continue
			}
			n++
			f.Value = arg
		}

	case SetAdd:
		n := 0
		found := false
		for _, f := range r.Fields() {
			if f.Name != elem.FieldName {
				continue
			}
			if emin != -1 && (n < emin || n > emax) {
				n++
				continue
			}
			n++
			f.Value = arg
			found = true
		}
		if !found {
			r.AppendField(core.NewField(elem.FieldName, arg))
		}

	case Add:
		r.AppendField(core.NewField(elem.FieldName, arg))

	case Delete:
		var positions []int
		n := 0
		for _, f := range r.Fields() {
			if f.Name != elem.FieldName {
				continue
			}
			if emin == -1 || (n >= emin && n <= emax) {
				positions = append(positions, n)
			}
			n++
		}
		for i := len(positions) - 1; i >= 0; i-- {
			r.RemoveFieldByName(elem.FieldName, positions[i])
		}

	case Comment:
		var targets []*core.Field
		n := 0
		for _, f := range r.Fields() {
			if f.Name != elem.FieldName {
				continue
			}
			if emin == -1 || (n >= emin && n <= emax) {
				targets = append(targets, f)
			}
			n++
		}
		var positions []int
		for _, f := range targets {
			positions = append(positions, r.GetFieldIndexByName(f))
			r.AppendComment(f.ToComment())
		}
		for i := len(positions) - 1; i >= 0; i-- {
			r.RemoveFieldByName(elem.FieldName, positions[i])
		}
	}
}

func renameDescriptorField(rs *core.RSet, from, to string) {
	if rs.Descriptor == nil {
		return
	}
	for _, f := range rs.Descriptor.Fields() {
		if f.Name == from {
			f.Name = to
		}
	}
}
