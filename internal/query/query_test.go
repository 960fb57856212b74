package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recdb/internal/aggregate"
	"recdb/internal/core"
	"recdb/internal/fex"

	_ "recdb/internal/sex" // installs core.CompileSex
)

func descrRec(pairs ...[2]string) *core.Record {
	r := core.NewRecord()
	for _, p := range pairs {
		r.AppendField(core.NewField(p[0], p[1]))
	}
	return r
}

func personDB(t *testing.T) (*core.Database, *core.RSet) {
	t.Helper()
	db := core.NewDatabase()
	db.Aggregates = aggregate.NewRegistry()
	rs := core.NewRSet("Person")
	descr := descrRec([2]string{"%rec", "Person"}, [2]string{"%key", "Id"})
	require.NoError(t, rs.SetDescriptor(descr, 0))
	require.NoError(t, db.InsertRSet(0, rs))
	rs.AppendRecord(descrRec([2]string{"Id", "1"}, [2]string{"Name", "Alice"}, [2]string{"Age", "30"}))
	rs.AppendRecord(descrRec([2]string{"Id", "2"}, [2]string{"Name", "Bob"}, [2]string{"Age", "25"}))
	rs.AppendRecord(descrRec([2]string{"Id", "3"}, [2]string{"Name", "Carol"}, [2]string{"Age", "40"}))
	return db, rs
}

func TestSelectEverythingWhenNoSelector(t *testing.T) {
	db, _ := personDB(t)
	out, err := Select(db, Params{Type: "Person"})
	require.NoError(t, err)
	assert.Equal(t, 3, out.Count())
}

func TestSelectUnknownTypeIsEmptyNotError(t *testing.T) {
	db, _ := personDB(t)
	out, err := Select(db, Params{Type: "NoSuchType"})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Count())
}

func TestSelectByIndexRange(t *testing.T) {
	db, _ := personDB(t)
	out, err := Select(db, Params{Type: "Person", Selector: Selector{Index: []IndexRange{{Min: 0, Max: 1}}}})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Count())
}

func TestSelectByFastString(t *testing.T) {
	db, _ := personDB(t)
	out, err := Select(db, Params{Type: "Person", Selector: Selector{FastString: "Bob"}})
	require.NoError(t, err)
	require.Equal(t, 1, out.Count())
	assert.Equal(t, "Bob", out.Records()[0].FieldByName("Name", 0).Value)
}

func TestSelectBySex(t *testing.T) {
	db, _ := personDB(t)
	out, err := Select(db, Params{Type: "Person", Selector: Selector{Sex: "Age > 28"}})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Count(), "Alice 30, Carol 40")
}

func TestSelectRandomIsMutuallyExclusive(t *testing.T) {
	db, _ := personDB(t)
	// Random set alongside an index list: Random must win per precedence.
	out, err := Select(db, Params{Type: "Person", Selector: Selector{Random: 2, Index: []IndexRange{{Min: 0, Max: 0}}}})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Count(), "random takes precedence")
}

func TestSelectProjection(t *testing.T) {
	db, _ := personDB(t)
	fx, err := fex.NewSimple("Name")
	require.NoError(t, err)
	out, err := Select(db, Params{Type: "Person", Fex: fx})
	require.NoError(t, err)
	for _, r := range out.Records() {
		require.Len(t, r.Fields(), 1)
		assert.Equal(t, "Name", r.Fields()[0].Name)
	}
}

func TestSelectSingleAggregateFastPath(t *testing.T) {
	db, _ := personDB(t)
	fx, err := fex.New("count(Id)")
	require.NoError(t, err)
	out, err := Select(db, Params{Type: "Person", Fex: fx})
	require.NoError(t, err)
	require.Equal(t, 1, out.Count(), "single aggregate record")
	assert.Equal(t, "3", out.Records()[0].FieldByName("count_Id", 0).Value)
}

func TestSelectSortBy(t *testing.T) {
	db, _ := personDB(t)
	out, err := Select(db, Params{Type: "Person", SortBy: []string{"Age"}})
	require.NoError(t, err)
	ages := make([]string, 0)
	for _, r := range out.Records() {
		ages = append(ages, r.FieldByName("Age", 0).Value)
	}
	assert.Equal(t, []string{"25", "30", "40"}, ages)
}

func TestSelectDescriptorFlagCopiesDescriptor(t *testing.T) {
	db, _ := personDB(t)
	out, err := Select(db, Params{Type: "Person", Flags: FDescriptor})
	require.NoError(t, err)
	assert.NotNil(t, out.Descriptor, "want a copy of the source descriptor")
}

func TestSelectJoin(t *testing.T) {
	db := core.NewDatabase()
	db.Aggregates = aggregate.NewRegistry()

	teamRS := core.NewRSet("Team")
	teamDescr := descrRec([2]string{"%rec", "Team"}, [2]string{"%key", "Id"})
	_ = teamRS.SetDescriptor(teamDescr, 0)
	_ = db.InsertRSet(0, teamRS)
	teamRS.AppendRecord(descrRec([2]string{"Id", "t1"}, [2]string{"Name", "Engineering"}))

	empRS := core.NewRSet("Employee")
	empDescr := descrRec([2]string{"%rec", "Employee"}, [2]string{"%key", "Id"}, [2]string{"%type", "TeamId rec Team"})
	_ = empRS.SetDescriptor(empDescr, 0)
	_ = db.InsertRSet(1, empRS)
	empRS.AppendRecord(descrRec([2]string{"Id", "e1"}, [2]string{"Name", "Alice"}, [2]string{"TeamId", "t1"}))

	out, err := Select(db, Params{Type: "Employee", Join: "TeamId"})
	require.NoError(t, err)
	require.Equal(t, 1, out.Count())
	r := out.Records()[0]
	assert.False(t, r.ContainsField("TeamId", "t1"), "joined record still carries the original join field")
	got := r.FieldByName("TeamId_Name", 0)
	require.NotNil(t, got)
	assert.Equal(t, "Engineering", got.Value)
}

func TestInsertAppendsWithAutoFields(t *testing.T) {
	db, rs := personDB(t)
	rs.Props["Serial"] = &core.FieldProps{Auto: true}
	newRec := descrRec([2]string{"Name", "Dave"})
	require.NoError(t, Insert(db, "Person", Selector{}, "", newRec, 0))
	require.Equal(t, 4, rs.Count())
	last := rs.Records()[3]
	assert.NotNil(t, last.FieldByName("Serial", 0), "Insert() did not add the auto field")
}

func TestInsertReplacesSelectedRecords(t *testing.T) {
	db, rs := personDB(t)
	replacement := descrRec([2]string{"Id", "99"}, [2]string{"Name", "Zed"})
	err := Insert(db, "Person", Selector{Index: []IndexRange{{Min: 0, Max: 0}}}, "", replacement, 0)
	require.NoError(t, err)
	require.Equal(t, 3, rs.Count())
	assert.Equal(t, "Zed", rs.Records()[0].FieldByName("Name", 0).Value)
}

func TestDeleteRemovesSelected(t *testing.T) {
	db, rs := personDB(t)
	require.NoError(t, Delete(db, "Person", Selector{FastString: "Bob"}, 0))
	assert.Equal(t, 2, rs.Count())
}

func TestDeleteCommentOut(t *testing.T) {
	db, rs := personDB(t)
	require.NoError(t, Delete(db, "Person", Selector{FastString: "Bob"}, FCommentOut))
	assert.Equal(t, 2, rs.Count())
	assert.Len(t, rs.Comments(), 1)
}

func TestSetFieldsSetAction(t *testing.T) {
	db, rs := personDB(t)
	fx, _ := fex.NewSimple("Name")
	err := SetFields(db, "Person", Selector{FastString: "Bob"}, fx, Set, "Robert", 0)
	require.NoError(t, err)
	found := false
	for _, r := range rs.Records() {
		if r.FieldByName("Name", 0).Value == "Robert" {
			found = true
		}
	}
	assert.True(t, found, "SetFields(Set) did not rename Bob to Robert")
}

func TestSetFieldsDeleteWithSubscriptRangePreservesOtherOccurrences(t *testing.T) {
	db, rs := personDB(t)
	r := rs.Records()[0]
	r.AppendField(core.NewField("Tag", "keep-me"))
	r.AppendField(core.NewField("Tag", "remove-me"))
	r.AppendField(core.NewField("Tag", "keep-me-too"))

	fx, _ := fex.New("Tag[1]")
	sel := Selector{Index: []IndexRange{{Min: 0, Max: 0}}}
	require.NoError(t, SetFields(db, "Person", sel, fx, Delete, "", 0))

	var remaining []string
	for _, f := range r.Fields() {
		if f.Name == "Tag" {
			remaining = append(remaining, f.Value)
		}
	}
	assert.Equal(t, []string{"keep-me", "keep-me-too"}, remaining)
}

func TestSetFieldsRenameWithoutSelectorRenamesEveryRecord(t *testing.T) {
	db, rs := personDB(t)
	fx, _ := fex.NewSimple("Age")
	require.NoError(t, SetFields(db, "Person", Selector{}, fx, Rename, "Years", 0))
	for _, r := range rs.Records() {
		assert.Nil(t, r.FieldByName("Age", 0), "record still has an Age field after rename")
		assert.NotNil(t, r.FieldByName("Years", 0), "record missing renamed Years field")
	}
	found := false
	for _, f := range rs.Descriptor.Fields() {
		if f.Name == "%key" && f.Value == "Id" {
			found = true
		}
	}
	assert.True(t, found, "descriptor should still be internally consistent after Rebuild()")
}
