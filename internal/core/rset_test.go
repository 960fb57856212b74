package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func descrRecord(fields ...[2]string) *Record {
	r := NewRecord()
	for _, f := range fields {
		r.AppendField(NewField(f[0], f[1]))
	}
	return r
}

func TestRSetSetDescriptorParsesKeyAndTypedef(t *testing.T) {
	rs := NewRSet("")
	descr := descrRecord(
		[2]string{"%rec", "Person"},
		[2]string{"%key", "Id"},
		[2]string{"%type", "Id int"},
	)
	require.NoError(t, rs.SetDescriptor(descr, 0))
	assert.Equal(t, "Person", rs.TypeName)
	assert.True(t, rs.Props["Id"].Key)
	assert.NotNil(t, rs.Props["Id"].Type)
}

func TestRSetSizeConstraint(t *testing.T) {
	rs := NewRSet("")
	descr := descrRecord([2]string{"%rec", "T"}, [2]string{"%size", ">3"})
	require.NoError(t, rs.SetDescriptor(descr, 0))
	assert.Equal(t, int64(4), rs.MinSize)
}

func TestRSetAppendAndRemoveRecord(t *testing.T) {
	rs := NewRSet("")
	r1 := descrRecord([2]string{"Name", "a"})
	r2 := descrRecord([2]string{"Name", "b"})
	rs.AppendRecord(r1)
	rs.AppendRecord(r2)
	assert.Equal(t, 2, rs.Count())
	assert.Equal(t, rs, r1.Container)

	removed := rs.RemoveRecordAt(0)
	assert.Equal(t, r1, removed)
	assert.Equal(t, 1, rs.Count())
}

func TestRSetSortByKey(t *testing.T) {
	rs := NewRSet("")
	rs.AppendRecord(descrRecord([2]string{"Id", "3"}))
	rs.AppendRecord(descrRecord([2]string{"Id", "1"}))
	rs.AppendRecord(descrRecord([2]string{"Id", "2"}))
	rs.Sort([]string{"Id"})

	ids := make([]string, 0)
	for _, r := range rs.Records() {
		ids = append(ids, r.FieldByName("Id", 0).Value)
	}
	assert.Equal(t, []string{"1", "2", "3"}, ids)
}

func TestRSetGroupMergesFields(t *testing.T) {
	rs := NewRSet("")
	rs.AppendRecord(descrRecord([2]string{"Team", "x"}, [2]string{"Member", "alice"}))
	rs.AppendRecord(descrRecord([2]string{"Team", "x"}, [2]string{"Member", "bob"}))
	rs.AppendRecord(descrRecord([2]string{"Team", "y"}, [2]string{"Member", "carol"}))
	rs.Sort([]string{"Team"})
	rs.Group([]string{"Team"})

	records := rs.Records()
	require.Len(t, records, 2)

	count := 0
	for _, f := range records[0].Fields() {
		if f.Name == "Member" {
			count++
		}
	}
	assert.Equal(t, 2, count)
}

func TestRSetAddAutoFieldsInt(t *testing.T) {
	rs := NewRSet("")
	descr := descrRecord([2]string{"%rec", "T"}, [2]string{"%auto", "Id"})
	require.NoError(t, rs.SetDescriptor(descr, 0))
	rs.AppendRecord(descrRecord([2]string{"Id", "5"}))
	fresh := descrRecord([2]string{"Name", "new"})
	rs.AddAutoFields(fresh)

	got := fresh.FieldByName("Id", 0)
	require.NotNil(t, got)
	assert.Equal(t, "6", got.Value)
}

func TestRSetDupIsDeepAndDetached(t *testing.T) {
	rs := NewRSet("Person")
	descr := descrRecord([2]string{"%rec", "Person"}, [2]string{"%key", "Id"})
	require.NoError(t, rs.SetDescriptor(descr, 0))
	rs.AppendRecord(descrRecord([2]string{"Id", "1"}))

	dup := rs.Dup()
	dup.Records()[0].Fields()[0].Value = "changed"
	assert.NotEqual(t, "changed", rs.Records()[0].Fields()[0].Value)
	assert.Equal(t, "Person", dup.TypeName)
}
