package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabaseAppendRSetMergesUnnamed(t *testing.T) {
	db := NewDatabase()
	first := NewRSet("")
	first.AppendRecord(NewRecord())
	require.NoError(t, db.AppendRSet(first))

	second := NewRSet("")
	second.AppendRecord(NewRecord())
	require.NoError(t, db.AppendRSet(second))

	assert.Equal(t, 1, db.Size())
	def, ok := db.Default()
	require.True(t, ok)
	assert.Equal(t, 2, def.Count())
}

func TestDatabaseInsertRSetRejectsDuplicateType(t *testing.T) {
	db := NewDatabase()
	require.NoError(t, db.InsertRSet(0, NewRSet("Person")))
	assert.Error(t, db.InsertRSet(0, NewRSet("Person")))
}

func TestDatabaseByTypeAndTypeP(t *testing.T) {
	db := NewDatabase()
	_ = db.InsertRSet(0, NewRSet("Person"))
	assert.True(t, db.TypeP("Person"))
	assert.False(t, db.TypeP("Missing"))

	rs, ok := db.ByType("Person")
	require.True(t, ok)
	assert.Equal(t, "Person", rs.TypeName)
}

func TestDatabaseDefaultAlwaysFirst(t *testing.T) {
	db := NewDatabase()
	_ = db.InsertRSet(0, NewRSet("Person"))
	unnamed := NewRSet("")
	require.NoError(t, db.AppendRSet(unnamed))
	assert.Equal(t, "", db.RSets()[0].TypeName)
}

func TestDatabaseRemoveRSetAt(t *testing.T) {
	db := NewDatabase()
	_ = db.InsertRSet(0, NewRSet("A"))
	_ = db.InsertRSet(1, NewRSet("B"))
	removed := db.RemoveRSetAt(0)
	require.NotNil(t, removed)
	assert.Equal(t, "A", removed.TypeName)
	assert.Equal(t, 1, db.Size())
	assert.Equal(t, "B", db.RSets()[0].TypeName)
}
