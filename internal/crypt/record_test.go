package crypt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recdb/internal/core"
)

func confidentialRSet(fieldName string) *core.RSet {
	rs := core.NewRSet("")
	descr := core.NewRecord()
	descr.AppendField(core.NewField("%rec", "Secret"))
	descr.AppendField(core.NewField("%confidential", fieldName))
	_ = rs.SetDescriptor(descr, 0)
	return rs
}

func TestEncryptRecordThenDecryptRecordRoundTrip(t *testing.T) {
	rs := confidentialRSet("Password")
	r := core.NewRecord()
	r.AppendField(core.NewField("Password", "hunter2"))
	r.AppendField(core.NewField("Name", "alice"))

	require.NoError(t, EncryptRecord(rs, r, "key"))
	assert.True(t, IsEncrypted(r.FieldByName("Password", 0).Value))
	assert.Equal(t, "alice", r.FieldByName("Name", 0).Value)

	DecryptRecord(rs, r, "key")
	assert.Equal(t, "hunter2", r.FieldByName("Password", 0).Value)
}

func TestDecryptRecordLeavesFieldOnWrongPassword(t *testing.T) {
	rs := confidentialRSet("Password")
	r := core.NewRecord()
	r.AppendField(core.NewField("Password", "hunter2"))
	_ = EncryptRecord(rs, r, "key")

	encrypted := r.FieldByName("Password", 0).Value
	DecryptRecord(rs, r, "wrong-key")
	assert.Equal(t, encrypted, r.FieldByName("Password", 0).Value)
}
