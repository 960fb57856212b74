package crypt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	plain := []byte("super secret value")
	ct, err := Encrypt(plain, "hunter2")
	require.NoError(t, err)
	got, err := Decrypt(ct, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, plain, got)
}

func TestDecryptWrongPasswordFails(t *testing.T) {
	ct, err := Encrypt([]byte("data"), "correct")
	require.NoError(t, err)
	_, err = Decrypt(ct, "wrong")
	assert.Error(t, err)
}

func TestDecryptRejectsShortBuffer(t *testing.T) {
	_, err := Decrypt([]byte{1, 2, 3}, "pw")
	assert.Error(t, err)
}

func TestEncryptFieldIdempotentOnAlreadyEncrypted(t *testing.T) {
	enc, err := EncryptField("hello", "pw")
	require.NoError(t, err)
	assert.True(t, IsEncrypted(enc))

	again, err := EncryptField(enc, "pw")
	require.NoError(t, err)
	assert.Equal(t, enc, again)
}

func TestEncryptFieldDecryptFieldRoundTrip(t *testing.T) {
	enc, err := EncryptField("top secret", "pw123")
	require.NoError(t, err)
	dec, err := DecryptField(enc, "pw123")
	require.NoError(t, err)
	assert.Equal(t, "top secret", dec)
}

func TestDecryptFieldLeavesPlaintextUnchanged(t *testing.T) {
	got, err := DecryptField("plainvalue", "pw")
	require.NoError(t, err)
	assert.Equal(t, "plainvalue", got)
}

func TestIsEncrypted(t *testing.T) {
	assert.False(t, IsEncrypted("plain"))
	assert.True(t, IsEncrypted("encrypted-abc123"))
}
