// Package crypt implements the field-level symmetric encryption used for
// confidential fields: AES-128-CBC with a password-derived key, a
// 4-byte random salt folded into the IV, a CRC-32 integrity trailer, and
// base64-with-prefix framing for the on-disk field value.
//
// The byte layout is grounded on the original implementation's
// rec-crypt.c; the bounds check in Decrypt is the fix for the
// known heap-overflow in that file (a too-short ciphertext whose trailing
// CRC bytes were read past the end of the buffer when the buffer was
// treated as a NUL-terminated C string).
package crypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

// EncryptedPrefix marks a field value as already encrypted.
const EncryptedPrefix = "encrypted-"

// IsEncrypted reports whether value already carries the encrypted-field
// prefix.
func IsEncrypted(value string) bool {
	return len(value) >= len(EncryptedPrefix) && value[:len(EncryptedPrefix)] == EncryptedPrefix
}

// deriveKey cycles password bytes to fill a 16-byte AES-128 key.
func deriveKey(password string) []byte {
	key := make([]byte, 16)
	if len(password) == 0 {
		return key
	}
	for i := range key {
		key[i] = password[i%len(password)]
	}
	return key
}

// buildIV lays out the 16-byte CBC IV: a 4-byte salt followed by the
// fixed tail bytes 4..15.
func buildIV(salt [4]byte) []byte {
	iv := make([]byte, 16)
	copy(iv[:4], salt[:])
	for i := 4; i < 16; i++ {
		iv[i] = byte(i)
	}
	return iv
}

// Encrypt encrypts plaintext with password, returning ciphertext‖salt
// (the raw bytes, not base64-encoded or prefixed — see EncryptField for
// the on-disk field format).
func Encrypt(plaintext []byte, password string) ([]byte, error) {
	var salt [4]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return nil, fmt.Errorf("crypt: generating salt: %w", err)
	}

	key := deriveKey(password)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypt: building cipher: %w", err)
	}

	buf := make([]byte, 0, len(plaintext)+4+aes.BlockSize)
	buf = append(buf, plaintext...)

	var crcBytes [4]byte
	binary.LittleEndian.PutUint32(crcBytes[:], crc32.ChecksumIEEE(plaintext))
	buf = append(buf, crcBytes[:]...)

	if rem := len(buf) % aes.BlockSize; rem != 0 {
		buf = append(buf, make([]byte, aes.BlockSize-rem)...)
	}

	iv := buildIV(salt)
	out := make([]byte, len(buf))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, buf)

	out = append(out, salt[:]...)
	return out, nil
}

// Decrypt reverses Encrypt: it determines the salt length from the input
// length, decrypts, and verifies the trailing CRC-32 of the recovered
// plaintext. It fails (rather than reading out of bounds) when the
// decrypted buffer is shorter than the 4-byte trailer it is about to
// read — the explicit check the original C implementation lacked.
func Decrypt(input []byte, password string) ([]byte, error) {
	var saltLen int
	switch {
	case len(input) >= 4 && (len(input)-4)%aes.BlockSize == 0:
		saltLen = 4
	case len(input)%aes.BlockSize == 0 && len(input) > 0:
		saltLen = 0
	default:
		return nil, errors.New("crypt: ciphertext has invalid length")
	}

	ctLen := len(input) - saltLen
	ciphertext := input[:ctLen]
	var salt [4]byte
	if saltLen == 4 {
		copy(salt[:], input[ctLen:])
	}

	key := deriveKey(password)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypt: building cipher: %w", err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, errors.New("crypt: ciphertext is not a block multiple")
	}

	iv := buildIV(salt)
	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)

	// Strip trailing \0 padding added before encryption.
	trimmed := bytes.TrimRight(plain, "\x00")

	if len(trimmed) < 4 {
		return nil, errors.New("crypt: decrypted buffer too short to hold a CRC trailer")
	}

	payload := trimmed[:len(trimmed)-4]
	wantCRC := binary.LittleEndian.Uint32(trimmed[len(trimmed)-4:])
	if crc32.ChecksumIEEE(payload) != wantCRC {
		return nil, errors.New("crypt: CRC mismatch (wrong password or corrupt data)")
	}

	return payload, nil
}

// EncryptField returns the on-disk representation of an encrypted field
// value: the literal "encrypted-" prefix followed by base64 of
// Encrypt's output. It is a no-op (value returned unchanged) if value is
// already prefixed.
func EncryptField(value, password string) (string, error) {
	if IsEncrypted(value) {
		return value, nil
	}
	raw, err := Encrypt([]byte(value), password)
	if err != nil {
		return "", err
	}
	return EncryptedPrefix + base64.StdEncoding.EncodeToString(raw), nil
}

// DecryptField reverses EncryptField. If value does not carry the
// encrypted-field prefix it is returned unchanged (not an error); this
// matches the per-field decrypt contract, where "leave as-is" is the
// caller-visible failure mode for non-confidential or already-plaintext
// fields.
func DecryptField(value, password string) (string, error) {
	if !IsEncrypted(value) {
		return value, nil
	}
	raw, err := base64.StdEncoding.DecodeString(value[len(EncryptedPrefix):])
	if err != nil {
		return value, fmt.Errorf("crypt: invalid base64: %w", err)
	}
	plain, err := Decrypt(raw, password)
	if err != nil {
		return value, err
	}
	return string(plain), nil
}
