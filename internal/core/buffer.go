// Package core implements the in-memory record/field/record-set/database
// model shared by the parser, writer, query and integrity packages.
package core

// Buffer is a growable byte sink used while assembling field values and
// writer output. It never shrinks except through Rewind, which truncates
// back to an earlier length without reallocating.
type Buffer struct {
	data []byte
}

// NewBuffer returns an empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// PutByte appends a single byte.
func (b *Buffer) PutByte(c byte) {
	b.data = append(b.data, c)
}

// PutStr appends s.
func (b *Buffer) PutStr(s string) {
	b.data = append(b.data, s...)
}

// Rewind truncates the buffer so that only its first n bytes remain. It is
// a no-op if n is already >= the current length.
func (b *Buffer) Rewind(n int) {
	if n < 0 {
		n = 0
	}
	if n < len(b.data) {
		b.data = b.data[:n]
	}
}

// Len returns the number of bytes currently held.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Bytes returns the contiguous byte slice accumulated so far. The slice
// aliases the buffer's storage and must not be retained across further
// writes.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// String returns the accumulated bytes as a string.
func (b *Buffer) String() string {
	return string(b.data)
}
