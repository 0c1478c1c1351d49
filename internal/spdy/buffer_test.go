package spdy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"example.com/spdywire/internal/spdy"
)

func TestBufferAccessors(t *testing.T) {
	b := spdy.NewBuffer([]byte{0x80, 0x03, 0x00, 0x06, 0xFF, 0xFF, 0xFF, 0xFF})

	assert.Equal(t, 8, b.ReadableBytes())
	assert.Equal(t, byte(0x80), b.GetByte(0))
	assert.Equal(t, uint16(0x8003), b.GetUnsignedShort(0))
	assert.Equal(t, uint16(0x0006), b.GetUnsignedShort(2))
	assert.Equal(t, uint32(0x030006), b.GetUnsignedMedium(1))

	// The top bit is masked: stream-id fields are 31 bits on the wire.
	assert.Equal(t, uint32(0x7FFFFFFF), b.GetUnsignedInt(4))
	assert.Equal(t, int32(-1), b.GetSignedInt(4))

	// Non-consuming: the cursor has not moved.
	assert.Equal(t, 8, b.ReadableBytes())
}

func TestBufferAccessorsAreCursorRelative(t *testing.T) {
	b := spdy.NewBuffer([]byte{0x01, 0x02, 0x03, 0x04})
	b.Skip(2)
	assert.Equal(t, 2, b.ReadableBytes())
	assert.Equal(t, byte(0x03), b.GetByte(0))
	assert.Equal(t, uint16(0x0304), b.GetUnsignedShort(0))
}

func TestBufferReadBytesCopies(t *testing.T) {
	b := spdy.NewBuffer(nil)
	b.Write([]byte{0x0A, 0x0B, 0x0C})
	p := b.ReadBytes(2)
	assert.Equal(t, []byte{0x0A, 0x0B}, p)
	assert.Equal(t, 1, b.ReadableBytes())

	// Later writes must not alias an already-returned payload.
	b.Write([]byte{0xEE, 0xEE, 0xEE, 0xEE})
	assert.Equal(t, []byte{0x0A, 0x0B}, p)
}

func TestBufferSlice(t *testing.T) {
	b := spdy.NewBuffer([]byte{1, 2, 3, 4, 5})
	sub := b.Slice(3)

	assert.Equal(t, 3, sub.ReadableBytes())
	sub.Skip(2)
	assert.Equal(t, 1, sub.ReadableBytes())

	// The parent cursor is reconciled by the caller, not the slice.
	assert.Equal(t, 5, b.ReadableBytes())
}

func TestBufferWriteCompacts(t *testing.T) {
	b := spdy.NewBuffer(nil)
	b.Write(make([]byte, 1024))
	b.Skip(1000)
	b.Write([]byte{0x42})
	assert.Equal(t, 25, b.ReadableBytes())
	b.Skip(24)
	assert.Equal(t, byte(0x42), b.GetByte(0))
}
