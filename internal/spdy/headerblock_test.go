package spdy_test

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/spdywire/internal/spdy"
)

// blockCompressor is the encoding side of the header block codec: one
// zlib stream per session direction, primed with the version's
// dictionary, sync-flushed at every block boundary.
type blockCompressor struct {
	t       *testing.T
	version spdy.Version
	out     bytes.Buffer
	zw      *zlib.Writer
}

func newBlockCompressor(t *testing.T, version spdy.Version) *blockCompressor {
	t.Helper()
	c := &blockCompressor{t: t, version: version}
	zw, err := zlib.NewWriterLevelDict(&c.out, zlib.BestCompression, spdy.HeaderDictionary(version))
	require.NoError(t, err)
	c.zw = zw
	return c
}

func (c *blockCompressor) writeLength(n int) {
	if c.version == spdy.Version2 {
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(n))
		c.zw.Write(b[:])
		return
	}
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(n))
	c.zw.Write(b[:])
}

// compress encodes one header block and returns its compressed bytes.
func (c *blockCompressor) compress(pairs [][2]string) []byte {
	c.t.Helper()
	c.writeLength(len(pairs))
	for _, p := range pairs {
		c.writeLength(len(p[0]))
		c.zw.Write([]byte(p[0]))
		c.writeLength(len(p[1]))
		c.zw.Write([]byte(p[1]))
	}
	require.NoError(c.t, c.zw.Flush())
	block := append([]byte(nil), c.out.Bytes()...)
	c.out.Reset()
	return block
}

// headersFrame builds a HEADERS frame for the stream with the given
// block bytes.
func headersFrame(t *testing.T, streamID uint32, block []byte) []byte {
	t.Helper()
	length := 4 + len(block)
	frame := []byte{0x80, 0x03, 0x00, 0x08, 0x00, byte(length >> 16), byte(length >> 8), byte(length)}
	var sid [4]byte
	binary.BigEndian.PutUint32(sid[:], streamID)
	frame = append(frame, sid[:]...)
	return append(frame, block...)
}

func newZlibDecoder(t *testing.T, version spdy.Version, maxHeaderSize int) *spdy.Decoder {
	t.Helper()
	d, err := spdy.NewDecoder(version, 8192, maxHeaderSize)
	require.NoError(t, err)
	return d
}

func TestZlibHeaderBlockRoundTrip(t *testing.T) {
	for _, frag := range fragmentSizes {
		c := newBlockCompressor(t, spdy.Version3)
		block := c.compress([][2]string{
			{":method", "GET"},
			{":path", "/index.html"},
			{"host", "example.com"},
		})
		require.NotEmpty(t, block)

		d := newZlibDecoder(t, spdy.Version3, 16384)
		frames, err := decodeFragments(d, synStream(t, block), frag)
		require.NoError(t, err)
		require.Len(t, frames, 1)

		f := frames[0].(*spdy.SynStreamFrame)
		assert.False(t, f.Invalid)
		assert.False(t, f.Truncated)
		assert.Equal(t, map[string][]string{
			":method": {"GET"},
			":path":   {"/index.html"},
			"host":    {"example.com"},
		}, f.Headers)
	}
}

func TestZlibHeaderBlocksShareContext(t *testing.T) {
	// Two header blocks on one session direction share the compression
	// context; the second only decodes if the first's inflate state
	// survived the block boundary.
	c := newBlockCompressor(t, spdy.Version3)
	first := c.compress([][2]string{{"host", "example.com"}, {":status", "200"}})
	second := c.compress([][2]string{{"host", "example.com"}, {"x-extra", "yes"}})

	d := newZlibDecoder(t, spdy.Version3, 16384)
	input := append(synStream(t, first), headersFrame(t, 1, second)...)
	frames, err := decodeFragments(d, input, 0)
	require.NoError(t, err)
	require.Len(t, frames, 2)

	syn := frames[0].(*spdy.SynStreamFrame)
	assert.Equal(t, []string{"200"}, syn.Headers[":status"])

	hdrs := frames[1].(*spdy.HeadersFrame)
	assert.False(t, hdrs.Invalid)
	assert.Equal(t, []string{"yes"}, hdrs.Headers["x-extra"])
}

func TestZlibHeaderBlockEmpty(t *testing.T) {
	c := newBlockCompressor(t, spdy.Version3)
	block := c.compress(nil)

	d := newZlibDecoder(t, spdy.Version3, 16384)
	frames, err := decodeFragments(d, synStream(t, block), 0)
	require.NoError(t, err)
	require.Len(t, frames, 1)

	f := frames[0].(*spdy.SynStreamFrame)
	assert.False(t, f.Invalid)
	assert.Empty(t, f.Headers)
}

func TestZlibHeaderBlockNulSeparatedValues(t *testing.T) {
	c := newBlockCompressor(t, spdy.Version3)
	block := c.compress([][2]string{{"set-cookie", "a=1\x00b=2"}})

	d := newZlibDecoder(t, spdy.Version3, 16384)
	frames, err := decodeFragments(d, synStream(t, block), 0)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, []string{"a=1", "b=2"}, frames[0].(*spdy.SynStreamFrame).Headers["set-cookie"])
}

func TestZlibHeaderBlockTrailingNulInvalid(t *testing.T) {
	c := newBlockCompressor(t, spdy.Version3)
	block := c.compress([][2]string{{"host", "example.com\x00"}})

	d := newZlibDecoder(t, spdy.Version3, 16384)
	frames, err := decodeFragments(d, synStream(t, block), 0)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.True(t, frames[0].(*spdy.SynStreamFrame).Invalid)
}

func TestZlibHeaderBlockDuplicateNameInvalid(t *testing.T) {
	c := newBlockCompressor(t, spdy.Version3)
	block := c.compress([][2]string{{"host", "a"}, {"host", "b"}})

	d := newZlibDecoder(t, spdy.Version3, 16384)
	frames, err := decodeFragments(d, synStream(t, block), 0)
	require.NoError(t, err)
	require.Len(t, frames, 1)

	f := frames[0].(*spdy.SynStreamFrame)
	assert.True(t, f.Invalid)
	assert.Equal(t, []string{"a"}, f.Headers["host"])
}

func TestZlibHeaderBlockZeroLengthNameInvalid(t *testing.T) {
	c := newBlockCompressor(t, spdy.Version3)
	block := c.compress([][2]string{{"", "value"}})

	d := newZlibDecoder(t, spdy.Version3, 16384)
	frames, err := decodeFragments(d, synStream(t, block), 0)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.True(t, frames[0].(*spdy.SynStreamFrame).Invalid)
}

func TestZlibHeaderBlockTruncated(t *testing.T) {
	c := newBlockCompressor(t, spdy.Version3)
	block := c.compress([][2]string{
		{"host", "example.com"}, // 15 bytes, inside a 16-byte budget
		{"user-agent", "spdywire-test"},
	})

	d := newZlibDecoder(t, spdy.Version3, 16)
	frames, err := decodeFragments(d, synStream(t, block), 0)
	require.NoError(t, err)
	require.Len(t, frames, 1)

	f := frames[0].(*spdy.SynStreamFrame)
	assert.True(t, f.Truncated)
	assert.False(t, f.Invalid)
	assert.Equal(t, []string{"example.com"}, f.Headers["host"])
	assert.NotContains(t, f.Headers, "user-agent")
}

func TestZlibHeaderBlockCorruptStream(t *testing.T) {
	d := newZlibDecoder(t, spdy.Version3, 16384)
	_, err := decodeFragments(d, synStream(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}), 0)
	require.Error(t, err)

	// Terminal after the inflate failure.
	buf := spdy.NewBuffer(nil)
	buf.Write(h(t, "80 03 00 06 00 00 00 04 00 00 00 2A"))
	frames, err := drainDecoder(d, buf)
	require.NoError(t, err)
	assert.Empty(t, frames)
}

func TestZlibHeaderBlockUndeclaredEntriesInvalid(t *testing.T) {
	// The count promises more entries than the block carries.
	c := newBlockCompressor(t, spdy.Version3)
	c.writeLength(3)
	c.writeLength(4)
	c.zw.Write([]byte("host"))
	c.writeLength(1)
	c.zw.Write([]byte("a"))
	require.NoError(t, c.zw.Flush())
	block := append([]byte(nil), c.out.Bytes()...)

	d := newZlibDecoder(t, spdy.Version3, 16384)
	frames, err := decodeFragments(d, synStream(t, block), 0)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.True(t, frames[0].(*spdy.SynStreamFrame).Invalid)
}

func TestZlibHeaderBlockVersion2(t *testing.T) {
	c := newBlockCompressor(t, spdy.Version2)
	block := c.compress([][2]string{{"host", "example.com"}, {"method", "get"}})

	d, err := spdy.NewDecoder(spdy.Version2, 8192, 16384)
	require.NoError(t, err)

	// Same prologue layout as v3, version field 2.
	input := synStream(t, block)
	input[1] = 0x02

	frames, err := decodeFragments(d, input, 0)
	require.NoError(t, err)
	require.Len(t, frames, 1)

	f := frames[0].(*spdy.SynStreamFrame)
	assert.False(t, f.Invalid)
	assert.Equal(t, []string{"example.com"}, f.Headers["host"])
	assert.Equal(t, []string{"get"}, f.Headers["method"])
}
