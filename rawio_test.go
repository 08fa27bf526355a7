package zipcore

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteBufRoundTrip(t *testing.T) {
	buf := make([]byte, 1+2+4+8+3)
	w := writeBuf(buf)
	w.uint8(0x42)
	w.uint16(0x1234)
	w.uint32(0xdeadbeef)
	w.uint64(0x0102030405060708)
	w.bytes([]byte("abc"))
	assert.Empty(t, w)

	r := readBuf(buf)
	assert.Equal(t, uint8(0x42), r.uint8())
	assert.Equal(t, uint16(0x1234), r.uint16())
	assert.Equal(t, uint32(0xdeadbeef), r.uint32())
	assert.Equal(t, uint64(0x0102030405060708), r.uint64())
	assert.Equal(t, []byte("abc"), r.bytes(3))
	assert.Equal(t, 0, r.len())
}

func TestReadBufSkip(t *testing.T) {
	r := readBuf([]byte{1, 2, 3, 4, 5})
	r.skip(2)
	assert.Equal(t, uint8(3), r.uint8())
	assert.Equal(t, 2, r.len())
}

type errWriter struct{}

func (errWriter) Write(p []byte) (int, error) { return 0, errors.New("boom") }

func TestCountWriter(t *testing.T) {
	var buf bytes.Buffer
	cw := &countWriter{w: &buf}
	n, err := cw.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, int64(5), cw.count)

	n, err = cw.Write([]byte(" world"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, int64(11), cw.count)
	assert.Equal(t, "hello world", buf.String())
}

func TestCountWriterPropagatesShortWriteCount(t *testing.T) {
	cw := &countWriter{w: errWriter{}}
	n, err := cw.Write([]byte("x"))
	assert.Error(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, int64(0), cw.count)
}
