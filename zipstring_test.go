package zipcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUTF8String(t *testing.T) {
	s := NewUTF8String("héllo.txt")
	assert.Equal(t, EncodingUTF8, s.Encoding)
	assert.Equal(t, "héllo.txt", s.String())
	assert.True(t, s.IsUTF8())
	got, err := s.UTF8()
	require.NoError(t, err)
	assert.Equal(t, "héllo.txt", got)
}

func TestNewUTF8StringPanicsOnInvalidUTF8(t *testing.T) {
	assert.Panics(t, func() {
		NewUTF8String(string([]byte{0xff, 0xfe}))
	})
}

func TestNewRawStringWithoutAlternative(t *testing.T) {
	s := NewRawString([]byte("cp437.txt"), nil)
	assert.Equal(t, EncodingRaw, s.Encoding)
	assert.False(t, s.IsUTF8())
	assert.Equal(t, "cp437.txt", s.String())
	_, err := s.UTF8()
	assert.ErrorIs(t, err, ErrStringNotUTF8)
}

func TestNewRawStringWithAlternative(t *testing.T) {
	s := NewRawString([]byte{0x81, 0x82}, []byte("日本語.txt"))
	assert.True(t, s.IsUTF8())
	assert.Equal(t, "日本語.txt", s.String())
	got, err := s.UTF8()
	require.NoError(t, err)
	assert.Equal(t, "日本語.txt", got)
	assert.Equal(t, []byte{0x81, 0x82}, s.Bytes())
}
