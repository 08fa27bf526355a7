package zipcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u64(v uint64) *uint64 { return &v }
func u32(v uint32) *uint32 { return &v }

func TestEncodeExtraField(t *testing.T) {
	f := &UnknownExtraField{IDValue: 0x9999, Raw: []byte{1, 2, 3}}
	got := EncodeExtraField(f)
	assert.Equal(t, []byte{0x99, 0x99, 0x03, 0x00, 1, 2, 3}, got)
}

func TestZip64ExtraFieldDataOnlyIncludesSetFields(t *testing.T) {
	f := &Zip64ExtraField{UncompressedSize: u64(10), CompressedSize: u64(5)}
	data := f.Data()
	assert.Len(t, data, 16)

	roundTrip, err := parseZip64ExtraField(data, Zip64SentinelFlags{UncompressedSize: true, CompressedSize: true})
	require.NoError(t, err)
	require.NotNil(t, roundTrip.UncompressedSize)
	require.NotNil(t, roundTrip.CompressedSize)
	assert.Equal(t, uint64(10), *roundTrip.UncompressedSize)
	assert.Equal(t, uint64(5), *roundTrip.CompressedSize)
	assert.Nil(t, roundTrip.RelativeHeaderOffset)
	assert.Nil(t, roundTrip.DiskStart)
}

func TestParseZip64ExtraFieldIncomplete(t *testing.T) {
	_, err := parseZip64ExtraField([]byte{1, 2, 3}, Zip64SentinelFlags{UncompressedSize: true})
	assert.ErrorIs(t, err, ErrZIP64FieldIncomplete)
}

func TestUnicodePathExtraFieldRoundTrip(t *testing.T) {
	f := &UnicodePathExtraField{CRC32: 0xdeadbeef, Unicode: []byte("日本語.txt")}
	data := f.Data()

	parsed := parseUnicodeField(unicodePathExtraFieldID, data)
	up, ok := parsed.(*UnicodePathExtraField)
	require.True(t, ok)
	assert.Equal(t, uint32(0xdeadbeef), up.CRC32)
	assert.Equal(t, []byte("日本語.txt"), up.Unicode)
}

func TestParseUnicodeFieldWrongVersionBecomesUnknown(t *testing.T) {
	data := []byte{2, 0, 0, 0, 0, 'x'}
	parsed := parseUnicodeField(unicodePathExtraFieldID, data)
	_, ok := parsed.(*UnknownExtraField)
	assert.True(t, ok)
}

func TestParseExtraFieldsMixedAndClipping(t *testing.T) {
	zf := &Zip64ExtraField{UncompressedSize: u64(100)}
	buf := EncodeExtraFields([]ExtraField{zf, &UnknownExtraField{IDValue: 0xABCD, Raw: []byte{9, 9}}})
	// Corrupt the trailing field's declared size to overrun the buffer.
	buf[len(buf)-4] = 0xFF
	buf[len(buf)-3] = 0xFF

	fields, err := ParseExtraFields(buf, ExtraFieldContext{UncompressedSizeSentinel: true})
	require.NoError(t, err)
	require.Len(t, fields, 2)

	got := FindZip64ExtraField(fields)
	require.NotNil(t, got)
	assert.Equal(t, uint64(100), *got.UncompressedSize)
}

func TestParseExtraFieldsLocalHeaderOmitsOffsetSubfields(t *testing.T) {
	zf := &Zip64ExtraField{UncompressedSize: u64(1), CompressedSize: u64(2)}
	buf := EncodeExtraFields([]ExtraField{zf})

	fields, err := ParseExtraFields(buf, ExtraFieldContext{
		IsLocalHeader:                true,
		UncompressedSizeSentinel:     true,
		CompressedSizeSentinel:       true,
		RelativeHeaderOffsetSentinel: true, // should be ignored for local headers
	})
	require.NoError(t, err)
	got := FindZip64ExtraField(fields)
	require.NotNil(t, got)
	assert.Nil(t, got.RelativeHeaderOffset)
}

func TestFindHelpersReturnNilWhenAbsent(t *testing.T) {
	fields := []ExtraField{&UnknownExtraField{IDValue: 1, Raw: nil}}
	assert.Nil(t, FindZip64ExtraField(fields))
	assert.Nil(t, FindUnicodePathExtraField(fields))
	assert.Nil(t, FindUnicodeCommentExtraField(fields))
}
