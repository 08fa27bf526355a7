package zipcore

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readerAtFromBytes(b []byte) ReaderAt {
	return AdaptReaderAt(bytes.NewReader(b))
}

func TestLocateEOCDRSimple(t *testing.T) {
	eocdr := encodeEndOfCentralDir(endOfCentralDir{EntriesOnDisk: 2, EntriesTotal: 2, CDSize: 100, CDOffset: 50, CommentLen: 0})
	data := append([]byte("central-directory-bytes-placeholder"), eocdr...)

	loc, err := LocateEOCDR(context.Background(), readerAtFromBytes(data), int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, int64(len("central-directory-bytes-placeholder")), loc.Offset)
	assert.Equal(t, uint16(2), loc.Record.EntriesTotal)
	assert.Nil(t, loc.Zip64)
}

func TestLocateEOCDRWithComment(t *testing.T) {
	comment := []byte("hello archive")
	eocdr := encodeEndOfCentralDir(endOfCentralDir{CommentLen: uint16(len(comment))})
	data := append(eocdr, comment...)

	loc, err := LocateEOCDR(context.Background(), readerAtFromBytes(data), int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, comment, loc.Comment)
}

func TestLocateEOCDRRejectsFalseSignatureInComment(t *testing.T) {
	// A comment that happens to contain EOCDR signature bytes must not be
	// mistaken for the real record: its own declared comment length won't
	// reach exactly to EOF from that offset.
	fakeSig := encodeEndOfCentralDir(endOfCentralDir{})[:4]
	comment := append(append([]byte("prefix-"), fakeSig...), []byte("-suffix")...)
	real := encodeEndOfCentralDir(endOfCentralDir{CommentLen: uint16(len(comment))})
	data := append(real, comment...)

	loc, err := LocateEOCDR(context.Background(), readerAtFromBytes(data), int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, int64(0), loc.Offset)
}

func TestLocateEOCDRNotFound(t *testing.T) {
	data := bytes.Repeat([]byte{0}, 100)
	_, err := LocateEOCDR(context.Background(), readerAtFromBytes(data), int64(len(data)))
	assert.ErrorIs(t, err, ErrUnableToLocateEOCDR)
}

func TestLocateEOCDRTooSmall(t *testing.T) {
	_, err := LocateEOCDR(context.Background(), readerAtFromBytes([]byte{1, 2, 3}), 3)
	assert.ErrorIs(t, err, ErrUnableToLocateEOCDR)
}

func TestLocateEOCDRWithZip64(t *testing.T) {
	zrec := encodeZip64EndOfCentralDir(zip64EndOfCentralDir{
		SizeOfRecord: lenZip64EndOfCentralDir - 12, VersionMadeBy: versionNeededZip64, VersionNeeded: versionNeededZip64,
		EntriesOnDisk: 70000, EntriesTotal: 70000, CDSize: 123456789, CDOffset: 0,
	})
	zloc := encodeZip64EOCDLocator(zip64EOCDLocator{EOCDROffset: 0, TotalDisks: 1})
	eocdr := encodeEndOfCentralDir(endOfCentralDir{
		EntriesOnDisk: sentinel16, EntriesTotal: sentinel16, CDSize: sentinel32, CDOffset: sentinel32,
	})
	data := append(append(zrec, zloc...), eocdr...)

	loc, err := LocateEOCDR(context.Background(), readerAtFromBytes(data), int64(len(data)))
	require.NoError(t, err)
	require.NotNil(t, loc.Zip64)
	assert.Equal(t, uint64(70000), loc.Zip64.Record.EntriesTotal)
	assert.Equal(t, uint64(123456789), loc.Zip64.Record.CDSize)
}
