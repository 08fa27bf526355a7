package zipcore

import (
	"context"
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildCentralDirectoryEntry(t *testing.T, name string, extra []ExtraField, flags uint16) []byte {
	t.Helper()
	extraBytes := EncodeExtraFields(extra)
	hdr := centralDirectoryHeader{
		VersionMadeBy: versionMadeByUnix, VersionNeeded: 20, Flags: flags,
		Method: uint16(MethodStored), ModTime: 1, ModDate: 1,
		CRC32: 0xCAFEBABE, CompressedSize: 10, UncompressedSize: 10,
		NameLen: uint16(len(name)), ExtraLen: uint16(len(extraBytes)),
		LocalHeaderOffset: 0,
	}
	buf := encodeCentralDirectoryHeader(hdr)
	buf = append(buf, []byte(name)...)
	buf = append(buf, extraBytes...)
	return buf
}

func TestParseDirectorySingleEntry(t *testing.T) {
	cd := buildCentralDirectoryEntry(t, "hello.txt", nil, gpbfFilenameUnicodeBit)
	eocdr := encodeEndOfCentralDir(endOfCentralDir{EntriesOnDisk: 1, EntriesTotal: 1, CDSize: uint32(len(cd)), CDOffset: 0})
	data := append(append([]byte{}, cd...), eocdr...)

	dir, err := ParseDirectory(context.Background(), readerAtFromBytes(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, dir.Entries, 1)
	assert.Equal(t, "hello.txt", dir.Entries[0].Name.String())
	assert.Equal(t, uint32(0xCAFEBABE), dir.Entries[0].CRC32)
	// header_size = 30 + name_len + extra_len (spec's file_offset +
	// header_size <= archive length invariant).
	assert.Equal(t, uint32(lenLocalFileHeader+len("hello.txt")), dir.Entries[0].HeaderSize)
}

func TestParseDirectoryPrefersZip64Sizes(t *testing.T) {
	zf := &Zip64ExtraField{UncompressedSize: u64(1 << 33), CompressedSize: u64(1 << 32)}
	cd := buildCentralDirectoryEntry(t, "big.bin", []ExtraField{zf}, gpbfFilenameUnicodeBit)
	// Set the legacy compressed/uncompressed size fields (offsets 20..27)
	// to the 0xFFFFFFFF sentinel so the ZIP64 extra carries both sizes.
	for i := 20; i < 28; i++ {
		cd[i] = 0xFF
	}
	eocdr := encodeEndOfCentralDir(endOfCentralDir{EntriesOnDisk: 1, EntriesTotal: 1, CDSize: uint32(len(cd)), CDOffset: 0})
	data := append(append([]byte{}, cd...), eocdr...)

	dir, err := ParseDirectory(context.Background(), readerAtFromBytes(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, dir.Entries, 1)
	// The legacy fields hold their sentinel value, so the ZIP64 extra's
	// sizes replace them.
	assert.Equal(t, uint64(1<<33), dir.Entries[0].UncompressedSize)
	assert.Equal(t, uint64(1<<32), dir.Entries[0].CompressedSize)
}

func TestParseDirectoryRejectsSplitArchive(t *testing.T) {
	cd := buildCentralDirectoryEntry(t, "a", nil, gpbfFilenameUnicodeBit)
	eocdr := encodeEndOfCentralDir(endOfCentralDir{DiskNumber: 1, EntriesOnDisk: 1, EntriesTotal: 1, CDSize: uint32(len(cd)), CDOffset: 0})
	data := append(append([]byte{}, cd...), eocdr...)

	_, err := ParseDirectory(context.Background(), readerAtFromBytes(data), int64(len(data)))
	assert.True(t, IsKind(err, ErrorKindFeatureNotSupported))
}

func TestResolveNameUsesUnicodeAlternativeOnCRCMatch(t *testing.T) {
	raw := []byte("cp437")
	crc := crc32.ChecksumIEEE(raw)
	fields := []ExtraField{&UnicodePathExtraField{CRC32: crc, Unicode: []byte("été")}}
	got := resolveName(raw, false, fields)
	assert.True(t, got.IsUTF8())
	assert.Equal(t, "été", got.String())
}

func TestResolveNameIgnoresUnicodeAlternativeOnCRCMismatch(t *testing.T) {
	raw := []byte("cp437")
	fields := []ExtraField{&UnicodePathExtraField{CRC32: 0, Unicode: []byte("stale")}}
	got := resolveName(raw, false, fields)
	assert.False(t, got.IsUTF8())
	assert.Equal(t, "cp437", got.String())
}

func TestResolveNameBasicUTF8BitShortCircuits(t *testing.T) {
	raw := []byte("already-utf8")
	got := resolveName(raw, true, nil)
	assert.Equal(t, EncodingUTF8, got.Encoding)
}
