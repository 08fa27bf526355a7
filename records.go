package zipcore

import "io"

// Record signatures (spec §6). sigEndOfCentralDir (0x06054b50) is the
// single canonical EOCDR signature; the spec's design notes call out a
// conflicting literal seen in one of the prior-art sources, which this
// package does not reproduce.
const (
	sigLocalFileHeader      uint32 = 0x04034b50
	sigCentralDirectory     uint32 = 0x02014b50
	sigEndOfCentralDir      uint32 = 0x06054b50
	sigZip64EndOfCentralDir uint32 = 0x06064b50
	sigZip64EOCDLocator     uint32 = 0x07064b50
	sigDataDescriptor       uint32 = 0x08074b50
)

// Fixed-part lengths, signature included (spec §4.1).
const (
	lenLocalFileHeader  = 30
	lenCentralDirectory = 46
	lenEndOfCentralDir  = 22
	lenDataDescriptor   = 16 // crc32, compressed size, uncompressed size (32-bit)
	lenDataDescriptor64 = 24 // crc32, compressed size, uncompressed size (64-bit)
	lenZip64EOCDLocator = 20
	lenZip64EndOfCentralDir = 56
)

// Version numbers (spec §6).
const (
	versionNeededDefault = 10
	versionNeededZip64   = 45
	versionMadeByUnix    = 3<<8 | 63
)

func (e *Entry) versionMadeBy() uint16 {
	return uint16(e.AttributeCompat)<<8 | 63
}

// localFileHeader is the decoded fixed part of an LFH (spec §6).
type localFileHeader struct {
	VersionNeeded    uint16
	Flags            uint16
	Method           uint16
	ModTime          uint16
	ModDate          uint16
	CRC32            uint32
	CompressedSize   uint32
	UncompressedSize uint32
	NameLen          uint16
	ExtraLen         uint16
}

func encodeLocalFileHeader(h localFileHeader) []byte {
	buf := make([]byte, lenLocalFileHeader)
	b := writeBuf(buf)
	b.uint32(sigLocalFileHeader)
	b.uint16(h.VersionNeeded)
	b.uint16(h.Flags)
	b.uint16(h.Method)
	b.uint16(h.ModTime)
	b.uint16(h.ModDate)
	b.uint32(h.CRC32)
	b.uint32(h.CompressedSize)
	b.uint32(h.UncompressedSize)
	b.uint16(h.NameLen)
	b.uint16(h.ExtraLen)
	return buf
}

func decodeLocalFileHeader(buf []byte) (localFileHeader, error) {
	var h localFileHeader
	if len(buf) < lenLocalFileHeader {
		return h, io.ErrUnexpectedEOF
	}
	b := readBuf(buf)
	if sig := b.uint32(); sig != sigLocalFileHeader {
		return h, errUnexpectedHeader(sigLocalFileHeader, sig)
	}
	h.VersionNeeded = b.uint16()
	h.Flags = b.uint16()
	h.Method = b.uint16()
	h.ModTime = b.uint16()
	h.ModDate = b.uint16()
	h.CRC32 = b.uint32()
	h.CompressedSize = b.uint32()
	h.UncompressedSize = b.uint32()
	h.NameLen = b.uint16()
	h.ExtraLen = b.uint16()
	return h, nil
}

// centralDirectoryHeader is the decoded fixed part of a CDR (spec §6).
type centralDirectoryHeader struct {
	VersionMadeBy    uint16
	VersionNeeded    uint16
	Flags            uint16
	Method           uint16
	ModTime          uint16
	ModDate          uint16
	CRC32            uint32
	CompressedSize   uint32
	UncompressedSize uint32
	NameLen          uint16
	ExtraLen         uint16
	CommentLen       uint16
	DiskStart        uint16
	InternalAttrs    uint16
	ExternalAttrs    uint32
	LocalHeaderOffset uint32
}

func encodeCentralDirectoryHeader(h centralDirectoryHeader) []byte {
	buf := make([]byte, lenCentralDirectory)
	b := writeBuf(buf)
	b.uint32(sigCentralDirectory)
	b.uint16(h.VersionMadeBy)
	b.uint16(h.VersionNeeded)
	b.uint16(h.Flags)
	b.uint16(h.Method)
	b.uint16(h.ModTime)
	b.uint16(h.ModDate)
	b.uint32(h.CRC32)
	b.uint32(h.CompressedSize)
	b.uint32(h.UncompressedSize)
	b.uint16(h.NameLen)
	b.uint16(h.ExtraLen)
	b.uint16(h.CommentLen)
	b.uint16(h.DiskStart)
	b.uint16(h.InternalAttrs)
	b.uint32(h.ExternalAttrs)
	b.uint32(h.LocalHeaderOffset)
	return buf
}

func decodeCentralDirectoryHeader(buf []byte) (centralDirectoryHeader, error) {
	var h centralDirectoryHeader
	if len(buf) < lenCentralDirectory {
		return h, io.ErrUnexpectedEOF
	}
	b := readBuf(buf)
	if sig := b.uint32(); sig != sigCentralDirectory {
		return h, errUnexpectedHeader(sigCentralDirectory, sig)
	}
	h.VersionMadeBy = b.uint16()
	h.VersionNeeded = b.uint16()
	h.Flags = b.uint16()
	h.Method = b.uint16()
	h.ModTime = b.uint16()
	h.ModDate = b.uint16()
	h.CRC32 = b.uint32()
	h.CompressedSize = b.uint32()
	h.UncompressedSize = b.uint32()
	h.NameLen = b.uint16()
	h.ExtraLen = b.uint16()
	h.CommentLen = b.uint16()
	h.DiskStart = b.uint16()
	h.InternalAttrs = b.uint16()
	h.ExternalAttrs = b.uint32()
	h.LocalHeaderOffset = b.uint32()
	return h, nil
}

// endOfCentralDir is the decoded EOCDR, excluding its trailing comment
// (spec §6).
type endOfCentralDir struct {
	DiskNumber    uint16
	CDStartDisk   uint16
	EntriesOnDisk uint16
	EntriesTotal  uint16
	CDSize        uint32
	CDOffset      uint32
	CommentLen    uint16
}

func encodeEndOfCentralDir(e endOfCentralDir) []byte {
	buf := make([]byte, lenEndOfCentralDir)
	b := writeBuf(buf)
	b.uint32(sigEndOfCentralDir)
	b.uint16(e.DiskNumber)
	b.uint16(e.CDStartDisk)
	b.uint16(e.EntriesOnDisk)
	b.uint16(e.EntriesTotal)
	b.uint32(e.CDSize)
	b.uint32(e.CDOffset)
	b.uint16(e.CommentLen)
	return buf
}

func decodeEndOfCentralDir(buf []byte) (endOfCentralDir, error) {
	var e endOfCentralDir
	if len(buf) < lenEndOfCentralDir {
		return e, io.ErrUnexpectedEOF
	}
	b := readBuf(buf)
	if sig := b.uint32(); sig != sigEndOfCentralDir {
		return e, errUnexpectedHeader(sigEndOfCentralDir, sig)
	}
	e.DiskNumber = b.uint16()
	e.CDStartDisk = b.uint16()
	e.EntriesOnDisk = b.uint16()
	e.EntriesTotal = b.uint16()
	e.CDSize = b.uint32()
	e.CDOffset = b.uint32()
	e.CommentLen = b.uint16()
	return e, nil
}

// zip64EndOfCentralDir is the decoded ZIP64 EOCDR fixed part (spec §6).
// Any trailing extensible data (beyond SizeOfRecord) is ignored; this
// package writes none.
type zip64EndOfCentralDir struct {
	SizeOfRecord  uint64
	VersionMadeBy uint16
	VersionNeeded uint16
	DiskNumber    uint32
	CDStartDisk   uint32
	EntriesOnDisk uint64
	EntriesTotal  uint64
	CDSize        uint64
	CDOffset      uint64
}

func encodeZip64EndOfCentralDir(e zip64EndOfCentralDir) []byte {
	buf := make([]byte, lenZip64EndOfCentralDir)
	b := writeBuf(buf)
	b.uint32(sigZip64EndOfCentralDir)
	b.uint64(e.SizeOfRecord)
	b.uint16(e.VersionMadeBy)
	b.uint16(e.VersionNeeded)
	b.uint32(e.DiskNumber)
	b.uint32(e.CDStartDisk)
	b.uint64(e.EntriesOnDisk)
	b.uint64(e.EntriesTotal)
	b.uint64(e.CDSize)
	b.uint64(e.CDOffset)
	return buf
}

func decodeZip64EndOfCentralDir(buf []byte) (zip64EndOfCentralDir, error) {
	var e zip64EndOfCentralDir
	if len(buf) < lenZip64EndOfCentralDir {
		return e, io.ErrUnexpectedEOF
	}
	b := readBuf(buf)
	if sig := b.uint32(); sig != sigZip64EndOfCentralDir {
		return e, errUnexpectedHeader(sigZip64EndOfCentralDir, sig)
	}
	e.SizeOfRecord = b.uint64()
	e.VersionMadeBy = b.uint16()
	e.VersionNeeded = b.uint16()
	e.DiskNumber = b.uint32()
	e.CDStartDisk = b.uint32()
	e.EntriesOnDisk = b.uint64()
	e.EntriesTotal = b.uint64()
	e.CDSize = b.uint64()
	e.CDOffset = b.uint64()
	return e, nil
}

// zip64EOCDLocator is the decoded ZIP64 EOCDL (spec §6).
type zip64EOCDLocator struct {
	DiskStart   uint32
	EOCDROffset uint64
	TotalDisks  uint32
}

func encodeZip64EOCDLocator(l zip64EOCDLocator) []byte {
	buf := make([]byte, lenZip64EOCDLocator)
	b := writeBuf(buf)
	b.uint32(sigZip64EOCDLocator)
	b.uint32(l.DiskStart)
	b.uint64(l.EOCDROffset)
	b.uint32(l.TotalDisks)
	return buf
}

func decodeZip64EOCDLocator(buf []byte) (zip64EOCDLocator, error) {
	var l zip64EOCDLocator
	if len(buf) < lenZip64EOCDLocator {
		return l, io.ErrUnexpectedEOF
	}
	b := readBuf(buf)
	if sig := b.uint32(); sig != sigZip64EOCDLocator {
		return l, errUnexpectedHeader(sigZip64EOCDLocator, sig)
	}
	l.DiskStart = b.uint32()
	l.EOCDROffset = b.uint64()
	l.TotalDisks = b.uint32()
	return l, nil
}

// dataDescriptor is the decoded DD body (spec §6). Sizes are always
// widened to uint64 internally; whether 32- or 64-bit fields are written
// on the wire is decided by the caller based on the entry's ZIP64-ness.
type dataDescriptor struct {
	CRC32            uint32
	CompressedSize   uint64
	UncompressedSize uint64
}

// encodeDataDescriptor writes the optional designator signature (de-facto
// standard, required by some tools) followed by the body, using 64-bit
// size fields when zip64 is true.
func encodeDataDescriptor(d dataDescriptor, zip64 bool) []byte {
	n := lenDataDescriptor
	if zip64 {
		n = lenDataDescriptor64
	}
	buf := make([]byte, n)
	b := writeBuf(buf)
	b.uint32(sigDataDescriptor)
	b.uint32(d.CRC32)
	if zip64 {
		b.uint64(d.CompressedSize)
		b.uint64(d.UncompressedSize)
	} else {
		b.uint32(uint32(d.CompressedSize))
		b.uint32(uint32(d.UncompressedSize))
	}
	return buf
}

// decodeDataDescriptor decodes a DD body from buf, which must already have
// any leading signature stripped, using 64-bit fields when zip64 is true.
func decodeDataDescriptor(buf []byte, zip64 bool) (dataDescriptor, error) {
	var d dataDescriptor
	want := 12
	if zip64 {
		want = 20
	}
	if len(buf) < want {
		return d, io.ErrUnexpectedEOF
	}
	b := readBuf(buf)
	d.CRC32 = b.uint32()
	if zip64 {
		d.CompressedSize = b.uint64()
		d.UncompressedSize = b.uint64()
	} else {
		d.CompressedSize = uint64(b.uint32())
		d.UncompressedSize = uint64(b.uint32())
	}
	return d, nil
}
