package zipcore

import (
	"bytes"
	"hash"
	"io"
	"unicode/utf8"
)

// detectUTF8 reports whether s is valid UTF-8, and whether it must be
// treated as UTF-8 rather than left to a legacy codepage: control
// characters and 0x5c/0x7e are excluded from the "compatible with
// CP-437-ish encodings" range since EUC-KR and Shift-JIS remap them
// (mirrors the teacher's writer.go detectUTF8).
func detectUTF8(s string) (valid, require bool) {
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		if r < 0x20 || r > 0x7d || r == 0x5c {
			if !utf8.ValidRune(r) || (r == utf8.RuneError && size == 1) {
				return false, false
			}
			require = true
		}
	}
	return true, require
}

// EntryWriteStrategy selects how an entry's content is written (spec §4.7
// "layered entry writer").
type EntryWriteStrategy int

const (
	// StrategyWhole buffers the entry's compressed bytes in memory as
	// they're written so the local file header, emitted only once Close
	// has the true CRC-32 and sizes, never needs a trailing data
	// descriptor. Suited to entries small enough to hold in memory at
	// once; the underlying writer need not be seekable.
	StrategyWhole EntryWriteStrategy = iota
	// StrategyStream writes the local file header immediately with a
	// zeroed CRC-32, the data-descriptor GPBF bit set, and (unless the
	// writer is forced to avoid ZIP64) sentinel ZIP64-sized fields plus a
	// placeholder ZIP64 extra, since the true sizes aren't known until
	// the stream ends; it then streams compressed bytes straight through
	// to the archive as they're produced. The real CRC-32 and sizes are
	// appended as a trailing data descriptor once Close has seen the
	// last byte. Suited to entries too large to buffer.
	StrategyStream
)

// EntryWriter is the per-entry write session returned by ArchiveWriter:
// writes made through it are compressed with the registered Compressor
// for the entry's Method and hashed for the final CRC-32, mirroring
// EntryReader's read-side layering (spec §4.7).
type EntryWriter struct {
	archive    *ArchiveWriter
	entry      *Entry
	strategy   EntryWriteStrategy
	fileOffset uint64 // meaningful only once Close has run for StrategyWhole
	headerSize uint32

	buf              *bytes.Buffer // StrategyWhole only; nil for StrategyStream
	dst              *countWriter
	comp             io.WriteCloser
	hasher           hash.Hash32
	uncompressedSize uint64
	closed           bool
	streamZip64      bool // StrategyStream only: whether the header already committed to ZIP64 framing
}

func (w *EntryWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, io.ErrClosedPipe
	}
	n, err := w.comp.Write(p)
	if n > 0 {
		w.hasher.Write(p[:n])
		w.uncompressedSize += uint64(n)
	}
	return n, err
}

// Close flushes the compressor, fills in the entry's final CRC-32 and
// sizes, and emits whatever StrategyWhole/StrategyStream left pending:
// StrategyWhole writes the (now fully known) local file header and
// buffered compressed bytes to the archive for the first time here;
// StrategyStream appends the trailing data descriptor. After Close, the
// ArchiveWriter that created w has recorded w.entry as a stored central
// directory record.
func (w *EntryWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.comp.Close(); err != nil {
		return err
	}
	w.entry.CRC32 = w.hasher.Sum32()
	w.entry.UncompressedSize = w.uncompressedSize
	w.entry.CompressedSize = uint64(w.dst.count)

	forceNoZip64 := w.archive.forceNoZip64
	if forceNoZip64 && w.entry.IsZip64() {
		return errZIP64Needed(ZIP64ReasonLargeFile)
	}

	switch w.strategy {
	case StrategyWhole:
		w.fileOffset = uint64(w.archive.raw.count)
		headerSize, _, err := writeLocalFileHeader(w.archive.raw, w.entry, StrategyWhole, forceNoZip64)
		if err != nil {
			return err
		}
		w.headerSize = headerSize
		if _, err := w.archive.raw.Write(w.buf.Bytes()); err != nil {
			return err
		}
	case StrategyStream:
		dd := encodeDataDescriptor(dataDescriptor{
			CRC32:            w.entry.CRC32,
			CompressedSize:   w.entry.CompressedSize,
			UncompressedSize: w.entry.UncompressedSize,
		}, w.entry.IsZip64() || w.streamZip64)
		if _, err := w.archive.raw.Write(dd); err != nil {
			return err
		}
	}

	w.archive.finishEntry(StoredEntry{Entry: w.entry, FileOffset: w.fileOffset, HeaderSize: w.headerSize})
	return nil
}

// writeLocalFileHeader emits entry's local file header at the archive's
// current offset, per strategy: StrategyWhole writes the entry's final
// CRC-32 and sizes, which by the time this is called (from EntryWriter.Close,
// after compression has finished) are already known; StrategyStream zeroes
// CRC-32 and sets the data-descriptor GPBF bit, the content and actual
// values following later (mirrors the teacher's writeHeader/prepareEntry).
//
// StrategyWhole only resorts to ZIP64 framing when entry's sizes actually
// need it; StrategyStream commits to ZIP64 framing (sentinel sizes plus a
// placeholder ZIP64 extra) unconditionally, since the real sizes aren't
// known until the trailing data descriptor is written, unless forceNoZip64
// disables ZIP64 altogether. The returned zip64 flag tells the caller which
// data-descriptor width to use at Close. forceNoZip64 together with a
// size that has already overflowed 32 bits (StrategyWhole only, since
// StrategyStream can't know this yet) fails with errZIP64Needed.
func writeLocalFileHeader(w io.Writer, entry *Entry, strategy EntryWriteStrategy, forceNoZip64 bool) (headerSize uint32, zip64 bool, err error) {
	if len(entry.Name.Bytes()) > int(sentinel16) {
		return 0, false, ErrFilenameTooLarge
	}

	extra := append([]ExtraField(nil), entry.Extra...)
	flags := uint16(0)
	if entry.Name.Encoding == EncodingUTF8 {
		flags |= gpbfFilenameUnicodeBit
	}

	versionNeeded := entry.versionNeeded()
	var crc, compSize, uncompSize uint32
	switch strategy {
	case StrategyWhole:
		crc = entry.CRC32
		compSize = uint32(entry.CompressedSize)
		uncompSize = uint32(entry.UncompressedSize)
		if entry.IsZip64() {
			if forceNoZip64 {
				return 0, false, errZIP64Needed(ZIP64ReasonLargeFile)
			}
			zip64 = true
			compSize = sentinel32
			uncompSize = sentinel32
			extra = append(extra, &Zip64ExtraField{
				UncompressedSize: u64ptr(entry.UncompressedSize),
				CompressedSize:   u64ptr(entry.CompressedSize),
			})
		}
	case StrategyStream:
		flags |= gpbfDataDescriptorBit
		if !forceNoZip64 {
			zip64 = true
			compSize = sentinel32
			uncompSize = sentinel32
			extra = append(extra, &Zip64ExtraField{
				UncompressedSize: u64ptr(0),
				CompressedSize:   u64ptr(0),
			})
		}
	}
	if zip64 && versionNeeded < versionNeededZip64 {
		versionNeeded = versionNeededZip64
	}
	if uf := unicodePathExtra(entry.Name); uf != nil {
		extra = append(extra, uf)
	}

	extraBytes := EncodeExtraFields(extra)
	if len(extraBytes) > int(sentinel16) {
		return 0, false, ErrExtraFieldTooLarge
	}

	lfh := localFileHeader{
		VersionNeeded:    versionNeeded,
		Flags:            flags,
		Method:           uint16(entry.Method),
		ModTime:          entry.Modified.Time,
		ModDate:          entry.Modified.Date,
		CRC32:            crc,
		CompressedSize:   compSize,
		UncompressedSize: uncompSize,
		NameLen:          uint16(len(entry.Name.Bytes())),
		ExtraLen:         uint16(len(extraBytes)),
	}
	if _, err := w.Write(encodeLocalFileHeader(lfh)); err != nil {
		return 0, false, err
	}
	if _, err := w.Write(entry.Name.Bytes()); err != nil {
		return 0, false, err
	}
	if _, err := w.Write(extraBytes); err != nil {
		return 0, false, err
	}
	return uint32(lenLocalFileHeader + len(entry.Name.Bytes()) + len(extraBytes)), zip64, nil
}

func u64ptr(v uint64) *uint64 { return &v }
