package zipcore

import (
	"bytes"
	"hash/crc32"
	"io"

	"github.com/sirupsen/logrus"
)

// writerConfig holds ArchiveWriter's options, following the same pattern
// as readerConfig/ReaderOption.
type writerConfig struct {
	codecs       *CodecRegistry
	log          *logrus.Entry
	forceNoZip64 bool
}

func newWriterConfig() writerConfig {
	return writerConfig{codecs: DefaultCodecRegistry()}
}

func (c *writerConfig) ensureDefaults() {
	if c.codecs == nil {
		c.codecs = DefaultCodecRegistry()
	}
	if c.log == nil {
		c.log = logrus.NewEntry(logrus.StandardLogger())
	}
}

// WriterOption configures an ArchiveWriter.
type WriterOption func(*writerConfig)

// WithWriterCodecRegistry overrides the codec registry used to look up
// Compressors for each entry's Method.
func WithWriterCodecRegistry(c *CodecRegistry) WriterOption {
	return func(cfg *writerConfig) { cfg.codecs = c }
}

// WithWriterLogger overrides the logger used for archive lifecycle events.
func WithWriterLogger(log *logrus.Entry) WriterOption {
	return func(cfg *writerConfig) { cfg.log = log }
}

// WithForceNoZip64 forbids the writer from ever emitting ZIP64 records.
// An entry, or the archive as a whole, that would otherwise require ZIP64
// framing fails with errZIP64Needed instead of being promoted (spec §4.6
// Whole step 3-4, §4.7 Stream step 3, §4.7 "Entry count limit").
func WithForceNoZip64() WriterOption {
	return func(cfg *writerConfig) { cfg.forceNoZip64 = true }
}

// ArchiveWriter is the Archive Writer Core (spec §4.8): it sequences local
// file headers and entry content onto an underlying io.Writer and, on
// Close, emits the central directory, promoting to ZIP64 EOCDR/EOCDL
// records whenever the archive's record count, central directory size, or
// offset exceeds the 32-bit/16-bit limits (mirrors the teacher's
// writeCentralDirectory).
type ArchiveWriter struct {
	raw     *countWriter
	dir     []*StoredEntry
	comment []byte
	closed  bool
	writerConfig
}

// NewArchiveWriter wraps w for sequential entry writing.
func NewArchiveWriter(w io.Writer, opts ...WriterOption) *ArchiveWriter {
	aw := &ArchiveWriter{
		raw:          &countWriter{w: w},
		writerConfig: newWriterConfig(),
	}
	for _, opt := range opts {
		opt(&aw.writerConfig)
	}
	aw.ensureDefaults()
	return aw
}

// SetComment sets the archive-level comment written in the EOCDR.
func (aw *ArchiveWriter) SetComment(comment []byte) error {
	if len(comment) > int(sentinel16) {
		return ErrCommentTooLarge
	}
	aw.comment = comment
	return nil
}

// prepareEntry fills in defaults the way the teacher's prepareEntry does:
// detecting whether a raw name without an alternative needs the UTF-8
// GPBF bit (a raw name with an alternative is kept as is, so its Unicode
// Path extra is written), forcing directory
// entries to Stored with no data descriptor, and otherwise leaving the
// caller's chosen Method and strategy alone.
func prepareEntry(entry *Entry, strategy EntryWriteStrategy) EntryWriteStrategy {
	if entry.Name.Encoding != EncodingUTF8 && entry.Name.Alternative == nil {
		if valid, require := detectUTF8(entry.Name.String()); valid && require {
			entry.Name = NewUTF8String(entry.Name.String())
		}
	}
	if entry.IsDir() {
		entry.Method = MethodStored
		return StrategyWhole
	}
	return strategy
}

// CreateEntry begins writing a new entry using strategy. The entry's final
// CRC-32 and sizes are always computed from what's actually written
// through the returned EntryWriter, not from anything the caller sets in
// advance; entry.UncompressedSize/CompressedSize/CRC32 are overwritten by
// EntryWriter.Close. The returned EntryWriter's Close must be called
// before the next CreateEntry or the final Close.
func (aw *ArchiveWriter) CreateEntry(entry *Entry, strategy EntryWriteStrategy) (*EntryWriter, error) {
	if aw.closed {
		return nil, io.ErrClosedPipe
	}
	strategy = prepareEntry(entry, strategy)

	compressor := aw.codecs.Compressor(entry.Method)
	if compressor == nil {
		if entry.Method == MethodDeflate64 {
			return nil, errFeatureNotSupported("writing Deflate64")
		}
		return nil, errCompressionNotSupported(uint16(entry.Method))
	}

	ew := &EntryWriter{
		archive:  aw,
		entry:    entry,
		strategy: strategy,
		hasher:   crc32.NewIEEE(),
	}

	var dst io.Writer
	switch strategy {
	case StrategyWhole:
		ew.buf = &bytes.Buffer{}
		dst = ew.buf
	case StrategyStream:
		ew.fileOffset = uint64(aw.raw.count)
		headerSize, zip64, err := writeLocalFileHeader(aw.raw, entry, strategy, aw.forceNoZip64)
		if err != nil {
			return nil, err
		}
		ew.headerSize = headerSize
		ew.streamZip64 = zip64
		dst = aw.raw
	}
	ew.dst = &countWriter{w: dst}

	comp, err := compressor(ew.dst, entry.Level)
	if err != nil {
		return nil, err
	}
	ew.comp = comp

	aw.log.WithFields(logrus.Fields{
		"name":     entry.Name.String(),
		"method":   entry.Method,
		"strategy": strategy,
	}).Debug("zipcore: entry opened for writing")

	return ew, nil
}

// finishEntry records a completed entry in the central directory. Called
// by EntryWriter.Close; not exported since an EntryWriter cannot be
// constructed except through CreateEntry.
func (aw *ArchiveWriter) finishEntry(se StoredEntry) {
	aw.dir = append(aw.dir, &se)
}

// Close emits the central directory, ZIP64 records if needed, and the
// EOCDR, mirroring the teacher's writeCentralDirectory. No more entries
// may be created afterward.
func (aw *ArchiveWriter) Close() error {
	if aw.closed {
		return nil
	}
	aw.closed = true

	cdStart := uint64(aw.raw.count)
	for _, se := range aw.dir {
		if err := aw.writeCentralDirectoryEntry(se); err != nil {
			return err
		}
	}
	cdSize := uint64(aw.raw.count) - cdStart

	records := uint64(len(aw.dir))
	offset := cdStart

	needsZip64 := records >= uint64(sentinel16) || cdSize >= uint64(sentinel32) || offset >= uint64(sentinel32)
	if needsZip64 && aw.forceNoZip64 {
		reason := ZIP64ReasonLargeFile
		if records >= uint64(sentinel16) {
			reason = ZIP64ReasonTooManyFiles
		}
		return errZIP64Needed(reason)
	}
	if needsZip64 {
		zEnd := zip64EndOfCentralDir{
			SizeOfRecord:  lenZip64EndOfCentralDir - 12,
			VersionMadeBy: versionNeededZip64,
			VersionNeeded: versionNeededZip64,
			EntriesOnDisk: records,
			EntriesTotal:  records,
			CDSize:        cdSize,
			CDOffset:      offset,
		}
		if _, err := aw.raw.Write(encodeZip64EndOfCentralDir(zEnd)); err != nil {
			return err
		}
		loc := zip64EOCDLocator{
			EOCDROffset: cdStart + cdSize,
			TotalDisks:  1,
		}
		if _, err := aw.raw.Write(encodeZip64EOCDLocator(loc)); err != nil {
			return err
		}
		records = uint64(sentinel16)
		cdSize = uint64(sentinel32)
		offset = uint64(sentinel32)
	}

	end := endOfCentralDir{
		EntriesOnDisk: uint16(records),
		EntriesTotal:  uint16(records),
		CDSize:        uint32(cdSize),
		CDOffset:      uint32(offset),
		CommentLen:    uint16(len(aw.comment)),
	}
	if _, err := aw.raw.Write(encodeEndOfCentralDir(end)); err != nil {
		return err
	}
	if _, err := aw.raw.Write(aw.comment); err != nil {
		return err
	}

	aw.log.WithFields(logrus.Fields{
		"entries": len(aw.dir),
		"zip64":   needsZip64,
	}).Debug("zipcore: archive closed")
	return nil
}

func (aw *ArchiveWriter) writeCentralDirectoryEntry(se *StoredEntry) error {
	entry := se.Entry
	extra := append([]ExtraField(nil), entry.Extra...)
	if uf := unicodePathExtra(entry.Name); uf != nil {
		extra = append(extra, uf)
	}
	if uf := unicodeCommentExtra(entry.Comment); uf != nil {
		extra = append(extra, uf)
	}

	if aw.forceNoZip64 && (entry.IsZip64() || se.FileOffset >= uint64(sentinel32)) {
		return errZIP64Needed(ZIP64ReasonLargeFile)
	}

	var compSize, uncompSize, fileOffset uint32
	if entry.IsZip64() || se.FileOffset >= uint64(sentinel32) {
		compSize = sentinel32
		uncompSize = sentinel32
		zf := &Zip64ExtraField{
			UncompressedSize:     u64ptr(entry.UncompressedSize),
			CompressedSize:       u64ptr(entry.CompressedSize),
			RelativeHeaderOffset: u64ptr(se.FileOffset),
		}
		extra = append(extra, zf)
	} else {
		compSize = uint32(entry.CompressedSize)
		uncompSize = uint32(entry.UncompressedSize)
	}
	if se.FileOffset >= uint64(sentinel32) {
		fileOffset = sentinel32
	} else {
		fileOffset = uint32(se.FileOffset)
	}

	extraBytes := EncodeExtraFields(extra)
	if len(extraBytes) > int(sentinel16) {
		return ErrExtraFieldTooLarge
	}
	if len(entry.Comment.Bytes()) > int(sentinel16) {
		return ErrCommentTooLarge
	}

	flags := uint16(0)
	if entry.Name.Encoding == EncodingUTF8 {
		flags |= gpbfFilenameUnicodeBit
	}

	cdh := centralDirectoryHeader{
		VersionMadeBy:     entry.versionMadeBy(),
		VersionNeeded:     entry.versionNeeded(),
		Flags:             flags,
		Method:            uint16(entry.Method),
		ModTime:           entry.Modified.Time,
		ModDate:           entry.Modified.Date,
		CRC32:             entry.CRC32,
		CompressedSize:    compSize,
		UncompressedSize:  uncompSize,
		NameLen:           uint16(len(entry.Name.Bytes())),
		ExtraLen:          uint16(len(extraBytes)),
		CommentLen:        uint16(len(entry.Comment.Bytes())),
		InternalAttrs:     entry.InternalAttrs,
		ExternalAttrs:     entry.ExternalAttrs,
		LocalHeaderOffset: fileOffset,
	}
	if _, err := aw.raw.Write(encodeCentralDirectoryHeader(cdh)); err != nil {
		return err
	}
	if _, err := aw.raw.Write(entry.Name.Bytes()); err != nil {
		return err
	}
	if _, err := aw.raw.Write(extraBytes); err != nil {
		return err
	}
	if _, err := aw.raw.Write(entry.Comment.Bytes()); err != nil {
		return err
	}
	return nil
}
