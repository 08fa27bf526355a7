package zipcore

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
)

// SeekableReader is the random-access reader modality (spec §4.5): it
// parses the directory once at Open and opens any entry's content on
// demand by seeking to its local file header, without holding the whole
// archive in memory. It requires an io.ReaderAt-shaped backing store
// (spec §4.6 "Reader modalities").
type SeekableReader struct {
	ra   ReaderAt
	size int64
	dir  *Directory
	readerConfig
}

// OpenSeekableReader parses the directory of an archive of the given
// size backed by ra, per spec §4.5.
func OpenSeekableReader(ctx context.Context, ra ReaderAt, size int64, opts ...ReaderOption) (*SeekableReader, error) {
	r := &SeekableReader{ra: ra, size: size, readerConfig: newReaderConfig()}
	for _, opt := range opts {
		opt(&r.readerConfig)
	}
	r.ensureDefaults()

	dir, err := ParseDirectory(ctx, ra, size)
	if err != nil {
		return nil, err
	}
	r.dir = dir
	r.log.WithFields(logrus.Fields{
		"entries": len(dir.Entries),
		"zip64":   size > 0 && archiveIsZip64(dir),
	}).Debug("zipcore: archive directory parsed")
	return r, nil
}

func archiveIsZip64(dir *Directory) bool {
	for _, e := range dir.Entries {
		if e.IsZip64() {
			return true
		}
	}
	return false
}

// Len reports the number of entries in the archive.
func (r *SeekableReader) Len() int { return len(r.dir.Entries) }

// Entry returns the metadata for the entry at index i.
func (r *SeekableReader) Entry(i int) (*StoredEntry, error) {
	if i < 0 || i >= len(r.dir.Entries) {
		return nil, ErrEntryIndexOutOfBound
	}
	return &r.dir.Entries[i], nil
}

// Comment returns the archive-level comment trailing the EOCDR.
func (r *SeekableReader) Comment() []byte { return r.dir.Comment }

// OpenContext opens entry i's content for reading, verifying the local
// file header's own name/extra lengths to find the exact start of its
// data (spec §4.3 edge case "LFH/CDR disagreement": the CDR's
// FileOffset is trusted for where the LFH starts, but the LFH's own
// NameLen/ExtraLen -- not the CDR's -- govern where the data begins,
// since a writer is free to omit extra fields from the LFH that it
// includes in the CDR or vice versa).
func (r *SeekableReader) OpenContext(ctx context.Context, i int) (*EntryReader, error) {
	se, err := r.Entry(i)
	if err != nil {
		return nil, err
	}
	entry := se.Entry

	fixed := make([]byte, lenLocalFileHeader)
	if _, err := readFullAt(ctx, r.ra, fixed, int64(se.FileOffset)); err != nil {
		return nil, err
	}
	lfh, err := decodeLocalFileHeader(fixed)
	if err != nil {
		return nil, err
	}
	if gpbfEncrypted(lfh.Flags) {
		return nil, errFeatureNotSupported("encryption")
	}

	dataOffset := se.FileOffset + uint64(lenLocalFileHeader) + uint64(lfh.NameLen) + uint64(lfh.ExtraLen)

	codec := r.codecs.Decompressor(entry.Method)
	if codec == nil {
		return nil, errCompressionNotSupported(uint16(entry.Method))
	}

	section := io.NewSectionReader(withContext{ctx: ctx, r: r.ra}, int64(dataOffset), int64(entry.CompressedSize))
	return NewEntryReader(section, entry, codec)
}

// Open is the context.Background() convenience form of OpenContext.
func (r *SeekableReader) Open(i int) (*EntryReader, error) {
	return r.OpenContext(context.Background(), i)
}
