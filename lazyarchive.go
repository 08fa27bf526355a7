// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipcore

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// LazyEntry describes one file of a LazyArchive: its metadata plus the
// already-compressed content backing it. CRC32, UncompressedSize and
// CompressedSize must already match Content's Method encoding; the
// archive never compresses or hashes Content itself (spec §4.9 "archive
// assembly from pre-known content", supplementing the core writer with
// the teacher's HTTP-serving use case).
type LazyEntry struct {
	Entry Entry
	// Content is the entry's compressed bytes, fetched on demand. Nil for
	// directory entries, which must have CompressedSize == 0.
	Content io.ReaderAt
}

// LazyArchiveTemplate defines the contents of a LazyArchive.
type LazyArchiveTemplate struct {
	// Prefix is arbitrary content placed before the first entry, e.g. to
	// build a self-extracting archive. It may implement ReaderAt for
	// context-aware fetches.
	Prefix     io.ReaderAt
	PrefixSize int64

	Entries []LazyEntry
	Comment []byte

	// CreateTime backs the Last-Modified HTTP header; the latest entry
	// modification time is used if this is zero.
	CreateTime time.Time
}

// LazyArchive is a complete ZIP archive assembled, without ever holding
// entry content in memory, from a LazyArchiveTemplate: headers and the
// central directory are rendered once into small in-memory buffers, and
// entry content is addressed in place through the caller-supplied
// ReaderAt spans. It implements ReaderAt and io.ReaderAt so the whole
// archive can be range-read or served over HTTP without a full write
// pass, the way the teacher's Archive does for resumable downloads.
type LazyArchive struct {
	parts      chunkedReaderAt
	createTime time.Time
	etag       string
}

// NewLazyArchive assembles a LazyArchive from t. t is not retained.
func NewLazyArchive(t *LazyArchiveTemplate) (*LazyArchive, error) {
	if len(t.Comment) > int(sentinel16) {
		return nil, ErrCommentTooLarge
	}

	ar := &LazyArchive{}
	stored := make([]*StoredEntry, 0, len(t.Entries))
	etagHash := md5.New()

	if t.Prefix != nil {
		ar.parts.add(asReaderAt(t.Prefix), t.PrefixSize)
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(t.PrefixSize))
		etagHash.Write(buf[:])
	}

	var maxTime time.Time
	for i := range t.Entries {
		le := &t.Entries[i]
		entry := le.Entry
		strategy := prepareEntry(&entry, StrategyStream)

		offset := uint64(ar.parts.size)
		var headerZip64 bool
		header, err := renderToSizeReaderAt(func(w io.Writer) error {
			_, zip64, err := writeLocalFileHeader(w, &entry, strategy, false)
			headerZip64 = zip64
			return err
		})
		if err != nil {
			return nil, err
		}
		ar.parts.addSizeReaderAt(header)
		if _, err := io.Copy(etagHash, io.NewSectionReader(header, 0, header.Size())); err != nil {
			return nil, err
		}

		if entry.IsDir() {
			if le.Content != nil {
				return nil, errors.New("zipcore: directory entry has non-nil content")
			}
		} else {
			if le.Content != nil {
				ar.parts.add(asReaderAt(le.Content), int64(entry.CompressedSize))
			} else if entry.CompressedSize != 0 {
				return nil, errors.New("zipcore: nil content with nonzero CompressedSize")
			}
			dd := encodeDataDescriptor(dataDescriptor{
				CRC32:            entry.CRC32,
				CompressedSize:   entry.CompressedSize,
				UncompressedSize: entry.UncompressedSize,
			}, entry.IsZip64() || headerZip64)
			ar.parts.addSizeReaderAt(bytes.NewReader(dd))
			etagHash.Write(dd)
		}

		stored = append(stored, &StoredEntry{Entry: &entry, FileOffset: offset})
		if t := entry.Modified.Time(time.UTC); t.After(maxTime) {
			maxTime = t
		}
	}

	cdOffset := ar.parts.size
	comment := t.Comment
	centralDirectory, err := renderToSizeReaderAt(func(w io.Writer) error {
		return writeLazyCentralDirectory(w, cdOffset, stored, comment)
	})
	if err != nil {
		return nil, err
	}
	ar.parts.addSizeReaderAt(centralDirectory)
	if _, err := io.Copy(etagHash, io.NewSectionReader(centralDirectory, 0, centralDirectory.Size())); err != nil {
		return nil, err
	}

	ar.createTime = t.CreateTime
	if ar.createTime.IsZero() {
		ar.createTime = maxTime
	}
	ar.etag = fmt.Sprintf("%q", hex.EncodeToString(etagHash.Sum(nil)))

	return ar, nil
}

// writeLazyCentralDirectory reuses ArchiveWriter's per-entry central
// directory and EOCDR rendering logic against a detached writer, since
// LazyArchive assembles its directory in one shot rather than
// incrementally the way ArchiveWriter does.
func writeLazyCentralDirectory(w io.Writer, start int64, dir []*StoredEntry, comment []byte) error {
	aw := &ArchiveWriter{raw: &countWriter{w: w}, dir: dir, comment: comment, writerConfig: newWriterConfig()}
	aw.ensureDefaults()
	cdStart := uint64(start)
	for _, se := range aw.dir {
		if err := aw.writeCentralDirectoryEntry(se); err != nil {
			return err
		}
	}
	cdSize := uint64(aw.raw.count)
	records := uint64(len(aw.dir))

	needsZip64 := records >= uint64(sentinel16) || cdSize >= uint64(sentinel32) || cdStart >= uint64(sentinel32)
	if needsZip64 {
		zEnd := zip64EndOfCentralDir{
			SizeOfRecord:  lenZip64EndOfCentralDir - 12,
			VersionMadeBy: versionNeededZip64,
			VersionNeeded: versionNeededZip64,
			EntriesOnDisk: records,
			EntriesTotal:  records,
			CDSize:        cdSize,
			CDOffset:      cdStart,
		}
		if _, err := aw.raw.Write(encodeZip64EndOfCentralDir(zEnd)); err != nil {
			return err
		}
		loc := zip64EOCDLocator{EOCDROffset: cdStart + cdSize, TotalDisks: 1}
		if _, err := aw.raw.Write(encodeZip64EOCDLocator(loc)); err != nil {
			return err
		}
		records = uint64(sentinel16)
		cdSize = uint64(sentinel32)
		cdStart = uint64(sentinel32)
	}

	end := endOfCentralDir{
		EntriesOnDisk: uint16(records),
		EntriesTotal:  uint16(records),
		CDSize:        uint32(cdSize),
		CDOffset:      uint32(cdStart),
		CommentLen:    uint16(len(comment)),
	}
	if _, err := aw.raw.Write(encodeEndOfCentralDir(end)); err != nil {
		return err
	}
	_, err := aw.raw.Write(comment)
	return err
}

// renderToSizeReaderAt buffers content's output in memory, the way the
// teacher's bufferView does for its small, render-once header and
// central-directory sections.
func renderToSizeReaderAt(content func(w io.Writer) error) (sizeReaderAt, error) {
	var buf bytes.Buffer
	if err := content(&buf); err != nil {
		return nil, err
	}
	return bytes.NewReader(buf.Bytes()), nil
}

func asReaderAt(r io.ReaderAt) ReaderAt {
	if v, ok := r.(ReaderAt); ok {
		return v
	}
	return ignoreContext{r: r}
}

// Size returns the archive's total size in bytes.
func (ar *LazyArchive) Size() int64 { return ar.parts.Size() }

// ReadAt implements io.ReaderAt using a background context.
func (ar *LazyArchive) ReadAt(p []byte, off int64) (int, error) {
	return ar.parts.ReadAtContext(context.Background(), p, off)
}

// ReadAtContext implements ReaderAt, forwarding ctx to whichever
// LazyEntry.Content spans hold the requested range and implement it.
func (ar *LazyArchive) ReadAtContext(ctx context.Context, p []byte, off int64) (int, error) {
	return ar.parts.ReadAtContext(ctx, p, off)
}

// ServeHTTP serves the archive over HTTP with range-request support via
// http.ServeContent, setting Content-Type/Etag when the caller hasn't.
func (ar *LazyArchive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.Header()["Content-Type"]; !ok {
		w.Header().Set("Content-Type", "application/zip")
	}
	if _, ok := w.Header()["Etag"]; !ok {
		w.Header().Set("Etag", ar.etag)
	}
	rs := io.NewSectionReader(withContext{r: &ar.parts, ctx: r.Context()}, 0, ar.parts.Size())
	http.ServeContent(w, r, "", ar.createTime, rs)
}
