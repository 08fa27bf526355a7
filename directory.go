package zipcore

import (
	"context"
	"hash/crc32"
	"io"
)

// Directory is the fully parsed central directory of an archive (spec
// §4.3 "Directory parser"): every stored entry in on-disk order, plus the
// archive-level comment trailing the EOCDR.
type Directory struct {
	Entries []StoredEntry
	Comment []byte
}

// ParseDirectory locates the EOCDR within r (whose total size is size)
// and decodes every central directory record it describes into a
// Directory (spec §4.2, §4.3).
//
// When a ZIP64 EOCD locator/record pair is present, its disk number, CD
// start disk, entry counts, CD size and CD offset are used in place of
// the legacy EOCDR's fields unconditionally: per spec §4.1, a writer that
// emits ZIP64 records keeps them authoritative even for archives small
// enough that the legacy fields could have held the real values, so a
// reader must prefer the ZIP64 record whenever a valid locator points to
// one rather than falling back to the legacy fields it shadows.
//
// Split and spanned archives (disk number or CD start disk other than 0,
// or entries-on-this-disk differing from entries-total) are explicitly
// out of scope (spec Non-goals) and are reported as
// ErrorKindFeatureNotSupported.
func ParseDirectory(ctx context.Context, r ReaderAt, size int64) (*Directory, error) {
	loc, err := LocateEOCDR(ctx, r, size)
	if err != nil {
		return nil, err
	}

	diskNumber := uint32(loc.Record.DiskNumber)
	cdStartDisk := uint32(loc.Record.CDStartDisk)
	entriesOnDisk := uint64(loc.Record.EntriesOnDisk)
	entriesTotal := uint64(loc.Record.EntriesTotal)
	cdSize := uint64(loc.Record.CDSize)
	cdOffset := uint64(loc.Record.CDOffset)

	if loc.Zip64 != nil {
		diskNumber = loc.Zip64.Record.DiskNumber
		cdStartDisk = loc.Zip64.Record.CDStartDisk
		entriesOnDisk = loc.Zip64.Record.EntriesOnDisk
		entriesTotal = loc.Zip64.Record.EntriesTotal
		cdSize = loc.Zip64.Record.CDSize
		cdOffset = loc.Zip64.Record.CDOffset
	}

	if diskNumber != 0 || cdStartDisk != 0 || entriesOnDisk != entriesTotal {
		return nil, errFeatureNotSupported("split/spanned archives")
	}

	buf := make([]byte, cdSize)
	if _, err := readFullAt(ctx, r, buf, int64(cdOffset)); err != nil {
		return nil, err
	}

	entries := make([]StoredEntry, 0, entriesTotal)
	for len(buf) > 0 {
		if len(buf) < lenCentralDirectory {
			return nil, io.ErrUnexpectedEOF
		}
		hdr, err := decodeCentralDirectoryHeader(buf)
		if err != nil {
			return nil, err
		}
		nameEnd := lenCentralDirectory + int(hdr.NameLen)
		extraEnd := nameEnd + int(hdr.ExtraLen)
		commentEnd := extraEnd + int(hdr.CommentLen)
		if commentEnd > len(buf) {
			return nil, io.ErrUnexpectedEOF
		}

		nameRaw := append([]byte(nil), buf[lenCentralDirectory:nameEnd]...)
		extraRaw := buf[nameEnd:extraEnd]
		commentRaw := append([]byte(nil), buf[extraEnd:commentEnd]...)

		extraCtx := ExtraFieldContext{
			UncompressedSizeSentinel:     hdr.UncompressedSize == sentinel32,
			CompressedSizeSentinel:       hdr.CompressedSize == sentinel32,
			RelativeHeaderOffsetSentinel: hdr.LocalHeaderOffset == sentinel32,
			DiskStartSentinel:            hdr.DiskStart == sentinel16,
		}
		extraFields, err := ParseExtraFields(extraRaw, extraCtx)
		if err != nil {
			return nil, err
		}

		uncompressedSize := uint64(hdr.UncompressedSize)
		compressedSize := uint64(hdr.CompressedSize)
		localHeaderOffset := uint64(hdr.LocalHeaderOffset)
		if zf := FindZip64ExtraField(extraFields); zf != nil {
			if zf.UncompressedSize != nil {
				uncompressedSize = *zf.UncompressedSize
			}
			if zf.CompressedSize != nil {
				compressedSize = *zf.CompressedSize
			}
			if zf.RelativeHeaderOffset != nil {
				localHeaderOffset = *zf.RelativeHeaderOffset
			}
		}

		basicUTF8 := gpbfFilenameUnicode(hdr.Flags)
		name := resolveName(nameRaw, basicUTF8, extraFields)
		comment := resolveComment(commentRaw, basicUTF8, extraFields)

		entry := &Entry{
			Name:             name,
			Method:           CompressionMethod(hdr.Method),
			AttributeCompat:  AttributeCompatibility(hdr.VersionMadeBy >> 8),
			CRC32:            hdr.CRC32,
			UncompressedSize: uncompressedSize,
			CompressedSize:   compressedSize,
			Modified:         PackedDateTime{Date: hdr.ModDate, Time: hdr.ModTime},
			InternalAttrs:    hdr.InternalAttrs,
			ExternalAttrs:    hdr.ExternalAttrs,
			Extra:            extraFields,
			Comment:          comment,
		}
		headerSize := uint32(lenLocalFileHeader) + uint32(hdr.NameLen) + uint32(hdr.ExtraLen)
		entries = append(entries, StoredEntry{Entry: entry, FileOffset: localHeaderOffset, HeaderSize: headerSize})

		buf = buf[commentEnd:]
	}

	return &Directory{Entries: entries, Comment: loc.Comment}, nil
}

// resolveZipString builds the ZipString a basic name/comment field and its
// Unicode extra (if any) together imply (spec §3 "Alternative"). When the
// filename-is-UTF-8 GPBF bit is set, raw already is UTF-8 and no
// alternative is needed; otherwise an alternative is only trusted when its
// accompanying CRC-32 matches raw, guarding against a stale Unicode extra
// left behind by an editor that renamed the entry without updating it.
func resolveZipString(raw []byte, basicUTF8 bool, crc uint32, unicode []byte, hasUnicode bool) ZipString {
	if basicUTF8 {
		return ZipString{Raw: raw, Encoding: EncodingUTF8}
	}
	var alt []byte
	if hasUnicode && crc32.ChecksumIEEE(raw) == crc {
		alt = unicode
	}
	return ZipString{Raw: raw, Encoding: EncodingRaw, Alternative: alt}
}

func resolveName(raw []byte, basicUTF8 bool, fields []ExtraField) ZipString {
	if uf := FindUnicodePathExtraField(fields); uf != nil {
		return resolveZipString(raw, basicUTF8, uf.CRC32, uf.Unicode, true)
	}
	return resolveZipString(raw, basicUTF8, 0, nil, false)
}

func resolveComment(raw []byte, basicUTF8 bool, fields []ExtraField) ZipString {
	if uf := FindUnicodeCommentExtraField(fields); uf != nil {
		return resolveZipString(raw, basicUTF8, uf.CRC32, uf.Unicode, true)
	}
	return resolveZipString(raw, basicUTF8, 0, nil, false)
}
