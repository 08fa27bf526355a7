package zipcore

import (
	"context"
	"encoding/binary"
	"io"
)

// EOCDRLocation is the result of successfully locating the end of central
// directory record (spec §4.2 "EOCDR locator"): the signature's absolute
// offset, the decoded fixed record, its trailing comment, and the ZIP64
// locator/record pair when the archive is ZIP64.
type EOCDRLocation struct {
	Offset  int64
	Record  endOfCentralDir
	Comment []byte
	Zip64   *Zip64Location
}

// Zip64Location is the decoded ZIP64 EOCD locator and record, present only
// when the archive carries ZIP64 metadata (spec §4.1 "ZIP64 support").
type Zip64Location struct {
	LocatorOffset int64
	Locator       zip64EOCDLocator
	Record        zip64EndOfCentralDir
}

const (
	maxEOCDRComment = 0xFFFF
	eocdrScanChunk  = 4096
)

// LocateEOCDR finds the end of central directory record within the last
// 64KB+22 bytes of an archive of the given size, by scanning backward in
// fixed-size, three-byte-overlapping windows (spec §4.2): the overlap
// covers a signature straddling a window boundary, since the 4-byte
// signature can start at any offset. Every signature-shaped match is
// verified by checking that its declared comment length reaches exactly
// to the end of the archive before it is accepted; a match that fails
// this check (for instance a file comment that happens to contain the
// EOCDR signature bytes) is rejected and the scan continues toward the
// start of the file, so a single crafted false signature cannot be
// mistaken for the real record.
func LocateEOCDR(ctx context.Context, r ReaderAt, size int64) (*EOCDRLocation, error) {
	if size < int64(lenEndOfCentralDir) {
		return nil, ErrUnableToLocateEOCDR
	}

	scanFloor := int64(0)
	if size > int64(lenEndOfCentralDir)+maxEOCDRComment {
		scanFloor = size - int64(lenEndOfCentralDir) - maxEOCDRComment
	}

	end := size
	start := end - eocdrScanChunk
	if start < scanFloor {
		start = scanFloor
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		chunk := make([]byte, end-start)
		if _, err := readFullAt(ctx, r, chunk, start); err != nil {
			return nil, err
		}

		for idx := len(chunk) - 4; idx >= 0; idx-- {
			if binary.LittleEndian.Uint32(chunk[idx:idx+4]) != sigEndOfCentralDir {
				continue
			}
			candidate := start + int64(idx)
			rec, comment, ok, err := tryDecodeEOCDR(ctx, r, candidate, size)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			loc := &EOCDRLocation{Offset: candidate, Record: rec, Comment: comment}
			zip64, err := probeZip64Location(ctx, r, candidate)
			if err != nil {
				return nil, err
			}
			loc.Zip64 = zip64
			return loc, nil
		}

		if start <= scanFloor {
			return nil, ErrUnableToLocateEOCDR
		}
		newStart := start - eocdrScanChunk
		if newStart < scanFloor {
			newStart = scanFloor
		}
		end = start + 3 // overlap by signature length - 1
		start = newStart
	}
}

// tryDecodeEOCDR decodes the fixed EOCDR at candidate and accepts it only
// if its comment length exactly accounts for every remaining byte of the
// archive, per spec §4.2.
func tryDecodeEOCDR(ctx context.Context, r ReaderAt, candidate, size int64) (endOfCentralDir, []byte, bool, error) {
	if candidate+int64(lenEndOfCentralDir) > size {
		return endOfCentralDir{}, nil, false, nil
	}
	fixed := make([]byte, lenEndOfCentralDir)
	if _, err := readFullAt(ctx, r, fixed, candidate); err != nil {
		return endOfCentralDir{}, nil, false, err
	}
	rec, err := decodeEndOfCentralDir(fixed)
	if err != nil {
		return endOfCentralDir{}, nil, false, nil
	}
	wantEnd := candidate + int64(lenEndOfCentralDir) + int64(rec.CommentLen)
	if wantEnd != size {
		return endOfCentralDir{}, nil, false, nil
	}
	var comment []byte
	if rec.CommentLen > 0 {
		comment = make([]byte, rec.CommentLen)
		if _, err := readFullAt(ctx, r, comment, candidate+int64(lenEndOfCentralDir)); err != nil {
			return endOfCentralDir{}, nil, false, err
		}
	}
	return rec, comment, true, nil
}

// probeZip64Location looks for a ZIP64 EOCD locator immediately preceding
// the EOCDR at eocdrOffset and, if present and valid, decodes the ZIP64
// EOCDR it points to. A missing or malformed locator is not an error: it
// just means the archive predates ZIP64 (spec §4.2 edge case "EOCDR
// present without ZIP64 locator").
func probeZip64Location(ctx context.Context, r ReaderAt, eocdrOffset int64) (*Zip64Location, error) {
	locatorOffset := eocdrOffset - int64(lenZip64EOCDLocator)
	if locatorOffset < 0 {
		return nil, nil
	}
	buf := make([]byte, lenZip64EOCDLocator)
	if _, err := readFullAt(ctx, r, buf, locatorOffset); err != nil {
		return nil, err
	}
	if binary.LittleEndian.Uint32(buf) != sigZip64EOCDLocator {
		return nil, nil
	}
	locator, err := decodeZip64EOCDLocator(buf)
	if err != nil {
		return nil, nil
	}

	recBuf := make([]byte, lenZip64EndOfCentralDir)
	if _, err := readFullAt(ctx, r, recBuf, int64(locator.EOCDROffset)); err != nil {
		return nil, err
	}
	rec, err := decodeZip64EndOfCentralDir(recBuf)
	if err != nil {
		return nil, nil
	}
	return &Zip64Location{
		LocatorOffset: locatorOffset,
		Locator:       locator,
		Record:        rec,
	}, nil
}

func readFullAt(ctx context.Context, r ReaderAt, buf []byte, off int64) (int, error) {
	n, err := r.ReadAtContext(ctx, buf, off)
	if err != nil && err != io.EOF {
		return n, err
	}
	if n < len(buf) {
		return n, io.ErrUnexpectedEOF
	}
	return n, nil
}
