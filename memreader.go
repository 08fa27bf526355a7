package zipcore

import (
	"context"
	"io"
)

// memReaderChunkSize bounds how much of the archive is buffered per
// chunk (spec §4.6 "in-memory reader modality").
const memReaderChunkSize = 1 << 20 // 1 MiB

// MemoryReader is the in-memory reader modality (spec §4.6): the entire
// archive is buffered chunk by chunk from an io.Reader, then addressed
// through the same directory-parsing and entry-opening logic as
// SeekableReader. Unlike SeekableReader it never needs ReaderAt-shaped
// input and so can wrap any io.Reader, at the cost of holding the whole
// archive in memory at once.
type MemoryReader struct {
	*SeekableReader
}

// chunkedBuffer buffers a stream as a sequence of fixed-size chunks
// rather than one growing contiguous slice, adapted from the teacher's
// multireadseeker.go partsBuilder so that buffering a large archive
// doesn't require a single huge reallocation-prone allocation.
type chunkedBuffer struct {
	chunks [][]byte
}

func (b *chunkedBuffer) readFrom(r io.Reader) (int64, error) {
	var total int64
	for {
		chunk := make([]byte, memReaderChunkSize)
		n, err := io.ReadFull(r, chunk)
		if n > 0 {
			b.chunks = append(b.chunks, chunk[:n])
			total += int64(n)
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

func (b *chunkedBuffer) readerAt() *chunkedReaderAt {
	mr := &chunkedReaderAt{}
	for _, c := range b.chunks {
		mr.add(ignoreContext{r: byteSliceReaderAt(c)}, int64(len(c)))
	}
	return mr
}

// byteSliceReaderAt is the plain io.ReaderAt over one in-memory chunk.
type byteSliceReaderAt []byte

func (b byteSliceReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// OpenMemoryReader reads all of src into memory and parses its directory,
// per spec §4.6.
func OpenMemoryReader(ctx context.Context, src io.Reader, opts ...ReaderOption) (*MemoryReader, error) {
	var buf chunkedBuffer
	if _, err := buf.readFrom(src); err != nil {
		return nil, err
	}
	ra := buf.readerAt()
	sr, err := OpenSeekableReader(ctx, ra, ra.Size(), opts...)
	if err != nil {
		return nil, err
	}
	return &MemoryReader{SeekableReader: sr}, nil
}
