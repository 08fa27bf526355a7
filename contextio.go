package zipcore

import (
	"context"
	"fmt"
	"io"
	"sort"
)

// ReaderAt is like io.ReaderAt but takes a context, letting the seekable
// reader modality (seekreader.go) cancel a read stuck on a slow backing
// store (spec §5 "asynchronous").
type ReaderAt interface {
	ReadAtContext(ctx context.Context, p []byte, off int64) (n int, err error)
}

// sizeReaderAt is a plain io.ReaderAt together with its known total size,
// the shape chunkedReaderAt.addSizeReaderAt accepts (LazyArchive's
// rendered headers, data descriptors and central directory).
type sizeReaderAt interface {
	io.ReaderAt
	Size() int64
}

type offsetAndData struct {
	offset int64
	data   ReaderAt
}

// chunkedReaderAt is a ReaderAt formed by joining multiple ReaderAt parts
// end to end, used to present a central directory or an archive's entry
// bytes assembled from several in-memory chunks as a single addressable
// span without copying them together first.
type chunkedReaderAt struct {
	parts []offsetAndData
	size  int64
}

// add appends a part of the given size. add must only be called before
// the reader is read from.
func (mcr *chunkedReaderAt) add(data ReaderAt, size int64) {
	switch {
	case size < 0:
		panic(fmt.Sprintf("zipcore: chunkedReaderAt.add: negative size %v", size))
	case size == 0:
		return
	}
	mcr.parts = append(mcr.parts, offsetAndData{
		offset: mcr.size,
		data:   data,
	})
	mcr.size += size
}

func (mcr *chunkedReaderAt) addSizeReaderAt(r sizeReaderAt) {
	mcr.add(ignoreContext{r: r}, r.Size())
}

func (mcr *chunkedReaderAt) endOffset(partIndex int) int64 {
	if partIndex == len(mcr.parts)-1 {
		return mcr.size
	}
	return mcr.parts[partIndex+1].offset
}

func (mcr *chunkedReaderAt) ReadAtContext(ctx context.Context, p []byte, off int64) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off >= mcr.size {
		return 0, io.EOF
	}
	firstPartIndex := sort.Search(len(mcr.parts), func(i int) bool {
		return mcr.endOffset(i) > off
	})
	for partIndex := firstPartIndex; partIndex < len(mcr.parts) && len(p) > 0; partIndex++ {
		if partIndex > firstPartIndex {
			off = mcr.parts[partIndex].offset
		}
		partRemainingBytes := mcr.endOffset(partIndex) - off
		sizeToRead := int64(len(p))
		if sizeToRead > partRemainingBytes {
			sizeToRead = partRemainingBytes
		}
		n2, err2 := mcr.parts[partIndex].data.ReadAtContext(ctx, p[0:sizeToRead], off-mcr.parts[partIndex].offset)
		n += n2
		if err2 != nil {
			return n, err2
		}
		p = p[n2:]
	}
	if len(p) > 0 {
		return n, io.EOF
	}
	return n, nil
}

func (mcr *chunkedReaderAt) ReadAt(p []byte, off int64) (n int, err error) {
	return mcr.ReadAtContext(context.Background(), p, off)
}

func (mcr *chunkedReaderAt) Size() int64 {
	return mcr.size
}

// ignoreContext adapts an io.ReaderAt to ReaderAt by discarding the
// context.
type ignoreContext struct {
	r io.ReaderAt
}

// AdaptReaderAt wraps a plain io.ReaderAt (e.g. an *os.File) as a
// ReaderAt whose ReadAtContext ignores its context argument. Use this at
// the boundary where an io.ReaderAt-only backing store meets the
// seekable reader modality.
func AdaptReaderAt(r io.ReaderAt) ReaderAt {
	return ignoreContext{r: r}
}

func (a ignoreContext) ReadAtContext(_ context.Context, p []byte, off int64) (n int, err error) {
	return a.r.ReadAt(p, off)
}

// withContext adapts a ReaderAt bound to a fixed context into a plain
// io.ReaderAt, for handing to APIs (such as io.NewSectionReader) that
// don't carry one. The context must outlive every read made through the
// returned value, so this must not be stored beyond the call that built
// it.
type withContext struct {
	ctx context.Context
	r   ReaderAt
}

func (w withContext) ReadAt(p []byte, off int64) (n int, err error) {
	return w.r.ReadAtContext(w.ctx, p, off)
}
