package zipcore

import (
	"hash"
	"hash/crc32"
	"io"
)

// EntryReader is the layered reader chain for one entry's decoded content
// (spec §4.4 "Layered entry reader"): a source span of exactly
// CompressedSize bytes, limited so a truncated or lying header can't run
// past the entry's own bytes, fed through the registered Decompressor for
// the entry's Method, with every byte that crosses the Read boundary also
// hashed so the CRC-32 can be checked once the reader reaches EOF.
//
// The expected CRC-32 is known up front (want). resolveWant, when set, is
// called at EOF instead of using want; none of the reader modalities in
// this package set it (StreamReader rejects data-descriptor entries and
// takes the CRC-32 from the local file header).
//
// EntryReader does not implement io.Seeker: decompressed content is only
// ever read forward, matching every one of the three reader modalities.
type EntryReader struct {
	decoded     io.ReadCloser
	hasher      hash.Hash32
	want        uint32
	resolveWant func() (uint32, error)
	onDone      func()
	doneCalled  bool
	done        bool
	verified    bool
}

func (r *EntryReader) fireOnDone() {
	if r.onDone != nil && !r.doneCalled {
		r.doneCalled = true
		r.onDone()
	}
}

// NewEntryReader builds the layered reader for an entry whose compressed
// bytes are the first CompressedSize bytes of src, decoding with codec
// (the registry's Decompressor for entry.Method; callers look it up via
// CodecRegistry.Decompressor and report ErrorKindCompressionNotSupported
// themselves if it's nil, since a missing codec is a caller-visible,
// entry-specific condition rather than an EntryReader-internal one).
func NewEntryReader(src io.Reader, entry *Entry, codec Decompressor) (*EntryReader, error) {
	limited := io.LimitReader(src, int64(entry.CompressedSize))
	decoded, err := codec(limited)
	if err != nil {
		return nil, err
	}
	return &EntryReader{
		decoded: decoded,
		hasher:  crc32.NewIEEE(),
		want:    entry.CRC32,
	}, nil
}

func (r *EntryReader) Read(p []byte) (int, error) {
	n, err := r.decoded.Read(p)
	if n > 0 {
		r.hasher.Write(p[:n])
	}
	if err == io.EOF {
		r.done = true
		want := r.want
		if r.resolveWant != nil {
			w, werr := r.resolveWant()
			r.fireOnDone()
			if werr != nil {
				return n, werr
			}
			want = w
		} else {
			r.fireOnDone()
		}
		if r.hasher.Sum32() != want {
			return n, ErrCRC32Mismatch
		}
		r.verified = true
	}
	return n, err
}

// Close releases the decompressor. It does not verify the CRC-32: a
// caller that closes before reaching EOF has chosen not to read the
// entry's full content and forfeits the integrity check (spec §4.4 edge
// case "reader closed early").
func (r *EntryReader) Close() error {
	r.fireOnDone()
	return r.decoded.Close()
}

// Verified reports whether Read has reached the decoded stream's EOF with
// a matching CRC-32.
func (r *EntryReader) Verified() bool {
	return r.verified
}
