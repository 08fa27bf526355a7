package zipcore

import (
	"compress/bzip2"
	"compress/flate"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

// Decompressor turns a raw compressed stream into its decoded form. It
// mirrors archive/zip's zip.Decompressor function type (see the pack's
// haapjari-btidy/pkg/deflate64, which registers one for Deflate64 the same
// way), generalized to return an error so a codec can reject malformed
// stream headers instead of panicking.
type Decompressor func(r io.Reader) (io.ReadCloser, error)

// Compressor wraps w so that bytes written to the result are compressed
// before reaching w. The returned io.WriteCloser must be closed to flush
// any trailing codec state.
type Compressor func(w io.Writer, level CompressionLevel) (io.WriteCloser, error)

// CodecRegistry maps compression method IDs to their codec implementations.
// Unlike archive/zip's process-global registry, a CodecRegistry is a value
// owned by whichever reader modality or ArchiveWriter holds it, so two engines
// in the same process can register conflicting codecs for the same method
// without interfering (spec §8, codec registry isolation).
type CodecRegistry struct {
	mu            sync.RWMutex
	decompressors map[CompressionMethod]Decompressor
	compressors   map[CompressionMethod]Compressor
}

// NewCodecRegistry returns an empty registry with no codecs registered,
// including not even Stored.
func NewCodecRegistry() *CodecRegistry {
	return &CodecRegistry{
		decompressors: make(map[CompressionMethod]Decompressor),
		compressors:   make(map[CompressionMethod]Compressor),
	}
}

// DefaultCodecRegistry returns a new registry pre-populated with every
// codec this package wires in (spec §6.2 "Domain stack"): Stored as an
// identity codec, Deflate from stdlib compress/flate, Zstd from
// klauspost/compress, XZ and LZMA from ulikunitz/xz, and a
// stdlib compress/bzip2 decompressor (bzip2 is read-only here: no
// actively maintained bzip2 encoder was available to wire in, see
// DESIGN.md). Deflate64 has no registered codec: the spec's Non-goals
// exclude writing it, and decoding it correctly requires the 64KB window
// variant that compress/flate does not implement.
func DefaultCodecRegistry() *CodecRegistry {
	r := NewCodecRegistry()
	r.RegisterDecompressor(MethodStored, storedDecompressor)
	r.RegisterCompressor(MethodStored, storedCompressor)
	r.RegisterDecompressor(MethodDeflate, flateDecompressor)
	r.RegisterCompressor(MethodDeflate, flateCompressor)
	r.RegisterDecompressor(MethodBzip2, bzip2Decompressor)
	r.RegisterDecompressor(MethodZstd, zstdDecompressor)
	r.RegisterCompressor(MethodZstd, zstdCompressor)
	r.RegisterDecompressor(MethodXZ, xzDecompressor)
	r.RegisterCompressor(MethodXZ, xzCompressor)
	r.RegisterDecompressor(MethodLZMA, lzmaDecompressor)
	r.RegisterCompressor(MethodLZMA, lzmaCompressor)
	return r
}

// RegisterDecompressor installs (or replaces) the decompressor for method.
func (c *CodecRegistry) RegisterDecompressor(method CompressionMethod, d Decompressor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.decompressors[method] = d
}

// RegisterCompressor installs (or replaces) the compressor for method.
func (c *CodecRegistry) RegisterCompressor(method CompressionMethod, comp Compressor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.compressors[method] = comp
}

// Decompressor returns the registered decompressor for method, or nil if
// none is registered.
func (c *CodecRegistry) Decompressor(method CompressionMethod) Decompressor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.decompressors[method]
}

// Compressor returns the registered compressor for method, or nil if none
// is registered.
func (c *CodecRegistry) Compressor(method CompressionMethod) Compressor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.compressors[method]
}

type nopReadCloser struct{ io.Reader }

func (nopReadCloser) Close() error { return nil }

func storedDecompressor(r io.Reader) (io.ReadCloser, error) {
	return nopReadCloser{r}, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func storedCompressor(w io.Writer, _ CompressionLevel) (io.WriteCloser, error) {
	return nopWriteCloser{w}, nil
}

func flateDecompressor(r io.Reader) (io.ReadCloser, error) {
	return flate.NewReader(r), nil
}

func flateLevel(level CompressionLevel) int {
	switch level {
	case LevelFastest:
		return flate.BestSpeed
	case LevelBest:
		return flate.BestCompression
	default:
		return flate.DefaultCompression
	}
}

func flateCompressor(w io.Writer, level CompressionLevel) (io.WriteCloser, error) {
	return flate.NewWriter(w, flateLevel(level))
}

func bzip2Decompressor(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(bzip2.NewReader(r)), nil
}

func zstdDecompressor(r io.Reader) (io.ReadCloser, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return dec.IOReadCloser(), nil
}

func zstdEncoderLevel(level CompressionLevel) zstd.EncoderLevel {
	switch level {
	case LevelFastest:
		return zstd.SpeedFastest
	case LevelBest:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

func zstdCompressor(w io.Writer, level CompressionLevel) (io.WriteCloser, error) {
	return zstd.NewWriter(w, zstd.WithEncoderLevel(zstdEncoderLevel(level)))
}

func xzDecompressor(r io.Reader) (io.ReadCloser, error) {
	xr, err := xz.NewReader(r)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(xr), nil
}

func xzCompressor(w io.Writer, _ CompressionLevel) (io.WriteCloser, error) {
	return xz.NewWriter(w)
}

// lzmaDecompressor decodes the ZIP-flavored LZMA stream. Per the LZMA
// method's APPNOTE section, the stream starts with a 4-byte version/
// properties-size header that precedes the raw LZMA properties ulikunitz/
// xz/lzma.NewReader expects; that header is skipped before handing the
// rest of the stream to the decoder. The declared UncompressedSize (the
// caller wraps r in a LimitReader before calling this) bounds the read
// when the stream omits the optional end marker, as 7-Zip/WinZip output
// commonly does.
func lzmaDecompressor(r io.Reader) (io.ReadCloser, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	lr, err := lzma.NewReader(r)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(lr), nil
}

func lzmaCompressor(w io.Writer, _ CompressionLevel) (io.WriteCloser, error) {
	lw, err := lzma.NewWriter(w)
	if err != nil {
		return nil, err
	}
	return lw, nil
}
