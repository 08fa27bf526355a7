package zipcore

import (
	"encoding/binary"
	"hash/crc32"
)

// Extra-field IDs recognized by this package. IDs 0..31 are reserved for
// PKWARE; everything else is third-party, of which Info-ZIP's two Unicode
// fields are pervasive enough to treat as "official" (see struct.go-style
// comment in the teacher's extra header ID block).
const (
	zip64ExtraFieldID          = 0x0001
	unicodePathExtraFieldID    = 0x7075
	unicodeCommentExtraFieldID = 0x6375
)

// ExtraField is implemented by every recognized and unrecognized
// extensible data field payload. ID and Data together reproduce the
// `(id, data_size, data)` tuple described in spec §4.1; Data is computed
// on demand for the structured variants so mutating e.g. a
// Zip64ExtraField's pointers before Encode is reflected in the output.
type ExtraField interface {
	ID() uint16
	Data() []byte
}

// EncodeExtraField serializes a single extra field to its wire form:
// 2-byte id, 2-byte data_size, then the data bytes.
func EncodeExtraField(f ExtraField) []byte {
	data := f.Data()
	buf := make([]byte, 4+len(data))
	b := writeBuf(buf)
	b.uint16(f.ID())
	b.uint16(uint16(len(data)))
	b.bytes(data)
	return buf
}

// EncodeExtraFields concatenates the wire form of every field in order.
func EncodeExtraFields(fields []ExtraField) []byte {
	total := 0
	for _, f := range fields {
		total += 4 + len(f.Data())
	}
	buf := make([]byte, 0, total)
	for _, f := range fields {
		buf = append(buf, EncodeExtraField(f)...)
	}
	return buf
}

// Zip64SentinelFlags says which ZIP64 extended-information sub-fields the
// containing record's sentinel values indicate are present, in their
// fixed wire order (uncompressed_size, compressed_size,
// relative_header_offset, disk_start_number). RelativeHeaderOffset and
// DiskStart are only meaningful for central-directory records; a local
// file header's ZIP64 extra may only carry the two sizes (spec §4.1).
type Zip64SentinelFlags struct {
	UncompressedSize     bool
	CompressedSize       bool
	RelativeHeaderOffset bool
	DiskStart            bool
}

// Zip64ExtraField is the ZIP64 extended information extra field
// (id 0x0001). Each pointer is nil when the corresponding value was not
// present on the wire (the containing record's field did not hold its
// sentinel value).
type Zip64ExtraField struct {
	UncompressedSize     *uint64
	CompressedSize       *uint64
	RelativeHeaderOffset *uint64
	DiskStart            *uint32
}

func (f *Zip64ExtraField) ID() uint16 { return zip64ExtraFieldID }

func (f *Zip64ExtraField) Data() []byte {
	n := 0
	if f.UncompressedSize != nil {
		n += 8
	}
	if f.CompressedSize != nil {
		n += 8
	}
	if f.RelativeHeaderOffset != nil {
		n += 8
	}
	if f.DiskStart != nil {
		n += 4
	}
	buf := make([]byte, n)
	b := writeBuf(buf)
	if f.UncompressedSize != nil {
		b.uint64(*f.UncompressedSize)
	}
	if f.CompressedSize != nil {
		b.uint64(*f.CompressedSize)
	}
	if f.RelativeHeaderOffset != nil {
		b.uint64(*f.RelativeHeaderOffset)
	}
	if f.DiskStart != nil {
		b.uint32(*f.DiskStart)
	}
	return buf
}

// parseZip64ExtraField decodes a ZIP64 extra field's data given which
// sub-fields the containing record's sentinels say are present. A
// data_size larger than the flagged fields need is tolerated (the excess
// is ignored); fields are taken in declared order up to data_size, and a
// flagged field that runs out of bytes is ErrZIP64FieldIncomplete.
func parseZip64ExtraField(data []byte, flags Zip64SentinelFlags) (*Zip64ExtraField, error) {
	f := &Zip64ExtraField{}
	if flags.UncompressedSize {
		if len(data) < 8 {
			return nil, ErrZIP64FieldIncomplete
		}
		v := binary.LittleEndian.Uint64(data)
		f.UncompressedSize = &v
		data = data[8:]
	}
	if flags.CompressedSize {
		if len(data) < 8 {
			return nil, ErrZIP64FieldIncomplete
		}
		v := binary.LittleEndian.Uint64(data)
		f.CompressedSize = &v
		data = data[8:]
	}
	if flags.RelativeHeaderOffset {
		if len(data) < 8 {
			return nil, ErrZIP64FieldIncomplete
		}
		v := binary.LittleEndian.Uint64(data)
		f.RelativeHeaderOffset = &v
		data = data[8:]
	}
	if flags.DiskStart {
		if len(data) < 4 {
			return nil, ErrZIP64FieldIncomplete
		}
		v := binary.LittleEndian.Uint32(data)
		f.DiskStart = &v
	}
	return f, nil
}

// UnicodePathExtraField is the Info-ZIP Unicode Path extra field
// (id 0x7075): a CRC-32 of the basic filename bytes, anchoring a UTF-8
// rendering that applies only when that CRC matches.
type UnicodePathExtraField struct {
	CRC32   uint32
	Unicode []byte
}

func (f *UnicodePathExtraField) ID() uint16 { return unicodePathExtraFieldID }

func (f *UnicodePathExtraField) Data() []byte {
	buf := make([]byte, 5+len(f.Unicode))
	b := writeBuf(buf)
	b.uint8(1)
	b.uint32(f.CRC32)
	b.bytes(f.Unicode)
	return buf
}

// UnicodeCommentExtraField is the Info-ZIP Unicode Comment extra field
// (id 0x6375), analogous to UnicodePathExtraField but for the comment.
type UnicodeCommentExtraField struct {
	CRC32   uint32
	Unicode []byte
}

func (f *UnicodeCommentExtraField) ID() uint16 { return unicodeCommentExtraFieldID }

func (f *UnicodeCommentExtraField) Data() []byte {
	buf := make([]byte, 5+len(f.Unicode))
	b := writeBuf(buf)
	b.uint8(1)
	b.uint32(f.CRC32)
	b.bytes(f.Unicode)
	return buf
}

// unicodePathExtra builds the Info-ZIP Unicode Path extra field that a
// writer must attach when name's basic bytes are a legacy encoding but a
// UTF-8 alternative is also known, so the alternative survives a
// round-trip instead of being silently dropped (spec §4.6 "Filename/
// comment policy"). Returns nil when no alternative needs anchoring.
func unicodePathExtra(name ZipString) ExtraField {
	if name.Encoding != EncodingRaw || name.Alternative == nil {
		return nil
	}
	return &UnicodePathExtraField{CRC32: crc32.ChecksumIEEE(name.Raw), Unicode: name.Alternative}
}

// unicodeCommentExtra is unicodePathExtra's analogue for the entry comment.
func unicodeCommentExtra(comment ZipString) ExtraField {
	if comment.Encoding != EncodingRaw || comment.Alternative == nil {
		return nil
	}
	return &UnicodeCommentExtraField{CRC32: crc32.ChecksumIEEE(comment.Raw), Unicode: comment.Alternative}
}

// UnknownExtraField is any extra field this package does not interpret.
// Its bytes are preserved verbatim across a read-then-write round trip.
type UnknownExtraField struct {
	IDValue uint16
	Raw     []byte
}

func (f *UnknownExtraField) ID() uint16  { return f.IDValue }
func (f *UnknownExtraField) Data() []byte { return f.Raw }

func parseUnicodeField(id uint16, data []byte) ExtraField {
	if len(data) < 5 || data[0] != 1 {
		return &UnknownExtraField{IDValue: id, Raw: append([]byte(nil), data...)}
	}
	crc := binary.LittleEndian.Uint32(data[1:5])
	unicode := append([]byte(nil), data[5:]...)
	if id == unicodePathExtraFieldID {
		return &UnicodePathExtraField{CRC32: crc, Unicode: unicode}
	}
	return &UnicodeCommentExtraField{CRC32: crc, Unicode: unicode}
}

// ExtraFieldContext carries the sentinel state of the record that an
// extra-field buffer belongs to, needed to resolve the conditional ZIP64
// sub-fields (spec §4.1).
type ExtraFieldContext struct {
	// IsLocalHeader is true when parsing a local file header's extra
	// buffer: only the two ZIP64 size sub-fields may appear.
	IsLocalHeader bool

	UncompressedSizeSentinel     bool
	CompressedSizeSentinel       bool
	RelativeHeaderOffsetSentinel bool
	DiskStartSentinel            bool
}

// ParseExtraFields iterates the `(id, data_size, data)` tuples of an
// extra-field buffer to end, per spec §4.1. A trailing tuple whose
// declared data_size overruns the buffer is clipped to what remains
// rather than rejected, matching real-world writers that round up block
// sizes.
func ParseExtraFields(buf []byte, ctx ExtraFieldContext) ([]ExtraField, error) {
	var fields []ExtraField
	for len(buf) >= 4 {
		id := binary.LittleEndian.Uint16(buf)
		size := int(binary.LittleEndian.Uint16(buf[2:]))
		buf = buf[4:]
		if size > len(buf) {
			size = len(buf)
		}
		data := buf[:size]
		buf = buf[size:]

		switch id {
		case zip64ExtraFieldID:
			flags := Zip64SentinelFlags{
				UncompressedSize: ctx.UncompressedSizeSentinel,
				CompressedSize:   ctx.CompressedSizeSentinel,
			}
			if !ctx.IsLocalHeader {
				flags.RelativeHeaderOffset = ctx.RelativeHeaderOffsetSentinel
				flags.DiskStart = ctx.DiskStartSentinel
			}
			zf, err := parseZip64ExtraField(data, flags)
			if err != nil {
				return nil, err
			}
			fields = append(fields, zf)
		case unicodePathExtraFieldID, unicodeCommentExtraFieldID:
			fields = append(fields, parseUnicodeField(id, data))
		default:
			fields = append(fields, &UnknownExtraField{IDValue: id, Raw: append([]byte(nil), data...)})
		}
	}
	return fields, nil
}

// FindZip64ExtraField returns the first ZIP64 extended information extra
// field among fields, or nil if none is present.
func FindZip64ExtraField(fields []ExtraField) *Zip64ExtraField {
	for _, f := range fields {
		if zf, ok := f.(*Zip64ExtraField); ok {
			return zf
		}
	}
	return nil
}

// FindUnicodePathExtraField returns the first Info-ZIP Unicode Path extra
// field among fields, or nil if none is present.
func FindUnicodePathExtraField(fields []ExtraField) *UnicodePathExtraField {
	for _, f := range fields {
		if uf, ok := f.(*UnicodePathExtraField); ok {
			return uf
		}
	}
	return nil
}

// FindUnicodeCommentExtraField returns the first Info-ZIP Unicode Comment
// extra field among fields, or nil if none is present.
func FindUnicodeCommentExtraField(fields []ExtraField) *UnicodeCommentExtraField {
	for _, f := range fields {
		if uf, ok := f.(*UnicodeCommentExtraField); ok {
			return uf
		}
	}
	return nil
}
