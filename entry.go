package zipcore

import "os"

// Compression method codes (spec §6).
type CompressionMethod uint16

const (
	MethodStored    CompressionMethod = 0
	MethodDeflate   CompressionMethod = 8
	MethodDeflate64 CompressionMethod = 9
	MethodBzip2     CompressionMethod = 12
	MethodLZMA      CompressionMethod = 14
	MethodZstd      CompressionMethod = 93
	MethodXZ        CompressionMethod = 95
)

// CompressionLevel is a codec-agnostic compression effort hint. Codecs
// that don't distinguish levels may treat all of these identically.
type CompressionLevel int

const (
	LevelDefault CompressionLevel = iota
	LevelFastest
	LevelBest
)

// AttributeCompatibility identifies the host system whose attribute
// conventions ExternalAttrs follows, taken from the top byte of
// version-made-by (spec §6, "Version-made-by / version-needed").
type AttributeCompatibility uint8

const (
	AttributeCompatFAT    AttributeCompatibility = 0
	AttributeCompatUnix   AttributeCompatibility = 3
	AttributeCompatNTFS   AttributeCompatibility = 11
	AttributeCompatVFAT   AttributeCompatibility = 14
	AttributeCompatMacOSX AttributeCompatibility = 19
)

// General purpose bit flag bits consumed by this package (spec §6).
const (
	gpbfEncryptedBit        uint16 = 1 << 0
	gpbfDataDescriptorBit   uint16 = 1 << 3
	gpbfFilenameUnicodeBit  uint16 = 1 << 11
)

func gpbfEncrypted(flags uint16) bool       { return flags&gpbfEncryptedBit != 0 }
func gpbfDataDescriptor(flags uint16) bool  { return flags&gpbfDataDescriptorBit != 0 }
func gpbfFilenameUnicode(flags uint16) bool { return flags&gpbfFilenameUnicodeBit != 0 }

// 32/16-bit sentinel values signaling "see the ZIP64 extra" (spec GLOSSARY
// "Sentinel overflow").
const (
	sentinel16 uint16 = 0xFFFF
	sentinel32 uint32 = 0xFFFFFFFF
)

// Entry is the immutable metadata describing one file or directory within
// an archive, independent of where its bytes live (spec §3 "Entry").
type Entry struct {
	Name             ZipString
	Method           CompressionMethod
	Level            CompressionLevel
	AttributeCompat  AttributeCompatibility
	CRC32            uint32
	UncompressedSize uint64
	CompressedSize   uint64
	Modified         PackedDateTime
	InternalAttrs    uint16
	ExternalAttrs    uint32
	Extra            []ExtraField
	Comment          ZipString
}

// IsZip64 reports whether either of the entry's sizes reaches the
// 0xFFFFFFFF sentinel and so requires ZIP64 extra-field storage on write
// (spec §3 invariant on Entry).
func (e *Entry) IsZip64() bool {
	return e.CompressedSize >= uint64(sentinel32) || e.UncompressedSize >= uint64(sentinel32)
}

// IsDir reports whether the entry's name ends in a trailing slash, the
// ZIP convention for directory entries (spec §3 "Entry").
func (e *Entry) IsDir() bool {
	raw := e.Name.Raw
	return len(raw) > 0 && raw[len(raw)-1] == '/'
}

// versionNeeded computes the version-needed-to-extract value for this
// entry per spec §6: 63 for LZMA, 46 for Bzip2, 20 for Deflate and
// directory entries, 10 otherwise; bumped to 45 if a ZIP64 extra is
// present.
func (e *Entry) versionNeeded() uint16 {
	var v uint16
	switch {
	case e.Method == MethodLZMA:
		v = 63
	case e.Method == MethodBzip2:
		v = 46
	case e.Method == MethodDeflate || e.Method == MethodDeflate64 || e.IsDir():
		v = 20
	default:
		v = 10
	}
	if FindZip64ExtraField(e.Extra) != nil && v < 45 {
		v = 45
	}
	return v
}

// Unix permission/mode bit constants agreed on by tools; the ZIP spec
// itself is silent on them (mirrors the teacher's struct.go).
const (
	sIFMT   = 0xf000
	sIFSOCK = 0xc000
	sIFLNK  = 0xa000
	sIFREG  = 0x8000
	sIFBLK  = 0x6000
	sIFDIR  = 0x4000
	sIFCHR  = 0x2000
	sIFIFO  = 0x1000
	sISUID  = 0x800
	sISGID  = 0x400
	sISVTX  = 0x200

	msdosDir      = 0x10
	msdosReadOnly = 0x01
)

// Mode returns the os.FileMode implied by ExternalAttrs, interpreted
// according to AttributeCompat.
func (e *Entry) Mode() (mode os.FileMode) {
	switch e.AttributeCompat {
	case AttributeCompatUnix, AttributeCompatMacOSX:
		mode = unixModeToFileMode(e.ExternalAttrs >> 16)
	case AttributeCompatNTFS, AttributeCompatVFAT, AttributeCompatFAT:
		mode = msdosModeToFileMode(e.ExternalAttrs)
	}
	if e.IsDir() {
		mode |= os.ModeDir
	}
	return mode
}

// SetMode encodes mode into ExternalAttrs, setting AttributeCompat to
// Unix and mirroring the MS-DOS directory/read-only bits the way most
// real-world ZIP writers do for cross-tool compatibility.
func (e *Entry) SetMode(mode os.FileMode) {
	e.AttributeCompat = AttributeCompatUnix
	e.ExternalAttrs = fileModeToUnixMode(mode) << 16
	if mode&os.ModeDir != 0 {
		e.ExternalAttrs |= msdosDir
	}
	if mode&0200 == 0 {
		e.ExternalAttrs |= msdosReadOnly
	}
}

func msdosModeToFileMode(m uint32) (mode os.FileMode) {
	if m&msdosDir != 0 {
		mode = os.ModeDir | 0777
	} else {
		mode = 0666
	}
	if m&msdosReadOnly != 0 {
		mode &^= 0222
	}
	return mode
}

func fileModeToUnixMode(mode os.FileMode) uint32 {
	var m uint32
	switch mode & os.ModeType {
	default:
		m = sIFREG
	case os.ModeDir:
		m = sIFDIR
	case os.ModeSymlink:
		m = sIFLNK
	case os.ModeNamedPipe:
		m = sIFIFO
	case os.ModeSocket:
		m = sIFSOCK
	case os.ModeDevice:
		if mode&os.ModeCharDevice != 0 {
			m = sIFCHR
		} else {
			m = sIFBLK
		}
	}
	if mode&os.ModeSetuid != 0 {
		m |= sISUID
	}
	if mode&os.ModeSetgid != 0 {
		m |= sISGID
	}
	if mode&os.ModeSticky != 0 {
		m |= sISVTX
	}
	return m | uint32(mode&0777)
}

func unixModeToFileMode(m uint32) os.FileMode {
	mode := os.FileMode(m & 0777)
	switch m & sIFMT {
	case sIFBLK:
		mode |= os.ModeDevice
	case sIFCHR:
		mode |= os.ModeDevice | os.ModeCharDevice
	case sIFDIR:
		mode |= os.ModeDir
	case sIFIFO:
		mode |= os.ModeNamedPipe
	case sIFLNK:
		mode |= os.ModeSymlink
	case sIFREG:
	case sIFSOCK:
		mode |= os.ModeSocket
	}
	if m&sISGID != 0 {
		mode |= os.ModeSetgid
	}
	if m&sISUID != 0 {
		mode |= os.ModeSetuid
	}
	if m&sISVTX != 0 {
		mode |= os.ModeSticky
	}
	return mode
}

// EntryBuilder incrementally constructs an Entry, mirroring the fluent
// builder the original sources expose for ZipEntry.
type EntryBuilder struct {
	e Entry
}

// NewEntryBuilder starts a builder for an entry with the given name and
// compression method.
func NewEntryBuilder(name ZipString, method CompressionMethod) *EntryBuilder {
	return &EntryBuilder{e: Entry{Name: name, Method: method}}
}

func (b *EntryBuilder) Level(level CompressionLevel) *EntryBuilder {
	b.e.Level = level
	return b
}

func (b *EntryBuilder) AttributeCompatibility(compat AttributeCompatibility) *EntryBuilder {
	b.e.AttributeCompat = compat
	return b
}

func (b *EntryBuilder) Modified(date PackedDateTime) *EntryBuilder {
	b.e.Modified = date
	return b
}

func (b *EntryBuilder) InternalAttrs(attrs uint16) *EntryBuilder {
	b.e.InternalAttrs = attrs
	return b
}

func (b *EntryBuilder) ExternalAttrs(attrs uint32) *EntryBuilder {
	b.e.ExternalAttrs = attrs
	return b
}

func (b *EntryBuilder) ExtraFields(fields []ExtraField) *EntryBuilder {
	b.e.Extra = fields
	return b
}

func (b *EntryBuilder) Comment(comment ZipString) *EntryBuilder {
	b.e.Comment = comment
	return b
}

// UnixPermissions sets the unix permission bits in ExternalAttrs; it is a
// no-op unless AttributeCompat is AttributeCompatUnix.
func (b *EntryBuilder) UnixPermissions(mode uint16) *EntryBuilder {
	if b.e.AttributeCompat == AttributeCompatUnix {
		b.e.ExternalAttrs = b.e.ExternalAttrs&0xFFFF | uint32(mode)<<16
	}
	return b
}

func (b *EntryBuilder) Build() Entry { return b.e }

// StoredEntry is an Entry located within a parsed archive (spec §3
// "Stored entry").
type StoredEntry struct {
	*Entry
	FileOffset uint64
	HeaderSize uint32
}
