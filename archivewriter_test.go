package zipcore

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveWriterSetCommentTooLarge(t *testing.T) {
	aw := NewArchiveWriter(&bytes.Buffer{})
	err := aw.SetComment(bytes.Repeat([]byte("x"), int(sentinel16)+1))
	assert.ErrorIs(t, err, ErrCommentTooLarge)
}

func TestArchiveWriterCreateEntryAfterCloseFails(t *testing.T) {
	var buf bytes.Buffer
	aw := NewArchiveWriter(&buf)
	require.NoError(t, aw.Close())

	e := NewEntryBuilder(NewUTF8String("a"), MethodStored).Build()
	_, err := aw.CreateEntry(&e, StrategyWhole)
	assert.Error(t, err)
}

func TestArchiveWriterCreateEntryUnsupportedMethod(t *testing.T) {
	reg := NewCodecRegistry() // no codecs registered at all
	aw := NewArchiveWriter(&bytes.Buffer{}, WithWriterCodecRegistry(reg))

	e := NewEntryBuilder(NewUTF8String("a"), MethodDeflate).Build()
	_, err := aw.CreateEntry(&e, StrategyWhole)
	assert.True(t, IsKind(err, ErrorKindCompressionNotSupported))
}

func TestArchiveWriterRoundTripsSeveralEntries(t *testing.T) {
	var buf bytes.Buffer
	aw := NewArchiveWriter(&buf)

	const n = 10
	for i := 0; i < n; i++ {
		e := NewEntryBuilder(NewUTF8String(nameFor(i)), MethodStored).Build()
		w, err := aw.CreateEntry(&e, StrategyWhole)
		require.NoError(t, err)
		_, err = w.Write([]byte("x"))
		require.NoError(t, err)
		require.NoError(t, w.Close())
	}
	require.NoError(t, aw.Close())

	dir, err := ParseDirectory(context.Background(), readerAtFromBytes(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	assert.Len(t, dir.Entries, n)
}

func nameFor(i int) string {
	return string(rune('a'+i%26)) + ".txt"
}

func TestArchiveWriterEmitsUnicodePathExtraForRawNameWithAlternative(t *testing.T) {
	var buf bytes.Buffer
	aw := NewArchiveWriter(&buf)

	name := NewRawString([]byte("cafe.txt"), []byte("café.txt"))
	e := NewEntryBuilder(name, MethodStored).Build()
	w, err := aw.CreateEntry(&e, StrategyWhole)
	require.NoError(t, err)
	_, err = w.Write([]byte("data"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, aw.Close())

	dir, err := ParseDirectory(context.Background(), readerAtFromBytes(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, dir.Entries, 1)
	got := dir.Entries[0].Name
	assert.Equal(t, "cafe.txt", string(got.Raw))
	assert.Equal(t, "café.txt", got.String())
	uf := FindUnicodePathExtraField(dir.Entries[0].Extra)
	require.NotNil(t, uf)
	assert.Equal(t, "café.txt", string(uf.Unicode))
}

func TestArchiveWriterForceNoZip64RejectsTooManyFiles(t *testing.T) {
	var buf bytes.Buffer
	aw := NewArchiveWriter(&buf, WithForceNoZip64())
	for i := 0; i < 3; i++ {
		e := NewEntryBuilder(NewUTF8String(nameFor(i)), MethodStored).Build()
		w, err := aw.CreateEntry(&e, StrategyWhole)
		require.NoError(t, err)
		require.NoError(t, w.Close())
	}
	// Fake a too-many-files archive without actually writing 0xFFFF entries.
	for len(aw.dir) < int(sentinel16) {
		e := Entry{Name: NewUTF8String("x")}
		aw.dir = append(aw.dir, &StoredEntry{Entry: &e})
	}
	err := aw.Close()
	var ze *ZipError
	require.ErrorAs(t, err, &ze)
	assert.Equal(t, ErrorKindZIP64Needed, ze.Kind)
	assert.Equal(t, ZIP64ReasonTooManyFiles, ze.ZIP64Reason)
}

func TestArchiveWriterRoundTripPreservesComment(t *testing.T) {
	var buf bytes.Buffer
	aw := NewArchiveWriter(&buf)
	require.NoError(t, aw.SetComment([]byte("archive comment")))

	e := NewEntryBuilder(NewUTF8String("a.txt"), MethodStored).Build()
	w, err := aw.CreateEntry(&e, StrategyWhole)
	require.NoError(t, err)
	_, err = w.Write([]byte("data"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, aw.Close())

	dir, err := ParseDirectory(context.Background(), readerAtFromBytes(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	assert.Equal(t, "archive comment", string(dir.Comment))
}
