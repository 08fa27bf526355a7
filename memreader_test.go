package zipcore

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryReaderRoundTrip(t *testing.T) {
	data := buildTestArchive(t)
	mr, err := OpenMemoryReader(context.Background(), bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, 2, mr.Len())

	rc, err := mr.Open(0)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "stored whole content", string(got))
	assert.True(t, rc.Verified())
}

func TestMemoryReaderSpansMultipleChunks(t *testing.T) {
	var buf bytes.Buffer
	aw := NewArchiveWriter(&buf)
	big := bytes.Repeat([]byte("x"), memReaderChunkSize+1000)
	e := NewEntryBuilder(NewUTF8String("big.bin"), MethodStored).Build()
	w, err := aw.CreateEntry(&e, StrategyWhole)
	require.NoError(t, err)
	_, err = w.Write(big)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, aw.Close())

	mr, err := OpenMemoryReader(context.Background(), bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	rc, err := mr.Open(0)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, big, got)
}
