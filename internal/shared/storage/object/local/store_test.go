package local

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestSaveAndOpenRoundTrip(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	key, size, mimeType, err := store.Save(ctx, "Consultations", "c-1.png", bytes.NewReader(pngHeader))
	require.NoError(t, err)
	require.Equal(t, "consultations/c-1.png", key)
	require.EqualValues(t, len(pngHeader), size)
	require.Equal(t, "image/png", mimeType)

	rc, err := store.Open(ctx, key)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, pngHeader, data)
}

func TestSaveOverwritesSameName(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	_, _, _, err := store.Save(ctx, "consultations", "c-1.jpg", bytes.NewReader([]byte("first version")))
	require.NoError(t, err)
	key, _, _, err := store.Save(ctx, "consultations", "c-1.jpg", bytes.NewReader([]byte("second")))
	require.NoError(t, err)

	rc, err := store.Open(ctx, key)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "second", string(data))
}

func TestSaveRejectsTraversal(t *testing.T) {
	store := New(t.TempDir())

	_, _, _, err := store.Save(context.Background(), "consultations", "../escape.jpg", bytes.NewReader(pngHeader))
	require.Error(t, err)
}

func TestOpenRejectsEscapingKey(t *testing.T) {
	store := New(t.TempDir())

	_, err := store.Open(context.Background(), "../../etc/passwd")
	require.ErrorContains(t, err, "invalid storage key")
}

func TestSaveHonorsCancelledContext(t *testing.T) {
	store := New(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, _, err := store.Save(ctx, "consultations", "c-1.jpg", bytes.NewReader(pngHeader))
	require.ErrorIs(t, err, context.Canceled)
}
