package upload

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// pngHeader is enough of a PNG for magic-byte sniffing.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestReadImageAcceptsPNG(t *testing.T) {
	img, err := ReadImage(bytes.NewReader(pngHeader), 1024)
	require.NoError(t, err)
	require.Equal(t, "image/png", img.MIME)
	require.Equal(t, ".png", img.Ext)
	require.True(t, strings.HasSuffix(img.Name(), ".png"))
}

func TestReadImageRejectsNonImage(t *testing.T) {
	_, err := ReadImage(strings.NewReader("%PDF-1.7\n"), 1024)
	require.ErrorIs(t, err, ErrInvalidImage)
}

func TestReadImageRejectsOversized(t *testing.T) {
	data := append(append([]byte{}, pngHeader...), make([]byte, 64)...)
	_, err := ReadImage(bytes.NewReader(data), 32)
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestReadImageRejectsEmpty(t *testing.T) {
	_, err := ReadImage(bytes.NewReader(nil), 32)
	require.ErrorIs(t, err, ErrEmpty)
}

func TestDiskSaveOpenDelete(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDisk(filepath.Join(dir, "shots"))
	require.NoError(t, err)
	ctx := context.Background()

	img, err := ReadImage(bytes.NewReader(pngHeader), 1024)
	require.NoError(t, err)

	ref, err := SaveImage(ctx, d, img)
	require.NoError(t, err)

	rc, err := d.Open(ctx, ref)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, pngHeader, got)

	require.NoError(t, d.Delete(ctx, ref))
	require.NoError(t, d.Delete(ctx, ref))

	_, err = d.Open(ctx, ref)
	require.ErrorIs(t, err, ErrNotFound)

	entries, err := os.ReadDir(filepath.Join(dir, "shots"))
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestDiskRejectsPathTraversal(t *testing.T) {
	d, err := NewDisk(t.TempDir())
	require.NoError(t, err)

	_, err = d.Open(context.Background(), "../secret")
	require.ErrorIs(t, err, ErrNotFound)
}
