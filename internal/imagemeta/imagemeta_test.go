package imagemeta

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, 37, 21))))
	require.NoError(t, f.Close())

	w, h, err := Probe(path)
	require.NoError(t, err)
	assert.Equal(t, 37, w)
	assert.Equal(t, 21, h)
}

func TestProbeRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "b.png")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0644))

	_, _, err := Probe(path)
	assert.Error(t, err)
}

func TestProbeMissingFile(t *testing.T) {
	_, _, err := Probe(filepath.Join(t.TempDir(), "nope.png"))
	assert.Error(t, err)
}

func TestIsImageFile(t *testing.T) {
	assert.True(t, IsImageFile("photo.JPG"))
	assert.True(t, IsImageFile("scan.tiff"))
	assert.True(t, IsImageFile("frame.webp"))
	assert.False(t, IsImageFile("labels.txt"))
	assert.False(t, IsImageFile("archive.zip"))
}
