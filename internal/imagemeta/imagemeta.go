// Package imagemeta probes image files for their pixel dimensions.
// Dimensions are always read by decoding the file header, never trusted
// from external metadata.
package imagemeta

import (
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder
)

var extensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".bmp": {}, ".tiff": {}, ".tif": {},
	".gif": {}, ".webp": {},
}

// IsImageFile reports whether the path has a recognized image extension.
func IsImageFile(path string) bool {
	_, ok := extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Probe returns the pixel width and height of an image file.
func Probe(path string) (width, height int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
