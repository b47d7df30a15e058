package dataset

import (
	"os"
	"path/filepath"
)

// resolveImagePath joins root and fileName unless fileName is already an
// absolute path.
func resolveImagePath(root, fileName string) string {
	if filepath.IsAbs(fileName) {
		return fileName
	}
	return filepath.Join(root, fileName)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// SourceImagePath finds the on-disk file for an image, trying its recorded
// absolute path first, then the store's image root, then the file name
// itself. Returns "" when no candidate exists.
func (s *Store) SourceImagePath(img *Image) string {
	if img.AbsPath != "" && fileExists(img.AbsPath) {
		return img.AbsPath
	}
	if s.imgRoot != "" {
		if p := resolveImagePath(s.imgRoot, img.FileName); fileExists(p) {
			return p
		}
	}
	if fileExists(img.FileName) {
		return img.FileName
	}
	return ""
}
