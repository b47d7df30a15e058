// Package fsutil holds small filesystem helpers shared by the format
// writers.
package fsutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// CopyFile copies src to dst, preserving the source file mode. The
// destination directory must already exist.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s: %w", filepath.Base(src), err)
	}
	return out.Close()
}

var (
	exportMu    sync.Mutex
	exportLocks = make(map[string]*sync.Mutex)
)

// LockExportDir grants exclusive ownership of a destination directory for
// the duration of one export call. A second export to the same (cleaned)
// path blocks until the returned unlock function runs.
func LockExportDir(dir string) (unlock func()) {
	key := filepath.Clean(dir)
	if abs, err := filepath.Abs(key); err == nil {
		key = abs
	}

	exportMu.Lock()
	mu, ok := exportLocks[key]
	if !ok {
		mu = &sync.Mutex{}
		exportLocks[key] = mu
	}
	exportMu.Unlock()

	mu.Lock()
	return mu.Unlock
}
