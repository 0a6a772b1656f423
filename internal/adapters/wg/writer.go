package wg

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Writer persists rendered configuration files atomically. Files carry
// private key material and are always created with mode 0600.
type Writer struct {
	DirMode  os.FileMode
	FileMode os.FileMode

	tempName func(path string) string
}

func NewWriter() *Writer {
	return &Writer{DirMode: 0o750, FileMode: 0o600, tempName: tempName}
}

func tempName(path string) string {
	return fmt.Sprintf("%s.tmp-%d", path, time.Now().UnixNano())
}

// Write creates missing parent directories, writes data to a temporary
// sibling and renames it over path.
func (w *Writer) Write(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, w.DirMode); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	name := w.tempName
	if name == nil {
		name = tempName
	}
	tmp := name(path)
	if err := os.WriteFile(tmp, data, w.FileMode); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	// WriteFile leaves the mode alone when tmp already existed.
	if err := os.Chmod(tmp, w.FileMode); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
