package wg

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewWriter(t *testing.T) {
	writer := NewWriter()

	if writer.DirMode != 0o750 {
		t.Errorf("Expected directory mode 750, got %o", writer.DirMode)
	}
	if writer.FileMode != 0o600 {
		t.Errorf("Expected file mode 600, got %o", writer.FileMode)
	}
}

func TestWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.conf")
	config := "[Interface]\nPrivateKey = test\n"

	if err := NewWriter().Write(path, []byte(config)); err != nil {
		t.Fatalf("Expected no error writing config, got: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}
	if string(content) != config {
		t.Errorf("Expected config content '%s', got '%s'", config, string(content))
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Failed to stat config file: %v", err)
	}
	expectedMode := os.FileMode(0600)
	if info.Mode().Perm() != expectedMode {
		t.Errorf("Expected file mode %o, got %o", expectedMode, info.Mode().Perm())
	}
}

func TestWriteCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "client_1.conf")

	if err := NewWriter().Write(path, []byte("[Interface]\n")); err != nil {
		t.Errorf("Expected no error writing config to nested path, got: %v", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("Expected config file to be created in nested directory")
	}
}

func TestWriteOverwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client_1.conf")
	writer := NewWriter()

	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatalf("Failed to seed file: %v", err)
	}
	if err := writer.Write(path, []byte("new")); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	content, _ := os.ReadFile(path)
	if string(content) != "new" {
		t.Errorf("Expected 'new', got '%s'", string(content))
	}
	info, _ := os.Stat(path)
	if info.Mode().Perm() != 0o600 {
		t.Errorf("Expected overwritten file mode 600, got %o", info.Mode().Perm())
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to list directory: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected no leftover temporary files, got %d entries", len(entries))
	}
}

func TestWriteFailsWhenParentIsFile(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatalf("Failed to seed file: %v", err)
	}

	if err := NewWriter().Write(filepath.Join(blocker, "server.conf"), []byte("x")); err == nil {
		t.Error("Expected error when parent path is a regular file")
	}
}

func TestWriteRemovesTemporaryFileOnWriteError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.conf")
	tmp := path + ".tmp-1"
	// a directory in place of the temporary file makes WriteFile fail
	if err := os.Mkdir(tmp, 0o750); err != nil {
		t.Fatalf("Failed to seed directory: %v", err)
	}

	writer := NewWriter()
	writer.tempName = func(string) string { return tmp }

	if err := writer.Write(path, []byte("x")); err == nil {
		t.Fatal("Expected error when the temporary file cannot be written")
	}
	if _, err := os.Stat(tmp); !os.IsNotExist(err) {
		t.Errorf("Expected temporary path to be removed, got: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Expected no config file, got: %v", err)
	}
}

func TestWriteRemovesTemporaryFileOnRenameError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.conf")
	// a non-empty directory at the target makes the rename fail
	if err := os.MkdirAll(filepath.Join(path, "keep"), 0o750); err != nil {
		t.Fatalf("Failed to seed directory: %v", err)
	}

	if err := NewWriter().Write(path, []byte("x")); err == nil {
		t.Fatal("Expected error when the target is a directory")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to list directory: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected no leftover temporary files, got %d entries", len(entries))
	}
}
