// Package testutil provides fixtures shared by archive tests.
package testutil

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Tree maps slash-separated relative paths to file contents.
type Tree map[string]string

// WriteTree creates files below dir, making parent directories as needed.
func WriteTree(tb testing.TB, dir string, tree Tree) {
	tb.Helper()
	for rel, content := range tree {
		WriteFile(tb, dir, rel, content)
	}
}

// WriteFile writes a single file below dir.
func WriteFile(tb testing.TB, dir, rel, content string) {
	tb.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		tb.Fatalf("mkdir %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		tb.Fatalf("write %s: %v", rel, err)
	}
}

// Tamper overwrites a file and bumps its modification time so the change is
// visible even on filesystems with coarse timestamps.
func Tamper(tb testing.TB, dir, rel, content string) {
	tb.Helper()
	WriteFile(tb, dir, rel, content)
	path := filepath.Join(dir, filepath.FromSlash(rel))
	later := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, later, later); err != nil {
		tb.Fatalf("chtimes %s: %v", rel, err)
	}
}

// Symlink creates a symbolic link at rel below dir pointing to target,
// skipping the test when the platform refuses.
func Symlink(tb testing.TB, dir, target, rel string) {
	tb.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		tb.Fatalf("mkdir %s: %v", rel, err)
	}
	if err := os.Symlink(target, path); err != nil {
		tb.Skipf("symlinks unavailable: %v", err)
	}
}

// SHA256Hex returns the lowercase hex sha256 digest of content.
func SHA256Hex(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
