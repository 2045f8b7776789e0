package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// WriteFile writes content to a file, creating parent directories.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	WriteBytes(t, path, []byte(content))
}

// WriteBytes writes raw bytes to a file, creating parent directories.
func WriteBytes(t *testing.T, path string, data []byte) {
	t.Helper()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll(%s) error: %v", dir, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("WriteFile(%s) error: %v", path, err)
	}
}

// CreateFileTree creates multiple files from a map of path -> content.
func CreateFileTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		WriteFile(t, filepath.Join(root, name), content)
	}
}

// Lines joins lines with "\n" and adds a trailing newline.
func Lines(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

// Rel returns paths relative to root with forward slashes.
func Rel(t *testing.T, root string, paths []string) []string {
	t.Helper()
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, err := filepath.Rel(root, p)
		if err != nil {
			t.Fatalf("Rel(%s, %s) error: %v", root, p, err)
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}
