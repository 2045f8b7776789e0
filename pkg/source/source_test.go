package source

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesystemSource(t *testing.T) {
	src := NewFilesystem()

	// Read a file that exists
	content, err := src.Read("../../go.mod")
	require.NoError(t, err)
	assert.Contains(t, string(content), "module github.com/panbanda/dedoop")

	// Non-existent file should error
	_, err = src.Read("nonexistent.txt")
	assert.Error(t, err)
}

func TestNewDecoder(t *testing.T) {
	tests := []struct {
		label string
		want  string
	}{
		{"", "utf-8"},
		{"utf-8", "utf-8"},
		{"UTF8", "utf-8"},
		{"latin1", "windows-1252"},
		{"iso-8859-2", "iso-8859-2"},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			d, err := NewDecoder(tt.label)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Name())
		})
	}

	_, err := NewDecoder("klingon-8")
	assert.ErrorIs(t, err, ErrUnknownEncoding)
}

func TestDecodeUTF8(t *testing.T) {
	d, err := NewDecoder("utf-8")
	require.NoError(t, err)

	text, err := d.Decode("a.txt", []byte("\xEF\xBB\xBFx=1\n"))
	require.NoError(t, err)
	assert.Equal(t, "x=1\n", text, "BOM should be stripped")

	_, err = d.Decode("bad.txt", []byte("ok\n\xff\xfe"))
	var encErr *EncodingError
	require.True(t, errors.As(err, &encErr))
	assert.Equal(t, "bad.txt", encErr.Path)
	assert.Equal(t, "utf-8", encErr.Encoding)
	assert.Equal(t, 3, encErr.Offset)
}

func TestDecodeLatin1(t *testing.T) {
	d, err := NewDecoder("latin1")
	require.NoError(t, err)

	text, err := d.Decode("a.txt", []byte("caf\xe9"))
	require.NoError(t, err)
	assert.Equal(t, "café", text)
}

func TestReadText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("x=1\r\ny=2\n"), 0644))

	d, err := NewDecoder("utf-8")
	require.NoError(t, err)

	text, err := d.ReadText(NewFilesystem(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"x=1", "y=2"}, SplitLines(text))

	_, err = d.ReadText(NewFilesystem(), filepath.Join(dir, "missing.txt"))
	var readErr *ReadError
	require.True(t, errors.As(err, &readErr))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestSplitLines(t *testing.T) {
	assert.Nil(t, SplitLines(""))
	assert.Equal(t, []string{"a"}, SplitLines("a"))
	assert.Equal(t, []string{"a", "", "b"}, SplitLines("a\n\nb\n"))
	assert.Equal(t, []string{"a", "b"}, SplitLines("a\r\nb\r\n"))
}
