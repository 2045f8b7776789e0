package source

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ContentSource provides file content from a specific source.
type ContentSource interface {
	// Read returns the content of the file at path.
	Read(path string) ([]byte, error)
}

// FilesystemSource reads files from the local filesystem.
type FilesystemSource struct{}

// NewFilesystem creates a source that reads from the filesystem.
func NewFilesystem() *FilesystemSource {
	return &FilesystemSource{}
}

// Read implements ContentSource.
func (f *FilesystemSource) Read(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// ErrUnknownEncoding is returned for encoding names htmlindex does not know.
var ErrUnknownEncoding = errors.New("unknown text encoding")

// ReadError reports a file that could not be read.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return "read " + e.Path + ": " + e.Err.Error()
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// EncodingError reports bytes that are not valid under the configured encoding.
type EncodingError struct {
	Path     string
	Encoding string
	Offset   int
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("%s: invalid %s data at byte %d", e.Path, e.Encoding, e.Offset)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decoder turns raw file bytes into text under one configured encoding.
type Decoder struct {
	name string
	enc  encoding.Encoding
	utf8 bool
}

// NewDecoder resolves an encoding by its WHATWG label ("utf-8", "latin1",
// "windows-1252", "shift_jis", ...).
func NewDecoder(name string) (*Decoder, error) {
	label := strings.TrimSpace(name)
	if label == "" {
		label = "utf-8"
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
	}
	canonical, err := htmlindex.Name(enc)
	if err != nil {
		canonical = label
	}
	return &Decoder{
		name: canonical,
		enc:  enc,
		utf8: enc == unicode.UTF8,
	}, nil
}

// Name returns the canonical encoding name.
func (d *Decoder) Name() string {
	return d.name
}

// Decode converts data to a string. Invalid input yields an *EncodingError
// naming path.
func (d *Decoder) Decode(path string, data []byte) (string, error) {
	if d.utf8 {
		data = bytes.TrimPrefix(data, utf8BOM)
		if !utf8.Valid(data) {
			return "", &EncodingError{Path: path, Encoding: d.name, Offset: firstInvalidUTF8(data)}
		}
		return string(data), nil
	}

	out, n, err := transform.Bytes(d.enc.NewDecoder(), data)
	if err != nil {
		return "", &EncodingError{Path: path, Encoding: d.name, Offset: n}
	}
	return string(out), nil
}

// ReadText reads path from src and decodes it. Read failures are wrapped in
// *ReadError; decode failures are *EncodingError.
func (d *Decoder) ReadText(src ContentSource, path string) (string, error) {
	data, err := src.Read(path)
	if err != nil {
		return "", &ReadError{Path: path, Err: err}
	}
	return d.Decode(path, data)
}

func firstInvalidUTF8(data []byte) int {
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return len(data)
}

// SplitLines splits text into lines on "\n", dropping a trailing "\r" from
// each line. A final newline does not produce an extra empty line.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.TrimSuffix(text, "\n")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
