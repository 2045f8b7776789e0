package duplicates

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/panbanda/dedoop/internal/testutil"
	"github.com/panbanda/dedoop/pkg/config"
	"github.com/panbanda/dedoop/pkg/source"
)

// txtAnalyzer scans .txt files with "#" comments.
func txtAnalyzer(opts ...Option) *Analyzer {
	base := []Option{WithExtension("txt"), WithCommentPrefix("#"), WithMinLines(2)}
	return New(append(base, opts...)...)
}

func TestNew(t *testing.T) {
	a := New()
	if a == nil {
		t.Fatal("New() returned nil")
	}
	if a.scan.MinLines != 2 {
		t.Errorf("MinLines = %d, want 2", a.scan.MinLines)
	}
	if a.scan.Extension != "py" {
		t.Errorf("Extension = %q, want py", a.scan.Extension)
	}
	if a.src == nil {
		t.Error("analyzer.src is nil")
	}
	if !a.exclude.Gitignore {
		t.Error("exclude.Gitignore should default to true")
	}
}

func TestNewWithOptions(t *testing.T) {
	scan := config.DefaultConfig().Scan
	scan.MinLines = 9
	a := New(
		WithConfig(scan),
		WithExtension(".go"),
		WithEncoding("latin1"),
		WithFingerprint("xxhash"),
		WithWorkers(3),
		WithCacheFiles(0),
		WithExcludes(config.ExcludeConfig{Dirs: []string{"gen"}}),
	)

	if a.scan.MinLines != 9 {
		t.Errorf("MinLines = %d, want 9", a.scan.MinLines)
	}
	if a.scan.Extension != ".go" || a.scan.Encoding != "latin1" || a.scan.Fingerprint != "xxhash" {
		t.Errorf("scan = %+v", a.scan)
	}
	if a.scan.Workers != 3 || a.scan.CacheFiles != 0 {
		t.Errorf("Workers/CacheFiles = %d/%d, want 3/0", a.scan.Workers, a.scan.CacheFiles)
	}
	if len(a.exclude.Dirs) != 1 || a.exclude.Gitignore {
		t.Errorf("exclude = %+v", a.exclude)
	}
}

func TestAnalyze_IdenticalFiles(t *testing.T) {
	tmpDir := t.TempDir()
	testutil.CreateFileTree(t, tmpDir, map[string]string{
		"a.txt": testutil.Lines("x=1", "y=2", "z=3"),
		"b.txt": testutil.Lines("x=1", "y=2", "z=3"),
	})
	a, b := filepath.Join(tmpDir, "a.txt"), filepath.Join(tmpDir, "b.txt")

	analysis, err := txtAnalyzer().Analyze(context.Background(), []string{tmpDir})
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}

	want := []Chunk{
		{File: a, StartLine: 1, EndLine: 3, Lines: 3, Files: []string{a, b}, Text: "x=1\ny=2\nz=3"},
		{File: b, StartLine: 1, EndLine: 3, Lines: 3, Files: []string{a, b}, Text: "x=1\ny=2\nz=3"},
	}
	if !reflect.DeepEqual(analysis.Chunks, want) {
		t.Errorf("Chunks = %+v\nwant %+v", analysis.Chunks, want)
	}

	if len(analysis.Groups) != 1 || len(analysis.Groups[0].Instances) != 2 {
		t.Errorf("Groups = %+v, want one group of two", analysis.Groups)
	}

	s := analysis.Summary
	if s.FilesScanned != 2 || s.FilesWithDuplicates != 2 {
		t.Errorf("files scanned/with duplicates = %d/%d, want 2/2", s.FilesScanned, s.FilesWithDuplicates)
	}
	if s.IndexedLines != 6 || s.UniqueLines != 3 {
		t.Errorf("indexed/unique = %d/%d, want 6/3", s.IndexedLines, s.UniqueLines)
	}
	if s.DuplicatedLines != 6 || s.DuplicationRatio != 1.0 {
		t.Errorf("duplicated = %d ratio %v, want 6 and 1.0", s.DuplicatedLines, s.DuplicationRatio)
	}
	if s.CacheHits != 2 {
		t.Errorf("CacheHits = %d, want 2", s.CacheHits)
	}

	if analysis.Settings.Extension != "txt" || analysis.Settings.Fingerprint != "blake3" || analysis.Settings.Encoding != "utf-8" {
		t.Errorf("Settings = %+v", analysis.Settings)
	}
}

func TestAnalyze_BrokenContinuity(t *testing.T) {
	tmpDir := t.TempDir()
	testutil.CreateFileTree(t, tmpDir, map[string]string{
		"a.txt": testutil.Lines("x=1", "y=2"),
		"b.txt": testutil.Lines("x=1", "q=9"),
	})

	analysis, err := txtAnalyzer().Analyze(context.Background(), []string{tmpDir})
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if len(analysis.Chunks) != 0 {
		t.Errorf("Chunks = %+v, want none", analysis.Chunks)
	}
}

func TestAnalyze_NoMatchingFiles(t *testing.T) {
	tmpDir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(tmpDir, "main.go"), "package main\n")

	analysis, err := txtAnalyzer().Analyze(context.Background(), []string{tmpDir})
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if len(analysis.Chunks) != 0 || analysis.Summary.FilesScanned != 0 {
		t.Errorf("analysis = %+v, want empty", analysis)
	}
	if len(analysis.Warnings) != 0 {
		t.Errorf("Warnings = %+v, want none", analysis.Warnings)
	}
}

func TestAnalyze_NoFolders(t *testing.T) {
	_, err := New().Analyze(context.Background(), nil)
	if !errors.Is(err, ErrNoFolders) {
		t.Errorf("Analyze(nil) error = %v, want ErrNoFolders", err)
	}
	if !IsFatal(err) {
		t.Error("ErrNoFolders should be fatal")
	}
}

func TestAnalyze_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"zero min lines", WithMinLines(0)},
		{"unknown encoding", WithEncoding("klingon")},
		{"unknown fingerprint", WithFingerprint("md5")},
		{"empty extension", WithExtension(".")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opt).Analyze(context.Background(), []string{t.TempDir()})
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestAnalyze_CommentSplitsRun(t *testing.T) {
	tmpDir := t.TempDir()
	testutil.CreateFileTree(t, tmpDir, map[string]string{
		"a.txt": testutil.Lines("a1", "a2", "a3", "# split", "a4", "a5", "a6"),
		"b.txt": testutil.Lines("a1", "a2", "a3", "a4", "a5", "a6"),
	})
	a := filepath.Join(tmpDir, "a.txt")

	analysis, err := txtAnalyzer().Analyze(context.Background(), []string{tmpDir})
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}

	var fromA []Chunk
	for _, c := range analysis.Chunks {
		if c.File == a {
			fromA = append(fromA, c)
		}
	}
	if len(fromA) != 2 || fromA[0].Lines != 3 || fromA[1].Lines != 3 {
		t.Fatalf("chunks from a.txt = %+v, want two 3-line chunks", fromA)
	}
	if fromA[0].StartLine != 1 || fromA[1].StartLine != 5 {
		t.Errorf("start lines = %d, %d, want 1, 5", fromA[0].StartLine, fromA[1].StartLine)
	}
	// Longest first: b.txt's uninterrupted copy leads.
	if analysis.Chunks[0].Lines != 6 {
		t.Errorf("first chunk has %d lines, want 6", analysis.Chunks[0].Lines)
	}
}

func TestAnalyze_DuplicateBlockAmongUniqueLines(t *testing.T) {
	block := []string{"def total(items):", "    s = 0", "    for i in items:", "        s += i", "    return s"}
	tmpDir := t.TempDir()
	testutil.CreateFileTree(t, tmpDir, map[string]string{
		"one.py":       testutil.Lines(append(append([]string{"import os", ""}, block...), "print(1)")...),
		"two.py":       testutil.Lines(append([]string{"import sys"}, block...)...),
		"pkg/three.py": testutil.Lines("x = 1"),
	})

	analysis, err := New().Analyze(context.Background(), []string{tmpDir})
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if len(analysis.Chunks) != 2 {
		t.Fatalf("Chunks = %+v, want 2", analysis.Chunks)
	}
	for _, c := range analysis.Chunks {
		if c.Lines != len(block) {
			t.Errorf("%s: Lines = %d, want %d", c.File, c.Lines, len(block))
		}
	}
	if got := analysis.Chunks[0].StartLine; got != 3 {
		t.Errorf("one.py StartLine = %d, want 3", got)
	}
	if got := analysis.Chunks[1].StartLine; got != 2 {
		t.Errorf("two.py StartLine = %d, want 2", got)
	}
}

func TestAnalyze_EncodingWarning(t *testing.T) {
	tmpDir := t.TempDir()
	testutil.CreateFileTree(t, tmpDir, map[string]string{
		"a.txt": testutil.Lines("x=1", "y=2"),
		"b.txt": testutil.Lines("x=1", "y=2"),
	})
	bad := filepath.Join(tmpDir, "c.txt")
	testutil.WriteBytes(t, bad, []byte("x=1\ny=2\n\xff\n"))

	analysis, err := txtAnalyzer().Analyze(context.Background(), []string{tmpDir})
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if len(analysis.Warnings) != 1 {
		t.Fatalf("Warnings = %+v, want 1", analysis.Warnings)
	}
	w := analysis.Warnings[0]
	if w.Path != bad || w.Kind != WarningEncoding {
		t.Errorf("warning = %+v, want encoding warning for c.txt", w)
	}
	var encErr *source.EncodingError
	if !errors.As(w.Err, &encErr) || encErr.Offset != 8 {
		t.Errorf("warning error = %v, want EncodingError at byte 8", w.Err)
	}

	// The skipped file is not part of any file-set.
	for _, c := range analysis.Chunks {
		if len(c.Files) != 2 {
			t.Errorf("chunk files = %v, want a.txt and b.txt only", c.Files)
		}
	}
	if analysis.Summary.FilesSkipped != 1 {
		t.Errorf("FilesSkipped = %d, want 1", analysis.Summary.FilesSkipped)
	}
}

func TestAnalyze_Latin1(t *testing.T) {
	tmpDir := t.TempDir()
	content := []byte("caf\xe9 = 1\nna\xefve = 2\n")
	testutil.WriteBytes(t, filepath.Join(tmpDir, "a.txt"), content)
	testutil.WriteBytes(t, filepath.Join(tmpDir, "b.txt"), content)

	analysis, err := txtAnalyzer(WithEncoding("latin1")).Analyze(context.Background(), []string{tmpDir})
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if len(analysis.Chunks) != 2 {
		t.Fatalf("Chunks = %+v, want 2", analysis.Chunks)
	}
	if analysis.Chunks[0].Text != "café = 1\nnaïve = 2" {
		t.Errorf("Text = %q", analysis.Chunks[0].Text)
	}
	if analysis.Settings.Encoding != "windows-1252" {
		t.Errorf("Encoding = %q, want windows-1252", analysis.Settings.Encoding)
	}
}

func TestAnalyze_MissingRootWarning(t *testing.T) {
	tmpDir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(tmpDir, "a.txt"), "x=1\n")
	missing := filepath.Join(tmpDir, "nope")

	analysis, err := txtAnalyzer().Analyze(context.Background(), []string{missing, tmpDir})
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if len(analysis.Warnings) != 1 || analysis.Warnings[0].Kind != WarningWalk {
		t.Errorf("Warnings = %+v, want one walk warning", analysis.Warnings)
	}
	if analysis.Summary.FilesScanned != 1 {
		t.Errorf("FilesScanned = %d, want 1", analysis.Summary.FilesScanned)
	}
}

func TestAnalyze_Idempotent(t *testing.T) {
	tmpDir := t.TempDir()
	testutil.CreateFileTree(t, tmpDir, map[string]string{
		"a.txt":     testutil.Lines("a", "b", "c", "d", "e"),
		"b.txt":     testutil.Lines("a", "b", "x", "d", "e"),
		"sub/c.txt": testutil.Lines("b", "c", "d", "e", "f"),
	})

	first, err := txtAnalyzer().Analyze(context.Background(), []string{tmpDir})
	if err != nil {
		t.Fatal(err)
	}
	second, err := txtAnalyzer(WithWorkers(1)).Analyze(context.Background(), []string{tmpDir})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first.Chunks, second.Chunks) {
		t.Errorf("runs differ:\n%+v\n%+v", first.Chunks, second.Chunks)
	}
	if len(first.Chunks) == 0 {
		t.Error("expected some chunks")
	}
}

func TestAnalyze_OptionsDoNotChangeResult(t *testing.T) {
	tmpDir := t.TempDir()
	testutil.CreateFileTree(t, tmpDir, map[string]string{
		"a.txt": testutil.Lines("a", "b", "c", "q"),
		"b.txt": testutil.Lines("a", "b", "c", "r"),
		"c.txt": testutil.Lines("z", "b", "c"),
	})

	base, err := txtAnalyzer().Analyze(context.Background(), []string{tmpDir})
	if err != nil {
		t.Fatal(err)
	}

	variants := map[string]*Analyzer{
		"xxhash":     txtAnalyzer(WithFingerprint("xxhash")),
		"no cache":   txtAnalyzer(WithCacheFiles(0)),
		"tiny cache": txtAnalyzer(WithCacheFiles(1)),
	}
	for name, a := range variants {
		got, err := a.Analyze(context.Background(), []string{tmpDir})
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !reflect.DeepEqual(base.Chunks, got.Chunks) {
			t.Errorf("%s: chunks differ:\n%+v\n%+v", name, base.Chunks, got.Chunks)
		}
	}
}

func TestAnalyze_Cancelled(t *testing.T) {
	tmpDir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(tmpDir, "a.txt"), "x=1\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := txtAnalyzer().Analyze(ctx, []string{tmpDir})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Analyze() error = %v, want context.Canceled", err)
	}
}

func TestSession_PassOrder(t *testing.T) {
	tmpDir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(tmpDir, "a.txt"), "x=1\n")
	ctx := context.Background()

	s, err := txtAnalyzer().Enumerate(ctx, []string{tmpDir})
	if err != nil {
		t.Fatalf("Enumerate() error: %v", err)
	}
	if err := s.Merge(ctx, nil); !errors.Is(err, ErrIndexNotFrozen) {
		t.Errorf("Merge before Index = %v, want ErrIndexNotFrozen", err)
	}
	if err := s.Index(ctx, nil); err != nil {
		t.Fatalf("Index() error: %v", err)
	}
	if err := s.Index(ctx, nil); !errors.Is(err, ErrIndexFrozen) {
		t.Errorf("second Index = %v, want ErrIndexFrozen", err)
	}
	if err := s.Merge(ctx, nil); err != nil {
		t.Fatalf("Merge() error: %v", err)
	}
}

func TestSession_Progress(t *testing.T) {
	tmpDir := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt", "c.txt", "d.txt"} {
		testutil.WriteFile(t, filepath.Join(tmpDir, name), "x=1\ny=2\n")
	}
	ctx := context.Background()

	s, err := txtAnalyzer().Enumerate(ctx, []string{tmpDir})
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Files()) != 4 {
		t.Fatalf("Files() = %v, want 4", s.Files())
	}

	var indexed, merged atomic.Int32
	if err := s.Index(ctx, func() { indexed.Add(1) }); err != nil {
		t.Fatal(err)
	}
	if err := s.Merge(ctx, func() { merged.Add(1) }); err != nil {
		t.Fatal(err)
	}
	if indexed.Load() != 4 || merged.Load() != 4 {
		t.Errorf("progress ticks = %d/%d, want 4/4", indexed.Load(), merged.Load())
	}
	if got := len(s.Report().Chunks); got != 4 {
		t.Errorf("Report() has %d chunks, want 4", got)
	}
}

// flakySource fails reads of one path, optionally only after the first one.
type flakySource struct {
	fail       string
	afterFirst bool
	err        error

	mu    sync.Mutex
	reads map[string]int
}

func (f *flakySource) Read(path string) ([]byte, error) {
	f.mu.Lock()
	f.reads[path]++
	n := f.reads[path]
	f.mu.Unlock()

	if path == f.fail && (!f.afterFirst || n > 1) {
		return nil, f.err
	}
	return os.ReadFile(path)
}

func TestAnalyze_ReadWarning(t *testing.T) {
	tmpDir := t.TempDir()
	testutil.CreateFileTree(t, tmpDir, map[string]string{
		"a.txt": testutil.Lines("x=1", "y=2"),
		"b.txt": testutil.Lines("x=1", "y=2"),
		"c.txt": testutil.Lines("x=1", "y=2"),
	})
	locked := filepath.Join(tmpDir, "b.txt")
	src := &flakySource{fail: locked, err: os.ErrPermission, reads: map[string]int{}}

	analysis, err := txtAnalyzer(WithSource(src)).Analyze(context.Background(), []string{tmpDir})
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if len(analysis.Warnings) != 1 {
		t.Fatalf("Warnings = %+v, want 1", analysis.Warnings)
	}
	w := analysis.Warnings[0]
	if w.Kind != WarningRead || !errors.Is(w.Err, os.ErrPermission) {
		t.Errorf("warning = %+v, want read warning with permission error", w)
	}
	var readErr *source.ReadError
	if !errors.As(w.Err, &readErr) || readErr.Path != locked {
		t.Errorf("warning error = %v, want ReadError for b.txt", w.Err)
	}
	if len(analysis.Chunks) != 2 {
		t.Errorf("Chunks = %+v, want a.txt and c.txt only", analysis.Chunks)
	}
	// Skipped in the second pass too.
	if src.reads[locked] != 1 {
		t.Errorf("b.txt read %d times, want 1", src.reads[locked])
	}
}

func TestAnalyze_SecondPassReadWarning(t *testing.T) {
	tmpDir := t.TempDir()
	testutil.CreateFileTree(t, tmpDir, map[string]string{
		"a.txt": testutil.Lines("x=1", "y=2"),
		"b.txt": testutil.Lines("x=1", "y=2"),
	})
	vanishing := filepath.Join(tmpDir, "b.txt")
	src := &flakySource{fail: vanishing, afterFirst: true, err: os.ErrNotExist, reads: map[string]int{}}

	analysis, err := txtAnalyzer(WithSource(src), WithCacheFiles(0)).Analyze(context.Background(), []string{tmpDir})
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if len(analysis.Warnings) != 1 || analysis.Warnings[0].Path != vanishing {
		t.Fatalf("Warnings = %+v, want one for b.txt", analysis.Warnings)
	}
	// a.txt still reports its duplicate: b.txt was indexed before it vanished.
	if len(analysis.Chunks) != 1 || analysis.Chunks[0].File != filepath.Join(tmpDir, "a.txt") {
		t.Errorf("Chunks = %+v, want one from a.txt", analysis.Chunks)
	}
}
