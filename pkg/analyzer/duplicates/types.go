package duplicates

import (
	"errors"

	"github.com/panbanda/dedoop/pkg/source"
)

// Line is one source line after normalization. Break lines (blank or
// comment) are never indexed and end any run of duplicated lines.
type Line struct {
	Number      int
	Text        string
	Fingerprint Fingerprint
	Break       bool
}

// Chunk is a run of consecutive lines in one file whose lines all recur in
// every file of Files.
type Chunk struct {
	File      string   `json:"file" yaml:"file"`
	StartLine int      `json:"start_line" yaml:"start_line"`
	EndLine   int      `json:"end_line" yaml:"end_line"`
	Lines     int      `json:"lines" yaml:"lines"`
	Files     []string `json:"files" yaml:"files"`
	Text      string   `json:"text,omitempty" yaml:"text,omitempty"`
}

// Instance is where one chunk of a group starts and ends.
type Instance struct {
	File      string `json:"file" yaml:"file"`
	StartLine int    `json:"start_line" yaml:"start_line"`
	EndLine   int    `json:"end_line" yaml:"end_line"`
}

// Group collects chunks with identical text and file-set: the same
// duplicate seen from each file that contains it.
type Group struct {
	ID        int        `json:"id" yaml:"id"`
	Lines     int        `json:"lines" yaml:"lines"`
	Files     []string   `json:"files" yaml:"files"`
	Text      string     `json:"text,omitempty" yaml:"text,omitempty"`
	Instances []Instance `json:"instances" yaml:"instances"`
}

// WarningKind classifies a non-fatal problem.
type WarningKind string

const (
	WarningWalk     WarningKind = "walk"
	WarningRead     WarningKind = "read"
	WarningEncoding WarningKind = "encoding"
)

// Warning is a per-file problem collected during a run. The file it names
// took no part in the report.
type Warning struct {
	Path    string      `json:"path" yaml:"path"`
	Kind    WarningKind `json:"kind" yaml:"kind"`
	Message string      `json:"message" yaml:"message"`
	Err     error       `json:"-" yaml:"-"`
}

func newWarning(path string, kind WarningKind, err error) Warning {
	return Warning{Path: path, Kind: kind, Message: err.Error(), Err: err}
}

// fileWarning classifies a read or decode failure.
func fileWarning(path string, err error) Warning {
	var encErr *source.EncodingError
	if errors.As(err, &encErr) {
		return newWarning(path, WarningEncoding, err)
	}
	return newWarning(path, WarningRead, err)
}

// Hotspot is a file ranked by how many of its lines are duplicated.
type Hotspot struct {
	File            string `json:"file" yaml:"file"`
	DuplicatedLines int    `json:"duplicated_lines" yaml:"duplicated_lines"`
	Chunks          int    `json:"chunks" yaml:"chunks"`
}

// Summary provides aggregate statistics.
type Summary struct {
	FilesScanned        int       `json:"files_scanned" yaml:"files_scanned"`
	FilesSkipped        int       `json:"files_skipped" yaml:"files_skipped"`
	FilesWithDuplicates int       `json:"files_with_duplicates" yaml:"files_with_duplicates"`
	IndexedLines        int       `json:"indexed_lines" yaml:"indexed_lines"`
	UniqueLines         int       `json:"unique_lines" yaml:"unique_lines"`
	TotalChunks         int       `json:"total_chunks" yaml:"total_chunks"`
	TotalGroups         int       `json:"total_groups" yaml:"total_groups"`
	DuplicatedLines     int       `json:"duplicated_lines" yaml:"duplicated_lines"`
	DuplicationRatio    float64   `json:"duplication_ratio" yaml:"duplication_ratio"`
	MeanChunkLines      float64   `json:"mean_chunk_lines" yaml:"mean_chunk_lines"`
	P50ChunkLines       float64   `json:"p50_chunk_lines" yaml:"p50_chunk_lines"`
	P95ChunkLines       float64   `json:"p95_chunk_lines" yaml:"p95_chunk_lines"`
	LargestChunk        int       `json:"largest_chunk" yaml:"largest_chunk"`
	CacheHits           int64     `json:"cache_hits" yaml:"cache_hits"`
	CacheMisses         int64     `json:"cache_misses" yaml:"cache_misses"`
	Hotspots            []Hotspot `json:"hotspots,omitempty" yaml:"hotspots,omitempty"`
}

// Settings echoes the options a run used.
type Settings struct {
	Extension     string `json:"extension" yaml:"extension"`
	Encoding      string `json:"encoding" yaml:"encoding"`
	CommentPrefix string `json:"comment_prefix" yaml:"comment_prefix"`
	MinLines      int    `json:"min_lines" yaml:"min_lines"`
	Fingerprint   string `json:"fingerprint" yaml:"fingerprint"`
}

// Analysis is the full result of one run.
type Analysis struct {
	Settings Settings  `json:"settings" yaml:"settings"`
	Chunks   []Chunk   `json:"chunks" yaml:"chunks"`
	Groups   []Group   `json:"groups,omitempty" yaml:"groups,omitempty"`
	Warnings []Warning `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Summary  Summary   `json:"summary" yaml:"summary"`
}
