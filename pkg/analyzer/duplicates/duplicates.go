// Package duplicates finds runs of lines repeated across files.
//
// A run has two passes over one enumerated file list. The index pass
// normalizes and fingerprints every line and records which files contain
// each fingerprint. The merge pass walks each file again and merges
// consecutive shared lines into chunks against the frozen index.
package duplicates

import (
	"context"
	"errors"
	"fmt"

	"github.com/panbanda/dedoop/internal/cache"
	"github.com/panbanda/dedoop/internal/fileproc"
	"github.com/panbanda/dedoop/internal/scanner"
	"github.com/panbanda/dedoop/pkg/config"
	"github.com/panbanda/dedoop/pkg/source"
)

// Analyzer detects duplicated line runs across the files below a set of roots.
type Analyzer struct {
	scan    config.ScanConfig
	exclude config.ExcludeConfig
	src     source.ContentSource
}

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithConfig sets all scan settings from a config struct.
func WithConfig(cfg config.ScanConfig) Option {
	return func(a *Analyzer) {
		a.scan = cfg
	}
}

// WithExcludes sets the directories and patterns skipped while enumerating.
func WithExcludes(cfg config.ExcludeConfig) Option {
	return func(a *Analyzer) {
		a.exclude = cfg
	}
}

// WithMinLines sets the minimum chunk length.
func WithMinLines(n int) Option {
	return func(a *Analyzer) {
		a.scan.MinLines = n
	}
}

// WithExtension selects files by extension, with or without the dot.
func WithExtension(ext string) Option {
	return func(a *Analyzer) {
		a.scan.Extension = ext
	}
}

// WithCommentPrefix sets the line-comment marker. Empty detects it from
// the extension.
func WithCommentPrefix(prefix string) Option {
	return func(a *Analyzer) {
		a.scan.CommentPrefix = prefix
	}
}

// WithEncoding sets the text encoding files are decoded with.
func WithEncoding(name string) Option {
	return func(a *Analyzer) {
		a.scan.Encoding = name
	}
}

// WithFingerprint selects the line hash ("blake3" or "xxhash").
func WithFingerprint(algorithm string) Option {
	return func(a *Analyzer) {
		a.scan.Fingerprint = algorithm
	}
}

// WithWorkers bounds per-pass parallelism (0 = 2x NumCPU).
func WithWorkers(n int) Option {
	return func(a *Analyzer) {
		a.scan.Workers = n
	}
}

// WithCacheFiles sets how many parsed files are kept between passes.
func WithCacheFiles(n int) Option {
	return func(a *Analyzer) {
		a.scan.CacheFiles = n
	}
}

// WithSource sets where file content is read from.
func WithSource(src source.ContentSource) Option {
	return func(a *Analyzer) {
		a.src = src
	}
}

// New creates a new duplicate analyzer with default config.
func New(opts ...Option) *Analyzer {
	defaults := config.DefaultConfig()
	a := &Analyzer{
		scan:    defaults.Scan,
		exclude: defaults.Exclude,
		src:     source.NewFilesystem(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze runs both passes over the files below roots.
func (a *Analyzer) Analyze(ctx context.Context, roots []string) (*Analysis, error) {
	s, err := a.Enumerate(ctx, roots)
	if err != nil {
		return nil, err
	}
	if err := s.Index(ctx, nil); err != nil {
		return nil, err
	}
	if err := s.Merge(ctx, nil); err != nil {
		return nil, err
	}
	return s.Report(), nil
}

// Enumerate validates the settings and lists the files of one run. The
// returned session carries the run through Index, Merge and Report.
func (a *Analyzer) Enumerate(ctx context.Context, roots []string) (*Session, error) {
	if len(roots) == 0 {
		return nil, ErrNoFolders
	}

	cfg := &config.Config{Scan: a.scan, Exclude: a.exclude, Output: config.DefaultConfig().Output}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	decoder, err := source.NewDecoder(a.scan.Encoding)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	hasher, err := NewHasher(a.scan.Fingerprint)
	if err != nil {
		return nil, err
	}
	lines, err := cache.New[[]Line](a.scan.CacheFiles)
	if err != nil {
		return nil, err
	}

	result, err := scanner.NewScanner(cfg).Scan(ctx, roots)
	if err != nil {
		return nil, err
	}

	s := &Session{
		settings: Settings{
			Extension:     config.NormalizeExtension(a.scan.Extension),
			Encoding:      decoder.Name(),
			CommentPrefix: a.scan.EffectiveCommentPrefix(),
			MinLines:      a.scan.MinLines,
			Fingerprint:   hasher.Algorithm(),
		},
		workers: a.scan.Workers,
		src:     a.src,
		decoder: decoder,
		hasher:  hasher,
		files:   result.Files,
		skipped: make([]bool, len(result.Files)),
		index:   NewIndex(),
		lines:   lines,
	}
	for _, w := range result.Warnings {
		s.warnings = append(s.warnings, newWarning(w.Path, WarningWalk, w.Err))
	}
	return s, nil
}

// Session is one run over a fixed file list. Index must complete before
// Merge; both passes see the same list.
type Session struct {
	settings Settings
	workers  int
	src      source.ContentSource
	decoder  *source.Decoder
	hasher   *Hasher

	files    []string
	skipped  []bool
	index    *Index
	lines    *cache.Cache[[]Line]
	indexed  int
	chunks   [][]Chunk
	warnings []Warning
}

// Files returns the enumerated files in the order both passes use.
func (s *Session) Files() []string {
	return s.files
}

// Warnings returns the warnings collected so far.
func (s *Session) Warnings() []Warning {
	return s.warnings
}

// Index runs the first pass, recording every non-blank, non-comment line of
// every file, then freezes the index. Files that cannot be read or decoded
// are skipped by both passes.
func (s *Session) Index(ctx context.Context, onProgress fileproc.ProgressFunc) error {
	if s.index.Frozen() {
		return ErrIndexFrozen
	}

	counts, errs := fileproc.ForEachIndexed(ctx, s.files, s.workers, func(i int, path string) (int, error) {
		lines, err := s.parse(path)
		if err != nil {
			return 0, err
		}

		seen := make(map[Fingerprint]struct{}, len(lines))
		fps := make([]Fingerprint, 0, len(lines))
		n := 0
		for _, l := range lines {
			if l.Break {
				continue
			}
			n++
			if _, dup := seen[l.Fingerprint]; dup {
				continue
			}
			seen[l.Fingerprint] = struct{}{}
			fps = append(fps, l.Fingerprint)
		}
		if err := s.index.InsertFile(fps, uint32(i)); err != nil {
			return 0, err
		}

		s.lines.Set(path, lines)
		return n, nil
	}, onProgress)

	if err := ctx.Err(); err != nil {
		return err
	}
	for _, pe := range errs.Sorted() {
		s.skipped[pe.Index] = true
		s.warnings = append(s.warnings, fileWarning(pe.Path, pe.Err))
	}
	for _, n := range counts {
		s.indexed += n
	}

	s.index.Freeze()
	return nil
}

// Merge runs the second pass, merging shared lines of every file into
// chunks against the frozen index.
func (s *Session) Merge(ctx context.Context, onProgress fileproc.ProgressFunc) error {
	if !s.index.Frozen() {
		return ErrIndexNotFrozen
	}

	chunks, errs := fileproc.ForEachIndexed(ctx, s.files, s.workers, func(i int, path string) ([]Chunk, error) {
		if s.skipped[i] {
			return nil, nil
		}
		// Each file is merged once, so its entry can go now.
		lines, ok := s.lines.Get(path)
		s.lines.Invalidate(path)
		if !ok {
			var err error
			if lines, err = s.parse(path); err != nil {
				return nil, err
			}
		}

		m := NewMerger(s.index, s.files, s.settings.MinLines)
		m.Reset(uint32(i))
		for _, l := range lines {
			m.Feed(l)
		}
		return m.Finish(), nil
	}, onProgress)

	if err := ctx.Err(); err != nil {
		return err
	}
	for _, pe := range errs.Sorted() {
		s.warnings = append(s.warnings, fileWarning(pe.Path, pe.Err))
	}

	s.chunks = chunks
	s.lines.Clear()
	return nil
}

// Report assembles the chunks of a merged session.
func (s *Session) Report() *Analysis {
	chunks := Assemble(s.chunks)
	groups := GroupChunks(chunks)

	summary := summarize(chunks, groups, s.indexed)
	summary.FilesScanned = len(s.files)
	for _, skipped := range s.skipped {
		if skipped {
			summary.FilesSkipped++
		}
	}
	summary.UniqueLines = s.index.Len()
	cs := s.lines.GetStats()
	summary.CacheHits, summary.CacheMisses = cs.Hits, cs.Misses

	return &Analysis{
		Settings: s.settings,
		Chunks:   chunks,
		Groups:   groups,
		Warnings: s.warnings,
		Summary:  summary,
	}
}

// parse reads, decodes and normalizes one file.
func (s *Session) parse(path string) ([]Line, error) {
	text, err := s.decoder.ReadText(s.src, path)
	if err != nil {
		return nil, err
	}
	raw := source.SplitLines(text)
	lines := make([]Line, len(raw))
	for i, r := range raw {
		norm, isComment, isBlank := Normalize(r, s.settings.CommentPrefix)
		lines[i] = Line{Number: i + 1, Text: r}
		if isComment || isBlank {
			lines[i].Break = true
			continue
		}
		lines[i].Fingerprint = s.hasher.Sum(norm)
	}
	return lines, nil
}

// IsFatal reports whether err ends a run rather than being a per-file warning.
func IsFatal(err error) bool {
	return errors.Is(err, ErrNoFolders) || errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
