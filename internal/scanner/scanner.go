package scanner

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/panbanda/dedoop/pkg/config"
)

// ErrNotDirectory is reported for roots that exist but are not directories.
var ErrNotDirectory = errors.New("not a directory")

// WalkError is a non-fatal problem met while walking a root: an unreadable
// directory, a broken or cyclic symlink, or a missing root.
type WalkError struct {
	Path string
	Err  error
}

func (e *WalkError) Error() string {
	return "walk " + e.Path + ": " + e.Err.Error()
}

func (e *WalkError) Unwrap() error {
	return e.Err
}

// Result is the ordered file list of one enumeration plus its warnings.
type Result struct {
	Files    []string
	Warnings []*WalkError
}

// Scanner finds files with one extension below a set of roots.
type Scanner struct {
	config   *config.Config
	suffix   string
	patterns gitignore.Matcher
	excluded map[string]bool
}

// NewScanner creates a new file scanner.
func NewScanner(cfg *config.Config) *Scanner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Scanner{
		config:   cfg,
		suffix:   "." + config.NormalizeExtension(cfg.Scan.Extension),
		excluded: make(map[string]bool, len(cfg.Exclude.Dirs)),
	}
	for _, d := range cfg.Exclude.Dirs {
		s.excluded[d] = true
	}

	// Config patterns are parsed as gitignore syntax relative to each root.
	if len(cfg.Exclude.Patterns) > 0 {
		var patterns []gitignore.Pattern
		for _, p := range cfg.Exclude.Patterns {
			patterns = append(patterns, gitignore.ParsePattern(p, nil))
		}
		s.patterns = gitignore.NewMatcher(patterns)
	}
	return s
}

// Matches reports whether a file name has the scanned extension. The match
// is case-sensitive.
func (s *Scanner) Matches(name string) bool {
	return len(name) > len(s.suffix) && strings.HasSuffix(name, s.suffix)
}

// Scan enumerates every root and returns the de-duplicated files sorted by
// path. Per-entry problems become warnings; only context cancellation
// aborts the scan.
func (s *Scanner) Scan(ctx context.Context, roots []string) (*Result, error) {
	result := &Result{}
	seen := make(map[string]bool)

	for _, root := range roots {
		if err := s.scanRoot(ctx, filepath.Clean(root), seen, result); err != nil {
			return nil, err
		}
	}

	sort.Strings(result.Files)
	return result, nil
}

// gitignoreFor builds a matcher from all .gitignore files of the repository
// containing root, along with the repository root it is relative to.
func (s *Scanner) gitignoreFor(absRoot string) (gitignore.Matcher, string) {
	if !s.config.Exclude.Gitignore {
		return nil, ""
	}
	gitRoot := findGitRoot(absRoot)
	if gitRoot == "" {
		return nil, ""
	}
	patterns, err := gitignore.ReadPatterns(osfs.New(gitRoot), nil)
	if err != nil || len(patterns) == 0 {
		return nil, ""
	}
	return gitignore.NewMatcher(patterns), gitRoot
}

func (s *Scanner) scanRoot(ctx context.Context, root string, seen map[string]bool, result *Result) error {
	info, err := os.Stat(root)
	if err != nil {
		result.Warnings = append(result.Warnings, &WalkError{Path: root, Err: err})
		return nil
	}
	if !info.IsDir() {
		result.Warnings = append(result.Warnings, &WalkError{Path: root, Err: ErrNotDirectory})
		return nil
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		result.Warnings = append(result.Warnings, &WalkError{Path: root, Err: err})
		return nil
	}
	if resolved, err := filepath.EvalSymlinks(absRoot); err == nil {
		absRoot = resolved
	}
	ignore, gitRoot := s.gitignoreFor(absRoot)

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			// Unreadable directory or vanished entry; keep walking.
			result.Warnings = append(result.Warnings, &WalkError{Path: path, Err: err})
			return nil
		}

		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		absPath := filepath.Join(absRoot, rel)

		if d.IsDir() {
			if s.isExcluded(rel, absPath, gitRoot, ignore, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if !s.Matches(d.Name()) || s.isExcluded(rel, absPath, gitRoot, ignore, false) {
			return nil
		}

		key := absPath
		if d.Type()&fs.ModeSymlink != 0 {
			// Symlinks are never followed into directories, so a walk cannot
			// loop; a cyclic or dangling link fails to resolve here.
			resolved, err := filepath.EvalSymlinks(path)
			if err != nil {
				result.Warnings = append(result.Warnings, &WalkError{Path: path, Err: err})
				return nil
			}
			target, err := os.Stat(resolved)
			if err != nil || !target.Mode().IsRegular() {
				return nil
			}
			if key, err = filepath.Abs(resolved); err != nil {
				return nil
			}
		} else if !d.Type().IsRegular() {
			return nil
		}

		if seen[key] {
			return nil
		}
		seen[key] = true
		result.Files = append(result.Files, path)
		return nil
	})
}

// isExcluded checks the configured dirs, config patterns and .gitignore.
func (s *Scanner) isExcluded(rel, absPath, gitRoot string, ignore gitignore.Matcher, isDir bool) bool {
	if isDir && s.excluded[filepath.Base(rel)] {
		return true
	}

	if s.patterns != nil && s.patterns.Match(splitPath(rel), isDir) {
		return true
	}

	if ignore != nil {
		rel, err := filepath.Rel(gitRoot, absPath)
		if err == nil && ignore.Match(splitPath(rel), isDir) {
			return true
		}
	}
	return false
}

func splitPath(rel string) []string {
	return strings.Split(filepath.ToSlash(rel), "/")
}

// findGitRoot finds the root of the git repository by looking for .git directory.
// Returns empty string if not in a git repository.
func findGitRoot(start string) string {
	dir := start
	for {
		gitDir := filepath.Join(dir, ".git")
		if info, err := os.Stat(gitDir); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
