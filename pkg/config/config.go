package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/panbanda/dedoop/pkg/source"
)

// Config holds all configuration options for dedoop.
type Config struct {
	// Scan settings consumed by the duplicate engine
	Scan ScanConfig `koanf:"scan" toml:"scan"`

	// File exclusion patterns
	Exclude ExcludeConfig `koanf:"exclude" toml:"exclude"`

	// Output settings
	Output OutputConfig `koanf:"output" toml:"output"`
}

// ScanConfig controls what is scanned and how lines are compared.
type ScanConfig struct {
	Roots         []string `koanf:"roots" toml:"roots"`
	Extension     string   `koanf:"extension" toml:"extension"`
	Encoding      string   `koanf:"encoding" toml:"encoding"`
	CommentPrefix string   `koanf:"comment_prefix" toml:"comment_prefix"` // empty = detect from extension
	MinLines      int      `koanf:"min_lines" toml:"min_lines"`
	Fingerprint   string   `koanf:"fingerprint" toml:"fingerprint"` // blake3 or xxhash
	Workers       int      `koanf:"workers" toml:"workers"`         // 0 = 2x NumCPU
	CacheFiles    int      `koanf:"cache_files" toml:"cache_files"` // decoded files kept between passes
}

// ExcludeConfig defines file exclusion patterns.
type ExcludeConfig struct {
	Patterns  []string `koanf:"patterns" toml:"patterns"` // gitignore syntax
	Dirs      []string `koanf:"dirs" toml:"dirs"`
	Gitignore bool     `koanf:"gitignore" toml:"gitignore"`
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format   string `koanf:"format" toml:"format"` // text, json, markdown, toon, yaml
	Color    bool   `koanf:"color" toml:"color"`
	Verbose  bool   `koanf:"verbose" toml:"verbose"`
	Top      int    `koanf:"top" toml:"top"` // 0 = all
	ShowText bool   `koanf:"show_text" toml:"show_text"`
}

// Fingerprint algorithm names.
const (
	FingerprintBLAKE3 = "blake3"
	FingerprintXXHash = "xxhash"
)

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Scan: ScanConfig{
			Roots:       []string{"."},
			Extension:   "py",
			Encoding:    "utf-8",
			MinLines:    2,
			Fingerprint: FingerprintBLAKE3,
			Workers:     0,
			CacheFiles:  512,
		},
		Exclude: ExcludeConfig{
			Dirs: []string{
				".git",
				".dedoop",
				"vendor",
				"node_modules",
				"__pycache__",
			},
			Gitignore: true,
		},
		Output: OutputConfig{
			Format:   "text",
			Color:    true,
			Verbose:  false,
			Top:      0,
			ShowText: true,
		},
	}
}

// ValidationError collects every invalid setting found by Validate.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	var problems []string

	if NormalizeExtension(c.Scan.Extension) == "" {
		problems = append(problems, "scan.extension must not be empty")
	}
	if c.Scan.MinLines < 1 {
		problems = append(problems, fmt.Sprintf("scan.min_lines must be >= 1 (got %d)", c.Scan.MinLines))
	}
	switch strings.ToLower(c.Scan.Fingerprint) {
	case "", FingerprintBLAKE3, FingerprintXXHash:
	default:
		problems = append(problems, fmt.Sprintf("scan.fingerprint must be %q or %q (got %q)", FingerprintBLAKE3, FingerprintXXHash, c.Scan.Fingerprint))
	}
	if _, err := source.NewDecoder(c.Scan.Encoding); err != nil {
		problems = append(problems, "scan.encoding: "+err.Error())
	}
	if c.Scan.Workers < 0 {
		problems = append(problems, fmt.Sprintf("scan.workers must be >= 0 (got %d)", c.Scan.Workers))
	}
	switch strings.ToLower(c.Output.Format) {
	case "", "text", "json", "markdown", "md", "toon", "yaml", "yml":
	default:
		problems = append(problems, fmt.Sprintf("output.format %q is not supported", c.Output.Format))
	}
	if c.Output.Top < 0 {
		problems = append(problems, fmt.Sprintf("output.top must be >= 0 (got %d)", c.Output.Top))
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// LoadResult is a loaded configuration and where it came from.
type LoadResult struct {
	Config *Config
	Source string // empty when defaults were used
}

type loadOptions struct {
	path string
	dirs []string
}

// LoadOption configures LoadConfig.
type LoadOption func(*loadOptions)

// WithPath loads exactly this file instead of searching.
func WithPath(path string) LoadOption {
	return func(o *loadOptions) {
		o.path = path
	}
}

// WithSearchDirs overrides the directories searched for a config file.
func WithSearchDirs(dirs ...string) LoadOption {
	return func(o *loadOptions) {
		o.dirs = dirs
	}
}

// configNames are the standard config file names searched for.
var configNames = []string{
	"dedoop.toml",
	"dedoop.yaml",
	"dedoop.yml",
	"dedoop.json",
	".dedoop.toml",
	".dedoop.yaml",
	".dedoop.yml",
	".dedoop.json",
}

// ErrConfigNotFound is returned when an explicit config path does not exist.
var ErrConfigNotFound = errors.New("config file not found")

// LoadConfig loads and validates configuration. With WithPath the file must
// exist; otherwise the search directories are tried in order and defaults
// are used when nothing is found.
func LoadConfig(opts ...LoadOption) (*LoadResult, error) {
	o := loadOptions{dirs: []string{".", ".dedoop"}}
	for _, opt := range opts {
		opt(&o)
	}

	if o.path != "" {
		if _, err := os.Stat(o.path); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, o.path)
		}
		cfg, err := Load(o.path)
		if err != nil {
			return nil, err
		}
		return &LoadResult{Config: cfg, Source: o.path}, cfg.Validate()
	}

	for _, dir := range o.dirs {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			cfg, err := Load(path)
			if err != nil {
				return nil, err
			}
			return &LoadResult{Config: cfg, Source: path}, cfg.Validate()
		}
	}

	return &LoadResult{Config: DefaultConfig()}, nil
}

// Load loads configuration from a file on top of the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	// Determine parser based on extension
	var parser koanf.Parser
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".toml":
		parser = toml.Parser()
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	return cfg, nil
}

// NormalizeExtension strips surrounding whitespace and a leading dot.
func NormalizeExtension(ext string) string {
	return strings.TrimPrefix(strings.TrimSpace(ext), ".")
}

// EffectiveCommentPrefix returns the configured comment prefix, or the
// default for the configured extension when none is set.
func (s ScanConfig) EffectiveCommentPrefix() string {
	if s.CommentPrefix != "" {
		return s.CommentPrefix
	}
	return CommentPrefixFor(s.Extension)
}

// CommentPrefixFor returns the line-comment marker for a file extension, or
// "" when the extension is unknown.
func CommentPrefixFor(ext string) string {
	return commentPrefixes[strings.ToLower(NormalizeExtension(ext))]
}

// commentPrefixes maps extensions (without dot, lower case) to line-comment markers.
var commentPrefixes = map[string]string{
	// C-style
	"go": "//", "c": "//", "h": "//", "cpp": "//", "hpp": "//", "cc": "//", "cxx": "//",
	"java": "//", "js": "//", "jsx": "//", "ts": "//", "tsx": "//", "cs": "//",
	"swift": "//", "kt": "//", "kts": "//", "scala": "//", "rs": "//", "php": "//",
	"m": "//", "mm": "//", "dart": "//", "zig": "//",
	// Hash-style
	"py": "#", "rb": "#", "sh": "#", "bash": "#", "zsh": "#", "pl": "#", "pm": "#",
	"r": "#", "yaml": "#", "yml": "#", "toml": "#", "tf": "#", "cmake": "#",
	"mk": "#", "ps1": "#", "nim": "#", "jl": "#", "ex": "#", "exs": "#", "cr": "#",
	// Double-dash style
	"sql": "--", "lua": "--", "hs": "--", "elm": "--", "ada": "--", "vhdl": "--",
	// Semicolon style
	"lisp": ";", "cl": ";", "scm": ";", "clj": ";", "cljs": ";", "el": ";", "asm": ";",
	// Percent style
	"tex": "%", "erl": "%", "hrl": "%",
	// Apostrophe style
	"vb": "'", "bas": "'", "vbs": "'",
}
