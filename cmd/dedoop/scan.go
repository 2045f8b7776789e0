package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/panbanda/dedoop/internal/output"
	"github.com/panbanda/dedoop/internal/progress"
	"github.com/panbanda/dedoop/pkg/analyzer/duplicates"
	"github.com/panbanda/dedoop/pkg/config"
	"github.com/urfave/cli/v2"
)

func scanCmd() *cli.Command {
	return &cli.Command{
		Name:      "scan",
		Aliases:   []string{"s"},
		Usage:     "Find runs of lines shared by two or more files",
		ArgsUsage: "[path...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "ext",
				Aliases: []string{"e"},
				Usage:   "File extension to scan (default py)",
			},
			&cli.StringFlag{
				Name:  "encoding",
				Usage: "Text encoding of the files (default utf-8)",
			},
			&cli.StringFlag{
				Name:  "comment",
				Usage: "Line-comment prefix (default detected from the extension)",
			},
			&cli.IntFlag{
				Name:    "min-lines",
				Aliases: []string{"m"},
				Usage:   "Shortest run to report (default 2)",
			},
			&cli.StringFlag{
				Name:  "fingerprint",
				Usage: "Line hash: blake3 or xxhash",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Files processed in parallel (0 = 2x CPUs)",
			},
			&cli.IntFlag{
				Name:  "cache-files",
				Usage: "Parsed files kept in memory between passes",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Exclude files matching a gitignore-style pattern (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "no-gitignore",
				Usage: "Do not honor .gitignore files",
			},
			&cli.IntFlag{
				Name:    "top",
				Aliases: []string{"n"},
				Usage:   "Show only the N largest groups (0 = all)",
			},
			&cli.BoolFlag{
				Name:  "show-text",
				Usage: "Include the duplicated text in the report",
			},
			&cli.BoolFlag{
				Name:  "fail-on-duplicates",
				Usage: "Exit with status 3 when any duplicate is found",
			},
		},
		Action: runScanCmd,
	}
}

// applyFlags layers command-line values over the loaded configuration.
// Only flags given explicitly override.
func applyFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("ext") {
		cfg.Scan.Extension = c.String("ext")
		// A configured prefix belongs to the configured extension.
		cfg.Scan.CommentPrefix = ""
	}
	if c.IsSet("comment") {
		cfg.Scan.CommentPrefix = c.String("comment")
	}
	if c.IsSet("encoding") {
		cfg.Scan.Encoding = c.String("encoding")
	}
	if c.IsSet("min-lines") {
		cfg.Scan.MinLines = c.Int("min-lines")
	}
	if c.IsSet("fingerprint") {
		cfg.Scan.Fingerprint = c.String("fingerprint")
	}
	if c.IsSet("workers") {
		cfg.Scan.Workers = c.Int("workers")
	}
	if c.IsSet("cache-files") {
		cfg.Scan.CacheFiles = c.Int("cache-files")
	}
	if patterns := c.StringSlice("exclude"); len(patterns) > 0 {
		cfg.Exclude.Patterns = append(cfg.Exclude.Patterns, patterns...)
	}
	if c.Bool("no-gitignore") {
		cfg.Exclude.Gitignore = false
	}
	if c.IsSet("top") {
		cfg.Output.Top = c.Int("top")
	}
	if c.IsSet("show-text") {
		cfg.Output.ShowText = c.Bool("show-text")
	}
	if c.IsSet("format") {
		cfg.Output.Format = c.String("format")
	}
	if c.IsSet("verbose") {
		cfg.Output.Verbose = c.Bool("verbose")
	}
	if c.Bool("no-color") {
		cfg.Output.Color = false
	}
}

func runScanCmd(c *cli.Context) error {
	loaded, err := loadConfig(c)
	if err != nil {
		return err
	}
	cfg := loaded.Config
	applyFlags(c, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", duplicates.ErrInvalidConfig, err)
	}

	format := output.ParseFormat(cfg.Output.Format)
	formatter, err := output.NewFormatter(format, c.String("output"), cfg.Output.Color && format == output.FormatText)
	if err != nil {
		return err
	}
	defer formatter.Close()

	if cfg.Output.Verbose && loaded.Source != "" {
		formatter.Info("Using config %s", loaded.Source)
	}

	ctx, stop := signal.NotifyContext(contextOf(c), os.Interrupt, syscall.SIGTERM)
	defer stop()

	analysis, err := runPasses(ctx, cfg, getPaths(c, cfg), formatter, progress.Enabled())
	if err != nil {
		return err
	}

	if analysis.Summary.FilesScanned == 0 {
		formatter.Warning("No .%s files found", analysis.Settings.Extension)
	}
	reportWarnings(formatter, analysis.Warnings, cfg.Output.Verbose)

	view := output.NewDuplicatesView(analysis, cfg.Output.Top, cfg.Output.ShowText)
	if err := formatter.Output(view); err != nil {
		return err
	}

	if c.Bool("fail-on-duplicates") && len(analysis.Chunks) > 0 {
		return cli.Exit("", exitDuplicates)
	}
	return nil
}

// runPasses enumerates the roots and runs both passes, drawing one bar per
// stage when showProgress is set.
func runPasses(ctx context.Context, cfg *config.Config, roots []string, formatter *output.Formatter, showProgress bool) (*duplicates.Analysis, error) {
	analyzer := duplicates.New(
		duplicates.WithConfig(cfg.Scan),
		duplicates.WithExcludes(cfg.Exclude),
	)

	start := time.Now()
	var spinner *progress.Tracker
	if showProgress {
		spinner = progress.NewSpinner(os.Stderr, "Enumerating files...")
	}
	session, err := analyzer.Enumerate(ctx, roots)
	if err != nil {
		spinner.FinishError(err)
		return nil, err
	}
	spinner.FinishSuccess()
	if cfg.Output.Verbose {
		formatter.Info("Enumerated %d files in %s", len(session.Files()), time.Since(start).Round(time.Millisecond))
	}

	passes := []struct {
		label string
		run   func(context.Context, func()) error
	}{
		{"Indexing lines...", func(ctx context.Context, tick func()) error { return session.Index(ctx, tick) }},
		{"Merging chunks...", func(ctx context.Context, tick func()) error { return session.Merge(ctx, tick) }},
	}
	for _, pass := range passes {
		start = time.Now()
		var tracker *progress.Tracker
		if showProgress {
			tracker = progress.NewTracker(os.Stderr, pass.label, len(session.Files()))
		}
		if err := pass.run(ctx, tracker.Func()); err != nil {
			tracker.FinishError(err)
			return nil, err
		}
		tracker.FinishSuccess()
		if cfg.Output.Verbose {
			formatter.Info("%s done in %s", pass.label, time.Since(start).Round(time.Millisecond))
		}
	}

	return session.Report(), nil
}

// reportWarnings lists skipped paths on stderr, or only their count unless
// verbose.
func reportWarnings(formatter *output.Formatter, warnings []duplicates.Warning, verbose bool) {
	if len(warnings) == 0 {
		return
	}
	if !verbose {
		formatter.Warning("%d paths skipped (use --verbose for details)", len(warnings))
		return
	}
	for _, w := range warnings {
		formatter.Warning("[%s] %s", w.Kind, w.Message)
	}
}

func contextOf(c *cli.Context) context.Context {
	if c.Context != nil {
		return c.Context
	}
	return context.Background()
}
