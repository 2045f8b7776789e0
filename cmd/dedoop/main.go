package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/panbanda/dedoop/pkg/analyzer/duplicates"
	"github.com/panbanda/dedoop/pkg/config"
	"github.com/urfave/cli/v2"
)

var (
	version = "dev"
	commit  = "none"    //nolint:unused // set via ldflags at build time
	date    = "unknown" //nolint:unused // set via ldflags at build time
)

// getPaths returns paths from positional args, falling back to the
// configured roots.
func getPaths(c *cli.Context, cfg *config.Config) []string {
	if c.Args().Len() > 0 {
		return c.Args().Slice()
	}
	return cfg.Scan.Roots
}

// loadConfig loads the --config file, or searches the default locations.
func loadConfig(c *cli.Context) (*config.LoadResult, error) {
	var opts []config.LoadOption
	if path := c.String("config"); path != "" {
		opts = append(opts, config.WithPath(path))
	}
	return config.LoadConfig(opts...)
}

func newApp() *cli.App {
	return &cli.App{
		Name:     "dedoop",
		Usage:    "Find lines duplicated across files",
		Version:  version,
		Metadata: make(map[string]interface{}),
		Description: `dedoop lists runs of lines that appear, ignoring whitespace, in two or
more files with the same extension. Blank lines and comment lines break runs.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (TOML, YAML, or JSON)",
				EnvVars: []string{"DEDOOP_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, json, markdown, toon, yaml",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write output to file",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Print pass timings and every warning",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable colored output",
			},
			&cli.StringFlag{
				Name:  "pprof",
				Usage: "Enable pprof profiling and write to specified prefix (creates <prefix>.cpu.pprof and <prefix>.mem.pprof)",
			},
		},
		// main maps errors to exit codes.
		ExitErrHandler: func(*cli.Context, error) {},
		Before: func(c *cli.Context) error {
			if c.Bool("no-color") {
				color.NoColor = true
			}
			if pprofPrefix := c.String("pprof"); pprofPrefix != "" {
				cpuFile, err := os.Create(pprofPrefix + ".cpu.pprof")
				if err != nil {
					return fmt.Errorf("failed to create CPU profile: %w", err)
				}
				if err := pprof.StartCPUProfile(cpuFile); err != nil {
					cpuFile.Close()
					return fmt.Errorf("failed to start CPU profile: %w", err)
				}
				c.App.Metadata["pprofCPU"] = cpuFile
			}
			return nil
		},
		After: func(c *cli.Context) error {
			pprofPrefix := c.String("pprof")
			if pprofPrefix == "" {
				return nil
			}
			pprof.StopCPUProfile()
			if cpuFile, ok := c.App.Metadata["pprofCPU"].(*os.File); ok {
				cpuFile.Close()
				color.Green("CPU profile written to %s.cpu.pprof", pprofPrefix)
			}

			memFile, err := os.Create(pprofPrefix + ".mem.pprof")
			if err != nil {
				return fmt.Errorf("failed to create memory profile: %w", err)
			}
			defer memFile.Close()

			runtime.GC() // Get up-to-date statistics
			if err := pprof.WriteHeapProfile(memFile); err != nil {
				return fmt.Errorf("failed to write memory profile: %w", err)
			}
			color.Green("Memory profile written to %s.mem.pprof", pprofPrefix)
			return nil
		},
		Commands: []*cli.Command{
			scanCmd(),
			configCmd(),
			mcpCmd(),
		},
	}
}

// Exit codes.
const (
	exitError      = 1
	exitFatal      = 2 // no roots, invalid settings, interrupted
	exitDuplicates = 3 // --fail-on-duplicates and something was found
)

func exitCode(err error) int {
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	if duplicates.IsFatal(err) {
		return exitFatal
	}
	return exitError
}

func main() {
	// A missing .env is normal.
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		if err.Error() != "" {
			color.Red("Error: %v", err)
		}
		os.Exit(exitCode(err))
	}
}
