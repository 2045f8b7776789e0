// Package progress draws per-pass progress bars on a terminal.
package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/panbanda/dedoop/internal/fileproc"
	"github.com/schollz/progressbar/v3"
)

// Tracker wraps a progress bar for one pass over the file list. A nil
// Tracker is valid and draws nothing.
type Tracker struct {
	bar   *progressbar.ProgressBar
	w     io.Writer
	label string
}

// Enabled reports whether bars should be drawn on stderr.
func Enabled() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// NewSpinner creates a spinner for the enumeration, whose total is unknown.
func NewSpinner(w io.Writer, label string) *Tracker {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(20),
		progressbar.OptionSetDescription(label),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	return &Tracker{bar: bar, w: w, label: label}
}

// NewTracker creates a bar counting files through one pass.
func NewTracker(w io.Writer, label string, total int) *Tracker {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription(label),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionSetElapsedTime(false),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "#",
			SaucerHead:    "#",
			SaucerPadding: ".",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	return &Tracker{bar: bar, w: w, label: label}
}

// Tick advances the bar by one file. Safe for concurrent use.
func (t *Tracker) Tick() {
	if t == nil {
		return
	}
	_ = t.bar.Add(1)
}

// Func adapts the tracker to a pass progress callback. A nil tracker yields
// a nil callback so passes skip the call entirely.
func (t *Tracker) Func() fileproc.ProgressFunc {
	if t == nil {
		return nil
	}
	return t.Tick
}

// FinishSuccess removes the bar.
func (t *Tracker) FinishSuccess() {
	if t == nil {
		return
	}
	_ = t.bar.Finish()
	_ = t.bar.Clear()
}

// FinishError removes the bar and prints err under the pass label.
func (t *Tracker) FinishError(err error) {
	if t == nil {
		return
	}
	_ = t.bar.Finish()
	_ = t.bar.Clear()
	fmt.Fprintf(t.w, "  %s failed: %v\n", t.label, err)
}
