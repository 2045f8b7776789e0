package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/panbanda/dedoop/pkg/analyzer/duplicates"
)

// DuplicatesView renders a duplicate analysis, grouped by shared text.
type DuplicatesView struct {
	Analysis *duplicates.Analysis
	Top      int  // 0 = all groups
	ShowText bool // include the duplicated text
}

// NewDuplicatesView creates a view over analysis.
func NewDuplicatesView(analysis *duplicates.Analysis, top int, showText bool) *DuplicatesView {
	return &DuplicatesView{Analysis: analysis, Top: top, ShowText: showText}
}

type duplicatesData struct {
	Settings duplicates.Settings  `json:"settings" yaml:"settings"`
	Summary  duplicates.Summary   `json:"summary" yaml:"summary"`
	Chunks   []duplicates.Chunk   `json:"chunks" yaml:"chunks"`
	Groups   []duplicates.Group   `json:"groups,omitempty" yaml:"groups,omitempty"`
	Warnings []duplicates.Warning `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

func (v *DuplicatesView) groups() []duplicates.Group {
	groups := v.Analysis.Groups
	if v.Top > 0 && len(groups) > v.Top {
		groups = groups[:v.Top]
	}
	return groups
}

func (v *DuplicatesView) RenderData() any {
	chunks := v.Analysis.Chunks
	if v.Top > 0 && len(chunks) > v.Top {
		chunks = chunks[:v.Top]
	}
	groups := v.groups()

	if !v.ShowText {
		chunks = append([]duplicates.Chunk(nil), chunks...)
		for i := range chunks {
			chunks[i].Text = ""
		}
		groups = append([]duplicates.Group(nil), groups...)
		for i := range groups {
			groups[i].Text = ""
		}
	}

	return duplicatesData{
		Settings: v.Analysis.Settings,
		Summary:  v.Analysis.Summary,
		Chunks:   chunks,
		Groups:   groups,
		Warnings: v.Analysis.Warnings,
	}
}

func (v *DuplicatesView) RenderText(w io.Writer, colored bool) error {
	a := v.Analysis
	title := "Duplicate Lines"
	if colored {
		color.New(color.Bold, color.FgCyan).Fprintln(w, title)
	} else {
		fmt.Fprintln(w, title)
	}
	fmt.Fprintln(w, strings.Repeat("=", len(title)))
	fmt.Fprintln(w)

	groups := v.groups()
	if len(groups) == 0 {
		fmt.Fprintf(w, "No runs of %d or more lines are shared between files.\n\n", a.Settings.MinLines)
	}
	for _, g := range groups {
		header := fmt.Sprintf("%d lines are common across %d files:", g.Lines, len(g.Files))
		if colored {
			header = SizeColor(g.Lines, a.Settings.MinLines, header)
		}
		fmt.Fprintln(w, header)
		for _, in := range g.Instances {
			fmt.Fprintf(w, "  %s:%d-%d\n", in.File, in.StartLine, in.EndLine)
		}
		if v.ShowText {
			for _, line := range strings.Split(g.Text, "\n") {
				if colored {
					fmt.Fprintf(w, "    %s %s\n", color.HiBlackString("|"), line)
				} else {
					fmt.Fprintf(w, "    | %s\n", line)
				}
			}
		}
		fmt.Fprintln(w)
	}
	if hidden := len(a.Groups) - len(groups); hidden > 0 {
		fmt.Fprintf(w, "... %d more not shown\n\n", hidden)
	}

	if err := v.summaryTable().RenderText(w, colored); err != nil {
		return err
	}
	if t := v.hotspotTable(); t != nil {
		if err := t.RenderText(w, colored); err != nil {
			return err
		}
	}
	if len(a.Warnings) > 0 {
		fmt.Fprintf(w, "%d warnings:\n", len(a.Warnings))
		for _, warn := range a.Warnings {
			line := fmt.Sprintf("  [%s] %s", warn.Kind, warn.Message)
			if colored {
				line = color.YellowString(line)
			}
			fmt.Fprintln(w, line)
		}
	}
	return nil
}

func (v *DuplicatesView) RenderMarkdown(w io.Writer) error {
	a := v.Analysis
	fmt.Fprintf(w, "# Duplicate Lines\n\n")

	groups := v.groups()
	if len(groups) == 0 {
		fmt.Fprintf(w, "No runs of %d or more lines are shared between files.\n\n", a.Settings.MinLines)
	}
	for _, g := range groups {
		fmt.Fprintf(w, "## %d lines common across %d files\n\n", g.Lines, len(g.Files))
		for _, in := range g.Instances {
			fmt.Fprintf(w, "- `%s:%d-%d`\n", in.File, in.StartLine, in.EndLine)
		}
		fmt.Fprintln(w)
		if v.ShowText {
			fmt.Fprintf(w, "```%s\n%s\n```\n\n", a.Settings.Extension, g.Text)
		}
	}

	if err := v.summaryTable().RenderMarkdown(w); err != nil {
		return err
	}
	if t := v.hotspotTable(); t != nil {
		if err := t.RenderMarkdown(w); err != nil {
			return err
		}
	}
	if len(a.Warnings) > 0 {
		fmt.Fprintf(w, "## Warnings\n\n")
		for _, warn := range a.Warnings {
			fmt.Fprintf(w, "- **%s**: %s\n", warn.Kind, warn.Message)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func (v *DuplicatesView) summaryTable() *Table {
	s := v.Analysis.Summary
	rows := [][]string{
		{"Files scanned", strconv.Itoa(s.FilesScanned)},
		{"Files with duplicates", strconv.Itoa(s.FilesWithDuplicates)},
		{"Indexed lines", strconv.Itoa(s.IndexedLines)},
		{"Unique lines", strconv.Itoa(s.UniqueLines)},
		{"Chunks", strconv.Itoa(s.TotalChunks)},
		{"Groups", strconv.Itoa(s.TotalGroups)},
		{"Duplicated lines", strconv.Itoa(s.DuplicatedLines)},
		{"Duplication", fmt.Sprintf("%.1f%%", s.DuplicationRatio*100)},
		{"Chunk lines (mean/p50/p95)", fmt.Sprintf("%.1f / %.0f / %.0f", s.MeanChunkLines, s.P50ChunkLines, s.P95ChunkLines)},
	}
	if s.FilesSkipped > 0 {
		rows = append(rows, []string{"Files skipped", strconv.Itoa(s.FilesSkipped)})
	}
	return NewTable("Summary", []string{"Metric", "Value"}, rows, nil, s)
}

func (v *DuplicatesView) hotspotTable() *Table {
	hotspots := v.Analysis.Summary.Hotspots
	if len(hotspots) == 0 {
		return nil
	}
	rows := make([][]string, len(hotspots))
	for i, h := range hotspots {
		rows[i] = []string{h.File, strconv.Itoa(h.DuplicatedLines), strconv.Itoa(h.Chunks)}
	}
	return NewTable("Hotspots", []string{"File", "Duplicated Lines", "Chunks"}, rows, nil, hotspots)
}
