package duplicates

import (
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/panbanda/dedoop/pkg/stats"
)

// maxHotspots bounds the hotspot list in the summary.
const maxHotspots = 10

// Assemble flattens per-file chunks and orders them longest first, then by
// file path and start line.
func Assemble(perFile [][]Chunk) []Chunk {
	n := 0
	for _, chunks := range perFile {
		n += len(chunks)
	}
	out := make([]Chunk, 0, n)
	for _, chunks := range perFile {
		out = append(out, chunks...)
	}
	sortChunks(out)
	return out
}

func sortChunks(chunks []Chunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		a, b := chunks[i], chunks[j]
		if a.Lines != b.Lines {
			return a.Lines > b.Lines
		}
		if a.File != b.File {
			return a.File < b.File
		}
		return a.StartLine < b.StartLine
	})
}

// GroupChunks collects chunks with the same normalized text and file-set.
// Groups keep the order of their first chunk and show its text.
func GroupChunks(chunks []Chunk) []Group {
	var groups []Group
	byKey := make(map[string]int)
	for _, c := range chunks {
		key := groupKey(c)
		idx, ok := byKey[key]
		if !ok {
			idx = len(groups)
			byKey[key] = idx
			groups = append(groups, Group{
				ID:    idx + 1,
				Lines: c.Lines,
				Files: c.Files,
				Text:  c.Text,
			})
		}
		groups[idx].Instances = append(groups[idx].Instances, Instance{
			File:      c.File,
			StartLine: c.StartLine,
			EndLine:   c.EndLine,
		})
	}
	return groups
}

func groupKey(c Chunk) string {
	var b strings.Builder
	for _, line := range strings.Split(c.Text, "\n") {
		norm, _, _ := Normalize(line, "")
		b.WriteString(norm)
		b.WriteByte('\n')
	}
	b.WriteByte(0)
	b.WriteString(strings.Join(c.Files, "\x00"))
	return b.String()
}

// summarize computes report statistics. Overlapping chunks of one file
// count their shared lines once.
func summarize(chunks []Chunk, groups []Group, indexedLines int) Summary {
	s := Summary{
		IndexedLines: indexedLines,
		TotalChunks:  len(chunks),
		TotalGroups:  len(groups),
	}
	if len(chunks) == 0 {
		return s
	}

	covered := make(map[string]*roaring.Bitmap)
	chunkCount := make(map[string]int)
	lengths := make([]int, len(chunks))
	for i, c := range chunks {
		lengths[i] = c.Lines
		if c.Lines > s.LargestChunk {
			s.LargestChunk = c.Lines
		}
		bm, ok := covered[c.File]
		if !ok {
			bm = roaring.New()
			covered[c.File] = bm
		}
		bm.AddRange(uint64(c.StartLine), uint64(c.EndLine)+1)
		chunkCount[c.File]++
	}

	s.FilesWithDuplicates = len(covered)
	for file, bm := range covered {
		lines := int(bm.GetCardinality())
		s.DuplicatedLines += lines
		s.Hotspots = append(s.Hotspots, Hotspot{
			File:            file,
			DuplicatedLines: lines,
			Chunks:          chunkCount[file],
		})
	}
	sort.Slice(s.Hotspots, func(i, j int) bool {
		if s.Hotspots[i].DuplicatedLines != s.Hotspots[j].DuplicatedLines {
			return s.Hotspots[i].DuplicatedLines > s.Hotspots[j].DuplicatedLines
		}
		return s.Hotspots[i].File < s.Hotspots[j].File
	})
	if len(s.Hotspots) > maxHotspots {
		s.Hotspots = s.Hotspots[:maxHotspots]
	}

	// Capped at 1.0 in case a file changed between passes.
	if indexedLines > 0 {
		s.DuplicationRatio = float64(s.DuplicatedLines) / float64(indexedLines)
		if s.DuplicationRatio > 1.0 {
			s.DuplicationRatio = 1.0
		}
	}

	sorted := stats.Ints(lengths)
	s.MeanChunkLines = stats.Mean(sorted)
	s.P50ChunkLines = stats.Percentile(sorted, 50)
	s.P95ChunkLines = stats.Percentile(sorted, 95)
	return s
}
