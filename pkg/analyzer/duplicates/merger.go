package duplicates

import (
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
)

// Merger walks one file's lines against a frozen index and grows runs of
// lines shared by at least two files. A run's file-set is the intersection
// of its lines' sets and only ever shrinks.
//
// When the next line would narrow the set below two files, the run is
// finalized and a new one starts from the longest tail of the old run that
// is still shared together with the new line. Consecutive chunks of one
// file may therefore overlap.
//
// A Merger is reused across files with Reset; it is not safe for
// concurrent use.
type Merger struct {
	index    *Index
	files    []string
	minLines int

	file    uint32
	pending []pendingLine
	set     *roaring.Bitmap
	chunks  []Chunk
}

type pendingLine struct {
	number int
	text   string
	set    *roaring.Bitmap
}

// NewMerger creates a merger emitting chunks of at least minLines lines.
// files is the enumerated list the index's file IDs refer to.
func NewMerger(index *Index, files []string, minLines int) *Merger {
	if minLines < 1 {
		minLines = 1
	}
	return &Merger{index: index, files: files, minLines: minLines}
}

// Reset starts a new file, dropping pending state and emitted chunks.
func (m *Merger) Reset(file uint32) {
	m.file = file
	m.pending = m.pending[:0]
	m.set = nil
	m.chunks = nil
}

// Feed processes the next line of the current file.
func (m *Merger) Feed(line Line) {
	if line.Break {
		m.Break()
		return
	}

	s := m.index.Lookup(line.Fingerprint)
	if s.Len() < 2 {
		m.Break()
		return
	}

	if len(m.pending) == 0 {
		m.set = s.bitmap()
		m.pending = append(m.pending, pendingLine{number: line.Number, text: line.Text, set: m.set})
		return
	}

	narrowed := roaring.And(m.set, s.bitmap())
	if narrowed.GetCardinality() >= 2 {
		m.set = narrowed
		m.pending = append(m.pending, pendingLine{number: line.Number, text: line.Text, set: s.bitmap()})
		return
	}

	m.emit()
	m.restart(line, s.bitmap())
}

// restart keeps the longest tail of the pending run that, together with
// line, is still shared by two or more files.
func (m *Merger) restart(line Line, s *roaring.Bitmap) {
	set := s
	start := len(m.pending)
	for j := len(m.pending) - 1; j >= 0; j-- {
		next := roaring.And(set, m.pending[j].set)
		if next.GetCardinality() < 2 {
			break
		}
		set = next
		start = j
	}

	n := copy(m.pending, m.pending[start:])
	m.pending = append(m.pending[:n], pendingLine{number: line.Number, text: line.Text, set: s})
	m.set = set
}

// Break ends the pending run, emitting it if eligible.
func (m *Merger) Break() {
	m.emit()
	m.pending = m.pending[:0]
	m.set = nil
}

// Finish ends the file and returns its chunks in line order.
func (m *Merger) Finish() []Chunk {
	m.Break()
	out := m.chunks
	m.chunks = nil
	return out
}

func (m *Merger) emit() {
	if len(m.pending) < m.minLines || m.set == nil || m.set.GetCardinality() < 2 {
		return
	}

	ids := m.set.ToArray()
	files := make([]string, len(ids))
	for i, id := range ids {
		files[i] = m.files[id]
	}

	var text strings.Builder
	for i, p := range m.pending {
		if i > 0 {
			text.WriteByte('\n')
		}
		text.WriteString(p.text)
	}

	first, last := m.pending[0], m.pending[len(m.pending)-1]
	m.chunks = append(m.chunks, Chunk{
		File:      m.files[m.file],
		StartLine: first.number,
		EndLine:   last.number,
		Lines:     len(m.pending),
		Files:     files,
		Text:      text.String(),
	})
}
