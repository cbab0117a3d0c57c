package fasta

import (
	"io"

	"github.com/pkg/errors"
)

// DefaultLineWidth is the number of bases per line written by default.
const DefaultLineWidth = 80

// Writer writes FASTA records with a fixed number of bases per line. It
// records a faidx entry for every sequence written.
type Writer struct {
	w       io.Writer
	width   int
	off     int64
	index   []IndexEntry
	scratch []byte
	err     error
}

// NewWriter returns a Writer that wraps sequence lines at width bases.
// A width of zero or less writes each sequence on a single line.
func NewWriter(w io.Writer, width int) *Writer {
	return &Writer{w: w, width: width}
}

// Write writes a record with the given name, description and bases.
func (w *Writer) Write(name, description, seq string) error {
	if w.err != nil {
		return w.err
	}
	if name == "" {
		w.err = errors.New("fasta: empty sequence name")
		return w.err
	}
	b := w.scratch[:0]
	b = append(b, '>')
	b = append(b, name...)
	if description != "" {
		b = append(b, ' ')
		b = append(b, description...)
	}
	b = append(b, '\n')
	ent := IndexEntry{Name: name, Length: int64(len(seq)), Offset: w.off + int64(len(b))}
	width := w.width
	if width <= 0 || width > len(seq) {
		width = len(seq)
	}
	ent.LineBases, ent.LineWidth = int64(width), int64(width+1)
	for len(seq) > 0 {
		n := width
		if n > len(seq) {
			n = len(seq)
		}
		b = append(b, seq[:n]...)
		b = append(b, '\n')
		seq = seq[n:]
	}
	w.scratch = b
	var n int
	n, w.err = w.w.Write(b)
	w.off += int64(n)
	if w.err != nil {
		w.err = errors.Wrapf(w.err, "fasta: writing %s", name)
		return w.err
	}
	w.index = append(w.index, ent)
	return nil
}

// Index returns the faidx entries of the sequences written so far.
func (w *Writer) Index() []IndexEntry {
	return w.index
}
