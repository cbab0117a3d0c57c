package fastq

import (
	"io"
	"strings"
)

var newline = []byte{'\n'}

// Writer is a FASTQ file writer.
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter constructs a new FASTQ writer
// that writes reads to the underlying writer w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write writes the read r in FASTQ format. A missing '@' on the ID and an
// empty separator line are filled in. An error is returned if the write
// failed.
func (w *Writer) Write(r *Read) error {
	id := r.ID
	if !strings.HasPrefix(id, "@") {
		id = "@" + id
	}
	unk := r.Unk
	if unk == "" {
		unk = "+"
	}
	w.writeln(id)
	w.writeln(r.Seq)
	w.writeln(unk)
	w.writeln(r.Qual)
	return w.err
}

func (w *Writer) writeln(line string) {
	if w.err != nil {
		return
	}
	_, w.err = io.WriteString(w.w, line)
	if w.err == nil {
		_, w.err = w.w.Write(newline)
	}
}
