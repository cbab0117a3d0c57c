package fasta

import (
	"io"

	"github.com/grailbio/base/tsv"
)

// IndexEntry is one line of a FASTA index (*.fai), as defined by "samtools
// faidx" (http://www.htslib.org/doc/faidx.html).
type IndexEntry struct {
	Name string
	// Length is the number of bases and Offset the byte offset of the first
	// base.
	Length int64
	Offset int64
	// LineBases is the number of bases per line and LineWidth the number of
	// bytes per line, including the newline.
	LineBases int64
	LineWidth int64
}

// WriteIndex writes entries in faidx format.
func WriteIndex(out io.Writer, entries []IndexEntry) error {
	w := tsv.NewWriter(out)
	for _, e := range entries {
		w.WriteString(e.Name)
		w.WriteInt64(e.Length)
		w.WriteInt64(e.Offset)
		w.WriteInt64(e.LineBases)
		w.WriteInt64(e.LineWidth)
		if err := w.EndLine(); err != nil {
			return err
		}
	}
	return w.Flush()
}
