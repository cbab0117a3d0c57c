// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package export

import (
	"io"

	"github.com/grailbio/base/tsv"
	"github.com/grailbio/cas/gapped"
)

// placedRow is one row of a placed-read TSV file. Start and End are 0-based
// inclusive gapped reference columns.
type placedRow struct {
	Read           string `tsv:"read"`
	Reference      string `tsv:"reference"`
	Start          int    `tsv:"start"`
	End            int    `tsv:"end"`
	Strand         string `tsv:"strand"`
	UngappedLength int    `tsv:"ungapped_length"`
	ValidBegin     int    `tsv:"valid_begin"`
	ValidEnd       int    `tsv:"valid_end"`
	Gapped         string `tsv:"gapped"`
}

// PlacedReadWriter writes placed reads as TSV rows.
type PlacedReadWriter struct {
	w   *tsv.RowWriter
	row placedRow
}

// NewPlacedReadWriter returns a PlacedReadWriter writing to w. The header
// row is written with the first read.
func NewPlacedReadWriter(w io.Writer) *PlacedReadWriter {
	return &PlacedReadWriter{w: tsv.NewRowWriter(w)}
}

// Write writes one read.
func (w *PlacedReadWriter) Write(r *gapped.PlacedRead) error {
	strand := "+"
	if r.Reversed {
		strand = "-"
	}
	w.row = placedRow{
		Read:           r.ID,
		Reference:      r.ReferenceID,
		Start:          r.Start,
		End:            r.End(),
		Strand:         strand,
		UngappedLength: r.UngappedLength,
		ValidBegin:     r.Valid.Begin,
		ValidEnd:       r.Valid.End,
		Gapped:         r.Gapped,
	}
	return w.w.Write(&w.row)
}

// Flush flushes buffered rows.
func (w *PlacedReadWriter) Flush() error {
	return w.w.Flush()
}
