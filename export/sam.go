// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package export

import (
	"io"

	"github.com/grailbio/cas/encoding/cas"
	"github.com/grailbio/cas/gapped"
	"github.com/grailbio/cas/nucleotide"
	"github.com/grailbio/hts/sam"
)

// SAMWriter writes placed reads as padded SAM: reference lengths and read
// positions are in gapped columns.
type SAMWriter struct {
	w    *sam.Writer
	refs *gapped.References
	sq   []*sam.Reference
}

// NewSAMWriter writes a header with one @SQ line per gapped reference and
// returns a SAMWriter for the reads.
func NewSAMWriter(w io.Writer, refs *gapped.References) (*SAMWriter, error) {
	sw := &SAMWriter{refs: refs}
	err := refs.Do(func(ref *gapped.Reference) error {
		sq, err := sam.NewReference(ref.ID, "", "", len(ref.Gapped), nil, nil)
		if err != nil {
			return err
		}
		sw.sq = append(sw.sq, sq)
		return nil
	})
	if err != nil {
		return nil, err
	}
	h, err := sam.NewHeader(nil, sw.sq)
	if err != nil {
		return nil, err
	}
	if sw.w, err = sam.NewWriter(w, h, sam.FlagDecimal); err != nil {
		return nil, err
	}
	return sw, nil
}

// Write writes one read.
func (w *SAMWriter) Write(r *gapped.PlacedRead) error {
	ref := w.refs.ByIndex(r.ReferenceIndex)
	if ref == nil {
		return cas.StructuralError("read %s: unknown reference %d", r.ID, r.ReferenceIndex)
	}
	cigar, err := PaddedCigar(ref.Gapped, r)
	if err != nil {
		return err
	}
	rec, err := sam.NewRecord(r.ID, w.sq[r.ReferenceIndex], nil, r.Start, -1, 0, 255, cigar, []byte(r.Ungapped()), nil, nil)
	if err != nil {
		return err
	}
	if r.Reversed {
		rec.Flags |= sam.Reverse
	}
	return w.w.Write(rec)
}

// PaddedCigar derives the CIGAR of r column by column against the gapped
// reference: a base against a base is M, a base against a reference gap
// is I, a gap against a reference gap is P and a gap against a base is D.
func PaddedCigar(gappedRef string, r *gapped.PlacedRead) (sam.Cigar, error) {
	if r.Start < 0 || r.Start+len(r.Gapped) > len(gappedRef) {
		return nil, cas.StructuralError("read %s: columns [%d,%d) outside a %d column reference",
			r.ID, r.Start, r.Start+len(r.Gapped), len(gappedRef))
	}
	var (
		cigar sam.Cigar
		last  sam.CigarOpType
		n     int
	)
	for i := 0; i < len(r.Gapped); i++ {
		refGap := gappedRef[r.Start+i] == nucleotide.Gap
		readGap := r.Gapped[i] == nucleotide.Gap
		var op sam.CigarOpType
		switch {
		case !refGap && !readGap:
			op = sam.CigarMatch
		case refGap && !readGap:
			op = sam.CigarInsertion
		case refGap && readGap:
			op = sam.CigarPadded
		default:
			op = sam.CigarDeletion
		}
		if n > 0 && op != last {
			cigar = append(cigar, sam.NewCigarOp(last, n))
			n = 0
		}
		last = op
		n++
	}
	if n > 0 {
		cigar = append(cigar, sam.NewCigarOp(last, n))
	}
	return cigar, nil
}
