// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package gapped

import (
	"github.com/grailbio/cas/encoding/cas"
	"github.com/grailbio/cas/nucleotide"
)

// PlaceInput is a read and its alignment.
type PlaceInput struct {
	ID string
	// Bases is the full, untrimmed read in its sequencing direction.
	Bases     string
	Alignment *cas.Alignment
	// Trim is the part of Bases given to the aligner, or nil for all of it.
	Trim *cas.Range
}

// PlacedRead is a read positioned against a gapped reference.
type PlacedRead struct {
	ID             string
	ReferenceIndex int
	ReferenceID    string
	// Start is the gapped reference column of the first column of Gapped.
	Start    int
	Reversed bool
	// UngappedLength is the length of the full untrimmed read.
	UngappedLength int
	// Trim is the part of the read given to the aligner.
	Trim cas.Range
	// Valid is the part of the read placed against the reference, in the
	// read's sequencing direction.
	Valid cas.Range
	// Gapped holds one byte per reference column from Start, in reference
	// direction. Columns where the read has no base hold nucleotide.Gap.
	Gapped string
}

// End returns the gapped reference column of the last column of Gapped. It
// is Start-1 for reads that cover no columns.
func (r *PlacedRead) End() int { return r.Start + len(r.Gapped) - 1 }

// Ungapped returns the placed bases without gaps, in reference direction.
func (r *PlacedRead) Ungapped() string { return nucleotide.Ungap(r.Gapped) }

// Place replays the alignment of in against ref. Leading and trailing
// inserts are the read's unaligned overhangs and are not placed. Any
// inconsistency between the alignment, the read and the reference is a
// structural mismatch naming the read.
func Place(in PlaceInput, ref *Reference) (*PlacedRead, error) {
	a := in.Alignment
	if a == nil {
		return nil, cas.StructuralError("read %s: no alignment", in.ID)
	}
	if int(a.ReferenceIndex) != ref.Index {
		return nil, cas.StructuralError("read %s: aligned to reference %d, placed against %d", in.ID, a.ReferenceIndex, ref.Index)
	}
	if a.Start > uint64(len(ref.Ungapped)) {
		return nil, cas.StructuralError("read %s: start %d past the end of reference %s (%d bases)",
			in.ID, a.Start, ref.ID, len(ref.Ungapped))
	}
	trim := cas.Range{Begin: 0, End: len(in.Bases)}
	if in.Trim != nil {
		trim = *in.Trim
		if trim.Begin < 0 || trim.Begin > trim.End || trim.End > len(in.Bases) {
			return nil, cas.StructuralError("read %s: trim range %v outside a %d base read", in.ID, trim, len(in.Bases))
		}
	}
	bases := in.Bases[trim.Begin:trim.End]
	if a.Reversed {
		bases = nucleotide.ReverseComplementString(bases)
	}

	p := placer{
		id:    in.ID,
		ref:   ref,
		bases: bases,
		u:     a.Start,
		g:     ref.Offsets.Gapped(a.Start),
	}
	start := p.g
	regions := a.Regions.TrimTrailingInsert()
	// Skip the leading inserts.
	for len(regions) > 0 && (regions[0].Type == cas.Insert || regions[0].Type == cas.PhaseChange) {
		if regions[0].Type == cas.Insert {
			p.read += int(regions[0].Length)
		}
		regions = regions[1:]
	}
	if p.read > len(bases) {
		return nil, cas.StructuralError("read %s: %d base overhang exceeds %d read bases", in.ID, p.read, len(bases))
	}
	first := p.read
	for _, r := range regions {
		var err error
		switch r.Type {
		case cas.MatchMismatch:
			err = p.columns(int(r.Length), true)
		case cas.Deletion:
			err = p.columns(int(r.Length), false)
		case cas.Insert:
			err = p.insert(int(r.Length))
		}
		if err != nil {
			return nil, err
		}
	}

	// Valid is reported in sequencing direction on the untrimmed read.
	valid := cas.Range{Begin: first, End: p.read}
	if a.Reversed {
		valid = cas.Range{Begin: len(bases) - p.read, End: len(bases) - first}
	}
	valid.Begin += trim.Begin
	valid.End += trim.Begin
	return &PlacedRead{
		ID:             in.ID,
		ReferenceIndex: ref.Index,
		ReferenceID:    ref.ID,
		Start:          int(start),
		Reversed:       a.Reversed,
		UngappedLength: len(in.Bases),
		Trim:           trim,
		Valid:          valid,
		Gapped:         string(p.out),
	}, nil
}

// placer walks the gapped columns of a reference while consuming read bases.
type placer struct {
	id    string
	ref   *Reference
	bases string
	read  int
	// u is the next ungapped reference base and g the next gapped column.
	u   uint64
	g   uint64
	out []byte
}

// columns consumes n reference bases. When copyBases is set each column
// takes the next read base, otherwise it takes a gap. Gap columns the read
// does not fill are padded.
func (p *placer) columns(n int, copyBases bool) error {
	for i := 0; i < n; i++ {
		if p.u >= uint64(len(p.ref.Ungapped)) {
			return cas.StructuralError("read %s: alignment runs past the end of reference %s (%d bases)",
				p.id, p.ref.ID, len(p.ref.Ungapped))
		}
		col := p.ref.Offsets.Gapped(p.u)
		for ; p.g < col; p.g++ {
			p.out = append(p.out, nucleotide.Gap)
		}
		if copyBases {
			if p.read >= len(p.bases) {
				return cas.StructuralError("read %s: alignment consumes more than its %d bases", p.id, len(p.bases))
			}
			p.out = append(p.out, p.bases[p.read])
			p.read++
		} else {
			p.out = append(p.out, nucleotide.Gap)
		}
		p.u++
		p.g++
	}
	return nil
}

// insert places n read bases into the gap columns before the next reference
// base.
func (p *placer) insert(n int) error {
	if p.read+n > len(p.bases) {
		return cas.StructuralError("read %s: alignment consumes more than its %d bases", p.id, len(p.bases))
	}
	if avail := p.ref.Offsets.Gapped(p.u) - p.g; uint64(n) > avail {
		return cas.StructuralError("read %s: %d base insertion before offset %d of reference %s exceeds its %d gap columns",
			p.id, n, p.u, p.ref.ID, avail)
	}
	p.out = append(p.out, p.bases[p.read:p.read+n]...)
	p.read += n
	p.g += uint64(n)
	return nil
}
