// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package cas

import (
	"bufio"
	"fmt"
	"io"
)

// Range is a half-open interval [Begin, End) of read positions.
type Range struct {
	Begin, End int
}

// Len returns the number of positions in r.
func (r Range) Len() int { return r.End - r.Begin }

func (r Range) String() string { return fmt.Sprintf("[%d,%d)", r.Begin, r.End) }

// Alignment is the chosen alignment of a read against a reference.
type Alignment struct {
	// ReferenceIndex is the ordinal of the reference across the header's
	// reference file groups.
	ReferenceIndex uint64
	// Start is the 0-based offset into the ungapped reference.
	Start    uint64
	Reversed bool
	Regions  Regions
}

// End returns the ungapped reference offset of the last reference base
// covered by the alignment, ignoring any trailing insert. It is Start-1 for
// alignments that cover no reference bases.
func (a *Alignment) End() int64 {
	return int64(a.Start) + int64(a.Regions.TrimTrailingInsert().ReferenceLength()) - 1
}

// Match is the match record of a single read.
type Match struct {
	// Reported is set when the read matched and an alignment is present.
	Reported bool
	// Matches is the number of places the read matched and Alignments the
	// number of alignments reported for it.
	Matches    uint64
	Alignments uint64
	Paired     bool
	// Alignment is nil unless Reported.
	Alignment *Alignment
	// Score is not stored in the match stream and is zero unless set by a
	// caller that rescored the alignment.
	Score int64
	// Trim is the sub-range of the read that was given to the aligner. It is
	// never set by the decoder.
	Trim *Range
}

// Match record status bits.
const (
	hasMatch              = 1 << 0
	hasMultipleMatches    = 1 << 1
	hasMultipleAlignments = 1 << 2
	isPaired              = 1 << 3
)

// decodeMatch reads a single match record from r.
func decodeMatch(r *bufio.Reader, h *Header) (*Match, error) {
	info, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	m := &Match{
		Reported: info&hasMatch != 0,
		Paired:   info&isPaired != 0,
	}
	if m.Reported {
		m.Matches, m.Alignments = 1, 1
	}
	if info&hasMultipleMatches != 0 {
		n, err := ReadByteCount(r)
		if err != nil {
			return nil, err
		}
		m.Matches = uint64(n) + 2
	}
	if info&hasMultipleAlignments != 0 {
		n, err := ReadByteCount(r)
		if err != nil {
			return nil, err
		}
		m.Alignments = uint64(n) + 2
	}
	if !m.Reported {
		return m, nil
	}
	if m.Alignment, err = decodeAlignment(r, h); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeAlignment(r *bufio.Reader, h *Header) (*Alignment, error) {
	var (
		a   Alignment
		err error
	)
	if a.ReferenceIndex, err = ReadUintN(r, h.BytesForReferenceIndex); err != nil {
		return nil, err
	}
	if a.ReferenceIndex >= uint64(h.ReferenceCount) {
		return nil, structuralError("alignment against unknown reference %d (file has %d)", a.ReferenceIndex, h.ReferenceCount)
	}
	if a.Start, err = ReadUintN(r, h.BytesForReferencePosition); err != nil {
		return nil, err
	}
	reversed, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	a.Reversed = reversed != 0
	n, err := ReadByteCount(r)
	if err != nil {
		return nil, err
	}
	if a.Regions, err = DecodeRegions(r, n); err != nil {
		return nil, err
	}
	return &a, nil
}

// appendMatch appends the encoding of m to b.
func appendMatch(b []byte, m *Match, h *Header) ([]byte, error) {
	var info byte
	if m.Reported {
		if m.Alignment == nil {
			return nil, fmt.Errorf("cas: reported match without an alignment")
		}
		info |= hasMatch
	}
	multipleMatches := m.Matches > 1
	multipleAlignments := m.Alignments > 1
	if multipleMatches {
		info |= hasMultipleMatches
	}
	if multipleAlignments {
		info |= hasMultipleAlignments
	}
	if m.Paired {
		info |= isPaired
	}
	b = append(b, info)
	if multipleMatches {
		b = AppendByteCount(b, uint32(m.Matches-2))
	}
	if multipleAlignments {
		b = AppendByteCount(b, uint32(m.Alignments-2))
	}
	if !m.Reported {
		return b, nil
	}
	a := m.Alignment
	if a.ReferenceIndex >= uint64(h.ReferenceCount) {
		return nil, fmt.Errorf("cas: reference index %d out of range", a.ReferenceIndex)
	}
	b = AppendUintN(b, a.ReferenceIndex, h.BytesForReferenceIndex)
	b = AppendUintN(b, a.Start, h.BytesForReferencePosition)
	if a.Reversed {
		b = append(b, 1)
	} else {
		b = append(b, 0)
	}
	codes, n := AppendRegions(nil, a.Regions)
	b = AppendByteCount(b, n)
	return append(b, codes...), nil
}

// truncated converts a premature end of the match stream into a structural
// error.
func truncated(err error, index, count uint32) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return structuralError("match stream ended at record %d of %d", index, count)
	}
	return err
}
