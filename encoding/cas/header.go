// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package cas

import (
	"bytes"
	"fmt"
)

// Magic is the signature at the start of every cas file.
var Magic = [8]byte{'C', 'L', 'C', 0x80, 0x00, 0x00, 0x00, 0x01}

// prologSize is the size of the magic signature and the header offset that
// precede the first match record.
const prologSize = 16

// defaultPositionBytes is the reference position width used when the header
// carries no reference descriptions. It covers the 4-byte length field of a
// description.
const defaultPositionBytes = 4

// Header is the decoded cas header. It is immutable once parsed.
type Header struct {
	// HeaderOffset is the file offset of the header.
	HeaderOffset uint64
	// ReferenceCount and ReadCount are the number of reference sequences
	// and of reads. There is one match record per read.
	ReferenceCount uint32
	ReadCount      uint32
	Program        ProgramInfo
	ReferenceFiles []FileGroup
	ReadFiles      []FileGroup
	// Scoring is nil for files written without a scoring scheme.
	Scoring *ScoringScheme
	// References describes each reference sequence. It is empty when
	// Scoring is nil.
	References []ReferenceDescription

	// BytesForReferenceIndex and BytesForReferencePosition are the widths of
	// the reference index and start offset of each alignment in the match
	// stream.
	BytesForReferenceIndex    int
	BytesForReferencePosition int
}

// ProgramInfo identifies the program that produced the file.
type ProgramInfo struct {
	Name, Version, Parameters string
}

// FileGroup is a set of sequence files that together supply a contiguous
// range of reference or read indexes.
type FileGroup struct {
	// Paired groups hold two files whose records interleave.
	Paired        bool
	SequenceCount uint32
	ResidueCount  uint64
	Names         []string
}

// ReferenceDescription describes one reference sequence.
type ReferenceDescription struct {
	Length   uint32
	Circular bool
}

// ScoreType is the kind of scoring scheme used by the aligner.
type ScoreType uint8

const (
	NoScore ScoreType = iota
	NucleotideScore
	ColorSpaceScore
)

func (t ScoreType) String() string {
	switch t {
	case NoScore:
		return "none"
	case NucleotideScore:
		return "nucleotide"
	case ColorSpaceScore:
		return "colorspace"
	}
	return fmt.Sprintf("ScoreType(%d)", uint8(t))
}

// AlignmentType is the alignment mode used by the aligner.
type AlignmentType uint8

const (
	LocalAlignment AlignmentType = iota
	SemiLocalAlignment
	ReverseSemiLocalAlignment
	GlobalAlignment
)

func (t AlignmentType) String() string {
	switch t {
	case LocalAlignment:
		return "local"
	case SemiLocalAlignment:
		return "semilocal"
	case ReverseSemiLocalAlignment:
		return "reverse-semilocal"
	case GlobalAlignment:
		return "global"
	}
	return fmt.Sprintf("AlignmentType(%d)", uint8(t))
}

// ScoringScheme holds the costs used by the aligner.
type ScoringScheme struct {
	Type               ScoreType
	FirstInsertion     uint32
	InsertionExtension uint32
	FirstDeletion      uint32
	DeletionExtension  uint32
	Match              uint32
	Transition         uint32
	Transversion       uint32
	Unknown            uint32
	// ColorSpaceError is only present for color-space scoring.
	ColorSpaceError uint32
	Alignment       AlignmentType
}

// MaxReferenceLength returns the length of the longest described reference.
func (h *Header) MaxReferenceLength() uint32 {
	var max uint32
	for _, r := range h.References {
		if r.Length > max {
			max = r.Length
		}
	}
	return max
}

// computeWidths sets the byte widths used to decode alignments. Widths are
// computed whether or not the file is scored.
func (h *Header) computeWidths() error {
	var err error
	if h.BytesForReferenceIndex, err = BytesRequiredFor(uint64(h.ReferenceCount)); err != nil {
		return structuralError("header declares no references")
	}
	if len(h.References) == 0 {
		h.BytesForReferencePosition = defaultPositionBytes
		return nil
	}
	if h.BytesForReferencePosition, err = BytesRequiredFor(uint64(h.MaxReferenceLength())); err != nil {
		return structuralError("all references have zero length")
	}
	return nil
}

func readFileGroups(r *reader) []FileGroup {
	n := r.byteCount()
	if r.err != nil || n == 0 {
		return nil
	}
	var groups []FileGroup
	for i := uint32(0); i < n && r.err == nil; i++ {
		var g FileGroup
		g.Paired = r.uint8()&0x1 != 0
		g.SequenceCount = r.uint32()
		g.ResidueCount = r.uint64()
		g.Names = append(g.Names, r.pascalString())
		if g.Paired {
			g.Names = append(g.Names, r.pascalString())
		}
		groups = append(groups, g)
	}
	return groups
}

func readScoringScheme(r *reader) (*ScoringScheme, error) {
	t := ScoreType(r.uint8())
	if r.err != nil {
		return nil, r.err
	}
	switch t {
	case NoScore:
		return nil, nil
	case NucleotideScore, ColorSpaceScore:
	default:
		return nil, formatError("unknown score type %d", uint8(t))
	}
	s := &ScoringScheme{
		Type:               t,
		FirstInsertion:     r.uint32(),
		InsertionExtension: r.uint32(),
		FirstDeletion:      r.uint32(),
		DeletionExtension:  r.uint32(),
		Match:              r.uint32(),
		Transition:         r.uint32(),
		Transversion:       r.uint32(),
		Unknown:            r.uint32(),
	}
	if t == ColorSpaceScore {
		s.ColorSpaceError = r.uint32()
	}
	s.Alignment = AlignmentType(r.uint8())
	if r.err != nil {
		return nil, r.err
	}
	if s.Alignment > GlobalAlignment {
		return nil, formatError("unknown alignment type %d", uint8(s.Alignment))
	}
	return s, nil
}

// appendHeader appends the encoding of h, as found at h.HeaderOffset, to b.
func appendHeader(b []byte, h *Header) []byte {
	b = AppendUintN(b, uint64(h.ReferenceCount), 4)
	b = AppendUintN(b, uint64(h.ReadCount), 4)
	b = AppendPascalString(b, h.Program.Name)
	b = AppendPascalString(b, h.Program.Version)
	b = AppendPascalString(b, h.Program.Parameters)
	for _, groups := range [][]FileGroup{h.ReferenceFiles, h.ReadFiles} {
		b = AppendByteCount(b, uint32(len(groups)))
		for _, g := range groups {
			var flag byte
			if g.Paired {
				flag = 1
			}
			b = append(b, flag)
			b = AppendUintN(b, uint64(g.SequenceCount), 4)
			b = AppendUintN(b, g.ResidueCount, 8)
			for _, name := range g.Names {
				b = AppendPascalString(b, name)
			}
		}
	}
	s := h.Scoring
	if s == nil {
		return append(b, byte(NoScore))
	}
	b = append(b, byte(s.Type))
	for _, v := range []uint32{s.FirstInsertion, s.InsertionExtension, s.FirstDeletion, s.DeletionExtension,
		s.Match, s.Transition, s.Transversion, s.Unknown} {
		b = AppendUintN(b, uint64(v), 4)
	}
	if s.Type == ColorSpaceScore {
		b = AppendUintN(b, uint64(s.ColorSpaceError), 4)
	}
	b = append(b, byte(s.Alignment))
	for _, ref := range h.References {
		b = AppendUintN(b, uint64(ref.Length), 4)
		var flags uint64
		if ref.Circular {
			flags = 1
		}
		b = AppendUintN(b, flags, 2)
	}
	return b
}

// String returns a multi-line human readable summary of h.
func (h *Header) String() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "program\t%s %s\n", h.Program.Name, h.Program.Version)
	fmt.Fprintf(&buf, "parameters\t%s\n", h.Program.Parameters)
	fmt.Fprintf(&buf, "references\t%d\n", h.ReferenceCount)
	fmt.Fprintf(&buf, "reads\t%d\n", h.ReadCount)
	for _, g := range h.ReferenceFiles {
		fmt.Fprintf(&buf, "reference-files\t%v\t%d\t%d\n", g.Names, g.SequenceCount, g.ResidueCount)
	}
	for _, g := range h.ReadFiles {
		fmt.Fprintf(&buf, "read-files\t%v\t%d\t%d\n", g.Names, g.SequenceCount, g.ResidueCount)
	}
	if h.Scoring != nil {
		s := h.Scoring
		fmt.Fprintf(&buf, "scoring\t%v\t%v\n", s.Type, s.Alignment)
	}
	return buf.String()
}
