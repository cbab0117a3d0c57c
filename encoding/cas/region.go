// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package cas

import (
	"bytes"
	"fmt"
	"io"
)

// RegionType is the kind of an alignment operation.
type RegionType uint8

const (
	MatchMismatch RegionType = iota // Read and reference bases are aligned.
	Insert                          // Read bases absent from the reference.
	Deletion                        // Reference bases absent from the read.
	PhaseChange                     // Color-space phase change; consumes nothing.
)

var regionOps = []string{"M", "I", "D", "P", "?"}

func (t RegionType) String() string {
	if t > PhaseChange {
		return regionOps[len(regionOps)-1]
	}
	return regionOps[t]
}

// Region is a run-length encoded alignment operation. PhaseChange regions
// have zero Length and carry the phase change in Phase.
type Region struct {
	Type   RegionType
	Length uint32
	Phase  int8
}

// String returns the CIGAR-like representation of the region.
func (r Region) String() string {
	if r.Type == PhaseChange {
		return fmt.Sprintf("%+dP", r.Phase)
	}
	return fmt.Sprintf("%d%s", r.Length, r.Type)
}

// Regions is an ordered list of alignment operations.
type Regions []Region

// TrimTrailingInsert returns rs without a final Insert region. A trailing
// insert is the unaligned 3' overhang of the read.
func (rs Regions) TrimTrailingInsert() Regions {
	if n := len(rs); n > 0 && rs[n-1].Type == Insert {
		return rs[:n-1]
	}
	return rs
}

// ReferenceLength returns the number of ungapped reference bases covered by
// rs.
func (rs Regions) ReferenceLength() uint64 {
	var n uint64
	for _, r := range rs {
		if r.Type == MatchMismatch || r.Type == Deletion {
			n += uint64(r.Length)
		}
	}
	return n
}

// ReadLength returns the number of read bases consumed by rs.
func (rs Regions) ReadLength() uint64 {
	var n uint64
	for _, r := range rs {
		if r.Type == MatchMismatch || r.Type == Insert {
			n += uint64(r.Length)
		}
	}
	return n
}

func (rs Regions) String() string {
	if len(rs) == 0 {
		return "*"
	}
	var b bytes.Buffer
	for _, r := range rs {
		b.WriteString(r.String())
	}
	return b.String()
}

// Region codes. Each non phase-change code encodes a run of one type.
const (
	maxMatchCode    = 127
	maxInsertCode   = 191
	maxDeletionCode = 253
	phaseChangeCode = 255

	maxMatchRun    = maxMatchCode + 1
	maxInsertRun   = maxInsertCode - maxMatchCode
	maxDeletionRun = maxDeletionCode - maxInsertCode
)

// regionBuilder accumulates region codes, merging consecutive codes of the
// same type into a single run.
type regionBuilder struct {
	regions Regions
	cur     Region
	open    bool
}

func (b *regionBuilder) flush() {
	if b.open {
		b.regions = append(b.regions, b.cur)
		b.open = false
	}
}

func (b *regionBuilder) add(t RegionType, n uint32) {
	if b.open && b.cur.Type == t {
		b.cur.Length += n
		return
	}
	b.flush()
	b.cur = Region{Type: t, Length: n}
	b.open = true
}

func (b *regionBuilder) addPhaseChange(phase int8) {
	b.flush()
	b.regions = append(b.regions, Region{Type: PhaseChange, Phase: phase})
}

// addCode adds a single region code. Phase changes are handled by the
// caller since they consume an extra byte.
func (b *regionBuilder) addCode(code byte) error {
	switch {
	case code <= maxMatchCode:
		b.add(MatchMismatch, uint32(code)+1)
	case code <= maxInsertCode:
		b.add(Insert, uint32(code)-maxMatchCode)
	case code <= maxDeletionCode:
		b.add(Deletion, uint32(code)-maxInsertCode)
	default:
		return formatError("unparsable alignment region code %d", code)
	}
	return nil
}

func (b *regionBuilder) build() Regions {
	b.flush()
	return b.regions
}

// DecodeRegions decodes n region codes from r.
func DecodeRegions(r io.ByteReader, n uint32) (Regions, error) {
	var b regionBuilder
	for i := uint32(0); i < n; i++ {
		code, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if code == phaseChangeCode {
			phase, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			b.addPhaseChange(int8(phase))
			continue
		}
		if err := b.addCode(code); err != nil {
			return nil, err
		}
	}
	return b.build(), nil
}

// AppendRegions appends the region codes for rs to dst and returns the
// extended slice and the number of codes written. The signed byte that
// follows a phase-change code is not counted.
func AppendRegions(dst []byte, rs Regions) ([]byte, uint32) {
	var n uint32
	emit := func(base byte, max, length uint32) {
		for length > 0 {
			run := length
			if run > max {
				run = max
			}
			dst = append(dst, base+byte(run-1))
			n++
			length -= run
		}
	}
	for _, r := range rs {
		switch r.Type {
		case MatchMismatch:
			emit(0, maxMatchRun, r.Length)
		case Insert:
			emit(maxMatchCode+1, maxInsertRun, r.Length)
		case Deletion:
			emit(maxInsertCode+1, maxDeletionRun, r.Length)
		case PhaseChange:
			dst = append(dst, phaseChangeCode, byte(r.Phase))
			n++
		}
	}
	return dst, n
}
