// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package gapped

import "sort"

// OffsetMap converts between the ungapped and gapped coordinates of one
// reference. It is immutable.
type OffsetMap struct {
	// offsets holds the ascending insertion offsets and cum the running sum
	// of insertion lengths through each of them.
	offsets []uint64
	cum     []uint64
}

func newOffsetMap(m *InsertionMap) *OffsetMap {
	om := &OffsetMap{
		offsets: make([]uint64, 0, m.Len()),
		cum:     make([]uint64, 0, m.Len()),
	}
	var total uint64
	m.Do(func(offset uint64, length uint32) bool {
		total += uint64(length)
		om.offsets = append(om.offsets, offset)
		om.cum = append(om.cum, total)
		return false
	})
	return om
}

// gapsThrough returns the number of gap columns that precede the ungapped
// base u.
func (m *OffsetMap) gapsThrough(u uint64) uint64 {
	i := sort.Search(len(m.offsets), func(i int) bool { return m.offsets[i] > u })
	if i == 0 {
		return 0
	}
	return m.cum[i-1]
}

// Gapped returns the gapped column of ungapped reference offset u.
func (m *OffsetMap) Gapped(u uint64) uint64 {
	return u + m.gapsThrough(u)
}

// GapBefore returns the number of gap columns inserted immediately before
// ungapped offset u.
func (m *OffsetMap) GapBefore(u uint64) uint64 {
	i := sort.Search(len(m.offsets), func(i int) bool { return m.offsets[i] >= u })
	if i == len(m.offsets) || m.offsets[i] != u {
		return 0
	}
	if i == 0 {
		return m.cum[0]
	}
	return m.cum[i] - m.cum[i-1]
}

// Ungapped returns the ungapped offset of gapped column g. When g is a gap
// column, it returns the offset of the base that follows the gap run and
// gap is true.
func (m *OffsetMap) Ungapped(g uint64) (u uint64, gap bool) {
	k := sort.Search(len(m.offsets), func(i int) bool { return m.offsets[i]+m.cum[i] > g })
	var prev uint64
	if k > 0 {
		prev = m.cum[k-1]
	}
	if k < len(m.offsets) && g >= m.offsets[k]+prev {
		return m.offsets[k], true
	}
	return g - prev, false
}

// TotalGaps returns the number of gap columns of the reference.
func (m *OffsetMap) TotalGaps() uint64 {
	if len(m.cum) == 0 {
		return 0
	}
	return m.cum[len(m.cum)-1]
}
