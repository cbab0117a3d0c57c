// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package gapped

import (
	"github.com/biogo/store/llrb"
)

// insertion is a gap run of length columns that precedes the ungapped
// reference base at offset.
type insertion struct {
	offset uint64
	length *uint32
}

// Compare implements llrb.Comparable.
func (a insertion) Compare(c llrb.Comparable) int {
	b := c.(insertion)
	switch {
	case a.offset < b.offset:
		return -1
	case a.offset > b.offset:
		return 1
	}
	return 0
}

// InsertionMap is the ordered set of insertions observed against a single
// reference. The zero value is an empty map.
type InsertionMap struct {
	tree  llrb.Tree
	total uint64
}

// Record notes an insertion of length bases before ungapped offset. The map
// keeps the largest length recorded at each offset.
func (m *InsertionMap) Record(offset uint64, length uint32) {
	if length == 0 {
		return
	}
	if c := m.tree.Get(insertion{offset: offset}); c != nil {
		cur := c.(insertion).length
		if length > *cur {
			m.total += uint64(length - *cur)
			*cur = length
		}
		return
	}
	l := length
	m.tree.Insert(insertion{offset: offset, length: &l})
	m.total += uint64(length)
}

// Get returns the insertion length recorded at offset, or zero.
func (m *InsertionMap) Get(offset uint64) uint32 {
	if c := m.tree.Get(insertion{offset: offset}); c != nil {
		return *c.(insertion).length
	}
	return 0
}

// Len returns the number of distinct insertion offsets.
func (m *InsertionMap) Len() int { return m.tree.Len() }

// Total returns the sum of all insertion lengths.
func (m *InsertionMap) Total() uint64 { return m.total }

// MaxOffset returns the largest insertion offset. ok is false for an empty
// map.
func (m *InsertionMap) MaxOffset() (offset uint64, ok bool) {
	c := m.tree.Max()
	if c == nil {
		return 0, false
	}
	return c.(insertion).offset, true
}

// Do calls fn for each insertion in ascending offset order until fn returns
// true.
func (m *InsertionMap) Do(fn func(offset uint64, length uint32) (done bool)) {
	m.tree.Do(func(c llrb.Comparable) bool {
		ins := c.(insertion)
		return fn(ins.offset, *ins.length)
	})
}

// DoReverse is like Do, in descending offset order.
func (m *InsertionMap) DoReverse(fn func(offset uint64, length uint32) (done bool)) {
	m.tree.DoReverse(func(c llrb.Comparable) bool {
		ins := c.(insertion)
		return fn(ins.offset, *ins.length)
	})
}
