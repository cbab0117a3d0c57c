// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package gapped rebuilds gapped reference sequences from the alignments of
// a cas file and places reads against them.
//
// Reconstruction takes two passes. A ReferenceBuilder observes every
// alignment of the match stream and records, per reference, the largest
// insertion seen before each ungapped offset. Finalize then expands each
// reference with gap columns and returns immutable References, against
// which Place positions individual reads.
package gapped

import (
	"fmt"

	"github.com/grailbio/base/log"
	"github.com/grailbio/cas/binding"
	"github.com/grailbio/cas/encoding/cas"
	"github.com/grailbio/cas/nucleotide"
)

// ReferenceBuilder accumulates the insertions of a single decode. It
// implements cas.Visitor and can be passed directly to cas.Parser.Accept.
type ReferenceBuilder struct {
	cas.NopVisitor
	insertions map[uint64]*InsertionMap
	alignments int
}

// NewReferenceBuilder returns an empty ReferenceBuilder.
func NewReferenceBuilder() *ReferenceBuilder {
	return &ReferenceBuilder{insertions: make(map[uint64]*InsertionMap)}
}

// Visit implements cas.Visitor.
func (b *ReferenceBuilder) Visit(ev *cas.Event) error {
	if ev.Kind == cas.MatchEvent && ev.Match.Alignment != nil {
		b.Add(ev.Match.Alignment)
	}
	return nil
}

// Add records the insertions of a. A trailing insert is the unaligned 3'
// overhang of the read and leading inserts are its 5' overhang; neither
// contributes gap columns. Consecutive inserts at one offset, split only by
// phase changes, count as one insertion.
func (b *ReferenceBuilder) Add(a *cas.Alignment) {
	b.alignments++
	var (
		cursor = a.Start
		inside bool
		run    uint32
	)
	for _, r := range a.Regions.TrimTrailingInsert() {
		switch r.Type {
		case cas.MatchMismatch, cas.Deletion:
			if run > 0 {
				b.mapFor(a.ReferenceIndex).Record(cursor, run)
				run = 0
			}
			inside = true
			cursor += uint64(r.Length)
		case cas.Insert:
			if inside {
				run += r.Length
			}
		}
	}
	if run > 0 {
		b.mapFor(a.ReferenceIndex).Record(cursor, run)
	}
}

func (b *ReferenceBuilder) mapFor(ref uint64) *InsertionMap {
	m := b.insertions[ref]
	if m == nil {
		m = &InsertionMap{}
		b.insertions[ref] = m
	}
	return m
}

// Alignments returns the number of alignments added.
func (b *ReferenceBuilder) Alignments() int { return b.alignments }

// Insertions returns the insertions recorded against reference ref. The
// result is empty, never nil, for references without insertions.
func (b *ReferenceBuilder) Insertions(ref uint64) *InsertionMap {
	if m := b.insertions[ref]; m != nil {
		return m
	}
	return &InsertionMap{}
}

// Finalize builds the gapped sequence of every reference in h, fetching the
// ungapped bases through resolver and src. References are processed in
// ascending index order. A reference that cannot be resolved, a sequence
// whose length disagrees with its description, and an insertion beyond the
// end of its reference are structural mismatches.
func (b *ReferenceBuilder) Finalize(h *cas.Header, resolver binding.IndexResolver, src binding.SequenceSource) (*References, error) {
	n := int(h.ReferenceCount)
	for ref := range b.insertions {
		if ref >= uint64(n) {
			return nil, cas.StructuralError("insertions recorded against reference %d, file has %d", ref, n)
		}
	}
	refs := &References{
		list: make([]*Reference, n),
		byID: make(map[string]*Reference, n),
	}
	for i := 0; i < n; i++ {
		id, err := resolver.IDForIndex(int64(i))
		if err != nil {
			return nil, cas.StructuralError("no name for reference %d: %v", i, err)
		}
		if j, err := resolver.IndexForID(id); err != nil || j != int64(i) {
			return nil, cas.StructuralError("reference %s resolves to index %d, want %d (%v)", id, j, i, err)
		}
		ungapped, err := src.SequenceForID(id)
		if err != nil {
			return nil, cas.StructuralError("no sequence for reference %s: %v", id, err)
		}
		ref := &Reference{Index: i, ID: id, Ungapped: ungapped}
		if i < len(h.References) {
			d := h.References[i]
			if int(d.Length) != len(ungapped) {
				return nil, cas.StructuralError("reference %s has %d bases, header declares %d", id, len(ungapped), d.Length)
			}
			ref.Circular = d.Circular
		}
		ins := b.Insertions(uint64(i))
		if ref.Gapped, err = expand(ungapped, ins); err != nil {
			return nil, cas.StructuralError("reference %s: %v", id, err)
		}
		ref.Offsets = newOffsetMap(ins)
		if log.At(log.Debug) {
			log.Debug.Printf("reference %d %s: %d bases, %d insertions, %d gap columns",
				i, id, len(ungapped), ins.Len(), ins.Total())
		}
		if _, dup := refs.byID[id]; dup {
			return nil, cas.StructuralError("duplicate reference id %s", id)
		}
		refs.list[i] = ref
		refs.byID[id] = ref
	}
	return refs, nil
}

// expand returns ungapped with the insertions of m applied as gap runs.
// Insertions are applied in descending offset order, filling the result
// from its end.
func expand(ungapped string, m *InsertionMap) (string, error) {
	if m.Len() == 0 {
		return ungapped, nil
	}
	if max, _ := m.MaxOffset(); max > uint64(len(ungapped)) {
		return "", fmt.Errorf("insertion at offset %d past the end of a %d base sequence", max, len(ungapped))
	}
	buf := make([]byte, uint64(len(ungapped))+m.Total())
	w, end := len(buf), len(ungapped)
	m.DoReverse(func(offset uint64, length uint32) bool {
		off := int(offset)
		w -= copy(buf[w-(end-off):w], ungapped[off:end])
		nucleotide.FillGaps(buf[w-int(length) : w])
		w -= int(length)
		end = off
		return false
	})
	copy(buf[:w], ungapped[:end])
	return string(buf), nil
}

// Reference is a finished gapped reference sequence.
type Reference struct {
	// Index is the position of the reference in the cas file.
	Index    int
	ID       string
	Ungapped string
	Gapped   string
	Offsets  *OffsetMap
	Circular bool
}

// References is the immutable set of finished references of one cas file.
// It is safe for concurrent use.
type References struct {
	list []*Reference
	byID map[string]*Reference
}

// Len returns the number of references.
func (r *References) Len() int { return len(r.list) }

// ByIndex returns the reference at index i, or nil.
func (r *References) ByIndex(i int) *Reference {
	if i < 0 || i >= len(r.list) {
		return nil
	}
	return r.list[i]
}

// ByID returns the reference named id, or nil.
func (r *References) ByID(id string) *Reference {
	return r.byID[id]
}

// Index returns the index of the reference named id, or -1.
func (r *References) Index(id string) int {
	if ref := r.byID[id]; ref != nil {
		return ref.Index
	}
	return -1
}

// ID returns the id of the reference at index i, or "".
func (r *References) ID(i int) string {
	if ref := r.ByIndex(i); ref != nil {
		return ref.ID
	}
	return ""
}

// Do calls fn for each reference in index order until fn returns an error.
func (r *References) Do(fn func(ref *Reference) error) error {
	for _, ref := range r.list {
		if err := fn(ref); err != nil {
			return err
		}
	}
	return nil
}
