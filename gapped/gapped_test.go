// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package gapped_test

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/grailbio/cas/encoding/cas"
	"github.com/grailbio/cas/gapped"
	"github.com/grailbio/cas/nucleotide"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"
)

const ref0 = "ACGTACGTACGTACGTACGT"

// seqs is an in-memory index resolver and sequence source.
type seqs struct {
	ids   []string
	bases map[string]string
}

func newSeqs(kv ...string) *seqs {
	s := &seqs{bases: map[string]string{}}
	for i := 0; i < len(kv); i += 2 {
		s.ids = append(s.ids, kv[i])
		s.bases[kv[i]] = kv[i+1]
	}
	return s
}

func (s *seqs) IDForIndex(i int64) (string, error) {
	if i < 0 || i >= int64(len(s.ids)) {
		return "", fmt.Errorf("index %d out of range", i)
	}
	return s.ids[i], nil
}

func (s *seqs) IndexForID(id string) (int64, error) {
	for i, x := range s.ids {
		if x == id {
			return int64(i), nil
		}
	}
	return -1, fmt.Errorf("unknown id %s", id)
}

func (s *seqs) SequenceForID(id string) (string, error) {
	b, ok := s.bases[id]
	if !ok {
		return "", fmt.Errorf("unknown id %s", id)
	}
	return b, nil
}

func m(n uint32) cas.Region { return cas.Region{Type: cas.MatchMismatch, Length: n} }
func ins(n uint32) cas.Region { return cas.Region{Type: cas.Insert, Length: n} }
func del(n uint32) cas.Region { return cas.Region{Type: cas.Deletion, Length: n} }

func align(ref, start uint64, rs ...cas.Region) *cas.Alignment {
	return &cas.Alignment{ReferenceIndex: ref, Start: start, Regions: rs}
}

func header(n int) *cas.Header {
	return &cas.Header{ReferenceCount: uint32(n)}
}

func finalize(t *testing.T, b *gapped.ReferenceBuilder, s *seqs) *gapped.References {
	refs, err := b.Finalize(header(len(s.ids)), s, s)
	require.NoError(t, err)
	return refs
}

func TestInsertionMapKeepsMax(t *testing.T) {
	var m gapped.InsertionMap
	m.Record(10, 3)
	m.Record(10, 5)
	m.Record(10, 4)
	m.Record(2, 1)
	m.Record(7, 0)
	expect.EQ(t, m.Len(), 2)
	expect.EQ(t, m.Get(10), uint32(5))
	expect.EQ(t, m.Get(7), uint32(0))
	expect.EQ(t, m.Total(), uint64(6))
	max, ok := m.MaxOffset()
	expect.True(t, ok)
	expect.EQ(t, max, uint64(10))

	var got []string
	m.Do(func(off uint64, n uint32) bool {
		got = append(got, fmt.Sprintf("%d:%d", off, n))
		return false
	})
	expect.EQ(t, got, []string{"2:1", "10:5"})
}

func TestMaxNotSum(t *testing.T) {
	b := gapped.NewReferenceBuilder()
	b.Add(align(0, 5, m(5), ins(3), m(5)))
	b.Add(align(0, 8, m(2), ins(5), m(3)))
	refs := finalize(t, b, newSeqs("r0", ref0))
	r := refs.ByIndex(0)
	expect.EQ(t, r.Gapped, ref0[:10]+"-----"+ref0[10:])
	expect.EQ(t, nucleotide.CountGaps(r.Gapped), 5)
	expect.EQ(t, b.Alignments(), 2)
}

func TestOverhangsDoNotInsert(t *testing.T) {
	b := gapped.NewReferenceBuilder()
	b.Add(align(0, 4, ins(6), m(4), ins(9)))
	b.Add(align(0, 0, ins(12)))
	refs := finalize(t, b, newSeqs("r0", ref0))
	expect.EQ(t, refs.ByIndex(0).Gapped, ref0)
	expect.EQ(t, b.Insertions(0).Len(), 0)
}

func TestDeletionAdvancesOffset(t *testing.T) {
	b := gapped.NewReferenceBuilder()
	b.Add(align(0, 2, m(3), del(4), ins(2), m(1)))
	expect.EQ(t, b.Insertions(0).Get(9), uint32(2))
}

func TestRoundTripAndLength(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	const alphabet = "ACGT"
	for iter := 0; iter < 20; iter++ {
		refBytes := make([]byte, 50+r.Intn(200))
		for i := range refBytes {
			refBytes[i] = alphabet[r.Intn(4)]
		}
		ref := string(refBytes)
		b := gapped.NewReferenceBuilder()
		want := map[uint64]uint32{}
		for i := 0; i < 30; i++ {
			start := uint64(r.Intn(len(ref) - 20))
			left := uint32(1 + r.Intn(10))
			n := uint32(1 + r.Intn(6))
			b.Add(align(0, start, m(left), ins(n), m(5)))
			if off := start + uint64(left); n > want[off] {
				want[off] = n
			}
		}
		refs := finalize(t, b, newSeqs("r", ref))
		g := refs.ByIndex(0)
		var total uint64
		for _, n := range want {
			total += uint64(n)
		}
		expect.EQ(t, nucleotide.Ungap(g.Gapped), ref)
		expect.EQ(t, uint64(len(g.Gapped)), uint64(len(ref))+total)
		expect.EQ(t, g.Offsets.TotalGaps(), total)

		// Every ungapped base maps to a column holding that base, and back.
		for u := 0; u < len(ref); u++ {
			col := g.Offsets.Gapped(uint64(u))
			expect.EQ(t, g.Gapped[col], ref[u])
			back, gap := g.Offsets.Ungapped(col)
			expect.False(t, gap)
			expect.EQ(t, back, uint64(u))
			expect.EQ(t, uint64(strings.Count(g.Gapped[:col], "-")), col-uint64(u))
		}
		for col := range g.Gapped {
			u, gap := g.Offsets.Ungapped(uint64(col))
			expect.EQ(t, gap, g.Gapped[col] == '-')
			if gap {
				expect.True(t, g.Offsets.GapBefore(u) > 0)
			}
		}
	}
}

func TestInsertionAtEnd(t *testing.T) {
	b := gapped.NewReferenceBuilder()
	b.Add(align(0, 16, m(4), ins(2), cas.Region{Type: cas.PhaseChange, Phase: 1}))
	refs := finalize(t, b, newSeqs("r0", ref0))
	expect.EQ(t, refs.ByIndex(0).Gapped, ref0+"--")
}

func TestFinalizeErrors(t *testing.T) {
	b := gapped.NewReferenceBuilder()
	_, err := b.Finalize(header(2), newSeqs("r0", ref0), newSeqs("r0", ref0))
	expect.True(t, cas.IsStructuralMismatch(err), "%v", err)

	b.Add(align(3, 0, m(1), ins(1), m(1)))
	_, err = b.Finalize(header(1), newSeqs("r0", ref0), newSeqs("r0", ref0))
	expect.True(t, cas.IsStructuralMismatch(err), "%v", err)

	b = gapped.NewReferenceBuilder()
	b.Add(align(0, 3, m(1), ins(1), m(1)))
	_, err = b.Finalize(header(1), newSeqs("r0", ref0), newSeqs("r0", "ACG"))
	expect.True(t, cas.IsStructuralMismatch(err), "%v", err)

	h := header(1)
	h.Scoring = &cas.ScoringScheme{Type: cas.NucleotideScore}
	h.References = []cas.ReferenceDescription{{Length: 19}}
	_, err = gapped.NewReferenceBuilder().Finalize(h, newSeqs("r0", ref0), newSeqs("r0", ref0))
	expect.True(t, cas.IsStructuralMismatch(err), "%v", err)
}

func TestReferencesLookup(t *testing.T) {
	h := header(2)
	h.Scoring = &cas.ScoringScheme{Type: cas.NucleotideScore}
	h.References = []cas.ReferenceDescription{{Length: 20}, {Length: 4, Circular: true}}
	s := newSeqs("chr1", ref0, "plasmid", "GGCC")
	refs, err := gapped.NewReferenceBuilder().Finalize(h, s, s)
	assert.NoError(t, err)
	expect.EQ(t, refs.Len(), 2)
	expect.EQ(t, refs.ID(1), "plasmid")
	expect.EQ(t, refs.Index("chr1"), 0)
	expect.EQ(t, refs.Index("chrX"), -1)
	expect.True(t, refs.ByID("plasmid").Circular)
	expect.False(t, refs.ByIndex(0).Circular)
	expect.True(t, refs.ByIndex(2) == nil)

	var ids []string
	assert.NoError(t, refs.Do(func(r *gapped.Reference) error {
		ids = append(ids, r.ID)
		return nil
	}))
	expect.EQ(t, ids, []string{"chr1", "plasmid"})
}
