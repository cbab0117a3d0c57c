// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package binding

import (
	"fmt"

	farm "github.com/dgryski/go-farm"
	"github.com/grailbio/base/unsafe"
	"github.com/grailbio/cas/encoding/cas"
)

// Store is an in-memory, ordered collection of sequences. A sequence's
// index is its position in the order sequences were added. Store implements
// IndexResolver and SequenceSource. It is not safe for concurrent writers
// but is safe for concurrent readers once fully loaded.
type Store struct {
	seqs []Sequence
	// index maps the fingerprint of an id to the positions of the
	// sequences whose ids share it.
	index map[uint64][]int32
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{index: make(map[uint64][]int32)}
}

func fingerprint(id string) uint64 {
	return farm.Fingerprint64(unsafe.StringToBytes(id))
}

func (s *Store) lookup(id string) int {
	for _, i := range s.index[fingerprint(id)] {
		if s.seqs[i].ID == id {
			return int(i)
		}
	}
	return -1
}

// Add appends seq. Sequence ids must be unique.
func (s *Store) Add(seq Sequence) error {
	if s.lookup(seq.ID) >= 0 {
		return cas.StructuralError("duplicate sequence id %s", seq.ID)
	}
	fp := fingerprint(seq.ID)
	s.index[fp] = append(s.index[fp], int32(len(s.seqs)))
	s.seqs = append(s.seqs, seq)
	return nil
}

// Len returns the number of sequences.
func (s *Store) Len() int { return len(s.seqs) }

// At returns the sequence at index i.
func (s *Store) At(i int) *Sequence { return &s.seqs[i] }

// IDForIndex implements IndexResolver.
func (s *Store) IDForIndex(i int64) (string, error) {
	if i < 0 || i >= int64(len(s.seqs)) {
		return "", fmt.Errorf("index %d out of range [0, %d)", i, len(s.seqs))
	}
	return s.seqs[i].ID, nil
}

// IndexForID implements IndexResolver.
func (s *Store) IndexForID(id string) (int64, error) {
	if i := s.lookup(id); i >= 0 {
		return int64(i), nil
	}
	return -1, fmt.Errorf("unknown sequence %s", id)
}

// SequenceForID implements SequenceSource.
func (s *Store) SequenceForID(id string) (string, error) {
	if i := s.lookup(id); i >= 0 {
		return s.seqs[i].Bases, nil
	}
	return "", fmt.Errorf("unknown sequence %s", id)
}
