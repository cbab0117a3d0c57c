// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package export

import (
	"encoding/binary"
	"hash"

	"blainsmith.com/go/seahash"
	"github.com/grailbio/base/unsafe"
	"github.com/grailbio/cas/gapped"
)

// RefChecksum summarizes one gapped reference and the reads placed on it.
// Read sums are commutative, so the checksum does not depend on the order
// in which reads are added.
type RefChecksum struct {
	Name string
	// Gapped is the hash of the gapped reference sequence.
	Gapped uint64
	// NReads is the number of reads placed on the reference.
	NReads int64
	// SumStart is the sum of the gapped start columns of the reads.
	SumStart uint64
	// SumName, SumGapped and SumValid are sums of per-read hashes of the
	// read names, gapped bases and valid ranges.
	SumName   uint64
	SumGapped uint64
	SumValid  uint64
}

// Checksum accumulates checksums of the gapped references and placed reads
// of an assembly. It is not safe for concurrent use.
type Checksum struct {
	Refs []RefChecksum
	h    hash.Hash64
}

// NewChecksum returns a Checksum with the gapped sequences of refs.
func NewChecksum(refs *gapped.References) *Checksum {
	c := &Checksum{Refs: make([]RefChecksum, refs.Len()), h: seahash.New()}
	_ = refs.Do(func(ref *gapped.Reference) error {
		c.h.Reset()
		_, _ = c.h.Write(unsafe.StringToBytes(ref.Gapped))
		c.Refs[ref.Index] = RefChecksum{Name: ref.ID, Gapped: c.h.Sum64()}
		return nil
	})
	return c
}

func (c *Checksum) hashField(pos [8]byte, value []byte) uint64 {
	c.h.Reset()
	_, _ = c.h.Write(pos[:])
	_, _ = c.h.Write(value)
	return c.h.Sum64()
}

// Add adds a placed read.
func (c *Checksum) Add(r *gapped.PlacedRead) {
	rc := &c.Refs[r.ReferenceIndex]
	rc.NReads++
	rc.SumStart += uint64(r.Start)

	pos := [8]byte{}
	binary.LittleEndian.PutUint32(pos[:], uint32(r.ReferenceIndex))
	binary.LittleEndian.PutUint32(pos[4:], uint32(r.Start))
	rc.SumName += c.hashField(pos, unsafe.StringToBytes(r.ID))
	rc.SumGapped += c.hashField(pos, unsafe.StringToBytes(r.Gapped))

	value := [9]byte{}
	binary.LittleEndian.PutUint32(value[:4], uint32(r.Valid.Begin))
	binary.LittleEndian.PutUint32(value[4:8], uint32(r.Valid.End))
	if r.Reversed {
		value[8] = 1
	}
	rc.SumValid += c.hashField(pos, value[:])
}

// Sum returns a single digest of every reference checksum.
func (c *Checksum) Sum() uint64 {
	c.h.Reset()
	var b [8]byte
	for _, rc := range c.Refs {
		_, _ = c.h.Write(unsafe.StringToBytes(rc.Name))
		for _, v := range []uint64{rc.Gapped, uint64(rc.NReads), rc.SumStart, rc.SumName, rc.SumGapped, rc.SumValid} {
			binary.LittleEndian.PutUint64(b[:], v)
			_, _ = c.h.Write(b[:])
		}
	}
	return c.h.Sum64()
}
