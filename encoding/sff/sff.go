// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package sff reads Standard Flowgram Format files, the read format of 454
// sequencers. All integers are big-endian and every section is padded to a
// multiple of eight bytes.
package sff

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/grailbio/cas/encoding/cas"
	"github.com/pkg/errors"
)

// Magic is the first four bytes of an SFF file, ".sff".
const Magic uint32 = 0x2E736666

// Version is the only supported SFF version.
var Version = [4]byte{0, 0, 0, 1}

// flowgramFormat1 stores flowgram values as uint16 hundredths.
const flowgramFormat1 = 1

// Header is the common header of an SFF file.
type Header struct {
	IndexOffset  uint64
	IndexLength  uint32
	ReadCount    uint32
	FlowsPerRead int
	Flows        string
	Key          string
}

// Read is a single SFF read. Clip positions are 1-based and inclusive as
// stored; zero means unset.
type Read struct {
	Name             string
	Bases            string
	Quality          []byte
	Flowgram         []uint16
	FlowIndex        []byte
	ClipQualLeft     int
	ClipQualRight    int
	ClipAdapterLeft  int
	ClipAdapterRight int
}

// Trim returns the clipped range of the read in 0-based half-open
// coordinates. The left clip is the larger of the quality and adapter left
// clips and the right clip the smaller of the set right clips.
func (r *Read) Trim() cas.Range {
	n := len(r.Bases)
	left := r.ClipQualLeft
	if r.ClipAdapterLeft > left {
		left = r.ClipAdapterLeft
	}
	if left < 1 {
		left = 1
	}
	right := n
	for _, c := range []int{r.ClipQualRight, r.ClipAdapterRight} {
		if c > 0 && c < right {
			right = c
		}
	}
	begin := left - 1
	if begin > n {
		begin = n
	}
	if right < begin {
		right = begin
	}
	return cas.Range{Begin: begin, End: right}
}

// Reader reads SFF records sequentially.
type Reader struct {
	r    *bufio.Reader
	h    Header
	off  uint64
	read uint32
}

// NewReader reads the common header from r and returns a Reader positioned
// at the first read.
func NewReader(r io.Reader) (*Reader, error) {
	sr := &Reader{r: bufio.NewReader(r)}
	var fixed struct {
		Magic        uint32
		Version      [4]byte
		IndexOffset  uint64
		IndexLength  uint32
		ReadCount    uint32
		HeaderLength uint16
		KeyLength    uint16
		FlowsPerRead uint16
		FlowgramCode uint8
	}
	if err := binary.Read(sr.r, binary.BigEndian, &fixed); err != nil {
		return nil, errors.Wrap(err, "sff: reading header")
	}
	if fixed.Magic != Magic {
		return nil, errors.Errorf("sff: bad magic number %#x", fixed.Magic)
	}
	if fixed.Version != Version {
		return nil, errors.Errorf("sff: unsupported version %v", fixed.Version)
	}
	if fixed.FlowgramCode != flowgramFormat1 {
		return nil, errors.Errorf("sff: unsupported flowgram format %d", fixed.FlowgramCode)
	}
	const fixedLength = 31
	sr.off = fixedLength
	flows, err := sr.bytes(int(fixed.FlowsPerRead))
	if err != nil {
		return nil, errors.Wrap(err, "sff: reading flow characters")
	}
	key, err := sr.bytes(int(fixed.KeyLength))
	if err != nil {
		return nil, errors.Wrap(err, "sff: reading key sequence")
	}
	if sr.off > uint64(fixed.HeaderLength) {
		return nil, errors.Errorf("sff: header length %d shorter than its contents", fixed.HeaderLength)
	}
	if err := sr.skip(uint64(fixed.HeaderLength) - sr.off); err != nil {
		return nil, errors.Wrap(err, "sff: reading header padding")
	}
	sr.h = Header{
		IndexOffset:  fixed.IndexOffset,
		IndexLength:  fixed.IndexLength,
		ReadCount:    fixed.ReadCount,
		FlowsPerRead: int(fixed.FlowsPerRead),
		Flows:        string(flows),
		Key:          string(key),
	}
	return sr, nil
}

// Header returns the common header.
func (r *Reader) Header() Header { return r.h }

func (r *Reader) bytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(r.r, b); err != nil {
		return nil, err
	}
	r.off += uint64(n)
	return b, nil
}

func (r *Reader) skip(n uint64) error {
	d, err := r.r.Discard(int(n))
	r.off += uint64(d)
	return err
}

func (r *Reader) pad() error {
	if rem := r.off % 8; rem != 0 {
		return r.skip(8 - rem)
	}
	return nil
}

// Read returns the next read. It returns io.EOF after the last read
// declared by the header.
func (r *Reader) Read() (*Read, error) {
	if r.read == r.h.ReadCount {
		return nil, io.EOF
	}
	if r.h.IndexLength > 0 && r.off == r.h.IndexOffset {
		if err := r.skip(uint64(r.h.IndexLength)); err != nil {
			return nil, errors.Wrap(err, "sff: skipping index")
		}
		if err := r.pad(); err != nil {
			return nil, errors.Wrap(err, "sff: skipping index padding")
		}
	}
	var fixed struct {
		HeaderLength     uint16
		NameLength       uint16
		BaseCount        uint32
		ClipQualLeft     uint16
		ClipQualRight    uint16
		ClipAdapterLeft  uint16
		ClipAdapterRight uint16
	}
	if err := binary.Read(r.r, binary.BigEndian, &fixed); err != nil {
		return nil, errors.Wrapf(unexpected(err), "sff: reading header of read %d", r.read)
	}
	start := r.off
	r.off += 16
	name, err := r.bytes(int(fixed.NameLength))
	if err != nil {
		return nil, errors.Wrapf(unexpected(err), "sff: reading name of read %d", r.read)
	}
	if end := start + uint64(fixed.HeaderLength); end < r.off {
		return nil, errors.Errorf("sff: read %d header length %d shorter than its contents", r.read, fixed.HeaderLength)
	} else if err := r.skip(end - r.off); err != nil {
		return nil, errors.Wrapf(unexpected(err), "sff: reading header padding of read %d", r.read)
	}
	rd := &Read{
		Name:             string(name),
		ClipQualLeft:     int(fixed.ClipQualLeft),
		ClipQualRight:    int(fixed.ClipQualRight),
		ClipAdapterLeft:  int(fixed.ClipAdapterLeft),
		ClipAdapterRight: int(fixed.ClipAdapterRight),
		Flowgram:         make([]uint16, r.h.FlowsPerRead),
	}
	if err := binary.Read(r.r, binary.BigEndian, rd.Flowgram); err != nil {
		return nil, errors.Wrapf(unexpected(err), "sff: reading flowgram of %s", rd.Name)
	}
	r.off += uint64(2 * r.h.FlowsPerRead)
	n := int(fixed.BaseCount)
	if rd.FlowIndex, err = r.bytes(n); err != nil {
		return nil, errors.Wrapf(unexpected(err), "sff: reading flow index of %s", rd.Name)
	}
	bases, err := r.bytes(n)
	if err != nil {
		return nil, errors.Wrapf(unexpected(err), "sff: reading bases of %s", rd.Name)
	}
	rd.Bases = string(bases)
	if rd.Quality, err = r.bytes(n); err != nil {
		return nil, errors.Wrapf(unexpected(err), "sff: reading qualities of %s", rd.Name)
	}
	if err := r.pad(); err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "sff: reading padding of %s", rd.Name)
	}
	r.read++
	return rd, nil
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
