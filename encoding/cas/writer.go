// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package cas

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Writer encodes a cas file. Match records are written as they arrive; the
// header is written by Close, after the last record, and the prolog is
// patched to point at it.
type Writer struct {
	w   io.WriteSeeker
	buf *bufio.Writer
	h   Header
	off uint64
	n   uint32
	rec []byte
	err error
}

// NewWriter writes the prolog of a cas file to w and returns a Writer for
// its match records. Of h, the reference count, program, file groups,
// scoring scheme and reference descriptions are used; the read count is
// set to the number of records written. h is not modified.
func NewWriter(w io.WriteSeeker, h *Header) (*Writer, error) {
	cw := &Writer{w: w, buf: bufio.NewWriter(w), h: *h, off: prologSize}
	if h.Scoring == nil {
		cw.h.References = nil
	} else if len(h.References) != int(h.ReferenceCount) {
		return nil, fmt.Errorf("cas: %d reference descriptions for %d references", len(h.References), h.ReferenceCount)
	}
	if err := cw.h.computeWidths(); err != nil {
		return nil, err
	}
	var prolog [prologSize]byte
	copy(prolog[:], Magic[:])
	if _, err := cw.buf.Write(prolog[:]); err != nil {
		return nil, err
	}
	return cw, nil
}

// Header returns the header as it will be written, including the computed
// byte widths.
func (w *Writer) Header() *Header {
	return &w.h
}

// Write appends the match record of the next read.
func (w *Writer) Write(m *Match) error {
	if w.err != nil {
		return w.err
	}
	w.rec, w.err = appendMatch(w.rec[:0], m, &w.h)
	if w.err != nil {
		return w.err
	}
	if _, w.err = w.buf.Write(w.rec); w.err != nil {
		return w.err
	}
	w.off += uint64(len(w.rec))
	w.n++
	return nil
}

// Close writes the header and patches the header offset. It does not close
// the underlying writer.
func (w *Writer) Close() error {
	if w.err != nil {
		return w.err
	}
	w.h.ReadCount = w.n
	w.h.HeaderOffset = w.off
	if _, err := w.buf.Write(appendHeader(nil, &w.h)); err != nil {
		return err
	}
	if err := w.buf.Flush(); err != nil {
		return err
	}
	if _, err := w.w.Seek(int64(len(Magic)), io.SeekStart); err != nil {
		return err
	}
	var off [8]byte
	binary.LittleEndian.PutUint64(off[:], w.off)
	if _, err := w.w.Write(off[:]); err != nil {
		return err
	}
	_, err := w.w.Seek(0, io.SeekEnd)
	w.err = fmt.Errorf("cas: writer closed")
	return err
}

// Marshal returns the complete encoding of a cas file with header h and the
// given match records, one per read.
func Marshal(h *Header, matches []*Match) ([]byte, error) {
	var ws writeSeeker
	w, err := NewWriter(&ws, h)
	if err != nil {
		return nil, err
	}
	for _, m := range matches {
		if err := w.Write(m); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return ws.buf, nil
}

// writeSeeker is an in-memory io.WriteSeeker.
type writeSeeker struct {
	buf []byte
	pos int
}

func (s *writeSeeker) Write(p []byte) (int, error) {
	if end := s.pos + len(p); end > len(s.buf) {
		s.buf = append(s.buf, make([]byte, end-len(s.buf))...)
	}
	n := copy(s.buf[s.pos:], p)
	s.pos += n
	return n, nil
}

func (s *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = int64(s.pos) + offset
	case io.SeekEnd:
		pos = int64(len(s.buf)) + offset
	default:
		return 0, fmt.Errorf("cas: invalid whence %d", whence)
	}
	if pos < 0 {
		return 0, fmt.Errorf("cas: negative seek position %d", pos)
	}
	s.pos = int(pos)
	return pos, nil
}
