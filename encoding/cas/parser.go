// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package cas

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"v.io/x/lib/vlog"
)

// State is the decoding state of a Parser.
type State int32

const (
	StateUnstarted State = iota
	StateHeaderParsed
	StateMatchesVisited
	StateEnded
	StateHalted
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateHeaderParsed:
		return "header-parsed"
	case StateMatchesVisited:
		return "matches-visited"
	case StateEnded:
		return "ended"
	case StateHalted:
		return "halted"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// matchBufferSize is the read buffer used for the match stream.
const matchBufferSize = 1 << 20

// Parser decodes a single cas file. A Parser decodes its file at most once;
// construct a new Parser for every decode.
type Parser struct {
	src     Source
	started int32
	halt    int32
	state   int32
	header  *Header
}

// NewParser returns a Parser reading from src.
func NewParser(src Source) *Parser {
	return &Parser{src: src}
}

// Halt requests that decoding stop. The request is honored at the next
// match record boundary, after which the visitor receives a HaltedEvent
// instead of EndEvent. Halt may be called from any goroutine, including from
// within a Visit call.
func (p *Parser) Halt() {
	atomic.StoreInt32(&p.halt, 1)
}

// State returns the current decoding state.
func (p *Parser) State() State {
	return State(atomic.LoadInt32(&p.state))
}

// Header returns the decoded header, or nil if the header has not been
// parsed yet.
func (p *Parser) Header() *Header {
	if p.State() == StateUnstarted {
		return nil
	}
	return p.header
}

// SupportsResume reports whether the parser can produce resume points for
// partial re-entrant decoding. It cannot.
func (p *Parser) SupportsResume() bool { return false }

func (p *Parser) setState(s State) {
	atomic.StoreInt32(&p.state, int32(s))
}

func (p *Parser) halted(ctx context.Context) bool {
	return atomic.LoadInt32(&p.halt) != 0 || ctx.Err() != nil
}

// Accept decodes the file, sending events to v in file order. Cancelling
// ctx has the same effect as Halt. Any decoding error aborts the whole
// decode; no further events are sent.
func (p *Parser) Accept(ctx context.Context, v Visitor) error {
	if !atomic.CompareAndSwapInt32(&p.started, 0, 1) {
		return fmt.Errorf("cas: %s: parser already used", p.src.Name())
	}
	h, err := p.readHeader(ctx, v)
	if err != nil {
		return err
	}
	p.header = h
	p.setState(StateHeaderParsed)

	mv := v
	if ms, ok := v.(MatchStreamer); ok {
		mv = ms.MatchVisitor(h)
	}
	if p.halted(ctx) {
		return p.finish(v, h, HaltedEvent)
	}
	if mv != nil {
		stopped, err := p.visitMatches(ctx, h, mv)
		if err != nil {
			return err
		}
		if stopped {
			return p.finish(v, h, HaltedEvent)
		}
		p.setState(StateMatchesVisited)
	}
	return p.finish(v, h, EndEvent)
}

func (p *Parser) finish(v Visitor, h *Header, kind EventKind) error {
	if kind == HaltedEvent {
		p.setState(StateHalted)
	} else {
		p.setState(StateEnded)
	}
	return v.Visit(&Event{Kind: kind, Header: h})
}

// headerError converts a failed header read into a cas error.
func (p *Parser) headerError(err error, what string) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return formatError("%s: truncated header reading %s", p.src.Name(), what)
	}
	return ioError(err, fmt.Sprintf("%s: reading %s", p.src.Name(), what))
}

func (p *Parser) readHeader(ctx context.Context, v Visitor) (h *Header, err error) {
	s, err := p.src.Open(ctx)
	if err != nil {
		return nil, ioError(err, "opening "+p.src.Name())
	}
	defer func() {
		if e := s.Close(); e != nil && err == nil {
			err = ioError(e, "closing "+p.src.Name())
		}
	}()

	var magic [len(Magic)]byte
	if _, err := io.ReadFull(s, magic[:]); err != nil {
		return nil, p.headerError(err, "magic number")
	}
	if magic != Magic {
		return nil, formatError("%s: not a cas file: magic bytes %q", p.src.Name(), magic[:])
	}
	offset, err := ReadUint64(s)
	if err != nil {
		return nil, p.headerError(err, "header offset")
	}
	if offset < prologSize {
		return nil, formatError("%s: header offset %d inside the file prolog", p.src.Name(), offset)
	}
	if _, err := s.Seek(int64(offset), io.SeekStart); err != nil {
		return nil, ioError(err, fmt.Sprintf("seeking to header at %d", offset))
	}

	r := &reader{r: bufio.NewReader(s)}
	h = &Header{HeaderOffset: offset}
	h.ReferenceCount = r.uint32()
	h.ReadCount = r.uint32()
	if r.err != nil {
		return nil, p.headerError(r.err, "counts")
	}
	if err := v.Visit(&Event{Kind: MetadataEvent, Header: h}); err != nil {
		return nil, err
	}

	h.Program = ProgramInfo{
		Name:       r.pascalString(),
		Version:    r.pascalString(),
		Parameters: r.pascalString(),
	}
	if r.err != nil {
		return nil, p.headerError(r.err, "program info")
	}
	if err := v.Visit(&Event{Kind: ProgramInfoEvent, Header: h, Program: &h.Program}); err != nil {
		return nil, err
	}

	if h.ReferenceFiles = readFileGroups(r); r.err != nil {
		return nil, p.headerError(r.err, "reference file groups")
	}
	for i := range h.ReferenceFiles {
		if err := v.Visit(&Event{Kind: ReferenceFileEvent, Header: h, Index: i, FileGroup: &h.ReferenceFiles[i]}); err != nil {
			return nil, err
		}
	}
	if h.ReadFiles = readFileGroups(r); r.err != nil {
		return nil, p.headerError(r.err, "read file groups")
	}
	for i := range h.ReadFiles {
		if err := v.Visit(&Event{Kind: ReadFileEvent, Header: h, Index: i, FileGroup: &h.ReadFiles[i]}); err != nil {
			return nil, err
		}
	}

	if h.Scoring, err = readScoringScheme(r); err != nil {
		return nil, p.headerError(err, "scoring scheme")
	}
	if h.Scoring != nil {
		if err := v.Visit(&Event{Kind: ScoringSchemeEvent, Header: h, Scoring: h.Scoring}); err != nil {
			return nil, err
		}
		for i := uint32(0); i < h.ReferenceCount; i++ {
			var d ReferenceDescription
			d.Length = r.uint32()
			d.Circular = r.uint16()&0x1 != 0
			if r.err != nil {
				return nil, p.headerError(r.err, fmt.Sprintf("description of reference %d", i))
			}
			h.References = append(h.References, d)
		}
	}
	if err := h.computeWidths(); err != nil {
		return nil, err
	}
	for i := range h.References {
		if err := v.Visit(&Event{Kind: ReferenceDescriptionEvent, Header: h, Index: i, Reference: &h.References[i]}); err != nil {
			return nil, err
		}
	}
	vlog.VI(1).Infof("%s: %d references, %d reads, index width %d, position width %d",
		p.src.Name(), h.ReferenceCount, h.ReadCount, h.BytesForReferenceIndex, h.BytesForReferencePosition)
	return h, nil
}

// visitMatches streams the match records to v. It reports whether decoding
// stopped early because of a halt request.
func (p *Parser) visitMatches(ctx context.Context, h *Header, v Visitor) (stopped bool, err error) {
	s, err := p.src.Open(ctx)
	if err != nil {
		return false, ioError(err, "opening "+p.src.Name())
	}
	defer func() {
		if e := s.Close(); e != nil && err == nil {
			err = ioError(e, "closing "+p.src.Name())
		}
	}()
	if _, err := s.Seek(prologSize, io.SeekStart); err != nil {
		return false, ioError(err, "seeking to the match stream")
	}
	// Records end where the header begins.
	r := bufio.NewReaderSize(io.LimitReader(s, int64(h.HeaderOffset)-prologSize), matchBufferSize)
	ev := Event{Kind: MatchEvent, Header: h}
	for i := uint32(0); i < h.ReadCount; i++ {
		if p.halted(ctx) {
			vlog.VI(1).Infof("%s: halted before match %d of %d", p.src.Name(), i, h.ReadCount)
			return true, nil
		}
		m, err := decodeMatch(r, h)
		if err != nil {
			return false, ioError(truncated(err, i, h.ReadCount), fmt.Sprintf("%s: decoding match %d", p.src.Name(), i))
		}
		if vlog.V(3) && m.Alignment != nil {
			vlog.Infof("match %d: ref %d start %d reversed %v %v", i, m.Alignment.ReferenceIndex,
				m.Alignment.Start, m.Alignment.Reversed, m.Alignment.Regions)
		}
		ev.Index = int(i)
		ev.Match = m
		if err := v.Visit(&ev); err != nil {
			return false, err
		}
	}
	if _, err := r.ReadByte(); err != io.EOF {
		if err != nil {
			return false, ioError(err, fmt.Sprintf("%s: reading past match %d", p.src.Name(), h.ReadCount))
		}
		return false, structuralError("%s: bytes remain before the header after %d matches", p.src.Name(), h.ReadCount)
	}
	return false, nil
}

// ReadHeader decodes only the header of the cas file in src.
func ReadHeader(ctx context.Context, src Source) (*Header, error) {
	v := &headerOnly{}
	if err := NewParser(src).Accept(ctx, v); err != nil {
		return nil, err
	}
	return v.h, nil
}
