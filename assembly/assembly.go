// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package assembly decodes a cas file together with its companion sequence
// files into gapped references and placed reads.
//
// Open makes a first pass over the match stream to size the gaps of every
// reference while the reference sequences are loaded. Reads makes a second
// pass, pairing every match record with its read and placing it against the
// finished references.
package assembly

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/cas/binding"
	"github.com/grailbio/cas/encoding/cas"
	"github.com/grailbio/cas/gapped"
)

// ErrHalted is returned by Open and Reads when decoding was stopped by
// Halt or by cancellation of the context.
var ErrHalted = errors.E(errors.Canceled, "cas: decoding halted")

// Opts controls how an assembly is opened.
type Opts struct {
	// Dir is the directory against which the sequence file names of the
	// header are resolved. It defaults to the directory of the cas file.
	Dir string
	// TrimMapPath, if set, names a trim map; see binding.LoadTrimMap.
	TrimMapPath string
	// QueueSize bounds the number of reads buffered ahead of placement.
	QueueSize int
	// Parallelism bounds the number of reference file groups loaded
	// concurrently.
	Parallelism int
}

// DefaultOpts are the default options.
var DefaultOpts = Opts{
	QueueSize:   binding.DefaultQueueSize,
	Parallelism: 4,
}

// Assembly is an opened cas file with its finished gapped references. It
// is safe to call Halt concurrently with Reads.
type Assembly struct {
	src        cas.Source
	header     *cas.Header
	refs       *gapped.References
	bind       binding.Opts
	queueSize  int
	alignments int

	mu     sync.Mutex
	active *cas.Parser
}

// Open decodes the cas file at path and builds its gapped references.
func Open(ctx context.Context, path string, opts Opts) (*Assembly, error) {
	if opts.Dir == "" {
		opts.Dir = filepath.Dir(path)
	}
	return OpenSource(ctx, cas.FileSource(path), opts)
}

// OpenSource is Open for an arbitrary cas source. opts.Dir should be set
// when the header names relative files.
func OpenSource(ctx context.Context, src cas.Source, opts Opts) (*Assembly, error) {
	a := &Assembly{
		src:       src,
		queueSize: opts.QueueSize,
		bind:      binding.Opts{Dir: opts.Dir, Parallelism: opts.Parallelism},
	}
	if opts.TrimMapPath != "" {
		m, err := binding.LoadTrimMap(ctx, opts.TrimMapPath)
		if err != nil {
			return nil, err
		}
		a.bind.TrimMap = m
	}
	h, err := cas.ReadHeader(ctx, src)
	if err != nil {
		return nil, err
	}
	a.header = h
	if err := binding.CheckSequenceCount(h.ReadFiles, h.ReadCount); err != nil {
		return nil, err
	}
	if err := binding.CheckSequenceCount(h.ReferenceFiles, h.ReferenceCount); err != nil {
		return nil, err
	}

	var (
		builder = gapped.NewReferenceBuilder()
		store   *binding.Store
		halted  bool
	)
	err = traverse.Each(2, func(job int) error {
		if job == 1 {
			var err error
			store, err = binding.LoadReferences(ctx, h.ReferenceFiles, a.bind)
			return err
		}
		p := a.begin()
		defer a.end()
		v := cas.VisitorFunc(func(ev *cas.Event) error {
			if ev.Kind == cas.HaltedEvent {
				halted = true
			}
			return builder.Visit(ev)
		})
		return p.Accept(ctx, v)
	})
	if err != nil {
		return nil, err
	}
	if halted {
		return nil, ErrHalted
	}
	a.alignments = builder.Alignments()
	if a.refs, err = builder.Finalize(h, store, store); err != nil {
		return nil, err
	}
	log.Printf("cas: %s: %d references, %d reads, %d alignments", src.Name(), a.refs.Len(), h.ReadCount, a.alignments)
	return a, nil
}

func (a *Assembly) begin() *cas.Parser {
	p := cas.NewParser(a.src)
	a.mu.Lock()
	a.active = p
	a.mu.Unlock()
	return p
}

func (a *Assembly) end() {
	a.mu.Lock()
	a.active = nil
	a.mu.Unlock()
}

// Halt stops the decode in progress, if any, at its next record boundary.
func (a *Assembly) Halt() {
	a.mu.Lock()
	if a.active != nil {
		a.active.Halt()
	}
	a.mu.Unlock()
}

// Header returns the cas header.
func (a *Assembly) Header() *cas.Header { return a.header }

// References returns the gapped references.
func (a *Assembly) References() *gapped.References { return a.refs }

// Alignments returns the number of aligned reads seen by the first pass.
func (a *Assembly) Alignments() int { return a.alignments }

// Name returns the name of the cas source.
func (a *Assembly) Name() string { return a.src.Name() }

// Reads decodes the match stream again and calls fn for every aligned read,
// in read order. Reads without an alignment are skipped. An error from fn
// stops decoding and is returned. The PlacedRead passed to fn is not
// retained.
func (a *Assembly) Reads(ctx context.Context, fn func(r *gapped.PlacedRead) error) (err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stream := binding.NewReadStream(ctx, a.header.ReadFiles, a.bind, a.queueSize)
	defer func() {
		if err2 := stream.Close(); err == nil {
			err = err2
		}
	}()
	var (
		placed, unmatched int
		halted            bool
	)
	p := a.begin()
	defer a.end()
	err = p.Accept(ctx, cas.VisitorFunc(func(ev *cas.Event) error {
		switch ev.Kind {
		case cas.HaltedEvent:
			halted = true
		case cas.MatchEvent:
			al := ev.Match.Alignment
			if al == nil {
				unmatched++
				return nil
			}
			r, err := stream.Seek(int64(ev.Index))
			if err != nil {
				return err
			}
			ref := a.refs.ByIndex(int(al.ReferenceIndex))
			if ref == nil {
				return cas.StructuralError("read %s: aligned to unknown reference %d", r.ID, al.ReferenceIndex)
			}
			pr, err := gapped.Place(gapped.PlaceInput{ID: r.ID, Bases: r.Bases, Alignment: al, Trim: r.Trim}, ref)
			if err != nil {
				return err
			}
			placed++
			return fn(pr)
		}
		return nil
	}))
	if err != nil {
		return err
	}
	if halted {
		return ErrHalted
	}
	n, err := stream.Drain()
	if err != nil {
		return err
	}
	if n != int64(a.header.ReadCount) {
		return cas.StructuralError("read files hold %d reads, header declares %d", n, a.header.ReadCount)
	}
	log.Debug.Printf("cas: %s: placed %d reads, %d unmatched", a.src.Name(), placed, unmatched)
	return nil
}
