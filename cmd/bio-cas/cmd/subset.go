// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/cas/binding"
	"github.com/grailbio/cas/encoding/cas"
	"github.com/grailbio/cas/encoding/fasta"
	"github.com/grailbio/cas/encoding/fastq"
)

// subset writes the reads [begin, end) of src and their match records as
// a new cas file at dst. The reads are written to a companion read file
// next to dst; reference files keep pointing at the originals.
func subset(ctx context.Context, af assemblyFlags, src, dst string, begin, end int) (err error) {
	h, err := cas.ReadHeader(ctx, cas.FileSource(src))
	if err != nil {
		return err
	}
	if end < 0 || end > int(h.ReadCount) {
		end = int(h.ReadCount)
	}
	if begin < 0 || begin > end {
		return fmt.Errorf("subset: invalid read range [%d,%d) of %d reads", begin, end, h.ReadCount)
	}
	dir := *af.dir
	if dir == "" {
		dir = filepath.Dir(src)
	}
	opts := binding.Opts{Dir: dir}
	if *af.trimMap != "" {
		if opts.TrimMap, err = binding.LoadTrimMap(ctx, *af.trimMap); err != nil {
			return err
		}
	}

	reads, err := readWindow(ctx, h, opts, *af.queueSize, begin, end)
	if err != nil {
		return err
	}
	var matches []*cas.Match
	p := cas.NewParser(cas.FileSource(src))
	err = p.Accept(ctx, cas.VisitorFunc(func(ev *cas.Event) error {
		if ev.Kind != cas.MatchEvent {
			return nil
		}
		if ev.Index >= end {
			p.Halt()
			return nil
		}
		if ev.Index >= begin {
			m := *ev.Match
			matches = append(matches, &m)
		}
		return nil
	}))
	if err != nil {
		return err
	}

	readsName, err := writeWindow(ctx, dst, reads)
	if err != nil {
		return err
	}
	sub := *h
	sub.ReferenceFiles = nil
	for _, g := range h.ReferenceFiles {
		g.Names = append([]string(nil), g.Names...)
		for i, name := range g.Names {
			if g.Names[i], err = absPath(opts.ResolvePath(name)); err != nil {
				return err
			}
		}
		sub.ReferenceFiles = append(sub.ReferenceFiles, g)
	}
	var residues uint64
	for _, r := range reads {
		residues += uint64(len(r.Bases))
	}
	sub.ReadFiles = []cas.FileGroup{{SequenceCount: uint32(len(reads)), ResidueCount: residues, Names: []string{readsName}}}
	data, err := cas.Marshal(&sub, matches)
	if err != nil {
		return err
	}
	f, err := file.Create(ctx, dst)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, f, &err)
	if _, err = f.Writer(ctx).Write(data); err != nil {
		return err
	}
	log.Printf("subset: wrote %d reads of %s to %s", len(reads), src, dst)
	return nil
}

func absPath(path string) (string, error) {
	if strings.Contains(path, "://") {
		return path, nil
	}
	return filepath.Abs(path)
}

// readWindow returns the reads [begin, end) trimmed to the bases given to
// the aligner.
func readWindow(ctx context.Context, h *cas.Header, opts binding.Opts, queueSize, begin, end int) (reads []binding.Sequence, err error) {
	if begin == end {
		return nil, nil
	}
	stream := binding.NewReadStream(ctx, h.ReadFiles, opts, queueSize)
	defer func() {
		if err2 := stream.Close(); err == nil {
			err = err2
		}
	}()
	r, err := stream.Seek(int64(begin))
	for i := begin; ; i++ {
		if err != nil {
			if err == io.EOF {
				err = cas.StructuralError("read %d requested but the read files hold only %d reads", i, i)
			}
			return nil, err
		}
		seq := r.Sequence
		if t := seq.Trim; t != nil {
			seq.Bases = seq.Bases[t.Begin:t.End]
			if seq.Qual != "" {
				seq.Qual = seq.Qual[t.Begin:t.End]
			}
			seq.Trim = nil
		}
		reads = append(reads, seq)
		if i+1 == end {
			return reads, nil
		}
		r, err = stream.Next()
	}
}

// writeWindow writes reads next to dst as FASTQ, or as FASTA when any read
// lacks qualities, and returns the base name of the file.
func writeWindow(ctx context.Context, dst string, reads []binding.Sequence) (name string, err error) {
	ext := ".reads.fq"
	for _, r := range reads {
		if r.Qual == "" {
			ext = ".reads.fa"
			break
		}
	}
	base := filepath.Base(dst)
	name = strings.TrimSuffix(base, filepath.Ext(base)) + ext
	f, err := file.Create(ctx, filepath.Join(filepath.Dir(dst), name))
	if err != nil {
		return "", err
	}
	defer file.CloseAndReport(ctx, f, &err)
	w := f.Writer(ctx)
	if ext == ".reads.fa" {
		fw := fasta.NewWriter(w, fasta.DefaultLineWidth)
		for _, r := range reads {
			if err := fw.Write(r.ID, "", r.Bases); err != nil {
				return "", err
			}
		}
		return name, nil
	}
	qw := fastq.NewWriter(w)
	for _, r := range reads {
		if err := qw.Write(&fastq.Read{ID: r.ID, Seq: r.Bases, Qual: r.Qual}); err != nil {
			return "", err
		}
	}
	return name, nil
}
