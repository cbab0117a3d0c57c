// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package binding

import (
	"bufio"
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/cas/encoding/cas"
	"github.com/grailbio/cas/encoding/fasta"
	"github.com/grailbio/cas/encoding/fastq"
	"github.com/grailbio/cas/encoding/sff"
)

// Opts controls how sequence files are located and read.
type Opts struct {
	// Dir is the directory against which relative file names are resolved.
	// It is normally the directory of the cas file.
	Dir string
	// TrimMap, if set, is consulted before opening any read file.
	TrimMap TrimMap
	// Parallelism bounds the number of groups loaded concurrently by
	// LoadReferences and LoadReads. Values below one mean one.
	Parallelism int
}

// ResolvePath returns name resolved against o.Dir. Absolute paths and URLs
// are returned unchanged.
func (o Opts) ResolvePath(name string) string {
	if o.Dir == "" || filepath.IsAbs(name) || strings.Contains(name, "://") {
		return name
	}
	return file.Join(o.Dir, name)
}

// Format identifies a sequence file format.
type Format int

const (
	// Unknown is returned for unrecognized file names.
	Unknown Format = iota
	// FASTA files hold references or unqualified reads.
	FASTA
	// FASTQ files hold reads with qualities.
	FASTQ
	// SFF files hold 454 flowgram reads with clip points.
	SFF
)

// String implements fmt.Stringer.
func (f Format) String() string {
	switch f {
	case FASTA:
		return "FASTA"
	case FASTQ:
		return "FASTQ"
	case SFF:
		return "SFF"
	}
	return "unknown"
}

var compressionSuffixes = []string{".gz", ".bgz", ".bz2", ".zst", ".zstd", ".xz"}

// FormatForPath determines the format of path from its extension, ignoring
// any compression suffix.
func FormatForPath(path string) Format {
	name := strings.ToLower(path)
	for _, s := range compressionSuffixes {
		name = strings.TrimSuffix(name, s)
	}
	switch filepath.Ext(name) {
	case ".fa", ".fasta", ".fna", ".fas", ".con", ".seq":
		return FASTA
	case ".fq", ".fastq":
		return FASTQ
	case ".sff":
		return SFF
	}
	return Unknown
}

// sniff determines the format from the first bytes of a file.
func sniff(r *bufio.Reader) Format {
	b, _ := r.Peek(4)
	switch {
	case len(b) > 0 && b[0] == '>':
		return FASTA
	case len(b) > 0 && b[0] == '@':
		return FASTQ
	case string(b) == ".sff":
		return SFF
	}
	return Unknown
}

// sequenceReader yields the records of one sequence file.
type sequenceReader interface {
	// Next reads the next record into seq. It returns io.EOF after the
	// last record.
	Next(seq *Sequence) error
}

type fastaReader struct {
	s   *fasta.Scanner
	rec fasta.Record
}

func (r *fastaReader) Next(seq *Sequence) error {
	if !r.s.Scan(&r.rec) {
		if err := r.s.Err(); err != nil {
			return err
		}
		return io.EOF
	}
	*seq = Sequence{ID: r.rec.Name, Bases: r.rec.Seq}
	return nil
}

type fastqReader struct {
	s    *fastq.Scanner
	read fastq.Read
}

func (r *fastqReader) Next(seq *Sequence) error {
	if !r.s.Scan(&r.read) {
		if err := r.s.Err(); err != nil {
			return err
		}
		return io.EOF
	}
	*seq = Sequence{ID: r.read.Name(), Bases: r.read.Seq, Qual: r.read.Qual}
	return nil
}

type sffReader struct {
	r *sff.Reader
}

func (r *sffReader) Next(seq *Sequence) error {
	rd, err := r.r.Read()
	if err != nil {
		return err
	}
	trim := rd.Trim()
	qual := make([]byte, len(rd.Quality))
	for i, q := range rd.Quality {
		qual[i] = q + 33
	}
	*seq = Sequence{ID: rd.Name, Bases: rd.Bases, Qual: string(qual)}
	if trim.Begin > 0 || trim.End < len(rd.Bases) {
		seq.Trim = &trim
	}
	return nil
}

// sequenceFile is an open sequence file.
type sequenceFile struct {
	sequenceReader
	path string
	f    file.File
	rc   io.ReadCloser
}

func openSequenceFile(ctx context.Context, path string) (_ *sequenceFile, err error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "cas: opening sequence file", path)
	}
	defer func() {
		if err != nil {
			_ = f.Close(ctx)
		}
	}()
	rc, _ := compress.NewReader(f.Reader(ctx))
	br := bufio.NewReaderSize(rc, 1<<20)
	format := FormatForPath(path)
	if format == Unknown {
		format = sniff(br)
	}
	sf := &sequenceFile{path: path, f: f, rc: rc}
	switch format {
	case FASTA:
		sf.sequenceReader = &fastaReader{s: fasta.NewScanner(br)}
	case FASTQ:
		sf.sequenceReader = &fastqReader{s: fastq.NewScanner(br, fastq.ID|fastq.Seq|fastq.Qual)}
	case SFF:
		r, err := sff.NewReader(br)
		if err != nil {
			_ = rc.Close()
			return nil, errors.E(errors.Invalid, err, "cas: reading", path)
		}
		sf.sequenceReader = &sffReader{r: r}
	default:
		_ = rc.Close()
		return nil, errors.E(errors.NotSupported, "cas: unrecognized sequence file format", path)
	}
	return sf, nil
}

func (sf *sequenceFile) next(seq *Sequence) error {
	err := sf.Next(seq)
	if err != nil && err != io.EOF {
		return errors.E(err, "cas: reading", sf.path)
	}
	return err
}

func (sf *sequenceFile) close(ctx context.Context) error {
	err := sf.rc.Close()
	if err2 := sf.f.Close(ctx); err == nil {
		err = err2
	}
	return err
}

// trimmedFile reads a trimmed read file alongside the untrimmed file it was
// derived from. It yields the untrimmed bases with the location of the
// trimmed bases as the trim range. Untrimmed reads that were dropped by
// trimming are skipped.
type trimmedFile struct {
	trimmed, untrimmed *sequenceFile
	u                  Sequence
}

func (t *trimmedFile) next(seq *Sequence) error {
	var tr Sequence
	if err := t.trimmed.next(&tr); err != nil {
		return err
	}
	for {
		if err := t.untrimmed.next(&t.u); err != nil {
			if err == io.EOF {
				return cas.StructuralError("read %s of %s not found in untrimmed file %s", tr.ID, t.trimmed.path, t.untrimmed.path)
			}
			return err
		}
		if t.u.ID == tr.ID {
			break
		}
	}
	i := strings.Index(t.u.Bases, tr.Bases)
	if i < 0 {
		return cas.StructuralError("trimmed bases of read %s do not occur in its untrimmed sequence", tr.ID)
	}
	*seq = t.u
	if tr.Trim != nil {
		seq.Trim = &cas.Range{Begin: i + tr.Trim.Begin, End: i + tr.Trim.End}
	} else {
		seq.Trim = &cas.Range{Begin: i, End: i + len(tr.Bases)}
	}
	return nil
}

func (t *trimmedFile) close(ctx context.Context) error {
	err := t.trimmed.close(ctx)
	if err2 := t.untrimmed.close(ctx); err == nil {
		err = err2
	}
	return err
}

type recordFile interface {
	next(seq *Sequence) error
	close(ctx context.Context) error
}

func openRecordFile(ctx context.Context, name string, opts Opts) (recordFile, error) {
	path := opts.ResolvePath(name)
	sf, err := openSequenceFile(ctx, path)
	if err != nil {
		return nil, err
	}
	if opts.TrimMap == nil {
		return sf, nil
	}
	untrimmed := opts.TrimMap.UntrimmedFileFor(name)
	if untrimmed == "" && path != name {
		untrimmed = opts.TrimMap.UntrimmedFileFor(path)
	}
	if untrimmed == "" {
		return sf, nil
	}
	uf, err := openSequenceFile(ctx, opts.ResolvePath(untrimmed))
	if err != nil {
		_ = sf.close(ctx)
		return nil, err
	}
	log.Debug.Printf("cas: reading %s against untrimmed %s", path, uf.path)
	return &trimmedFile{trimmed: sf, untrimmed: uf}, nil
}

// CheckSequenceCount verifies that the declared counts of groups add up to
// n. A paired group may declare either its number of sequences or its
// number of pairs; one convention must hold for all groups.
func CheckSequenceCount(groups []cas.FileGroup, n uint32) error {
	var single, paired uint64
	for _, g := range groups {
		if g.Paired {
			paired += uint64(g.SequenceCount)
		} else {
			single += uint64(g.SequenceCount)
		}
	}
	if total := uint64(n); total != single+paired && total != single+2*paired {
		return cas.StructuralError("file groups declare %d sequences (%d paired), header declares %d",
			single+paired, paired, n)
	}
	return nil
}

// ForEachInGroup calls fn for every sequence of g in index order. Paired
// groups of two files interleave their records, first file first. The
// number of sequences must agree with the group's declared count; paired
// groups may declare either the number of sequences or the number of
// pairs. The Sequence passed to fn is reused between calls.
func ForEachInGroup(ctx context.Context, g cas.FileGroup, opts Opts, fn func(seq *Sequence) error) (err error) {
	files := make([]recordFile, 0, len(g.Names))
	defer func() {
		for _, f := range files {
			if err2 := f.close(ctx); err == nil {
				err = err2
			}
		}
	}()
	for _, name := range g.Names {
		f, err := openRecordFile(ctx, name, opts)
		if err != nil {
			return err
		}
		files = append(files, f)
	}
	var (
		seq Sequence
		n   uint64
	)
	emit := func() error {
		n++
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(&seq)
	}
	if g.Paired && len(files) == 2 {
		for {
			err1 := files[0].next(&seq)
			if err1 != nil && err1 != io.EOF {
				return err1
			}
			if err1 == nil {
				if err := emit(); err != nil {
					return err
				}
			}
			err2 := files[1].next(&seq)
			if err2 != nil && err2 != io.EOF {
				return err2
			}
			if err1 == io.EOF && err2 == io.EOF {
				break
			}
			if err1 != err2 {
				return cas.StructuralError("paired files %s have different record counts", strings.Join(g.Names, ", "))
			}
			if err := emit(); err != nil {
				return err
			}
		}
	} else {
		for _, f := range files {
			for {
				if err := f.next(&seq); err == io.EOF {
					break
				} else if err != nil {
					return err
				}
				if err := emit(); err != nil {
					return err
				}
			}
		}
	}
	count := uint64(g.SequenceCount)
	if n != count && !(g.Paired && n == 2*count) {
		return cas.StructuralError("files %s hold %d sequences, header declares %d",
			strings.Join(g.Names, ", "), n, count)
	}
	return nil
}

// ForEach calls fn for every sequence of groups in index order.
func ForEach(ctx context.Context, groups []cas.FileGroup, opts Opts, fn func(seq *Sequence) error) error {
	for _, g := range groups {
		if err := ForEachInGroup(ctx, g, opts, fn); err != nil {
			return err
		}
	}
	return nil
}

// load reads groups into a Store. Groups are read concurrently and added
// in order.
func load(ctx context.Context, what string, groups []cas.FileGroup, opts Opts) (*Store, error) {
	parallelism := opts.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}
	if parallelism > len(groups) {
		parallelism = len(groups)
	}
	seqs := make([][]Sequence, len(groups))
	err := traverse.Each(parallelism, func(job int) error {
		for i := job; i < len(groups); i += parallelism {
			err := ForEachInGroup(ctx, groups[i], opts, func(seq *Sequence) error {
				seqs[i] = append(seqs[i], *seq)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s := NewStore()
	for i := range seqs {
		for _, seq := range seqs[i] {
			if err := s.Add(seq); err != nil {
				return nil, err
			}
		}
		seqs[i] = nil
	}
	log.Printf("cas: loaded %d %s from %d file groups", s.Len(), what, len(groups))
	return s, nil
}

// LoadReferences reads every reference sequence named by groups. The trim
// map of opts is ignored.
func LoadReferences(ctx context.Context, groups []cas.FileGroup, opts Opts) (*Store, error) {
	opts.TrimMap = nil
	return load(ctx, "references", groups, opts)
}

// LoadReads reads every read named by groups into memory. Large read sets
// should be streamed with NewReadStream instead.
func LoadReads(ctx context.Context, groups []cas.FileGroup, opts Opts) (*Store, error) {
	return load(ctx, "reads", groups, opts)
}
