// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package binding_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/cas/binding"
	"github.com/grailbio/cas/encoding/cas"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, data string) {
	if strings.HasSuffix(path, ".gz") {
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		_, err := w.Write([]byte(data))
		require.NoError(t, err)
		require.NoError(t, w.Close())
		data = buf.String()
	}
	require.NoError(t, ioutil.WriteFile(path, []byte(data), 0644))
}

func fastq(reads ...string) string {
	var b strings.Builder
	for i := 0; i < len(reads); i += 2 {
		fmt.Fprintf(&b, "@%s extra\n%s\n+\n%s\n", reads[i], reads[i+1], strings.Repeat("I", len(reads[i+1])))
	}
	return b.String()
}

func ids(s *binding.Store) []string {
	var ids []string
	for i := 0; i < s.Len(); i++ {
		ids = append(ids, s.At(i).ID)
	}
	return ids
}

func TestStore(t *testing.T) {
	s := binding.NewStore()
	assert.NoError(t, s.Add(binding.Sequence{ID: "a", Bases: "ACGT"}))
	assert.NoError(t, s.Add(binding.Sequence{ID: "b", Bases: "GG"}))
	expect.True(t, cas.IsStructuralMismatch(s.Add(binding.Sequence{ID: "a"})))
	expect.EQ(t, s.Len(), 2)

	id, err := s.IDForIndex(1)
	assert.NoError(t, err)
	expect.EQ(t, id, "b")
	i, err := s.IndexForID("a")
	assert.NoError(t, err)
	expect.EQ(t, i, int64(0))
	bases, err := s.SequenceForID("b")
	assert.NoError(t, err)
	expect.EQ(t, bases, "GG")

	_, err = s.IDForIndex(2)
	expect.True(t, err != nil)
	_, err = s.IndexForID("c")
	expect.True(t, err != nil)
	_, err = s.SequenceForID("c")
	expect.True(t, err != nil)
}

func TestFormatForPath(t *testing.T) {
	tests := []struct {
		path string
		want binding.Format
	}{
		{"ref.fa", binding.FASTA},
		{"ref.FASTA.gz", binding.FASTA},
		{"contigs.con", binding.FASTA},
		{"r_1.fq.gz", binding.FASTQ},
		{"r.fastq.zst", binding.FASTQ},
		{"run.sff", binding.SFF},
		{"notes.txt", binding.Unknown},
	}
	for _, tt := range tests {
		expect.EQ(t, binding.FormatForPath(tt.path), tt.want, tt.path)
	}
}

func TestResolvePath(t *testing.T) {
	opts := binding.Opts{Dir: "/data/run"}
	expect.EQ(t, opts.ResolvePath("ref.fa"), "/data/run/ref.fa")
	expect.EQ(t, opts.ResolvePath("/abs/ref.fa"), "/abs/ref.fa")
	expect.EQ(t, opts.ResolvePath("s3://bucket/ref.fa"), "s3://bucket/ref.fa")
	expect.EQ(t, binding.Opts{}.ResolvePath("ref.fa"), "ref.fa")
}

func TestLoadReferences(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "binding")
	defer cleanup()
	writeFile(t, filepath.Join(dir, "a.fa"), ">chr1 first\nACGT\nAC\n>chr2\nGGGG\n")
	writeFile(t, filepath.Join(dir, "b.fasta.gz"), ">chr3\nTTTT\n")
	writeFile(t, filepath.Join(dir, "c.seqs"), ">chr4\nCC\n")

	groups := []cas.FileGroup{
		{SequenceCount: 2, Names: []string{"a.fa"}},
		{SequenceCount: 1, Names: []string{"b.fasta.gz"}},
		{SequenceCount: 1, Names: []string{"c.seqs"}},
	}
	ctx := vcontext.Background()
	for _, parallelism := range []int{0, 1, 2, 8} {
		s, err := binding.LoadReferences(ctx, groups, binding.Opts{Dir: dir, Parallelism: parallelism})
		assert.NoError(t, err)
		expect.EQ(t, ids(s), []string{"chr1", "chr2", "chr3", "chr4"})
		expect.EQ(t, s.At(0).Bases, "ACGTAC")
		expect.EQ(t, s.At(2).Bases, "TTTT")
	}

	groups[0].SequenceCount = 3
	_, err := binding.LoadReferences(ctx, groups, binding.Opts{Dir: dir})
	expect.True(t, cas.IsStructuralMismatch(err), "%v", err)

	_, err = binding.LoadReferences(ctx, []cas.FileGroup{{SequenceCount: 1, Names: []string{"missing.fa"}}}, binding.Opts{Dir: dir})
	expect.True(t, err != nil)

	writeFile(t, filepath.Join(dir, "dup.fa"), ">chr1\nA\n")
	groups = []cas.FileGroup{
		{SequenceCount: 2, Names: []string{"a.fa"}},
		{SequenceCount: 1, Names: []string{"dup.fa"}},
	}
	_, err = binding.LoadReferences(ctx, groups, binding.Opts{Dir: dir})
	expect.True(t, cas.IsStructuralMismatch(err), "%v", err)
}

func TestLoadPairedReads(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "binding")
	defer cleanup()
	writeFile(t, filepath.Join(dir, "r_1.fq"), fastq("p1/1", "AAAA", "p2/1", "CCCC"))
	writeFile(t, filepath.Join(dir, "r_2.fq.gz"), fastq("p1/2", "GGGG", "p2/2", "TTTT"))
	writeFile(t, filepath.Join(dir, "s.fq"), fastq("s1", "ACGTACGT"))
	ctx := vcontext.Background()

	for _, count := range []uint32{2, 4} {
		groups := []cas.FileGroup{
			{Paired: true, SequenceCount: count, Names: []string{"r_1.fq", "r_2.fq.gz"}},
			{SequenceCount: 1, Names: []string{"s.fq"}},
		}
		s, err := binding.LoadReads(ctx, groups, binding.Opts{Dir: dir})
		assert.NoError(t, err)
		expect.EQ(t, ids(s), []string{"p1/1", "p1/2", "p2/1", "p2/2", "s1"})
		expect.EQ(t, s.At(1).Bases, "GGGG")
		expect.EQ(t, s.At(4).Qual, "IIIIIIII")
		expect.True(t, s.At(4).Trim == nil)
	}

	writeFile(t, filepath.Join(dir, "short_2.fq"), fastq("p1/2", "GGGG"))
	groups := []cas.FileGroup{{Paired: true, SequenceCount: 2, Names: []string{"r_1.fq", "short_2.fq"}}}
	_, err := binding.LoadReads(ctx, groups, binding.Opts{Dir: dir})
	expect.True(t, cas.IsStructuralMismatch(err), "%v", err)
}

func TestTrimMap(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "binding")
	defer cleanup()
	writeFile(t, filepath.Join(dir, "trimmed.fq"), fastq("r1", "CGTA", "r3", "TTGG"))
	writeFile(t, filepath.Join(dir, "raw.fq.gz"), fastq("r1", "ACGTACG", "r2", "AAAA", "r3", "TTGG"))
	writeFile(t, filepath.Join(dir, "trim.tsv"), "# trimmed\tuntrimmed\ntrimmed.fq\traw.fq.gz\n")
	ctx := vcontext.Background()

	m, err := binding.LoadTrimMap(ctx, filepath.Join(dir, "trim.tsv"))
	assert.NoError(t, err)
	expect.EQ(t, m.UntrimmedFileFor("trimmed.fq"), "raw.fq.gz")
	expect.EQ(t, m.UntrimmedFileFor("/elsewhere/trimmed.fq"), "raw.fq.gz")
	expect.EQ(t, m.UntrimmedFileFor("other.fq"), "")

	groups := []cas.FileGroup{{SequenceCount: 2, Names: []string{"trimmed.fq"}}}
	s, err := binding.LoadReads(ctx, groups, binding.Opts{Dir: dir, TrimMap: m})
	assert.NoError(t, err)
	expect.EQ(t, ids(s), []string{"r1", "r3"})
	expect.EQ(t, s.At(0).Bases, "ACGTACG")
	expect.EQ(t, *s.At(0).Trim, cas.Range{Begin: 1, End: 5})
	expect.EQ(t, *s.At(1).Trim, cas.Range{Begin: 0, End: 4})

	writeFile(t, filepath.Join(dir, "bad.fq"), fastq("r1", "GGGGG"))
	m["bad.fq"] = "raw.fq.gz"
	groups = []cas.FileGroup{{SequenceCount: 1, Names: []string{"bad.fq"}}}
	_, err = binding.LoadReads(ctx, groups, binding.Opts{Dir: dir, TrimMap: m})
	expect.True(t, cas.IsStructuralMismatch(err), "%v", err)
}

func TestReadTrimMapErrors(t *testing.T) {
	_, err := binding.ReadTrimMap(strings.NewReader("a.fq\tb.fq\na.fq\tc.fq\n"))
	expect.True(t, err != nil)
	_, err = binding.ReadTrimMap(strings.NewReader("a.fq\n"))
	expect.True(t, err != nil)
}

func readGroups(t *testing.T, n int) (string, []cas.FileGroup, func()) {
	dir, cleanup := testutil.TempDir(t, "", "binding")
	var reads []string
	for i := 0; i < n; i++ {
		reads = append(reads, fmt.Sprintf("r%d", i), "ACGT")
	}
	writeFile(t, filepath.Join(dir, "a.fq"), fastq(reads[:n]...))
	writeFile(t, filepath.Join(dir, "b.fq"), fastq(reads[n:]...))
	return dir, []cas.FileGroup{
		{SequenceCount: uint32(n / 2), Names: []string{"a.fq"}},
		{SequenceCount: uint32(n - n/2), Names: []string{"b.fq"}},
	}, cleanup
}

func TestReadStream(t *testing.T) {
	dir, groups, cleanup := readGroups(t, 100)
	defer cleanup()
	ctx := vcontext.Background()

	s := binding.NewReadStream(ctx, groups, binding.Opts{Dir: dir}, 4)
	r, err := s.Peek()
	assert.NoError(t, err)
	expect.EQ(t, r.ID, "r0")
	r, err = s.Next()
	assert.NoError(t, err)
	expect.EQ(t, r.Index, int64(0))
	for i := 1; i < 60; i++ {
		r, err = s.Next()
		assert.NoError(t, err)
		expect.EQ(t, r.Index, int64(i))
		expect.EQ(t, r.ID, fmt.Sprintf("r%d", i))
	}
	r, err = s.Seek(75)
	assert.NoError(t, err)
	expect.EQ(t, r.ID, "r75")
	_, err = s.Seek(10)
	expect.True(t, err != nil)
	r, err = s.Seek(99)
	assert.NoError(t, err)
	expect.EQ(t, r.ID, "r99")
	_, err = s.Next()
	expect.EQ(t, err, io.EOF)
	_, err = s.Peek()
	expect.EQ(t, err, io.EOF)
	assert.NoError(t, s.Close())
}

func TestReadStreamSeekPastEnd(t *testing.T) {
	dir, groups, cleanup := readGroups(t, 10)
	defer cleanup()
	s := binding.NewReadStream(vcontext.Background(), groups, binding.Opts{Dir: dir}, 0)
	_, err := s.Seek(10)
	expect.True(t, cas.IsStructuralMismatch(err), "%v", err)
	assert.NoError(t, s.Close())
}

func TestReadStreamEarlyClose(t *testing.T) {
	dir, groups, cleanup := readGroups(t, 1000)
	defer cleanup()
	s := binding.NewReadStream(vcontext.Background(), groups, binding.Opts{Dir: dir}, 2)
	_, err := s.Next()
	assert.NoError(t, err)
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}

func TestReadStreamError(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "binding")
	defer cleanup()
	writeFile(t, filepath.Join(dir, "a.fq"), fastq("r0", "ACGT"))
	groups := []cas.FileGroup{
		{SequenceCount: 1, Names: []string{"a.fq"}},
		{SequenceCount: 1, Names: []string{"missing.fq"}},
	}
	s := binding.NewReadStream(vcontext.Background(), groups, binding.Opts{Dir: dir}, 0)
	r, err := s.Next()
	assert.NoError(t, err)
	expect.EQ(t, r.ID, "r0")
	_, err = s.Next()
	expect.True(t, err != nil && err != io.EOF, "%v", err)
	expect.True(t, s.Close() != nil)
}

func TestReadStreamCancel(t *testing.T) {
	dir, groups, cleanup := readGroups(t, 100)
	defer cleanup()
	ctx, cancel := context.WithCancel(vcontext.Background())
	cancel()
	s := binding.NewReadStream(ctx, groups, binding.Opts{Dir: dir}, 0)
	_, err := s.Next()
	expect.True(t, err != nil && err != io.EOF, "%v", err)
	s.Close()
}

func TestReadStreamDrain(t *testing.T) {
	dir, groups, cleanup := readGroups(t, 20)
	defer cleanup()
	s := binding.NewReadStream(vcontext.Background(), groups, binding.Opts{Dir: dir}, 2)
	r, err := s.Seek(3)
	assert.NoError(t, err)
	expect.EQ(t, r.ID, "r3")
	n, err := s.Drain()
	assert.NoError(t, err)
	expect.EQ(t, n, int64(20))
	assert.NoError(t, s.Close())

	// A file holding more reads than declared fails once it is read to the
	// end.
	groups[1].SequenceCount--
	s = binding.NewReadStream(vcontext.Background(), groups, binding.Opts{Dir: dir}, 2)
	_, err = s.Seek(3)
	assert.NoError(t, err)
	_, err = s.Drain()
	expect.True(t, cas.IsStructuralMismatch(err), "%v", err)
	expect.True(t, cas.IsStructuralMismatch(s.Close()))
}

func TestCheckSequenceCount(t *testing.T) {
	groups := []cas.FileGroup{
		{Paired: true, SequenceCount: 4, Names: []string{"a_1.fq", "a_2.fq"}},
		{SequenceCount: 3, Names: []string{"b.fq"}},
	}
	assert.NoError(t, binding.CheckSequenceCount(groups, 7))
	assert.NoError(t, binding.CheckSequenceCount(groups, 11))
	for _, n := range []uint32{0, 3, 8, 12} {
		err := binding.CheckSequenceCount(groups, n)
		expect.True(t, cas.IsStructuralMismatch(err), "%d: %v", n, err)
	}
	assert.NoError(t, binding.CheckSequenceCount(nil, 0))
}
