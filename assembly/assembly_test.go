// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package assembly_test

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/cas/assembly"
	"github.com/grailbio/cas/assembly/assemblytest"
	"github.com/grailbio/cas/encoding/cas"
	"github.com/grailbio/cas/gapped"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"
)

func open(t *testing.T, opts assembly.Opts) (*assembly.Assembly, string, func()) {
	dir, cleanup := testutil.TempDir(t, "", "assembly")
	path, err := assemblytest.Write(dir)
	require.NoError(t, err)
	a, err := assembly.Open(vcontext.Background(), path, opts)
	require.NoError(t, err)
	return a, dir, cleanup
}

func TestOpen(t *testing.T) {
	a, _, cleanup := open(t, assembly.DefaultOpts)
	defer cleanup()
	expect.EQ(t, a.Header().ReadCount, uint32(len(assemblytest.Reads)))
	expect.EQ(t, a.Alignments(), 4)
	refs := a.References()
	assert.EQ(t, refs.Len(), len(assemblytest.Gapped))
	for i, want := range assemblytest.Gapped {
		ref := refs.ByIndex(i)
		expect.EQ(t, ref.ID, assemblytest.References[i].ID)
		expect.EQ(t, ref.Gapped, want)
	}
	expect.False(t, refs.ByIndex(0).Circular)
	expect.True(t, refs.ByIndex(1).Circular)
}

func collect(t *testing.T, a *assembly.Assembly) map[string]*gapped.PlacedRead {
	reads := map[string]*gapped.PlacedRead{}
	assert.NoError(t, a.Reads(vcontext.Background(), func(r *gapped.PlacedRead) error {
		reads[r.ID] = r
		return nil
	}))
	return reads
}

func TestReads(t *testing.T) {
	a, _, cleanup := open(t, assembly.Opts{QueueSize: 1})
	defer cleanup()
	reads := collect(t, a)
	assert.EQ(t, len(reads), len(assemblytest.Placed))
	for id, want := range assemblytest.Placed {
		expect.EQ(t, reads[id].Gapped, want, id)
	}
	r3 := reads["r3"]
	expect.True(t, r3.Reversed)
	expect.EQ(t, r3.ReferenceID, "chr2")
	expect.EQ(t, r3.Start, 0)
	r4 := reads["r4"]
	expect.EQ(t, r4.Start, 10)
	expect.EQ(t, r4.Valid, cas.Range{Begin: 0, End: 6})
	expect.EQ(t, r4.UngappedLength, 8)

	// A second pass yields the same placements.
	again := collect(t, a)
	expect.EQ(t, again, reads)
}

func TestReadsCallbackError(t *testing.T) {
	a, _, cleanup := open(t, assembly.DefaultOpts)
	defer cleanup()
	stop := errors.New("stop")
	n := 0
	err := a.Reads(vcontext.Background(), func(r *gapped.PlacedRead) error {
		n++
		return stop
	})
	expect.EQ(t, err, stop)
	expect.EQ(t, n, 1)
}

func TestHalt(t *testing.T) {
	a, _, cleanup := open(t, assembly.DefaultOpts)
	defer cleanup()
	var ids []string
	err := a.Reads(vcontext.Background(), func(r *gapped.PlacedRead) error {
		ids = append(ids, r.ID)
		a.Halt()
		return nil
	})
	expect.EQ(t, err, assembly.ErrHalted)
	expect.EQ(t, ids, []string{"r0"})
	// Halt without an active decode has no effect.
	a.Halt()
	expect.EQ(t, len(collect(t, a)), len(assemblytest.Placed))
}

func TestCancelledOpen(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "assembly")
	defer cleanup()
	path, err := assemblytest.Write(dir)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(vcontext.Background())
	cancel()
	_, err = assembly.Open(ctx, path, assembly.DefaultOpts)
	expect.True(t, err != nil)
}

func TestMissingReference(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "assembly")
	defer cleanup()
	path, err := assemblytest.Write(dir)
	require.NoError(t, err)
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "refs.fa"), []byte(">chr1\nACGTACGTACGTACGTACGT\n"), 0644))
	_, err = assembly.Open(vcontext.Background(), path, assembly.DefaultOpts)
	expect.True(t, cas.IsStructuralMismatch(err), "%v", err)

	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "refs.fa"), []byte(">chr1\nACGTACGTACGTACGTACG\n>chr2\nGGGGCCCCAAAATTTT\n"), 0644))
	_, err = assembly.Open(vcontext.Background(), path, assembly.DefaultOpts)
	expect.True(t, cas.IsStructuralMismatch(err), "%v", err)
}

func TestMissingRead(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "assembly")
	defer cleanup()
	path, err := assemblytest.Write(dir)
	require.NoError(t, err)
	a, err := assembly.Open(vcontext.Background(), path, assembly.DefaultOpts)
	require.NoError(t, err)
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "single.fq"), []byte("@r2\nNNNN\n+\nIIII\n"), 0644))
	err = a.Reads(vcontext.Background(), func(*gapped.PlacedRead) error { return nil })
	expect.True(t, cas.IsStructuralMismatch(err), "%v", err)
}

func TestTrimMap(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "assembly")
	defer cleanup()
	path, err := assemblytest.Write(dir)
	require.NoError(t, err)
	// single.fq becomes the trimmed version of untrimmed.fq, whose reads
	// carry two extra bases on each side.
	untrimmed := "@r2\nAANNNNAA\n+\nIIIIIIII\n@r3\nCCTTTGGGGCCCCGG\n+\nIIIIIIIIIIIIIII\n@r4\nGGAATTTTCCTT\n+\nIIIIIIIIIIII\n"
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "untrimmed.fq"), []byte(untrimmed), 0644))
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "trim.tsv"), []byte("single.fq\tuntrimmed.fq\n"), 0644))

	opts := assembly.DefaultOpts
	opts.TrimMapPath = filepath.Join(dir, "trim.tsv")
	a, err := assembly.Open(vcontext.Background(), path, opts)
	require.NoError(t, err)
	reads := collect(t, a)
	for id, want := range assemblytest.Placed {
		expect.EQ(t, reads[id].Gapped, want, id)
	}
	expect.EQ(t, reads["r4"].UngappedLength, 12)
	expect.EQ(t, reads["r4"].Trim, cas.Range{Begin: 2, End: 10})
}

func TestReadCountMismatch(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "assembly")
	defer cleanup()
	_, err := assemblytest.Write(dir)
	require.NoError(t, err)
	// Three match records against read groups declaring four or five reads.
	data, err := cas.Marshal(assemblytest.Header(), assemblytest.Matches()[:3])
	require.NoError(t, err)
	path := filepath.Join(dir, "short.cas")
	require.NoError(t, ioutil.WriteFile(path, data, 0644))
	_, err = assembly.Open(vcontext.Background(), path, assembly.DefaultOpts)
	expect.True(t, cas.IsStructuralMismatch(err), "%v", err)
}

func TestExtraRead(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "assembly")
	defer cleanup()
	path, err := assemblytest.Write(dir)
	require.NoError(t, err)
	opts := assembly.DefaultOpts
	opts.QueueSize = 1
	a, err := assembly.Open(vcontext.Background(), path, opts)
	require.NoError(t, err)
	single, err := ioutil.ReadFile(filepath.Join(dir, "single.fq"))
	require.NoError(t, err)
	extra := append(single, "@r5\nACGT\n+\nIIII\n"...)
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "single.fq"), extra, 0644))
	var n int
	err = a.Reads(vcontext.Background(), func(*gapped.PlacedRead) error { n++; return nil })
	expect.True(t, cas.IsStructuralMismatch(err), "%v", err)
	expect.EQ(t, n, len(assemblytest.Placed))
}
