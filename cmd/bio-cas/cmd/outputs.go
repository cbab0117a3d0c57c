// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/cas/encoding/fasta"
	"github.com/grailbio/cas/export"
	"github.com/grailbio/cas/gapped"
	"v.io/x/lib/cmdline"
)

func writeRefs(ctx context.Context, env *cmdline.Env, af assemblyFlags, path, out string, width int, index bool) (err error) {
	if index && (out == "" || strings.HasSuffix(out, ".gz") || strings.HasSuffix(out, ".bgz")) {
		return fmt.Errorf("refs: -index requires an uncompressed -o path")
	}
	a, err := af.open(ctx, path)
	if err != nil {
		return err
	}
	w, closer, err := output(ctx, env, out)
	if err != nil {
		return err
	}
	entries, err := export.WriteGappedFASTA(w, a.References(), width)
	if err2 := closer(); err == nil {
		err = err2
	}
	if err != nil || !index {
		return err
	}
	f, err := file.Create(ctx, out+".fai")
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, f, &err)
	return fasta.WriteIndex(f.Writer(ctx), entries)
}

func writeReads(ctx context.Context, env *cmdline.Env, af assemblyFlags, path, out string) (err error) {
	a, err := af.open(ctx, path)
	if err != nil {
		return err
	}
	w, closer, err := output(ctx, env, out)
	if err != nil {
		return err
	}
	defer func() {
		if err2 := closer(); err == nil {
			err = err2
		}
	}()
	pw := export.NewPlacedReadWriter(w)
	if err := a.Reads(ctx, pw.Write); err != nil {
		return err
	}
	return pw.Flush()
}

func writeSAM(ctx context.Context, env *cmdline.Env, af assemblyFlags, path, out string) (err error) {
	a, err := af.open(ctx, path)
	if err != nil {
		return err
	}
	w, closer, err := output(ctx, env, out)
	if err != nil {
		return err
	}
	defer func() {
		if err2 := closer(); err == nil {
			err = err2
		}
	}()
	sw, err := export.NewSAMWriter(w, a.References())
	if err != nil {
		return err
	}
	return a.Reads(ctx, sw.Write)
}

// checksumResult is the JSON output of the checksum command.
type checksumResult struct {
	Refs []export.RefChecksum
	Sum  uint64
}

func checksum(ctx context.Context, out io.Writer, af assemblyFlags, path string) error {
	a, err := af.open(ctx, path)
	if err != nil {
		return err
	}
	c := export.NewChecksum(a.References())
	err = a.Reads(ctx, func(r *gapped.PlacedRead) error {
		c.Add(r)
		return nil
	})
	if err != nil {
		return err
	}
	js, err := json.MarshalIndent(checksumResult{Refs: c.Refs, Sum: c.Sum()}, "", "  ")
	if err != nil {
		log.Panic(err)
	}
	_, err = fmt.Fprintln(out, string(js))
	return err
}
