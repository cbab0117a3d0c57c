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

	"github.com/grailbio/base/tsv"
	"github.com/grailbio/cas/encoding/cas"
)

func printHeader(ctx context.Context, out io.Writer, path string, asJSON bool) error {
	h, err := cas.ReadHeader(ctx, cas.FileSource(path))
	if err != nil {
		return err
	}
	if asJSON {
		js, err := json.MarshalIndent(h, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(js))
		return err
	}
	w := tsv.NewWriter(out)
	line := func(fields ...string) {
		for _, f := range fields {
			w.WriteString(f)
		}
		_ = w.EndLine()
	}
	line("program", h.Program.Name, h.Program.Version, h.Program.Parameters)
	line("references", fmt.Sprint(h.ReferenceCount))
	line("reads", fmt.Sprint(h.ReadCount))
	groups := func(kind string, gs []cas.FileGroup) {
		for _, g := range gs {
			w.WriteString(kind)
			w.WriteString(fmt.Sprint(g.Paired))
			w.WriteInt64(int64(g.SequenceCount))
			w.WriteInt64(int64(g.ResidueCount))
			w.WriteString(strings.Join(g.Names, ","))
			_ = w.EndLine()
		}
	}
	groups("reference_files", h.ReferenceFiles)
	groups("read_files", h.ReadFiles)
	if s := h.Scoring; s != nil {
		line("scoring", s.Type.String(), s.Alignment.String())
		w.WriteString("costs")
		for _, c := range []uint32{s.FirstInsertion, s.InsertionExtension, s.FirstDeletion, s.DeletionExtension,
			s.Match, s.Transition, s.Transversion, s.Unknown} {
			w.WriteInt64(int64(c))
		}
		_ = w.EndLine()
	}
	for i, r := range h.References {
		w.WriteString("reference")
		w.WriteInt64(int64(i))
		w.WriteInt64(int64(r.Length))
		w.WriteString(fmt.Sprint(r.Circular))
		_ = w.EndLine()
	}
	return w.Flush()
}
