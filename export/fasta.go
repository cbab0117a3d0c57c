// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package export writes gapped references and placed reads as FASTA, TSV
// and padded SAM, and computes checksums over them.
package export

import (
	"io"

	"github.com/grailbio/cas/encoding/fasta"
	"github.com/grailbio/cas/gapped"
)

// WriteGappedFASTA writes every reference of refs in index order, with gap
// columns as '-'. Sequence lines are wrapped at lineWidth bases; a
// non-positive lineWidth writes each sequence on one line. It returns the
// index entries of the records written.
func WriteGappedFASTA(w io.Writer, refs *gapped.References, lineWidth int) ([]fasta.IndexEntry, error) {
	fw := fasta.NewWriter(w, lineWidth)
	err := refs.Do(func(ref *gapped.Reference) error {
		return fw.Write(ref.ID, "", ref.Gapped)
	})
	return fw.Index(), err
}
