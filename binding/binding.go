// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package binding resolves the positional reference and read indexes of a
// cas file to the sequence records of its companion FASTA, FASTQ and SFF
// files.
package binding

import "github.com/grailbio/cas/encoding/cas"

// IndexResolver maps between the positional index of a sequence and its
// external id.
type IndexResolver interface {
	IDForIndex(i int64) (string, error)
	IndexForID(id string) (int64, error)
}

// SequenceSource supplies the bases of a sequence by id.
type SequenceSource interface {
	SequenceForID(id string) (string, error)
}

// TrimMap names the untrimmed read file of a trimmed one. It returns "" when
// there is none.
type TrimMap interface {
	UntrimmedFileFor(trimmed string) string
}

// Sequence is a single record of a companion sequence file.
type Sequence struct {
	ID    string
	Bases string
	// Qual holds phred+33 qualities when the file carries them.
	Qual string
	// Trim is the part of Bases given to the aligner. It is nil when the
	// whole sequence was used.
	Trim *cas.Range
}
