// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package assemblytest writes a small, fully known assembly for tests: a cas
// file together with its reference FASTA and read FASTQ files.
package assemblytest

import (
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"

	"github.com/grailbio/cas/encoding/cas"
)

// CASName is the file name of the cas file written by Write.
const CASName = "test.cas"

// References are the reference sequences of the test assembly.
var References = []struct{ ID, Bases string }{
	{"chr1", "ACGTACGTACGTACGTACGT"},
	{"chr2", "GGGGCCCCAAAATTTT"},
}

// Reads are the reads of the test assembly, in cas read order. r0 and r1
// are a pair; r2 is unmatched.
var Reads = []struct{ ID, Bases string }{
	{"r0", "GTACTTGTAC"},
	{"r1", "ACGGGGTACGT"},
	{"r2", "NNNN"},
	{"r3", "TTTGGGGCCCC"},
	{"r4", "AATTTTCC"},
}

// Gapped are the expected gapped references: the largest insertion before
// chr1 offset 6 is three bases.
var Gapped = []string{
	"ACGTAC---GTACGTACGTACGT",
	"GGGGCCCCAAAATTTT",
}

// Placed are the expected gapped reads of the aligned reads, keyed by id.
var Placed = map[string]string{
	"r0": "GTACTT-GTAC",
	"r1": "ACGGGGTACGT",
	"r3": "GGGGCCCC-AAA",
	"r4": "AATTTT",
}

func region(t cas.RegionType, n uint32) cas.Region {
	return cas.Region{Type: t, Length: n}
}

func aligned(ref, start uint64, reversed bool, rs ...cas.Region) *cas.Match {
	return &cas.Match{
		Reported:   true,
		Matches:    1,
		Alignments: 1,
		Alignment:  &cas.Alignment{ReferenceIndex: ref, Start: start, Reversed: reversed, Regions: rs},
	}
}

// Header returns the header of the test assembly.
func Header() *cas.Header {
	return &cas.Header{
		ReferenceCount: uint32(len(References)),
		Program:        cas.ProgramInfo{Name: "clc_ref_assemble_long", Version: "3.22", Parameters: "-q reads_1.fq reads_2.fq single.fq -d refs.fa"},
		ReferenceFiles: []cas.FileGroup{{SequenceCount: 2, ResidueCount: 36, Names: []string{"refs.fa"}}},
		ReadFiles: []cas.FileGroup{
			{Paired: true, SequenceCount: 1, ResidueCount: 21, Names: []string{"reads_1.fq", "reads_2.fq"}},
			{SequenceCount: 3, ResidueCount: 23, Names: []string{"single.fq"}},
		},
		Scoring: &cas.ScoringScheme{
			Type:               cas.NucleotideScore,
			FirstInsertion:     3,
			InsertionExtension: 3,
			FirstDeletion:      3,
			DeletionExtension:  3,
			Match:              1,
			Transition:         2,
			Transversion:       2,
			Unknown:            2,
			Alignment:          cas.LocalAlignment,
		},
		References: []cas.ReferenceDescription{{Length: 20}, {Length: 16, Circular: true}},
	}
}

// Matches returns the match records of the test assembly.
func Matches() []*cas.Match {
	m, i, d := cas.MatchMismatch, cas.Insert, cas.Deletion
	r0 := aligned(0, 2, false, region(m, 4), region(i, 2), region(m, 4))
	r0.Paired = true
	r1 := aligned(0, 4, false, region(m, 2), region(i, 3), region(m, 6))
	r1.Paired = true
	return []*cas.Match{
		r0,
		r1,
		{},
		aligned(1, 0, true, region(m, 8), region(d, 1), region(m, 3)),
		aligned(1, 10, false, region(m, 6), region(i, 2)),
	}
}

func fastq(ids ...int) string {
	var b strings.Builder
	for _, i := range ids {
		r := Reads[i]
		fmt.Fprintf(&b, "@%s\n%s\n+\n%s\n", r.ID, r.Bases, strings.Repeat("I", len(r.Bases)))
	}
	return b.String()
}

// Write writes the test assembly into dir and returns the path of its cas
// file.
func Write(dir string) (string, error) {
	var refs strings.Builder
	for _, r := range References {
		fmt.Fprintf(&refs, ">%s\n%s\n", r.ID, r.Bases)
	}
	files := map[string]string{
		"refs.fa":    refs.String(),
		"reads_1.fq": fastq(0),
		"reads_2.fq": fastq(1),
		"single.fq":  fastq(2, 3, 4),
	}
	for name, data := range files {
		if err := ioutil.WriteFile(filepath.Join(dir, name), []byte(data), 0644); err != nil {
			return "", err
		}
	}
	data, err := cas.Marshal(Header(), Matches())
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, CASName)
	return path, ioutil.WriteFile(path, data, 0644)
}
