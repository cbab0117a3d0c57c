// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package nucleotide provides byte-level operations on ASCII nucleotide
// sequences that may carry alignment gaps.
package nucleotide

import (
	"bytes"
	"strings"

	"github.com/grailbio/base/simd"
	"github.com/grailbio/base/unsafe"
)

// Gap is the padding character of gapped sequences.
const Gap = '-'

var revCompTable [256]byte

func init() {
	for i := range revCompTable {
		revCompTable[i] = 'N'
	}
	pairs := []string{"AT", "CG", "RY", "KM", "SS", "WW", "BV", "DH", "NN", "UA", "--", "**", ".."}
	for _, p := range pairs {
		a, b := p[0], p[1]
		revCompTable[a], revCompTable[b] = b, a
		if 'A' <= a && a <= 'Z' {
			la, lb := a+'a'-'A', b+'a'-'A'
			revCompTable[la], revCompTable[lb] = lb, la
		}
	}
	// 'U' complements to 'A', but 'A' keeps 'T' as its complement.
	revCompTable['A'], revCompTable['a'] = 'T', 't'
}

// Complement returns the complement of base b. IUPAC ambiguity codes map to
// their complementary code, gaps are preserved and case is kept. Any other
// byte maps to 'N'.
func Complement(b byte) byte {
	return revCompTable[b]
}

// ReverseComplement writes the reverse complement of src to dst. It panics if
// len(dst) != len(src).
func ReverseComplement(dst, src []byte) {
	n := len(src)
	if len(dst) != n {
		panic("ReverseComplement requires len(dst) == len(src)")
	}
	for idx, invIdx := 0, n-1; idx != n; idx, invIdx = idx+1, invIdx-1 {
		dst[idx] = revCompTable[src[invIdx]]
	}
}

// ReverseComplementInplace reverse-complements seq in place.
func ReverseComplementInplace(seq []byte) {
	n := len(seq)
	half := n >> 1
	for idx, invIdx := 0, n-1; idx != half; idx, invIdx = idx+1, invIdx-1 {
		seq[idx], seq[invIdx] = revCompTable[seq[invIdx]], revCompTable[seq[idx]]
	}
	if n&1 == 1 {
		seq[half] = revCompTable[seq[half]]
	}
}

// ReverseComplementString returns the reverse complement of s.
func ReverseComplementString(s string) string {
	if s == "" {
		return ""
	}
	dst := make([]byte, len(s))
	ReverseComplement(dst, unsafe.StringToBytes(s))
	return unsafe.BytesToString(dst)
}

// Gaps returns a slice of n gap characters.
func Gaps(n int) []byte {
	b := make([]byte, n)
	FillGaps(b)
	return b
}

// FillGaps overwrites every byte of dst with Gap.
func FillGaps(dst []byte) {
	simd.Memset8(dst, Gap)
}

// Ungap returns s with all gap characters removed.
func Ungap(s string) string {
	if strings.IndexByte(s, Gap) < 0 {
		return s
	}
	return strings.Replace(s, string(Gap), "", -1)
}

// UngapBytes removes gap characters from b in place and returns the
// shortened slice.
func UngapBytes(b []byte) []byte {
	i := bytes.IndexByte(b, Gap)
	if i < 0 {
		return b
	}
	out := b[:i]
	for _, c := range b[i+1:] {
		if c != Gap {
			out = append(out, c)
		}
	}
	return out
}

// CountGaps returns the number of gap characters in s.
func CountGaps(s string) int {
	return strings.Count(s, string(Gap))
}
