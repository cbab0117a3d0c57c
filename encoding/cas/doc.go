// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package cas decodes the binary reference-assembly files ("cas" files)
// written by the CLC aligner.
//
// A cas file stores its header after the match records:
//
//   bytes 0-7    magic signature
//   bytes 8-15   little-endian uint64 offset of the header
//   bytes 16-    one match record per read, in read order
//   offset-      header: counts, program info, file groups, scoring scheme,
//                reference descriptions
//
// Reads and references are not stored in the file. They are identified by
// their ordinal position across the sequence files named in the header, so
// a match only carries integer indexes and an ungapped start offset.
//
// Decoding is driven by a Parser that reads the header with random access,
// then streams the match records to a Visitor one at a time. Match records
// are never held in memory as a whole.
package cas
