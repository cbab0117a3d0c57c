// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package binding

import (
	"context"
	"io"
	"path/filepath"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
)

type trimRow struct {
	Trimmed   string `tsv:"trimmed"`
	Untrimmed string `tsv:"untrimmed"`
}

// FileTrimMap is a TrimMap read from a two column TSV file. Lines starting
// with '#' are ignored.
type FileTrimMap map[string]string

// UntrimmedFileFor implements TrimMap. A name that is not listed verbatim is
// looked up by its base name.
func (m FileTrimMap) UntrimmedFileFor(trimmed string) string {
	if u, ok := m[trimmed]; ok {
		return u
	}
	return m[filepath.Base(trimmed)]
}

// ReadTrimMap parses a trim map from r.
func ReadTrimMap(r io.Reader) (FileTrimMap, error) {
	tr := tsv.NewReader(r)
	tr.Comment = '#'
	m := FileTrimMap{}
	for {
		var row trimRow
		if err := tr.Read(&row); err == io.EOF {
			return m, nil
		} else if err != nil {
			return nil, errors.E(errors.Invalid, err, "cas: reading trim map")
		}
		if row.Trimmed == "" || row.Untrimmed == "" {
			return nil, errors.E(errors.Invalid, "cas: trim map row with an empty file name")
		}
		if prev, ok := m[row.Trimmed]; ok && prev != row.Untrimmed {
			return nil, errors.E(errors.Invalid, "cas: trim map lists", row.Trimmed, "twice")
		}
		m[row.Trimmed] = row.Untrimmed
	}
}

// LoadTrimMap reads the trim map at path.
func LoadTrimMap(ctx context.Context, path string) (_ FileTrimMap, err error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "cas: opening trim map", path)
	}
	defer file.CloseAndReport(ctx, f, &err)
	return ReadTrimMap(f.Reader(ctx))
}
