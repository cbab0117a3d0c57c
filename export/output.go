// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package export

import (
	"context"
	"io"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/hts/bgzf"
	"github.com/klauspost/compress/gzip"
)

// Output is a file opened by Create. Data written to it is compressed
// according to the file's suffix.
type Output struct {
	io.Writer
	ctx context.Context
	f   file.File
	z   io.WriteCloser
}

// Create creates the file at path. Paths ending in ".gz" are gzip
// compressed and paths ending in ".bgz" are BGZF compressed using
// parallelism compression goroutines.
func Create(ctx context.Context, path string, parallelism int) (*Output, error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return nil, err
	}
	o := &Output{ctx: ctx, f: f, Writer: f.Writer(ctx)}
	switch {
	case strings.HasSuffix(path, ".bgz"):
		if parallelism < 1 {
			parallelism = 1
		}
		o.z = bgzf.NewWriter(o.Writer, parallelism)
	case strings.HasSuffix(path, ".gz"):
		o.z = gzip.NewWriter(o.Writer)
	}
	if o.z != nil {
		o.Writer = o.z
	}
	return o, nil
}

// Close flushes any compressor and closes the file.
func (o *Output) Close() error {
	var err error
	if o.z != nil {
		err = o.z.Close()
	}
	if err2 := o.f.Close(o.ctx); err == nil {
		err = err2
	}
	return err
}
