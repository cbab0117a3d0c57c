// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package cas

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"

	"github.com/grailbio/base/file"
)

// ReadSeekCloser is a seekable byte stream over a cas file.
type ReadSeekCloser interface {
	io.ReadSeeker
	io.Closer
}

// Source opens independent seekable streams over the same cas file. The
// parser opens a Source twice: once to read the trailing header and once to
// stream the match records from the start of the file.
type Source interface {
	// Name identifies the source in error messages.
	Name() string
	// Open returns a new stream positioned at the start of the file.
	Open(ctx context.Context) (ReadSeekCloser, error)
}

type fileSource struct {
	path string
}

// FileSource returns a Source for the file at path. Any path scheme
// registered with github.com/grailbio/base/file is supported.
func FileSource(path string) Source {
	return fileSource{path: path}
}

func (s fileSource) Name() string { return s.path }

func (s fileSource) Open(ctx context.Context) (ReadSeekCloser, error) {
	f, err := file.Open(ctx, s.path)
	if err != nil {
		return nil, err
	}
	return &fileStream{ReadSeeker: f.Reader(ctx), ctx: ctx, f: f}, nil
}

type fileStream struct {
	io.ReadSeeker
	ctx context.Context
	f   file.File
}

func (s *fileStream) Close() error {
	return s.f.Close(s.ctx)
}

type bytesSource struct {
	name string
	data []byte
}

// BytesSource returns a Source over an in-memory cas file.
func BytesSource(name string, data []byte) Source {
	return bytesSource{name: name, data: data}
}

func (s bytesSource) Name() string { return s.name }

func (s bytesSource) Open(context.Context) (ReadSeekCloser, error) {
	return nopCloser{bytes.NewReader(s.data)}, nil
}

type nopCloser struct {
	io.ReadSeeker
}

func (nopCloser) Close() error { return nil }

// BufferedSource reads all of r into memory and returns a Source over the
// buffered bytes. It serves transports that cannot seek.
func BufferedSource(name string, r io.Reader) (Source, error) {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, ioError(err, "buffering "+name)
	}
	return BytesSource(name, data), nil
}
