// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package binding

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/syncqueue"
	"github.com/grailbio/cas/encoding/cas"
)

// DefaultQueueSize is the default number of reads buffered by a ReadStream.
const DefaultQueueSize = 1024

// Read is a read together with its position in the cas read order.
type Read struct {
	Index int64
	Sequence
}

var errStopped = errors.E(errors.Canceled, "cas: read stream closed")

// ReadStream reads the read files of a cas file in a background goroutine.
// Reads are delivered in index order through a bounded queue; the producer
// blocks while the queue is full. A ReadStream is used by one consumer.
type ReadStream struct {
	q      *syncqueue.OrderedQueue
	err    errors.Once
	stop   int32
	done   chan struct{}
	once   sync.Once
	peeked *Read
	next   int64
}

// NewReadStream starts reading groups. queueSize bounds the number of
// buffered reads; values below one select DefaultQueueSize.
func NewReadStream(ctx context.Context, groups []cas.FileGroup, opts Opts, queueSize int) *ReadStream {
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	s := &ReadStream{
		q:    syncqueue.NewOrderedQueue(queueSize),
		done: make(chan struct{}),
	}
	go s.produce(ctx, groups, opts)
	return s
}

func (s *ReadStream) produce(ctx context.Context, groups []cas.FileGroup, opts Opts) {
	defer close(s.done)
	var index int64
	err := ForEach(ctx, groups, opts, func(seq *Sequence) error {
		if atomic.LoadInt32(&s.stop) != 0 {
			return errStopped
		}
		r := &Read{Index: index, Sequence: *seq}
		if err := s.q.Insert(int(index), r); err != nil {
			return err
		}
		index++
		return nil
	})
	if err == errStopped {
		err = nil
	}
	s.err.Set(err)
	_ = s.q.Close(err)
}

func (s *ReadStream) pull() (*Read, error) {
	v, ok, err := s.q.Next()
	if err != nil {
		if e := s.err.Err(); e != nil {
			return nil, e
		}
		return nil, err
	}
	if !ok {
		if e := s.err.Err(); e != nil {
			return nil, e
		}
		return nil, io.EOF
	}
	return v.(*Read), nil
}

// Peek returns the next read without consuming it. It returns io.EOF after
// the last read.
func (s *ReadStream) Peek() (*Read, error) {
	if s.peeked == nil {
		r, err := s.pull()
		if err != nil {
			return nil, err
		}
		s.peeked = r
	}
	return s.peeked, nil
}

// Next consumes and returns the next read. It returns io.EOF after the last
// read, or the error that stopped the producer.
func (s *ReadStream) Next() (*Read, error) {
	r, err := s.Peek()
	if err != nil {
		return nil, err
	}
	s.peeked = nil
	s.next = r.Index + 1
	return r, nil
}

// Seek consumes reads until the next read has the given index and returns
// it. Reads before index are discarded. It is an error to seek backwards.
func (s *ReadStream) Seek(index int64) (*Read, error) {
	if index < s.next {
		return nil, errors.E(errors.Invalid, "cas: read stream cannot seek backwards")
	}
	for {
		r, err := s.Next()
		if err == io.EOF {
			return nil, cas.StructuralError("read %d requested but the read files hold only %d reads", index, s.next)
		}
		if err != nil {
			return nil, err
		}
		if r.Index == index {
			return r, nil
		}
	}
}

// Drain consumes the remaining reads and returns the total number of reads
// in the stream. Draining reads every file to its end, so per-file count
// errors surface here.
func (s *ReadStream) Drain() (int64, error) {
	for {
		if _, err := s.Next(); err == io.EOF {
			return s.next, nil
		} else if err != nil {
			return 0, err
		}
	}
}

// Close stops the producer at its next record boundary and waits for it to
// exit. It returns the producer's error, if any.
func (s *ReadStream) Close() error {
	s.once.Do(func() {
		atomic.StoreInt32(&s.stop, 1)
		for {
			if _, ok, err := s.q.Next(); !ok || err != nil {
				break
			}
		}
		<-s.done
	})
	return s.err.Err()
}
