// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package cas

import (
	"bytes"
	"encoding/binary"
	"io"
	"math/bits"
	"unicode/utf8"
)

// Leading bytes of a byte count that announce a wider value.
const (
	byteCount16 = 254
	byteCount32 = 255
)

// ReadByteCount reads a variable length count. A leading byte below 254 is
// the count itself, 254 is followed by a little-endian uint16 and 255 by a
// little-endian uint32.
func ReadByteCount(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:1]); err != nil {
		return 0, err
	}
	switch b := buf[0]; b {
	case byteCount16:
		if _, err := io.ReadFull(r, buf[:2]); err != nil {
			return 0, err
		}
		return uint32(binary.LittleEndian.Uint16(buf[:2])), nil
	case byteCount32:
		if _, err := io.ReadFull(r, buf[:4]); err != nil {
			return 0, err
		}
		return binary.LittleEndian.Uint32(buf[:4]), nil
	default:
		return uint32(b), nil
	}
}

// ReadPascalString reads a byte count followed by that many bytes of UTF-8
// text. There is no terminator.
func ReadPascalString(r io.Reader) (string, error) {
	n, err := ReadByteCount(r)
	if err != nil {
		return "", err
	}
	// The buffer grows with the bytes actually read, not with n.
	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, r, int64(n)); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return "", err
	}
	b := buf.Bytes()
	if !utf8.Valid(b) {
		return "", formatError("string is not valid UTF-8: %q", b)
	}
	return string(b), nil
}

// ReadUint8 reads a single byte.
func ReadUint8(r io.Reader) (uint8, error) {
	var buf [1]byte
	_, err := io.ReadFull(r, buf[:])
	return buf[0], err
}

// ReadUint16 reads a little-endian uint16.
func ReadUint16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

// ReadUint32 reads a little-endian uint32.
func ReadUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// ReadUint64 reads a little-endian uint64.
func ReadUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// ReadUintN reads a little-endian unsigned integer n bytes wide, where n is
// in [0, 8]. A zero width reads nothing and returns zero.
func ReadUintN(r io.Reader, n int) (uint64, error) {
	if n < 0 || n > 8 {
		return 0, formatError("invalid integer width %d", n)
	}
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:n]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// BytesRequiredFor returns the number of bytes needed to hold any value in
// [0, n), that is ceil(log256(n)). It fails if n is zero.
func BytesRequiredFor(n uint64) (int, error) {
	if n < 1 {
		return 0, formatError("cannot compute byte width for %d", n)
	}
	return (bits.Len64(n-1) + 7) / 8, nil
}

// AppendByteCount appends the variable length encoding of n to b.
func AppendByteCount(b []byte, n uint32) []byte {
	switch {
	case n < byteCount16:
		return append(b, byte(n))
	case n <= 0xffff:
		return append(b, byteCount16, byte(n), byte(n>>8))
	default:
		return append(b, byteCount32, byte(n), byte(n>>8), byte(n>>16), byte(n>>24))
	}
}

// AppendPascalString appends the byte-count prefixed bytes of s to b.
func AppendPascalString(b []byte, s string) []byte {
	b = AppendByteCount(b, uint32(len(s)))
	return append(b, s...)
}

// AppendUintN appends the n low-order bytes of v to b in little-endian order.
func AppendUintN(b []byte, v uint64, n int) []byte {
	for i := 0; i < n; i++ {
		b = append(b, byte(v>>(8*uint(i))))
	}
	return b
}

// reader latches the first error encountered, so that a sequence of reads
// can be checked once at the end. All reads after a failure return zero
// values.
type reader struct {
	r   io.Reader
	err error
}

func (r *reader) Read(b []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	var n int
	n, r.err = r.r.Read(b)
	return n, r.err
}

func (r *reader) uint8() uint8 {
	if r.err != nil {
		return 0
	}
	var v uint8
	v, r.err = ReadUint8(r.r)
	return v
}

func (r *reader) uint16() uint16 {
	if r.err != nil {
		return 0
	}
	var v uint16
	v, r.err = ReadUint16(r.r)
	return v
}

func (r *reader) uint32() uint32 {
	if r.err != nil {
		return 0
	}
	var v uint32
	v, r.err = ReadUint32(r.r)
	return v
}

func (r *reader) uint64() uint64 {
	if r.err != nil {
		return 0
	}
	var v uint64
	v, r.err = ReadUint64(r.r)
	return v
}

func (r *reader) uintN(n int) uint64 {
	if r.err != nil {
		return 0
	}
	var v uint64
	v, r.err = ReadUintN(r.r, n)
	return v
}

func (r *reader) byteCount() uint32 {
	if r.err != nil {
		return 0
	}
	var v uint32
	v, r.err = ReadByteCount(r.r)
	return v
}

func (r *reader) pascalString() string {
	if r.err != nil {
		return ""
	}
	var s string
	s, r.err = ReadPascalString(r.r)
	return s
}
