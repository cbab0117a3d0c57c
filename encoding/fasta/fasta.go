// Package fasta reads and writes FASTA files. Briefly, FASTA files consist
// of a number of named sequences that may be interrupted by newlines. For
// example:
//
// >chr7
// ACGTAC
// GAGGAC
// GCG
// >chr8 A viral sequence
// ACGT
//
// Sequence names are the stretch of characters excluding whitespace
// immediately after '>'. Any text after the first space or tab is the
// description. For example, '>chr8 A viral sequence' names 'chr8'.
package fasta

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"github.com/pkg/errors"
)

const maxLineLength = 300 << 20

// Record is a single FASTA sequence.
type Record struct {
	Name        string
	Description string
	Seq         string
}

// Scanner reads FASTA records sequentially. Scanners are not threadsafe.
type Scanner struct {
	b       *bufio.Scanner
	err     error
	line    int
	pending []byte // header line of the next record
	seq     bytes.Buffer
	done    bool
}

// NewScanner returns a Scanner reading FASTA data from r.
func NewScanner(r io.Reader) *Scanner {
	b := bufio.NewScanner(r)
	b.Buffer(nil, maxLineLength)
	return &Scanner{b: b}
}

// Scan reads the next record into rec. It returns false at the end of the
// input or on error; Err distinguishes the two. Once Scan returns false, it
// never returns true again.
func (s *Scanner) Scan(rec *Record) bool {
	if s.err != nil || s.done {
		return false
	}
	for s.pending == nil {
		if !s.b.Scan() {
			s.err = s.b.Err()
			s.done = true
			return false
		}
		s.line++
		line := bytes.TrimRight(s.b.Bytes(), "\r")
		if len(line) == 0 {
			continue
		}
		if line[0] != '>' {
			s.err = errors.Errorf("malformed FASTA file: line %d: sequence data before the first header", s.line)
			return false
		}
		s.pending = append([]byte(nil), line...)
	}
	header := string(s.pending[1:])
	s.pending = nil
	s.seq.Reset()
	for s.b.Scan() {
		s.line++
		line := bytes.TrimRight(s.b.Bytes(), "\r")
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			s.pending = append([]byte(nil), line...)
			break
		}
		s.seq.Write(line)
	}
	if err := s.b.Err(); err != nil {
		s.err = errors.Wrap(err, "couldn't read FASTA data")
		return false
	}
	rec.Name, rec.Description = header, ""
	if i := strings.IndexAny(header, " \t"); i >= 0 {
		rec.Name, rec.Description = header[:i], strings.TrimSpace(header[i+1:])
	}
	if rec.Name == "" {
		s.err = errors.Errorf("malformed FASTA file: line %d: empty sequence name", s.line)
		return false
	}
	rec.Seq = s.seq.String()
	return true
}

// Err returns the error that stopped scanning, if any.
func (s *Scanner) Err() error {
	return s.err
}

// ReadAll returns every record of r in file order.
func ReadAll(r io.Reader) ([]Record, error) {
	var (
		s    = NewScanner(r)
		recs []Record
		rec  Record
	)
	for s.Scan(&rec) {
		recs = append(recs, rec)
	}
	return recs, s.Err()
}
