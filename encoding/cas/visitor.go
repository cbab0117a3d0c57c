// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package cas

import "fmt"

// EventKind identifies the payload of an Event.
type EventKind int

const (
	// MetadataEvent carries the header offset and the reference and read
	// counts in Event.Header.
	MetadataEvent EventKind = iota
	// ProgramInfoEvent carries Event.Program.
	ProgramInfoEvent
	// ReferenceFileEvent carries one reference file group in Event.FileGroup.
	ReferenceFileEvent
	// ReadFileEvent carries one read file group in Event.FileGroup.
	ReadFileEvent
	// ScoringSchemeEvent carries Event.Scoring. It is only sent for scored
	// files.
	ScoringSchemeEvent
	// ReferenceDescriptionEvent carries Event.Reference for reference
	// Event.Index.
	ReferenceDescriptionEvent
	// MatchEvent carries the match record Event.Match of read Event.Index.
	MatchEvent
	// EndEvent is sent after the last match record, or after the header when
	// the match stream was skipped.
	EndEvent
	// HaltedEvent is sent instead of EndEvent when decoding stopped because
	// of a halt request.
	HaltedEvent
)

var eventKindNames = []string{
	MetadataEvent:             "Metadata",
	ProgramInfoEvent:          "ProgramInfo",
	ReferenceFileEvent:        "ReferenceFile",
	ReadFileEvent:             "ReadFile",
	ScoringSchemeEvent:        "ScoringScheme",
	ReferenceDescriptionEvent: "ReferenceDescription",
	MatchEvent:                "Match",
	EndEvent:                  "End",
	HaltedEvent:               "Halted",
}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(eventKindNames) {
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
	return eventKindNames[k]
}

// Event is a single decoding event. Only the fields documented for Kind are
// set. Payloads must not be modified by visitors.
type Event struct {
	Kind EventKind
	// Header is the header decoded so far. It is complete once the match
	// stream starts.
	Header *Header
	// Index is the file group, reference or read index of the event.
	Index     int
	Program   *ProgramInfo
	FileGroup *FileGroup
	Scoring   *ScoringScheme
	Reference *ReferenceDescription
	Match     *Match
}

// Visitor receives decoding events. A non-nil error aborts decoding and is
// returned by Parser.Accept.
type Visitor interface {
	Visit(ev *Event) error
}

// MatchStreamer is implemented by visitors that choose how the match stream
// is consumed. MatchVisitor is called once, after the header events. It
// returns the Visitor that receives Match events, or nil to skip decoding
// the match records entirely. EndEvent and HaltedEvent are always sent to the
// original visitor.
type MatchStreamer interface {
	MatchVisitor(h *Header) Visitor
}

// VisitorFunc adapts a function to the Visitor interface.
type VisitorFunc func(ev *Event) error

// Visit implements Visitor.
func (f VisitorFunc) Visit(ev *Event) error { return f(ev) }

// NopVisitor ignores every event. Embed it to implement only the events of
// interest.
type NopVisitor struct{}

// Visit implements Visitor.
func (NopVisitor) Visit(*Event) error { return nil }

// headerOnly is a visitor that records the header and skips the match
// stream.
type headerOnly struct {
	NopVisitor
	h *Header
}

func (v *headerOnly) MatchVisitor(h *Header) Visitor {
	v.h = h
	return nil
}
