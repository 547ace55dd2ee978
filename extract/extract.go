// Package extract defines the Extractor boundary: the external
// collaborator that walks a raw source and yields publishable tuples.
// Concrete raw-source parsers (an Unchained Index chunk reader, a JSON
// nametag reader, a 4-byte signature reader) are out of scope; this
// package defines the contract they must satisfy and ships one fixture
// implementation used by tests and the sample obtainer.
package extract

import (
	"context"

	"github.com/pkg/errors"

	"github.com/perama-v/min-know/ids"
	"github.com/perama-v/min-know/spec"
)

// Errors surfaced by an Extractor.
var (
	ErrRawSourceMissing   = errors.New("extract: raw source not found")
	ErrRawSourceMalformed = errors.New("extract: raw source entry could not be parsed")
	// ErrRawSourceExhausted is a non-fatal sentinel: Next returns it once
	// the stream is done, analogous to io.EOF.
	ErrRawSourceExhausted = errors.New("extract: raw source exhausted")
)

// Tuple is one publishable unit: a record destined for a specific
// (VolumeID, ChapterID).
type Tuple struct {
	VolumeID  ids.VolumeID
	ChapterID ids.ChapterID
	Key       ids.RecordKey
	Value     spec.Value
}

// Extractor yields a finite, lazy sequence of Tuples. Tuples for a given
// VolumeID may arrive in any order, but once Next emits a tuple with
// VolumeID > V, no further tuple for V may appear — the Publication
// engine relies on this to know when to flush V. An adapter over a
// source that cannot offer this guarantee must buffer internally to
// impose it.
type Extractor interface {
	// Next returns the next tuple, or ErrRawSourceExhausted when done.
	Next(ctx context.Context) (Tuple, error)
}
