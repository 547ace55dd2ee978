package extract

import (
	"context"
)

// FixtureExtractor replays a fixed, in-memory sequence of Tuples. It is
// used by tests and the sample obtainer (package sample) in place of a
// real raw-source parser.
type FixtureExtractor struct {
	tuples []Tuple
	pos    int
}

// NewFixtureExtractor returns an Extractor that replays tuples in the
// order given. Callers that need the VolumeID-monotonic guarantee
// documented on Extractor must pass tuples already in that order;
// FixtureExtractor does not reorder them.
func NewFixtureExtractor(tuples []Tuple) *FixtureExtractor {
	return &FixtureExtractor{tuples: tuples}
}

// Next implements Extractor.
func (f *FixtureExtractor) Next(ctx context.Context) (Tuple, error) {
	if err := ctx.Err(); err != nil {
		return Tuple{}, err
	}
	if f.pos >= len(f.tuples) {
		return Tuple{}, ErrRawSourceExhausted
	}
	t := f.tuples[f.pos]
	f.pos++
	return t, nil
}
