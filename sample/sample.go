// Package sample provides small, self-contained Extractors that stand
// in for the network-backed raw sources (deliberately out of scope to
// implement here), so the rest of the repository and its documentation
// examples have something runnable to extract from.
package sample

import (
	"github.com/perama-v/min-know/extract"
)

// Obtainer produces an Extractor over a bounded sample of raw tuples for
// one concrete database kind, without requiring network access.
type Obtainer interface {
	Sample() extract.Extractor
}

// Fixture is an Obtainer backed by a fixed, in-memory tuple set supplied
// at construction time.
type Fixture struct {
	tuples []extract.Tuple
}

// NewFixture returns a Fixture Obtainer that replays tuples, in order,
// every time Sample is called.
func NewFixture(tuples []extract.Tuple) *Fixture {
	return &Fixture{tuples: tuples}
}

// Sample returns a fresh Extractor over the Fixture's tuple set.
func (f *Fixture) Sample() extract.Extractor {
	return extract.NewFixtureExtractor(f.tuples)
}
