// Package spec defines the capability bundle a concrete database plugs
// into the generic TODD engine. Nothing in the engine knows anything about
// addresses, signatures or nametags; it only ever calls through a Spec.
package spec

import (
	"github.com/c2h5oh/datasize"

	"github.com/perama-v/min-know/ids"
)

// Value is a spec-defined RecordValue. It must be a bounded-size
// aggregate the Spec itself knows how to encode and decode; the generic
// engine only ever holds it as an opaque Value.
type Value interface {
	// Encode returns the deterministic wire form of the value. Encoding
	// the same logical value twice must yield identical bytes.
	Encode() ([]byte, error)
}

// Spec bundles everything database-specific so the publication and
// retrieval engines stay generic over it. A concrete Spec must be a pure,
// stateless capability object: all of its methods are safe to call
// concurrently and must not depend on anything but their arguments.
type Spec interface {
	// DatabaseInterfaceID names this spec instance in the Manifest, e.g.
	// "address_appearance_index_mainnet".
	DatabaseInterfaceID() string

	// SchemaURL points at the external document describing this spec.
	SchemaURL() string

	// NumChapters is the count of ChapterIDs in the partition space.
	NumChapters() int

	// MaxVolumes bounds how many Volumes a single Manifest may reference.
	MaxVolumes() int

	// MaxRecordsPerChapter bounds the list-capacity the Codec enforces
	// when encoding a Chapter.
	MaxRecordsPerChapter() int

	// MaxBytesPerValue bounds the encoded size of a single Value.
	MaxBytesPerValue() datasize.ByteSize

	// Partition is pure: it determines which ChapterID a key routes to.
	Partition(key ids.RecordKey) ids.ChapterID

	// AllChapterIDs enumerates the full, spec-fixed partition space. The
	// publication engine finalises a Chapter for every ID this returns,
	// every Volume, even ones touched by zero records.
	AllChapterIDs() []ids.ChapterID

	// ParseKey coerces user input (e.g. a CLI argument) into a RecordKey.
	ParseKey(s string) (ids.RecordKey, error)

	// VolumeIDFromSource assigns a raw-source position (e.g. a block
	// number, a running addition count) to the VolumeID it belongs to.
	VolumeIDFromSource(rawPosition uint64) ids.VolumeID

	// VolumeIDString and VolumeIDFromString must be mutual inverses; the
	// string form is the canonical on-disk directory name.
	VolumeIDString(ids.VolumeID) string
	VolumeIDFromString(string) (ids.VolumeID, error)

	// ChapterIDString and ChapterIDFromString must be mutual inverses;
	// the string form is the canonical on-disk file stem.
	ChapterIDString(ids.ChapterID) string
	ChapterIDFromString(string) (ids.ChapterID, error)

	// DecodeValue decodes bytes produced by some Value.Encode() of this
	// spec's own value type.
	DecodeValue([]byte) (Value, error)

	// MergeValues combines an existing value with an incoming one for the
	// same key. It must be commutative and idempotent:
	// Merge(a, Merge(b, c)) == Merge(Merge(a, b), c) and Merge(a, a) == a.
	MergeValues(existing, incoming Value) (Value, error)

	// CadenceBoundary reports whether v is a valid Volume boundary for
	// this spec. The engine flushes the in-progress Volume when the tuple
	// stream moves on to a later VolumeID, and fails with
	// publish.ErrCadenceGap if CadenceBoundary reports false for the
	// Volume being flushed. The engine never imposes a cadence of its own.
	CadenceBoundary(v ids.VolumeID) bool
}
