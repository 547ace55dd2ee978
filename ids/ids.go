// Package ids defines the typed identifiers shared across the TODD engine:
// VolumeID, ChapterID and RecordKey. Their string forms are the canonical
// on-disk and on-the-wire names, produced and parsed by a spec's
// *String/*FromString pair. Neither the engine nor the supplied specs
// check that a parsed string round-trips back to the same form.
package ids

import "bytes"

// VolumeID identifies a published Volume. It encodes a monotonically
// increasing boundary in the raw source's natural ordering (a block
// height, an addition-count multiple of a spec's cadence). The engine
// treats it as an opaque, totally ordered value; a spec owns its meaning.
type VolumeID uint64

// Uint64 returns the raw ordinal value.
func (v VolumeID) Uint64() uint64 { return uint64(v) }

// Less reports whether v sorts before other. Manifests are ordered
// (VolumeID ascending, ChapterID ascending).
func (v VolumeID) Less(other VolumeID) bool { return v < other }

// ChapterID identifies one partition of a Volume. Every supplied spec
// draws ChapterID from {0x00...0xFF}, but the engine treats the space as
// an opaque, spec-fixed finite set of size NUM_CHAPTERS.
type ChapterID uint16

// Uint16 returns the raw partition value.
func (c ChapterID) Uint16() uint16 { return uint16(c) }

// Less reports whether c sorts before other.
func (c ChapterID) Less(other ChapterID) bool { return c < other }

// RecordKey is the spec-defined key half of a Record (e.g. a 20-byte
// address, a 4-byte selector). Chapters sort records ascending by the raw
// bytes of RecordKey.
type RecordKey []byte

// Compare returns -1, 0 or 1 as k is bytewise less than, equal to, or
// greater than other. This is the sort/tie-break the engine relies on
// for deterministic Chapter ordering.
func (k RecordKey) Compare(other RecordKey) int {
	return bytes.Compare(k, other)
}

// Equal reports whether k and other hold the same bytes.
func (k RecordKey) Equal(other RecordKey) bool {
	return bytes.Equal(k, other)
}

// Clone returns an independent copy of k, so a builder can retain a key
// beyond the lifetime of a caller-owned buffer.
func (k RecordKey) Clone() RecordKey {
	if k == nil {
		return nil
	}
	out := make(RecordKey, len(k))
	copy(out, k)
	return out
}

// String renders the key as it would appear embedded in an error message;
// this is not the canonical spec string form (that belongs to the Spec,
// via ChapterIDString/VolumeIDString/ParseKey), just a debugging aid.
func (k RecordKey) String() string {
	const hextable = "0123456789abcdef"
	out := make([]byte, 2+len(k)*2)
	out[0], out[1] = '0', 'x'
	for i, b := range k {
		out[2+i*2] = hextable[b>>4]
		out[3+i*2] = hextable[b&0x0f]
	}
	return string(out)
}
