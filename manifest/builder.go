package manifest

import (
	"sort"

	"github.com/pkg/errors"
)

// Builder accumulates Entry rows for Volumes currently being published,
// then Freezes into an immutable Manifest. It is the mutable counterpart
// to the frozen, JSON-serialisable Manifest — builder and frozen form are
// deliberately separate types.
type Builder struct {
	base    *Manifest // the manifest this run extends, or nil for a fresh db
	pending []Entry
	latest  string
}

// NewBuilder starts a Builder that extends base (nil for a fresh
// publication run starting from scratch).
func NewBuilder(base *Manifest) *Builder {
	b := &Builder{base: base}
	if base != nil {
		b.latest = base.LatestVolumeIdentifier
	}
	return b
}

// AppendVolume appends the Entry rows for one fully-finalised Volume.
// entries must already be sorted by ChapterID ascending (the Publication
// engine finalises chapters in that order). AppendVolume rejects a volume
// that already has entries in the base or pending rows with
// ErrManifestRewrite; it does not check that volumes arrive in ascending
// order.
func (b *Builder) AppendVolume(volumeInterfaceID string, entries []Entry, isLatest bool) error {
	allPrior := append(append([]Entry{}, b.baseEntries()...), b.pending...)
	for _, e := range allPrior {
		if e.VolumeInterfaceID == volumeInterfaceID {
			return errors.Wrapf(ErrManifestRewrite, "volume %s already has manifest entries", volumeInterfaceID)
		}
	}
	b.pending = append(b.pending, entries...)
	if isLatest {
		b.latest = volumeInterfaceID
	}
	return nil
}

func (b *Builder) baseEntries() []Entry {
	if b.base == nil {
		return nil
	}
	return b.base.ChapterCIDs
}

// Freeze produces the new Manifest. Its ChapterCIDs prefix is guaranteed
// to equal the base Manifest's ChapterCIDs exactly, so extending a
// database can never rewrite an entry a prior run already published.
func (b *Builder) Freeze(databaseInterfaceID, schemaURL string) (*Manifest, error) {
	all := append(append([]Entry{}, b.baseEntries()...), b.pending...)

	prefixLen := len(b.baseEntries())
	if len(all) < prefixLen {
		return nil, errors.Wrap(ErrManifestRewrite, "frozen manifest is shorter than its base")
	}
	for i := 0; i < prefixLen; i++ {
		if all[i] != b.baseEntries()[i] {
			return nil, errors.Wrapf(ErrManifestRewrite, "entry %d changed relative to base manifest", i)
		}
	}

	m := &Manifest{
		SpecVersionField:         SpecVersion,
		SchemasField:             schemaURL,
		DatabaseInterfaceIDField: databaseInterfaceID,
		LatestVolumeIdentifier:   b.latest,
		ChapterCIDs:              all,
	}
	m.buildIndex()
	return m, nil
}

// SortEntries sorts entries by (VolumeInterfaceID, ChapterInterfaceID)
// lexicographically. Callers pass already-volume-ordered, chapter-ordered
// entries to AppendVolume; SortEntries exists for GenerateManifest, which
// rebuilds a Manifest from a directory listing with no inherent order.
func SortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].VolumeInterfaceID != entries[j].VolumeInterfaceID {
			return entries[i].VolumeInterfaceID < entries[j].VolumeInterfaceID
		}
		return entries[i].ChapterInterfaceID < entries[j].ChapterInterfaceID
	})
}
