// Package manifest implements the TODD Manifest: the append-only global
// table mapping (VolumeID, ChapterID) to content identifier, in its
// canonical JSON wire form.
package manifest

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/perama-v/min-know/codec"
)

// ErrManifestRewrite is returned when an operation would reorder or
// replace a historical Manifest entry — always a programming error.
var ErrManifestRewrite = errors.New("manifest: attempted to rewrite a historical entry")

// SpecVersion is the wire-format version this package reads and writes.
const SpecVersion = "0.1.0"

// Entry is one row of the chapter_cids table.
type Entry struct {
	VolumeInterfaceID  string `json:"volume_interface_id"`
	ChapterInterfaceID string `json:"chapter_interface_id"`
	CIDv0              string `json:"cid_v0"`
}

// Manifest is the frozen, JSON-serialisable view of the on-disk manifest.
// Construct one via Load, New, or Builder.Freeze.
type Manifest struct {
	SpecVersionField        string  `json:"spec_version"`
	SchemasField             string  `json:"schemas"`
	DatabaseInterfaceIDField string  `json:"database_interface_id"`
	LatestVolumeIdentifier   string  `json:"latest_volume_identifier"`
	ChapterCIDs              []Entry `json:"chapter_cids"`

	index map[[2]string]string // (volume, chapter) -> cid, built once on load
}

// New returns an empty Manifest for a freshly initialised database.
func New(databaseInterfaceID, schemaURL string) *Manifest {
	return &Manifest{
		SpecVersionField:         SpecVersion,
		SchemasField:             schemaURL,
		DatabaseInterfaceIDField: databaseInterfaceID,
		ChapterCIDs:              nil,
	}
}

// Load reads and parses a manifest.json from path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "manifest: reading %s", path)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrapf(err, "manifest: parsing %s", path)
	}
	m.buildIndex()
	return &m, nil
}

// Save writes m to path as canonical JSON (keys in struct-declared order,
// chapter_cids already sorted).
func (m *Manifest) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(err, "manifest: encoding")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "manifest: writing %s", path)
	}
	return nil
}

// CID returns the manifest's own content identifier: the CIDv0 of its
// canonical JSON encoding. This lets two publishers compare manifests by
// hash, same as they compare Chapters.
func (m *Manifest) CID() (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", errors.Wrap(err, "manifest: encoding for CID")
	}
	c, err := codec.ComputeCID(data)
	if err != nil {
		return "", err
	}
	return c.String(), nil
}

func (m *Manifest) buildIndex() {
	m.index = make(map[[2]string]string, len(m.ChapterCIDs))
	for _, e := range m.ChapterCIDs {
		m.index[[2]string{e.VolumeInterfaceID, e.ChapterInterfaceID}] = e.CIDv0
	}
}

// Lookup returns the CID for (volumeInterfaceID, chapterInterfaceID), or
// ok=false if the Manifest has no such entry. The index is built lazily
// on first use so a freshly-constructed Manifest (via New or a Builder
// Freeze) doesn't need an explicit "build index" step.
func (m *Manifest) Lookup(volumeInterfaceID, chapterInterfaceID string) (cidStr string, ok bool) {
	if m.index == nil {
		m.buildIndex()
	}
	c, ok := m.index[[2]string{volumeInterfaceID, chapterInterfaceID}]
	return c, ok
}

// Volumes returns the distinct volume_interface_id values referenced by
// ChapterCIDs, in first-seen (i.e. ascending VolumeID) order.
func (m *Manifest) Volumes() []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range m.ChapterCIDs {
		if !seen[e.VolumeInterfaceID] {
			seen[e.VolumeInterfaceID] = true
			out = append(out, e.VolumeInterfaceID)
		}
	}
	return out
}
