// Package todd provides the Todd<Spec> facade: a single handle wiring
// configuration, the Publication engine, the Retrieval engine and the
// Integrity/repair pair behind the maintainer and user operations a
// caller actually needs, so nobody has to hand-assemble the lower
// packages themselves.
package todd

import (
	"context"
	"path/filepath"

	golog "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"

	"github.com/perama-v/min-know/config"
	"github.com/perama-v/min-know/dbspecs/addressappearance"
	"github.com/perama-v/min-know/dbspecs/nametag"
	"github.com/perama-v/min-know/dbspecs/signature"
	"github.com/perama-v/min-know/extract"
	"github.com/perama-v/min-know/ids"
	"github.com/perama-v/min-know/integrity"
	"github.com/perama-v/min-know/manifest"
	"github.com/perama-v/min-know/publish"
	"github.com/perama-v/min-know/retrieve"
	"github.com/perama-v/min-know/spec"
	"github.com/perama-v/min-know/transport"
)

var logger = golog.Logger("todd")

// ErrUnknownDatabaseKind is raised by Init for a config.DatabaseKind
// with no registered spec.Spec.
var ErrUnknownDatabaseKind = errors.New("todd: unknown database kind")

// specFor resolves the one concrete spec.Spec this repository ships for
// kind. Adding a new database kind means adding a case here and a new
// package under dbspecs.
func specFor(kind config.DatabaseKind) (spec.Spec, error) {
	switch kind {
	case config.AddressAppearanceIndexMainnet:
		return addressappearance.Spec{}, nil
	case config.NametagMainnet:
		return nametag.Spec{}, nil
	case config.SignatureMainnet:
		return signature.Spec{}, nil
	default:
		return nil, errors.Wrapf(ErrUnknownDatabaseKind, "kind %v", kind)
	}
}

// Todd is the long-lived handle a caller holds for one database
// instance. It owns no global state; every field here is scoped to the
// single (kind, root) pair it was constructed with.
type Todd struct {
	Spec    spec.Spec
	Root    string
	publish *publish.Engine
}

// Init resolves kind to a concrete spec, resolves its on-disk root per
// dirConfig, and returns a ready-to-use Todd handle.
func Init(kind config.DatabaseKind, dirConfig config.DirConfig) (*Todd, error) {
	s, err := specFor(kind)
	if err != nil {
		return nil, err
	}
	root, err := config.ResolveDir(kind, dirConfig)
	if err != nil {
		return nil, err
	}
	return &Todd{Spec: s, Root: root, publish: publish.New(s, root)}, nil
}

// FullTransformation publishes every derivable Volume from raw, from an
// empty database.
func (t *Todd) FullTransformation(ctx context.Context, raw extract.Extractor) error {
	logger.Infow("full transformation starting", "root", t.Root)
	return t.publish.FullTransformation(ctx, raw)
}

// Extend resumes publication from the existing Manifest's
// latest_volume_identifier, publishing only new Volumes.
func (t *Todd) Extend(ctx context.Context, raw extract.Extractor) error {
	logger.Infow("extend starting", "root", t.Root)
	return t.publish.Extend(ctx, raw)
}

// GenerateManifest rebuilds the Manifest from the on-disk Chapter tree.
func (t *Todd) GenerateManifest() error {
	return t.publish.GenerateManifest()
}

// Manifest loads and returns the current on-disk Manifest.
func (t *Todd) Manifest() (*manifest.Manifest, error) {
	return manifest.Load(filepath.Join(t.Root, publish.ManifestFileName))
}

// CheckCompleteness reconciles the on-disk Chapter tree against the
// current Manifest's recorded CIDs.
func (t *Todd) CheckCompleteness() (integrity.Report, error) {
	m, err := t.Manifest()
	if err != nil {
		return nil, err
	}
	return integrity.CheckCompleteness(t.Root, m)
}

// RepairFromRaw rebuilds any Volume with a Missing or Corrupt Chapter
// from raw, leaving unaffected Volumes untouched, and returns the
// resulting Manifest.
func (t *Todd) RepairFromRaw(ctx context.Context, raw extract.Extractor) (*manifest.Manifest, error) {
	m, err := t.Manifest()
	if err != nil {
		return nil, err
	}
	return integrity.RepairFromRaw(ctx, t.Spec, t.Root, m, raw)
}

// Find returns every value associated with key across all known
// Volumes, verifying each fetched Chapter against the Manifest's
// recorded CID via a Local transport over this Todd's own root.
func (t *Todd) Find(ctx context.Context, key string) ([]spec.Value, map[string]error) {
	parsed, err := t.Spec.ParseKey(key)
	if err != nil {
		return nil, map[string]error{"": err}
	}
	m, err := t.Manifest()
	if err != nil {
		return nil, map[string]error{"": err}
	}
	eng, err := retrieve.New(t.Spec, m, transport.NewLocal(t.Root, m))
	if err != nil {
		return nil, map[string]error{"": err}
	}
	return eng.Find(ctx, parsed)
}

// ObtainRelevantData fetches and verifies every Chapter relevant to
// keys across every known Volume, from the gateway at transportURL. The
// Retrieval engine it uses, and that engine's decoded-Chapter cache,
// last only for this call; nothing fetched is written under Root, and
// Find reads Chapters from Root.
func (t *Todd) ObtainRelevantData(ctx context.Context, keys []string, transportURL string) (retrieve.ObtainStats, error) {
	m, err := t.Manifest()
	if err != nil {
		return retrieve.ObtainStats{}, err
	}
	parsed := make([]ids.RecordKey, 0, len(keys))
	for _, k := range keys {
		p, err := t.Spec.ParseKey(k)
		if err != nil {
			return retrieve.ObtainStats{}, err
		}
		parsed = append(parsed, p)
	}
	eng, err := retrieve.New(t.Spec, m, transport.NewHTTPGateway(transportURL, nil))
	if err != nil {
		return retrieve.ObtainStats{}, err
	}
	return eng.ObtainRelevantData(ctx, parsed)
}

// Stats summarises the current Manifest: database id, latest volume, and
// the number of volumes and chapter entries it lists.
type Stats struct {
	DatabaseInterfaceID string
	LatestVolume        string
	VolumeCount         int
	ChapterCount        int
}

// Stats reports the current Manifest's shape.
func (t *Todd) Stats() (Stats, error) {
	m, err := t.Manifest()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		DatabaseInterfaceID: m.DatabaseInterfaceIDField,
		LatestVolume:        m.LatestVolumeIdentifier,
		VolumeCount:         len(m.Volumes()),
		ChapterCount:        len(m.ChapterCIDs),
	}, nil
}
