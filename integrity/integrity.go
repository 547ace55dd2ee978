// Package integrity implements CheckCompleteness and RepairFromRaw:
// reconciling the on-disk Chapter tree against the Manifest's recorded
// CIDs, and rebuilding mismatched Chapters from the raw source.
package integrity

import (
	"context"
	"os"
	"path/filepath"

	golog "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"

	"github.com/perama-v/min-know/codec"
	"github.com/perama-v/min-know/extract"
	"github.com/perama-v/min-know/ids"
	"github.com/perama-v/min-know/manifest"
	"github.com/perama-v/min-know/publish"
	"github.com/perama-v/min-know/spec"
)

var logger = golog.Logger("todd/integrity")

// Status reports the on-disk state of one Manifest entry.
type Status int

const (
	StatusPresent Status = iota
	StatusMissing
	StatusCorrupt
)

// String renders Status the way it is reported to a user.
func (s Status) String() string {
	switch s {
	case StatusPresent:
		return "Present"
	case StatusMissing:
		return "Missing"
	case StatusCorrupt:
		return "Corrupt"
	default:
		return "Unknown"
	}
}

// Key identifies one (VolumeID, ChapterID) pair by its manifest string
// form, the same strings a Manifest.Entry carries.
type Key struct {
	VolumeInterfaceID  string
	ChapterInterfaceID string
}

// Report maps every Manifest entry to its on-disk Status.
type Report map[Key]Status

// CheckCompleteness reports, per (VolumeId, ChapterId) listed in m,
// whether the on-disk file at dbRoot is Present (hash matches),
// Missing (no file), or Corrupt (file exists, hash mismatches).
func CheckCompleteness(dbRoot string, m *manifest.Manifest) (Report, error) {
	report := make(Report, len(m.ChapterCIDs))
	for _, e := range m.ChapterCIDs {
		key := Key{VolumeInterfaceID: e.VolumeInterfaceID, ChapterInterfaceID: e.ChapterInterfaceID}
		path := filepath.Join(dbRoot, e.VolumeInterfaceID, e.ChapterInterfaceID+publish.ChapterFileSuffix)

		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				report[key] = StatusMissing
				continue
			}
			return nil, errors.Wrapf(err, "integrity: reading %s", path)
		}

		want, err := codec.ParseCID(e.CIDv0)
		if err != nil {
			return nil, err
		}
		if err := codec.Verify(data, want); err != nil {
			report[key] = StatusCorrupt
			continue
		}
		report[key] = StatusPresent
	}
	return report, nil
}

// RepairFromRaw runs CheckCompleteness, then re-runs the Publication
// engine restricted to the Volumes with at least one Missing or Corrupt
// entry, reconstructing them from raw. Chapters in unaffected Volumes are
// never touched, so their CIDs continue to match the returned Manifest.
func RepairFromRaw(ctx context.Context, s spec.Spec, dbRoot string, m *manifest.Manifest, raw extract.Extractor) (*manifest.Manifest, error) {
	report, err := CheckCompleteness(dbRoot, m)
	if err != nil {
		return nil, err
	}

	affected := make(map[string]bool)
	for key, status := range report {
		if status != StatusPresent {
			affected[key.VolumeInterfaceID] = true
		}
	}
	if len(affected) == 0 {
		logger.Infow("repair: nothing to do", "root", dbRoot)
		return m, nil
	}
	logger.Infow("repair: rebuilding volumes", "root", dbRoot, "count", len(affected))

	eng := publish.New(s, dbRoot)
	keep := func(v ids.VolumeID) bool { return affected[s.VolumeIDString(v)] }
	if err := eng.RepublishVolumes(ctx, raw, keep); err != nil {
		return nil, errors.Wrap(err, "integrity: repairing volumes")
	}
	if err := eng.GenerateManifest(); err != nil {
		return nil, errors.Wrap(err, "integrity: regenerating manifest")
	}
	return manifest.Load(filepath.Join(dbRoot, publish.ManifestFileName))
}
