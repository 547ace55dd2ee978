// Package publish implements the Publication engine: it builds Volumes
// from an Extractor's tuple stream, enforces cadence, splits into
// Chapters, encodes and content-addresses them, persists them to disk,
// and updates the Manifest.
package publish

import (
	"context"
	"os"
	"path/filepath"

	golog "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/perama-v/min-know/chapter"
	"github.com/perama-v/min-know/codec"
	"github.com/perama-v/min-know/extract"
	"github.com/perama-v/min-know/ids"
	"github.com/perama-v/min-know/manifest"
	"github.com/perama-v/min-know/spec"
)

var logger = golog.Logger("todd/publish")

// Errors surfaced by the Publication engine.
var (
	// ErrCadenceGap reports that the extractor handed the engine a
	// Volume boundary that does not align with the spec's own
	// CadenceBoundary decision — a non-contiguous or malformed stream.
	ErrCadenceGap = errors.New("publish: non-contiguous volume boundary observed")
)

// ChapterFileSuffix is the on-disk extension for an encoded Chapter file.
const ChapterFileSuffix = ".ssz_snappy"

// ManifestFileName is the on-disk name of the Manifest, relative to a
// database root.
const ManifestFileName = "manifest.json"

const chapterFileSuffix = ChapterFileSuffix
const manifestFileName = ManifestFileName

// maxConcurrentChapters bounds the per-Chapter worker pool used while
// finalising a Volume.
const maxConcurrentChapters = 8

// Engine is the Publication engine for one on-disk database root. It is
// an owned, stateless-between-calls object; concurrent Extend calls
// against the same root are the caller's responsibility to serialise.
type Engine struct {
	Spec spec.Spec
	Root string
}

// New returns a Publication engine rooted at dbRoot for the given spec.
func New(s spec.Spec, dbRoot string) *Engine {
	return &Engine{Spec: s, Root: dbRoot}
}

// volumeAccumulator holds the per-ChapterID builders for one Volume while
// it is in the Accumulating state.
type volumeAccumulator struct {
	volumeID ids.VolumeID
	builders map[ids.ChapterID]*chapter.Builder
}

func newVolumeAccumulator(s spec.Spec, v ids.VolumeID) *volumeAccumulator {
	return &volumeAccumulator{
		volumeID: v,
		builders: make(map[ids.ChapterID]*chapter.Builder),
	}
}

func (a *volumeAccumulator) insert(s spec.Spec, c ids.ChapterID, key ids.RecordKey, val spec.Value) error {
	b, ok := a.builders[c]
	if !ok {
		b = chapter.NewBuilder(s, a.volumeID, c)
		a.builders[c] = b
	}
	return b.Insert(key, val)
}

// FullTransformation publishes every derivable Volume from raw, starting
// from an empty database (any existing manifest.json is ignored and
// overwritten).
func (e *Engine) FullTransformation(ctx context.Context, raw extract.Extractor) error {
	mb := manifest.NewBuilder(nil)
	if err := e.run(ctx, raw, mb, nil); err != nil {
		return err
	}
	return e.freezeAndSave(mb)
}

// Extend resumes publication from the existing Manifest's
// latest_volume_identifier, publishing only new Volumes. Existing Chapter
// files are never rewritten.
func (e *Engine) Extend(ctx context.Context, raw extract.Extractor) error {
	existing, err := manifest.Load(filepath.Join(e.Root, manifestFileName))
	if err != nil {
		return errors.Wrap(err, "publish: extend requires an existing manifest")
	}
	skip, err := e.Spec.VolumeIDFromString(existing.LatestVolumeIdentifier)
	if err != nil {
		return errors.Wrapf(err, "publish: parsing latest_volume_identifier %q", existing.LatestVolumeIdentifier)
	}
	mb := manifest.NewBuilder(existing)
	if err := e.run(ctx, raw, mb, &skip); err != nil {
		return err
	}
	return e.freezeAndSave(mb)
}

// run drives the extractor-to-accumulator-to-finalise loop shared by
// FullTransformation and Extend. skipUpTo, if non-nil, causes tuples with
// VolumeID <= *skipUpTo to be ignored (they were already published).
func (e *Engine) run(ctx context.Context, raw extract.Extractor, mb *manifest.Builder, skipUpTo *ids.VolumeID) error {
	var acc *volumeAccumulator

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		t, err := raw.Next(ctx)
		if errors.Is(err, extract.ErrRawSourceExhausted) {
			break
		}
		if err != nil {
			return errors.Wrap(err, "publish: reading extractor")
		}

		if skipUpTo != nil && t.VolumeID <= *skipUpTo {
			continue
		}

		if acc == nil {
			acc = newVolumeAccumulator(e.Spec, t.VolumeID)
		} else if t.VolumeID != acc.volumeID {
			if t.VolumeID < acc.volumeID {
				return errors.Wrapf(ErrCadenceGap, "extractor emitted volume %s after already advancing past it",
					e.Spec.VolumeIDString(t.VolumeID))
			}
			if !e.Spec.CadenceBoundary(acc.volumeID) {
				return errors.Wrapf(ErrCadenceGap, "volume %s was not at a cadence boundary when the stream moved on",
					e.Spec.VolumeIDString(acc.volumeID))
			}
			if err := e.sealVolume(ctx, acc, mb); err != nil {
				return err
			}
			acc = newVolumeAccumulator(e.Spec, t.VolumeID)
		}

		if err := acc.insert(e.Spec, t.ChapterID, t.Key, t.Value); err != nil {
			return err
		}
	}

	if acc != nil {
		if err := e.sealVolume(ctx, acc, mb); err != nil {
			return err
		}
	}
	return nil
}

// sealVolume finalises the accumulator: for every ChapterID in the
// spec's partition space (including untouched ones) it materialises,
// encodes, content-addresses and writes a Chapter file, then appends the
// resulting entries to mb.
func (e *Engine) sealVolume(ctx context.Context, acc *volumeAccumulator, mb *manifest.Builder) error {
	allChapters := e.Spec.AllChapterIDs()
	entries := make([]manifest.Entry, len(allChapters))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentChapters)

	volStr := e.Spec.VolumeIDString(acc.volumeID)
	if err := os.MkdirAll(filepath.Join(e.Root, volStr), 0o755); err != nil {
		return errors.Wrapf(err, "publish: creating volume directory %s", volStr)
	}

	for i, cID := range allChapters {
		i, cID := i, cID
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b, ok := acc.builders[cID]
			if !ok {
				b = chapter.NewBuilder(e.Spec, acc.volumeID, cID)
			}
			ch := b.Freeze()

			encoded, err := ch.Encode(e.Spec)
			if err != nil {
				return errors.Wrapf(err, "encoding chapter %s of volume %s",
					e.Spec.ChapterIDString(cID), volStr)
			}
			c, err := codec.ComputeCID(encoded)
			if err != nil {
				return err
			}
			chapStr := e.Spec.ChapterIDString(cID)
			path := filepath.Join(e.Root, volStr, chapStr+chapterFileSuffix)
			if err := os.WriteFile(path, encoded, 0o644); err != nil {
				return errors.Wrapf(err, "writing %s", path)
			}
			entries[i] = manifest.Entry{
				VolumeInterfaceID:  volStr,
				ChapterInterfaceID: chapStr,
				CIDv0:              c.String(),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Infow("sealed volume", "volume", volStr, "chapters", len(entries))
	return mb.AppendVolume(volStr, entries, true)
}

// RepublishVolumes re-runs the accumulate-and-seal pipeline but only for
// Volumes where keep reports true; tuples for other Volumes are ignored.
// It (re)writes Chapter files for each kept Volume but does not touch the
// Manifest — callers (package integrity) typically follow up with
// GenerateManifest once all affected Volumes have been repaired. Every
// Chapter of a kept Volume is rewritten; because sealing is
// deterministic, Chapters that were already correct are rewritten with
// byte-identical content.
func (e *Engine) RepublishVolumes(ctx context.Context, raw extract.Extractor, keep func(ids.VolumeID) bool) error {
	discard := manifest.NewBuilder(nil)
	var acc *volumeAccumulator

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		t, err := raw.Next(ctx)
		if errors.Is(err, extract.ErrRawSourceExhausted) {
			break
		}
		if err != nil {
			return errors.Wrap(err, "publish: reading extractor")
		}
		if !keep(t.VolumeID) {
			continue
		}

		if acc == nil {
			acc = newVolumeAccumulator(e.Spec, t.VolumeID)
		} else if t.VolumeID != acc.volumeID {
			if err := e.sealVolume(ctx, acc, discard); err != nil {
				return err
			}
			acc = newVolumeAccumulator(e.Spec, t.VolumeID)
		}

		if err := acc.insert(e.Spec, t.ChapterID, t.Key, t.Value); err != nil {
			return err
		}
	}

	if acc != nil {
		if err := e.sealVolume(ctx, acc, discard); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) freezeAndSave(mb *manifest.Builder) error {
	m, err := mb.Freeze(e.Spec.DatabaseInterfaceID(), e.Spec.SchemaURL())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(e.Root, 0o755); err != nil {
		return errors.Wrapf(err, "publish: creating db root %s", e.Root)
	}
	return m.Save(filepath.Join(e.Root, manifestFileName))
}

// GenerateManifest rebuilds the Manifest from the on-disk Chapter tree,
// re-hashing each file, for use after out-of-band file operations.
func (e *Engine) GenerateManifest() error {
	entries, err := e.ScanDisk()
	if err != nil {
		return err
	}
	manifest.SortEntries(entries)

	latest := ""
	if len(entries) > 0 {
		latest = entries[len(entries)-1].VolumeInterfaceID
	}
	m := manifest.New(e.Spec.DatabaseInterfaceID(), e.Spec.SchemaURL())
	m.ChapterCIDs = entries
	m.LatestVolumeIdentifier = latest
	return m.Save(filepath.Join(e.Root, manifestFileName))
}

// ScanDisk walks the on-disk tree, hashing every Chapter file it finds.
// Used by GenerateManifest and by package integrity to compare against
// the recorded Manifest.
func (e *Engine) ScanDisk() ([]manifest.Entry, error) {
	volDirs, err := os.ReadDir(e.Root)
	if err != nil {
		return nil, errors.Wrapf(err, "publish: reading db root %s", e.Root)
	}

	var entries []manifest.Entry
	for _, vd := range volDirs {
		if !vd.IsDir() {
			continue
		}
		chapFiles, err := os.ReadDir(filepath.Join(e.Root, vd.Name()))
		if err != nil {
			return nil, errors.Wrapf(err, "publish: reading volume directory %s", vd.Name())
		}
		for _, cf := range chapFiles {
			if cf.IsDir() {
				continue
			}
			data, err := os.ReadFile(filepath.Join(e.Root, vd.Name(), cf.Name()))
			if err != nil {
				return nil, errors.Wrapf(err, "publish: reading chapter file %s/%s", vd.Name(), cf.Name())
			}
			c, err := codec.ComputeCID(data)
			if err != nil {
				return nil, err
			}
			chapStr := cf.Name()
			chapStr = chapStr[:len(chapStr)-len(chapterFileSuffix)]
			entries = append(entries, manifest.Entry{
				VolumeInterfaceID:  vd.Name(),
				ChapterInterfaceID: chapStr,
				CIDv0:              c.String(),
			})
		}
	}
	return entries, nil
}
