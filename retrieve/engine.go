// Package retrieve implements the Retrieval engine: routes a user key to
// the relevant Chapters across all known Volumes, fetches them by CID via
// an injected Transport, verifies their hash, and answers point queries.
package retrieve

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	golog "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"

	"github.com/perama-v/min-know/chapter"
	"github.com/perama-v/min-know/codec"
	"github.com/perama-v/min-know/ids"
	"github.com/perama-v/min-know/manifest"
	"github.com/perama-v/min-know/spec"
)

var logger = golog.Logger("todd/retrieve")

// ErrIntegrityViolation is raised when fetched bytes do not hash to the
// CID the Manifest records for them.
var ErrIntegrityViolation = codec.ErrIntegrityViolation

// ErrTransportFailed wraps any error returned by the injected Transport.
var ErrTransportFailed = errors.New("retrieve: transport fetch failed")

// defaultCacheSize bounds the decoded-Chapter LRU cache. A bounded
// in-memory cache is the Retrieval engine's own choice; nothing requires
// persistence across process restarts.
const defaultCacheSize = 256

// Transport resolves a CID to the bytes it addresses (IPFS, an HTTP
// gateway, or a local cache). It is the one external collaborator the
// Retrieval engine depends on.
type Transport interface {
	Fetch(ctx context.Context, cidStr string) ([]byte, error)
}

// Engine is the Retrieval engine for one Manifest.
type Engine struct {
	Spec      spec.Spec
	Manifest  *manifest.Manifest
	Transport Transport

	cache *lru.Cache[string, *chapter.Chapter]
}

// New returns a Retrieval engine over m, fetching bytes through t.
func New(s spec.Spec, m *manifest.Manifest, t Transport) (*Engine, error) {
	cache, err := lru.New[string, *chapter.Chapter](defaultCacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "retrieve: constructing cache")
	}
	return &Engine{Spec: s, Manifest: m, Transport: t, cache: cache}, nil
}

// fetchChapter resolves, fetches, verifies and decodes the Chapter at
// (volumeInterfaceID, chapterInterfaceID). It returns (nil, nil) if the
// Manifest has no such entry at all.
func (e *Engine) fetchChapter(ctx context.Context, volumeInterfaceID, chapterInterfaceID string) (*chapter.Chapter, error) {
	cidStr, ok := e.Manifest.Lookup(volumeInterfaceID, chapterInterfaceID)
	if !ok {
		return nil, nil
	}
	if c, ok := e.cache.Get(cidStr); ok {
		return c, nil
	}

	data, err := e.Transport.Fetch(ctx, cidStr)
	if err != nil {
		return nil, errors.Wrapf(ErrTransportFailed, "fetching %s (volume %s, chapter %s): %v",
			cidStr, volumeInterfaceID, chapterInterfaceID, err)
	}

	want, err := codec.ParseCID(cidStr)
	if err != nil {
		return nil, err
	}
	if err := codec.Verify(data, want); err != nil {
		return nil, err
	}

	ch, err := chapter.Decode(e.Spec, data)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding chapter %s (volume %s)", chapterInterfaceID, volumeInterfaceID)
	}
	e.cache.Add(cidStr, ch)
	return ch, nil
}

// Find returns every value associated with key across all Volumes in the
// Manifest, in VolumeID ascending order. A missing key is never an error
// (the engine returns an empty slice). A failure fetching or verifying
// one Volume's Chapter is reported in the returned map keyed by that
// Volume's interface id, but does not prevent other Volumes' results
// from being returned.
func (e *Engine) Find(ctx context.Context, key ids.RecordKey) ([]spec.Value, map[string]error) {
	chapterID := e.Spec.Partition(key)
	chapStr := e.Spec.ChapterIDString(chapterID)

	var values []spec.Value
	var errs map[string]error

	for _, volStr := range e.Manifest.Volumes() {
		ch, err := e.fetchChapter(ctx, volStr, chapStr)
		if err != nil {
			if errs == nil {
				errs = make(map[string]error)
			}
			errs[volStr] = err
			continue
		}
		if ch == nil {
			continue
		}
		if val, found := ch.Find(key); found {
			values = append(values, val)
		}
	}
	return values, errs
}

// ObtainStats summarises an ObtainRelevantData call.
type ObtainStats struct {
	ChaptersFetched int
	ChaptersCached  int
}

// ObtainRelevantData fetches and verifies every Chapter relevant to keys
// across every Volume in the Manifest, warming the decoded-Chapter cache
// so subsequent Find calls for those keys are served from memory.
func (e *Engine) ObtainRelevantData(ctx context.Context, keys []ids.RecordKey) (ObtainStats, error) {
	required := make(map[[2]string]struct{})
	for _, k := range keys {
		chapStr := e.Spec.ChapterIDString(e.Spec.Partition(k))
		for _, volStr := range e.Manifest.Volumes() {
			required[[2]string{volStr, chapStr}] = struct{}{}
		}
	}

	var stats ObtainStats
	for pair := range required {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		_, alreadyCached := e.cache.Peek(e.cidFor(pair[0], pair[1]))
		ch, err := e.fetchChapter(ctx, pair[0], pair[1])
		if err != nil {
			logger.Warnw("obtain: chapter fetch failed", "volume", pair[0], "chapter", pair[1], "err", err)
			continue
		}
		if ch == nil {
			continue
		}
		if alreadyCached {
			stats.ChaptersCached++
		} else {
			stats.ChaptersFetched++
		}
	}
	return stats, nil
}

func (e *Engine) cidFor(volumeInterfaceID, chapterInterfaceID string) string {
	c, _ := e.Manifest.Lookup(volumeInterfaceID, chapterInterfaceID)
	return c
}
