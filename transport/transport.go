// Package transport provides concrete Transport implementations for the
// Retrieval engine: a local filesystem reader for a database root on
// disk, and an HTTP gateway client for a remote, IPFS-shaped content
// store. Both are runnable stand-ins for a block-publishing layer that
// this repository treats as an external collaborator.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/perama-v/min-know/manifest"
)

// ErrBlockNotFound is raised when a transport has no bytes for a CID it
// was asked to fetch.
var ErrBlockNotFound = errors.New("transport: block not found")

// Local serves Chapter bytes straight from a database root on disk,
// resolving a CID to its (volume, chapter) file path via a reverse index
// built from the Manifest's entries. Used when the retriever and publisher share a
// filesystem, bypassing any network hop.
type Local struct {
	Root     string
	Manifest *manifest.Manifest

	// byCID maps a CIDv0 string to the on-disk path that holds it,
	// built lazily on first Fetch from the Manifest's entries.
	byCID map[string]string
}

// NewLocal returns a Local transport rooted at dbRoot, resolving CIDs
// against m.
func NewLocal(dbRoot string, m *manifest.Manifest) *Local {
	return &Local{Root: dbRoot, Manifest: m}
}

// ChapterFileSuffix is a copy of publish.ChapterFileSuffix; package
// transport does not import package publish.
const ChapterFileSuffix = ".ssz_snappy"

func (l *Local) buildIndex() {
	l.byCID = make(map[string]string, len(l.Manifest.ChapterCIDs))
	for _, e := range l.Manifest.ChapterCIDs {
		path := filepath.Join(l.Root, e.VolumeInterfaceID, e.ChapterInterfaceID+ChapterFileSuffix)
		l.byCID[e.CIDv0] = path
	}
}

// Fetch reads the Chapter file on disk whose Manifest entry carries
// cidStr. It does not itself verify the hash; callers (retrieve.Engine)
// do that uniformly for every Transport.
func (l *Local) Fetch(ctx context.Context, cidStr string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.byCID == nil {
		l.buildIndex()
	}
	path, ok := l.byCID[cidStr]
	if !ok {
		return nil, errors.Wrapf(ErrBlockNotFound, "cid %s not present in manifest", cidStr)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrBlockNotFound, "cid %s (path %s)", cidStr, path)
		}
		return nil, errors.Wrapf(err, "transport: reading %s", path)
	}
	return data, nil
}

// HTTPGateway fetches Chapter bytes from a remote IPFS-shaped gateway
// by requesting <BaseURL>/ipfs/<cid>. IPFS block-publishing is treated
// as an external collaborator this repository does not implement; this
// is the client half of that boundary.
type HTTPGateway struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPGateway returns an HTTPGateway transport against baseURL,
// using http.DefaultClient if client is nil.
func NewHTTPGateway(baseURL string, client *http.Client) *HTTPGateway {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPGateway{BaseURL: strings.TrimRight(baseURL, "/"), Client: client}
}

// Fetch issues a GET against the gateway's /ipfs/<cid> path.
func (g *HTTPGateway) Fetch(ctx context.Context, cidStr string) ([]byte, error) {
	url := fmt.Sprintf("%s/ipfs/%s", g.BaseURL, cidStr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "transport: building request for %s", url)
	}

	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "transport: fetching %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.Wrapf(ErrBlockNotFound, "gateway returned 404 for %s", cidStr)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("transport: gateway returned status %d for %s", resp.StatusCode, url)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "transport: reading response body for %s", url)
	}
	return data, nil
}
