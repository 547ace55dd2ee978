// Package addressappearance implements the address-appearance-index data
// spec: RecordKey is a 20-byte Ethereum address, RecordValue is the set
// of transaction identifiers in which that address appears. Volumes are
// cut on 100,000-block boundaries, matching the Unchained Index's own
// chunking convention (the raw-source parser itself is out of scope).
package addressappearance

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/pkg/errors"

	"github.com/perama-v/min-know/ids"
	"github.com/perama-v/min-know/spec"
)

const (
	numChapters          = 256
	maxVolumes           = 1_000_000
	maxRecordsPerChapter = 200_000
	// blockCadence is the Unchained-Index-style chunk size: a new
	// Volume begins every 100,000 blocks.
	blockCadence = 100_000
	keyLen       = 20
)

var errMalformedKey = errors.New("addressappearance: key must be a 40-hex-character address, optionally 0x-prefixed")

// AppearanceList is the RecordValue: the transaction identifiers an
// address appears in, insertion-ordered and deduplicated.
type AppearanceList struct {
	TxIDs []string
}

// Encode renders the list as a count-prefixed sequence of
// length-prefixed UTF-8 strings.
func (a AppearanceList) Encode() ([]byte, error) {
	var buf bytes.Buffer
	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(a.TxIDs)))
	buf.Write(countBuf[:])
	for _, id := range a.TxIDs {
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(id)))
		buf.Write(lenBuf[:])
		buf.WriteString(id)
	}
	return buf.Bytes(), nil
}

func decodeAppearanceList(b []byte) (AppearanceList, error) {
	if len(b) < 4 {
		return AppearanceList{}, errors.New("addressappearance: value truncated before count")
	}
	count := binary.LittleEndian.Uint32(b[0:4])
	cursor := 4
	out := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		if cursor+4 > len(b) {
			return AppearanceList{}, errors.New("addressappearance: value truncated before string length")
		}
		n := binary.LittleEndian.Uint32(b[cursor : cursor+4])
		cursor += 4
		if cursor+int(n) > len(b) {
			return AppearanceList{}, errors.New("addressappearance: value truncated before string body")
		}
		out = append(out, string(b[cursor:cursor+int(n)]))
		cursor += int(n)
	}
	if cursor != len(b) {
		return AppearanceList{}, errors.New("addressappearance: trailing bytes in value")
	}
	return AppearanceList{TxIDs: out}, nil
}

// Spec is the addressappearance spec.Spec implementation.
type Spec struct{}

func (Spec) DatabaseInterfaceID() string { return "address_appearance_index_mainnet" }
func (Spec) SchemaURL() string {
	return "https://github.com/perama-v/TODD/blob/main/spec/address_appearance_index.md"
}
func (Spec) NumChapters() int          { return numChapters }
func (Spec) MaxVolumes() int           { return maxVolumes }
func (Spec) MaxRecordsPerChapter() int { return maxRecordsPerChapter }
func (Spec) MaxBytesPerValue() datasize.ByteSize {
	return 64 * datasize.KB
}

func (Spec) Partition(key ids.RecordKey) ids.ChapterID {
	return ids.ChapterID(key[0])
}

func (Spec) AllChapterIDs() []ids.ChapterID {
	out := make([]ids.ChapterID, numChapters)
	for i := range out {
		out[i] = ids.ChapterID(i)
	}
	return out
}

// ParseKey accepts a 40-hex-character address, with or without a "0x"
// prefix, and returns its 20 raw bytes.
func (Spec) ParseKey(s string) (ids.RecordKey, error) {
	trimmed := strings.TrimPrefix(s, "0x")
	if len(trimmed) != keyLen*2 {
		return nil, errors.Wrapf(errMalformedKey, "got %q", s)
	}
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, errors.Wrapf(errMalformedKey, "got %q: %v", s, err)
	}
	return ids.RecordKey(raw), nil
}

// VolumeIDFromSource quantises a raw block height down to the start of
// its 100,000-block Volume window.
func (Spec) VolumeIDFromSource(rawPosition uint64) ids.VolumeID {
	return ids.VolumeID((rawPosition / blockCadence) * blockCadence)
}

func (Spec) VolumeIDString(v ids.VolumeID) string {
	return fmt.Sprintf("volume_%010d", v.Uint64())
}

func (Spec) VolumeIDFromString(s string) (ids.VolumeID, error) {
	var n uint64
	if _, err := fmt.Sscanf(s, "volume_%d", &n); err != nil {
		return 0, errors.Wrapf(err, "addressappearance: parsing volume id %q", s)
	}
	return ids.VolumeID(n), nil
}

func (Spec) ChapterIDString(c ids.ChapterID) string {
	return fmt.Sprintf("chapter_0x%02x", c.Uint16())
}

func (Spec) ChapterIDFromString(s string) (ids.ChapterID, error) {
	trimmed := strings.TrimPrefix(s, "chapter_0x")
	n, err := strconv.ParseUint(trimmed, 16, 16)
	if err != nil {
		return 0, errors.Wrapf(err, "addressappearance: parsing chapter id %q", s)
	}
	return ids.ChapterID(n), nil
}

func (Spec) DecodeValue(b []byte) (spec.Value, error) {
	return decodeAppearanceList(b)
}

// MergeValues unions the two transaction id lists, preserving existing
// order and appending any new ids not already present. This is
// commutative over the resulting set and idempotent when applied to
// itself.
func (Spec) MergeValues(existing, incoming spec.Value) (spec.Value, error) {
	e, ok := existing.(AppearanceList)
	if !ok {
		return nil, errors.Errorf("addressappearance: merge expected AppearanceList, got %T", existing)
	}
	n, ok := incoming.(AppearanceList)
	if !ok {
		return nil, errors.Errorf("addressappearance: merge expected AppearanceList, got %T", incoming)
	}
	seen := make(map[string]struct{}, len(e.TxIDs))
	out := make([]string, 0, len(e.TxIDs)+len(n.TxIDs))
	for _, id := range e.TxIDs {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	for _, id := range n.TxIDs {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return AppearanceList{TxIDs: out}, nil
}

// CadenceBoundary reports whether v sits exactly on a 100,000-block
// chunk boundary, the only VolumeIDs this spec publishes.
func (Spec) CadenceBoundary(v ids.VolumeID) bool {
	return v.Uint64()%blockCadence == 0
}
