// Package signature implements the 4-byte-selector data spec: RecordKey
// is a 4-byte function/event selector, RecordValue is the set of
// human-readable text signatures known to hash to it (selector
// collisions make this genuinely a set, not a single string). Volumes
// are cut every 10,000 additions.
package signature

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
	maxRecordsPerChapter = 100_000
	additionCadence      = 10_000
	keyLen               = 4
)

var errMalformedKey = errors.New("signature: key must be an 8-hex-character selector, optionally 0x-prefixed")

// TextList is the RecordValue: the known text signatures that hash to
// one selector.
type TextList struct {
	Signatures []string
}

// Encode renders the list as a count-prefixed sequence of
// length-prefixed UTF-8 strings.
func (t TextList) Encode() ([]byte, error) {
	var buf bytes.Buffer
	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(t.Signatures)))
	buf.Write(countBuf[:])
	for _, sig := range t.Signatures {
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(sig)))
		buf.Write(lenBuf[:])
		buf.WriteString(sig)
	}
	return buf.Bytes(), nil
}

func decodeTextList(b []byte) (TextList, error) {
	if len(b) < 4 {
		return TextList{}, errors.New("signature: value truncated before count")
	}
	count := binary.LittleEndian.Uint32(b[0:4])
	cursor := 4
	out := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		if cursor+4 > len(b) {
			return TextList{}, errors.New("signature: value truncated before string length")
		}
		n := binary.LittleEndian.Uint32(b[cursor : cursor+4])
		cursor += 4
		if cursor+int(n) > len(b) {
			return TextList{}, errors.New("signature: value truncated before string body")
		}
		out = append(out, string(b[cursor:cursor+int(n)]))
		cursor += int(n)
	}
	if cursor != len(b) {
		return TextList{}, errors.New("signature: trailing bytes in value")
	}
	return TextList{Signatures: out}, nil
}

// Spec is the signature spec.Spec implementation.
type Spec struct{}

func (Spec) DatabaseInterfaceID() string { return "signature_mainnet" }
func (Spec) SchemaURL() string {
	return "https://github.com/perama-v/TODD/blob/main/spec/signature.md"
}
func (Spec) NumChapters() int          { return numChapters }
func (Spec) MaxVolumes() int           { return maxVolumes }
func (Spec) MaxRecordsPerChapter() int { return maxRecordsPerChapter }
func (Spec) MaxBytesPerValue() datasize.ByteSize {
	return 2 * datasize.KB
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

// ParseKey accepts an 8-hex-character selector, with or without a "0x"
// prefix.
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

// VolumeIDFromSource treats rawPosition as a monotonic addition count
// and quantises it down to the start of its 10,000-addition window.
func (Spec) VolumeIDFromSource(rawPosition uint64) ids.VolumeID {
	return ids.VolumeID((rawPosition / additionCadence) * additionCadence)
}

func (Spec) VolumeIDString(v ids.VolumeID) string {
	return fmt.Sprintf("volume_%010d", v.Uint64())
}

func (Spec) VolumeIDFromString(s string) (ids.VolumeID, error) {
	var n uint64
	if _, err := fmt.Sscanf(s, "volume_%d", &n); err != nil {
		return 0, errors.Wrapf(err, "signature: parsing volume id %q", s)
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
		return 0, errors.Wrapf(err, "signature: parsing chapter id %q", s)
	}
	return ids.ChapterID(n), nil
}

func (Spec) DecodeValue(b []byte) (spec.Value, error) {
	return decodeTextList(b)
}

// MergeValues unions the two signature sets, preserving existing order
// and appending any new signatures not already present.
func (Spec) MergeValues(existing, incoming spec.Value) (spec.Value, error) {
	e, ok := existing.(TextList)
	if !ok {
		return nil, errors.Errorf("signature: merge expected TextList, got %T", existing)
	}
	n, ok := incoming.(TextList)
	if !ok {
		return nil, errors.Errorf("signature: merge expected TextList, got %T", incoming)
	}
	seen := make(map[string]struct{}, len(e.Signatures))
	out := make([]string, 0, len(e.Signatures)+len(n.Signatures))
	for _, sig := range e.Signatures {
		if _, ok := seen[sig]; !ok {
			seen[sig] = struct{}{}
			out = append(out, sig)
		}
	}
	for _, sig := range n.Signatures {
		if _, ok := seen[sig]; !ok {
			seen[sig] = struct{}{}
			out = append(out, sig)
		}
	}
	return TextList{Signatures: out}, nil
}

// CadenceBoundary reports whether v sits exactly on a 10,000-addition
// window boundary.
func (Spec) CadenceBoundary(v ids.VolumeID) bool {
	return v.Uint64()%additionCadence == 0
}
