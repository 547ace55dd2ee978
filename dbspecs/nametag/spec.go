// Package nametag implements the nametag data spec: RecordKey is a
// 20-byte Ethereum address, RecordValue is a human name plus a set of
// free-form tags contributed by possibly many independent sources.
// Volumes are cut every 1,000 additions, a cadence fixed to this spec
// rather than imposed globally by the engine.
package nametag

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/pkg/errors"

	"github.com/perama-v/min-know/extract"
	"github.com/perama-v/min-know/ids"
	"github.com/perama-v/min-know/spec"
)

const (
	numChapters          = 256
	maxVolumes           = 1_000_000
	maxRecordsPerChapter = 50_000
	// additionCadence flushes a Volume every 1,000 inserted records.
	additionCadence = 1_000
	keyLen          = 20
)

var errMalformedKey = errors.Wrap(extract.ErrRawSourceMalformed, "nametag: key must be an exact, lowercase, 0x-prefixed 40-hex-character address")

// NameTag is the RecordValue: an optional canonical name plus a set of
// contributor-supplied tags.
type NameTag struct {
	Name string
	Tags []string
}

// Encode renders Name as a length-prefixed string followed by a
// count-prefixed sequence of length-prefixed tag strings.
func (n NameTag) Encode() ([]byte, error) {
	var buf bytes.Buffer
	writeString(&buf, n.Name)
	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(n.Tags)))
	buf.Write(countBuf[:])
	for _, tag := range n.Tags {
		writeString(&buf, tag)
	}
	return buf.Bytes(), nil
}

func writeString(buf *bytes.Buffer, s string) {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(s)))
	buf.Write(lenBuf[:])
	buf.WriteString(s)
}

func readString(b []byte, cursor int) (string, int, error) {
	if cursor+4 > len(b) {
		return "", 0, errors.New("nametag: value truncated before string length")
	}
	n := binary.LittleEndian.Uint32(b[cursor : cursor+4])
	cursor += 4
	if cursor+int(n) > len(b) {
		return "", 0, errors.New("nametag: value truncated before string body")
	}
	return string(b[cursor : cursor+int(n)]), cursor + int(n), nil
}

func decodeNameTag(b []byte) (NameTag, error) {
	name, cursor, err := readString(b, 0)
	if err != nil {
		return NameTag{}, err
	}
	if cursor+4 > len(b) {
		return NameTag{}, errors.New("nametag: value truncated before tag count")
	}
	count := binary.LittleEndian.Uint32(b[cursor : cursor+4])
	cursor += 4
	tags := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		var tag string
		tag, cursor, err = readString(b, cursor)
		if err != nil {
			return NameTag{}, err
		}
		tags = append(tags, tag)
	}
	if cursor != len(b) {
		return NameTag{}, errors.New("nametag: trailing bytes in value")
	}
	return NameTag{Name: name, Tags: tags}, nil
}

// Spec is the nametag spec.Spec implementation.
type Spec struct{}

func (Spec) DatabaseInterfaceID() string { return "nametag_mainnet" }
func (Spec) SchemaURL() string {
	return "https://github.com/perama-v/TODD/blob/main/spec/nametag.md"
}
func (Spec) NumChapters() int          { return numChapters }
func (Spec) MaxVolumes() int           { return maxVolumes }
func (Spec) MaxRecordsPerChapter() int { return maxRecordsPerChapter }
func (Spec) MaxBytesPerValue() datasize.ByteSize {
	return 4 * datasize.KB
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

// ParseKey requires an exact, lowercase, "0x"-prefixed 40-hex-character
// address. This strictness is deliberate: the raw nametag source's
// filename-matching rule is exact, and any mismatch surfaces as a
// malformed key rather than being silently normalised away.
func (Spec) ParseKey(s string) (ids.RecordKey, error) {
	if !strings.HasPrefix(s, "0x") || len(s) != 2+keyLen*2 {
		return nil, errors.Wrapf(errMalformedKey, "got %q", s)
	}
	hexPart := s[2:]
	if hexPart != strings.ToLower(hexPart) {
		return nil, errors.Wrapf(errMalformedKey, "got %q: must be lowercase", s)
	}
	raw, err := hex.DecodeString(hexPart)
	if err != nil {
		return nil, errors.Wrapf(errMalformedKey, "got %q: %v", s, err)
	}
	return ids.RecordKey(raw), nil
}

// VolumeIDFromSource treats rawPosition as a monotonic addition count
// and quantises it down to the start of its 1,000-addition window.
func (Spec) VolumeIDFromSource(rawPosition uint64) ids.VolumeID {
	return ids.VolumeID((rawPosition / additionCadence) * additionCadence)
}

func (Spec) VolumeIDString(v ids.VolumeID) string {
	return fmt.Sprintf("volume_%010d", v.Uint64())
}

func (Spec) VolumeIDFromString(s string) (ids.VolumeID, error) {
	var n uint64
	if _, err := fmt.Sscanf(s, "volume_%d", &n); err != nil {
		return 0, errors.Wrapf(err, "nametag: parsing volume id %q", s)
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
		return 0, errors.Wrapf(err, "nametag: parsing chapter id %q", s)
	}
	return ids.ChapterID(n), nil
}

func (Spec) DecodeValue(b []byte) (spec.Value, error) {
	return decodeNameTag(b)
}

// MergeValues keeps the first non-empty Name seen and unions Tags,
// preserving existing order and appending any new tags not already
// present. Commutative over the resulting tag set and idempotent.
func (Spec) MergeValues(existing, incoming spec.Value) (spec.Value, error) {
	e, ok := existing.(NameTag)
	if !ok {
		return nil, errors.Errorf("nametag: merge expected NameTag, got %T", existing)
	}
	n, ok := incoming.(NameTag)
	if !ok {
		return nil, errors.Errorf("nametag: merge expected NameTag, got %T", incoming)
	}

	name := e.Name
	if name == "" {
		name = n.Name
	}

	seen := make(map[string]struct{}, len(e.Tags))
	out := make([]string, 0, len(e.Tags)+len(n.Tags))
	for _, tag := range e.Tags {
		if _, ok := seen[tag]; !ok {
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	for _, tag := range n.Tags {
		if _, ok := seen[tag]; !ok {
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	return NameTag{Name: name, Tags: out}, nil
}

// CadenceBoundary reports whether v sits exactly on a 1,000-addition
// window boundary.
func (Spec) CadenceBoundary(v ids.VolumeID) bool {
	return v.Uint64()%additionCadence == 0
}
