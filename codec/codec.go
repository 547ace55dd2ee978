// Package codec implements the TODD wire contract: a deterministic,
// length-delimited binary encoding of Chapter containers, snappy framing
// around the encoded bytes, and CIDv0 content-addressing of the result.
//
// The container format is a fixed 14-byte header (VolumeID, ChapterID,
// record count) followed by, for each record in order, a 4-byte key
// length, the key bytes, a 4-byte value length and the value bytes,
// little-endian throughout. There is no SSZ offset table: every key and
// value carries its own inline length prefix, and no code-generated SSZ
// type is involved.
package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// Errors surfaced by the codec.
var (
	ErrEncodeTooLarge         = errors.New("codec: value exceeds spec bound")
	ErrDecodeTruncated        = errors.New("codec: input truncated before expected end")
	ErrDecodeOverflow         = errors.New("codec: input declares a size exceeding spec bound")
	ErrDecodeUnexpectedLength = errors.New("codec: trailing bytes after last record")
)

// RawRecord is the codec's view of one Record: spec-encoded key and value
// bytes, with no knowledge of what they mean.
type RawRecord struct {
	Key   []byte
	Value []byte
}

// Container is the codec's view of one Chapter: identifiers plus an
// ordered sequence of RawRecords. Callers (package chapter) are
// responsible for having already sorted Records ascending by Key and
// deduplicated by Key before calling Encode — the codec does not
// re-sort, since re-sorting here would hide a determinism bug instead of
// surfacing it.
type Container struct {
	VolumeID  uint64
	ChapterID uint16
	Records   []RawRecord
}

// Bounds carries the spec-supplied capacity limits the codec enforces.
// A decoder without the originating Spec still sees this same envelope;
// Bounds is what lets it validate without knowing what the bytes mean.
type Bounds struct {
	MaxRecords       int
	MaxBytesPerValue uint64
}

const headerSize = 8 + 2 + 4 // VolumeID + ChapterID + RecordCount

// Encode serialises c into the canonical Chapter wire format:
// snappy(ssz_shaped_encoding(c)). Encoding the same logical Container
// twice yields identical bytes, provided the caller passes Records in a
// stable order.
func Encode(c Container, b Bounds) ([]byte, error) {
	if len(c.Records) > b.MaxRecords {
		return nil, errors.Wrapf(ErrEncodeTooLarge, "%d records exceeds max %d", len(c.Records), b.MaxRecords)
	}
	for i, r := range c.Records {
		if uint64(len(r.Value)) > b.MaxBytesPerValue {
			return nil, errors.Wrapf(ErrEncodeTooLarge, "record %d value is %d bytes, exceeds max %d", i, len(r.Value), b.MaxBytesPerValue)
		}
	}

	var buf bytes.Buffer
	var hdr [headerSize]byte
	binary.LittleEndian.PutUint64(hdr[0:8], c.VolumeID)
	binary.LittleEndian.PutUint16(hdr[8:10], c.ChapterID)
	binary.LittleEndian.PutUint32(hdr[10:14], uint32(len(c.Records)))
	buf.Write(hdr[:])

	for _, r := range c.Records {
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(r.Key)))
		buf.Write(lenBuf[:])
		buf.Write(r.Key)
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(r.Value)))
		buf.Write(lenBuf[:])
		buf.Write(r.Value)
	}

	return snappy.Encode(nil, buf.Bytes()), nil
}

// Decode is the inverse of Encode, validating every length it reads
// against b before trusting it.
func Decode(data []byte, b Bounds) (Container, error) {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return Container{}, errors.Wrap(ErrDecodeTruncated, err.Error())
	}

	if len(raw) < headerSize {
		return Container{}, errors.Wrapf(ErrDecodeTruncated, "need %d header bytes, got %d", headerSize, len(raw))
	}
	c := Container{
		VolumeID:  binary.LittleEndian.Uint64(raw[0:8]),
		ChapterID: binary.LittleEndian.Uint16(raw[8:10]),
	}
	recordCount := binary.LittleEndian.Uint32(raw[10:14])
	if int64(recordCount) > int64(b.MaxRecords) {
		return Container{}, errors.Wrapf(ErrDecodeOverflow, "declares %d records, max is %d", recordCount, b.MaxRecords)
	}

	cursor := headerSize
	c.Records = make([]RawRecord, 0, recordCount)
	for i := uint32(0); i < recordCount; i++ {
		key, next, err := readLengthPrefixed(raw, cursor, b.MaxBytesPerValue)
		if err != nil {
			return Container{}, errors.Wrapf(err, "record %d key", i)
		}
		cursor = next
		val, next, err := readLengthPrefixed(raw, cursor, b.MaxBytesPerValue)
		if err != nil {
			return Container{}, errors.Wrapf(err, "record %d value", i)
		}
		cursor = next
		c.Records = append(c.Records, RawRecord{Key: key, Value: val})
	}

	if cursor != len(raw) {
		return Container{}, errors.Wrapf(ErrDecodeUnexpectedLength, "%d trailing bytes", len(raw)-cursor)
	}
	return c, nil
}

func readLengthPrefixed(raw []byte, cursor int, maxLen uint64) ([]byte, int, error) {
	if cursor+4 > len(raw) {
		return nil, 0, ErrDecodeTruncated
	}
	n := binary.LittleEndian.Uint32(raw[cursor : cursor+4])
	if uint64(n) > maxLen {
		return nil, 0, errors.Wrapf(ErrDecodeOverflow, "length %d exceeds max %d", n, maxLen)
	}
	cursor += 4
	if cursor+int(n) > len(raw) {
		return nil, 0, ErrDecodeTruncated
	}
	out := raw[cursor : cursor+int(n)]
	return out, cursor + int(n), nil
}

// String renders a Container for debugging.
func (c Container) String() string {
	return fmt.Sprintf("Container{volume=%d chapter=0x%02x records=%d}", c.VolumeID, c.ChapterID, len(c.Records))
}
