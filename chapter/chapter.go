// Package chapter implements the in-memory Chapter: a deduplicated,
// key-ordered collection of Records with spec-driven merge semantics, and
// its frozen, encodable counterpart.
package chapter

import (
	"sort"

	"github.com/google/btree"
	"github.com/pkg/errors"

	"github.com/perama-v/min-know/codec"
	"github.com/perama-v/min-know/ids"
	"github.com/perama-v/min-know/spec"
)

// ErrMisroutedRecord is returned when a record's key does not belong to
// the chapter it is being inserted into — a spec-partition bug.
var ErrMisroutedRecord = errors.New("chapter: record key does not belong to this chapter")

// Record is one (key, value) pair as held in memory.
type Record struct {
	Key   ids.RecordKey
	Value spec.Value
}

// item adapts Record to btree.Item, ordering purely by key bytes.
type item struct {
	Record
}

func (a item) Less(than btree.Item) bool {
	return a.Key.Compare(than.(item).Key) < 0
}

// Builder accumulates Records for a single (VolumeID, ChapterID) pair. It
// keeps them in a sorted B-tree through accumulation so Freeze is a plain
// in-order traversal, not a sort step.
type Builder struct {
	spec      spec.Spec
	volumeID  ids.VolumeID
	chapterID ids.ChapterID
	tree      *btree.BTree
}

// NewBuilder returns an empty Builder for the given Volume/Chapter pair.
func NewBuilder(s spec.Spec, volumeID ids.VolumeID, chapterID ids.ChapterID) *Builder {
	return &Builder{
		spec:      s,
		volumeID:  volumeID,
		chapterID: chapterID,
		tree:      btree.New(32),
	}
}

// Len reports how many distinct keys are currently accumulated.
func (b *Builder) Len() int { return b.tree.Len() }

// Insert adds key/val, or merges val into the existing value at key via
// the spec's MergeValues if key is already present. It fails with
// ErrMisroutedRecord if key does not partition to this builder's
// ChapterID.
func (b *Builder) Insert(key ids.RecordKey, val spec.Value) error {
	if got := b.spec.Partition(key); got != b.chapterID {
		return errors.Wrapf(ErrMisroutedRecord, "key %s partitions to %s, builder is for %s",
			key, b.spec.ChapterIDString(got), b.spec.ChapterIDString(b.chapterID))
	}

	key = key.Clone()
	existing := b.tree.Get(item{Record{Key: key}})
	if existing == nil {
		b.tree.ReplaceOrInsert(item{Record{Key: key, Value: val}})
		return nil
	}

	existingRecord := existing.(item).Record
	merged, err := b.spec.MergeValues(existingRecord.Value, val)
	if err != nil {
		return errors.Wrapf(err, "merging value for key %s", key)
	}
	b.tree.ReplaceOrInsert(item{Record{Key: key, Value: merged}})
	return nil
}

// Freeze produces the immutable, sorted Chapter. The Builder must not be
// reused afterwards.
func (b *Builder) Freeze() *Chapter {
	records := make([]Record, 0, b.tree.Len())
	b.tree.Ascend(func(i btree.Item) bool {
		records = append(records, i.(item).Record)
		return true
	})
	return &Chapter{
		VolumeID:  b.volumeID,
		ChapterID: b.chapterID,
		Records:   records,
	}
}

// Chapter is the frozen, retrieval-ready form: unique keys, sorted
// ascending by key bytes.
type Chapter struct {
	VolumeID  ids.VolumeID
	ChapterID ids.ChapterID
	Records   []Record
}

// Find binary-searches the sorted Records for key, returning its value
// and true, or the zero Value and false if absent. A missing key is never
// an error.
func (c *Chapter) Find(key ids.RecordKey) (spec.Value, bool) {
	i := sort.Search(len(c.Records), func(i int) bool {
		return c.Records[i].Key.Compare(key) >= 0
	})
	if i < len(c.Records) && c.Records[i].Key.Equal(key) {
		return c.Records[i].Value, true
	}
	return nil, false
}

// Encode serialises the Chapter to its canonical wire form via the Codec,
// using bounds taken from s.
func (c *Chapter) Encode(s spec.Spec) ([]byte, error) {
	raw := codec.Container{
		VolumeID:  c.VolumeID.Uint64(),
		ChapterID: c.ChapterID.Uint16(),
		Records:   make([]codec.RawRecord, len(c.Records)),
	}
	for i, r := range c.Records {
		v, err := r.Value.Encode()
		if err != nil {
			return nil, errors.Wrapf(err, "encoding value for key %s", r.Key)
		}
		raw.Records[i] = codec.RawRecord{Key: []byte(r.Key), Value: v}
	}
	return codec.Encode(raw, boundsOf(s))
}

// Decode parses bytes produced by Encode back into a Chapter, validating
// every record's partition against s so a mismatched or corrupt Chapter
// is rejected before its records reach the caller.
func Decode(s spec.Spec, data []byte) (*Chapter, error) {
	raw, err := codec.Decode(data, boundsOf(s))
	if err != nil {
		return nil, err
	}
	c := &Chapter{
		VolumeID:  ids.VolumeID(raw.VolumeID),
		ChapterID: ids.ChapterID(raw.ChapterID),
		Records:   make([]Record, len(raw.Records)),
	}
	for i, rr := range raw.Records {
		key := ids.RecordKey(rr.Key)
		if got := s.Partition(key); got != c.ChapterID {
			return nil, errors.Wrapf(ErrMisroutedRecord, "decoded record %s partitions to %s, chapter is %s",
				key, s.ChapterIDString(got), s.ChapterIDString(c.ChapterID))
		}
		val, err := s.DecodeValue(rr.Value)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding value for key %s", key)
		}
		c.Records[i] = Record{Key: key, Value: val}
	}
	return c, nil
}

func boundsOf(s spec.Spec) codec.Bounds {
	return codec.Bounds{
		MaxRecords:       s.MaxRecordsPerChapter(),
		MaxBytesPerValue: uint64(s.MaxBytesPerValue()),
	}
}
