package integrity

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/require"

	"github.com/perama-v/min-know/extract"
	"github.com/perama-v/min-know/ids"
	"github.com/perama-v/min-know/manifest"
	"github.com/perama-v/min-know/publish"
	"github.com/perama-v/min-know/spec"
)

type byteValue struct{ n byte }

func (v byteValue) Encode() ([]byte, error) { return []byte{v.n}, nil }

type repairSpec struct{}

func (repairSpec) DatabaseInterfaceID() string { return "repair_test_spec" }
func (repairSpec) SchemaURL() string           { return "https://example.invalid/schema" }
func (repairSpec) NumChapters() int            { return 2 }
func (repairSpec) MaxVolumes() int             { return 1000 }
func (repairSpec) MaxRecordsPerChapter() int   { return 1000 }
func (repairSpec) MaxBytesPerValue() datasize.ByteSize {
	return 1 * datasize.KB
}
func (repairSpec) Partition(key ids.RecordKey) ids.ChapterID { return ids.ChapterID(key[0] % 2) }
func (repairSpec) AllChapterIDs() []ids.ChapterID            { return []ids.ChapterID{0, 1} }
func (repairSpec) ParseKey(s string) (ids.RecordKey, error)  { return ids.RecordKey(s), nil }
func (repairSpec) VolumeIDFromSource(p uint64) ids.VolumeID  { return ids.VolumeID(p) }
func (repairSpec) VolumeIDString(v ids.VolumeID) string {
	return fmt.Sprintf("volume_%010d", v.Uint64())
}
func (repairSpec) VolumeIDFromString(s string) (ids.VolumeID, error) {
	var n uint64
	_, err := fmt.Sscanf(s, "volume_%d", &n)
	return ids.VolumeID(n), err
}
func (repairSpec) ChapterIDString(c ids.ChapterID) string {
	return fmt.Sprintf("chapter_0x%02x", c.Uint16())
}
func (repairSpec) ChapterIDFromString(s string) (ids.ChapterID, error) {
	var n uint16
	_, err := fmt.Sscanf(s, "chapter_0x%02x", &n)
	return ids.ChapterID(n), err
}
func (repairSpec) DecodeValue(b []byte) (spec.Value, error) { return byteValue{n: b[0]}, nil }
func (repairSpec) MergeValues(existing, incoming spec.Value) (spec.Value, error) {
	return incoming, nil
}
func (repairSpec) CadenceBoundary(ids.VolumeID) bool { return true }

func TestCheckCompletenessAndRepair(t *testing.T) {
	s := repairSpec{}
	root := t.TempDir()
	eng := publish.New(s, root)

	tuples := []extract.Tuple{
		{VolumeID: 1, ChapterID: 0, Key: ids.RecordKey{0x02}, Value: byteValue{n: 1}},
		{VolumeID: 1, ChapterID: 1, Key: ids.RecordKey{0x03}, Value: byteValue{n: 2}},
	}
	require.NoError(t, eng.FullTransformation(context.Background(), extract.NewFixtureExtractor(tuples)))

	m, err := manifest.Load(filepath.Join(root, publish.ManifestFileName))
	require.NoError(t, err)

	report, err := CheckCompleteness(root, m)
	require.NoError(t, err)
	for _, status := range report {
		require.Equal(t, StatusPresent, status)
	}

	// Corrupt chapter 0x00 by truncation.
	corruptPath := filepath.Join(root, "volume_0000000001", "chapter_0x00.ssz_snappy")
	require.NoError(t, os.WriteFile(corruptPath, []byte("x"), 0o644))

	report, err = CheckCompleteness(root, m)
	require.NoError(t, err)
	require.Equal(t, StatusCorrupt, report[Key{VolumeInterfaceID: "volume_0000000001", ChapterInterfaceID: "chapter_0x00"}])
	require.Equal(t, StatusPresent, report[Key{VolumeInterfaceID: "volume_0000000001", ChapterInterfaceID: "chapter_0x01"}])

	repaired, err := RepairFromRaw(context.Background(), s, root, m, extract.NewFixtureExtractor(tuples))
	require.NoError(t, err)

	report, err = CheckCompleteness(root, repaired)
	require.NoError(t, err)
	for key, status := range report {
		require.Equalf(t, StatusPresent, status, "key %v should be repaired", key)
	}
}
