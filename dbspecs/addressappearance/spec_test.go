package addressappearance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/perama-v/min-know/extract"
	"github.com/perama-v/min-know/ids"
	"github.com/perama-v/min-know/publish"
)

func TestPartitionRoutesByFirstByte(t *testing.T) {
	s := Spec{}
	key, err := s.ParseKey("0xf15400000000000000000000000000000000f00d")
	require.NoError(t, err)
	require.Equal(t, ids.ChapterID(0xf1), s.Partition(key))
}

func TestMergeValuesUnionsPreservingOrder(t *testing.T) {
	s := Spec{}
	merged, err := s.MergeValues(AppearanceList{TxIDs: []string{"tx1", "tx2"}}, AppearanceList{TxIDs: []string{"tx2", "tx3"}})
	require.NoError(t, err)
	require.Equal(t, []string{"tx1", "tx2", "tx3"}, merged.(AppearanceList).TxIDs)
}

func TestAppearanceListEncodeDecodeRoundTrip(t *testing.T) {
	s := Spec{}
	val := AppearanceList{TxIDs: []string{"0xaaa:0", "0xbbb:2"}}
	encoded, err := val.Encode()
	require.NoError(t, err)
	decoded, err := s.DecodeValue(encoded)
	require.NoError(t, err)
	require.Equal(t, val, decoded)
}

// TestEmptyChapterTotality checks that one transaction involving
// 0xf154...f00d writes a Chapter file for all 256 ChapterIDs of the
// single Volume, and that two independent runs produce the same CID for
// every Chapter file.
func TestEmptyChapterTotality(t *testing.T) {
	s := Spec{}
	key, err := s.ParseKey("0xf15400000000000000000000000000000000f00d")
	require.NoError(t, err)

	tuples := []extract.Tuple{
		{
			VolumeID:  s.VolumeIDFromSource(0),
			ChapterID: s.Partition(key),
			Key:       key,
			Value:     AppearanceList{TxIDs: []string{"0xdeadbeef:0"}},
		},
	}

	root1 := t.TempDir()
	eng1 := publish.New(s, root1)
	require.NoError(t, eng1.FullTransformation(context.Background(), extract.NewFixtureExtractor(tuples)))

	root2 := t.TempDir()
	eng2 := publish.New(s, root2)
	require.NoError(t, eng2.FullTransformation(context.Background(), extract.NewFixtureExtractor(tuples)))

	entries1, err := eng1.ScanDisk()
	require.NoError(t, err)
	entries2, err := eng2.ScanDisk()
	require.NoError(t, err)
	require.Len(t, entries1, numChapters)
	require.ElementsMatch(t, entries1, entries2)
}
