package todd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/perama-v/min-know/config"
	"github.com/perama-v/min-know/dbspecs/addressappearance"
	"github.com/perama-v/min-know/dbspecs/nametag"
	"github.com/perama-v/min-know/dbspecs/signature"
	"github.com/perama-v/min-know/extract"
	"github.com/perama-v/min-know/integrity"
)

func initAt(t *testing.T, kind config.DatabaseKind) *Todd {
	t.Helper()
	root := t.TempDir()
	td, err := Init(kind, config.DirConfig{Nature: config.Custom, CustomPath: root})
	require.NoError(t, err)
	return td
}

// TestAddressAppearanceEmptyChapterTotality checks that a single
// publication yields a full 256-chapter Manifest, with the untouched
// chapters present alongside the one carrying the new record.
func TestAddressAppearanceEmptyChapterTotality(t *testing.T) {
	td := initAt(t, config.AddressAppearanceIndexMainnet)
	s := addressappearance.Spec{}
	key, err := s.ParseKey("0xf15400000000000000000000000000000000f00d")
	require.NoError(t, err)

	tuples := []extract.Tuple{{
		VolumeID:  s.VolumeIDFromSource(0),
		ChapterID: s.Partition(key),
		Key:       key,
		Value:     addressappearance.AppearanceList{TxIDs: []string{"0xdeadbeef:0"}},
	}}
	require.NoError(t, td.FullTransformation(context.Background(), extract.NewFixtureExtractor(tuples)))

	stats, err := td.Stats()
	require.NoError(t, err)
	require.Equal(t, 256, stats.ChapterCount)

	values, errs := td.Find(context.Background(), "0xf15400000000000000000000000000000000f00d")
	require.Empty(t, errs)
	require.Len(t, values, 1)
}

// TestNametagMergeThroughFacade checks that two tuples for the same key
// merge into a single record when published through the Todd facade.
func TestNametagMergeThroughFacade(t *testing.T) {
	td := initAt(t, config.NametagMainnet)
	s := nametag.Spec{}
	key, err := s.ParseKey("0xffff03000000000000000000000000000000ee44")
	require.NoError(t, err)

	tuples := []extract.Tuple{
		{VolumeID: s.VolumeIDFromSource(0), ChapterID: s.Partition(key), Key: key,
			Value: nametag.NameTag{Name: "HitBTC Token: Deployer", Tags: []string{"contract-deployer"}}},
		{VolumeID: s.VolumeIDFromSource(0), ChapterID: s.Partition(key), Key: key,
			Value: nametag.NameTag{Tags: []string{"opensea-verified"}}},
	}
	require.NoError(t, td.FullTransformation(context.Background(), extract.NewFixtureExtractor(tuples)))

	values, errs := td.Find(context.Background(), "0xffff03000000000000000000000000000000ee44")
	require.Empty(t, errs)
	require.Len(t, values, 1)
	tag := values[0].(nametag.NameTag)
	require.Equal(t, "HitBTC Token: Deployer", tag.Name)
	require.Equal(t, []string{"contract-deployer", "opensea-verified"}, tag.Tags)
}

// TestSignatureLookupThroughFacade checks that a published signature
// mapping can be found back through the Todd facade.
func TestSignatureLookupThroughFacade(t *testing.T) {
	td := initAt(t, config.SignatureMainnet)
	s := signature.Spec{}
	key, err := s.ParseKey("dd62ed3e")
	require.NoError(t, err)

	tuples := []extract.Tuple{{
		VolumeID:  s.VolumeIDFromSource(0),
		ChapterID: s.Partition(key),
		Key:       key,
		Value:     signature.TextList{Signatures: []string{"allowance(address,address)"}},
	}}
	require.NoError(t, td.FullTransformation(context.Background(), extract.NewFixtureExtractor(tuples)))

	values, errs := td.Find(context.Background(), "dd62ed3e")
	require.Empty(t, errs)
	require.Equal(t, []string{"allowance(address,address)"}, values[0].(signature.TextList).Signatures)
}

// TestExtendPreservesManifestPrefix checks that extending with a
// second batch of tuples preserves the first Manifest's prefix and
// advances latest_volume_identifier.
func TestExtendPreservesManifestPrefix(t *testing.T) {
	td := initAt(t, config.SignatureMainnet)
	s := signature.Spec{}
	key1, err := s.ParseKey("aaaaaaaa")
	require.NoError(t, err)
	key2, err := s.ParseKey("bbbbbbbb")
	require.NoError(t, err)

	batch1 := []extract.Tuple{{
		VolumeID: s.VolumeIDFromSource(0), ChapterID: s.Partition(key1), Key: key1,
		Value: signature.TextList{Signatures: []string{"foo()"}},
	}}
	require.NoError(t, td.FullTransformation(context.Background(), extract.NewFixtureExtractor(batch1)))
	m1, err := td.Manifest()
	require.NoError(t, err)

	batch2 := []extract.Tuple{{
		VolumeID: s.VolumeIDFromSource(10_000), ChapterID: s.Partition(key2), Key: key2,
		Value: signature.TextList{Signatures: []string{"bar()"}},
	}}
	require.NoError(t, td.Extend(context.Background(), extract.NewFixtureExtractor(batch2)))
	m2, err := td.Manifest()
	require.NoError(t, err)

	require.Equal(t, m1.ChapterCIDs, m2.ChapterCIDs[:len(m1.ChapterCIDs)])
	require.Greater(t, m2.LatestVolumeIdentifier, m1.LatestVolumeIdentifier)
}

// TestRepairFromRawRestoresTruncatedChapter checks that truncating a
// Chapter file is reported Corrupt, RepairFromRaw restores it, and the
// restored CID matches the Manifest.
func TestRepairFromRawRestoresTruncatedChapter(t *testing.T) {
	td := initAt(t, config.SignatureMainnet)
	s := signature.Spec{}
	key, err := s.ParseKey("dd62ed3e")
	require.NoError(t, err)

	tuples := []extract.Tuple{{
		VolumeID: s.VolumeIDFromSource(0), ChapterID: s.Partition(key), Key: key,
		Value: signature.TextList{Signatures: []string{"allowance(address,address)"}},
	}}
	require.NoError(t, td.FullTransformation(context.Background(), extract.NewFixtureExtractor(tuples)))

	m, err := td.Manifest()
	require.NoError(t, err)
	volStr := s.VolumeIDString(s.VolumeIDFromSource(0))
	chapStr := s.ChapterIDString(s.Partition(key))
	corruptPath := filepath.Join(td.Root, volStr, chapStr+".ssz_snappy")
	require.NoError(t, os.WriteFile(corruptPath, []byte("x"), 0o644))

	report, err := td.CheckCompleteness()
	require.NoError(t, err)
	require.Equal(t, integrity.StatusCorrupt, report[integrity.Key{VolumeInterfaceID: volStr, ChapterInterfaceID: chapStr}])

	repaired, err := td.RepairFromRaw(context.Background(), extract.NewFixtureExtractor(tuples))
	require.NoError(t, err)
	cidStr, ok := repaired.Lookup(volStr, chapStr)
	require.True(t, ok)
	require.Equal(t, m.ChapterCIDs, repaired.ChapterCIDs)
	require.NotEmpty(t, cidStr)

	report, err = integrity.CheckCompleteness(td.Root, repaired)
	require.NoError(t, err)
	for _, status := range report {
		require.Equal(t, integrity.StatusPresent, status)
	}
}

// TestFindSurfacesIntegrityViolationPerChapter checks that a Chapter
// served with bytes that hash to a different CID than the Manifest
// states surfaces IntegrityViolation for that pair only, leaving other
// Chapters retrievable.
func TestFindSurfacesIntegrityViolationPerChapter(t *testing.T) {
	td := initAt(t, config.SignatureMainnet)
	s := signature.Spec{}
	key, err := s.ParseKey("dd62ed3e")
	require.NoError(t, err)

	tuples := []extract.Tuple{{
		VolumeID: s.VolumeIDFromSource(0), ChapterID: s.Partition(key), Key: key,
		Value: signature.TextList{Signatures: []string{"allowance(address,address)"}},
	}}
	require.NoError(t, td.FullTransformation(context.Background(), extract.NewFixtureExtractor(tuples)))

	volStr := s.VolumeIDString(s.VolumeIDFromSource(0))
	chapStr := s.ChapterIDString(s.Partition(key))
	path := filepath.Join(td.Root, volStr, chapStr+".ssz_snappy")
	require.NoError(t, os.WriteFile(path, []byte("tampered bytes that will not hash to the recorded cid"), 0o644))

	values, errs := td.Find(context.Background(), "dd62ed3e")
	require.Empty(t, values)
	require.Len(t, errs, 1)
	require.Contains(t, errs, volStr)

	// A key routed to an untouched Chapter of the same Volume still
	// fetches and verifies cleanly.
	_, errs = td.Find(context.Background(), "aaaaaaaa")
	require.Empty(t, errs)
}
