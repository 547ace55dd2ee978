package manifest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuilderFreezeFreshManifest(t *testing.T) {
	b := NewBuilder(nil)
	err := b.AppendVolume("volume_0000000001", []Entry{
		{VolumeInterfaceID: "volume_0000000001", ChapterInterfaceID: "chapter_0x00", CIDv0: "Qm1"},
		{VolumeInterfaceID: "volume_0000000001", ChapterInterfaceID: "chapter_0x01", CIDv0: "Qm2"},
	}, true)
	require.NoError(t, err)

	m, err := b.Freeze("test_db", "https://example.invalid/schema")
	require.NoError(t, err)
	require.Equal(t, "volume_0000000001", m.LatestVolumeIdentifier)
	require.Len(t, m.ChapterCIDs, 2)

	cidStr, ok := m.Lookup("volume_0000000001", "chapter_0x00")
	require.True(t, ok)
	require.Equal(t, "Qm1", cidStr)
}

func TestExtendPreservesPrefix(t *testing.T) {
	b1 := NewBuilder(nil)
	require.NoError(t, b1.AppendVolume("volume_0000000001", []Entry{
		{VolumeInterfaceID: "volume_0000000001", ChapterInterfaceID: "chapter_0x00", CIDv0: "Qm1"},
	}, true))
	m1, err := b1.Freeze("test_db", "https://example.invalid/schema")
	require.NoError(t, err)

	b2 := NewBuilder(m1)
	require.NoError(t, b2.AppendVolume("volume_0000000002", []Entry{
		{VolumeInterfaceID: "volume_0000000002", ChapterInterfaceID: "chapter_0x00", CIDv0: "Qm3"},
	}, true))
	m2, err := b2.Freeze("test_db", "https://example.invalid/schema")
	require.NoError(t, err)

	require.Equal(t, m1.ChapterCIDs, m2.ChapterCIDs[:len(m1.ChapterCIDs)])
	require.True(t, m2.LatestVolumeIdentifier > m1.LatestVolumeIdentifier)
}

func TestAppendVolumeRejectsDuplicateVolume(t *testing.T) {
	b := NewBuilder(nil)
	require.NoError(t, b.AppendVolume("volume_0000000001", []Entry{
		{VolumeInterfaceID: "volume_0000000001", ChapterInterfaceID: "chapter_0x00", CIDv0: "Qm1"},
	}, true))
	err := b.AppendVolume("volume_0000000001", []Entry{
		{VolumeInterfaceID: "volume_0000000001", ChapterInterfaceID: "chapter_0x01", CIDv0: "Qm2"},
	}, true)
	require.ErrorIs(t, err, ErrManifestRewrite)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	b := NewBuilder(nil)
	require.NoError(t, b.AppendVolume("volume_0000000001", []Entry{
		{VolumeInterfaceID: "volume_0000000001", ChapterInterfaceID: "chapter_0x00", CIDv0: "Qm1"},
	}, true))
	m, err := b.Freeze("test_db", "https://example.invalid/schema")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, m.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, m.ChapterCIDs, loaded.ChapterCIDs)
	require.Equal(t, m.LatestVolumeIdentifier, loaded.LatestVolumeIdentifier)

	cidStr, ok := loaded.Lookup("volume_0000000001", "chapter_0x00")
	require.True(t, ok)
	require.Equal(t, "Qm1", cidStr)
}

func TestManifestCIDIsDeterministic(t *testing.T) {
	b := NewBuilder(nil)
	require.NoError(t, b.AppendVolume("volume_0000000001", []Entry{
		{VolumeInterfaceID: "volume_0000000001", ChapterInterfaceID: "chapter_0x00", CIDv0: "Qm1"},
	}, true))
	m, err := b.Freeze("test_db", "https://example.invalid/schema")
	require.NoError(t, err)

	c1, err := m.CID()
	require.NoError(t, err)
	c2, err := m.CID()
	require.NoError(t, err)
	require.Equal(t, c1, c2)
}
