package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveDirDefaultUnderHome(t *testing.T) {
	dir, err := ResolveDir(NametagMainnet, DirConfig{Nature: Default})
	require.NoError(t, err)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".todd", "nametag_mainnet"), dir)
}

func TestResolveDirSampleCreatesFreshTempDir(t *testing.T) {
	dir1, err := ResolveDir(SignatureMainnet, DirConfig{Nature: Sample})
	require.NoError(t, err)
	defer os.RemoveAll(dir1)

	dir2, err := ResolveDir(SignatureMainnet, DirConfig{Nature: Sample})
	require.NoError(t, err)
	defer os.RemoveAll(dir2)

	require.NotEqual(t, dir1, dir2)
	info, err := os.Stat(dir1)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestResolveDirCustomRequiresPath(t *testing.T) {
	_, err := ResolveDir(AddressAppearanceIndexMainnet, DirConfig{Nature: Custom})
	require.Error(t, err)

	dir, err := ResolveDir(AddressAppearanceIndexMainnet, DirConfig{Nature: Custom, CustomPath: "some/relative/path"})
	require.NoError(t, err)
	require.True(t, filepath.IsAbs(dir))
}
