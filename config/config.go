// Package config resolves which concrete database a caller means and
// where its files live on disk. Directory-resolution policy beyond
// $HOME, a temp dir, or a caller-supplied path is deliberately out of
// scope; this package only implements that narrow boundary.
package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// ErrUnknownDatabaseKind is raised for a DatabaseKind with no known
// concrete spec.
var ErrUnknownDatabaseKind = errors.New("config: unknown database kind")

// DatabaseKind names one concrete, pluggable data spec this repository
// ships an implementation for.
type DatabaseKind int

const (
	AddressAppearanceIndexMainnet DatabaseKind = iota
	NametagMainnet
	SignatureMainnet
)

// String renders a DatabaseKind as the directory-name component used by
// ResolveDir.
func (k DatabaseKind) String() string {
	switch k {
	case AddressAppearanceIndexMainnet:
		return "address_appearance_index_mainnet"
	case NametagMainnet:
		return "nametag_mainnet"
	case SignatureMainnet:
		return "signature_mainnet"
	default:
		return "unknown_database_kind"
	}
}

// DirNature selects which root a database's files live under.
type DirNature int

const (
	// Default resolves under the user's home directory.
	Default DirNature = iota
	// Sample resolves under a fresh temporary directory, for
	// throwaway runs against sample.Obtainer data.
	Sample
	// Custom resolves under a caller-supplied path.
	Custom
)

// DirConfig selects a DatabaseKind's on-disk root.
type DirConfig struct {
	Nature DirNature
	// CustomPath is required when Nature is Custom, ignored otherwise.
	CustomPath string
}

// ResolveDir returns the absolute directory a database of kind should
// be read from and written to, given dirConfig.
func ResolveDir(kind DatabaseKind, dirConfig DirConfig) (string, error) {
	switch dirConfig.Nature {
	case Default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "config: resolving home directory")
		}
		return filepath.Join(home, ".todd", kind.String()), nil
	case Sample:
		dir, err := os.MkdirTemp("", "todd_sample_"+kind.String()+"_")
		if err != nil {
			return "", errors.Wrap(err, "config: creating sample directory")
		}
		return dir, nil
	case Custom:
		if dirConfig.CustomPath == "" {
			return "", errors.New("config: DirNature Custom requires CustomPath")
		}
		abs, err := filepath.Abs(dirConfig.CustomPath)
		if err != nil {
			return "", errors.Wrapf(err, "config: resolving custom path %q", dirConfig.CustomPath)
		}
		return abs, nil
	default:
		return "", errors.Errorf("config: unknown DirNature %d", dirConfig.Nature)
	}
}
