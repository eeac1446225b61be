// Package manifest reads the kernel's build.toml, the kernel-builder
// manifest at the root of a kernel source tree. The orchestrator only
// surfaces its metadata; the build tool is what interprets it.
package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	toml "github.com/pelletier/go-toml/v2"
)

// FileName is the manifest file kernel-builder expects.
const FileName = "build.toml"

// Manifest is the subset of build.toml the action cares about.
type Manifest struct {
	General General `toml:"general"`
}

// General holds kernel identity metadata.
type General struct {
	Name      string `toml:"name"`
	Universal bool   `toml:"universal"`
	Version   string `toml:"version"`
}

// Load reads <dir>/build.toml. A missing manifest returns (nil, nil): not
// every target needs one, and the build tool gives the authoritative error.
func Load(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}
	return &m, nil
}

// NormalizedVersion returns the manifest version in canonical semver form.
// An absent version yields "", a malformed one an error.
func (m *Manifest) NormalizedVersion() (string, error) {
	if m.General.Version == "" {
		return "", nil
	}
	v, err := semver.NewVersion(m.General.Version)
	if err != nil {
		return "", fmt.Errorf("manifest version %q: %w", m.General.Version, err)
	}
	return v.String(), nil
}
