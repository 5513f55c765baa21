package upm

import (
	"os"
	"path/filepath"

	"github.com/matzehuels/pkgwarden/pkg/errors"
)

const (
	// ManifestFile is the package manifest filename.
	ManifestFile = "package.json"

	// DependenciesField is the manifest field holding the declared dependencies.
	DependenciesField = "dependencies"
)

// Dependency is one declared dependency of a package.
type Dependency struct {
	ID      string
	Version string
}

// Manifest holds the fields of a package manifest that pkgwarden uses.
type Manifest struct {
	Name         string       // Package id ("name" field)
	Version      string       // Package version
	DisplayName  string       // Human-readable name (optional)
	Dependencies []Dependency // Declared dependencies in document order
	HasDepsBlock bool         // Whether a "dependencies" field exists
}

// DependencyMap returns the declared dependencies as id -> version.
func (m *Manifest) DependencyMap() map[string]string {
	out := make(map[string]string, len(m.Dependencies))
	for _, d := range m.Dependencies {
		out[d.ID] = d.Version
	}
	return out
}

// DependencyIDs returns the declared dependency ids in document order.
func (m *Manifest) DependencyIDs() []string {
	ids := make([]string, len(m.Dependencies))
	for i, d := range m.Dependencies {
		ids[i] = d.ID
	}
	return ids
}

// ReadManifest reads and parses the manifest at path. A missing or unreadable
// file is a configuration error; malformed JSON is a parse error.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "read manifest %s", path)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "parse manifest %s", path)
	}
	return m, nil
}

// ReadManifestDir reads the manifest in a package directory.
func ReadManifestDir(dir string) (*Manifest, error) {
	return ReadManifest(filepath.Join(dir, ManifestFile))
}

// ParseManifest parses manifest bytes.
func ParseManifest(data []byte) (*Manifest, error) {
	data = TrimBOM(data)
	if _, _, err := Members(data); err != nil {
		return nil, err
	}

	m := &Manifest{}
	m.Name, _ = StringField(data, "name")
	m.Version, _ = StringField(data, "version")
	m.DisplayName, _ = StringField(data, "displayName")

	obj, ok, err := LocateObject(data, DependenciesField)
	if err != nil {
		return nil, err
	}
	if ok {
		m.HasDepsBlock = true
		for _, e := range obj.Entries {
			m.Dependencies = append(m.Dependencies, Dependency{ID: e.Key, Version: e.Value})
		}
	}
	return m, nil
}

// IsPackageDir reports whether dir contains a package manifest.
func IsPackageDir(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, ManifestFile))
	return err == nil && !info.IsDir()
}
