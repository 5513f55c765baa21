package upm

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"

	"github.com/matzehuels/pkgwarden/pkg/errors"
)

// Host project files that record which package versions are installed.
const (
	ProjectManifestFile = "Packages/manifest.json"
	ProjectLockFile     = "Packages/packages-lock.json"
)

type projectManifest struct {
	Dependencies map[string]string `json:"dependencies"`
}

type projectLock struct {
	Dependencies map[string]struct {
		Version string `json:"version"`
		Source  string `json:"source"`
	} `json:"dependencies"`
}

// ReadProjectVersions returns the exact package versions recorded by a host
// project. Lock file entries are read first and the project manifest overrides
// them. Values that are not exact versions (file: paths, git URLs) are ignored.
// Missing files contribute nothing.
func ReadProjectVersions(projectDir string) (map[string]string, error) {
	versions := make(map[string]string)

	var lock projectLock
	if ok, err := readOptionalJSON(filepath.Join(projectDir, ProjectLockFile), &lock); err != nil {
		return nil, err
	} else if ok {
		for id, entry := range lock.Dependencies {
			if IsExactVersion(entry.Version) {
				versions[id] = entry.Version
			}
		}
	}

	var manifest projectManifest
	if ok, err := readOptionalJSON(filepath.Join(projectDir, ProjectManifestFile), &manifest); err != nil {
		return nil, err
	} else if ok {
		for id, v := range manifest.Dependencies {
			if IsExactVersion(v) {
				versions[id] = v
			}
		}
	}

	return versions, nil
}

// IsExactVersion reports whether v is a strict semantic version such as
// "1.2.3" or "2.0.0-pre.1".
func IsExactVersion(v string) bool {
	_, err := semver.StrictNewVersion(v)
	return err == nil
}

func readOptionalJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(errors.ErrCodeConfiguration, err, "read %s", path)
	}
	if err := json.Unmarshal(TrimBOM(data), v); err != nil {
		return false, errors.Wrap(errors.ErrCodeParse, err, "parse %s", path)
	}
	return true, nil
}
