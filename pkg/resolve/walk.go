package resolve

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/matzehuels/pkgwarden/pkg/errors"
	"github.com/matzehuels/pkgwarden/pkg/upm"
)

// walkFiles calls fn for every regular file beneath root in lexical order.
// Names excluded from the asset database are skipped, as are unreadable
// subdirectories; an unreadable root is a configuration error.
func walkFiles(root string, fn func(path string)) error {
	info, err := os.Stat(root)
	if err != nil {
		return errors.Wrap(errors.ErrCodeConfiguration, err, "package root %s", root)
	}
	if !info.IsDir() {
		return errors.New(errors.ErrCodeConfiguration, "package root is not a directory: %s", root)
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return errors.Wrap(errors.ErrCodeConfiguration, err, "walk %s", root)
			}
			return nil
		}
		if path != root && upm.Ignored(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			fn(path)
		}
		return nil
	})
}

func hasExtension(path string, extensions []string) bool {
	ext := filepath.Ext(path)
	for _, e := range extensions {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
