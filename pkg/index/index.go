// Package index maps compiled module names to the packages that own them.
//
// [Build] scans install locations in the order given. Within a location the
// immediate subdirectories are visited in lexical order, and each one holding a
// package manifest is a package; every module descriptor beneath it is then
// registered with a lexical depth-first walk. The first registration of a
// module name wins: later duplicates are recorded in [Index.Shadowed] but never
// replace the winner, so earlier install locations take precedence.
//
// Packages nested inside other packages are not discovered.
package index

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pkgwarden/pkg/errors"
	"github.com/matzehuels/pkgwarden/pkg/upm"
)

// Shadow records a module registration ignored because the name was taken.
type Shadow struct {
	Module string `json:"module"`
	Winner string `json:"winner"` // package id that kept the name
	Loser  string `json:"loser"`  // package id whose registration was ignored
}

// Index maps module names to package ids. The zero value is not usable; use
// [New] or [Build].
type Index struct {
	owners   map[string]string
	packages map[string]string // package id -> directory
	Shadowed []Shadow
}

// New creates an empty index.
func New() *Index {
	return &Index{
		owners:   make(map[string]string),
		packages: make(map[string]string),
	}
}

// Insert registers module -> pkg unless module is already registered.
// It reports whether the registration took effect.
func (x *Index) Insert(module, pkg string) bool {
	if winner, ok := x.owners[module]; ok {
		if winner != pkg {
			x.Shadowed = append(x.Shadowed, Shadow{Module: module, Winner: winner, Loser: pkg})
		}
		return false
	}
	x.owners[module] = pkg
	return true
}

// Lookup returns the package owning module.
func (x *Index) Lookup(module string) (string, bool) {
	pkg, ok := x.owners[module]
	return pkg, ok
}

// Len returns the number of registered module names.
func (x *Index) Len() int { return len(x.owners) }

// Modules returns the registered module names in sorted order.
func (x *Index) Modules() []string {
	names := make([]string, 0, len(x.owners))
	for name := range x.owners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Packages returns the ids of all scanned packages in sorted order.
func (x *Index) Packages() []string {
	ids := make([]string, 0, len(x.packages))
	for id := range x.packages {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// PackageDir returns the directory a package was first found in.
func (x *Index) PackageDir(id string) (string, bool) {
	dir, ok := x.packages[id]
	return dir, ok
}

// Options configures index building.
type Options struct {
	Logger *log.Logger
}

// Build scans locations in order and returns the resulting index. Missing
// locations are skipped. Packages and descriptors without a readable name are
// skipped silently. An empty location list is a configuration error.
func Build(locations []string, opts Options) (*Index, error) {
	if len(locations) == 0 {
		return nil, errors.New(errors.ErrCodeConfiguration, "no install locations to index")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	x := New()
	for _, loc := range locations {
		entries, err := os.ReadDir(loc)
		if err != nil {
			logger.Debug("skipping install location", "path", loc, "err", err)
			continue
		}
		// os.ReadDir already sorts by name; keep the order explicit.
		slices.SortFunc(entries, func(a, b fs.DirEntry) int { return strings.Compare(a.Name(), b.Name()) })

		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			dir := filepath.Join(loc, e.Name())
			if !upm.IsPackageDir(dir) {
				continue
			}
			m, err := upm.ReadManifestDir(dir)
			if err != nil || m.Name == "" {
				logger.Debug("skipping package without readable name", "path", dir)
				continue
			}
			if _, seen := x.packages[m.Name]; !seen {
				x.packages[m.Name] = dir
			}
			n := x.addDescriptors(dir, m.Name, logger)
			logger.Debug("indexed package", "id", m.Name, "modules", n, "path", dir)
		}
	}
	return x, nil
}

func (x *Index) addDescriptors(dir, pkg string, logger *log.Logger) int {
	added := 0
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path != dir && upm.Ignored(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), upm.DescriptorExt) {
			return nil
		}
		desc, err := upm.ReadDescriptor(path)
		if err != nil || desc.Name == "" {
			logger.Debug("skipping descriptor without readable name", "path", path)
			return nil
		}
		if x.Insert(desc.Name, pkg) {
			added++
		}
		return nil
	})
	return added
}
