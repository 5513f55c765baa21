package assetgraph

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	ignore "github.com/sabhiram/go-gitignore"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/pkgwarden/pkg/cache"
	"github.com/matzehuels/pkgwarden/pkg/errors"
	"github.com/matzehuels/pkgwarden/pkg/observability"
	"github.com/matzehuels/pkgwarden/pkg/upm"
)

// parserRevision is part of every cache key; bump it when reference
// extraction changes.
const parserRevision = "refs-v1"

const metaExt = ".meta"

// cacheKeyType labels asset parse results in cache hooks.
const cacheKeyType = "asset"

// DefaultTextExtensions are the assets whose text is scanned for references.
var DefaultTextExtensions = []string{
	".prefab", ".unity", ".asset", ".mat", ".controller", ".overrideController",
	".anim", ".playable", ".mixer", ".spriteatlas", ".terrainlayer",
	".physicMaterial", ".shadergraph", ".shadersubgraph", ".vfx", ".lighting",
	".shader", ".hlsl", ".cginc", ".compute",
}

var shaderExtensions = map[string]bool{
	".shader": true, ".hlsl": true, ".cginc": true, ".compute": true,
}

var (
	guidPattern    = regexp.MustCompile(`guid["\\]*:\s*["\\]*([0-9a-fA-F]{32})`)
	includePattern = regexp.MustCompile(`(?m)^\s*#include(?:_with_pragmas)?\s+"([^"]+)"`)
)

// LoadOptions configures [Load].
type LoadOptions struct {
	// PackageDirs are the install locations mapped into the package
	// namespace, in precedence order. Defaults to Packages and
	// Library/PackageCache under the project.
	PackageDirs []string
	// Namespaces are the asset id prefixes for the project's Assets folder
	// and for installed packages. Empty prefixes take the defaults.
	Namespaces upm.Namespaces
	// Ignore holds gitignore-style lines, matched against project-relative
	// paths, that prune the walk.
	Ignore []string
	// TextExtensions overrides [DefaultTextExtensions].
	TextExtensions []string
	// Cache stores per-file reference lists. Nil disables caching.
	Cache  cache.Cache
	Logger *log.Logger
}

// Stats summarizes a load.
type Stats struct {
	Files      int // assets added to the graph
	Parsed     int // text assets read from disk
	CacheHits  int // text assets served from cache
	Unresolved int // GUID references with no known asset
}

// refs is the cached parse result of one text asset.
type refs struct {
	GUIDs    []string `json:"guids,omitempty"`
	Includes []string `json:"includes,omitempty"`
}

type file struct {
	id   string
	path string
	info fs.FileInfo
}

// Load builds the asset graph of the project at projectDir.
//
// Files in the Assets folder are mapped into the local namespace. Each package
// directory in the install locations is mapped to the package root of its
// manifest name; the first location providing a name wins. GUIDs are read
// from sidecar ".meta" files. Text assets contribute an edge for every GUID
// they reference, and shader sources an edge for every #include.
func Load(ctx context.Context, projectDir string, opts LoadOptions) (*Graph, *Stats, error) {
	if info, err := os.Stat(projectDir); err != nil || !info.IsDir() {
		return nil, nil, errors.New(errors.ErrCodeConfiguration, "project directory not found: %s", projectDir)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	store := opts.Cache
	if store == nil {
		store = cache.NewNullCache()
	}
	if opts.PackageDirs == nil {
		opts.PackageDirs = []string{
			filepath.Join(projectDir, "Packages"),
			filepath.Join(projectDir, "Library", "PackageCache"),
		}
	}
	textExts := opts.TextExtensions
	if textExts == nil {
		textExts = DefaultTextExtensions
	}
	isText := make(map[string]bool, len(textExts))
	for _, ext := range textExts {
		isText[strings.ToLower(ext)] = true
	}

	ns := opts.Namespaces.WithDefaults()
	l := &loader{
		projectDir: projectDir,
		matcher:    ignore.CompileIgnoreLines(opts.Ignore...),
		logger:     logger,
		guids:      make(map[string]string),
		guidOf:     make(map[string]string),
	}

	roots := []struct{ dir, prefix string }{{filepath.Join(projectDir, "Assets"), ns.Local}}
	mapped := make(map[string]bool)
	for _, loc := range opts.PackageDirs {
		entries, err := os.ReadDir(loc)
		if err != nil {
			logger.Debug("skipping package location", "path", loc, "err", err)
			continue
		}
		for _, e := range entries {
			dir := filepath.Join(loc, e.Name())
			if !e.IsDir() || !upm.IsPackageDir(dir) {
				continue
			}
			m, err := upm.ReadManifestDir(dir)
			if err != nil || m.Name == "" || mapped[m.Name] {
				continue
			}
			mapped[m.Name] = true
			roots = append(roots, struct{ dir, prefix string }{dir, ns.Root(m.Name)})
		}
	}

	for _, r := range roots {
		if err := l.walk(ctx, r.dir, r.prefix); err != nil {
			return nil, nil, err
		}
	}

	g := New()
	stats := &Stats{Files: len(l.files)}
	for _, f := range l.files {
		n := Node{ID: f.id, Path: f.path, GUID: l.guidOf[f.id]}
		if err := g.AddNode(n); err != nil {
			logger.Debug("duplicate asset id", "id", f.id, "path", f.path)
		}
	}

	for _, f := range l.files {
		ext := strings.ToLower(path.Ext(f.id))
		if !isText[ext] {
			continue
		}
		r, hit, err := l.references(ctx, store, f, shaderExtensions[ext])
		if err != nil {
			logger.Debug("unreadable asset", "path", f.path, "err", err)
			continue
		}
		if hit {
			stats.CacheHits++
		} else {
			stats.Parsed++
		}
		for _, guid := range r.GUIDs {
			target, ok := l.guids[guid]
			if !ok {
				stats.Unresolved++
				continue
			}
			_ = g.AddEdge(f.id, target)
		}
		for _, inc := range r.Includes {
			_ = g.AddEdge(f.id, resolveInclude(ns, f.id, inc))
		}
	}

	logger.Debug("loaded asset graph",
		"assets", g.NodeCount(),
		"edges", g.EdgeCount(),
		"parsed", stats.Parsed,
		"cached", stats.CacheHits,
		"unresolved", stats.Unresolved)
	return g, stats, nil
}

type loader struct {
	projectDir string
	matcher    *ignore.GitIgnore
	logger     *log.Logger

	files  []file
	guids  map[string]string // guid -> asset id
	guidOf map[string]string // asset id -> guid
}

// walk records every asset under dir as prefix + relative path, skipping
// names outside the asset database.
func (l *loader) walk(ctx context.Context, dir, prefix string) error {
	if _, err := os.Stat(dir); err != nil {
		return nil
	}
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p == dir {
			return nil
		}

		if rel, err := filepath.Rel(l.projectDir, p); err == nil {
			rel = filepath.ToSlash(rel)
			if d.IsDir() {
				rel += "/"
			}
			if l.matcher.MatchesPath(rel) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}

		name := d.Name()
		if upm.Ignored(name) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return nil
		}
		id := prefix + filepath.ToSlash(rel)

		if strings.EqualFold(filepath.Ext(name), metaExt) {
			asset := strings.TrimSuffix(id, filepath.Ext(name))
			if guid, ok := readMetaGUID(p); ok {
				l.guids[guid] = asset
				l.guidOf[asset] = guid
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		l.files = append(l.files, file{id: id, path: p, info: info})
		return nil
	})
}

func (l *loader) references(ctx context.Context, store cache.Cache, f file, shader bool) (*refs, bool, error) {
	key := cache.AssetKey(parserRevision, f.path, f.info.Size(), f.info.ModTime())
	if data, ok, err := store.Get(ctx, key); err == nil && ok {
		var r refs
		if json.Unmarshal(data, &r) == nil {
			observability.Cache().OnCacheHit(ctx, cacheKeyType)
			return &r, true, nil
		}
	}
	observability.Cache().OnCacheMiss(ctx, cacheKeyType)

	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, false, err
	}
	r := extractRefs(data, shader)
	if encoded, err := json.Marshal(r); err == nil {
		if err := store.Set(ctx, key, encoded, 0); err != nil {
			l.logger.Debug("cache write failed", "path", f.path, "err", err)
		} else {
			observability.Cache().OnCacheSet(ctx, cacheKeyType, len(encoded))
		}
	}
	return r, false, nil
}

// extractRefs returns the unique GUIDs and include paths in data, in order of
// first appearance.
func extractRefs(data []byte, shader bool) *refs {
	r := &refs{}
	seen := make(map[string]bool)
	for _, m := range guidPattern.FindAllSubmatch(data, -1) {
		guid := strings.ToLower(string(m[1]))
		if !seen[guid] {
			seen[guid] = true
			r.GUIDs = append(r.GUIDs, guid)
		}
	}
	if shader {
		for _, m := range includePattern.FindAllSubmatch(data, -1) {
			inc := string(m[1])
			if !seen["#"+inc] {
				seen["#"+inc] = true
				r.Includes = append(r.Includes, inc)
			}
		}
	}
	return r
}

// resolveInclude maps an include path to an asset id. Paths rooted in an asset
// namespace are kept; others are relative to the including file.
func resolveInclude(ns upm.Namespaces, from, inc string) string {
	inc = strings.ReplaceAll(inc, `\`, "/")
	if ns.Contains(inc) {
		return path.Clean(inc)
	}
	return path.Join(path.Dir(from), inc)
}

type metaFile struct {
	GUID string `yaml:"guid"`
}

func readMetaGUID(p string) (string, bool) {
	data, err := os.ReadFile(p)
	if err != nil {
		return "", false
	}
	var m metaFile
	if err := yaml.Unmarshal(data, &m); err != nil || len(m.GUID) != 32 {
		return "", false
	}
	return strings.ToLower(m.GUID), true
}
