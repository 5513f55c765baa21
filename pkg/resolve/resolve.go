// Package resolve turns a package's own module references into the set of
// package ids it requires.
//
// Resolution happens in two steps. [Collect] gathers the named references of
// every module descriptor beneath the package root; GUID references are
// opaque and excluded. [MapToPackages] drops builtin platform modules and
// looks the rest up in a module index; misses are reported as skipped, not as
// errors, since they may be local references with no package identity.
//
// When the package has no descriptors, or its descriptors declare no
// references, [ScanSources] runs as a fallback: each source file's raw text is
// tested for the tokens of an injected token -> package id table.
package resolve

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pkgwarden/pkg/errors"
	"github.com/matzehuels/pkgwarden/pkg/index"
	"github.com/matzehuels/pkgwarden/pkg/upm"
)

// Collection is the output of [Collect].
type Collection struct {
	// Names is the sorted union of named references across all descriptors.
	Names []string
	// Defined lists the module names the package itself declares.
	Defined []string
	// HasDescriptors is true iff at least one descriptor file exists.
	HasDescriptors bool
	// Unreadable lists descriptor files that could not be parsed.
	Unreadable []string
}

// Collect reads every module descriptor beneath root.
func Collect(root string) (*Collection, error) {
	names := make(map[string]struct{})
	defined := make(map[string]struct{})
	c := &Collection{}

	err := walkFiles(root, func(path string) {
		if !strings.EqualFold(filepath.Ext(path), upm.DescriptorExt) {
			return
		}
		c.HasDescriptors = true
		d, err := upm.ReadDescriptor(path)
		if err != nil {
			c.Unreadable = append(c.Unreadable, path)
			return
		}
		if d.Name != "" {
			defined[d.Name] = struct{}{}
		}
		for _, ref := range d.References {
			names[ref] = struct{}{}
		}
	})
	if err != nil {
		return nil, err
	}

	c.Names = sortedKeys(names)
	c.Defined = sortedKeys(defined)
	return c, nil
}

// Mapping is the output of [MapToPackages].
type Mapping struct {
	PackageIDs []string // sorted, unique
	Skipped    []string // names with no index entry, in input order
	Local      []string // names owned by the package itself
	Builtin    []string // names discarded as platform modules
}

// MapToPackages resolves module names through idx. Names matching a builtin
// prefix are discarded. Hits owned by self are reported as local rather than
// required, since a package never depends on itself.
func MapToPackages(names []string, idx *index.Index, builtinPrefixes []string, self string) *Mapping {
	ids := make(map[string]struct{})
	m := &Mapping{}
	for _, name := range names {
		if IsBuiltin(name, builtinPrefixes) {
			m.Builtin = append(m.Builtin, name)
			continue
		}
		pkg, ok := idx.Lookup(name)
		switch {
		case !ok:
			m.Skipped = append(m.Skipped, name)
		case pkg == self:
			m.Local = append(m.Local, name)
		default:
			ids[pkg] = struct{}{}
		}
	}
	m.PackageIDs = sortedKeys(ids)
	return m
}

// IsBuiltin reports whether name starts with one of prefixes.
func IsBuiltin(name string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// Match is a heuristic hit: a package implied by a token found in a file.
type Match struct {
	PackageID string
	Token     string
	File      string // first file, in walk order, containing the token
}

// ScanSources tests the raw text of every source file beneath root for the
// tokens in table. Each package id is reported once, with the first evidence
// found. Results are sorted by package id.
func ScanSources(root string, table map[string]string, extensions []string) ([]Match, error) {
	if len(table) == 0 {
		return nil, nil
	}
	tokens := make([]string, 0, len(table))
	for tok := range table {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)

	found := make(map[string]Match)
	err := walkFiles(root, func(path string) {
		if !hasExtension(path, extensions) {
			return
		}
		data, err := readText(path)
		if err != nil {
			return
		}
		for _, tok := range tokens {
			id := table[tok]
			if _, seen := found[id]; seen {
				continue
			}
			if strings.Contains(data, tok) {
				found[id] = Match{PackageID: id, Token: tok, File: path}
			}
		}
	})
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(found))
	for _, id := range sortedKeys(found) {
		matches = append(matches, found[id])
	}
	return matches, nil
}

// Options configures [Resolve].
type Options struct {
	Root             string // package directory on disk
	Self             string // package id of the package being resolved
	Index            *index.Index
	BuiltinPrefixes  []string
	Heuristics       map[string]string
	SourceExtensions []string
	Logger           *log.Logger
}

// Result aggregates both resolution steps and the fallback.
type Result struct {
	Collection
	Mapping
	// FallbackUsed is true when the heuristic scan ran.
	FallbackUsed bool
	// Heuristic holds the fallback's matches.
	Heuristic []Match
}

// Resolve runs collection, index mapping and, when needed, the heuristic
// fallback. The fallback runs when there are no descriptors or when the
// descriptors declare no references at all.
func Resolve(opts Options) (*Result, error) {
	if opts.Root == "" {
		return nil, errors.New(errors.ErrCodeConfiguration, "package root is required")
	}
	if opts.Index == nil {
		return nil, errors.New(errors.ErrCodeConfiguration, "module index is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	col, err := Collect(opts.Root)
	if err != nil {
		return nil, err
	}
	for _, path := range col.Unreadable {
		logger.Warn("unreadable module descriptor", "path", path)
	}

	defined := make(map[string]bool, len(col.Defined))
	for _, name := range col.Defined {
		defined[name] = true
	}
	var external, local []string
	for _, name := range col.Names {
		if defined[name] {
			local = append(local, name)
		} else {
			external = append(external, name)
		}
	}

	mapping := MapToPackages(external, opts.Index, opts.BuiltinPrefixes, opts.Self)
	mapping.Local = append(local, mapping.Local...)

	res := &Result{Collection: *col, Mapping: *mapping}

	if !col.HasDescriptors || len(col.Names) == 0 {
		res.FallbackUsed = true
		matches, err := ScanSources(opts.Root, opts.Heuristics, opts.SourceExtensions)
		if err != nil {
			return nil, err
		}
		ids := make(map[string]struct{}, len(res.PackageIDs)+len(matches))
		for _, id := range res.PackageIDs {
			ids[id] = struct{}{}
		}
		for _, m := range matches {
			if m.PackageID == opts.Self {
				continue
			}
			res.Heuristic = append(res.Heuristic, m)
			ids[m.PackageID] = struct{}{}
			logger.Debug("heuristic match", "package", m.PackageID, "token", m.Token, "file", m.File)
		}
		res.PackageIDs = sortedKeys(ids)
	}

	logger.Debug("resolved references",
		"references", len(col.Names),
		"packages", len(res.PackageIDs),
		"skipped", len(res.Skipped),
		"fallback", res.FallbackUsed)
	return res, nil
}
