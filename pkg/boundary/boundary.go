// Package boundary checks that a package's assets only depend on content the
// package is allowed to reach.
//
// [Validate] enumerates every scannable asset under the package root, asks a
// [ClosureProvider] for its transitive dependencies, and classifies each
// dependency other than the asset itself:
//
//   - outside both the project-local and installed-package namespaces:
//     non-portable
//   - inside the project-local namespace: forbidden, a package must never
//     depend on unpackaged project content
//   - inside the installed-package namespace but under no allowed root:
//     undeclared, with a suggested fix naming the owning package
//
// Allowed roots are the package's own root and the root of every declared
// dependency, each ending in a separator so "Packages/com.foo/" never admits
// "Packages/com.foobar/".
package boundary

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pkgwarden/pkg/errors"
	"github.com/matzehuels/pkgwarden/pkg/upm"
)

// Reasons attached to issues.
const (
	ReasonNonPortable = "non-portable path"
	ReasonForbidden   = "forbidden project-local"
	ReasonUndeclared  = "undeclared package dependency"
)

// Status is the terminal state of a validation run.
type Status string

const (
	StatusPassed   Status = "passed"
	StatusFailed   Status = "failed"
	StatusNoAssets Status = "no-assets"
	StatusError    Status = "error"
)

// AssetEnumerator lists the asset ids under a namespace prefix.
type AssetEnumerator interface {
	Assets(prefix string) ([]string, error)
}

// ClosureProvider returns the transitive dependencies of an asset.
type ClosureProvider interface {
	Closure(asset string) ([]string, error)
}

// ScanFilter selects the assets whose closures are validated.
type ScanFilter interface {
	Include(asset string) bool
}

// Issue is one disallowed dependency edge.
type Issue struct {
	Owner      string `json:"owner"`
	Dependency string `json:"dependency"`
	Reason     string `json:"reason"`
	Fix        string `json:"fix,omitempty"`
}

// Result is the outcome of a validation run.
type Result struct {
	Status              Status   `json:"status"`
	Issues              []Issue  `json:"issues"`
	ScannedAssets       int      `json:"scannedAssets"`
	ScannedDependencies int      `json:"scannedDependencies"`
	AllowedRoots        []string `json:"allowedRoots"`
	Tip                 string   `json:"tip,omitempty"`
}

// Passed reports whether at least one asset was scanned and no issue found.
func (r *Result) Passed() bool {
	return r.ScannedAssets > 0 && len(r.Issues) == 0
}

// Options configures [Validate].
type Options struct {
	// Self is the id of the package under validation.
	Self string
	// Root is the asset namespace enumerated for owned assets. Defaults to
	// the root of Self.
	Root string
	// Declared lists the package's declared dependency ids.
	Declared []string

	Assets  AssetEnumerator
	Closure ClosureProvider
	Filter  ScanFilter

	// Namespaces holds the local and package prefixes; empty prefixes
	// default to "Assets/" and "Packages/".
	Namespaces upm.Namespaces

	Logger *log.Logger
}

// Validate runs one boundary validation. Configuration problems (no allowed
// roots, no root, missing collaborators) are returned as errors. Zero
// scannable assets is reported as [StatusNoAssets] rather than a pass.
func Validate(opts Options) (*Result, error) {
	ns := opts.Namespaces.WithDefaults()
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	allowed := allowedRoots(opts.Self, opts.Declared, ns)
	if len(allowed) == 0 {
		return nil, errors.New(errors.ErrCodeConfiguration, "allow-list is empty: package has no name and no declared dependencies")
	}
	root := opts.Root
	if root == "" {
		if opts.Self == "" {
			return nil, errors.New(errors.ErrCodeConfiguration, "package root is required when the package has no name")
		}
		root = ns.Root(opts.Self)
	}
	if opts.Assets == nil || opts.Closure == nil {
		return nil, errors.New(errors.ErrCodeConfiguration, "asset enumerator and closure provider are required")
	}

	all, err := opts.Assets.Assets(root)
	if err != nil {
		return nil, err
	}
	owned := make([]string, 0, len(all))
	for _, a := range all {
		if opts.Filter == nil || opts.Filter.Include(a) {
			owned = append(owned, a)
		}
	}
	sort.Strings(owned)

	res := &Result{Issues: []Issue{}, AllowedRoots: allowed}
	if len(owned) == 0 {
		res.Status = StatusNoAssets
		res.Tip = fmt.Sprintf("no scannable assets under %s; check the package root and scan extensions", root)
		return res, nil
	}

	seen := make(map[Issue]struct{})
	for _, owner := range owned {
		closure, err := opts.Closure.Closure(owner)
		if err != nil {
			return nil, err
		}
		res.ScannedAssets++
		for _, dep := range closure {
			if dep == owner {
				continue
			}
			res.ScannedDependencies++

			reason, fix, ok := classify(dep, allowed, ns)
			if ok {
				continue
			}
			key := Issue{Owner: owner, Dependency: dep, Reason: reason}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			key.Fix = fix
			res.Issues = append(res.Issues, key)
			logger.Debug("boundary issue", "owner", owner, "dependency", dep, "reason", reason)
		}
	}

	res.Status = StatusPassed
	if !res.Passed() {
		res.Status = StatusFailed
	}
	return res, nil
}

// classify returns ok for an allowed dependency and the reason and fix text
// otherwise.
func classify(dep string, allowed []string, ns upm.Namespaces) (reason, fix string, ok bool) {
	switch {
	case ns.IsLocal(dep):
		return ReasonForbidden, fmt.Sprintf("move %s into the package or into a declared dependency", dep), false
	case !ns.Contains(dep):
		return ReasonNonPortable, fmt.Sprintf("reference only assets under %s or %s", ns.Local, ns.Packages), false
	}
	for _, root := range allowed {
		if strings.HasPrefix(dep, root) {
			return "", "", true
		}
	}
	if id, ok := ns.OwnerOf(dep); ok {
		return ReasonUndeclared, fmt.Sprintf("add %q to dependencies (%s)", id, ns.Root(id)), false
	}
	return ReasonUndeclared, "", false
}

func allowedRoots(self string, declared []string, ns upm.Namespaces) []string {
	var roots []string
	seen := make(map[string]bool)
	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		roots = append(roots, ns.Root(id))
	}
	add(self)
	for _, id := range declared {
		add(id)
	}
	return roots
}
