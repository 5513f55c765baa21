package upm

import "strings"

const (
	// PackagesPrefix is the asset namespace of installed packages.
	PackagesPrefix = "Packages/"

	// AssetsPrefix is the asset namespace of project-local content.
	AssetsPrefix = "Assets/"
)

// Namespaces names the two asset namespaces of a host project. Both prefixes
// end in "/".
type Namespaces struct {
	Local    string // project-local content, "Assets/" by default
	Packages string // installed packages, "Packages/" by default
}

// DefaultNamespaces returns the editor's standard namespaces.
func DefaultNamespaces() Namespaces {
	return Namespaces{Local: AssetsPrefix, Packages: PackagesPrefix}
}

// WithDefaults fills empty prefixes with the standard ones.
func (n Namespaces) WithDefaults() Namespaces {
	if n.Local == "" {
		n.Local = AssetsPrefix
	}
	if n.Packages == "" {
		n.Packages = PackagesPrefix
	}
	return n
}

// Root returns the asset-namespace root of a package: "<Packages><id>/".
// The trailing separator keeps "com.foo" from matching "com.foobar".
func (n Namespaces) Root(id string) string {
	return n.Packages + id + "/"
}

// OwnerOf returns the package id owning an asset in the package namespace.
func (n Namespaces) OwnerOf(asset string) (string, bool) {
	rest, ok := strings.CutPrefix(asset, n.Packages)
	if !ok {
		return "", false
	}
	id, _, found := strings.Cut(rest, "/")
	if !found || id == "" {
		return "", false
	}
	return id, true
}

// IsLocal reports whether asset is project-local content.
func (n Namespaces) IsLocal(asset string) bool {
	return strings.HasPrefix(asset, n.Local)
}

// Contains reports whether asset lies in either namespace.
func (n Namespaces) Contains(asset string) bool {
	return n.IsLocal(asset) || strings.HasPrefix(asset, n.Packages)
}

// Ignored reports whether a file or directory name is outside the asset
// database: hidden names and names ending in "~" are never imported, so
// nothing under them is compiled or referenced.
func Ignored(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~")
}
