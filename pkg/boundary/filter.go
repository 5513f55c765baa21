package boundary

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/matzehuels/pkgwarden/pkg/errors"
)

// MetaExt is the sidecar metadata extension. Sidecars are never scanned.
const MetaExt = ".meta"

// Filter is the default [ScanFilter]: an extension allow-list plus
// doublestar exclude globs matched against the asset id.
type Filter struct {
	extensions map[string]bool
	exclude    []string
}

// NewFilter builds a Filter. Extensions are matched case-insensitively.
// An invalid exclude pattern is a configuration error.
func NewFilter(extensions, exclude []string) (*Filter, error) {
	f := &Filter{extensions: make(map[string]bool, len(extensions))}
	for _, ext := range extensions {
		f.extensions[strings.ToLower(ext)] = true
	}
	for _, pattern := range exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, errors.New(errors.ErrCodeConfiguration, "invalid exclude pattern: %q", pattern)
		}
		f.exclude = append(f.exclude, pattern)
	}
	return f, nil
}

// Include implements [ScanFilter].
func (f *Filter) Include(asset string) bool {
	ext := strings.ToLower(path.Ext(asset))
	if ext == MetaExt || !f.extensions[ext] {
		return false
	}
	for _, pattern := range f.exclude {
		if ok, _ := doublestar.Match(pattern, asset); ok {
			return false
		}
	}
	return true
}
