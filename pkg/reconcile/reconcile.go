// Package reconcile merges required package ids into a package manifest's
// dependency block.
//
// Merging is additive: missing ids are added, present ids are updated only
// when the authoritative version source names a different version, and no
// entry is ever removed. When anything changes, only the dependency block is
// re-serialized (keys in byte-wise order) and spliced back into the document;
// every other byte of the manifest is left as it was. A block that did not
// exist is inserted before the anchor field, or before the closing brace of
// the document when the anchor is absent.
package reconcile

import (
	"fmt"
	"os"
	"sort"

	"github.com/Masterminds/semver/v3"

	"github.com/matzehuels/pkgwarden/pkg/errors"
	"github.com/matzehuels/pkgwarden/pkg/upm"
)

// VersionSource names where an added or updated version came from.
type VersionSource string

const (
	SourceAuthoritative VersionSource = "authoritative"
	SourceFallback      VersionSource = "fallback"
	SourcePlaceholder   VersionSource = "placeholder"
)

// Change is one added or updated dependency record.
type Change struct {
	ID     string        `json:"id"`
	From   string        `json:"from,omitempty"`
	To     string        `json:"to"`
	Source VersionSource `json:"source"`
}

// String renders additions as "id@version" and updates as "id: old -> new".
func (c Change) String() string {
	if c.From == "" {
		return c.ID + "@" + c.To
	}
	return fmt.Sprintf("%s: %s -> %s", c.ID, c.From, c.To)
}

// SyncReport is the outcome of one dependency synthesis run.
type SyncReport struct {
	Required []string `json:"required"` // module names referenced by the package
	Resolved []string `json:"resolved"` // package ids required by the package
	Added    []Change `json:"added"`
	Updated  []Change `json:"updated"`
	Skipped  []string `json:"skipped"`           // module names with no owning package
	Invalid  []string `json:"invalid,omitempty"` // required ids that are not valid package ids
	Local    []string `json:"local"`             // module names owned by the package itself
	Notes    []string `json:"notes"`
	Changed  bool     `json:"changed"`
}

// Notef appends a formatted note.
func (r *SyncReport) Notef(format string, args ...any) {
	r.Notes = append(r.Notes, fmt.Sprintf(format, args...))
}

// Options configures [Merge].
type Options struct {
	// AnchorField is the top-level field a new dependency block is inserted
	// before. Empty disables anchoring.
	AnchorField string
	// Placeholder is the version used when no source knows the id.
	Placeholder string
	// DryRun computes the report without writing the manifest.
	DryRun bool
}

// DefaultPlaceholder is used when Options.Placeholder is empty.
const DefaultPlaceholder = "1.0.0"

// Merge reconciles the manifest at path with the required package ids and
// writes it back when something changed. The manifest must exist; read,
// parse and write failures are returned and leave the file untouched.
func Merge(path string, required []string, authoritative, fallback map[string]string, opts Options) (bool, *SyncReport, error) {
	doc, err := os.ReadFile(path)
	if err != nil {
		return false, nil, errors.Wrap(errors.ErrCodeConfiguration, err, "read manifest %s", path)
	}

	out, report, err := MergeBytes(doc, required, authoritative, fallback, opts)
	if err != nil {
		return false, nil, errors.Wrap(errors.GetCode(err), err, "merge %s", path)
	}
	if !report.Changed || opts.DryRun {
		return report.Changed, report, nil
	}

	if err := writeFileAtomic(path, out); err != nil {
		return false, nil, errors.Wrap(errors.ErrCodeConfiguration, err, "write manifest %s", path)
	}
	return true, report, nil
}

// MergeBytes is the in-memory form of [Merge]. When nothing changes the input
// is returned unmodified, including any byte-order mark.
func MergeBytes(doc []byte, required []string, authoritative, fallback map[string]string, opts Options) ([]byte, *SyncReport, error) {
	if opts.Placeholder == "" {
		opts.Placeholder = DefaultPlaceholder
	}
	body := upm.TrimBOM(doc)

	members, closing, err := upm.Members(body)
	if err != nil {
		return nil, nil, err
	}
	block, hasBlock, err := upm.LocateObject(body, upm.DependenciesField)
	if err != nil {
		return nil, nil, err
	}

	working := make(map[string]string)
	if hasBlock {
		for _, e := range block.Entries {
			working[e.Key] = e.Value
		}
	}

	ids := uniqueSorted(required)
	report := &SyncReport{Resolved: ids}

	for _, id := range ids {
		current, present := working[id]
		if !present {
			if err := errors.ValidatePackageID(id); err != nil {
				report.Invalid = append(report.Invalid, id)
				report.Notef("%s: not added, %s", id, errors.UserMessage(err))
				continue
			}
		}
		if !present {
			version, source := pickVersion(id, authoritative, fallback, opts.Placeholder)
			working[id] = version
			report.Added = append(report.Added, Change{ID: id, To: version, Source: source})
			if source == SourcePlaceholder {
				report.Notef("%s: no known version, using placeholder %s", id, version)
			}
			continue
		}

		auth, ok := authoritative[id]
		if !ok || auth == "" || auth == current {
			continue
		}
		working[id] = auth
		report.Updated = append(report.Updated, Change{ID: id, From: current, To: auth, Source: SourceAuthoritative})
		if isDowngrade(current, auth) {
			report.Notef("%s: authoritative version %s is lower than declared %s", id, auth, current)
		}
	}

	if len(report.Added) == 0 && len(report.Updated) == 0 {
		return doc, report, nil
	}

	var out []byte
	l := detectLayout(body, members, block)
	rendered := renderBlock(working, l)
	if hasBlock {
		out = splice(body, block.Start, block.End, rendered)
	} else if null, ok := lastMember(members, upm.DependenciesField); ok {
		// A null block is replaced where it stands.
		out = splice(body, null.ValueStart, null.ValueEnd, rendered)
	} else {
		out = insertBlock(body, members, closing, rendered, opts.AnchorField, l)
	}

	if !jsonValid(out) {
		return nil, nil, errors.New(errors.ErrCodeParse, "merged manifest is not valid JSON")
	}
	report.Changed = true
	return out, report, nil
}

func pickVersion(id string, authoritative, fallback map[string]string, placeholder string) (string, VersionSource) {
	if v := authoritative[id]; v != "" {
		return v, SourceAuthoritative
	}
	if v := fallback[id]; v != "" {
		return v, SourceFallback
	}
	return placeholder, SourcePlaceholder
}

// isDowngrade reports whether to is a strictly lower semantic version than
// from. Versions that do not parse are never treated as a downgrade.
func isDowngrade(from, to string) bool {
	a, err := semver.NewVersion(from)
	if err != nil {
		return false
	}
	b, err := semver.NewVersion(to)
	if err != nil {
		return false
	}
	return b.LessThan(a)
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
