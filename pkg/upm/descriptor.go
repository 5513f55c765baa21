package upm

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/matzehuels/pkgwarden/pkg/errors"
)

const (
	// DescriptorExt is the module descriptor file extension.
	DescriptorExt = ".asmdef"

	// OpaquePrefix marks references that point at a descriptor by asset GUID
	// instead of by name. They cannot be resolved through the module index.
	OpaquePrefix = "GUID:"
)

// Descriptor is a module descriptor: a compiled unit's name and its references.
type Descriptor struct {
	Name        string
	References  []string // Named references, in document order
	Opaque      []string // GUID references, excluded from resolution
	Precompiled []string // Binary-linked assemblies, excluded from resolution
}

type descriptorFile struct {
	Name                  string   `json:"name"`
	References            []string `json:"references"`
	PrecompiledReferences []string `json:"precompiledReferences"`
}

// ReadDescriptor reads the module descriptor at path.
func ReadDescriptor(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "read descriptor %s", path)
	}
	d, err := ParseDescriptor(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "parse descriptor %s", path)
	}
	return d, nil
}

// ParseDescriptor parses descriptor bytes. Fields with unexpected types are
// ignored rather than rejected.
func ParseDescriptor(data []byte) (*Descriptor, error) {
	data = TrimBOM(data)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "descriptor is not a JSON object")
	}

	var f descriptorFile
	_ = json.Unmarshal(fields["name"], &f.Name)
	_ = json.Unmarshal(fields["references"], &f.References)
	_ = json.Unmarshal(fields["precompiledReferences"], &f.PrecompiledReferences)

	d := &Descriptor{
		Name:        strings.TrimSpace(f.Name),
		Precompiled: f.PrecompiledReferences,
	}
	for _, ref := range f.References {
		ref = strings.TrimSpace(ref)
		switch {
		case ref == "":
		case IsOpaque(ref):
			d.Opaque = append(d.Opaque, ref)
		default:
			d.References = append(d.References, ref)
		}
	}
	return d, nil
}

// IsOpaque reports whether ref is a GUID reference.
func IsOpaque(ref string) bool {
	return strings.HasPrefix(ref, OpaquePrefix)
}
