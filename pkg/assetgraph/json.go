package assetgraph

import (
	"encoding/json"
	"io"
	"os"
	"sort"

	"github.com/matzehuels/pkgwarden/pkg/errors"
)

// ReadJSON reads a closure map exported by the host editor:
//
//	{"Packages/com.a.b/X.prefab": ["Packages/com.a.b/Y.mat", "Assets/Z.png"]}
//
// Each key becomes an asset present on disk and each listed dependency an
// edge from it. Keys are added in sorted order; dependency order is kept.
func ReadJSON(r io.Reader) (*Graph, error) {
	var closures map[string][]string
	if err := json.NewDecoder(r).Decode(&closures); err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "decode closure map")
	}

	owners := make([]string, 0, len(closures))
	for id := range closures {
		if err := errors.ValidateAssetID(id); err != nil {
			return nil, err
		}
		owners = append(owners, id)
	}
	sort.Strings(owners)

	g := New()
	for _, id := range owners {
		if err := g.AddNode(Node{ID: id}); err != nil {
			return nil, errors.Wrap(errors.ErrCodeParse, err, "asset %s", id)
		}
	}
	for _, id := range owners {
		for _, dep := range closures[id] {
			if err := g.AddEdge(id, dep); err != nil {
				return nil, errors.Wrap(errors.ErrCodeParse, err, "edge %s -> %s", id, dep)
			}
		}
	}
	return g, nil
}

// ReadJSONFile reads a closure map from path.
func ReadJSONFile(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "open closure map %s", path)
	}
	defer f.Close()
	return ReadJSON(f)
}
