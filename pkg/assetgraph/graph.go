// Package assetgraph provides a standalone asset dependency graph that serves
// as the closure provider for boundary validation outside the host editor.
//
// A [Graph] is either loaded from a project on disk with [Load], which maps
// asset GUIDs from sidecar metadata and follows GUID and shader include
// references, or read from a closure map exported by the host with [ReadJSON].
package assetgraph

import (
	stderrors "errors"
	"sort"
	"strings"

	"github.com/matzehuels/pkgwarden/pkg/errors"
)

var (
	// ErrInvalidNodeID is returned by [Graph.AddNode] for an empty id.
	ErrInvalidNodeID = stderrors.New("asset id must not be empty")

	// ErrDuplicateNodeID is returned by [Graph.AddNode] when the id exists.
	ErrDuplicateNodeID = stderrors.New("duplicate asset id")

	// ErrUnknownSourceNode is returned by [Graph.AddEdge] when the source
	// asset was never added.
	ErrUnknownSourceNode = stderrors.New("unknown source asset")
)

// Node is one asset.
type Node struct {
	ID      string // project-relative asset id, forward slashes
	GUID    string // from the sidecar metadata file, when known
	Path    string // file on disk, empty for assets known only by reference
	Missing bool   // referenced but not present on disk
}

// Graph is a directed asset dependency graph. Cycles are allowed.
// The zero value is not usable; use [New].
type Graph struct {
	nodes    map[string]*Node
	outgoing map[string][]string
	edges    int
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:    make(map[string]*Node),
		outgoing: make(map[string][]string),
	}
}

// AddNode adds an asset.
func (g *Graph) AddNode(n Node) error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	if _, exists := g.nodes[n.ID]; exists {
		return ErrDuplicateNodeID
	}
	node := n
	g.nodes[n.ID] = &node
	return nil
}

// ensure returns the node for id, adding a missing placeholder if needed.
func (g *Graph) ensure(id string) *Node {
	if n, ok := g.nodes[id]; ok {
		return n
	}
	n := &Node{ID: id, Missing: true}
	g.nodes[id] = n
	return n
}

// AddEdge records that from depends on to. The target is added as a missing
// placeholder when unknown. Self-edges and repeated edges are ignored.
func (g *Graph) AddEdge(from, to string) error {
	if _, ok := g.nodes[from]; !ok {
		return ErrUnknownSourceNode
	}
	if to == "" || from == to {
		return nil
	}
	for _, c := range g.outgoing[from] {
		if c == to {
			return nil
		}
	}
	g.ensure(to)
	g.outgoing[from] = append(g.outgoing[from], to)
	g.edges++
	return nil
}

// NodeCount returns the number of assets.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of distinct dependency edges.
func (g *Graph) EdgeCount() int { return g.edges }

// Children returns the direct dependencies of id in insertion order.
func (g *Graph) Children(id string) []string { return g.outgoing[id] }

// Assets returns the ids of assets present on disk under prefix, sorted.
func (g *Graph) Assets(prefix string) ([]string, error) {
	var ids []string
	for id, n := range g.nodes {
		if !n.Missing && strings.HasPrefix(id, prefix) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Closure returns every asset reachable from id, in breadth-first discovery
// order, excluding id itself. An id the graph does not know is a visibility
// mismatch.
func (g *Graph) Closure(id string) ([]string, error) {
	if _, ok := g.nodes[id]; !ok {
		return nil, errors.New(errors.ErrCodeVisibilityMismatch, "asset not found in graph: %s", id)
	}

	seen := map[string]bool{id: true}
	queue := []string{id}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range g.outgoing[cur] {
			if seen[next] {
				continue
			}
			seen[next] = true
			out = append(out, next)
			queue = append(queue, next)
		}
	}
	return out, nil
}
