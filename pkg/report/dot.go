package report

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/pkgwarden/pkg/boundary"
	"github.com/matzehuels/pkgwarden/pkg/upm"
)

// ClusterNonPortable groups dependencies outside both asset namespaces.
// Project-local dependencies are grouped under "project (<local prefix>)".
const ClusterNonPortable = "non-portable"


var reasonColors = map[string]string{
	boundary.ReasonForbidden:   "firebrick",
	boundary.ReasonUndeclared:  "darkorange",
	boundary.ReasonNonPortable: "purple",
}

// ToDOT converts the issues of a validation report to Graphviz DOT. Assets
// are grouped into one cluster per owning package; dependencies outside the
// package namespace go to the project or non-portable cluster. Each edge is
// colored by its reason. Output is deterministic for a given report.
func ToDOT(v *Validation, ns upm.Namespaces) string {
	ns = ns.WithDefaults()
	clusters := make(map[string][]string)
	seen := make(map[string]bool)
	add := func(asset string) {
		if seen[asset] {
			return
		}
		seen[asset] = true
		c := clusterOf(ns, asset)
		clusters[c] = append(clusters[c], asset)
	}
	for _, is := range v.Issues {
		add(is.Owner)
		add(is.Dependency)
	}

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=12];\n")
	if v.Package != "" {
		fmt.Fprintf(&buf, "  label=%q;\n  labelloc=t;\n", v.Package+" ("+string(v.Status)+")")
	}

	names := make([]string, 0, len(clusters))
	for c := range clusters {
		names = append(names, c)
	}
	slices.Sort(names)
	for i, c := range names {
		assets := clusters[c]
		slices.Sort(assets)
		fmt.Fprintf(&buf, "\n  subgraph cluster_%d {\n", i)
		fmt.Fprintf(&buf, "    label=%q;\n", c)
		if c == v.Package {
			buf.WriteString("    style=filled;\n    fillcolor=\"#eef5ff\";\n")
		}
		for _, a := range assets {
			fmt.Fprintf(&buf, "    %q [label=%q];\n", a, shortLabel(ns, a))
		}
		buf.WriteString("  }\n")
	}

	buf.WriteString("\n")
	for _, is := range v.Issues {
		color := reasonColors[is.Reason]
		if color == "" {
			color = "black"
		}
		fmt.Fprintf(&buf, "  %q -> %q [color=%s, tooltip=%q];\n", is.Owner, is.Dependency, color, is.Reason)
	}
	buf.WriteString("}\n")
	return buf.String()
}

func clusterOf(ns upm.Namespaces, asset string) string {
	if id, ok := ns.OwnerOf(asset); ok {
		return id
	}
	if ns.IsLocal(asset) {
		return "project (" + ns.Local + ")"
	}
	return ClusterNonPortable
}

// shortLabel drops the namespace root from an asset id.
func shortLabel(ns upm.Namespaces, asset string) string {
	if id, ok := ns.OwnerOf(asset); ok {
		return strings.TrimPrefix(asset, ns.Root(id))
	}
	if rest, ok := strings.CutPrefix(asset, ns.Local); ok {
		return rest
	}
	return asset
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox rewrites the root element so the diagram scales with its
// container instead of using Graphviz's point dimensions.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}
	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}
	tag := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`, w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(tag))
}
