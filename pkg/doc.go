// Package pkg provides the libraries behind pkgwarden.
//
// # Overview
//
// pkgwarden keeps packages embedded in a host project self-contained. It
// answers two questions about a package:
//
//  1. Does every asset reach only content the package may depend on?
//  2. Does package.json declare every package its modules reference?
//
// # Architecture
//
// Boundary validation:
//
//	project on disk / host closure map
//	         ↓
//	    [assetgraph] asset ids, GUIDs and reference edges
//	         ↓
//	    [boundary] classify each dependency of each owned asset
//	         ↓
//	    [report] JSON, DOT, SVG
//
// Dependency synthesis:
//
//	install locations
//	         ↓
//	    [index] module name -> package id
//	         ↓
//	    [resolve] module references -> required package ids
//	         ↓
//	    [reconcile] additive, layout-preserving manifest merge
//
// [pipeline] runs both flows; [upm] reads manifests and descriptors;
// [config] holds the injected tables; [vcs] runs git for releases.
package pkg
