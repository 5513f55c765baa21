// Package upm reads the documents that describe an installed package: the
// package manifest (package.json), module descriptors (*.asmdef) and the host
// project's version files (Packages/manifest.json, Packages/packages-lock.json).
//
// Field access is best-effort: absent fields yield zero values, and only a
// document that is missing or not valid JSON is an error. The byte-span helpers
// [Members], [LocateObject] and [LocateKey] report exact offsets into the
// original document so that callers can splice in edits without re-serializing
// unrelated fields.
//
// # Asset namespaces
//
// Asset identifiers are project-relative, forward-slash paths. Installed
// packages live under "Packages/<id>/" regardless of where they are stored on
// disk, and project-local content lives under "Assets/". Both prefixes are
// configurable; [Namespaces.Root] and [Namespaces.OwnerOf] convert between
// package ids and asset ids for a given pair of prefixes.
package upm
