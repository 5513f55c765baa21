// Package config loads pkgwarden's injected lookup tables from pkgwarden.toml.
//
// Every table the analyzers consult (builtin module prefixes, heuristic source
// tokens, fallback versions, scan extensions) is configuration data rather than
// a compiled-in constant. [Default] returns the tables used when no file is
// present; keys set in a file replace the corresponding default wholesale, so
// an explicitly empty list disables a table.
//
// # Example
//
//	[resolve]
//	builtin_prefixes = ["UnityEngine", "UnityEditor", "System"]
//
//	[resolve.heuristics]
//	"TMPro" = "com.unity.textmeshpro"
//
//	[versions]
//	placeholder = "1.0.0"
//
//	[versions.fallback]
//	"com.unity.textmeshpro" = "3.0.6"
package config

import (
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/pkgwarden/pkg/errors"
	"github.com/matzehuels/pkgwarden/pkg/upm"
)

// FileName is the configuration file looked up in the project directory.
const FileName = "pkgwarden.toml"

// Config holds all injected tables.
type Config struct {
	Project  Project  `toml:"project"`
	Resolve  Resolve  `toml:"resolve"`
	Versions Versions `toml:"versions"`
	Manifest Manifest `toml:"manifest"`
	Scan     Scan     `toml:"scan"`
}

// Project describes the host project layout.
type Project struct {
	// InstallLocations are scanned in order when building the module index.
	// Relative paths are resolved against the project directory.
	InstallLocations []string `toml:"install_locations"`
	// LocalPrefix is the asset namespace of project-local content.
	LocalPrefix string `toml:"local_prefix"`
	// PackagePrefix is the asset namespace of installed packages.
	PackagePrefix string `toml:"package_prefix"`
}

// Resolve configures reference resolution.
type Resolve struct {
	// BuiltinPrefixes are module name prefixes owned by the platform runtime.
	BuiltinPrefixes []string `toml:"builtin_prefixes"`
	// Heuristics maps a source token to the package it implies.
	Heuristics map[string]string `toml:"heuristics"`
	// SourceExtensions selects files for the heuristic scan.
	SourceExtensions []string `toml:"source_extensions"`
}

// Versions configures version selection for added dependencies.
type Versions struct {
	Fallback    map[string]string `toml:"fallback"`
	Placeholder string            `toml:"placeholder"`
}

// Manifest configures manifest editing.
type Manifest struct {
	// AnchorField is the field a new dependency block is inserted before.
	AnchorField string `toml:"anchor_field"`
}

// Scan configures boundary validation.
type Scan struct {
	// Extensions lists the asset extensions whose closures are validated.
	Extensions []string `toml:"extensions"`
	// Exclude holds doublestar globs of asset ids skipped by the scan.
	Exclude []string `toml:"exclude"`
	// Ignore holds gitignore-style lines pruning the asset graph walk.
	Ignore []string `toml:"ignore"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Project: Project{
			InstallLocations: []string{"Packages", "Library/PackageCache"},
			LocalPrefix:      upm.AssetsPrefix,
			PackagePrefix:    upm.PackagesPrefix,
		},
		Resolve: Resolve{
			BuiltinPrefixes: []string{
				"UnityEngine",
				"UnityEditor",
				"System",
				"Microsoft.",
				"mscorlib",
				"netstandard",
				"Mono.",
				"nunit.framework",
			},
			Heuristics: map[string]string{
				"TMPro":                           "com.unity.textmeshpro",
				"Cinemachine":                     "com.unity.cinemachine",
				"UnityEngine.InputSystem":         "com.unity.inputsystem",
				"UnityEngine.Rendering.Universal": "com.unity.render-pipelines.universal",
				"UnityEngine.AddressableAssets":   "com.unity.addressables",
				"UnityEngine.Timeline":            "com.unity.timeline",
				"Unity.Mathematics":               "com.unity.mathematics",
				"Unity.Collections":               "com.unity.collections",
				"Unity.Netcode":                   "com.unity.netcode.gameobjects",
				"Newtonsoft.Json":                 "com.unity.nuget.newtonsoft-json",
			},
			SourceExtensions: []string{".cs"},
		},
		Versions: Versions{
			Fallback: map[string]string{
				"com.unity.textmeshpro":                "3.0.6",
				"com.unity.cinemachine":                "2.9.7",
				"com.unity.inputsystem":                "1.7.0",
				"com.unity.render-pipelines.universal": "14.0.9",
				"com.unity.addressables":               "1.21.19",
				"com.unity.timeline":                   "1.7.6",
				"com.unity.mathematics":                "1.2.6",
				"com.unity.collections":                "2.1.4",
				"com.unity.netcode.gameobjects":        "1.7.1",
				"com.unity.nuget.newtonsoft-json":      "3.2.1",
			},
			Placeholder: "1.0.0",
		},
		Manifest: Manifest{
			AnchorField: "keywords",
		},
		Scan: Scan{
			Extensions: []string{
				".prefab", ".unity", ".asset", ".mat", ".shader", ".shadergraph",
				".controller", ".overrideController", ".anim", ".playable",
				".physicMaterial", ".mixer", ".spriteatlas", ".terrainlayer",
			},
			Exclude: nil,
			Ignore:  []string{".git/", "Library/ScriptAssemblies/", "Temp/", "Logs/"},
		},
	}
}

// Load reads path and overlays it on the defaults. Keys absent from the file
// keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()

	var file Config
	md, err := toml.DecodeFile(path, &file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "config file not found: %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeParse, err, "parse config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.New(errors.ErrCodeConfiguration, "unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}

	overlay(md, cfg, &file)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Discover loads FileName from projectDir when it exists and returns the
// defaults otherwise.
func Discover(projectDir string) (*Config, string, error) {
	path := filepath.Join(projectDir, FileName)
	if _, err := os.Stat(path); err != nil {
		return Default(), "", nil
	}
	cfg, err := Load(path)
	return cfg, path, err
}

func overlay(md toml.MetaData, dst, src *Config) {
	set := func(keys ...string) bool { return md.IsDefined(keys...) }

	if set("project", "install_locations") {
		dst.Project.InstallLocations = src.Project.InstallLocations
	}
	if set("project", "local_prefix") {
		dst.Project.LocalPrefix = src.Project.LocalPrefix
	}
	if set("project", "package_prefix") {
		dst.Project.PackagePrefix = src.Project.PackagePrefix
	}
	if set("resolve", "builtin_prefixes") {
		dst.Resolve.BuiltinPrefixes = src.Resolve.BuiltinPrefixes
	}
	if set("resolve", "heuristics") {
		dst.Resolve.Heuristics = src.Resolve.Heuristics
	}
	if set("resolve", "source_extensions") {
		dst.Resolve.SourceExtensions = src.Resolve.SourceExtensions
	}
	if set("versions", "fallback") {
		dst.Versions.Fallback = src.Versions.Fallback
	}
	if set("versions", "placeholder") {
		dst.Versions.Placeholder = src.Versions.Placeholder
	}
	if set("manifest", "anchor_field") {
		dst.Manifest.AnchorField = src.Manifest.AnchorField
	}
	if set("scan", "extensions") {
		dst.Scan.Extensions = src.Scan.Extensions
	}
	if set("scan", "exclude") {
		dst.Scan.Exclude = src.Scan.Exclude
	}
	if set("scan", "ignore") {
		dst.Scan.Ignore = src.Scan.Ignore
	}
}

// Validate checks values the analyzers cannot work without.
func (c *Config) Validate() error {
	if c.Project.LocalPrefix == "" || c.Project.PackagePrefix == "" {
		return errors.New(errors.ErrCodeConfiguration, "project.local_prefix and project.package_prefix must be set")
	}
	if !strings.HasSuffix(c.Project.LocalPrefix, "/") || !strings.HasSuffix(c.Project.PackagePrefix, "/") {
		return errors.New(errors.ErrCodeConfiguration, "namespace prefixes must end with '/'")
	}
	if c.Versions.Placeholder == "" {
		return errors.New(errors.ErrCodeConfiguration, "versions.placeholder must not be empty")
	}
	for _, id := range slices.Sorted(maps.Keys(c.Versions.Fallback)) {
		if err := errors.ValidatePackageID(id); err != nil {
			return errors.Wrap(errors.ErrCodeConfiguration, err, "versions.fallback")
		}
		if c.Versions.Fallback[id] == "" {
			return errors.New(errors.ErrCodeConfiguration, "versions.fallback.%q has an empty version", id)
		}
	}
	for _, token := range slices.Sorted(maps.Keys(c.Resolve.Heuristics)) {
		if err := errors.ValidatePackageID(c.Resolve.Heuristics[token]); err != nil {
			return errors.Wrap(errors.ErrCodeConfiguration, err, "resolve.heuristics.%q", token)
		}
	}
	for _, ext := range c.Scan.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return errors.New(errors.ErrCodeConfiguration, "scan.extensions: %q must start with '.'", ext)
		}
	}
	return nil
}

// Namespaces returns the configured asset namespaces.
func (c *Config) Namespaces() upm.Namespaces {
	return upm.Namespaces{Local: c.Project.LocalPrefix, Packages: c.Project.PackagePrefix}
}

// InstallDirs resolves InstallLocations against projectDir, keeping order.
func (c *Config) InstallDirs(projectDir string) []string {
	dirs := make([]string, len(c.Project.InstallLocations))
	for i, loc := range c.Project.InstallLocations {
		if filepath.IsAbs(loc) {
			dirs[i] = loc
		} else {
			dirs[i] = filepath.Join(projectDir, loc)
		}
	}
	return dirs
}
