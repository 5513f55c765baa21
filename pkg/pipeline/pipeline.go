// Package pipeline wires pkgwarden's analyzers into the two runs the CLI
// exposes.
//
// # Dependency synthesis
//
// [Runner.Sync] builds the module index from the project's install locations,
// resolves the target package's module references through it, and merges the
// required package ids into the package manifest:
//
//	index.Build -> resolve.Resolve -> reconcile.Merge
//
// # Boundary validation
//
// [Runner.Validate] reads the package's declared dependencies, obtains an
// asset graph (loaded from disk, read from a host-exported closure map, or
// injected), and runs the boundary validator over it.
//
// The two runs share no state. Each call starts from fresh options and returns
// a fresh result.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, logger)
//	res, err := runner.Sync(ctx, pipeline.SyncOptions{
//	    ProjectDir: "/work/game",
//	    PackageDir: "/work/game/Packages/com.acme.tools",
//	    Config:     config.Default(),
//	})
package pipeline

import (
	"os"
	"path/filepath"
	"time"

	"github.com/matzehuels/pkgwarden/pkg/assetgraph"
	"github.com/matzehuels/pkgwarden/pkg/boundary"
	"github.com/matzehuels/pkgwarden/pkg/config"
	"github.com/matzehuels/pkgwarden/pkg/errors"
	"github.com/matzehuels/pkgwarden/pkg/index"
	"github.com/matzehuels/pkgwarden/pkg/reconcile"
	"github.com/matzehuels/pkgwarden/pkg/upm"
)

// SyncOptions configures [Runner.Sync].
type SyncOptions struct {
	// ProjectDir is the host project. Defaults to the grandparent of
	// PackageDir, matching an embedded package at <project>/Packages/<pkg>.
	ProjectDir string
	// PackageDir is the directory holding the target package.json.
	PackageDir string
	Config     *config.Config
	DryRun     bool
}

// ValidateOptions configures [Runner.Validate].
type ValidateOptions struct {
	ProjectDir string
	PackageDir string
	// Closures is an optional host-exported closure map. When set the asset
	// graph is read from it instead of being loaded from ProjectDir.
	Closures string
	// Graph, when set, takes precedence over Closures and ProjectDir.
	Graph  *assetgraph.Graph
	Config *config.Config
}

// IndexOptions configures [Runner.Index].
type IndexOptions struct {
	ProjectDir string
	Config     *config.Config
}

// SyncResult is the outcome of a sync run.
type SyncResult struct {
	Package  string
	Manifest string
	Report   *reconcile.SyncReport
	Stats    Stats
}

// ValidateResult is the outcome of a validation run.
type ValidateResult struct {
	Package  string
	Declared []string
	*boundary.Result
	Stats Stats
}

// Stats holds timings and sizes of a run.
type Stats struct {
	IndexedModules int
	GraphAssets    int
	GraphEdges     int
	IndexTime      time.Duration
	ResolveTime    time.Duration
	MergeTime      time.Duration
	GraphTime      time.Duration
	ValidateTime   time.Duration
}

// ValidateAndSetDefaults checks the options and fills defaults.
func (o *SyncOptions) ValidateAndSetDefaults() error {
	dir, project, err := packageAndProject(o.PackageDir, o.ProjectDir)
	if err != nil {
		return err
	}
	o.PackageDir, o.ProjectDir = dir, project
	if o.Config == nil {
		o.Config = config.Default()
	}
	return o.Config.Validate()
}

// ValidateAndSetDefaults checks the options and fills defaults.
func (o *ValidateOptions) ValidateAndSetDefaults() error {
	dir, project, err := packageAndProject(o.PackageDir, o.ProjectDir)
	if err != nil {
		return err
	}
	o.PackageDir, o.ProjectDir = dir, project
	if o.Config == nil {
		o.Config = config.Default()
	}
	return o.Config.Validate()
}

// ValidateAndSetDefaults checks the options and fills defaults.
func (o *IndexOptions) ValidateAndSetDefaults() error {
	if o.ProjectDir == "" {
		return errors.New(errors.ErrCodeConfiguration, "project directory is required")
	}
	abs, err := filepath.Abs(o.ProjectDir)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "resolve %s", o.ProjectDir)
	}
	o.ProjectDir = abs
	if o.Config == nil {
		o.Config = config.Default()
	}
	return o.Config.Validate()
}

func packageAndProject(pkgDir, projectDir string) (string, string, error) {
	if pkgDir == "" {
		return "", "", errors.New(errors.ErrCodeConfiguration, "package directory is required")
	}
	abs, err := filepath.Abs(pkgDir)
	if err != nil {
		return "", "", errors.Wrap(errors.ErrCodeInvalidPath, err, "resolve %s", pkgDir)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", "", errors.New(errors.ErrCodeConfiguration, "package directory not found: %s", pkgDir)
	}
	if !upm.IsPackageDir(abs) {
		return "", "", errors.New(errors.ErrCodeConfiguration, "no %s in %s", upm.ManifestFile, pkgDir)
	}

	if projectDir == "" {
		projectDir = filepath.Dir(filepath.Dir(abs))
	}
	project, err := filepath.Abs(projectDir)
	if err != nil {
		return "", "", errors.Wrap(errors.ErrCodeInvalidPath, err, "resolve %s", projectDir)
	}
	return abs, project, nil
}

// buildIndex is shared by Sync and Index.
func buildIndex(projectDir string, cfg *config.Config, r *Runner) (*index.Index, error) {
	return index.Build(cfg.InstallDirs(projectDir), index.Options{Logger: r.Logger})
}
