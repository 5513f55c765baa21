package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pkgwarden/pkg/assetgraph"
	"github.com/matzehuels/pkgwarden/pkg/boundary"
	"github.com/matzehuels/pkgwarden/pkg/cache"
	"github.com/matzehuels/pkgwarden/pkg/errors"
	"github.com/matzehuels/pkgwarden/pkg/index"
	"github.com/matzehuels/pkgwarden/pkg/observability"
	"github.com/matzehuels/pkgwarden/pkg/reconcile"
	"github.com/matzehuels/pkgwarden/pkg/resolve"
	"github.com/matzehuels/pkgwarden/pkg/upm"
)

// Runner executes pipeline runs. It holds only the cache and logger, so a
// Runner can be reused across runs.
type Runner struct {
	Cache  cache.Cache
	Logger *log.Logger
}

// NewRunner creates a runner. A nil cache disables caching and a nil logger
// uses the default logger.
func NewRunner(c cache.Cache, logger *log.Logger) *Runner {
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Cache: c, Logger: logger}
}

// Index builds the module index of a project.
func (r *Runner) Index(ctx context.Context, opts IndexOptions) (*index.Index, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	start := time.Now()
	done := stage(ctx, observability.RunIndex, observability.StageIndex)
	idx, err := buildIndex(opts.ProjectDir, opts.Config, r)
	if err != nil {
		done(0, err)
		return nil, err
	}
	done(idx.Len(), nil)
	r.Logger.Info("indexed modules",
		"modules", idx.Len(),
		"packages", len(idx.Packages()),
		"duration", time.Since(start))
	return idx, nil
}

// Sync runs dependency synthesis for one package.
func (r *Runner) Sync(ctx context.Context, opts SyncOptions) (*SyncResult, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	cfg := opts.Config
	manifestPath := filepath.Join(opts.PackageDir, upm.ManifestFile)

	m, err := upm.ReadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	result := &SyncResult{Package: m.Name, Manifest: manifestPath}

	// Stage 1: Index
	start := time.Now()
	done := stage(ctx, observability.RunSync, observability.StageIndex)
	idx, err := buildIndex(opts.ProjectDir, cfg, r)
	if err != nil {
		done(0, err)
		return nil, err
	}
	done(idx.Len(), nil)
	result.Stats.IndexTime = time.Since(start)
	result.Stats.IndexedModules = idx.Len()
	r.Logger.Info("indexed modules",
		"modules", idx.Len(),
		"packages", len(idx.Packages()),
		"duration", result.Stats.IndexTime)

	// Stage 2: Resolve
	start = time.Now()
	done = stage(ctx, observability.RunSync, observability.StageResolve)
	res, err := resolve.Resolve(resolve.Options{
		Root:             opts.PackageDir,
		Self:             m.Name,
		Index:            idx,
		BuiltinPrefixes:  cfg.Resolve.BuiltinPrefixes,
		Heuristics:       cfg.Resolve.Heuristics,
		SourceExtensions: cfg.Resolve.SourceExtensions,
		Logger:           r.Logger,
	})
	if err != nil {
		done(0, err)
		return nil, err
	}
	done(len(res.PackageIDs), nil)
	result.Stats.ResolveTime = time.Since(start)
	r.Logger.Info("resolved references",
		"references", len(res.Names),
		"packages", len(res.PackageIDs),
		"skipped", len(res.Skipped),
		"duration", result.Stats.ResolveTime)

	// Stage 3: Merge
	authoritative, err := upm.ReadProjectVersions(opts.ProjectDir)
	if err != nil {
		r.Logger.Warn("ignoring unreadable project versions", "err", err)
		authoritative = map[string]string{}
	}

	start = time.Now()
	done = stage(ctx, observability.RunSync, observability.StageMerge)
	_, report, err := reconcile.Merge(manifestPath, res.PackageIDs, authoritative, cfg.Versions.Fallback, reconcile.Options{
		AnchorField: cfg.Manifest.AnchorField,
		Placeholder: cfg.Versions.Placeholder,
		DryRun:      opts.DryRun,
	})
	if err != nil {
		done(0, err)
		return nil, err
	}
	done(len(report.Added)+len(report.Updated), nil)
	result.Stats.MergeTime = time.Since(start)

	report.Required = res.Names
	report.Skipped = res.Skipped
	report.Local = res.Local
	annotate(report, res, idx)
	result.Report = report

	r.Logger.Info("merged manifest",
		"added", len(report.Added),
		"updated", len(report.Updated),
		"changed", report.Changed,
		"dry_run", opts.DryRun,
		"duration", result.Stats.MergeTime)
	return result, nil
}

// annotate adds resolver notes to the report.
func annotate(report *reconcile.SyncReport, res *resolve.Result, idx *index.Index) {
	if res.FallbackUsed {
		if !res.HasDescriptors {
			report.Notef("no module descriptors found; used source heuristics")
		} else {
			report.Notef("module descriptors declare no references; used source heuristics")
		}
		for _, m := range res.Heuristic {
			report.Notef("%s: implied by %q in %s", m.PackageID, m.Token, m.File)
		}
	}
	for _, path := range res.Unreadable {
		report.Notef("unreadable module descriptor: %s", path)
	}

	required := make(map[string]bool, len(res.Names))
	for _, name := range res.Names {
		required[name] = true
	}
	for _, s := range idx.Shadowed {
		if required[s.Module] {
			report.Notef("module %s is provided by %s and %s; using %s", s.Module, s.Winner, s.Loser, s.Winner)
		}
	}
}

// Validate runs boundary validation for one package.
func (r *Runner) Validate(ctx context.Context, opts ValidateOptions) (*ValidateResult, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	cfg := opts.Config

	m, err := upm.ReadManifestDir(opts.PackageDir)
	if err != nil {
		return nil, err
	}
	result := &ValidateResult{Package: m.Name, Declared: m.DependencyIDs()}

	start := time.Now()
	done := stage(ctx, observability.RunValidate, observability.StageGraph)
	g, err := r.graph(ctx, opts)
	if err != nil {
		done(0, err)
		return nil, err
	}
	done(g.NodeCount(), nil)
	result.Stats.GraphTime = time.Since(start)
	result.Stats.GraphAssets = g.NodeCount()
	result.Stats.GraphEdges = g.EdgeCount()
	r.Logger.Info("loaded asset graph",
		"assets", g.NodeCount(),
		"edges", g.EdgeCount(),
		"duration", result.Stats.GraphTime)

	filter, err := boundary.NewFilter(cfg.Scan.Extensions, cfg.Scan.Exclude)
	if err != nil {
		return nil, err
	}

	ns := cfg.Namespaces()
	root := ""
	if m.Name == "" {
		root = ns.Root(strings.SplitN(filepath.Base(opts.PackageDir), "@", 2)[0])
	}

	start = time.Now()
	done = stage(ctx, observability.RunValidate, observability.StageValidate)
	br, err := boundary.Validate(boundary.Options{
		Self:       m.Name,
		Root:       root,
		Declared:   result.Declared,
		Assets:     g,
		Closure:    g,
		Filter:     filter,
		Namespaces: ns,
		Logger:     r.Logger,
	})
	if err != nil {
		done(0, err)
		return nil, err
	}
	done(len(br.Issues), nil)
	result.Result = br
	result.Stats.ValidateTime = time.Since(start)
	r.Logger.Info("validated boundaries",
		"status", br.Status,
		"assets", br.ScannedAssets,
		"dependencies", br.ScannedDependencies,
		"issues", len(br.Issues),
		"duration", result.Stats.ValidateTime)
	return result, nil
}

func (r *Runner) graph(ctx context.Context, opts ValidateOptions) (*assetgraph.Graph, error) {
	switch {
	case opts.Graph != nil:
		return opts.Graph, nil
	case opts.Closures != "":
		return assetgraph.ReadJSONFile(opts.Closures)
	}
	g, _, err := assetgraph.Load(ctx, opts.ProjectDir, assetgraph.LoadOptions{
		PackageDirs: opts.Config.InstallDirs(opts.ProjectDir),
		Namespaces:  opts.Config.Namespaces(),
		Ignore:      opts.Config.Scan.Ignore,
		Cache:       r.Cache,
		Logger:      r.Logger,
	})
	if err != nil {
		return nil, errors.Classify(err)
	}
	return g, nil
}

// stage reports the start of a stage to the registered hooks and returns the
// function that reports its completion.
func stage(ctx context.Context, run, name string) func(items int, err error) {
	hooks := observability.Pipeline()
	hooks.OnStageStart(ctx, run, name)
	start := time.Now()
	return func(items int, err error) {
		hooks.OnStageComplete(ctx, run, name, items, time.Since(start), err)
	}
}
