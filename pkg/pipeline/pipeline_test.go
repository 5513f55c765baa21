package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pkgwarden/pkg/assetgraph"
	"github.com/matzehuels/pkgwarden/pkg/boundary"
	"github.com/matzehuels/pkgwarden/pkg/config"
	"github.com/matzehuels/pkgwarden/pkg/errors"
	"github.com/matzehuels/pkgwarden/pkg/observability"
	"github.com/matzehuels/pkgwarden/pkg/upm"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func quietRunner() *Runner {
	return NewRunner(nil, log.New(io.Discard))
}

// fixture lays out a project with an embedded package referencing module Foo
// from a cached package.
func fixture(t *testing.T) (project, pkg string) {
	t.Helper()
	project = t.TempDir()
	pkg = filepath.Join(project, "Packages", "com.mine.pkg")

	write(t, filepath.Join(pkg, "package.json"), `{
  "name": "com.mine.pkg",
  "version": "0.1.0",
  "dependencies": {
    "com.unity.textmeshpro": "3.0.6"
  },
  "keywords": ["tools"]
}
`)
	write(t, filepath.Join(pkg, "Runtime", "Mine.asmdef"), `{"name": "Mine", "references": ["Foo", "UnityEngine.UI", "Nowhere"]}`)

	cached := filepath.Join(project, "Library", "PackageCache", "com.bar.baz@1.2.0")
	write(t, filepath.Join(cached, "package.json"), `{"name": "com.bar.baz", "version": "1.2.0"}`)
	write(t, filepath.Join(cached, "Runtime", "Foo.asmdef"), `{"name": "Foo"}`)

	write(t, filepath.Join(project, "Packages", "manifest.json"), `{"dependencies": {"com.bar.baz": "1.2.0"}}`)
	return project, pkg
}

func TestSync(t *testing.T) {
	project, pkg := fixture(t)

	res, err := quietRunner().Sync(context.Background(), SyncOptions{PackageDir: pkg})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	r := res.Report
	if !r.Changed {
		t.Fatal("Changed = false, want true")
	}
	if len(r.Added) != 1 || r.Added[0].String() != "com.bar.baz@1.2.0" {
		t.Errorf("Added = %v", r.Added)
	}
	if len(r.Skipped) != 1 || r.Skipped[0] != "Nowhere" {
		t.Errorf("Skipped = %v", r.Skipped)
	}
	if res.Package != "com.mine.pkg" {
		t.Errorf("Package = %q", res.Package)
	}
	if res.Stats.IndexedModules != 2 {
		t.Errorf("IndexedModules = %d, want 2", res.Stats.IndexedModules)
	}

	m, err := upm.ReadManifestDir(pkg)
	if err != nil {
		t.Fatal(err)
	}
	deps := m.DependencyMap()
	if deps["com.bar.baz"] != "1.2.0" || deps["com.unity.textmeshpro"] != "3.0.6" {
		t.Errorf("dependencies = %v", deps)
	}

	again, err := quietRunner().Sync(context.Background(), SyncOptions{ProjectDir: project, PackageDir: pkg})
	if err != nil {
		t.Fatal(err)
	}
	if again.Report.Changed {
		t.Error("second sync should not change the manifest")
	}
}

func TestSyncDryRun(t *testing.T) {
	_, pkg := fixture(t)
	before, _ := os.ReadFile(filepath.Join(pkg, "package.json"))

	res, err := quietRunner().Sync(context.Background(), SyncOptions{PackageDir: pkg, DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Report.Changed {
		t.Error("dry run should report the pending change")
	}
	after, _ := os.ReadFile(filepath.Join(pkg, "package.json"))
	if string(before) != string(after) {
		t.Error("dry run modified the manifest")
	}
}

func TestSyncHeuristicNotes(t *testing.T) {
	project := t.TempDir()
	pkg := filepath.Join(project, "Packages", "com.mine.pkg")
	write(t, filepath.Join(pkg, "package.json"), `{"name": "com.mine.pkg"}`)
	write(t, filepath.Join(pkg, "Runtime", "Label.cs"), "using TMPro;")

	res, err := quietRunner().Sync(context.Background(), SyncOptions{PackageDir: pkg, DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	notes := strings.Join(res.Report.Notes, "\n")
	if !strings.Contains(notes, "no module descriptors found") {
		t.Errorf("notes = %q", res.Report.Notes)
	}
	if len(res.Report.Added) != 1 || res.Report.Added[0].ID != "com.unity.textmeshpro" {
		t.Errorf("Added = %v", res.Report.Added)
	}
}

func TestSyncErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		opts SyncOptions
		code errors.Code
	}{
		{"no package dir", SyncOptions{}, errors.ErrCodeConfiguration},
		{"missing dir", SyncOptions{PackageDir: filepath.Join(dir, "nope")}, errors.ErrCodeConfiguration},
		{"no manifest", SyncOptions{PackageDir: dir}, errors.ErrCodeConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := quietRunner().Sync(context.Background(), tt.opts)
			if !errors.Is(err, tt.code) {
				t.Errorf("err = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestValidateFromDisk(t *testing.T) {
	project, pkg := fixture(t)
	meta := func(path string, n int) {
		write(t, path+".meta", fmt.Sprintf("fileFormatVersion: 2\nguid: %032x\n", n))
	}

	write(t, filepath.Join(pkg, "Prefabs", "Crate.prefab"), fmt.Sprintf("guid: %032x\nguid: %032x\n", 2, 3))
	meta(filepath.Join(pkg, "Prefabs", "Crate.prefab"), 1)
	write(t, filepath.Join(project, "Assets", "Wood.mat"), "")
	meta(filepath.Join(project, "Assets", "Wood.mat"), 2)
	tmp := filepath.Join(project, "Packages", "com.unity.textmeshpro")
	write(t, filepath.Join(tmp, "package.json"), `{"name": "com.unity.textmeshpro"}`)
	write(t, filepath.Join(tmp, "Fonts", "Default.asset"), "")
	meta(filepath.Join(tmp, "Fonts", "Default.asset"), 3)

	res, err := quietRunner().Validate(context.Background(), ValidateOptions{ProjectDir: project, PackageDir: pkg})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Status != boundary.StatusFailed {
		t.Errorf("Status = %s, want failed", res.Status)
	}
	if len(res.Issues) != 1 || res.Issues[0].Dependency != "Assets/Wood.mat" || res.Issues[0].Reason != boundary.ReasonForbidden {
		t.Errorf("Issues = %+v", res.Issues)
	}
	if res.ScannedAssets != 1 || res.ScannedDependencies != 2 {
		t.Errorf("scanned %d assets, %d deps", res.ScannedAssets, res.ScannedDependencies)
	}
}

func TestValidateCustomNamespaces(t *testing.T) {
	project, pkg := fixture(t)
	write(t, filepath.Join(pkg, "A.mat"), fmt.Sprintf("guid: %032x\n", 2))
	write(t, filepath.Join(pkg, "A.mat.meta"), fmt.Sprintf("guid: %032x\n", 1))
	write(t, filepath.Join(project, "Assets", "Wood.png"), "")
	write(t, filepath.Join(project, "Assets", "Wood.png.meta"), fmt.Sprintf("guid: %032x\n", 2))

	cfg := config.Default()
	cfg.Project.PackagePrefix = "Pkgs/"
	cfg.Project.LocalPrefix = "Content/"

	res, err := quietRunner().Validate(context.Background(), ValidateOptions{ProjectDir: project, PackageDir: pkg, Config: cfg})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Status != boundary.StatusFailed || res.ScannedAssets != 1 {
		t.Fatalf("status=%s scanned=%d, want failed with 1 asset", res.Status, res.ScannedAssets)
	}
	if len(res.Issues) != 1 || res.Issues[0].Owner != "Pkgs/com.mine.pkg/A.mat" || res.Issues[0].Dependency != "Content/Wood.png" {
		t.Errorf("Issues = %+v", res.Issues)
	}
	if res.AllowedRoots[0] != "Pkgs/com.mine.pkg/" {
		t.Errorf("AllowedRoots = %v", res.AllowedRoots)
	}
}

func TestValidateFromClosureMap(t *testing.T) {
	_, pkg := fixture(t)
	closures := filepath.Join(t.TempDir(), "closures.json")
	write(t, closures, `{
		"Packages/com.mine.pkg/A.prefab": ["Packages/com.unity.textmeshpro/F.asset", "Packages/com.unity.cinemachine/x.asset"]
	}`)

	res, err := quietRunner().Validate(context.Background(), ValidateOptions{PackageDir: pkg, Closures: closures})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Issues) != 1 || !strings.Contains(res.Issues[0].Fix, "com.unity.cinemachine") {
		t.Errorf("Issues = %+v", res.Issues)
	}
}

func TestValidateNoAssets(t *testing.T) {
	_, pkg := fixture(t)
	res, err := quietRunner().Validate(context.Background(), ValidateOptions{PackageDir: pkg, Graph: assetgraph.New()})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != boundary.StatusNoAssets {
		t.Errorf("Status = %s, want %s", res.Status, boundary.StatusNoAssets)
	}
}

func TestIndex(t *testing.T) {
	project, _ := fixture(t)
	idx, err := quietRunner().Index(context.Background(), IndexOptions{ProjectDir: project})
	if err != nil {
		t.Fatal(err)
	}
	if pkg, ok := idx.Lookup("Foo"); !ok || pkg != "com.bar.baz" {
		t.Errorf("Lookup(Foo) = %q, %v", pkg, ok)
	}
	if pkg, ok := idx.Lookup("Mine"); !ok || pkg != "com.mine.pkg" {
		t.Errorf("Lookup(Mine) = %q, %v", pkg, ok)
	}
}

type recordingHooks struct {
	observability.NoopPipelineHooks
	stages []string
}

func (h *recordingHooks) OnStageComplete(_ context.Context, run, stage string, items int, _ time.Duration, err error) {
	h.stages = append(h.stages, fmt.Sprintf("%s/%s=%d", run, stage, items))
}

func TestSyncReportsStages(t *testing.T) {
	_, pkg := fixture(t)
	hooks := &recordingHooks{}
	observability.SetPipelineHooks(hooks)
	t.Cleanup(observability.Reset)

	if _, err := quietRunner().Sync(context.Background(), SyncOptions{PackageDir: pkg, DryRun: true}); err != nil {
		t.Fatal(err)
	}
	want := []string{"sync/index=2", "sync/resolve=1", "sync/merge=1"}
	if strings.Join(hooks.stages, " ") != strings.Join(want, " ") {
		t.Errorf("stages = %v, want %v", hooks.stages, want)
	}
}
