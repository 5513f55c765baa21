package report

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/matzehuels/pkgwarden/pkg/boundary"
	"github.com/matzehuels/pkgwarden/pkg/errors"
	"github.com/matzehuels/pkgwarden/pkg/reconcile"
	"github.com/matzehuels/pkgwarden/pkg/upm"
)

func failedResult() *boundary.Result {
	return &boundary.Result{
		Status:              boundary.StatusFailed,
		ScannedAssets:       2,
		ScannedDependencies: 3,
		AllowedRoots:        []string{"Packages/com.mine.pkg/"},
		Issues: []boundary.Issue{
			{Owner: "Packages/com.mine.pkg/A.prefab", Dependency: "Assets/Wood.mat", Reason: boundary.ReasonForbidden},
			{Owner: "Packages/com.mine.pkg/A.prefab", Dependency: "Packages/com.unity.cinemachine/x.asset", Reason: boundary.ReasonUndeclared, Fix: `add "com.unity.cinemachine" to dependencies (Packages/com.unity.cinemachine/)`},
		},
	}
}

func TestNewValidation(t *testing.T) {
	v := NewValidation("com.mine.pkg", failedResult())
	if _, err := uuid.Parse(v.RunID); err != nil {
		t.Errorf("RunID %q is not a uuid: %v", v.RunID, err)
	}
	if v.Status != boundary.StatusFailed || v.Passed {
		t.Errorf("Status = %s, Passed = %v", v.Status, v.Passed)
	}
	if v.ScannedAssets != 2 || v.ScannedDependencies != 3 || len(v.Issues) != 2 {
		t.Errorf("counts = %d/%d, issues = %d", v.ScannedAssets, v.ScannedDependencies, len(v.Issues))
	}
	if other := NewValidation("com.mine.pkg", failedResult()); other.RunID == v.RunID {
		t.Error("run ids should differ between runs")
	}
}

func TestFromError(t *testing.T) {
	err := errors.New(errors.ErrCodeConfiguration, "allow-list is empty")
	v := FromError("", err)
	if v.Status != boundary.StatusError || v.ErrorCode != errors.ErrCodeConfiguration {
		t.Errorf("Status = %s, ErrorCode = %s", v.Status, v.ErrorCode)
	}
	if v.ScannedAssets != 0 || len(v.Issues) != 0 || v.Issues == nil {
		t.Errorf("error report should carry no partial results: %+v", v)
	}
	if !strings.Contains(v.Error, "allow-list is empty") {
		t.Errorf("Error = %q", v.Error)
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, NewValidation("com.mine.pkg", failedResult())); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{`"status": "failed"`, `"scannedAssets": 2`, `"reason": "forbidden project-local"`, `add "com.unity.cinemachine"`} {
		if !strings.Contains(out, want) {
			t.Errorf("JSON missing %s:\n%s", want, out)
		}
	}
	if strings.Contains(out, `\u0026`) || strings.Contains(out, `\u003c`) {
		t.Error("JSON output should not escape HTML")
	}
}

func TestSyncJSON(t *testing.T) {
	r := &reconcile.SyncReport{
		Required: []string{"Foo"},
		Resolved: []string{"com.bar.baz"},
		Added:    []reconcile.Change{{ID: "com.bar.baz", To: "1.2.0", Source: reconcile.SourceAuthoritative}},
		Changed:  true,
	}
	path := filepath.Join(t.TempDir(), "sync.json")
	if err := WriteJSONFile(path, NewSync("com.mine.pkg", "package.json", true, r)); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got["package"] != "com.mine.pkg" || got["dryRun"] != true || got["changed"] != true {
		t.Errorf("sync report = %v", got)
	}
	if _, ok := got["added"]; !ok {
		t.Error("embedded sync report fields should be inlined")
	}
}

func TestToDOT(t *testing.T) {
	v := NewValidation("com.mine.pkg", failedResult())
	dot := ToDOT(v, upm.Namespaces{})

	for _, want := range []string{
		"digraph G",
		`label="com.mine.pkg"`,
		`label="project (Assets/)"`,
		`label="com.unity.cinemachine"`,
		`"Packages/com.mine.pkg/A.prefab" [label="A.prefab"]`,
		`"Packages/com.mine.pkg/A.prefab" -> "Assets/Wood.mat" [color=firebrick`,
		`-> "Packages/com.unity.cinemachine/x.asset" [color=darkorange`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %s:\n%s", want, dot)
		}
	}
	if ToDOT(v, upm.DefaultNamespaces()) != dot {
		t.Error("ToDOT should be deterministic")
	}
}

func TestClusterOf(t *testing.T) {
	tests := []struct {
		ns    upm.Namespaces
		asset string
		want  string
	}{
		{upm.DefaultNamespaces(), "Packages/com.foo/x.mat", "com.foo"},
		{upm.DefaultNamespaces(), "Assets/x.mat", "project (Assets/)"},
		{upm.DefaultNamespaces(), "Resources/unity_builtin", ClusterNonPortable},
		{upm.DefaultNamespaces(), "Packages/no-separator", ClusterNonPortable},
		{upm.Namespaces{Local: "Content/", Packages: "Pkgs/"}, "Pkgs/com.foo/x.mat", "com.foo"},
		{upm.Namespaces{Local: "Content/", Packages: "Pkgs/"}, "Content/x.mat", "project (Content/)"},
		{upm.Namespaces{Local: "Content/", Packages: "Pkgs/"}, "Packages/com.foo/x.mat", ClusterNonPortable},
	}
	for _, tt := range tests {
		if got := clusterOf(tt.ns, tt.asset); got != tt.want {
			t.Errorf("clusterOf(%v, %q) = %q, want %q", tt.ns, tt.asset, got, tt.want)
		}
	}
	if got := shortLabel(upm.Namespaces{Local: "Content/", Packages: "Pkgs/"}, "Pkgs/com.foo/Mat/x.mat"); got != "Mat/x.mat" {
		t.Errorf("shortLabel = %q, want Mat/x.mat", got)
	}
}

func TestRenderSVG(t *testing.T) {
	svg, err := RenderSVG(context.Background(), ToDOT(NewValidation("com.mine.pkg", failedResult()), upm.DefaultNamespaces()))
	if err != nil {
		t.Fatalf("RenderSVG: %v", err)
	}
	if !bytes.Contains(svg, []byte("<svg")) {
		t.Error("output is not SVG")
	}
	if !bytes.Contains(svg, []byte(`viewBox="0 0 `)) {
		t.Error("viewBox was not normalized")
	}
}

func TestFromErrorUnclassified(t *testing.T) {
	v := FromError("com.mine.pkg", os.ErrPermission)
	if v.ErrorCode != errors.ErrCodeUnknown {
		t.Errorf("ErrorCode = %s, want %s", v.ErrorCode, errors.ErrCodeUnknown)
	}
	if !strings.Contains(v.Error, "permission denied") {
		t.Errorf("Error = %q should keep the original message", v.Error)
	}
}
