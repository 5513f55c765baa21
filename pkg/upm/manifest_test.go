package upm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/pkgwarden/pkg/errors"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestReadManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ManifestFile), sampleManifest)

	m, err := ReadManifestDir(dir)
	if err != nil {
		t.Fatalf("ReadManifestDir: %v", err)
	}
	if m.Name != "com.acme.tools" {
		t.Errorf("Name = %q", m.Name)
	}
	if m.Version != "1.0.0" {
		t.Errorf("Version = %q", m.Version)
	}
	if !m.HasDepsBlock {
		t.Error("HasDepsBlock = false, want true")
	}
	ids := m.DependencyIDs()
	if len(ids) != 2 || ids[0] != "com.unity.textmeshpro" || ids[1] != "com.unity.cinemachine" {
		t.Errorf("DependencyIDs = %v", ids)
	}
	if v := m.DependencyMap()["com.unity.cinemachine"]; v != "2.9.7" {
		t.Errorf("DependencyMap[cinemachine] = %q", v)
	}
	if !IsPackageDir(dir) {
		t.Error("IsPackageDir = false, want true")
	}
}

func TestReadManifestMissing(t *testing.T) {
	_, err := ReadManifest(filepath.Join(t.TempDir(), ManifestFile))
	if !errors.Is(err, errors.ErrCodeConfiguration) {
		t.Fatalf("err = %v, want configuration error", err)
	}
}

func TestReadManifestInvalid(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ManifestFile), `{"name": `)

	_, err := ReadManifestDir(dir)
	if !errors.Is(err, errors.ErrCodeParse) {
		t.Fatalf("err = %v, want parse error", err)
	}
}

func TestParseManifestBestEffort(t *testing.T) {
	m, err := ParseManifest([]byte(`{"name": 42, "version": "0.1.0"}`))
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	if m.Name != "" {
		t.Errorf("Name = %q, want empty for non-string field", m.Name)
	}
	if m.HasDepsBlock || len(m.Dependencies) != 0 {
		t.Errorf("unexpected dependencies: %+v", m.Dependencies)
	}
}

func TestDescriptor(t *testing.T) {
	d, err := ParseDescriptor([]byte(`{
		"name": "Acme.Tools.Editor",
		"references": ["Unity.TextMeshPro", "GUID:6055be8ebefd69e48b49212b09b47b2f", "", "Acme.Tools"],
		"precompiledReferences": ["Newtonsoft.Json.dll"],
		"autoReferenced": true
	}`))
	if err != nil {
		t.Fatalf("ParseDescriptor: %v", err)
	}
	if d.Name != "Acme.Tools.Editor" {
		t.Errorf("Name = %q", d.Name)
	}
	if len(d.References) != 2 || d.References[0] != "Unity.TextMeshPro" || d.References[1] != "Acme.Tools" {
		t.Errorf("References = %v", d.References)
	}
	if len(d.Opaque) != 1 {
		t.Errorf("Opaque = %v, want one GUID reference", d.Opaque)
	}
	if len(d.Precompiled) != 1 {
		t.Errorf("Precompiled = %v", d.Precompiled)
	}
}

func TestDescriptorWrongTypes(t *testing.T) {
	d, err := ParseDescriptor([]byte(`{"name": ["x"], "references": "Foo"}`))
	if err != nil {
		t.Fatalf("ParseDescriptor: %v", err)
	}
	if d.Name != "" || len(d.References) != 0 {
		t.Errorf("fields with wrong types should be ignored, got %+v", d)
	}

	if _, err := ParseDescriptor([]byte(`not json`)); !errors.Is(err, errors.ErrCodeParse) {
		t.Errorf("err = %v, want parse error", err)
	}
}

func TestReadProjectVersions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ProjectLockFile), `{
  "dependencies": {
    "com.unity.textmeshpro": {"version": "3.0.6", "depth": 0, "source": "registry"},
    "com.unity.mathematics": {"version": "1.2.6", "depth": 1, "source": "registry"},
    "com.acme.local": {"version": "file:../local", "depth": 0, "source": "local"}
  }
}`)
	writeFile(t, filepath.Join(dir, ProjectManifestFile), `{
  "dependencies": {
    "com.unity.textmeshpro": "3.2.0-pre.4",
    "com.acme.git": "https://example.com/acme.git#v1"
  }
}`)

	versions, err := ReadProjectVersions(dir)
	if err != nil {
		t.Fatalf("ReadProjectVersions: %v", err)
	}
	want := map[string]string{
		"com.unity.textmeshpro": "3.2.0-pre.4",
		"com.unity.mathematics": "1.2.6",
	}
	if len(versions) != len(want) {
		t.Fatalf("versions = %v, want %v", versions, want)
	}
	for id, v := range want {
		if versions[id] != v {
			t.Errorf("versions[%s] = %q, want %q", id, versions[id], v)
		}
	}
}

func TestReadProjectVersionsMissing(t *testing.T) {
	versions, err := ReadProjectVersions(t.TempDir())
	if err != nil {
		t.Fatalf("ReadProjectVersions: %v", err)
	}
	if len(versions) != 0 {
		t.Errorf("versions = %v, want empty", versions)
	}
}

func TestNamespace(t *testing.T) {
	ns := DefaultNamespaces()
	if got := ns.Root("com.foo"); got != "Packages/com.foo/" {
		t.Errorf("Root = %q", got)
	}

	tests := []struct {
		asset  string
		want   string
		wantOK bool
	}{
		{"Packages/com.unity.cinemachine/x.asset", "com.unity.cinemachine", true},
		{"Packages/com.foo/Runtime/a/b.mat", "com.foo", true},
		{"Packages/com.foo", "", false},
		{"Assets/x.mat", "", false},
		{"Packages//x.mat", "", false},
	}
	for _, tt := range tests {
		got, ok := ns.OwnerOf(tt.asset)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("OwnerOf(%q) = %q, %v; want %q, %v", tt.asset, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestCustomNamespace(t *testing.T) {
	ns := Namespaces{Packages: "Pkgs/"}.WithDefaults()
	if ns.Local != AssetsPrefix {
		t.Errorf("Local = %q, want default", ns.Local)
	}
	if got := ns.Root("com.foo"); got != "Pkgs/com.foo/" {
		t.Errorf("Root = %q", got)
	}
	if id, ok := ns.OwnerOf("Pkgs/com.foo/a.mat"); !ok || id != "com.foo" {
		t.Errorf("OwnerOf = %q, %v", id, ok)
	}
	if _, ok := ns.OwnerOf("Packages/com.foo/a.mat"); ok {
		t.Error("default prefix should not match a custom namespace")
	}
	if !ns.IsLocal("Assets/a.mat") || ns.Contains("Library/x.dll") {
		t.Error("IsLocal/Contains disagree with the prefixes")
	}
}
