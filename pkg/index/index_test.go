package index

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/pkgwarden/pkg/errors"
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

func pkg(t *testing.T, dir, id string, modules map[string]string) {
	t.Helper()
	write(t, filepath.Join(dir, "package.json"), fmt.Sprintf(`{"name": %q, "version": "1.0.0"}`, id))
	for rel, name := range modules {
		write(t, filepath.Join(dir, rel), fmt.Sprintf(`{"name": %q}`, name))
	}
}

func TestBuildFirstLocationWins(t *testing.T) {
	root := t.TempDir()
	embedded := filepath.Join(root, "Packages")
	cache := filepath.Join(root, "Library", "PackageCache")

	pkg(t, filepath.Join(embedded, "com.acme.fork"), "com.acme.fork", map[string]string{
		"Runtime/Foo.asmdef": "Foo",
	})
	pkg(t, filepath.Join(cache, "com.bar.baz@1.2.0"), "com.bar.baz", map[string]string{
		"Runtime/Foo.asmdef":       "Foo",
		"Editor/Foo.Editor.asmdef": "Foo.Editor",
	})

	x, err := Build([]string{embedded, cache}, Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if got, _ := x.Lookup("Foo"); got != "com.acme.fork" {
		t.Errorf("Lookup(Foo) = %q, want com.acme.fork (first location wins)", got)
	}
	if got, _ := x.Lookup("Foo.Editor"); got != "com.bar.baz" {
		t.Errorf("Lookup(Foo.Editor) = %q, want com.bar.baz", got)
	}
	if len(x.Shadowed) != 1 || x.Shadowed[0] != (Shadow{Module: "Foo", Winner: "com.acme.fork", Loser: "com.bar.baz"}) {
		t.Errorf("Shadowed = %+v", x.Shadowed)
	}

	// Reversing the scan order flips the winner.
	x, err = Build([]string{cache, embedded}, Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got, _ := x.Lookup("Foo"); got != "com.bar.baz" {
		t.Errorf("reversed Lookup(Foo) = %q, want com.bar.baz", got)
	}
}

func TestBuildLexicalOrderWithinLocation(t *testing.T) {
	loc := t.TempDir()
	pkg(t, filepath.Join(loc, "b-pkg"), "com.b.pkg", map[string]string{"X.asmdef": "Shared"})
	pkg(t, filepath.Join(loc, "a-pkg"), "com.a.pkg", map[string]string{"X.asmdef": "Shared"})

	x, err := Build([]string{loc}, Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got, _ := x.Lookup("Shared"); got != "com.a.pkg" {
		t.Errorf("Lookup(Shared) = %q, want com.a.pkg (lexically first directory)", got)
	}
}

func TestBuildSkipsUnreadable(t *testing.T) {
	loc := t.TempDir()
	// Package without a name.
	write(t, filepath.Join(loc, "noname", "package.json"), `{"version": "1.0.0"}`)
	write(t, filepath.Join(loc, "noname", "A.asmdef"), `{"name": "A"}`)
	// Broken manifest.
	write(t, filepath.Join(loc, "broken", "package.json"), `{`)
	// Directory without a manifest.
	write(t, filepath.Join(loc, "plain", "B.asmdef"), `{"name": "B"}`)
	// Descriptors without usable names.
	pkg(t, filepath.Join(loc, "good"), "com.good.pkg", map[string]string{"C.asmdef": "C"})
	write(t, filepath.Join(loc, "good", "Bad.asmdef"), `{"name": ""}`)
	write(t, filepath.Join(loc, "good", "Worse.asmdef"), `nope`)
	// Loose file at the location root.
	write(t, filepath.Join(loc, "README.md"), "hi")

	x, err := Build([]string{loc, filepath.Join(loc, "does-not-exist")}, Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if x.Len() != 1 {
		t.Errorf("Len = %d, want 1 (modules %v)", x.Len(), x.Modules())
	}
	if got, ok := x.Lookup("C"); !ok || got != "com.good.pkg" {
		t.Errorf("Lookup(C) = %q, %v", got, ok)
	}
	for _, name := range []string{"A", "B"} {
		if _, ok := x.Lookup(name); ok {
			t.Errorf("Lookup(%s) should miss", name)
		}
	}
}

func TestBuildNestedPackagesInvisible(t *testing.T) {
	loc := t.TempDir()
	outer := filepath.Join(loc, "outer")
	pkg(t, outer, "com.outer.pkg", map[string]string{"Outer.asmdef": "Outer"})
	pkg(t, filepath.Join(outer, "Samples", "inner"), "com.inner.pkg", map[string]string{"Inner.asmdef": "Inner"})

	x, err := Build([]string{loc}, Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	pkgs := x.Packages()
	if len(pkgs) != 1 || pkgs[0] != "com.outer.pkg" {
		t.Errorf("Packages = %v, want only the outer package", pkgs)
	}
	if got, _ := x.Lookup("Inner"); got != "com.outer.pkg" {
		t.Errorf("Lookup(Inner) = %q, want the enclosing package", got)
	}
	if dir, ok := x.PackageDir("com.outer.pkg"); !ok || dir != outer {
		t.Errorf("PackageDir = %q, %v", dir, ok)
	}
}

func TestBuildNoLocations(t *testing.T) {
	_, err := Build(nil, Options{})
	if !errors.Is(err, errors.ErrCodeConfiguration) {
		t.Errorf("err = %v, want configuration error", err)
	}
}

func TestInsert(t *testing.T) {
	x := New()
	if !x.Insert("Foo", "com.a.b") {
		t.Error("first Insert should take effect")
	}
	if x.Insert("Foo", "com.c.d") {
		t.Error("second Insert should be ignored")
	}
	if x.Insert("Foo", "com.a.b") {
		t.Error("repeat Insert should be ignored")
	}
	if len(x.Shadowed) != 1 {
		t.Errorf("Shadowed = %+v, want one entry", x.Shadowed)
	}
}
