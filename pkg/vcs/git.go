package vcs

import (
	stderrors "errors"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/matzehuels/pkgwarden/pkg/errors"
)

// Git runs git through a Runner.
type Git struct {
	Runner Runner
	Binary string // defaults to "git"
}

// NewGit returns a Git using r.
func NewGit(r Runner) *Git {
	return &Git{Runner: r, Binary: "git"}
}

func (g *Git) run(dir string, args ...string) (Result, error) {
	bin := g.Binary
	if bin == "" {
		bin = "git"
	}
	return g.Runner.Run(dir, append([]string{bin}, args...)...)
}

// IsRepo reports whether dir is inside a git work tree.
func (g *Git) IsRepo(dir string) bool {
	res, err := g.run(dir, "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(res.Stdout) == "true"
}

// Init creates a repository in dir.
func (g *Git) Init(dir string) error {
	_, err := g.run(dir, "init")
	return err
}

// Add stages paths.
func (g *Git) Add(dir string, paths ...string) error {
	if len(paths) == 0 {
		paths = []string{"."}
	}
	_, err := g.run(dir, append([]string{"add", "--"}, paths...)...)
	return err
}

// HasStagedChanges reports whether the index differs from HEAD.
func (g *Git) HasStagedChanges(dir string) (bool, error) {
	_, err := g.run(dir, "diff", "--cached", "--quiet")
	if err == nil {
		return false, nil
	}
	var se *errors.SubprocessError
	if stderrors.As(err, &se) && se.ExitCode == 1 {
		return true, nil
	}
	return false, err
}

// Commit records the staged changes.
func (g *Git) Commit(dir, message string) error {
	_, err := g.run(dir, "commit", "-m", message)
	return err
}

// Tag creates an annotated tag at HEAD.
func (g *Git) Tag(dir, name, message string) error {
	_, err := g.run(dir, "tag", "-a", name, "-m", message)
	return err
}

// TagExists reports whether a tag named name exists.
func (g *Git) TagExists(dir, name string) (bool, error) {
	res, err := g.run(dir, "tag", "--list", name)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(res.Stdout) == name, nil
}

// ReleaseTag formats the tag for a package version: "<prefix><version>".
// The version must be a strict semantic version.
func ReleaseTag(prefix, version string) (string, error) {
	v, err := semver.StrictNewVersion(version)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidPackage, err, "release version %q", version)
	}
	return prefix + v.String(), nil
}

// ReleaseOptions configures [Git.Release].
type ReleaseOptions struct {
	Dir     string   // repository working directory
	Paths   []string // paths to stage, relative to Dir
	Tag     string
	Message string
	// Init creates the repository when Dir is not yet one.
	Init bool
}

// ReleaseResult reports what [Git.Release] did.
type ReleaseResult struct {
	Initialized bool
	Committed   bool
	Tag         string
}

// Release stages Paths, commits them when anything changed, and tags HEAD.
// An existing tag with the same name is a configuration error.
func (g *Git) Release(opts ReleaseOptions) (*ReleaseResult, error) {
	res := &ReleaseResult{Tag: opts.Tag}
	if !g.IsRepo(opts.Dir) {
		if !opts.Init {
			return nil, errors.New(errors.ErrCodeConfiguration, "%s is not a git repository", opts.Dir)
		}
		if err := g.Init(opts.Dir); err != nil {
			return nil, err
		}
		res.Initialized = true
	}

	if exists, err := g.TagExists(opts.Dir, opts.Tag); err != nil {
		return nil, err
	} else if exists {
		return nil, errors.New(errors.ErrCodeConfiguration, "tag %s already exists", opts.Tag)
	}

	if err := g.Add(opts.Dir, opts.Paths...); err != nil {
		return nil, err
	}
	staged, err := g.HasStagedChanges(opts.Dir)
	if err != nil {
		return nil, err
	}
	if staged {
		if err := g.Commit(opts.Dir, opts.Message); err != nil {
			return nil, err
		}
		res.Committed = true
	}
	if err := g.Tag(opts.Dir, opts.Tag, opts.Message); err != nil {
		return nil, err
	}
	return res, nil
}
