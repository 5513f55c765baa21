package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pkgwarden/pkg/errors"
	"github.com/matzehuels/pkgwarden/pkg/upm"
	"github.com/matzehuels/pkgwarden/pkg/vcs"
)

type releaseOpts struct {
	project   string
	config    string
	tagPrefix string
	message   string
	git       string
	init      bool
	sync      bool
}

func (c *CLI) releaseCommand() *cobra.Command {
	opts := releaseOpts{tagPrefix: "v", git: "git"}

	cmd := &cobra.Command{
		Use:   "release [package-dir]",
		Short: "Commit and tag the package's current version",
		Long: `Release stages the package directory, commits it when anything changed and
creates an annotated tag named <prefix><version> from the "version" field of
package.json. With --sync the manifest dependencies are synchronized first.

Git runs as a subprocess in the package directory. A failing git command is
reported with its captured output.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRelease(cmd.Context(), packageArg(args), opts, &vcs.ExecRunner{Logger: loggerFromContext(cmd.Context())})
		},
	}

	cmd.Flags().StringVarP(&opts.project, "project", "p", "", "host project directory, used with --sync")
	cmd.Flags().StringVarP(&opts.config, "config", "c", "", "config file, used with --sync")
	cmd.Flags().StringVar(&opts.tagPrefix, "tag-prefix", opts.tagPrefix, "prefix of the release tag")
	cmd.Flags().StringVarP(&opts.message, "message", "m", "", "commit and tag message (default: \"Release <name> <version>\")")
	cmd.Flags().StringVar(&opts.git, "git", opts.git, "git executable")
	cmd.Flags().BoolVar(&opts.init, "init", false, "initialize a repository when the package is not in one")
	cmd.Flags().BoolVar(&opts.sync, "sync", false, "synchronize manifest dependencies before committing")

	return cmd
}

func (c *CLI) runRelease(ctx context.Context, pkgDir string, opts releaseOpts, runner vcs.Runner) error {
	logger := loggerFromContext(ctx)

	abs, err := filepath.Abs(pkgDir)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "resolve %s", pkgDir)
	}
	m, err := upm.ReadManifestDir(abs)
	if err != nil {
		describeError(err)
		return err
	}
	if m.Version == "" {
		err := errors.New(errors.ErrCodeParse, "%s has no version field", filepath.Join(pkgDir, upm.ManifestFile))
		describeError(err)
		return err
	}
	tag, err := vcs.ReleaseTag(opts.tagPrefix, m.Version)
	if err != nil {
		describeError(err)
		return err
	}

	if opts.sync {
		if err := c.runSync(ctx, abs, syncOpts{project: opts.project, config: opts.config}); err != nil {
			return err
		}
	}

	message := opts.message
	if message == "" {
		message = fmt.Sprintf("Release %s %s", m.Name, m.Version)
	}

	git := vcs.NewGit(runner)
	git.Binary = opts.git
	res, err := git.Release(vcs.ReleaseOptions{
		Dir:     abs,
		Paths:   []string{"."},
		Tag:     tag,
		Message: message,
		Init:    opts.init,
	})
	if err != nil {
		describeError(err)
		return err
	}
	logger.Debug("release done", "tag", res.Tag, "committed", res.Committed, "initialized", res.Initialized)

	if res.Initialized {
		printInfo("Initialized git repository")
	}
	if res.Committed {
		printSuccess("Committed %s", m.Name)
	} else {
		printInfo("Nothing to commit")
	}
	printSuccess("Tagged %s", StyleHighlight.Render(res.Tag))
	printNextStep("Publish", "git push --follow-tags")
	return nil
}
