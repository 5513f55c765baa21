package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pkgwarden/pkg/pipeline"
	"github.com/matzehuels/pkgwarden/pkg/report"
)

type syncOpts struct {
	project string
	config  string
	output  string
	dryRun  bool
	json    bool
}

func (c *CLI) syncCommand() *cobra.Command {
	var opts syncOpts

	cmd := &cobra.Command{
		Use:   "sync [package-dir]",
		Short: "Add the packages a package's modules reference to its manifest",
		Long: `Sync reads the module references of every module descriptor in the package,
maps each to the installed package that defines it, and adds the missing
packages to the "dependencies" field of package.json.

Existing entries are never removed. Versions come from the project's package
lock, then the configured fallback table, then the placeholder version. The
rest of package.json is left byte for byte as it was.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSync(cmd.Context(), packageArg(args), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.project, "project", "p", "", "host project directory (default: two levels above the package)")
	cmd.Flags().StringVarP(&opts.config, "config", "c", "", "config file (default: <project>/pkgwarden.toml)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write the JSON report to a file")
	cmd.Flags().BoolVarP(&opts.dryRun, "dry-run", "n", false, "report changes without writing package.json")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the JSON report to stdout")

	return cmd
}

func (c *CLI) runSync(ctx context.Context, pkgDir string, opts syncOpts) error {
	logger := loggerFromContext(ctx)
	projectDir := projectFor(pkgDir, opts.project)

	cfg, err := c.loadConfig(opts.config, projectDir)
	if err != nil {
		return err
	}

	prog := newProgress(logger)
	res, err := pipeline.NewRunner(nil, logger).Sync(ctx, pipeline.SyncOptions{
		ProjectDir: projectDir,
		PackageDir: pkgDir,
		Config:     cfg,
		DryRun:     opts.dryRun,
	})
	if err != nil {
		if !opts.json {
			describeError(err)
		}
		return err
	}
	prog.done(fmt.Sprintf("Resolved %d packages", len(res.Report.Resolved)))

	rep := report.NewSync(res.Package, res.Manifest, opts.dryRun, res.Report)
	if opts.output != "" {
		if err := report.WriteJSONFile(opts.output, rep); err != nil {
			return err
		}
	}
	if opts.json {
		return report.WriteJSON(stdout, rep)
	}
	printSync(rep)
	return nil
}

func printSync(rep *report.Sync) {
	fmt.Fprintln(stdout, StyleTitle.Render(rep.Package)+" "+StyleDim.Render(rep.RunID))

	switch {
	case !rep.Changed:
		printSuccess("Dependencies up to date")
	case rep.DryRun:
		printWarning("%d to add, %d to update (dry run)", len(rep.Added), len(rep.Updated))
	default:
		printSuccess("Updated dependencies: %d added, %d updated", len(rep.Added), len(rep.Updated))
		printFile(rep.Manifest)
	}
	printChanges(rep.SyncReport)

	if len(rep.Skipped) > 0 {
		printInfo("%d references with no owning package", len(rep.Skipped))
		for _, name := range rep.Skipped {
			printDetail("%s", name)
		}
	}
	for _, note := range rep.Notes {
		printWarning("%s", note)
	}
	if rep.DryRun && rep.Changed {
		printNextStep("Apply", "pkgwarden sync")
	}
}
