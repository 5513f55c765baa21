package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/pkgwarden/pkg/boundary"
	"github.com/matzehuels/pkgwarden/pkg/pipeline"
	"github.com/matzehuels/pkgwarden/pkg/report"
	"github.com/matzehuels/pkgwarden/pkg/upm"
)

// validateOpts holds the command-line flags for the validate command.
type validateOpts struct {
	project  string // host project directory
	closures string // host-exported closure map
	config   string // explicit pkgwarden.toml
	output   string // JSON report file
	dot      string // DOT file of rejected edges
	svg      string // SVG file of rejected edges
	json     bool   // print the JSON report instead of the summary
	noCache  bool
}

func (c *CLI) validateCommand() *cobra.Command {
	var opts validateOpts

	cmd := &cobra.Command{
		Use:   "validate [package-dir]",
		Short: "Check that a package only references assets it may reach",
		Long: `Validate walks every scannable asset of the package and checks each of
its transitive dependencies. A dependency must live under the package itself
or under a package declared in its dependencies. Dependencies on project-local
content (Assets/) are always rejected.

The asset graph is built from the project on disk unless --closures names a
closure map exported by the host editor.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runValidate(cmd.Context(), packageArg(args), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.project, "project", "p", "", "host project directory (default: two levels above the package)")
	cmd.Flags().StringVar(&opts.closures, "closures", "", "closure map JSON exported by the host ({asset: [deps...]})")
	cmd.Flags().StringVarP(&opts.config, "config", "c", "", "config file (default: <project>/pkgwarden.toml)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write the JSON report to a file")
	cmd.Flags().StringVar(&opts.dot, "dot", "", "write rejected edges as Graphviz DOT")
	cmd.Flags().StringVar(&opts.svg, "svg", "", "render rejected edges to SVG")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the JSON report to stdout")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the asset parse cache")

	return cmd
}

func (c *CLI) runValidate(ctx context.Context, pkgDir string, opts validateOpts) error {
	logger := loggerFromContext(ctx)
	projectDir := projectFor(pkgDir, opts.project)

	cfg, err := c.loadConfig(opts.config, projectDir)
	if err != nil {
		return c.validateFailed(ctx, filepath.Base(pkgDir), opts, err)
	}

	var spinner *Spinner
	if !opts.json && logger.GetLevel() > log.DebugLevel {
		spinner = newSpinnerWithContext(ctx, "Scanning assets...")
		spinner.Start()
	}
	prog := newProgress(logger)
	res, err := c.newRunner(opts.noCache).Validate(ctx, pipeline.ValidateOptions{
		ProjectDir: projectDir,
		PackageDir: pkgDir,
		Closures:   opts.closures,
		Config:     cfg,
	})
	if spinner != nil {
		spinner.Stop()
	}
	if err != nil {
		return c.validateFailed(ctx, filepath.Base(pkgDir), opts, err)
	}
	prog.done(fmt.Sprintf("Validated %d assets", res.ScannedAssets))

	rep := report.NewValidation(res.Package, res.Result)
	if err := writeValidationOutputs(ctx, rep, cfg.Namespaces(), opts); err != nil {
		return err
	}
	if opts.json {
		if err := report.WriteJSON(stdout, rep); err != nil {
			return err
		}
	} else {
		printValidation(rep)
	}

	switch res.Status {
	case boundary.StatusPassed:
		return nil
	case boundary.StatusNoAssets:
		return fmt.Errorf("%w: no scannable assets", ErrValidationFailed)
	default:
		return fmt.Errorf("%w: %d issues", ErrValidationFailed, len(res.Issues))
	}
}

// validateFailed reports a run that ended before producing a result. The
// error report replaces any earlier report file so stale results never
// survive a failed run.
func (c *CLI) validateFailed(ctx context.Context, pkg string, opts validateOpts, err error) error {
	rep := report.FromError(pkg, err)
	if opts.output != "" {
		if werr := report.WriteJSONFile(opts.output, rep); werr != nil {
			loggerFromContext(ctx).Warn("could not write report", "path", opts.output, "err", werr)
		}
	}
	if opts.json {
		_ = report.WriteJSON(stdout, rep)
	} else {
		describeError(err)
	}
	return err
}

func writeValidationOutputs(ctx context.Context, rep *report.Validation, ns upm.Namespaces, opts validateOpts) error {
	if opts.output != "" {
		if err := report.WriteJSONFile(opts.output, rep); err != nil {
			return err
		}
	}
	if opts.dot == "" && opts.svg == "" {
		return nil
	}
	dot := report.ToDOT(rep, ns)
	if opts.dot != "" {
		if err := os.WriteFile(opts.dot, []byte(dot), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", opts.dot, err)
		}
	}
	if opts.svg != "" {
		svg, err := report.RenderSVG(ctx, dot)
		if err != nil {
			return err
		}
		if err := os.WriteFile(opts.svg, svg, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", opts.svg, err)
		}
	}
	return nil
}

func printValidation(rep *report.Validation) {
	name := rep.Package
	if name == "" {
		name = "(unnamed package)"
	}
	fmt.Fprintln(stdout, StyleTitle.Render(name)+" "+StyleDim.Render(rep.RunID))

	switch rep.Status {
	case boundary.StatusPassed:
		printSuccess("Validation passed")
	case boundary.StatusNoAssets:
		printWarning("No scannable assets")
		if rep.Tip != "" {
			printDetail("%s", rep.Tip)
		}
	default:
		printError("Validation failed")
	}
	printScanStats(rep.ScannedAssets, rep.ScannedDependencies, len(rep.Issues))
	if len(rep.Issues) > 0 {
		printNewline()
		printIssues(rep.Issues)
	}
}
