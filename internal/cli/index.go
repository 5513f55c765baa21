package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pkgwarden/pkg/index"
	"github.com/matzehuels/pkgwarden/pkg/pipeline"
	"github.com/matzehuels/pkgwarden/pkg/report"
)

type indexOpts struct {
	config string
	json   bool
}

// indexEntry is one row of the JSON index listing.
type indexEntry struct {
	Module  string `json:"module"`
	Package string `json:"package"`
}

// indexPackage is a scanned package and the directory it was read from,
// relative to the project when possible.
type indexPackage struct {
	ID  string `json:"id"`
	Dir string `json:"dir"`
}

type indexListing struct {
	Modules  []indexEntry   `json:"modules"`
	Packages []indexPackage `json:"packages"`
	Shadowed []index.Shadow `json:"shadowed,omitempty"`
}

func (c *CLI) indexCommand() *cobra.Command {
	var opts indexOpts

	cmd := &cobra.Command{
		Use:   "index [project-dir]",
		Short: "List which installed package owns each module",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runIndex(cmd.Context(), packageArg(args), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.config, "config", "c", "", "config file (default: <project>/pkgwarden.toml)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the index as JSON")

	return cmd
}

func (c *CLI) runIndex(ctx context.Context, projectDir string, opts indexOpts) error {
	cfg, err := c.loadConfig(opts.config, projectDir)
	if err != nil {
		return err
	}
	idx, err := pipeline.NewRunner(nil, loggerFromContext(ctx)).Index(ctx, pipeline.IndexOptions{
		ProjectDir: projectDir,
		Config:     cfg,
	})
	if err != nil {
		return err
	}

	listing := indexListing{Modules: []indexEntry{}, Packages: []indexPackage{}, Shadowed: idx.Shadowed}
	for _, m := range idx.Modules() {
		pkg, _ := idx.Lookup(m)
		listing.Modules = append(listing.Modules, indexEntry{Module: m, Package: pkg})
	}
	base, _ := filepath.Abs(projectDir)
	for _, id := range idx.Packages() {
		dir, _ := idx.PackageDir(id)
		if rel, err := filepath.Rel(base, dir); err == nil {
			dir = filepath.ToSlash(rel)
		}
		listing.Packages = append(listing.Packages, indexPackage{ID: id, Dir: dir})
	}
	if opts.json {
		return report.WriteJSON(stdout, listing)
	}

	fmt.Fprintf(stdout, "%s %s\n",
		StyleTitle.Render("Modules"),
		StyleDim.Render(fmt.Sprintf("%d modules in %d packages", idx.Len(), len(listing.Packages))))
	for _, e := range listing.Modules {
		fmt.Fprintf(stdout, "  %s %s %s\n", StyleValue.Render(e.Module), StyleDim.Render(iconArrow), StyleHighlight.Render(e.Package))
	}
	printNewline()
	fmt.Fprintln(stdout, StyleTitle.Render("Packages"))
	for _, p := range listing.Packages {
		fmt.Fprintf(stdout, "  %s %s\n", StyleHighlight.Render(p.ID), StyleDim.Render(p.Dir))
	}
	for _, s := range idx.Shadowed {
		printWarning("%s is defined by %s and %s; %s wins", s.Module, s.Winner, s.Loser, s.Winner)
	}
	return nil
}
