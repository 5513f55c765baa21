package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/matzehuels/pkgwarden/pkg/config"
)

type configOpts struct {
	config string
	init   bool
	force  bool
}

func (c *CLI) configCommand() *cobra.Command {
	var opts configOpts

	cmd := &cobra.Command{
		Use:   "config [project-dir]",
		Short: "Print the effective configuration",
		Long: `Config prints the configuration pkgwarden uses for a project as TOML: the
built-in defaults overlaid with the keys set in <project>/pkgwarden.toml.

With --init the built-in defaults are written to <project>/pkgwarden.toml.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runConfig(cmd.Context(), packageArg(args), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.config, "config", "c", "", "config file (default: <project>/pkgwarden.toml)")
	cmd.Flags().BoolVar(&opts.init, "init", false, "write the default configuration to the project")
	cmd.Flags().BoolVar(&opts.force, "force", false, "overwrite an existing file with --init")

	return cmd
}

func (c *CLI) runConfig(ctx context.Context, projectDir string, opts configOpts) error {
	if opts.init {
		return writeDefaultConfig(filepath.Join(projectDir, config.FileName), opts.force)
	}
	cfg, err := c.loadConfig(opts.config, projectDir)
	if err != nil {
		return err
	}
	return toml.NewEncoder(stdout).Encode(cfg)
}

func writeDefaultConfig(path string, force bool) error {
	if fileExists(path) && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := toml.NewEncoder(f).Encode(config.Default()); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	printSuccess("Wrote default configuration")
	printFile(path)
	return nil
}
