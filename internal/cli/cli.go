// Package cli implements the pkgwarden command-line interface.
//
// # Commands
//
//   - validate: check that a package's assets only reach allowed content
//   - sync: add the packages a package's modules reference to its manifest
//   - index: list which installed package owns each module
//   - release: commit and tag a package version with git
//   - config: print or initialize pkgwarden.toml
//   - cache: manage the asset parse cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. The logger is
// attached to the command context and handed to the pipeline runner.
package cli

import (
	stderrors "errors"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/pkgwarden/pkg/buildinfo"
	"github.com/matzehuels/pkgwarden/pkg/cache"
	"github.com/matzehuels/pkgwarden/pkg/config"
	"github.com/matzehuels/pkgwarden/pkg/errors"
	"github.com/matzehuels/pkgwarden/pkg/observability"
	"github.com/matzehuels/pkgwarden/pkg/pipeline"
)

const appName = "pkgwarden"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// ErrValidationFailed is returned by validate when the run completed but the
// package did not pass.
var ErrValidationFailed = stderrors.New("validation failed")

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance logging to w. Stage and cache events are
// logged at debug level.
func New(w io.Writer, level log.Level) *CLI {
	logger := newLogger(w, level)
	hooks := observability.NewLogHooks(logger)
	observability.SetPipelineHooks(hooks)
	observability.SetCacheHooks(hooks)
	return &CLI{Logger: logger}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "pkgwarden keeps embedded packages self-contained",
		Long:         `pkgwarden checks that an embedded package only references assets it is allowed to reach and keeps the package manifest's dependency list in step with the modules its code references.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.validateCommand())
	root.AddCommand(c.syncCommand())
	root.AddCommand(c.indexCommand())
	root.AddCommand(c.releaseCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(noCache bool) *pipeline.Runner {
	return pipeline.NewRunner(newCache(noCache, c.Logger), c.Logger)
}

// newCache opens the user cache, falling back to no cache when it is
// unavailable.
func newCache(noCache bool, logger *log.Logger) cache.Cache {
	if noCache {
		return cache.NewNullCache()
	}
	dir, err := cache.DefaultDir()
	if err != nil {
		logger.Debug("cache disabled", "err", err)
		return cache.NewNullCache()
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		logger.Debug("cache disabled", "err", err)
		return cache.NewNullCache()
	}
	return fc
}

// =============================================================================
// Paths & Config
// =============================================================================

// projectFor returns project, or the grandparent of pkgDir when project is
// empty.
func projectFor(pkgDir, project string) string {
	if project != "" {
		return project
	}
	abs, err := filepath.Abs(pkgDir)
	if err != nil {
		return filepath.Dir(filepath.Dir(pkgDir))
	}
	return filepath.Dir(filepath.Dir(abs))
}

// loadConfig reads path when set and otherwise discovers pkgwarden.toml in
// the project directory.
func (c *CLI) loadConfig(path, projectDir string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	cfg, found, err := config.Discover(projectDir)
	if err != nil {
		return nil, err
	}
	if found != "" {
		c.Logger.Debug("loaded config", "path", found)
	}
	return cfg, nil
}

// packageArg returns the package directory argument, defaulting to ".".
func packageArg(args []string) string {
	if len(args) == 0 {
		return "."
	}
	return args[0]
}

// describeError prints an error with the details a user needs to act on it.
func describeError(err error) {
	printError("%s", errors.UserMessage(err))
	var se *errors.SubprocessError
	if stderrors.As(err, &se) {
		if se.Stdout != "" {
			printDetail("stdout: %s", se.Stdout)
		}
		if se.Stderr != "" {
			printDetail("stderr: %s", se.Stderr)
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
