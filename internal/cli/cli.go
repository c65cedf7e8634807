// Package cli implements the peergraph command-line interface.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/peergraph/pkg/buildinfo"
	"github.com/matzehuels/peergraph/pkg/cache"
	"github.com/matzehuels/peergraph/pkg/config"
	"github.com/matzehuels/peergraph/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

const appName = "peergraph"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	Config *config.Config

	configPath string
	verbose    bool
	stdout     io.Writer
}

// New creates a new CLI instance with a default logger. Configuration is
// loaded when a command runs.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Config: config.Default(),
		stdout: os.Stdout,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Peergraph builds peer-dependency-aware install graphs",
		Long: `Peergraph computes the dependency graph a package manager would install from a set of
resolved manifests, duplicating packages where their peer dependencies resolve differently.`,
		Version:           buildinfo.Version,
		SilenceUsage:      true,
		PersistentPreRunE: c.loadConfig,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default ./"+config.FileName+")")

	root.AddCommand(c.buildCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.versionCommand())
	root.AddCommand(c.completionCommand())

	return root
}

func (c *CLI) loadConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.Config = cfg

	level, _ := cfg.LogLevel()
	if c.verbose {
		level = LogDebug
	}
	c.SetLogLevel(level)
	if cfg.Source != "" {
		c.Logger.Debug("loaded config", "path", cfg.Source)
	}
	return nil
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner backed by the configured cache.
func (c *CLI) newRunner(ctx context.Context, noCache bool, keyer cache.Keyer) (*pipeline.Runner, error) {
	opts := c.Config.CacheOptions()
	if noCache {
		opts.Backend = cache.BackendNone
	}
	store, err := cache.Open(ctx, opts)
	if err != nil {
		return nil, err
	}
	c.Logger.Debug("cache", "backend", opts.Backend)

	r := pipeline.NewRunner(store, keyer, c.Logger)
	r.GraphTTL = c.Config.Cache.TTL.Duration
	return r, nil
}
