package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/artpar/autorelease/internal/core/manifest"
	"github.com/artpar/autorelease/internal/core/planner"
	"github.com/artpar/autorelease/internal/shell/command"
	"github.com/artpar/autorelease/internal/shell/git"
	"github.com/artpar/autorelease/internal/shell/release"
	"github.com/artpar/autorelease/internal/shell/store"
)

// Environment variables never passed on to cargo, git or build scripts.
var secretEnv = []string{
	"CRATES_IO_TOKEN",
	"GITHUB_TOKEN",
	"AUTORELEASE_REGISTRY_TOKEN",
	"AUTORELEASE_GITHUB_TOKEN",
	"CARGO_REGISTRY_TOKEN",
}

// RootOptions holds global flags and the state every subcommand shares.
type RootOptions struct {
	ConfigPath string
	Dir        string
	Format     string
	Verbose    bool

	format planner.Format
	config *Config
	logger *slog.Logger
	runner command.Runner
}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autorelease",
		Short: "Publish a cargo workspace in dependency order",
		Long: `autorelease finds the workspace packages whose versions have no release tag
yet, orders them so dependencies are published first, checks their changelogs,
and tags and publishes them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return WrapExitError(ExitConfigError, "invalid flag", err)
	})

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to config file")
	cmd.PersistentFlags().StringVarP(&opts.Dir, "dir", "C", ".", "workspace directory")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewPlanCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewCICommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

func (o *RootOptions) setup(cmd *cobra.Command) error {
	format, err := planner.ParseFormat(o.Format)
	if err != nil {
		return WrapExitError(ExitConfigError, "invalid flag", err)
	}
	o.format = format

	cfg, err := LoadConfig(o.ConfigPath)
	if err != nil {
		return WrapExitError(ExitConfigError, "configuration error", err)
	}
	o.config = cfg
	o.logger = SetupLogger(cfg, cmd.ErrOrStderr(), o.Verbose)

	if o.runner == nil {
		runner := command.NewExecRunner(o.logger, secretEnv...)
		runner.Stdout = cmd.OutOrStdout()
		runner.Stderr = cmd.ErrOrStderr()
		o.runner = runner
	}
	return nil
}

// loadPlan computes the release plan for the configured workspace.
func (o *RootOptions) loadPlan(ctx context.Context) (*planner.Result, error) {
	result, err := release.LoadPlan(ctx, o.Dir, git.NewClient(o.runner, o.Dir), manifest.Options{
		StrictMetadata: o.config.Release.StrictMetadata,
	})
	if err != nil {
		return nil, planExitError(err)
	}
	return result, nil
}

// openHistory opens the release history, or returns nil when it is disabled.
// Relative paths are resolved against the workspace directory.
func (o *RootOptions) openHistory() (store.Store, error) {
	if !o.config.History.Enabled {
		return nil, nil
	}
	dsn := o.historyPath()
	if dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, WrapExitError(ExitConfigError, "failed to create history directory", err)
		}
	}
	s, err := store.NewSQLiteStore(dsn)
	if err != nil {
		return nil, WrapExitError(ExitConfigError, "failed to open release history", err)
	}
	return s, nil
}

// historyPath returns the history DSN with relative paths joined to the
// workspace directory.
func (o *RootOptions) historyPath() string {
	dsn := o.config.History.DSN
	if dsn == ":memory:" || filepath.IsAbs(dsn) {
		return dsn
	}
	return filepath.Join(o.Dir, dsn)
}

// historyIgnorePaths returns the workspace-relative paths the release
// history writes to, so creating it does not dirty the worktree. A history
// kept in its own directory ignores the whole directory.
func (o *RootOptions) historyIgnorePaths() []string {
	if !o.config.History.Enabled || o.config.History.DSN == ":memory:" {
		return nil
	}
	dir, err := filepath.Abs(o.Dir)
	if err != nil {
		return nil
	}
	dsn, err := filepath.Abs(o.historyPath())
	if err != nil {
		return nil
	}
	rel, err := filepath.Rel(dir, dsn)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil
	}
	if parent := filepath.Dir(rel); parent != "." {
		return []string{parent}
	}
	return []string{rel, rel + "-journal"}
}

// planExitError maps planning failures to exit codes: a workspace that
// cannot be released is a failure, anything that stopped us from looking
// at it is a configuration error.
func planExitError(err error) error {
	var stageErr *planner.StageError
	if errors.As(err, &stageErr) {
		return WrapExitError(ExitFailure, "cannot release", err)
	}
	return WrapExitError(ExitConfigError, "failed to read workspace", err)
}
