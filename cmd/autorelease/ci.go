package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/artpar/autorelease/internal/core/planner"
	"github.com/artpar/autorelease/internal/shell/cargo"
	"github.com/artpar/autorelease/internal/shell/github"
	"github.com/artpar/autorelease/internal/shell/release"
)

// CIOptions holds ci flags. Flags override the matching config values only
// when set.
type CIOptions struct {
	DryRun    bool
	CheckOnly bool
	SkipDocs  bool
	Branch    string
}

// NewCICommand creates the ci command.
func NewCICommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CIOptions{}

	cmd := &cobra.Command{
		Use:   "ci",
		Short: "Build, test, and publish unreleased packages",
		Long: `Run the full CI flow.

Computes the release plan, builds and tests the workspace, and on the release
branch publishes every unreleased package in dependency order, creates and
pushes tags, and creates GitHub releases when a token and repository are
configured. Stops at the first failure.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCI(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "record the plan without publishing")
	cmd.Flags().BoolVar(&opts.CheckOnly, "check-only", false, "run cargo check instead of build and test")
	cmd.Flags().BoolVar(&opts.SkipDocs, "skip-docs", false, "skip building documentation")
	cmd.Flags().StringVar(&opts.Branch, "branch", "", "branch to publish from (default from config)")

	return cmd
}

func runCI(cmd *cobra.Command, rootOpts *RootOptions, opts *CIOptions) error {
	cfg := rootOpts.config
	flags := cmd.Flags()
	if flags.Changed("dry-run") {
		cfg.Release.DryRun = opts.DryRun
	}
	if flags.Changed("check-only") {
		cfg.Cargo.CheckOnly = opts.CheckOnly
	}
	if flags.Changed("skip-docs") {
		cfg.Cargo.SkipDocs = opts.SkipDocs
	}
	if opts.Branch != "" {
		cfg.Release.Branch = opts.Branch
	}

	var releases github.Client
	if cfg.GitHub.Enabled() && !cfg.Release.DryRun {
		client, err := github.NewAPIClient(github.Config{
			BaseURL:    cfg.GitHub.APIURL,
			Token:      cfg.GitHub.Token,
			Repository: cfg.GitHub.Repository,
			Timeout:    cfg.GitHub.Timeout,
			RetryMax:   cfg.GitHub.RetryMax,
		}, rootOpts.logger)
		if err != nil {
			return WrapExitError(ExitConfigError, "invalid GitHub configuration", err)
		}
		releases = client
	}

	history, err := rootOpts.openHistory()
	if err != nil {
		return err
	}
	if history != nil {
		defer history.Close()
	}

	pipeline := release.NewPipeline(release.Config{
		Dir:            rootOpts.Dir,
		ReleaseBranch:  cfg.Release.Branch,
		CheckOnly:      cfg.Cargo.CheckOnly,
		SkipDocs:       cfg.Cargo.SkipDocs,
		DryRun:         cfg.Release.DryRun,
		StrictMetadata: cfg.Release.StrictMetadata,
		Cargo: cargo.Options{
			Args:     cfg.Cargo.Args,
			DocFlags: cfg.Cargo.DocFlags,
			Sudo:     cfg.Cargo.Sudo,
			Token:    cfg.Registry.Token,
		},
		IgnorePaths: rootOpts.historyIgnorePaths(),
	}, rootOpts.runner, releases, history, cmd.OutOrStdout(), rootOpts.logger)

	outcome, err := pipeline.Run(cmd.Context())
	if err != nil {
		var stageErr *planner.StageError
		if errors.As(err, &stageErr) {
			return planExitError(err)
		}
		return WrapExitError(ExitFailure, "ci failed", err)
	}

	if rootOpts.format != planner.FormatText {
		return writeValue(cmd.OutOrStdout(), rootOpts.format, outcome)
	}
	if outcome.Run != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "release run %s: %s\n", outcome.Run.ID, outcome.Run.Status)
	}
	return nil
}
