package main

import (
	"github.com/spf13/cobra"

	"github.com/artpar/autorelease/internal/core/planner"
)

// NewPlanCommand creates the plan command.
func NewPlanCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show what would be published, in which order, under which tags",
		Long: `Compute the release plan without side effects.

Reads Cargo.toml manifests, CHANGELOG.md files and git tags, and prints the
packages to publish in dependency order along with the tags and release notes
that would be created.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := opts.loadPlan(cmd.Context())
			if err != nil {
				return err
			}
			out, err := planner.Render(result.Plan, opts.format)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to render plan", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
