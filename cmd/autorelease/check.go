package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/artpar/autorelease/internal/core/domain"
	"github.com/artpar/autorelease/internal/core/planner"
)

// CheckResult is the machine-readable outcome of check.
type CheckResult struct {
	Valid      bool                     `json:"valid" yaml:"valid"`
	Stage      planner.Stage            `json:"stage,omitempty" yaml:"stage,omitempty"`
	Error      string                   `json:"error,omitempty" yaml:"error,omitempty"`
	Publish    []string                 `json:"publish" yaml:"publish"`
	Tags       []string                 `json:"tags" yaml:"tags"`
	Changelogs domain.ChangelogTopology `json:"changelogs,omitempty" yaml:"changelogs,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate that the workspace can be released",
		Long: `Run the planning pipeline and report whether it succeeds.

Fails on invalid versions, ambiguous tags, dependency cycles, packages that
depend on unpublishable members, and missing changelog entries. Exits 1 on
failure so it can gate pull requests.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			result, err := opts.loadPlan(cmd.Context())

			check := CheckResult{Valid: err == nil, Publish: []string{}, Tags: []string{}}
			if err != nil {
				var stageErr *planner.StageError
				if !errors.As(err, &stageErr) {
					return err
				}
				check.Stage = stageErr.Stage
				check.Error = stageErr.Err.Error()
			} else {
				for _, g := range result.Plan.Publish {
					check.Publish = append(check.Publish, g.ID())
				}
				check.Tags = result.Plan.Tags()
				check.Changelogs = result.Plan.Changelogs
			}

			if opts.format == planner.FormatText {
				if check.Valid {
					if len(check.Publish) == 0 {
						fmt.Fprintln(w, "ok: no packages need publishing")
					} else {
						fmt.Fprintf(w, "ok: %d package(s) to publish\n", len(check.Publish))
					}
				}
			} else if werr := writeValue(w, opts.format, check); werr != nil {
				return werr
			}
			return err
		},
	}
}
