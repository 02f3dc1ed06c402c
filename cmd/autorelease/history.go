package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/artpar/autorelease/internal/core/domain"
	"github.com/artpar/autorelease/internal/core/planner"
	"github.com/artpar/autorelease/internal/shell/store"
)

// HistoryOptions holds history flags.
type HistoryOptions struct {
	Limit  int
	Offset int
	Status string
}

// RunDetail is a run together with its steps.
type RunDetail struct {
	Run   domain.Run    `json:"run" yaml:"run"`
	Steps []domain.Step `json:"steps" yaml:"steps"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded release runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryList(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", store.DefaultListOptions().Limit, "maximum number of runs")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "number of runs to skip")
	cmd.Flags().StringVar(&opts.Status, "status", "", "only runs with this status (running|succeeded|failed|noop)")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one release run and its steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryShow(cmd, rootOpts, args[0])
		},
	})

	return cmd
}

func openRequiredHistory(rootOpts *RootOptions) (store.Store, error) {
	history, err := rootOpts.openHistory()
	if err != nil {
		return nil, err
	}
	if history == nil {
		return nil, WrapExitError(ExitConfigError, "release history is disabled", nil)
	}
	return history, nil
}

func runHistoryList(cmd *cobra.Command, rootOpts *RootOptions, opts *HistoryOptions) error {
	status := domain.RunStatus(opts.Status)
	switch status {
	case "", domain.RunRunning, domain.RunSucceeded, domain.RunFailed, domain.RunNoop:
	default:
		return WrapExitError(ExitConfigError, "invalid flag", fmt.Errorf("%w: %q", domain.ErrInvalidRunStatus, opts.Status))
	}

	history, err := openRequiredHistory(rootOpts)
	if err != nil {
		return err
	}
	defer history.Close()

	runs, err := history.ListRuns(cmd.Context(), store.ListOptions{
		Limit:  opts.Limit,
		Offset: opts.Offset,
		Status: status,
	})
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list runs", err)
	}

	w := cmd.OutOrStdout()
	if rootOpts.format != planner.FormatText {
		if runs == nil {
			runs = []domain.Run{}
		}
		return writeValue(w, rootOpts.format, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "no release runs recorded")
		return nil
	}
	return writeRunTable(w, runs)
}

func runHistoryShow(cmd *cobra.Command, rootOpts *RootOptions, id string) error {
	history, err := openRequiredHistory(rootOpts)
	if err != nil {
		return err
	}
	defer history.Close()

	run, err := history.GetRun(cmd.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return WrapExitError(ExitConfigError, "unknown run "+id, err)
		}
		return WrapExitError(ExitFailure, "failed to read run", err)
	}
	steps, err := history.ListSteps(cmd.Context(), id)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read steps", err)
	}
	if steps == nil {
		steps = []domain.Step{}
	}

	w := cmd.OutOrStdout()
	if rootOpts.format != planner.FormatText {
		return writeValue(w, rootOpts.format, RunDetail{Run: *run, Steps: steps})
	}

	fmt.Fprintf(w, "run:      %s\n", run.ID)
	fmt.Fprintf(w, "status:   %s\n", runStatus(*run))
	fmt.Fprintf(w, "commit:   %s (%s)\n", run.Commit, run.Branch)
	fmt.Fprintf(w, "started:  %s\n", run.StartedAt.Format(time.RFC3339))
	if run.FinishedAt != nil {
		fmt.Fprintf(w, "finished: %s\n", run.FinishedAt.Format(time.RFC3339))
	}
	if run.Message != "" {
		fmt.Fprintf(w, "message:  %s\n", run.Message)
	}
	fmt.Fprintln(w, "steps:")
	if len(steps) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, s := range steps {
		line := fmt.Sprintf("  %d. %-7s %s  %s", s.Seq, s.Kind, s.Target, s.Status)
		if s.Message != "" {
			line += ": " + s.Message
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

func writeRunTable(w io.Writer, runs []domain.Run) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tBRANCH\tCOMMIT\tTAGS")
	for _, r := range runs {
		tags := strings.Join(r.Plan.Tags(), ",")
		if tags == "" {
			tags = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.StartedAt.Format(time.RFC3339),
			runStatus(r),
			r.Branch,
			shortCommit(r.Commit),
			tags,
		)
	}
	return tw.Flush()
}

func runStatus(r domain.Run) string {
	if r.DryRun {
		return string(r.Status) + " (dry run)"
	}
	return string(r.Status)
}

func shortCommit(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
