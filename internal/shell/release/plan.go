package release

import (
	"context"
	"fmt"

	"github.com/artpar/autorelease/internal/core/manifest"
	"github.com/artpar/autorelease/internal/core/planner"
	"github.com/artpar/autorelease/internal/shell/cargo"
	"github.com/artpar/autorelease/internal/shell/changelog"
)

// TagLister lists existing VCS tags.
type TagLister interface {
	Tags(ctx context.Context) ([]string, error)
}

// LoadPlan reads the workspace at dir, its changelogs and the repository's
// tags, and runs the planner over them.
func LoadPlan(ctx context.Context, dir string, tags TagLister, opts manifest.Options) (*planner.Result, error) {
	ws, err := cargo.LoadWorkspace(dir)
	if err != nil {
		return nil, fmt.Errorf("load workspace: %w", err)
	}

	docs, err := changelog.ReadDocuments(ws)
	if err != nil {
		return nil, fmt.Errorf("read changelogs: %w", err)
	}

	existing, err := tags.Tags(ctx)
	if err != nil {
		return nil, err
	}

	return planner.Run(planner.Input{
		Workspace:  ws,
		Tags:       existing,
		Changelogs: docs,
		Options:    opts,
	})
}
