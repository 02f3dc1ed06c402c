// Package git reads and writes repository state through the git CLI.
package git

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/artpar/autorelease/internal/shell/command"
)

// Client runs git in one repository.
type Client struct {
	runner command.Runner
	dir    string
	remote string
}

// NewClient creates a client for the repository at dir, pushing to origin.
func NewClient(runner command.Runner, dir string) *Client {
	return &Client{runner: runner, dir: dir, remote: "origin"}
}

func (c *Client) git(args ...string) command.Command {
	return command.New("git", args...).In(c.dir)
}

// Tags lists every tag in the repository.
func (c *Client) Tags(ctx context.Context) ([]string, error) {
	out, err := c.runner.Output(ctx, c.git("tag", "--list"))
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return lines(out), nil
}

// CurrentBranch returns the checked-out branch, or "HEAD" when detached.
func (c *Client) CurrentBranch(ctx context.Context) (string, error) {
	out, err := c.runner.Output(ctx, c.git("rev-parse", "--abbrev-ref", "HEAD"))
	if err != nil {
		return "", fmt.Errorf("read current branch: %w", err)
	}
	return out, nil
}

// Head returns the commit hash HEAD points at.
func (c *Client) Head(ctx context.Context) (string, error) {
	out, err := c.runner.Output(ctx, c.git("rev-parse", "HEAD"))
	if err != nil {
		return "", fmt.Errorf("read HEAD: %w", err)
	}
	return out, nil
}

// IsClean reports whether the working tree has no changes, and lists the
// changed paths when it does. Paths in exclude are relative to the client's
// directory and never count as changes.
func (c *Client) IsClean(ctx context.Context, exclude ...string) (bool, []string, error) {
	args := []string{"status", "--porcelain"}
	if len(exclude) > 0 {
		args = append(args, "--", ":/")
		for _, p := range exclude {
			args = append(args, ":(exclude)"+filepath.ToSlash(p))
		}
	}
	out, err := c.runner.Output(ctx, c.git(args...))
	if err != nil {
		return false, nil, fmt.Errorf("read status: %w", err)
	}
	changed := lines(out)
	return len(changed) == 0, changed, nil
}

// CreateTag creates a lightweight tag at HEAD.
func (c *Client) CreateTag(ctx context.Context, name string) error {
	if err := c.runner.Run(ctx, c.git("tag", name)); err != nil {
		return fmt.Errorf("create tag %s: %w", name, err)
	}
	return nil
}

// PushTags pushes all tags to the remote.
func (c *Client) PushTags(ctx context.Context) error {
	if err := c.runner.Run(ctx, c.git("push", c.remote, "--tags")); err != nil {
		return fmt.Errorf("push tags: %w", err)
	}
	return nil
}

func lines(out string) []string {
	var result []string
	for _, l := range strings.Split(out, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			result = append(result, l)
		}
	}
	return result
}
