package cargo

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/artpar/autorelease/internal/shell/command"
)

// RegistryTokenEnv is the environment variable cargo reads the registry token from.
const RegistryTokenEnv = "CARGO_REGISTRY_TOKEN"

// Options configures cargo invocations.
type Options struct {
	// Args are appended to check, build, test and doc.
	Args []string
	// DocFlags is passed to rustdoc through RUSTDOCFLAGS.
	DocFlags string
	// Sudo runs tests under sudo.
	Sudo bool
	// Token authenticates publish.
	Token string
}

// Runner drives the cargo CLI in one workspace.
type Runner struct {
	runner command.Runner
	dir    string
	opts   Options
	logger *slog.Logger
}

// NewRunner creates a cargo runner for the workspace at dir.
func NewRunner(runner command.Runner, dir string, opts Options, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		runner: runner,
		dir:    dir,
		opts:   opts,
		logger: logger.With("component", "cargo"),
	}
}

func (r *Runner) cargo(args ...string) command.Command {
	return command.New("cargo", args...).In(r.dir)
}

func (r *Runner) withArgs(args ...string) []string {
	return append(args, r.opts.Args...)
}

// Check runs `cargo check` over the workspace.
func (r *Runner) Check(ctx context.Context) error {
	return r.run(ctx, "check", r.cargo(r.withArgs("check", "--workspace", "--all-targets")...))
}

// Build compiles the workspace including test binaries.
func (r *Runner) Build(ctx context.Context) error {
	return r.run(ctx, "build", r.cargo(r.withArgs("test", "--workspace", "--no-run")...))
}

// Doc builds documentation, failing on rustdoc warnings when DocFlags asks to.
func (r *Runner) Doc(ctx context.Context) error {
	cmd := r.cargo(r.withArgs("doc", "--workspace", "--no-deps")...)
	if r.opts.DocFlags != "" {
		cmd = cmd.WithEnv("RUSTDOCFLAGS=" + r.opts.DocFlags)
	}
	return r.run(ctx, "doc", cmd)
}

// Test runs the test suite, under sudo when configured.
func (r *Runner) Test(ctx context.Context) error {
	args := r.withArgs("test", "--workspace")
	cmd := r.cargo(args...)
	if r.opts.Sudo {
		cmd = command.New("sudo", append([]string{"-E", "cargo"}, args...)...).In(r.dir)
	}
	return r.run(ctx, "test", cmd)
}

// Publish uploads one package to the registry. Verification is skipped
// because the workspace was built and tested beforehand.
func (r *Runner) Publish(ctx context.Context, pkg string) error {
	cmd := r.cargo("publish", "--no-verify", "-p", pkg)
	if r.opts.Token != "" {
		cmd = cmd.WithEnv(RegistryTokenEnv + "=" + r.opts.Token)
	}
	r.logger.Info("publishing package", "package", pkg)
	return r.run(ctx, "publish "+pkg, cmd)
}

func (r *Runner) run(ctx context.Context, what string, cmd command.Command) error {
	if err := r.runner.Run(ctx, cmd); err != nil {
		return fmt.Errorf("cargo %s: %w", what, err)
	}
	return nil
}
