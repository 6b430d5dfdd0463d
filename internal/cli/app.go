package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/NoahCardoza/iloom-cli-sub005/internal/agent"
	"github.com/NoahCardoza/iloom-cli-sub005/internal/config"
	"github.com/NoahCardoza/iloom-cli-sub005/internal/git"
	"github.com/NoahCardoza/iloom-cli-sub005/internal/merge"
	"github.com/NoahCardoza/iloom-cli-sub005/internal/model"
	"github.com/NoahCardoza/iloom-cli-sub005/internal/remote"
	"github.com/NoahCardoza/iloom-cli-sub005/internal/worktree"
)

// app bundles the components one command invocation needs. It is built
// fresh for every command from the repository the user is standing in.
type app struct {
	// root is the main worktree of the repository. Settings are read from
	// it and repository-wide git queries run in it.
	root string

	// current is the top level of the worktree the command was started in.
	current string

	settings *config.Settings
	runner   git.Runner
	checker  *remote.Checker
	registry *worktree.Registry
	engine   *merge.Engine
	logger   *slog.Logger

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// newApp locates the repository from --repo (or the working directory),
// loads its settings and wires the components together.
func newApp(ctx context.Context) (*app, error) {
	logger := newLogger(os.Stderr)

	dir := repoPath
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to determine working directory: %w", err)
		}
		dir = wd
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}

	// Settings decide the timeouts, so the first queries use defaults.
	bootstrap := git.NewCLI(git.WithLogger(logger))
	current, err := git.TopLevel(ctx, bootstrap, dir)
	if err != nil {
		return nil, model.WrapError(model.KindCommandFailed, err, "%s is not inside a git worktree", dir)
	}
	worktrees, err := worktree.NewRegistry(bootstrap, nil).List(ctx, current, "")
	if err != nil {
		return nil, err
	}
	root := current
	if len(worktrees) > 0 {
		root = worktrees[0].Path
	}

	settings, err := config.Load(root)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	for _, src := range settings.Sources {
		logger.Debug("loaded settings", "file", src)
	}

	return wire(root, current, settings, logger, os.Stdin, os.Stdout, os.Stderr), nil
}

// wire builds the component graph for an already located repository.
func wire(root, current string, settings *config.Settings, logger *slog.Logger, stdin io.Reader, stdout, stderr io.Writer) *app {
	runner := git.NewCLI(
		git.WithTimeouts(settings.CommandTimeout(), settings.NetworkTimeout()),
		git.WithLogger(logger),
	)
	checker := remote.NewChecker(runner,
		remote.WithRemote(settings.Remote),
		remote.WithLogger(logger),
	)
	registry := worktree.NewRegistry(runner, checker, worktree.WithLogger(logger))
	engine := merge.NewEngine(runner, registry,
		merge.WithResolver(newResolver(settings, logger, stdin, stdout, stderr)),
		merge.WithConfirmer(&promptConfirmer{in: stdin, out: stderr}),
		merge.WithLogger(logger),
	)

	return &app{
		root:     root,
		current:  current,
		settings: settings,
		runner:   runner,
		checker:  checker,
		registry: registry,
		engine:   engine,
		logger:   logger,
		stdin:    stdin,
		stdout:   stdout,
		stderr:   stderr,
	}
}

// newResolver returns the claude-backed conflict resolver, or
// merge.NoResolver when the agent is disabled or cannot be found.
func newResolver(settings *config.Settings, logger *slog.Logger, stdin io.Reader, stdout, stderr io.Writer) merge.ConflictResolver {
	if settings.Agent.IsDisabled() {
		return merge.NoResolver{}
	}
	path, err := agent.NewClaudeFinder(settings.Agent.Command, agent.WithFinderLogger(logger)).Find()
	if err != nil {
		logger.Debug("conflict resolution agent unavailable", "error", err)
		return merge.NoResolver{}
	}
	return agent.NewClaudeResolver(path,
		agent.WithModel(settings.Agent.Model),
		agent.WithIO(stdin, stdout, stderr),
		agent.WithLogger(logger),
	)
}

// syncOptions returns the engine options for this repository.
func (a *app) syncOptions(force, dryRun bool) model.SyncOptions {
	opts := a.settings.SyncOptions()
	opts.Force = force
	opts.DryRun = dryRun
	opts.RepoRoot = a.root
	return opts
}

// target resolves the worktree a command acts on: the identifier when one
// is given, otherwise the worktree the command was started in.
func (a *app) target(ctx context.Context, args []string) (model.Worktree, error) {
	if len(args) > 0 && args[0] != "" {
		return a.registry.Resolve(ctx, a.root, args[0])
	}
	return a.registry.FindByPath(ctx, a.root, a.current)
}
