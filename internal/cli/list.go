// Package cli: list.go implements the "iloom list" command.
//
// The list command prints every worktree of the repository as reported by
// `git worktree list --porcelain`, as a text table, JSON or YAML.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/NoahCardoza/iloom-cli-sub005/internal/model"
)

// listFlags holds the flag values for the list command.
type listFlags struct {
	// yaml switches the output to YAML. --json takes precedence.
	yaml bool
}

// NewListCommand creates the "list" cobra command.
func NewListCommand() *cobra.Command {
	flags := &listFlags{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all worktrees of the repository",
		Long: `List every worktree (loom) of the repository with its branch,
commit and state. The first entry is the main worktree.

Examples:
  iloom list
  iloom list --json
  iloom list --yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			return runList(cmd.Context(), a, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.yaml, "yaml", false, "Output in YAML format")

	return cmd
}

// listResult is the structured output of the list command.
type listResult struct {
	Worktrees []model.Worktree `json:"worktrees" yaml:"worktrees"`
}

func runList(ctx context.Context, a *app, flags *listFlags) error {
	worktrees, err := a.registry.List(ctx, a.root, a.settings.MainBranch)
	if err != nil {
		return err
	}
	a.logger.Debug("listed worktrees", "count", len(worktrees))

	// An empty slice renders as [] instead of null.
	result := listResult{Worktrees: make([]model.Worktree, 0, len(worktrees))}
	result.Worktrees = append(result.Worktrees, worktrees...)

	switch {
	case IsJSONOutput():
		return printJSON(a.stdout, result)
	case flags.yaml:
		return printYAML(a.stdout, result)
	default:
		printListText(a.stdout, worktrees, a.current)
		return nil
	}
}

// printListText prints a fixed-width table. The worktree the command was
// started in is marked with "*".
func printListText(w io.Writer, worktrees []model.Worktree, current string) {
	if len(worktrees) == 0 {
		fmt.Fprintln(w, "No worktrees found.")
		return
	}

	st := newStyles(w)
	fmt.Fprintln(w, st.header.Render(fmt.Sprintf("  %s %-9s %-12s %s", pad("BRANCH", 30), "COMMIT", "STATE", "PATH")))
	for _, wt := range worktrees {
		marker, branch := " ", pad(wt.Branch, 30)
		if samePathString(wt.Path, current) {
			marker, branch = st.current.Render("*"), st.current.Render(branch)
		}
		state := fmt.Sprintf("%-12s", worktreeState(wt))
		if wt.Prunable || wt.Locked {
			state = st.warn.Render(state)
		}
		fmt.Fprintf(w, "%s %s %s %s %s\n",
			marker, branch, st.dim.Render(fmt.Sprintf("%-9s", shortCommit(wt.Commit))), state, wt.Path)
	}
}

// worktreeState summarizes the flags of a worktree in one word.
func worktreeState(wt model.Worktree) string {
	switch {
	case wt.Bare:
		return "bare"
	case wt.Prunable:
		return "prunable"
	case wt.Locked:
		return "locked"
	case wt.Detached:
		return "detached"
	default:
		return "-"
	}
}

func shortCommit(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	if sha == "" {
		return "-"
	}
	return sha
}

// printYAML writes v as YAML with 2-space indentation.
func printYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return enc.Close()
}
