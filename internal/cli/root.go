// Package cli implements the cobra-based CLI commands for iloom.
//
// Each subcommand (list, find, create, rebase, finish, cleanup,
// remote-status, remove-placeholder) is defined in its own file within
// this package. This file defines the root command that serves as the
// parent for all subcommands and handles global flags and exit codes.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/NoahCardoza/iloom-cli-sub005/internal/model"
)

// Global flag variables shared across all subcommands.
// These are bound to cobra persistent flags on the root command,
// which makes them available to every subcommand automatically.
var (
	// jsonOutput switches every command to structured JSON on stdout.
	jsonOutput bool

	// verbose lowers the log level to debug.
	verbose bool

	// repoPath is the directory commands run against (default: cwd).
	repoPath string
)

// Version, Commit and Date are set at build time via ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// NewRootCommand creates and configures the root cobra command.
//
// The root command itself does not perform any action; it only provides
// help text and global flags.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "iloom",
		Short: "Isolated git worktree workspaces for parallel development",
		Long: `iloom manages one git worktree ("loom") per issue or pull request.

Workspaces are found by issue number, PR number or branch name, kept in
sync with the trunk branch by rebasing, merged back with fast-forward
merges only, and cleaned up without ever deleting unpushed work.`,

		// Errors are printed by Execute (text or JSON based on --json).
		SilenceUsage:  true,
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&repoPath, "repo", "C", "", "Run as if started in this directory")

	rootCmd.AddCommand(NewListCommand())
	rootCmd.AddCommand(NewFindCommand())
	rootCmd.AddCommand(NewCreateCommand())
	rootCmd.AddCommand(NewRebaseCommand())
	rootCmd.AddCommand(NewFinishCommand())
	rootCmd.AddCommand(NewCleanupCommand())
	rootCmd.AddCommand(NewRemoteStatusCommand())
	rootCmd.AddCommand(NewRemovePlaceholderCommand())

	return rootCmd
}

// Execute runs the root command and handles exit codes.
//
// *model.Error values anywhere in the chain carry their kind, which maps
// to a process exit code; other errors exit with code 1.
func Execute(rootCmd *cobra.Command) {
	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(int(exitCodeFor(err)))
	}
}

func exitCodeFor(err error) model.ExitCode {
	var modelErr *model.Error
	if errors.As(err, &modelErr) {
		return modelErr.Kind.ExitCode()
	}
	return model.ExitGeneralError
}

// errorJSON is the JSON error envelope written to stderr with --json.
type errorJSON struct {
	Error struct {
		Kind         string   `json:"kind"`
		Message      string   `json:"message"`
		Detail       string   `json:"detail,omitempty"`
		Files        []string `json:"files,omitempty"`
		Instructions []string `json:"instructions,omitempty"`
	} `json:"error"`
}

// printError writes err in the format selected by --json. stdout stays
// reserved for successful command output.
func printError(w io.Writer, err error) {
	if !jsonOutput {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}

	var out errorJSON
	out.Error.Kind = string(model.KindOf(err))
	out.Error.Message = err.Error()
	var modelErr *model.Error
	if errors.As(err, &modelErr) {
		out.Error.Message = modelErr.Message
		if modelErr.Err != nil {
			out.Error.Detail = modelErr.Err.Error()
		}
		out.Error.Files = modelErr.Files
		out.Error.Instructions = modelErr.Instructions
	}
	data, _ := json.MarshalIndent(out, "", "  ")
	fmt.Fprintln(w, string(data))
}

// newLogger returns the process logger: warnings and up unless --verbose
// is set. A terminal gets text; piped stderr or --json gets JSON lines.
func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	options := &slog.HandlerOptions{Level: level}
	if jsonOutput || !isTerminal(w) {
		return slog.New(slog.NewJSONHandler(w, options))
	}
	return slog.New(slog.NewTextHandler(w, options))
}

// IsJSONOutput returns whether the --json flag is set.
func IsJSONOutput() bool {
	return jsonOutput
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
