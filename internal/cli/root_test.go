package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NoahCardoza/iloom-cli-sub005/internal/model"
)

// setJSONOutput flips the global --json flag for the duration of a test.
func setJSONOutput(t *testing.T, on bool) {
	t.Helper()
	prev := jsonOutput
	jsonOutput = on
	t.Cleanup(func() { jsonOutput = prev })
}

// TestExitCodeFor verifies that error kinds survive wrapping and map to
// distinct exit codes.
func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want model.ExitCode
	}{
		{"plain error", errors.New("boom"), model.ExitGeneralError},
		{"conflict", model.NewError(model.KindConflictDetected, "x"), model.ExitConflict},
		{"wrapped not found", fmt.Errorf("finish: %w", model.NewError(model.KindWorktreeNotFound, "x")), model.ExitWorktreeNotFound},
		{"cancelled", model.NewError(model.KindCancelled, "x"), model.ExitUserCancelled},
		{"removal blocked", model.NewError(model.KindRemovalBlocked, "x"), model.ExitRemovalBlocked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCodeFor(tt.err))
		})
	}
}

func TestPrintError_Text(t *testing.T) {
	setJSONOutput(t, false)

	var buf bytes.Buffer
	printError(&buf, &model.Error{
		Kind:         model.KindConflictDetected,
		Message:      "merge conflicts detected",
		Files:        []string{"a.ts"},
		Instructions: []string{"git rebase --continue"},
	})

	out := buf.String()
	assert.Contains(t, out, "Error: merge conflicts detected")
	assert.Contains(t, out, "  - a.ts")
	assert.Contains(t, out, "git rebase --continue")
}

// TestPrintError_JSON verifies the structured envelope, including the
// files and recovery commands a script needs.
func TestPrintError_JSON(t *testing.T) {
	setJSONOutput(t, true)

	var buf bytes.Buffer
	printError(&buf, &model.Error{
		Kind:         model.KindConflictDetected,
		Message:      "merge conflicts detected",
		Err:          errors.New("exit status 1"),
		Files:        []string{"a.ts"},
		Instructions: []string{"git rebase --abort"},
	})

	var decoded errorJSON
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "conflict-detected", decoded.Error.Kind)
	assert.Equal(t, "merge conflicts detected", decoded.Error.Message)
	assert.Equal(t, "exit status 1", decoded.Error.Detail)
	assert.Equal(t, []string{"a.ts"}, decoded.Error.Files)
	assert.Equal(t, []string{"git rebase --abort"}, decoded.Error.Instructions)
}

func TestPrintError_JSONPlainError(t *testing.T) {
	setJSONOutput(t, true)

	var buf bytes.Buffer
	printError(&buf, errors.New("specify at least one worktree"))

	var decoded errorJSON
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "specify at least one worktree", decoded.Error.Message)
}

// TestNewRootCommand verifies that every subcommand is registered and the
// global flags exist.
func TestNewRootCommand(t *testing.T) {
	root := NewRootCommand()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"list", "find", "create", "rebase", "finish", "cleanup", "remote-status", "remove-placeholder"} {
		assert.Contains(t, names, want)
	}
	for _, flag := range []string{"json", "verbose", "repo"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}
}

func TestCleanupRequiresTargets(t *testing.T) {
	root := NewRootCommand()
	root.SetArgs([]string{"cleanup"})
	root.SetOut(&bytes.Buffer{})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--merged")
}
