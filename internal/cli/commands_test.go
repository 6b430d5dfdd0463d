package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NoahCardoza/iloom-cli-sub005/internal/config"
	"github.com/NoahCardoza/iloom-cli-sub005/internal/model"
)

// setupTestRepo creates a repository at <tmp>/repo with one commit on
// main and returns its path. The temp dir is resolved so paths compare
// equal to the ones git prints.
func setupTestRepo(t *testing.T) string {
	t.Helper()

	parent, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	dir := filepath.Join(parent, "repo")
	require.NoError(t, os.Mkdir(dir, 0755))

	runTestGit(t, dir, "init")
	runTestGit(t, dir, "config", "user.email", "test@example.com")
	runTestGit(t, dir, "config", "user.name", "Test User")
	runTestGit(t, dir, "config", "commit.gpgsign", "false")
	writeTestFile(t, dir, "README.md", "# Test Repo\n")
	runTestGit(t, dir, "add", ".")
	runTestGit(t, dir, "commit", "-m", "initial commit")
	runTestGit(t, dir, "branch", "-M", "main")

	return dir
}

// runTestGit runs a git command in dir and fails the test immediately if the
// command exits with a non-zero status.
func runTestGit(t *testing.T, dir string, args ...string) string {
	t.Helper()

	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v failed: %s", args, string(output))
	return strings.TrimSpace(string(output))
}

func writeTestFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

// addWorktree creates a linked worktree next to root on a new branch and
// returns its path.
func addWorktree(t *testing.T, root, branch string) string {
	t.Helper()
	path := filepath.Join(filepath.Dir(root), "repo-"+sanitizeBranchName(branch))
	runTestGit(t, root, "worktree", "add", "-b", branch, path)
	return path
}

// commitFile writes name and commits it in dir.
func commitFile(t *testing.T, dir, name, content, message string) {
	t.Helper()
	writeTestFile(t, dir, name, content)
	runTestGit(t, dir, "add", name)
	runTestGit(t, dir, "commit", "-m", message)
}

// newTestApp wires the real components for root with the agent disabled.
// stdin feeds confirmation prompts; stdout is captured.
func newTestApp(t *testing.T, root, stdin string) (*app, *bytes.Buffer) {
	t.Helper()
	settings := config.Defaults()
	disabled := true
	settings.Agent.Disabled = &disabled

	var stdout bytes.Buffer
	a := wire(root, root, settings, slog.New(slog.NewTextHandler(io.Discard, nil)), strings.NewReader(stdin), &stdout, io.Discard)
	return a, &stdout
}

func TestRunList_JSON(t *testing.T) {
	setJSONOutput(t, true)
	root := setupTestRepo(t)
	feat := addWorktree(t, root, "feat/issue-1")
	a, out := newTestApp(t, root, "")

	require.NoError(t, runList(context.Background(), a, &listFlags{}))

	var decoded listResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	require.Len(t, decoded.Worktrees, 2)
	assert.Equal(t, root, decoded.Worktrees[0].Path)
	assert.Equal(t, "main", decoded.Worktrees[0].Branch)
	assert.Equal(t, feat, decoded.Worktrees[1].Path)
	assert.Equal(t, "feat/issue-1", decoded.Worktrees[1].Branch)
}

// TestRunCreateAndFind creates a worktree for a new issue branch and finds
// it again by issue number.
func TestRunCreateAndFind(t *testing.T) {
	setJSONOutput(t, false)
	root := setupTestRepo(t)
	a, out := newTestApp(t, root, "")
	ctx := context.Background()

	require.NoError(t, runCreate(ctx, a, "feat/issue-42__login", &createFlags{}))
	want := filepath.Join(filepath.Dir(root), "repo-feat-issue-42--login")
	assert.Contains(t, out.String(), "Created branch feat/issue-42__login from main")
	assert.Contains(t, out.String(), "Created worktree "+want)
	assert.DirExists(t, want)

	out.Reset()
	require.NoError(t, runFind(ctx, a, "#42"))
	assert.Equal(t, want+"\n", out.String())

	// The same branch cannot be checked out twice.
	err := runCreate(ctx, a, "feat/issue-42__login", &createFlags{path: filepath.Join(filepath.Dir(root), "other")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already checked out")
}

func TestRunFind_NotFound(t *testing.T) {
	root := setupTestRepo(t)
	a, _ := newTestApp(t, root, "")

	err := runFind(context.Background(), a, "pr/99")
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindWorktreeNotFound))
}

// TestRunFinish rebases a feature branch onto an advanced main and
// fast-forwards main to it.
func TestRunFinish(t *testing.T) {
	setJSONOutput(t, false)
	root := setupTestRepo(t)
	feat := addWorktree(t, root, "feat/issue-7")
	commitFile(t, feat, "feature.txt", "feature\n", "add feature")
	commitFile(t, root, "trunk.txt", "trunk\n", "advance trunk")
	a, out := newTestApp(t, root, "")

	err := runFinish(context.Background(), a, []string{"7"}, &finishFlags{syncFlags: syncFlags{force: true}})
	require.NoError(t, err)

	assert.Equal(t, runTestGit(t, feat, "rev-parse", "HEAD"), runTestGit(t, root, "rev-parse", "main"))
	assert.Contains(t, out.String(), "Rebased feat/issue-7 onto main (1 commit(s))")
	assert.Contains(t, out.String(), "Fast-forwarded main to feat/issue-7")
	assert.FileExists(t, filepath.Join(root, "feature.txt"))
}

// TestRunFinish_Cleanup removes the worktree and its branch once the
// branch is merged. The repository has no remote, so the branch is only
// deletable because it is merged into main.
func TestRunFinish_Cleanup(t *testing.T) {
	setJSONOutput(t, true)
	root := setupTestRepo(t)
	feat := addWorktree(t, root, "feat/issue-8")
	commitFile(t, feat, "feature.txt", "feature\n", "add feature")
	a, out := newTestApp(t, root, "")

	flags := &finishFlags{syncFlags: syncFlags{force: true}, cleanup: true}
	require.NoError(t, runFinish(context.Background(), a, []string{"feat/issue-8"}, flags))

	var decoded finishResultJSON
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.True(t, decoded.Rebase.UpToDate)
	require.NotNil(t, decoded.Merge)
	assert.Len(t, decoded.Merge.Commits, 1)
	require.NotNil(t, decoded.Cleanup)
	assert.Len(t, decoded.Cleanup.Successes, 1)

	assert.NoDirExists(t, feat)
	assert.Empty(t, runTestGit(t, root, "branch", "--list", "feat/issue-8"))
}

// TestRunFinish_DryRun leaves both branches untouched.
func TestRunFinish_DryRun(t *testing.T) {
	setJSONOutput(t, false)
	root := setupTestRepo(t)
	feat := addWorktree(t, root, "feat/issue-9")
	commitFile(t, feat, "feature.txt", "feature\n", "add feature")
	commitFile(t, root, "trunk.txt", "trunk\n", "advance trunk")
	mainBefore := runTestGit(t, root, "rev-parse", "main")
	featBefore := runTestGit(t, feat, "rev-parse", "HEAD")
	a, out := newTestApp(t, root, "")

	flags := &finishFlags{syncFlags: syncFlags{dryRun: true}, cleanup: true}
	require.NoError(t, runFinish(context.Background(), a, []string{"9"}, flags))

	assert.Equal(t, mainBefore, runTestGit(t, root, "rev-parse", "main"))
	assert.Equal(t, featBefore, runTestGit(t, feat, "rev-parse", "HEAD"))
	assert.Contains(t, out.String(), "Dry run: would rebase feat/issue-9 onto main")
	assert.Contains(t, out.String(), "Dry run: would remove")
	assert.DirExists(t, feat)
}

func TestRunRebase_Declined(t *testing.T) {
	root := setupTestRepo(t)
	feat := addWorktree(t, root, "feat/issue-3")
	commitFile(t, feat, "feature.txt", "feature\n", "add feature")
	commitFile(t, root, "trunk.txt", "trunk\n", "advance trunk")
	before := runTestGit(t, feat, "rev-parse", "HEAD")
	a, _ := newTestApp(t, root, "n\n")

	err := runRebase(context.Background(), a, []string{"3"}, &syncFlags{})
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindCancelled))
	assert.Equal(t, model.ExitUserCancelled, exitCodeFor(err))
	assert.Equal(t, before, runTestGit(t, feat, "rev-parse", "HEAD"))
}

// TestRunCleanup_Merged selects only the worktree whose branch is merged
// into main and removes it with its branch.
func TestRunCleanup_Merged(t *testing.T) {
	setJSONOutput(t, true)
	root := setupTestRepo(t)
	merged := addWorktree(t, root, "feat/issue-1")
	open := addWorktree(t, root, "feat/issue-2")
	commitFile(t, open, "wip.txt", "wip\n", "unfinished work")
	a, out := newTestApp(t, root, "")

	err := runCleanup(context.Background(), a, nil, &cleanupFlags{merged: true, yes: true})
	require.NoError(t, err)

	var decoded removeResultJSON
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	require.Len(t, decoded.Successes, 1)
	assert.Equal(t, merged, decoded.Successes[0].Path)
	assert.Empty(t, decoded.Failures)

	assert.NoDirExists(t, merged)
	assert.DirExists(t, open)
	assert.Empty(t, runTestGit(t, root, "branch", "--list", "feat/issue-1"))
}

// TestRunCleanup_Blocked refuses to delete a branch whose commits exist
// nowhere else and reports it through the exit code.
func TestRunCleanup_Blocked(t *testing.T) {
	setJSONOutput(t, false)
	root := setupTestRepo(t)
	feat := addWorktree(t, root, "feat/issue-5")
	commitFile(t, feat, "wip.txt", "wip\n", "unpushed work")
	a, out := newTestApp(t, root, "")

	err := runCleanup(context.Background(), a, []string{"5"}, &cleanupFlags{yes: true})
	require.Error(t, err)
	assert.Equal(t, model.ExitRemovalBlocked, exitCodeFor(err))
	assert.Contains(t, out.String(), "Failed  feat/issue-5")
	assert.Contains(t, out.String(), "0 removed, 0 skipped, 1 failed")
	assert.DirExists(t, feat)

	// --keep-branch never consults the remote.
	out.Reset()
	require.NoError(t, runCleanup(context.Background(), a, []string{"5"}, &cleanupFlags{yes: true, keepBranch: true}))
	assert.NoDirExists(t, feat)
	assert.Equal(t, "feat/issue-5", runTestGit(t, root, "branch", "--list", "--format=%(refname:short)", "feat/issue-5"))
}

func TestRunCleanup_DryRun(t *testing.T) {
	setJSONOutput(t, false)
	root := setupTestRepo(t)
	feat := addWorktree(t, root, "feat/issue-6")
	a, out := newTestApp(t, root, "")

	require.NoError(t, runCleanup(context.Background(), a, []string{"6"}, &cleanupFlags{dryRun: true}))
	assert.Contains(t, out.String(), "Dry run: would remove 1 worktree(s)")
	assert.DirExists(t, feat)
}

// TestRunRemoteStatus compares main with a pushed copy on a local bare
// remote.
func TestRunRemoteStatus(t *testing.T) {
	setJSONOutput(t, true)
	root := setupTestRepo(t)
	origin := filepath.Join(filepath.Dir(root), "origin.git")
	runTestGit(t, filepath.Dir(root), "init", "--bare", origin)
	runTestGit(t, root, "remote", "add", "origin", origin)
	runTestGit(t, root, "push", "origin", "main")
	a, out := newTestApp(t, root, "")

	require.NoError(t, runRemoteStatus(context.Background(), a, []string{"main"}))

	var decoded remoteStatusJSON
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, "main", decoded.Branch)
	assert.Equal(t, "origin", decoded.Remote)
	assert.True(t, decoded.Status.Exists)
	assert.False(t, decoded.Status.LocalAhead)
	assert.True(t, decoded.Verdict.Allowed)

	// A local commit makes the branch unsafe to delete.
	commitFile(t, root, "more.txt", "more\n", "local only")
	out.Reset()
	require.NoError(t, runRemoteStatus(context.Background(), a, []string{"main"}))
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.True(t, decoded.Status.LocalAhead)
	assert.False(t, decoded.Verdict.Allowed)
}

// TestRunRemoteStatus_BranchWithoutWorktree falls back to the argument as a
// branch name when no worktree matches it.
func TestRunRemoteStatus_BranchWithoutWorktree(t *testing.T) {
	setJSONOutput(t, false)
	root := setupTestRepo(t)
	runTestGit(t, root, "branch", "orphaned")
	a, out := newTestApp(t, root, "")

	require.NoError(t, runRemoteStatus(context.Background(), a, []string{"orphaned"}))
	assert.Contains(t, out.String(), "Branch: orphaned")
	assert.Contains(t, out.String(), "Remote: not on origin")
	assert.Contains(t, out.String(), "Safe to delete: yes (branch is merged into trunk)")
}

func TestRunRemovePlaceholder(t *testing.T) {
	setJSONOutput(t, false)
	root := setupTestRepo(t)
	feat := addWorktree(t, root, "feat/issue-11")
	runTestGit(t, feat, "commit", "--allow-empty", "-m", model.PlaceholderCommitPrefix+" issue 11")
	commitFile(t, feat, "feature.txt", "feature\n", "add feature")
	a, out := newTestApp(t, root, "")

	require.NoError(t, runRemovePlaceholder(context.Background(), a, []string{"11"}, &placeholderFlags{}))
	assert.Contains(t, out.String(), "Removed ")

	subjects := runTestGit(t, feat, "log", "--format=%s", "main..HEAD")
	assert.Equal(t, "add feature", subjects)
}
