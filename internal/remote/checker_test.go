package remote

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NoahCardoza/iloom-cli-sub005/internal/git"
	"github.com/NoahCardoza/iloom-cli-sub005/internal/model"
)

func runTestGit(t *testing.T, dir string, args ...string) string {
	t.Helper()

	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v failed: %s", args, string(output))
	return string(output)
}

func configureIdentity(t *testing.T, dir string) {
	t.Helper()
	runTestGit(t, dir, "config", "user.email", "test@example.com")
	runTestGit(t, dir, "config", "user.name", "Test User")
	runTestGit(t, dir, "config", "commit.gpgsign", "false")
}

func commitFile(t *testing.T, dir, name, message string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(message+"\n"), 0644))
	runTestGit(t, dir, "add", name)
	runTestGit(t, dir, "commit", "-m", message)
}

// setupRemotePair creates a bare "origin" repository and a working clone
// whose main branch has been pushed. Returns (origin, clone).
func setupRemotePair(t *testing.T) (string, string) {
	t.Helper()

	origin := filepath.Join(t.TempDir(), "origin.git")
	cmd := exec.Command("git", "init", "--bare", origin)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git init --bare: %s", out)

	clone := t.TempDir()
	runTestGit(t, clone, "init")
	configureIdentity(t, clone)
	commitFile(t, clone, "README.md", "initial commit")
	runTestGit(t, clone, "branch", "-M", "main")
	runTestGit(t, clone, "remote", "add", "origin", origin)
	runTestGit(t, clone, "push", "origin", "main")

	return origin, clone
}

func TestCheck_NeverPushed(t *testing.T) {
	_, clone := setupRemotePair(t)
	runTestGit(t, clone, "checkout", "-b", "feat-local")
	commitFile(t, clone, "a.txt", "local only")

	status, err := NewChecker(git.NewCLI()).Check(context.Background(), clone, "feat-local")
	require.NoError(t, err)
	assert.Equal(t, model.RemoteBranchStatus{}, status)
}

func TestCheck_Identical(t *testing.T) {
	_, clone := setupRemotePair(t)
	runTestGit(t, clone, "checkout", "-b", "feat-pushed")
	commitFile(t, clone, "a.txt", "pushed")
	runTestGit(t, clone, "push", "origin", "feat-pushed")

	status, err := NewChecker(git.NewCLI()).Check(context.Background(), clone, "feat-pushed")
	require.NoError(t, err)
	assert.True(t, status.Exists)
	assert.False(t, status.LocalAhead)
	assert.False(t, status.RemoteAhead)
}

// TestCheck_LocalAhead commits after pushing: the unpushed commit must be
// reported and deletion blocked.
func TestCheck_LocalAhead(t *testing.T) {
	_, clone := setupRemotePair(t)
	runTestGit(t, clone, "checkout", "-b", "feat-ahead")
	commitFile(t, clone, "a.txt", "pushed")
	runTestGit(t, clone, "push", "origin", "feat-ahead")
	commitFile(t, clone, "b.txt", "unpushed")

	checker := NewChecker(git.NewCLI())
	status, err := checker.Check(context.Background(), clone, "feat-ahead")
	require.NoError(t, err)
	assert.True(t, status.Exists)
	assert.True(t, status.LocalAhead)
	assert.False(t, status.RemoteAhead)

	verdict, _, err := checker.Gate(context.Background(), clone, "feat-ahead", "main")
	require.NoError(t, err)
	assert.False(t, verdict.Allowed)
	assert.Contains(t, verdict.Reason, "unpushed")
}

// TestCheck_RemoteAhead pushes an extra commit from a second clone, so the
// remote holds a superset of local history.
func TestCheck_RemoteAhead(t *testing.T) {
	origin, clone := setupRemotePair(t)
	runTestGit(t, clone, "checkout", "-b", "feat-shared")
	commitFile(t, clone, "a.txt", "shared")
	runTestGit(t, clone, "push", "origin", "feat-shared")

	other := filepath.Join(t.TempDir(), "other")
	out, err := exec.Command("git", "clone", "--branch", "feat-shared", origin, other).CombinedOutput()
	require.NoError(t, err, "git clone: %s", out)
	configureIdentity(t, other)
	commitFile(t, other, "b.txt", "from elsewhere")
	runTestGit(t, other, "push", "origin", "feat-shared")

	checker := NewChecker(git.NewCLI())
	status, err := checker.Check(context.Background(), clone, "feat-shared")
	require.NoError(t, err)
	assert.True(t, status.Exists)
	assert.True(t, status.RemoteAhead)
	assert.False(t, status.LocalAhead)

	verdict, _, err := checker.Gate(context.Background(), clone, "feat-shared", "main")
	require.NoError(t, err)
	assert.True(t, verdict.Allowed)
}

// TestCheck_Diverged covers history rewritten locally after a push: the
// remote tip is not an ancestor and local is not an ancestor of remote.
func TestCheck_Diverged(t *testing.T) {
	_, clone := setupRemotePair(t)
	runTestGit(t, clone, "checkout", "-b", "feat-rewritten")
	commitFile(t, clone, "a.txt", "first")
	runTestGit(t, clone, "push", "origin", "feat-rewritten")
	runTestGit(t, clone, "commit", "--amend", "-m", "rewritten")

	status, err := NewChecker(git.NewCLI()).Check(context.Background(), clone, "feat-rewritten")
	require.NoError(t, err)
	assert.True(t, status.LocalAhead)
	assert.False(t, status.RemoteAhead)
}

// TestGate_AbsentButMerged: a branch missing from the remote that is
// already part of trunk is safe, and only the existence probes touch the
// remote.
func TestGate_AbsentButMerged(t *testing.T) {
	m := git.NewMockRunner().
		On("remote get-url origin", "git@example.com:acme/app.git\n", nil).
		On("fetch --quiet --no-tags origin refs/heads/feat-done", "", git.ExitErr(128, "fatal: couldn't find remote ref refs/heads/feat-done")).
		On("ls-remote --heads origin refs/heads/feat-done", "", nil).
		On("merge-base --is-ancestor refs/heads/feat-done main", "", nil)

	verdict, status, err := NewChecker(m).Gate(context.Background(), "/repo", "feat-done", "main")
	require.NoError(t, err)
	assert.False(t, status.Exists)
	assert.True(t, verdict.Allowed)
	assert.Equal(t, "branch is merged into trunk", verdict.Reason)
	assert.Empty(t, m.MutatingCalls())
	assert.Equal(t, 1, m.CountCalls("ls-remote"))
}

func TestGate_AbsentAndUnmerged(t *testing.T) {
	m := git.NewMockRunner().
		On("remote get-url origin", "git@example.com:acme/app.git\n", nil).
		On("fetch *", "", git.ExitErr(128, "fatal: couldn't find remote ref refs/heads/feat-wip")).
		On("ls-remote *", "", nil).
		On("merge-base --is-ancestor refs/heads/feat-wip main", "", git.ExitErr(1, ""))

	verdict, _, err := NewChecker(m).Gate(context.Background(), "/repo", "feat-wip", "main")
	require.NoError(t, err)
	assert.False(t, verdict.Allowed)
}

// TestCheck_NetworkError verifies connectivity failures are flagged and
// block deletion without a merge check.
func TestCheck_NetworkError(t *testing.T) {
	m := git.NewMockRunner().
		On("remote get-url origin", "https://example.com/r.git\n", nil).
		On("fetch *", "", git.ExitErr(128, "fatal: unable to access 'https://example.com/r.git/': Could not resolve host: example.com"))

	checker := NewChecker(m)
	status, err := checker.Check(context.Background(), "/repo", "feat")
	require.NoError(t, err)
	assert.True(t, status.NetworkError)
	assert.Contains(t, status.ErrorMessage, "Could not resolve host")
	assert.False(t, status.Exists)

	verdict, _, err := checker.Gate(context.Background(), "/repo", "feat", "main")
	require.NoError(t, err)
	assert.False(t, verdict.Allowed)
	assert.False(t, m.Called("merge-base"))
}

// TestCheck_UnreadableRemote: a configured remote whose path is gone
// cannot be verified, so deletion is blocked without a merge check.
func TestCheck_UnreadableRemote(t *testing.T) {
	origin, clone := setupRemotePair(t)
	runTestGit(t, clone, "checkout", "-b", "feat-moved")
	require.NoError(t, os.RemoveAll(origin))

	checker := NewChecker(git.NewCLI())
	status, err := checker.Check(context.Background(), clone, "feat-moved")
	require.NoError(t, err)
	assert.True(t, status.NetworkError)
	assert.False(t, status.Exists)

	verdict, _, err := checker.Gate(context.Background(), clone, "feat-moved", "main")
	require.NoError(t, err)
	assert.False(t, verdict.Allowed, "merged into main, but the remote copy is unknown")
}

// TestCheck_NoSuchRemote: without a remote of that name there is no remote
// copy, and nothing is fetched.
func TestCheck_NoSuchRemote(t *testing.T) {
	m := git.NewMockRunner().
		On("remote get-url origin", "", git.ExitErr(2, "error: No such remote 'origin'")).
		On("merge-base --is-ancestor refs/heads/feat-done main", "", nil)

	verdict, status, err := NewChecker(m).Gate(context.Background(), "/repo", "feat-done", "main")
	require.NoError(t, err)
	assert.False(t, status.Exists)
	assert.False(t, status.NetworkError)
	assert.True(t, verdict.Allowed)
	assert.False(t, m.Called("fetch"))
	assert.False(t, m.Called("ls-remote"))
}

func TestCheck_CustomRemote(t *testing.T) {
	m := git.NewMockRunner().
		On("remote get-url upstream", "git@example.com:acme/app.git\n", nil).
		On("fetch --quiet --no-tags upstream refs/heads/feat", "", nil).
		On("ls-remote --heads upstream refs/heads/feat", "", nil)

	checker := NewChecker(m, WithRemote("upstream"))
	assert.Equal(t, "upstream", checker.Remote())

	status, err := checker.Check(context.Background(), "/repo", "feat")
	require.NoError(t, err)
	assert.False(t, status.Exists)
}

// TestAssess walks the whole decision table, including the rule
// that both ahead flags are false when the branch is absent.
func TestAssess(t *testing.T) {
	tests := []struct {
		name    string
		status  model.RemoteBranchStatus
		merged  bool
		allowed bool
	}{
		{"network error", model.RemoteBranchStatus{NetworkError: true, ErrorMessage: "timeout"}, true, false},
		{"remote ahead", model.RemoteBranchStatus{Exists: true, RemoteAhead: true}, false, true},
		{"local ahead", model.RemoteBranchStatus{Exists: true, LocalAhead: true}, true, false},
		{"identical", model.RemoteBranchStatus{Exists: true}, false, true},
		{"absent merged", model.RemoteBranchStatus{}, true, true},
		{"absent unmerged", model.RemoteBranchStatus{}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Assess(tt.status, tt.merged)
			assert.Equal(t, tt.allowed, got.Allowed)
			assert.NotEmpty(t, got.Reason)
		})
	}
}

func TestParseLsRemote(t *testing.T) {
	out := "1111111111111111111111111111111111111111\trefs/heads/feat-a\n" +
		"2222222222222222222222222222222222222222\trefs/heads/feat\n"

	assert.Equal(t, "2222222222222222222222222222222222222222", parseLsRemote(out, "refs/heads/feat"))
	assert.Equal(t, "", parseLsRemote(out, "refs/heads/missing"))
	assert.Equal(t, "", parseLsRemote("", "refs/heads/feat"))
}
