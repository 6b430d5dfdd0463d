package git

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commitFile(t *testing.T, dir, name, content, message string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	runTestGit(t, dir, "add", name)
	runTestGit(t, dir, "commit", "-m", message)
}

func TestBranchExists(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	r := NewCLI()

	ok, err := BranchExists(ctx, r, repo, "main")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = BranchExists(ctx, r, repo, "non-existent-branch-xyz")
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestIsAncestorAndMergeBase builds main -> feature with one extra commit
// and checks both ancestry directions.
func TestIsAncestorAndMergeBase(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	r := NewCLI()

	runTestGit(t, repo, "checkout", "-b", "feature")
	commitFile(t, repo, "feature.txt", "x\n", "feature work")

	yes, err := IsAncestor(ctx, r, repo, "main", "feature")
	require.NoError(t, err)
	assert.True(t, yes)

	no, err := IsAncestor(ctx, r, repo, "feature", "main")
	require.NoError(t, err)
	assert.False(t, no)

	base, err := MergeBase(ctx, r, repo, "main", "feature")
	require.NoError(t, err)
	mainSHA, err := RevParse(ctx, r, repo, "main")
	require.NoError(t, err)
	assert.Equal(t, mainSHA, base)
}

func TestStatusAndIsDirty(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	r := NewCLI()

	dirty, err := IsDirty(ctx, r, repo)
	require.NoError(t, err)
	assert.False(t, dirty)

	require.NoError(t, os.WriteFile(filepath.Join(repo, "README.md"), []byte("changed\n"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(repo, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(repo, "sub", "new.txt"), []byte("new\n"), 0644))

	lines, err := Status(ctx, r, repo)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{" M README.md", "?? sub/new.txt"}, lines)
}

func TestCurrentBranchDetached(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	r := NewCLI()

	branch, err := CurrentBranch(ctx, r, repo)
	require.NoError(t, err)
	assert.Equal(t, "main", branch)

	runTestGit(t, repo, "checkout", "--detach")
	branch, err = CurrentBranch(ctx, r, repo)
	require.NoError(t, err)
	assert.Equal(t, "HEAD", branch)
}

func TestCommitsAndHeadSubject(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	r := NewCLI()

	runTestGit(t, repo, "checkout", "-b", "feature")
	commitFile(t, repo, "a.txt", "a\n", "add a")
	commitFile(t, repo, "b.txt", "b\n", "add b")

	commits, err := Commits(ctx, r, repo, "main..feature")
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.True(t, strings.HasSuffix(commits[0], " add b"), "newest first")
	assert.True(t, strings.HasSuffix(commits[1], " add a"))

	hashes, err := CommitHashes(ctx, r, repo, "main..feature")
	require.NoError(t, err)
	require.Len(t, hashes, 2)
	assert.Len(t, hashes[0][0], 40)
	assert.Equal(t, "add b", hashes[0][1])

	subject, err := HeadSubject(ctx, r, repo)
	require.NoError(t, err)
	assert.Equal(t, "add b", subject)

	empty, err := Commits(ctx, r, repo, "feature..main")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

// TestConflictedFilesAndRebaseInProgress stops a rebase on a conflict and
// checks both structural conflict probes.
func TestConflictedFilesAndRebaseInProgress(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	r := NewCLI()

	runTestGit(t, repo, "checkout", "-b", "feature")
	commitFile(t, repo, "README.md", "feature\n", "feature edit")
	runTestGit(t, repo, "checkout", "main")
	commitFile(t, repo, "README.md", "main\n", "main edit")
	runTestGit(t, repo, "checkout", "feature")

	inProgress, err := RebaseInProgress(ctx, r, repo)
	require.NoError(t, err)
	assert.False(t, inProgress)

	_, err = r.Run(ctx, repo, "rebase", "main")
	require.Error(t, err)

	files, err := ConflictedFiles(ctx, r, repo)
	require.NoError(t, err)
	assert.Equal(t, []string{"README.md"}, files)

	inProgress, err = RebaseInProgress(ctx, r, repo)
	require.NoError(t, err)
	assert.True(t, inProgress)

	runTestGit(t, repo, "rebase", "--abort")
	inProgress, err = RebaseInProgress(ctx, r, repo)
	require.NoError(t, err)
	assert.False(t, inProgress)
}

func TestTopLevelFromSubdirectory(t *testing.T) {
	repo := setupTestRepo(t)
	sub := filepath.Join(repo, "sub", "dir")
	require.NoError(t, os.MkdirAll(sub, 0755))

	root, err := TopLevel(context.Background(), NewCLI(), sub)
	require.NoError(t, err)

	// macOS temp dirs live behind a /var -> /private/var symlink.
	resolvedRepo, _ := filepath.EvalSymlinks(repo)
	resolvedRoot, _ := filepath.EvalSymlinks(root)
	assert.Equal(t, resolvedRepo, resolvedRoot)
}

func TestSplitLines(t *testing.T) {
	assert.Nil(t, splitLines(""))
	assert.Nil(t, splitLines("\n\n"))
	assert.Equal(t, []string{" M a.ts", "?? b.ts"}, splitLines(" M a.ts\n?? b.ts\n"))
}
