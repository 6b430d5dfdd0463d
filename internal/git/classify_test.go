package git

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NoahCardoza/iloom-cli-sub005/internal/model"
)

// TestClassify maps real-world git stderr samples onto error kinds.
func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
		want   model.ErrorKind
	}{
		{
			name:   "dns failure",
			stderr: "fatal: unable to access 'https://github.com/x/y.git/': Could not resolve host: github.com",
			want:   model.KindNetworkError,
		},
		{
			name:   "ssh unreachable",
			stderr: "ssh: connect to host github.com port 22: Network is unreachable\nfatal: Could not read from remote repository.",
			want:   model.KindNetworkError,
		},
		{
			name:   "missing remote ref",
			stderr: "fatal: couldn't find remote ref refs/heads/feat-1",
			want:   model.KindBranchNotFound,
		},
		{
			name:   "remote not configured",
			stderr: "error: No such remote 'origin'",
			want:   model.KindBranchNotFound,
		},
		{
			name:   "remote path unreadable",
			stderr: "fatal: '/mnt/offline/origin.git' does not appear to be a git repository\nfatal: Could not read from remote repository.",
			want:   model.KindNetworkError,
		},
		{
			name:   "unknown revision",
			stderr: "fatal: ambiguous argument 'nope': unknown revision or path not in the working tree.",
			want:   model.KindBranchNotFound,
		},
		{
			name:   "rebase conflict",
			stderr: "error: could not apply 1a2b3c4... change a\nCONFLICT (content): Merge conflict in a.ts",
			want:   model.KindConflictDetected,
		},
		{
			name:   "index lock",
			stderr: "fatal: Unable to create '/repo/.git/index.lock': File exists.",
			want:   model.KindCommandFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &CommandError{Args: []string{"fetch"}, ExitCode: 128, Stderr: tt.stderr}
			got := Classify(err)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Kind)
			assert.True(t, errors.Is(got, err), "classified error must wrap the command error")
		})
	}
}

func TestClassify_NilAndPassthrough(t *testing.T) {
	assert.Nil(t, Classify(nil))

	existing := model.NewError(model.KindRemovalBlocked, "blocked")
	assert.Same(t, existing, Classify(fmt.Errorf("wrapped: %w", existing)))

	plain := Classify(errors.New("exec: not started"))
	assert.Equal(t, model.KindCommandFailed, plain.Kind)
}

func TestIsMissingRemoteRef(t *testing.T) {
	assert.True(t, IsMissingRemoteRef(ExitErr(128, "fatal: couldn't find remote ref refs/heads/x")))
	assert.False(t, IsMissingRemoteRef(ExitErr(128, "fatal: Could not resolve host: example.com")))
	assert.False(t, IsMissingRemoteRef(nil))
}
