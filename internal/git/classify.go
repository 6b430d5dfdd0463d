package git

import (
	"errors"
	"strings"

	"github.com/NoahCardoza/iloom-cli-sub005/internal/model"
)

// Phrase tables for Classify. All entries are lower case; stderr is
// lowered before matching. Only an unknown remote name counts as missing;
// a configured remote whose URL cannot be read ("does not appear to be a
// git repository") falls through to the network phrases.
var (
	missingRemotePhrases = []string{
		"no such remote",
	}

	missingRefPhrases = []string{
		"couldn't find remote ref",
		"not a valid object name",
		"not a valid ref",
		"unknown revision",
		"invalid reference",
		"needed a single revision",
		"bad revision",
	}

	networkPhrases = []string{
		"could not resolve host",
		"could not resolve hostname",
		"could not read from remote repository",
		"unable to access",
		"connection refused",
		"connection timed out",
		"connection reset",
		"operation timed out",
		"network is unreachable",
		"failed to connect",
		"ssh: connect to host",
		"early eof",
		"the remote end hung up unexpectedly",
	}

	conflictPhrases = []string{
		"conflict",
		"could not apply",
		"needs merge",
		"you must edit all merge conflicts",
	}
)

// Classify translates a raw runner failure into a *model.Error with a kind
// from the closed enumeration. It returns nil for a nil error and passes
// an existing *model.Error through untouched.
//
// This is the only function in the code base that looks at stderr text.
func Classify(err error) *model.Error {
	if err == nil {
		return nil
	}

	var modelErr *model.Error
	if errors.As(err, &modelErr) {
		return modelErr
	}

	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		return model.WrapError(model.KindCommandFailed, err, "git command failed")
	}

	stderr := strings.ToLower(cmdErr.Stderr)
	kind := model.KindCommandFailed
	switch {
	case containsAny(stderr, missingRemotePhrases):
		// No remote of that name means no remote copy of the branch.
		kind = model.KindBranchNotFound
	case containsAny(stderr, missingRefPhrases):
		kind = model.KindBranchNotFound
	case containsAny(stderr, networkPhrases):
		kind = model.KindNetworkError
	case containsAny(stderr, conflictPhrases):
		kind = model.KindConflictDetected
	}

	return model.WrapError(kind, cmdErr, "git %s failed", firstArg(cmdErr.Args))
}

// IsMissingRemoteRef reports whether err means the ref (or the remote
// name) does not exist, as opposed to the remote being unreachable.
func IsMissingRemoteRef(err error) bool {
	return err != nil && Classify(err).Kind == model.KindBranchNotFound
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return "command"
	}
	return args[0]
}
