package git

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MockCall records one invocation seen by MockRunner.
type MockCall struct {
	Dir  string
	Args []string
}

// String renders the call as "git <args>".
func (c MockCall) String() string {
	return "git " + strings.Join(c.Args, " ")
}

type mockResponse struct {
	output string
	err    error
}

// MockRunner is a scripted Runner for testing. Responses are keyed by the
// space-joined argument list; a key ending in " *" matches any command
// with that prefix. Several responses for the same key are returned in
// order, the last one repeating. Unscripted commands fail so tests notice
// unexpected calls.
type MockRunner struct {
	mu        sync.Mutex
	responses map[string][]mockResponse
	Calls     []MockCall
}

// NewMockRunner creates an empty MockRunner.
func NewMockRunner() *MockRunner {
	return &MockRunner{responses: make(map[string][]mockResponse)}
}

// On scripts the response for a command line such as "rev-parse main".
func (m *MockRunner) On(command, output string, err error) *MockRunner {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[command] = append(m.responses[command], mockResponse{output: output, err: err})
	return m
}

// Run satisfies Runner.
func (m *MockRunner) Run(_ context.Context, dir string, args ...string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{Dir: dir, Args: append([]string(nil), args...)})

	key := m.match(strings.Join(args, " "))
	if key == "" {
		return "", &CommandError{
			Args:     args,
			Dir:      dir,
			ExitCode: 128,
			Stderr:   fmt.Sprintf("mock: unexpected command %q", strings.Join(args, " ")),
		}
	}

	queue := m.responses[key]
	resp := queue[0]
	if len(queue) > 1 {
		m.responses[key] = queue[1:]
	}
	if cmdErr, ok := resp.err.(*CommandError); ok && cmdErr.Args == nil {
		copied := *cmdErr
		copied.Args = args
		copied.Dir = dir
		return resp.output, &copied
	}
	return resp.output, resp.err
}

// match finds the exact key, else the longest matching wildcard prefix.
func (m *MockRunner) match(command string) string {
	if _, ok := m.responses[command]; ok {
		return command
	}
	var prefixes []string
	for key := range m.responses {
		if strings.HasSuffix(key, " *") {
			prefixes = append(prefixes, key)
		}
	}
	sort.Slice(prefixes, func(i, j int) bool { return len(prefixes[i]) > len(prefixes[j]) })
	for _, key := range prefixes {
		if strings.HasPrefix(command+" ", strings.TrimSuffix(key, "*")) {
			return key
		}
	}
	return ""
}

// Called reports whether any recorded call starts with the given args.
func (m *MockRunner) Called(args ...string) bool {
	return m.CountCalls(args...) > 0
}

// CountCalls counts recorded calls whose argument list starts with args.
func (m *MockRunner) CountCalls(args ...string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, call := range m.Calls {
		if hasPrefix(call.Args, args) {
			n++
		}
	}
	return n
}

// mutatingCommands are subcommands that change refs, the index or the
// working tree.
var mutatingCommands = map[string]bool{
	"add":         true,
	"commit":      true,
	"rebase":      true,
	"merge":       true,
	"reset":       true,
	"checkout":    true,
	"switch":      true,
	"push":        true,
	"pull":        true,
	"stash":       true,
	"cherry-pick": true,
}

// MutatingCalls returns the recorded calls that would change repository
// state. `merge-base` and read-only `branch`/`worktree` forms are excluded.
func (m *MockRunner) MutatingCalls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []MockCall
	for _, call := range m.Calls {
		if len(call.Args) == 0 {
			continue
		}
		switch sub := call.Args[0]; {
		case mutatingCommands[sub]:
			result = append(result, call)
		case sub == "branch" && len(call.Args) > 1 && (call.Args[1] == "-D" || call.Args[1] == "-d"):
			result = append(result, call)
		case sub == "worktree" && len(call.Args) > 1 && (call.Args[1] == "remove" || call.Args[1] == "add"):
			result = append(result, call)
		}
	}
	return result
}

func hasPrefix(args, prefix []string) bool {
	if len(prefix) > len(args) {
		return false
	}
	for i := range prefix {
		if args[i] != prefix[i] {
			return false
		}
	}
	return true
}
