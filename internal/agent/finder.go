// Package agent launches the AI coding agent that resolves rebase
// conflicts on the user's behalf.
package agent

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrExecutableNotFound is returned when the agent binary cannot be located
// in the override, the known paths or PATH.
var ErrExecutableNotFound = errors.New("executable not found")

// EnvClaudePath overrides the location of the claude binary.
const EnvClaudePath = "ILOOM_CLAUDE_PATH"

// DefaultClaudePaths are checked, in order, before PATH.
var DefaultClaudePaths = []string{
	"~/.claude/local/{name}",
	"~/.local/bin/{name}",
	"/opt/homebrew/bin/{name}",
	"/usr/local/bin/{name}",
}

// FinderOption configures an ExecutableFinder.
type FinderOption func(*ExecutableFinder)

// ExecutableFinder locates an executable: environment override first, then
// known paths in order, then PATH.
type ExecutableFinder struct {
	execName    string
	knownPaths  []string
	envOverride string
	goos        string
	logger      *slog.Logger

	// Injected for tests.
	statFn     func(string) (os.FileInfo, error)
	lookPathFn func(string) (string, error)
	userHomeFn func() (string, error)
	getenvFn   func(string) string
}

// NewExecutableFinder creates a finder for execName.
func NewExecutableFinder(execName string, opts ...FinderOption) *ExecutableFinder {
	f := &ExecutableFinder{
		execName:   execName,
		goos:       runtime.GOOS,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		statFn:     os.Stat,
		lookPathFn: exec.LookPath,
		userHomeFn: os.UserHomeDir,
		getenvFn:   os.Getenv,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewClaudeFinder returns the finder used for the claude CLI. command may
// be a bare name or a path taken from settings; a path is checked first.
func NewClaudeFinder(command string, opts ...FinderOption) *ExecutableFinder {
	name := "claude"
	paths := append([]string(nil), DefaultClaudePaths...)
	if command != "" {
		if strings.ContainsRune(command, filepath.Separator) || strings.HasPrefix(command, "~") {
			paths = append([]string{command}, paths...)
		} else {
			name = command
		}
	}
	base := []FinderOption{WithEnvOverride(EnvClaudePath), WithKnownPaths(paths...)}
	return NewExecutableFinder(name, append(base, opts...)...)
}

// WithKnownPaths sets the paths checked before PATH. "{name}" is replaced
// by the executable name, a leading "~" by the home directory, and $VAR
// references are expanded.
func WithKnownPaths(paths ...string) FinderOption {
	return func(f *ExecutableFinder) {
		f.knownPaths = paths
	}
}

// WithEnvOverride sets the environment variable checked first.
func WithEnvOverride(envVar string) FinderOption {
	return func(f *ExecutableFinder) {
		f.envOverride = envVar
	}
}

// WithFinderLogger sets the logger.
func WithFinderLogger(logger *slog.Logger) FinderOption {
	return func(f *ExecutableFinder) {
		f.logger = logger
	}
}

// Find returns the path of the executable, or an error listing every
// location that was checked.
func (f *ExecutableFinder) Find() (string, error) {
	var checked []string

	if f.envOverride != "" {
		if envPath := f.getenvFn(f.envOverride); envPath != "" {
			checked = append(checked, envPath+" (from $"+f.envOverride+")")
			if f.isValidExecutable(envPath) {
				f.logger.Debug("found executable via env override", "name", f.execName, "path", envPath)
				return envPath, nil
			}
		}
	}

	for _, template := range f.knownPaths {
		path, err := f.expandPath(template)
		if err != nil {
			f.logger.Debug("skipping path template", "template", template, "error", err)
			continue
		}
		checked = append(checked, path)
		if f.isValidExecutable(path) {
			f.logger.Debug("found executable in known path", "name", f.execName, "path", path)
			return path, nil
		}
	}

	path, err := f.lookPathFn(f.platformExecName())
	if err == nil {
		f.logger.Debug("found executable via PATH", "name", f.execName, "path", path)
		return path, nil
	}

	where := "PATH"
	if len(checked) > 0 {
		where = strings.Join(checked, ", ") + ", PATH"
	}
	return "", fmt.Errorf("%w: %s not found in %s", ErrExecutableNotFound, f.execName, where)
}

func (f *ExecutableFinder) platformExecName() string {
	if f.goos == "windows" {
		return f.execName + ".exe"
	}
	return f.execName
}

func (f *ExecutableFinder) expandPath(template string) (string, error) {
	path := strings.ReplaceAll(template, "{name}", f.platformExecName())
	if strings.HasPrefix(path, "~") {
		home, err := f.userHomeFn()
		if err != nil {
			return "", fmt.Errorf("cannot expand ~: %w", err)
		}
		path = home + path[1:]
	}
	path = os.Expand(path, f.getenvFn)
	return filepath.Clean(path), nil
}

func (f *ExecutableFinder) isValidExecutable(path string) bool {
	info, err := f.statFn(path)
	if err != nil || info.IsDir() {
		return false
	}
	if f.goos == "windows" {
		return strings.HasSuffix(strings.ToLower(info.Name()), ".exe")
	}
	return info.Mode().Perm()&0111 != 0
}
