// Package config reads iloom's per-repository settings.
//
// Settings live in the repository's .iloom directory. settings.json and
// settings.local.json are JSONC (JSON with comments and trailing commas),
// so github.com/tidwall/jsonc strips them before encoding/json parses
// them; settings.yaml is parsed with gopkg.in/yaml.v3. Files are applied
// in this order, each overriding the fields it sets:
//
//	.iloom/settings.json        shared, committed
//	.iloom/settings.yaml        shared, committed
//	.iloom/settings.local.json  per-developer, usually git-ignored
//
// The reader is read-only and lenient: unknown fields are ignored, and a
// missing directory yields the defaults.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/NoahCardoza/iloom-cli-sub005/internal/model"
)

// Dir is the settings directory relative to the repository root.
const Dir = ".iloom"

// Files are the settings files in the order they are applied.
var Files = []string{"settings.json", "settings.yaml", "settings.local.json"}

const (
	DefaultRemote         = "origin"
	DefaultAgentCommand   = "claude"
	DefaultCommandTimeout = 30 * time.Second
	DefaultNetworkTimeout = 120 * time.Second
)

// DefaultProtectedBranches are never deleted by cleanup.
var DefaultProtectedBranches = []string{"main", "master", "develop"}

// Duration is a time.Duration that decodes from a Go duration string
// ("45s", "2m") or from a number of seconds.
type Duration time.Duration

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	return d.set(v)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var v any
	if err := node.Decode(&v); err != nil {
		return err
	}
	return d.set(v)
}

func (d *Duration) set(v any) error {
	switch x := v.(type) {
	case float64:
		*d = Duration(x * float64(time.Second))
	case int:
		*d = Duration(time.Duration(x) * time.Second)
	case string:
		if secs, err := strconv.ParseFloat(x, 64); err == nil {
			*d = Duration(secs * float64(time.Second))
			return nil
		}
		parsed, err := time.ParseDuration(x)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", x, err)
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration %v", v)
	}
	return nil
}

// AgentSettings configures the conflict resolution agent.
type AgentSettings struct {
	// Command is the agent binary name or path.
	Command string `json:"command,omitempty" yaml:"command,omitempty"`
	Model   string `json:"model,omitempty" yaml:"model,omitempty"`
	// Disabled turns delegated conflict resolution off. Nil leaves the
	// value of an earlier layer in place.
	Disabled *bool `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// IsDisabled reports whether delegated conflict resolution is off.
func (a AgentSettings) IsDisabled() bool {
	return a.Disabled != nil && *a.Disabled
}

// TimeoutSettings bounds git subprocesses.
type TimeoutSettings struct {
	Command Duration `json:"command,omitempty" yaml:"command,omitempty"`
	Network Duration `json:"network,omitempty" yaml:"network,omitempty"`
}

// Settings is the merged view of every settings file.
type Settings struct {
	MainBranch        string          `json:"mainBranch,omitempty" yaml:"mainBranch,omitempty"`
	ProtectedBranches []string        `json:"protectedBranches,omitempty" yaml:"protectedBranches,omitempty"`
	Remote            string          `json:"remote,omitempty" yaml:"remote,omitempty"`
	Agent             AgentSettings   `json:"agent" yaml:"agent"`
	Timeouts          TimeoutSettings `json:"timeouts" yaml:"timeouts"`

	// Sources lists the files that were applied, in order.
	Sources []string `json:"-" yaml:"-"`
}

// Defaults returns the settings used when no file sets a field.
func Defaults() *Settings {
	return &Settings{
		MainBranch:        model.DefaultMainBranch,
		ProtectedBranches: append([]string(nil), DefaultProtectedBranches...),
		Remote:            DefaultRemote,
		Agent:             AgentSettings{Command: DefaultAgentCommand},
		Timeouts: TimeoutSettings{
			Command: Duration(DefaultCommandTimeout),
			Network: Duration(DefaultNetworkTimeout),
		},
	}
}

// Load reads the settings for the repository rooted at repoRoot.
func Load(repoRoot string) (*Settings, error) {
	s := Defaults()
	for _, name := range Files {
		path := filepath.Join(repoRoot, Dir, name)
		layer, err := loadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		s.apply(layer)
		s.Sources = append(s.Sources, path)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func loadFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var layer Settings
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		if err := yaml.Unmarshal(data, &layer); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return &layer, nil
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), &layer); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &layer, nil
}

// apply overlays every field layer sets.
func (s *Settings) apply(layer *Settings) {
	if layer.MainBranch != "" {
		s.MainBranch = layer.MainBranch
	}
	if layer.ProtectedBranches != nil {
		s.ProtectedBranches = layer.ProtectedBranches
	}
	if layer.Remote != "" {
		s.Remote = layer.Remote
	}
	if layer.Agent.Command != "" {
		s.Agent.Command = layer.Agent.Command
	}
	if layer.Agent.Model != "" {
		s.Agent.Model = layer.Agent.Model
	}
	if layer.Agent.Disabled != nil {
		disabled := *layer.Agent.Disabled
		s.Agent.Disabled = &disabled
	}
	if layer.Timeouts.Command != 0 {
		s.Timeouts.Command = layer.Timeouts.Command
	}
	if layer.Timeouts.Network != 0 {
		s.Timeouts.Network = layer.Timeouts.Network
	}
}

// Validate rejects values the rest of the program cannot work with.
func (s *Settings) Validate() error {
	if strings.TrimSpace(s.MainBranch) == "" || strings.ContainsAny(s.MainBranch, " ~^:?*[\\") {
		return fmt.Errorf("invalid mainBranch %q", s.MainBranch)
	}
	if s.Timeouts.Command < 0 || s.Timeouts.Network < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}

// CommandTimeout returns the timeout for ordinary git commands.
func (s *Settings) CommandTimeout() time.Duration {
	return time.Duration(s.Timeouts.Command)
}

// NetworkTimeout returns the timeout for git commands that talk to a remote.
func (s *Settings) NetworkTimeout() time.Duration {
	return time.Duration(s.Timeouts.Network)
}

// RemoveOptions returns removal options seeded from the settings.
func (s *Settings) RemoveOptions() model.RemoveOptions {
	return model.RemoveOptions{
		MainBranch:        s.MainBranch,
		ProtectedBranches: s.ProtectedBranches,
	}
}

// SyncOptions returns sync options seeded from the settings.
func (s *Settings) SyncOptions() model.SyncOptions {
	return model.SyncOptions{MainBranch: s.MainBranch}
}
