// Package model defines the domain types and value objects for the
// iloom CLI.
//
// This package contains pure data structures with no external dependencies.
// Worktrees and remote branch states are transient representations parsed
// from git output at runtime; nothing here is cached or persisted between
// invocations, because the repository can change underneath us at any time.
//
// The package also defines the closed set of error kinds (ErrorKind), the
// Error type that carries them, and the process exit codes (ExitCode) each
// kind maps to.
package model
