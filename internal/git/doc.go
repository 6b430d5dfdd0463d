// Package git is the process runner every other iloom component is built
// on.
//
// All git operations are performed via os/exec calls to the git binary,
// rather than using a Git library like go-git. This approach:
//   - Uses the exact same Git behavior the user sees in their terminal
//   - Never parses internal repository storage formats
//   - Lets git do its own locking across concurrent invocations
//
// Runner is the narrow contract: an argument vector, a working directory
// and a timeout in, stdout or a *CommandError (exit code + stderr) out.
// Classify is the only place where stderr text is pattern-matched; the
// rest of the code base matches on model.ErrorKind.
package git
