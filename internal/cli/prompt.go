package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"golang.org/x/term"
)

// promptConfirmer asks the user on the terminal before the engine mutates
// history. Prompts go to stderr so --json output on stdout stays clean.
type promptConfirmer struct {
	in  io.Reader
	out io.Writer
}

// Confirm prints the question and the affected commits, then reads a
// single line and checks for "y" or "yes".
func (p *promptConfirmer) Confirm(_ context.Context, question string, commits []string) (bool, error) {
	if _, isFile := p.in.(interface{ Fd() uintptr }); isFile && !isTerminal(p.in) {
		return false, fmt.Errorf("no terminal available for confirmation (use --force)")
	}

	fmt.Fprintln(p.out, question)
	for _, c := range commits {
		fmt.Fprintf(p.out, "  %s\n", c)
	}
	fmt.Fprint(p.out, "\nContinue? [y/N] ")

	// bufio.Scanner handles both LF and CRLF line endings.
	scanner := bufio.NewScanner(p.in)
	if scanner.Scan() {
		answer := strings.TrimSpace(strings.ToLower(scanner.Text()))
		return answer == "y" || answer == "yes", nil
	}

	// A closed stdin is a "no".
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	return false, nil
}

// isTerminal reports whether v is a file descriptor attached to a terminal.
func isTerminal(v any) bool {
	f, ok := v.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}
