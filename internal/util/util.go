// Package util provides the process-spawning seam shared by every component
// that drives an external tool. All tool invocations funnel through a Runner
// so callers can be tested against canned transcripts. Dummy mode does not
// go through a Runner; it simulates at the block, inspector and migrator
// interfaces instead.
package util

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// CommandOutput wraps the output from an exec command as strings.
type CommandOutput struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes external commands. It is the only seam between this program
// and the block tools it drives; implementations are the real CmdRunner and
// the scripted utiltest.FakeRunner used by tests.
type Runner interface {
	// Run executes the command described by c, feeding it stdin if non-empty,
	// and returns the captured output. A non-zero exit status is returned as
	// an error with CommandOutput.ExitCode populated.
	Run(ctx context.Context, c []string, stdin string) (CommandOutput, error)

	// RunStream executes the command and invokes line for every line the
	// child writes to stdout. Lines are split on both newlines and carriage
	// returns so single-line progress meters are observed as they update.
	RunStream(ctx context.Context, c []string, line func(string)) (CommandOutput, error)
}

// CmdRunner is the Runner implementation backed by os/exec.
type CmdRunner struct{}

var _ Runner = (*CmdRunner)(nil)

// Run executes the command and returns Stdout and Stderr as strings.
func (r *CmdRunner) Run(ctx context.Context, c []string, stdin string) (CommandOutput, error) {
	cmd, err := newCommand(ctx, c)
	if err != nil {
		return CommandOutput{}, err
	}

	var stdoutb, stderrb bytes.Buffer
	cmd.Stdout = &stdoutb
	cmd.Stderr = &stderrb

	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	logrus.WithField("command", strings.Join(c, " ")).Debug("Executing command")

	err = cmd.Run()
	out := CommandOutput{
		Stdout:   stdoutb.String(),
		Stderr:   stderrb.String(),
		ExitCode: exitCode(err),
	}
	if err != nil {
		return out, fmt.Errorf("error running %q: %w", c[0], err)
	}

	return out, nil
}

// RunStream executes the command and streams stdout lines to the provided
// callback while still capturing stderr for error reporting.
func (r *CmdRunner) RunStream(ctx context.Context, c []string, line func(string)) (CommandOutput, error) {
	cmd, err := newCommand(ctx, c)
	if err != nil {
		return CommandOutput{}, err
	}

	var stderrb bytes.Buffer
	cmd.Stderr = &stderrb

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return CommandOutput{}, fmt.Errorf("error creating stdout pipe: %w", err)
	}

	logrus.WithField("command", strings.Join(c, " ")).Debug("Executing streamed command")

	if err := cmd.Start(); err != nil {
		return CommandOutput{Stderr: stderrb.String()}, fmt.Errorf("error starting %q: %w", c[0], err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	scanner.Split(scanLinesOrCR)
	for scanner.Scan() {
		if line != nil {
			line(scanner.Text())
		}
	}

	err = cmd.Wait()
	out := CommandOutput{
		Stderr:   stderrb.String(),
		ExitCode: exitCode(err),
	}
	if err != nil {
		return out, fmt.Errorf("error waiting for %q to exit: %w", c[0], err)
	}

	return out, nil
}

// newCommand validates the argv slice and builds the exec.Cmd with the
// program environment attached.
func newCommand(ctx context.Context, c []string) (*exec.Cmd, error) {
	if len(c) == 0 {
		return nil, fmt.Errorf("must provide a command")
	}

	name := c[0]
	var args []string
	if len(c) > 1 {
		args = c[1:]
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = os.Environ()

	return cmd, nil
}

// exitCode extracts the child's exit status from a Wait error. A nil error is
// exit 0; an error that carries no status (e.g. a start failure) is -1.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if ee, ok := err.(*exec.ExitError); ok {
		return ee.ExitCode()
	}
	return -1
}

// scanLinesOrCR is a bufio.SplitFunc that terminates tokens on either a
// newline or a bare carriage return. Progress meters rewrite a single line
// with CR, and those updates would otherwise never surface until exit.
func scanLinesOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// ToolOnPath reports whether the named executable resolves on PATH.
func ToolOnPath(tool string) bool {
	_, err := exec.LookPath(tool)
	return err == nil
}
