// Package utiltest provides a scripted Runner for tests that drive the block
// tools with canned transcripts.
package utiltest

import (
	"context"
	"fmt"
	"strings"

	"github.com/ntfs2linux/ntfs2linux/internal/util"
)

// Result is one canned command outcome.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

// FakeRunner replays canned results keyed by the joined command line and
// records every invocation for assertion.
type FakeRunner struct {
	// Commands records each executed argv in order.
	Commands [][]string

	// Stdins records the stdin passed with each Run call.
	Stdins []string

	// StreamLines are fed to the callback of every RunStream call.
	StreamLines []string

	results map[string][]Result

	// Default is returned for commands with no canned result.
	Default Result
}

var _ util.Runner = (*FakeRunner)(nil)

// NewFakeRunner returns an empty FakeRunner that succeeds by default.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{results: map[string][]Result{}}
}

// AddResult queues a result for the exact command line. Queued results for
// the same command are consumed in order, the last one sticking.
func (f *FakeRunner) AddResult(cmdline string, r Result) {
	f.results[cmdline] = append(f.results[cmdline], r)
}

func (f *FakeRunner) next(c []string) Result {
	key := strings.Join(c, " ")
	queue, ok := f.results[key]
	if !ok || len(queue) == 0 {
		return f.Default
	}
	r := queue[0]
	if len(queue) > 1 {
		f.results[key] = queue[1:]
	}
	return r
}

// Run replays the canned result for the command.
func (f *FakeRunner) Run(ctx context.Context, c []string, stdin string) (util.CommandOutput, error) {
	f.Commands = append(f.Commands, c)
	f.Stdins = append(f.Stdins, stdin)

	r := f.next(c)
	out := util.CommandOutput{Stdout: r.Stdout, Stderr: r.Stderr, ExitCode: r.ExitCode}
	if r.Err != nil {
		return out, r.Err
	}
	if r.ExitCode != 0 {
		return out, fmt.Errorf("fake: exit status %d", r.ExitCode)
	}
	return out, nil
}

// RunStream replays the canned result, feeding StreamLines to the callback.
func (f *FakeRunner) RunStream(ctx context.Context, c []string, line func(string)) (util.CommandOutput, error) {
	f.Commands = append(f.Commands, c)

	for _, l := range f.StreamLines {
		if line != nil {
			line(l)
		}
	}

	r := f.next(c)
	out := util.CommandOutput{Stderr: r.Stderr, ExitCode: r.ExitCode}
	if r.Err != nil {
		return out, r.Err
	}
	if r.ExitCode != 0 {
		return out, fmt.Errorf("fake: exit status %d", r.ExitCode)
	}
	return out, nil
}

// Ran reports whether a command line was executed.
func (f *FakeRunner) Ran(cmdline string) bool {
	for _, c := range f.Commands {
		if strings.Join(c, " ") == cmdline {
			return true
		}
	}
	return false
}

// RanPrefix reports whether any executed command starts with the given words.
func (f *FakeRunner) RanPrefix(prefix string) bool {
	for _, c := range f.Commands {
		if strings.HasPrefix(strings.Join(c, " "), prefix) {
			return true
		}
	}
	return false
}
