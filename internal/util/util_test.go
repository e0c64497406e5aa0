package util

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_EmptyCommand(t *testing.T) {
	r := &CmdRunner{}

	_, err := r.Run(context.Background(), nil, "")

	assert.Error(t, err, "shouldn't be able to run an empty command")
}

func TestRun_CapturesStdout(t *testing.T) {
	r := &CmdRunner{}

	out, err := r.Run(context.Background(), []string{"echo", "hello"}, "")

	require.NoError(t, err)
	assert.Equal(t, "hello\n", out.Stdout)
	assert.Equal(t, 0, out.ExitCode)
}

func TestRun_Stdin(t *testing.T) {
	r := &CmdRunner{}

	out, err := r.Run(context.Background(), []string{"cat"}, "from stdin")

	require.NoError(t, err)
	assert.Equal(t, "from stdin", out.Stdout)
}

func TestRun_NonZeroExit(t *testing.T) {
	r := &CmdRunner{}

	out, err := r.Run(context.Background(), []string{"false"}, "")

	assert.Error(t, err)
	assert.Equal(t, 1, out.ExitCode)
}

func TestRunStream_SplitsCarriageReturns(t *testing.T) {
	r := &CmdRunner{}

	var lines []string
	_, err := r.RunStream(context.Background(), []string{"printf", `a\rb\nc`}, func(s string) {
		lines = append(lines, s)
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, lines)
}

func TestExitCode_NilError(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
}
