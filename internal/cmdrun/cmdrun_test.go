package cmdrun

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func testExec() *Exec {
	return &Exec{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestRunSuccess(t *testing.T) {
	err := testExec().Run(context.Background(), Spec{Name: "true", Mode: ModeCheck})
	require.NoError(t, err)
}

func TestRunCheckSurfacesExitCode(t *testing.T) {
	err := testExec().Run(context.Background(), Spec{
		Name: "sh",
		Args: []string{"-c", "exit 7"},
		Mode: ModeCheck,
	})
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 7, exitErr.Code)
	require.Contains(t, exitErr.Error(), "exit code 7")
}

func TestRunBestEffortSwallowsFailure(t *testing.T) {
	err := testExec().Run(context.Background(), Spec{Name: "false", Mode: ModeBestEffort})
	require.NoError(t, err)
}

func TestRunMissingBinary(t *testing.T) {
	err := testExec().Run(context.Background(), Spec{Name: "deskbridge-no-such-binary", Mode: ModeCheck})
	require.Error(t, err)
	var exitErr *ExitError
	require.False(t, errors.As(err, &exitErr), "a missing binary is not an exit failure")
}

func TestOutputCapturesStdout(t *testing.T) {
	out, err := testExec().Output(context.Background(), Spec{
		Name: "sh",
		Args: []string{"-c", "echo hello"},
		Mode: ModeCheck,
	})
	require.NoError(t, err)
	require.Equal(t, "hello\n", out)
}

func TestRunAppendsEnv(t *testing.T) {
	out, err := testExec().Output(context.Background(), Spec{
		Name: "sh",
		Args: []string{"-c", "printf %s \"$DESKBRIDGE_TEST_ENV\""},
		Mode: ModeCheck,
		Env:  []string{"DESKBRIDGE_TEST_ENV=tunnel"},
	})
	require.NoError(t, err)
	require.Equal(t, "tunnel", out)
}
