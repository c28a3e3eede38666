package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"phitsreport/internal/util"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func prepare(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, InputFile), []byte("[ T i t l e ]\nrun\n"), 0o644))
	return dir
}

func TestRunFeedsInputOnStdin(t *testing.T) {
	dir := prepare(t)
	r, err := New("cat", zerolog.Nop())
	require.NoError(t, err)

	res, err := r.Run(context.Background(), dir)
	require.NoError(t, err)
	require.Equal(t, 0, res.ExitCode)

	_, err = r.Run(context.Background(), dir)
	require.NoError(t, err)
	out, err := os.ReadFile(filepath.Join(dir, StdoutFile))
	require.NoError(t, err)
	require.Equal(t, "[ T i t l e ]\nrun\n[ T i t l e ]\nrun\n", string(out))
}

func TestRunInputPlaceholder(t *testing.T) {
	dir := prepare(t)
	r, err := New("wc -l {input}", zerolog.Nop())
	require.NoError(t, err)
	_, err = r.Run(context.Background(), dir)
	require.NoError(t, err)
	out, err := os.ReadFile(filepath.Join(dir, StdoutFile))
	require.NoError(t, err)
	require.Contains(t, string(out), "2")
}

func TestRunNonZeroExit(t *testing.T) {
	dir := prepare(t)
	r, err := New("false", zerolog.Nop())
	require.NoError(t, err)
	res, err := r.Run(context.Background(), dir)
	require.Error(t, err)
	require.Equal(t, 1, res.ExitCode)
	require.FileExists(t, filepath.Join(dir, StderrFile))
}

func TestRunCanceled(t *testing.T) {
	dir := prepare(t)
	r, err := New("sleep 5", zerolog.Nop())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Run(ctx, dir)
	require.Error(t, err)
}

func TestNewRejectsEmptyCommand(t *testing.T) {
	_, err := New("  ", zerolog.Nop())
	require.ErrorIs(t, err, util.ErrEmptyCommand)
}

func TestRunMissingInput(t *testing.T) {
	r, err := New("cat", zerolog.Nop())
	require.NoError(t, err)
	_, err = r.Run(context.Background(), t.TempDir())
	require.Error(t, err)
}
