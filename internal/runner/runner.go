// Package runner executes PHITS in a prepared run directory.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"phitsreport/internal/util"

	"github.com/rs/zerolog"
)

const (
	InputFile  = "phits.in"
	StdoutFile = "stdout.txt"
	StderrFile = "stderr.txt"

	inputPlaceholder = "{input}"
)

type Runner struct {
	command []string
	log     zerolog.Logger
}

type Result struct {
	Dir      string        `json:"dir"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
}

// New splits command on whitespace. If an argument is "{input}" it is
// replaced by the input file path; otherwise the input is fed on stdin.
func New(command string, log zerolog.Logger) (*Runner, error) {
	args := strings.Fields(command)
	if len(args) == 0 {
		return nil, util.ErrEmptyCommand
	}
	return &Runner{command: args, log: log}, nil
}

// Run starts the command in dir and appends its output to stdout.txt and
// stderr.txt there. A non-zero exit is returned as an error together with
// the populated Result.
func (r *Runner) Run(ctx context.Context, dir string) (Result, error) {
	res := Result{Dir: dir, ExitCode: -1}
	input := filepath.Join(dir, InputFile)
	in, err := os.Open(input)
	if err != nil {
		return res, fmt.Errorf("open run input: %w", err)
	}
	defer in.Close()

	stdout, err := openAppend(filepath.Join(dir, StdoutFile))
	if err != nil {
		return res, err
	}
	defer stdout.Close()
	stderr, err := openAppend(filepath.Join(dir, StderrFile))
	if err != nil {
		return res, err
	}
	defer stderr.Close()

	args := make([]string, len(r.command))
	fed := false
	for i, a := range r.command {
		if a == inputPlaceholder {
			a, fed = input, true
		}
		args[i] = a
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if !fed {
		cmd.Stdin = in
	}

	r.log.Info().Str("dir", dir).Strs("args", args).Msg("phits run started")
	start := time.Now()
	err = cmd.Run()
	res.Duration = time.Since(start)
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			err = fmt.Errorf("phits exited with code %d: %w", res.ExitCode, err)
		} else {
			err = fmt.Errorf("run phits: %w", err)
		}
		r.log.Error().Str("dir", dir).Int("exit_code", res.ExitCode).Dur("duration", res.Duration).Err(err).Msg("phits run failed")
		return res, err
	}
	r.log.Info().Str("dir", dir).Dur("duration", res.Duration).Msg("phits run finished")
	return res, nil
}

func openAppend(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	return f, nil
}
