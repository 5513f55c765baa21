// Package vcs runs version-control commands as synchronous subprocesses.
//
// A [Runner] executes one command in a working directory, waits for it to
// exit, and captures both output streams in full. A non-zero exit status is
// returned as an [errors.SubprocessError] carrying the captured streams
// verbatim. [Git] wraps a Runner with the handful of git operations the
// release command needs.
package vcs

import (
	"bytes"
	stderrors "errors"
	"os/exec"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pkgwarden/pkg/errors"
)

// Result is the outcome of a finished command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner executes a command in dir.
type Runner interface {
	Run(dir string, argv ...string) (Result, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	Logger *log.Logger
}

var _ Runner = (*ExecRunner)(nil)

// Run starts argv[0] with the remaining arguments in dir and waits for it.
func (r *ExecRunner) Run(dir string, argv ...string) (Result, error) {
	if len(argv) == 0 {
		return Result{}, errors.New(errors.ErrCodeConfiguration, "empty command")
	}
	logger := r.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Debug("running command", "dir", dir, "argv", strings.Join(argv, " "))

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		logger.Debug("command failed", "argv", argv[0], "exit", res.ExitCode)
		return res, &errors.SubprocessError{
			Dir:      dir,
			Argv:     argv,
			ExitCode: res.ExitCode,
			Stdout:   res.Stdout,
			Stderr:   res.Stderr,
		}
	}
	res.ExitCode = -1
	return res, &errors.SubprocessError{Dir: dir, Argv: argv, ExitCode: -1, Cause: err}
}

// FakeRunner records calls and replays canned results. Results are matched by
// the space-joined argv; unmatched commands succeed with empty output.
type FakeRunner struct {
	Results map[string]Result
	Calls   [][]string
}

var _ Runner = (*FakeRunner)(nil)

// Run implements [Runner].
func (f *FakeRunner) Run(dir string, argv ...string) (Result, error) {
	f.Calls = append(f.Calls, append([]string(nil), argv...))
	res := f.Results[strings.Join(argv, " ")]
	if res.ExitCode != 0 {
		return res, &errors.SubprocessError{
			Dir:      dir,
			Argv:     argv,
			ExitCode: res.ExitCode,
			Stdout:   res.Stdout,
			Stderr:   res.Stderr,
		}
	}
	return res, nil
}
