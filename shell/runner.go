package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rushsh/rush/state"
)

// Exit statuses the runner reports itself.
const (
	StatusOK       = 0
	StatusFailure  = 1
	StatusNotFound = 127
)

// ErrUnknownCommand is returned for a command that is neither built in nor
// found on PATH.
var ErrUnknownCommand = errors.New("unknown command")

// ExitRequest is returned by the exit builtin.
type ExitRequest struct {
	Code int
}

func (e *ExitRequest) Error() string {
	return fmt.Sprintf("exit %d", e.Code)
}

type builtin func(ctx context.Context, r *Runner, args []string) (int, error)

// Runner executes one command line against the shell state.
type Runner struct {
	state    *state.Shell
	stdin    io.Reader
	stdout   io.Writer
	stderr   io.Writer
	builtins map[string]builtin
}

// NewRunner returns a runner whose commands use the given streams.
func NewRunner(st *state.Shell, stdin io.Reader, stdout, stderr io.Writer) *Runner {
	return &Runner{
		state:  st,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		builtins: map[string]builtin{
			"cd":   changeDirectory,
			"pwd":  workingDirectory,
			"exit": exit,
		},
	}
}

// IsBuiltin reports whether name runs inside the shell.
func (r *Runner) IsBuiltin(name string) bool {
	_, ok := r.builtins[name]
	return ok
}

// Run executes args, the first being the command name, and returns its exit
// status. A command that ran and failed yields its status along with an
// error describing the failure.
func (r *Runner) Run(ctx context.Context, args []string) (int, error) {
	if len(args) == 0 {
		return StatusOK, nil
	}
	if b, ok := r.builtins[args[0]]; ok {
		return b(ctx, r, args[1:])
	}

	path, err := r.LookPath(args[0])
	if err != nil {
		return StatusNotFound, err
	}

	cmd := exec.CommandContext(ctx, path, args[1:]...)
	cmd.Args[0] = args[0]
	cmd.Dir = r.state.Cwd()
	cmd.Env = r.state.EnvList()
	cmd.Stdin = r.stdin
	cmd.Stdout = r.stdout
	cmd.Stderr = r.stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), fmt.Errorf("%s: %w", args[0], err)
		}
		return StatusFailure, fmt.Errorf("failed to run %s: %w", args[0], err)
	}
	return StatusOK, nil
}

// LookPath resolves name the way the shell does: names containing a slash
// are taken relative to the working directory, anything else is searched for
// in the shell's PATH.
func (r *Runner) LookPath(name string) (string, error) {
	if strings.Contains(name, "/") {
		path := r.state.Resolve(name)
		if isExecutable(path) {
			return path, nil
		}
		return "", fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}

	pathEnv, _ := r.state.Env("PATH")
	for _, dir := range filepath.SplitList(pathEnv) {
		if dir == "" {
			dir = "."
		}
		path := filepath.Join(r.state.Resolve(dir), name)
		if isExecutable(path) {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownCommand, name)
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Mode()&0o111 != 0
}

func changeDirectory(_ context.Context, r *Runner, args []string) (int, error) {
	var target string
	switch len(args) {
	case 0:
		target = r.state.Home()
	case 1:
		target = args[0]
	default:
		return StatusFailure, errors.New("usage: cd [path]")
	}
	if target == "-" {
		prev, ok := r.state.Env("OLDPWD")
		if !ok {
			return StatusFailure, errors.New("cd: OLDPWD not set")
		}
		target = prev
	}
	if err := r.state.Chdir(target); err != nil {
		return StatusFailure, err
	}
	return StatusOK, nil
}

func workingDirectory(_ context.Context, r *Runner, args []string) (int, error) {
	if len(args) != 0 {
		return StatusFailure, errors.New("usage: pwd")
	}
	_, err := fmt.Fprintln(r.stdout, r.state.Cwd())
	if err != nil {
		return StatusFailure, err
	}
	return StatusOK, nil
}

func exit(_ context.Context, _ *Runner, args []string) (int, error) {
	code := StatusOK
	switch len(args) {
	case 0:
	case 1:
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return StatusFailure, fmt.Errorf("exit: invalid status %q", args[0])
		}
		code = n
	default:
		return StatusFailure, errors.New("usage: exit [status]")
	}
	return code, &ExitRequest{Code: code}
}
