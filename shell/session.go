// Package shell is the interactive front end: it reads command lines, runs
// them, and tells plugins about each one through hooks.
package shell

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/rushsh/rush/config"
	"github.com/rushsh/rush/host"
	"github.com/rushsh/rush/internal/console"
	"github.com/rushsh/rush/internal/logging"
	"github.com/rushsh/rush/state"
)

// Hooks the shell broadcasts.
const (
	// PreCommandHook receives the command line before it runs.
	PreCommandHook = "pre_command"
	// PostCommandHook receives the command line and its exit status.
	PostCommandHook = "post_command"
	// AutocompleteHook receives the line typed so far. Plugins answer with
	// text to append, or null.
	AutocompleteHook = "provide_autocomplete"
)

// Hooks broadcasts events to plugins. *host.Host implements it.
type Hooks interface {
	RunHook(hook string, args ...any) *host.Pending[struct{}]
	RunHookWithReturn(hook string, args ...any) *host.Pending[[]host.Response]
}

var _ Hooks = (*host.Host)(nil)

// Session is one interactive shell.
type Session struct {
	state   *state.Shell
	cfg     *config.Config
	hooks   Hooks
	console *console.Console
	runner  *Runner
	logger  *slog.Logger
}

type sessionConfig struct {
	stdin          io.Reader
	stdout, stderr io.Writer
	logger         *slog.Logger
}

// Option configures a Session.
type Option func(*sessionConfig)

// WithIO sets the streams commands inherit.
func WithIO(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(c *sessionConfig) {
		c.stdin, c.stdout, c.stderr = stdin, stdout, stderr
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *sessionConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New returns a session over st. hooks may be nil when no plugins run.
func New(st *state.Shell, cfg *config.Config, hooks Hooks, con *console.Console, opts ...Option) *Session {
	c := sessionConfig{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return &Session{
		state:   st,
		cfg:     cfg,
		hooks:   hooks,
		console: con,
		runner:  NewRunner(st, c.stdin, c.stdout, c.stderr),
		logger:  logging.WithComponent(c.logger, "shell"),
	}
}

// Prompt describes the prompt for the current state.
func (s *Session) Prompt() console.Prompt {
	user, _ := s.state.Env("USER")
	return console.Prompt{
		User:       user,
		Cwd:        s.state.Cwd(),
		Home:       s.state.Home(),
		Truncation: s.cfg.TruncationFactor,
		MultiLine:  s.cfg.MultiLinePrompt,
		Failed:     s.state.LastStatus() != StatusOK,
	}
}

// Execute runs one line between the pre_command and post_command hooks and
// records its status. It reports whether the shell should exit, and with
// which code.
func (s *Session) Execute(ctx context.Context, line string) (bool, int) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, s.state.LastStatus()
	}

	s.broadcast(ctx, PreCommandHook, line)
	status, err := s.runner.Run(ctx, SplitArguments(line))
	s.state.SetLastStatus(status)

	var exitReq *ExitRequest
	switch {
	case errors.As(err, &exitReq):
		return true, exitReq.Code
	case errors.Is(err, ErrUnknownCommand):
		s.console.UnknownCommand(SplitArguments(line)[0])
	case err != nil:
		s.console.CommandFailed(err, status, s.cfg.ShowErrors)
	}

	s.broadcast(ctx, PostCommandHook, line, status)
	return false, status
}

// broadcast runs a fire-and-forget hook and waits for it so plugin output
// stays next to the command it belongs to.
func (s *Session) broadcast(ctx context.Context, hook string, args ...any) {
	if s.hooks == nil {
		return
	}
	if _, err := s.hooks.RunHook(hook, args...).Wait(ctx); err != nil {
		s.logger.WarnContext(ctx, "hook broadcast failed", "hook", hook, "error", err)
	}
}

// Complete asks plugins to complete line and returns the first suggestion.
// Plugins answering null or with something other than a string are skipped.
func (s *Session) Complete(ctx context.Context, line string) (string, bool, error) {
	if s.hooks == nil {
		return "", false, nil
	}
	responses, err := s.hooks.RunHookWithReturn(AutocompleteHook, line).Wait(ctx)
	if err != nil {
		return "", false, fmt.Errorf("failed to collect completions: %w", err)
	}
	for _, r := range responses {
		var suggestion *string
		if err := json.Unmarshal(r.Payload, &suggestion); err != nil {
			s.logger.DebugContext(ctx, "ignoring completion", "plugin", r.PluginName, "error", err)
			continue
		}
		if suggestion != nil {
			return *suggestion, true, nil
		}
	}
	return "", false, nil
}

// Run reads lines from in until it is exhausted or a command asks to exit,
// and returns the exit code.
func (s *Session) Run(ctx context.Context, in io.Reader) (int, error) {
	scanner := bufio.NewScanner(in)
	for {
		s.console.Prompt(s.Prompt())
		if !scanner.Scan() {
			break
		}
		if exit, code := s.Execute(ctx, scanner.Text()); exit {
			return code, nil
		}
		if err := ctx.Err(); err != nil {
			return s.state.LastStatus(), err
		}
	}
	if err := scanner.Err(); err != nil {
		return StatusFailure, fmt.Errorf("failed to read input: %w", err)
	}
	return s.state.LastStatus(), nil
}
