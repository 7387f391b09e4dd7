// Package state holds the shell's mutable state: environment, working
// directory, directory history and the status of the last command.
//
// A Shell is shared between the interactive loop and the host bindings that
// plugins call into, so every accessor takes the shell's read/write lock.
package state

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// ErrInvalidName is returned for environment variable names the process
// environment cannot represent.
var ErrInvalidName = errors.New("invalid environment variable name")

// Option configures a Shell.
type Option func(*Shell)

// WithHistoryLimit caps how many previous directories are remembered.
// Zero or a negative value means unlimited.
func WithHistoryLimit(n int) Option {
	return func(s *Shell) {
		s.historyLimit = n
	}
}

// Shell is the state of one shell session.
type Shell struct {
	mu           sync.RWMutex
	env          map[string]string
	cwd          string
	history      []string
	historyLimit int
	lastStatus   int
}

// New creates a Shell with environ ("KEY=value" entries) and working
// directory cwd, which must be absolute.
func New(environ []string, cwd string, opts ...Option) *Shell {
	s := &Shell{
		env: make(map[string]string, len(environ)),
		cwd: filepath.Clean(cwd),
	}
	for _, kv := range environ {
		if key, value, ok := strings.Cut(kv, "="); ok && key != "" {
			s.env[key] = value
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FromProcess creates a Shell from the current process environment and
// working directory.
func FromProcess(opts ...Option) (*Shell, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to read working directory: %w", err)
	}
	return New(os.Environ(), cwd, opts...), nil
}

// Env returns the value of an environment variable.
func (s *Shell) Env(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.env[name]
	return v, ok
}

// SetEnv sets an environment variable.
func (s *Shell) SetEnv(name, value string) error {
	if err := validName(name); err != nil {
		return err
	}
	if strings.ContainsRune(value, 0) {
		return fmt.Errorf("value of %s contains a NUL byte", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.env[name] = value
	return nil
}

// UnsetEnv removes an environment variable. Removing an unset variable is
// not an error.
func (s *Shell) UnsetEnv(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.env, name)
	return nil
}

func validName(name string) error {
	if name == "" || strings.ContainsAny(name, "=\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Environ returns a copy of the environment.
func (s *Shell) Environ() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.env)
}

// EnvList returns the environment as sorted "KEY=value" entries, the form
// os/exec expects.
func (s *Shell) EnvList() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.env))
	for _, key := range slices.Sorted(maps.Keys(s.env)) {
		out = append(out, key+"="+s.env[key])
	}
	return out
}

// Cwd returns the working directory.
func (s *Shell) Cwd() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cwd
}

// Home returns $HOME, or the empty string if it is unset.
func (s *Shell) Home() string {
	home, _ := s.Env("HOME")
	return home
}

// Resolve makes path absolute against the working directory, expanding a
// leading "~" to $HOME.
func (s *Shell) Resolve(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home := s.Home(); home != "" {
			path = home + path[1:]
		}
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(s.Cwd(), path)
}

// Chdir changes the working directory, remembering the previous one and
// updating $PWD and $OLDPWD.
func (s *Shell) Chdir(path string) error {
	target := s.Resolve(path)
	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("cd: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("cd: %s: not a directory", path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, s.cwd)
	if s.historyLimit > 0 && len(s.history) > s.historyLimit {
		s.history = slices.Delete(s.history, 0, len(s.history)-s.historyLimit)
	}
	s.env["OLDPWD"] = s.cwd
	s.env["PWD"] = target
	s.cwd = target
	return nil
}

// History returns previously visited directories, oldest first.
func (s *Shell) History() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.history)
}

// LastStatus returns the exit status of the last command.
func (s *Shell) LastStatus() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastStatus
}

// SetLastStatus records the exit status of the last command.
func (s *Shell) SetLastStatus(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastStatus = code
}
