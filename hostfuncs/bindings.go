package hostfuncs

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rushsh/rush/state"
)

// HostBindings is the complete set of shell capabilities a plugin can reach.
// An implementation is passed to the executor explicitly; there is no
// process-wide instance.
type HostBindings interface {
	OutputText(ctx context.Context, text string) (int, error)
	EnvGet(ctx context.Context, name string) (string, bool)
	EnvSet(ctx context.Context, name, value string) error
	EnvDelete(ctx context.Context, name string) error
	EnvVars(ctx context.Context) map[string]string
	IsExecutable(ctx context.Context, path string) bool
}

// ShellBindings serves HostBindings from a live shell session.
type ShellBindings struct {
	shell *state.Shell

	outMu sync.Mutex
	out   io.Writer
}

var _ HostBindings = (*ShellBindings)(nil)

// NewShellBindings binds plugins to shell, printing their output to out.
func NewShellBindings(shell *state.Shell, out io.Writer) *ShellBindings {
	return &ShellBindings{shell: shell, out: out}
}

func (b *ShellBindings) OutputText(_ context.Context, text string) (int, error) {
	b.outMu.Lock()
	defer b.outMu.Unlock()
	return fmt.Fprintln(b.out, text)
}

func (b *ShellBindings) EnvGet(_ context.Context, name string) (string, bool) {
	return b.shell.Env(name)
}

func (b *ShellBindings) EnvSet(_ context.Context, name, value string) error {
	return b.shell.SetEnv(name, value)
}

func (b *ShellBindings) EnvDelete(_ context.Context, name string) error {
	return b.shell.UnsetEnv(name)
}

func (b *ShellBindings) EnvVars(context.Context) map[string]string {
	return b.shell.Environ()
}

// IsExecutable reports whether path, resolved against the shell's working
// directory, is a regular file with an execute bit set.
func (b *ShellBindings) IsExecutable(_ context.Context, path string) bool {
	info, err := os.Stat(b.shell.Resolve(path))
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0
}

// NoOpBindings answers every binding without touching anything: output is
// discarded and the environment is always empty.
type NoOpBindings struct{}

var _ HostBindings = NoOpBindings{}

func (NoOpBindings) OutputText(_ context.Context, text string) (int, error) {
	return len(text) + 1, nil
}

func (NoOpBindings) EnvGet(context.Context, string) (string, bool) { return "", false }

func (NoOpBindings) EnvSet(context.Context, string, string) error { return nil }

func (NoOpBindings) EnvDelete(context.Context, string) error { return nil }

func (NoOpBindings) EnvVars(context.Context) map[string]string { return map[string]string{} }

func (NoOpBindings) IsExecutable(context.Context, string) bool { return false }
