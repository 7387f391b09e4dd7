package console

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Console writes prompts to out and diagnostics to errOut. It is safe for
// concurrent use; crash reports arrive from the plugin worker.
type Console struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
	theme  Theme
}

// New returns a console whose colors follow what out supports.
func New(out, errOut io.Writer) *Console {
	return &Console{
		out:    out,
		errOut: errOut,
		theme:  NewDefaultTheme(lipgloss.NewRenderer(out)),
	}
}

// NewWithTheme returns a console using theme as given.
func NewWithTheme(out, errOut io.Writer, theme Theme) *Console {
	return &Console{out: out, errOut: errOut, theme: theme}
}

// Theme returns the styles in use.
func (c *Console) Theme() Theme {
	return c.theme
}

// Prompt writes the prompt for p.
func (c *Console) Prompt(p Prompt) {
	c.write(c.out, c.theme.Render(p))
}

// Println writes a line of plain output.
func (c *Console) Println(text string) {
	c.write(c.out, text+"\n")
}

// CommandFailed reports a failed command. The full error and exit status are
// only shown when verbose is set.
func (c *Console) CommandFailed(err error, status int, verbose bool) {
	if !verbose {
		return
	}
	msg := fmt.Sprintf("Error: %v", err)
	if status > 0 {
		msg = fmt.Sprintf("%s (exit status %d)", msg, status)
	}
	c.write(c.errOut, c.theme.Error.Render(msg)+"\n")
}

// UnknownCommand reports a command that is neither built in nor on PATH.
func (c *Console) UnknownCommand(name string) {
	c.write(c.errOut, "Unknown command: "+c.theme.Error.Render(name)+"\n")
}

// PluginCrashed reports a plugin the host has evicted. Its signature fits
// host.WithCrashHandler.
func (c *Console) PluginCrashed(plugin string, err error) {
	c.write(c.errOut, c.theme.Error.Render(fmt.Sprintf("rush: plugin %s crashed: %v", plugin, err))+"\n")
}

// Warn reports a recoverable problem.
func (c *Console) Warn(msg string) {
	c.write(c.errOut, c.theme.Dim.Render("rush: "+msg)+"\n")
}

func (c *Console) write(w io.Writer, s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = io.WriteString(w, s)
}
