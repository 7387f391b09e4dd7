package console

import (
	"bytes"
	"errors"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestCollapsePath(t *testing.T) {
	tests := []struct {
		name       string
		path, home string
		truncation int
		want       string
	}{
		{"home itself", "/home/ada", "/home/ada", 0, "~"},
		{"under home", "/home/ada/src/rush", "/home/ada", 0, "~/src/rush"},
		{"home with slash", "/home/ada/src", "/home/ada/", 0, "~/src"},
		{"sibling prefix", "/home/adam/src", "/home/ada", 0, "/home/adam/src"},
		{"outside home", "/etc/rush", "/home/ada", 0, "/etc/rush"},
		{"no home", "/home/ada", "", 0, "/home/ada"},
		{"root home", "/usr/bin", "/", 0, "/usr/bin"},
		{"truncated", "/home/ada/projects/rush", "/home/ada", 3, "~/pro/rus"},
		{"truncated absolute", "/usr/local/share", "/home/ada", 2, "/us/lo/sh"},
		{"truncation keeps short names", "/a/bc", "", 5, "/a/bc"},
		{"truncation counts runes", "/häuser/ñandú", "", 2, "/hä/ña"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CollapsePath(tt.path, tt.home, tt.truncation))
		})
	}
}

func bracketTheme() Theme {
	wrap := func(tag string) lipgloss.Style {
		return lipgloss.NewStyle().Transform(func(s string) string { return "<" + tag + ">" + s + "</" + tag + ">" })
	}
	return Theme{
		User:       wrap("user"),
		Cwd:        wrap("cwd"),
		TickOK:     wrap("ok"),
		TickFailed: wrap("fail"),
		Error:      wrap("err"),
		Dim:        wrap("dim"),
	}
}

func TestRender(t *testing.T) {
	theme := bracketTheme()
	p := Prompt{User: "ada", Cwd: "/home/ada/src", Home: "/home/ada"}

	assert.Equal(t, "<user>ada</user> on <cwd>~/src</cwd> <ok>❯</ok> ", theme.Render(p))

	p.MultiLine = true
	p.Failed = true
	assert.Equal(t, "<user>ada</user> on <cwd>~/src</cwd>\n<fail>❯</fail> ", theme.Render(p))

	assert.Equal(t, "<cwd>/tmp</cwd> <ok>❯</ok> ", theme.Render(Prompt{Cwd: "/tmp"}))
}

func TestConsole_PlainWhenNotATerminal(t *testing.T) {
	var out, errOut bytes.Buffer
	c := New(&out, &errOut)

	c.Prompt(Prompt{User: "ada", Cwd: "/home/ada", Home: "/home/ada"})
	assert.Equal(t, "ada on ~ ❯ ", out.String())
}

func TestConsole_Diagnostics(t *testing.T) {
	var out, errOut bytes.Buffer
	c := NewWithTheme(&out, &errOut, bracketTheme())

	c.Println("hi")
	c.UnknownCommand("frob")
	c.PluginCrashed("git.wasm", errors.New("wasm error: unreachable"))
	c.Warn("no config file")

	assert.Equal(t, "hi\n", out.String())
	assert.Equal(t,
		"Unknown command: <err>frob</err>\n"+
			"<err>rush: plugin git.wasm crashed: wasm error: unreachable</err>\n"+
			"<dim>rush: no config file</dim>\n",
		errOut.String())
}

func TestConsole_CommandFailed(t *testing.T) {
	var errOut bytes.Buffer
	c := NewWithTheme(&bytes.Buffer{}, &errOut, bracketTheme())

	c.CommandFailed(errors.New("exit status 2"), 2, false)
	assert.Empty(t, errOut.String(), "quiet unless verbose")

	c.CommandFailed(errors.New("boom"), 2, true)
	c.CommandFailed(errors.New("not found"), 0, true)
	assert.Equal(t,
		"<err>Error: boom (exit status 2)</err>\n<err>Error: not found</err>\n",
		errOut.String())
}
