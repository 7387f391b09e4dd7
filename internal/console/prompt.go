package console

import "strings"

// Tick ends every prompt.
const Tick = "❯"

// Prompt is what the prompt line shows.
type Prompt struct {
	User string
	Cwd  string
	Home string
	// Truncation shortens every directory name to this many characters.
	// Zero leaves them whole.
	Truncation int
	// MultiLine puts the tick on a line of its own.
	MultiLine bool
	// Failed colors the tick as an error after a failed command.
	Failed bool
}

// CollapsePath replaces a leading home directory with "~" and truncates each
// directory name to truncation characters when truncation is positive.
func CollapsePath(path, home string, truncation int) string {
	if home != "" && home != "/" {
		home = strings.TrimSuffix(home, "/")
		if path == home {
			path = "~"
		} else if rest, ok := strings.CutPrefix(path, home+"/"); ok {
			path = "~/" + rest
		}
	}
	if truncation <= 0 {
		return path
	}

	dirs := strings.Split(path, "/")
	for i, dir := range dirs {
		if r := []rune(dir); len(r) > truncation {
			dirs[i] = string(r[:truncation])
		}
	}
	return strings.Join(dirs, "/")
}

// Render formats p as "user on cwd ❯ ".
func (t Theme) Render(p Prompt) string {
	sep := " "
	if p.MultiLine {
		sep = "\n"
	}
	tick := t.TickOK
	if p.Failed {
		tick = t.TickFailed
	}

	var b strings.Builder
	if p.User != "" {
		b.WriteString(t.User.Render(p.User))
		b.WriteString(" on ")
	}
	b.WriteString(t.Cwd.Render(CollapsePath(p.Cwd, p.Home, p.Truncation)))
	b.WriteString(sep)
	b.WriteString(tick.Render(Tick))
	b.WriteString(" ")
	return b.String()
}
