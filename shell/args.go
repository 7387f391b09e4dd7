package shell

import "strings"

// SplitArguments splits a line on spaces and tabs. Single or double quotes
// group words, including empty ones, and are removed; inside one kind of quote
// the other is literal. An unterminated quote runs to the end of the line.
func SplitArguments(line string) []string {
	var (
		args    []string
		current strings.Builder
		inArg   bool
		quote   rune
	)
	for _, c := range line {
		switch {
		case quote == 0 && (c == '"' || c == '\''):
			quote = c
			inArg = true
		case quote != 0 && c == quote:
			quote = 0
		case (c == ' ' || c == '\t') && quote == 0:
			if inArg {
				args = append(args, current.String())
				current.Reset()
				inArg = false
			}
		default:
			current.WriteRune(c)
			inArg = true
		}
	}
	if inArg {
		args = append(args, current.String())
	}
	return args
}
