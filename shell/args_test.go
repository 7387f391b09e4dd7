package shell

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitArguments(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"", nil},
		{"   ", nil},
		{"ls", []string{"ls"}},
		{"ls -la /tmp", []string{"ls", "-la", "/tmp"}},
		{"  echo   spaced\tout  ", []string{"echo", "spaced", "out"}},
		{`echo "hello world"`, []string{"echo", "hello world"}},
		{`echo pre"fix suf"fix`, []string{"echo", "prefix suffix"}},
		{`echo ""`, []string{"echo", ""}},
		{`echo "unterminated arg`, []string{"echo", "unterminated arg"}},
		{`echo 'hello world'`, []string{"echo", "hello world"}},
		{`echo ''`, []string{"echo", ""}},
		{`echo "it's" 'say "hi"'`, []string{"echo", "it's", `say "hi"`}},
		{`echo 'unterminated arg`, []string{"echo", "unterminated arg"}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitArguments(tt.line))
		})
	}
}
