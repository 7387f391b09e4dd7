package hostfuncs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCallFrom_Missing(t *testing.T) {
	_, ok := CallFrom(context.Background())
	assert.False(t, ok)
}

func TestWithPlugin_KeepsFunction(t *testing.T) {
	ctx := withFunction(context.Background(), "env_get")
	ctx = WithPlugin(ctx, "ls.wasm")

	c, ok := CallFrom(ctx)
	assert.True(t, ok)
	assert.Equal(t, Call{Function: "env_get", Plugin: "ls.wasm"}, c)
}
