// Package testutil provides common test utilities and assertions for rush tests
package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

var moduleSeq atomic.Uint64

// AssertJSONEqual compares two JSON strings for equality, ignoring formatting
func AssertJSONEqual(t *testing.T, expected, actual string, msgAndArgs ...interface{}) {
	t.Helper()

	var expectedJSON, actualJSON interface{}
	require.NoError(t, json.Unmarshal([]byte(expected), &expectedJSON), "expected JSON is invalid")
	require.NoError(t, json.Unmarshal([]byte(actual), &actualJSON), "actual JSON is invalid")

	assert.Equal(t, expectedJSON, actualJSON, msgAndArgs...)
}

// RequirePanicsAs asserts that f panics with an error assignable to target.
func RequirePanicsAs(t *testing.T, f func(), target any) {
	t.Helper()

	var recovered any
	func() {
		defer func() { recovered = recover() }()
		f()
	}()
	require.NotNil(t, recovered, "expected a panic")
	err, ok := recovered.(error)
	require.True(t, ok, "panic value %v is not an error", recovered)
	require.True(t, errors.As(err, target), "panic %v is not a %T", err, target)
}

// NewRuntime returns a wazero runtime that is closed when the test ends.
func NewRuntime(t testing.TB) wazero.Runtime {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { _ = rt.Close(ctx) })
	return rt
}

// Instantiate compiles m and instantiates it under a unique module name.
func Instantiate(t testing.TB, rt wazero.Runtime, m *Module) api.Module {
	t.Helper()
	name := fmt.Sprintf("test-module-%d", moduleSeq.Add(1))
	mod, err := rt.InstantiateWithConfig(context.Background(), m.Encode(), wazero.NewModuleConfig().WithName(name))
	require.NoError(t, err, "instantiate test module")
	return mod
}

// GlobalValue reads an exported i32 global such as "dealloc_count".
func GlobalValue(t testing.TB, mod api.Module, name string) uint32 {
	t.Helper()
	g := mod.ExportedGlobal(name)
	require.NotNil(t, g, "global %q not exported", name)
	return uint32(g.Get()) //nolint:gosec // G115: i32 globals
}
