// Package hostfuncs implements the bindings the shell offers to plugins.
//
// Bindings are plain Go: each takes a JSON request and returns a JSON
// response, and failures are reported as ErrorResponse JSON rather than
// traps. The wazero adapter in infrastructure/wazero exposes a registry of
// them as the "rush" host module.
package hostfuncs
