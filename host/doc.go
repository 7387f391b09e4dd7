// Package host runs the shell's plugins.
//
// An Executor owns the wazero runtime and the modules plugins link against.
// A Host owns the loaded plugins and a single worker goroutine that
// broadcasts hooks to them in load order. Callers submit events with RunHook
// or RunHookWithReturn and get a Pending result back immediately; a plugin
// that fails is evicted without disturbing the others.
package host
