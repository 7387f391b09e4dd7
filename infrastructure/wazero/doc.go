// Package wazero exposes a hostfuncs.HandlerRegistry to plugins running on the
// wazero runtime.
//
// Every binding becomes an export of one host module (default "rush") with
// the signature (i64) -> i64: the argument is the packed span of a JSON
// request in the caller's memory, the result the packed span of the JSON
// response, which the adapter places in memory obtained from the caller's
// allocate export.
//
//	registry, err := hostfuncs.DefaultRegistry(bindings)
//	if err != nil {
//	    return err
//	}
//	runtime := wazero.NewRuntime(ctx)
//	err = rushwazero.RegisterWithRuntime(ctx, runtime, registry,
//	    rushwazero.WithCustomHandler(rushwazero.LogMessageHandler(logger)),
//	)
package wazero
