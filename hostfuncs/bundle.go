package hostfuncs

import (
	"context"
	"maps"
)

// Binding names exported by the host module.
const (
	FuncOutputText   = "output_text"
	FuncEnvGet       = "env_get"
	FuncEnvSet       = "env_set"
	FuncEnvDelete    = "env_delete"
	FuncEnvVars      = "env_vars"
	FuncIsExecutable = "fs_is_executable"
)

// HostFuncBundle is a named group of bindings registered together.
type HostFuncBundle interface {
	Handlers() map[string]ByteHandler
}

type staticBundle map[string]ByteHandler

func (b staticBundle) Handlers() map[string]ByteHandler {
	return maps.Clone(b)
}

// BindingsBundle exposes b as the shell's bindings: output_text, env_get,
// env_set, env_delete, env_vars and fs_is_executable.
func BindingsBundle(b HostBindings) HostFuncBundle {
	return staticBundle{
		FuncOutputText: NewJSONHandler(func(ctx context.Context, req OutputTextRequest) OutputTextResponse {
			n, err := b.OutputText(ctx, req.Text)
			if err != nil {
				return OutputTextResponse{Written: n, Error: err.Error()}
			}
			return OutputTextResponse{Written: n}
		}),
		FuncEnvGet: NewJSONHandler(func(ctx context.Context, req EnvGetRequest) EnvGetResponse {
			if v, ok := b.EnvGet(ctx, req.Name); ok {
				return EnvGetResponse{Value: &v}
			}
			return EnvGetResponse{}
		}),
		FuncEnvSet: NewJSONHandler(func(ctx context.Context, req EnvSetRequest) StatusResponse {
			return statusOf(b.EnvSet(ctx, req.Name, req.Value))
		}),
		FuncEnvDelete: NewJSONHandler(func(ctx context.Context, req EnvDeleteRequest) StatusResponse {
			return statusOf(b.EnvDelete(ctx, req.Name))
		}),
		FuncEnvVars: NewJSONHandler(func(ctx context.Context, _ EnvVarsRequest) EnvVarsResponse {
			return EnvVarsResponse{Vars: b.EnvVars(ctx)}
		}),
		FuncIsExecutable: NewJSONHandler(func(ctx context.Context, req IsExecutableRequest) IsExecutableResponse {
			return IsExecutableResponse{Executable: b.IsExecutable(ctx, req.Path)}
		}),
	}
}

// CompositeBundle merges bundles. Later bundles win on name clashes.
func CompositeBundle(bundles ...HostFuncBundle) HostFuncBundle {
	merged := staticBundle{}
	for _, bundle := range bundles {
		maps.Copy(merged, bundle.Handlers())
	}
	return merged
}

// DefaultRegistry builds the registry the executor installs for b: the
// bindings bundle behind panic recovery and logging middleware.
func DefaultRegistry(b HostBindings, mw ...Middleware) (*HandlerRegistry, error) {
	return NewRegistry(
		WithMiddleware(PanicRecoveryMiddleware()),
		WithMiddleware(mw...),
		WithBundle(BindingsBundle(b)),
	)
}
