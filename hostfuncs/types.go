package hostfuncs

// Request and response bodies of the bindings. Each binding takes one JSON
// request and answers with one JSON response. The jsonschema tags feed the
// schemas published by `rush abi`.

// OutputTextRequest asks the shell to print a line on its output.
type OutputTextRequest struct {
	Text string `json:"text" jsonschema:"description=Text to print; a newline is appended"`
}

// OutputTextResponse reports how many bytes were written.
type OutputTextResponse struct {
	Written int    `json:"written"`
	Error   string `json:"error,omitempty"`
}

// EnvGetRequest reads one environment variable.
type EnvGetRequest struct {
	Name string `json:"name" jsonschema:"minLength=1"`
}

// EnvGetResponse carries the value, or null when the variable is unset.
type EnvGetResponse struct {
	Value *string `json:"value"`
}

// EnvSetRequest sets one environment variable.
type EnvSetRequest struct {
	Name  string `json:"name" jsonschema:"minLength=1"`
	Value string `json:"value"`
}

// EnvDeleteRequest removes one environment variable.
type EnvDeleteRequest struct {
	Name string `json:"name" jsonschema:"minLength=1"`
}

// EnvVarsRequest lists the environment. It has no fields.
type EnvVarsRequest struct{}

// EnvVarsResponse is a copy of the shell environment.
type EnvVarsResponse struct {
	Vars map[string]string `json:"vars"`
}

// IsExecutableRequest asks whether a path names an executable file.
type IsExecutableRequest struct {
	Path string `json:"path" jsonschema:"description=Absolute path or path relative to the shell's working directory"`
}

// IsExecutableResponse answers IsExecutableRequest.
type IsExecutableResponse struct {
	Executable bool `json:"executable"`
}

// StatusResponse answers bindings that only succeed or fail.
type StatusResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func statusOf(err error) StatusResponse {
	if err != nil {
		return StatusResponse{Error: err.Error()}
	}
	return StatusResponse{OK: true}
}
