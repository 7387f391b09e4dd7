package pdk

import (
	"encoding/json"
	"fmt"

	"github.com/rushsh/rush/hostfuncs"
)

// Transport sends one binding request and returns the raw response.
type Transport func(binding string, request []byte) []byte

// BindingError is a failure reported by the shell instead of a response.
type BindingError struct {
	Binding string
	hostfuncs.ErrorResponse
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("%s: %s (%d): %s", e.Binding, e.ErrorResponse.Error, e.Code, e.Message)
}

// Client calls the shell's bindings.
type Client struct {
	call Transport
}

// NewClient returns a client sending requests through t.
func NewClient(t Transport) *Client {
	return &Client{call: t}
}

// OutputText prints text and a newline on the shell's output.
func (c *Client) OutputText(text string) (int, error) {
	resp, err := invoke[hostfuncs.OutputTextResponse](c, hostfuncs.FuncOutputText, hostfuncs.OutputTextRequest{Text: text})
	if err != nil {
		return 0, err
	}
	if resp.Error != "" {
		return resp.Written, fmt.Errorf("%s: %s", hostfuncs.FuncOutputText, resp.Error)
	}
	return resp.Written, nil
}

// EnvGet reads a shell variable.
func (c *Client) EnvGet(name string) (string, bool, error) {
	resp, err := invoke[hostfuncs.EnvGetResponse](c, hostfuncs.FuncEnvGet, hostfuncs.EnvGetRequest{Name: name})
	if err != nil || resp.Value == nil {
		return "", false, err
	}
	return *resp.Value, true, nil
}

// EnvSet sets a shell variable.
func (c *Client) EnvSet(name, value string) error {
	resp, err := invoke[hostfuncs.StatusResponse](c, hostfuncs.FuncEnvSet, hostfuncs.EnvSetRequest{Name: name, Value: value})
	return statusError(hostfuncs.FuncEnvSet, resp, err)
}

// EnvDelete unsets a shell variable.
func (c *Client) EnvDelete(name string) error {
	resp, err := invoke[hostfuncs.StatusResponse](c, hostfuncs.FuncEnvDelete, hostfuncs.EnvDeleteRequest{Name: name})
	return statusError(hostfuncs.FuncEnvDelete, resp, err)
}

// EnvVars returns a copy of the shell environment.
func (c *Client) EnvVars() (map[string]string, error) {
	resp, err := invoke[hostfuncs.EnvVarsResponse](c, hostfuncs.FuncEnvVars, hostfuncs.EnvVarsRequest{})
	return resp.Vars, err
}

// IsExecutable reports whether path, relative to the shell's working
// directory, is an executable file.
func (c *Client) IsExecutable(path string) (bool, error) {
	resp, err := invoke[hostfuncs.IsExecutableResponse](c, hostfuncs.FuncIsExecutable, hostfuncs.IsExecutableRequest{Path: path})
	return resp.Executable, err
}

func invoke[Resp any](c *Client, binding string, req any) (Resp, error) {
	var resp Resp
	payload, err := json.Marshal(req)
	if err != nil {
		return resp, fmt.Errorf("failed to marshal %s request: %w", binding, err)
	}
	raw := c.call(binding, payload)

	var failure hostfuncs.ErrorResponse
	if err := json.Unmarshal(raw, &failure); err == nil && failure.Code != 0 {
		return resp, &BindingError{Binding: binding, ErrorResponse: failure}
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return resp, fmt.Errorf("failed to decode %s response: %w", binding, err)
	}
	return resp, nil
}

func statusError(binding string, resp hostfuncs.StatusResponse, err error) error {
	switch {
	case err != nil:
		return err
	case !resp.OK:
		return fmt.Errorf("%s: %s", binding, resp.Error)
	default:
		return nil
	}
}
