package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/rushsh/rush/hostfuncs"
)

// Binding documents one host function: the JSON body a plugin sends and the
// one it receives on success.
type Binding struct {
	Name     string             `json:"name"`
	Request  *jsonschema.Schema `json:"request"`
	Response *jsonschema.Schema `json:"response"`
}

// Document describes the host module a plugin links against.
type Document struct {
	// Module is the import module name of every binding.
	Module string `json:"module"`
	// Signature is the WebAssembly type shared by all bindings.
	Signature string    `json:"signature"`
	Bindings  []Binding `json:"bindings"`
	// Error is returned instead of Response when a call fails.
	Error *jsonschema.Schema `json:"error"`
}

type wireTypes struct {
	name          string
	request, resp any
}

var bindingTypes = []wireTypes{
	{hostfuncs.FuncOutputText, hostfuncs.OutputTextRequest{}, hostfuncs.OutputTextResponse{}},
	{hostfuncs.FuncEnvGet, hostfuncs.EnvGetRequest{}, hostfuncs.EnvGetResponse{}},
	{hostfuncs.FuncEnvSet, hostfuncs.EnvSetRequest{}, hostfuncs.StatusResponse{}},
	{hostfuncs.FuncEnvDelete, hostfuncs.EnvDeleteRequest{}, hostfuncs.StatusResponse{}},
	{hostfuncs.FuncEnvVars, hostfuncs.EnvVarsRequest{}, hostfuncs.EnvVarsResponse{}},
	{hostfuncs.FuncIsExecutable, hostfuncs.IsExecutableRequest{}, hostfuncs.IsExecutableResponse{}},
}

// ABI describes the built-in bindings as served under module. Bindings are
// listed in the order they are documented, not registry order.
func ABI(module string) *Document {
	doc := &Document{
		Module:    module,
		Signature: "(i64) -> i64",
		Error:     Reflect(hostfuncs.ErrorResponse{}),
	}
	for _, b := range bindingTypes {
		doc.Bindings = append(doc.Bindings, Binding{
			Name:     b.name,
			Request:  Reflect(b.request),
			Response: Reflect(b.resp),
		})
	}
	return doc
}

// Names lists the documented bindings.
func (d *Document) Names() []string {
	names := make([]string, len(d.Bindings))
	for i, b := range d.Bindings {
		names[i] = b.Name
	}
	return names
}

// Lookup returns the binding called name.
func (d *Document) Lookup(name string) (Binding, bool) {
	for _, b := range d.Bindings {
		if b.Name == name {
			return b, true
		}
	}
	return Binding{}, false
}

// JSON renders the document indented for reading.
func (d *Document) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal abi document: %w", err)
	}
	return data, nil
}
