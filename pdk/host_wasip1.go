//go:build wasip1

package pdk

import (
	"log/slog"

	"github.com/rushsh/rush/hostfuncs"
)

//go:wasmimport rush output_text
func hostOutputText(request uint64) uint64

//go:wasmimport rush env_get
func hostEnvGet(request uint64) uint64

//go:wasmimport rush env_set
func hostEnvSet(request uint64) uint64

//go:wasmimport rush env_delete
func hostEnvDelete(request uint64) uint64

//go:wasmimport rush env_vars
func hostEnvVars(request uint64) uint64

//go:wasmimport rush fs_is_executable
func hostIsExecutable(request uint64) uint64

//go:wasmimport rush log_message
func hostLogMessage(message uint64)

var imports = map[string]func(uint64) uint64{
	hostfuncs.FuncOutputText:   hostOutputText,
	hostfuncs.FuncEnvGet:       hostEnvGet,
	hostfuncs.FuncEnvSet:       hostEnvSet,
	hostfuncs.FuncEnvDelete:    hostEnvDelete,
	hostfuncs.FuncEnvVars:      hostEnvVars,
	hostfuncs.FuncIsExecutable: hostIsExecutable,
}

// Shell is the client for the shell running this plugin.
var Shell = NewClient(wasmTransport)

func init() {
	slog.SetDefault(slog.New(NewLogHandler(sendLog, WithLevel(slog.LevelDebug))))
}

func wasmTransport(binding string, request []byte) []byte {
	fn, ok := imports[binding]
	if !ok {
		return hostfuncs.NewNotFoundError(binding).ToJSON()
	}
	req := Output(request)
	defer release(req)

	resp := fn(req)
	defer release(resp)
	return Input(resp)
}

func sendLog(payload []byte) {
	span := Output(payload)
	defer release(span)
	hostLogMessage(span)
}
