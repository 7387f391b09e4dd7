package pdk

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

// Decode unmarshals the JSON argument at span into v.
func Decode(span uint64, v any) error {
	if err := json.Unmarshal(Input(span), v); err != nil {
		return fmt.Errorf("failed to decode hook argument: %w", err)
	}
	return nil
}

// Return marshals v and returns the span of the encoded value, for hooks
// whose result the shell collects. A value that cannot be marshaled is logged
// and returned as null.
func Return(v any) uint64 {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to encode hook result", "error", err)
		data = []byte("null")
	}
	return Output(data)
}
