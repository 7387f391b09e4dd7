package hostfuncs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// HostFunc is a typed binding: it receives the decoded request and returns
// the response to encode.
type HostFunc[Req any, Resp any] func(context.Context, Req) Resp

// ByteHandler is the untyped form every binding is registered as. Payloads
// are JSON in both directions.
type ByteHandler func(context.Context, []byte) ([]byte, error)

// NewJSONHandler adapts a typed binding to a ByteHandler. An empty payload
// decodes as the zero request. A payload that does not decode is answered
// with a validation ErrorResponse rather than an error, so a plugin sending
// bad input gets something it can parse.
func NewJSONHandler[Req any, Resp any](fn HostFunc[Req, Resp]) ByteHandler {
	return func(ctx context.Context, payload []byte) ([]byte, error) {
		var req Req
		if len(bytes.TrimSpace(payload)) > 0 {
			if err := json.Unmarshal(payload, &req); err != nil {
				return NewValidationError(fmt.Sprintf("failed to unmarshal request: %v", err)).ToJSON(), nil
			}
		}

		resp, err := json.Marshal(fn(ctx, req))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response: %w", err)
		}
		return resp, nil
	}
}
