package hostfuncs

import (
	"encoding/json"
	"fmt"
)

// Error type identifiers carried in ErrorResponse.Error.
const (
	ErrorValidation = "VALIDATION_ERROR"
	ErrorNotFound   = "NOT_FOUND"
	ErrorTooLarge   = "PAYLOAD_TOO_LARGE"
	ErrorInternal   = "INTERNAL_ERROR"
)

// ErrorResponse is the JSON a binding returns instead of trapping the plugin.
// A plugin tells it apart from a normal response by the "error" field.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// ToJSON serializes the response. It cannot fail for this type.
func (e ErrorResponse) ToJSON() []byte {
	data, _ := json.Marshal(e)
	return data
}

// NewValidationError reports a request the binding could not accept.
func NewValidationError(message string) ErrorResponse {
	return ErrorResponse{Error: ErrorValidation, Message: message, Code: 400}
}

// NewNotFoundError reports an unknown binding name.
func NewNotFoundError(name string) ErrorResponse {
	return ErrorResponse{Error: ErrorNotFound, Message: "unknown host function: " + name, Code: 404}
}

// NewTooLargeError reports a request above the size limit.
func NewTooLargeError(size, limit uint32) ErrorResponse {
	return ErrorResponse{
		Error:   ErrorTooLarge,
		Message: fmt.Sprintf("request of %d bytes exceeds limit of %d", size, limit),
		Code:    413,
	}
}

// NewInternalError reports a failure on the host side.
func NewInternalError(message string) ErrorResponse {
	return ErrorResponse{Error: ErrorInternal, Message: message, Code: 500}
}

// NewPanicError reports a recovered panic.
func NewPanicError(panicValue any) ErrorResponse {
	var msg string
	switch v := panicValue.(type) {
	case error:
		msg = v.Error()
	case string:
		msg = v
	default:
		msg = fmt.Sprintf("%v", v)
	}
	return NewInternalError("panic: " + msg)
}
