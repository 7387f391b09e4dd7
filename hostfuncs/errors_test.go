package hostfuncs

import (
	"errors"
	"testing"

	"github.com/rushsh/rush/internal/testutil"
	"github.com/stretchr/testify/assert"
)

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name string
		resp ErrorResponse
		want string
	}{
		{"validation", NewValidationError("bad name"), `{"error":"VALIDATION_ERROR","message":"bad name","code":400}`},
		{"not found", NewNotFoundError("env_frob"), `{"error":"NOT_FOUND","message":"unknown host function: env_frob","code":404}`},
		{"too large", NewTooLargeError(2048, 1024), `{"error":"PAYLOAD_TOO_LARGE","message":"request of 2048 bytes exceeds limit of 1024","code":413}`},
		{"internal", NewInternalError("oops"), `{"error":"INTERNAL_ERROR","message":"oops","code":500}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.AssertJSONEqual(t, tt.want, string(tt.resp.ToJSON()))
		})
	}
}

func TestNewPanicError(t *testing.T) {
	assert.Equal(t, "panic: boom", NewPanicError("boom").Message)
	assert.Equal(t, "panic: wrapped", NewPanicError(errors.New("wrapped")).Message)
	assert.Equal(t, "panic: 42", NewPanicError(42).Message)
}
