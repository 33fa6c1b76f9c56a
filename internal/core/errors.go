package core

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the dispatcher, the resolver and the HTTP surface.
// Callers wrap these with fmt.Errorf("%w: ...") and match with errors.Is.
var (
	// ErrValidation indicates a malformed request.
	ErrValidation = errors.New("validation error")
	// ErrNotFound indicates an unknown voice id.
	ErrNotFound = errors.New("voice not found")
	// ErrNotReady indicates that the artifacts of a resolved voice are missing.
	ErrNotReady = errors.New("voice model not ready")
	// ErrInvalidVoice indicates a language or voice code the engine does not support.
	ErrInvalidVoice = errors.New("invalid voice")
	// ErrTimeout indicates an engine exceeded its wall-clock bound.
	ErrTimeout = errors.New("synthesis timed out")
	// ErrEngine indicates a non-zero engine exit.
	ErrEngine = errors.New("engine error")
	// ErrInternal indicates an unexpected fault in dispatch.
	ErrInternal = errors.New("internal error")
)

// ErrTextEmpty is returned when a request carries no text.
var ErrTextEmpty = fmt.Errorf("%w: text cannot be empty", ErrValidation)

// Code returns a machine-readable classification for err.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNotReady):
		return "not_ready"
	case errors.Is(err, ErrInvalidVoice):
		return "invalid_voice"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrEngine):
		return "engine_error"
	default:
		return "internal_error"
	}
}
