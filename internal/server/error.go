package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/book-expert/tts-capability/internal/core"
)

// errorMap is a whitelist that maps error codes to status codes.
var errorMap = map[string]int{
	"validation_error": http.StatusBadRequest,
	"not_found":        http.StatusNotFound,
	"invalid_voice":    http.StatusBadRequest,
	"not_ready":        http.StatusServiceUnavailable,
	"timeout":          http.StatusGatewayTimeout,
	"engine_error":     http.StatusInternalServerError,
}

// errInternalMasked replaces the detail of unclassified errors.
var errInternalMasked = errors.New("internal error during synthesis")

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code"`
}

// ErrorStatusCode returns the HTTP status code for an error.
func ErrorStatusCode(err error) int {
	if code, ok := errorMap[core.Code(err)]; ok {
		return code
	}

	return http.StatusInternalServerError
}

// errorResponse builds the response body. Unrecognized errors are masked.
func errorResponse(err error) ErrorResponse {
	code := core.Code(err)
	if _, ok := errorMap[code]; !ok {
		return ErrorResponse{Detail: errInternalMasked.Error(), ErrorCode: code}
	}

	return ErrorResponse{Detail: err.Error(), ErrorCode: code}
}

// writeError logs err and writes it as JSON.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := ErrorStatusCode(err)

	s.log.Warn("http error: %s %s -> %d %v", r.Method, r.URL.Path, status, err)

	writeJSON(w, status, errorResponse(err))
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", core.ErrValidation, fmt.Sprintf(format, args...))
}
