// Package client talks to a running tts-capability service over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/book-expert/tts-capability/internal/core"
	"github.com/book-expert/tts-capability/internal/health"
	"github.com/book-expert/tts-capability/internal/tts/audio"
	"github.com/book-expert/tts-capability/internal/voices"
)

// API paths.
const (
	pathSynthesize    = "/synthesize"
	pathHealth        = "/health"
	pathCapability    = "/.well-known/capability.json"
	pathVoices        = "/voices"
	pathClassicVoices = "/voices/espeak"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
	contentTypeWAV    = "audio/wav"
)

var (
	// ErrUnexpectedContentType indicates a synthesis answer that is not audio/wav.
	ErrUnexpectedContentType = errors.New("unexpected content type")
	// ErrNotWAV indicates a synthesis answer that is not a RIFF/WAVE container.
	ErrNotWAV = errors.New("response is not a WAV container")
)

// codeErrors maps service error codes back onto the shared taxonomy.
var codeErrors = map[string]error{
	"validation_error": core.ErrValidation,
	"not_found":        core.ErrNotFound,
	"not_ready":        core.ErrNotReady,
	"invalid_voice":    core.ErrInvalidVoice,
	"timeout":          core.ErrTimeout,
	"engine_error":     core.ErrEngine,
	"internal_error":   core.ErrInternal,
}

// ServiceError is a non-200 answer from the service.
type ServiceError struct {
	Status    int
	Detail    string
	ErrorCode string
}

func (e *ServiceError) Error() string {
	if e.ErrorCode == "" {
		return fmt.Sprintf("tts service returned %d: %s", e.Status, e.Detail)
	}

	return fmt.Sprintf("tts service error (%d): %s (code: %s)", e.Status, e.Detail, e.ErrorCode)
}

// Unwrap lets callers match a ServiceError with errors.Is against core errors.
func (e *ServiceError) Unwrap() error {
	return codeErrors[e.ErrorCode]
}

// HTTPClient is a client for the tts-capability HTTP service.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewHTTPClient creates a client for the service at baseURL, for example
// "http://localhost:10200". timeout bounds every request.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Synthesize sends req and returns the WAV container.
func (c *HTTPClient) Synthesize(ctx context.Context, req core.SynthesisRequest) ([]byte, error) {
	err := req.Validate()
	if err != nil {
		return nil, err
	}

	requestBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pathSynthesize, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeWAV)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to TTS service at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseErrorResponse(resp)
	}

	contentType := resp.Header.Get(headerContentType)
	if contentType != contentTypeWAV {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrUnexpectedContentType, contentTypeWAV, contentType)
	}

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	if !audio.IsWAV(wav) {
		return nil, fmt.Errorf("%w: %d bytes", ErrNotWAV, len(wav))
	}

	return wav, nil
}

// Health returns the service health view. A degraded service is not an error.
func (c *HTTPClient) Health(ctx context.Context) (health.View, error) {
	var view health.View

	err := c.getJSON(ctx, pathHealth, &view)

	return view, err
}

// Capability returns the capability document.
func (c *HTTPClient) Capability(ctx context.Context) (health.CapabilityView, error) {
	var view health.CapabilityView

	err := c.getJSON(ctx, pathCapability, &view)

	return view, err
}

// NeuralVoices lists the neural voices installed on the service.
func (c *HTTPClient) NeuralVoices(ctx context.Context) ([]voices.NeuralVoice, error) {
	var list []voices.NeuralVoice

	err := c.getJSON(ctx, pathVoices, &list)

	return list, err
}

// ClassicVoices lists the classic engine voices available on the service.
func (c *HTTPClient) ClassicVoices(ctx context.Context) ([]voices.ClassicVoice, error) {
	var list []voices.ClassicVoice

	err := c.getJSON(ctx, pathClassicVoices, &list)

	return list, err
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", path, err)
	}

	req.Header.Set(headerAccept, contentTypeJSON)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s failed for service at %s: %w", path, c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return parseErrorResponse(resp)
	}

	err = json.NewDecoder(resp.Body).Decode(target)
	if err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}

	return nil
}

// parseErrorResponse decodes a structured error, falling back to the raw body.
func parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var decoded struct {
		Detail    string `json:"detail"`
		ErrorCode string `json:"error_code"`
	}

	err := json.Unmarshal(body, &decoded)
	if err == nil && decoded.Detail != "" {
		return &ServiceError{Status: resp.StatusCode, Detail: decoded.Detail, ErrorCode: decoded.ErrorCode}
	}

	return &ServiceError{Status: resp.StatusCode, Detail: strings.TrimSpace(string(body))}
}
