// Package core defines the shared types, error taxonomy and interfaces of the TTS capability service.
package core

import (
	"context"
	"fmt"
	"strings"
)

// EngineKind names one of the two synthesis backends.
type EngineKind string

const (
	// EngineNeural is the piper neural synthesizer.
	EngineNeural EngineKind = "neural"
	// EngineClassic is the espeak-ng formant synthesizer.
	EngineClassic EngineKind = "classic"
)

// ParseEngine maps a request value onto an EngineKind. The empty string selects
// the neural engine. Backend names are accepted as aliases.
func ParseEngine(value string) (EngineKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(EngineNeural), "piper":
		return EngineNeural, nil
	case string(EngineClassic), "espeak", "espeak-ng":
		return EngineClassic, nil
	default:
		return "", fmt.Errorf("%w: engine must be one of 'neural' or 'classic', got '%s'", ErrValidation, value)
	}
}

// SynthesisRequest is a single whole-text synthesis job.
type SynthesisRequest struct {
	Text     string `json:"text"`
	Speaker  *int   `json:"speaker,omitempty"`
	Engine   string `json:"engine,omitempty"`
	Voice    string `json:"voice,omitempty"`
	Language string `json:"language,omitempty"`
}

// Validate checks the request at the service boundary.
func (r SynthesisRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return ErrTextEmpty
	}

	if r.Speaker != nil && *r.Speaker < 0 {
		return fmt.Errorf("%w: speaker must be non-negative, got %d", ErrValidation, *r.Speaker)
	}

	_, err := ParseEngine(r.Engine)
	if err != nil {
		return err
	}

	return nil
}

// Synthesizer turns a request into a WAV container.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) ([]byte, error)
}

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}
