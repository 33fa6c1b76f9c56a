// Package tts dispatches synthesis requests to the neural or the classic engine
// and normalizes their output into a WAV container.
package tts

import (
	"context"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-capability/internal/core"
	"github.com/book-expert/tts-capability/internal/fsutil"
	"github.com/book-expert/tts-capability/internal/voices"
)

// ArtifactResolver maps a voice id to model artifacts.
type ArtifactResolver interface {
	Resolve(voiceID string) (voices.Artifacts, error)
}

// Dispatcher implements core.Synthesizer over the two engines.
type Dispatcher struct {
	resolver ArtifactResolver
	piper    *PiperEngine
	espeak   *EspeakEngine
	log      *logger.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(resolver ArtifactResolver, piper *PiperEngine, espeak *EspeakEngine, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		resolver: resolver,
		piper:    piper,
		espeak:   espeak,
		log:      log,
	}
}

// Synthesize validates req, selects an engine and invokes it exactly once.
// Cancellation of ctx does not stop a running engine; only the engine
// timeout does.
func (d *Dispatcher) Synthesize(ctx context.Context, req core.SynthesisRequest) ([]byte, error) {
	err := req.Validate()
	if err != nil {
		return nil, err
	}

	kind, err := core.ParseEngine(req.Engine)
	if err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)
	started := time.Now()

	var wav []byte

	switch kind {
	case core.EngineClassic:
		wav, err = d.espeak.Synthesize(ctx, req.Text, req.Language)
	case core.EngineNeural:
		wav, err = d.synthesizeNeural(ctx, req)
	default:
		err = fmt.Errorf("%w: unhandled engine '%s'", core.ErrInternal, kind)
	}

	if err != nil {
		d.log.Warn("Synthesis with %s engine failed: %v", kind, err)

		return nil, err
	}

	d.log.Info("Synthesized %d characters with %s engine into %d bytes in %s",
		len(req.Text), kind, len(wav), time.Since(started).Round(time.Millisecond))

	return wav, nil
}

func (d *Dispatcher) synthesizeNeural(ctx context.Context, req core.SynthesisRequest) ([]byte, error) {
	artifacts, err := d.resolver.Resolve(req.Voice)
	if err != nil {
		return nil, err
	}

	if !fsutil.FileExists(artifacts.ModelPath) {
		return nil, fmt.Errorf("%w: model not found at %s", core.ErrNotReady, artifacts.ModelPath)
	}

	if !fsutil.FileExists(artifacts.ConfigPath) {
		return nil, fmt.Errorf("%w: model config not found at %s", core.ErrNotReady, artifacts.ConfigPath)
	}

	return d.piper.Synthesize(ctx, req.Text, artifacts, req.Speaker)
}
