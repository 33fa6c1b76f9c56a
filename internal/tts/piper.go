package tts

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/book-expert/tts-capability/internal/core"
	"github.com/book-expert/tts-capability/internal/fsutil"
	"github.com/book-expert/tts-capability/internal/tts/audio"
	"github.com/book-expert/tts-capability/internal/voices"
)

// PiperEngine runs the neural synthesizer and frames its raw PCM output.
type PiperEngine struct {
	candidates []string
	timeout    time.Duration
	format     audio.Format
}

// NewPiperEngine creates the neural engine. binary may be empty, in which case
// "piper" is looked up on PATH and then in each fallback location.
func NewPiperEngine(binary string, fallbacks []string, timeout time.Duration) *PiperEngine {
	candidates := []string{binary}
	if binary == "" {
		candidates = append([]string{"piper"}, fallbacks...)
	}

	return &PiperEngine{
		candidates: candidates,
		timeout:    timeout,
		format:     audio.DefaultFormat(),
	}
}

// Locate returns the path of the piper executable.
func (e *PiperEngine) Locate() (string, error) {
	return fsutil.FindExecutable(e.candidates...)
}

// Synthesize feeds text to piper on stdin and returns a WAV container around
// the raw PCM it writes to stdout.
func (e *PiperEngine) Synthesize(ctx context.Context, text string, artifacts voices.Artifacts, speaker *int) ([]byte, error) {
	binary, err := e.Locate()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrNotReady, err)
	}

	args := []string{
		"--model", artifacts.ModelPath,
		"--config", artifacts.ConfigPath,
		"--output-raw",
	}

	if speaker != nil {
		args = append(args, "--speaker", strconv.Itoa(*speaker))
	}

	result, err := runEngine(ctx, e.timeout, text, binary, args...)
	if errors.Is(err, errExit) {
		return nil, fmt.Errorf("%w: piper synthesis failed: %s", core.ErrEngine, result.stderr)
	}

	if err != nil {
		return nil, err
	}

	wav, err := audio.Wrap(e.format, result.stdout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrInternal, err)
	}

	return wav, nil
}
