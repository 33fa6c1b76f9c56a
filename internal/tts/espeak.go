package tts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-capability/internal/core"
	"github.com/book-expert/tts-capability/internal/fsutil"
)

const (
	// DefaultLanguage is used by the classic engine when a request names none.
	DefaultLanguage = "en"

	voiceMissingSignature = "voice does not exist"
	scratchPattern        = "tts-espeak-*.wav"
)

// EspeakEngine runs the classic synthesizer, which writes a complete WAV file.
type EspeakEngine struct {
	binary     string
	timeout    time.Duration
	scratchDir string
	log        *logger.Logger
}

// NewEspeakEngine creates the classic engine. Output is written to a scratch
// file in scratchDir, or the system temp dir when scratchDir is empty.
func NewEspeakEngine(binary string, timeout time.Duration, scratchDir string, log *logger.Logger) *EspeakEngine {
	return &EspeakEngine{
		binary:     binary,
		timeout:    timeout,
		scratchDir: scratchDir,
		log:        log,
	}
}

// Locate returns the path of the espeak executable.
func (e *EspeakEngine) Locate() (string, error) {
	return fsutil.FindExecutable(e.binary)
}

// Synthesize speaks text in language and returns the engine's WAV file verbatim.
func (e *EspeakEngine) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	if language == "" {
		language = DefaultLanguage
	}

	binary, err := e.Locate()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrNotReady, err)
	}

	tempFile, err := os.CreateTemp(e.scratchDir, scratchPattern)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create scratch file: %w", core.ErrInternal, err)
	}

	scratchPath := tempFile.Name()
	_ = tempFile.Close()

	defer func() {
		removeErr := os.Remove(scratchPath)
		if removeErr != nil && !os.IsNotExist(removeErr) {
			e.log.Warn("Failed to remove scratch file '%s': %v", scratchPath, removeErr)
		}
	}()

	result, err := runEngine(ctx, e.timeout, text, binary, "-v", language, "-w", scratchPath, "--stdin")
	if errors.Is(err, errExit) {
		if strings.Contains(strings.ToLower(result.stderr), voiceMissingSignature) {
			return nil, fmt.Errorf(
				"%w: language '%s' is not available; query GET /voices/espeak for installed voices",
				core.ErrInvalidVoice, language,
			)
		}

		return nil, fmt.Errorf("%w: espeak synthesis failed: %s", core.ErrEngine, result.stderr)
	}

	if err != nil {
		return nil, err
	}

	wav, err := os.ReadFile(scratchPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read espeak output: %w", core.ErrInternal, err)
	}

	return wav, nil
}
