package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-capability/internal/core"
	"github.com/book-expert/tts-capability/internal/fsutil"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

const (
	filePermissions  = 0o600
	outputFileFormat = "chunk_%04d.wav"
)

var (
	// ErrChunksPathEmpty indicates no chunks file was given.
	ErrChunksPathEmpty = errors.New("chunks path cannot be empty")
	// ErrOutputEmpty indicates no output path was given.
	ErrOutputEmpty = errors.New("output path cannot be empty")
	// ErrNoChunksFound indicates an empty chunks file.
	ErrNoChunksFound = errors.New("no chunks found")
)

// Batch synthesizes text through the service and writes WAV files.
type Batch struct {
	client  *HTTPClient
	workers int
	log     *logger.Logger
}

// NewBatch creates a Batch that keeps at most workers requests in flight.
func NewBatch(client *HTTPClient, workers int, log *logger.Logger) *Batch {
	return &Batch{
		client:  client,
		workers: max(workers, 1),
		log:     log,
	}
}

// ProcessSingle synthesizes req and writes the audio to outputPath.
func (b *Batch) ProcessSingle(ctx context.Context, req core.SynthesisRequest, outputPath string) error {
	if outputPath == "" {
		return ErrOutputEmpty
	}

	err := fsutil.EnsureDir(filepath.Dir(outputPath))
	if err != nil {
		return err
	}

	wav, err := b.client.Synthesize(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to generate speech: %w", err)
	}

	err = os.WriteFile(outputPath, wav, filePermissions)
	if err != nil {
		return fmt.Errorf("failed to write audio file: %w", err)
	}

	b.log.Info("Generated audio: %s (%s)", outputPath, humanize.IBytes(uint64(len(wav))))

	return nil
}

// ProcessChunks reads a JSON array of strings from chunksPath and writes one
// chunk_NNNN.wav per entry into outputDir. template supplies every field but
// the text. All chunks are attempted; the first failure is returned.
func (b *Batch) ProcessChunks(ctx context.Context, chunksPath, outputDir string, template core.SynthesisRequest) error {
	if chunksPath == "" {
		return ErrChunksPathEmpty
	}

	if outputDir == "" {
		return ErrOutputEmpty
	}

	chunks, err := readChunksFile(chunksPath)
	if err != nil {
		return err
	}

	err = fsutil.EnsureDir(outputDir)
	if err != nil {
		return err
	}

	_, err = b.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("TTS service health check failed: %w", err)
	}

	b.log.Info("TTS service is reachable, processing %d chunks", len(chunks))

	var (
		group     errgroup.Group
		completed atomic.Int32
	)

	group.SetLimit(b.workers)

	for index, text := range chunks {
		group.Go(func() error {
			req := template
			req.Text = text

			outputPath := filepath.Join(outputDir, fmt.Sprintf(outputFileFormat, index+1))

			chunkErr := b.ProcessSingle(ctx, req, outputPath)
			if chunkErr != nil {
				b.log.Error("Failed to process chunk %d: %v", index+1, chunkErr)

				return fmt.Errorf("chunk %d failed: %w", index+1, chunkErr)
			}

			b.log.Info("Processed chunk %d/%d", completed.Add(1), len(chunks))

			return nil
		})
	}

	return group.Wait()
}

// readChunksFile parses a JSON array of text chunks.
func readChunksFile(chunksPath string) ([]string, error) {
	data, err := os.ReadFile(chunksPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read chunks: %w", err)
	}

	var chunks []string

	err = json.Unmarshal(data, &chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to parse chunks JSON: %w", err)
	}

	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoChunksFound, chunksPath)
	}

	return chunks, nil
}
