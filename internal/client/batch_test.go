package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-capability/internal/client"
	"github.com/book-expert/tts-capability/internal/core"
	"github.com/book-expert/tts-capability/internal/tts/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "client-test.log")
	require.NoError(t, err)

	t.Cleanup(func() { _ = log.Close() })

	return log
}

// newMockService answers /health and echoes each request's text back as the
// PCM payload of a WAV. Texts containing "fail" get an engine error.
func newMockService(t *testing.T, requests *atomic.Int32) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})
	mux.HandleFunc("/synthesize", func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)

		var req core.SynthesisRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeServiceError(w, http.StatusBadRequest, err.Error(), "validation_error")

			return
		}

		if strings.Contains(req.Text, "fail") {
			writeServiceError(w, http.StatusInternalServerError, "engine error: crashed", "engine_error")

			return
		}

		wav, _ := audio.Wrap(audio.DefaultFormat(), []byte(req.Voice+":"+req.Text))
		writeWAV(w, wav)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server
}

func writeChunks(t *testing.T, chunks any) string {
	t.Helper()

	data, err := json.Marshal(chunks)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "chunks.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	return path
}

func payload(t *testing.T, path string) string {
	t.Helper()

	wav, err := os.ReadFile(path)
	require.NoError(t, err)

	_, pcm, err := audio.Parse(wav)
	require.NoError(t, err)

	return string(pcm)
}

func TestBatch_ProcessSingle(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32

	server := newMockService(t, &requests)
	batch := client.NewBatch(client.NewHTTPClient(server.URL, 5*time.Second), 2, newTestLogger(t))
	outputPath := filepath.Join(t.TempDir(), "nested", "dir", "out.wav")

	err := batch.ProcessSingle(context.Background(), core.SynthesisRequest{Text: "hi", Voice: "amy"}, outputPath)
	require.NoError(t, err)

	assert.Equal(t, "amy:hi", payload(t, outputPath))
}

func TestBatch_ProcessSingle_Validation(t *testing.T) {
	t.Parallel()

	batch := client.NewBatch(client.NewHTTPClient("http://127.0.0.1:1", time.Second), 1, newTestLogger(t))

	err := batch.ProcessSingle(context.Background(), core.SynthesisRequest{Text: "hi"}, "")
	require.ErrorIs(t, err, client.ErrOutputEmpty)

	err = batch.ProcessSingle(context.Background(), core.SynthesisRequest{Text: ""}, filepath.Join(t.TempDir(), "x.wav"))
	require.ErrorIs(t, err, core.ErrValidation)
}

func TestBatch_ProcessChunks(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32

	server := newMockService(t, &requests)
	batch := client.NewBatch(client.NewHTTPClient(server.URL, 5*time.Second), 3, newTestLogger(t))
	outputDir := filepath.Join(t.TempDir(), "out")
	chunks := []string{"one", "two", "three", "four", "five"}

	err := batch.ProcessChunks(context.Background(), writeChunks(t, chunks), outputDir, core.SynthesisRequest{Voice: "amy"})
	require.NoError(t, err)

	assert.EqualValues(t, len(chunks), requests.Load())
	assert.Equal(t, "amy:one", payload(t, filepath.Join(outputDir, "chunk_0001.wav")))
	assert.Equal(t, "amy:five", payload(t, filepath.Join(outputDir, "chunk_0005.wav")))
}

func TestBatch_ProcessChunks_ContinuesAfterFailure(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32

	server := newMockService(t, &requests)
	batch := client.NewBatch(client.NewHTTPClient(server.URL, 5*time.Second), 1, newTestLogger(t))
	outputDir := t.TempDir()

	err := batch.ProcessChunks(context.Background(), writeChunks(t, []string{"ok", "fail here", "ok again"}), outputDir,
		core.SynthesisRequest{})
	require.ErrorIs(t, err, core.ErrEngine)
	assert.Contains(t, err.Error(), "chunk 2")

	assert.EqualValues(t, 3, requests.Load())
	assert.FileExists(t, filepath.Join(outputDir, "chunk_0001.wav"))
	assert.NoFileExists(t, filepath.Join(outputDir, "chunk_0002.wav"))
	assert.FileExists(t, filepath.Join(outputDir, "chunk_0003.wav"))
}

func TestBatch_ProcessChunks_InvalidInputs(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32

	server := newMockService(t, &requests)
	batch := client.NewBatch(client.NewHTTPClient(server.URL, 5*time.Second), 1, newTestLogger(t))
	ctx := context.Background()
	outputDir := t.TempDir()

	require.ErrorIs(t, batch.ProcessChunks(ctx, "", outputDir, core.SynthesisRequest{}), client.ErrChunksPathEmpty)
	require.ErrorIs(t, batch.ProcessChunks(ctx, writeChunks(t, []string{"x"}), "", core.SynthesisRequest{}), client.ErrOutputEmpty)
	require.ErrorIs(t, batch.ProcessChunks(ctx, writeChunks(t, []string{}), outputDir, core.SynthesisRequest{}), client.ErrNoChunksFound)
	require.Error(t, batch.ProcessChunks(ctx, writeChunks(t, map[string]int{"a": 1}), outputDir, core.SynthesisRequest{}))
	require.Error(t, batch.ProcessChunks(ctx, filepath.Join(outputDir, "missing.json"), outputDir, core.SynthesisRequest{}))

	assert.Zero(t, requests.Load())
}

func TestBatch_ProcessChunks_ServiceUnavailable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	batch := client.NewBatch(client.NewHTTPClient(server.URL, 5*time.Second), 1, newTestLogger(t))

	err := batch.ProcessChunks(context.Background(), writeChunks(t, []string{"x"}), t.TempDir(), core.SynthesisRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "health check failed")
}
