package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/book-expert/tts-capability/internal/tts/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	t.Parallel()

	flags, err := parseFlags([]string{
		"--text", "Hello, world!",
		"--engine", "classic",
		"--language", "de",
		"--speaker", "2",
		"--timeout", "5s",
		"--server", "http://tts:8080",
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello, world!", flags.text)
	assert.Equal(t, "classic", flags.engine)
	assert.Equal(t, "de", flags.language)
	assert.Equal(t, 2, flags.speaker)
	assert.Equal(t, 5*time.Second, flags.timeout)
	assert.Equal(t, "http://tts:8080", flags.server)

	_, err = parseFlags([]string{"--speaker", "two"})
	require.Error(t, err)
}

func TestValidateFlags(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		flags   appFlags
		wantErr error
	}{
		{"nothing", appFlags{}, errEitherTextOrChunks},
		{"both", appFlags{text: "a", chunks: "b.json"}, errCannotSpecifyBoth},
		{"text", appFlags{text: "a"}, nil},
		{"chunks", appFlags{chunks: "b.json"}, nil},
		{"health", appFlags{health: true}, nil},
		{"two queries", appFlags{health: true, voices: true}, errTooManyQueries},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			err := validateFlags(testCase.flags)
			if testCase.wantErr == nil {
				require.NoError(t, err)

				return
			}

			require.ErrorIs(t, err, testCase.wantErr)
		})
	}
}

func TestBuildRequest(t *testing.T) {
	t.Parallel()

	req := buildRequest(appFlags{text: "hi", voice: "amy", speaker: noSpeaker})
	assert.Nil(t, req.Speaker)
	assert.Equal(t, "amy", req.Voice)

	req = buildRequest(appFlags{text: "hi", speaker: 0})
	require.NotNil(t, req.Speaker)
	assert.Equal(t, 0, *req.Speaker)
}

func TestRun_TextToFile(t *testing.T) {
	t.Parallel()

	wav, err := audio.Wrap(audio.DefaultFormat(), []byte{1, 2})
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(wav)
	}))
	defer server.Close()

	dir := t.TempDir()
	output := filepath.Join(dir, "speech.wav")

	var stdout bytes.Buffer

	err = run([]string{"--server", server.URL, "--text", "hello", "--output", output, "--logs-dir", dir}, &stdout)
	require.NoError(t, err)

	written, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, wav, written)
	assert.Contains(t, stdout.String(), output)
}

func TestRun_Voices(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/voices/espeak" {
			_, _ = w.Write([]byte(`[{"id":"fr","engine":"classic","language_code":"fr"}]`))

			return
		}

		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	var stdout bytes.Buffer

	err := run([]string{"--server", server.URL, "--voices", "--engine", "espeak", "--logs-dir", t.TempDir()}, &stdout)
	require.NoError(t, err)

	var listed []map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "fr", listed[0]["id"])
}
