// Package config_test tests the configuration loading for the tts-capability service.
package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-capability/internal/config"
	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tomlData = `
[server]
port = 8080
workers = 2
synthesis_timeout_seconds = 15

[piper]
binary = "/opt/piper/piper"
model_path = "/data/models/amy.onnx"
config_path = "/data/models/amy.onnx.json"

[espeak]
binary = "/usr/bin/espeak-ng"

[models]
dir = "/data/models"

[download]
enabled = false
voice = "en_GB-alan-low"
index_url = "http://index.local/voices.json"
base_url = "http://index.local"
timeout_seconds = 60

[nats]
url = "nats://127.0.0.1:4222"
subject = "tts.jobs"
text_bucket = "TEXT"
audio_bucket = "AUDIO"
`

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "config-test.log")
	require.NoError(t, err)

	t.Cleanup(func() { _ = log.Close() })

	return log
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	cfg := config.Default()

	err := toml.Unmarshal([]byte(tomlData), &cfg)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Server.Workers)
	assert.Equal(t, 15, cfg.Server.SynthesisTimeoutSeconds)
	assert.Equal(t, "/opt/piper/piper", cfg.Piper.Binary)
	assert.Equal(t, "/data/models/amy.onnx", cfg.Piper.ModelPath)
	assert.Equal(t, "/data/models/amy.onnx.json", cfg.Piper.ConfigPath)
	assert.Equal(t, "/usr/bin/espeak-ng", cfg.Espeak.Binary)
	assert.Equal(t, "/data/models", cfg.Models.Dir)
	assert.False(t, cfg.Download.Enabled)
	assert.Equal(t, "en_GB-alan-low", cfg.Download.Voice)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	assert.Equal(t, "tts.jobs", cfg.NATS.Subject)
	assert.Equal(t, "TEXT", cfg.NATS.TextBucket)
	assert.Equal(t, "AUDIO", cfg.NATS.AudioBucket)

	// Keys absent from the file keep their defaults.
	assert.NotEmpty(t, cfg.Piper.FallbackPaths)
}

func TestDefault_IsValid(t *testing.T) {
	t.Parallel()

	cfg := config.Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":10200", cfg.ListenAddr())
	assert.Equal(t, "/models/voice.onnx", cfg.Piper.ModelPath)
	assert.Equal(t, "/models/voice.onnx.json", cfg.Piper.ConfigPath)
	assert.True(t, cfg.Download.Enabled)
	assert.Equal(t, "en_US-lessac-medium", cfg.Download.Voice)
	assert.Equal(t, 30.0, cfg.SynthesisTimeout().Seconds())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		mutate  func(cfg *config.Config)
		wantErr error
	}{
		{"port zero", func(cfg *config.Config) { cfg.Server.Port = 0 }, config.ErrInvalidPort},
		{"port too large", func(cfg *config.Config) { cfg.Server.Port = 70000 }, config.ErrInvalidPort},
		{"no workers", func(cfg *config.Config) { cfg.Server.Workers = 0 }, config.ErrInvalidWorkers},
		{"no timeout", func(cfg *config.Config) { cfg.Server.SynthesisTimeoutSeconds = 0 }, config.ErrInvalidTimeout},
		{"empty voice", func(cfg *config.Config) { cfg.Download.Voice = "" }, config.ErrDefaultVoiceEmpty},
		{"empty index", func(cfg *config.Config) { cfg.Download.IndexURL = "" }, config.ErrVoicesIndexURLEmpty},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.Default()
			testCase.mutate(&cfg)

			require.ErrorIs(t, cfg.Validate(), testCase.wantErr)
		})
	}
}

func TestValidate_DownloadDisabledSkipsVoiceChecks(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Download.Enabled = false
	cfg.Download.Voice = ""
	cfg.Download.IndexURL = ""

	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tts.toml")
	require.NoError(t, os.WriteFile(path, []byte(tomlData), 0o600))

	t.Setenv("TTS_CONFIG_FILE", path)
	t.Setenv("PORT", "9090")
	t.Setenv("PIPER_MODEL_PATH", "/env/model.onnx")
	t.Setenv("AUTO_DOWNLOAD_DEFAULT_VOICE", "true")

	cfg, err := config.Load(newTestLogger(t))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/env/model.onnx", cfg.Piper.ModelPath)
	assert.True(t, cfg.Download.Enabled)
	// Untouched by the environment, so the file value stands.
	assert.Equal(t, "/data/models/amy.onnx.json", cfg.Piper.ConfigPath)
	assert.Equal(t, "en_GB-alan-low", cfg.Download.Voice)
}

func TestLoad_InvalidEnvironment(t *testing.T) {
	t.Setenv("TTS_CONFIG_FILE", "")
	t.Setenv("PORT", "not-a-number")

	_, err := config.Load(newTestLogger(t))
	require.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("TTS_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))

	_, err := config.Load(newTestLogger(t))
	require.Error(t, err)
}
