// Package config provides the configuration structure for the tts-capability service.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

// Bootstrap switches read before the configuration itself.
const (
	envConfigFile      = "TTS_CONFIG_FILE"
	envUseConfigurator = "TTS_USE_CONFIGURATOR"
)

// Static validation errors.
var (
	ErrInvalidPort         = errors.New("port must be between 1 and 65535")
	ErrInvalidWorkers      = errors.New("synthesis workers must be positive")
	ErrInvalidTimeout      = errors.New("timeouts must be positive")
	ErrDefaultVoiceEmpty   = errors.New("default voice cannot be empty when auto download is enabled")
	ErrVoicesIndexURLEmpty = errors.New("voices index url cannot be empty when auto download is enabled")
)

// ServerConfig holds the HTTP listener and request pool settings.
type ServerConfig struct {
	Port                    int `toml:"port"                      env:"PORT"`
	Workers                 int `toml:"workers"                   env:"SYNTHESIS_WORKERS"`
	SynthesisTimeoutSeconds int `toml:"synthesis_timeout_seconds" env:"SYNTHESIS_TIMEOUT_SECONDS"`
}

// PiperConfig holds the neural engine settings.
type PiperConfig struct {
	Binary        string   `toml:"binary"         env:"PIPER_BIN"`
	FallbackPaths []string `toml:"fallback_paths" env:"PIPER_FALLBACK_PATHS" envSeparator:":"`
	ModelPath     string   `toml:"model_path"     env:"PIPER_MODEL_PATH"`
	ConfigPath    string   `toml:"config_path"    env:"PIPER_CONFIG_PATH"`
}

// EspeakConfig holds the classic engine settings.
type EspeakConfig struct {
	Binary string `toml:"binary" env:"ESPEAK_BIN"`
}

// ModelsConfig holds the voice model directory.
type ModelsConfig struct {
	Dir string `toml:"dir" env:"MODELS_DIR"`
}

// DownloadConfig holds the default voice acquisition settings.
type DownloadConfig struct {
	Enabled        bool   `toml:"enabled"         env:"AUTO_DOWNLOAD_DEFAULT_VOICE"`
	Voice          string `toml:"voice"           env:"DEFAULT_VOICE"`
	IndexURL       string `toml:"index_url"       env:"VOICES_INDEX_URL"`
	BaseURL        string `toml:"base_url"        env:"VOICES_BASE_URL"`
	TimeoutSeconds int    `toml:"timeout_seconds" env:"DOWNLOAD_TIMEOUT_SECONDS"`
}

// NATSConfig holds the configuration for the optional asynchronous job worker.
// An empty URL disables the worker.
type NATSConfig struct {
	URL         string `toml:"url"          env:"NATS_URL"`
	Subject     string `toml:"subject"      env:"NATS_SUBJECT"`
	TextBucket  string `toml:"text_bucket"  env:"NATS_TEXT_BUCKET"`
	AudioBucket string `toml:"audio_bucket" env:"NATS_AUDIO_BUCKET"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir" env:"LOGS_DIR"`
}

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Piper    PiperConfig    `toml:"piper"`
	Espeak   EspeakConfig   `toml:"espeak"`
	Models   ModelsConfig   `toml:"models"`
	Download DownloadConfig `toml:"download"`
	NATS     NATSConfig     `toml:"nats"`
	Paths    PathsConfig    `toml:"paths"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:                    10200,
			Workers:                 4,
			SynthesisTimeoutSeconds: 30,
		},
		Piper: PiperConfig{
			Binary: "",
			FallbackPaths: []string{
				"/usr/local/bin/piper",
				"/usr/bin/piper",
				"/opt/piper/piper",
				"/app/piper/piper",
			},
			ModelPath:  "/models/voice.onnx",
			ConfigPath: "/models/voice.onnx.json",
		},
		Espeak: EspeakConfig{
			Binary: "espeak-ng",
		},
		Models: ModelsConfig{
			Dir: "/models",
		},
		Download: DownloadConfig{
			Enabled:        true,
			Voice:          "en_US-lessac-medium",
			IndexURL:       "https://huggingface.co/rhasspy/piper-voices/resolve/main/voices.json",
			BaseURL:        "https://huggingface.co/rhasspy/piper-voices/resolve/main",
			TimeoutSeconds: 600,
		},
		NATS: NATSConfig{
			URL:         "",
			Subject:     "tts.synthesize",
			TextBucket:  "TTS_TEXT",
			AudioBucket: "TTS_AUDIO",
		},
		Paths: PathsConfig{
			BaseLogsDir: os.TempDir(),
		},
	}
}

// Load loads the configuration for the tts-capability service. Layers are
// applied in order: defaults, the TOML file named by TTS_CONFIG_FILE, the
// central configurator when TTS_USE_CONFIGURATOR is true, and finally the
// process environment.
func Load(log *logger.Logger) (*Config, error) {
	cfg := Default()

	path := os.Getenv(envConfigFile)
	if path != "" {
		err := loadFile(path, &cfg)
		if err != nil {
			return nil, err
		}

		log.Info("Loaded configuration file %s", path)
	}

	useCentral, _ := strconv.ParseBool(os.Getenv(envUseConfigurator))
	if useCentral {
		err := configurator.Load(&cfg, log)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
		}
	}

	err := env.Parse(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read configuration file '%s': %w", path, err)
	}

	err = toml.Unmarshal(data, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode configuration file '%s': %w", path, err)
	}

	return nil
}

// Validate checks the values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: got %d", ErrInvalidPort, c.Server.Port)
	}

	if c.Server.Workers <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidWorkers, c.Server.Workers)
	}

	if c.Server.SynthesisTimeoutSeconds <= 0 || c.Download.TimeoutSeconds <= 0 {
		return ErrInvalidTimeout
	}

	if c.Download.Enabled {
		if c.Download.Voice == "" {
			return ErrDefaultVoiceEmpty
		}

		if c.Download.IndexURL == "" {
			return ErrVoicesIndexURLEmpty
		}
	}

	return nil
}

// ListenAddr returns the HTTP bind address.
func (c *Config) ListenAddr() string {
	return ":" + strconv.Itoa(c.Server.Port)
}

// SynthesisTimeout returns the per-invocation engine bound.
func (c *Config) SynthesisTimeout() time.Duration {
	return time.Duration(c.Server.SynthesisTimeoutSeconds) * time.Second
}

// DownloadTimeout returns the per-artifact download bound.
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Download.TimeoutSeconds) * time.Second
}
