package voices

import (
	"fmt"

	"github.com/book-expert/tts-capability/internal/core"
)

// NeuralLister lists neural voices.
type NeuralLister interface {
	NeuralVoices() []NeuralVoice
}

// Artifacts are the model and configuration files a neural voice needs.
type Artifacts struct {
	ModelPath  string
	ConfigPath string
}

// Resolver maps a voice id to its artifacts.
type Resolver struct {
	catalog  NeuralLister
	defaults Artifacts
}

// NewResolver creates a resolver that falls back to the configured default
// artifacts when no voice id is given.
func NewResolver(catalog NeuralLister, defaultModelPath, defaultConfigPath string) *Resolver {
	return &Resolver{
		catalog: catalog,
		defaults: Artifacts{
			ModelPath:  defaultModelPath,
			ConfigPath: defaultConfigPath,
		},
	}
}

// Resolve returns the artifacts for voiceID. An empty id returns the default
// artifacts without consulting the catalog; their existence is not checked.
// Any other id must match a catalog entry exactly.
func (r *Resolver) Resolve(voiceID string) (Artifacts, error) {
	if voiceID == "" {
		return r.defaults, nil
	}

	for _, voice := range r.catalog.NeuralVoices() {
		if voice.ID == voiceID {
			return Artifacts{ModelPath: voice.ModelPath, ConfigPath: voice.ConfigPath}, nil
		}
	}

	return Artifacts{}, fmt.Errorf("%w: '%s'", core.ErrNotFound, voiceID)
}

// Defaults returns the configured default artifacts.
func (r *Resolver) Defaults() Artifacts {
	return r.defaults
}
