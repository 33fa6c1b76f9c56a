// Package health composes engine, voice, hardware and download state into the
// health and capability views.
package health

import (
	"github.com/book-expert/tts-capability/internal/assets"
	"github.com/book-expert/tts-capability/internal/fsutil"
	"github.com/book-expert/tts-capability/internal/hardware"
	"github.com/book-expert/tts-capability/internal/voices"
)

// Overall service states.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// Static capability metadata.
const (
	CapabilityName        = "piper-tts"
	CapabilityVersion     = "1.0.0"
	CapabilityType        = "capability"
	CapabilityDescription = "Text-to-speech synthesis using Piper with dynamic hardware detection"
	ProvidesTextToSpeech  = "text-to-speech"
)

// Locator finds an engine executable.
type Locator interface {
	Locate() (string, error)
}

// VoiceLister lists neural voices.
type VoiceLister interface {
	NeuralVoices() []voices.NeuralVoice
}

// HardwareDetector returns the host snapshot.
type HardwareDetector interface {
	Detect() hardware.Snapshot
}

// DownloadStatus reports the default voice acquisition state.
type DownloadStatus interface {
	Snapshot() assets.Snapshot
}

// EngineView reports whether an engine binary was found.
type EngineView struct {
	Available bool   `json:"available"`
	Path      string `json:"path,omitempty"`
}

// EnginesView holds both engines.
type EnginesView struct {
	Piper  EngineView `json:"piper"`
	Espeak EngineView `json:"espeak"`
}

// VoicesView counts the neural voices on disk.
type VoicesView struct {
	Total int `json:"total"`
	Ready int `json:"ready"`
}

// View is the body of GET /health.
type View struct {
	Status               string            `json:"status"`
	ModelLoaded          bool              `json:"model_loaded"`
	Hardware             hardware.Snapshot `json:"hardware"`
	DefaultModelDownload assets.Snapshot   `json:"default_model_download"`
	Engines              EnginesView       `json:"engines"`
	Voices               VoicesView        `json:"voices"`
}

// CapabilityView is the body of GET /.well-known/capability.json.
type CapabilityView struct {
	Name        string                  `json:"name"`
	Version     string                  `json:"version"`
	Type        string                  `json:"type"`
	Description string                  `json:"description"`
	Provides    []string                `json:"provides"`
	Resources   hardware.Recommendation `json:"resources"`
	Hardware    hardware.Snapshot       `json:"hardware"`
}

// Sources are the collaborators an Aggregator reads from.
type Sources struct {
	Piper             Locator
	Espeak            Locator
	Voices            VoiceLister
	Hardware          HardwareDetector
	Download          DownloadStatus
	DefaultModelPath  string
	DefaultConfigPath string
}

// Aggregator builds the health and capability views. It keeps no state of
// its own; every call re-reads its sources.
type Aggregator struct {
	src Sources
}

// NewAggregator creates an Aggregator.
func NewAggregator(src Sources) *Aggregator {
	return &Aggregator{src: src}
}

// Health returns the current health view. The service is healthy when at
// least one engine can synthesize: piper with its default voice on disk, or
// espeak.
func (a *Aggregator) Health() View {
	engines := EnginesView{
		Piper:  engineView(a.src.Piper),
		Espeak: engineView(a.src.Espeak),
	}

	modelLoaded := fsutil.FileExists(a.src.DefaultModelPath) && fsutil.FileExists(a.src.DefaultConfigPath)

	status := StatusDegraded
	if (engines.Piper.Available && modelLoaded) || engines.Espeak.Available {
		status = StatusHealthy
	}

	return View{
		Status:               status,
		ModelLoaded:          modelLoaded,
		Hardware:             a.src.Hardware.Detect(),
		DefaultModelDownload: a.src.Download.Snapshot(),
		Engines:              engines,
		Voices:               countVoices(a.src.Voices.NeuralVoices()),
	}
}

// Capability returns the capability view.
func (a *Aggregator) Capability() CapabilityView {
	snapshot := a.src.Hardware.Detect()

	return CapabilityView{
		Name:        CapabilityName,
		Version:     CapabilityVersion,
		Type:        CapabilityType,
		Description: CapabilityDescription,
		Provides:    []string{ProvidesTextToSpeech},
		Resources:   hardware.Recommend(snapshot),
		Hardware:    snapshot,
	}
}

func engineView(locator Locator) EngineView {
	path, err := locator.Locate()
	if err != nil {
		return EngineView{Available: false}
	}

	return EngineView{Available: true, Path: path}
}

func countVoices(list []voices.NeuralVoice) VoicesView {
	view := VoicesView{Total: len(list)}

	for _, voice := range list {
		if voice.Ready {
			view.Ready++
		}
	}

	return view
}
