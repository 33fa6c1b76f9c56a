// Package voices discovers installed voices and resolves voice ids to model artifacts.
//
// The catalog holds no state: every listing re-reads the model directory and
// re-runs the classic engine's voice listing, so results always reflect what
// is on disk right now.
package voices

import (
	"bufio"
	"bytes"
	"context"
	"io/fs"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/book-expert/tts-capability/internal/core"
	"github.com/book-expert/tts-capability/internal/fsutil"
)

const (
	// ModelExtension is the file extension of a neural voice model.
	ModelExtension = ".onnx"
	// ConfigSuffix is appended to a model path to find its configuration.
	ConfigSuffix = ".json"

	defaultListTimeout = 10 * time.Second
	minClassicColumns  = 5
)

// NeuralVoice describes one model found under the models directory.
type NeuralVoice struct {
	ID         string          `json:"id"`
	Engine     core.EngineKind `json:"engine"`
	ModelPath  string          `json:"model_path"`
	ConfigPath string          `json:"config_path"`
	Ready      bool            `json:"ready"`
}

// ClassicVoice describes one voice reported by the classic engine.
type ClassicVoice struct {
	ID             string          `json:"id"`
	Engine         core.EngineKind `json:"engine"`
	Priority       int             `json:"priority"`
	LanguageCode   string          `json:"language_code"`
	GenderAge      string          `json:"gender_age"`
	VoiceName      string          `json:"voice_name"`
	File           string          `json:"file"`
	OtherLanguages string          `json:"other_languages,omitempty"`
}

// Catalog lists the voices of both engines.
type Catalog struct {
	modelsDir    string
	espeakBinary string
	listTimeout  time.Duration
}

// NewCatalog creates a catalog over a models directory and a classic engine binary.
func NewCatalog(modelsDir, espeakBinary string) *Catalog {
	return &Catalog{
		modelsDir:    modelsDir,
		espeakBinary: espeakBinary,
		listTimeout:  defaultListTimeout,
	}
}

// NeuralVoices lists the neural voices under the catalog's models directory.
func (c *Catalog) NeuralVoices() []NeuralVoice {
	return ListNeuralVoices(c.modelsDir)
}

// ClassicVoices lists the voices installed for the classic engine.
func (c *Catalog) ClassicVoices(ctx context.Context) []ClassicVoice {
	return ListClassicVoices(ctx, c.espeakBinary, c.listTimeout)
}

// ListNeuralVoices scans root recursively for model files. A voice's id is its
// path relative to root without the model extension. Unreadable entries and a
// missing root yield fewer voices, never an error. Results are ordered by
// model path, which under a shared root is the relative path order.
func ListNeuralVoices(root string) []NeuralVoice {
	voices := make([]NeuralVoice, 0)

	if root == "" {
		return voices
	}

	walkErr := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if entry != nil && entry.IsDir() && path != root {
				return fs.SkipDir
			}

			return nil
		}

		if entry.IsDir() || filepath.Ext(path) != ModelExtension {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}

		configPath := path + ConfigSuffix
		voices = append(voices, NeuralVoice{
			ID:         filepath.ToSlash(strings.TrimSuffix(rel, ModelExtension)),
			Engine:     core.EngineNeural,
			ModelPath:  path,
			ConfigPath: configPath,
			Ready:      fsutil.FileExists(path) && fsutil.FileExists(configPath),
		})

		return nil
	})
	if walkErr != nil {
		return voices
	}

	sort.Slice(voices, func(i, j int) bool {
		return voices[i].ModelPath < voices[j].ModelPath
	})

	return voices
}

// ListClassicVoices runs the classic engine's voice listing. A missing binary,
// a timeout or a non-zero exit yields an empty list.
func ListClassicVoices(ctx context.Context, binary string, timeout time.Duration) []ClassicVoice {
	if binary == "" {
		return []ClassicVoice{}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// #nosec G204 -- binary comes from service configuration
	cmd := exec.CommandContext(ctx, binary, "--voices")

	output, err := cmd.Output()
	if err != nil {
		return []ClassicVoice{}
	}

	return ParseClassicVoices(output)
}

// ParseClassicVoices parses the tabular voice listing of the classic engine:
// priority, language, gender/age, voice name, file, then an optional free-text
// column of other languages. The header line and blank lines are skipped.
func ParseClassicVoices(output []byte) []ClassicVoice {
	voices := make([]ClassicVoice, 0)
	scanner := bufio.NewScanner(bytes.NewReader(output))
	headerSeen := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if !headerSeen {
			headerSeen = true

			continue
		}

		fields := strings.Fields(line)
		if len(fields) < minClassicColumns {
			continue
		}

		priority, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}

		voices = append(voices, ClassicVoice{
			ID:             fields[1],
			Engine:         core.EngineClassic,
			Priority:       priority,
			LanguageCode:   fields[1],
			GenderAge:      fields[2],
			VoiceName:      fields[3],
			File:           fields[4],
			OtherLanguages: strings.Join(fields[minClassicColumns:], " "),
		})
	}

	return voices
}
