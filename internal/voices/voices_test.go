package voices_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/book-expert/tts-capability/internal/core"
	"github.com/book-expert/tts-capability/internal/voices"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const espeakListing = `Pty Language       Age/Gender VoiceName          File                 Other Languages
 5  af              --/M      Afrikaans          gmw/af

 5  en-us           --/M      English_(America)  gmw/en-US            (en 10)
 2  es              --/M      Spanish_(Spain)    roa/es               (es-es 6) (es-419 8)
 bad line
`

// touch creates an empty file, creating parent directories as needed.
func touch(t *testing.T, path string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, nil, 0o600))
}

// writeScript writes an executable shell script into dir.
func writeScript(t *testing.T, dir, body string) string {
	t.Helper()

	path := filepath.Join(dir, "engine.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o700))

	return path
}

func TestListNeuralVoices_PairsAndSingletons(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	// Two matched pairs, one nested.
	touch(t, filepath.Join(root, "en_US-lessac-medium.onnx"))
	touch(t, filepath.Join(root, "en_US-lessac-medium.onnx.json"))
	touch(t, filepath.Join(root, "de", "de_DE-thorsten-low.onnx"))
	touch(t, filepath.Join(root, "de", "de_DE-thorsten-low.onnx.json"))

	// One model without configuration.
	touch(t, filepath.Join(root, "fr_FR-siwis-low.onnx"))

	// Noise that must be ignored.
	touch(t, filepath.Join(root, "README.md"))
	touch(t, filepath.Join(root, "orphan.onnx.json"))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "dir.onnx"), 0o750))

	list := voices.ListNeuralVoices(root)
	require.Len(t, list, 3)

	assert.Equal(t, "de/de_DE-thorsten-low", list[0].ID)
	assert.True(t, list[0].Ready)
	assert.Equal(t, filepath.Join(root, "de", "de_DE-thorsten-low.onnx"), list[0].ModelPath)
	assert.Equal(t, filepath.Join(root, "de", "de_DE-thorsten-low.onnx.json"), list[0].ConfigPath)

	assert.Equal(t, "en_US-lessac-medium", list[1].ID)
	assert.True(t, list[1].Ready)

	assert.Equal(t, "fr_FR-siwis-low", list[2].ID)
	assert.False(t, list[2].Ready)

	for _, voice := range list {
		assert.Equal(t, core.EngineNeural, voice.Engine)
	}
}

func TestListNeuralVoices_IsDeterministic(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	for _, name := range []string{"b.onnx", "a-b.onnx", "a.onnx", "z/a.onnx", "a/z.onnx"} {
		touch(t, filepath.Join(root, name))
	}

	first := voices.ListNeuralVoices(root)
	second := voices.ListNeuralVoices(root)

	require.Equal(t, first, second)

	ids := make([]string, 0, len(first))
	for _, voice := range first {
		ids = append(ids, voice.ID)
	}

	assert.Equal(t, []string{"a-b", "a", "a/z", "b", "z/a"}, ids)
}

func TestListNeuralVoices_MissingRoot(t *testing.T) {
	t.Parallel()

	assert.Empty(t, voices.ListNeuralVoices(filepath.Join(t.TempDir(), "missing")))
	assert.Empty(t, voices.ListNeuralVoices(""))
}

func TestParseClassicVoices(t *testing.T) {
	t.Parallel()

	list := voices.ParseClassicVoices([]byte(espeakListing))
	require.Len(t, list, 3)

	assert.Equal(t, voices.ClassicVoice{
		ID:           "af",
		Engine:       core.EngineClassic,
		Priority:     5,
		LanguageCode: "af",
		GenderAge:    "--/M",
		VoiceName:    "Afrikaans",
		File:         "gmw/af",
	}, list[0])

	assert.Equal(t, "en-us", list[1].LanguageCode)
	assert.Equal(t, "(en 10)", list[1].OtherLanguages)
	assert.Equal(t, 2, list[2].Priority)
	assert.Equal(t, "(es-es 6) (es-419 8)", list[2].OtherLanguages)
}

func TestParseClassicVoices_HeaderOnly(t *testing.T) {
	t.Parallel()

	assert.Empty(t, voices.ParseClassicVoices([]byte("Pty Language Age/Gender VoiceName File Other Languages\n")))
	assert.Empty(t, voices.ParseClassicVoices(nil))
}

func TestListClassicVoices_RunsEngine(t *testing.T) {
	script := writeScript(t, t.TempDir(), "[ \"$1\" = \"--voices\" ] || exit 3\ncat <<'LISTING'\n"+espeakListing+"LISTING\n")

	list := voices.ListClassicVoices(context.Background(), script, 5*time.Second)
	require.Len(t, list, 3)
	assert.Equal(t, "es", list[2].ID)
}

func TestListClassicVoices_DegradesSilently(t *testing.T) {
	dir := t.TempDir()

	failing := writeScript(t, dir, "echo boom >&2\nexit 1\n")
	assert.Empty(t, voices.ListClassicVoices(context.Background(), failing, 5*time.Second))

	assert.Empty(t, voices.ListClassicVoices(context.Background(), filepath.Join(dir, "missing"), 5*time.Second))
	assert.Empty(t, voices.ListClassicVoices(context.Background(), "", 5*time.Second))

	slowDir := t.TempDir()
	slow := writeScript(t, slowDir, "exec sleep 5\n")
	assert.Empty(t, voices.ListClassicVoices(context.Background(), slow, 100*time.Millisecond))
}

func TestCatalog_ListsBothEngines(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "voice.onnx"))

	script := writeScript(t, t.TempDir(), "cat <<'LISTING'\n"+espeakListing+"LISTING\n")
	catalog := voices.NewCatalog(root, script)

	require.Len(t, catalog.NeuralVoices(), 1)
	require.Len(t, catalog.ClassicVoices(context.Background()), 3)
}

// staticLister is a fixed NeuralLister.
type staticLister []voices.NeuralVoice

func (s staticLister) NeuralVoices() []voices.NeuralVoice { return s }

func TestResolver(t *testing.T) {
	t.Parallel()

	catalog := staticLister{
		{ID: "en_US-amy-low", ModelPath: "/m/en_US-amy-low.onnx", ConfigPath: "/m/en_US-amy-low.onnx.json"},
		{ID: "en/en_GB-alan-low", ModelPath: "/m/en/en_GB-alan-low.onnx", ConfigPath: "/m/en/en_GB-alan-low.onnx.json"},
	}
	resolver := voices.NewResolver(catalog, "/models/voice.onnx", "/models/voice.onnx.json")

	t.Run("exact match", func(t *testing.T) {
		t.Parallel()

		artifacts, err := resolver.Resolve("en/en_GB-alan-low")
		require.NoError(t, err)
		assert.Equal(t, voices.Artifacts{
			ModelPath:  "/m/en/en_GB-alan-low.onnx",
			ConfigPath: "/m/en/en_GB-alan-low.onnx.json",
		}, artifacts)
	})

	t.Run("absent id", func(t *testing.T) {
		t.Parallel()

		_, err := resolver.Resolve("en_GB-alan")
		require.ErrorIs(t, err, core.ErrNotFound)
		assert.Contains(t, err.Error(), "en_GB-alan")
	})

	t.Run("no id uses defaults", func(t *testing.T) {
		t.Parallel()

		artifacts, err := resolver.Resolve("")
		require.NoError(t, err)
		assert.Equal(t, voices.Artifacts{
			ModelPath:  "/models/voice.onnx",
			ConfigPath: "/models/voice.onnx.json",
		}, artifacts)
	})
}

func TestResolver_DefaultsIgnoreCatalog(t *testing.T) {
	t.Parallel()

	resolver := voices.NewResolver(staticLister(nil), "/a.onnx", "/a.onnx.json")

	artifacts, err := resolver.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, resolver.Defaults(), artifacts)
}
