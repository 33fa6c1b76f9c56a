package assets

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

const (
	modelSuffix  = ".onnx"
	configSuffix = ".onnx.json"
)

var (
	// ErrIndexMalformed indicates the voice index is not a JSON object.
	ErrIndexMalformed = errors.New("voice index is malformed")
	// ErrVoiceNotInIndex indicates the default voice id has no index entry.
	ErrVoiceNotInIndex = errors.New("voice not present in index")
	// ErrArtifactNotListed indicates an index entry lacks a required file.
	ErrArtifactNotListed = errors.New("voice index entry lacks required artifact")
)

// IndexFile describes one downloadable file of a voice.
type IndexFile struct {
	SizeBytes int64  `json:"size_bytes"`
	MD5Digest string `json:"md5_digest"`
}

// IndexEntry is one voice in the remote index.
type IndexEntry struct {
	Key   string               `json:"key"`
	Files map[string]IndexFile `json:"files"`
}

// RemoteArtifact is a file to fetch: its path relative to the download base
// and the checksum it must match, if any.
type RemoteArtifact struct {
	Path      string
	SizeBytes int64
	MD5Digest string
}

// Index maps voice ids to their entries.
type Index map[string]IndexEntry

// ParseIndex decodes a voice index. Entries that do not decode are dropped
// and reported by id in skipped; only a document that is not a JSON object
// fails as a whole.
func ParseIndex(data []byte) (Index, []string, error) {
	var raw map[string]json.RawMessage

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrIndexMalformed, err)
	}

	index := make(Index, len(raw))

	var skipped []string

	for voiceID, message := range raw {
		var entry IndexEntry

		entryErr := json.Unmarshal(message, &entry)
		if entryErr != nil || len(entry.Files) == 0 {
			skipped = append(skipped, voiceID)

			continue
		}

		index[voiceID] = entry
	}

	sort.Strings(skipped)

	return index, skipped, nil
}

// Artifacts returns the model and configuration files of voiceID.
func (idx Index) Artifacts(voiceID string) (RemoteArtifact, RemoteArtifact, error) {
	entry, ok := idx[voiceID]
	if !ok {
		return RemoteArtifact{}, RemoteArtifact{}, fmt.Errorf("%w: '%s'", ErrVoiceNotInIndex, voiceID)
	}

	model, modelFound := entry.find(modelSuffix)
	if !modelFound {
		return RemoteArtifact{}, RemoteArtifact{}, fmt.Errorf("%w: no %s file for '%s'", ErrArtifactNotListed, modelSuffix, voiceID)
	}

	config, configFound := entry.find(configSuffix)
	if !configFound {
		return RemoteArtifact{}, RemoteArtifact{}, fmt.Errorf("%w: no %s file for '%s'", ErrArtifactNotListed, configSuffix, voiceID)
	}

	return model, config, nil
}

// find returns the file whose path ends in suffix. Paths are visited in
// sorted order so the choice is stable.
func (e IndexEntry) find(suffix string) (RemoteArtifact, bool) {
	paths := make([]string, 0, len(e.Files))
	for path := range e.Files {
		paths = append(paths, path)
	}

	sort.Strings(paths)

	for _, path := range paths {
		if strings.HasSuffix(path, suffix) {
			file := e.Files[path]

			return RemoteArtifact{Path: path, SizeBytes: file.SizeBytes, MD5Digest: file.MD5Digest}, true
		}
	}

	return RemoteArtifact{}, false
}
