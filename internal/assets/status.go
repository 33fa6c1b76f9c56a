// Package assets fetches the default neural voice on first run and tracks the
// outcome in a status value shared with the health view.
package assets

import "sync"

// State is the acquisition state of the default voice.
type State string

const (
	// StateDisabled means automatic download is switched off.
	StateDisabled State = "disabled"
	// StateNotNeeded means the default artifacts were already on disk.
	StateNotNeeded State = "not_needed"
	// StateInProgress means the acquirer has not finished yet.
	StateInProgress State = "in_progress"
	// StateDone means both artifacts were downloaded and verified.
	StateDone State = "done"
	// StateFailed means acquisition stopped with an error.
	StateFailed State = "failed"
)

// Snapshot is a point-in-time copy of the acquisition status.
type Snapshot struct {
	Enabled bool   `json:"enabled"`
	VoiceID string `json:"voice_id"`
	State   State  `json:"state"`
	Error   string `json:"error,omitempty"`
}

// Status guards the acquisition state. It leaves in_progress at most once.
type Status struct {
	mu      sync.Mutex
	current Snapshot
}

// NewStatus creates a status that starts in_progress, or disabled when
// enabled is false.
func NewStatus(enabled bool, voiceID string) *Status {
	state := StateInProgress
	if !enabled {
		state = StateDisabled
	}

	return &Status{
		current: Snapshot{
			Enabled: enabled,
			VoiceID: voiceID,
			State:   state,
		},
	}
}

// Snapshot returns a copy of the current status.
func (s *Status) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current
}

// finish moves the status from in_progress to a terminal state. It reports
// false and changes nothing if the status is already terminal.
func (s *Status) finish(state State, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.State != StateInProgress {
		return false
	}

	s.current.State = state
	if err != nil {
		s.current.Error = err.Error()
	}

	return true
}
