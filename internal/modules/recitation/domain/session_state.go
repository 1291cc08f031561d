package domain

// SessionState is the sequencer state of a playback session.
type SessionState int

const (
	StateIdle SessionState = iota
	StateLoading
	StatePlaying
	StatePaused
	StateStopped
	StateError
)

// String returns a human-readable representation of the state.
func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transitions can happen.
func (s SessionState) IsTerminal() bool {
	return s == StateStopped || s == StateError
}

// EndReason explains why a session ended.
type EndReason string

const (
	// EndCompleted means the queue was played rangeRepeat times.
	EndCompleted EndReason = "completed"
	// EndStopped means stop() was called or the session was replaced.
	EndStopped EndReason = "stopped"
	// EndFailed means an Infinite session hit the consecutive-failure cap.
	EndFailed EndReason = "failed"
	// EndDeviceUnavailable means the audio device went away.
	EndDeviceUnavailable EndReason = "device_unavailable"
)

// FinalState returns the terminal state a session lands in for this reason.
func (r EndReason) FinalState() SessionState {
	switch r {
	case EndFailed, EndDeviceUnavailable:
		return StateError
	default:
		return StateStopped
	}
}
