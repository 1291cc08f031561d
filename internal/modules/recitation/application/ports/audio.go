package ports

import (
	"context"
)

// AudioOrigin records which resolution tier produced an audio source.
type AudioOrigin string

const (
	OriginUserRecording AudioOrigin = "recording"
	OriginPrimary       AudioOrigin = "primary"
	OriginFallback      AudioOrigin = "fallback"
)

// AudioSource is a playable locator: a URL or a local file path.
type AudioSource struct {
	URI    string
	Origin AudioOrigin
}

// AudioDevice loads audio sources for one output (a guild voice connection).
type AudioDevice interface {
	// Load prepares source for playback without starting it.
	// Errors are *domain.PlaybackDeviceError.
	Load(ctx context.Context, source AudioSource) (AudioHandle, error)
}

// AudioHandle is one loaded audio resource. At most one handle per device
// is alive at a time; the owner must call Release when done with it.
type AudioHandle interface {
	// Play starts playback of the loaded source.
	Play(ctx context.Context) error

	// Pause pauses playback.
	Pause(ctx context.Context) error

	// Resume continues paused playback.
	Resume(ctx context.Context) error

	// SetSpeed changes the playback rate of this handle.
	SetSpeed(ctx context.Context, speed float64) error

	// Done yields exactly once when playback ends: nil on natural completion,
	// a *domain.PlaybackDeviceError on failure. It never yields after Release.
	Done() <-chan error

	// Release stops playback and frees the resource. Safe to call more than once.
	Release(ctx context.Context) error
}
