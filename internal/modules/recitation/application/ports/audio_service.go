package ports

import (
	"context"
)

// PrimaryAudioService looks up verse audio from the remote recitation service.
type PrimaryAudioService interface {
	// AudioURL returns the audio URL of the verse with the given global
	// number for a reciter edition. An empty URL is treated as a failure.
	AudioURL(ctx context.Context, globalNumber int, reciterID string) (string, error)
}

// FallbackAudioSource derives verse audio URLs from a static CDN scheme.
type FallbackAudioSource interface {
	// AudioURL returns the CDN URL of the verse for a reciter.
	// Returns an error if no URL can be formed.
	AudioURL(globalNumber int, reciterID string) (string, error)
}

// RecordingStore looks up the user's own recordings.
type RecordingStore interface {
	// Lookup returns the locator of the recording for chapter:verse.
	// found is false when no recording exists.
	Lookup(ctx context.Context, chapter, verse int) (locator string, found bool, err error)
}
