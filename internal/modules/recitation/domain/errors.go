package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors. Typed errors below match these via errors.Is.
var (
	// ErrInvalidRange is returned when a request has a malformed shape or bounds.
	ErrInvalidRange = errors.New("invalid verse range")

	// ErrEmptyQueue is returned when a request resolves to nothing playable.
	ErrEmptyQueue = errors.New("playback queue is empty")

	// ErrNoUserRecording is returned when the user reciter has no recording for a verse.
	ErrNoUserRecording = errors.New("no user recording for verse")

	// ErrAudioResolution is returned when neither audio tier produced a source.
	ErrAudioResolution = errors.New("failed to resolve audio source")

	// ErrChapterLoad is returned when the content viewer failed to load a chapter.
	ErrChapterLoad = errors.New("failed to load chapter")

	// ErrPlaybackDevice is returned when the audio device or codec failed.
	ErrPlaybackDevice = errors.New("playback device failure")

	// ErrDeviceUnavailable marks a device failure after which playback cannot continue.
	ErrDeviceUnavailable = errors.New("playback device unavailable")

	// ErrUnknownReciter is returned when a request names a reciter that is not registered.
	ErrUnknownReciter = errors.New("unknown reciter")

	// ErrInvalidRepeat is returned when a repeat count is neither positive nor Infinite.
	ErrInvalidRepeat = errors.New("repeat count must be at least 1 or infinite")

	// ErrInvalidSpeed is returned when a playback speed is out of bounds.
	ErrInvalidSpeed = errors.New("speed must be between 0.5 and 2.0")
)

// InvalidRangeError describes why a request was rejected.
type InvalidRangeError struct {
	Reason string
}

// NewInvalidRangeError creates an InvalidRangeError.
func NewInvalidRangeError(reason string) *InvalidRangeError {
	return &InvalidRangeError{Reason: reason}
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidRange, e.Reason)
}

func (e *InvalidRangeError) Is(target error) bool {
	return target == ErrInvalidRange
}

// EmptyQueueError is returned when resolution or building yields zero items.
type EmptyQueueError struct {
	Mode PlaybackMode
}

func (e *EmptyQueueError) Error() string {
	return fmt.Sprintf("%s: %s request produced no verses", ErrEmptyQueue, e.Mode)
}

func (e *EmptyQueueError) Is(target error) bool {
	return target == ErrEmptyQueue
}

// NoUserRecordingError is returned for a user-reciter lookup miss.
type NoUserRecordingError struct {
	Chapter int
	Verse   int
}

func (e *NoUserRecordingError) Error() string {
	return fmt.Sprintf("%s %d:%d", ErrNoUserRecording, e.Chapter, e.Verse)
}

func (e *NoUserRecordingError) Is(target error) bool {
	return target == ErrNoUserRecording
}

// AudioResolutionError is returned when both the primary service and the
// fallback CDN failed for a verse.
type AudioResolutionError struct {
	Verse    VerseRef
	Reciter  string
	Primary  error
	Fallback error
}

func (e *AudioResolutionError) Error() string {
	return fmt.Sprintf("%s for %s (reciter %s): primary: %v; fallback: %v",
		ErrAudioResolution, e.Verse, e.Reciter, e.Primary, e.Fallback)
}

func (e *AudioResolutionError) Is(target error) bool {
	return target == ErrAudioResolution
}

func (e *AudioResolutionError) Unwrap() []error {
	return []error{e.Primary, e.Fallback}
}

// ChapterLoadError is returned when the content viewer could not load a chapter.
type ChapterLoadError struct {
	Chapter int
	Cause   error
}

func (e *ChapterLoadError) Error() string {
	return fmt.Sprintf("%s %d: %v", ErrChapterLoad, e.Chapter, e.Cause)
}

func (e *ChapterLoadError) Is(target error) bool {
	return target == ErrChapterLoad
}

func (e *ChapterLoadError) Unwrap() error {
	return e.Cause
}

// PlaybackDeviceError wraps an audio device or codec failure.
// Unavailable is set when the device itself is gone and the session must end.
type PlaybackDeviceError struct {
	Cause       error
	Unavailable bool
}

func (e *PlaybackDeviceError) Error() string {
	if e.Unavailable {
		return fmt.Sprintf("%s: %v", ErrDeviceUnavailable, e.Cause)
	}
	return fmt.Sprintf("%s: %v", ErrPlaybackDevice, e.Cause)
}

func (e *PlaybackDeviceError) Is(target error) bool {
	return target == ErrPlaybackDevice || (e.Unavailable && target == ErrDeviceUnavailable)
}

func (e *PlaybackDeviceError) Unwrap() error {
	return e.Cause
}
