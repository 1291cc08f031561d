package usecases

import "errors"

// Errors for the recitation module's command layer. Sequencer-level
// failures use the typed errors in the domain package.
var (
	// ErrNotConnected is returned when an operation requires the bot to be in a voice channel.
	ErrNotConnected = errors.New("not connected to a voice channel")

	// ErrUserNotInVoice is returned when the user is not in a voice channel.
	ErrUserNotInVoice = errors.New("you must be in a voice channel")

	// ErrNoSession is returned when a control operation finds no live session.
	ErrNoSession = errors.New("nothing is being recited")

	// ErrNotPlaying is returned when pausing a session that is not playing.
	ErrNotPlaying = errors.New("recitation is not playing")

	// ErrNotPaused is returned when resuming a session that is not paused.
	ErrNotPaused = errors.New("recitation is not paused")
)
