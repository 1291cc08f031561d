package domain

import (
	"fmt"
	"strconv"
)

// PlaybackMode selects how a request is expanded into verses.
type PlaybackMode int

const (
	ModeWholeChapter PlaybackMode = iota
	ModeRange
	ModeCustomSet
)

// String returns a human-readable representation of the mode.
func (m PlaybackMode) String() string {
	switch m {
	case ModeWholeChapter:
		return "chapter"
	case ModeRange:
		return "range"
	case ModeCustomSet:
		return "custom"
	default:
		return "unknown"
	}
}

// Repeat is a repetition count: a positive integer or Infinite.
type Repeat int

// Infinite is the sentinel for unbounded repetition.
const Infinite Repeat = -1

// RepeatOnce is the default repetition.
const RepeatOnce Repeat = 1

// IsInfinite reports whether r is the Infinite sentinel.
func (r Repeat) IsInfinite() bool {
	return r == Infinite
}

// IsValid reports whether r is at least 1 or Infinite.
func (r Repeat) IsValid() bool {
	return r == Infinite || r >= 1
}

// String returns the count, or "∞" for Infinite.
func (r Repeat) String() string {
	if r.IsInfinite() {
		return "∞"
	}
	return strconv.Itoa(int(r))
}

// Speed bounds accepted by the sequencer.
const (
	MinSpeed     = 0.5
	MaxSpeed     = 2.0
	DefaultSpeed = 1.0
)

// ValidateSpeed checks that speed is within [MinSpeed, MaxSpeed].
func ValidateSpeed(speed float64) error {
	if speed < MinSpeed || speed > MaxSpeed {
		return fmt.Errorf("%w: got %.2f", ErrInvalidSpeed, speed)
	}
	return nil
}

// PlaybackRequest describes what the user asked to hear.
// Chapter is used by ModeWholeChapter, Range by ModeRange and Verses by ModeCustomSet.
type PlaybackRequest struct {
	Mode           PlaybackMode
	Chapter        int
	Range          *VerseRange
	Verses         []VerseRef
	PerVerseRepeat Repeat
	RangeRepeat    Repeat
	ReciterID      string
	Speed          float64
}

// Validate checks the request-level fields that do not depend on expansion.
// A zero Speed is accepted and means DefaultSpeed.
func (r PlaybackRequest) Validate() error {
	if !r.PerVerseRepeat.IsValid() {
		return fmt.Errorf("%w: verse repeat %d", ErrInvalidRepeat, r.PerVerseRepeat)
	}
	if !r.RangeRepeat.IsValid() {
		return fmt.Errorf("%w: range repeat %d", ErrInvalidRepeat, r.RangeRepeat)
	}
	if r.Speed != 0 {
		if err := ValidateSpeed(r.Speed); err != nil {
			return err
		}
	}
	return nil
}

// EffectiveSpeed returns Speed, or DefaultSpeed when unset.
func (r PlaybackRequest) EffectiveSpeed() float64 {
	if r.Speed == 0 {
		return DefaultSpeed
	}
	return r.Speed
}
