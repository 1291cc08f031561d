package domain

import (
	"github.com/google/uuid"
)

// PlaybackSession is the state of one playback run: the queue, the cursor
// into it and the range-level loop bookkeeping. It is owned and mutated by
// a single sequencer and is not safe for concurrent use on its own.
type PlaybackSession struct {
	id            uuid.UUID
	queue         []QueueItem
	cursor        int
	loopIteration int
	rangeRepeat   Repeat
	state         SessionState
	reciterID     string
	speed         float64

	consecutiveFailures int
	played              int
	failed              int
}

// NewPlaybackSession creates an Idle session over queue.
func NewPlaybackSession(queue []QueueItem, rangeRepeat Repeat, reciterID string, speed float64) *PlaybackSession {
	if speed == 0 {
		speed = DefaultSpeed
	}
	return &PlaybackSession{
		id:          uuid.New(),
		queue:       queue,
		rangeRepeat: rangeRepeat,
		state:       StateIdle,
		reciterID:   reciterID,
		speed:       speed,
	}
}

// ID returns the unique session identifier.
func (s *PlaybackSession) ID() uuid.UUID {
	return s.id
}

// Len returns the number of queue items.
func (s *PlaybackSession) Len() int {
	return len(s.queue)
}

// Cursor returns the index of the current item.
func (s *PlaybackSession) Cursor() int {
	return s.cursor
}

// LoopIteration returns how many full passes over the queue have completed.
func (s *PlaybackSession) LoopIteration() int {
	return s.loopIteration
}

// RangeRepeat returns the range-level loop policy.
func (s *PlaybackSession) RangeRepeat() Repeat {
	return s.rangeRepeat
}

// State returns the current state.
func (s *PlaybackSession) State() SessionState {
	return s.state
}

// SetState sets the current state. Terminal states are sticky.
func (s *PlaybackSession) SetState(state SessionState) {
	if s.state.IsTerminal() {
		return
	}
	s.state = state
}

// ReciterID returns the reciter the session resolves audio for.
func (s *PlaybackSession) ReciterID() string {
	return s.reciterID
}

// Speed returns the playback speed applied to each item.
func (s *PlaybackSession) Speed() float64 {
	return s.speed
}

// SetSpeed stores the speed for the active and following items.
func (s *PlaybackSession) SetSpeed(speed float64) {
	s.speed = speed
}

// Current returns the item at the cursor, or nil if the cursor is past the end.
func (s *PlaybackSession) Current() *QueueItem {
	if !s.isValidIndex(s.cursor) {
		return nil
	}
	item := s.queue[s.cursor]
	return &item
}

// Queue returns a copy of the queue.
func (s *PlaybackSession) Queue() []QueueItem {
	result := make([]QueueItem, len(s.queue))
	copy(result, s.queue)
	return result
}

func (s *PlaybackSession) isValidIndex(index int) bool {
	return 0 <= index && index < len(s.queue)
}

// IsAtEnd reports whether every item of the current iteration has been visited.
func (s *PlaybackSession) IsAtEnd() bool {
	return s.cursor >= len(s.queue)
}

// Start resets the cursor and loop counter and enters Loading.
func (s *PlaybackSession) Start() {
	s.cursor = 0
	s.loopIteration = 0
	s.consecutiveFailures = 0
	s.state = StateLoading
}

// CompleteItem records a successful play and advances the cursor.
func (s *PlaybackSession) CompleteItem() {
	s.cursor++
	s.played++
	s.consecutiveFailures = 0
}

// FailItem records a skipped item and advances the cursor.
func (s *PlaybackSession) FailItem() {
	s.cursor++
	s.failed++
	s.consecutiveFailures++
}

// CompleteIteration is called when the cursor reached the end of the queue.
// It counts the finished pass and rewinds the cursor if the loop policy
// allows another one. Returns false when the session is done.
func (s *PlaybackSession) CompleteIteration() bool {
	s.loopIteration++
	if s.rangeRepeat.IsInfinite() || s.loopIteration < int(s.rangeRepeat) {
		s.cursor = 0
		return true
	}
	return false
}

// MinFailureCap is the smallest consecutive-failure cap, so a short queue
// survives a single transient failure.
const MinFailureCap = 3

// FailureCap returns how many consecutive failures end an Infinite session.
func (s *PlaybackSession) FailureCap() int {
	return max(len(s.queue), MinFailureCap)
}

// FailureCapReached reports whether an Infinite session saw FailureCap
// consecutive failures, meaning nothing in the queue is playable. Finite
// loops always run to completion and never reach the cap.
func (s *PlaybackSession) FailureCapReached() bool {
	if !s.rangeRepeat.IsInfinite() || len(s.queue) == 0 {
		return false
	}
	return s.consecutiveFailures >= s.FailureCap()
}

// Seek moves the cursor to index without touching the loop counter.
// Returns false and leaves the cursor unchanged if index is out of bounds.
func (s *PlaybackSession) Seek(index int) bool {
	if !s.isValidIndex(index) {
		return false
	}
	s.cursor = index
	return true
}

// Finish moves the session to the terminal state for reason.
func (s *PlaybackSession) Finish(reason EndReason) {
	if s.state.IsTerminal() {
		return
	}
	s.state = reason.FinalState()
}

// Snapshot returns a read-only view of the session.
func (s *PlaybackSession) Snapshot() SessionSnapshot {
	return SessionSnapshot{
		SessionID:     s.id,
		State:         s.state,
		Cursor:        s.cursor,
		QueueLength:   len(s.queue),
		LoopIteration: s.loopIteration,
		RangeRepeat:   s.rangeRepeat,
		Current:       s.Current(),
		ReciterID:     s.reciterID,
		Speed:         s.speed,
		Played:        s.played,
		Failed:        s.failed,
	}
}

// SessionSnapshot is a point-in-time copy of a session's observable state.
type SessionSnapshot struct {
	SessionID     uuid.UUID
	State         SessionState
	Cursor        int
	QueueLength   int
	LoopIteration int
	RangeRepeat   Repeat
	Current       *QueueItem
	ReciterID     string
	Speed         float64
	Played        int
	Failed        int
}
