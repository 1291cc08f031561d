package domain

import (
	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
)

// SessionStartedEvent is published when a sequencer begins a new session.
type SessionStartedEvent struct {
	GuildID     snowflake.ID
	SessionID   uuid.UUID
	QueueLength int
	ReciterID   string
	RangeRepeat Repeat
}

// VerseActivatedEvent is published when a queue item starts playing.
type VerseActivatedEvent struct {
	GuildID       snowflake.ID
	SessionID     uuid.UUID
	Item          QueueItem
	Cursor        int
	QueueLength   int
	LoopIteration int
	RangeRepeat   Repeat
	ReciterID     string
}

// ItemFailedEvent is published when a queue item was skipped after an error.
type ItemFailedEvent struct {
	GuildID   snowflake.ID
	SessionID uuid.UUID
	Item      QueueItem
	Cursor    int
	Err       error
}

// SessionEndedEvent is published when a session reaches a terminal state.
type SessionEndedEvent struct {
	GuildID       snowflake.ID
	SessionID     uuid.UUID
	Reason        EndReason
	LoopIteration int
	Played        int
	Failed        int
}
