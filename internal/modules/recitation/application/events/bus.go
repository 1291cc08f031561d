package events

import (
	"log/slog"
	"sync"

	"github.com/sglre6355/recitebot/internal/modules/recitation/application/ports"
	"github.com/sglre6355/recitebot/internal/modules/recitation/domain"
)

// DefaultEventBufferSize is the default buffer size for event channels.
const DefaultEventBufferSize = 100

// Compile-time check that Bus implements ports.EventPublisher.
var _ ports.EventPublisher = (*Bus)(nil)

// Bus provides a channel-based event bus for async event handling.
type Bus struct {
	sessionStarted chan domain.SessionStartedEvent
	verseActivated chan domain.VerseActivatedEvent
	itemFailed     chan domain.ItemFailedEvent
	sessionEnded   chan domain.SessionEndedEvent

	closed bool
	mu     sync.RWMutex
}

// NewBus creates a new Bus with the given buffer size.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultEventBufferSize
	}

	return &Bus{
		sessionStarted: make(chan domain.SessionStartedEvent, bufferSize),
		verseActivated: make(chan domain.VerseActivatedEvent, bufferSize),
		itemFailed:     make(chan domain.ItemFailedEvent, bufferSize),
		sessionEnded:   make(chan domain.SessionEndedEvent, bufferSize),
	}
}

// publish sends event on ch without blocking. Callers hold b.mu for reading.
func publish[E any](b *Bus, ch chan E, event E, eventType string, attrs ...any) {
	if b.closed {
		slog.Warn("attempted to publish to closed event bus", "type", eventType)
		return
	}

	select {
	case ch <- event:
		slog.Debug("published event", append([]any{"type", eventType}, attrs...)...)
	default:
		slog.Warn("event buffer full, dropping event", "type", eventType)
	}
}

// PublishSessionStarted publishes a SessionStartedEvent.
// Non-blocking: if the channel buffer is full, the event is dropped with a warning.
func (b *Bus) PublishSessionStarted(event domain.SessionStartedEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	publish(b, b.sessionStarted, event, "SessionStarted",
		"guild", event.GuildID,
		"session", event.SessionID,
	)
}

// PublishVerseActivated publishes a VerseActivatedEvent.
// Non-blocking: if the channel buffer is full, the event is dropped with a warning.
func (b *Bus) PublishVerseActivated(event domain.VerseActivatedEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	publish(b, b.verseActivated, event, "VerseActivated",
		"guild", event.GuildID,
		"session", event.SessionID,
		"verse", event.Item.Verse.String(),
	)
}

// PublishItemFailed publishes an ItemFailedEvent.
// Non-blocking: if the channel buffer is full, the event is dropped with a warning.
func (b *Bus) PublishItemFailed(event domain.ItemFailedEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	publish(b, b.itemFailed, event, "ItemFailed",
		"guild", event.GuildID,
		"session", event.SessionID,
	)
}

// PublishSessionEnded publishes a SessionEndedEvent.
// Non-blocking: if the channel buffer is full, the event is dropped with a warning.
func (b *Bus) PublishSessionEnded(event domain.SessionEndedEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	publish(b, b.sessionEnded, event, "SessionEnded",
		"guild", event.GuildID,
		"session", event.SessionID,
		"reason", event.Reason,
	)
}

// SessionStarted returns the channel for SessionStartedEvent.
func (b *Bus) SessionStarted() <-chan domain.SessionStartedEvent {
	return b.sessionStarted
}

// VerseActivated returns the channel for VerseActivatedEvent.
func (b *Bus) VerseActivated() <-chan domain.VerseActivatedEvent {
	return b.verseActivated
}

// ItemFailed returns the channel for ItemFailedEvent.
func (b *Bus) ItemFailed() <-chan domain.ItemFailedEvent {
	return b.itemFailed
}

// SessionEnded returns the channel for SessionEndedEvent.
func (b *Bus) SessionEnded() <-chan domain.SessionEndedEvent {
	return b.sessionEnded
}

// Close closes all event channels.
// After calling Close, publishing will no longer send events.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true
	close(b.sessionStarted)
	close(b.verseActivated)
	close(b.itemFailed)
	close(b.sessionEnded)

	slog.Debug("event bus closed")
}
