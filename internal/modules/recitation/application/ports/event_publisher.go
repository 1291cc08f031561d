package ports

import "github.com/sglre6355/recitebot/internal/modules/recitation/domain"

// EventPublisher defines the interface for publishing sequencer events asynchronously.
// Implementations must not block the caller.
type EventPublisher interface {
	PublishSessionStarted(event domain.SessionStartedEvent)
	PublishVerseActivated(event domain.VerseActivatedEvent)
	PublishItemFailed(event domain.ItemFailedEvent)
	PublishSessionEnded(event domain.SessionEndedEvent)
}
