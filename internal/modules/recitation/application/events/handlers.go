package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sglre6355/recitebot/internal/modules/recitation/application/ports"
	"github.com/sglre6355/recitebot/internal/modules/recitation/domain"
)

const (
	chapterFetchTimeout = 5 * time.Second
	endedSessionsSize   = 256
)

// NotificationEventHandler keeps each guild's "Now reciting" embed in sync
// with its session and posts a note when a session ends badly.
type NotificationEventHandler struct {
	notifier ports.NotificationSender
	states   domain.GuildStateRepository
	chapters ports.ChapterSource
	reciters ports.ReciterRegistry
	bus      *Bus

	// mu serializes handling across the event channels.
	mu sync.Mutex
	// ended holds recently ended sessions; their late activations are dropped.
	ended *lru.Cache[uuid.UUID, struct{}]

	wg   sync.WaitGroup
	done chan struct{}
}

// NewNotificationEventHandler creates a new NotificationEventHandler.
func NewNotificationEventHandler(
	notifier ports.NotificationSender,
	states domain.GuildStateRepository,
	chapters ports.ChapterSource,
	reciters ports.ReciterRegistry,
	bus *Bus,
) *NotificationEventHandler {
	ended, _ := lru.New[uuid.UUID, struct{}](endedSessionsSize)

	return &NotificationEventHandler{
		notifier: notifier,
		states:   states,
		chapters: chapters,
		reciters: reciters,
		bus:      bus,
		ended:    ended,
		done:     make(chan struct{}),
	}
}

// Start begins listening for events in background goroutines.
func (h *NotificationEventHandler) Start(ctx context.Context) {
	h.wg.Add(4)
	go consume(ctx, h, h.bus.SessionStarted(), h.handleSessionStarted)
	go consume(ctx, h, h.bus.VerseActivated(), h.handleVerseActivated)
	go consume(ctx, h, h.bus.ItemFailed(), h.handleItemFailed)
	go consume(ctx, h, h.bus.SessionEnded(), h.handleSessionEnded)

	slog.Debug("notification event handler started")
}

// Stop stops the event handler and waits for goroutines to finish.
func (h *NotificationEventHandler) Stop() {
	close(h.done)
	h.wg.Wait()
	slog.Debug("notification event handler stopped")
}

func consume[E any](
	ctx context.Context,
	h *NotificationEventHandler,
	events <-chan E,
	handle func(context.Context, E),
) {
	defer h.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			handle(ctx, event)
		}
	}
}

func (h *NotificationEventHandler) handleSessionStarted(_ context.Context, event domain.SessionStartedEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	state := h.states.Get(event.GuildID)
	if state == nil {
		return
	}
	state.ResetSkippedItems()
}

func (h *NotificationEventHandler) handleItemFailed(_ context.Context, event domain.ItemFailedEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	state := h.states.Get(event.GuildID)
	if state == nil {
		return
	}

	skipped := state.RecordSkippedItem()
	slog.Debug("recorded skipped item",
		"guild", event.GuildID,
		"session", event.SessionID,
		"verse", event.Item.Verse.String(),
		"skipped", skipped,
	)
}

func (h *NotificationEventHandler) handleVerseActivated(ctx context.Context, event domain.VerseActivatedEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ended.Contains(event.SessionID) {
		slog.Debug("skipping now reciting notification, session already ended",
			"guild", event.GuildID,
			"session", event.SessionID,
		)
		return
	}

	state := h.states.Get(event.GuildID)
	if state == nil {
		slog.Debug("skipping now reciting notification, state not found",
			"guild", event.GuildID,
		)
		return
	}
	channelID := state.NotificationChannelID()
	if channelID == 0 {
		return
	}

	info := h.nowRecitingInfo(ctx, event, state.SkippedItems())

	if current := state.NowReciting(); current != nil {
		if current.ChannelID == channelID {
			err := h.notifier.EditNowReciting(channelID, current.MessageID, info)
			if err == nil {
				current.SessionID = event.SessionID
				state.SetNowReciting(current)
				return
			}
			slog.Warn("failed to edit now reciting message, sending a new one",
				"guild", event.GuildID,
				"error", err,
			)
		} else {
			h.deleteMessage(event.GuildID, current)
		}
	}

	messageID, err := h.notifier.SendNowReciting(channelID, info)
	if err != nil {
		slog.Error("failed to send now reciting notification",
			"guild", event.GuildID,
			"error", err,
		)
		state.SetNowReciting(nil)
		return
	}

	state.SetNowReciting(&domain.NowRecitingMessage{
		ChannelID: channelID,
		MessageID: messageID,
		SessionID: event.SessionID,
	})
}

func (h *NotificationEventHandler) handleSessionEnded(_ context.Context, event domain.SessionEndedEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.ended.Add(event.SessionID, struct{}{})

	state := h.states.Get(event.GuildID)
	if state == nil {
		return
	}

	if msg := state.TakeNowRecitingFor(event.SessionID); msg != nil {
		h.deleteMessage(event.GuildID, msg)
	}

	note := endNote(event)
	channelID := state.NotificationChannelID()
	if note == "" || channelID == 0 {
		return
	}
	if err := h.notifier.SendError(channelID, note); err != nil {
		slog.Warn("failed to send session end note",
			"guild", event.GuildID,
			"error", err,
		)
	}
}

func (h *NotificationEventHandler) nowRecitingInfo(
	ctx context.Context,
	event domain.VerseActivatedEvent,
	skipped int,
) *ports.NowRecitingInfo {
	item := event.Item
	info := &ports.NowRecitingInfo{
		Verse:        item.Verse.String(),
		IsPreamble:   item.IsPreamble,
		ReciterName:  event.ReciterID,
		Position:     event.Cursor + 1,
		QueueLength:  event.QueueLength,
		Loop:         event.LoopIteration + 1,
		RangeRepeat:  event.RangeRepeat.String(),
		SkippedItems: skipped,
	}
	if reciter, ok := h.reciters.Get(event.ReciterID); ok {
		info.ReciterName = reciter.DisplayName
	}

	fetchCtx, cancel := context.WithTimeout(ctx, chapterFetchTimeout)
	defer cancel()

	// A preamble belongs to the chapter it precedes but its text lives in chapter 1.
	if list := h.chapter(fetchCtx, event.GuildID, item.Chapter()); list != nil {
		info.ChapterName = chapterName(list)
		if list.Chapter == item.Verse.Chapter {
			info.Text = list.Text(item.Verse.Verse)
		}
	}
	if info.Text == "" && item.Verse.Chapter != item.Chapter() {
		if list := h.chapter(fetchCtx, event.GuildID, item.Verse.Chapter); list != nil {
			info.Text = list.Text(item.Verse.Verse)
		}
	}
	return info
}

func (h *NotificationEventHandler) chapter(ctx context.Context, guildID snowflake.ID, chapter int) *ports.VerseList {
	list, err := h.chapters.Chapter(ctx, chapter)
	if err != nil {
		slog.Warn("failed to fetch chapter text for notification",
			"guild", guildID,
			"chapter", chapter,
			"error", err,
		)
		return nil
	}
	return list
}

func (h *NotificationEventHandler) deleteMessage(guildID snowflake.ID, msg *domain.NowRecitingMessage) {
	slog.Debug("deleting now reciting message",
		"guild", guildID,
		"message_id", msg.MessageID,
	)
	if err := h.notifier.DeleteMessage(msg.ChannelID, msg.MessageID); err != nil {
		slog.Warn("failed to delete now reciting message",
			"guild", guildID,
			"error", err,
		)
	}
}

func chapterName(list *ports.VerseList) string {
	switch {
	case list.EnglishName != "" && list.Name != "":
		return fmt.Sprintf("%s (%s)", list.EnglishName, list.Name)
	case list.EnglishName != "":
		return list.EnglishName
	default:
		return list.Name
	}
}

func endNote(event domain.SessionEndedEvent) string {
	switch event.Reason {
	case domain.EndFailed:
		return "Recitation stopped: none of the remaining verses could be played."
	case domain.EndDeviceUnavailable:
		return "Recitation stopped: the audio player is no longer available."
	case domain.EndCompleted:
		if event.Failed > 0 {
			return fmt.Sprintf("Recitation finished. %d item(s) were skipped because no audio was available.", event.Failed)
		}
	}
	return ""
}
