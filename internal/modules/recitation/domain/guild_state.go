package domain

import (
	"sync"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
)

// NowRecitingMessage stores the channel and message ID of the "Now reciting"
// embed. Both are needed because the notification channel may change while
// the message is still on screen.
type NowRecitingMessage struct {
	ChannelID snowflake.ID
	MessageID snowflake.ID
	SessionID uuid.UUID // session that last updated the message
}

// GuildState is the per-guild voice and notification context of the bot.
type GuildState struct {
	guildID snowflake.ID

	mu                    sync.Mutex
	voiceChannelID        snowflake.ID
	notificationChannelID snowflake.ID
	nowReciting           *NowRecitingMessage
	skippedItems          int
}

// NewGuildState creates a GuildState for the given guild and channels.
func NewGuildState(guildID, voiceChannelID, notificationChannelID snowflake.ID) *GuildState {
	return &GuildState{
		guildID:               guildID,
		voiceChannelID:        voiceChannelID,
		notificationChannelID: notificationChannelID,
	}
}

// GuildID returns the guild ID. It never changes after construction.
func (g *GuildState) GuildID() snowflake.ID {
	return g.guildID
}

// VoiceChannelID returns the voice channel the bot is connected to.
func (g *GuildState) VoiceChannelID() snowflake.ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.voiceChannelID
}

// SetVoiceChannelID updates the voice channel ID.
func (g *GuildState) SetVoiceChannelID(channelID snowflake.ID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.voiceChannelID = channelID
}

// NotificationChannelID returns the text channel for notifications.
func (g *GuildState) NotificationChannelID() snowflake.ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.notificationChannelID
}

// SetNotificationChannelID updates the notification channel. Zero is ignored.
func (g *GuildState) SetNotificationChannelID(channelID snowflake.ID) {
	if channelID == 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.notificationChannelID = channelID
}

// NowReciting returns a copy of the "Now reciting" message info, or nil.
func (g *GuildState) NowReciting() *NowRecitingMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.nowReciting == nil {
		return nil
	}
	msg := *g.nowReciting
	return &msg
}

// SetNowReciting stores the "Now reciting" message info; nil clears it.
func (g *GuildState) SetNowReciting(msg *NowRecitingMessage) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if msg == nil {
		g.nowReciting = nil
		return
	}
	copied := *msg
	g.nowReciting = &copied
}

// TakeNowReciting returns the stored message info and clears it.
func (g *GuildState) TakeNowReciting() *NowRecitingMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	msg := g.nowReciting
	g.nowReciting = nil
	return msg
}

// TakeNowRecitingFor is TakeNowReciting restricted to the message last
// updated by sessionID. A message already taken over by a newer session is
// left in place and nil is returned.
func (g *GuildState) TakeNowRecitingFor(sessionID uuid.UUID) *NowRecitingMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.nowReciting == nil || g.nowReciting.SessionID != sessionID {
		return nil
	}
	msg := g.nowReciting
	g.nowReciting = nil
	return msg
}

// RecordSkippedItem counts a per-item failure for display.
func (g *GuildState) RecordSkippedItem() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.skippedItems++
	return g.skippedItems
}

// SkippedItems returns the number of failed items since the last reset.
func (g *GuildState) SkippedItems() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.skippedItems
}

// ResetSkippedItems clears the failure counter, typically on a new session.
func (g *GuildState) ResetSkippedItems() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.skippedItems = 0
}
