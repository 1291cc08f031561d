package ports

import (
	"github.com/disgoorg/snowflake/v2"
)

// NowRecitingInfo contains information for the "Now reciting" notification.
type NowRecitingInfo struct {
	Verse        string // "chapter:verse"
	ChapterName  string
	Text         string
	IsPreamble   bool
	ReciterName  string
	Position     int // 1-based position in the queue
	QueueLength  int
	Loop         int // 1-based pass over the queue
	RangeRepeat  string
	SkippedItems int
}

// NotificationSender defines the interface for sending notifications to Discord channels.
type NotificationSender interface {
	// SendNowReciting sends a "Now reciting" embed to the channel and returns the message ID.
	SendNowReciting(channelID snowflake.ID, info *NowRecitingInfo) (messageID snowflake.ID, err error)

	// EditNowReciting replaces the content of an existing "Now reciting" embed.
	EditNowReciting(channelID, messageID snowflake.ID, info *NowRecitingInfo) error

	// DeleteMessage deletes a message from the channel.
	DeleteMessage(channelID snowflake.ID, messageID snowflake.ID) error

	// SendError sends an error message embed to the channel.
	SendError(channelID snowflake.ID, message string) error
}
