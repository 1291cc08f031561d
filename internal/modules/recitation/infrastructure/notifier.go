package infrastructure

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/recitebot/internal/modules/recitation/application/ports"
)

// Embed colors.
const (
	colorGreen = 0x2ECC71
	colorRed   = 0xE74C3C
)

// maxDescriptionLength is Discord's limit for an embed description.
const maxDescriptionLength = 4096

// Notifier sends notifications to Discord channels.
type Notifier struct {
	session *discordgo.Session
}

// NewNotifier creates a new Notifier.
func NewNotifier(session *discordgo.Session) *Notifier {
	return &Notifier{
		session: session,
	}
}

// SendNowReciting sends a "Now reciting" embed to the channel and returns the message ID.
func (n *Notifier) SendNowReciting(
	channelID snowflake.ID,
	info *ports.NowRecitingInfo,
) (snowflake.ID, error) {
	msg, err := n.session.ChannelMessageSendEmbed(channelID.String(), nowRecitingEmbed(info))
	if err != nil {
		return 0, err
	}
	messageID, err := snowflake.Parse(msg.ID)
	if err != nil {
		return 0, err
	}
	return messageID, nil
}

// EditNowReciting replaces the content of an existing "Now reciting" embed.
func (n *Notifier) EditNowReciting(
	channelID, messageID snowflake.ID,
	info *ports.NowRecitingInfo,
) error {
	_, err := n.session.ChannelMessageEditEmbed(channelID.String(), messageID.String(), nowRecitingEmbed(info))
	return err
}

// DeleteMessage deletes a message from the channel.
func (n *Notifier) DeleteMessage(channelID snowflake.ID, messageID snowflake.ID) error {
	return n.session.ChannelMessageDelete(channelID.String(), messageID.String())
}

// SendError sends an error message embed to the channel.
func (n *Notifier) SendError(channelID snowflake.ID, message string) error {
	embed := &discordgo.MessageEmbed{
		Description: message,
		Color:       colorRed,
	}

	_, err := n.session.ChannelMessageSendEmbed(channelID.String(), embed)
	return err
}

func nowRecitingEmbed(info *ports.NowRecitingInfo) *discordgo.MessageEmbed {
	title := info.Verse
	if info.ChapterName != "" {
		title = fmt.Sprintf("%s %s", info.ChapterName, info.Verse)
	}

	embed := &discordgo.MessageEmbed{
		Author: &discordgo.MessageEmbedAuthor{
			Name: "Now reciting",
		},
		Title:       title,
		Description: truncate(info.Text, maxDescriptionLength),
		Color:       colorGreen,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Reciter",
				Value:  info.ReciterName,
				Inline: true,
			},
			{
				Name:   "Position",
				Value:  fmt.Sprintf("%d / %d", info.Position, info.QueueLength),
				Inline: true,
			},
			{
				Name:   "Loop",
				Value:  fmt.Sprintf("%d / %s", info.Loop, info.RangeRepeat),
				Inline: true,
			},
		},
	}

	if info.SkippedItems > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Skipped",
			Value:  fmt.Sprintf("%d", info.SkippedItems),
			Inline: true,
		})
	}
	if info.IsPreamble {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "Opening formula"}
	}
	return embed
}

// truncate shortens s to at most limit runes, marking the cut with an ellipsis.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit-1])) + "…"
}

// Ensure Notifier implements ports.NotificationSender.
var _ ports.NotificationSender = (*Notifier)(nil)
