package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/samber/lo"
	"github.com/sglre6355/recitebot/internal/bot"
	"github.com/sglre6355/recitebot/internal/modules/recitation/application/usecases"
	"github.com/sglre6355/recitebot/internal/modules/recitation/domain"
)

// Embed colors.
const (
	colorSuccess = 0x08c404
	colorError   = 0xE74C3C
)

// Recitation is the use case surface the command handlers drive.
type Recitation interface {
	Recite(ctx context.Context, input usecases.ReciteInput) (*usecases.ReciteOutput, error)
	Pause(ctx context.Context, input usecases.ControlInput) error
	Resume(ctx context.Context, input usecases.ControlInput) error
	Stop(ctx context.Context, input usecases.ControlInput) error
	Next(ctx context.Context, input usecases.ControlInput) error
	Previous(ctx context.Context, input usecases.ControlInput) error
	SetSpeed(ctx context.Context, input usecases.SetSpeedInput) error
	NowPlaying(guildID snowflake.ID) (*usecases.NowPlayingOutput, error)
	Reciters() []domain.Reciter
}

// VoiceChannel is the voice use case surface the command handlers drive.
type VoiceChannel interface {
	Leave(ctx context.Context, input usecases.LeaveInput) error
}

// CommandHandlers holds all the command handlers.
type CommandHandlers struct {
	recitation   Recitation
	voiceChannel VoiceChannel
}

// NewCommandHandlers creates new CommandHandlers.
func NewCommandHandlers(recitation Recitation, voiceChannel VoiceChannel) *CommandHandlers {
	return &CommandHandlers{
		recitation:   recitation,
		voiceChannel: voiceChannel,
	}
}

// HandleRecite handles the /recite command.
func (h *CommandHandlers) HandleRecite(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	ctx := context.Background()

	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	if i.Member == nil || i.Member.User == nil {
		return respondError(r, "Invalid user")
	}
	userID, err := snowflake.Parse(i.Member.User.ID)
	if err != nil {
		return respondError(r, "Invalid user")
	}

	notificationChannelID, err := snowflake.Parse(i.ChannelID)
	if err != nil {
		return respondError(r, "Invalid notification channel")
	}

	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		return respondError(r, "Invalid subcommand")
	}

	req, err := requestFromSubcommand(options[0])
	if err != nil {
		return respondError(r, userMessage(err))
	}

	output, err := h.recitation.Recite(ctx, usecases.ReciteInput{
		GuildID:               guildID,
		UserID:                userID,
		NotificationChannelID: notificationChannelID,
		Request:               req,
	})
	if err != nil {
		return respondError(r, userMessage(err))
	}

	return respondSuccess(r, describeStart(req, output))
}

// HandlePause handles the /pause command.
func (h *CommandHandlers) HandlePause(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	return h.handleControl(i, r, h.recitation.Pause, "Paused recitation.")
}

// HandleResume handles the /resume command.
func (h *CommandHandlers) HandleResume(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	return h.handleControl(i, r, h.recitation.Resume, "Resumed recitation.")
}

// HandleStop handles the /stop command.
func (h *CommandHandlers) HandleStop(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	return h.handleControl(i, r, h.recitation.Stop, "Stopped recitation.")
}

// HandleNext handles the /next command.
// The "Now reciting" embed follows from the sequencer event.
func (h *CommandHandlers) HandleNext(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	return h.handleControl(i, r, h.recitation.Next, "Skipped.")
}

// HandlePrevious handles the /previous command.
func (h *CommandHandlers) HandlePrevious(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	return h.handleControl(i, r, h.recitation.Previous, "Went back.")
}

// HandleSpeed handles the /speed command.
func (h *CommandHandlers) HandleSpeed(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	ctx := context.Background()

	guildID, notificationChannelID, problem := parseGuildAndChannel(i)
	if problem != "" {
		return respondError(r, problem)
	}

	opt, ok := optionMap(i.ApplicationCommandData().Options)["value"]
	if !ok {
		return respondError(r, "Missing speed")
	}
	speed := opt.FloatValue()

	if err := h.recitation.SetSpeed(ctx, usecases.SetSpeedInput{
		GuildID:               guildID,
		NotificationChannelID: notificationChannelID,
		Speed:                 speed,
	}); err != nil {
		return respondError(r, userMessage(err))
	}

	return respondSuccess(r, fmt.Sprintf("Speed set to **%sx**.", formatSpeed(speed)))
}

// HandleNowPlaying handles the /nowplaying command.
func (h *CommandHandlers) HandleNowPlaying(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	output, err := h.recitation.NowPlaying(guildID)
	if err != nil {
		return respondError(r, userMessage(err))
	}

	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{nowPlayingEmbed(output)},
		},
	})
}

// HandleReciters handles the /reciters command.
func (h *CommandHandlers) HandleReciters(
	_ *discordgo.Session,
	_ *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	lines := lo.Map(h.recitation.Reciters(), func(reciter domain.Reciter, _ int) string {
		return fmt.Sprintf("**%s** `%s`", reciter.DisplayName, reciter.ID)
	})

	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Title:       "Reciters",
					Description: truncate(strings.Join(lines, "\n"), 4096),
					Color:       colorSuccess,
				},
			},
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
}

// HandleLeave handles the /leave command.
func (h *CommandHandlers) HandleLeave(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	ctx := context.Background()

	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	if err := h.voiceChannel.Leave(ctx, usecases.LeaveInput{GuildID: guildID}); err != nil {
		return respondError(r, userMessage(err))
	}

	return respondSuccess(r, "Disconnected.")
}

func (h *CommandHandlers) handleControl(
	i *discordgo.InteractionCreate,
	r bot.Responder,
	control func(context.Context, usecases.ControlInput) error,
	success string,
) error {
	ctx := context.Background()

	guildID, notificationChannelID, problem := parseGuildAndChannel(i)
	if problem != "" {
		return respondError(r, problem)
	}

	if err := control(ctx, usecases.ControlInput{
		GuildID:               guildID,
		NotificationChannelID: notificationChannelID,
	}); err != nil {
		return respondError(r, userMessage(err))
	}

	return respondSuccess(r, success)
}

// parseGuildAndChannel returns the guild and channel of the interaction, or
// the message to show when either is malformed.
func parseGuildAndChannel(i *discordgo.InteractionCreate) (guildID, channelID snowflake.ID, problem string) {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return 0, 0, "Invalid guild"
	}
	channelID, err = snowflake.Parse(i.ChannelID)
	if err != nil {
		return 0, 0, "Invalid notification channel"
	}
	return guildID, channelID, ""
}

// userMessage turns a use case error into text for the caller.
func userMessage(err error) string {
	var rangeErr *domain.InvalidRangeError
	switch {
	case errors.As(err, &rangeErr):
		return fmt.Sprintf("Invalid verses: %s.", rangeErr.Reason)
	case errors.Is(err, domain.ErrEmptyQueue):
		return "Nothing to recite for that selection."
	case errors.Is(err, domain.ErrUnknownReciter):
		return "Unknown reciter. Use /reciters to see the available ones."
	case errors.Is(err, domain.ErrInvalidRepeat):
		return "Repeat counts must be 0 (forever) or more."
	case errors.Is(err, domain.ErrInvalidSpeed):
		return fmt.Sprintf("Speed must be between %sx and %sx.",
			formatSpeed(domain.MinSpeed), formatSpeed(domain.MaxSpeed))
	case errors.Is(err, domain.ErrDeviceUnavailable):
		return "The audio player is not available right now."
	default:
		return err.Error()
	}
}

func describeStart(req domain.PlaybackRequest, output *usecases.ReciteOutput) string {
	var selection string
	switch req.Mode {
	case domain.ModeWholeChapter:
		selection = fmt.Sprintf("chapter **%d**", req.Chapter)
	case domain.ModeRange:
		selection = fmt.Sprintf("verses **%s**", req.Range)
	default:
		selection = fmt.Sprintf("**%d** selected verse(s)", len(req.Verses))
	}

	description := fmt.Sprintf("Reciting %s with **%s** in <#%d>.",
		selection, output.Reciter.DisplayName, output.VoiceChannelID)

	details := make([]string, 0, 3)
	if req.PerVerseRepeat.IsInfinite() || req.PerVerseRepeat > 1 {
		details = append(details, fmt.Sprintf("each verse ×%s", req.PerVerseRepeat))
	}
	if output.Snapshot.RangeRepeat.IsInfinite() || output.Snapshot.RangeRepeat > 1 {
		details = append(details, fmt.Sprintf("selection ×%s", output.Snapshot.RangeRepeat))
	}
	if output.Snapshot.Speed != domain.DefaultSpeed {
		details = append(details, fmt.Sprintf("%sx speed", formatSpeed(output.Snapshot.Speed)))
	}
	if len(details) > 0 {
		description += "\n" + strings.Join(details, ", ")
	}
	return description
}

func nowPlayingEmbed(output *usecases.NowPlayingOutput) *discordgo.MessageEmbed {
	snapshot := output.Snapshot

	verse := "-"
	if snapshot.Current != nil {
		verse = snapshot.Current.Verse.String()
		if snapshot.Current.IsPreamble {
			verse = fmt.Sprintf("%s (opening formula for chapter %d)", verse, snapshot.Current.Chapter())
		}
	}

	reciter := output.Reciter.DisplayName
	if reciter == "" {
		reciter = snapshot.ReciterID
	}

	return &discordgo.MessageEmbed{
		Title: "Now reciting",
		Color: colorSuccess,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Verse", Value: verse, Inline: true},
			{Name: "Reciter", Value: reciter, Inline: true},
			{Name: "State", Value: snapshot.State.String(), Inline: true},
			{
				Name:   "Position",
				Value:  fmt.Sprintf("%d / %d", snapshot.Cursor+1, snapshot.QueueLength),
				Inline: true,
			},
			{
				Name:   "Loop",
				Value:  fmt.Sprintf("%d / %s", snapshot.LoopIteration+1, snapshot.RangeRepeat),
				Inline: true,
			},
			{Name: "Speed", Value: formatSpeed(snapshot.Speed) + "x", Inline: true},
		},
	}
}

func formatSpeed(speed float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", speed), "0"), ".")
}

func respondSuccess(r bot.Responder, message string) error {
	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Description: message,
					Color:       colorSuccess,
				},
			},
		},
	})
}

func respondError(r bot.Responder, message string) error {
	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Title:       "Error",
					Description: message,
					Color:       colorError,
				},
			},
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
}

// Ensure the use case services satisfy the handler interfaces.
var (
	_ Recitation   = (*usecases.RecitationService)(nil)
	_ VoiceChannel = (*usecases.VoiceChannelService)(nil)
)
