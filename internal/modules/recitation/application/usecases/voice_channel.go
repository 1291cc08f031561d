package usecases

import (
	"context"
	"log/slog"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/recitebot/internal/modules/recitation/application/ports"
	"github.com/sglre6355/recitebot/internal/modules/recitation/domain"
)

// JoinInput contains the input for the Join use case.
type JoinInput struct {
	GuildID               snowflake.ID
	UserID                snowflake.ID
	NotificationChannelID snowflake.ID
}

// JoinOutput contains the result of the Join use case.
type JoinOutput struct {
	VoiceChannelID snowflake.ID
}

// LeaveInput contains the input for the Leave use case.
type LeaveInput struct {
	GuildID snowflake.ID
}

// BotVoiceStateChangeInput contains the input for handling bot voice state changes.
type BotVoiceStateChangeInput struct {
	GuildID      snowflake.ID
	NewChannelID *snowflake.ID // nil means disconnected
}

// VoiceChannelService handles voice channel operations.
type VoiceChannelService struct {
	states          domain.GuildStateRepository
	controllers     ControllerRepository
	voiceConnection ports.VoiceConnection
	voiceState      ports.VoiceStateProvider
}

// NewVoiceChannelService creates a new VoiceChannelService.
func NewVoiceChannelService(
	states domain.GuildStateRepository,
	controllers ControllerRepository,
	voiceConnection ports.VoiceConnection,
	voiceState ports.VoiceStateProvider,
) *VoiceChannelService {
	return &VoiceChannelService{
		states:          states,
		controllers:     controllers,
		voiceConnection: voiceConnection,
		voiceState:      voiceState,
	}
}

// Join joins the bot to the caller's voice channel.
func (v *VoiceChannelService) Join(ctx context.Context, input JoinInput) (*JoinOutput, error) {
	userChannel, err := v.voiceState.GetUserVoiceChannel(input.GuildID, input.UserID)
	if err != nil {
		return nil, err
	}
	if userChannel == nil {
		return nil, ErrUserNotInVoice
	}
	voiceChannelID := *userChannel

	existing := v.states.Get(input.GuildID)

	// Already connected to the same channel: only the notification channel may change.
	if existing != nil && existing.VoiceChannelID() == voiceChannelID {
		existing.SetNotificationChannelID(input.NotificationChannelID)
		return &JoinOutput{VoiceChannelID: voiceChannelID}, nil
	}

	if err := v.voiceConnection.JoinChannel(ctx, input.GuildID, voiceChannelID); err != nil {
		return nil, err
	}

	if existing != nil {
		existing.SetVoiceChannelID(voiceChannelID)
		existing.SetNotificationChannelID(input.NotificationChannelID)
	} else {
		v.states.Save(domain.NewGuildState(input.GuildID, voiceChannelID, input.NotificationChannelID))
	}

	return &JoinOutput{VoiceChannelID: voiceChannelID}, nil
}

// Leave stops any recitation, leaves the voice channel and forgets the guild.
func (v *VoiceChannelService) Leave(ctx context.Context, input LeaveInput) error {
	if v.states.Get(input.GuildID) == nil {
		return ErrNotConnected
	}

	v.shutdownController(input.GuildID)

	if err := v.voiceConnection.LeaveChannel(ctx, input.GuildID); err != nil {
		return err
	}

	v.states.Delete(input.GuildID)
	return nil
}

// HandleBotVoiceStateChange handles external voice state changes (bot moved or disconnected).
func (v *VoiceChannelService) HandleBotVoiceStateChange(input BotVoiceStateChangeInput) {
	state := v.states.Get(input.GuildID)
	if state == nil {
		return
	}

	if input.NewChannelID == nil {
		slog.Info("disconnected from voice, ending recitation",
			"guild", input.GuildID,
		)
		v.shutdownController(input.GuildID)
		v.states.Delete(input.GuildID)
		return
	}

	if *input.NewChannelID != state.VoiceChannelID() {
		state.SetVoiceChannelID(*input.NewChannelID)
	}
}

func (v *VoiceChannelService) shutdownController(guildID snowflake.ID) {
	controller := v.controllers.Get(guildID)
	if controller == nil {
		return
	}
	controller.Shutdown()
	v.controllers.Delete(guildID)
}
