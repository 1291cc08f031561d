package usecases

import (
	"context"
	"strings"
	"sync"

	"github.com/disgoorg/snowflake/v2"
	"github.com/samber/lo"
	"github.com/sglre6355/recitebot/internal/modules/recitation/application/ports"
	"github.com/sglre6355/recitebot/internal/modules/recitation/domain"
)

// ReciteInput contains the input for the Recite use case.
type ReciteInput struct {
	GuildID               snowflake.ID
	UserID                snowflake.ID
	NotificationChannelID snowflake.ID
	Request               domain.PlaybackRequest
}

// ReciteOutput contains the result of the Recite use case.
type ReciteOutput struct {
	Snapshot       domain.SessionSnapshot
	Reciter        domain.Reciter
	VoiceChannelID snowflake.ID
}

// ControlInput contains the input for the session control use cases.
type ControlInput struct {
	GuildID               snowflake.ID
	NotificationChannelID snowflake.ID // Optional: updates notification channel if non-zero
}

// SetSpeedInput contains the input for the SetSpeed use case.
type SetSpeedInput struct {
	GuildID               snowflake.ID
	NotificationChannelID snowflake.ID
	Speed                 float64
}

// NowPlayingOutput contains the result of the NowPlaying use case.
type NowPlayingOutput struct {
	Snapshot domain.SessionSnapshot
	Reciter  domain.Reciter
}

// RecitationService runs recitation sessions, one controller per guild.
type RecitationService struct {
	controllers   ControllerRepository
	states        domain.GuildStateRepository
	newController ControllerFactory
	voice         *VoiceChannelService
	reciters      ports.ReciterRegistry

	mu sync.Mutex
}

// NewRecitationService creates a new RecitationService.
func NewRecitationService(
	controllers ControllerRepository,
	states domain.GuildStateRepository,
	newController ControllerFactory,
	voice *VoiceChannelService,
	reciters ports.ReciterRegistry,
) *RecitationService {
	return &RecitationService{
		controllers:   controllers,
		states:        states,
		newController: newController,
		voice:         voice,
		reciters:      reciters,
	}
}

// Recite validates the request, joins the caller's voice channel and starts
// a new session, replacing any running one. Request errors are returned
// before the bot joins voice.
func (r *RecitationService) Recite(ctx context.Context, input ReciteInput) (*ReciteOutput, error) {
	controller := r.controllerFor(input.GuildID)

	prepared, err := controller.Prepare(input.Request)
	if err != nil {
		return nil, err
	}

	joined, err := r.voice.Join(ctx, JoinInput{
		GuildID:               input.GuildID,
		UserID:                input.UserID,
		NotificationChannelID: input.NotificationChannelID,
	})
	if err != nil {
		return nil, err
	}

	snapshot, err := controller.Start(prepared)
	if err != nil {
		return nil, err
	}

	reciter, _ := r.reciters.Get(prepared.ReciterID)
	return &ReciteOutput{
		Snapshot:       snapshot,
		Reciter:        reciter,
		VoiceChannelID: joined.VoiceChannelID,
	}, nil
}

// Pause pauses the guild's recitation.
func (r *RecitationService) Pause(ctx context.Context, input ControlInput) error {
	controller, err := r.activeController(input.GuildID, input.NotificationChannelID)
	if err != nil {
		return err
	}
	return controller.Pause(ctx)
}

// Resume resumes the guild's paused recitation.
func (r *RecitationService) Resume(ctx context.Context, input ControlInput) error {
	controller, err := r.activeController(input.GuildID, input.NotificationChannelID)
	if err != nil {
		return err
	}
	return controller.Resume(ctx)
}

// Stop ends the guild's recitation.
func (r *RecitationService) Stop(_ context.Context, input ControlInput) error {
	controller, err := r.activeController(input.GuildID, input.NotificationChannelID)
	if err != nil {
		return err
	}
	return controller.Stop()
}

// Next skips to the next queue item.
func (r *RecitationService) Next(_ context.Context, input ControlInput) error {
	controller, err := r.activeController(input.GuildID, input.NotificationChannelID)
	if err != nil {
		return err
	}
	return controller.SkipNext()
}

// Previous goes back to the previous queue item.
func (r *RecitationService) Previous(_ context.Context, input ControlInput) error {
	controller, err := r.activeController(input.GuildID, input.NotificationChannelID)
	if err != nil {
		return err
	}
	return controller.SkipPrevious()
}

// SetSpeed changes the playback speed of the guild's recitation.
func (r *RecitationService) SetSpeed(ctx context.Context, input SetSpeedInput) error {
	if err := domain.ValidateSpeed(input.Speed); err != nil {
		return err
	}
	controller, err := r.activeController(input.GuildID, input.NotificationChannelID)
	if err != nil {
		return err
	}
	return controller.SetSpeed(ctx, input.Speed)
}

// NowPlaying returns the state of the guild's live session.
func (r *RecitationService) NowPlaying(guildID snowflake.ID) (*NowPlayingOutput, error) {
	controller, err := r.activeController(guildID, 0)
	if err != nil {
		return nil, err
	}

	snapshot, ok := controller.Status()
	if !ok {
		return nil, ErrNoSession
	}

	reciter, _ := r.reciters.Get(snapshot.ReciterID)
	return &NowPlayingOutput{Snapshot: snapshot, Reciter: reciter}, nil
}

// Reciters returns every registered reciter.
func (r *RecitationService) Reciters() []domain.Reciter {
	return r.reciters.List()
}

// SearchReciters returns up to limit reciters whose ID or display name
// contains query, case-insensitively.
func (r *RecitationService) SearchReciters(query string, limit int) []domain.Reciter {
	query = strings.ToLower(strings.TrimSpace(query))
	matches := lo.Filter(r.reciters.List(), func(reciter domain.Reciter, _ int) bool {
		return query == "" ||
			strings.Contains(strings.ToLower(reciter.ID), query) ||
			strings.Contains(strings.ToLower(reciter.DisplayName), query)
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// Shutdown stops every guild's session.
func (r *RecitationService) Shutdown() {
	for _, controller := range r.controllers.All() {
		controller.Shutdown()
	}
}

func (r *RecitationService) controllerFor(guildID snowflake.ID) *PlaybackController {
	r.mu.Lock()
	defer r.mu.Unlock()

	if controller := r.controllers.Get(guildID); controller != nil {
		return controller
	}
	controller := r.newController(guildID)
	r.controllers.Save(guildID, controller)
	return controller
}

func (r *RecitationService) activeController(
	guildID, notificationChannelID snowflake.ID,
) (*PlaybackController, error) {
	controller := r.controllers.Get(guildID)
	if controller == nil || !controller.IsActive() {
		return nil, ErrNoSession
	}

	if state := r.states.Get(guildID); state != nil {
		state.SetNotificationChannelID(notificationChannelID)
	}
	return controller, nil
}
