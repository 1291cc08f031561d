package recitation

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/recitebot/internal/bot"
	"github.com/sglre6355/recitebot/internal/modules/recitation/application/events"
	"github.com/sglre6355/recitebot/internal/modules/recitation/application/ports"
	"github.com/sglre6355/recitebot/internal/modules/recitation/application/usecases"
	"github.com/sglre6355/recitebot/internal/modules/recitation/domain"
	"github.com/sglre6355/recitebot/internal/modules/recitation/infrastructure"
	"github.com/sglre6355/recitebot/internal/modules/recitation/presentation/discord"
)

func init() {
	bot.Register(&RecitationModule{})
}

// Compile-time interface checks.
var (
	_ bot.ConfigurableModule = (*RecitationModule)(nil)
	_ bot.AutocompleteModule = (*RecitationModule)(nil)
)

// RecitationModule provides verse recitation commands.
type RecitationModule struct {
	config          *Config
	commandHandlers *discord.CommandHandlers
	autocomplete    *discord.AutocompleteHandler
	eventHandlers   *discord.EventHandlers
	lavalinkAdapter *infrastructure.LavalinkAdapter
	recordings      *infrastructure.DirectoryRecordingStore
	recitation      *usecases.RecitationService

	// Event-driven components
	eventBus            *events.Bus
	notificationHandler *events.NotificationEventHandler

	// Context for background goroutines
	ctx    context.Context
	cancel context.CancelFunc
}

// Name returns the module name.
func (m *RecitationModule) Name() string {
	return "recitation"
}

// Commands returns the slash commands for this module.
func (m *RecitationModule) Commands() []*discordgo.ApplicationCommand {
	return discord.Commands()
}

// CommandHandlers returns the command handlers for this module.
func (m *RecitationModule) CommandHandlers() map[string]bot.InteractionHandler {
	return map[string]bot.InteractionHandler{
		"recite":     m.commandHandlers.HandleRecite,
		"pause":      m.commandHandlers.HandlePause,
		"resume":     m.commandHandlers.HandleResume,
		"stop":       m.commandHandlers.HandleStop,
		"next":       m.commandHandlers.HandleNext,
		"previous":   m.commandHandlers.HandlePrevious,
		"speed":      m.commandHandlers.HandleSpeed,
		"nowplaying": m.commandHandlers.HandleNowPlaying,
		"reciters":   m.commandHandlers.HandleReciters,
		"leave":      m.commandHandlers.HandleLeave,
	}
}

// AutocompleteHandlers returns the autocomplete handlers for this module.
func (m *RecitationModule) AutocompleteHandlers() map[string]bot.AutocompleteHandler {
	return map[string]bot.AutocompleteHandler{
		"recite": m.autocomplete.HandleRecite,
	}
}

// EventHandlers returns the event handlers for this module.
func (m *RecitationModule) EventHandlers() []bot.EventHandler {
	return []bot.EventHandler{
		func(s *discordgo.Session, event *discordgo.VoiceServerUpdate) {
			m.handleVoiceServerUpdate(s, event)
		},
		func(s *discordgo.Session, event *discordgo.VoiceStateUpdate) {
			m.handleVoiceStateUpdate(s, event)
		},
	}
}

// LoadConfig loads module-specific configuration from environment variables.
func (m *RecitationModule) LoadConfig() error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	m.config = cfg
	return nil
}

// Init initializes the module.
func (m *RecitationModule) Init(deps bot.ModuleDependencies) error {
	if deps.Session == nil {
		return errors.New("recitation module requires a Discord session")
	}
	if m.config == nil {
		if err := m.LoadConfig(); err != nil {
			return err
		}
	}
	cfg := m.config

	// Create cancellable context for background goroutines
	m.ctx, m.cancel = context.WithCancel(context.Background())

	m.eventBus = events.NewBus(events.DefaultEventBufferSize)

	lavalinkAdapter, err := infrastructure.NewLavalinkAdapter(m.ctx, deps.Session, infrastructure.LavalinkConfig{
		Address:  cfg.LavalinkAddress,
		Password: cfg.LavalinkPassword,
		Secure:   cfg.LavalinkSecure,
	})
	if err != nil {
		return err
	}
	m.lavalinkAdapter = lavalinkAdapter

	// Audio sources
	api := infrastructure.NewQuranAPIClient(infrastructure.QuranAPIConfig{
		BaseURL:           cfg.QuranAPIBaseURL,
		RequestsPerMinute: cfg.APIRequestsPerMinute,
	})
	cdn := infrastructure.NewCDNAudioSource(cfg.AudioCDNBaseURL, cfg.AudioCDNExtension)

	var recordings ports.RecordingStore
	if cfg.RecordingsDir != "" {
		store, err := infrastructure.NewDirectoryRecordingStore(cfg.RecordingsDir)
		if err != nil {
			return err
		}
		if err := store.Start(m.ctx); err != nil {
			return err
		}
		m.recordings = store
		recordings = store
	}

	retry := cfg.RetryPolicy()
	resolver := usecases.NewAudioSourceResolver(api, cdn, recordings, retry, cfg.AudioCacheSize)

	// Repositories and registry
	states := infrastructure.NewMemoryRepository()
	controllers := infrastructure.NewControllerRepository()
	reciters := infrastructure.NewStaticReciterRegistry(cfg.Reciters)
	voiceState := infrastructure.NewVoiceStateProvider(deps.Session)
	notifier := infrastructure.NewNotifier(deps.Session)

	builder := domain.NewQueueBuilder(cfg.InfiniteVerseRepeatCap)
	newController := func(guildID snowflake.ID) *usecases.PlaybackController {
		sequencer := usecases.NewPlaybackSequencer(
			guildID,
			resolver,
			lavalinkAdapter.Device(guildID),
			infrastructure.NewContentViewer(guildID, api),
			m.eventBus,
			retry,
		)
		return usecases.NewPlaybackController(builder, reciters, sequencer, cfg.DefaultReciter)
	}

	// Services
	voiceChannel := usecases.NewVoiceChannelService(states, controllers, lavalinkAdapter, voiceState)
	m.recitation = usecases.NewRecitationService(controllers, states, newController, voiceChannel, reciters)

	// Application event handlers
	m.notificationHandler = events.NewNotificationEventHandler(notifier, states, api, reciters, m.eventBus)
	m.notificationHandler.Start(m.ctx)

	// Presentation handlers
	botID, err := snowflake.Parse(deps.Session.State.User.ID)
	if err != nil {
		return err
	}
	m.commandHandlers = discord.NewCommandHandlers(m.recitation, voiceChannel)
	m.autocomplete = discord.NewAutocompleteHandler(m.recitation)
	m.eventHandlers = discord.NewEventHandlers(botID, voiceChannel)

	slog.Info("recitation module initialized",
		"reciters", len(reciters.List()),
		"default_reciter", cfg.DefaultReciter,
		"recordings_dir", cfg.RecordingsDir,
	)

	return nil
}

// Shutdown cleans up module resources.
func (m *RecitationModule) Shutdown() error {
	// Stop sessions first so their end events are still delivered
	if m.recitation != nil {
		m.recitation.Shutdown()
	}

	if m.cancel != nil {
		m.cancel()
	}
	if m.notificationHandler != nil {
		m.notificationHandler.Stop()
	}
	if m.eventBus != nil {
		m.eventBus.Close()
	}
	if m.recordings != nil {
		m.recordings.Stop()
	}
	if m.lavalinkAdapter != nil {
		m.lavalinkAdapter.Close()
	}

	return nil
}

// Event handlers.

func (m *RecitationModule) handleVoiceServerUpdate(
	_ *discordgo.Session,
	event *discordgo.VoiceServerUpdate,
) {
	if m.lavalinkAdapter != nil {
		m.lavalinkAdapter.OnVoiceServerUpdate(event)
	}
}

func (m *RecitationModule) handleVoiceStateUpdate(
	s *discordgo.Session,
	event *discordgo.VoiceStateUpdate,
) {
	if m.lavalinkAdapter != nil {
		m.lavalinkAdapter.OnVoiceStateUpdate(event)
	}
	if m.eventHandlers != nil {
		m.eventHandlers.HandleVoiceStateUpdate(s, event)
	}
}
