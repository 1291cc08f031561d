package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/disgolink/v3/disgolink"
	"github.com/disgoorg/disgolink/v3/lavalink"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/recitebot/internal/modules/recitation/application/ports"
	"github.com/sglre6355/recitebot/internal/modules/recitation/domain"
)

// voiceConnectionTimeout is the maximum time to wait for voice connection to be established.
const voiceConnectionTimeout = 10 * time.Second

var (
	errNoNode       = errors.New("no available Lavalink node")
	errPlayerClosed = errors.New("player was cleaned up")
)

// voiceHandshake buffers the two halves of a guild's voice connection.
// Lavalink rejects a partial voice state, so VoiceStateUpdate and
// VoiceServerUpdate are forwarded together once both have arrived.
type voiceHandshake struct {
	mu sync.Mutex

	hasState  bool
	channelID *snowflake.ID
	sessionID string

	hasServer bool
	token     string
	endpoint  string
}

type voicePayload struct {
	channelID *snowflake.ID
	sessionID string
	token     string
	endpoint  string
}

// setState stores the VoiceStateUpdate half. It returns the full payload and
// resets the handshake when the server half is already present.
func (h *voiceHandshake) setState(channelID *snowflake.ID, sessionID string) (voicePayload, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.hasState = true
	h.channelID = channelID
	h.sessionID = sessionID
	return h.completeLocked()
}

// setServer stores the VoiceServerUpdate half; see setState.
func (h *voiceHandshake) setServer(token, endpoint string) (voicePayload, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.hasServer = true
	h.token = token
	h.endpoint = endpoint
	return h.completeLocked()
}

func (h *voiceHandshake) completeLocked() (voicePayload, bool) {
	if !h.hasState || !h.hasServer {
		return voicePayload{}, false
	}

	payload := voicePayload{
		channelID: h.channelID,
		sessionID: h.sessionID,
		token:     h.token,
		endpoint:  h.endpoint,
	}
	h.hasState, h.channelID, h.sessionID = false, nil, ""
	h.hasServer, h.token, h.endpoint = false, "", ""
	return payload, true
}

// LavalinkConfig contains Lavalink connection configuration.
type LavalinkConfig struct {
	Address  string
	Password string
	Secure   bool
}

// LavalinkAdapter wraps DisGoLink. It joins voice channels and hands out one
// AudioDevice per guild, backed by that guild's Lavalink player.
type LavalinkAdapter struct {
	link    disgolink.Client
	session *discordgo.Session
	botID   snowflake.ID

	voiceMu    sync.Mutex
	handshakes map[snowflake.ID]*voiceHandshake
	connected  map[snowflake.ID][]chan struct{}

	handlesMu sync.Mutex
	handles   map[snowflake.ID]*lavalinkHandle
}

// NewLavalinkAdapter creates a new LavalinkAdapter and connects to the node.
func NewLavalinkAdapter(
	ctx context.Context,
	session *discordgo.Session,
	config LavalinkConfig,
) (*LavalinkAdapter, error) {
	botID, err := snowflake.Parse(session.State.User.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bot ID: %w", err)
	}

	adapter := &LavalinkAdapter{
		session:    session,
		botID:      botID,
		handshakes: make(map[snowflake.ID]*voiceHandshake),
		connected:  make(map[snowflake.ID][]chan struct{}),
		handles:    make(map[snowflake.ID]*lavalinkHandle),
	}

	adapter.link = disgolink.New(botID,
		disgolink.WithListenerFunc(adapter.onTrackStart),
		disgolink.WithListenerFunc(adapter.onTrackEnd),
		disgolink.WithListenerFunc(adapter.onTrackException),
		disgolink.WithListenerFunc(adapter.onTrackStuck),
		disgolink.WithListenerFunc(adapter.onWebSocketClosed),
	)

	node, err := adapter.link.AddNode(ctx, disgolink.NodeConfig{
		Name:     "main",
		Address:  config.Address,
		Password: config.Password,
		Secure:   config.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add Lavalink node: %w", err)
	}

	slog.Info("connected to Lavalink", "node", node.Config().Name, "address", config.Address)

	return adapter, nil
}

// Close disconnects from all Lavalink nodes.
func (c *LavalinkAdapter) Close() {
	c.link.Close()
}

// Device returns the audio device of the given guild.
func (c *LavalinkAdapter) Device(guildID snowflake.ID) ports.AudioDevice {
	return &lavalinkDevice{adapter: c, guildID: guildID}
}

// JoinChannel connects to a voice channel.
// It waits for both VoiceStateUpdate and VoiceServerUpdate events before returning.
func (c *LavalinkAdapter) JoinChannel(ctx context.Context, guildID, channelID snowflake.ID) error {
	connected := c.awaitVoice(guildID)
	defer c.stopAwaiting(guildID, connected)

	err := c.session.ChannelVoiceJoinManual(guildID.String(), channelID.String(), false, false)
	if err != nil {
		return fmt.Errorf("failed to join voice channel: %w", err)
	}

	select {
	case <-connected:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context cancelled while waiting for voice connection: %w", ctx.Err())
	case <-time.After(voiceConnectionTimeout):
		return fmt.Errorf("timeout waiting for voice connection")
	}
}

// LeaveChannel destroys the guild's player and disconnects from voice.
func (c *LavalinkAdapter) LeaveChannel(ctx context.Context, guildID snowflake.ID) error {
	if player := c.link.ExistingPlayer(guildID); player != nil {
		if err := player.Destroy(ctx); err != nil {
			slog.Warn("failed to destroy player", "guild", guildID, "error", err)
		}
	}

	err := c.session.ChannelVoiceJoinManual(guildID.String(), "", false, false)
	if err != nil {
		return fmt.Errorf("failed to leave voice channel: %w", err)
	}
	return nil
}

// OnVoiceServerUpdate handles Discord voice server updates.
// This must be called from the Discord event handler.
func (c *LavalinkAdapter) OnVoiceServerUpdate(event *discordgo.VoiceServerUpdate) {
	guildID, err := snowflake.Parse(event.GuildID)
	if err != nil {
		slog.Error("failed to parse guild ID in voice server update", "error", err)
		return
	}

	if payload, ok := c.handshake(guildID).setServer(event.Token, event.Endpoint); ok {
		c.forwardVoice(guildID, payload)
	}
}

// OnVoiceStateUpdate handles Discord voice state updates of the bot itself.
// This must be called from the Discord event handler.
func (c *LavalinkAdapter) OnVoiceStateUpdate(event *discordgo.VoiceStateUpdate) {
	if event.UserID != c.botID.String() {
		return
	}

	guildID, err := snowflake.Parse(event.GuildID)
	if err != nil {
		slog.Error("failed to parse guild ID in voice state update", "error", err)
		return
	}

	var channelID *snowflake.ID
	if event.ChannelID != "" {
		id, err := snowflake.Parse(event.ChannelID)
		if err != nil {
			slog.Error("failed to parse channel ID in voice state update", "error", err)
			return
		}
		channelID = &id
	}

	// A disconnect has no server half to wait for.
	if channelID == nil {
		c.link.OnVoiceStateUpdate(context.Background(), guildID, nil, event.SessionID)
		c.voiceMu.Lock()
		delete(c.handshakes, guildID)
		c.voiceMu.Unlock()
		return
	}

	if payload, ok := c.handshake(guildID).setState(channelID, event.SessionID); ok {
		c.forwardVoice(guildID, payload)
	}
}

func (c *LavalinkAdapter) handshake(guildID snowflake.ID) *voiceHandshake {
	c.voiceMu.Lock()
	defer c.voiceMu.Unlock()

	h, ok := c.handshakes[guildID]
	if !ok {
		h = &voiceHandshake{}
		c.handshakes[guildID] = h
	}
	return h
}

func (c *LavalinkAdapter) awaitVoice(guildID snowflake.ID) chan struct{} {
	c.voiceMu.Lock()
	defer c.voiceMu.Unlock()

	ch := make(chan struct{})
	c.connected[guildID] = append(c.connected[guildID], ch)
	return ch
}

func (c *LavalinkAdapter) stopAwaiting(guildID snowflake.ID, ch chan struct{}) {
	c.voiceMu.Lock()
	defer c.voiceMu.Unlock()

	waiters := c.connected[guildID]
	for i, w := range waiters {
		if w == ch {
			c.connected[guildID] = append(waiters[:i], waiters[i+1:]...)
			break
		}
	}
	if len(c.connected[guildID]) == 0 {
		delete(c.connected, guildID)
	}
}

func (c *LavalinkAdapter) forwardVoice(guildID snowflake.ID, payload voicePayload) {
	slog.Debug("forwarding voice connection to Lavalink",
		"guild", guildID,
		"channel", payload.channelID,
		"hasSessionID", payload.sessionID != "",
	)

	c.link.OnVoiceStateUpdate(context.Background(), guildID, payload.channelID, payload.sessionID)
	c.link.OnVoiceServerUpdate(context.Background(), guildID, payload.token, payload.endpoint)

	c.voiceMu.Lock()
	waiters := c.connected[guildID]
	delete(c.connected, guildID)
	c.voiceMu.Unlock()

	for _, ch := range waiters {
		close(ch)
	}
}

func (c *LavalinkAdapter) attach(h *lavalinkHandle) {
	c.handlesMu.Lock()
	defer c.handlesMu.Unlock()
	c.handles[h.guildID] = h
}

func (c *LavalinkAdapter) detach(h *lavalinkHandle) {
	c.handlesMu.Lock()
	defer c.handlesMu.Unlock()
	if c.handles[h.guildID] == h {
		delete(c.handles, h.guildID)
	}
}

func (c *LavalinkAdapter) current(guildID snowflake.ID) *lavalinkHandle {
	c.handlesMu.Lock()
	defer c.handlesMu.Unlock()
	return c.handles[guildID]
}

func (c *LavalinkAdapter) onTrackStart(player disgolink.Player, event lavalink.TrackStartEvent) {
	slog.Debug("track started", "guild", player.GuildID(), "track", event.Track.Info.Identifier)
}

func (c *LavalinkAdapter) onTrackEnd(player disgolink.Player, event lavalink.TrackEndEvent) {
	slog.Debug("track ended", "guild", player.GuildID(), "reason", event.Reason)

	h := c.current(player.GuildID())
	if h == nil || h.track.Encoded != event.Track.Encoded {
		return
	}

	err, final := endReasonResult(event.Reason, h.exception())
	if !final {
		return
	}
	c.detach(h)
	h.finish(err)
}

func (c *LavalinkAdapter) onTrackException(
	player disgolink.Player,
	event lavalink.TrackExceptionEvent,
) {
	slog.Warn("track exception", "guild", player.GuildID(), "error", event.Exception.Message)

	if h := c.current(player.GuildID()); h != nil && h.track.Encoded == event.Track.Encoded {
		h.setException(event.Exception.Message)
	}
}

func (c *LavalinkAdapter) onTrackStuck(player disgolink.Player, event lavalink.TrackStuckEvent) {
	slog.Warn("track stuck", "guild", player.GuildID(), "threshold", event.Threshold)
}

func (c *LavalinkAdapter) onWebSocketClosed(
	player disgolink.Player,
	event lavalink.WebSocketClosedEvent,
) {
	slog.Warn("voice websocket closed",
		"guild", player.GuildID(),
		"code", event.Code,
		"reason", event.Reason,
		"by_remote", event.ByRemote,
	)
}

// endReasonResult maps a track end to the handle's completion. final is false
// for ends the adapter causes itself (stop on release, replace on next load).
func endReasonResult(reason lavalink.TrackEndReason, exception string) (err error, final bool) {
	switch reason {
	case lavalink.TrackEndReasonFinished:
		return nil, true
	case lavalink.TrackEndReasonLoadFailed:
		cause := errors.New("track failed to load")
		if exception != "" {
			cause = fmt.Errorf("track failed to load: %s", exception)
		}
		return &domain.PlaybackDeviceError{Cause: cause}, true
	case lavalink.TrackEndReasonCleanup:
		return &domain.PlaybackDeviceError{Cause: errPlayerClosed, Unavailable: true}, true
	default:
		return nil, false
	}
}

// trackFromResult picks the playable track out of a load result.
func trackFromResult(identifier string, result *lavalink.LoadResult) (lavalink.Track, error) {
	switch data := result.Data.(type) {
	case lavalink.Track:
		return data, nil
	case lavalink.Search:
		if len(data) > 0 {
			return data[0], nil
		}
	case lavalink.Playlist:
		if len(data.Tracks) > 0 {
			return data.Tracks[0], nil
		}
	case lavalink.Exception:
		return lavalink.Track{}, fmt.Errorf("failed to load %s: %s", identifier, data.Message)
	}
	return lavalink.Track{}, fmt.Errorf("no audio found at %s", identifier)
}

// lavalinkDevice is the AudioDevice of one guild.
type lavalinkDevice struct {
	adapter *LavalinkAdapter
	guildID snowflake.ID
}

// Load resolves the source on the best node. Nothing is sent to the player
// until Play.
func (d *lavalinkDevice) Load(ctx context.Context, source ports.AudioSource) (ports.AudioHandle, error) {
	node := d.adapter.link.BestNode()
	if node == nil {
		return nil, &domain.PlaybackDeviceError{Cause: errNoNode, Unavailable: true}
	}

	result, err := node.LoadTracks(ctx, source.URI)
	if err != nil {
		return nil, &domain.PlaybackDeviceError{Cause: fmt.Errorf("failed to load tracks: %w", err)}
	}

	track, err := trackFromResult(source.URI, result)
	if err != nil {
		return nil, &domain.PlaybackDeviceError{Cause: err}
	}

	return &lavalinkHandle{
		adapter: d.adapter,
		guildID: d.guildID,
		track:   track,
		speed:   domain.DefaultSpeed,
		done:    make(chan error, 1),
	}, nil
}

// lavalinkHandle is one loaded track on a guild's player.
type lavalinkHandle struct {
	adapter *LavalinkAdapter
	guildID snowflake.ID
	track   lavalink.Track
	done    chan error
	once    sync.Once

	mu        sync.Mutex
	started   bool
	speed     float64
	lastError string
}

func (h *lavalinkHandle) player() disgolink.Player {
	return h.adapter.link.Player(h.guildID)
}

// Play starts the track with the speed set so far in a single player update.
func (h *lavalinkHandle) Play(ctx context.Context) error {
	h.mu.Lock()
	h.started = true
	speed := h.speed
	h.mu.Unlock()

	h.adapter.attach(h)

	err := h.player().Update(ctx,
		lavalink.WithEncodedTrack(h.track.Encoded),
		lavalink.WithPaused(false),
		lavalink.WithFilters(speedFilters(speed)),
	)
	if err != nil {
		h.adapter.detach(h)
		return &domain.PlaybackDeviceError{Cause: fmt.Errorf("failed to play track: %w", err)}
	}
	return nil
}

// Pause pauses the current playback.
func (h *lavalinkHandle) Pause(ctx context.Context) error {
	if err := h.player().Update(ctx, lavalink.WithPaused(true)); err != nil {
		return &domain.PlaybackDeviceError{Cause: fmt.Errorf("failed to pause playback: %w", err)}
	}
	return nil
}

// Resume resumes the current playback.
func (h *lavalinkHandle) Resume(ctx context.Context) error {
	if err := h.player().Update(ctx, lavalink.WithPaused(false)); err != nil {
		return &domain.PlaybackDeviceError{Cause: fmt.Errorf("failed to resume playback: %w", err)}
	}
	return nil
}

// SetSpeed applies a timescale filter. Before Play it is only recorded.
func (h *lavalinkHandle) SetSpeed(ctx context.Context, speed float64) error {
	h.mu.Lock()
	h.speed = speed
	started := h.started
	h.mu.Unlock()

	if !started {
		return nil
	}
	if err := h.player().Update(ctx, lavalink.WithFilters(speedFilters(speed))); err != nil {
		return &domain.PlaybackDeviceError{Cause: fmt.Errorf("failed to set speed: %w", err)}
	}
	return nil
}

// Done reports the end of the track: nil when it finished, an error otherwise.
func (h *lavalinkHandle) Done() <-chan error {
	return h.done
}

// Release stops the track if it was started. The handle is unusable afterwards.
func (h *lavalinkHandle) Release(ctx context.Context) error {
	h.adapter.detach(h)

	h.mu.Lock()
	started := h.started
	h.mu.Unlock()

	if !started {
		return nil
	}
	if err := h.player().Update(ctx, lavalink.WithNullTrack()); err != nil {
		return fmt.Errorf("failed to stop playback: %w", err)
	}
	return nil
}

func (h *lavalinkHandle) finish(err error) {
	h.once.Do(func() {
		h.done <- err
	})
}

func (h *lavalinkHandle) setException(message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastError = message
}

func (h *lavalinkHandle) exception() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastError
}

func speedFilters(speed float64) lavalink.Filters {
	return lavalink.Filters{
		Timescale: &lavalink.Timescale{Speed: speed, Pitch: 1, Rate: 1},
	}
}

// Ensure LavalinkAdapter and its devices implement port interfaces.
var (
	_ ports.VoiceConnection = (*LavalinkAdapter)(nil)
	_ ports.AudioDevice     = (*lavalinkDevice)(nil)
	_ ports.AudioHandle     = (*lavalinkHandle)(nil)
)
