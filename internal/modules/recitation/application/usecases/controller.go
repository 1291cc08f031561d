package usecases

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sglre6355/recitebot/internal/modules/recitation/application/ports"
	"github.com/sglre6355/recitebot/internal/modules/recitation/domain"
)

// PreparedPlayback is a validated request expanded into its queue.
type PreparedPlayback struct {
	Queue       []domain.QueueItem
	RangeRepeat domain.Repeat
	ReciterID   string
	Speed       float64
}

// PlaybackController is the public entry point for one guild's playback.
// Calls are serialized against its single sequencer.
type PlaybackController struct {
	resolver       *domain.VerseRangeResolver
	builder        *domain.QueueBuilder
	reciters       ports.ReciterRegistry
	sequencer      *PlaybackSequencer
	defaultReciter string

	mu sync.Mutex

	outcomeMu   sync.Mutex
	lastOutcome *domain.SessionEndedEvent
}

// NewPlaybackController creates a new PlaybackController around sequencer.
func NewPlaybackController(
	builder *domain.QueueBuilder,
	reciters ports.ReciterRegistry,
	sequencer *PlaybackSequencer,
	defaultReciter string,
) *PlaybackController {
	c := &PlaybackController{
		resolver:       domain.NewVerseRangeResolver(),
		builder:        builder,
		reciters:       reciters,
		sequencer:      sequencer,
		defaultReciter: defaultReciter,
	}
	sequencer.OnSessionEnded(c.recordOutcome)
	return c
}

// Prepare validates req and expands it into a queue without touching playback.
// Errors are *domain.InvalidRangeError, *domain.EmptyQueueError,
// domain.ErrUnknownReciter, domain.ErrInvalidRepeat or domain.ErrInvalidSpeed.
func (c *PlaybackController) Prepare(req domain.PlaybackRequest) (PreparedPlayback, error) {
	if req.PerVerseRepeat == 0 {
		req.PerVerseRepeat = domain.RepeatOnce
	}
	if req.RangeRepeat == 0 {
		req.RangeRepeat = domain.RepeatOnce
	}
	if req.ReciterID == "" {
		req.ReciterID = c.defaultReciter
	}

	if err := req.Validate(); err != nil {
		return PreparedPlayback{}, err
	}
	if _, ok := c.reciters.Get(req.ReciterID); !ok {
		return PreparedPlayback{}, fmt.Errorf("%w: %q", domain.ErrUnknownReciter, req.ReciterID)
	}

	verses, err := c.resolver.Resolve(req)
	if err != nil {
		return PreparedPlayback{}, err
	}
	if len(verses) == 0 {
		return PreparedPlayback{}, &domain.EmptyQueueError{Mode: req.Mode}
	}

	queue := c.builder.Build(verses, req.PerVerseRepeat, domain.DefaultPreambleRule)
	if len(queue) == 0 {
		return PreparedPlayback{}, &domain.EmptyQueueError{Mode: req.Mode}
	}

	return PreparedPlayback{
		Queue:       queue,
		RangeRepeat: req.RangeRepeat,
		ReciterID:   req.ReciterID,
		Speed:       req.EffectiveSpeed(),
	}, nil
}

// Play tears down any existing session, then resolves, builds and starts a
// new one. It returns once playback is launched; request errors are returned
// before any audio I/O happens.
func (c *PlaybackController) Play(req domain.PlaybackRequest) (domain.SessionSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.sequencer.Stop(); err != nil && !errors.Is(err, ErrNoSession) {
		return domain.SessionSnapshot{}, err
	}

	prepared, err := c.Prepare(req)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	return c.startLocked(prepared)
}

// Start replaces any existing session with a prepared one.
func (c *PlaybackController) Start(prepared PreparedPlayback) (domain.SessionSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startLocked(prepared)
}

func (c *PlaybackController) startLocked(prepared PreparedPlayback) (domain.SessionSnapshot, error) {
	c.outcomeMu.Lock()
	c.lastOutcome = nil
	c.outcomeMu.Unlock()

	return c.sequencer.Start(prepared.Queue, prepared.RangeRepeat, prepared.ReciterID, prepared.Speed)
}

// Pause pauses playback. No-op without a live session.
func (c *PlaybackController) Pause(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ignoreNoSession(c.sequencer.Pause(ctx))
}

// Resume resumes paused playback. No-op without a live session.
func (c *PlaybackController) Resume(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ignoreNoSession(c.sequencer.Resume(ctx))
}

// Stop ends the session. No-op without a live session.
func (c *PlaybackController) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ignoreNoSession(c.sequencer.Stop())
}

// SkipNext moves to the next queue item. No-op without a live session.
func (c *PlaybackController) SkipNext() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ignoreNoSession(c.sequencer.SkipNext())
}

// SkipPrevious moves to the previous queue item. No-op without a live session.
func (c *PlaybackController) SkipPrevious() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ignoreNoSession(c.sequencer.SkipPrevious())
}

// SetSpeed changes the playback speed. No-op without a live session.
func (c *PlaybackController) SetSpeed(ctx context.Context, speed float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ignoreNoSession(c.sequencer.SetSpeed(ctx, speed))
}

// Status returns a snapshot of the current or last session.
func (c *PlaybackController) Status() (domain.SessionSnapshot, bool) {
	return c.sequencer.Snapshot()
}

// IsActive reports whether a session is live.
func (c *PlaybackController) IsActive() bool {
	snapshot, ok := c.sequencer.Snapshot()
	return ok && !snapshot.State.IsTerminal()
}

// LastOutcome returns how the most recent session ended, or nil if it has
// not ended yet.
func (c *PlaybackController) LastOutcome() *domain.SessionEndedEvent {
	c.outcomeMu.Lock()
	defer c.outcomeMu.Unlock()
	if c.lastOutcome == nil {
		return nil
	}
	outcome := *c.lastOutcome
	return &outcome
}

// Shutdown stops the session and waits for the sequencer to go idle.
func (c *PlaybackController) Shutdown() {
	_ = c.Stop()
	c.sequencer.Wait()
}

// recordOutcome keeps the end event of the current session only; a session
// replaced by Start ends after its successor is installed.
func (c *PlaybackController) recordOutcome(event domain.SessionEndedEvent) {
	if current, ok := c.sequencer.Snapshot(); ok && current.SessionID != event.SessionID {
		return
	}

	c.outcomeMu.Lock()
	defer c.outcomeMu.Unlock()
	c.lastOutcome = &event
}

func ignoreNoSession(err error) error {
	if errors.Is(err, ErrNoSession) {
		return nil
	}
	return err
}
