package usecases

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/recitebot/internal/modules/recitation/application/ports"
	"github.com/sglre6355/recitebot/internal/modules/recitation/domain"
)

// releaseTimeout bounds how long releasing an audio handle may take.
const releaseTimeout = 5 * time.Second

// errStale is returned inside the item loop when the run it belongs to was
// cancelled or superseded.
var errStale = errors.New("sequencer run superseded")

// step is the work handed from the session to the item loop.
type step struct {
	item      domain.QueueItem
	cursor    int
	reciterID string
}

// PlaybackSequencer drives one PlaybackSession through its queue: chapter
// navigation, verse activation, audio resolution and playback, looping.
//
// Every run of the item loop is tagged with a generation number. Any
// transition that abandons a run (stop, skip, a new session) bumps the
// generation under the lock, so a late result from a superseded run is
// discarded instead of touching the session. Runs are serialized: a new run
// waits for the previous one to exit before acquiring audio.
type PlaybackSequencer struct {
	guildID   snowflake.ID
	resolver  AudioResolver
	device    ports.AudioDevice
	viewer    ports.ContentViewerBridge
	publisher ports.EventPublisher
	retry     RetryPolicy

	mu         sync.Mutex
	onEnded    []func(domain.SessionEndedEvent)
	session    *domain.PlaybackSession
	handle     ports.AudioHandle
	generation uint64
	cancel     context.CancelFunc
	runDone    chan struct{}
	wg         sync.WaitGroup
}

// NewPlaybackSequencer creates a new PlaybackSequencer for a guild.
// publisher may be nil.
func NewPlaybackSequencer(
	guildID snowflake.ID,
	resolver AudioResolver,
	device ports.AudioDevice,
	viewer ports.ContentViewerBridge,
	publisher ports.EventPublisher,
	retry RetryPolicy,
) *PlaybackSequencer {
	return &PlaybackSequencer{
		guildID:   guildID,
		resolver:  resolver,
		device:    device,
		viewer:    viewer,
		publisher: publisher,
		retry:     retry,
	}
}

// OnSessionEnded adds fn to the observers called whenever a session reaches
// a terminal state. Observers run in registration order and never with the
// sequencer lock held.
func (s *PlaybackSequencer) OnSessionEnded(fn func(domain.SessionEndedEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEnded = append(s.onEnded, fn)
}

// Start stops any current session and begins playing queue.
// It returns as soon as the item loop is launched.
func (s *PlaybackSequencer) Start(
	queue []domain.QueueItem,
	rangeRepeat domain.Repeat,
	reciterID string,
	speed float64,
) (domain.SessionSnapshot, error) {
	if len(queue) == 0 {
		return domain.SessionSnapshot{}, domain.ErrEmptyQueue
	}

	s.mu.Lock()
	ended := s.teardownLocked(domain.EndStopped)

	session := domain.NewPlaybackSession(queue, rangeRepeat, reciterID, speed)
	session.Start()
	s.session = session
	s.launchLocked()

	snapshot := session.Snapshot()
	s.mu.Unlock()

	if ended != nil {
		s.emitEnded(*ended)
	}

	slog.Info("recitation session started",
		"guild", s.guildID,
		"session", snapshot.SessionID,
		"items", snapshot.QueueLength,
		"range_repeat", rangeRepeat.String(),
		"reciter", reciterID,
	)

	if s.publisher != nil {
		s.publisher.PublishSessionStarted(domain.SessionStartedEvent{
			GuildID:     s.guildID,
			SessionID:   snapshot.SessionID,
			QueueLength: snapshot.QueueLength,
			ReciterID:   reciterID,
			RangeRepeat: rangeRepeat,
		})
	}

	return snapshot, nil
}

// Stop ends the current session. After Stop returns, the active audio handle
// is released and no further item is activated or played.
// Returns ErrNoSession if no session is live.
func (s *PlaybackSequencer) Stop() error {
	s.mu.Lock()
	ended := s.teardownLocked(domain.EndStopped)
	s.mu.Unlock()

	if ended == nil {
		return ErrNoSession
	}
	s.emitEnded(*ended)
	return nil
}

// Pause pauses the active audio handle, keeping the cursor, loop counter
// and playback position.
func (s *PlaybackSequencer) Pause(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isLiveLocked() {
		return ErrNoSession
	}
	if s.session.State() != domain.StatePlaying || s.handle == nil {
		return ErrNotPlaying
	}

	if err := s.handle.Pause(ctx); err != nil {
		return asDeviceError(err)
	}
	s.session.SetState(domain.StatePaused)
	return nil
}

// Resume continues a paused handle without re-resolving its source.
func (s *PlaybackSequencer) Resume(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isLiveLocked() {
		return ErrNoSession
	}
	if s.session.State() != domain.StatePaused || s.handle == nil {
		return ErrNotPaused
	}

	if err := s.handle.Resume(ctx); err != nil {
		return asDeviceError(err)
	}
	s.session.SetState(domain.StatePlaying)
	return nil
}

// SetSpeed applies speed to the active handle, if any, and to every
// following item.
func (s *PlaybackSequencer) SetSpeed(ctx context.Context, speed float64) error {
	if err := domain.ValidateSpeed(speed); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isLiveLocked() {
		return ErrNoSession
	}

	s.session.SetSpeed(speed)
	if s.handle != nil {
		if err := s.handle.SetSpeed(ctx, speed); err != nil {
			return asDeviceError(err)
		}
	}
	return nil
}

// SkipNext abandons the current item and continues at the next one.
// It is a no-op on the last item.
func (s *PlaybackSequencer) SkipNext() error {
	return s.skip(1)
}

// SkipPrevious abandons the current item and continues at the previous one.
// It is a no-op on the first item.
func (s *PlaybackSequencer) SkipPrevious() error {
	return s.skip(-1)
}

func (s *PlaybackSequencer) skip(delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isLiveLocked() {
		return ErrNoSession
	}

	target := s.session.Cursor() + delta
	if target < 0 || target >= s.session.Len() {
		return nil
	}

	s.cancelRunLocked()
	s.session.Seek(target)
	s.session.SetState(domain.StateLoading)
	s.launchLocked()

	slog.Debug("skipped to queue item",
		"guild", s.guildID,
		"cursor", target,
	)
	return nil
}

// Snapshot returns the state of the current or last session.
// ok is false if no session was ever started.
func (s *PlaybackSequencer) Snapshot() (snapshot domain.SessionSnapshot, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return domain.SessionSnapshot{}, false
	}
	return s.session.Snapshot(), true
}

// Wait blocks until every item loop launched so far has exited.
func (s *PlaybackSequencer) Wait() {
	s.wg.Wait()
}

func (s *PlaybackSequencer) isLiveLocked() bool {
	return s.session != nil && !s.session.State().IsTerminal()
}

func (s *PlaybackSequencer) isCurrentLocked(gen uint64) bool {
	return gen == s.generation && s.isLiveLocked()
}

// launchLocked starts a new item loop at the session's cursor.
func (s *PlaybackSequencer) launchLocked() {
	s.generation++
	gen := s.generation

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	prev := s.runDone
	done := make(chan struct{})
	s.runDone = done

	s.wg.Add(1)
	go s.run(ctx, gen, prev, done)
}

// cancelRunLocked abandons the running item loop and releases its audio.
func (s *PlaybackSequencer) cancelRunLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.generation++
	s.releaseHandleLocked()
}

// releaseHandleLocked releases the active audio handle, if any.
func (s *PlaybackSequencer) releaseHandleLocked() {
	if s.handle == nil {
		return
	}
	handle := s.handle
	s.handle = nil
	releaseHandle(s.guildID, handle)
}

func releaseHandle(guildID snowflake.ID, handle ports.AudioHandle) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()

	if err := handle.Release(ctx); err != nil {
		slog.Warn("failed to release audio handle",
			"guild", guildID,
			"error", err,
		)
	}
}

// teardownLocked ends a live session for reason and returns the event to
// emit once the lock is released. Returns nil if nothing was live.
func (s *PlaybackSequencer) teardownLocked(reason domain.EndReason) *domain.SessionEndedEvent {
	if !s.isLiveLocked() {
		return nil
	}
	s.cancelRunLocked()
	event := s.finishLocked(reason)
	return &event
}

func (s *PlaybackSequencer) finishLocked(reason domain.EndReason) domain.SessionEndedEvent {
	s.session.Finish(reason)
	snapshot := s.session.Snapshot()

	return domain.SessionEndedEvent{
		GuildID:       s.guildID,
		SessionID:     snapshot.SessionID,
		Reason:        reason,
		LoopIteration: snapshot.LoopIteration,
		Played:        snapshot.Played,
		Failed:        snapshot.Failed,
	}
}

func (s *PlaybackSequencer) emitEnded(event domain.SessionEndedEvent) {
	slog.Info("recitation session ended",
		"guild", event.GuildID,
		"session", event.SessionID,
		"reason", event.Reason,
		"loops", event.LoopIteration,
		"played", event.Played,
		"failed", event.Failed,
	)

	if s.publisher != nil {
		s.publisher.PublishSessionEnded(event)
	}

	s.mu.Lock()
	observers := slices.Clone(s.onEnded)
	s.mu.Unlock()
	for _, fn := range observers {
		fn(event)
	}
}

// run is the item loop of one generation.
func (s *PlaybackSequencer) run(ctx context.Context, gen uint64, prev <-chan struct{}, done chan<- struct{}) {
	defer s.wg.Done()
	defer close(done)

	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			return
		}
	}

	for {
		next, ended, ok := s.next(gen)
		if ended != nil {
			s.emitEnded(*ended)
		}
		if !ok {
			return
		}

		err := s.playItem(ctx, gen, next)
		if errors.Is(err, errStale) || ctx.Err() != nil {
			return
		}

		if err != nil {
			if !s.failItem(gen, next, err) {
				return
			}
			continue
		}

		if !s.completeItem(gen) {
			return
		}
	}
}

// next performs loop accounting and returns the item to play.
// ok is false when the run must exit; ended is set if the session finished.
func (s *PlaybackSequencer) next(gen uint64) (next step, ended *domain.SessionEndedEvent, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isCurrentLocked(gen) {
		return step{}, nil, false
	}

	if s.session.IsAtEnd() && !s.session.CompleteIteration() {
		event := s.finishLocked(domain.EndCompleted)
		s.cancelRunLocked()
		return step{}, &event, false
	}

	if s.session.FailureCapReached() {
		slog.Warn("too many consecutive failures, ending session",
			"guild", s.guildID,
			"items", s.session.Len(),
			"cap", s.session.FailureCap(),
		)
		event := s.finishLocked(domain.EndFailed)
		s.cancelRunLocked()
		return step{}, &event, false
	}

	s.session.SetState(domain.StateLoading)
	return step{
		item:      *s.session.Current(),
		cursor:    s.session.Cursor(),
		reciterID: s.session.ReciterID(),
	}, nil, true
}

// playItem runs one queue item to completion. A nil error means the audio
// finished naturally.
func (s *PlaybackSequencer) playItem(ctx context.Context, gen uint64, next step) error {
	item := next.item

	if chapter := item.Chapter(); chapter != s.viewer.DisplayedChapter() {
		err := s.retry.Do(ctx, "chapter load", func(ctx context.Context) error {
			_, err := s.viewer.LoadChapter(ctx, chapter)
			return err
		})
		if ctx.Err() != nil {
			return errStale
		}
		if err != nil {
			return &domain.ChapterLoadError{Chapter: chapter, Cause: err}
		}
	}

	if err := s.activate(gen, next); err != nil {
		return err
	}

	source, err := s.resolver.Resolve(ctx, item.Verse, next.reciterID)
	if ctx.Err() != nil {
		return errStale
	}
	if err != nil {
		return err
	}

	handle, err := s.device.Load(ctx, source)
	if err != nil {
		if ctx.Err() != nil {
			return errStale
		}
		return asDeviceError(err)
	}

	if err := s.startHandle(ctx, gen, handle); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return errStale
	case err := <-handle.Done():
		if err != nil {
			return asDeviceError(err)
		}
		return nil
	}
}

// activate notifies the content viewer of the item about to play.
func (s *PlaybackSequencer) activate(gen uint64, next step) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isCurrentLocked(gen) {
		return errStale
	}

	s.viewer.OnVerseActivated(next.item.Verse)

	if s.publisher != nil {
		s.publisher.PublishVerseActivated(domain.VerseActivatedEvent{
			GuildID:       s.guildID,
			SessionID:     s.session.ID(),
			Item:          next.item,
			Cursor:        next.cursor,
			QueueLength:   s.session.Len(),
			LoopIteration: s.session.LoopIteration(),
			RangeRepeat:   s.session.RangeRepeat(),
			ReciterID:     next.reciterID,
		})
	}
	return nil
}

// startHandle installs handle as the active one and starts it.
func (s *PlaybackSequencer) startHandle(ctx context.Context, gen uint64, handle ports.AudioHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isCurrentLocked(gen) {
		releaseHandle(s.guildID, handle)
		return errStale
	}

	s.handle = handle

	if speed := s.session.Speed(); speed != domain.DefaultSpeed {
		if err := handle.SetSpeed(ctx, speed); err != nil {
			slog.Warn("failed to apply playback speed",
				"guild", s.guildID,
				"speed", speed,
				"error", err,
			)
		}
	}

	if err := handle.Play(ctx); err != nil {
		s.releaseHandleLocked()
		return asDeviceError(err)
	}

	s.session.SetState(domain.StatePlaying)
	return nil
}

func (s *PlaybackSequencer) completeItem(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isCurrentLocked(gen) {
		return false
	}

	s.releaseHandleLocked()
	s.session.CompleteItem()
	return true
}

// failItem records a per-item failure. It returns false if the session
// cannot continue.
func (s *PlaybackSequencer) failItem(gen uint64, next step, err error) bool {
	s.mu.Lock()

	if !s.isCurrentLocked(gen) {
		s.mu.Unlock()
		return false
	}

	s.releaseHandleLocked()

	slog.Warn("skipping queue item",
		"guild", s.guildID,
		"cursor", next.cursor,
		"verse", next.item.Verse.String(),
		"preamble", next.item.IsPreamble,
		"error", err,
	)

	if s.publisher != nil {
		s.publisher.PublishItemFailed(domain.ItemFailedEvent{
			GuildID:   s.guildID,
			SessionID: s.session.ID(),
			Item:      next.item,
			Cursor:    next.cursor,
			Err:       err,
		})
	}

	if errors.Is(err, domain.ErrDeviceUnavailable) {
		event := s.finishLocked(domain.EndDeviceUnavailable)
		s.cancelRunLocked()
		s.mu.Unlock()
		s.emitEnded(event)
		return false
	}

	s.session.FailItem()
	s.mu.Unlock()
	return true
}

// asDeviceError wraps err as a *domain.PlaybackDeviceError unless it already is one.
func asDeviceError(err error) error {
	var deviceErr *domain.PlaybackDeviceError
	if errors.As(err, &deviceErr) {
		return err
	}
	return &domain.PlaybackDeviceError{Cause: err}
}
