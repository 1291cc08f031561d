package usecases

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/recitebot/internal/modules/recitation/application/ports"
	"github.com/sglre6355/recitebot/internal/modules/recitation/domain"
)

const testGuildID = snowflake.ID(1)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// --- audio device ---

// fakeDevice is a test double for ports.AudioDevice. It tracks how many
// handles are alive to check that at most one exists at a time.
type fakeDevice struct {
	mu           sync.Mutex
	autoComplete bool
	loadErr      func(source ports.AudioSource) error
	handles      []*fakeHandle
	alive        int
	overlapped   bool
}

func newFakeDevice(autoComplete bool) *fakeDevice {
	return &fakeDevice{autoComplete: autoComplete}
}

func (d *fakeDevice) Load(_ context.Context, source ports.AudioSource) (ports.AudioHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.loadErr != nil {
		if err := d.loadErr(source); err != nil {
			return nil, err
		}
	}

	if d.alive > 0 {
		d.overlapped = true
	}
	d.alive++

	h := &fakeHandle{device: d, source: source, done: make(chan error, 1)}
	d.handles = append(d.handles, h)
	return h, nil
}

func (d *fakeDevice) loadCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.handles)
}

func (d *fakeDevice) handle(i int) *fakeHandle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handles[i]
}

func (d *fakeDevice) aliveCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.alive
}

func (d *fakeDevice) hasOverlapped() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.overlapped
}

func (d *fakeDevice) sources() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	result := make([]string, len(d.handles))
	for i, h := range d.handles {
		result[i] = h.source.URI
	}
	return result
}

// fakeHandle is a test double for ports.AudioHandle.
type fakeHandle struct {
	device *fakeDevice
	source ports.AudioSource
	done   chan error

	mu       sync.Mutex
	playing  bool
	paused   bool
	speed    float64
	released bool
}

func (h *fakeHandle) Play(context.Context) error {
	h.mu.Lock()
	h.playing = true
	h.mu.Unlock()

	if h.device.autoComplete {
		h.finish(nil)
	}
	return nil
}

func (h *fakeHandle) Pause(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.paused = true
	return nil
}

func (h *fakeHandle) Resume(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.paused = false
	return nil
}

func (h *fakeHandle) SetSpeed(_ context.Context, speed float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.speed = speed
	return nil
}

func (h *fakeHandle) Done() <-chan error {
	return h.done
}

func (h *fakeHandle) Release(context.Context) error {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return nil
	}
	h.released = true
	h.playing = false
	h.mu.Unlock()

	h.device.mu.Lock()
	h.device.alive--
	h.device.mu.Unlock()
	return nil
}

// finish simulates the end of playback.
func (h *fakeHandle) finish(err error) {
	select {
	case h.done <- err:
	default:
	}
}

func (h *fakeHandle) isPlaying() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.playing
}

func (h *fakeHandle) isPaused() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.paused
}

func (h *fakeHandle) isReleased() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

func (h *fakeHandle) currentSpeed() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.speed
}

// --- content viewer ---

// fakeViewer is a test double for ports.ContentViewerBridge. It records
// loads and activations in one ordered log.
type fakeViewer struct {
	mu        sync.Mutex
	displayed int
	log       []string
	loads     []int
	activated []domain.VerseRef
	loadErr   func(chapter int) error
	block     chan struct{}
}

func newFakeViewer() *fakeViewer {
	return &fakeViewer{}
}

func (v *fakeViewer) LoadChapter(ctx context.Context, chapter int) (*ports.VerseList, error) {
	v.mu.Lock()
	v.loads = append(v.loads, chapter)
	v.log = append(v.log, fmt.Sprintf("load %d", chapter))
	block := v.block
	loadErr := v.loadErr
	v.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if loadErr != nil {
		if err := loadErr(chapter); err != nil {
			return nil, err
		}
	}

	v.mu.Lock()
	v.displayed = chapter
	v.mu.Unlock()
	return &ports.VerseList{Chapter: chapter}, nil
}

func (v *fakeViewer) OnVerseActivated(verse domain.VerseRef) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.activated = append(v.activated, verse)
	v.log = append(v.log, "activate "+verse.String())
}

func (v *fakeViewer) DisplayedChapter() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.displayed
}

func (v *fakeViewer) getLoads() []int {
	v.mu.Lock()
	defer v.mu.Unlock()
	result := make([]int, len(v.loads))
	copy(result, v.loads)
	return result
}

func (v *fakeViewer) getActivated() []domain.VerseRef {
	v.mu.Lock()
	defer v.mu.Unlock()
	result := make([]domain.VerseRef, len(v.activated))
	copy(result, v.activated)
	return result
}

func (v *fakeViewer) getLog() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	result := make([]string, len(v.log))
	copy(result, v.log)
	return result
}

// --- audio resolution ---

// fakeResolver is a test double for AudioResolver.
type fakeResolver struct {
	mu    sync.Mutex
	calls []domain.VerseRef
	err   func(verse domain.VerseRef) error
	block chan struct{}
}

func (r *fakeResolver) Resolve(
	ctx context.Context,
	verse domain.VerseRef,
	reciterID string,
) (ports.AudioSource, error) {
	r.mu.Lock()
	r.calls = append(r.calls, verse)
	block := r.block
	r.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ports.AudioSource{}, ctx.Err()
		}
	}

	if r.err != nil {
		if err := r.err(verse); err != nil {
			return ports.AudioSource{}, err
		}
	}
	return ports.AudioSource{
		URI:    fmt.Sprintf("%s/%d", reciterID, verse.GlobalNumber),
		Origin: ports.OriginPrimary,
	}, nil
}

func (r *fakeResolver) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type fakePrimary struct {
	mu    sync.Mutex
	calls int
	url   func(globalNumber int, reciterID string) (string, error)
}

func (p *fakePrimary) AudioURL(_ context.Context, globalNumber int, reciterID string) (string, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return p.url(globalNumber, reciterID)
}

func (p *fakePrimary) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fakeFallback struct {
	err error
}

func (f *fakeFallback) AudioURL(globalNumber int, reciterID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("https://cdn.test/%s/%d.mp3", reciterID, globalNumber), nil
}

type fakeRecordings struct {
	files map[string]string
	err   error
}

func (f *fakeRecordings) Lookup(_ context.Context, chapter, verse int) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	locator, ok := f.files[fmt.Sprintf("%d:%d", chapter, verse)]
	return locator, ok, nil
}

// --- events ---

// fakePublisher is a test double for ports.EventPublisher.
type fakePublisher struct {
	mu        sync.Mutex
	started   []domain.SessionStartedEvent
	activated []domain.VerseActivatedEvent
	failed    []domain.ItemFailedEvent
	ended     []domain.SessionEndedEvent
}

func (p *fakePublisher) PublishSessionStarted(event domain.SessionStartedEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = append(p.started, event)
}

func (p *fakePublisher) PublishVerseActivated(event domain.VerseActivatedEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activated = append(p.activated, event)
}

func (p *fakePublisher) PublishItemFailed(event domain.ItemFailedEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed = append(p.failed, event)
}

func (p *fakePublisher) PublishSessionEnded(event domain.SessionEndedEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ended = append(p.ended, event)
}

func (p *fakePublisher) getFailed() []domain.ItemFailedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	result := make([]domain.ItemFailedEvent, len(p.failed))
	copy(result, p.failed)
	return result
}

// --- registry and repositories ---

type fakeRegistry struct {
	reciters []domain.Reciter
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{reciters: []domain.Reciter{
		{ID: "ar.alafasy", DisplayName: "Mishary Alafasy"},
		{ID: "ar.husary", DisplayName: "Mahmoud Khalil Al-Husary"},
		{ID: domain.UserRecordingsReciterID, DisplayName: "My recordings"},
	}}
}

func (r *fakeRegistry) List() []domain.Reciter {
	return r.reciters
}

func (r *fakeRegistry) Get(id string) (domain.Reciter, bool) {
	for _, reciter := range r.reciters {
		if reciter.ID == id {
			return reciter, true
		}
	}
	return domain.Reciter{}, false
}

type fakeControllerRepository struct {
	mu          sync.Mutex
	controllers map[snowflake.ID]*PlaybackController
}

func newFakeControllerRepository() *fakeControllerRepository {
	return &fakeControllerRepository{controllers: make(map[snowflake.ID]*PlaybackController)}
}

func (r *fakeControllerRepository) Get(guildID snowflake.ID) *PlaybackController {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.controllers[guildID]
}

func (r *fakeControllerRepository) Save(guildID snowflake.ID, controller *PlaybackController) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.controllers[guildID] = controller
}

func (r *fakeControllerRepository) Delete(guildID snowflake.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.controllers, guildID)
}

func (r *fakeControllerRepository) All() []*PlaybackController {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*PlaybackController, 0, len(r.controllers))
	for _, c := range r.controllers {
		result = append(result, c)
	}
	return result
}

type fakeStateRepository struct {
	mu     sync.Mutex
	states map[snowflake.ID]*domain.GuildState
}

func newFakeStateRepository() *fakeStateRepository {
	return &fakeStateRepository{states: make(map[snowflake.ID]*domain.GuildState)}
}

func (r *fakeStateRepository) Get(guildID snowflake.ID) *domain.GuildState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[guildID]
}

func (r *fakeStateRepository) Save(state *domain.GuildState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[state.GuildID()] = state
}

func (r *fakeStateRepository) Delete(guildID snowflake.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, guildID)
}

// --- voice ---

type fakeVoiceConnection struct {
	mu       sync.Mutex
	joined   []snowflake.ID
	left     int
	joinErr  error
	leaveErr error
}

func (v *fakeVoiceConnection) JoinChannel(_ context.Context, _, channelID snowflake.ID) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.joinErr != nil {
		return v.joinErr
	}
	v.joined = append(v.joined, channelID)
	return nil
}

func (v *fakeVoiceConnection) LeaveChannel(context.Context, snowflake.ID) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.leaveErr != nil {
		return v.leaveErr
	}
	v.left++
	return nil
}

type fakeVoiceState struct {
	channels map[snowflake.ID]snowflake.ID
}

func (v *fakeVoiceState) GetUserVoiceChannel(_, userID snowflake.ID) (*snowflake.ID, error) {
	channelID, ok := v.channels[userID]
	if !ok {
		return nil, nil
	}
	return &channelID, nil
}

// --- sequencer fixture ---

type sequencerFixture struct {
	device    *fakeDevice
	viewer    *fakeViewer
	resolver  *fakeResolver
	publisher *fakePublisher
	sequencer *PlaybackSequencer
	ended     chan domain.SessionEndedEvent
}

func newSequencerFixture(t *testing.T, autoComplete bool) *sequencerFixture {
	t.Helper()

	f := &sequencerFixture{
		device:    newFakeDevice(autoComplete),
		viewer:    newFakeViewer(),
		resolver:  &fakeResolver{},
		publisher: &fakePublisher{},
		ended:     make(chan domain.SessionEndedEvent, 8),
	}
	f.sequencer = NewPlaybackSequencer(
		testGuildID,
		f.resolver,
		f.device,
		f.viewer,
		f.publisher,
		RetryPolicy{Attempts: 1},
	)
	f.sequencer.OnSessionEnded(func(event domain.SessionEndedEvent) {
		f.ended <- event
	})

	t.Cleanup(func() {
		_ = f.sequencer.Stop()
		f.sequencer.Wait()
	})
	return f
}

func (f *sequencerFixture) waitEnded(t *testing.T) domain.SessionEndedEvent {
	t.Helper()
	select {
	case event := <-f.ended:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the session to end")
		return domain.SessionEndedEvent{}
	}
}

// buildQueue resolves and builds a request the way the controller does.
func buildQueue(t *testing.T, req domain.PlaybackRequest) []domain.QueueItem {
	t.Helper()
	verses, err := domain.NewVerseRangeResolver().Resolve(req)
	if err != nil {
		t.Fatalf("unexpected resolve error: %v", err)
	}
	repeat := req.PerVerseRepeat
	if repeat == 0 {
		repeat = domain.RepeatOnce
	}
	return domain.NewQueueBuilder(0).Build(verses, repeat, domain.DefaultPreambleRule)
}
