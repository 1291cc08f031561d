package usecases

import (
	"errors"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sglre6355/recitebot/internal/modules/recitation/application/ports"
	"github.com/sglre6355/recitebot/internal/modules/recitation/domain"
)

func refs(verses ...string) []domain.VerseRef {
	result := make([]domain.VerseRef, len(verses))
	for i, v := range verses {
		ref, err := domain.ParseVerseRef(v)
		if err != nil {
			panic(err)
		}
		result[i] = ref
	}
	return result
}

func activatedStrings(verses []domain.VerseRef) []string {
	result := make([]string, len(verses))
	for i, v := range verses {
		result[i] = v.String()
	}
	return result
}

func TestPlaybackSequencer_WholeChapterWithPreamble(t *testing.T) {
	f := newSequencerFixture(t, true)
	queue := buildQueue(t, domain.PlaybackRequest{Mode: domain.ModeWholeChapter, Chapter: 112})

	if len(queue) != 5 {
		t.Fatalf("expected preamble plus 4 verses, got %d items", len(queue))
	}

	if _, err := f.sequencer.Start(queue, 1, "ar.alafasy", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	event := f.waitEnded(t)
	if event.Reason != domain.EndCompleted {
		t.Errorf("expected completed, got %s", event.Reason)
	}
	if event.Played != 5 || event.Failed != 0 {
		t.Errorf("expected 5 played and 0 failed, got %d and %d", event.Played, event.Failed)
	}

	want := []string{"1:1", "112:1", "112:2", "112:3", "112:4"}
	if got := activatedStrings(f.viewer.getActivated()); !slices.Equal(got, want) {
		t.Errorf("expected activations %v, got %v", want, got)
	}
	if got := f.viewer.getLoads(); !slices.Equal(got, []int{112}) {
		t.Errorf("expected a single load of chapter 112, got %v", got)
	}

	snapshot, _ := f.sequencer.Snapshot()
	if snapshot.State != domain.StateStopped {
		t.Errorf("expected stopped, got %s", snapshot.State)
	}
	if snapshot.LoopIteration != 1 {
		t.Errorf("expected one loop iteration, got %d", snapshot.LoopIteration)
	}
	if f.device.aliveCount() != 0 {
		t.Errorf("expected every handle released, %d alive", f.device.aliveCount())
	}
	if f.device.hasOverlapped() {
		t.Error("expected at most one audio handle alive at a time")
	}
}

func TestPlaybackSequencer_RangeWithoutPreamble(t *testing.T) {
	f := newSequencerFixture(t, true)
	queue := buildQueue(t, domain.PlaybackRequest{
		Mode:  domain.ModeRange,
		Range: &domain.VerseRange{StartChapter: 1, StartVerse: 1, EndChapter: 1, EndVerse: 7},
	})

	if len(queue) != 7 {
		t.Fatalf("expected 7 items, got %d", len(queue))
	}

	if _, err := f.sequencer.Start(queue, 1, "ar.alafasy", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	event := f.waitEnded(t)
	if event.Played != 7 {
		t.Errorf("expected 7 played, got %d", event.Played)
	}
	if f.device.loadCount() != 7 {
		t.Errorf("expected 7 loads, got %d", f.device.loadCount())
	}
}

func TestPlaybackSequencer_CustomSetDuplicates(t *testing.T) {
	f := newSequencerFixture(t, true)
	queue := buildQueue(t, domain.PlaybackRequest{
		Mode:           domain.ModeCustomSet,
		Verses:         refs("2:255", "2:255"),
		PerVerseRepeat: 2,
	})

	if _, err := f.sequencer.Start(queue, 1, "ar.alafasy", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	event := f.waitEnded(t)
	if event.Played != 4 {
		t.Errorf("expected 4 played, got %d", event.Played)
	}

	want := []string{"ar.alafasy/262", "ar.alafasy/262", "ar.alafasy/262", "ar.alafasy/262"}
	if got := f.device.sources(); !slices.Equal(got, want) {
		t.Errorf("expected sources %v, got %v", want, got)
	}
}

func TestPlaybackSequencer_MissingUserRecordingIsSkipped(t *testing.T) {
	device := newFakeDevice(true)
	viewer := newFakeViewer()
	publisher := &fakePublisher{}
	resolver := NewAudioSourceResolver(
		&fakePrimary{url: func(int, string) (string, error) {
			t.Error("primary service must not be used for user recordings")
			return "", nil
		}},
		&fakeFallback{},
		&fakeRecordings{files: map[string]string{}},
		RetryPolicy{Attempts: 1},
		0,
	)

	sequencer := NewPlaybackSequencer(testGuildID, resolver, device, viewer, publisher, RetryPolicy{Attempts: 1})
	ended := make(chan domain.SessionEndedEvent, 1)
	sequencer.OnSessionEnded(func(event domain.SessionEndedEvent) { ended <- event })

	queue := buildQueue(t, domain.PlaybackRequest{Mode: domain.ModeCustomSet, Verses: refs("2:255")})
	if _, err := sequencer.Start(queue, 1, domain.UserRecordingsReciterID, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var event domain.SessionEndedEvent
	select {
	case event = <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the session to end")
	}
	sequencer.Wait()

	if event.Reason != domain.EndCompleted {
		t.Errorf("expected natural completion, got %s", event.Reason)
	}
	if event.Played != 0 || event.Failed != 1 {
		t.Errorf("expected 0 played and 1 failed, got %d and %d", event.Played, event.Failed)
	}

	failed := publisher.getFailed()
	if len(failed) != 1 {
		t.Fatalf("expected one failure event, got %d", len(failed))
	}
	if !errors.Is(failed[0].Err, domain.ErrNoUserRecording) {
		t.Errorf("expected ErrNoUserRecording, got %v", failed[0].Err)
	}
	if device.loadCount() != 0 {
		t.Errorf("expected nothing loaded, got %d loads", device.loadCount())
	}
}

func TestPlaybackSequencer_CrossChapterNavigation(t *testing.T) {
	f := newSequencerFixture(t, true)
	queue := buildQueue(t, domain.PlaybackRequest{
		Mode:  domain.ModeRange,
		Range: &domain.VerseRange{StartChapter: 1, StartVerse: 5, EndChapter: 2, EndVerse: 3},
	})

	if _, err := f.sequencer.Start(queue, 1, "ar.alafasy", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.waitEnded(t)

	want := []string{
		"load 1",
		"activate 1:5",
		"activate 1:6",
		"activate 1:7",
		"load 2",
		"activate 1:1",
		"activate 2:1",
		"activate 2:2",
		"activate 2:3",
	}
	if got := f.viewer.getLog(); !slices.Equal(got, want) {
		t.Errorf("expected viewer log %v, got %v", want, got)
	}
}

func TestPlaybackSequencer_LoopTermination(t *testing.T) {
	tests := []struct {
		name        string
		rangeRepeat domain.Repeat
		wantPlayed  int
	}{
		{name: "once", rangeRepeat: 1, wantPlayed: 2},
		{name: "three times", rangeRepeat: 3, wantPlayed: 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSequencerFixture(t, true)
			queue := buildQueue(t, domain.PlaybackRequest{
				Mode:   domain.ModeCustomSet,
				Verses: refs("2:2", "2:3"),
			})

			if _, err := f.sequencer.Start(queue, tt.rangeRepeat, "ar.alafasy", 1); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			event := f.waitEnded(t)
			if event.Reason != domain.EndCompleted {
				t.Errorf("expected completed, got %s", event.Reason)
			}
			if event.Played != tt.wantPlayed {
				t.Errorf("expected %d played, got %d", tt.wantPlayed, event.Played)
			}
			if event.LoopIteration != int(tt.rangeRepeat) {
				t.Errorf("expected %d loop iterations, got %d", tt.rangeRepeat, event.LoopIteration)
			}
		})
	}
}

func TestPlaybackSequencer_InfiniteLoopRunsUntilStopped(t *testing.T) {
	f := newSequencerFixture(t, true)
	queue := buildQueue(t, domain.PlaybackRequest{Mode: domain.ModeCustomSet, Verses: refs("2:2", "2:3")})

	if _, err := f.sequencer.Start(queue, domain.Infinite, "ar.alafasy", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	waitFor(t, "several loop iterations", func() bool { return f.device.loadCount() >= 10 })

	select {
	case event := <-f.ended:
		t.Fatalf("infinite session ended on its own: %+v", event)
	default:
	}

	if err := f.sequencer.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	event := f.waitEnded(t)
	if event.Reason != domain.EndStopped {
		t.Errorf("expected stopped, got %s", event.Reason)
	}
	if event.LoopIteration < 4 {
		t.Errorf("expected at least 4 iterations, got %d", event.LoopIteration)
	}

	f.sequencer.Wait()
	loads := f.device.loadCount()
	time.Sleep(20 * time.Millisecond)
	if f.device.loadCount() != loads {
		t.Error("expected no playback after stop")
	}
	if f.device.aliveCount() != 0 {
		t.Errorf("expected every handle released, %d alive", f.device.aliveCount())
	}
}

func TestPlaybackSequencer_StopCancelsPendingChapterLoad(t *testing.T) {
	f := newSequencerFixture(t, true)
	f.viewer.block = make(chan struct{})
	queue := buildQueue(t, domain.PlaybackRequest{Mode: domain.ModeWholeChapter, Chapter: 112})

	if _, err := f.sequencer.Start(queue, 1, "ar.alafasy", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, "chapter load", func() bool { return len(f.viewer.getLoads()) == 1 })

	if err := f.sequencer.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	close(f.viewer.block)
	f.sequencer.Wait()

	if got := f.viewer.getActivated(); len(got) != 0 {
		t.Errorf("expected no activation after stop, got %v", activatedStrings(got))
	}
	snapshot, _ := f.sequencer.Snapshot()
	if snapshot.Cursor != 0 {
		t.Errorf("expected cursor to stay at 0, got %d", snapshot.Cursor)
	}
	if f.resolver.callCount() != 0 || f.device.loadCount() != 0 {
		t.Error("expected no audio work after stop")
	}
}

func TestPlaybackSequencer_StopCancelsPendingResolution(t *testing.T) {
	f := newSequencerFixture(t, true)
	f.resolver.block = make(chan struct{})
	queue := buildQueue(t, domain.PlaybackRequest{Mode: domain.ModeCustomSet, Verses: refs("2:2", "2:3")})

	if _, err := f.sequencer.Start(queue, 1, "ar.alafasy", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, "audio resolution", func() bool { return f.resolver.callCount() == 1 })

	if err := f.sequencer.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	close(f.resolver.block)
	f.sequencer.Wait()

	if got := f.viewer.getActivated(); len(got) != 1 {
		t.Errorf("expected exactly one activation, got %v", activatedStrings(got))
	}
	snapshot, _ := f.sequencer.Snapshot()
	if snapshot.Cursor != 0 {
		t.Errorf("expected cursor to stay at 0, got %d", snapshot.Cursor)
	}
	if snapshot.State != domain.StateStopped {
		t.Errorf("expected stopped, got %s", snapshot.State)
	}
	if f.device.loadCount() != 0 {
		t.Errorf("expected nothing loaded, got %d", f.device.loadCount())
	}
}

func TestPlaybackSequencer_PauseResume(t *testing.T) {
	f := newSequencerFixture(t, false)
	ctx := t.Context()
	queue := buildQueue(t, domain.PlaybackRequest{Mode: domain.ModeCustomSet, Verses: refs("2:2", "2:3")})

	if _, err := f.sequencer.Start(queue, 1, "ar.alafasy", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, "first item playing", func() bool {
		return f.device.loadCount() == 1 && f.device.handle(0).isPlaying()
	})

	if err := f.sequencer.Pause(ctx); err != nil {
		t.Fatalf("unexpected pause error: %v", err)
	}
	if !f.device.handle(0).isPaused() {
		t.Error("expected the handle to be paused")
	}
	if snapshot, _ := f.sequencer.Snapshot(); snapshot.State != domain.StatePaused {
		t.Errorf("expected paused, got %s", snapshot.State)
	}
	if err := f.sequencer.Pause(ctx); !errors.Is(err, ErrNotPlaying) {
		t.Errorf("expected ErrNotPlaying, got %v", err)
	}

	if err := f.sequencer.Resume(ctx); err != nil {
		t.Fatalf("unexpected resume error: %v", err)
	}
	if f.device.handle(0).isPaused() {
		t.Error("expected the handle to be resumed")
	}
	if err := f.sequencer.Resume(ctx); !errors.Is(err, ErrNotPaused) {
		t.Errorf("expected ErrNotPaused, got %v", err)
	}
	if f.device.loadCount() != 1 {
		t.Error("expected resume not to reload the source")
	}

	f.device.handle(0).finish(nil)
	waitFor(t, "second item", func() bool { return f.device.loadCount() == 2 })
	if !f.device.handle(0).isReleased() {
		t.Error("expected the first handle to be released")
	}
}

func TestPlaybackSequencer_Skip(t *testing.T) {
	f := newSequencerFixture(t, false)
	queue := buildQueue(t, domain.PlaybackRequest{Mode: domain.ModeWholeChapter, Chapter: 112})

	if _, err := f.sequencer.Start(queue, 2, "ar.alafasy", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, "first item playing", func() bool {
		return f.device.loadCount() == 1 && f.device.handle(0).isPlaying()
	})

	// Previous on the first item is a no-op.
	if err := f.sequencer.SkipPrevious(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if f.device.loadCount() != 1 || f.device.handle(0).isReleased() {
		t.Fatal("expected previous on the first item to change nothing")
	}

	if err := f.sequencer.SkipNext(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, "second item playing", func() bool {
		return f.device.loadCount() == 2 && f.device.handle(1).isPlaying()
	})
	if !f.device.handle(0).isReleased() {
		t.Error("expected the skipped handle to be released")
	}
	if snapshot, _ := f.sequencer.Snapshot(); snapshot.Cursor != 1 {
		t.Errorf("expected cursor 1, got %d", snapshot.Cursor)
	}

	if err := f.sequencer.SkipPrevious(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, "first item again", func() bool {
		return f.device.loadCount() == 3 && f.device.handle(2).isPlaying()
	})

	snapshot, _ := f.sequencer.Snapshot()
	if snapshot.Cursor != 0 {
		t.Errorf("expected cursor 0, got %d", snapshot.Cursor)
	}
	if snapshot.LoopIteration != 0 {
		t.Errorf("expected skipping to leave the loop counter alone, got %d", snapshot.LoopIteration)
	}

	want := []string{"1:1", "112:1", "1:1"}
	if got := activatedStrings(f.viewer.getActivated()); !slices.Equal(got, want) {
		t.Errorf("expected activations %v, got %v", want, got)
	}
	if f.device.hasOverlapped() {
		t.Error("expected at most one audio handle alive at a time")
	}
}

func TestPlaybackSequencer_SkipNextOnLastItemIsNoop(t *testing.T) {
	f := newSequencerFixture(t, false)
	queue := buildQueue(t, domain.PlaybackRequest{Mode: domain.ModeCustomSet, Verses: refs("2:2", "2:3")})

	if _, err := f.sequencer.Start(queue, 1, "ar.alafasy", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, "first item playing", func() bool {
		return f.device.loadCount() == 1 && f.device.handle(0).isPlaying()
	})

	if err := f.sequencer.SkipNext(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, "last item playing", func() bool {
		return f.device.loadCount() == 2 && f.device.handle(1).isPlaying()
	})

	if err := f.sequencer.SkipNext(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if f.device.loadCount() != 2 || f.device.handle(1).isReleased() {
		t.Error("expected next on the last item to change nothing")
	}
}

func TestPlaybackSequencer_SetSpeed(t *testing.T) {
	f := newSequencerFixture(t, false)
	ctx := t.Context()
	queue := buildQueue(t, domain.PlaybackRequest{Mode: domain.ModeCustomSet, Verses: refs("2:2", "2:3")})

	if _, err := f.sequencer.Start(queue, 1, "ar.alafasy", 1.5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, "first item playing", func() bool {
		return f.device.loadCount() == 1 && f.device.handle(0).isPlaying()
	})

	if got := f.device.handle(0).currentSpeed(); got != 1.5 {
		t.Errorf("expected the initial speed 1.5 on the handle, got %.2f", got)
	}

	if err := f.sequencer.SetSpeed(ctx, 0.75); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := f.device.handle(0).currentSpeed(); got != 0.75 {
		t.Errorf("expected the active handle at 0.75, got %.2f", got)
	}

	if err := f.sequencer.SetSpeed(ctx, 3); !errors.Is(err, domain.ErrInvalidSpeed) {
		t.Errorf("expected ErrInvalidSpeed, got %v", err)
	}

	f.device.handle(0).finish(nil)
	waitFor(t, "second item playing", func() bool {
		return f.device.loadCount() == 2 && f.device.handle(1).isPlaying()
	})
	if got := f.device.handle(1).currentSpeed(); got != 0.75 {
		t.Errorf("expected the next handle at 0.75, got %.2f", got)
	}
}

func TestPlaybackSequencer_ConsecutiveFailureCap(t *testing.T) {
	f := newSequencerFixture(t, true)
	f.resolver.err = func(domain.VerseRef) error {
		return &domain.AudioResolutionError{Primary: errors.New("down"), Fallback: errors.New("404")}
	}
	queue := buildQueue(t, domain.PlaybackRequest{Mode: domain.ModeCustomSet, Verses: refs("2:2", "2:3", "2:4")})

	if _, err := f.sequencer.Start(queue, domain.Infinite, "ar.alafasy", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	event := f.waitEnded(t)
	if event.Reason != domain.EndFailed {
		t.Errorf("expected failed, got %s", event.Reason)
	}
	if event.Failed != 3 {
		t.Errorf("expected 3 failures, got %d", event.Failed)
	}
	if snapshot, _ := f.sequencer.Snapshot(); snapshot.State != domain.StateError {
		t.Errorf("expected error state, got %s", snapshot.State)
	}
}

func TestPlaybackSequencer_FiniteLoopOfFailuresCompletes(t *testing.T) {
	f := newSequencerFixture(t, true)
	f.resolver.err = func(v domain.VerseRef) error {
		return &domain.NoUserRecordingError{Chapter: v.Chapter, Verse: v.Verse}
	}
	queue := buildQueue(t, domain.PlaybackRequest{Mode: domain.ModeCustomSet, Verses: refs("2:255")})

	if _, err := f.sequencer.Start(queue, 2, domain.UserRecordingsReciterID, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	event := f.waitEnded(t)
	if event.Reason != domain.EndCompleted {
		t.Errorf("expected completed, got %s", event.Reason)
	}
	if event.LoopIteration != 2 || event.Failed != 2 || event.Played != 0 {
		t.Errorf("expected 2 loops with 2 failures, got %+v", event)
	}
	if snapshot, _ := f.sequencer.Snapshot(); snapshot.State != domain.StateStopped {
		t.Errorf("expected stopped state, got %s", snapshot.State)
	}
}

func TestPlaybackSequencer_InfiniteSingleVerseSurvivesTransientFailure(t *testing.T) {
	f := newSequencerFixture(t, true)
	var calls atomic.Int32
	f.resolver.err = func(v domain.VerseRef) error {
		if calls.Add(1) == 1 {
			return &domain.AudioResolutionError{Verse: v, Primary: errors.New("timeout"), Fallback: errors.New("503")}
		}
		return nil
	}
	queue := buildQueue(t, domain.PlaybackRequest{Mode: domain.ModeCustomSet, Verses: refs("2:255")})

	if _, err := f.sequencer.Start(queue, domain.Infinite, "ar.alafasy", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	waitFor(t, "playback after the failure", func() bool { return f.device.loadCount() >= 3 })

	select {
	case event := <-f.ended:
		t.Fatalf("session ended after one failure: %+v", event)
	default:
	}

	if err := f.sequencer.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event := f.waitEnded(t); event.Reason != domain.EndStopped || event.Failed != 1 {
		t.Errorf("expected a stopped session with 1 failure, got %+v", event)
	}
}

func TestPlaybackSequencer_NotifiesEveryEndObserver(t *testing.T) {
	f := newSequencerFixture(t, true)
	second := make(chan domain.SessionEndedEvent, 1)
	f.sequencer.OnSessionEnded(func(event domain.SessionEndedEvent) { second <- event })

	queue := buildQueue(t, domain.PlaybackRequest{Mode: domain.ModeCustomSet, Verses: refs("2:2")})
	started, err := f.sequencer.Start(queue, 1, "ar.alafasy", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if event := f.waitEnded(t); event.SessionID != started.SessionID {
		t.Errorf("expected session %s, got %s", started.SessionID, event.SessionID)
	}
	select {
	case event := <-second:
		if event.SessionID != started.SessionID {
			t.Errorf("expected session %s, got %s", started.SessionID, event.SessionID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the second observer")
	}
}

func TestPlaybackSequencer_SingleFailureDoesNotHalt(t *testing.T) {
	f := newSequencerFixture(t, true)
	bad := refs("2:3")[0]
	f.resolver.err = func(v domain.VerseRef) error {
		if v == bad {
			return &domain.AudioResolutionError{Verse: v, Primary: errors.New("down"), Fallback: errors.New("404")}
		}
		return nil
	}
	queue := buildQueue(t, domain.PlaybackRequest{Mode: domain.ModeCustomSet, Verses: refs("2:2", "2:3", "2:4")})

	if _, err := f.sequencer.Start(queue, 1, "ar.alafasy", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	event := f.waitEnded(t)
	if event.Reason != domain.EndCompleted || event.Played != 2 || event.Failed != 1 {
		t.Errorf("expected completion with 2 played and 1 failed, got %+v", event)
	}

	failed := f.publisher.getFailed()
	if len(failed) != 1 || failed[0].Cursor != 1 {
		t.Fatalf("expected one failure at cursor 1, got %+v", failed)
	}
	if !errors.Is(failed[0].Err, domain.ErrAudioResolution) {
		t.Errorf("expected ErrAudioResolution, got %v", failed[0].Err)
	}
}

func TestPlaybackSequencer_DeviceUnavailableEndsSession(t *testing.T) {
	f := newSequencerFixture(t, true)
	f.device.loadErr = func(ports.AudioSource) error {
		return &domain.PlaybackDeviceError{Cause: errors.New("no node"), Unavailable: true}
	}
	queue := buildQueue(t, domain.PlaybackRequest{Mode: domain.ModeCustomSet, Verses: refs("2:2", "2:3")})

	if _, err := f.sequencer.Start(queue, domain.Infinite, "ar.alafasy", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	event := f.waitEnded(t)
	if event.Reason != domain.EndDeviceUnavailable {
		t.Errorf("expected device unavailable, got %s", event.Reason)
	}
	if snapshot, _ := f.sequencer.Snapshot(); snapshot.State != domain.StateError {
		t.Errorf("expected error state, got %s", snapshot.State)
	}
}

func TestPlaybackSequencer_PlaybackErrorSkipsItem(t *testing.T) {
	f := newSequencerFixture(t, false)
	queue := buildQueue(t, domain.PlaybackRequest{Mode: domain.ModeCustomSet, Verses: refs("2:2", "2:3")})

	if _, err := f.sequencer.Start(queue, 1, "ar.alafasy", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, "first item playing", func() bool {
		return f.device.loadCount() == 1 && f.device.handle(0).isPlaying()
	})

	f.device.handle(0).finish(errors.New("decoder crashed"))
	waitFor(t, "second item playing", func() bool {
		return f.device.loadCount() == 2 && f.device.handle(1).isPlaying()
	})

	failed := f.publisher.getFailed()
	if len(failed) != 1 {
		t.Fatalf("expected one failure, got %d", len(failed))
	}
	if !errors.Is(failed[0].Err, domain.ErrPlaybackDevice) {
		t.Errorf("expected ErrPlaybackDevice, got %v", failed[0].Err)
	}
	if errors.Is(failed[0].Err, domain.ErrDeviceUnavailable) {
		t.Error("expected a recoverable device error")
	}
}

func TestPlaybackSequencer_ChapterLoadFailureSkipsItems(t *testing.T) {
	f := newSequencerFixture(t, true)
	f.sequencer.retry = RetryPolicy{Attempts: 2}
	f.viewer.loadErr = func(chapter int) error {
		if chapter == 2 {
			return errors.New("chapter service down")
		}
		return nil
	}
	queue := buildQueue(t, domain.PlaybackRequest{
		Mode:  domain.ModeRange,
		Range: &domain.VerseRange{StartChapter: 1, StartVerse: 6, EndChapter: 2, EndVerse: 2},
	})

	if _, err := f.sequencer.Start(queue, 1, "ar.alafasy", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	event := f.waitEnded(t)
	if event.Played != 2 || event.Failed != 3 {
		t.Errorf("expected 2 played and 3 failed, got %d and %d", event.Played, event.Failed)
	}

	chapterTwoLoads := 0
	for _, chapter := range f.viewer.getLoads() {
		if chapter == 2 {
			chapterTwoLoads++
		}
	}
	if chapterTwoLoads != 6 {
		t.Errorf("expected 2 attempts for each of 3 items, got %d loads", chapterTwoLoads)
	}

	for _, failure := range f.publisher.getFailed() {
		var loadErr *domain.ChapterLoadError
		if !errors.As(failure.Err, &loadErr) || loadErr.Chapter != 2 {
			t.Errorf("expected a chapter 2 load error, got %v", failure.Err)
		}
	}
}

func TestPlaybackSequencer_StartReplacesSession(t *testing.T) {
	f := newSequencerFixture(t, false)
	first := buildQueue(t, domain.PlaybackRequest{Mode: domain.ModeCustomSet, Verses: refs("2:2")})
	second := buildQueue(t, domain.PlaybackRequest{Mode: domain.ModeCustomSet, Verses: refs("3:3")})

	firstSnapshot, err := f.sequencer.Start(first, 1, "ar.alafasy", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, "first session playing", func() bool {
		return f.device.loadCount() == 1 && f.device.handle(0).isPlaying()
	})

	secondSnapshot, err := f.sequencer.Start(second, 1, "ar.alafasy", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	event := f.waitEnded(t)
	if event.SessionID != firstSnapshot.SessionID || event.Reason != domain.EndStopped {
		t.Errorf("expected the first session to be stopped, got %+v", event)
	}
	if !f.device.handle(0).isReleased() {
		t.Error("expected the first session's handle to be released")
	}

	waitFor(t, "second session playing", func() bool {
		return f.device.loadCount() == 2 && f.device.handle(1).isPlaying()
	})
	if snapshot, _ := f.sequencer.Snapshot(); snapshot.SessionID != secondSnapshot.SessionID {
		t.Error("expected the second session to be current")
	}
	if f.device.hasOverlapped() {
		t.Error("expected at most one audio handle alive at a time")
	}
}

func TestPlaybackSequencer_RejectsEmptyQueue(t *testing.T) {
	f := newSequencerFixture(t, true)

	if _, err := f.sequencer.Start(nil, 1, "ar.alafasy", 1); !errors.Is(err, domain.ErrEmptyQueue) {
		t.Errorf("expected ErrEmptyQueue, got %v", err)
	}
	if _, ok := f.sequencer.Snapshot(); ok {
		t.Error("expected no session to be created")
	}
}

func TestPlaybackSequencer_ControlsWithoutSession(t *testing.T) {
	f := newSequencerFixture(t, true)
	ctx := t.Context()

	tests := []struct {
		name string
		call func() error
	}{
		{name: "stop", call: f.sequencer.Stop},
		{name: "pause", call: func() error { return f.sequencer.Pause(ctx) }},
		{name: "resume", call: func() error { return f.sequencer.Resume(ctx) }},
		{name: "next", call: f.sequencer.SkipNext},
		{name: "previous", call: f.sequencer.SkipPrevious},
		{name: "speed", call: func() error { return f.sequencer.SetSpeed(ctx, 1.25) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, ErrNoSession) {
				t.Errorf("expected ErrNoSession, got %v", err)
			}
		})
	}
}
