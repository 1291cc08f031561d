package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/samber/lo"
	"github.com/sglre6355/recitebot/internal/modules/recitation/application/ports"
	"github.com/sglre6355/recitebot/internal/modules/recitation/domain"
)

// recordingExtensions lists the audio formats picked up from the directory.
var recordingExtensions = []string{".mp3", ".ogg", ".opus", ".wav", ".m4a", ".flac", ".webm"}

type recordingKey struct {
	chapter int
	verse   int
}

// DirectoryRecordingStore indexes the user's recordings in a flat directory.
// Files are named "{chapter}_{verse}.{ext}", e.g. "2_255.mp3" or "002_255.ogg".
// The index is kept current with an fsnotify watcher once Start is called.
type DirectoryRecordingStore struct {
	dir string

	mu    sync.RWMutex
	index map[recordingKey]string

	watcher *fsnotify.Watcher
	wg      sync.WaitGroup
	done    chan struct{}
}

// NewDirectoryRecordingStore creates a store for dir and builds its initial index.
func NewDirectoryRecordingStore(dir string) (*DirectoryRecordingStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve recordings directory: %w", err)
	}

	s := &DirectoryRecordingStore{
		dir:   abs,
		index: make(map[recordingKey]string),
		done:  make(chan struct{}),
	}
	if err := s.rescan(); err != nil {
		return nil, err
	}
	return s, nil
}

// Lookup returns the file path of the recording for chapter:verse.
func (s *DirectoryRecordingStore) Lookup(_ context.Context, chapter, verse int) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path, ok := s.index[recordingKey{chapter: chapter, verse: verse}]
	return path, ok, nil
}

// Count returns the number of indexed recordings.
func (s *DirectoryRecordingStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index)
}

// Start watches the directory and updates the index in a background goroutine.
func (s *DirectoryRecordingStore) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(s.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch recordings directory: %w", err)
	}
	s.watcher = watcher

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				s.apply(event)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("recordings watcher error", "dir", s.dir, "error", err)
			}
		}
	}()

	slog.Info("watching recordings directory", "dir", s.dir, "recordings", s.Count())
	return nil
}

// Stop stops the watcher and waits for its goroutine to finish.
func (s *DirectoryRecordingStore) Stop() {
	if s.watcher == nil {
		return
	}
	close(s.done)
	_ = s.watcher.Close()
	s.wg.Wait()
}

func (s *DirectoryRecordingStore) apply(event fsnotify.Event) {
	key, ok := parseRecordingName(filepath.Base(event.Name))
	if !ok {
		return
	}

	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		s.mu.Lock()
		s.index[key] = event.Name
		s.mu.Unlock()
		slog.Debug("recording added", "file", event.Name)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		s.mu.Lock()
		if s.index[key] == event.Name {
			delete(s.index, key)
		}
		s.mu.Unlock()
		slog.Debug("recording removed", "file", event.Name)
	}
}

func (s *DirectoryRecordingStore) rescan() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read recordings directory: %w", err)
	}

	index := make(map[recordingKey]string)
	for _, entry := range lo.Filter(entries, func(e os.DirEntry, _ int) bool { return !e.IsDir() }) {
		if key, ok := parseRecordingName(entry.Name()); ok {
			index[key] = filepath.Join(s.dir, entry.Name())
		}
	}

	s.mu.Lock()
	s.index = index
	s.mu.Unlock()
	return nil
}

// parseRecordingName parses "{chapter}_{verse}.{ext}" and rejects verses that
// do not exist.
func parseRecordingName(name string) (recordingKey, bool) {
	ext := strings.ToLower(filepath.Ext(name))
	if !lo.Contains(recordingExtensions, ext) {
		return recordingKey{}, false
	}

	chapterPart, versePart, ok := strings.Cut(strings.TrimSuffix(name, filepath.Ext(name)), "_")
	if !ok {
		return recordingKey{}, false
	}
	chapter, err := strconv.Atoi(chapterPart)
	if err != nil {
		return recordingKey{}, false
	}
	verse, err := strconv.Atoi(versePart)
	if err != nil {
		return recordingKey{}, false
	}
	if _, err := domain.NewVerseRef(chapter, verse); err != nil {
		return recordingKey{}, false
	}
	return recordingKey{chapter: chapter, verse: verse}, true
}

// Ensure DirectoryRecordingStore implements ports.RecordingStore.
var _ ports.RecordingStore = (*DirectoryRecordingStore)(nil)
