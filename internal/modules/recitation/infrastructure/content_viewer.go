package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/recitebot/internal/modules/recitation/application/ports"
	"github.com/sglre6355/recitebot/internal/modules/recitation/domain"
)

// ContentViewer is the per-guild content viewer. It holds the chapter being
// displayed and the verse being recited. The "Now reciting" embed renders
// the same verse from sequencer events.
type ContentViewer struct {
	guildID  snowflake.ID
	chapters ports.ChapterSource

	mu        sync.RWMutex
	displayed *ports.VerseList
	active    domain.VerseRef
}

// NewContentViewer creates a new ContentViewer for the given guild.
func NewContentViewer(guildID snowflake.ID, chapters ports.ChapterSource) *ContentViewer {
	return &ContentViewer{
		guildID:  guildID,
		chapters: chapters,
	}
}

// LoadChapter fetches a chapter and makes it the displayed one.
// The displayed chapter is unchanged on failure.
func (v *ContentViewer) LoadChapter(ctx context.Context, chapter int) (*ports.VerseList, error) {
	list, err := v.chapters.Chapter(ctx, chapter)
	if err != nil {
		return nil, fmt.Errorf("failed to load chapter %d: %w", chapter, err)
	}

	v.mu.Lock()
	v.displayed = list
	v.mu.Unlock()

	slog.Debug("content viewer loaded chapter",
		"guild", v.guildID,
		"chapter", chapter,
	)
	return list, nil
}

// OnVerseActivated records the verse being recited.
func (v *ContentViewer) OnVerseActivated(verse domain.VerseRef) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.active = verse
}

// DisplayedChapter returns the chapter currently displayed, or 0.
func (v *ContentViewer) DisplayedChapter() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.displayed == nil {
		return 0
	}
	return v.displayed.Chapter
}

// ActiveVerse returns the verse last activated.
func (v *ContentViewer) ActiveVerse() domain.VerseRef {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.active
}

// Ensure ContentViewer implements ports.ContentViewerBridge.
var _ ports.ContentViewerBridge = (*ContentViewer)(nil)
