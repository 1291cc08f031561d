package ports

import (
	"context"

	"github.com/sglre6355/recitebot/internal/modules/recitation/domain"
)

// VerseText is one verse of a loaded chapter.
type VerseText struct {
	Ref  domain.VerseRef
	Text string
}

// VerseList is the content of one chapter as displayed by a content viewer.
type VerseList struct {
	Chapter     int
	Name        string
	EnglishName string
	Verses      []VerseText
}

// Text returns the text of the given verse number, or "" if absent.
func (l *VerseList) Text(verse int) string {
	if l == nil || verse < 1 || verse > len(l.Verses) {
		return ""
	}
	return l.Verses[verse-1].Text
}

// ContentViewerBridge is the sequencer's view of whatever displays the text
// being recited.
type ContentViewerBridge interface {
	// LoadChapter loads and displays the given chapter.
	LoadChapter(ctx context.Context, chapter int) (*VerseList, error)

	// OnVerseActivated marks a verse as the one currently playing.
	OnVerseActivated(verse domain.VerseRef)

	// DisplayedChapter returns the chapter currently displayed, or 0.
	DisplayedChapter() int
}

// ChapterSource fetches chapter text.
type ChapterSource interface {
	// Chapter returns the verses of the given chapter.
	Chapter(ctx context.Context, chapter int) (*VerseList, error)
}
