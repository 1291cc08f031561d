package domain

// QueueItem is one playable entry of a playback queue.
// A preamble item always carries OpeningFormula and has ChapterOfOrigin set
// to the chapter it precedes.
type QueueItem struct {
	Verse           VerseRef
	IsPreamble      bool
	ChapterOfOrigin int
	RepetitionIndex int
}

// NewVerseItem creates the item for the given repetition of a verse.
func NewVerseItem(verse VerseRef, repetition int) QueueItem {
	return QueueItem{
		Verse:           verse,
		ChapterOfOrigin: verse.Chapter,
		RepetitionIndex: repetition,
	}
}

// NewPreambleItem creates the preamble item that precedes chapter.
func NewPreambleItem(chapter int) QueueItem {
	return QueueItem{
		Verse:           OpeningFormula,
		IsPreamble:      true,
		ChapterOfOrigin: chapter,
	}
}

// Chapter returns the chapter the content viewer must display for this item.
func (i QueueItem) Chapter() int {
	if i.ChapterOfOrigin != 0 {
		return i.ChapterOfOrigin
	}
	return i.Verse.Chapter
}
