package domain

import (
	"fmt"

	"github.com/samber/lo"
)

// VerseRange is an inclusive span of verses, possibly crossing chapters.
type VerseRange struct {
	StartChapter int
	StartVerse   int
	EndChapter   int
	EndVerse     int
}

// NewVerseRange builds a range from two references.
func NewVerseRange(from, to VerseRef) VerseRange {
	return VerseRange{
		StartChapter: from.Chapter,
		StartVerse:   from.Verse,
		EndChapter:   to.Chapter,
		EndVerse:     to.Verse,
	}
}

// Validate checks chapter bounds, verse bounds and ordering.
func (r VerseRange) Validate() error {
	if !IsValidChapter(r.StartChapter) || !IsValidChapter(r.EndChapter) {
		return NewInvalidRangeError(
			fmt.Sprintf("chapters must be within [1, %d]", ChapterCount),
		)
	}
	if r.StartChapter > r.EndChapter ||
		(r.StartChapter == r.EndChapter && r.StartVerse > r.EndVerse) {
		return NewInvalidRangeError(fmt.Sprintf("start %d:%d is after end %d:%d",
			r.StartChapter, r.StartVerse, r.EndChapter, r.EndVerse))
	}
	if r.StartVerse < 1 || r.StartVerse > VerseCount(r.StartChapter) {
		return NewInvalidRangeError(fmt.Sprintf("chapter %d has %d verses, got start verse %d",
			r.StartChapter, VerseCount(r.StartChapter), r.StartVerse))
	}
	if r.EndVerse < 1 || r.EndVerse > VerseCount(r.EndChapter) {
		return NewInvalidRangeError(fmt.Sprintf("chapter %d has %d verses, got end verse %d",
			r.EndChapter, VerseCount(r.EndChapter), r.EndVerse))
	}
	return nil
}

// Verses expands the range into its verses in reading order.
// Intermediate chapters are included in full.
func (r VerseRange) Verses() ([]VerseRef, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	var verses []VerseRef
	for chapter := r.StartChapter; chapter <= r.EndChapter; chapter++ {
		first := 1
		if chapter == r.StartChapter {
			first = r.StartVerse
		}
		last := VerseCount(chapter)
		if chapter == r.EndChapter {
			last = r.EndVerse
		}
		verses = append(verses, chapterVerses(chapter, first, last)...)
	}
	return verses, nil
}

// chapterVerses returns verses first..last of a chapter. Bounds must already be valid.
func chapterVerses(chapter, first, last int) []VerseRef {
	offset := chapterOffsets[chapter-1]
	return lo.Map(lo.RangeFrom(first, last-first+1), func(verse int, _ int) VerseRef {
		return VerseRef{Chapter: chapter, Verse: verse, GlobalNumber: offset + verse}
	})
}

// String returns the "c:v-c:v" form.
func (r VerseRange) String() string {
	return fmt.Sprintf("%d:%d-%d:%d", r.StartChapter, r.StartVerse, r.EndChapter, r.EndVerse)
}
