package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// VerseRef identifies a single verse. It is a value type and never mutated.
// GlobalNumber is carried alongside the chapter position because some
// audio backends address verses only by their corpus-wide number.
type VerseRef struct {
	Chapter      int
	Verse        int
	GlobalNumber int
}

// OpeningFormula is the verse recited as the preamble before most chapters.
var OpeningFormula = VerseRef{Chapter: 1, Verse: 1, GlobalNumber: 1}

// NewVerseRef builds a VerseRef, validating the chapter and verse bounds.
func NewVerseRef(chapter, verse int) (VerseRef, error) {
	if !IsValidChapter(chapter) {
		return VerseRef{}, NewInvalidRangeError(
			fmt.Sprintf("chapter %d is outside [1, %d]", chapter, ChapterCount),
		)
	}
	if verse < 1 || verse > VerseCount(chapter) {
		return VerseRef{}, NewInvalidRangeError(
			fmt.Sprintf("chapter %d has %d verses, got verse %d", chapter, VerseCount(chapter), verse),
		)
	}
	return VerseRef{
		Chapter:      chapter,
		Verse:        verse,
		GlobalNumber: GlobalNumber(chapter, verse),
	}, nil
}

// MustVerseRef is like NewVerseRef but panics on invalid input.
// Intended for constants and tests.
func MustVerseRef(chapter, verse int) VerseRef {
	ref, err := NewVerseRef(chapter, verse)
	if err != nil {
		panic(err)
	}
	return ref
}

// ParseVerseRef parses a "chapter:verse" reference such as "2:255".
func ParseVerseRef(s string) (VerseRef, error) {
	chapterPart, versePart, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return VerseRef{}, NewInvalidRangeError(fmt.Sprintf("%q is not a chapter:verse reference", s))
	}

	chapter, err := strconv.Atoi(strings.TrimSpace(chapterPart))
	if err != nil {
		return VerseRef{}, NewInvalidRangeError(fmt.Sprintf("invalid chapter in %q", s))
	}
	verse, err := strconv.Atoi(strings.TrimSpace(versePart))
	if err != nil {
		return VerseRef{}, NewInvalidRangeError(fmt.Sprintf("invalid verse in %q", s))
	}

	return NewVerseRef(chapter, verse)
}

// IsValid reports whether the reference points at an existing verse and its
// global number is consistent with the chapter position.
func (v VerseRef) IsValid() bool {
	global := GlobalNumber(v.Chapter, v.Verse)
	return global != 0 && global == v.GlobalNumber
}

// IsFirstInChapter reports whether this is verse 1 of its chapter.
func (v VerseRef) IsFirstInChapter() bool {
	return v.Verse == 1
}

// String returns the "chapter:verse" form.
func (v VerseRef) String() string {
	return strconv.Itoa(v.Chapter) + ":" + strconv.Itoa(v.Verse)
}
