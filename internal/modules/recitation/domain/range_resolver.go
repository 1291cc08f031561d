package domain

import (
	"fmt"
	"slices"
)

// VerseRangeResolver expands a PlaybackRequest into an ordered verse list.
type VerseRangeResolver struct{}

// NewVerseRangeResolver creates a VerseRangeResolver.
func NewVerseRangeResolver() *VerseRangeResolver {
	return &VerseRangeResolver{}
}

// Resolve returns the verses the request covers, in playback order.
//   - ModeWholeChapter: every verse of Chapter, ascending
//   - ModeRange: Range expanded inclusively, crossing chapters in full
//   - ModeCustomSet: Verses as given, duplicates and order preserved
//
// Any validation failure is an *InvalidRangeError.
func (r *VerseRangeResolver) Resolve(req PlaybackRequest) ([]VerseRef, error) {
	switch req.Mode {
	case ModeWholeChapter:
		if !IsValidChapter(req.Chapter) {
			return nil, NewInvalidRangeError(
				fmt.Sprintf("chapter %d is outside [1, %d]", req.Chapter, ChapterCount),
			)
		}
		return chapterVerses(req.Chapter, 1, VerseCount(req.Chapter)), nil

	case ModeRange:
		if req.Range == nil {
			return nil, NewInvalidRangeError("range request without a range")
		}
		return req.Range.Verses()

	case ModeCustomSet:
		for i, v := range req.Verses {
			if !v.IsValid() {
				return nil, NewInvalidRangeError(
					fmt.Sprintf("verse #%d (%d:%d, global %d) does not exist",
						i+1, v.Chapter, v.Verse, v.GlobalNumber),
				)
			}
		}
		return slices.Clone(req.Verses), nil

	default:
		return nil, NewInvalidRangeError(fmt.Sprintf("unknown playback mode %d", req.Mode))
	}
}
