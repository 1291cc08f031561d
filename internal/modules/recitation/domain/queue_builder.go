package domain

// DefaultInfiniteVerseRepeatCap bounds per-verse Infinite expansion.
// True endless repetition comes from the range-level loop.
const DefaultInfiniteVerseRepeatCap = 10

// PreambleRule reports whether a preamble item must precede a verse.
type PreambleRule func(VerseRef) bool

// DefaultPreambleRule inserts the preamble before the first verse of every
// chapter except chapter 1 (which opens with it) and chapter 9.
func DefaultPreambleRule(v VerseRef) bool {
	return v.IsFirstInChapter() && v.Chapter != 1 && v.Chapter != 9
}

// QueueBuilder flattens verses into a repeat-expanded playback queue.
type QueueBuilder struct {
	infiniteCap int
}

// NewQueueBuilder creates a QueueBuilder. infiniteCap is the number of
// repetitions emitted for a per-verse Infinite repeat; values below 1 use
// DefaultInfiniteVerseRepeatCap.
func NewQueueBuilder(infiniteCap int) *QueueBuilder {
	if infiniteCap < 1 {
		infiniteCap = DefaultInfiniteVerseRepeatCap
	}
	return &QueueBuilder{infiniteCap: infiniteCap}
}

// Build emits, for each verse in order, an optional preamble followed by
// the verse repeated perVerseRepeat times. The preamble decision looks only
// at the verse itself, never at its neighbours, and is never repeated.
// A nil rule disables preambles.
func (b *QueueBuilder) Build(verses []VerseRef, perVerseRepeat Repeat, rule PreambleRule) []QueueItem {
	repeats := b.expansion(perVerseRepeat)

	queue := make([]QueueItem, 0, len(verses)*repeats)
	for _, v := range verses {
		if rule != nil && rule(v) {
			queue = append(queue, NewPreambleItem(v.Chapter))
		}
		for rep := range repeats {
			queue = append(queue, NewVerseItem(v, rep))
		}
	}
	return queue
}

// expansion returns how many consecutive copies of each verse are emitted.
func (b *QueueBuilder) expansion(r Repeat) int {
	switch {
	case r.IsInfinite():
		return b.infiniteCap
	case r < 1:
		return 1
	default:
		return int(r)
	}
}
