package discord

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/samber/lo"
	"github.com/sglre6355/recitebot/internal/modules/recitation/domain"
)

// Shared /recite option names.
const (
	optionReciter     = "reciter"
	optionVerseRepeat = "verse_repeat"
	optionRangeRepeat = "range_repeat"
	optionSpeed       = "speed"
)

// requestFromSubcommand builds a playback request from a /recite subcommand.
func requestFromSubcommand(
	sub *discordgo.ApplicationCommandInteractionDataOption,
) (domain.PlaybackRequest, error) {
	options := optionMap(sub.Options)

	var req domain.PlaybackRequest
	switch sub.Name {
	case "chapter":
		req.Mode = domain.ModeWholeChapter
		if opt, ok := options["chapter"]; ok {
			req.Chapter = int(opt.IntValue())
		}
	case "range":
		from, err := domain.ParseVerseRef(stringOption(options, "from"))
		if err != nil {
			return domain.PlaybackRequest{}, err
		}
		to, err := domain.ParseVerseRef(stringOption(options, "to"))
		if err != nil {
			return domain.PlaybackRequest{}, err
		}
		verseRange := domain.NewVerseRange(from, to)
		req.Mode = domain.ModeRange
		req.Range = &verseRange
	case "verses":
		verses, err := parseVerseList(stringOption(options, "verses"))
		if err != nil {
			return domain.PlaybackRequest{}, err
		}
		req.Mode = domain.ModeCustomSet
		req.Verses = verses
	default:
		return domain.PlaybackRequest{}, fmt.Errorf("unknown subcommand %q", sub.Name)
	}

	req.ReciterID = strings.TrimSpace(stringOption(options, optionReciter))
	if opt, ok := options[optionVerseRepeat]; ok {
		req.PerVerseRepeat = repeatFromOption(opt.IntValue())
	}
	if opt, ok := options[optionRangeRepeat]; ok {
		req.RangeRepeat = repeatFromOption(opt.IntValue())
	}
	if opt, ok := options[optionSpeed]; ok {
		req.Speed = opt.FloatValue()
	}
	return req, nil
}

// parseVerseList parses references separated by commas and/or whitespace.
func parseVerseList(s string) ([]domain.VerseRef, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	if len(fields) == 0 {
		return nil, domain.NewInvalidRangeError("no verses given")
	}

	verses := make([]domain.VerseRef, 0, len(fields))
	for _, field := range fields {
		verse, err := domain.ParseVerseRef(field)
		if err != nil {
			return nil, err
		}
		verses = append(verses, verse)
	}
	return verses, nil
}

// repeatFromOption maps a user-entered count to a Repeat. Zero means forever.
func repeatFromOption(v int64) domain.Repeat {
	if v == 0 {
		return domain.Infinite
	}
	return domain.Repeat(v)
}

func optionMap(
	options []*discordgo.ApplicationCommandInteractionDataOption,
) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	return lo.KeyBy(options, func(opt *discordgo.ApplicationCommandInteractionDataOption) string {
		return opt.Name
	})
}

func stringOption(
	options map[string]*discordgo.ApplicationCommandInteractionDataOption,
	name string,
) string {
	if opt, ok := options[name]; ok {
		return opt.StringValue()
	}
	return ""
}
