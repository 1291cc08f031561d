package discord

import (
	"github.com/bwmarrin/discordgo"
	"github.com/sglre6355/recitebot/internal/modules/recitation/domain"
)

// Commands returns all slash commands for the recitation module.
func Commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "recite",
			Description: "Start a recitation",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "chapter",
					Description: "Recite a whole chapter",
					Options: append([]*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "chapter",
							Description: "Chapter number",
							Required:    true,
							MinValue:    floatPtr(1),
							MaxValue:    domain.ChapterCount,
						},
					}, playbackOptions()...),
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "range",
					Description: "Recite a contiguous range of verses",
					Options: append([]*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "from",
							Description: "First verse, e.g. 2:1",
							Required:    true,
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "to",
							Description: "Last verse, e.g. 2:5",
							Required:    true,
						},
					}, playbackOptions()...),
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "verses",
					Description: "Recite a list of verses in the given order",
					Options: append([]*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "verses",
							Description: "Verses separated by commas or spaces, e.g. 1:1, 2:255",
							Required:    true,
						},
					}, playbackOptions()...),
				},
			},
		},
		{
			Name:        "pause",
			Description: "Pause the recitation",
		},
		{
			Name:        "resume",
			Description: "Resume the recitation",
		},
		{
			Name:        "stop",
			Description: "Stop the recitation",
		},
		{
			Name:        "next",
			Description: "Skip to the next verse",
		},
		{
			Name:        "previous",
			Description: "Go back to the previous verse",
		},
		{
			Name:        "speed",
			Description: "Change the recitation speed",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionNumber,
					Name:        "value",
					Description: "Playback speed",
					Required:    true,
					MinValue:    floatPtr(domain.MinSpeed),
					MaxValue:    domain.MaxSpeed,
				},
			},
		},
		{
			Name:        "nowplaying",
			Description: "Show the verse being recited",
		},
		{
			Name:        "reciters",
			Description: "List the available reciters",
		},
		{
			Name:        "leave",
			Description: "Stop reciting and leave the voice channel",
		},
	}
}

// playbackOptions returns the options shared by every /recite subcommand.
func playbackOptions() []*discordgo.ApplicationCommandOption {
	return []*discordgo.ApplicationCommandOption{
		{
			Type:         discordgo.ApplicationCommandOptionString,
			Name:         optionReciter,
			Description:  "Reciter (defaults to the server default)",
			Required:     false,
			Autocomplete: true,
		},
		{
			Type:        discordgo.ApplicationCommandOptionInteger,
			Name:        optionVerseRepeat,
			Description: "Times to repeat each verse (0 repeats forever)",
			Required:    false,
			MinValue:    floatPtr(0),
		},
		{
			Type:        discordgo.ApplicationCommandOptionInteger,
			Name:        optionRangeRepeat,
			Description: "Times to repeat the whole selection (0 repeats forever)",
			Required:    false,
			MinValue:    floatPtr(0),
		},
		{
			Type:        discordgo.ApplicationCommandOptionNumber,
			Name:        optionSpeed,
			Description: "Playback speed",
			Required:    false,
			MinValue:    floatPtr(domain.MinSpeed),
			MaxValue:    domain.MaxSpeed,
		},
	}
}

func floatPtr(f float64) *float64 {
	return &f
}
