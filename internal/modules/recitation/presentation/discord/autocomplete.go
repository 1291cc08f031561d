package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/samber/lo"
	"github.com/sglre6355/recitebot/internal/modules/recitation/domain"
)

// maxChoices is Discord's limit on autocomplete choices.
const maxChoices = 25

// ReciterSearch finds reciters matching a partial query.
type ReciterSearch interface {
	SearchReciters(query string, limit int) []domain.Reciter
}

// AutocompleteHandler handles autocomplete requests.
type AutocompleteHandler struct {
	reciters ReciterSearch
}

// NewAutocompleteHandler creates a new AutocompleteHandler.
func NewAutocompleteHandler(reciters ReciterSearch) *AutocompleteHandler {
	return &AutocompleteHandler{
		reciters: reciters,
	}
}

// HandleRecite handles autocomplete for the reciter option of /recite.
func (h *AutocompleteHandler) HandleRecite(s *discordgo.Session, i *discordgo.InteractionCreate) {
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{
			Choices: h.reciterChoices(i.ApplicationCommandData().Options),
		},
	})
}

// reciterChoices returns choices for the focused reciter option, if any.
func (h *AutocompleteHandler) reciterChoices(
	options []*discordgo.ApplicationCommandInteractionDataOption,
) []*discordgo.ApplicationCommandOptionChoice {
	query, ok := focusedReciterQuery(options)
	if !ok {
		return []*discordgo.ApplicationCommandOptionChoice{}
	}

	return lo.Map(
		h.reciters.SearchReciters(query, maxChoices),
		func(reciter domain.Reciter, _ int) *discordgo.ApplicationCommandOptionChoice {
			return &discordgo.ApplicationCommandOptionChoice{
				Name:  truncate(fmt.Sprintf("%s (%s)", reciter.DisplayName, reciter.ID), 100),
				Value: reciter.ID,
			}
		},
	)
}

// focusedReciterQuery walks into the subcommand to find the focused reciter option.
func focusedReciterQuery(options []*discordgo.ApplicationCommandInteractionDataOption) (string, bool) {
	for _, opt := range options {
		if opt.Type == discordgo.ApplicationCommandOptionSubCommand {
			if query, ok := focusedReciterQuery(opt.Options); ok {
				return query, true
			}
			continue
		}
		if opt.Name == optionReciter && opt.Focused {
			query, _ := opt.Value.(string)
			return query, true
		}
	}
	return "", false
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
