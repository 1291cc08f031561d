package domain

import (
	"github.com/disgoorg/snowflake/v2"
)

// GuildStateRepository defines the interface for storing and retrieving guild states.
type GuildStateRepository interface {
	// Get returns the GuildState for the given guild, or nil if not exists.
	Get(guildID snowflake.ID) *GuildState

	// Save stores the GuildState.
	Save(state *GuildState)

	// Delete removes the GuildState for the given guild.
	Delete(guildID snowflake.ID)
}
