package usecases

import (
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/recitebot/internal/modules/recitation/domain"
)

// Re-export domain types for presentation layer use.

// PlaybackRequest is an alias for domain.PlaybackRequest.
type PlaybackRequest = domain.PlaybackRequest

// SessionSnapshot is an alias for domain.SessionSnapshot.
type SessionSnapshot = domain.SessionSnapshot

// Reciter is an alias for domain.Reciter.
type Reciter = domain.Reciter

// ControllerRepository stores the playback controller of each guild.
type ControllerRepository interface {
	// Get returns the controller for the guild, or nil if none exists.
	Get(guildID snowflake.ID) *PlaybackController

	// Save stores the controller for the guild.
	Save(guildID snowflake.ID, controller *PlaybackController)

	// Delete removes the controller for the guild.
	Delete(guildID snowflake.ID)

	// All returns every stored controller.
	All() []*PlaybackController
}

// ControllerFactory builds a controller wired to a guild's audio device and
// content viewer.
type ControllerFactory func(guildID snowflake.ID) *PlaybackController
