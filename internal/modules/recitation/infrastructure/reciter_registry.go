package infrastructure

import (
	"cmp"
	"slices"

	"github.com/samber/lo"
	"github.com/sglre6355/recitebot/internal/modules/recitation/application/ports"
	"github.com/sglre6355/recitebot/internal/modules/recitation/domain"
)

// UserRecordingsDisplayName is the display name of the user-recordings reciter.
const UserRecordingsDisplayName = "My recordings"

// StaticReciterRegistry is a fixed set of reciters known at startup.
type StaticReciterRegistry struct {
	reciters []domain.Reciter
	byID     map[string]domain.Reciter
}

// NewStaticReciterRegistry creates a registry from an ID to display name map.
// The user-recordings reciter is always registered, listed last.
func NewStaticReciterRegistry(reciters map[string]string) *StaticReciterRegistry {
	list := lo.MapToSlice(reciters, func(id, name string) domain.Reciter {
		if name == "" {
			name = id
		}
		return domain.Reciter{ID: id, DisplayName: name}
	})
	list = lo.Filter(list, func(r domain.Reciter, _ int) bool {
		return r.ID != "" && !r.IsUserRecordings()
	})
	slices.SortFunc(list, func(a, b domain.Reciter) int {
		return cmp.Or(cmp.Compare(a.DisplayName, b.DisplayName), cmp.Compare(a.ID, b.ID))
	})
	list = append(list, domain.Reciter{
		ID:          domain.UserRecordingsReciterID,
		DisplayName: UserRecordingsDisplayName,
	})

	return &StaticReciterRegistry{
		reciters: list,
		byID:     lo.KeyBy(list, func(r domain.Reciter) string { return r.ID }),
	}
}

// List returns all reciters sorted by display name, the user reciter last.
func (r *StaticReciterRegistry) List() []domain.Reciter {
	return slices.Clone(r.reciters)
}

// Get returns the reciter with the given ID.
func (r *StaticReciterRegistry) Get(id string) (domain.Reciter, bool) {
	reciter, ok := r.byID[id]
	return reciter, ok
}

// Ensure StaticReciterRegistry implements ports.ReciterRegistry.
var _ ports.ReciterRegistry = (*StaticReciterRegistry)(nil)
