package ports

import "github.com/sglre6355/recitebot/internal/modules/recitation/domain"

// ReciterRegistry lists the reciters a request may name.
type ReciterRegistry interface {
	// List returns all registered reciters, including the user-recordings sentinel.
	List() []domain.Reciter

	// Get returns the reciter with the given ID, or false if unknown.
	Get(id string) (domain.Reciter, bool)
}
