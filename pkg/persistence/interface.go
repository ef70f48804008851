package persistence

import (
	"context"
	"errors"

	"github.com/osvaldoandrade/budgetauth/pkg/domain"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when seeding a record whose id is taken
	ErrAlreadyExists = errors.New("already exists")
)

// Directory is the read-only view of users and families the authorization
// engine depends on. All backends must implement it.
type Directory interface {
	// FindUserByID returns ErrNotFound when the user does not exist
	FindUserByID(ctx context.Context, id string) (*domain.User, error)

	// FindUserByEmail matches case-insensitively
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)

	// FindFamilyByID returns ErrNotFound when the family does not exist
	FindFamilyByID(ctx context.Context, id string) (*domain.Family, error)

	// Health checks if the backend is reachable
	Health(ctx context.Context) error

	// Close releases resources held by the backend
	Close() error
}
