// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/ashureev/shsh-autopilot/internal/domain"
)

// ErrUserExists is returned by CreateUser when the user was already onboarded.
var ErrUserExists = errors.New("user already exists")

// Repository defines the interface for persisting onboarded users and their credentials.
type Repository interface {
	// GetUser retrieves a user by their user ID. It returns nil, nil when the
	// user has not been onboarded.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// CreateUser inserts a new user. Existing users are never updated;
	// a second insert for the same ID returns ErrUserExists.
	CreateUser(ctx context.Context, user *domain.User) error

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
