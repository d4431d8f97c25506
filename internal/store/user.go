package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/phrazzld/taskboard-api/internal/domain"
)

// UserStore defines the interface for user data persistence.
type UserStore interface {
	// Create saves a new user. The user must carry a hashed password.
	// Returns ErrEmailExists if the email is already registered.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID. Returns ErrUserNotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetByEmail retrieves a user by email (case-insensitive).
	// Returns ErrUserNotFound if absent.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// WithTx returns a UserStore that runs its queries on tx.
	WithTx(tx *sql.Tx) UserStore
}
