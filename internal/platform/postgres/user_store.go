package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/platform/logger"
	"github.com/phrazzld/taskboard-api/internal/store"
)

// PostgresUserStore implements store.UserStore.
type PostgresUserStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresUserStore creates a PostgresUserStore. db must not be nil.
func NewPostgresUserStore(db store.DBTX, logger *slog.Logger) *PostgresUserStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresUserStore{
		db:     db,
		logger: logger.With(slog.String("component", "user_store")),
	}
}

var _ store.UserStore = (*PostgresUserStore)(nil)

// WithTx implements store.UserStore.
func (s *PostgresUserStore) WithTx(tx *sql.Tx) store.UserStore {
	return &PostgresUserStore{db: tx, logger: s.logger}
}

// Create implements store.UserStore.
func (s *PostgresUserStore) Create(ctx context.Context, user *domain.User) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if user.HashedPassword == "" {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, domain.ErrEmptyHashedPassword)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, hashed_password, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Name, strings.ToLower(user.Email), user.HashedPassword,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			log.Debug("email already registered", slog.String("user_id", user.ID.String()))
			return store.ErrEmailExists
		}
		log.Error("failed to create user",
			slog.String("error", err.Error()),
			slog.String("user_id", user.ID.String()))
		return MapError(err)
	}

	log.Info("user created", slog.String("user_id", user.ID.String()))
	return nil
}

// GetByID implements store.UserStore.
func (s *PostgresUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.getOne(ctx, `
		SELECT id, name, email, hashed_password, created_at, updated_at
		FROM users WHERE id = $1`, id)
}

// GetByEmail implements store.UserStore.
func (s *PostgresUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.getOne(ctx, `
		SELECT id, name, email, hashed_password, created_at, updated_at
		FROM users WHERE email = $1`, strings.ToLower(strings.TrimSpace(email)))
}

func (s *PostgresUserStore) getOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Name, &u.Email, &u.HashedPassword, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get user",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	return &u, nil
}
