package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mezo-lite/internal/models"
	"github.com/mezo-lite/internal/types"
)

// UserRepository handles user data persistence
type UserRepository struct {
	db *PostgresDB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *PostgresDB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, identifier, username, wallet_address, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Identifier,
		&user.Username,
		&user.WalletAddress,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Upsert creates a user keyed by identifier, or updates username and wallet
// address when the identifier already exists. Usernames are stored lowercased.
func (r *UserRepository) Upsert(ctx context.Context, identifier, username, walletAddress string) (*models.User, error) {
	now := time.Now()

	query := `
		INSERT INTO users (id, identifier, username, wallet_address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (identifier)
		DO UPDATE SET username = $3, wallet_address = $4, updated_at = $5
		RETURNING ` + userColumns

	row := r.db.Pool().QueryRow(ctx, query,
		uuid.New().String(),
		identifier,
		strings.ToLower(username),
		walletAddress,
		now,
	)

	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	return user, nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewServiceError(types.ErrCodeUserNotFound, fmt.Sprintf("user not found: %s", id))
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// Resolve finds a user whose username OR identifier matches the payload.
// Username matching is case-insensitive since usernames are stored lowercased.
func (r *UserRepository) Resolve(ctx context.Context, payload string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1 OR identifier = $2`

	user, err := scanUser(r.db.Pool().QueryRow(ctx, query, strings.ToLower(payload), payload))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewServiceError(types.ErrCodeUserNotFound, fmt.Sprintf("user not found: %s", payload))
		}
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}

	return user, nil
}
