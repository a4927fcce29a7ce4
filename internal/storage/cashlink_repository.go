package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mezo-lite/internal/models"
	"github.com/mezo-lite/internal/types"
)

// CashlinkRepository handles cash link persistence
type CashlinkRepository struct {
	db *PostgresDB
}

// NewCashlinkRepository creates a new cashlink repository
func NewCashlinkRepository(db *PostgresDB) *CashlinkRepository {
	return &CashlinkRepository{db: db}
}

// Create inserts a new cash link record. Transaction hashes are unique: a
// second insert with the same hash fails rather than overwriting the code.
func (r *CashlinkRepository) Create(ctx context.Context, code, transactionHash, userIdentifier string) (*models.CashLink, error) {
	link := &models.CashLink{
		ID:              uuid.New().String(),
		Code:            code,
		TransactionHash: transactionHash,
		UserIdentifier:  userIdentifier,
		CreatedAt:       time.Now(),
	}

	query := `
		INSERT INTO cashlinks (id, code, transaction_hash, user_identifier, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		link.ID,
		link.Code,
		link.TransactionHash,
		link.UserIdentifier,
		link.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, types.NewServiceError(types.ErrCodeCashlinkExists,
				fmt.Sprintf("cashlink already recorded for transaction %s", transactionHash))
		}
		return nil, fmt.Errorf("failed to create cashlink: %w", err)
	}

	return link, nil
}

// ListByUser returns all cash links owned by the given identifier, newest
// first.
func (r *CashlinkRepository) ListByUser(ctx context.Context, userIdentifier string) ([]*models.CashLink, error) {
	query := `
		SELECT id, code, transaction_hash, user_identifier, created_at
		FROM cashlinks
		WHERE user_identifier = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Pool().Query(ctx, query, userIdentifier)
	if err != nil {
		return nil, fmt.Errorf("failed to list cashlinks: %w", err)
	}
	defer rows.Close()

	var links []*models.CashLink
	for rows.Next() {
		var link models.CashLink
		err := rows.Scan(
			&link.ID,
			&link.Code,
			&link.TransactionHash,
			&link.UserIdentifier,
			&link.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cashlink: %w", err)
		}
		links = append(links, &link)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cashlinks: %w", err)
	}

	return links, nil
}

// KnownTransactionHashes reports which of the given transaction hashes
// already have a cashlink or orphan record. Used by the reconciler.
func (r *CashlinkRepository) KnownTransactionHashes(ctx context.Context, hashes []string) (map[string]bool, error) {
	known := make(map[string]bool, len(hashes))
	if len(hashes) == 0 {
		return known, nil
	}

	query := `
		SELECT transaction_hash FROM cashlinks WHERE transaction_hash = ANY($1)
		UNION
		SELECT transaction_hash FROM cashlink_orphans WHERE transaction_hash = ANY($1)
	`

	rows, err := r.db.Pool().Query(ctx, query, hashes)
	if err != nil {
		return nil, fmt.Errorf("failed to check transaction hashes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, fmt.Errorf("failed to scan transaction hash: %w", err)
		}
		known[hash] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction hashes: %w", err)
	}

	return known, nil
}

// RecordOrphan stores a confirmed on-chain escrow creation that has no
// backend record. Idempotent per transaction hash.
func (r *CashlinkRepository) RecordOrphan(ctx context.Context, orphan *models.CashlinkOrphan) error {
	query := `
		INSERT INTO cashlink_orphans (transaction_hash, sender_address, amount, block_number, seen_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (transaction_hash) DO NOTHING
	`

	_, err := r.db.Pool().Exec(ctx, query,
		orphan.TransactionHash,
		orphan.SenderAddress,
		orphan.Amount,
		orphan.BlockNumber,
		orphan.SeenAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record orphan: %w", err)
	}

	return nil
}
