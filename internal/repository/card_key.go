package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"points-bot/internal/model"
)

const cardKeyColumns = `key_code, balance, created_by, max_uses, current_uses, expire_at, created_at`

func scanCardKey(row pgx.Row) (*model.CardKey, error) {
	var key model.CardKey
	err := row.Scan(
		&key.KeyCode,
		&key.Balance,
		&key.CreatedBy,
		&key.MaxUses,
		&key.CurrentUses,
		&key.ExpireAt,
		&key.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &key, nil
}

// CardKeyRepository handles card key creation and redemption.
type CardKeyRepository struct {
	pool *pgxpool.Pool
}

// NewCardKeyRepository creates a new CardKeyRepository instance.
func NewCardKeyRepository(pool *pgxpool.Pool) *CardKeyRepository {
	return &CardKeyRepository{pool: pool}
}

// Create stores a new card key with zero uses. Returns false if the code
// is already taken.
func (r *CardKeyRepository) Create(ctx context.Context, key *model.CardKey) (bool, error) {
	const query = `
		INSERT INTO card_keys (key_code, balance, created_by, max_uses, current_uses, expire_at, created_at)
		VALUES ($1, $2, $3, $4, 0, $5, NOW())
		ON CONFLICT (key_code) DO NOTHING
		RETURNING created_at
	`

	err := r.pool.QueryRow(ctx, query, key.KeyCode, key.Balance, key.CreatedBy, key.MaxUses, key.ExpireAt).
		Scan(&key.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create card key: %w", err)
	}

	key.CurrentUses = 0
	return true, nil
}

// List returns every card key, newest first.
func (r *CardKeyRepository) List(ctx context.Context) ([]*model.CardKey, error) {
	query := `SELECT ` + cardKeyColumns + ` FROM card_keys ORDER BY created_at DESC, key_code`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list card keys: %w", err)
	}
	defer rows.Close()

	var keys []*model.CardKey
	for rows.Next() {
		key, err := scanCardKey(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card key: %w", err)
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating card keys: %w", err)
	}

	return keys, nil
}

// Use redeems code for userID. The key row is locked with FOR UPDATE for
// the whole transaction, so redemptions of one key are serialized across
// processes and a key can never be used more than max_uses times.
// On success the use counter, the redemption row, the user's balance and
// the audit row are written together.
func (r *CardKeyRepository) Use(ctx context.Context, code string, userID int64, now time.Time) (model.RedeemResult, error) {
	var result model.RedeemResult

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		query := `SELECT ` + cardKeyColumns + ` FROM card_keys WHERE key_code = $1 FOR UPDATE`

		key, err := scanCardKey(tx.QueryRow(ctx, query, code))
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("failed to lock card key: %w", err)
		}

		alreadyUsed := false
		if key != nil {
			const usedQuery = `SELECT EXISTS(SELECT 1 FROM card_key_redemptions WHERE key_code = $1 AND user_id = $2)`
			if err := tx.QueryRow(ctx, usedQuery, code, userID).Scan(&alreadyUsed); err != nil {
				return fmt.Errorf("failed to check redemption: %w", err)
			}
		}

		result.Outcome = model.EvaluateRedemption(key, alreadyUsed, now)
		if result.Outcome != model.RedeemSuccess {
			return nil
		}

		const incrementQuery = `UPDATE card_keys SET current_uses = current_uses + 1 WHERE key_code = $1`
		if _, err := tx.Exec(ctx, incrementQuery, code); err != nil {
			return fmt.Errorf("failed to increment uses: %w", err)
		}

		const redemptionQuery = `INSERT INTO card_key_redemptions (key_code, user_id, redeemed_at) VALUES ($1, $2, $3)`
		if _, err := tx.Exec(ctx, redemptionQuery, code, userID, now); err != nil {
			return fmt.Errorf("failed to record redemption: %w", err)
		}

		ok, err := updateBalance(ctx, tx, userID, key.Balance)
		if err != nil {
			return err
		}
		if !ok {
			return ErrUserNotFound
		}

		desc := fmt.Sprintf("card key %s", code)
		if err := insertTransaction(ctx, tx, userID, key.Balance, model.TxTypeCardKey, &desc); err != nil {
			return err
		}

		result.Credited = key.Balance
		return nil
	})
	if err != nil {
		return model.RedeemResult{}, fmt.Errorf("failed to use card key: %w", err)
	}

	return result, nil
}
