// Package repository provides the PostgreSQL implementation of the ledger.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"points-bot/internal/model"
)

// Common errors for repository operations.
var (
	ErrUserNotFound = errors.New("user not found")
)

// querier is implemented by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const userColumns = `user_id, username, full_name, balance, blocked, invited_by, last_checkin_date, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.UserID,
		&user.Username,
		&user.FullName,
		&user.Balance,
		&user.Blocked,
		&user.InvitedBy,
		&user.LastCheckinDate,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UserRepository handles user balances, the blacklist flag and check-ins.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository instance.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create registers a user and pays the registration bonus and, when the
// inviter exists, the referral bonus, all in one database transaction.
// It returns false without touching any balance if the user already exists.
// A self-referral or an unknown inviter is stored as no inviter.
func (r *UserRepository) Create(ctx context.Context, reg model.Registration) (bool, error) {
	created := false

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		inviter := reg.InvitedBy
		if inviter != nil && *inviter == reg.UserID {
			inviter = nil
		}
		if inviter != nil {
			var ok bool
			const existsQuery = `SELECT EXISTS(SELECT 1 FROM users WHERE user_id = $1)`
			if err := tx.QueryRow(ctx, existsQuery, *inviter).Scan(&ok); err != nil {
				return fmt.Errorf("failed to check inviter: %w", err)
			}
			if !ok {
				inviter = nil
			}
		}

		const insertQuery = `
			INSERT INTO users (user_id, username, full_name, balance, blocked, invited_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, FALSE, $5, NOW(), NOW())
			ON CONFLICT (user_id) DO NOTHING
			RETURNING user_id
		`
		var id int64
		err := tx.QueryRow(ctx, insertQuery, reg.UserID, reg.Username, reg.FullName, reg.Bonus, inviter).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to insert user: %w", err)
		}
		created = true

		if reg.Bonus > 0 {
			if err := insertTransaction(ctx, tx, reg.UserID, reg.Bonus, model.TxTypeRegistration, nil); err != nil {
				return err
			}
		}

		if inviter != nil && reg.ReferralBonus > 0 {
			if _, err := updateBalance(ctx, tx, *inviter, reg.ReferralBonus); err != nil {
				return fmt.Errorf("failed to credit inviter: %w", err)
			}
			desc := fmt.Sprintf("invited user %d", reg.UserID)
			if err := insertTransaction(ctx, tx, *inviter, reg.ReferralBonus, model.TxTypeReferral, &desc); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to create user: %w", err)
	}

	return created, nil
}

// GetByID retrieves a user by their Telegram ID.
// Returns ErrUserNotFound if the user does not exist.
func (r *UserRepository) GetByID(ctx context.Context, userID int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// Exists checks if a user with the given Telegram ID exists.
func (r *UserRepository) Exists(ctx context.Context, userID int64) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM users WHERE user_id = $1)`

	var exists bool
	err := r.pool.QueryRow(ctx, query, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}

	return exists, nil
}

// UpdateProfile refreshes the display metadata of a user.
func (r *UserRepository) UpdateProfile(ctx context.Context, userID int64, username, fullName string) error {
	const query = `
		UPDATE users
		SET username = $2, full_name = $3, updated_at = NOW()
		WHERE user_id = $1
	`

	result, err := r.pool.Exec(ctx, query, userID, username, fullName)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

// AddBalance credits amount to the user and records an audit row in the
// same transaction. The increment is done in SQL so concurrent callers
// never lose updates. Returns false if the user does not exist.
func (r *UserRepository) AddBalance(ctx context.Context, userID int64, amount int64, txType string, description *string) (bool, error) {
	updated := false

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		ok, err := updateBalance(ctx, tx, userID, amount)
		if err != nil || !ok {
			return err
		}
		updated = true
		return insertTransaction(ctx, tx, userID, amount, txType, description)
	})
	if err != nil {
		return false, fmt.Errorf("failed to add balance: %w", err)
	}

	return updated, nil
}

// Block puts the user on the blacklist. Blocking a blocked user is a no-op.
func (r *UserRepository) Block(ctx context.Context, userID int64) error {
	return r.setBlocked(ctx, userID, true)
}

// Unblock removes the user from the blacklist. Unblocking an unblocked user is a no-op.
func (r *UserRepository) Unblock(ctx context.Context, userID int64) error {
	return r.setBlocked(ctx, userID, false)
}

func (r *UserRepository) setBlocked(ctx context.Context, userID int64, blocked bool) error {
	const query = `
		UPDATE users
		SET blocked = $2, updated_at = NOW()
		WHERE user_id = $1
	`

	if _, err := r.pool.Exec(ctx, query, userID, blocked); err != nil {
		return fmt.Errorf("failed to set blocked=%t: %w", blocked, err)
	}
	return nil
}

// IsBlocked reports whether the user is blacklisted. Unknown users are not blocked.
func (r *UserRepository) IsBlocked(ctx context.Context, userID int64) (bool, error) {
	const query = `SELECT COALESCE((SELECT blocked FROM users WHERE user_id = $1), FALSE)`

	var blocked bool
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&blocked); err != nil {
		return false, fmt.Errorf("failed to check blocked: %w", err)
	}
	return blocked, nil
}

// CanCheckin is an advisory read of whether the user has not checked in on day.
// The answer may be stale by the time Checkin runs; Checkin re-checks.
func (r *UserRepository) CanCheckin(ctx context.Context, userID int64, day time.Time) (bool, error) {
	user, err := r.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return model.CanCheckinOn(user.LastCheckinDate, day), nil
}

// Checkin credits reward and stamps day as the last check-in date, only if
// the stored date differs from day. The comparison and the increment are a
// single UPDATE so concurrent check-ins for the same user yield one success.
// Returns false if the user already checked in on day or does not exist.
func (r *UserRepository) Checkin(ctx context.Context, userID int64, day time.Time, reward int64) (bool, error) {
	checkedIn := false

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const query = `
			UPDATE users
			SET balance = balance + $3, last_checkin_date = $2, updated_at = NOW()
			WHERE user_id = $1
			  AND (last_checkin_date IS NULL OR last_checkin_date <> $2)
			RETURNING user_id
		`
		var id int64
		err := tx.QueryRow(ctx, query, userID, day, reward).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		checkedIn = true

		if reward == 0 {
			return nil
		}
		return insertTransaction(ctx, tx, userID, reward, model.TxTypeCheckin, nil)
	})
	if err != nil {
		return false, fmt.Errorf("failed to check in: %w", err)
	}

	return checkedIn, nil
}

// ListBlocked returns all blacklisted users ordered by ID.
func (r *UserRepository) ListBlocked(ctx context.Context) ([]*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE blocked ORDER BY user_id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get blacklist: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// ListIDs returns the IDs of every registered user, blocked or not.
func (r *UserRepository) ListIDs(ctx context.Context) ([]int64, error) {
	const query = `SELECT user_id FROM users ORDER BY user_id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get user ids: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("failed to collect user ids: %w", err)
	}

	return ids, nil
}

// updateBalance adds amount to the user's balance inside q.
// Returns false if the user does not exist.
func updateBalance(ctx context.Context, q querier, userID int64, amount int64) (bool, error) {
	const query = `
		UPDATE users
		SET balance = balance + $2, updated_at = NOW()
		WHERE user_id = $1
	`

	result, err := q.Exec(ctx, query, userID, amount)
	if err != nil {
		return false, fmt.Errorf("failed to update balance: %w", err)
	}
	return result.RowsAffected() > 0, nil
}
