// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"time"

	"points-bot/internal/model"
	"points-bot/internal/repository"
)

// Common errors returned by the services. Handlers map each of them to a
// fixed reply; anything else is a storage failure.
var (
	ErrUserNotFound        = repository.ErrUserNotFound
	ErrNotRegistered       = errors.New("user not registered")
	ErrUserBlocked         = errors.New("user is blocked")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrCheckinDisabled     = errors.New("check-in is disabled")
	ErrAlreadyCheckedIn    = errors.New("already checked in today")
	ErrInvalidCode         = errors.New("invalid card key code")
	ErrInvalidPoints       = errors.New("card key points must be positive")
	ErrInvalidMaxUses      = errors.New("card key max uses must be positive")
	ErrInvalidExpireDays   = errors.New("card key expire days must be positive")
	ErrCardKeyExists       = errors.New("card key already exists")
	ErrEmptyMessage        = errors.New("broadcast message is empty")
	ErrBroadcastInProgress = errors.New("broadcast already in progress")
)

// UserStore is the user side of the ledger. It is implemented by
// repository.UserRepository and memory.Store.
type UserStore interface {
	Exists(ctx context.Context, userID int64) (bool, error)
	GetByID(ctx context.Context, userID int64) (*model.User, error)
	Create(ctx context.Context, reg model.Registration) (bool, error)
	UpdateProfile(ctx context.Context, userID int64, username, fullName string) error
	AddBalance(ctx context.Context, userID int64, amount int64, txType string, description *string) (bool, error)
	Block(ctx context.Context, userID int64) error
	Unblock(ctx context.Context, userID int64) error
	IsBlocked(ctx context.Context, userID int64) (bool, error)
	CanCheckin(ctx context.Context, userID int64, day time.Time) (bool, error)
	Checkin(ctx context.Context, userID int64, day time.Time, reward int64) (bool, error)
	ListBlocked(ctx context.Context) ([]*model.User, error)
	ListIDs(ctx context.Context) ([]int64, error)
}

// CardKeyStore is implemented by repository.CardKeyRepository and memory.CardKeys.
type CardKeyStore interface {
	Create(ctx context.Context, key *model.CardKey) (bool, error)
	List(ctx context.Context) ([]*model.CardKey, error)
	Use(ctx context.Context, code string, userID int64, now time.Time) (model.RedeemResult, error)
}

// HistoryStore reads the balance audit trail.
type HistoryStore interface {
	GetByUserID(ctx context.Context, userID int64, limit int) ([]*model.Transaction, error)
}

// RecipientLister lists every user a broadcast goes to.
type RecipientLister interface {
	ListIDs(ctx context.Context) ([]int64, error)
}

// Notifier delivers a plain text message to a user's private chat.
type Notifier interface {
	Notify(ctx context.Context, userID int64, text string) error
}
