package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"points-bot/internal/model"
)

// AccountSettings holds the reward amounts and check-in behaviour.
type AccountSettings struct {
	RegistrationBonus int64
	ReferralBonus     int64
	CheckinReward     int64
	CheckinEnabled    bool
	Location          *time.Location
}

// RegisterResult reports what Register did.
type RegisterResult struct {
	User     *model.User
	Created  bool
	Referred bool
}

// AccountService handles registration, check-ins and admin balance operations.
type AccountService struct {
	users    UserStore
	history  HistoryStore
	settings AccountSettings
	now      func() time.Time
}

// NewAccountService creates a new AccountService instance.
func NewAccountService(users UserStore, history HistoryStore, settings AccountSettings) *AccountService {
	if settings.Location == nil {
		settings.Location = time.Local
	}
	return &AccountService{
		users:    users,
		history:  history,
		settings: settings,
		now:      time.Now,
	}
}

// Settings returns the configured reward amounts.
func (s *AccountService) Settings() AccountSettings {
	return s.settings
}

// Register creates the user if needed. An existing user only gets their
// display metadata refreshed and no credits. inviterID is honoured only
// on creation and only when it names another registered user.
func (s *AccountService) Register(ctx context.Context, userID int64, username, fullName string, inviterID *int64) (*RegisterResult, error) {
	created, err := s.users.Create(ctx, model.Registration{
		UserID:        userID,
		Username:      username,
		FullName:      fullName,
		InvitedBy:     inviterID,
		Bonus:         s.settings.RegistrationBonus,
		ReferralBonus: s.settings.ReferralBonus,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	if !created {
		if err := s.users.UpdateProfile(ctx, userID, username, fullName); err != nil {
			log.Warn().Err(err).Int64("user_id", userID).Msg("Failed to refresh user profile")
		}
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load registered user: %w", err)
	}

	result := &RegisterResult{User: user, Created: created}
	if created && user.InvitedBy != nil {
		result.Referred = true
		log.Info().
			Int64("user_id", userID).
			Int64("inviter_id", *user.InvitedBy).
			Int64("referral_bonus", s.settings.ReferralBonus).
			Msg("Referral credited")
	}

	return result, nil
}

// GetUser retrieves a user by their Telegram ID.
func (s *AccountService) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	return s.users.GetByID(ctx, userID)
}

// EnsureAllowed returns ErrUserBlocked for blacklisted users and
// ErrNotRegistered for unknown ones, in that order.
func (s *AccountService) EnsureAllowed(ctx context.Context, userID int64) error {
	blocked, err := s.users.IsBlocked(ctx, userID)
	if err != nil {
		return err
	}
	if blocked {
		return ErrUserBlocked
	}

	exists, err := s.users.Exists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotRegistered
	}
	return nil
}

// CheckIn grants the daily reward once per calendar day in the configured
// time zone and returns the updated user.
func (s *AccountService) CheckIn(ctx context.Context, userID int64) (*model.User, error) {
	if !s.settings.CheckinEnabled {
		return nil, ErrCheckinDisabled
	}
	if err := s.EnsureAllowed(ctx, userID); err != nil {
		return nil, err
	}

	day := model.CheckinDay(s.now(), s.settings.Location)

	can, err := s.users.CanCheckin(ctx, userID, day)
	if err != nil {
		return nil, fmt.Errorf("failed to check check-in eligibility: %w", err)
	}
	if !can {
		return nil, ErrAlreadyCheckedIn
	}

	// The advisory read above may race with another request; Checkin decides.
	ok, err := s.users.Checkin(ctx, userID, day, s.settings.CheckinReward)
	if err != nil {
		return nil, fmt.Errorf("failed to check in: %w", err)
	}
	if !ok {
		return nil, ErrAlreadyCheckedIn
	}

	return s.users.GetByID(ctx, userID)
}

// AddBalance credits amount to targetID on behalf of adminID.
func (s *AccountService) AddBalance(ctx context.Context, adminID, targetID, amount int64) (*model.User, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	desc := fmt.Sprintf("added by admin %d", adminID)
	ok, err := s.users.AddBalance(ctx, targetID, amount, model.TxTypeAdminAdd, &desc)
	if err != nil {
		return nil, fmt.Errorf("failed to add balance: %w", err)
	}
	if !ok {
		return nil, ErrUserNotFound
	}

	log.Info().
		Int64("admin_id", adminID).
		Int64("target_id", targetID).
		Int64("amount", amount).
		Str("operation", "add_balance").
		Msg("Admin operation executed")

	return s.users.GetByID(ctx, targetID)
}

// Block blacklists targetID. Blocking an already blocked user succeeds.
func (s *AccountService) Block(ctx context.Context, adminID, targetID int64) error {
	return s.setBlocked(ctx, adminID, targetID, true)
}

// Unblock removes targetID from the blacklist.
func (s *AccountService) Unblock(ctx context.Context, adminID, targetID int64) error {
	return s.setBlocked(ctx, adminID, targetID, false)
}

func (s *AccountService) setBlocked(ctx context.Context, adminID, targetID int64, blocked bool) error {
	exists, err := s.users.Exists(ctx, targetID)
	if err != nil {
		return fmt.Errorf("failed to check user: %w", err)
	}
	if !exists {
		return ErrUserNotFound
	}

	operation := "block"
	if blocked {
		err = s.users.Block(ctx, targetID)
	} else {
		operation = "unblock"
		err = s.users.Unblock(ctx, targetID)
	}
	if err != nil {
		return fmt.Errorf("failed to %s user: %w", operation, err)
	}

	log.Info().
		Int64("admin_id", adminID).
		Int64("target_id", targetID).
		Str("operation", operation).
		Msg("Admin operation executed")
	return nil
}

// Blacklist returns every blocked user.
func (s *AccountService) Blacklist(ctx context.Context) ([]*model.User, error) {
	users, err := s.users.ListBlocked(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get blacklist: %w", err)
	}
	return users, nil
}

// History returns the user's most recent ledger entries.
func (s *AccountService) History(ctx context.Context, userID int64, limit int) ([]*model.Transaction, error) {
	if s.history == nil {
		return nil, nil
	}
	txs, err := s.history.GetByUserID(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	return txs, nil
}

// IsUserError reports whether err is one of the business errors above
// rather than a storage failure.
func IsUserError(err error) bool {
	for _, target := range []error{
		ErrUserNotFound, ErrNotRegistered, ErrUserBlocked, ErrInvalidAmount,
		ErrCheckinDisabled, ErrAlreadyCheckedIn, ErrInvalidCode, ErrInvalidPoints,
		ErrInvalidMaxUses, ErrInvalidExpireDays, ErrCardKeyExists, ErrEmptyMessage,
		ErrBroadcastInProgress,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
