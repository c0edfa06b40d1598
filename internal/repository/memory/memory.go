// Package memory provides an in-process ledger with the same contract as the
// PostgreSQL repositories. A single mutex makes every operation atomic, which
// is only sufficient while one process owns the data: use it for local runs
// and tests, never for a deployment with several bot instances.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"points-bot/internal/model"
	"points-bot/internal/repository"
)

type redemptionKey struct {
	code   string
	userID int64
}

// Store keeps users, card keys, redemptions and the audit trail in maps.
type Store struct {
	mu          sync.Mutex
	now         func() time.Time
	users       map[int64]*model.User
	keys        map[string]*model.CardKey
	redemptions map[redemptionKey]time.Time
	txs         []*model.Transaction
	nextTxID    int64
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		now:         time.Now,
		users:       make(map[int64]*model.User),
		keys:        make(map[string]*model.CardKey),
		redemptions: make(map[redemptionKey]time.Time),
	}
}

func copyUser(u *model.User) *model.User {
	c := *u
	if u.InvitedBy != nil {
		v := *u.InvitedBy
		c.InvitedBy = &v
	}
	if u.LastCheckinDate != nil {
		v := *u.LastCheckinDate
		c.LastCheckinDate = &v
	}
	return &c
}

func copyKey(k *model.CardKey) *model.CardKey {
	c := *k
	if k.ExpireAt != nil {
		v := *k.ExpireAt
		c.ExpireAt = &v
	}
	return &c
}

// record appends an audit row. Caller holds mu.
func (s *Store) record(userID, amount int64, txType string, description *string) {
	s.nextTxID++
	s.txs = append(s.txs, &model.Transaction{
		ID:          s.nextTxID,
		UserID:      userID,
		Amount:      amount,
		Type:        txType,
		Description: description,
		CreatedAt:   s.now(),
	})
}

// Create registers a user with the same semantics as UserRepository.Create.
func (s *Store) Create(_ context.Context, reg model.Registration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[reg.UserID]; ok {
		return false, nil
	}

	inviter := reg.InvitedBy
	if inviter != nil {
		if _, ok := s.users[*inviter]; !ok || *inviter == reg.UserID {
			inviter = nil
		}
	}

	now := s.now()
	user := &model.User{
		UserID:    reg.UserID,
		Username:  reg.Username,
		FullName:  reg.FullName,
		Balance:   reg.Bonus,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if inviter != nil {
		v := *inviter
		user.InvitedBy = &v
	}
	s.users[reg.UserID] = user
	if reg.Bonus > 0 {
		s.record(reg.UserID, reg.Bonus, model.TxTypeRegistration, nil)
	}

	if inviter != nil && reg.ReferralBonus > 0 {
		s.users[*inviter].Balance += reg.ReferralBonus
		s.users[*inviter].UpdatedAt = now
		desc := fmt.Sprintf("invited user %d", reg.UserID)
		s.record(*inviter, reg.ReferralBonus, model.TxTypeReferral, &desc)
	}

	return true, nil
}

// GetByID returns a copy of the user or repository.ErrUserNotFound.
func (s *Store) GetByID(_ context.Context, userID int64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return copyUser(user), nil
}

// Exists reports whether the user is registered.
func (s *Store) Exists(_ context.Context, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.users[userID]
	return ok, nil
}

// UpdateProfile refreshes display metadata.
func (s *Store) UpdateProfile(_ context.Context, userID int64, username, fullName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.Username = username
	user.FullName = fullName
	user.UpdatedAt = s.now()
	return nil
}

// AddBalance credits amount and records it. Returns false for unknown users.
func (s *Store) AddBalance(_ context.Context, userID int64, amount int64, txType string, description *string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return false, nil
	}
	if user.Balance+amount < 0 {
		return false, fmt.Errorf("balance of user %d would become negative", userID)
	}
	user.Balance += amount
	user.UpdatedAt = s.now()
	s.record(userID, amount, txType, description)
	return true, nil
}

// Block sets the blacklist flag.
func (s *Store) Block(_ context.Context, userID int64) error {
	return s.setBlocked(userID, true)
}

// Unblock clears the blacklist flag.
func (s *Store) Unblock(_ context.Context, userID int64) error {
	return s.setBlocked(userID, false)
}

func (s *Store) setBlocked(userID int64, blocked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user, ok := s.users[userID]; ok {
		user.Blocked = blocked
		user.UpdatedAt = s.now()
	}
	return nil
}

// IsBlocked reports the blacklist flag; unknown users are not blocked.
func (s *Store) IsBlocked(_ context.Context, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	return ok && user.Blocked, nil
}

// CanCheckin is the advisory eligibility read.
func (s *Store) CanCheckin(_ context.Context, userID int64, day time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return false, repository.ErrUserNotFound
	}
	return model.CanCheckinOn(user.LastCheckinDate, day), nil
}

// Checkin atomically compares the last check-in day and credits reward.
func (s *Store) Checkin(_ context.Context, userID int64, day time.Time, reward int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok || !model.CanCheckinOn(user.LastCheckinDate, day) {
		return false, nil
	}

	d := day
	user.LastCheckinDate = &d
	user.Balance += reward
	user.UpdatedAt = s.now()
	if reward != 0 {
		s.record(userID, reward, model.TxTypeCheckin, nil)
	}
	return true, nil
}

// ListBlocked returns blacklisted users ordered by ID.
func (s *Store) ListBlocked(_ context.Context) ([]*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var users []*model.User
	for _, u := range s.users {
		if u.Blocked {
			users = append(users, copyUser(u))
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].UserID < users[j].UserID })
	return users, nil
}

// ListIDs returns all user IDs in ascending order.
func (s *Store) ListIDs(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// GetByUserID returns the user's latest audit rows, newest first.
func (s *Store) GetByUserID(_ context.Context, userID int64, limit int) ([]*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.Transaction
	for i := len(s.txs) - 1; i >= 0 && len(out) < limit; i-- {
		if s.txs[i].UserID == userID {
			tx := *s.txs[i]
			out = append(out, &tx)
		}
	}
	return out, nil
}

// CardKeys is the card key view of a Store. Its method set mirrors
// repository.CardKeyRepository.
type CardKeys struct {
	s *Store
}

// CardKeys returns the card key view sharing this Store's lock and data.
func (s *Store) CardKeys() CardKeys {
	return CardKeys{s: s}
}

// Create stores a new key. Returns false if the code exists.
func (c CardKeys) Create(_ context.Context, key *model.CardKey) (bool, error) {
	s := c.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[key.KeyCode]; ok {
		return false, nil
	}
	key.CurrentUses = 0
	key.CreatedAt = s.now()
	s.keys[key.KeyCode] = copyKey(key)
	return true, nil
}

// List returns every key, newest first.
func (c CardKeys) List(_ context.Context) ([]*model.CardKey, error) {
	s := c.s
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]*model.CardKey, 0, len(s.keys))
	for _, k := range s.keys {
		keys = append(keys, copyKey(k))
	}
	sort.Slice(keys, func(i, j int) bool {
		if !keys[i].CreatedAt.Equal(keys[j].CreatedAt) {
			return keys[i].CreatedAt.After(keys[j].CreatedAt)
		}
		return keys[i].KeyCode < keys[j].KeyCode
	})
	return keys, nil
}

// Use redeems code for userID with the same rules as CardKeyRepository.Use.
func (c CardKeys) Use(_ context.Context, code string, userID int64, now time.Time) (model.RedeemResult, error) {
	s := c.s
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.keys[code]
	_, already := s.redemptions[redemptionKey{code, userID}]

	outcome := model.EvaluateRedemption(key, already, now)
	if outcome != model.RedeemSuccess {
		return model.RedeemResult{Outcome: outcome}, nil
	}

	user, ok := s.users[userID]
	if !ok {
		return model.RedeemResult{}, fmt.Errorf("failed to use card key: %w", repository.ErrUserNotFound)
	}

	key.CurrentUses++
	s.redemptions[redemptionKey{code, userID}] = now
	user.Balance += key.Balance
	user.UpdatedAt = now
	desc := fmt.Sprintf("card key %s", code)
	s.record(userID, key.Balance, model.TxTypeCardKey, &desc)

	return model.RedeemResult{Outcome: model.RedeemSuccess, Credited: key.Balance}, nil
}
