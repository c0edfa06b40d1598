package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"points-bot/internal/model"
)

// MaxCardKeyCodeLength matches the key_code column width.
const MaxCardKeyCodeLength = 255

// GenerateKeyRequest describes a card key to create. A nil ExpireDays
// means the key never expires.
type GenerateKeyRequest struct {
	Code       string
	Points     int64
	MaxUses    int
	ExpireDays *int
	CreatedBy  int64
}

// CardKeyService handles card key generation and redemption.
type CardKeyService struct {
	keys CardKeyStore
	now  func() time.Time
}

// NewCardKeyService creates a new CardKeyService instance.
func NewCardKeyService(keys CardKeyStore) *CardKeyService {
	return &CardKeyService{keys: keys, now: time.Now}
}

// Generate validates req and stores the key with zero uses.
func (s *CardKeyService) Generate(ctx context.Context, req GenerateKeyRequest) (*model.CardKey, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" || utf8.RuneCountInString(code) > MaxCardKeyCodeLength {
		return nil, ErrInvalidCode
	}
	if req.Points <= 0 {
		return nil, ErrInvalidPoints
	}
	if req.MaxUses <= 0 {
		return nil, ErrInvalidMaxUses
	}
	if req.ExpireDays != nil && *req.ExpireDays <= 0 {
		return nil, ErrInvalidExpireDays
	}

	key := &model.CardKey{
		KeyCode:   code,
		Balance:   req.Points,
		CreatedBy: req.CreatedBy,
		MaxUses:   req.MaxUses,
		ExpireAt:  model.ExpiryFromDays(s.now(), req.ExpireDays),
	}

	created, err := s.keys.Create(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to generate card key: %w", err)
	}
	if !created {
		return nil, ErrCardKeyExists
	}

	log.Info().
		Int64("admin_id", req.CreatedBy).
		Str("key_code", code).
		Int64("points", req.Points).
		Int("max_uses", req.MaxUses).
		Str("operation", "genkey").
		Msg("Admin operation executed")

	return key, nil
}

// List returns every card key, newest first.
func (s *CardKeyService) List(ctx context.Context) ([]*model.CardKey, error) {
	keys, err := s.keys.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list card keys: %w", err)
	}
	return keys, nil
}

// Redeem applies code for userID. Business rejections are reported in the
// result outcome; the error is only set for storage failures.
func (s *CardKeyService) Redeem(ctx context.Context, userID int64, code string) (model.RedeemResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return model.RedeemResult{}, ErrInvalidCode
	}

	result, err := s.keys.Use(ctx, code, userID, s.now())
	if err != nil {
		return model.RedeemResult{}, err
	}

	log.Info().
		Int64("user_id", userID).
		Str("key_code", code).
		Stringer("outcome", result.Outcome).
		Int64("credited", result.Credited).
		Msg("Card key redemption")

	return result, nil
}
