// Property-based tests for card key redemption rules.
package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

// TestEvaluateRedemptionOrderProperty checks that the first failing
// condition always decides the outcome, in the order
// not found, max uses, expired, already used.
func TestEvaluateRedemptionOrderProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		now := time.Unix(rapid.Int64Range(1e9, 2e9).Draw(t, "now"), 0)

		maxUses := rapid.IntRange(1, 100).Draw(t, "maxUses")
		currentUses := rapid.IntRange(0, maxUses).Draw(t, "currentUses")
		alreadyRedeemed := rapid.Bool().Draw(t, "alreadyRedeemed")

		var expireAt *time.Time
		if rapid.Bool().Draw(t, "hasExpiry") {
			offset := time.Duration(rapid.Int64Range(-72, 72).Draw(t, "offsetHours")) * time.Hour
			at := now.Add(offset)
			expireAt = &at
		}

		key := &CardKey{KeyCode: "k", Balance: 10, MaxUses: maxUses, CurrentUses: currentUses, ExpireAt: expireAt}
		got := EvaluateRedemption(key, alreadyRedeemed, now)

		var want RedeemOutcome
		switch {
		case currentUses >= maxUses:
			want = RedeemMaxUsesReached
		case expireAt != nil && now.After(*expireAt):
			want = RedeemExpired
		case alreadyRedeemed:
			want = RedeemAlreadyUsed
		default:
			want = RedeemSuccess
		}

		if got != want {
			t.Fatalf("outcome mismatch: uses=%d/%d expireAt=%v already=%v want=%s got=%s",
				currentUses, maxUses, expireAt, alreadyRedeemed, want, got)
		}
	})
}

// TestEvaluateRedemptionMissingKeyProperty checks that a missing key is
// reported as not found regardless of the other inputs.
func TestEvaluateRedemptionMissingKeyProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		now := time.Unix(rapid.Int64Range(0, 2e9).Draw(t, "now"), 0)
		already := rapid.Bool().Draw(t, "already")

		if got := EvaluateRedemption(nil, already, now); got != RedeemNotFound {
			t.Fatalf("expected not_found for nil key, got %s", got)
		}
	})
}

func TestEvaluateRedemption_ExhaustedBeatsAlreadyUsed(t *testing.T) {
	key := &CardKey{MaxUses: 1, CurrentUses: 1}
	assert.Equal(t, RedeemMaxUsesReached, EvaluateRedemption(key, true, time.Now()))
}

func TestEvaluateRedemption_ExpiredWithUsesLeft(t *testing.T) {
	now := time.Now()
	past := now.AddDate(0, 0, -1)
	key := &CardKey{MaxUses: 10, ExpireAt: &past}
	assert.Equal(t, RedeemExpired, EvaluateRedemption(key, false, now))
}

func TestCardKey_Status(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	inTenDays := now.Add(10*24*time.Hour + time.Hour)
	yesterday := now.Add(-24 * time.Hour)

	tests := []struct {
		name string
		key  CardKey
		want CardKeyStatus
	}{
		{"never expires", CardKey{MaxUses: 2}, CardKeyStatus{State: CardKeyActive, NeverExpires: true}},
		{"days left", CardKey{MaxUses: 2, ExpireAt: &inTenDays}, CardKeyStatus{State: CardKeyActive, DaysLeft: 10}},
		{"expired", CardKey{MaxUses: 2, ExpireAt: &yesterday}, CardKeyStatus{State: CardKeyExpired}},
		{"exhausted", CardKey{MaxUses: 2, CurrentUses: 2}, CardKeyStatus{State: CardKeyExhausted, NeverExpires: true}},
		{"expired wins over exhausted", CardKey{MaxUses: 1, CurrentUses: 1, ExpireAt: &yesterday}, CardKeyStatus{State: CardKeyExpired}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.key.Status(now))
		})
	}
}

func TestExpiryFromDays(t *testing.T) {
	now := time.Date(2025, 1, 30, 8, 0, 0, 0, time.UTC)
	assert.Nil(t, ExpiryFromDays(now, nil))

	days := 7
	at := ExpiryFromDays(now, &days)
	if assert.NotNil(t, at) {
		assert.Equal(t, time.Date(2025, 2, 6, 8, 0, 0, 0, time.UTC), *at)
	}
}
