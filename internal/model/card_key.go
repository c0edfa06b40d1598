package model

import "time"

// CardKey is an admin-issued code that credits a fixed amount per redemption.
type CardKey struct {
	KeyCode     string     `db:"key_code"`
	Balance     int64      `db:"balance"`
	CreatedBy   int64      `db:"created_by"`
	MaxUses     int        `db:"max_uses"`
	CurrentUses int        `db:"current_uses"`
	ExpireAt    *time.Time `db:"expire_at"`
	CreatedAt   time.Time  `db:"created_at"`
}

// Redemption records that a user redeemed a key. (KeyCode, UserID) is unique.
type Redemption struct {
	KeyCode    string    `db:"key_code"`
	UserID     int64     `db:"user_id"`
	RedeemedAt time.Time `db:"redeemed_at"`
}

// RedeemOutcome is the result kind of a redemption attempt.
type RedeemOutcome int

const (
	RedeemSuccess RedeemOutcome = iota
	RedeemNotFound
	RedeemMaxUsesReached
	RedeemExpired
	RedeemAlreadyUsed
)

func (o RedeemOutcome) String() string {
	switch o {
	case RedeemSuccess:
		return "success"
	case RedeemNotFound:
		return "not_found"
	case RedeemMaxUsesReached:
		return "max_uses_reached"
	case RedeemExpired:
		return "expired"
	case RedeemAlreadyUsed:
		return "already_used"
	default:
		return "unknown"
	}
}

// RedeemResult is returned by a redemption attempt. Credited is only
// non-zero when Outcome is RedeemSuccess.
type RedeemResult struct {
	Outcome  RedeemOutcome
	Credited int64
}

// EvaluateRedemption decides whether a redemption may proceed. Checks run in
// a fixed order and the first failing one wins: missing key, no uses left,
// expired, already redeemed by this user. Callers must hold the key's lock
// so that the inputs are authoritative.
func EvaluateRedemption(key *CardKey, alreadyRedeemed bool, now time.Time) RedeemOutcome {
	if key == nil {
		return RedeemNotFound
	}
	if key.CurrentUses >= key.MaxUses {
		return RedeemMaxUsesReached
	}
	if key.IsExpired(now) {
		return RedeemExpired
	}
	if alreadyRedeemed {
		return RedeemAlreadyUsed
	}
	return RedeemSuccess
}

// IsExpired reports whether now is past the expiry. Keys without expiry never expire.
func (k *CardKey) IsExpired(now time.Time) bool {
	return k.ExpireAt != nil && now.After(*k.ExpireAt)
}

// RemainingUses returns how many more redemptions the key accepts.
func (k *CardKey) RemainingUses() int {
	if k.CurrentUses >= k.MaxUses {
		return 0
	}
	return k.MaxUses - k.CurrentUses
}

// CardKeyState is the display state of a key in admin listings.
type CardKeyState int

const (
	CardKeyActive CardKeyState = iota
	CardKeyExpired
	CardKeyExhausted
)

// CardKeyStatus describes a key for display. DaysLeft is meaningful only
// when the key is active and has an expiry.
type CardKeyStatus struct {
	State        CardKeyState
	NeverExpires bool
	DaysLeft     int
}

// Status computes the display state of the key at now. Expiry takes
// precedence over exhaustion.
func (k *CardKey) Status(now time.Time) CardKeyStatus {
	if k.IsExpired(now) {
		return CardKeyStatus{State: CardKeyExpired}
	}
	st := CardKeyStatus{State: CardKeyActive, NeverExpires: k.ExpireAt == nil}
	if k.RemainingUses() == 0 {
		st.State = CardKeyExhausted
	}
	if k.ExpireAt != nil {
		st.DaysLeft = int(k.ExpireAt.Sub(now) / (24 * time.Hour))
	}
	return st
}

// ExpiryFromDays converts a relative validity in days into an absolute
// expiry. nil means the key never expires.
func ExpiryFromDays(now time.Time, days *int) *time.Time {
	if days == nil {
		return nil
	}
	at := now.AddDate(0, 0, *days)
	return &at
}
