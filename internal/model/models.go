// Package model defines the data models for the points bot.
package model

import "time"

// User represents a registered Telegram user and their credit balance.
type User struct {
	UserID          int64      `db:"user_id"`
	Username        string     `db:"username"`
	FullName        string     `db:"full_name"`
	Balance         int64      `db:"balance"`
	Blocked         bool       `db:"blocked"`
	InvitedBy       *int64     `db:"invited_by"`
	LastCheckinDate *time.Time `db:"last_checkin_date"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

// Registration carries everything needed to create a user and pay the
// sign-up credits in one step.
type Registration struct {
	UserID        int64
	Username      string
	FullName      string
	InvitedBy     *int64
	Bonus         int64
	ReferralBonus int64
}

// Transaction is an audit record of a single balance change.
type Transaction struct {
	ID          int64     `db:"id"`
	UserID      int64     `db:"user_id"`
	Amount      int64     `db:"amount"`
	Type        string    `db:"type"`
	Description *string   `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

// Transaction types for categorizing balance changes.
const (
	TxTypeRegistration = "registration" // Sign-up bonus
	TxTypeReferral     = "referral"     // Inviter bonus
	TxTypeCheckin      = "checkin"      // Daily check-in
	TxTypeAdminAdd     = "admin_add"    // Admin added balance
	TxTypeCardKey      = "card_key"     // Card key redemption
)
