package handler

import (
	"fmt"
	"strings"
	"time"

	"points-bot/internal/config"
	"points-bot/internal/model"
)

// Fixed replies.
const (
	msgNotRegistered   = "Please register with /start first."
	msgBlocked         = "You have been blocked from using this function."
	msgTryAgain        = "Operation failed, please try again later."
	msgRegisterFailed  = "Registration failed, please try again later."
	msgAlreadyChecked  = "❌ You have already checked in today, please come back tomorrow."
	msgUserNotFound    = "User does not exist."
	msgInvalidUserID   = "Invalid format, please enter a valid User ID."
	msgInvalidNumbers  = "Invalid format, please enter valid numbers."
	msgBlacklistEmpty  = "Blacklist is empty."
	msgNoCodes         = "No codes found."
	msgCodeNotFound    = "Code does not exist, please check and try again."
	msgCodeMaxUses     = "This code has reached its maximum usage limit."
	msgCodeExpired     = "This code has expired."
	msgCodeAlreadyUsed = "You have already used this code."
	msgCodeExists      = "Code already exists or creation failed, please use a different name."
	msgPointsPositive  = "Points must be greater than 0."
	msgUsesPositive    = "Max uses must be greater than 0."
	msgDaysPositive    = "Expire days must be greater than 0."
	msgCodeInvalid     = "Code must be between 1 and 255 characters."
	msgAmountPositive  = "Amount must be greater than 0."
	msgBroadcastBusy   = "A broadcast is already running, please wait for it to finish."

	usageUse        = "Usage: /use <code>\n\nExample: /use code123"
	usageAddBalance = "Usage: /addbalance <User ID> <Amount>\n\nExample: /addbalance 123456789 10"
	usageBlock      = "Usage: /block <User ID>\n\nExample: /block 123456789"
	usageWhite      = "Usage: /white <User ID>\n\nExample: /white 123456789"
	usageUserInfo   = "Usage: /userinfo <User ID>\n\nExample: /userinfo 123456789"
	usageBroadcast  = "Usage: /broadcast <text>, or reply to a message and send /broadcast"
	usageGenKey     = "Usage: /genkey <code> <points> [max_uses] [expire_days]\n\n" +
		"Example:\n" +
		"/genkey one 20 - Generate code for 20 points (Single use, never expires)\n" +
		"/genkey vip100 50 10 - Generate code for 50 points (Use 10 times, never expires)\n" +
		"/genkey temp 30 1 7 - Generate code for 30 points (Single use, expires in 7 days)"
)

// listKeysLimit caps how many keys /listkeys prints.
const listKeysLimit = 20

func welcomeMessage(fullName string, referred bool, cfg *config.Config) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🎉 Welcome, %s!\n", fullName)
	fmt.Fprintf(&sb, "You have successfully registered and received %d point(s).\n", cfg.Rewards.Registration)
	if referred {
		fmt.Fprintf(&sb, "Thanks for joining via an invite link. The inviter has received %d points.\n", cfg.Rewards.Referral)
	}
	sb.WriteString("\nQuick Start:\n" +
		"/about - Learn about bot features\n" +
		"/balance - Check point balance\n" +
		"/help - View full command list\n\n" +
		"Get More Points:\n" +
		"/qd - Daily check-in\n" +
		"/invite - Invite friends")
	if cfg.Links.ChannelURL != "" {
		fmt.Fprintf(&sb, "\nJoin Channel: %s", cfg.Links.ChannelURL)
	}
	return sb.String()
}

func welcomeBackMessage(fullName string) string {
	return fmt.Sprintf("Welcome back, %s!\n"+
		"You have already initialized.\n"+
		"Send /help to view available commands.", fullName)
}

func aboutMessage(cfg *config.Config) string {
	var sb strings.Builder
	sb.WriteString("🤖 Points Bot\n\n")
	sb.WriteString("Earning Points:\n")
	fmt.Fprintf(&sb, "- Registration bonus: %d point(s)\n", cfg.Rewards.Registration)
	fmt.Fprintf(&sb, "- Daily check-in: +%d point(s)\n", cfg.Rewards.Checkin)
	fmt.Fprintf(&sb, "- Invite friends: +%d points/person\n", cfg.Rewards.Referral)
	sb.WriteString("- Redeem gift codes (as per code value)\n")
	if cfg.Links.ChannelURL != "" {
		fmt.Fprintf(&sb, "- Join Channel: %s\n", cfg.Links.ChannelURL)
	}
	fmt.Fprintf(&sb, "\nEach verification request costs %d point(s).\n", cfg.Verify.Cost)
	sb.WriteString("\nFor more commands, send /help")
	return sb.String()
}

func helpMessage(cfg *config.Config, isAdmin bool) string {
	var sb strings.Builder
	sb.WriteString("📖 Points Bot - Help\n\n")
	sb.WriteString("User Commands:\n")
	sb.WriteString("/start - Start using (Register)\n")
	sb.WriteString("/about - Learn about bot features\n")
	sb.WriteString("/balance - Check point balance\n")
	fmt.Fprintf(&sb, "/qd - Daily check-in (+%d point(s))\n", cfg.Rewards.Checkin)
	fmt.Fprintf(&sb, "/invite - Generate invite link (+%d points/person)\n", cfg.Rewards.Referral)
	sb.WriteString("/use <code> - Redeem gift code for points\n")
	sb.WriteString("/help - View this help message\n")
	if cfg.Links.HelpURL != "" {
		fmt.Fprintf(&sb, "More Help: %s\n", cfg.Links.HelpURL)
	}

	if isAdmin {
		sb.WriteString("\nAdmin Commands:\n" +
			"/addbalance <User ID> <Points> - Add points to user\n" +
			"/block <User ID> - Block user\n" +
			"/white <User ID> - Unblock user\n" +
			"/blacklist - View blacklist\n" +
			"/userinfo <User ID> - View user and recent ledger entries\n" +
			"/genkey <code> <Points> [Times] [Days] - Generate gift code\n" +
			"/listkeys - View gift code list\n" +
			"/broadcast <Text> - Broadcast message to all users\n")
	}
	return sb.String()
}

func checkinMaintenanceMessage(cfg *config.Config) string {
	return fmt.Sprintf("⚠️ Check-in is temporarily under maintenance.\n\n"+
		"💡 You can still earn points by:\n"+
		"• Inviting friends /invite (+%d points)\n"+
		"• Redeeming a code /use <code>", cfg.Rewards.Referral)
}

func balanceMessage(balance int64) string {
	return fmt.Sprintf("💰 Point Balance\n\nCurrent Points: %d points", balance)
}

func checkinSuccessMessage(reward, balance int64) string {
	return fmt.Sprintf("✅ Check-in Successful!\nPoints Received: +%d\nCurrent Points: %d points", reward, balance)
}

func inviteMessage(link string, referral int64) string {
	return fmt.Sprintf("🎁 Your Exclusive Invite Link:\n%s\n\n"+
		"You will receive %d points for every successful registration invited.", link, referral)
}

func redeemSuccessMessage(credited, balance int64) string {
	return fmt.Sprintf("Code redeemed successfully!\nPoints Received: %d\nCurrent Points: %d", credited, balance)
}

func genKeyMessage(key *model.CardKey, expireDays *int) string {
	var sb strings.Builder
	sb.WriteString("✅ Code Generated Successfully!\n\n")
	fmt.Fprintf(&sb, "Code: %s\nPoints: %d\nMax Uses: %d\n", key.KeyCode, key.Balance, key.MaxUses)
	if expireDays != nil {
		fmt.Fprintf(&sb, "Expires In: %d days\n", *expireDays)
	} else {
		sb.WriteString("Expires: Never\n")
	}
	fmt.Fprintf(&sb, "\nUsage: /use %s", key.KeyCode)
	return sb.String()
}

func keyStatusLine(key *model.CardKey, now time.Time) string {
	st := key.Status(now)
	switch {
	case st.State == model.CardKeyExpired:
		return "Status: Expired"
	case st.State == model.CardKeyExhausted:
		return "Status: Used up"
	case st.NeverExpires:
		return "Status: Active (Never expires)"
	default:
		return fmt.Sprintf("Status: Active (%d days left)", st.DaysLeft)
	}
}

func listKeysMessage(keys []*model.CardKey, now time.Time) string {
	var sb strings.Builder
	sb.WriteString("📋 Code List:\n\n")
	for i, key := range keys {
		if i == listKeysLimit {
			break
		}
		fmt.Fprintf(&sb, "Code: %s\nPoints: %d\nUses: %d/%d\n", key.KeyCode, key.Balance, key.CurrentUses, key.MaxUses)
		sb.WriteString(keyStatusLine(key, now))
		sb.WriteString("\n---\n")
	}
	if len(keys) > listKeysLimit {
		fmt.Fprintf(&sb, "\n(Showing first %d of %d)", listKeysLimit, len(keys))
	}
	return sb.String()
}

func blacklistMessage(users []*model.User) string {
	var sb strings.Builder
	sb.WriteString("📋 Blacklist:\n\n")
	for _, u := range users {
		fmt.Fprintf(&sb, "User ID: %d\nUsername: @%s\nName: %s\n---\n", u.UserID, u.Username, u.FullName)
	}
	return sb.String()
}

func userInfoMessage(user *model.User, history []*model.Transaction) string {
	var sb strings.Builder
	sb.WriteString("👤 User Info\n━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&sb, "User ID: %d\n", user.UserID)
	if user.Username != "" {
		fmt.Fprintf(&sb, "Username: @%s\n", user.Username)
	}
	fmt.Fprintf(&sb, "Name: %s\n", user.FullName)
	fmt.Fprintf(&sb, "Points: %d\n", user.Balance)
	fmt.Fprintf(&sb, "Blocked: %t\n", user.Blocked)
	if user.InvitedBy != nil {
		fmt.Fprintf(&sb, "Invited By: %d\n", *user.InvitedBy)
	}
	if user.LastCheckinDate != nil {
		fmt.Fprintf(&sb, "Last Check-in: %s\n", user.LastCheckinDate.Format("2006-01-02"))
	}
	fmt.Fprintf(&sb, "Registered: %s\n", user.CreatedAt.Format("2006-01-02 15:04"))

	if len(history) > 0 {
		sb.WriteString("━━━━━━━━━━━━━━━\nRecent Activity:\n")
		for _, tx := range history {
			fmt.Fprintf(&sb, "%s %+d %s", tx.CreatedAt.Format("01-02 15:04"), tx.Amount, tx.Type)
			if tx.Description != nil {
				fmt.Fprintf(&sb, " (%s)", *tx.Description)
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func broadcastStartMessage(total int) string {
	return fmt.Sprintf("📢 Starting broadcast to %d users...", total)
}

func broadcastDoneMessage(success, failed int) string {
	return fmt.Sprintf("✅ Broadcast Complete!\nSuccess: %d\nFailed: %d", success, failed)
}

func broadcastInterruptedMessage(success, failed int) string {
	return fmt.Sprintf("⚠️ Broadcast Interrupted!\nSuccess: %d\nFailed: %d", success, failed)
}
