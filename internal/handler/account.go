// Package handler provides Telegram bot command handlers.
package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"points-bot/internal/config"
	"points-bot/internal/model"
	"points-bot/internal/service"
)

// AccountHandler handles the commands available to every user.
type AccountHandler struct {
	accounts    *service.AccountService
	cardKeys    *service.CardKeyService
	cfg         *config.Config
	botUsername string
}

// NewAccountHandler creates a new AccountHandler. botUsername is used to
// build invite deep links.
func NewAccountHandler(accounts *service.AccountService, cardKeys *service.CardKeyService, cfg *config.Config, botUsername string) *AccountHandler {
	return &AccountHandler{
		accounts:    accounts,
		cardKeys:    cardKeys,
		cfg:         cfg,
		botUsername: botUsername,
	}
}

// fullName joins the sender's first and last name.
func fullName(u *tele.User) string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// replyError maps service errors to fixed replies. Unknown errors are
// storage failures: they are logged and the user is asked to retry.
func replyError(c tele.Context, command string, err error) error {
	switch {
	case errors.Is(err, service.ErrUserBlocked):
		return c.Reply(msgBlocked)
	case errors.Is(err, service.ErrNotRegistered):
		return c.Reply(msgNotRegistered)
	case errors.Is(err, service.ErrUserNotFound):
		return c.Reply(msgUserNotFound)
	case errors.Is(err, service.ErrAlreadyCheckedIn):
		return c.Reply(msgAlreadyChecked)
	case errors.Is(err, service.ErrInvalidAmount):
		return c.Reply(msgAmountPositive)
	}

	event := log.Error().Err(err).Str("command", command)
	if sender := c.Sender(); sender != nil {
		event = event.Int64("user_id", sender.ID)
	}
	event.Msg("Command failed")
	return c.Reply(msgTryAgain)
}

// HandleStart handles /start [inviter_id]. New users get the registration
// bonus and, with a valid inviter, credit the inviter.
func (h *AccountHandler) HandleStart(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	var inviterID *int64
	if args := c.Args(); len(args) > 0 {
		if id, err := strconv.ParseInt(args[0], 10, 64); err == nil {
			inviterID = &id
		}
	}

	name := fullName(sender)
	res, err := h.accounts.Register(ctx, sender.ID, sender.Username, name, inviterID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", sender.ID).Msg("Registration failed")
		return c.Reply(msgRegisterFailed)
	}

	if !res.Created {
		return c.Reply(welcomeBackMessage(name))
	}
	return c.Reply(welcomeMessage(name, res.Referred, h.cfg))
}

// HandleAbout handles /about.
func (h *AccountHandler) HandleAbout(c tele.Context) error {
	return c.Reply(aboutMessage(h.cfg))
}

// HandleHelp handles /help. The admin sees the admin command list too.
func (h *AccountHandler) HandleHelp(c tele.Context) error {
	sender := c.Sender()
	isAdmin := sender != nil && h.cfg.IsAdmin(sender.ID)
	return c.Reply(helpMessage(h.cfg, isAdmin))
}

// HandleBalance handles /balance.
func (h *AccountHandler) HandleBalance(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	if err := h.accounts.EnsureAllowed(ctx, sender.ID); err != nil {
		return replyError(c, "balance", err)
	}

	user, err := h.accounts.GetUser(ctx, sender.ID)
	if err != nil {
		return replyError(c, "balance", err)
	}

	return c.Reply(balanceMessage(user.Balance))
}

// HandleCheckin handles /qd, the daily check-in.
func (h *AccountHandler) HandleCheckin(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	user, err := h.accounts.CheckIn(ctx, sender.ID)
	if errors.Is(err, service.ErrCheckinDisabled) {
		return c.Reply(checkinMaintenanceMessage(h.cfg))
	}
	if err != nil {
		return replyError(c, "qd", err)
	}

	return c.Reply(checkinSuccessMessage(h.accounts.Settings().CheckinReward, user.Balance))
}

// HandleInvite handles /invite by replying with the user's deep link.
func (h *AccountHandler) HandleInvite(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	if err := h.accounts.EnsureAllowed(ctx, sender.ID); err != nil {
		return replyError(c, "invite", err)
	}

	link := fmt.Sprintf("https://t.me/%s?start=%d", h.botUsername, sender.ID)
	return c.Reply(inviteMessage(link, h.accounts.Settings().ReferralBonus))
}

// HandleUse handles /use <code>.
func (h *AccountHandler) HandleUse(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	if err := h.accounts.EnsureAllowed(ctx, sender.ID); err != nil {
		return replyError(c, "use", err)
	}

	args := c.Args()
	if len(args) == 0 {
		return c.Reply(usageUse)
	}

	result, err := h.cardKeys.Redeem(ctx, sender.ID, args[0])
	if errors.Is(err, service.ErrInvalidCode) {
		return c.Reply(usageUse)
	}
	if err != nil {
		return replyError(c, "use", err)
	}

	switch result.Outcome {
	case model.RedeemNotFound:
		return c.Reply(msgCodeNotFound)
	case model.RedeemMaxUsesReached:
		return c.Reply(msgCodeMaxUses)
	case model.RedeemExpired:
		return c.Reply(msgCodeExpired)
	case model.RedeemAlreadyUsed:
		return c.Reply(msgCodeAlreadyUsed)
	}

	user, err := h.accounts.GetUser(ctx, sender.ID)
	if err != nil {
		return replyError(c, "use", err)
	}
	return c.Reply(redeemSuccessMessage(result.Credited, user.Balance))
}
