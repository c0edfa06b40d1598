package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"points-bot/internal/service"
)

// userInfoHistoryLimit is how many ledger entries /userinfo shows.
const userInfoHistoryLimit = 10

// Messenger sends and edits messages outside the reply flow of a context.
// *tele.Bot implements it.
type Messenger interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// AdminHandler handles admin-only commands. Access is enforced by the
// admin middleware before any of these run.
type AdminHandler struct {
	accounts   *service.AccountService
	cardKeys   *service.CardKeyService
	broadcasts *service.BroadcastService
	messenger  Messenger
	runCtx     context.Context
	now        func() time.Time
}

// NewAdminHandler creates a new AdminHandler. runCtx bounds broadcasts so
// that shutting down the bot stops a running fan-out.
func NewAdminHandler(
	runCtx context.Context,
	accounts *service.AccountService,
	cardKeys *service.CardKeyService,
	broadcasts *service.BroadcastService,
	messenger Messenger,
) *AdminHandler {
	return &AdminHandler{
		accounts:   accounts,
		cardKeys:   cardKeys,
		broadcasts: broadcasts,
		messenger:  messenger,
		runCtx:     runCtx,
		now:        time.Now,
	}
}

// parseUserID parses the first argument as a Telegram user ID.
func parseUserID(args []string) (int64, bool) {
	if len(args) == 0 {
		return 0, false
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	return id, err == nil
}

// HandleAddBalance handles /addbalance <user_id> <amount>.
func (h *AdminHandler) HandleAddBalance(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	if len(args) < 2 {
		return c.Reply(usageAddBalance)
	}

	targetID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return c.Reply(msgInvalidNumbers)
	}
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return c.Reply(msgInvalidNumbers)
	}

	user, err := h.accounts.AddBalance(ctx, sender.ID, targetID, amount)
	if err != nil {
		return replyError(c, "addbalance", err)
	}

	return c.Reply(fmt.Sprintf("✅ Successfully added %d points to user %d.\nCurrent Points: %d",
		amount, targetID, user.Balance))
}

// HandleBlock handles /block <user_id>.
func (h *AdminHandler) HandleBlock(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	if len(c.Args()) == 0 {
		return c.Reply(usageBlock)
	}
	targetID, ok := parseUserID(c.Args())
	if !ok {
		return c.Reply(msgInvalidUserID)
	}

	if err := h.accounts.Block(ctx, sender.ID, targetID); err != nil {
		return replyError(c, "block", err)
	}
	return c.Reply(fmt.Sprintf("✅ User %d has been blocked.", targetID))
}

// HandleWhite handles /white <user_id>, removing a user from the blacklist.
func (h *AdminHandler) HandleWhite(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	if len(c.Args()) == 0 {
		return c.Reply(usageWhite)
	}
	targetID, ok := parseUserID(c.Args())
	if !ok {
		return c.Reply(msgInvalidUserID)
	}

	if err := h.accounts.Unblock(ctx, sender.ID, targetID); err != nil {
		return replyError(c, "white", err)
	}
	return c.Reply(fmt.Sprintf("✅ User %d removed from blacklist.", targetID))
}

// HandleBlacklist handles /blacklist.
func (h *AdminHandler) HandleBlacklist(c tele.Context) error {
	users, err := h.accounts.Blacklist(context.Background())
	if err != nil {
		return replyError(c, "blacklist", err)
	}
	if len(users) == 0 {
		return c.Reply(msgBlacklistEmpty)
	}
	return c.Reply(blacklistMessage(users))
}

// HandleUserInfo handles /userinfo <user_id>.
func (h *AdminHandler) HandleUserInfo(c tele.Context) error {
	ctx := context.Background()

	if len(c.Args()) == 0 {
		return c.Reply(usageUserInfo)
	}
	targetID, ok := parseUserID(c.Args())
	if !ok {
		return c.Reply(msgInvalidUserID)
	}

	user, err := h.accounts.GetUser(ctx, targetID)
	if err != nil {
		return replyError(c, "userinfo", err)
	}

	history, err := h.accounts.History(ctx, targetID, userInfoHistoryLimit)
	if err != nil {
		log.Warn().Err(err).Int64("target_id", targetID).Msg("Failed to load user history")
	}

	return c.Reply(userInfoMessage(user, history))
}

// HandleGenKey handles /genkey <code> <points> [max_uses] [expire_days].
func (h *AdminHandler) HandleGenKey(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	if len(args) < 2 {
		return c.Reply(usageGenKey)
	}

	req := service.GenerateKeyRequest{
		Code:      args[0],
		MaxUses:   1,
		CreatedBy: sender.ID,
	}

	points, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return c.Reply(msgInvalidNumbers)
	}
	req.Points = points

	if len(args) > 2 {
		if req.MaxUses, err = strconv.Atoi(args[2]); err != nil {
			return c.Reply(msgInvalidNumbers)
		}
	}
	if len(args) > 3 {
		days, err := strconv.Atoi(args[3])
		if err != nil {
			return c.Reply(msgInvalidNumbers)
		}
		req.ExpireDays = &days
	}

	key, err := h.cardKeys.Generate(ctx, req)
	switch {
	case errors.Is(err, service.ErrInvalidCode):
		return c.Reply(msgCodeInvalid)
	case errors.Is(err, service.ErrInvalidPoints):
		return c.Reply(msgPointsPositive)
	case errors.Is(err, service.ErrInvalidMaxUses):
		return c.Reply(msgUsesPositive)
	case errors.Is(err, service.ErrInvalidExpireDays):
		return c.Reply(msgDaysPositive)
	case errors.Is(err, service.ErrCardKeyExists):
		return c.Reply(msgCodeExists)
	case err != nil:
		return replyError(c, "genkey", err)
	}

	return c.Reply(genKeyMessage(key, req.ExpireDays))
}

// HandleListKeys handles /listkeys.
func (h *AdminHandler) HandleListKeys(c tele.Context) error {
	keys, err := h.cardKeys.List(context.Background())
	if err != nil {
		return replyError(c, "listkeys", err)
	}
	if len(keys) == 0 {
		return c.Reply(msgNoCodes)
	}
	return c.Reply(listKeysMessage(keys, h.now()))
}

// HandleBroadcast handles /broadcast <text>, or /broadcast sent as a reply
// to the message to forward. A status message is posted when the run starts
// and edited with the final counts.
func (h *AdminHandler) HandleBroadcast(c tele.Context) error {
	sender := c.Sender()
	msg := c.Message()
	if sender == nil || msg == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Payload)
	if text == "" && msg.ReplyTo != nil {
		text = strings.TrimSpace(msg.ReplyTo.Text)
	}
	if text == "" {
		return c.Reply(usageBroadcast)
	}

	var status *tele.Message
	result, err := h.broadcasts.Broadcast(h.runCtx, sender.ID, text, func(total int) {
		m, err := h.messenger.Send(c.Chat(), broadcastStartMessage(total))
		if err != nil {
			log.Warn().Err(err).Msg("Failed to send broadcast status")
			return
		}
		status = m
	})

	var final string
	switch {
	case errors.Is(err, service.ErrBroadcastInProgress):
		return c.Reply(msgBroadcastBusy)
	case errors.Is(err, service.ErrEmptyMessage):
		return c.Reply(usageBroadcast)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		final = broadcastInterruptedMessage(result.Success, result.Failed)
	case err != nil:
		return replyError(c, "broadcast", err)
	default:
		final = broadcastDoneMessage(result.Success, result.Failed)
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Str("run_id", result.RunID).
		Int("success", result.Success).
		Int("failed", result.Failed).
		Str("operation", "broadcast").
		Msg("Admin operation executed")

	if status != nil {
		if _, err := h.messenger.Edit(status, final); err == nil {
			return nil
		}
	}
	return c.Reply(final)
}
