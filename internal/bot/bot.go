// Package bot provides the Telegram bot initialization and handler registration.
package bot

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"points-bot/internal/config"
	"points-bot/internal/handler"
	"points-bot/internal/service"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot        *tele.Bot
	cfg        *config.Config
	broadcasts *service.BroadcastService

	accountHandler *handler.AccountHandler
	adminHandler   *handler.AdminHandler
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	// Context bounds long running work such as broadcasts.
	Context        context.Context
	Config         *config.Config
	AccountService *service.AccountService
	CardKeyService *service.CardKeyService
	Recipients     service.RecipientLister
}

// userCommands is the menu shown to every user.
var userCommands = []tele.Command{
	{Text: "start", Description: "Register and get your welcome bonus"},
	{Text: "balance", Description: "Check point balance"},
	{Text: "qd", Description: "Daily check-in"},
	{Text: "invite", Description: "Get your invite link"},
	{Text: "use", Description: "Redeem a gift code"},
	{Text: "about", Description: "Learn about bot features"},
	{Text: "help", Description: "View full command list"},
}

// New creates a new Bot instance with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:  deps.Config.Bot.Token,
		Poller: &tele.LongPoller{Timeout: deps.Config.Bot.PollTimeout},
		OnError: func(err error, c tele.Context) {
			event := log.Error().Err(err)
			if c != nil {
				event = event.Str("text", c.Text())
			}
			event.Msg("Handler returned error")
		},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	ctx := deps.Context
	if ctx == nil {
		ctx = context.Background()
	}

	b := &Bot{
		bot:        teleBot,
		cfg:        deps.Config,
		broadcasts: service.NewBroadcastService(deps.Recipients, NewNotifier(teleBot), deps.Config.Broadcast.Interval),
	}

	b.accountHandler = handler.NewAccountHandler(deps.AccountService, deps.CardKeyService, deps.Config, teleBot.Me.Username)
	b.adminHandler = handler.NewAdminHandler(ctx, deps.AccountService, deps.CardKeyService, b.broadcasts, teleBot)

	b.registerMiddleware()
	b.registerHandlers()

	if err := teleBot.SetCommands(userCommands); err != nil {
		log.Warn().Err(err).Msg("Failed to set bot command menu")
	}

	return b, nil
}

// registerMiddleware registers middleware shared by every handler.
func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(LoggingMiddleware())
}

// registerHandlers registers all command handlers.
func (b *Bot) registerHandlers() {
	// Check-in also works in groups.
	b.bot.Handle("/qd", b.accountHandler.HandleCheckin)

	private := b.bot.Group()
	private.Use(PrivateChatMiddleware())
	private.Handle("/start", b.accountHandler.HandleStart)
	private.Handle("/about", b.accountHandler.HandleAbout)
	private.Handle("/help", b.accountHandler.HandleHelp)
	private.Handle("/balance", b.accountHandler.HandleBalance)
	private.Handle("/invite", b.accountHandler.HandleInvite)
	private.Handle("/use", b.accountHandler.HandleUse)

	adminGroup := b.bot.Group()
	adminGroup.Use(PrivateChatMiddleware(), AdminMiddleware(b.cfg))
	adminGroup.Handle("/addbalance", b.adminHandler.HandleAddBalance)
	adminGroup.Handle("/block", b.adminHandler.HandleBlock)
	adminGroup.Handle("/white", b.adminHandler.HandleWhite)
	adminGroup.Handle("/blacklist", b.adminHandler.HandleBlacklist)
	adminGroup.Handle("/userinfo", b.adminHandler.HandleUserInfo)
	adminGroup.Handle("/genkey", b.adminHandler.HandleGenKey)
	adminGroup.Handle("/listkeys", b.adminHandler.HandleListKeys)
	adminGroup.Handle("/broadcast", b.adminHandler.HandleBroadcast)
}

// Start starts the bot polling. It blocks until Stop is called.
func (b *Bot) Start() {
	log.Info().Str("username", b.bot.Me.Username).Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}
