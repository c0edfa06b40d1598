// Package main is the entry point for the points bot.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"points-bot/internal/bot"
	"points-bot/internal/config"
	"points-bot/internal/pkg/db"
	"points-bot/internal/pkg/logger"
	"points-bot/internal/repository"
	"points-bot/internal/repository/memory"
	"points-bot/internal/service"
)

// ledger bundles the store implementations selected by database.driver.
type ledger struct {
	users    service.UserStore
	cardKeys service.CardKeyStore
	history  service.HistoryStore
	close    func()
}

func openLedger(ctx context.Context, cfg *config.Config) (*ledger, error) {
	if cfg.Database.Driver == config.DriverMemory {
		log.Warn().Msg("Using in-memory ledger: data is lost on restart and must not be shared between instances")
		store := memory.New()
		return &ledger{
			users:    store,
			cardKeys: store.CardKeys(),
			history:  store,
			close:    func() {},
		}, nil
	}

	pool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx, pool.Pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &ledger{
		users:    repository.NewUserRepository(pool.Pool),
		cardKeys: repository.NewCardKeyRepository(pool.Pool),
		history:  repository.NewTransactionRepository(pool.Pool),
		close:    pool.Close,
	}, nil
}

func main() {
	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logCloser, err := logger.Setup(cfg.Log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure logging")
	}
	defer logCloser.Close()

	log.Info().
		Str("driver", cfg.Database.Driver).
		Int64("admin_id", cfg.Admin.ID).
		Msg("Configuration loaded successfully")

	if cfg.Admin.ID == 0 {
		log.Warn().Msg("admin.id is not set, admin commands are disabled")
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openLedger(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger")
	}
	defer store.close()

	loc, err := cfg.Checkin.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid check-in timezone")
	}

	// Initialize services
	accountService := service.NewAccountService(store.users, store.history, service.AccountSettings{
		RegistrationBonus: cfg.Rewards.Registration,
		ReferralBonus:     cfg.Rewards.Referral,
		CheckinReward:     cfg.Rewards.Checkin,
		CheckinEnabled:    cfg.Checkin.Enabled,
		Location:          loc,
	})
	cardKeyService := service.NewCardKeyService(store.cardKeys)

	telegramBot, err := bot.New(&bot.Dependencies{
		Context:        ctx,
		Config:         cfg,
		AccountService: accountService,
		CardKeyService: cardKeyService,
		Recipients:     store.users,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start bot in a goroutine
	go telegramBot.Start()

	// Wait for shutdown signal
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	// Stop running broadcasts before the poller.
	cancel()
	telegramBot.Stop()
	log.Info().Msg("Bot stopped gracefully")
}
