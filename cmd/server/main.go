package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"turnstile/internal/api"
	"turnstile/internal/chat"
	"turnstile/internal/config"
	"turnstile/internal/db"
	"turnstile/internal/entitlement"
	"turnstile/internal/gate"
	"turnstile/internal/shortener"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting server", "name", cfg.Server.Name)

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.Info("database opened", "path", cfg.Database.Path)

	accounts := db.NewAccountRepository(database)
	tokens := db.NewTokenRepository(database)
	grants := db.NewGrantRepository(database)
	items := db.NewItemRepository(database)
	referrals := db.NewReferralRepository(database)
	channels := db.NewChannelRepository(database)
	ledger := db.NewLedgerRepository(database)

	cleanupService := db.NewCleanupService(tokens)
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	go cleanupService.Start(cleanupCtx)

	membership, err := chat.NewClient(cfg.Chat.APIBase, cfg.Chat.BotToken, cfg.Chat.Timeout)
	if err != nil {
		slog.Error("failed to reach chat API", "error", err)
		os.Exit(1)
	}
	links := shortener.NewClient(cfg.Shortener.APIBase, cfg.Shortener.APIKey, cfg.Shortener.Timeout)

	trusted := make(map[string]bool, len(cfg.Admin.TrustedIDs))
	for _, id := range cfg.Admin.TrustedIDs {
		trusted[id] = true
	}

	engine := entitlement.NewService(
		entitlement.Config{
			AccessTTL:     cfg.Entitlement.AccessTTL,
			TokenTTL:      cfg.Entitlement.TokenTTL,
			CreditCycle:   cfg.Entitlement.CreditCycle,
			CreditCap:     cfg.Entitlement.CreditCap,
			EarnAmount:    cfg.Entitlement.EarnAmount,
			UnlockCost:    cfg.Entitlement.UnlockCost,
			ReferralAward: cfg.Entitlement.ReferralAward,
			BaseURL:       cfg.Server.BaseURL,
			TrustedAdmins: trusted,
		},
		accounts,
		tokens,
		grants,
		items,
		referrals,
		gate.New(channels, membership),
		links,
	)

	server := api.NewServer(cfg, database, engine, accounts, channels, items, ledger)

	addr := cfg.Addr()
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server,
	}

	go func() {
		slog.Info("server listening", "addr", addr, "base_url", cfg.Server.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down")

	cleanupCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}
