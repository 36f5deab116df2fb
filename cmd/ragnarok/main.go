// Standalone emergency liquidation: cancels every resting order and exits.
// Safe to run repeatedly; an empty book is a clean CONTAINED result.
package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/hetulpatel/Gladiator/internal/config"
	"github.com/hetulpatel/Gladiator/internal/events"
	"github.com/hetulpatel/Gladiator/internal/exchange"
	"github.com/hetulpatel/Gladiator/internal/journal"
	"github.com/hetulpatel/Gladiator/internal/logging"
	"github.com/hetulpatel/Gladiator/internal/safety"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	logging.InitFromEnv()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("[ragnarok] config: %v", err)
	}

	api, err := exchange.NewClient(exchange.Config{
		Environment: cfg.Environment,
		APIKey:      cfg.KalshiAPIKey,
		BaseURL:     cfg.KalshiBaseURL,
	})
	if err != nil {
		logging.Fatalf("[ragnarok] kalshi client: %v", err)
	}
	gateway, err := exchange.NewGateway(api, cfg.Environment)
	if err != nil {
		logging.Fatalf("[ragnarok] gateway: %v", err)
	}

	store, err := journal.Open(cfg.JournalPath)
	if err != nil {
		logging.Fatalf("[ragnarok] open journal: %v", err)
	}
	defer store.Close()
	if err := store.CreateTables(ctx); err != nil {
		logging.Fatalf("[ragnarok] journal schema: %v", err)
	}
	dispatcher := events.NewDispatcher(store, nil, 0)
	defer dispatcher.Close()

	liquidator, err := safety.NewLiquidator(gateway, dispatcher)
	if err != nil {
		logging.Fatalf("[ragnarok] liquidator: %v", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	report, err := liquidator.Execute(runCtx)
	if err != nil {
		logging.Fatalf("[ragnarok] execute: %v", err)
	}

	logging.Infof("[ragnarok] %s: cancelled %d of %d resting orders", report.Status, report.CancelledCount, report.TotalCount)
	for _, f := range report.Failed {
		logging.Errorf("[ragnarok] order %s not cancelled: %s", f.OrderID, f.Reason)
	}
	if report.Status != safety.StatusContained {
		os.Exit(1)
	}
}
