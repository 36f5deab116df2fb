// Dry-run scanner: prints the opportunities the trade engine would consider,
// without debating or trading anything.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/hetulpatel/Gladiator/internal/cache"
	"github.com/hetulpatel/Gladiator/internal/config"
	"github.com/hetulpatel/Gladiator/internal/exchange"
	"github.com/hetulpatel/Gladiator/internal/logging"
	"github.com/hetulpatel/Gladiator/internal/scout"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	logging.InitFromEnv()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("[scout] config: %v", err)
	}

	api, err := exchange.NewClient(exchange.Config{
		Environment: cfg.Environment,
		APIKey:      cfg.KalshiAPIKey,
		BaseURL:     cfg.KalshiBaseURL,
	})
	if err != nil {
		logging.Fatalf("[scout] kalshi client: %v", err)
	}

	var cooldown cache.CooldownCache
	if cfg.RedisAddr != "" {
		cooldown, err = cache.NewRedisCooldownCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CooldownTTL, "")
		if err != nil {
			logging.Errorf("[scout] cooldown cache: %v", err)
		} else {
			defer cooldown.Close()
		}
	}

	finder := scout.New(api, cooldown, scout.Config{
		PageSize:      cfg.ScanPageSize,
		MinVolume:     cfg.MinVolume,
		MinPriceCents: cfg.MinPriceCents,
		MaxPriceCents: cfg.MaxPriceCents,
	})

	opps := finder.Scan(ctx)
	logging.Infof("[scout] %d tradable candidate(s)", len(opps))
	for _, opp := range opps {
		fmt.Printf("[candidate] ticker=%s price=%dc volume=%d title=%q\n",
			opp.Ticker, opp.LastPrice, opp.Volume, opp.Title)
	}
}
