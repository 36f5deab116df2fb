package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hetulpatel/Gladiator/internal/audit"
	"github.com/hetulpatel/Gladiator/internal/cache"
	"github.com/hetulpatel/Gladiator/internal/config"
	"github.com/hetulpatel/Gladiator/internal/debate"
	"github.com/hetulpatel/Gladiator/internal/engine"
	"github.com/hetulpatel/Gladiator/internal/events"
	"github.com/hetulpatel/Gladiator/internal/exchange"
	"github.com/hetulpatel/Gladiator/internal/gates"
	"github.com/hetulpatel/Gladiator/internal/journal"
	"github.com/hetulpatel/Gladiator/internal/kafka"
	"github.com/hetulpatel/Gladiator/internal/llm"
	"github.com/hetulpatel/Gladiator/internal/logging"
	"github.com/hetulpatel/Gladiator/internal/risk"
	"github.com/hetulpatel/Gladiator/internal/safety"
	"github.com/hetulpatel/Gladiator/internal/scout"
	"github.com/hetulpatel/Gladiator/internal/sim"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logging.InitFromEnv()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("[trade-engine] config: %v", err)
	}
	logging.Infof("[trade-engine] starting in %s mode", cfg.Environment)

	api, err := exchange.NewClient(exchange.Config{
		Environment: cfg.Environment,
		APIKey:      cfg.KalshiAPIKey,
		BaseURL:     cfg.KalshiBaseURL,
	})
	if err != nil {
		logging.Fatalf("[trade-engine] kalshi client: %v", err)
	}
	gateway, err := exchange.NewGateway(api, cfg.Environment)
	if err != nil {
		// Mode mismatch is a fatal precondition, not a degradable state.
		logging.Fatalf("[trade-engine] gateway: %v", err)
	}

	store, err := journal.Open(cfg.JournalPath)
	if err != nil {
		logging.Fatalf("[trade-engine] open journal: %v", err)
	}
	defer store.Close()
	if err := store.CreateTables(ctx); err != nil {
		logging.Fatalf("[trade-engine] journal schema: %v", err)
	}

	dispatcher := newDispatcher(ctx, cfg, store)
	defer dispatcher.Close()

	llmClient, err := llm.New(llm.Config{
		APIKey:  cfg.LLMAPIKey,
		BaseURL: cfg.LLMBaseURL,
		Model:   cfg.LLMModel,
		Timeout: cfg.LLMTimeout,
	})
	if err != nil {
		logging.Fatalf("[trade-engine] llm client: %v", err)
	}
	debater, err := debate.NewCoordinator(llmClient)
	if err != nil {
		logging.Fatalf("[trade-engine] debate coordinator: %v", err)
	}
	reviewer, err := audit.NewService(audit.Config{LLMClient: llmClient})
	if err != nil {
		logging.Fatalf("[trade-engine] audit service: %v", err)
	}

	chain := gates.NewChain(gates.Config{
		MaxAge:      cfg.MaxOpportunityAge,
		MaxSpread:   cfg.MaxSpreadCents,
		MaxVariance: cfg.MaxVariance,
		Simulator:   sim.NewClient(sim.Config{BaseURL: cfg.SimURL, Timeout: cfg.SimTimeout}),
		Reviewer:    reviewer,
	})

	verdicts, cooldown := openCaches(cfg)
	if verdicts != nil {
		defer verdicts.Close()
	}
	if cooldown != nil {
		defer cooldown.Close()
	}

	kill := safety.NewKillSwitch()
	liquidator, err := safety.NewLiquidator(gateway, dispatcher)
	if err != nil {
		logging.Fatalf("[trade-engine] liquidator: %v", err)
	}
	sentinel, err := safety.NewSentinel(gateway, liquidator, kill, dispatcher, safety.SentinelConfig{
		PollInterval:    cfg.SentinelPollInterval,
		MaxDrawdownFrac: cfg.MaxDrawdownFrac,
		MaxDrawdownUSD:  cfg.MaxDrawdownUSD,
	}, nil)
	if err != nil {
		logging.Fatalf("[trade-engine] sentinel: %v", err)
	}

	eng, err := engine.New(engine.Config{
		KillSwitch:  kill,
		Debater:     debater,
		Gates:       chain,
		Sizer:       risk.NewSizer(cfg.KellyMultiplier, cfg.MaxBankrollFrac),
		Trader:      gateway,
		Dispatcher:  dispatcher,
		Journal:     store,
		Verdicts:    verdicts,
		Cooldown:    cooldown,
		CallTimeout: cfg.CallTimeout,
	})
	if err != nil {
		logging.Fatalf("[trade-engine] engine: %v", err)
	}

	if err := sentinel.Arm(ctx); err != nil {
		logging.Fatalf("[trade-engine] arm sentinel: %v", err)
	}
	if err := sentinel.Start(ctx); err != nil {
		logging.Fatalf("[trade-engine] start sentinel: %v", err)
	}
	defer sentinel.Stop()
	logging.Infof("[trade-engine] sentinel armed at baseline %.2f USD", sentinel.Baseline())

	finder := scout.New(api, cooldown, scout.Config{
		PageSize:      cfg.ScanPageSize,
		MinVolume:     cfg.MinVolume,
		MinPriceCents: cfg.MinPriceCents,
		MaxPriceCents: cfg.MaxPriceCents,
	})

	runLoop(ctx, eng, finder, kill, cfg.CycleCooldown)
	logging.Infof("[trade-engine] shutting down")
}

// runLoop scans, then feeds opportunities to the engine one at a time. One
// cycle in flight ever; the scan pause is the only pacing.
func runLoop(ctx context.Context, eng *engine.Engine, finder *scout.Scout, kill *safety.KillSwitch, pause time.Duration) {
	if pause <= 0 {
		pause = 10 * time.Second
	}
	for {
		if ctx.Err() != nil {
			return
		}
		if kill.Engaged() {
			logging.Errorf("[trade-engine] kill switch engaged, holding")
			if !sleepCtx(ctx, pause) {
				return
			}
			continue
		}

		for _, opp := range finder.Scan(ctx) {
			if ctx.Err() != nil || kill.Engaged() {
				break
			}
			outcome, err := eng.RunCycle(ctx, opp)
			if errors.Is(err, engine.ErrBusy) {
				continue
			}
			if err != nil {
				logging.Errorf("[trade-engine] cycle %s: %v", opp.Ticker, err)
				continue
			}
			logging.Infof("[trade-engine] %s -> %s", opp.Ticker, outcome.Kind)
		}

		if !sleepCtx(ctx, pause) {
			return
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// newDispatcher wires the severity dispatcher: the journal is the durable
// recorder, kafka the sink. No brokers configured means log-and-journal only.
func newDispatcher(ctx context.Context, cfg *config.Config, store *journal.Store) *events.Dispatcher {
	brokers := cfg.KafkaBrokers
	if len(brokers) == 0 {
		logging.Warnf("[trade-engine] no kafka brokers configured, events stay local")
		return events.NewDispatcher(store, nil, 0)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 45*time.Second)
	err := kafka.WaitForBroker(waitCtx, brokers)
	cancel()
	if err != nil {
		logging.Errorf("[trade-engine] kafka unreachable, events stay local: %v", err)
		return events.NewDispatcher(store, nil, 0)
	}

	ensureCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if err := kafka.EnsureTopic(ensureCtx, brokers, cfg.EventTopic); err != nil {
		logging.Errorf("[trade-engine] ensure topic warning: %v", err)
	}
	cancel()

	publisher := events.NewKafkaPublisher(kafka.NewWriter(brokers, cfg.EventTopic))
	return events.NewDispatcher(store, publisher, 0)
}

func openCaches(cfg *config.Config) (cache.VerdictCache, cache.CooldownCache) {
	if cfg.RedisAddr == "" {
		logging.Warnf("[trade-engine] no redis configured, verdict and cooldown caches disabled")
		return nil, nil
	}
	verdicts, err := cache.NewRedisVerdictCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.VerdictTTL, "")
	if err != nil {
		logging.Errorf("[trade-engine] verdict cache: %v", err)
		verdicts = nil
	}
	cooldown, err := cache.NewRedisCooldownCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CooldownTTL, "")
	if err != nil {
		logging.Errorf("[trade-engine] cooldown cache: %v", err)
		cooldown = nil
	}
	return verdicts, cooldown
}
