package scout

import (
	"context"
	"time"

	"github.com/hetulpatel/Gladiator/internal/cache"
	"github.com/hetulpatel/Gladiator/internal/exchange"
	"github.com/hetulpatel/Gladiator/internal/logging"
	"github.com/hetulpatel/Gladiator/internal/models"
)

// MarketLister is the exchange surface the scout reads.
type MarketLister interface {
	Markets(ctx context.Context, limit int, cursor string) ([]exchange.Market, string, error)
}

// Config filters which markets become opportunities.
type Config struct {
	PageSize      int
	MinVolume     int64
	MinPriceCents int
	MaxPriceCents int
}

// Scout pages through open markets and yields tradable candidates. It never
// returns an error into the pipeline: a failed scan is an empty batch.
type Scout struct {
	markets    MarketLister
	cooldown   cache.CooldownCache
	cfg        Config
	nextCursor string
}

// New builds a scout. cooldown may be nil.
func New(markets MarketLister, cooldown cache.CooldownCache, cfg Config) *Scout {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.MinPriceCents <= 0 {
		cfg.MinPriceCents = 5
	}
	if cfg.MaxPriceCents <= 0 || cfg.MaxPriceCents >= 100 {
		cfg.MaxPriceCents = 95
	}
	return &Scout{markets: markets, cooldown: cooldown, cfg: cfg}
}

// Scan fetches one page of markets and filters it down to opportunities.
// The cursor advances across calls and wraps at the end of the listing.
func (s *Scout) Scan(ctx context.Context) []models.Opportunity {
	markets, cursor, err := s.markets.Markets(ctx, s.cfg.PageSize, s.nextCursor)
	if err != nil {
		logging.Errorf("[scout] scan failed: %v", err)
		return nil
	}
	s.nextCursor = cursor
	if cursor == "" {
		logging.Debugf("[scout] reached end of markets, resetting cursor")
	}

	observed := time.Now().UTC()
	var out []models.Opportunity
	for _, m := range markets {
		if !s.tradable(m) {
			continue
		}
		if s.cooldown != nil {
			onCooldown, err := s.cooldown.OnCooldown(ctx, m.Ticker)
			if err != nil {
				logging.Warnf("[scout] cooldown lookup %s: %v", m.Ticker, err)
			} else if onCooldown {
				logging.Debugf("[scout] skip %s: on cooldown", m.Ticker)
				continue
			}
		}
		out = append(out, models.Opportunity{
			Ticker:     m.Ticker,
			Title:      m.Title,
			LastPrice:  m.LastPrice,
			Volume:     m.Volume,
			Rules:      m.RulesPrimary,
			ObservedAt: observed,
		})
	}
	return out
}

func (s *Scout) tradable(m exchange.Market) bool {
	if m.Status != "" && m.Status != "active" && m.Status != "open" {
		return false
	}
	if m.LastPrice < s.cfg.MinPriceCents || m.LastPrice > s.cfg.MaxPriceCents {
		return false
	}
	if m.Volume < s.cfg.MinVolume {
		return false
	}
	return true
}
