package gates

import (
	"context"
	"fmt"
	"time"

	"github.com/hetulpatel/Gladiator/internal/audit"
	"github.com/hetulpatel/Gladiator/internal/logging"
	"github.com/hetulpatel/Gladiator/internal/models"
	"github.com/hetulpatel/Gladiator/internal/sim"
)

// Input is everything a gate may inspect for one cycle.
type Input struct {
	Opportunity models.Opportunity
	Debate      models.DebateResult
	Quote       models.BookQuote
	Now         time.Time
}

// Gate checks one veto condition. A nil VetoRecord means pass. A non-nil
// error is an operational fault, not a veto; the coordinator aborts on it.
type Gate interface {
	Name() string
	Check(ctx context.Context, in *Input) (*models.VetoRecord, error)
}

// Chain evaluates gates in fixed order, first veto wins.
type Chain struct {
	gates []Gate
}

// Config assembles the canonical chain: staleness, spread, variance, audit.
type Config struct {
	MaxAge      time.Duration
	MaxSpread   int
	MaxVariance float64
	Simulator   sim.Simulator
	Reviewer    audit.Reviewer
}

// NewChain builds the chain in its fixed evaluation order.
func NewChain(cfg Config) *Chain {
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = 5 * time.Minute
	}
	maxSpread := cfg.MaxSpread
	if maxSpread <= 0 {
		maxSpread = 10
	}
	maxVariance := cfg.MaxVariance
	if maxVariance <= 0 {
		maxVariance = 0.25
	}
	return &Chain{gates: []Gate{
		&stalenessGate{maxAge: maxAge},
		&spreadGate{maxSpread: maxSpread},
		&varianceGate{maxVariance: maxVariance, simulator: cfg.Simulator},
		&auditGate{reviewer: cfg.Reviewer},
	}}
}

// Run evaluates every gate in order and stops at the first veto.
func (c *Chain) Run(ctx context.Context, in *Input) (*models.VetoRecord, error) {
	for _, g := range c.gates {
		veto, err := g.Check(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("gate %s: %w", g.Name(), err)
		}
		if veto != nil {
			return veto, nil
		}
	}
	return nil, nil
}

// stalenessGate rejects opportunities observed too long ago. Catches both
// data-feed stalls and clock skew between scanner and cycle.
type stalenessGate struct {
	maxAge time.Duration
}

func (g *stalenessGate) Name() string { return "staleness" }

func (g *stalenessGate) Check(_ context.Context, in *Input) (*models.VetoRecord, error) {
	age := in.Now.Sub(in.Opportunity.ObservedAt)
	if age > g.maxAge {
		return &models.VetoRecord{
			Stage:  g.Name(),
			Reason: fmt.Sprintf("opportunity is %s old, max %s", age.Round(time.Second), g.maxAge),
		}, nil
	}
	return nil, nil
}

// spreadGate is a hard rejection: with a wide spread any fill price is
// unreliable, so there is no warning tier.
type spreadGate struct {
	maxSpread int
}

func (g *spreadGate) Name() string { return "spread" }

func (g *spreadGate) Check(_ context.Context, in *Input) (*models.VetoRecord, error) {
	spread := in.Quote.BestAsk - in.Quote.BestBid
	if spread > g.maxSpread {
		return &models.VetoRecord{
			Stage:  g.Name(),
			Reason: fmt.Sprintf("spread exceeds threshold: %d > %d cents", spread, g.maxSpread),
		}, nil
	}
	return nil, nil
}

// varianceGate vetoes predetermined losers before spending a simulation call,
// then vetoes on the simulator's variance threshold.
type varianceGate struct {
	maxVariance float64
	simulator   sim.Simulator
}

func (g *varianceGate) Name() string { return "variance" }

func (g *varianceGate) Check(ctx context.Context, in *Input) (*models.VetoRecord, error) {
	if in.Debate.Confidence == 0 || in.Debate.Probability <= 0 {
		return &models.VetoRecord{
			Stage:  g.Name(),
			Reason: "no usable probability estimate",
		}, nil
	}
	if g.simulator == nil {
		return nil, fmt.Errorf("no simulator configured")
	}

	res, err := g.simulator.Simulate(ctx, in.Debate.Probability, in.Opportunity.LastPrice)
	if err != nil {
		return nil, err
	}
	if res.Undefined() {
		return &models.VetoRecord{
			Stage:  g.Name(),
			Reason: "simulation variance undefined",
		}, nil
	}
	if res.Variance > g.maxVariance {
		return &models.VetoRecord{
			Stage:  g.Name(),
			Reason: fmt.Sprintf("variance %.4f exceeds %.2f", res.Variance, g.maxVariance),
		}, nil
	}
	return nil, nil
}

// auditGate asks the LLM reviewer to sanity-check the judge verdict. The gate
// fails open: a reviewer outage must not block all trading on a non-critical
// dependency.
type auditGate struct {
	reviewer audit.Reviewer
}

func (g *auditGate) Name() string { return "audit" }

func (g *auditGate) Check(ctx context.Context, in *Input) (*models.VetoRecord, error) {
	if g.reviewer == nil {
		return nil, nil
	}
	res, err := g.reviewer.Review(ctx, in.Opportunity, in.Debate)
	if err != nil {
		logging.Warnf("[gates] audit reviewer unavailable, failing open: %v", err)
		return nil, nil
	}
	if !res.Plausible {
		return &models.VetoRecord{
			Stage:  g.Name(),
			Reason: fmt.Sprintf("verdict implausible: %s", res.Reason),
		}, nil
	}
	return nil, nil
}
