package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/hetulpatel/Gladiator/internal/book"
	"github.com/hetulpatel/Gladiator/internal/cache"
	"github.com/hetulpatel/Gladiator/internal/events"
	"github.com/hetulpatel/Gladiator/internal/gates"
	"github.com/hetulpatel/Gladiator/internal/hashutil"
	"github.com/hetulpatel/Gladiator/internal/journal"
	"github.com/hetulpatel/Gladiator/internal/logging"
	"github.com/hetulpatel/Gladiator/internal/models"
	"github.com/hetulpatel/Gladiator/internal/risk"
	"github.com/hetulpatel/Gladiator/internal/safety"
)

// ErrBusy means a cycle is already in flight. Cycles are never queued; the
// caller tries again with a fresh opportunity later.
var ErrBusy = errors.New("engine: cycle already in flight")

// Debater runs the estimation debate for one opportunity.
type Debater interface {
	Run(ctx context.Context, opp models.Opportunity) (models.DebateResult, error)
}

// VetoChain evaluates the gate chain; nil record means pass.
type VetoChain interface {
	Run(ctx context.Context, in *gates.Input) (*models.VetoRecord, error)
}

// Trader is the execution surface the coordinator needs.
type Trader interface {
	Balance(ctx context.Context) (float64, error)
	Orderbook(ctx context.Context, ticker string) (models.BookQuote, error)
	Submit(ctx context.Context, intent models.OrderIntent) (models.Order, error)
}

// Journal persists terminal cycle records. Satisfied by the sqlite journal.
type Journal interface {
	InsertCycle(ctx context.Context, rec journal.CycleRecord) error
	InsertOrder(ctx context.Context, cycleID uint64, order models.Order) error
}

// Config wires a coordinator.
type Config struct {
	KillSwitch  *safety.KillSwitch
	Debater     Debater
	Gates       VetoChain
	Sizer       *risk.Sizer
	Trader      Trader
	Dispatcher  *events.Dispatcher
	Journal     Journal             // optional
	Verdicts    cache.VerdictCache  // optional
	Cooldown    cache.CooldownCache // optional
	CallTimeout time.Duration
}

// Engine is the cycle coordinator: one opportunity in, one terminal outcome
// out, with the kill switch read before every phase. At most one cycle is in
// flight system-wide.
type Engine struct {
	cfg Config

	cycleID    atomic.Uint64
	busy       atomic.Bool
	processing atomic.Bool
}

// New builds the coordinator and binds its interrupt to the kill switch, so
// activation forces the in-flight cycle's processing flag false synchronously.
func New(cfg Config) (*Engine, error) {
	if cfg.KillSwitch == nil {
		return nil, fmt.Errorf("engine: kill switch is required")
	}
	if cfg.Debater == nil || cfg.Gates == nil || cfg.Sizer == nil || cfg.Trader == nil {
		return nil, fmt.Errorf("engine: debater, gates, sizer and trader are required")
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	e := &Engine{cfg: cfg}
	cfg.KillSwitch.Bind(func() {
		e.processing.Store(false)
	})
	return e, nil
}

// RunCycle drives one opportunity through DEBATING, GATING, SIZING,
// BOOK_CHECK and EXECUTING. A second call while one is in flight returns
// ErrBusy immediately.
func (e *Engine) RunCycle(ctx context.Context, opp models.Opportunity) (models.CycleOutcome, error) {
	if !e.busy.CompareAndSwap(false, true) {
		return models.CycleOutcome{}, ErrBusy
	}
	defer e.busy.Store(false)

	e.processing.Store(true)
	state := models.CycleState{
		ID:        e.cycleID.Add(1),
		Phase:     models.PhaseIdle,
		StartedAt: time.Now().UTC(),
	}

	var detail cycleDetail
	outcome := e.run(ctx, &state, opp, &detail)
	e.finish(ctx, &state, opp, detail, outcome)
	return outcome, nil
}

// cycleDetail accumulates the journal-worthy figures a cycle produced before
// terminating.
type cycleDetail struct {
	confidence int
	wagerUSD   float64
}

// cleared reports whether the cycle may enter its next phase. Read at every
// stage boundary; a mid-call activation stops the cycle before it acts on
// the call's result.
func (e *Engine) cleared() bool {
	return e.processing.Load() && !e.cfg.KillSwitch.Engaged()
}

func (e *Engine) run(ctx context.Context, state *models.CycleState, opp models.Opportunity, detail *cycleDetail) models.CycleOutcome {
	var (
		debate models.DebateResult
		quote  models.BookQuote
		sized  models.RiskDecision
	)

	// DEBATING
	if !e.cleared() {
		return abortKillSwitch()
	}
	e.enterPhase(ctx, state, models.PhaseDebating, opp)
	debate, err := e.debate(ctx, opp)
	if err != nil {
		return models.CycleOutcome{Kind: models.OutcomeAborted, Reason: fmt.Sprintf("debate: %v", err)}
	}
	detail.confidence = debate.Confidence

	// GATING
	if !e.cleared() {
		return abortKillSwitch()
	}
	e.enterPhase(ctx, state, models.PhaseGating, opp)
	quote, err = e.orderbook(ctx, opp.Ticker)
	if err != nil {
		return models.CycleOutcome{Kind: models.OutcomeAborted, Reason: fmt.Sprintf("orderbook: %v", err)}
	}
	veto, err := e.runGates(ctx, opp, debate, quote)
	if err != nil {
		return models.CycleOutcome{Kind: models.OutcomeAborted, Reason: fmt.Sprintf("gates: %v", err)}
	}
	if veto != nil {
		return models.CycleOutcome{Kind: models.OutcomeVetoed, Veto: veto}
	}

	// SIZING
	if !e.cleared() {
		return abortKillSwitch()
	}
	e.enterPhase(ctx, state, models.PhaseSizing, opp)
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	bankroll, err := e.cfg.Trader.Balance(callCtx)
	cancel()
	if err != nil {
		return models.CycleOutcome{Kind: models.OutcomeAborted, Reason: fmt.Sprintf("balance: %v", err)}
	}
	sized, err = e.cfg.Sizer.Size(bankroll, debate.Probability, opp.LastPrice)
	if err != nil {
		return models.CycleOutcome{Kind: models.OutcomeAborted, Reason: fmt.Sprintf("sizing: %v", err)}
	}
	detail.wagerUSD = sized.WagerUSD
	if sized.WagerUSD <= 0 {
		return models.CycleOutcome{Kind: models.OutcomeVetoed, Veto: &models.VetoRecord{
			Stage:  "sizing",
			Reason: "no edge after sizing",
		}}
	}

	// BOOK_CHECK: re-read the book fresh; the gating quote may be stale by now.
	if !e.cleared() {
		return abortKillSwitch()
	}
	e.enterPhase(ctx, state, models.PhaseBookCheck, opp)
	quote, err = e.orderbook(ctx, opp.Ticker)
	if err != nil {
		return models.CycleOutcome{Kind: models.OutcomeAborted, Reason: fmt.Sprintf("book check: %v", err)}
	}
	decision := book.Evaluate(quote)
	if decision.Vetoed {
		return models.CycleOutcome{Kind: models.OutcomeVetoed, Veto: &models.VetoRecord{
			Stage:  "book_check",
			Reason: decision.Reason,
		}}
	}
	count := int(math.Floor(sized.WagerUSD * 100 / float64(decision.SnipePrice)))
	if count <= 0 {
		return models.CycleOutcome{Kind: models.OutcomeVetoed, Veto: &models.VetoRecord{
			Stage:  "book_check",
			Reason: "wager below one contract",
		}}
	}

	// EXECUTING
	if !e.cleared() {
		return abortKillSwitch()
	}
	e.enterPhase(ctx, state, models.PhaseExecuting, opp)
	callCtx, cancel = context.WithTimeout(ctx, e.cfg.CallTimeout)
	order, err := e.cfg.Trader.Submit(callCtx, models.OrderIntent{
		Ticker:     opp.Ticker,
		Side:       "yes",
		Action:     "buy",
		Count:      count,
		PriceCents: decision.SnipePrice,
	})
	cancel()
	if err != nil {
		// Never auto-retried: a blind retry on a trading submission risks a
		// duplicate fill.
		return models.CycleOutcome{Kind: models.OutcomeAborted, Reason: fmt.Sprintf("submit: %v", err)}
	}

	if e.cfg.Cooldown != nil {
		if err := e.cfg.Cooldown.Mark(ctx, opp.Ticker); err != nil {
			logging.Warnf("[engine] cooldown mark %s: %v", opp.Ticker, err)
		}
	}
	if e.cfg.Journal != nil {
		if err := e.cfg.Journal.InsertOrder(ctx, state.ID, order); err != nil {
			logging.Errorf("[engine] journal order %s: %v", order.ID, err)
		}
	}
	return models.CycleOutcome{Kind: models.OutcomeExecuted, Order: &order}
}

func (e *Engine) debate(ctx context.Context, opp models.Opportunity) (models.DebateResult, error) {
	key := hashutil.ShortHash(opp.Ticker, opp.Rules)
	if e.cfg.Verdicts != nil {
		if cached, ok, err := e.cfg.Verdicts.Get(ctx, key); err != nil {
			logging.Warnf("[engine] verdict cache read %s: %v", opp.Ticker, err)
		} else if ok {
			logging.Debugf("[engine] verdict cache hit for %s", opp.Ticker)
			return *cached, nil
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()
	debate, err := e.cfg.Debater.Run(callCtx, opp)
	if err != nil {
		return models.DebateResult{}, err
	}

	if e.cfg.Verdicts != nil && debate.Confidence > 0 {
		if err := e.cfg.Verdicts.Set(ctx, key, debate); err != nil {
			logging.Warnf("[engine] verdict cache write %s: %v", opp.Ticker, err)
		}
	}
	return debate, nil
}

func (e *Engine) orderbook(ctx context.Context, ticker string) (models.BookQuote, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()
	return e.cfg.Trader.Orderbook(callCtx, ticker)
}

func (e *Engine) runGates(ctx context.Context, opp models.Opportunity, debate models.DebateResult, quote models.BookQuote) (*models.VetoRecord, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()
	return e.cfg.Gates.Run(callCtx, &gates.Input{
		Opportunity: opp,
		Debate:      debate,
		Quote:       quote,
		Now:         time.Now().UTC(),
	})
}

func abortKillSwitch() models.CycleOutcome {
	return models.CycleOutcome{Kind: models.OutcomeAborted, Reason: "kill-switch"}
}

func (e *Engine) enterPhase(ctx context.Context, state *models.CycleState, phase models.Phase, opp models.Opportunity) {
	state.Phase = phase
	e.dispatch(ctx, events.Event{
		Severity:  events.SeverityInfo,
		Component: "engine",
		Kind:      "phase",
		CycleID:   state.ID,
		Phase:     phase,
		Ticker:    opp.Ticker,
		Message:   string(phase),
	})
}

// finish emits exactly one terminal event per cycle and journals the record.
// Aborts are blocking dispatches: the record is durable before RunCycle
// returns control to the loop.
func (e *Engine) finish(ctx context.Context, state *models.CycleState, opp models.Opportunity, detail cycleDetail, outcome models.CycleOutcome) {
	finished := time.Now().UTC()

	switch outcome.Kind {
	case models.OutcomeExecuted:
		state.Phase = models.PhaseDone
		e.dispatch(ctx, events.Event{
			Severity:  events.SeverityInfo,
			Component: "engine",
			Kind:      "executed",
			CycleID:   state.ID,
			Phase:     state.Phase,
			Ticker:    opp.Ticker,
			Message:   fmt.Sprintf("order %s resting at %d cents x%d", outcome.Order.ID, outcome.Order.PriceCents, outcome.Order.Count),
		})
	case models.OutcomeVetoed:
		state.Phase = models.PhaseVetoed
		e.dispatch(ctx, events.Event{
			Severity:  events.SeverityWarn,
			Component: "engine",
			Kind:      "veto",
			CycleID:   state.ID,
			Phase:     state.Phase,
			Ticker:    opp.Ticker,
			Message:   fmt.Sprintf("%s: %s", outcome.Veto.Stage, outcome.Veto.Reason),
		})
	case models.OutcomeAborted:
		state.Phase = models.PhaseAborted
		e.dispatch(ctx, events.Event{
			Severity:  events.SeverityHigh,
			Component: "engine",
			Kind:      "abort",
			CycleID:   state.ID,
			Phase:     state.Phase,
			Ticker:    opp.Ticker,
			Message:   outcome.Reason,
		})
	}

	if e.cfg.Journal != nil {
		rec := journal.CycleRecord{
			CycleID:    state.ID,
			Ticker:     opp.Ticker,
			Outcome:    outcome.Kind,
			Veto:       outcome.Veto,
			Reason:     outcome.Reason,
			WagerUSD:   detail.wagerUSD,
			Confidence: detail.confidence,
			StartedAt:  state.StartedAt,
			FinishedAt: finished,
		}
		if err := e.cfg.Journal.InsertCycle(ctx, rec); err != nil {
			logging.Errorf("[engine] journal cycle %d: %v", state.ID, err)
		}
	}
}

func (e *Engine) dispatch(ctx context.Context, ev events.Event) {
	if e.cfg.Dispatcher == nil {
		return
	}
	if err := e.cfg.Dispatcher.Dispatch(ctx, ev); err != nil {
		logging.Errorf("[engine] dispatch %s/%s: %v", ev.Component, ev.Kind, err)
	}
}
