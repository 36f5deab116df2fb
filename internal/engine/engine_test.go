package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/Gladiator/internal/events"
	"github.com/hetulpatel/Gladiator/internal/gates"
	"github.com/hetulpatel/Gladiator/internal/journal"
	"github.com/hetulpatel/Gladiator/internal/models"
	"github.com/hetulpatel/Gladiator/internal/risk"
	"github.com/hetulpatel/Gladiator/internal/safety"
)

type fakeDebater struct {
	mu     sync.Mutex
	calls  int
	result models.DebateResult
	err    error
	block  chan struct{}
	onRun  func()
}

func (f *fakeDebater) Run(ctx context.Context, opp models.Opportunity) (models.DebateResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.onRun != nil {
		f.onRun()
	}
	if f.block != nil {
		<-f.block
	}
	return f.result, f.err
}

func (f *fakeDebater) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeChain struct {
	calls int
	veto  *models.VetoRecord
	err   error
}

func (f *fakeChain) Run(ctx context.Context, in *gates.Input) (*models.VetoRecord, error) {
	f.calls++
	return f.veto, f.err
}

type fakeTrader struct {
	balance    float64
	balanceErr error
	quote      models.BookQuote
	quoteErr   error
	order      models.Order
	submitErr  error

	balanceCalls int
	bookCalls    int
	submits      []models.OrderIntent
}

func (f *fakeTrader) Balance(ctx context.Context) (float64, error) {
	f.balanceCalls++
	return f.balance, f.balanceErr
}

func (f *fakeTrader) Orderbook(ctx context.Context, ticker string) (models.BookQuote, error) {
	f.bookCalls++
	return f.quote, f.quoteErr
}

func (f *fakeTrader) Submit(ctx context.Context, intent models.OrderIntent) (models.Order, error) {
	f.submits = append(f.submits, intent)
	if f.submitErr != nil {
		return models.Order{}, f.submitErr
	}
	out := f.order
	out.Ticker = intent.Ticker
	out.Count = intent.Count
	out.PriceCents = intent.PriceCents
	return out, nil
}

type fakeJournal struct {
	mu     sync.Mutex
	cycles []journal.CycleRecord
	orders []models.Order
}

func (f *fakeJournal) InsertCycle(ctx context.Context, rec journal.CycleRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cycles = append(f.cycles, rec)
	return nil
}

func (f *fakeJournal) InsertOrder(ctx context.Context, cycleID uint64, order models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, order)
	return nil
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []string
}

func (f *fakeRecorder) InsertError(ctx context.Context, severity, component, message string, detail any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, severity+" "+message)
	return nil
}

type fakeCooldown struct {
	marked []string
}

func (f *fakeCooldown) OnCooldown(ctx context.Context, ticker string) (bool, error) { return false, nil }
func (f *fakeCooldown) Mark(ctx context.Context, ticker string) error {
	f.marked = append(f.marked, ticker)
	return nil
}
func (f *fakeCooldown) Close() error { return nil }

func testOpportunity() models.Opportunity {
	return models.Opportunity{
		Ticker:     "FED-25DEC-T4.75",
		Title:      "Fed funds above 4.75 in December?",
		LastPrice:  50,
		Volume:     12000,
		ObservedAt: time.Now().UTC(),
	}
}

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	if cfg.KillSwitch == nil {
		cfg.KillSwitch = safety.NewKillSwitch()
	}
	if cfg.Sizer == nil {
		cfg.Sizer = risk.NewSizer(0.25, 0.05)
	}
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = 5 * time.Second
	}
	e, err := New(cfg)
	require.NoError(t, err)
	return e
}

func TestRunCycleExecutesOrder(t *testing.T) {
	trader := &fakeTrader{
		balance: 1000,
		quote:   models.BookQuote{BestBid: 48, BestAsk: 52},
		order:   models.Order{ID: "ord-1", Status: "resting"},
	}
	jrnl := &fakeJournal{}
	cooldown := &fakeCooldown{}
	e := newTestEngine(t, Config{
		Debater:  &fakeDebater{result: models.DebateResult{Verdict: "YES", Confidence: 70, Probability: 0.7}},
		Gates:    &fakeChain{},
		Trader:   trader,
		Journal:  jrnl,
		Cooldown: cooldown,
	})

	outcome, err := e.RunCycle(context.Background(), testOpportunity())
	require.NoError(t, err)
	require.Equal(t, models.OutcomeExecuted, outcome.Kind)
	require.NotNil(t, outcome.Order)

	// Quarter Kelly on 0.7 at 50c clamps to 5% of bankroll: $50 at a 49c snipe.
	require.Len(t, trader.submits, 1)
	intent := trader.submits[0]
	assert.Equal(t, 49, intent.PriceCents)
	assert.Equal(t, 102, intent.Count)
	assert.Equal(t, "yes", intent.Side)
	assert.Equal(t, "buy", intent.Action)

	// Book is read twice: once for gating, once fresh before execution.
	assert.Equal(t, 2, trader.bookCalls)

	require.Len(t, jrnl.cycles, 1)
	assert.Equal(t, models.OutcomeExecuted, jrnl.cycles[0].Outcome)
	assert.Equal(t, 70, jrnl.cycles[0].Confidence)
	assert.Equal(t, float64(50), jrnl.cycles[0].WagerUSD)
	require.Len(t, jrnl.orders, 1)
	assert.Equal(t, []string{"FED-25DEC-T4.75"}, cooldown.marked)
}

func TestRunCycleGateVetoSkipsSizing(t *testing.T) {
	trader := &fakeTrader{balance: 1000, quote: models.BookQuote{BestBid: 40, BestAsk: 55}}
	jrnl := &fakeJournal{}
	e := newTestEngine(t, Config{
		Debater: &fakeDebater{result: models.DebateResult{Confidence: 60, Probability: 0.6}},
		Gates:   &fakeChain{veto: &models.VetoRecord{Stage: "spread", Reason: "spread 15 exceeds 10 cents"}},
		Trader:  trader,
		Journal: jrnl,
	})

	outcome, err := e.RunCycle(context.Background(), testOpportunity())
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeVetoed, outcome.Kind)
	require.NotNil(t, outcome.Veto)
	assert.Equal(t, "spread", outcome.Veto.Stage)

	assert.Zero(t, trader.balanceCalls)
	assert.Empty(t, trader.submits)
	require.Len(t, jrnl.cycles, 1)
	assert.Equal(t, models.OutcomeVetoed, jrnl.cycles[0].Outcome)
}

func TestRunCycleNoEdgeVetoesAtSizing(t *testing.T) {
	trader := &fakeTrader{balance: 1000, quote: models.BookQuote{BestBid: 48, BestAsk: 52}}
	e := newTestEngine(t, Config{
		Debater: &fakeDebater{result: models.DebateResult{Confidence: 30, Probability: 0.3}},
		Gates:   &fakeChain{},
		Trader:  trader,
	})

	outcome, err := e.RunCycle(context.Background(), testOpportunity())
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeVetoed, outcome.Kind)
	require.NotNil(t, outcome.Veto)
	assert.Equal(t, "sizing", outcome.Veto.Stage)
	assert.Empty(t, trader.submits)
}

func TestRunCycleSubmitFailureAbortsWithoutRetry(t *testing.T) {
	trader := &fakeTrader{
		balance:   1000,
		quote:     models.BookQuote{BestBid: 48, BestAsk: 52},
		submitErr: errors.New("gateway timeout"),
	}
	recorder := &fakeRecorder{}
	dispatcher := events.NewDispatcher(recorder, nil, 16)
	defer dispatcher.Close()

	e := newTestEngine(t, Config{
		Debater:    &fakeDebater{result: models.DebateResult{Confidence: 70, Probability: 0.7}},
		Gates:      &fakeChain{},
		Trader:     trader,
		Dispatcher: dispatcher,
	})

	outcome, err := e.RunCycle(context.Background(), testOpportunity())
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAborted, outcome.Kind)
	assert.Contains(t, outcome.Reason, "submit")

	// A failed submission is never retried.
	assert.Len(t, trader.submits, 1)

	// Aborts are blocking dispatches: the record exists before RunCycle returns.
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	require.Len(t, recorder.entries, 1)
	assert.Contains(t, recorder.entries[0], "HIGH")
}

func TestRunCycleBusyRejectsSecondCycle(t *testing.T) {
	block := make(chan struct{})
	debater := &fakeDebater{result: models.DebateResult{Confidence: 70, Probability: 0.7}, block: block}
	trader := &fakeTrader{balance: 1000, quote: models.BookQuote{BestBid: 48, BestAsk: 52}}
	e := newTestEngine(t, Config{Debater: debater, Gates: &fakeChain{}, Trader: trader})

	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		close(started)
		_, _ = e.RunCycle(context.Background(), testOpportunity())
	}()
	<-started
	// Wait until the first cycle is inside the debate call.
	require.Eventually(t, func() bool { return debater.callCount() == 1 }, time.Second, 5*time.Millisecond)

	_, err := e.RunCycle(context.Background(), testOpportunity())
	assert.ErrorIs(t, err, ErrBusy)

	close(block)
	<-done

	// The slot frees once the first cycle terminates.
	_, err = e.RunCycle(context.Background(), testOpportunity())
	assert.NoError(t, err)
}

func TestRunCycleKillSwitchBeforeStart(t *testing.T) {
	kill := safety.NewKillSwitch()
	kill.Activate()
	debater := &fakeDebater{result: models.DebateResult{Confidence: 70, Probability: 0.7}}
	trader := &fakeTrader{balance: 1000, quote: models.BookQuote{BestBid: 48, BestAsk: 52}}
	e := newTestEngine(t, Config{KillSwitch: kill, Debater: debater, Gates: &fakeChain{}, Trader: trader})

	outcome, err := e.RunCycle(context.Background(), testOpportunity())
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAborted, outcome.Kind)
	assert.Equal(t, "kill-switch", outcome.Reason)
	assert.Zero(t, debater.callCount())
	assert.Empty(t, trader.submits)
}

func TestRunCycleKillSwitchMidCycleStopsAtBoundary(t *testing.T) {
	kill := safety.NewKillSwitch()
	chain := &fakeChain{}
	trader := &fakeTrader{balance: 1000, quote: models.BookQuote{BestBid: 48, BestAsk: 52}}
	debater := &fakeDebater{result: models.DebateResult{Confidence: 70, Probability: 0.7}}
	// Activation lands while the debate call is in flight.
	debater.onRun = func() { kill.Activate() }

	e := newTestEngine(t, Config{KillSwitch: kill, Debater: debater, Gates: chain, Trader: trader})

	outcome, err := e.RunCycle(context.Background(), testOpportunity())
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAborted, outcome.Kind)
	assert.Equal(t, "kill-switch", outcome.Reason)

	// The debate result is discarded at the next stage boundary.
	assert.Equal(t, 1, debater.callCount())
	assert.Zero(t, chain.calls)
	assert.Empty(t, trader.submits)
}

func TestRunCycleGateFaultAborts(t *testing.T) {
	trader := &fakeTrader{balance: 1000, quote: models.BookQuote{BestBid: 48, BestAsk: 52}}
	e := newTestEngine(t, Config{
		Debater: &fakeDebater{result: models.DebateResult{Confidence: 70, Probability: 0.7}},
		Gates:   &fakeChain{err: errors.New("simulator unreachable")},
		Trader:  trader,
	})

	outcome, err := e.RunCycle(context.Background(), testOpportunity())
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAborted, outcome.Kind)
	assert.Contains(t, outcome.Reason, "gates")
	assert.Zero(t, trader.balanceCalls)
}
