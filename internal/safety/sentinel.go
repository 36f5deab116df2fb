package safety

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hetulpatel/Gladiator/internal/events"
	"github.com/hetulpatel/Gladiator/internal/logging"
)

// SentinelState is the drawdown monitor's state machine position.
type SentinelState string

const (
	SentinelStopped    SentinelState = "STOPPED"
	SentinelArmed      SentinelState = "ARMED"
	SentinelMonitoring SentinelState = "MONITORING"
	SentinelTriggered  SentinelState = "TRIGGERED" // terminal
)

// BalanceReader is the gateway capability the sentinel polls.
type BalanceReader interface {
	Balance(ctx context.Context) (float64, error)
}

// SentinelConfig sets the drawdown thresholds. Either threshold alone
// triggers (OR semantics).
type SentinelConfig struct {
	PollInterval    time.Duration
	MaxDrawdownFrac float64 // fraction of baseline, e.g. 0.15
	MaxDrawdownUSD  float64 // absolute dollars, e.g. 45
}

// Sentinel watches the live balance against a session baseline, independent
// of cycle phase. On a breach it liquidates, engages the kill switch, and
// halts the process. The baseline is captured once at arm time and only an
// explicit session reset may replace it: drawdown is always measured against
// true starting capital, never a trailing value.
type Sentinel struct {
	balances   BalanceReader
	liquidator *Liquidator
	kill       *KillSwitch
	dispatcher *events.Dispatcher
	cfg        SentinelConfig
	halt       func(reason string)

	mu       sync.Mutex
	state    SentinelState
	baseline float64

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewSentinel wires a sentinel. halt may be nil; the default logs fatally,
// which exits the process.
func NewSentinel(balances BalanceReader, liquidator *Liquidator, kill *KillSwitch, dispatcher *events.Dispatcher, cfg SentinelConfig, halt func(reason string)) (*Sentinel, error) {
	if balances == nil {
		return nil, fmt.Errorf("safety: balance reader is required")
	}
	if liquidator == nil {
		return nil, fmt.Errorf("safety: liquidator is required")
	}
	if kill == nil {
		return nil, fmt.Errorf("safety: kill switch is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.MaxDrawdownFrac <= 0 {
		cfg.MaxDrawdownFrac = 0.15
	}
	if cfg.MaxDrawdownUSD <= 0 {
		cfg.MaxDrawdownUSD = 45
	}
	if halt == nil {
		halt = func(reason string) {
			logging.Fatalf("[sentinel] halting process: %s", reason)
		}
	}
	return &Sentinel{
		balances:   balances,
		liquidator: liquidator,
		kill:       kill,
		dispatcher: dispatcher,
		cfg:        cfg,
		halt:       halt,
		state:      SentinelStopped,
		stopped:    make(chan struct{}),
	}, nil
}

// State reports the current state machine position.
func (s *Sentinel) State() SentinelState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Baseline reports the captured session baseline.
func (s *Sentinel) Baseline() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseline
}

// Arm captures the session baseline. May only happen from STOPPED.
func (s *Sentinel) Arm(ctx context.Context) error {
	s.mu.Lock()
	if s.state != SentinelStopped {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("safety: cannot arm from %s", state)
	}
	s.mu.Unlock()

	balance, err := s.balances.Balance(ctx)
	if err != nil {
		return fmt.Errorf("safety: capture baseline: %w", err)
	}
	if balance <= 0 {
		return fmt.Errorf("safety: refusing to arm on non-positive balance %.2f", balance)
	}

	s.mu.Lock()
	s.baseline = balance
	s.state = SentinelArmed
	s.mu.Unlock()

	logging.Infof("[sentinel] armed with baseline $%.2f", balance)
	return nil
}

// Start moves ARMED to MONITORING and runs the polling loop until Stop or a
// trigger. The loop runs on its own schedule, concurrent with the pipeline.
func (s *Sentinel) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != SentinelArmed {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("safety: cannot start monitoring from %s", state)
	}
	s.state = SentinelMonitoring
	s.mu.Unlock()

	go s.loop(ctx)
	return nil
}

// Stop ends the polling loop. It does not undo a trigger.
func (s *Sentinel) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopped)
	})
}

func (s *Sentinel) loop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopped:
			return
		case <-ticker.C:
			s.Poll(ctx)
		}
	}
}

// Poll runs one evaluation step. Exported so tests and tools can step the
// monitor without real time. A poll that cannot reach the exchange logs an
// error and does nothing else: absence of data is not evidence of loss.
func (s *Sentinel) Poll(ctx context.Context) {
	s.mu.Lock()
	if s.state != SentinelMonitoring && s.state != SentinelArmed {
		s.mu.Unlock()
		return
	}
	baseline := s.baseline
	s.mu.Unlock()

	current, err := s.balances.Balance(ctx)
	if err != nil {
		logging.Errorf("[sentinel] balance poll failed: %v", err)
		return
	}

	loss := baseline - current
	if loss/baseline >= s.cfg.MaxDrawdownFrac || loss >= s.cfg.MaxDrawdownUSD {
		s.trigger(ctx, baseline, current, loss)
	}
}

func (s *Sentinel) trigger(ctx context.Context, baseline, current, loss float64) {
	s.mu.Lock()
	if s.state == SentinelTriggered {
		s.mu.Unlock()
		return
	}
	s.state = SentinelTriggered
	s.mu.Unlock()

	reason := fmt.Sprintf("drawdown breached: baseline=%.2f current=%.2f loss=%.2f", baseline, current, loss)

	// Durable record first, then stop new trading, then sweep, then halt.
	if s.dispatcher != nil {
		if err := s.dispatcher.Dispatch(ctx, events.Event{
			Severity:  events.SeverityCritical,
			Component: "sentinel",
			Kind:      "drawdown",
			Message:   reason,
			Fields:    map[string]any{"baseline": baseline, "current": current, "loss": loss},
		}); err != nil {
			logging.Errorf("[sentinel] recording breach failed, continuing to liquidate: %v", err)
		}
	}

	s.kill.Activate()

	if report, err := s.liquidator.Execute(ctx); err != nil {
		logging.Errorf("[sentinel] ragnarok failed: %v", err)
	} else {
		logging.Errorf("[sentinel] ragnarok %s: cancelled %d of %d", report.Status, report.CancelledCount, report.TotalCount)
	}

	s.halt(reason)
}

// Reset returns a triggered or monitoring sentinel to STOPPED and clears the
// baseline. Explicit session resets only; nothing in the pipeline calls this.
func (s *Sentinel) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = SentinelStopped
	s.baseline = 0
}
