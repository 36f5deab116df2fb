package safety

import (
	"context"
	"fmt"
	"sync"

	"github.com/hetulpatel/Gladiator/internal/events"
	"github.com/hetulpatel/Gladiator/internal/exchange"
)

// LiquidationStatus tags how an emergency sweep ended.
type LiquidationStatus string

const (
	// StatusContained means every open order is confirmed gone.
	StatusContained LiquidationStatus = "CONTAINED"
	// StatusPartialSuccess means at least one cancellation failed; orders may
	// still be resting on the book. Callers must not treat a returned report
	// as "all clear" without checking this.
	StatusPartialSuccess LiquidationStatus = "PARTIAL_SUCCESS"
)

// LiquidationReport accounts for one emergency sweep.
type LiquidationReport struct {
	Status         LiquidationStatus
	CancelledCount int
	TotalCount     int
	Failed         []exchange.CancelFailure
}

// CancelAller is the gateway capability the liquidator depends on.
type CancelAller interface {
	CancelAll(ctx context.Context) (exchange.CancelReport, error)
}

// Liquidator is the emergency order sweep ("ragnarok"). It is idempotent and
// safe to invoke concurrently from a manual kill switch and a sentinel
// breach: executions are serialized, and a sweep over zero orders is CONTAINED.
type Liquidator struct {
	gateway    CancelAller
	dispatcher *events.Dispatcher
	mu         sync.Mutex
}

// NewLiquidator builds a liquidator. The dispatcher may be nil in tools that
// only want the sweep.
func NewLiquidator(gateway CancelAller, dispatcher *events.Dispatcher) (*Liquidator, error) {
	if gateway == nil {
		return nil, fmt.Errorf("safety: cancel-all gateway is required")
	}
	return &Liquidator{gateway: gateway, dispatcher: dispatcher}, nil
}

// Execute sweeps all open orders and reports what actually happened. It never
// short-circuits on a failed cancellation, and a PARTIAL_SUCCESS is pushed to
// the operator log at HIGH severity before this returns.
func (l *Liquidator) Execute(ctx context.Context) (LiquidationReport, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	report, err := l.gateway.CancelAll(ctx)
	if err != nil {
		return LiquidationReport{}, fmt.Errorf("safety: ragnarok sweep: %w", err)
	}

	out := LiquidationReport{
		Status:         StatusContained,
		CancelledCount: len(report.Cancelled),
		TotalCount:     len(report.Cancelled) + len(report.Failed),
		Failed:         report.Failed,
	}
	if len(report.Failed) > 0 {
		out.Status = StatusPartialSuccess
	}

	if l.dispatcher != nil {
		severity := events.SeverityWarn
		if out.Status == StatusPartialSuccess {
			severity = events.SeverityHigh
		}
		if err := l.dispatcher.Dispatch(ctx, events.Event{
			Severity:  severity,
			Component: "ragnarok",
			Kind:      "liquidation",
			Message:   fmt.Sprintf("%s: cancelled %d of %d", out.Status, out.CancelledCount, out.TotalCount),
			Fields:    map[string]any{"failed": out.Failed},
		}); err != nil {
			return out, err
		}
	}
	return out, nil
}
