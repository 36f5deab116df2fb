package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/hetulpatel/Gladiator/internal/logging"
	"github.com/hetulpatel/Gladiator/internal/models"
)

// ErrModeMismatch means the configured trading mode disagrees with the
// deployment the client is actually wired to. This is a fatal precondition:
// a sandbox-configured process must never place a live order.
var ErrModeMismatch = errors.New("exchange: configured mode does not match client environment")

// API is the exchange surface the gateway builds on.
type API interface {
	Environment() models.Environment
	Balance(ctx context.Context) (float64, error)
	Orderbook(ctx context.Context, ticker string) (models.BookQuote, error)
	SubmitOrder(ctx context.Context, intent models.OrderIntent) (models.Order, error)
	CancelOrder(ctx context.Context, orderID string) error
	RestingOrders(ctx context.Context) ([]models.Order, error)
}

// CancelFailure records one order that could not be cancelled.
type CancelFailure struct {
	OrderID string
	Reason  string
}

// CancelReport aggregates a cancel-all run. A partially failed run is a
// valid report, not an error.
type CancelReport struct {
	Cancelled []string
	Failed    []CancelFailure
}

// Gateway owns order submission and cancellation. It attaches idempotency
// keys and enforces the sandbox/live mode precondition on every submission.
type Gateway struct {
	api  API
	mode models.Environment
}

// NewGateway wires a gateway for the configured mode. A mismatch with the
// client's actual environment is rejected immediately rather than at the
// first trade.
func NewGateway(api API, mode models.Environment) (*Gateway, error) {
	if api == nil {
		return nil, fmt.Errorf("exchange: api is required")
	}
	if mode != models.EnvSandbox && mode != models.EnvLive {
		return nil, fmt.Errorf("exchange: invalid mode %q", mode)
	}
	g := &Gateway{api: api, mode: mode}
	if err := g.checkMode(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Gateway) checkMode() error {
	if env := g.api.Environment(); env != g.mode {
		return fmt.Errorf("%w: configured %s, client %s", ErrModeMismatch, g.mode, env)
	}
	return nil
}

// Mode reports the configured trading mode.
func (g *Gateway) Mode() models.Environment {
	return g.mode
}

// Balance returns the available balance in USD.
func (g *Gateway) Balance(ctx context.Context) (float64, error) {
	return g.api.Balance(ctx)
}

// Orderbook returns the YES top of book for a market.
func (g *Gateway) Orderbook(ctx context.Context, ticker string) (models.BookQuote, error) {
	return g.api.Orderbook(ctx, ticker)
}

// Submit places an order. The mode precondition is re-checked on every call,
// and a missing idempotency key is assigned here so no submission can reach
// the exchange without one.
func (g *Gateway) Submit(ctx context.Context, intent models.OrderIntent) (models.Order, error) {
	if err := g.checkMode(); err != nil {
		return models.Order{}, err
	}
	if intent.Count <= 0 {
		return models.Order{}, fmt.Errorf("exchange: order count must be positive, got %d", intent.Count)
	}
	if intent.PriceCents <= 0 || intent.PriceCents >= 100 {
		return models.Order{}, fmt.Errorf("exchange: order price %d cents outside (0,100)", intent.PriceCents)
	}
	if intent.ClientID == "" {
		intent.ClientID = uuid.NewString()
	}
	return g.api.SubmitOrder(ctx, intent)
}

// CancelAll enumerates resting orders and cancels each one concurrently.
// Individual failures are collected, never allowed to abort the sweep: the
// caller gets an account of exactly which orders are still alive.
func (g *Gateway) CancelAll(ctx context.Context) (CancelReport, error) {
	orders, err := g.api.RestingOrders(ctx)
	if err != nil {
		return CancelReport{}, fmt.Errorf("exchange: cancel-all list: %w", err)
	}
	if len(orders) == 0 {
		return CancelReport{}, nil
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		report CancelReport
	)
	for _, order := range orders {
		wg.Add(1)
		go func(o models.Order) {
			defer wg.Done()
			if err := g.api.CancelOrder(ctx, o.ID); err != nil {
				logging.Errorf("[gateway] cancel %s failed: %v", o.ID, err)
				mu.Lock()
				report.Failed = append(report.Failed, CancelFailure{OrderID: o.ID, Reason: err.Error()})
				mu.Unlock()
				return
			}
			mu.Lock()
			report.Cancelled = append(report.Cancelled, o.ID)
			mu.Unlock()
		}(order)
	}
	wg.Wait()

	return report, nil
}
