package exchange

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/Gladiator/internal/models"
)

type fakeAPI struct {
	mu        sync.Mutex
	env       models.Environment
	balance   float64
	resting   []models.Order
	submitted []models.OrderIntent
	cancelled []string
	failIDs   map[string]bool
}

func (f *fakeAPI) Environment() models.Environment { return f.env }

func (f *fakeAPI) Balance(context.Context) (float64, error) { return f.balance, nil }

func (f *fakeAPI) Orderbook(context.Context, string) (models.BookQuote, error) {
	return models.BookQuote{BestBid: 48, BestAsk: 52}, nil
}

func (f *fakeAPI) SubmitOrder(_ context.Context, intent models.OrderIntent) (models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, intent)
	return models.Order{ID: "ord-1", ClientID: intent.ClientID, Ticker: intent.Ticker, Status: "resting"}, nil
}

func (f *fakeAPI) CancelOrder(_ context.Context, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIDs[orderID] {
		return errors.New("exchange rejected cancellation")
	}
	f.cancelled = append(f.cancelled, orderID)
	return nil
}

func (f *fakeAPI) RestingOrders(context.Context) ([]models.Order, error) {
	return f.resting, nil
}

func validIntent() models.OrderIntent {
	return models.OrderIntent{Ticker: "TEST-T1", Side: "yes", Action: "buy", Count: 10, PriceCents: 46}
}

func TestGateway_RejectsModeMismatchAtConstruction(t *testing.T) {
	api := &fakeAPI{env: models.EnvLive}

	_, err := NewGateway(api, models.EnvSandbox)
	assert.ErrorIs(t, err, ErrModeMismatch)
}

func TestGateway_AssignsIdempotencyKey(t *testing.T) {
	api := &fakeAPI{env: models.EnvSandbox}
	g, err := NewGateway(api, models.EnvSandbox)
	require.NoError(t, err)

	order, err := g.Submit(context.Background(), validIntent())
	require.NoError(t, err)

	assert.NotEmpty(t, order.ClientID)
	require.Len(t, api.submitted, 1)
	assert.Equal(t, order.ClientID, api.submitted[0].ClientID)
}

func TestGateway_KeepsCallerIdempotencyKey(t *testing.T) {
	api := &fakeAPI{env: models.EnvSandbox}
	g, _ := NewGateway(api, models.EnvSandbox)

	intent := validIntent()
	intent.ClientID = "retry-key-1"
	_, err := g.Submit(context.Background(), intent)
	require.NoError(t, err)

	assert.Equal(t, "retry-key-1", api.submitted[0].ClientID)
}

func TestGateway_RejectsBadIntent(t *testing.T) {
	api := &fakeAPI{env: models.EnvSandbox}
	g, _ := NewGateway(api, models.EnvSandbox)

	bad := validIntent()
	bad.Count = 0
	_, err := g.Submit(context.Background(), bad)
	assert.Error(t, err)

	bad = validIntent()
	bad.PriceCents = 100
	_, err = g.Submit(context.Background(), bad)
	assert.Error(t, err)
}

func TestGateway_CancelAllAggregatesPartialFailures(t *testing.T) {
	api := &fakeAPI{
		env: models.EnvSandbox,
		resting: []models.Order{
			{ID: "a", Status: "resting"},
			{ID: "b", Status: "resting"},
			{ID: "c", Status: "resting"},
		},
		failIDs: map[string]bool{"b": true},
	}
	g, _ := NewGateway(api, models.EnvSandbox)

	report, err := g.CancelAll(context.Background())
	require.NoError(t, err, "one bad cancellation must not fail the sweep")

	assert.Len(t, report.Cancelled, 2)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "b", report.Failed[0].OrderID)
}

func TestGateway_CancelAllEmptyBook(t *testing.T) {
	api := &fakeAPI{env: models.EnvSandbox}
	g, _ := NewGateway(api, models.EnvSandbox)

	report, err := g.CancelAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Cancelled)
	assert.Empty(t, report.Failed)
}
