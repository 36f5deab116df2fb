package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hetulpatel/Gladiator/internal/models"
)

const (
	liveBaseURL    = "https://api.elections.kalshi.com/trade-api/v2"
	sandboxBaseURL = "https://demo-api.kalshi.co/trade-api/v2"

	// Conservative fractions of Kalshi's documented limits.
	readRatePerSec  = 10
	tradeRatePerSec = 5
)

// Client talks to the Kalshi Trade API, sandbox or live.
type Client struct {
	baseURL      string
	apiKey       string
	env          models.Environment
	httpClient   *http.Client
	readLimiter  *rate.Limiter
	tradeLimiter *rate.Limiter
}

// Config provides credentials and optional overrides.
type Config struct {
	Environment models.Environment
	APIKey      string
	BaseURL     string // override, mostly for tests
	Timeout     time.Duration
}

// NewClient builds a configured Kalshi API client. The environment picks the
// base URL unless an explicit override is given.
func NewClient(cfg Config) (*Client, error) {
	env := cfg.Environment
	if env != models.EnvSandbox && env != models.EnvLive {
		return nil, fmt.Errorf("exchange: environment must be sandbox or live, got %q", env)
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		if env == models.EnvLive {
			base = liveBaseURL
		} else {
			base = sandboxBaseURL
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL: base,
		apiKey:  cfg.APIKey,
		env:     env,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		readLimiter:  rate.NewLimiter(readRatePerSec, 10),
		tradeLimiter: rate.NewLimiter(tradeRatePerSec, 2),
	}, nil
}

// Environment reports which deployment this client is wired to. The live
// production URL always reports live regardless of the configured tag, so a
// misrouted override cannot masquerade as sandbox.
func (c *Client) Environment() models.Environment {
	if strings.HasPrefix(c.baseURL, liveBaseURL) {
		return models.EnvLive
	}
	if strings.HasPrefix(c.baseURL, sandboxBaseURL) {
		return models.EnvSandbox
	}
	return c.env
}

// Balance returns the available balance in USD.
func (c *Client) Balance(ctx context.Context) (float64, error) {
	var out balanceResponse
	if err := c.get(ctx, "/portfolio/balance", nil, &out); err != nil {
		return 0, fmt.Errorf("exchange: balance: %w", err)
	}
	return float64(out.Balance) / 100.0, nil
}

// Markets retrieves one page of open markets.
func (c *Client) Markets(ctx context.Context, limit int, cursor string) ([]Market, string, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 200 {
		limit = 200 // API limit
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("status", "open")
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	var out marketsResponse
	if err := c.get(ctx, "/markets", q, &out); err != nil {
		return nil, "", fmt.Errorf("exchange: list markets: %w", err)
	}
	return out.Markets, out.Cursor, nil
}

// Orderbook returns top of book for the YES side of a market. Kalshi exposes
// bids per side; the YES ask is the complement of the best NO bid.
func (c *Client) Orderbook(ctx context.Context, ticker string) (models.BookQuote, error) {
	var out orderbookResponse
	if err := c.get(ctx, "/markets/"+ticker+"/orderbook", url.Values{"depth": {"5"}}, &out); err != nil {
		return models.BookQuote{}, fmt.Errorf("exchange: orderbook %s: %w", ticker, err)
	}

	bestYesBid := bestBid(out.Orderbook.Yes)
	bestNoBid := bestBid(out.Orderbook.No)

	quote := models.BookQuote{BestBid: bestYesBid}
	if bestNoBid > 0 {
		quote.BestAsk = 100 - bestNoBid
	}
	return quote, nil
}

// SubmitOrder places a limit order. Submission is never retried here: a retry
// without checking the idempotency key risks a duplicate fill.
func (c *Client) SubmitOrder(ctx context.Context, intent models.OrderIntent) (models.Order, error) {
	body := orderRequest{
		Ticker:        intent.Ticker,
		ClientOrderID: intent.ClientID,
		Side:          intent.Side,
		Action:        intent.Action,
		Count:         intent.Count,
		Type:          "limit",
		YesPriceCents: intent.PriceCents,
	}
	var out orderResponse
	if err := c.post(ctx, "/portfolio/orders", body, &out); err != nil {
		return models.Order{}, fmt.Errorf("exchange: submit order %s: %w", intent.Ticker, err)
	}
	return out.Order.toModel(), nil
}

// CancelOrder cancels a single resting order.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	if err := c.delete(ctx, "/portfolio/orders/"+orderID); err != nil {
		return fmt.Errorf("exchange: cancel order %s: %w", orderID, err)
	}
	return nil
}

// RestingOrders lists all orders still open on the book.
func (c *Client) RestingOrders(ctx context.Context) ([]models.Order, error) {
	var out ordersResponse
	if err := c.get(ctx, "/portfolio/orders", url.Values{"status": {"resting"}}, &out); err != nil {
		return nil, fmt.Errorf("exchange: list orders: %w", err)
	}
	orders := make([]models.Order, 0, len(out.Orders))
	for _, o := range out.Orders {
		orders = append(orders, o.toModel())
	}
	return orders, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, dst any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(ctx, c.readLimiter, req, dst, true)
}

func (c *Client) post(ctx context.Context, path string, body, dst any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(ctx, c.tradeLimiter, req, dst, false)
}

func (c *Client) delete(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(ctx, c.tradeLimiter, req, nil, false)
}

func (c *Client) do(ctx context.Context, limiter *rate.Limiter, req *http.Request, dst any, retryable bool) error {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	var attempt int
	for {
		attempt++
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if retryable && shouldRetry(attempt, 0) {
				if err := sleep(ctx, attempt); err != nil {
					return err
				}
				continue
			}
			return err
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if dst == nil {
				resp.Body.Close()
				return nil
			}
			defer resp.Body.Close()
			return json.NewDecoder(resp.Body).Decode(dst)
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()

		if retryable && shouldRetry(attempt, resp.StatusCode) {
			if err := sleep(ctx, attempt); err != nil {
				return err
			}
			continue
		}
		return fmt.Errorf("kalshi API %s: %s", resp.Status, string(body))
	}
}

func shouldRetry(attempt int, status int) bool {
	if attempt >= 4 {
		return false
	}
	if status == 0 {
		return true
	}
	if status == http.StatusTooManyRequests || status >= 500 {
		return true
	}
	return false
}

func sleep(ctx context.Context, attempt int) error {
	backoff := time.Duration(1<<uint(attempt-1)) * 500 * time.Millisecond
	if backoff > 10*time.Second {
		backoff = 10 * time.Second
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(backoff):
		return nil
	}
}

func bestBid(levels [][]int64) int {
	best := 0
	for _, lvl := range levels {
		if len(lvl) < 2 || lvl[1] <= 0 {
			continue
		}
		if p := int(lvl[0]); p > best {
			best = p
		}
	}
	return best
}

// Market is the subset of the Kalshi market payload the scout consumes.
type Market struct {
	Ticker       string `json:"ticker"`
	Title        string `json:"title"`
	Status       string `json:"status"`
	LastPrice    int    `json:"last_price"`
	YesBid       int    `json:"yes_bid"`
	YesAsk       int    `json:"yes_ask"`
	Volume       int64  `json:"volume"`
	RulesPrimary string `json:"rules_primary"`
}

type balanceResponse struct {
	Balance int64 `json:"balance"` // cents
}

type marketsResponse struct {
	Markets []Market `json:"markets"`
	Cursor  string   `json:"cursor"`
}

type orderbookResponse struct {
	Orderbook struct {
		Yes [][]int64 `json:"yes"`
		No  [][]int64 `json:"no"`
	} `json:"orderbook"`
}

type orderRequest struct {
	Ticker        string `json:"ticker"`
	ClientOrderID string `json:"client_order_id"`
	Side          string `json:"side"`
	Action        string `json:"action"`
	Count         int    `json:"count"`
	Type          string `json:"type"`
	YesPriceCents int    `json:"yes_price"`
}

type orderPayload struct {
	OrderID       string `json:"order_id"`
	ClientOrderID string `json:"client_order_id"`
	Ticker        string `json:"ticker"`
	Side          string `json:"side"`
	Action        string `json:"action"`
	Count         int    `json:"count"`
	YesPriceCents int    `json:"yes_price"`
	Status        string `json:"status"`
}

func (o orderPayload) toModel() models.Order {
	return models.Order{
		ID:         o.OrderID,
		ClientID:   o.ClientOrderID,
		Ticker:     o.Ticker,
		Side:       o.Side,
		Action:     o.Action,
		Count:      o.Count,
		PriceCents: o.YesPriceCents,
		Status:     o.Status,
	}
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type ordersResponse struct {
	Orders []orderPayload `json:"orders"`
}
