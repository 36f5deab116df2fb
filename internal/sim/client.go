package sim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hetulpatel/Gladiator/internal/models"
)

// Simulator is the narrow interface the variance gate depends on. The
// implementation may be in-process, a sidecar, or a remote service.
type Simulator interface {
	Simulate(ctx context.Context, probability float64, priceCents int) (models.SimulationResult, error)
}

const defaultBaseURL = "http://localhost:8196"

// Client talks to the Monte Carlo simulation service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Config provides optional overrides.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// NewClient builds a configured simulation client.
func NewClient(cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type simRequest struct {
	Probability float64 `json:"probability"`
	PriceCents  int     `json:"price_cents"`
}

// Simulate runs the Monte Carlo service for (probability, price). A
// probability outside (0,1] is answered locally with the undefined-variance
// sentinel: there is nothing meaningful to simulate and the caller must not
// trade on it.
func (c *Client) Simulate(ctx context.Context, probability float64, priceCents int) (models.SimulationResult, error) {
	if probability <= 0 || probability > 1 {
		return models.SimulationResult{
			Variance: models.VarianceUndefined,
			Status:   "undefined",
		}, nil
	}

	payload, err := json.Marshal(simRequest{Probability: probability, PriceCents: priceCents})
	if err != nil {
		return models.SimulationResult{}, fmt.Errorf("sim: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/simulate", bytes.NewReader(payload))
	if err != nil {
		return models.SimulationResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.SimulationResult{}, fmt.Errorf("sim: call service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return models.SimulationResult{}, fmt.Errorf("sim: service %s: %s", resp.Status, string(body))
	}

	var out models.SimulationResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.SimulationResult{}, fmt.Errorf("sim: decode response: %w", err)
	}
	return out, nil
}
