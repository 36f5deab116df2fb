package models

import "time"

// Environment selects which Kalshi deployment the process talks to.
type Environment string

const (
	EnvSandbox Environment = "sandbox"
	EnvLive    Environment = "live"
)

// Opportunity is a candidate market identified by the scout. It is immutable
// once read; the consuming cycle owns its lifecycle.
type Opportunity struct {
	Ticker     string    `json:"ticker"`
	Title      string    `json:"title"`
	LastPrice  int       `json:"last_price"` // cents, 1-99
	Volume     int64     `json:"volume"`
	Rules      string    `json:"rules,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
}

// DebateResult is the outcome of one optimist/pessimist/judge round.
// Probability is Confidence/100.
type DebateResult struct {
	Optimist    string  `json:"optimist"`
	Pessimist   string  `json:"pessimist"`
	Verdict     string  `json:"verdict"`
	Confidence  int     `json:"confidence"` // 0-100
	Probability float64 `json:"probability"`
}

// VarianceUndefined is the simulator's sentinel for "do not trade": returned
// when the probability input is absent or the run failed.
const VarianceUndefined = 999.0

// SimulationResult is produced by the external simulation collaborator.
type SimulationResult struct {
	ExpectedValue float64 `json:"ev"`
	Variance      float64 `json:"variance"`
	Status        string  `json:"status"`
}

// Undefined reports whether the simulator refused to produce a usable variance.
func (s SimulationResult) Undefined() bool {
	return s.Variance >= VarianceUndefined
}

// VetoRecord captures a gate's decision to stop a cycle.
type VetoRecord struct {
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

// RiskDecision is the sized wager for one cycle. MaxLoss equals the wager for
// binary contracts.
type RiskDecision struct {
	WagerUSD float64 `json:"wager_usd"`
	MaxLoss  float64 `json:"max_loss"`
	Fraction float64 `json:"fraction"` // final clamped Kelly fraction
}

// BookQuote is the top of book for one market side, in cents.
type BookQuote struct {
	BestBid int `json:"best_bid"`
	BestAsk int `json:"best_ask"`
}

// BookDecision is the orderbook evaluator's output. SnipePrice is 0 iff Vetoed.
type BookDecision struct {
	Vetoed     bool   `json:"vetoed"`
	Reason     string `json:"reason,omitempty"`
	SnipePrice int    `json:"snipe_price"`
	Spread     int    `json:"spread"`
	IsLiquid   bool   `json:"is_liquid"`
}

// OrderIntent is what the coordinator asks the gateway to submit. ClientID is
// the idempotency key; a retried submission with the same ClientID cannot
// double-fill.
type OrderIntent struct {
	Ticker     string `json:"ticker"`
	Side       string `json:"side"`   // yes | no
	Action     string `json:"action"` // buy | sell
	Count      int    `json:"count"`
	PriceCents int    `json:"price_cents"`
	ClientID   string `json:"client_id"`
}

// Order is an exchange-acknowledged order.
type Order struct {
	ID         string `json:"id"`
	ClientID   string `json:"client_id"`
	Ticker     string `json:"ticker"`
	Side       string `json:"side"`
	Action     string `json:"action"`
	Count      int    `json:"count"`
	PriceCents int    `json:"price_cents"`
	Status     string `json:"status"` // resting | filled | cancelled
}

// Phase is the cycle state machine position.
type Phase string

const (
	PhaseIdle      Phase = "IDLE"
	PhaseScouting  Phase = "SCOUTING"
	PhaseDebating  Phase = "DEBATING"
	PhaseGating    Phase = "GATING"
	PhaseSizing    Phase = "SIZING"
	PhaseBookCheck Phase = "BOOK_CHECK"
	PhaseExecuting Phase = "EXECUTING"
	PhaseDone      Phase = "DONE"
	PhaseVetoed    Phase = "VETOED"
	PhaseAborted   Phase = "ABORTED"
)

// CycleState is owned exclusively by the cycle coordinator; exactly one is
// live at a time.
type CycleState struct {
	ID        uint64    `json:"id"`
	Phase     Phase     `json:"phase"`
	StartedAt time.Time `json:"started_at"`
}

// OutcomeKind classifies how a cycle terminated.
type OutcomeKind string

const (
	OutcomeExecuted OutcomeKind = "EXECUTED"
	OutcomeVetoed   OutcomeKind = "VETOED"
	OutcomeAborted  OutcomeKind = "ABORTED"
)

// CycleOutcome is the terminal result of one cycle. Exactly one of Order and
// Veto is set for EXECUTED/VETOED; Reason is set for ABORTED.
type CycleOutcome struct {
	Kind   OutcomeKind `json:"kind"`
	Order  *Order      `json:"order,omitempty"`
	Veto   *VetoRecord `json:"veto,omitempty"`
	Reason string      `json:"reason,omitempty"`
}
