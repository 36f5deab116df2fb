package debate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hetulpatel/Gladiator/internal/logging"
	"github.com/hetulpatel/Gladiator/internal/models"
)

const (
	optimistSystem = "You are the optimist in a trading debate about a binary prediction market. Argue the strongest honest case that the market resolves YES. Be concrete and concise."

	pessimistSystem = "You are the pessimist in a trading debate about a binary prediction market. Argue the strongest honest case that the market resolves NO. Be concrete and concise."

	judgeSystem = "You are the judge of a trading debate. Weigh both arguments and output a YES-probability confidence from 0 to 100. A confidence of 0 means do not trade. Respond only with JSON."
)

// Completer is the single-shot LLM call the coordinator depends on.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Coordinator runs the optimist/pessimist/judge round for one opportunity.
type Coordinator struct {
	llm Completer
}

// NewCoordinator builds a debate coordinator.
func NewCoordinator(llm Completer) (*Coordinator, error) {
	if llm == nil {
		return nil, fmt.Errorf("debate: llm completer is required")
	}
	return &Coordinator{llm: llm}, nil
}

// Run executes the three-call debate. A failed advocate call degrades to a
// recorded "unavailable" argument; a failed judge call degrades to confidence
// zero so the variance gate vetoes downstream. The pipeline is never blocked
// on an unavailable collaborator.
func (c *Coordinator) Run(ctx context.Context, opp models.Opportunity) (models.DebateResult, error) {
	if c == nil || c.llm == nil {
		return models.DebateResult{}, fmt.Errorf("debate: coordinator is nil")
	}

	marketPrompt := fmt.Sprintf(
		"Market: %s\nTicker: %s\nLast traded price: %d cents\nVolume: %d\nResolution rules: %s",
		opp.Title, opp.Ticker, opp.LastPrice, opp.Volume, opp.Rules,
	)

	optimist, err := c.llm.Complete(ctx, optimistSystem, marketPrompt)
	if err != nil {
		logging.Warnf("[debate] optimist unavailable for %s: %v", opp.Ticker, err)
		optimist = "(optimist unavailable)"
	}

	pessimist, err := c.llm.Complete(ctx, pessimistSystem, marketPrompt)
	if err != nil {
		logging.Warnf("[debate] pessimist unavailable for %s: %v", opp.Ticker, err)
		pessimist = "(pessimist unavailable)"
	}

	judgePrompt := strings.Join([]string{
		marketPrompt,
		"",
		"OPTIMIST ARGUES:\n" + optimist,
		"",
		"PESSIMIST ARGUES:\n" + pessimist,
		"",
		"Weigh both sides. If either side was unavailable, lower your confidence accordingly.",
		"Return EXACTLY this JSON format:\n{\n  \"Confidence\": 0-100,\n  \"Verdict\": \"short reasoning\"\n}",
	}, "\n")

	raw, err := c.llm.Complete(ctx, judgeSystem, judgePrompt)
	if err != nil {
		logging.Errorf("[debate] judge unavailable for %s: %v", opp.Ticker, err)
		return fallbackResult(optimist, pessimist, "judge unavailable"), nil
	}

	verdict, err := parseVerdict(raw)
	if err != nil {
		logging.Errorf("[debate] judge verdict unparseable for %s: %v", opp.Ticker, err)
		return fallbackResult(optimist, pessimist, "judge verdict unparseable"), nil
	}

	return models.DebateResult{
		Optimist:    optimist,
		Pessimist:   pessimist,
		Verdict:     verdict.Verdict,
		Confidence:  verdict.Confidence,
		Probability: float64(verdict.Confidence) / 100.0,
	}, nil
}

type judgeVerdict struct {
	Confidence int    `json:"Confidence"`
	Verdict    string `json:"Verdict"`
}

func parseVerdict(raw string) (*judgeVerdict, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty judge response")
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		raw = raw[start : end+1]
	}
	var v judgeVerdict
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, err
	}
	if v.Confidence < 0 {
		v.Confidence = 0
	}
	if v.Confidence > 100 {
		v.Confidence = 100
	}
	return &v, nil
}

// fallbackResult carries zero confidence so the variance gate vetoes the
// cycle without ever reaching the simulator.
func fallbackResult(optimist, pessimist, reason string) models.DebateResult {
	return models.DebateResult{
		Optimist:    optimist,
		Pessimist:   pessimist,
		Verdict:     reason,
		Confidence:  0,
		Probability: 0,
	}
}
