package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hetulpatel/Gladiator/internal/llm"
	"github.com/hetulpatel/Gladiator/internal/models"
)

const systemPrompt = "You are a strict trading auditor. Given a market question and a judge verdict with a confidence score, decide whether the verdict is logically plausible. Flag contradictions between the verdict text and the confidence. Respond only with JSON."

// Result is the structured reviewer verdict.
type Result struct {
	Plausible bool   `json:"Plausible"`
	Reason    string `json:"Reason"`
}

// Reviewer is what the audit gate depends on.
type Reviewer interface {
	Review(ctx context.Context, opp models.Opportunity, debate models.DebateResult) (*Result, error)
}

// Config controls the reviewer behavior.
type Config struct {
	LLMClient    *llm.Client
	SystemPrompt string
}

// Service reviews judge verdicts via LLM.
type Service struct {
	llm          *llm.Client
	systemPrompt string
}

// NewService creates an audit reviewer.
func NewService(cfg Config) (*Service, error) {
	if cfg.LLMClient == nil {
		return nil, fmt.Errorf("audit: llm client is required")
	}
	system := cfg.SystemPrompt
	if strings.TrimSpace(system) == "" {
		system = systemPrompt
	}
	return &Service{llm: cfg.LLMClient, systemPrompt: system}, nil
}

// Review asks the LLM whether the judge verdict holds up. Callers decide what
// a reviewer failure means; the audit gate treats it as a pass.
func (s *Service) Review(ctx context.Context, opp models.Opportunity, debate models.DebateResult) (*Result, error) {
	if s == nil {
		return nil, fmt.Errorf("audit: service is nil")
	}

	userPrompt := strings.Join([]string{
		"Audit the following trading verdict for logical plausibility.",
		fmt.Sprintf("Market: %s (%s), last traded at %d cents.", opp.Title, opp.Ticker, opp.LastPrice),
		fmt.Sprintf("Judge verdict: %s", debate.Verdict),
		fmt.Sprintf("Stated confidence: %d/100.", debate.Confidence),
		"Reject only on clear contradictions: a verdict arguing NO with high YES confidence, a confidence unsupported by the verdict text, or reasoning about a different market.",
		"Return EXACTLY this JSON format:\n{\n  \"Plausible\": true|false,\n  \"Reason\": \"short explanation\"\n}",
	}, "\n")

	raw, err := s.llm.Complete(ctx, s.systemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("audit: llm call: %w", err)
	}

	res, err := parseResult(raw)
	if err != nil {
		return nil, fmt.Errorf("audit: parse response: %w", err)
	}
	return res, nil
}

func parseResult(raw string) (*Result, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("audit: empty llm response")
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		raw = raw[start : end+1]
	}
	var res Result
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return nil, err
	}
	return &res, nil
}
