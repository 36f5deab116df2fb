package risk

import (
	"fmt"
	"math"

	"github.com/hetulpatel/Gladiator/internal/models"
)

// Sizer turns a probability edge into a dollar wager. Quarter Kelly with a
// hard cap on the bankroll fraction: the cap holds even when the raw Kelly
// fraction says to bet more.
type Sizer struct {
	multiplier float64
	maxFrac    float64
}

// NewSizer builds a sizer. Zero values fall back to quarter Kelly capped at
// 5% of bankroll.
func NewSizer(multiplier, maxFrac float64) *Sizer {
	if multiplier <= 0 {
		multiplier = 0.25
	}
	if maxFrac <= 0 {
		maxFrac = 0.05
	}
	return &Sizer{multiplier: multiplier, maxFrac: maxFrac}
}

// Size computes the wager for a binary contract priced in cents.
// Prices outside (0,100) are a contract violation, not a degradable input.
func (s *Sizer) Size(bankroll, winProbability float64, priceCents int) (models.RiskDecision, error) {
	if priceCents <= 0 || priceCents >= 100 {
		return models.RiskDecision{}, fmt.Errorf("risk: price %d cents outside (0,100)", priceCents)
	}
	if bankroll < 0 {
		return models.RiskDecision{}, fmt.Errorf("risk: negative bankroll %.2f", bankroll)
	}
	if winProbability < 0 || winProbability > 1 {
		return models.RiskDecision{}, fmt.Errorf("risk: probability %.4f outside [0,1]", winProbability)
	}

	// Net odds for a contract paying $1: win (100-price) cents per price cents staked.
	b := float64(100-priceCents) / float64(priceCents)
	f := winProbability - (1-winProbability)/b

	f *= s.multiplier
	if f < 0 {
		f = 0
	}
	if f > s.maxFrac {
		f = s.maxFrac
	}

	wager := math.Floor(bankroll * f)
	return models.RiskDecision{
		WagerUSD: wager,
		MaxLoss:  wager,
		Fraction: f,
	}, nil
}
