package book

import (
	"fmt"

	"github.com/hetulpatel/Gladiator/internal/models"
)

const (
	// MaxSpreadCents mirrors the spread gate threshold. The evaluator applies
	// it again because it is also used standalone by the book-check phase.
	MaxSpreadCents = 10

	liquidSpreadCents = 5
)

// Evaluate inspects top of book and either vetoes on a wide spread or picks a
// snipe price one tick above the best bid, never above the ask.
func Evaluate(q models.BookQuote) models.BookDecision {
	spread := q.BestAsk - q.BestBid

	if q.BestBid <= 0 || q.BestAsk <= 0 || spread < 0 {
		return models.BookDecision{
			Vetoed: true,
			Reason: fmt.Sprintf("book unusable: bid=%d ask=%d", q.BestBid, q.BestAsk),
			Spread: spread,
		}
	}

	if spread > MaxSpreadCents {
		return models.BookDecision{
			Vetoed: true,
			Reason: fmt.Sprintf("spread %d exceeds %d cents", spread, MaxSpreadCents),
			Spread: spread,
		}
	}

	snipe := q.BestBid + 1
	if snipe > q.BestAsk {
		snipe = q.BestAsk
	}
	return models.BookDecision{
		SnipePrice: snipe,
		Spread:     spread,
		IsLiquid:   spread < liquidSpreadCents,
	}
}
