package book

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hetulpatel/Gladiator/internal/models"
)

func TestEvaluate_WideSpreadVetoes(t *testing.T) {
	dec := Evaluate(models.BookQuote{BestBid: 40, BestAsk: 55})

	assert.True(t, dec.Vetoed)
	assert.Equal(t, 0, dec.SnipePrice)
	assert.Equal(t, 15, dec.Spread)
}

func TestEvaluate_SnipeOneTickAboveBid(t *testing.T) {
	dec := Evaluate(models.BookQuote{BestBid: 45, BestAsk: 48})

	assert.False(t, dec.Vetoed)
	assert.Equal(t, 46, dec.SnipePrice)
	assert.True(t, dec.IsLiquid)
}

func TestEvaluate_SnipeNeverExceedsAsk(t *testing.T) {
	dec := Evaluate(models.BookQuote{BestBid: 45, BestAsk: 45})

	assert.False(t, dec.Vetoed)
	assert.Equal(t, 45, dec.SnipePrice)
}

func TestEvaluate_SpreadAtThresholdPasses(t *testing.T) {
	dec := Evaluate(models.BookQuote{BestBid: 40, BestAsk: 50})

	assert.False(t, dec.Vetoed)
	assert.Equal(t, 41, dec.SnipePrice)
	assert.False(t, dec.IsLiquid)
}

func TestEvaluate_EmptyBookVetoes(t *testing.T) {
	for _, q := range []models.BookQuote{
		{BestBid: 0, BestAsk: 50},
		{BestBid: 50, BestAsk: 0},
		{BestBid: 50, BestAsk: 45}, // crossed book, suspect data
	} {
		dec := Evaluate(q)
		assert.True(t, dec.Vetoed, "quote %+v must veto", q)
		assert.Equal(t, 0, dec.SnipePrice)
	}
}
