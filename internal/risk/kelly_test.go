package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizer_CapsAtMaxFraction(t *testing.T) {
	s := NewSizer(0.25, 0.05)

	// b=1.0, f=0.7-0.3=0.4, quarter=0.10, capped at 0.05 -> $50 on $1000
	dec, err := s.Size(1000, 0.7, 50)
	require.NoError(t, err)
	assert.Equal(t, 50.0, dec.WagerUSD)
	assert.Equal(t, 50.0, dec.MaxLoss)
	assert.Equal(t, 0.05, dec.Fraction)
}

func TestSizer_NoEdgeIsZero(t *testing.T) {
	s := NewSizer(0.25, 0.05)

	// f = 0.3 - 0.7 = -0.4 -> no edge, no bet
	dec, err := s.Size(1000, 0.3, 50)
	require.NoError(t, err)
	assert.Equal(t, 0.0, dec.WagerUSD)
	assert.Equal(t, 0.0, dec.Fraction)
}

func TestSizer_SmallEdgeBelowCap(t *testing.T) {
	s := NewSizer(0.25, 0.05)

	// price 40c: b=1.5, f=0.5-0.5/1.5=0.1667, quarter=0.0417 -> ~$41 on $1000
	dec, err := s.Size(1000, 0.5, 40)
	require.NoError(t, err)
	assert.InDelta(t, 0.0417, dec.Fraction, 0.001)
	assert.Equal(t, 41.0, dec.WagerUSD)
}

func TestSizer_WagerIsFloored(t *testing.T) {
	s := NewSizer(0.25, 0.05)

	dec, err := s.Size(999, 0.9, 50)
	require.NoError(t, err)
	// 999 * 0.05 = 49.95 -> $49
	assert.Equal(t, 49.0, dec.WagerUSD)
}

func TestSizer_RejectsPriceOutOfRange(t *testing.T) {
	s := NewSizer(0.25, 0.05)

	for _, price := range []int{0, 100, -5, 250} {
		_, err := s.Size(1000, 0.5, price)
		assert.Error(t, err, "price %d must be rejected", price)
	}
}

func TestSizer_RejectsBadInputs(t *testing.T) {
	s := NewSizer(0.25, 0.05)

	_, err := s.Size(-1, 0.5, 50)
	assert.Error(t, err)

	_, err = s.Size(1000, 1.5, 50)
	assert.Error(t, err)
}

func TestSizer_ZeroBankroll(t *testing.T) {
	s := NewSizer(0.25, 0.05)

	dec, err := s.Size(0, 0.9, 50)
	require.NoError(t, err)
	assert.Equal(t, 0.0, dec.WagerUSD)
}
