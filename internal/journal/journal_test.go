package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/Gladiator/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.CreateTables(context.Background()))
	return s
}

func TestStore_InsertCycleAndOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	now := time.Now()
	err := s.InsertCycle(ctx, CycleRecord{
		CycleID:    1,
		Ticker:     "TEST-T1",
		Outcome:    models.OutcomeVetoed,
		Veto:       &models.VetoRecord{Stage: "spread", Reason: "spread exceeds threshold"},
		Confidence: 70,
		StartedAt:  now,
		FinishedAt: now.Add(2 * time.Second),
	})
	require.NoError(t, err)

	err = s.InsertOrder(ctx, 1, models.Order{
		ID: "ord-1", ClientID: "key-1", Ticker: "TEST-T1",
		Side: "yes", Action: "buy", Count: 10, PriceCents: 46, Status: "resting",
	})
	require.NoError(t, err)

	// Re-recording the same order (idempotent retry) updates, not duplicates.
	err = s.InsertOrder(ctx, 1, models.Order{
		ID: "ord-1", ClientID: "key-1", Ticker: "TEST-T1",
		Side: "yes", Action: "buy", Count: 10, PriceCents: 46, Status: "filled",
	})
	require.NoError(t, err)
}

func TestStore_InsertErrorIsImmediatelyVisible(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertError(ctx, "CRITICAL", "sentinel", "drawdown breached", map[string]float64{"loss": 45.01}))

	n, err := s.ErrorCount(ctx, "CRITICAL")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_DropTables(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.DropTables(ctx))
	_, err := s.ErrorCount(ctx, "CRITICAL")
	assert.Error(t, err, "error_log should be gone after drop")
}
