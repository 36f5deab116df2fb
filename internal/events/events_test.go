package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRecorder struct {
	mu       sync.Mutex
	err      error
	recorded []string
}

func (m *memRecorder) InsertError(_ context.Context, severity, component, message string, _ any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.recorded = append(m.recorded, severity+"/"+component+"/"+message)
	return nil
}

func (m *memRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recorded)
}

type memPublisher struct {
	mu        sync.Mutex
	published []Event
}

func (m *memPublisher) Publish(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, ev)
	return nil
}

func (m *memPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.published)
}

func TestDispatch_CriticalIsRecordedBeforeReturn(t *testing.T) {
	rec := &memRecorder{}
	pub := &memPublisher{}
	d := NewDispatcher(rec, pub, 8)
	defer d.Close()

	err := d.Dispatch(context.Background(), Event{
		Severity:  SeverityCritical,
		Component: "sentinel",
		Kind:      "drawdown",
		Message:   "baseline breached",
	})
	require.NoError(t, err)

	// No waiting: the record must exist the moment Dispatch returns.
	assert.Equal(t, 1, rec.count())
	assert.Equal(t, 1, pub.count())
}

func TestDispatch_RecordFailureSurfacesToCaller(t *testing.T) {
	rec := &memRecorder{err: errors.New("disk full")}
	d := NewDispatcher(rec, nil, 8)
	defer d.Close()

	err := d.Dispatch(context.Background(), Event{Severity: SeverityHigh, Component: "engine", Message: "x"})
	assert.Error(t, err, "a failed durable record must not be swallowed")
}

func TestDispatch_InfoIsAsyncAndNeverJournaled(t *testing.T) {
	rec := &memRecorder{}
	pub := &memPublisher{}
	d := NewDispatcher(rec, pub, 8)

	err := d.Dispatch(context.Background(), Event{Severity: SeverityInfo, Component: "engine", Kind: "phase", Message: "DEBATING"})
	require.NoError(t, err)
	assert.Equal(t, 0, rec.count())

	d.Close() // flushes the queue
	assert.Equal(t, 1, pub.count())
}

func TestDispatch_FullQueueDropsInsteadOfBlocking(t *testing.T) {
	d := NewDispatcher(nil, nil, 1)
	defer d.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			d.Dispatch(context.Background(), Event{Severity: SeverityInfo, Component: "engine", Message: "spam"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("low-severity dispatch must never block the pipeline")
	}
}

func TestSeverity_Blocking(t *testing.T) {
	assert.False(t, SeverityInfo.Blocking())
	assert.False(t, SeverityWarn.Blocking())
	assert.True(t, SeverityHigh.Blocking())
	assert.True(t, SeverityCritical.Blocking())
}
