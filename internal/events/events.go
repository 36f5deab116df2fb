package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/hetulpatel/Gladiator/internal/logging"
	"github.com/hetulpatel/Gladiator/internal/models"
)

// Severity orders events by how much the pipeline must care before moving on.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarn     Severity = "WARN"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Blocking reports whether an event of this severity must be durably
// recorded before the dispatching call returns.
func (s Severity) Blocking() bool {
	return s == SeverityHigh || s == SeverityCritical
}

// Event is one structured pipeline event: a phase transition, a terminal
// cycle outcome, or a safety-layer action.
type Event struct {
	At        time.Time      `json:"at"`
	Severity  Severity       `json:"severity"`
	Component string         `json:"component"`
	Kind      string         `json:"kind"`
	CycleID   uint64         `json:"cycle_id,omitempty"`
	Phase     models.Phase   `json:"phase,omitempty"`
	Ticker    string         `json:"ticker,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Recorder durably persists high-severity events. Satisfied by the journal.
type Recorder interface {
	InsertError(ctx context.Context, severity, component, message string, detail any) error
}

// Publisher forwards events to the external observability sink.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Dispatcher is the single event funnel. Whether a dispatch blocks is a
// property of the event's severity, never of the call site: HIGH/CRITICAL
// events are journaled and published before Dispatch returns, lower
// severities are queued to a background drainer.
type Dispatcher struct {
	recorder  Recorder
	publisher Publisher

	queue  chan Event
	wg     sync.WaitGroup
	closed sync.Once
}

// NewDispatcher starts a dispatcher with an async queue of the given size.
// recorder and publisher may each be nil; the corresponding output is skipped.
func NewDispatcher(recorder Recorder, publisher Publisher, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	d := &Dispatcher{
		recorder:  recorder,
		publisher: publisher,
		queue:     make(chan Event, queueSize),
	}
	d.wg.Add(1)
	go d.drain()
	return d
}

// Dispatch routes one event. For blocking severities any journaling failure
// is returned to the caller: the caller must not proceed past a safety
// condition that was never durably recorded.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	logEvent(ev)

	if ev.Severity.Blocking() {
		if d.recorder != nil {
			if err := d.recorder.InsertError(ctx, string(ev.Severity), ev.Component, ev.Message, ev.Fields); err != nil {
				return fmt.Errorf("events: durable record: %w", err)
			}
		}
		if d.publisher != nil {
			if err := d.publisher.Publish(ctx, ev); err != nil {
				// Already journaled; a sink outage is not worth halting for.
				logging.Errorf("[events] publish %s event failed: %v", ev.Severity, err)
			}
		}
		return nil
	}

	select {
	case d.queue <- ev:
	default:
		logging.Warnf("[events] queue full, dropping %s/%s event", ev.Component, ev.Kind)
	}
	return nil
}

func (d *Dispatcher) drain() {
	defer d.wg.Done()
	for ev := range d.queue {
		if d.publisher == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := d.publisher.Publish(ctx, ev); err != nil {
			logging.Debugf("[events] async publish failed: %v", err)
		}
		cancel()
	}
}

// Close flushes the async queue and stops the drainer.
func (d *Dispatcher) Close() {
	d.closed.Do(func() {
		close(d.queue)
	})
	d.wg.Wait()
}

func logEvent(ev Event) {
	switch ev.Severity {
	case SeverityCritical, SeverityHigh:
		logging.Errorf("[%s] %s: %s", ev.Component, ev.Kind, ev.Message)
	case SeverityWarn:
		logging.Warnf("[%s] %s: %s", ev.Component, ev.Kind, ev.Message)
	default:
		logging.Infof("[%s] %s: %s", ev.Component, ev.Kind, ev.Message)
	}
}

// KafkaPublisher writes events as JSON messages keyed by component.
type KafkaPublisher struct {
	writer *kafkago.Writer
}

// NewKafkaPublisher wraps a kafka writer.
func NewKafkaPublisher(writer *kafkago.Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	if p == nil || p.writer == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	key := fmt.Sprintf("%s-%d", ev.Component, ev.At.UnixNano())
	return p.writer.WriteMessages(ctx, kafkago.Message{Key: []byte(key), Value: payload})
}

// Close closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
