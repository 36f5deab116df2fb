// Tails the event topic and prints each pipeline event. Useful when watching
// a live session without shelling into the journal.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/hetulpatel/Gladiator/internal/events"
	"github.com/hetulpatel/Gladiator/internal/kafka"
	"github.com/hetulpatel/Gladiator/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	logging.InitFromEnv()

	brokers := kafka.Brokers()
	topic := kafka.TopicFromEnv("EVENTS_KAFKA_TOPIC", "gladiator.events")
	group := envString("EVENTS_TAIL_GROUP", "events-tail")

	waitCtx, cancel := context.WithTimeout(ctx, 45*time.Second)
	if err := kafka.WaitForBroker(waitCtx, brokers); err != nil {
		logging.Fatalf("[events-tail] wait for broker: %v", err)
	}
	cancel()

	reader := kafka.NewReader(brokers, topic, group)
	defer reader.Close()

	logging.Infof("[events-tail] consuming %s with group %s", topic, group)
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logging.Errorf("[events-tail] read error: %v", err)
			continue
		}
		var ev events.Event
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			logging.Errorf("[events-tail] unmarshal error: %v", err)
			continue
		}
		fmt.Printf("[%s] %-8s %s/%s cycle=%d %s\n",
			ev.At.Format(time.RFC3339), ev.Severity, ev.Component, ev.Kind, ev.CycleID, ev.Message)
	}
}

func envString(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}
