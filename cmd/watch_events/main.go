package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ai-knowledgebase-be/internal/config"
	"ai-knowledgebase-be/pkg/events"
	pktNats "ai-knowledgebase-be/pkg/nats"

	"github.com/fatih/color"
)

// Tails knowledgebase lifecycle events from JetStream.
func main() {
	cfg := config.Load()

	subject := flag.String("subject", pktNats.SubjectPrefix+".>", "subject filter")
	durable := flag.String("durable", "", "durable consumer name (empty for ephemeral)")
	flag.Parse()

	if cfg.App.NatsURL == "" {
		log.Fatal("Error: NATS_URL is not set")
	}

	sub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Fatalf("Error: Failed to connect to NATS: %v", err)
	}
	defer sub.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	color.Cyan("👀 Watching %s on %s\n", *subject, cfg.App.NatsURL)
	err = sub.Subscribe(ctx, *subject, *durable, func(ctx context.Context, event events.Event) error {
		payload, _ := json.Marshal(event.Payload())
		switch event.EventType() {
		case events.TypeDocumentRemoved:
			color.Yellow("%s %s %s", event.Timestamp().Format("15:04:05"), event.EventType(), payload)
		default:
			color.Green("%s %s %s", event.Timestamp().Format("15:04:05"), event.EventType(), payload)
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
}
