// The notifier consumes booking lifecycle events and emits user-facing
// notifications. Delivery is a structured log line for now; the hook point
// for mail or push providers is handleEvent.
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/robertarktes/travel-bookings-and-inventory/internal/adapters/rabbit"
	"github.com/robertarktes/travel-bookings-and-inventory/internal/config"
	"github.com/robertarktes/travel-bookings-and-inventory/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := observability.NewLogger()

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()

	consumer, err := rabbit.NewConsumer(conn, "notifier.q", "booking.*")
	if err != nil {
		log.Fatalf("failed to create consumer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deliveries, err := consumer.Consume(ctx)
	if err != nil {
		log.Fatalf("failed to start consuming: %v", err)
	}

	go func() {
		for d := range deliveries {
			if err := handleEvent(logger, d); err != nil {
				logger.WithError(err).Error("failed to handle event")
				d.Nack(false, true)
				continue
			}
			d.Ack(false)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown notifier")
}

func handleEvent(logger observability.Logger, d amqp.Delivery) error {
	var event struct {
		Kind      string `json:"kind"`
		BookingID string `json:"booking_id"`
		UserID    string `json:"user_id"`
		Status    string `json:"status"`
	}
	if err := json.Unmarshal(d.Body, &event); err != nil {
		return err
	}
	logger.WithField("routing_key", d.RoutingKey).
		WithField("booking_id", event.BookingID).
		WithField("user_id", event.UserID).
		WithField("status", event.Status).
		Info("booking notification")
	return nil
}
