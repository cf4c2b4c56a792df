// Package outbox relays booking lifecycle events from the transactional
// outbox table to RabbitMQ. At-least-once: consumers deduplicate on the
// message id.
package outbox

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/robertarktes/travel-bookings-and-inventory/internal/adapters/postgres"
	"github.com/robertarktes/travel-bookings-and-inventory/internal/adapters/rabbit"
	"github.com/robertarktes/travel-bookings-and-inventory/internal/clock"
	"github.com/robertarktes/travel-bookings-and-inventory/internal/observability"
)

const (
	pollInterval = 5 * time.Second
	batchSize    = 50
)

type Publisher struct {
	repo      *postgres.Repository
	rabbitPub *rabbit.Publisher
	clock     clock.Clock
	logger    observability.Logger
}

func NewPublisher(repo *postgres.Repository, rabbitPub *rabbit.Publisher, c clock.Clock, logger observability.Logger) *Publisher {
	return &Publisher{repo: repo, rabbitPub: rabbitPub, clock: c, logger: logger}
}

// Run polls for unpublished records until the context is canceled. A record
// that fails to publish stays unpublished and is retried on the next tick.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.drain(ctx)
		}
	}
}

func (p *Publisher) drain(ctx context.Context) {
	records, err := p.repo.GetUnpublishedOutbox(ctx, batchSize)
	if err != nil {
		p.logger.WithError(err).Error("failed to fetch outbox records")
		return
	}
	if len(records) == 0 {
		observability.OutboxLag.Set(0)
		return
	}
	observability.OutboxLag.Set(p.clock.Now().Sub(records[0].CreatedAt).Seconds())

	for _, rec := range records {
		msg := amqp.Publishing{
			MessageId:   rec.DedupeKey,
			ContentType: "application/json",
			Timestamp:   rec.CreatedAt,
			Body:        rec.Payload,
		}
		if err := p.rabbitPub.Publish(ctx, rec.EventType, msg); err != nil {
			p.logger.WithError(err).WithField("outbox_id", rec.ID).Error("failed to publish outbox record")
			continue
		}
		if err := p.repo.MarkPublished(ctx, rec.ID, p.clock.Now()); err != nil {
			p.logger.WithError(err).WithField("outbox_id", rec.ID).Error("failed to mark outbox record published")
		}
	}
}
