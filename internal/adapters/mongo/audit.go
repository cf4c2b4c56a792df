package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/travel-bookings-and-inventory/internal/domain"
	"github.com/robertarktes/travel-bookings-and-inventory/internal/observability"
	"go.mongodb.org/mongo-driver/mongo"
)

// AuditLogger appends one document per booking lifecycle transition.
// Failures are logged, never propagated; the audit trail is best effort.
type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type TransitionDoc struct {
	ID        uuid.UUID            `bson:"_id"`
	BookingID uuid.UUID            `bson:"booking_id"`
	Kind      domain.BookingKind   `bson:"kind"`
	ActorID   uuid.UUID            `bson:"actor_id"`
	From      domain.BookingStatus `bson:"from"`
	To        domain.BookingStatus `bson:"to"`
	Timestamp time.Time            `bson:"timestamp"`
}

func (a *AuditLogger) LogTransition(ctx context.Context, kind domain.BookingKind, bookingID, actorID uuid.UUID, from, to domain.BookingStatus) {
	doc := TransitionDoc{
		ID:        uuid.New(),
		BookingID: bookingID,
		Kind:      kind,
		ActorID:   actorID,
		From:      from,
		To:        to,
		Timestamp: time.Now(),
	}
	if _, err := a.coll.InsertOne(ctx, doc); err != nil {
		a.logger.WithError(err).WithField("booking_id", bookingID).Error("failed to write audit log")
	}
}
