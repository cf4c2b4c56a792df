// The expiry worker cancels PENDING bookings that sat unconfirmed past the
// configured TTL. Outbox rows emitted by the sweep are relayed by the
// outbox publisher, so this process needs no broker connection.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/robertarktes/travel-bookings-and-inventory/internal/adapters/postgres"
	"github.com/robertarktes/travel-bookings-and-inventory/internal/config"
	"github.com/robertarktes/travel-bookings-and-inventory/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	repo := postgres.NewRepository(pool)

	worker := NewExpiryWorker(repo, cfg.PendingTTL, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go worker.Run(ctx, time.Minute)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown expiry worker")
}

type ExpiryWorker struct {
	repo   *postgres.Repository
	ttl    time.Duration
	logger observability.Logger
}

func NewExpiryWorker(repo *postgres.Repository, ttl time.Duration, logger observability.Logger) *ExpiryWorker {
	return &ExpiryWorker{repo: repo, ttl: ttl, logger: logger}
}

func (w *ExpiryWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := w.sweepWithRetry(ctx, now.Add(-w.ttl)); err != nil {
				w.logger.WithError(err).Error("sweep failed after retries")
			}
		}
	}
}

// sweepWithRetry retries only on serialization failures; the sweep is a
// single transaction and safe to repeat.
func (w *ExpiryWorker) sweepWithRetry(ctx context.Context, cutoff time.Time) error {
	const maxRetries = 3
	var err error
	for i := 0; i < maxRetries; i++ {
		var swept int
		swept, err = w.repo.CancelStalePending(ctx, cutoff)
		if err == nil {
			if swept > 0 {
				w.logger.WithField("count", swept).Info("canceled stale pending bookings")
			}
			return nil
		}

		backoff := time.Duration(1<<i) * time.Second
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return err
}
