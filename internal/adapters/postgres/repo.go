package postgres

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robertarktes/travel-bookings-and-inventory/internal/domain"
	"github.com/robertarktes/travel-bookings-and-inventory/internal/observability"
)

const (
	serializationFailureCode = "40001"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	start := time.Now()
	defer func() {
		observability.DBTxDuration.Observe(time.Since(start).Seconds())
	}()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "SET TRANSACTION ISOLATION LEVEL SERIALIZABLE")
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		return translateSerialization(err)
	}

	// Under SERIALIZABLE, Postgres may detect the conflict only at COMMIT,
	// so the commit error needs the same translation as fn's.
	return translateSerialization(tx.Commit(ctx))
}

func translateSerialization(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == serializationFailureCode {
		return domain.ErrSerializationFailure
	}
	return err
}
