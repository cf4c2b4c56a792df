package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redisclient "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongoadapter "github.com/robertarktes/travel-bookings-and-inventory/internal/adapters/mongo"
	"github.com/robertarktes/travel-bookings-and-inventory/internal/adapters/postgres"
	redisadapter "github.com/robertarktes/travel-bookings-and-inventory/internal/adapters/redis"
	"github.com/robertarktes/travel-bookings-and-inventory/internal/afs"
	"github.com/robertarktes/travel-bookings-and-inventory/internal/availability"
	"github.com/robertarktes/travel-bookings-and-inventory/internal/booking"
	"github.com/robertarktes/travel-bookings-and-inventory/internal/checkout"
	"github.com/robertarktes/travel-bookings-and-inventory/internal/clock"
	"github.com/robertarktes/travel-bookings-and-inventory/internal/config"
	httphandler "github.com/robertarktes/travel-bookings-and-inventory/internal/http"
	"github.com/robertarktes/travel-bookings-and-inventory/internal/idempotency"
	"github.com/robertarktes/travel-bookings-and-inventory/internal/observability"
	"github.com/robertarktes/travel-bookings-and-inventory/internal/rateLimit"
	"github.com/robertarktes/travel-bookings-and-inventory/internal/search"
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

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	auditor := mongoadapter.NewAuditLogger(mongoClient.Database("tbi"), logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	redisCache := redisadapter.NewCache(redisClient)
	redisIdemp := redisadapter.NewIdempotency(redisClient)
	idemp := idempotency.NewIdempotency(redisIdemp, cfg.IdempotencyTTL)
	rl := rateLimit.NewRateLimiter(redisCache)

	afsClient, err := afs.NewClient(cfg.AFSBaseURL, cfg.AFSAPIKey, cfg.AFSTimeout, logger)
	if err != nil {
		log.Fatalf("failed to create reservation service client: %v", err)
	}

	searchEngine := search.NewEngine(repo, redisCache, cfg.SearchCacheTTL, logger)
	availCalc := availability.NewCalculator(repo)
	stateMachine := booking.NewStateMachine(repo, afsClient, logger, booking.WithAuditor(auditor))
	orchestrator := checkout.NewOrchestrator(stateMachine, clock.NewSystem())

	handlers := httphandler.NewHandlers(searchEngine, availCalc, stateMachine, orchestrator, repo, afsClient, idemp, logger)
	r := httphandler.SetupRouter(handlers, logger, rl)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("API listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}
