package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	MongoURI    string
	RedisAddr   string
	RabbitURL   string

	// AFS is the remote airline reservation service.
	AFSBaseURL string
	AFSAPIKey  string
	AFSTimeout time.Duration

	// PendingTTL is how long a PENDING booking may sit unconfirmed before
	// the sweeper cancels it.
	PendingTTL     time.Duration
	SearchCacheTTL time.Duration
	IdempotencyTTL time.Duration
	OTLPEndpoint   string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		HTTPAddr:       stringEnv("HTTP_ADDR", ":8080"),
		PostgresDSN:    os.Getenv("POSTGRES_DSN"),
		MongoURI:       os.Getenv("MONGO_URI"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RabbitURL:      os.Getenv("RABBIT_URL"),
		AFSBaseURL:     os.Getenv("AFS_BASE_URL"),
		AFSAPIKey:      os.Getenv("AFS_API_KEY"),
		AFSTimeout:     durationEnv("AFS_TIMEOUT", 10*time.Second),
		PendingTTL:     durationEnv("PENDING_TTL", 30*time.Minute),
		SearchCacheTTL: durationEnv("SEARCH_CACHE_TTL", 60*time.Second),
		IdempotencyTTL: durationEnv("IDEMPOTENCY_TTL", 24*time.Hour),
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}, nil
}

func stringEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	d, _ := time.ParseDuration(os.Getenv(key))
	if d == 0 {
		return fallback
	}
	return d
}
