package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Server captures process-level configuration loaded from the environment.
// A `.env` file in the working directory is honored for local development.
type Server struct {
	Addr          string
	PostgresDSN   string
	Redis         RedisConfig
	Kafka         KafkaConfig
	JWTSigningKey string
	// SigningKeyHex is the hex-encoded Ed25519 public key trusted for
	// package signatures. Empty disables signature enforcement.
	SigningKeyHex string
	// SpoolDir is watched for courier-transferred package files.
	// Empty disables the intake watcher.
	SpoolDir string
	// RulesPath points at the rules.yaml tunables file.
	RulesPath string
}

// RedisConfig configures the vocabulary snapshot cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	SnapshotTTL  time.Duration
}

// KafkaConfig configures the audit outbox publisher.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	// Missing .env is fine; explicit env always wins.
	_ = godotenv.Load()

	return Server{
		Addr:          envOr("TERRASYNC_ADDR", ":8080"),
		PostgresDSN:   os.Getenv("TERRASYNC_POSTGRES_DSN"),
		JWTSigningKey: envOr("TERRASYNC_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		SigningKeyHex: os.Getenv("TERRASYNC_PACKAGE_SIGNING_KEY"),
		SpoolDir:      os.Getenv("TERRASYNC_SPOOL_DIR"),
		RulesPath:     envOr("TERRASYNC_RULES_PATH", "rules.yaml"),
		Redis: RedisConfig{
			URL:          os.Getenv("TERRASYNC_REDIS_URL"),
			PoolSize:     envIntOr("TERRASYNC_REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("TERRASYNC_REDIS_MIN_IDLE", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			SnapshotTTL:  envDurationOr("TERRASYNC_VOCAB_SNAPSHOT_TTL", 10*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers: splitNonEmpty(os.Getenv("TERRASYNC_KAFKA_BROKERS")),
			Topic:   envOr("TERRASYNC_AUDIT_TOPIC", "terrasync.audit"),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate catches configurations that cannot possibly serve traffic.
func (s Server) Validate() error {
	if s.Addr == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	return nil
}
