package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	require.Equal(t, ":8080", cfg.HTTPAddress)
	require.Equal(t, "postgres", cfg.StoreDriver)
	require.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	require.Equal(t, "routine-sync", cfg.KafkaGroupID)
	require.Equal(t, 2*time.Second, cfg.OutboxPollInterval)
	require.Equal(t, 25, cfg.OutboxBatchSize)
	require.Equal(t, "routine.identity", cfg.JWTIssuer)
	require.Empty(t, cfg.SessionIdentity)
	require.Equal(t, 500*time.Millisecond, cfg.DebounceWindow)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDRESS", ":9999")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092 ,")
	t.Setenv("OUTBOX_POLL_INTERVAL", "750ms")
	t.Setenv("OUTBOX_BATCH_SIZE", "100")
	t.Setenv("SESSION_IDENTITY", "user-1")
	t.Setenv("DEBOUNCE_WINDOW", "1s")

	cfg := Load()

	require.Equal(t, ":9999", cfg.HTTPAddress)
	require.Equal(t, "memory", cfg.StoreDriver)
	require.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 750*time.Millisecond, cfg.OutboxPollInterval)
	require.Equal(t, 100, cfg.OutboxBatchSize)
	require.Equal(t, "user-1", cfg.SessionIdentity)
	require.Equal(t, time.Second, cfg.DebounceWindow)
}

func TestLoadIgnoresUnparsableValues(t *testing.T) {
	t.Setenv("OUTBOX_POLL_INTERVAL", "soon")
	t.Setenv("OUTBOX_BATCH_SIZE", "many")

	cfg := Load()

	require.Equal(t, 2*time.Second, cfg.OutboxPollInterval)
	require.Equal(t, 25, cfg.OutboxBatchSize)
}
