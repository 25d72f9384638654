package common

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/cmdrunner/pkg/common/logger"
)

func TestConnectPostgresWithRetry_InvalidDSN(t *testing.T) {
	_, err := ConnectPostgresWithRetry(context.Background(), PostgresConfig{
		DSN:            "postgres://%zz",
		ConnectTimeout: time.Second,
	}, logger.Noop())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse db config")
}

func TestConnectPostgresWithRetry_GivesUp(t *testing.T) {
	start := time.Now()
	_, err := ConnectPostgresWithRetry(context.Background(), PostgresConfig{
		// Nothing listens on port 1.
		DSN:            "postgres://u:p@127.0.0.1:1/db?sslmode=disable&connect_timeout=1",
		ConnectTimeout: 2 * time.Second,
	}, logger.Noop())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "after retries")
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestConnectPostgresWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ConnectPostgresWithRetry(ctx, PostgresConfig{
		DSN:            "postgres://u:p@127.0.0.1:1/db?sslmode=disable",
		ConnectTimeout: time.Minute,
	}, logger.Noop())

	assert.Error(t, err)
}
