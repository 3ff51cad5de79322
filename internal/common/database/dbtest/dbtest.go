// Package dbtest starts throwaway Postgres and Redis containers for
// integration tests. Tests are skipped unless GO_TEST_INTEGRATION is set.
//
// Run locally:
//
//	GO_TEST_INTEGRATION=1 go test ./... -count=1
package dbtest

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/imadgeboyega/kiekky-matching/internal/common/database"
)

func skipUnlessIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}
}

// StartPostgres runs postgres:16-alpine, applies migrations and returns a
// connected handle. The container is terminated on test cleanup.
func StartPostgres(t *testing.T) *sqlx.DB {
	t.Helper()
	skipUnlessIntegration(t)

	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		Env:          map[string]string{"POSTGRES_USER": "user", "POSTGRES_PASSWORD": "pass", "POSTGRES_DB": "kiekky"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	dsn := fmt.Sprintf("postgres://user:pass@%s:%s/kiekky?sslmode=disable", host, port.Port())

	// the port opens before the server accepts queries
	var db *sqlx.DB
	require.Eventually(t, func() bool {
		conn, openErr := database.NewPostgresDBFromURL(dsn)
		if openErr != nil {
			return false
		}
		db = conn
		return true
	}, 30*time.Second, 500*time.Millisecond)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.RunMigrations(ctx, db))
	return db
}

// StartRedis runs redis:7-alpine and returns a connected client
func StartRedis(t *testing.T) *redis.Client {
	t.Helper()
	skipUnlessIntegration(t)

	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(60 * time.Second),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	client, err := database.NewRedisClientFromURL(fmt.Sprintf("redis://%s:%s/0", host, port.Port()))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}
