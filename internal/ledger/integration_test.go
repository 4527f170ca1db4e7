//go:build integration

package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpg "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func startPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx, "postgres:16",
		postgres.WithDatabase("arcade"),
		postgres.WithUsername("arcade"),
		postgres.WithPassword("arcade"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgContainer.Terminate(ctx) })

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpg.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	return db
}

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	endpoint, err := c.Endpoint(ctx, "")
	require.NoError(t, err)
	client, err := DialRedis(ctx, endpoint, "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// exerciseLedger runs the same contract against every backend.
func exerciseLedger(t *testing.T, l Ledger) {
	ctx := context.Background()

	bal, err := l.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), bal)

	bal, err = l.Debit(ctx, "u1", "spin-round", 100)
	require.NoError(t, err)
	assert.Zero(t, bal)

	_, err = l.Debit(ctx, "u1", "spin-round", 100)
	assert.ErrorIs(t, err, ErrInsufficient)

	bal, err = l.Credit(ctx, "u1", "spin-round", 30)
	require.NoError(t, err)
	assert.Equal(t, int64(30), bal)

	// Thirty concurrent unit debits drain exactly to zero and no further.
	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for range 40 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Debit(ctx, "u1", "spin-round", 1)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	failed := 0
	for err := range errs {
		if err != nil {
			require.ErrorIs(t, err, ErrInsufficient)
			failed++
		}
	}
	assert.Equal(t, 10, failed)
	bal, err = l.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, bal)
}

func TestGormLedgerIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	l := NewGorm(startPostgres(t), 100)
	require.NoError(t, l.Migrate(context.Background()))
	exerciseLedger(t, l)

	history, err := l.History(context.Background(), "u1", 5)
	require.NoError(t, err)
	assert.Len(t, history, 5)
}

func TestRedisLedgerIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	l := NewRedis(startRedis(t), 100, WithKeyPrefix("test"))
	exerciseLedger(t, l)

	history, err := l.History(context.Background(), "u1", 3)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, int64(-1), history[0].Delta)
	assert.Equal(t, "spin-round", history[0].Kind)
}
