package profile

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/parley-ai/parley/pkg/models"
)

var (
	sharedConnStr string
	containerOnce sync.Once
	containerErr  error
)

// setupPostgresStore starts a shared Postgres testcontainer (once per
// package) and returns a migrated store. Skips when Docker is unavailable.
func setupPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	ctx := context.Background()

	containerOnce.Do(func() {
		pgContainer, err := postgres.Run(ctx,
			"postgres:17-alpine",
			postgres.WithDatabase("test"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		if err != nil {
			containerErr = err
			return
		}
		sharedConnStr, containerErr = pgContainer.ConnectionString(ctx, "sslmode=disable")
	})
	if containerErr != nil {
		t.Skipf("Skipping: could not start postgres container (is Docker running?): %v", containerErr)
	}

	store, err := NewPostgresStore(ctx, sharedConnStr)
	require.NoError(t, err)
	t.Cleanup(func() {
		// Tests share one database; clear rows between tests.
		_, _ = store.pool.Exec(context.Background(), "DELETE FROM agent_profiles")
		store.Close()
	})
	return store
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	store := setupPostgresStore(t)
	ctx := context.Background()

	p := &models.AgentProfile{
		ID:           "venue-agent",
		DisplayName:  "Venue Agent",
		ProfileText:  "Finds and books event venues.",
		Capabilities: []string{"venues", "catering"},
		Active:       true,
	}
	require.NoError(t, store.UpsertProfile(ctx, p))

	got, err := store.GetProfile(ctx, "venue-agent")
	require.NoError(t, err)
	assert.Equal(t, "Venue Agent", got.DisplayName)
	assert.Equal(t, []string{"venues", "catering"}, got.Capabilities)
	assert.True(t, got.Active)

	_, err = store.GetProfile(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStoreUpsertReplaces(t *testing.T) {
	store := setupPostgresStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertProfile(ctx, &models.AgentProfile{
		ID: "alice", DisplayName: "Alice", ProfileText: "v1", Active: true,
	}))
	require.NoError(t, store.UpsertProfile(ctx, &models.AgentProfile{
		ID: "alice", DisplayName: "Alice v2", ProfileText: "v2",
		Capabilities: []string{"planning"}, Active: true,
	}))

	got, err := store.GetProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice v2", got.DisplayName)
	assert.Equal(t, "v2", got.ProfileText)
	assert.Equal(t, []string{"planning"}, got.Capabilities)
}

func TestPostgresStoreListAndDeactivate(t *testing.T) {
	store := setupPostgresStore(t)
	ctx := context.Background()

	for _, id := range []string{"bravo", "alpha"} {
		require.NoError(t, store.UpsertProfile(ctx, &models.AgentProfile{
			ID: id, DisplayName: id, ProfileText: id, Active: true,
		}))
	}

	agents, err := store.ListActiveAgents(ctx)
	require.NoError(t, err)
	require.Len(t, agents, 2)
	assert.Equal(t, "alpha", agents[0].ID, "ordered by agent ID")

	require.NoError(t, store.DeactivateAgent(ctx, "alpha"))
	assert.ErrorIs(t, store.DeactivateAgent(ctx, "missing"), ErrNotFound)

	agents, err = store.ListActiveAgents(ctx)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, "bravo", agents[0].ID)
}
