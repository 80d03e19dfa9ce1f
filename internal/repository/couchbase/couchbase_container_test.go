package couchbase_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tccouchbase "github.com/testcontainers/testcontainers-go/modules/couchbase"
	"github.com/tuncerburak97/gozcu/internal/repository/couchbase"
	"github.com/tuncerburak97/gozcu/internal/repository/repotest"
)

// Couchbase needs cluster and bucket provisioning after start, which the
// couchbase module performs.
func TestCouchbaseRepository(t *testing.T) {
	if os.Getenv(repotest.IntegrationEnv) != "1" {
		t.Skipf("set %s=1 to run container tests", repotest.IntegrationEnv)
	}

	ctx := context.Background()
	container, err := tccouchbase.Run(ctx, "couchbase:community-7.1.1",
		tccouchbase.WithBuckets(tccouchbase.NewBucket("gozcu")),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	connStr, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	repo, err := couchbase.NewCouchbaseRepository(connStr, "gozcu", container.Username(), container.Password())
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	require.NoError(t, repo.Migrate(ctx))

	repotest.Run(t, func(t *testing.T) repotest.Repository {
		require.NoError(t, repo.PurgeAll(ctx))
		return repo
	})
}
