package database

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/eventharness/pkg/store"
	"github.com/codeready-toolchain/eventharness/test/util"
)

// SharedTestDB creates a single PostgreSQL schema that can be shared by
// multiple test replicas. Each replica gets its own *store.Client (its own
// connection pool) via NewClient, but all pools point to the same schema —
// enabling cross-replica tests that exercise PostgreSQL NOTIFY/LISTEN event
// delivery (the Bus, pkg/bus) across independent connections.
type SharedTestDB struct {
	connStrWithSchema string
	baseConnStr       string
	schemaName        string
}

// NewSharedTestDB creates a shared test schema, runs the Store's embedded
// migrations once, and registers t.Cleanup to drop the schema. Call
// NewClient to create independent *store.Client instances for each replica.
func NewSharedTestDB(t *testing.T) *SharedTestDB {
	t.Helper()
	ctx := context.Background()

	baseConnStr := util.GetBaseConnectionString(t)
	schemaName := util.GenerateSchemaName(t)

	db, err := stdsql.Open("pgx", baseConnStr)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA %s", schemaName))
	require.NoError(t, err)
	t.Logf("SharedTestDB: created schema %s", schemaName)
	_ = db.Close()

	connStrWithSchema := util.AddSearchPathToConnString(baseConnStr, schemaName)

	// Run migrations once via a throwaway client; each replica below opens
	// its own pool against the already-migrated schema.
	migrator, err := store.NewClient(ctx, store.Config{DSN: connStrWithSchema, MaxConns: 2, MinConns: 1})
	require.NoError(t, err)
	migrator.Close()

	s := &SharedTestDB{
		connStrWithSchema: connStrWithSchema,
		baseConnStr:       baseConnStr,
		schemaName:        schemaName,
	}

	// Drop the schema after all replicas have shut down (LIFO order
	// guarantees replica cleanups run before this one).
	t.Cleanup(func() {
		cleanDB, err := stdsql.Open("pgx", baseConnStr)
		if err != nil {
			t.Logf("SharedTestDB: warning: could not connect to drop schema %s: %v", schemaName, err)
			return
		}
		defer func() { _ = cleanDB.Close() }()
		_, err = cleanDB.ExecContext(context.Background(), fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schemaName))
		if err != nil {
			t.Logf("SharedTestDB: warning: failed to drop schema %s: %v", schemaName, err)
		}
	})

	return s
}

// NewClient creates an independent *store.Client backed by a fresh
// connection pool onto the shared schema. Each client has its own pool so
// replicas can be shut down independently without races. Closed via
// t.Cleanup.
func (s *SharedTestDB) NewClient(t *testing.T) *store.Client {
	t.Helper()

	cl, err := store.NewClient(context.Background(), store.Config{
		DSN:      s.connStrWithSchema,
		MaxConns: 5,
		MinConns: 1,
	})
	require.NoError(t, err)

	t.Cleanup(cl.Close)
	return cl
}

// ConnString exposes the shared schema's connection string for components
// that need their own raw connection, e.g. a bus.Listener's dedicated
// pgx.Conn.
func (s *SharedTestDB) ConnString() string {
	return s.connStrWithSchema
}
