// Package e2e provides end-to-end test infrastructure for the
// eventharness pipeline: seed → collect → status → verify → report,
// driven over the real HTTP surface against a real Postgres-backed Store
// and Bus, with an in-memory Archive standing in for S3.
package e2e

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/eventharness/pkg/api"
	"github.com/codeready-toolchain/eventharness/pkg/archive"
	"github.com/codeready-toolchain/eventharness/pkg/bus"
	"github.com/codeready-toolchain/eventharness/pkg/services"
	"github.com/codeready-toolchain/eventharness/pkg/store"
	testutil "github.com/codeready-toolchain/eventharness/test/util"
)

// TestApp boots a complete eventharness instance for e2e testing: a real
// Store (Postgres, per-test schema), a real Bus (Postgres LISTEN/NOTIFY on
// that same database), an in-memory Archive, every service, and an HTTP
// server listening on a random port.
type TestApp struct {
	Store   *store.Client
	Archive archive.Archive

	Listener *bus.Listener
	Rule     *services.BusRuleController

	Server *api.Server

	BaseURL string

	t *testing.T
}

// NewTestApp creates and starts a full eventharness test instance.
// Shutdown is registered via t.Cleanup automatically.
func NewTestApp(t *testing.T) *TestApp {
	t.Helper()
	ctx := context.Background()

	storeClient := testutil.SetupTestStore(t)
	fakeA := newFakeArchive()

	connStr := testutil.GetBaseConnectionString(t)
	publisherDB, err := sql.Open("pgx", connStr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = publisherDB.Close() })

	const busChannel = "eventharness_test_rule"
	publisher := bus.NewPublisher(publisherDB, busChannel)

	listener := bus.NewListener(connStr)
	require.NoError(t, listener.Start(ctx))
	t.Cleanup(func() { listener.Stop(context.Background()) })

	seeder := services.NewSeederService(storeClient, fakeA, publisher)
	collector := services.NewCollectorService(storeClient, fakeA)
	verifier := services.NewVerifierService(storeClient, fakeA)
	reportSink := services.NewArchiveReportSink(fakeA)
	report := services.NewReportService(storeClient, fakeA, reportSink)

	server := api.NewServer(storeClient, seeder, collector, verifier, report, nil, publisher)

	rule := services.NewBusRuleController(listener, busChannel, server.BusHandler())
	_, err = rule.Enable(ctx)
	require.NoError(t, err)
	server.SetRule(rule)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		_ = server.Router().RunListener(ln)
	}()

	// Give the listener goroutine a moment to start accepting. gin's
	// RunListener blocks immediately on Accept, so this is generous but
	// harmless; tests poll /health before proceeding regardless.
	time.Sleep(10 * time.Millisecond)

	app := &TestApp{
		Store:    storeClient,
		Archive:  fakeA,
		Listener: listener,
		Rule:     rule,
		Server:   server,
		BaseURL:  fmt.Sprintf("http://%s", ln.Addr().String()),
		t:        t,
	}

	app.waitHealthy(t)
	return app
}

func (app *TestApp) waitHealthy(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, status, err := doGet(app.BaseURL + "/health"); err == nil && status == 200 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("eventharness test server never became healthy")
}
