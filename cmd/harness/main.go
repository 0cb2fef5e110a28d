// Command harness runs the event-driven integration-test harness: the
// Seeder, Collector, Verifier, Rule controller, and Report producer,
// served as HTTP (plus one WebSocket) endpoints over a shared Store and
// Archive (SPEC_FULL §0).
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/codeready-toolchain/eventharness/pkg/api"
	"github.com/codeready-toolchain/eventharness/pkg/archive"
	"github.com/codeready-toolchain/eventharness/pkg/bus"
	"github.com/codeready-toolchain/eventharness/pkg/cleanup"
	"github.com/codeready-toolchain/eventharness/pkg/config"
	"github.com/codeready-toolchain/eventharness/pkg/services"
	"github.com/codeready-toolchain/eventharness/pkg/store"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	flag.Parse()

	cfg, err := config.Load(*configDir)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting eventharness")
	log.Printf("HTTP Port: %s", cfg.HTTPPort)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storeClient, err := store.NewClient(ctx, cfg.Store)
	if err != nil {
		log.Fatalf("Failed to connect to store: %v", err)
	}
	defer storeClient.Close()
	log.Println("connected to store and applied migrations")

	archiveClient, err := archive.NewClient(ctx, cfg.Archive)
	if err != nil {
		log.Fatalf("Failed to build archive client: %v", err)
	}

	publisherDB, err := sql.Open("pgx", cfg.Store.DSN)
	if err != nil {
		log.Fatalf("Failed to open bus publisher connection: %v", err)
	}
	defer publisherDB.Close()

	busChannel := bus.ControlChannel(cfg.BusPrefix, cfg.RuleName)
	publisher := bus.NewPublisher(publisherDB, busChannel)

	listener := bus.NewListener(cfg.Store.DSN)
	if err := listener.Start(ctx); err != nil {
		log.Fatalf("Failed to start bus listener: %v", err)
	}
	defer listener.Stop(context.Background())

	seeder := services.NewSeederService(storeClient, archiveClient, publisher)
	collector := services.NewCollectorService(storeClient, archiveClient)
	verifier := services.NewVerifierService(storeClient, archiveClient)
	reportSink := services.NewArchiveReportSink(archiveClient)
	report := services.NewReportService(storeClient, archiveClient, reportSink)

	server := api.NewServer(storeClient, seeder, collector, verifier, report, nil, publisher)

	rule := services.NewBusRuleController(listener, busChannel, server.BusHandler())
	if _, err := rule.Enable(ctx); err != nil {
		log.Fatalf("Failed to enable collection rule: %v", err)
	}
	server.SetRule(rule)

	cleanupSvc := cleanup.NewService(storeClient, 5*time.Minute)
	cleanupSvc.Start(ctx)
	defer cleanupSvc.Stop()

	httpServer := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: server.Router()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	log.Printf("HTTP server listening on :%s", cfg.HTTPPort)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}
