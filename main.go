package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/inngest/inngestgo"
	"github.com/itbasis/go-clock"
	"github.com/mauv0809/scoreline/internal/admin"
	"github.com/mauv0809/scoreline/internal/auth"
	"github.com/mauv0809/scoreline/internal/config"
	"github.com/mauv0809/scoreline/internal/database"
	server "github.com/mauv0809/scoreline/internal/http"
	"github.com/mauv0809/scoreline/internal/inngest"
	"github.com/mauv0809/scoreline/internal/ledger"
	"github.com/mauv0809/scoreline/internal/lock"
	"github.com/mauv0809/scoreline/internal/metrics"
	"github.com/mauv0809/scoreline/internal/notifier/slack"
	"github.com/mauv0809/scoreline/internal/processor"
	"github.com/mauv0809/scoreline/internal/pubsub"
)

func main() {
	// Start profiling timer
	startTime := time.Now()
	log.SetFormatter(log.JSONFormatter)
	cfg := config.Load()
	db, dbTeardown, err := database.InitDB(cfg.DBName, cfg.Turso.PrimaryURL, cfg.Turso.AuthToken)
	dbInitDuration := time.Since(startTime)
	log.Info("Database initialization time recorded", "duration_ms", dbInitDuration.Milliseconds())
	if err != nil {
		log.Fatalf("Failed to initialize database: %s", err)
	}
	defer func() {
		log.Info("Closing database connection")
		dbTeardown()
	}()

	loc, err := lock.LoadZone(cfg.LockTimezone)
	if err != nil {
		log.Fatalf("Failed to load lock timezone: %s", err)
	}
	clk := clock.New()
	metricsSvc := metrics.NewService()
	metricsHandler := metrics.NewMetricsHandler()
	notifier := slack.NewNotifier(cfg.Slack.Token, cfg.Slack.ChannelID, loc, metricsSvc)
	var resultNotifier processor.Notifier
	if cfg.Slack.Enabled() {
		resultNotifier = notifier
	} else {
		log.Warn("Slack is not configured, result notifications are disabled")
	}

	// The trigger backend decides who publishes match-created events and
	// who consumes them. proc is assigned once the ledger exists.
	var (
		proc           *processor.Processor
		publisher      ledger.Publisher
		decoder        pubsub.PubSubClient
		inngestHandler http.Handler
	)
	switch cfg.TriggerBackend {
	case config.TriggerPubSub:
		ps, psTeardown, err := pubsub.New(context.Background(), cfg.ProjectID)
		if err != nil {
			log.Fatalf("Failed to initialize pubsub: %s", err)
		}
		defer psTeardown()
		publisher, decoder = ps, ps
	case config.TriggerInngest:
		options := inngestgo.ClientOpts{
			AppID:      cfg.Inngest.AppID,
			SigningKey: &cfg.Inngest.SigningKey,
			EventKey:   &cfg.Inngest.EventKey,
			Dev:        &cfg.Inngest.Dev,
		}
		inngestProvider, err := inngestgo.NewClient(options)
		if err != nil {
			log.Fatalf("Failed to initialize inngest: %s", err)
		}
		inngestClient, err := inngest.New(inngestProvider, inngest.HandlerFunc(func(ctx context.Context, e ledger.MatchCreatedEvent, dryRun bool) {
			proc.HandleMatchCreated(ctx, e, dryRun)
		}))
		if err != nil {
			log.Fatalf("Failed to register inngest functions: %s", err)
		}
		publisher, decoder, inngestHandler = inngestClient, pubsub.NewLocal(), inngestClient.Serve()
	default:
		bus := pubsub.NewLocal()
		publisher, decoder = bus, bus
	}

	store := ledger.New(db, clk, loc, publisher, metricsSvc)
	proc = processor.New(store, resultNotifier, loc, clk, metricsSvc)
	if bus, ok := publisher.(*pubsub.Local); ok {
		bus.Subscribe(pubsub.EventMatchCreated, proc.MatchCreatedHandler(bus))
	}
	signer := auth.NewSigner(cfg.Auth.Secret, clk, cfg.Auth.PrincipalTTL)
	adminSvc := admin.New(db, signer, clk, cfg.Auth.AdminTTL, metricsSvc)

	s := server.NewServer(
		store,
		adminSvc,
		signer,
		metricsSvc,
		metricsHandler,
		cfg,
		notifier,
		proc,
		decoder,
		inngestHandler,
	)
	log.Info("Lock trigger configured", "backend", cfg.TriggerBackend, "timezone", loc.String())

	// --- Record startup time ---
	startupDuration := time.Since(startTime)
	metricsSvc.SetStartupTime(startupDuration.Seconds())
	log.Info("Startup time recorded", "duration_ms", startupDuration.Milliseconds())

	// --- Graceful shutdown setup ---
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: s,
	}

	// Channel to listen for errors coming from the server
	serverErrors := make(chan error, 1)

	// Start the server in a goroutine
	go func() {
		log.Info("Server started", "port", cfg.Port)
		serverErrors <- srv.ListenAndServe()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or an error
	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	case sig := <-shutdown:
		log.Info("Shutdown signal received", "signal", sig)

		// Create a context with a timeout for the shutdown.
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// Attempt to gracefully shut down the server.
		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Server shutdown failed", "error", err)
		} else {
			log.Info("Server gracefully stopped")
		}
		if bus, ok := publisher.(*pubsub.Local); ok {
			bus.Wait()
		}
	}

	log.Info("Server process shutting down")
}
