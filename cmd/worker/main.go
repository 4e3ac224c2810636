package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"

	"github.com/pharmapointe/ordonnance-api/internal/config"
	"github.com/pharmapointe/ordonnance-api/internal/document"
	"github.com/pharmapointe/ordonnance-api/internal/intake"
	"github.com/pharmapointe/ordonnance-api/internal/repository/postgres"
	"github.com/pharmapointe/ordonnance-api/internal/worker"
	"github.com/pharmapointe/ordonnance-api/pkg/logger"
	"github.com/pharmapointe/ordonnance-api/pkg/messaging/redis"
	"github.com/pharmapointe/ordonnance-api/pkg/metrics"
	pkgworker "github.com/pharmapointe/ordonnance-api/pkg/worker"
)

// overrides lets deployments tune the worker without touching the shared
// config file.
type overrides struct {
	IntervalMinutes int    `envconfig:"SCHEDULER_INTERVAL_MINUTES"`
	StaleAfterHours int    `envconfig:"SCHEDULER_STALE_AFTER_HOURS"`
	Timezone        string `envconfig:"SCHEDULER_TIMEZONE"`
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	var env overrides
	if err := envconfig.Process("worker", &env); err != nil {
		log.Fatal().Err(err).Msg("failed to read environment overrides")
	}
	if env.IntervalMinutes > 0 {
		cfg.Scheduler.IntervalMinutes = env.IntervalMinutes
	}
	if env.StaleAfterHours > 0 {
		cfg.Scheduler.StaleAfterHours = env.StaleAfterHours
	}
	if env.Timezone != "" {
		cfg.Scheduler.Timezone = env.Timezone
	}

	appLogger := logger.NewLogger(nil)
	m := metrics.New("ordonnance_worker")

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	location, err := cfg.Scheduler.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid scheduler timezone")
	}

	prescriptionRepo := postgres.NewPrescriptionRepository(db)
	cycleRepo := postgres.NewCycleRepository(db)
	noteRepo := postgres.NewNoteRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	scheduler := worker.NewRenewalScheduler(
		prescriptionRepo, cycleRepo, noteRepo,
		appLogger, m,
		cfg.Scheduler.Interval(), cfg.Scheduler.StaleAfter(), location,
	)

	broker, err := redis.NewRedisBroker(redis.Config{URL: cfg.Redis.URL}, &appLogger.ZL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	processor := pkgworker.NewOutboxProcessor(outboxRepo, broker, pkgworker.OutboxProcessorConfig{
		Channel:      cfg.Outbox.Channel,
		BatchSize:    cfg.Outbox.BatchSize,
		PollInterval: time.Duration(cfg.Outbox.PollSeconds) * time.Second,
	}, appLogger, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	documents, err := document.NewGCSStore(ctx, cfg.Storage.Bucket)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open document store")
	}
	messageRepo := postgres.NewMessageRepository(db)

	// Mailbox connectors register here as they land; with none configured
	// the runner idles until shutdown.
	intakeRunner := intake.NewRunner(nil, documents, messageRepo, appLogger, intake.RunnerConfig{
		PollInterval: cfg.Intake.PollInterval(),
	})

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		scheduler.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		intakeRunner.Start(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down worker...")
	cancel()
	wg.Wait()
	log.Info().Msg("worker exited properly")
}
