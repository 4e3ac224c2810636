package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pharmapointe/ordonnance-api/internal/config"
	"github.com/pharmapointe/ordonnance-api/internal/document"
	"github.com/pharmapointe/ordonnance-api/internal/email"
	authHandler "github.com/pharmapointe/ordonnance-api/internal/handler/auth"
	healthHandler "github.com/pharmapointe/ordonnance-api/internal/handler/health"
	messageHandler "github.com/pharmapointe/ordonnance-api/internal/handler/message"
	noteHandler "github.com/pharmapointe/ordonnance-api/internal/handler/note"
	prescriptionHandler "github.com/pharmapointe/ordonnance-api/internal/handler/prescription"
	"github.com/pharmapointe/ordonnance-api/internal/middleware"
	"github.com/pharmapointe/ordonnance-api/internal/repository/postgres"
	"github.com/pharmapointe/ordonnance-api/internal/router"
	collaboratorService "github.com/pharmapointe/ordonnance-api/internal/service/collaborator"
	messageService "github.com/pharmapointe/ordonnance-api/internal/service/message"
	noteService "github.com/pharmapointe/ordonnance-api/internal/service/note"
	prescriptionService "github.com/pharmapointe/ordonnance-api/internal/service/prescription"
	reportService "github.com/pharmapointe/ordonnance-api/internal/service/report"
	"github.com/pharmapointe/ordonnance-api/pkg/auth"
	"github.com/pharmapointe/ordonnance-api/pkg/logger"
	"github.com/pharmapointe/ordonnance-api/pkg/security"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	location, err := cfg.Scheduler.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid scheduler timezone")
	}

	ctx := context.Background()
	documents, err := document.NewGCSStore(ctx, cfg.Storage.Bucket)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize document store")
	}
	notifier := email.NewNotifier(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)

	prescriptionRepo := postgres.NewPrescriptionRepository(db)
	cycleRepo := postgres.NewCycleRepository(db)
	noteRepo := postgres.NewNoteRepository(db)
	messageRepo := postgres.NewMessageRepository(db)
	counterRepo := postgres.NewCounterRepository(db)
	collaboratorRepo := postgres.NewCollaboratorRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	tokens := auth.NewService(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)
	hasher := security.NewBcryptHasher(0)

	prescriptionSvc := prescriptionService.NewService(
		prescriptionRepo, cycleRepo, noteRepo, messageRepo, counterRepo,
		outboxRepo, documents, notifier, appLogger,
	)
	noteSvc := noteService.NewService(noteRepo, prescriptionRepo, cycleRepo)
	reportSvc := reportService.NewService(prescriptionRepo, cycleRepo, noteRepo, collaboratorRepo, documents, location)
	messageSvc := messageService.NewService(messageRepo, documents, appLogger)
	collaboratorSvc := collaboratorService.NewService(collaboratorRepo, hasher, tokens)

	authMiddleware := middleware.NewAuthMiddleware(tokens)

	r := router.NewRouter(
		authMiddleware,
		healthHandler.NewHandler(db),
		authHandler.NewHandler(collaboratorSvc),
		prescriptionHandler.NewHandler(prescriptionSvc, reportSvc),
		messageHandler.NewHandler(messageSvc, prescriptionSvc),
		noteHandler.NewHandler(noteSvc),
		router.DefaultConfig(),
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Server.Port).Msg("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
