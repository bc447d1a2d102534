package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"customsdesk/internal/config"
	"customsdesk/internal/email/noop"
	"customsdesk/internal/email/ses"
	"customsdesk/internal/extractor"
	"customsdesk/internal/extractor/claude"
	"customsdesk/internal/extractor/gemini"
	"customsdesk/internal/handler"
	"customsdesk/internal/port"
	"customsdesk/internal/repository/bolt"
	"customsdesk/internal/repository/memory"
	"customsdesk/internal/repository/postgres"
	"customsdesk/internal/router"
	"customsdesk/internal/service"
	s3storage "customsdesk/internal/storage/s3"
	"customsdesk/internal/submission"
	"customsdesk/internal/submission/customs"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize session store
	sessionRepo, pinger, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore.Close() }()

	// Initialize storage
	s3Client, err := s3storage.NewS3Client(&cfg.S3)
	if err != nil {
		return fmt.Errorf("failed to initialize S3 client: %w", err)
	}

	// Initialize email sender
	var emailSender port.EmailSender
	switch cfg.Email.Provider {
	case "ses":
		emailSender, err = ses.NewSESSender(cfg.Email.Region, cfg.Email.FromAddress, cfg.Email.FromName, cfg.Email.DashboardURL)
		if err != nil {
			return fmt.Errorf("failed to initialize SES sender: %w", err)
		}
	default:
		emailSender = noop.NewNoopSender(cfg.Email.DashboardURL)
	}

	// Initialize extractors
	claude.Register()
	gemini.Register()
	docExtractor, err := extractor.Build(&cfg.Extractor)
	if err != nil {
		return fmt.Errorf("failed to initialize extractor: %w", err)
	}

	// Submission pipeline: customs authority, client notification, archive
	pipeline := submission.NewPipeline(cfg.Submission, []port.SubmissionStepExecutor{
		customs.NewClient(&cfg.Customs),
		submission.NewNotifyStep(emailSender, cfg.Email.DefaultRecipient),
		submission.NewArchiveStep(s3Client, cfg.S3.Bucket),
	})

	// Initialize services
	declarationSvc := service.NewDeclarationService(sessionRepo, docExtractor, s3Client, pipeline, &cfg.S3)

	// Resume submissions interrupted by a restart
	workerCtx, stopWorker := context.WithCancel(context.Background())
	recoveryWorker := service.NewRecoveryWorker(sessionRepo, declarationSvc, service.RecoveryConfig{
		PollInterval: cfg.Submission.RecoveryInterval,
		StaleAfter:   cfg.Submission.RecoveryStaleAfter,
		Concurrency:  cfg.Submission.RecoveryConcurrency,
	})
	workerDone := make(chan struct{})
	go func() {
		recoveryWorker.Start(workerCtx)
		close(workerDone)
	}()

	// Initialize handlers
	sessionH := handler.NewSessionHandler(declarationSvc)
	reportH := handler.NewReportHandler(declarationSvc)
	healthH := handler.NewHealthHandler(pinger)

	// Setup router
	r := router.Setup(cfg.CORS.AllowedOrigins, sessionH, reportH, healthH)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s (store=%s)", cfg.Server.Port, cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		stopWorker()
		<-workerDone
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case sig := <-quit:
		log.Printf("Received %s, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	stopWorker()
	<-workerDone
	return nil
}

// openStore selects the session repository for the configured driver.
func openStore(cfg *config.Config) (port.SessionRepository, handler.Pinger, io.Closer, error) {
	switch cfg.Store.Driver {
	case "bolt":
		db, err := bolt.Open(cfg.Store.BoltPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open bolt store: %w", err)
		}
		return bolt.NewSessionRepo(db), db, db, nil
	case "memory":
		log.Printf("using in-memory session store; sessions are lost on restart")
		return memory.NewSessionRepo(), nil, io.NopCloser(nil), nil
	default:
		db, err := postgres.NewDB(&cfg.DB)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return postgres.NewSessionRepo(db), db, db, nil
	}
}
