package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"customsdesk/internal/domain"
	"customsdesk/internal/port"
)

// RecoveryConfig holds settings for the submission recovery worker.
type RecoveryConfig struct {
	PollInterval time.Duration
	// StaleAfter is how long a session may sit in the submitting phase
	// without an update before it is considered abandoned.
	StaleAfter  time.Duration
	Concurrency int
}

// RecoveryWorker resumes submissions interrupted by a crash or restart. It
// polls for sessions stuck in the submitting phase and continues each one
// from its last completed step.
type RecoveryWorker struct {
	repo    port.SessionRepository
	service DeclarationService
	cfg     RecoveryConfig
	now     func() time.Time
	wg      sync.WaitGroup

	mu      sync.Mutex
	running map[uuid.UUID]struct{}
}

// NewRecoveryWorker creates a new RecoveryWorker.
func NewRecoveryWorker(repo port.SessionRepository, service DeclarationService, cfg RecoveryConfig) *RecoveryWorker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &RecoveryWorker{
		repo:    repo,
		service: service,
		cfg:     cfg,
		now:     time.Now,
		running: make(map[uuid.UUID]struct{}),
	}
}

// Start runs the polling loop until ctx is canceled. It blocks until all
// in-flight resumes have finished.
func (w *RecoveryWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	sem := make(chan struct{}, w.cfg.Concurrency)

	log.Printf("recoveryWorker: started (poll=%s, staleAfter=%s, concurrency=%d)",
		w.cfg.PollInterval, w.cfg.StaleAfter, w.cfg.Concurrency)

	for {
		select {
		case <-ctx.Done():
			log.Printf("recoveryWorker: shutting down, waiting for in-flight submissions...")
			w.wg.Wait()
			log.Printf("recoveryWorker: shutdown complete")
			return
		case <-ticker.C:
			available := w.cfg.Concurrency - len(sem)
			if available <= 0 {
				continue
			}

			cutoff := w.now().Add(-w.cfg.StaleAfter)
			sessions, err := w.repo.ListByPhase(ctx, domain.PhaseSubmitting, cutoff, available)
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				log.Printf("recoveryWorker: ListByPhase error: %v", err)
				continue
			}

			for i := range sessions {
				id := sessions[i].ID
				if !w.claim(id) {
					continue
				}

				sem <- struct{}{}
				w.wg.Add(1)
				go func() {
					defer w.wg.Done()
					defer func() { <-sem }()
					defer w.release(id)

					// Resumes finish even during shutdown.
					log.Printf("recoveryWorker: resuming submission for session %s", id)
					if _, err := w.service.ResumeSubmission(context.Background(), id); err != nil {
						log.Printf("recoveryWorker: session %s: %v", id, err)
					}
				}()
			}
		}
	}
}

func (w *RecoveryWorker) claim(id uuid.UUID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, busy := w.running[id]; busy {
		return false
	}
	w.running[id] = struct{}{}
	return true
}

func (w *RecoveryWorker) release(id uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.running, id)
}
