package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"customsdesk/internal/domain"
	"customsdesk/internal/service"
	"customsdesk/mocks"
)

func TestRecoveryWorker_ResumesStaleSubmissions(t *testing.T) {
	repo := new(mocks.MockSessionRepo)
	svc := new(mocks.MockDeclarationService)

	session := domain.DeclarationSession{ID: uuid.New(), Phase: domain.PhaseSubmitting}

	repo.On("ListByPhase", mock.Anything, domain.PhaseSubmitting, mock.AnythingOfType("time.Time"), mock.AnythingOfType("int")).
		Return([]domain.DeclarationSession{session}, nil).Once()
	repo.On("ListByPhase", mock.Anything, domain.PhaseSubmitting, mock.AnythingOfType("time.Time"), mock.AnythingOfType("int")).
		Return([]domain.DeclarationSession{}, nil).Maybe()
	svc.On("ResumeSubmission", mock.Anything, session.ID).
		Return(&domain.DeclarationSession{ID: session.ID, Phase: domain.PhaseSubmitted}, nil).Once()

	worker := service.NewRecoveryWorker(repo, svc, service.RecoveryConfig{
		PollInterval: 50 * time.Millisecond,
		StaleAfter:   time.Minute,
		Concurrency:  2,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	time.Sleep(200 * time.Millisecond)
	cancel()
	<-done

	svc.AssertNumberOfCalls(t, "ResumeSubmission", 1)
}

func TestRecoveryWorker_LimitsPollToConcurrency(t *testing.T) {
	repo := new(mocks.MockSessionRepo)
	svc := new(mocks.MockDeclarationService)

	repo.On("ListByPhase", mock.Anything, domain.PhaseSubmitting, mock.AnythingOfType("time.Time"), 3).
		Return([]domain.DeclarationSession{}, nil).Maybe()

	worker := service.NewRecoveryWorker(repo, svc, service.RecoveryConfig{
		PollInterval: 30 * time.Millisecond,
		StaleAfter:   time.Minute,
		Concurrency:  3,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	repo.AssertCalled(t, "ListByPhase", mock.Anything, domain.PhaseSubmitting, mock.AnythingOfType("time.Time"), 3)
	svc.AssertNotCalled(t, "ResumeSubmission", mock.Anything, mock.Anything)
}
