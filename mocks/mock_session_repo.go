package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"customsdesk/internal/domain"
)

// MockSessionRepo is a mock implementation of port.SessionRepository.
type MockSessionRepo struct {
	mock.Mock
}

func (m *MockSessionRepo) Create(ctx context.Context, session *domain.DeclarationSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.DeclarationSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DeclarationSession), args.Error(1)
}

func (m *MockSessionRepo) Update(ctx context.Context, session *domain.DeclarationSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepo) List(ctx context.Context, offset, limit int) ([]domain.DeclarationSession, int, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.DeclarationSession), args.Int(1), args.Error(2)
}

func (m *MockSessionRepo) ListByPhase(ctx context.Context, phase domain.Phase, updatedBefore time.Time, limit int) ([]domain.DeclarationSession, error) {
	args := m.Called(ctx, phase, updatedBefore, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DeclarationSession), args.Error(1)
}
