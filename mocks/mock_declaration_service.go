package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"customsdesk/internal/domain"
	"customsdesk/internal/service"
)

// MockDeclarationService is a mock implementation of service.DeclarationService.
type MockDeclarationService struct {
	mock.Mock
}

func (m *MockDeclarationService) session(args mock.Arguments) (*domain.DeclarationSession, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DeclarationSession), args.Error(1)
}

func (m *MockDeclarationService) StartSession(ctx context.Context, input service.StartSessionInput) (*domain.DeclarationSession, error) {
	return m.session(m.Called(ctx, input))
}

func (m *MockDeclarationService) GetSession(ctx context.Context, id uuid.UUID) (*domain.DeclarationSession, error) {
	return m.session(m.Called(ctx, id))
}

func (m *MockDeclarationService) UpdateClientContact(ctx context.Context, id uuid.UUID, input service.ClientContactInput) (*domain.DeclarationSession, error) {
	return m.session(m.Called(ctx, id, input))
}

func (m *MockDeclarationService) ListSessions(ctx context.Context, offset, limit int) ([]domain.DeclarationSession, int, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.DeclarationSession), args.Int(1), args.Error(2)
}

func (m *MockDeclarationService) SubmitInvoice(ctx context.Context, input service.DocumentInput) (*domain.DeclarationSession, error) {
	return m.session(m.Called(ctx, input))
}

func (m *MockDeclarationService) SubmitBillOfLading(ctx context.Context, input service.DocumentInput) (*domain.DeclarationSession, error) {
	return m.session(m.Called(ctx, input))
}

func (m *MockDeclarationService) ListDiscrepancies(ctx context.Context, id uuid.UUID) ([]domain.Discrepancy, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Discrepancy), args.Error(1)
}

func (m *MockDeclarationService) ResolveDiscrepancy(ctx context.Context, id uuid.UUID, field domain.FieldID, res domain.Resolution) (*domain.DeclarationSession, error) {
	return m.session(m.Called(ctx, id, field, res))
}

func (m *MockDeclarationService) AdvancePhase(ctx context.Context, id uuid.UUID) (*domain.DeclarationSession, error) {
	return m.session(m.Called(ctx, id))
}

func (m *MockDeclarationService) EditWorkingField(ctx context.Context, id uuid.UUID, field domain.FieldID, value string) (*domain.DeclarationSession, error) {
	return m.session(m.Called(ctx, id, field, value))
}

func (m *MockDeclarationService) SubmitDeclaration(ctx context.Context, id uuid.UUID) (*domain.DeclarationSession, error) {
	return m.session(m.Called(ctx, id))
}

func (m *MockDeclarationService) ResumeSubmission(ctx context.Context, id uuid.UUID) (*domain.DeclarationSession, error) {
	return m.session(m.Called(ctx, id))
}

func (m *MockDeclarationService) CancelSession(ctx context.Context, id uuid.UUID) (*domain.DeclarationSession, error) {
	return m.session(m.Called(ctx, id))
}

func (m *MockDeclarationService) ExportWorkingDeclaration(ctx context.Context, id uuid.UUID) ([]byte, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockDeclarationService) DocumentURL(ctx context.Context, id uuid.UUID, kind domain.DocumentKind) (string, error) {
	args := m.Called(ctx, id, kind)
	return args.String(0), args.Error(1)
}
