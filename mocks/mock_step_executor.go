package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"customsdesk/internal/domain"
	"customsdesk/internal/port"
)

// MockStepExecutor is a mock implementation of port.SubmissionStepExecutor.
// StepID is returned from Step without going through the mock.
type MockStepExecutor struct {
	mock.Mock
	StepID domain.SubmissionStep
}

func (m *MockStepExecutor) Step() domain.SubmissionStep {
	return m.StepID
}

func (m *MockStepExecutor) Execute(ctx context.Context, input port.SubmissionInput) (*port.StepResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.StepResult), args.Error(1)
}
