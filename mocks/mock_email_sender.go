package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"customsdesk/internal/port"
)

// MockEmailSender is a mock implementation of port.EmailSender.
type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) SendSubmissionNotice(ctx context.Context, notice port.SubmissionNotice) error {
	args := m.Called(ctx, notice)
	return args.Error(0)
}
