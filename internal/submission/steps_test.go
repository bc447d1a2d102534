package submission_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"customsdesk/internal/domain"
	"customsdesk/internal/port"
	"customsdesk/internal/submission"
	"customsdesk/mocks"
)

func lodgedInput() port.SubmissionInput {
	return port.SubmissionInput{
		SessionID:   uuid.New(),
		Reference:   31,
		ClientName:  "Acme Imports",
		ClientEmail: "ops@acme.test",
		Declaration: &domain.WorkingDeclaration{CanonicalDeclaration: domain.CanonicalDeclaration{
			Goods:         domain.Goods{Value: "12000", Currency: "EUR"},
			Documentation: domain.Documentation{InvoiceNumber: "INV-77"},
			BillOfLading:  domain.BillOfLadingDetails{BLNumber: "BL-9"},
		}},
		Receipts: map[domain.SubmissionStep]domain.StepReceipt{
			domain.StepCustomsAuthority: {Reference: "CUS-1"},
		},
	}
}

func TestNotifyStep_SendsNotice(t *testing.T) {
	sender := new(mocks.MockEmailSender)
	sender.On("SendSubmissionNotice", mock.Anything, port.SubmissionNotice{
		ToEmail:          "ops@acme.test",
		ToName:           "Acme Imports",
		SessionReference: 31,
		AuthorityReceipt: "CUS-1",
		InvoiceNumber:    "INV-77",
		BLNumber:         "BL-9",
		DeclaredValue:    "12000",
		Currency:         "EUR",
	}).Return(nil)

	step := submission.NewNotifyStep(sender, "")
	result, err := step.Execute(context.Background(), lodgedInput())

	require.NoError(t, err)
	assert.Equal(t, "ops@acme.test", result.Reference)
	assert.Equal(t, domain.StepClientNotification, step.Step())
	sender.AssertExpectations(t)
}

func TestNotifyStep_FallsBackToDefaultRecipient(t *testing.T) {
	sender := new(mocks.MockEmailSender)
	sender.On("SendSubmissionNotice", mock.Anything, mock.MatchedBy(func(n port.SubmissionNotice) bool {
		return n.ToEmail == "desk@broker.test"
	})).Return(nil)

	input := lodgedInput()
	input.ClientEmail = ""
	_, err := submission.NewNotifyStep(sender, "desk@broker.test").Execute(context.Background(), input)

	require.NoError(t, err)
}

func TestNotifyStep_NoRecipientIsFatal(t *testing.T) {
	input := lodgedInput()
	input.ClientEmail = ""
	_, err := submission.NewNotifyStep(new(mocks.MockEmailSender), "").Execute(context.Background(), input)

	assert.True(t, domain.IsFatal(err))
}

func TestNotifyStep_PrecheckRequiresRecipient(t *testing.T) {
	input := lodgedInput()
	input.ClientEmail = "  "

	err := submission.NewNotifyStep(new(mocks.MockEmailSender), "").Precheck(input)
	assert.ErrorIs(t, err, domain.ErrNoNotifyRecipient)

	assert.NoError(t, submission.NewNotifyStep(new(mocks.MockEmailSender), "desk@broker.test").Precheck(input))
	assert.NoError(t, submission.NewNotifyStep(new(mocks.MockEmailSender), "").Precheck(lodgedInput()))
}

func TestNotifyStep_SendFailureIsRetryable(t *testing.T) {
	sender := new(mocks.MockEmailSender)
	sender.On("SendSubmissionNotice", mock.Anything, mock.Anything).Return(errors.New("throttled"))

	_, err := submission.NewNotifyStep(sender, "").Execute(context.Background(), lodgedInput())

	require.Error(t, err)
	assert.False(t, domain.IsFatal(err))
}

func TestArchiveStep_UploadsJSONAndWorkbook(t *testing.T) {
	storage := new(mocks.MockObjectStorage)
	storage.On("Upload", mock.Anything, mock.MatchedBy(func(in port.UploadInput) bool {
		return in.Bucket == "archive-bucket" && in.Key == "archive/31/declaration.json" && in.ContentType == "application/json" &&
			in.Metadata["reference"] == "31"
	})).Return(&port.UploadOutput{}, nil).Once()
	storage.On("Upload", mock.Anything, mock.MatchedBy(func(in port.UploadInput) bool {
		return in.Key == "archive/31/declaration.xlsx" && in.Size > 0
	})).Return(&port.UploadOutput{}, nil).Once()

	step := submission.NewArchiveStep(storage, "archive-bucket")
	result, err := step.Execute(context.Background(), lodgedInput())

	require.NoError(t, err)
	assert.Equal(t, "archive/31/", result.Reference)
	assert.Equal(t, domain.StepArchive, step.Step())
	storage.AssertExpectations(t)
}

func TestArchiveStep_UploadFailureIsRetryable(t *testing.T) {
	storage := new(mocks.MockObjectStorage)
	storage.On("Upload", mock.Anything, mock.Anything).Return(nil, errors.New("s3 unavailable"))

	_, err := submission.NewArchiveStep(storage, "b").Execute(context.Background(), lodgedInput())

	var retryable *domain.RetryableError
	require.ErrorAs(t, err, &retryable)
}
