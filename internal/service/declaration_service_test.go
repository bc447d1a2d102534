package service_test

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"customsdesk/internal/config"
	"customsdesk/internal/domain"
	"customsdesk/internal/port"
	"customsdesk/internal/repository/memory"
	"customsdesk/internal/service"
	"customsdesk/internal/submission"
	"customsdesk/mocks"
)

type memFile struct {
	*bytes.Reader
}

func (memFile) Close() error { return nil }

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n")

func upload(id uuid.UUID, name string, data []byte) service.DocumentInput {
	return service.DocumentInput{
		SessionID: id,
		File:      memFile{bytes.NewReader(data)},
		Header:    &multipart.FileHeader{Filename: name, Size: int64(len(data))},
	}
}

type fixture struct {
	svc       service.DeclarationService
	repo      port.SessionRepository
	extractor *mocks.MockExtractor
	customs   *mocks.MockStepExecutor
	notify    *mocks.MockStepExecutor
	archive   *mocks.MockStepExecutor
}

func newFixture(storage port.ObjectStorage) *fixture {
	return newFixtureWith(memory.NewSessionRepo(), storage, nil)
}

// newFixtureWith builds a fixture around repo. A nil notify keeps the mocked
// notification step.
func newFixtureWith(
	repo port.SessionRepository,
	storage port.ObjectStorage,
	notify port.SubmissionStepExecutor,
	opts ...service.Option,
) *fixture {
	f := &fixture{
		repo:      repo,
		extractor: new(mocks.MockExtractor),
		customs:   &mocks.MockStepExecutor{StepID: domain.StepCustomsAuthority},
		notify:    &mocks.MockStepExecutor{StepID: domain.StepClientNotification},
		archive:   &mocks.MockStepExecutor{StepID: domain.StepArchive},
	}
	if notify == nil {
		notify = f.notify
	}
	pipeline := submission.NewPipeline(
		config.SubmissionConfig{MaxAttempts: 2, BaseBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
		[]port.SubmissionStepExecutor{f.customs, notify, f.archive},
		submission.WithSleep(func(context.Context, time.Duration) error { return nil }),
	)
	s3cfg := &config.S3Config{Bucket: "declarations", MaxFileSizeMB: 1, PresignExpiry: 900}
	f.svc = service.NewDeclarationService(f.repo, f.extractor, storage, pipeline, s3cfg, opts...)
	return f
}

// deadlineRepo refuses writes on a finished context, as a database driver does.
type deadlineRepo struct {
	port.SessionRepository
}

func (r deadlineRepo) Update(ctx context.Context, session *domain.DeclarationSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.SessionRepository.Update(ctx, session)
}

func kindIs(kind domain.DocumentKind) interface{} {
	return mock.MatchedBy(func(in port.ExtractInput) bool { return in.Kind == kind })
}

func (f *fixture) expectExtraction(kind domain.DocumentKind, decl *domain.CanonicalDeclaration) {
	f.extractor.On("Extract", mock.Anything, kindIs(kind)).
		Return(&port.ExtractOutput{Declaration: decl, ModelUsed: "test-model"}, nil).Once()
}

// toComparing walks a new session through both uploads into the comparing phase.
func (f *fixture) toComparing(t *testing.T, invoice, bl *domain.CanonicalDeclaration) *domain.DeclarationSession {
	t.Helper()
	ctx := context.Background()

	session, err := f.svc.StartSession(ctx, service.StartSessionInput{ClientName: "Acme Imports", ClientEmail: "ops@acme.test"})
	require.NoError(t, err)

	f.expectExtraction(domain.DocumentInvoice, invoice)
	_, err = f.svc.SubmitInvoice(ctx, upload(session.ID, "invoice.pdf", pdfBytes))
	require.NoError(t, err)
	_, err = f.svc.AdvancePhase(ctx, session.ID)
	require.NoError(t, err)

	f.expectExtraction(domain.DocumentBillOfLading, bl)
	_, err = f.svc.SubmitBillOfLading(ctx, upload(session.ID, "bl.pdf", pdfBytes))
	require.NoError(t, err)
	session, err = f.svc.AdvancePhase(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, domain.PhaseComparing, session.Phase)
	return session
}

// toReviewing resolves every discrepancy with the bill of lading value.
func (f *fixture) toReviewing(t *testing.T, invoice, bl *domain.CanonicalDeclaration) *domain.DeclarationSession {
	t.Helper()
	ctx := context.Background()
	session := f.toComparing(t, invoice, bl)
	for _, d := range session.Discrepancies {
		_, err := f.svc.ResolveDiscrepancy(ctx, session.ID, d.Field, domain.Resolution{Choice: domain.UseBLValue})
		require.NoError(t, err)
	}
	session, err := f.svc.AdvancePhase(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, domain.PhaseReviewing, session.Phase)
	return session
}

func (f *fixture) stepsSucceed() {
	f.customs.On("Execute", mock.Anything, mock.Anything).Return(&port.StepResult{Reference: "CUS-2026-0001"}, nil)
	f.notify.On("Execute", mock.Anything, mock.Anything).Return(&port.StepResult{Reference: "ops@acme.test"}, nil)
	f.archive.On("Execute", mock.Anything, mock.Anything).Return(&port.StepResult{Reference: "archive/1/"}, nil)
}

func invoiceDecl() *domain.CanonicalDeclaration {
	d := &domain.CanonicalDeclaration{}
	d.Shipper.Name = "Shenzhen Widget Co"
	d.Consignee.Name = "Acme Imports"
	d.Goods.Description = "Plastic widgets"
	d.Goods.Weight = "450 KG"
	d.Goods.Value = "12,000.00"
	d.Goods.Currency = "USD"
	d.Documentation.InvoiceNumber = "INV-881"
	return d
}

func blDecl() *domain.CanonicalDeclaration {
	d := &domain.CanonicalDeclaration{}
	d.Shipper.Name = "Shenzhen Widget Co"
	d.BillOfLading.GrossWeight = "455 KG"
	d.BillOfLading.BLNumber = "MSKU123456"
	d.BillOfLading.ContainerNumbers = []string{"MSKU1234565"}
	return d
}

func TestDeclarationService_StartSession(t *testing.T) {
	f := newFixture(nil)

	session, err := f.svc.StartSession(context.Background(), service.StartSessionInput{ClientName: "  Acme  "})

	require.NoError(t, err)
	assert.Equal(t, domain.PhaseAwaitingInvoice, session.Phase)
	assert.Equal(t, "Acme", session.ClientName)
	assert.Equal(t, int64(1), session.Reference)
	assert.Empty(t, session.Discrepancies)
	assert.Nil(t, session.Working)
}

func TestDeclarationService_WeightDiscrepancyResolvedWithBLValue(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()

	session := f.toComparing(t, invoiceDecl(), blDecl())
	require.Len(t, session.Discrepancies, 1)
	assert.Equal(t, domain.Discrepancy{Field: domain.FieldWeight, InvoiceValue: "450 KG", BLValue: "455 KG"}, session.Discrepancies[0])

	_, err := f.svc.ResolveDiscrepancy(ctx, session.ID, domain.FieldWeight, domain.Resolution{Choice: domain.UseBLValue})
	require.NoError(t, err)

	session, err = f.svc.AdvancePhase(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseReviewing, session.Phase)
	require.NotNil(t, session.Working)
	assert.Equal(t, "455 KG", session.Working.Goods.Weight)
	assert.Equal(t, "455 KG", session.Working.BillOfLading.GrossWeight)
	assert.Equal(t, "INV-881", session.Working.Documentation.InvoiceNumber)
	assert.Equal(t, "MSKU123456", session.Working.BillOfLading.BLNumber)
	assert.Empty(t, session.Discrepancies)
}

func TestDeclarationService_DisjointCoverageMergesWithoutDiscrepancies(t *testing.T) {
	f := newFixture(nil)

	invoice := &domain.CanonicalDeclaration{}
	invoice.Goods.Value = "5000"
	invoice.Goods.Currency = "EUR"
	bl := &domain.CanonicalDeclaration{}
	bl.Transport.Vessel = "MAERSK EDMONTON"
	bl.BillOfLading.PortOfLoading = "Ningbo"

	session := f.toComparing(t, invoice, bl)
	assert.Empty(t, session.Discrepancies)

	session, err := f.svc.AdvancePhase(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, "5000", session.Working.Goods.Value)
	assert.Equal(t, "EUR", session.Working.Goods.Currency)
	assert.Equal(t, "MAERSK EDMONTON", session.Working.Transport.Vessel)
	assert.Equal(t, "Ningbo", session.Working.BillOfLading.PortOfLoading)
}

func TestDeclarationService_SubmitInvoice_WrongPhase(t *testing.T) {
	f := newFixture(nil)
	session := f.toComparing(t, invoiceDecl(), blDecl())

	_, err := f.svc.SubmitInvoice(context.Background(), upload(session.ID, "invoice.pdf", pdfBytes))

	assert.ErrorIs(t, err, domain.ErrPhaseMismatch)
	f.extractor.AssertNumberOfCalls(t, "Extract", 2)
}

func TestDeclarationService_SubmitInvoice_RejectsUnsupportedFile(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	session, err := f.svc.StartSession(ctx, service.StartSessionInput{})
	require.NoError(t, err)

	_, err = f.svc.SubmitInvoice(ctx, upload(session.ID, "invoice.txt", []byte("hello")))
	assert.ErrorIs(t, err, domain.ErrUnsupportedFileType)

	_, err = f.svc.SubmitInvoice(ctx, upload(session.ID, "invoice.pdf", []byte("not really a pdf")))
	assert.ErrorIs(t, err, domain.ErrUnsupportedFileType)

	big := append([]byte("%PDF-1.4\n"), make([]byte, 1024*1024)...)
	_, err = f.svc.SubmitInvoice(ctx, upload(session.ID, "invoice.pdf", big))
	assert.ErrorIs(t, err, domain.ErrFileTooLarge)

	f.extractor.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
}

func TestDeclarationService_SubmitInvoice_ExtractionFailureLeavesSlotEmpty(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	session, err := f.svc.StartSession(ctx, service.StartSessionInput{})
	require.NoError(t, err)

	f.extractor.On("Extract", mock.Anything, mock.Anything).Return(nil, errors.New("model unavailable")).Once()

	_, err = f.svc.SubmitInvoice(ctx, upload(session.ID, "invoice.pdf", pdfBytes))

	var extractionErr *domain.ExtractionError
	require.ErrorAs(t, err, &extractionErr)
	assert.Equal(t, domain.DocumentInvoice, extractionErr.Kind)

	stored, err := f.svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Invoice)
	assert.Equal(t, domain.PhaseAwaitingInvoice, stored.Phase)
}

func TestDeclarationService_SubmitInvoice_ReplacesPreviousExtraction(t *testing.T) {
	storage := new(mocks.MockObjectStorage)
	f := newFixture(storage)
	ctx := context.Background()
	session, err := f.svc.StartSession(ctx, service.StartSessionInput{})
	require.NoError(t, err)

	storage.On("Upload", mock.Anything, mock.MatchedBy(func(in port.UploadInput) bool {
		return in.Bucket == "declarations" && in.ContentType == "application/pdf" &&
			in.Metadata["document-kind"] == string(domain.DocumentInvoice)
	})).Return(&port.UploadOutput{}, nil)

	first := invoiceDecl()
	f.expectExtraction(domain.DocumentInvoice, first)
	session, err = f.svc.SubmitInvoice(ctx, upload(session.ID, "invoice.pdf", pdfBytes))
	require.NoError(t, err)
	firstKey := session.Invoice.StorageKey
	assert.Contains(t, firstKey, "sessions/"+session.ID.String()+"/invoice/")

	storage.On("Delete", mock.Anything, "declarations", firstKey).Return(nil).Once()

	second := invoiceDecl()
	second.Goods.Weight = "460 KG"
	f.expectExtraction(domain.DocumentInvoice, second)
	session, err = f.svc.SubmitInvoice(ctx, upload(session.ID, "invoice-v2.pdf", pdfBytes))
	require.NoError(t, err)

	assert.Equal(t, "460 KG", session.Invoice.Declaration.Goods.Weight)
	assert.Equal(t, "invoice-v2.pdf", session.Invoice.FileName)
	assert.NotEqual(t, firstKey, session.Invoice.StorageKey)
	storage.AssertExpectations(t)
}

func TestDeclarationService_SubmitInvoice_UploadFailureIsNotFatal(t *testing.T) {
	storage := new(mocks.MockObjectStorage)
	f := newFixture(storage)
	ctx := context.Background()
	session, err := f.svc.StartSession(ctx, service.StartSessionInput{})
	require.NoError(t, err)

	storage.On("Upload", mock.Anything, mock.Anything).Return(nil, errors.New("bucket gone"))
	f.expectExtraction(domain.DocumentInvoice, invoiceDecl())

	session, err = f.svc.SubmitInvoice(ctx, upload(session.ID, "invoice.pdf", pdfBytes))

	require.NoError(t, err)
	require.NotNil(t, session.Invoice)
	assert.Empty(t, session.Invoice.StorageKey)
}

func TestDeclarationService_SubmitInvoice_ConcurrentUploadRefused(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	session, err := f.svc.StartSession(ctx, service.StartSessionInput{})
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	f.extractor.On("Extract", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(&port.ExtractOutput{Declaration: invoiceDecl()}, nil).Once()

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.SubmitInvoice(ctx, upload(session.ID, "invoice.pdf", pdfBytes))
		done <- err
	}()
	<-started

	_, err = f.svc.SubmitInvoice(ctx, upload(session.ID, "other.pdf", pdfBytes))
	assert.ErrorIs(t, err, domain.ErrExtractionInProgress)

	close(release)
	require.NoError(t, <-done)
	f.extractor.AssertNumberOfCalls(t, "Extract", 1)
}

func TestDeclarationService_CancelDuringExtractionDiscardsResult(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	session, err := f.svc.StartSession(ctx, service.StartSessionInput{})
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	f.extractor.On("Extract", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(&port.ExtractOutput{Declaration: invoiceDecl()}, nil).Once()

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.SubmitInvoice(ctx, upload(session.ID, "invoice.pdf", pdfBytes))
		done <- err
	}()
	<-started

	cancelled, err := f.svc.CancelSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseCancelled, cancelled.Phase)

	close(release)
	assert.ErrorIs(t, <-done, domain.ErrSessionClosed)

	stored, err := f.svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Invoice)
}

func TestDeclarationService_AdvancePhase_Guards(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	session, err := f.svc.StartSession(ctx, service.StartSessionInput{})
	require.NoError(t, err)

	_, err = f.svc.AdvancePhase(ctx, session.ID)
	var transitionErr *domain.PhaseTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, domain.ReasonMissingInvoice, transitionErr.Reason)
	assert.Equal(t, domain.PhaseAwaitingInvoice, transitionErr.From)

	f.expectExtraction(domain.DocumentInvoice, invoiceDecl())
	_, err = f.svc.SubmitInvoice(ctx, upload(session.ID, "invoice.pdf", pdfBytes))
	require.NoError(t, err)
	_, err = f.svc.AdvancePhase(ctx, session.ID)
	require.NoError(t, err)

	_, err = f.svc.AdvancePhase(ctx, session.ID)
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, domain.ReasonMissingBillOfLading, transitionErr.Reason)

	stored, err := f.svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseAwaitingBillOfLading, stored.Phase)
}

func TestDeclarationService_AdvancePhase_UnresolvedDiscrepancies(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()

	bl := blDecl()
	bl.Consignee.Name = "ACME IMPORTS LTD"
	session := f.toComparing(t, invoiceDecl(), bl)
	require.Len(t, session.Discrepancies, 2)

	_, err := f.svc.ResolveDiscrepancy(ctx, session.ID, domain.FieldWeight, domain.Resolution{Choice: domain.UseInvoiceValue})
	require.NoError(t, err)

	_, err = f.svc.AdvancePhase(ctx, session.ID)
	var transitionErr *domain.PhaseTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, domain.ReasonUnresolvedDiscrepancies, transitionErr.Reason)
	assert.Equal(t, []domain.FieldID{domain.FieldConsigneeName}, transitionErr.Fields)

	stored, err := f.svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseComparing, stored.Phase)
	assert.Nil(t, stored.Working)
}

func TestDeclarationService_AdvancePhase_FromReviewingRequiresSubmit(t *testing.T) {
	f := newFixture(nil)
	session := f.toReviewing(t, invoiceDecl(), blDecl())

	_, err := f.svc.AdvancePhase(context.Background(), session.ID)

	var transitionErr *domain.PhaseTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, domain.ReasonSubmitRequired, transitionErr.Reason)
}

func TestDeclarationService_ResolveDiscrepancy_Validation(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	session := f.toComparing(t, invoiceDecl(), blDecl())

	_, err := f.svc.ResolveDiscrepancy(ctx, session.ID, domain.FieldVessel, domain.Resolution{Choice: domain.UseBLValue})
	assert.ErrorIs(t, err, domain.ErrUnknownDiscrepancy)

	_, err = f.svc.ResolveDiscrepancy(ctx, session.ID, domain.FieldWeight, domain.Resolution{Choice: "coin_flip"})
	assert.ErrorIs(t, err, domain.ErrInvalidResolution)

	_, err = f.svc.ResolveDiscrepancy(ctx, session.ID, domain.FieldWeight, domain.Resolution{Choice: domain.ManualOverride, Value: "   "})
	assert.ErrorIs(t, err, domain.ErrInvalidResolution)

	session, err = f.svc.ResolveDiscrepancy(ctx, session.ID, domain.FieldWeight, domain.Resolution{Choice: domain.ManualOverride, Value: " 452 KG "})
	require.NoError(t, err)
	assert.Equal(t, "452 KG", session.Resolutions[domain.FieldWeight].Value)

	session, err = f.svc.AdvancePhase(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "452 KG", session.Working.Goods.Weight)
}

func TestDeclarationService_ResolveDiscrepancy_LastChoiceWins(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	session := f.toComparing(t, invoiceDecl(), blDecl())

	_, err := f.svc.ResolveDiscrepancy(ctx, session.ID, domain.FieldWeight, domain.Resolution{Choice: domain.UseBLValue})
	require.NoError(t, err)
	_, err = f.svc.ResolveDiscrepancy(ctx, session.ID, domain.FieldWeight, domain.Resolution{Choice: domain.UseInvoiceValue})
	require.NoError(t, err)

	session, err = f.svc.AdvancePhase(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "450 KG", session.Working.Goods.Weight)
}

func TestDeclarationService_ListDiscrepancies(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	session, err := f.svc.StartSession(ctx, service.StartSessionInput{})
	require.NoError(t, err)

	list, err := f.svc.ListDiscrepancies(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = f.svc.ListDiscrepancies(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestDeclarationService_EditWorkingField(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	session := f.toReviewing(t, invoiceDecl(), blDecl())

	session, err := f.svc.EditWorkingField(ctx, session.ID, domain.FieldHSCode, "3926.90")
	require.NoError(t, err)
	assert.Equal(t, "3926.90", session.Working.Goods.HSCode)

	session, err = f.svc.EditWorkingField(ctx, session.ID, "ContainerNumbers[1]", "TGHU7654321")
	require.NoError(t, err)
	assert.Equal(t, []string{"MSKU1234565", "TGHU7654321"}, session.Working.BillOfLading.ContainerNumbers)

	_, err = f.svc.EditWorkingField(ctx, session.ID, "ContainerNumbers[5]", "X")
	assert.ErrorIs(t, err, domain.ErrUnknownField)

	_, err = f.svc.EditWorkingField(ctx, session.ID, "Tonnage", "1")
	assert.ErrorIs(t, err, domain.ErrUnknownField)
}

func TestDeclarationService_EditWorkingField_OutsideReview(t *testing.T) {
	f := newFixture(nil)
	session := f.toComparing(t, invoiceDecl(), blDecl())

	_, err := f.svc.EditWorkingField(context.Background(), session.ID, domain.FieldHSCode, "3926.90")

	assert.ErrorIs(t, err, domain.ErrPhaseMismatch)
}

func TestDeclarationService_SubmitDeclaration_Success(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	session := f.toReviewing(t, invoiceDecl(), blDecl())
	f.stepsSucceed()

	session, err := f.svc.SubmitDeclaration(ctx, session.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.PhaseSubmitted, session.Phase)
	assert.Equal(t, domain.StepArchive, session.LastCompletedStep)
	assert.Equal(t, "CUS-2026-0001", session.StepReceipts[domain.StepCustomsAuthority].Reference)
	require.NotNil(t, session.SubmittedAt)

	again, err := f.svc.SubmitDeclaration(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseSubmitted, again.Phase)
	f.customs.AssertNumberOfCalls(t, "Execute", 1)

	_, err = f.svc.EditWorkingField(ctx, session.ID, domain.FieldHSCode, "1")
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
	_, err = f.svc.CancelSession(ctx, session.ID)
	assert.ErrorIs(t, err, domain.ErrCancelNotAllowed)
}

func TestDeclarationService_SubmitDeclaration_ResumesAfterStepFailure(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	session := f.toReviewing(t, invoiceDecl(), blDecl())

	f.customs.On("Execute", mock.Anything, mock.Anything).Return(&port.StepResult{Reference: "CUS-2026-0001"}, nil)
	f.notify.On("Execute", mock.Anything, mock.Anything).Return(nil, domain.Fatal(errors.New("mailbox rejected"))).Once()

	failed, err := f.svc.SubmitDeclaration(ctx, session.ID)

	var subErr *domain.SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, domain.StepClientNotification, subErr.FailedStep)
	assert.Equal(t, domain.StepCustomsAuthority, subErr.LastCompletedStep)
	require.NotNil(t, failed)
	assert.Equal(t, domain.PhaseReviewing, failed.Phase)

	stored, err := f.svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseReviewing, stored.Phase)
	assert.Equal(t, domain.StepCustomsAuthority, stored.LastCompletedStep)
	assert.NotEmpty(t, stored.LastError)

	_, err = f.svc.EditWorkingField(ctx, session.ID, domain.FieldHSCode, "1")
	assert.ErrorIs(t, err, domain.ErrDeclarationLodged)
	_, err = f.svc.CancelSession(ctx, session.ID)
	assert.ErrorIs(t, err, domain.ErrCancelNotAllowed)

	f.notify.On("Execute", mock.Anything, mock.Anything).Return(&port.StepResult{Reference: "ops@acme.test"}, nil).Once()
	f.archive.On("Execute", mock.Anything, mock.Anything).Return(&port.StepResult{Reference: "archive/1/"}, nil).Once()

	done, err := f.svc.SubmitDeclaration(ctx, session.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.PhaseSubmitted, done.Phase)
	assert.Empty(t, done.LastError)
	f.customs.AssertNumberOfCalls(t, "Execute", 1)
	f.notify.AssertNumberOfCalls(t, "Execute", 2)
	f.archive.AssertNumberOfCalls(t, "Execute", 1)
}

func TestDeclarationService_SubmitDeclaration_RefusedWithoutRecipient(t *testing.T) {
	sender := new(mocks.MockEmailSender)
	f := newFixtureWith(memory.NewSessionRepo(), nil, submission.NewNotifyStep(sender, ""))
	ctx := context.Background()
	session := f.toReviewing(t, invoiceDecl(), blDecl())
	_, err := f.svc.UpdateClientContact(ctx, session.ID, service.ClientContactInput{ClientName: "Acme Imports"})
	require.NoError(t, err)

	_, err = f.svc.SubmitDeclaration(ctx, session.ID)

	assert.ErrorIs(t, err, domain.ErrNoNotifyRecipient)
	f.customs.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
	stored, err := f.svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseReviewing, stored.Phase)
	assert.False(t, stored.Lodged())

	_, err = f.svc.UpdateClientContact(ctx, session.ID, service.ClientContactInput{
		ClientName:  "Acme Imports",
		ClientEmail: " ops@acme.test ",
	})
	require.NoError(t, err)
	f.customs.On("Execute", mock.Anything, mock.Anything).Return(&port.StepResult{Reference: "CUS-2026-0001"}, nil).Once()
	f.archive.On("Execute", mock.Anything, mock.Anything).Return(&port.StepResult{Reference: "archive/1/"}, nil).Once()
	sender.On("SendSubmissionNotice", mock.Anything, mock.MatchedBy(func(n port.SubmissionNotice) bool {
		return n.ToEmail == "ops@acme.test" && n.AuthorityReceipt == "CUS-2026-0001"
	})).Return(nil).Once()

	done, err := f.svc.SubmitDeclaration(ctx, session.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.PhaseSubmitted, done.Phase)
	sender.AssertExpectations(t)
}

func TestDeclarationService_ResumeSubmission_WithoutRecipientReturnsToReview(t *testing.T) {
	sender := new(mocks.MockEmailSender)
	f := newFixtureWith(memory.NewSessionRepo(), nil, submission.NewNotifyStep(sender, ""))
	ctx := context.Background()
	session := f.toReviewing(t, invoiceDecl(), blDecl())

	session.ClientEmail = ""
	session.Phase = domain.PhaseSubmitting
	session.LastCompletedStep = domain.StepCustomsAuthority
	session.StepReceipts = map[domain.SubmissionStep]domain.StepReceipt{
		domain.StepCustomsAuthority: {Reference: "CUS-9", Attempts: 1},
	}
	require.NoError(t, f.repo.Update(ctx, session))

	_, err := f.svc.ResumeSubmission(ctx, session.ID)

	assert.ErrorIs(t, err, domain.ErrNoNotifyRecipient)
	stored, err := f.svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseReviewing, stored.Phase)
	assert.Equal(t, domain.StepCustomsAuthority, stored.LastCompletedStep)
	assert.NotEmpty(t, stored.LastError)
	sender.AssertNotCalled(t, "SendSubmissionNotice", mock.Anything, mock.Anything)

	// A lodged session still takes a new contact so the run can finish.
	updated, err := f.svc.UpdateClientContact(ctx, session.ID, service.ClientContactInput{ClientEmail: "ops@acme.test"})
	require.NoError(t, err)
	assert.Equal(t, "ops@acme.test", updated.ClientEmail)
	sender.On("SendSubmissionNotice", mock.Anything, mock.Anything).Return(nil).Once()
	f.archive.On("Execute", mock.Anything, mock.Anything).Return(&port.StepResult{Reference: "archive/1/"}, nil).Once()

	done, err := f.svc.SubmitDeclaration(ctx, session.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.PhaseSubmitted, done.Phase)
	f.customs.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestDeclarationService_SubmitDeclaration_RecordsFailureAfterRunDeadline(t *testing.T) {
	f := newFixtureWith(deadlineRepo{memory.NewSessionRepo()}, nil, nil,
		service.WithSubmissionTimeout(20*time.Millisecond))
	ctx := context.Background()
	session := f.toReviewing(t, invoiceDecl(), blDecl())
	f.customs.On("Execute", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded)

	_, err := f.svc.SubmitDeclaration(ctx, session.ID)

	require.Error(t, err)
	stored, err := f.svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseReviewing, stored.Phase)
	assert.NotEmpty(t, stored.LastError)
}

func TestDeclarationService_UpdateClientContact_Guards(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	session := f.toReviewing(t, invoiceDecl(), blDecl())

	session.Phase = domain.PhaseSubmitting
	require.NoError(t, f.repo.Update(ctx, session))
	_, err := f.svc.UpdateClientContact(ctx, session.ID, service.ClientContactInput{ClientEmail: "a@b.test"})
	assert.ErrorIs(t, err, domain.ErrPhaseMismatch)

	session.Phase = domain.PhaseCancelled
	require.NoError(t, f.repo.Update(ctx, session))
	_, err = f.svc.UpdateClientContact(ctx, session.ID, service.ClientContactInput{ClientEmail: "a@b.test"})
	assert.ErrorIs(t, err, domain.ErrSessionClosed)

	_, err = f.svc.UpdateClientContact(ctx, uuid.New(), service.ClientContactInput{})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestDeclarationService_SubmitDeclaration_WrongPhase(t *testing.T) {
	f := newFixture(nil)
	session := f.toComparing(t, invoiceDecl(), blDecl())

	_, err := f.svc.SubmitDeclaration(context.Background(), session.ID)

	assert.ErrorIs(t, err, domain.ErrPhaseMismatch)
	f.customs.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestDeclarationService_ResumeSubmission_IgnoresOtherPhases(t *testing.T) {
	f := newFixture(nil)
	session := f.toReviewing(t, invoiceDecl(), blDecl())

	resumed, err := f.svc.ResumeSubmission(context.Background(), session.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.PhaseReviewing, resumed.Phase)
	f.customs.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestDeclarationService_ResumeSubmission_ContinuesStaleRun(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	session := f.toReviewing(t, invoiceDecl(), blDecl())

	session.Phase = domain.PhaseSubmitting
	session.LastCompletedStep = domain.StepCustomsAuthority
	session.StepReceipts = map[domain.SubmissionStep]domain.StepReceipt{
		domain.StepCustomsAuthority: {Reference: "CUS-9", Attempts: 1},
	}
	require.NoError(t, f.repo.Update(ctx, session))

	f.notify.On("Execute", mock.Anything, mock.Anything).Return(&port.StepResult{Reference: "ops@acme.test"}, nil).Once()
	f.archive.On("Execute", mock.Anything, mock.Anything).Return(&port.StepResult{Reference: "archive/1/"}, nil).Once()

	resumed, err := f.svc.ResumeSubmission(ctx, session.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.PhaseSubmitted, resumed.Phase)
	assert.Equal(t, "CUS-9", resumed.StepReceipts[domain.StepCustomsAuthority].Reference)
	f.customs.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestDeclarationService_CancelSession(t *testing.T) {
	storage := new(mocks.MockObjectStorage)
	f := newFixture(storage)
	ctx := context.Background()
	session, err := f.svc.StartSession(ctx, service.StartSessionInput{})
	require.NoError(t, err)

	storage.On("Upload", mock.Anything, mock.Anything).Return(&port.UploadOutput{}, nil).Once()
	f.expectExtraction(domain.DocumentInvoice, invoiceDecl())
	session, err = f.svc.SubmitInvoice(ctx, upload(session.ID, "invoice.pdf", pdfBytes))
	require.NoError(t, err)
	storage.On("Delete", mock.Anything, "declarations", session.Invoice.StorageKey).Return(nil).Once()

	cancelled, err := f.svc.CancelSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseCancelled, cancelled.Phase)
	assert.NotNil(t, cancelled.CancelledAt)
	storage.AssertExpectations(t)

	_, err = f.svc.CancelSession(ctx, session.ID)
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
	_, err = f.svc.AdvancePhase(ctx, session.ID)
	var transitionErr *domain.PhaseTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, domain.ReasonTerminal, transitionErr.Reason)
}

func TestDeclarationService_ExportWorkingDeclaration(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	session := f.toComparing(t, invoiceDecl(), blDecl())

	_, err := f.svc.ExportWorkingDeclaration(ctx, session.ID)
	assert.ErrorIs(t, err, domain.ErrPhaseMismatch)

	_, err = f.svc.ResolveDiscrepancy(ctx, session.ID, domain.FieldWeight, domain.Resolution{Choice: domain.UseBLValue})
	require.NoError(t, err)
	_, err = f.svc.AdvancePhase(ctx, session.ID)
	require.NoError(t, err)

	data, err := f.svc.ExportWorkingDeclaration(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("PK")))
}

func TestDeclarationService_DocumentURL(t *testing.T) {
	storage := new(mocks.MockObjectStorage)
	f := newFixture(storage)
	ctx := context.Background()
	session, err := f.svc.StartSession(ctx, service.StartSessionInput{})
	require.NoError(t, err)

	_, err = f.svc.DocumentURL(ctx, session.ID, domain.DocumentInvoice)
	assert.ErrorIs(t, err, domain.ErrDocumentNotStored)

	storage.On("Upload", mock.Anything, mock.Anything).Return(&port.UploadOutput{}, nil).Once()
	f.expectExtraction(domain.DocumentInvoice, invoiceDecl())
	session, err = f.svc.SubmitInvoice(ctx, upload(session.ID, "invoice.pdf", pdfBytes))
	require.NoError(t, err)

	storage.On("GetPresignedURL", mock.Anything, port.PresignInput{
		Bucket:        "declarations",
		Key:           session.Invoice.StorageKey,
		DownloadName:  "invoice.pdf",
		ExpirySeconds: 900,
	}).Return("https://example.test/signed", nil).Once()

	url, err := f.svc.DocumentURL(ctx, session.ID, domain.DocumentInvoice)
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/signed", url)
}

func TestDeclarationService_ListSessions(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := f.svc.StartSession(ctx, service.StartSessionInput{})
		require.NoError(t, err)
	}

	sessions, total, err := f.svc.ListSessions(ctx, 0, 2)

	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, sessions, 2)
}
