package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"customsdesk/internal/config"
	"customsdesk/internal/domain"
	"customsdesk/internal/export"
	"customsdesk/internal/port"
	"customsdesk/internal/reconcile"
	"customsdesk/internal/submission"
)

// submissionTimeout bounds one pipeline run. It is detached from the caller's
// context so a dropped connection cannot abort a step halfway.
const submissionTimeout = 5 * time.Minute

// recordTimeout bounds the write that records how a run ended. It gets its
// own deadline because the run's may already have expired.
const recordTimeout = 10 * time.Second

// StartSessionInput is the DTO for starting a declaration.
type StartSessionInput struct {
	ClientName  string
	ClientEmail string
}

// ClientContactInput replaces the client contact on a session.
type ClientContactInput struct {
	ClientName  string
	ClientEmail string
}

// DocumentInput is the DTO for a source document upload.
type DocumentInput struct {
	SessionID uuid.UUID
	File      multipart.File
	Header    *multipart.FileHeader
}

// DeclarationService drives a declaration session through its phases.
type DeclarationService interface {
	StartSession(ctx context.Context, input StartSessionInput) (*domain.DeclarationSession, error)
	GetSession(ctx context.Context, id uuid.UUID) (*domain.DeclarationSession, error)
	UpdateClientContact(ctx context.Context, id uuid.UUID, input ClientContactInput) (*domain.DeclarationSession, error)
	ListSessions(ctx context.Context, offset, limit int) ([]domain.DeclarationSession, int, error)
	SubmitInvoice(ctx context.Context, input DocumentInput) (*domain.DeclarationSession, error)
	SubmitBillOfLading(ctx context.Context, input DocumentInput) (*domain.DeclarationSession, error)
	ListDiscrepancies(ctx context.Context, id uuid.UUID) ([]domain.Discrepancy, error)
	ResolveDiscrepancy(ctx context.Context, id uuid.UUID, field domain.FieldID, res domain.Resolution) (*domain.DeclarationSession, error)
	AdvancePhase(ctx context.Context, id uuid.UUID) (*domain.DeclarationSession, error)
	EditWorkingField(ctx context.Context, id uuid.UUID, field domain.FieldID, value string) (*domain.DeclarationSession, error)
	SubmitDeclaration(ctx context.Context, id uuid.UUID) (*domain.DeclarationSession, error)
	ResumeSubmission(ctx context.Context, id uuid.UUID) (*domain.DeclarationSession, error)
	CancelSession(ctx context.Context, id uuid.UUID) (*domain.DeclarationSession, error)
	ExportWorkingDeclaration(ctx context.Context, id uuid.UUID) ([]byte, error)
	DocumentURL(ctx context.Context, id uuid.UUID, kind domain.DocumentKind) (string, error)
}

type slotKey struct {
	session uuid.UUID
	kind    domain.DocumentKind
}

type declarationService struct {
	repo      port.SessionRepository
	extractor port.Extractor
	storage   port.ObjectStorage
	pipeline  *submission.Pipeline
	cfg       *config.S3Config
	now       func() time.Time

	submitTimeout time.Duration

	locks *sessionLocks

	inflightMu sync.Mutex
	inflight   map[slotKey]struct{}
}

// Option customizes a DeclarationService.
type Option func(*declarationService)

// WithSubmissionTimeout bounds a single submission run.
func WithSubmissionTimeout(d time.Duration) Option {
	return func(s *declarationService) { s.submitTimeout = d }
}

// NewDeclarationService creates a new DeclarationService. storage may be nil,
// in which case uploaded documents are not retained.
func NewDeclarationService(
	repo port.SessionRepository,
	extractor port.Extractor,
	storage port.ObjectStorage,
	pipeline *submission.Pipeline,
	cfg *config.S3Config,
	opts ...Option,
) DeclarationService {
	s := &declarationService{
		repo:          repo,
		extractor:     extractor,
		storage:       storage,
		pipeline:      pipeline,
		cfg:           cfg,
		now:           time.Now,
		submitTimeout: submissionTimeout,
		locks:         newSessionLocks(),
		inflight:      make(map[slotKey]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *declarationService) StartSession(ctx context.Context, input StartSessionInput) (*domain.DeclarationSession, error) {
	session := domain.NewDeclarationSession()
	session.ClientName = strings.TrimSpace(input.ClientName)
	session.ClientEmail = strings.TrimSpace(input.ClientEmail)

	if err := s.repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	log.Printf("declarationService.StartSession: session %s started (ref %d)", session.ID, session.Reference)
	return session, nil
}

func (s *declarationService) GetSession(ctx context.Context, id uuid.UUID) (*domain.DeclarationSession, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *declarationService) ListSessions(ctx context.Context, offset, limit int) ([]domain.DeclarationSession, int, error) {
	return s.repo.List(ctx, offset, limit)
}

func (s *declarationService) SubmitInvoice(ctx context.Context, input DocumentInput) (*domain.DeclarationSession, error) {
	return s.submitDocument(ctx, input, domain.DocumentInvoice, domain.PhaseAwaitingInvoice)
}

func (s *declarationService) SubmitBillOfLading(ctx context.Context, input DocumentInput) (*domain.DeclarationSession, error) {
	return s.submitDocument(ctx, input, domain.DocumentBillOfLading, domain.PhaseAwaitingBillOfLading)
}

// submitDocument extracts one source document for the slot owned by phase.
// The session lock is released while the extractor runs; the slot is marked
// in flight so a second upload for the same slot is refused.
func (s *declarationService) submitDocument(
	ctx context.Context,
	input DocumentInput,
	kind domain.DocumentKind,
	phase domain.Phase,
) (*domain.DeclarationSession, error) {
	data, contentType, err := s.readDocument(input)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(input.SessionID)
	session, err := s.repo.GetByID(ctx, input.SessionID)
	if err == nil {
		err = requirePhase(session, phase)
	}
	if err == nil {
		err = s.claimSlot(input.SessionID, kind)
	}
	unlock()
	if err != nil {
		return nil, err
	}
	defer s.releaseSlot(input.SessionID, kind)

	log.Printf("declarationService.submitDocument: extracting %s for session %s (%s, %d bytes)",
		kind, input.SessionID, contentType, len(data))

	out, err := s.extractor.Extract(ctx, port.ExtractInput{
		FileBytes:   data,
		ContentType: contentType,
		Kind:        kind,
	})
	if err != nil {
		log.Printf("declarationService.submitDocument: extraction failed for session %s: %v", input.SessionID, err)
		return nil, &domain.ExtractionError{Kind: kind, Err: err}
	}

	result := &domain.ExtractionResult{
		Source:      kind,
		Declaration: &domain.CanonicalDeclaration{},
		FileName:    input.Header.Filename,
		ContentType: contentType,
		ModelUsed:   out.ModelUsed,
		ExtractedAt: s.now().UTC(),
	}
	if out.Declaration != nil {
		result.Declaration = out.Declaration.Clone()
	}
	result.StorageKey = s.storeDocument(ctx, input.SessionID, kind, input.Header.Filename, contentType, data)

	unlock = s.locks.lock(input.SessionID)
	defer unlock()

	session, err = s.repo.GetByID(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}
	if err := requirePhase(session, phase); err != nil {
		s.deleteDocument(ctx, result.StorageKey)
		return nil, err
	}

	var previous *domain.ExtractionResult
	if kind == domain.DocumentInvoice {
		previous, session.Invoice = session.Invoice, result
	} else {
		previous, session.BillOfLading = session.BillOfLading, result
	}
	if err := s.repo.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("saving extraction: %w", err)
	}
	if previous != nil && previous.StorageKey != result.StorageKey {
		s.deleteDocument(ctx, previous.StorageKey)
	}

	log.Printf("declarationService.submitDocument: %s extracted for session %s using %s", kind, session.ID, out.ModelUsed)
	return session, nil
}

// readDocument validates extension, size and sniffed content type the way
// uploads are validated everywhere else, and returns the file bytes.
func (s *declarationService) readDocument(input DocumentInput) ([]byte, string, error) {
	if input.File == nil || input.Header == nil {
		return nil, "", fmt.Errorf("%w: no file provided", domain.ErrUnsupportedFileType)
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(input.Header.Filename), "."))
	fileType, ok := domain.AllowedExtensions[ext]
	if !ok {
		return nil, "", domain.ErrUnsupportedFileType
	}

	maxBytes := s.cfg.MaxFileSizeMB * 1024 * 1024
	if maxBytes > 0 && input.Header.Size > maxBytes {
		return nil, "", domain.ErrFileTooLarge
	}

	reader := io.Reader(input.File)
	if maxBytes > 0 {
		reader = io.LimitReader(input.File, maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", fmt.Errorf("reading file: %w", err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, "", domain.ErrFileTooLarge
	}

	sniff := data
	if len(sniff) > 512 {
		sniff = sniff[:512]
	}
	detected, ok := domain.AllowedContentTypes[http.DetectContentType(sniff)]
	if !ok || detected != fileType {
		return nil, "", domain.ErrUnsupportedFileType
	}
	return data, domain.AllowedFileTypes[fileType], nil
}

// storeDocument keeps the uploaded source for audit. Failure is logged and
// the extraction proceeds without a storage key.
func (s *declarationService) storeDocument(
	ctx context.Context,
	id uuid.UUID,
	kind domain.DocumentKind,
	name, contentType string,
	data []byte,
) string {
	if s.storage == nil {
		return ""
	}
	key := fmt.Sprintf("sessions/%s/%s/%s-%s", id, kind, uuid.New(), filepath.Base(name))
	_, err := s.storage.Upload(ctx, port.UploadInput{
		Bucket:      s.cfg.Bucket,
		Key:         key,
		Body:        bytes.NewReader(data),
		ContentType: contentType,
		Size:        int64(len(data)),
		Metadata: map[string]string{
			"session-id":    id.String(),
			"document-kind": string(kind),
		},
	})
	if err != nil {
		log.Printf("declarationService.storeDocument: upload failed for session %s: %v", id, err)
		return ""
	}
	return key
}

func (s *declarationService) deleteDocument(ctx context.Context, key string) {
	if s.storage == nil || key == "" {
		return
	}
	if err := s.storage.Delete(ctx, s.cfg.Bucket, key); err != nil {
		log.Printf("declarationService.deleteDocument: failed to delete %s: %v", key, err)
	}
}

func (s *declarationService) claimSlot(id uuid.UUID, kind domain.DocumentKind) error {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	key := slotKey{session: id, kind: kind}
	if _, busy := s.inflight[key]; busy {
		return domain.ErrExtractionInProgress
	}
	s.inflight[key] = struct{}{}
	return nil
}

func (s *declarationService) releaseSlot(id uuid.UUID, kind domain.DocumentKind) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, slotKey{session: id, kind: kind})
}

func (s *declarationService) ListDiscrepancies(ctx context.Context, id uuid.UUID) ([]domain.Discrepancy, error) {
	session, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Discrepancies == nil {
		return []domain.Discrepancy{}, nil
	}
	return session.Discrepancies, nil
}

func (s *declarationService) ResolveDiscrepancy(
	ctx context.Context,
	id uuid.UUID,
	field domain.FieldID,
	res domain.Resolution,
) (*domain.DeclarationSession, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	session, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requirePhase(session, domain.PhaseComparing); err != nil {
		return nil, err
	}

	found := false
	for _, d := range session.Discrepancies {
		if d.Field == field {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownDiscrepancy, field)
	}

	if !domain.ValidResolutionChoices[res.Choice] {
		return nil, fmt.Errorf("%w: unknown choice %q", domain.ErrInvalidResolution, res.Choice)
	}
	if res.Choice == domain.ManualOverride {
		res.Value = strings.TrimSpace(res.Value)
		if res.Value == "" {
			return nil, fmt.Errorf("%w: manual override for %s is blank", domain.ErrInvalidResolution, field)
		}
	} else {
		res.Value = ""
	}

	if session.Resolutions == nil {
		session.Resolutions = make(map[domain.FieldID]domain.Resolution)
	}
	session.Resolutions[field] = res

	if err := s.repo.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("saving resolution: %w", err)
	}
	return session, nil
}

// AdvancePhase fires the next operator-driven transition. Guards that fail
// return *domain.PhaseTransitionError and leave the session unchanged.
func (s *declarationService) AdvancePhase(ctx context.Context, id uuid.UUID) (*domain.DeclarationSession, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	session, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := session.Phase

	switch session.Phase {
	case domain.PhaseAwaitingInvoice:
		if session.Invoice == nil {
			return nil, &domain.PhaseTransitionError{From: from, Reason: domain.ReasonMissingInvoice}
		}
		session.Phase = domain.PhaseAwaitingBillOfLading

	case domain.PhaseAwaitingBillOfLading:
		if session.BillOfLading == nil {
			return nil, &domain.PhaseTransitionError{From: from, Reason: domain.ReasonMissingBillOfLading}
		}
		session.Discrepancies = reconcile.Detect(session.Invoice.Declaration, session.BillOfLading.Declaration)
		session.Resolutions = nil
		session.Phase = domain.PhaseComparing

	case domain.PhaseComparing:
		if unresolved := session.Unresolved(); len(unresolved) > 0 {
			return nil, &domain.PhaseTransitionError{
				From:   from,
				Reason: domain.ReasonUnresolvedDiscrepancies,
				Fields: unresolved,
			}
		}
		working, err := reconcile.Merge(
			session.Invoice.Declaration,
			session.BillOfLading.Declaration,
			session.Discrepancies,
			session.Resolutions,
		)
		if err != nil {
			var incomplete *domain.IncompleteResolutionError
			if errors.As(err, &incomplete) {
				log.Printf("declarationService.AdvancePhase: invariant violated for session %s: %v", id, err)
			}
			return nil, err
		}
		session.Working = working
		session.Discrepancies = []domain.Discrepancy{}
		session.Resolutions = nil
		session.Phase = domain.PhaseReviewing

	case domain.PhaseReviewing, domain.PhaseSubmitting:
		return nil, &domain.PhaseTransitionError{From: from, Reason: domain.ReasonSubmitRequired}

	default:
		return nil, &domain.PhaseTransitionError{From: from, Reason: domain.ReasonTerminal}
	}

	if err := s.repo.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("saving phase: %w", err)
	}
	log.Printf("declarationService.AdvancePhase: session %s %s -> %s (%d discrepancies)",
		id, from, session.Phase, len(session.Discrepancies))
	return session, nil
}

// EditWorkingField sets one field of the working declaration. Any schema
// field may be edited, including ones neither document populated; a list
// entry may be appended by addressing the index one past the end.
func (s *declarationService) EditWorkingField(
	ctx context.Context,
	id uuid.UUID,
	field domain.FieldID,
	value string,
) (*domain.DeclarationSession, error) {
	ref, err := domain.ParseFieldRef(field)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(id)
	defer unlock()

	session, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requirePhase(session, domain.PhaseReviewing); err != nil {
		return nil, err
	}
	if session.Lodged() {
		return nil, domain.ErrDeclarationLodged
	}
	if ref.Index > len(ref.Def.List(&session.Working.CanonicalDeclaration)) {
		return nil, fmt.Errorf("%w: %s is past the end of the list", domain.ErrUnknownField, field)
	}

	ref.Assign(&session.Working.CanonicalDeclaration, strings.TrimSpace(value))
	if ref.Index >= 0 {
		list := ref.Def.List(&session.Working.CanonicalDeclaration)
		end := len(list)
		for end > 0 && strings.TrimSpace(list[end-1]) == "" {
			end--
		}
		ref.Def.SetList(&session.Working.CanonicalDeclaration, list[:end])
	}

	if err := s.repo.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("saving edit: %w", err)
	}
	return session, nil
}

// SubmitDeclaration runs the submission pipeline from the step after the
// session's last completed step. A session already submitted is returned
// unchanged.
func (s *declarationService) SubmitDeclaration(ctx context.Context, id uuid.UUID) (*domain.DeclarationSession, error) {
	return s.submit(ctx, id, false)
}

// ResumeSubmission continues a pipeline run that was interrupted while the
// session was in the submitting phase. Sessions in any other phase are
// returned unchanged.
func (s *declarationService) ResumeSubmission(ctx context.Context, id uuid.UUID) (*domain.DeclarationSession, error) {
	return s.submit(ctx, id, true)
}

func (s *declarationService) submit(ctx context.Context, id uuid.UUID, resumeOnly bool) (*domain.DeclarationSession, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	session, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case session.Phase == domain.PhaseSubmitted:
		return session, nil
	case resumeOnly && session.Phase != domain.PhaseSubmitting:
		return session, nil
	case session.Phase != domain.PhaseReviewing && session.Phase != domain.PhaseSubmitting:
		if err := requirePhase(session, domain.PhaseReviewing); err != nil {
			return nil, err
		}
	}
	if session.Working == nil {
		return nil, fmt.Errorf("%w: session has no working declaration", domain.ErrPhaseMismatch)
	}

	input := port.SubmissionInput{
		SessionID:   session.ID,
		Reference:   session.Reference,
		ClientName:  session.ClientName,
		ClientEmail: session.ClientEmail,
		Declaration: session.Working,
		Receipts:    session.StepReceipts,
	}
	if err := s.pipeline.Precheck(input, session.LastCompletedStep); err != nil {
		log.Printf("declarationService.submit: session %s refused: %v", id, err)
		if session.Phase == domain.PhaseSubmitting {
			s.recordFailure(ctx, session, err)
		}
		return nil, err
	}

	// The run must finish even if the caller goes away; its progress is
	// persisted step by step.
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.submitTimeout)
	defer cancel()

	session.Phase = domain.PhaseSubmitting
	session.LastError = ""
	if err := s.repo.Update(runCtx, session); err != nil {
		return nil, fmt.Errorf("entering submitting phase: %w", err)
	}
	log.Printf("declarationService.submit: session %s submitting from step %s", id, session.LastCompletedStep)
	progress := func(step domain.SubmissionStep, receipt domain.StepReceipt) error {
		if session.StepReceipts == nil {
			session.StepReceipts = make(map[domain.SubmissionStep]domain.StepReceipt)
		}
		session.StepReceipts[step] = receipt
		session.LastCompletedStep = step
		return s.repo.Update(runCtx, session)
	}

	_, runErr := s.pipeline.Run(runCtx, input, session.LastCompletedStep, progress)
	if runErr != nil {
		s.recordFailure(ctx, session, runErr)
		log.Printf("declarationService.submit: session %s failed: %v", id, runErr)
		return session, runErr
	}

	recordCtx, cancelRecord := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancelRecord()
	submittedAt := s.now().UTC()
	session.Phase = domain.PhaseSubmitted
	session.SubmittedAt = &submittedAt
	if err := s.repo.Update(recordCtx, session); err != nil {
		return nil, fmt.Errorf("recording submission: %w", err)
	}
	log.Printf("declarationService.submit: session %s submitted (authority ref %s)",
		id, session.StepReceipts[domain.StepCustomsAuthority].Reference)
	return session, nil
}

// recordFailure puts a session whose run failed back into review.
func (s *declarationService) recordFailure(ctx context.Context, session *domain.DeclarationSession, runErr error) {
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	session.Phase = domain.PhaseReviewing
	session.LastError = runErr.Error()
	if err := s.repo.Update(recordCtx, session); err != nil {
		log.Printf("declarationService.submit: failed to record failure for session %s: %v", session.ID, err)
	}
}

// UpdateClientContact is allowed after lodgement so a submission held back for
// a missing recipient can still be completed.
func (s *declarationService) UpdateClientContact(
	ctx context.Context,
	id uuid.UUID,
	input ClientContactInput,
) (*domain.DeclarationSession, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	session, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Phase.Terminal() {
		return nil, domain.ErrSessionClosed
	}
	if session.Phase == domain.PhaseSubmitting {
		return nil, fmt.Errorf("%w: submission in progress", domain.ErrPhaseMismatch)
	}

	session.ClientName = strings.TrimSpace(input.ClientName)
	session.ClientEmail = strings.TrimSpace(input.ClientEmail)
	if err := s.repo.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("updating client contact: %w", err)
	}
	log.Printf("declarationService.UpdateClientContact: session %s contact updated", id)
	return session, nil
}

// CancelSession abandons a session before anything external has happened.
// Stored source documents are removed on a best-effort basis.
func (s *declarationService) CancelSession(ctx context.Context, id uuid.UUID) (*domain.DeclarationSession, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	session, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Phase == domain.PhaseCancelled {
		return nil, domain.ErrSessionClosed
	}
	if !session.Phase.Cancellable() || session.Lodged() {
		return nil, domain.ErrCancelNotAllowed
	}

	cancelledAt := s.now().UTC()
	session.Phase = domain.PhaseCancelled
	session.CancelledAt = &cancelledAt
	if err := s.repo.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("cancelling session: %w", err)
	}

	for _, doc := range []*domain.ExtractionResult{session.Invoice, session.BillOfLading} {
		if doc != nil {
			s.deleteDocument(ctx, doc.StorageKey)
		}
	}
	log.Printf("declarationService.CancelSession: session %s cancelled", id)
	return session, nil
}

func (s *declarationService) ExportWorkingDeclaration(ctx context.Context, id uuid.UUID) ([]byte, error) {
	session, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Working == nil {
		return nil, fmt.Errorf("%w: no working declaration before review", domain.ErrPhaseMismatch)
	}
	return export.DeclarationWorkbook(session)
}

func (s *declarationService) DocumentURL(ctx context.Context, id uuid.UUID, kind domain.DocumentKind) (string, error) {
	session, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	doc := session.Invoice
	if kind == domain.DocumentBillOfLading {
		doc = session.BillOfLading
	}
	if doc == nil || doc.StorageKey == "" || s.storage == nil {
		return "", domain.ErrDocumentNotStored
	}
	return s.storage.GetPresignedURL(ctx, port.PresignInput{
		Bucket:        s.cfg.Bucket,
		Key:           doc.StorageKey,
		DownloadName:  doc.FileName,
		ExpirySeconds: s.cfg.PresignExpiry,
	})
}

func requirePhase(session *domain.DeclarationSession, want domain.Phase) error {
	if session.Phase.Terminal() {
		return domain.ErrSessionClosed
	}
	if session.Phase != want {
		return fmt.Errorf("%w: session is %s, expected %s", domain.ErrPhaseMismatch, session.Phase, want)
	}
	return nil
}
