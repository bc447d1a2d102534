package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"customsdesk/internal/domain"
	"customsdesk/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SessionHandler handles declaration session endpoints.
type SessionHandler struct {
	declarationService service.DeclarationService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(declarationService service.DeclarationService) *SessionHandler {
	return &SessionHandler{declarationService: declarationService}
}

// Create handles POST /api/v1/sessions
// @Summary Start a declaration session
// @Description Open a new session awaiting its commercial invoice
// @Tags sessions
// @Accept json
// @Produce json
// @Param request body CreateSessionRequest false "Client contact"
// @Success 201 {object} APIResponse{data=domain.DeclarationSession} "Session created"
// @Failure 400 {object} APIResponse "Invalid client email"
// @Router /sessions [post]
func (h *SessionHandler) Create(c *gin.Context) {
	var req CreateSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "client_email must be a valid email address")
			return
		}
	}

	session, err := h.declarationService.StartSession(c.Request.Context(), service.StartSessionInput{
		ClientName:  req.ClientName,
		ClientEmail: req.ClientEmail,
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondCreated(c, session)
}

// List handles GET /api/v1/sessions
// @Summary List sessions
// @Description List declaration sessions, newest first
// @Tags sessions
// @Produce json
// @Param offset query int false "Offset for pagination" default(0)
// @Param limit query int false "Limit for pagination (max 100)" default(20)
// @Success 200 {object} APIResponse{data=[]domain.DeclarationSession,meta=PagMeta} "List of sessions"
// @Router /sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	offset, limit := parsePagination(c)

	sessions, total, err := h.declarationService.ListSessions(c.Request.Context(), offset, limit)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondPaginated(c, sessions, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// GetByID handles GET /api/v1/sessions/:id
// @Summary Get session by ID
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID (UUID)"
// @Success 200 {object} APIResponse{data=domain.DeclarationSession} "Session details"
// @Failure 400 {object} APIResponse "Invalid ID"
// @Failure 404 {object} APIResponse "Session not found"
// @Router /sessions/{id} [get]
func (h *SessionHandler) GetByID(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}

	session, err := h.declarationService.GetSession(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, session)
}

// Cancel handles DELETE /api/v1/sessions/:id
// @Summary Cancel a session
// @Description Abandon a session before anything has been lodged with customs
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID (UUID)"
// @Success 200 {object} APIResponse{data=domain.DeclarationSession} "Session cancelled"
// @Failure 400 {object} APIResponse "Invalid ID"
// @Failure 404 {object} APIResponse "Session not found"
// @Failure 409 {object} APIResponse "Submission already started or session closed"
// @Router /sessions/{id} [delete]
func (h *SessionHandler) Cancel(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}

	session, err := h.declarationService.CancelSession(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, session)
}

// UpdateClient handles PUT /api/v1/sessions/:id/client
// @Summary Update client contact
// @Description Replace the client name and email. Allowed until the session is submitted or cancelled, including after lodgement.
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID (UUID)"
// @Param request body ClientContactRequest true "Client contact"
// @Success 200 {object} APIResponse{data=domain.DeclarationSession} "Contact updated"
// @Failure 400 {object} APIResponse "Invalid ID or client email"
// @Failure 404 {object} APIResponse "Session not found"
// @Failure 409 {object} APIResponse "Submission in progress or session closed"
// @Router /sessions/{id}/client [put]
func (h *SessionHandler) UpdateClient(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}

	var req ClientContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "client_email must be a valid email address")
		return
	}

	session, err := h.declarationService.UpdateClientContact(c.Request.Context(), id, service.ClientContactInput{
		ClientName:  req.ClientName,
		ClientEmail: req.ClientEmail,
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, session)
}

// UploadInvoice handles POST /api/v1/sessions/:id/invoice
// @Summary Upload the commercial invoice
// @Description Extract the invoice into the session. A new upload replaces the previous extraction.
// @Tags documents
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Session ID (UUID)"
// @Param file formData file true "PDF, JPG or PNG"
// @Success 200 {object} APIResponse{data=domain.DeclarationSession} "Invoice extracted"
// @Failure 400 {object} APIResponse "Missing file or unsupported type"
// @Failure 404 {object} APIResponse "Session not found"
// @Failure 409 {object} APIResponse "Wrong phase or extraction in progress"
// @Failure 413 {object} APIResponse "File too large"
// @Failure 422 {object} APIResponse "Extraction failed"
// @Failure 429 {object} APIResponse "Extraction rate limited"
// @Router /sessions/{id}/invoice [post]
func (h *SessionHandler) UploadInvoice(c *gin.Context) {
	h.upload(c, h.declarationService.SubmitInvoice)
}

// UploadBillOfLading handles POST /api/v1/sessions/:id/bill-of-lading
// @Summary Upload the bill of lading
// @Description Extract the bill of lading into the session. A new upload replaces the previous extraction.
// @Tags documents
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Session ID (UUID)"
// @Param file formData file true "PDF, JPG or PNG"
// @Success 200 {object} APIResponse{data=domain.DeclarationSession} "Bill of lading extracted"
// @Failure 400 {object} APIResponse "Missing file or unsupported type"
// @Failure 404 {object} APIResponse "Session not found"
// @Failure 409 {object} APIResponse "Wrong phase or extraction in progress"
// @Failure 413 {object} APIResponse "File too large"
// @Failure 422 {object} APIResponse "Extraction failed"
// @Failure 429 {object} APIResponse "Extraction rate limited"
// @Router /sessions/{id}/bill-of-lading [post]
func (h *SessionHandler) UploadBillOfLading(c *gin.Context) {
	h.upload(c, h.declarationService.SubmitBillOfLading)
}

type submitFunc func(ctx context.Context, input service.DocumentInput) (*domain.DeclarationSession, error)

func (h *SessionHandler) upload(c *gin.Context, submit submitFunc) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "MISSING_FILE", "file field is required")
		return
	}
	defer func() { _ = file.Close() }()

	session, err := submit(c.Request.Context(), service.DocumentInput{
		SessionID: id,
		File:      file,
		Header:    header,
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, session)
}

// Discrepancies handles GET /api/v1/sessions/:id/discrepancies
// @Summary List discrepancies
// @Description List the fields on which the invoice and bill of lading disagree, with their resolutions
// @Tags discrepancies
// @Produce json
// @Param id path string true "Session ID (UUID)"
// @Success 200 {object} APIResponse{data=[]domain.Discrepancy} "Discrepancies"
// @Failure 400 {object} APIResponse "Invalid ID"
// @Failure 404 {object} APIResponse "Session not found"
// @Router /sessions/{id}/discrepancies [get]
func (h *SessionHandler) Discrepancies(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}

	discrepancies, err := h.declarationService.ListDiscrepancies(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, discrepancies)
}

// Resolve handles POST /api/v1/sessions/:id/resolutions
// @Summary Resolve a discrepancy
// @Description Choose the invoice value, the bill of lading value or a manual value. The last choice wins.
// @Tags discrepancies
// @Accept json
// @Produce json
// @Param id path string true "Session ID (UUID)"
// @Param request body ResolveRequest true "Resolution"
// @Success 200 {object} APIResponse{data=domain.DeclarationSession} "Resolution recorded"
// @Failure 400 {object} APIResponse "Invalid resolution"
// @Failure 404 {object} APIResponse "Session not found"
// @Failure 409 {object} APIResponse "Session not comparing"
// @Router /sessions/{id}/resolutions [post]
func (h *SessionHandler) Resolve(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}

	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "field and choice are required")
		return
	}

	session, err := h.declarationService.ResolveDiscrepancy(c.Request.Context(), id, req.Field, domain.Resolution{
		Choice: req.Choice,
		Value:  req.Value,
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, session)
}

// Advance handles POST /api/v1/sessions/:id/advance
// @Summary Advance to the next phase
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID (UUID)"
// @Success 200 {object} APIResponse{data=domain.DeclarationSession} "Phase advanced"
// @Failure 400 {object} APIResponse "Invalid ID"
// @Failure 404 {object} APIResponse "Session not found"
// @Failure 409 {object} APIResponse "Transition not allowed"
// @Router /sessions/{id}/advance [post]
func (h *SessionHandler) Advance(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}

	session, err := h.declarationService.AdvancePhase(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, session)
}

// EditWorking handles PATCH /api/v1/sessions/:id/working
// @Summary Edit the working declaration
// @Description Set one field of the merged declaration during review
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID (UUID)"
// @Param request body EditWorkingRequest true "Field and value"
// @Success 200 {object} APIResponse{data=domain.DeclarationSession} "Field updated"
// @Failure 400 {object} APIResponse "Invalid request or unknown field"
// @Failure 404 {object} APIResponse "Session not found"
// @Failure 409 {object} APIResponse "Session not in review or already lodged"
// @Router /sessions/{id}/working [patch]
func (h *SessionHandler) EditWorking(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}

	var req EditWorkingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "field and value are required")
		return
	}

	session, err := h.declarationService.EditWorkingField(c.Request.Context(), id, req.Field, *req.Value)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, session)
}

// Submit handles POST /api/v1/sessions/:id/submit
// @Summary Submit the declaration
// @Description Run the submission steps, resuming after the last completed one
// @Tags submission
// @Produce json
// @Param id path string true "Session ID (UUID)"
// @Success 200 {object} APIResponse{data=domain.DeclarationSession} "Declaration submitted"
// @Failure 400 {object} APIResponse "Invalid ID"
// @Failure 404 {object} APIResponse "Session not found"
// @Failure 409 {object} APIResponse "Session not in review"
// @Failure 422 {object} APIResponse "No client email to notify"
// @Failure 502 {object} APIResponse "A submission step failed"
// @Router /sessions/{id}/submit [post]
func (h *SessionHandler) Submit(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}

	session, err := h.declarationService.SubmitDeclaration(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, session)
}

// Export handles GET /api/v1/sessions/:id/export
// @Summary Export the working declaration
// @Tags sessions
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "Session ID (UUID)"
// @Success 200 {file} file "Declaration workbook"
// @Failure 400 {object} APIResponse "Invalid ID"
// @Failure 404 {object} APIResponse "Session not found"
// @Failure 409 {object} APIResponse "No working declaration yet"
// @Router /sessions/{id}/export [get]
func (h *SessionHandler) Export(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}

	data, err := h.declarationService.ExportWorkingDeclaration(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="declaration_%s.xlsx"`, id))
	c.Data(http.StatusOK, xlsxContentType, data)
}

// DocumentURL handles GET /api/v1/sessions/:id/documents/:kind
// @Summary Get a source document link
// @Description Presigned download URL for the stored invoice or bill of lading
// @Tags documents
// @Produce json
// @Param id path string true "Session ID (UUID)"
// @Param kind path string true "invoice or bill_of_lading"
// @Success 200 {object} APIResponse{data=map[string]string} "Download URL"
// @Failure 400 {object} APIResponse "Invalid ID or document kind"
// @Failure 404 {object} APIResponse "Session or document not found"
// @Router /sessions/{id}/documents/{kind} [get]
func (h *SessionHandler) DocumentURL(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}

	kind := domain.DocumentKind(c.Param("kind"))
	if kind != domain.DocumentInvoice && kind != domain.DocumentBillOfLading {
		RespondError(c, http.StatusBadRequest, "INVALID_DOCUMENT_KIND", "kind must be 'invoice' or 'bill_of_lading'")
		return
	}

	url, err := h.declarationService.DocumentURL(c.Request.Context(), id, kind)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, gin.H{"url": url})
}
