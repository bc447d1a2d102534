package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"customsdesk/internal/domain"
	"customsdesk/internal/extractor"
)

// APIResponse is the standard envelope for all API responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *PagMeta    `json:"meta,omitempty"`
}

// APIError holds error details in the response.
type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// PagMeta holds pagination metadata.
type PagMeta struct {
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// RespondOK sends a 200 success response.
func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// RespondCreated sends a 201 success response.
func RespondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{Success: true, Data: data})
}

// RespondPaginated sends a 200 success response with pagination metadata.
func RespondPaginated(c *gin.Context, data interface{}, meta PagMeta) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data, Meta: &meta})
}

// RespondError sends an error response with the given status code.
func RespondError(c *gin.Context, status int, code, msg string) {
	respondErrorDetails(c, status, code, msg, nil)
}

func respondErrorDetails(c *gin.Context, status int, code, msg string, details interface{}) {
	c.JSON(status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: msg, Details: details},
	})
}

// MappedError is the HTTP rendering of a domain error.
type MappedError struct {
	Status  int
	Code    string
	Message string
	Details interface{}
}

// MapDomainError translates domain errors to HTTP status codes, error codes
// and structured details.
func MapDomainError(err error) MappedError {
	var (
		transitionErr *domain.PhaseTransitionError
		submissionErr *domain.SubmissionError
		extractionErr *domain.ExtractionError
		incompleteErr *domain.IncompleteResolutionError
		rateLimitErr  *extractor.RateLimitError
	)

	switch {
	case errors.As(err, &transitionErr):
		fields := transitionErr.Fields
		if fields == nil {
			fields = []domain.FieldID{}
		}
		return MappedError{http.StatusConflict, "PHASE_TRANSITION_BLOCKED", transitionErr.Error(), gin.H{
			"from":   transitionErr.From,
			"reason": transitionErr.Reason,
			"fields": fields,
		}}
	case errors.As(err, &submissionErr):
		return MappedError{http.StatusBadGateway, "SUBMISSION_FAILED", submissionErr.Error(), gin.H{
			"failed_step":         submissionErr.FailedStep,
			"last_completed_step": submissionErr.LastCompletedStep,
		}}
	case errors.As(err, &extractionErr) && errors.As(err, &rateLimitErr):
		return MappedError{http.StatusTooManyRequests, "EXTRACTION_RATE_LIMITED",
			"document extraction is temporarily rate limited; try again later", gin.H{
				"kind":                extractionErr.Kind,
				"retry_after_seconds": int(rateLimitErr.RetryAfter.Seconds()),
			}}
	case errors.As(err, &extractionErr):
		return MappedError{http.StatusUnprocessableEntity, "EXTRACTION_FAILED",
			extractionErr.Kind.Label() + " could not be read; upload it again", gin.H{"kind": extractionErr.Kind}}
	case errors.As(err, &incompleteErr):
		return MappedError{http.StatusConflict, "INCOMPLETE_RESOLUTION", incompleteErr.Error(), gin.H{"field": incompleteErr.Field}}
	case errors.Is(err, domain.ErrSessionNotFound):
		return MappedError{http.StatusNotFound, "SESSION_NOT_FOUND", "declaration session not found", nil}
	case errors.Is(err, domain.ErrSessionClosed):
		return MappedError{http.StatusConflict, "SESSION_CLOSED", "declaration session is closed", nil}
	case errors.Is(err, domain.ErrPhaseMismatch):
		return MappedError{http.StatusConflict, "PHASE_MISMATCH", err.Error(), nil}
	case errors.Is(err, domain.ErrExtractionInProgress):
		return MappedError{http.StatusConflict, "EXTRACTION_IN_PROGRESS", "extraction already in progress for this document", nil}
	case errors.Is(err, domain.ErrUnknownField):
		return MappedError{http.StatusBadRequest, "UNKNOWN_FIELD", err.Error(), nil}
	case errors.Is(err, domain.ErrUnknownDiscrepancy):
		return MappedError{http.StatusBadRequest, "UNKNOWN_DISCREPANCY", err.Error(), nil}
	case errors.Is(err, domain.ErrInvalidResolution):
		return MappedError{http.StatusBadRequest, "INVALID_RESOLUTION", err.Error(), nil}
	case errors.Is(err, domain.ErrCancelNotAllowed):
		return MappedError{http.StatusConflict, "CANCEL_NOT_ALLOWED", "session cannot be cancelled once submission has begun", nil}
	case errors.Is(err, domain.ErrDeclarationLodged):
		return MappedError{http.StatusConflict, "DECLARATION_LODGED", "declaration already lodged with the customs authority", nil}
	case errors.Is(err, domain.ErrUnsupportedFileType):
		return MappedError{http.StatusBadRequest, "UNSUPPORTED_FILE_TYPE", "unsupported file type; allowed: pdf, jpg, png", nil}
	case errors.Is(err, domain.ErrFileTooLarge):
		return MappedError{http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "file exceeds maximum allowed size", nil}
	case errors.Is(err, domain.ErrDocumentNotStored):
		return MappedError{http.StatusNotFound, "DOCUMENT_NOT_STORED", "source document is not available in storage", nil}
	case errors.Is(err, domain.ErrNoNotifyRecipient):
		return MappedError{http.StatusUnprocessableEntity, "CLIENT_EMAIL_REQUIRED",
			"set a client email on the session before submitting", nil}
	default:
		return MappedError{http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred", nil}
	}
}

// HandleError maps a domain error and sends the appropriate error response.
func HandleError(c *gin.Context, err error) {
	mapped := MapDomainError(err)
	if mapped.Status >= 500 {
		requestID, _ := c.Get("request_id")
		log.Printf("[%s] error: %v", requestID, err)
	}
	respondErrorDetails(c, mapped.Status, mapped.Code, mapped.Message, mapped.Details)
}

// parseSessionID reads the :id path parameter. It writes the error response
// and returns false when the id is malformed.
func parseSessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid session ID")
		return uuid.Nil, false
	}
	return id, true
}

// parsePagination extracts offset and limit from query params with defaults.
func parsePagination(c *gin.Context) (offset, limit int) {
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return offset, limit
}
