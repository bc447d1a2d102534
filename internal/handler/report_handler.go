package handler

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"customsdesk/internal/csvexport"
	"customsdesk/internal/service"
)

const exportBatchSize = 200

// ReportHandler handles reporting endpoints.
type ReportHandler struct {
	declarationService service.DeclarationService
	now                func() time.Time
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(declarationService service.DeclarationService) *ReportHandler {
	return &ReportHandler{declarationService: declarationService, now: time.Now}
}

// SessionsCSV handles GET /api/v1/reports/sessions.csv
// It streams the whole session queue, newest first, in batches.
// @Summary      Session queue report
// @Description  CSV of every session with its phase, parties and submission receipts
// @Tags         reports
// @Produce      text/csv
// @Success      200 {file} file
// @Failure      500 {object} APIResponse
// @Router       /reports/sessions.csv [get]
func (h *ReportHandler) SessionsCSV(c *gin.Context) {
	ctx := c.Request.Context()

	sessions, total, err := h.declarationService.ListSessions(ctx, 0, exportBatchSize)
	if err != nil {
		HandleError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="`+csvexport.BuildFilename("declaration sessions", h.now())+`"`)
	c.Status(http.StatusOK)

	if _, err := c.Writer.Write(csvexport.BOM); err != nil {
		return
	}
	w := csvexport.NewWriter(c.Writer)
	if err := w.WriteHeader(); err != nil {
		return
	}

	for offset := 0; ; {
		if err := w.WriteSessions(sessions); err != nil {
			log.Printf("reportHandler.SessionsCSV: write failed: %v", err)
			return
		}
		offset += len(sessions)
		if len(sessions) == 0 || offset >= total {
			break
		}
		sessions, _, err = h.declarationService.ListSessions(ctx, offset, exportBatchSize)
		if err != nil {
			log.Printf("reportHandler.SessionsCSV: listing sessions at offset %d: %v", offset, err)
			break
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		log.Printf("reportHandler.SessionsCSV: flush failed: %v", err)
	}
}
