package csvexport

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"customsdesk/internal/domain"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// columns defines the CSV header row (18 columns).
var columns = []string{
	"Reference",
	"Session ID",
	"Phase",
	"Client Name",
	"Client Email",
	"Invoice File",
	"Bill of Lading File",
	"Open Discrepancies",
	"Invoice Number",
	"B/L Number",
	"Declared Value",
	"Currency",
	"Weight",
	"Authority Reference",
	"Last Completed Step",
	"Last Error",
	"Created At",
	"Submitted At",
}

// Writer wraps csv.Writer for exporting declaration sessions as CSV.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer that writes CSV to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteHeader writes the header row.
func (w *Writer) WriteHeader() error {
	return w.csv.Write(columns)
}

// WriteSessions converts a batch of sessions to CSV rows and writes them.
func (w *Writer) WriteSessions(sessions []domain.DeclarationSession) error {
	for i := range sessions {
		if err := w.csv.Write(sessionToRow(&sessions[i])); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *Writer) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *Writer) Error() error {
	return w.csv.Error()
}

// sessionToRow converts a single session to a row. Declaration columns come
// from the working declaration once it exists, otherwise from the invoice
// extraction; they stay empty before the invoice is read.
func sessionToRow(s *domain.DeclarationSession) []string {
	row := make([]string, len(columns))

	row[0] = strconv.FormatInt(s.Reference, 10)
	row[1] = s.ID.String()
	row[2] = string(s.Phase)
	row[3] = s.ClientName
	row[4] = s.ClientEmail
	if s.Invoice != nil {
		row[5] = s.Invoice.FileName
	}
	if s.BillOfLading != nil {
		row[6] = s.BillOfLading.FileName
	}
	row[7] = strconv.Itoa(len(s.Unresolved()))
	row[13] = s.StepReceipts[domain.StepCustomsAuthority].Reference
	row[14] = s.LastCompletedStep.String()
	row[15] = s.LastError
	row[16] = s.CreatedAt.Format(time.RFC3339)
	row[17] = formatTime(s.SubmittedAt)

	var decl *domain.CanonicalDeclaration
	switch {
	case s.Working != nil:
		decl = &s.Working.CanonicalDeclaration
	case s.Invoice != nil:
		decl = s.Invoice.Declaration
	}
	if decl == nil {
		return row
	}

	row[8] = decl.Documentation.InvoiceNumber
	row[9] = decl.BillOfLading.BLNumber
	row[10] = decl.Goods.Value
	row[11] = decl.Goods.Currency
	row[12] = decl.Goods.Weight
	return row
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename cleans a report name for use in Content-Disposition.
// Replaces non-alphanumeric chars (except - _) with _, collapses consecutive
// underscores, and truncates to 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// BuildFilename returns a sanitized filename for Content-Disposition header.
// Format: {sanitized_name}_{YYYY-MM-DD}.csv
func BuildFilename(name string, now time.Time) string {
	return fmt.Sprintf("%s_%s.csv", SanitizeFilename(name), now.Format("2006-01-02"))
}
