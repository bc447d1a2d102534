package export

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"customsdesk/internal/domain"
)

const (
	declarationSheet = "Declaration"
	sessionSheet     = "Session"
)

// DeclarationWorkbook renders a session's working declaration as an XLSX
// workbook. The first sheet lists every schema field in declaration order,
// list entries one row each; the second holds session metadata and receipts.
func DeclarationWorkbook(s *domain.DeclarationSession) ([]byte, error) {
	if s.Working == nil {
		return nil, fmt.Errorf("session %s has no working declaration", s.ID)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", declarationSheet); err != nil {
		return nil, fmt.Errorf("renaming sheet: %w", err)
	}
	if err := writeRows(f, declarationSheet, declarationRows(&s.Working.CanonicalDeclaration)); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(sessionSheet); err != nil {
		return nil, fmt.Errorf("creating sheet: %w", err)
	}
	if err := writeRows(f, sessionSheet, sessionRows(s)); err != nil {
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		_ = f.SetRowStyle(declarationSheet, 1, 1, bold)
		_ = f.SetRowStyle(sessionSheet, 1, 1, bold)
	}
	_ = f.SetColWidth(declarationSheet, "A", "B", 24)
	_ = f.SetColWidth(declarationSheet, "C", "C", 48)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("writing workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func declarationRows(d *domain.CanonicalDeclaration) [][]string {
	rows := [][]string{{"Field", "Label", "Value"}}
	for _, f := range domain.Fields() {
		if f.Kind != domain.KindList {
			rows = append(rows, []string{string(f.ID), f.Label, f.Get(d)})
			continue
		}
		for i, v := range f.List(d) {
			rows = append(rows, []string{string(domain.ListEntryID(f.ID, i)), f.Label, v})
		}
	}
	return rows
}

func sessionRows(s *domain.DeclarationSession) [][]string {
	rows := [][]string{
		{"Property", "Value"},
		{"Session ID", s.ID.String()},
		{"Reference", strconv.FormatInt(s.Reference, 10)},
		{"Client", s.ClientName},
		{"Client Email", s.ClientEmail},
		{"Phase", string(s.Phase)},
		{"Created At", s.CreatedAt.Format(time.RFC3339)},
	}
	if s.SubmittedAt != nil {
		rows = append(rows, []string{"Submitted At", s.SubmittedAt.Format(time.RFC3339)})
	}
	for _, step := range domain.SubmissionSteps {
		if r, ok := s.StepReceipts[step]; ok {
			rows = append(rows, []string{"Receipt: " + step.String(), r.Reference})
		}
	}
	return rows
}

func writeRows(f *excelize.File, sheet string, rows [][]string) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("resolving cell: %w", err)
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
