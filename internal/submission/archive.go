package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"customsdesk/internal/domain"
	"customsdesk/internal/export"
	"customsdesk/internal/port"
)

// ArchiveStep stores the lodged declaration in object storage as JSON and as
// an XLSX workbook under archive/<reference>/.
type ArchiveStep struct {
	storage port.ObjectStorage
	bucket  string
}

// NewArchiveStep creates the archive step.
func NewArchiveStep(storage port.ObjectStorage, bucket string) *ArchiveStep {
	return &ArchiveStep{storage: storage, bucket: bucket}
}

func (a *ArchiveStep) Step() domain.SubmissionStep {
	return domain.StepArchive
}

// archiveRecord is the JSON document written to the archive.
type archiveRecord struct {
	SessionID   string                                       `json:"session_id"`
	Reference   int64                                        `json:"reference"`
	ClientName  string                                       `json:"client_name,omitempty"`
	ClientEmail string                                       `json:"client_email,omitempty"`
	Declaration *domain.CanonicalDeclaration                 `json:"declaration"`
	Receipts    map[domain.SubmissionStep]domain.StepReceipt `json:"receipts"`
	ArchivedAt  time.Time                                    `json:"archived_at"`
}

func (a *ArchiveStep) Execute(ctx context.Context, input port.SubmissionInput) (*port.StepResult, error) {
	if input.Declaration == nil {
		return nil, domain.Fatal(fmt.Errorf("no working declaration to archive"))
	}
	prefix := fmt.Sprintf("archive/%d/", input.Reference)

	record, err := json.MarshalIndent(archiveRecord{
		SessionID:   input.SessionID.String(),
		Reference:   input.Reference,
		ClientName:  input.ClientName,
		ClientEmail: input.ClientEmail,
		Declaration: &input.Declaration.CanonicalDeclaration,
		Receipts:    input.Receipts,
		ArchivedAt:  time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return nil, domain.Fatal(fmt.Errorf("marshaling archive record: %w", err))
	}

	workbook, err := export.DeclarationWorkbook(&domain.DeclarationSession{
		ID:           input.SessionID,
		Reference:    input.Reference,
		ClientName:   input.ClientName,
		ClientEmail:  input.ClientEmail,
		Phase:        domain.PhaseSubmitting,
		Working:      input.Declaration,
		StepReceipts: input.Receipts,
	})
	if err != nil {
		return nil, domain.Fatal(fmt.Errorf("rendering workbook: %w", err))
	}

	objects := []struct {
		name        string
		body        []byte
		contentType string
	}{
		{"declaration.json", record, "application/json"},
		{"declaration.xlsx", workbook, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
	}
	for _, obj := range objects {
		key := prefix + obj.name
		_, err := a.storage.Upload(ctx, port.UploadInput{
			Bucket:      a.bucket,
			Key:         key,
			Body:        bytes.NewReader(obj.body),
			ContentType: obj.contentType,
			Size:        int64(len(obj.body)),
			Metadata: map[string]string{
				"session-id": input.SessionID.String(),
				"reference":  strconv.FormatInt(input.Reference, 10),
			},
		})
		if err != nil {
			return nil, domain.Retryable(fmt.Errorf("uploading %s: %w", key, err))
		}
		log.Printf("submission.ArchiveStep: stored %s", key)
	}

	return &port.StepResult{Reference: prefix}, nil
}
