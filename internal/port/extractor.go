package port

import (
	"context"

	"customsdesk/internal/domain"
)

// ExtractInput carries one uploaded source document.
type ExtractInput struct {
	FileBytes   []byte
	ContentType string
	Kind        domain.DocumentKind
}

// ExtractOutput is the best-effort structured result of an extraction.
// Fields the document did not show are left empty.
type ExtractOutput struct {
	Declaration *domain.CanonicalDeclaration
	ModelUsed   string
}

// Extractor abstracts the field-extraction service. Implementations return
// an error only when the document is unreadable as a whole.
type Extractor interface {
	Extract(ctx context.Context, input ExtractInput) (*ExtractOutput, error)
}
