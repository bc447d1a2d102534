package extractor

import (
	"encoding/json"
	"fmt"
	"strings"

	"customsdesk/internal/domain"
)

// ParseDeclaration decodes a model's JSON answer into a canonical declaration.
// Markdown code fences around the object are tolerated. Values are kept as
// the model read them; pairing weights across documents is left to the
// reconciler.
func ParseDeclaration(kind domain.DocumentKind, text string) (*domain.CanonicalDeclaration, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var decl domain.CanonicalDeclaration
	if err := json.Unmarshal([]byte(text), &decl); err != nil {
		return nil, fmt.Errorf("parsing model JSON output for %s: %w (raw: %s)", kind.Label(), err, truncate(text, 500))
	}
	return &decl, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
