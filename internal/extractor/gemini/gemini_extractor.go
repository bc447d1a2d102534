package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"customsdesk/internal/config"
	"customsdesk/internal/extractor"
	"customsdesk/internal/port"
)

// contentGenerator is the slice of *genai.GenerativeModel the extractor uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Extractor implements port.Extractor using Google's Gemini SDK.
type Extractor struct {
	client  *genai.Client
	model   contentGenerator
	name    string
	timeout time.Duration
}

// NewExtractor creates a Gemini-based extractor.
func NewExtractor(ctx context.Context, cfg *config.ExtractorProviderConfig) (*Extractor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	name := modelName(cfg)

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(name)
	model.SetTemperature(0)

	e := newExtractor(model, cfg)
	e.client = client
	return e, nil
}

// NewExtractorWithModel creates an extractor around an existing generator (for testing).
func NewExtractorWithModel(model contentGenerator, cfg *config.ExtractorProviderConfig) *Extractor {
	return newExtractor(model, cfg)
}

// Register adds the "gemini" provider to the extractor registry.
func Register() {
	extractor.RegisterProvider("gemini", func(cfg *config.ExtractorProviderConfig) (port.Extractor, error) {
		return NewExtractor(context.Background(), cfg)
	})
}

func newExtractor(model contentGenerator, cfg *config.ExtractorProviderConfig) *Extractor {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Extractor{
		model:   model,
		name:    modelName(cfg),
		timeout: timeout,
	}
}

func modelName(cfg *config.ExtractorProviderConfig) string {
	if cfg.DefaultModel == "" {
		return "gemini-2.0-flash"
	}
	return cfg.DefaultModel
}

func (e *Extractor) Extract(ctx context.Context, input port.ExtractInput) (*port.ExtractOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	docPart, err := documentPart(input)
	if err != nil {
		return nil, err
	}

	resp, err := e.model.GenerateContent(ctx, docPart, genai.Text(extractor.BuildPrompt(input.Kind)))
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
			return nil, extractor.NewRateLimitError("gemini", err, 0)
		}
		return nil, fmt.Errorf("generating content: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no response from gemini")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	decl, err := extractor.ParseDeclaration(input.Kind, text.String())
	if err != nil {
		return nil, err
	}
	return &port.ExtractOutput{Declaration: decl, ModelUsed: e.name}, nil
}

// Close releases the underlying SDK client.
func (e *Extractor) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}

func documentPart(input port.ExtractInput) (genai.Part, error) {
	switch input.ContentType {
	case "image/jpeg":
		return genai.ImageData("jpeg", input.FileBytes), nil
	case "image/png":
		return genai.ImageData("png", input.FileBytes), nil
	case "application/pdf":
		return genai.Blob{MIMEType: "application/pdf", Data: input.FileBytes}, nil
	default:
		return nil, fmt.Errorf("unsupported content type for extraction: %s", input.ContentType)
	}
}

var _ port.Extractor = (*Extractor)(nil)
