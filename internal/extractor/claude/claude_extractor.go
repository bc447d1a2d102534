package claude

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"customsdesk/internal/config"
	"customsdesk/internal/extractor"
	"customsdesk/internal/port"
)

const (
	messagesURL  = "https://api.anthropic.com/v1/messages"
	apiVersion   = "2023-06-01"
	defaultModel = "claude-sonnet-4-20250514"
	maxTokens    = 4096

	// errorBodyLimit caps how much of a failed response ends up in the error.
	errorBodyLimit = 512
)

// Extractor reads shipping documents through the Anthropic Messages API.
type Extractor struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewExtractor creates a Claude-based extractor from a provider config.
func NewExtractor(cfg *config.ExtractorProviderConfig) *Extractor {
	return NewExtractorWithEndpoint(cfg, messagesURL)
}

// NewExtractorWithEndpoint points the extractor at a different Messages
// endpoint, e.g. an httptest server.
func NewExtractorWithEndpoint(cfg *config.ExtractorProviderConfig, endpoint string) *Extractor {
	model := cfg.DefaultModel
	if model == "" {
		model = defaultModel
	}
	timeout := 120 * time.Second
	if cfg.TimeoutSecs > 0 {
		timeout = time.Duration(cfg.TimeoutSecs) * time.Second
	}
	return &Extractor{
		apiKey:   cfg.APIKey,
		model:    model,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Register adds the "claude" provider to the extractor registry.
func Register() {
	extractor.RegisterProvider("claude", func(cfg *config.ExtractorProviderConfig) (port.Extractor, error) {
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("claude api key is required")
		}
		return NewExtractor(cfg), nil
	})
}

type mediaSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *mediaSource `json:"source,omitempty"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	Messages    []message `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func (e *Extractor) Extract(ctx context.Context, input port.ExtractInput) (*port.ExtractOutput, error) {
	docBlock, err := documentBlock(input)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(messagesRequest{
		Model:     e.model,
		MaxTokens: maxTokens,
		Messages: []message{{
			Role: "user",
			Content: []contentBlock{
				docBlock,
				{Type: "text", Text: extractor.BuildPrompt(input.Kind)},
			},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding claude request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating claude request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", e.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling claude messages API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading claude response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, extractor.NewRateLimitError("claude",
			fmt.Errorf("claude messages API returned status %d", resp.StatusCode),
			extractor.ParseRetryAfterHeader(resp.Header.Get("Retry-After")))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("claude messages API error (status %d): %s", resp.StatusCode, truncate(body))
	}

	var parsed messagesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding claude response: %w", err)
	}
	if parsed.StopReason == "max_tokens" {
		return nil, fmt.Errorf("claude output truncated (stop_reason: max_tokens)")
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("claude returned no text content")
	}

	decl, err := extractor.ParseDeclaration(input.Kind, text.String())
	if err != nil {
		return nil, err
	}
	return &port.ExtractOutput{Declaration: decl, ModelUsed: e.model}, nil
}

// documentBlock wraps the uploaded file as a PDF document or an image block.
func documentBlock(input port.ExtractInput) (contentBlock, error) {
	var blockType string
	switch input.ContentType {
	case "application/pdf":
		blockType = "document"
	case "image/jpeg", "image/png":
		blockType = "image"
	default:
		return contentBlock{}, fmt.Errorf("unsupported content type for extraction: %s", input.ContentType)
	}
	return contentBlock{
		Type: blockType,
		Source: &mediaSource{
			Type:      "base64",
			MediaType: input.ContentType,
			Data:      base64.StdEncoding.EncodeToString(input.FileBytes),
		},
	}, nil
}

func truncate(body []byte) string {
	if len(body) > errorBodyLimit {
		return string(body[:errorBodyLimit]) + "..."
	}
	return string(body)
}
