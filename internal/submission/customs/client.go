package customs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"customsdesk/internal/config"
	"customsdesk/internal/domain"
	"customsdesk/internal/port"
)

// lodgementRequest is the body posted to the customs authority.
type lodgementRequest struct {
	SessionID   string                       `json:"session_id"`
	Reference   int64                        `json:"reference"`
	Declaration *domain.CanonicalDeclaration `json:"declaration"`
}

type lodgementResponse struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// Client lodges declarations with the customs authority over HTTP. It
// implements port.SubmissionStepExecutor for the customs authority step.
type Client struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewClient creates a customs authority client from config.
func NewClient(cfg *config.CustomsConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *Client) Step() domain.SubmissionStep {
	return domain.StepCustomsAuthority
}

// Execute posts the working declaration. The idempotency key is derived from
// the session so a retry after an ambiguous failure cannot lodge twice.
func (c *Client) Execute(ctx context.Context, input port.SubmissionInput) (*port.StepResult, error) {
	if input.Declaration == nil {
		return nil, domain.Fatal(fmt.Errorf("no working declaration to lodge"))
	}

	body, err := json.Marshal(lodgementRequest{
		SessionID:   input.SessionID.String(),
		Reference:   input.Reference,
		Declaration: &input.Declaration.CanonicalDeclaration,
	})
	if err != nil {
		return nil, domain.Fatal(fmt.Errorf("marshaling lodgement: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, domain.Fatal(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", input.SessionID.String()+"-customs")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, domain.Retryable(fmt.Errorf("calling customs authority: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.Retryable(fmt.Errorf("reading response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusAccepted:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, domain.Retryable(fmt.Errorf("customs authority error (status %d): %s", resp.StatusCode, string(respBody)))
	default:
		return nil, domain.Fatal(fmt.Errorf("customs authority rejected declaration (status %d): %s", resp.StatusCode, string(respBody)))
	}

	var out lodgementResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, domain.Retryable(fmt.Errorf("unmarshaling response: %w", err))
	}
	if out.Reference == "" {
		return nil, domain.Retryable(fmt.Errorf("customs authority response missing reference"))
	}
	return &port.StepResult{Reference: out.Reference}, nil
}
