package customs_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"customsdesk/internal/config"
	"customsdesk/internal/domain"
	"customsdesk/internal/port"
	"customsdesk/internal/submission/customs"
)

func lodgementInput() port.SubmissionInput {
	return port.SubmissionInput{
		SessionID: uuid.MustParse("11111111-2222-3333-4444-555555555555"),
		Reference: 12,
		Declaration: &domain.WorkingDeclaration{CanonicalDeclaration: domain.CanonicalDeclaration{
			Goods: domain.Goods{Weight: "455 KG"},
		}},
	}
}

func TestClient_Execute_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "11111111-2222-3333-4444-555555555555-customs", r.Header.Get("Idempotency-Key"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(12), body["reference"])
		goods := body["declaration"].(map[string]interface{})["goods"].(map[string]interface{})
		assert.Equal(t, "455 KG", goods["weight"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"reference":"CUS-2026-001","status":"accepted"}`))
	}))
	defer server.Close()

	c := customs.NewClient(&config.CustomsConfig{Endpoint: server.URL, APIKey: "secret"})
	result, err := c.Execute(context.Background(), lodgementInput())

	require.NoError(t, err)
	assert.Equal(t, "CUS-2026-001", result.Reference)
	assert.Equal(t, domain.StepCustomsAuthority, c.Step())
}

func TestClient_Execute_StatusClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		fatal  bool
	}{
		{"too many requests", http.StatusTooManyRequests, false},
		{"server error", http.StatusBadGateway, false},
		{"bad request", http.StatusBadRequest, true},
		{"unprocessable", http.StatusUnprocessableEntity, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			c := customs.NewClient(&config.CustomsConfig{Endpoint: server.URL})
			_, err := c.Execute(context.Background(), lodgementInput())

			require.Error(t, err)
			assert.Equal(t, tt.fatal, domain.IsFatal(err))
		})
	}
}

func TestClient_Execute_NetworkErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := customs.NewClient(&config.CustomsConfig{Endpoint: url})
	_, err := c.Execute(context.Background(), lodgementInput())

	var retryable *domain.RetryableError
	require.ErrorAs(t, err, &retryable)
}

func TestClient_Execute_MissingReference(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"accepted"}`))
	}))
	defer server.Close()

	c := customs.NewClient(&config.CustomsConfig{Endpoint: server.URL})
	_, err := c.Execute(context.Background(), lodgementInput())

	require.Error(t, err)
	assert.False(t, domain.IsFatal(err))
}

func TestClient_Execute_NoDeclaration(t *testing.T) {
	c := customs.NewClient(&config.CustomsConfig{Endpoint: "http://unused"})
	_, err := c.Execute(context.Background(), port.SubmissionInput{SessionID: uuid.New()})

	assert.True(t, domain.IsFatal(err))
}
