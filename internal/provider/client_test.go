package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"log/slog"
	"os"

	"seoAuditGO/internal/config"
	"seoAuditGO/internal/models"
)

const testCredential = "sk-ant-REDACTED"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestClient(endpoint string) *Client {
	return NewClient(config.ProviderConfig{
		Endpoint:   endpoint,
		APIVersion: "2023-06-01",
	}, nil, testLogger())
}

func defaultOptions() Options {
	return Options{
		Credential:  testCredential,
		Model:       "claude-sonnet-4-20250514",
		MaxTokens:   1024,
		Temperature: 1,
	}
}

func TestAnalyzeSuccess(t *testing.T) {
	var gotKey, gotVersion string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":[{"type":"text","text":"## CRITICAL ISSUES\nnone"}]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	analysis, err := client.Analyze(context.Background(), "system", "prompt", defaultOptions())
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if analysis != "## CRITICAL ISSUES\nnone" {
		t.Errorf("unexpected analysis text: %q", analysis)
	}
	if gotKey != testCredential {
		t.Errorf("credential should travel in the x-api-key header, got %q", gotKey)
	}
	if gotVersion != "2023-06-01" {
		t.Errorf("missing api version header, got %q", gotVersion)
	}
}

func TestAnalyzeTrimsCredential(t *testing.T) {
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
	}))
	defer server.Close()

	opts := defaultOptions()
	opts.Credential = "  " + testCredential + "\n"
	if _, err := newTestClient(server.URL).Analyze(context.Background(), "s", "p", opts); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if gotKey != testCredential {
		t.Errorf("credential was not trimmed before use: %q", gotKey)
	}
}

func TestAnalyzeInvalidCredentialShortCircuits(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	for name, credential := range map[string]string{
		"TooShort":    "sk-ant-x",
		"WrongPrefix": "sk-openai-0123456789abcdef",
		"Empty":       "",
	} {
		t.Run(name, func(t *testing.T) {
			opts := defaultOptions()
			opts.Credential = credential
			_, err := client.Analyze(context.Background(), "s", "p", opts)
			if err == nil {
				t.Fatal("expected a credential error")
			}
			if models.ErrorCode(err) != models.ErrCodeInvalidCredential {
				t.Errorf("expected %s, got %s", models.ErrCodeInvalidCredential, models.ErrorCode(err))
			}
		})
	}

	if calls != 0 {
		t.Errorf("invalid credentials must fail before any network call, saw %d calls", calls)
	}
}

func TestAnalyzeErrorClassification(t *testing.T) {
	cases := []struct {
		name        string
		status      int
		body        string
		wantCode    string
		wantMessage string
	}{
		{
			name:        "Unauthorized",
			status:      http.StatusUnauthorized,
			body:        `{"error":{"type":"authentication_error","message":"invalid x-api-key"}}`,
			wantCode:    models.ErrCodeUnauthorized,
			wantMessage: "Unauthorized",
		},
		{
			name:        "RateLimited",
			status:      http.StatusTooManyRequests,
			body:        `{"error":{"type":"rate_limit_error","message":"rate limited"}}`,
			wantCode:    models.ErrCodeRateLimited,
			wantMessage: "Rate limit",
		},
		{
			name:        "ServerError",
			status:      http.StatusInternalServerError,
			body:        `{"error":{"type":"api_error","message":"overloaded"}}`,
			wantCode:    models.ErrCodeServerError,
			wantMessage: "server error",
		},
		{
			name:        "TokenLimit",
			status:      http.StatusBadRequest,
			body:        `{"error":{"type":"invalid_request_error","message":"prompt is too long: 210000 tokens"}}`,
			wantCode:    models.ErrCodeTokenLimit,
			wantMessage: "Token limit exceeded",
		},
		{
			name:        "TokenLimitPhrasing",
			status:      http.StatusBadRequest,
			body:        `{"error":{"type":"invalid_request_error","message":"max_tokens exceeds the model token output limit"}}`,
			wantCode:    models.ErrCodeTokenLimit,
			wantMessage: "Token limit exceeded",
		},
		{
			name:        "UnparseableBody",
			status:      http.StatusBadRequest,
			body:        "upstream proxy error",
			wantCode:    models.ErrCodeProviderFailure,
			wantMessage: "upstream proxy error",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).Analyze(context.Background(), "s", "p", defaultOptions())
			if err == nil {
				t.Fatal("expected an error")
			}
			if got := models.ErrorCode(err); got != tc.wantCode {
				t.Errorf("expected code %s, got %s", tc.wantCode, got)
			}
			if !strings.Contains(models.ErrorMessage(err), tc.wantMessage) {
				t.Errorf("expected message containing %q, got %q", tc.wantMessage, models.ErrorMessage(err))
			}
		})
	}
}

func TestAnalyzeMalformedSuccessResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"msg_123","content":[]}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Analyze(context.Background(), "s", "p", defaultOptions())
	if err == nil {
		t.Fatal("expected an error for a 200 without content")
	}
	if models.ErrorCode(err) != models.ErrCodeBadResponse {
		t.Errorf("expected %s, got %s", models.ErrCodeBadResponse, models.ErrorCode(err))
	}
}

func TestTestCredential(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"content":[{"type":"text","text":"OK"}]}`))
		}))
		defer server.Close()

		if err := newTestClient(server.URL).TestCredential(context.Background(), testCredential, "claude-sonnet-4-20250514"); err != nil {
			t.Errorf("expected valid credential, got %v", err)
		}
	})

	t.Run("Rejected", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
		}))
		defer server.Close()

		err := newTestClient(server.URL).TestCredential(context.Background(), testCredential, "claude-sonnet-4-20250514")
		if models.ErrorCode(err) != models.ErrCodeUnauthorized {
			t.Errorf("expected %s, got %v", models.ErrCodeUnauthorized, err)
		}
	})
}
