package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"seoAuditGO/internal/audit"
	"seoAuditGO/internal/config"
	"seoAuditGO/internal/models"
	"seoAuditGO/internal/provider"
	"seoAuditGO/internal/store"
)

const testAnalysis = "## CRITICAL ISSUES\n\nNone found.\n\n## SCORES\n\nOverall: 92/100"

// newProviderStub returns an httptest server speaking the provider's
// messages protocol with a canned analysis.
func newProviderStub(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"content":[{"type":"text","text":%q}]}`, testAnalysis)
	}))
}

func testServerConfig(providerEndpoint string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: "0"},
		Collector: config.CollectorConfig{
			FetchTimeout: 5 * time.Second,
			UserAgent:    "SEOAudit/1.0",
			CacheTTL:     5 * time.Second,
		},
		Provider: config.ProviderConfig{
			Endpoint:        providerEndpoint,
			APIVersion:      "2023-06-01",
			Credential:      "sk-ant-REDACTED",
			DefaultModel:    "claude-sonnet-4-20250514",
			MaxTokens:       4096,
			CredentialTests: 100, // keep the limiter out of the way unless a test wants it
		},
	}
}

// newTestServer wires a full server against an in-memory store and the
// given provider stub.
func newTestServer(t *testing.T, cfg *config.Config) (*Server, *store.MemoryStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.NewMemoryStore()
	client := provider.NewClient(cfg.Provider, nil, logger)
	orchestrator := audit.New(st, client, cfg.Provider, logger)
	return NewServer(cfg, st, orchestrator, client, logger), st
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestHealthHandler(t *testing.T) {
	stub := newProviderStub(t)
	defer stub.Close()
	s, _ := newTestServer(t, testServerConfig(stub.URL))

	w := doJSON(t, s, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("unexpected health body: %s", w.Body.String())
	}
}

func TestRunAuditWithSuppliedSignal(t *testing.T) {
	stub := newProviderStub(t)
	defer stub.Close()
	s, st := newTestServer(t, testServerConfig(stub.URL))

	req := models.AuditRequest{
		Context: "tab-1",
		Signal: &models.PageSignal{
			URL:            "https://acme.example/",
			Title:          "Acme Widgets",
			Timestamp:      time.Now(),
			BodyTextSample: "Acme widgets are the finest widgets available.",
		},
	}
	w := doJSON(t, s, http.MethodPost, "/api/audit", req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var result models.AuditResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %q (%s)", result.Error, result.ErrorCode)
	}
	if result.Analysis != testAnalysis {
		t.Errorf("expected the stub analysis, got %q", result.Analysis)
	}

	stored, err := st.LastAudit(context.Background())
	if err != nil {
		t.Fatalf("LastAudit: %v", err)
	}
	if stored == nil || stored.Metadata.URL != "https://acme.example/" {
		t.Errorf("expected the audit persisted, got %+v", stored)
	}
}

func TestRunAuditRejectsMalformedRequest(t *testing.T) {
	stub := newProviderStub(t)
	defer stub.Close()
	s, _ := newTestServer(t, testServerConfig(stub.URL))

	// Missing context entirely.
	w := doJSON(t, s, http.MethodPost, "/api/audit", map[string]string{"url": "https://acme.example/"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing context, got %d", w.Code)
	}

	// Neither signal nor url.
	w = doJSON(t, s, http.MethodPost, "/api/audit", map[string]string{"context": "tab-1"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing signal and url, got %d", w.Code)
	}
}

func TestRunAuditCollectsFromURL(t *testing.T) {
	stub := newProviderStub(t)
	defer stub.Close()

	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Acme Widgets</title></head><body><p>Finest widgets available anywhere in the world.</p></body></html>`)
	}))
	defer page.Close()

	s, _ := newTestServer(t, testServerConfig(stub.URL))

	w := doJSON(t, s, http.MethodPost, "/api/audit", models.AuditRequest{
		Context: "tab-1",
		URL:     page.URL,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var result models.AuditResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %q (%s)", result.Error, result.ErrorCode)
	}
}

func TestRunAuditUnreachablePage(t *testing.T) {
	stub := newProviderStub(t)
	defer stub.Close()
	s, _ := newTestServer(t, testServerConfig(stub.URL))

	w := doJSON(t, s, http.MethodPost, "/api/audit", models.AuditRequest{
		Context: "tab-1",
		URL:     "http://127.0.0.1:1/unreachable",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with a structured failure, got %d", w.Code)
	}

	var result models.AuditResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure for an unreachable page")
	}
	if result.ErrorCode != models.ErrCodePageInaccessible {
		t.Errorf("expected %s, got %s", models.ErrCodePageInaccessible, result.ErrorCode)
	}
}

func TestAuditStateEndpoint(t *testing.T) {
	stub := newProviderStub(t)
	defer stub.Close()
	s, _ := newTestServer(t, testServerConfig(stub.URL))

	w := doJSON(t, s, http.MethodGet, "/api/audit/state/tab-1", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for an unknown context, got %d", w.Code)
	}

	doJSON(t, s, http.MethodPost, "/api/audit", models.AuditRequest{
		Context: "tab-1",
		Signal: &models.PageSignal{
			URL: "https://acme.example/", Title: "Acme", Timestamp: time.Now(),
			BodyTextSample: "content",
		},
	})

	w = doJSON(t, s, http.MethodGet, "/api/audit/state/tab-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var state models.AuditState
	if err := json.Unmarshal(w.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state.Status != models.StatusComplete {
		t.Errorf("expected complete, got %s", state.Status)
	}
}

func TestLastAuditLifecycle(t *testing.T) {
	stub := newProviderStub(t)
	defer stub.Close()
	s, _ := newTestServer(t, testServerConfig(stub.URL))

	w := doJSON(t, s, http.MethodGet, "/api/audit/last", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 before any audit, got %d", w.Code)
	}

	doJSON(t, s, http.MethodPost, "/api/audit", models.AuditRequest{
		Context: "tab-1",
		Signal: &models.PageSignal{
			URL: "https://acme.example/", Title: "Acme", Timestamp: time.Now(),
			BodyTextSample: "content",
		},
	})

	w = doJSON(t, s, http.MethodGet, "/api/audit/last", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 after an audit, got %d", w.Code)
	}
	var stored models.StoredAudit
	if err := json.Unmarshal(w.Body.Bytes(), &stored); err != nil {
		t.Fatalf("decode stored audit: %v", err)
	}
	if stored.Analysis != testAnalysis {
		t.Errorf("unexpected stored analysis %q", stored.Analysis)
	}

	w = doJSON(t, s, http.MethodDelete, "/api/audit/last", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on delete, got %d", w.Code)
	}
	w = doJSON(t, s, http.MethodGet, "/api/audit/last", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", w.Code)
	}

	// History pointers survive clearing the audit itself.
	w = doJSON(t, s, http.MethodGet, "/api/audit/history", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"count":1`) {
		t.Errorf("expected one history entry, got %s", w.Body.String())
	}
}

func TestLastErrorEndpoint(t *testing.T) {
	stub := newProviderStub(t)
	defer stub.Close()
	cfg := testServerConfig(stub.URL)
	cfg.Provider.Credential = "" // force a NOT_CONFIGURED failure
	s, _ := newTestServer(t, cfg)

	w := doJSON(t, s, http.MethodGet, "/api/error/last", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 before any failure, got %d", w.Code)
	}

	doJSON(t, s, http.MethodPost, "/api/audit", models.AuditRequest{
		Context: "tab-1",
		Signal: &models.PageSignal{
			URL: "https://acme.example/", Title: "Acme", Timestamp: time.Now(),
			BodyTextSample: "content",
		},
	})

	w = doJSON(t, s, http.MethodGet, "/api/error/last", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 after a failure, got %d", w.Code)
	}
	var stored models.StoredError
	if err := json.Unmarshal(w.Body.Bytes(), &stored); err != nil {
		t.Fatalf("decode stored error: %v", err)
	}
	if stored.Context != "tab-1" {
		t.Errorf("expected the failing context recorded, got %q", stored.Context)
	}
}

func TestContextLifecycleEndpoints(t *testing.T) {
	stub := newProviderStub(t)
	defer stub.Close()
	s, _ := newTestServer(t, testServerConfig(stub.URL))

	w := doJSON(t, s, http.MethodPost, "/api/context/tab-9", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}

	w = doJSON(t, s, http.MethodGet, "/api/audit/state/tab-9", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for a created context, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), string(models.StatusIdle)) {
		t.Errorf("expected idle state, got %s", w.Body.String())
	}

	w = doJSON(t, s, http.MethodDelete, "/api/context/tab-9", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on destroy, got %d", w.Code)
	}
	w = doJSON(t, s, http.MethodGet, "/api/audit/state/tab-9", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 after destroy, got %d", w.Code)
	}
}

func TestCredentialTestEndpoint(t *testing.T) {
	stub := newProviderStub(t)
	defer stub.Close()
	s, _ := newTestServer(t, testServerConfig(stub.URL))

	w := doJSON(t, s, http.MethodPost, "/api/credential/test", map[string]string{
		"credential": "sk-ant-REDACTED",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var result models.AuditResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !result.Success {
		t.Errorf("expected a valid credential accepted, got %q (%s)", result.Error, result.ErrorCode)
	}

	// A malformed credential fails before any network call.
	w = doJSON(t, s, http.MethodPost, "/api/credential/test", map[string]string{
		"credential": "not-a-credential",
	})
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Success {
		t.Error("expected a malformed credential rejected")
	}
	if result.ErrorCode != models.ErrCodeInvalidCredential {
		t.Errorf("expected %s, got %s", models.ErrCodeInvalidCredential, result.ErrorCode)
	}
}

func TestCredentialTestRateLimit(t *testing.T) {
	stub := newProviderStub(t)
	defer stub.Close()
	cfg := testServerConfig(stub.URL)
	cfg.Provider.CredentialTests = 0.001 // one probe, then a long wait
	s, _ := newTestServer(t, cfg)

	body := map[string]string{"credential": "sk-ant-REDACTED"}
	w := doJSON(t, s, http.MethodPost, "/api/credential/test", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected the first probe allowed, got %d", w.Code)
	}
	w = doJSON(t, s, http.MethodPost, "/api/credential/test", body)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 for a rapid second probe, got %d", w.Code)
	}
}

func TestSettingsEndpoints(t *testing.T) {
	stub := newProviderStub(t)
	defer stub.Close()
	cfg := testServerConfig(stub.URL)
	cfg.Provider.Credential = ""
	cfg.Auth.AdminKey = "admin-secret"
	s, _ := newTestServer(t, cfg)

	// No admin key: rejected.
	w := doJSON(t, s, http.MethodGet, "/api/settings", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without the admin key, got %d", w.Code)
	}

	withAdmin := func(method, path string, body any) *httptest.ResponseRecorder {
		var reader io.Reader
		if body != nil {
			encoded, err := json.Marshal(body)
			if err != nil {
				t.Fatalf("marshal request: %v", err)
			}
			reader = bytes.NewReader(encoded)
		}
		req := httptest.NewRequest(method, path, reader)
		req.Header.Set("X-Admin-Key", "admin-secret")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		return rec
	}

	w = withAdmin(http.MethodGet, "/api/settings", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with the admin key, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"credential_set":false`) {
		t.Errorf("expected no credential configured, got %s", w.Body.String())
	}

	// A malformed credential is rejected before being stored.
	w = withAdmin(http.MethodPut, "/api/settings", models.Settings{Credential: "bogus"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a malformed credential, got %d", w.Code)
	}

	w = withAdmin(http.MethodPut, "/api/settings", models.Settings{
		Credential: "sk-ant-REDACTED",
		MaxTokens:  2048,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 saving settings, got %d: %s", w.Code, w.Body.String())
	}

	w = withAdmin(http.MethodGet, "/api/settings", nil)
	if !strings.Contains(w.Body.String(), `"credential_set":true`) {
		t.Errorf("expected the credential flagged as set, got %s", w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"max_tokens":2048`) {
		t.Errorf("expected the saved max tokens, got %s", w.Body.String())
	}
}
