// Package provider is the client for the external analysis API. It owns
// the wire contract, credential validation, and the error classification
// that drives user-facing remediation text.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"log/slog"
	"seoAuditGO/internal/config"
	"seoAuditGO/internal/models"
)

const (
	credentialPrefix    = "sk-ant-"
	minCredentialLength = 20

	// testPrompt is the minimal liveness probe sent by TestCredential.
	testPrompt    = "Reply with OK."
	testMaxTokens = 10

	maxRawErrorLen = 200
)

// Options are the per-call provider parameters
type Options struct {
	Credential  string
	Model       string
	MaxTokens   int
	Temperature float64
}

// Client talks to the analysis provider over HTTPS
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiVersion string
	logger     *slog.Logger
}

// NewClient creates a provider client. Pass nil to use a default
// http.Client; full audits are bounded by the provider's own timeout, so
// the client itself sets none.
func NewClient(cfg config.ProviderConfig, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		httpClient: httpClient,
		endpoint:   cfg.Endpoint,
		apiVersion: cfg.APIVersion,
		logger:     logger,
	}
}

// messagesRequest is the provider request body
type messagesRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// messagesResponse is the minimal success response we need
type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// apiErrorResponse captures a structured provider error
type apiErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// ValidateCredential trims the credential and checks its shape. Failing
// either check short-circuits before any network call.
func ValidateCredential(credential string) (string, error) {
	credential = strings.TrimSpace(credential)
	if len(credential) < minCredentialLength {
		return "", models.NewAuditError(models.ErrCodeInvalidCredential,
			"API credential is too short. Please re-enter your credential in settings.", nil)
	}
	if !strings.HasPrefix(credential, credentialPrefix) {
		return "", models.NewAuditError(models.ErrCodeInvalidCredential,
			fmt.Sprintf("API credential must start with %q. Please re-enter your credential in settings.", credentialPrefix), nil)
	}
	return credential, nil
}

// Analyze sends one analysis request and returns the analysis text
func (c *Client) Analyze(ctx context.Context, systemPrompt, userPrompt string, opts Options) (string, error) {
	credential, err := ValidateCredential(opts.Credential)
	if err != nil {
		return "", err
	}

	reqBody := messagesRequest{
		Model:  opts.Model,
		System: systemPrompt,
		Messages: []message{
			{
				Role:    "user",
				Content: []contentBlock{{Type: "text", Text: userPrompt}},
			},
		},
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", models.NewAuditError(models.ErrCodeInternal, "failed to encode provider request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", models.NewAuditError(models.ErrCodeInternal, "failed to create provider request", err)
	}
	// The credential travels only in a header, never in the body or URL.
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", credential)
	req.Header.Set("anthropic-version", c.apiVersion)

	c.logger.Info("calling analysis provider", "model", opts.Model, "prompt_length", len(userPrompt))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", models.NewAuditError(models.ErrCodeProviderFailure,
			"Could not reach the analysis provider. Check your network connection and try again.", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", models.NewAuditError(models.ErrCodeProviderFailure, "failed to read provider response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyError(resp.StatusCode, respBody)
	}

	var parsed messagesResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", models.NewAuditError(models.ErrCodeBadResponse, "Unexpected response format from the analysis provider.", err)
	}
	if len(parsed.Content) == 0 || parsed.Content[0].Text == "" {
		return "", models.NewAuditError(models.ErrCodeBadResponse, "Unexpected response format from the analysis provider.", nil)
	}

	return parsed.Content[0].Text, nil
}

// TestCredential issues a minimal probe request and reports validity using
// the same classification rules, without returning the analysis.
func (c *Client) TestCredential(ctx context.Context, credential, model string) error {
	_, err := c.Analyze(ctx, "", testPrompt, Options{
		Credential:  credential,
		Model:       model,
		MaxTokens:   testMaxTokens,
		Temperature: 0,
	})
	// A malformed-but-200 probe response still proves the credential works.
	if err != nil && models.ErrorCode(err) == models.ErrCodeBadResponse {
		return nil
	}
	return err
}

// classifyError maps provider failures to coded errors with remediation
// text. The classification is part of the user-facing contract.
func classifyError(statusCode int, body []byte) error {
	detail := ""
	var errResp apiErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		detail = errResp.Error.Message
	}

	// Token and length failures get their own kind regardless of status.
	if isTokenLimitMessage(detail) {
		return models.NewAuditError(models.ErrCodeTokenLimit,
			"Token limit exceeded: "+detail+". Increase max output tokens in settings or switch to a larger-context model.", nil)
	}

	switch {
	case statusCode == http.StatusUnauthorized:
		msg := "Unauthorized: the API credential was rejected. Re-enter your credential in settings."
		if detail != "" {
			msg += " Provider detail: " + detail
		}
		return models.NewAuditError(models.ErrCodeUnauthorized, msg, nil)
	case statusCode == http.StatusTooManyRequests:
		return models.NewAuditError(models.ErrCodeRateLimited,
			"Rate limit reached at the analysis provider. Wait a minute and try again.", nil)
	case statusCode >= http.StatusInternalServerError:
		return models.NewAuditError(models.ErrCodeServerError,
			fmt.Sprintf("The analysis provider returned a server error (%d). Try again in a few minutes.", statusCode), nil)
	default:
		if detail == "" {
			detail = truncateRaw(string(body))
		}
		return models.NewAuditError(models.ErrCodeProviderFailure,
			fmt.Sprintf("Provider request failed (%d): %s", statusCode, detail), nil)
	}
}

// isTokenLimitMessage matches provider messages describing prompt or token
// budget overruns
func isTokenLimitMessage(msg string) bool {
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "prompt is too long") {
		return true
	}
	return strings.Contains(lower, "token") && strings.Contains(lower, "limit")
}

func truncateRaw(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxRawErrorLen {
		return s[:maxRawErrorLen]
	}
	return s
}
