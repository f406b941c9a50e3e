package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultMessagesURL is the Anthropic messages endpoint.
	DefaultMessagesURL = "https://api.anthropic.com/v1/messages"

	// DefaultModel is used when the caller does not pick one.
	DefaultModel = "claude-sonnet-4-5-20250929"

	// Fixed vendor headers required for OAuth-authenticated calls.
	anthropicVersion = "2023-06-01"
	anthropicBeta    = "claude-code-20250219,oauth-2025-04-20,interleaved-thinking-2025-05-14"

	// defaultChatTimeout bounds one chat exchange end to end.
	defaultChatTimeout = 300 * time.Second

	defaultMaxTokens   = 4096
	defaultTemperature = 0.7

	// maxErrorBody bounds how much of a vendor error body is surfaced in
	// the response text.
	maxErrorBody = 500
)

// TokenResolver yields a usable bearer token, refreshing it when needed.
// *oauth.Manager is the production implementation.
type TokenResolver interface {
	Resolve(ctx context.Context) (string, error)
}

// Provider bridges the generic chat interface onto the Anthropic Messages
// API using a Claude Code OAuth token. Chat never returns a Go error; every
// failure is folded into a Response with finish reason error so the calling
// agent loop keeps running.
type Provider struct {
	resolver     TokenResolver
	httpClient   *http.Client
	translator   Translator
	apiURL       string
	defaultModel string
}

// Config configures a Provider. Only Resolver is required.
type Config struct {
	// Resolver produces the bearer token for each request.
	Resolver TokenResolver

	// HTTPClient is an optional custom HTTP client.
	HTTPClient *http.Client

	// APIURL overrides the messages endpoint. Used by tests.
	APIURL string

	// DefaultModel overrides the built-in default model.
	DefaultModel string
}

// ChatOptions are the per-call knobs of Chat.
type ChatOptions struct {
	// Model, with an optional "provider/" prefix which is stripped.
	// Empty selects the provider default.
	Model string

	// MaxTokens caps the completion. Zero selects 4096.
	MaxTokens int

	// Temperature, nil selects 0.7.
	Temperature *float64
}

// New creates a Provider.
func New(cfg Config) (*Provider, error) {
	if cfg.Resolver == nil {
		return nil, errors.New("token resolver is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultChatTimeout}
	}

	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = DefaultMessagesURL
	}

	defaultModel := resolveModelName(cfg.DefaultModel)
	if defaultModel == "" {
		defaultModel = DefaultModel
	}

	return &Provider{
		resolver:     cfg.Resolver,
		httpClient:   httpClient,
		translator:   NewTranslator(),
		apiURL:       apiURL,
		defaultModel: defaultModel,
	}, nil
}

// DefaultModel returns the model used when a chat call does not pick one.
func (p *Provider) DefaultModel() string {
	return p.defaultModel
}

// resolveModelName strips an optional "provider/" prefix, e.g.
// "anthropic/claude-sonnet-4-5" becomes "claude-sonnet-4-5".
func resolveModelName(model string) string {
	if i := strings.IndexByte(model, '/'); i >= 0 {
		return model[i+1:]
	}
	return model
}

// Chat sends one conversation turn and returns the generic response.
//
// On a 401 the token is re-resolved (which re-reads the store and may
// refresh); if that yields a different token the request is retried exactly
// once. A second 401, any other non-200, and any transport failure all
// surface as a Response with finish reason error.
func (p *Provider) Chat(ctx context.Context, messages []Message, tools []ToolDefinition, opts ChatOptions) *Response {
	requestID := uuid.NewString()

	model := resolveModelName(opts.Model)
	if model == "" {
		model = p.defaultModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	temperature := defaultTemperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}

	body := p.translator.BuildRequest(messages, tools, model, maxTokens, temperature)
	payload, err := json.Marshal(body)
	if err != nil {
		return errorResponse(fmt.Sprintf("Error encoding request: %v", err))
	}

	token, err := p.resolver.Resolve(ctx)
	if err != nil {
		slog.Warn("No usable Claude Code credential for chat request",
			"request_id", requestID,
			"error", err.Error(),
		)
		return errorResponse(fmt.Sprintf("Error resolving Claude Code credential: %v", err))
	}

	slog.Debug("Sending chat request",
		"request_id", requestID,
		"model", model,
		"messages", len(messages),
		"tools", len(tools),
	)

	resp, err := p.send(ctx, payload, token)
	if err != nil {
		slog.Warn("Chat request failed",
			"request_id", requestID,
			"error", err.Error(),
		)
		return errorResponse(fmt.Sprintf("Error calling Anthropic API: %v", err))
	}

	if resp.StatusCode == http.StatusUnauthorized {
		drainBody(resp)

		// Force one re-resolution. The resolver reads the store fresh, so
		// an externally refreshed credential is picked up, and an expired
		// one triggers our own refresh.
		newToken, resolveErr := p.resolver.Resolve(ctx)
		if resolveErr == nil && newToken != token {
			slog.Info("Retrying chat request with re-resolved token",
				"request_id", requestID,
			)
			resp, err = p.send(ctx, payload, newToken)
			if err != nil {
				return errorResponse(fmt.Sprintf("Error calling Anthropic API: %v", err))
			}
		}
	}

	defer drainBody(resp)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		errorText := strings.TrimSpace(string(body))
		slog.Warn("Anthropic API error",
			"request_id", requestID,
			"status", resp.StatusCode,
			"body", truncate(errorText, 200),
		)
		return errorResponse(fmt.Sprintf("Error from Anthropic API (%d): %s",
			resp.StatusCode, truncate(errorText, maxErrorBody)))
	}

	var wire MessagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return errorResponse(fmt.Sprintf("Error decoding Anthropic API response: %v", err))
	}

	result := p.translator.ParseResponse(wire)
	slog.Debug("Chat request complete",
		"request_id", requestID,
		"finish_reason", string(result.FinishReason),
		"tool_calls", len(result.ToolCalls),
		"total_tokens", result.Usage.TotalTokens,
	)
	return result
}

// send performs one messages-endpoint exchange with the given token.
func (p *Provider) send(ctx context.Context, payload []byte, token string) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultChatTimeout)
	// The cancel is tied to the response body; callers fully drain or close
	// the body, after which the context may be released.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(payload))
	if err != nil {
		cancel()
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("anthropic-beta", anthropicBeta)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}

	resp.Body = &cancelReadCloser{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelReadCloser releases the request context when the body is closed.
type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func drainBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}

func errorResponse(msg string) *Response {
	return &Response{
		Content:      msg,
		FinishReason: FinishError,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
