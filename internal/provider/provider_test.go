package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubResolver returns tokens from a list, one per Resolve call, repeating
// the last entry once the list is exhausted.
type stubResolver struct {
	tokens []string
	err    error
	calls  atomic.Int32
}

func (r *stubResolver) Resolve(ctx context.Context) (string, error) {
	n := int(r.calls.Add(1)) - 1
	if r.err != nil {
		return "", r.err
	}
	if n >= len(r.tokens) {
		n = len(r.tokens) - 1
	}
	return r.tokens[n], nil
}

func successBody() MessagesResponse {
	return MessagesResponse{
		Content:    []ResponseBlock{{Type: "text", Text: "hello there"}},
		StopReason: "end_turn",
		Usage:      &WireUsage{InputTokens: 10, OutputTokens: 5},
	}
}

func newProvider(t *testing.T, apiURL string, resolver TokenResolver) *Provider {
	t.Helper()
	p, err := New(Config{Resolver: resolver, APIURL: apiURL})
	require.NoError(t, err)
	return p
}

func TestNew_RequiresResolver(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestChat_Success(t *testing.T) {
	var gotReq MessagesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		assert.Contains(t, r.Header.Get("anthropic-beta"), "oauth-2025-04-20")

		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(successBody())
	}))
	defer srv.Close()

	p := newProvider(t, srv.URL, &stubResolver{tokens: []string{"tok-1"}})

	resp := p.Chat(context.Background(), []Message{
		{Role: RoleUser, Content: "hi"},
	}, nil, ChatOptions{})

	assert.Equal(t, "hello there", resp.Content)
	assert.Equal(t, FinishStop, resp.FinishReason)
	assert.Equal(t, 15, resp.Usage.TotalTokens)

	assert.Equal(t, DefaultModel, gotReq.Model)
	assert.Equal(t, defaultMaxTokens, gotReq.MaxTokens)
	require.NotEmpty(t, gotReq.System)
	assert.Equal(t, SystemPrefix, gotReq.System[0].Text)
}

func TestChat_StripsProviderPrefix(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req MessagesRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotModel = req.Model
		_ = json.NewEncoder(w).Encode(successBody())
	}))
	defer srv.Close()

	p := newProvider(t, srv.URL, &stubResolver{tokens: []string{"tok-1"}})
	p.Chat(context.Background(), nil, nil, ChatOptions{Model: "anthropic/claude-opus-4"})

	assert.Equal(t, "claude-opus-4", gotModel)
}

func TestChat_RetryOn401WithNewToken(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			assert.Equal(t, "Bearer stale", r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "Bearer fresh", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(successBody())
	}))
	defer srv.Close()

	resolver := &stubResolver{tokens: []string{"stale", "fresh"}}
	p := newProvider(t, srv.URL, resolver)

	resp := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil, ChatOptions{})

	assert.Equal(t, FinishStop, resp.FinishReason)
	assert.Equal(t, "hello there", resp.Content)
	assert.Equal(t, int32(2), requests.Load())
	assert.Equal(t, int32(2), resolver.calls.Load())
}

func TestChat_No401RetryWhenTokenUnchanged(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid token"}}`))
	}))
	defer srv.Close()

	p := newProvider(t, srv.URL, &stubResolver{tokens: []string{"same"}})

	resp := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil, ChatOptions{})

	assert.Equal(t, FinishError, resp.FinishReason)
	assert.Contains(t, resp.Content, "401")
	assert.Equal(t, int32(1), requests.Load(), "same token must not be retried")
}

func TestChat_SecondUnauthorizedIsFinal(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := newProvider(t, srv.URL, &stubResolver{tokens: []string{"one", "two", "three"}})

	resp := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil, ChatOptions{})

	assert.Equal(t, FinishError, resp.FinishReason)
	assert.Equal(t, int32(2), requests.Load(), "exactly one retry")
}

func TestChat_APIErrorTruncated(t *testing.T) {
	longBody := strings.Repeat("x", 2000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(longBody))
	}))
	defer srv.Close()

	p := newProvider(t, srv.URL, &stubResolver{tokens: []string{"tok"}})

	resp := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil, ChatOptions{})

	assert.Equal(t, FinishError, resp.FinishReason)
	assert.Contains(t, resp.Content, "500")
	assert.Less(t, len(resp.Content), 600, "error body must be truncated")
}

func TestChat_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	p := newProvider(t, srv.URL, &stubResolver{tokens: []string{"tok"}})

	resp := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil, ChatOptions{})

	assert.Equal(t, FinishError, resp.FinishReason)
	assert.Contains(t, resp.Content, "Error calling Anthropic API")
}

func TestChat_ResolverError(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer srv.Close()

	p := newProvider(t, srv.URL, &stubResolver{err: errors.New("no credential")})

	resp := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil, ChatOptions{})

	assert.Equal(t, FinishError, resp.FinishReason)
	assert.Contains(t, resp.Content, "no credential")
	assert.Zero(t, requests.Load(), "no request without a token")
}

func TestChat_MalformedResponseBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	p := newProvider(t, srv.URL, &stubResolver{tokens: []string{"tok"}})

	resp := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil, ChatOptions{})

	assert.Equal(t, FinishError, resp.FinishReason)
	assert.Contains(t, resp.Content, "decoding")
}

func TestResolveModelName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"anthropic/claude-sonnet-4-5", "claude-sonnet-4-5"},
		{"claude-sonnet-4-5", "claude-sonnet-4-5"},
		{"", ""},
		{"a/b/c", "b/c"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveModelName(tt.in))
		})
	}
}

func TestChat_Options(t *testing.T) {
	var gotReq MessagesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_ = json.NewEncoder(w).Encode(successBody())
	}))
	defer srv.Close()

	p := newProvider(t, srv.URL, &stubResolver{tokens: []string{"tok"}})

	temp := 0.2
	p.Chat(context.Background(), nil, nil, ChatOptions{
		Model:       "claude-haiku-4",
		MaxTokens:   512,
		Temperature: &temp,
	})

	assert.Equal(t, "claude-haiku-4", gotReq.Model)
	assert.Equal(t, 512, gotReq.MaxTokens)
	assert.InDelta(t, 0.2, gotReq.Temperature, 0.0001)
}
