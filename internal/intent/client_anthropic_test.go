package intent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnthropicTestClient(url string) *AnthropicClient {
	cfg := DefaultAnthropicConfig("test-key")
	cfg.BaseURL = url
	return NewAnthropicClientWithConfig(cfg)
}

func TestAnthropicCompleteWithSystem(t *testing.T) {
	var gotReq anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-key", r.Header.Get("x-api-key"))
		require.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Write([]byte(`{"content":[{"type":"text","text":"{\"action\":\"chat\"}"}]}`))
	}))
	defer srv.Close()

	c := newAnthropicTestClient(srv.URL)
	out, err := c.CompleteWithSystem(context.Background(), "system text", "user text")
	require.NoError(t, err)
	assert.Equal(t, `{"action":"chat"}`, out)
	assert.Equal(t, "system text", gotReq.System)
	require.Len(t, gotReq.Messages, 1)
	assert.Equal(t, "user text", gotReq.Messages[0].Content)
}

func TestAnthropicAuthErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newAnthropicTestClient(srv.URL)
	_, err := c.CompleteWithSystem(context.Background(), "", "hi")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuth), "want ErrAuth, got %v", err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestAnthropicRateLimitRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
	}))
	defer srv.Close()

	c := newAnthropicTestClient(srv.URL)
	out, err := c.CompleteWithSystem(context.Background(), "", "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestAnthropicMissingKey(t *testing.T) {
	c := NewAnthropicClient("")
	_, err := c.Complete(context.Background(), "hi")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuth))
}
