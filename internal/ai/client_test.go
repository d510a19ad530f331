package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Options{BaseURL: srv.URL, APIKey: "key", Model: "test-model", Timeout: time.Second}, zerolog.Nop())
}

func TestSuggestFix(t *testing.T) {
	var got chatRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		require.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{
				map[string]any{"message": map[string]string{"role": "assistant", "content": "```go\npackage fixed\n```"}},
			},
		})
	})

	response, err := client.SuggestFix(context.Background(), "monitor", "nil pointer dereference")
	require.NoError(t, err)
	require.Contains(t, response, "package fixed")

	require.Equal(t, "test-model", got.Model)
	require.Len(t, got.Messages, 2)
	require.Contains(t, got.Messages[1].Content, "monitor")
	require.Contains(t, got.Messages[1].Content, "nil pointer dereference")
}

func TestCompleteNoChoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	})

	_, err := client.SuggestFix(context.Background(), "monitor", "boom")
	require.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestCompleteHTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.SuggestFix(context.Background(), "monitor", "boom")
	require.Error(t, err)
}

func TestMissingAPIKey(t *testing.T) {
	client := NewClient(Options{}, zerolog.Nop())
	_, err := client.Recommend(context.Background(), "briefing")
	require.Error(t, err)
}
