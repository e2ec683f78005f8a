package judge_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/signalnine/gauntlet/internal/judge"
	"github.com/signalnine/gauntlet/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, status int, content string, seen *map[string]any) *httptest.Server {
	return chatServerWithError(t, status, "overloaded", content, seen)
}

func chatServerWithError(t *testing.T, status int, errMsg, content string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if seen != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": errMsg, "type": "api_error"},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "claude-sonnet-4-5-20250929",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 120, "completion_tokens": 30, "total_tokens": 150},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIClientStructured(t *testing.T) {
	var body map[string]any
	srv := chatServer(t, http.StatusOK, goodReply, &body)
	c := judge.NewOpenAIClient("test-key", srv.URL+"/v1/")

	j := judge.New(c, judge.Options{Model: "claude-sonnet-4-5-20250929"})
	resp, usage := j.Evaluate(context.Background(), testInput())

	assert.Equal(t, 8.0, resp.QualityScore)
	assert.Equal(t, 120, usage.InputTokens)
	assert.Equal(t, 30, usage.OutputTokens)

	assert.Equal(t, "claude-sonnet-4-5-20250929", body["model"])
	format, ok := body["response_format"].(map[string]any)
	require.True(t, ok, "structured tier sends a response_format")
	assert.Equal(t, "json_schema", format["type"])
	schema := format["json_schema"].(map[string]any)
	assert.Equal(t, true, schema["strict"])
	assert.Equal(t, "judge_response", schema["name"])
}

func TestOpenAIClientTransientStatus(t *testing.T) {
	srv := chatServer(t, 529, "", nil)
	c := judge.NewOpenAIClient("test-key", srv.URL+"/v1")

	_, err := c.Complete(context.Background(), judge.Request{Model: "m", Prompt: "p"})
	require.Error(t, err)
	assert.True(t, retry.IsTransient(err), "529 overload must be retried: %v", err)
}

func TestOpenAIClientEmptyContent(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "   ", nil)
	c := judge.NewOpenAIClient("test-key", srv.URL+"/v1")

	_, err := c.Complete(context.Background(), judge.Request{Model: "m", Prompt: "p"})
	require.Error(t, err)
	assert.False(t, retry.IsTransient(err))
}

func TestOpenAIClientAuthErrorIsPermanent(t *testing.T) {
	// The message alone would read as an overload.
	srv := chatServerWithError(t, http.StatusUnauthorized, "invalid key, try again later", "", nil)
	c := judge.NewOpenAIClient("test-key", srv.URL+"/v1")

	_, err := c.Complete(context.Background(), judge.Request{Model: "m", Prompt: "p"})
	require.Error(t, err)
	var perm *retry.PermanentError
	assert.True(t, errors.As(err, &perm), "auth failures are marked permanent: %v", err)
	assert.False(t, retry.IsTransient(err))
}
