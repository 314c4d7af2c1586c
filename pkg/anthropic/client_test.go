package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func messageBody(text string) map[string]any {
	return map[string]any{
		"id":   "msg_test_001",
		"type": "message",
		"role": "assistant",
		"content": []map[string]any{
			{"type": "text", "text": text},
		},
		"model":       "claude-sonnet-4-5-20250929",
		"stop_reason": "end_turn",
		"usage": map[string]any{
			"input_tokens":  1200,
			"output_tokens": 800,
		},
	}
}

func TestCreateMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/messages")
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-sonnet-4-5-20250929", body["model"])
		assert.Equal(t, float64(2500), body["max_tokens"])
		system := body["system"].([]any)
		require.Len(t, system, 1)
		assert.Equal(t, "analista", system[0].(map[string]any)["text"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(messageBody("## 1. PERFIL DA EMPRESA")) //nolint:errcheck
	}))
	defer ts.Close()

	client := NewClient("test-key", WithBaseURL(ts.URL))
	resp, err := client.CreateMessage(context.Background(), MessageRequest{
		MaxTokens: 2500,
		System:    "analista",
		Messages:  []Message{{Role: "user", Content: "Analise a empresa"}},
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "msg_test_001", resp.ID)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, "## 1. PERFIL DA EMPRESA", resp.Text())
	assert.Equal(t, int64(1200), resp.Usage.InputTokens)
	assert.Equal(t, int64(800), resp.Usage.OutputTokens)
}

func TestCreateMessage_ModelOverride(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-haiku-4-5-20251001", body["model"])
		_, hasSystem := body["system"]
		assert.False(t, hasSystem)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(messageBody("ok")) //nolint:errcheck
	}))
	defer ts.Close()

	client := NewClient("test-key", WithBaseURL(ts.URL), WithModel("claude-haiku-4-5-20251001"))
	_, err := client.CreateMessage(context.Background(), MessageRequest{
		MaxTokens: 100,
		Messages:  []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
}

func TestCreateMessage_ErrorIsSingleAttempt(t *testing.T) {
	var attempts atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)) //nolint:errcheck
	}))
	defer ts.Close()

	client := NewClient("test-key", WithBaseURL(ts.URL))
	_, err := client.CreateMessage(context.Background(), MessageRequest{
		MaxTokens: 100,
		Messages:  []Message{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic: create message")
	assert.Equal(t, int32(1), attempts.Load())
}

func TestMessageResponseText(t *testing.T) {
	var nilResp *MessageResponse
	assert.Empty(t, nilResp.Text())

	resp := &MessageResponse{Content: []ContentBlock{
		{Type: "text", Text: "parte 1 "},
		{Type: "tool_use"},
		{Type: "text", Text: "parte 2"},
	}}
	assert.Equal(t, "parte 1 parte 2", resp.Text())
}

func TestToSDKMessages(t *testing.T) {
	out := toSDKMessages([]Message{{Role: "user", Content: "a"}, {Role: "assistant", Content: "b"}})
	require.Len(t, out, 2)
	assert.Equal(t, "user", string(out[0].Role))
	assert.Equal(t, "assistant", string(out[1].Role))
}
