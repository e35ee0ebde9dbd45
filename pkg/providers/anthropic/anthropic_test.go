package anthropic_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/germanamz/promptchain/pkg/chats/message"
	"github.com/germanamz/promptchain/pkg/chats/role"
	"github.com/germanamz/promptchain/pkg/modeladapter"
	"github.com/germanamz/promptchain/pkg/providers/anthropic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *anthropic.Adapter {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return anthropic.New(srv.URL, "test-key", "claude-test")
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("failed to encode response: %v", err)
	}
}

func readBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}

	var req map[string]any
	if err := json.Unmarshal(body, &req); err != nil {
		t.Fatalf("failed to unmarshal body: %v", err)
	}

	return req
}

func textReply(text string) map[string]any {
	return map[string]any{
		"model": "claude-test-001",
		"content": []map[string]any{
			{"type": "text", "text": text},
		},
		"stop_reason": "end_turn",
		"usage": map[string]any{
			"input_tokens":  10,
			"output_tokens": 5,
		},
	}
}

func TestComplete_SimpleText(t *testing.T) {
	adapter := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		req := readBody(t, r)

		assert.Equal(t, "claude-test", req["model"])
		assert.Equal(t, "You are helpful.", req["system"])

		msgs, ok := req["messages"].([]any)
		require.True(t, ok)
		assert.Len(t, msgs, 1)

		writeJSON(t, w, textReply("Hello there!"))
	})

	groups := []message.Group{
		{message.System("You are helpful.")},
		{},
		{message.User("Hi")},
	}

	msg, err := adapter.Complete(context.Background(), groups)
	require.NoError(t, err)

	assert.Equal(t, role.Assistant, msg.Role)
	assert.Equal(t, "Hello there!", msg.Content)

	reason, _ := msg.GetMeta("stop_reason")
	assert.Equal(t, "end_turn", reason)

	last, ok := adapter.Usage.Last()
	require.True(t, ok)
	assert.Equal(t, 10, last.InputTokens)
	assert.Equal(t, 5, last.OutputTokens)
}

func TestComplete_LiftsSystemFromEveryGroup(t *testing.T) {
	adapter := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		req := readBody(t, r)
		assert.Equal(t, "header\n\nsandwich", req["system"])

		msgs, _ := req["messages"].([]any)
		require.Len(t, msgs, 3)

		roles := make([]string, len(msgs))
		for i, m := range msgs {
			mm, _ := m.(map[string]any)
			roles[i], _ = mm["role"].(string)
		}
		assert.Equal(t, []string{"user", "assistant", "user"}, roles)

		writeJSON(t, w, textReply("ok"))
	})

	groups := []message.Group{
		{message.System("header")},
		{message.User("earlier"), message.Assistant("answer")},
		{message.System("sandwich")},
		{message.User("now")},
	}

	_, err := adapter.Complete(context.Background(), groups)
	require.NoError(t, err)
}

func TestComplete_MergesConsecutiveRoles(t *testing.T) {
	adapter := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		req := readBody(t, r)
		assert.NotContains(t, req, "system")

		msgs, _ := req["messages"].([]any)
		require.Len(t, msgs, 1)

		first, _ := msgs[0].(map[string]any)
		blocks, _ := first["content"].([]any)
		assert.Len(t, blocks, 2)

		writeJSON(t, w, textReply("ok"))
	})

	groups := []message.Group{
		{message.User("one")},
		{message.User("two")},
	}

	_, err := adapter.Complete(context.Background(), groups)
	require.NoError(t, err)
}

func TestComplete_ConcatenatesTextBlocks(t *testing.T) {
	adapter := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": "Hello "},
				{"type": "thinking"},
				{"type": "text", "text": "world"},
			},
		})
	})

	msg, err := adapter.Complete(context.Background(), []message.Group{{message.User("hi")}})
	require.NoError(t, err)
	assert.Equal(t, "Hello world", msg.Content)
}

func TestComplete_RateLimited(t *testing.T) {
	adapter := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("overloaded"))
	})

	_, err := adapter.Complete(context.Background(), []message.Group{{message.User("hi")}})
	require.Error(t, err)

	var rle *modeladapter.RateLimitError
	assert.True(t, errors.As(err, &rle))
	assert.Contains(t, err.Error(), "anthropic:")
}
