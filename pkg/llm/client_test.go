package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completionServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		msgs, _ := req["messages"].([]interface{})
		assert.Len(t, msgs, 2)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   "test-model",
			"choices": []map[string]interface{}{
				{
					"index":         0,
					"finish_reason": "stop",
					"message":       map[string]interface{}{"role": "assistant", "content": content},
				},
			},
		})
	}))
}

func TestReply(t *testing.T) {
	server := completionServer(t, http.StatusOK, "  coucou toi  ")
	defer server.Close()

	client := NewClient("test-key", Config{BaseURL: server.URL, Model: "test-model"})
	reply, err := client.Reply(context.Background(), []Message{
		{Role: RoleSystem, Content: "be nice"},
		{Role: RoleUser, Content: "salut"},
	})

	require.NoError(t, err)
	assert.Equal(t, "coucou toi", reply)
}

func TestReply_ServerError(t *testing.T) {
	server := completionServer(t, http.StatusInternalServerError, "")
	defer server.Close()

	client := NewClient("test-key", Config{BaseURL: server.URL, Model: "test-model"})
	_, err := client.Reply(context.Background(), []Message{
		{Role: RoleSystem, Content: "be nice"},
		{Role: RoleUser, Content: "salut"},
	})

	require.Error(t, err)
	var replyErr *ReplyError
	assert.True(t, errors.As(err, &replyErr))
	assert.Equal(t, 1, client.keys[0].FailureCount)
}

func TestReply_NoKeys(t *testing.T) {
	client := NewClient(" , ", Config{Model: "test-model"})
	_, err := client.Reply(context.Background(), nil)

	var replyErr *ReplyError
	assert.True(t, errors.As(err, &replyErr))
}

func TestGetBestKey(t *testing.T) {
	client := NewClient("a,b", Config{})
	client.recordFailure(client.keys[0])
	assert.Equal(t, "b", client.getBestKey().Key)

	client.recordSuccess(client.keys[0])
	assert.Equal(t, "a", client.getBestKey().Key)
}

func TestGenerateImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/images/generations", r.URL.Path)

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "portrait of Léa", req["prompt"])
		assert.Equal(t, "image-model", req["model"])
		assert.Equal(t, "url", req["response_format"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"created": 1700000000,
			"data":    []map[string]interface{}{{"url": "https://gen.example.com/tmp/abc.png"}},
		})
	}))
	defer server.Close()

	client := NewClient("test-key", Config{BaseURL: server.URL, ImageModel: "image-model"})
	url, err := client.GenerateImage(context.Background(), "portrait of Léa")
	require.NoError(t, err)
	assert.Equal(t, "https://gen.example.com/tmp/abc.png", url)
}

func TestGenerateImage_EmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"created":1700000000,"data":[]}`))
	}))
	defer server.Close()

	client := NewClient("test-key", Config{BaseURL: server.URL})
	_, err := client.GenerateImage(context.Background(), "anything")
	var replyErr *ReplyError
	assert.True(t, errors.As(err, &replyErr))
}
