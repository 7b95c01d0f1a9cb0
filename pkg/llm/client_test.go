package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"workout-mate-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collectingWriter struct {
	chunks []string
}

func (w *collectingWriter) WriteMessage(messageType int, data []byte) error {
	w.chunks = append(w.chunks, string(data))
	return nil
}

func TestComplete(t *testing.T) {
	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"biceps"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	client := NewClient(config.LLMConfig{APIKey: "test-key", BaseURL: server.URL, Model: "default-model"})

	temperature := 0.0
	maxTokens := 50
	got, err := client.Complete(context.Background(), []Message{
		{Role: "system", Content: "classify"},
		{Role: "user", Content: "arm day"},
	}, &GenerationParams{Model: "extract-model", Temperature: &temperature, MaxTokens: &maxTokens})
	require.NoError(t, err)
	assert.Equal(t, "biceps", got)

	// 传参覆盖默认模型与生成参数
	assert.Equal(t, "extract-model", gotReq.Model)
	assert.False(t, gotReq.Stream)
	require.NotNil(t, gotReq.Temperature)
	assert.Equal(t, 0.0, *gotReq.Temperature)
	require.NotNil(t, gotReq.MaxTokens)
	assert.Equal(t, 50, *gotReq.MaxTokens)
}

func TestCompleteAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"message":"model overloaded","type":"server_error"}}`))
	}))
	defer server.Close()

	client := NewClient(config.LLMConfig{BaseURL: server.URL})

	_, err := client.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestCompleteNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer server.Close()

	client := NewClient(config.LLMConfig{BaseURL: server.URL})

	_, err := client.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-200")
}

func TestStreamChatMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		// 空 delta 与无法解析的行都应被跳过
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n"))
		_, _ = w.Write([]byte("\n"))
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"\"}}]}\n"))
		_, _ = w.Write([]byte("data: not-json\n"))
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"lo!\"}}]}\n"))
		_, _ = w.Write([]byte("data: [DONE]\n"))
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"ignored\"}}]}\n"))
	}))
	defer server.Close()

	client := NewClient(config.LLMConfig{BaseURL: server.URL, Model: "chat-model"})
	writer := &collectingWriter{}

	err := client.StreamChatMessages(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil, writer)
	require.NoError(t, err)

	// [DONE] 之后的数据不再下发
	assert.Equal(t, []string{"Hel", "lo!"}, writer.chunks)
}

func TestStreamChatMessagesNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(config.LLMConfig{BaseURL: server.URL})

	err := client.StreamChatMessages(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil, &collectingWriter{})
	assert.Error(t, err)
}

func TestBuildRequestUsesConfigDefaults(t *testing.T) {
	client := &openAICompatibleClient{cfg: config.LLMConfig{
		Model: "default-model",
		Generation: config.LLMGenerationConfig{
			Temperature: 0.7,
			TopP:        0.9,
			MaxTokens:   500,
		},
	}}

	req := client.buildRequest([]Message{{Role: "user", Content: "hi"}}, nil, true)
	assert.Equal(t, "default-model", req.Model)
	require.NotNil(t, req.Temperature)
	assert.Equal(t, 0.7, *req.Temperature)
	require.NotNil(t, req.TopP)
	assert.Equal(t, 0.9, *req.TopP)
	require.NotNil(t, req.MaxTokens)
	assert.Equal(t, 500, *req.MaxTokens)
}
