package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"workout-mate-go/internal/model"
	"workout-mate-go/pkg/exercises"
	"workout-mate-go/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLLM 同时记录非流式与流式调用，供断言提示词与生成参数。
type fakeLLM struct {
	completeResult string
	completeErr    error
	completeMsgs   [][]llm.Message
	completeGen    []*llm.GenerationParams

	streamChunks []string
	streamErr    error
	streamMsgs   [][]llm.Message
	streamGen    []*llm.GenerationParams
}

func (f *fakeLLM) Complete(ctx context.Context, messages []llm.Message, gen *llm.GenerationParams) (string, error) {
	f.completeMsgs = append(f.completeMsgs, messages)
	f.completeGen = append(f.completeGen, gen)
	return f.completeResult, f.completeErr
}

func (f *fakeLLM) StreamChatMessages(ctx context.Context, messages []llm.Message, gen *llm.GenerationParams, writer llm.MessageWriter) error {
	f.streamMsgs = append(f.streamMsgs, messages)
	f.streamGen = append(f.streamGen, gen)
	if f.streamErr != nil {
		return f.streamErr
	}
	for _, chunk := range f.streamChunks {
		if err := writer.WriteMessage(1, []byte(chunk)); err != nil {
			return err
		}
	}
	return nil
}

type fakeExerciseClient struct {
	result    []exercises.Exercise
	err       error
	called    bool
	gotMuscle string
}

func (f *fakeExerciseClient) Lookup(ctx context.Context, muscleGroup string) ([]exercises.Exercise, error) {
	f.called = true
	f.gotMuscle = muscleGroup
	return f.result, f.err
}

type fakeEquipmentRepo struct {
	items []model.EquipmentItem
}

func (f *fakeEquipmentRepo) Items() []model.EquipmentItem { return f.items }

func (f *fakeEquipmentRepo) Names() []string {
	names := make([]string, 0, len(f.items))
	for _, item := range f.items {
		names = append(names, item.Name)
	}
	return names
}

func (f *fakeEquipmentRepo) PurposeOf(name string) string {
	for _, item := range f.items {
		if strings.EqualFold(item.Name, name) {
			return item.Purpose
		}
	}
	return "Purpose not found"
}

func (f *fakeEquipmentRepo) Reload() error { return nil }

// fakeConversationRepo 在内存中维护单个会话的 transcript。
type fakeConversationRepo struct {
	history []model.ChatMessage
}

func (f *fakeConversationRepo) GetOrCreateConversationID(ctx context.Context, userID uint) (string, error) {
	return "conv-1", nil
}

func (f *fakeConversationRepo) GetConversationHistory(ctx context.Context, conversationID string) ([]model.ChatMessage, error) {
	return f.history, nil
}

func (f *fakeConversationRepo) UpdateConversationHistory(ctx context.Context, conversationID string, messages []model.ChatMessage) error {
	f.history = messages
	return nil
}

// fakeMessageWriter 收集下发到连接的原始消息。
type fakeMessageWriter struct {
	messages [][]byte
}

func (f *fakeMessageWriter) WriteMessage(messageType int, data []byte) error {
	f.messages = append(f.messages, data)
	return nil
}

func newChatFixture(llmClient *fakeLLM, exClient *fakeExerciseClient) (ChatService, *fakeConversationRepo) {
	convRepo := &fakeConversationRepo{}
	equipRepo := &fakeEquipmentRepo{items: []model.EquipmentItem{
		{Name: "Dumbbells", Purpose: "Free weight training"},
		{Name: "Treadmill", Purpose: "Cardio"},
	}}
	return NewChatService(llmClient, exClient, equipRepo, convRepo), convRepo
}

func TestStreamResponseWithoutMuscleGroup(t *testing.T) {
	llmClient := &fakeLLM{completeResult: "none", streamChunks: []string{"Hello", " there"}}
	exClient := &fakeExerciseClient{}
	svc, convRepo := newChatFixture(llmClient, exClient)
	ws := &fakeMessageWriter{}
	user := &model.User{ID: 1, Username: "alice"}

	err := svc.StreamResponse(context.Background(), "how do I stay motivated?", user, ws, nil)
	require.NoError(t, err)

	// 未提取到肌群时不应查询动作目录
	assert.False(t, exClient.called)

	// 提示词只有 system + user 两条
	require.Len(t, llmClient.streamMsgs, 1)
	msgs := llmClient.streamMsgs[0]
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "Available equipment: Dumbbells, Treadmill")
	assert.Equal(t, "how do I stay motivated?", msgs[1].Content)

	// 分块包装为 {"chunk":...}，末尾跟 completion 通知
	require.Len(t, ws.messages, 3)
	var chunk map[string]string
	require.NoError(t, json.Unmarshal(ws.messages[0], &chunk))
	assert.Equal(t, "Hello", chunk["chunk"])
	var notif map[string]interface{}
	require.NoError(t, json.Unmarshal(ws.messages[2], &notif))
	assert.Equal(t, "completion", notif["type"])

	// transcript: 用户输入 + 完整回复
	require.Len(t, convRepo.history, 2)
	assert.Equal(t, model.RoleUser, convRepo.history[0].Role)
	assert.Equal(t, model.RoleAssistant, convRepo.history[1].Role)
	assert.Equal(t, "Hello there", convRepo.history[1].Content)
}

func TestStreamResponseWithExercises(t *testing.T) {
	longInstructions := strings.Repeat("a", 150)
	llmClient := &fakeLLM{completeResult: "Biceps", streamChunks: []string{"ok"}}
	exClient := &fakeExerciseClient{result: []exercises.Exercise{
		{Name: "Curl", Instructions: longInstructions},
		{Name: "Hammer Curl", Instructions: "Short tip"},
		{Name: "Chin-up", Instructions: "Pull up"},
		{Name: "Preacher Curl", Instructions: "Extra"},
	}}
	svc, _ := newChatFixture(llmClient, exClient)
	user := &model.User{ID: 1, Username: "alice"}

	err := svc.StreamResponse(context.Background(), "biceps exercises please", user, &fakeMessageWriter{}, nil)
	require.NoError(t, err)

	// 提取结果统一转为小写后再查询
	assert.Equal(t, "biceps", exClient.gotMuscle)

	require.Len(t, llmClient.streamMsgs, 1)
	msgs := llmClient.streamMsgs[0]
	require.Len(t, msgs, 3)
	ctxMsg := msgs[2]
	assert.Equal(t, model.RoleAssistant, ctxMsg.Role)
	assert.Contains(t, ctxMsg.Content, "I found some exercises for biceps. Here are the details:")

	// 最多携带 3 条动作，第 4 条被丢弃
	assert.Contains(t, ctxMsg.Content, "• Curl:")
	assert.Contains(t, ctxMsg.Content, "• Chin-up:")
	assert.NotContains(t, ctxMsg.Content, "Preacher Curl")

	// 说明截断到 100 个字符并追加省略标记
	assert.Contains(t, ctxMsg.Content, strings.Repeat("a", 100)+"...")
	assert.NotContains(t, ctxMsg.Content, strings.Repeat("a", 101))
	// 截断标记无条件追加，短说明也带
	assert.Contains(t, ctxMsg.Content, "Short tip...")
}

func TestStreamResponseNoCatalogMatches(t *testing.T) {
	llmClient := &fakeLLM{completeResult: "forearms", streamChunks: []string{"ok"}}
	exClient := &fakeExerciseClient{result: nil}
	svc, _ := newChatFixture(llmClient, exClient)
	user := &model.User{ID: 1, Username: "alice"}

	err := svc.StreamResponse(context.Background(), "forearm day", user, &fakeMessageWriter{}, nil)
	require.NoError(t, err)

	msgs := llmClient.streamMsgs[0]
	require.Len(t, msgs, 3)
	assert.Contains(t, msgs[2].Content, "While I couldn't find specific exercises for forearms")
}

func TestStreamResponseLookupFailureFallsBackToGenericAdvice(t *testing.T) {
	llmClient := &fakeLLM{completeResult: "chest", streamChunks: []string{"ok"}}
	exClient := &fakeExerciseClient{err: errors.New("api down")}
	svc, _ := newChatFixture(llmClient, exClient)
	user := &model.User{ID: 1, Username: "alice"}

	err := svc.StreamResponse(context.Background(), "chest day", user, &fakeMessageWriter{}, nil)
	require.NoError(t, err)

	// 查询失败等同于空结果，仍能生成回复
	msgs := llmClient.streamMsgs[0]
	require.Len(t, msgs, 3)
	assert.Contains(t, msgs[2].Content, "While I couldn't find specific exercises for chest")
}

func TestStreamResponseExtractionFailure(t *testing.T) {
	llmClient := &fakeLLM{completeErr: errors.New("timeout"), streamChunks: []string{"ok"}}
	exClient := &fakeExerciseClient{}
	svc, _ := newChatFixture(llmClient, exClient)
	user := &model.User{ID: 1, Username: "alice"}

	err := svc.StreamResponse(context.Background(), "hello", user, &fakeMessageWriter{}, nil)
	require.NoError(t, err)

	// 提取失败按 "none" 处理，不触碰动作目录
	assert.False(t, exClient.called)
	require.Len(t, llmClient.streamMsgs, 1)
	assert.Len(t, llmClient.streamMsgs[0], 2)
}

func TestStreamResponseStreamFailure(t *testing.T) {
	llmClient := &fakeLLM{completeResult: "none", streamErr: errors.New("connection reset")}
	exClient := &fakeExerciseClient{}
	svc, convRepo := newChatFixture(llmClient, exClient)
	ws := &fakeMessageWriter{}
	user := &model.User{ID: 1, Username: "alice"}

	err := svc.StreamResponse(context.Background(), "hello", user, ws, nil)
	require.Error(t, err)

	// 失败时不发送 completion 通知
	assert.Empty(t, ws.messages)

	// transcript 收到固定的致歉文案
	require.Len(t, convRepo.history, 2)
	assert.Equal(t, FallbackReply, convRepo.history[1].Content)
}

func TestStreamResponseGenerationParams(t *testing.T) {
	llmClient := &fakeLLM{completeResult: "none", streamChunks: []string{"ok"}}
	svc, _ := newChatFixture(llmClient, &fakeExerciseClient{})
	user := &model.User{ID: 1, Username: "alice"}

	err := svc.StreamResponse(context.Background(), "hi", user, &fakeMessageWriter{}, nil)
	require.NoError(t, err)

	// 提取调用：temperature 0，回复上限 50 token
	require.Len(t, llmClient.completeGen, 1)
	extractGen := llmClient.completeGen[0]
	require.NotNil(t, extractGen.Temperature)
	assert.Equal(t, 0.0, *extractGen.Temperature)
	require.NotNil(t, extractGen.MaxTokens)
	assert.Equal(t, 50, *extractGen.MaxTokens)

	// 聊天调用：默认 temperature 0.7 / 500 token
	require.Len(t, llmClient.streamGen, 1)
	chatGen := llmClient.streamGen[0]
	require.NotNil(t, chatGen.Temperature)
	assert.Equal(t, 0.7, *chatGen.Temperature)
	require.NotNil(t, chatGen.MaxTokens)
	assert.Equal(t, 500, *chatGen.MaxTokens)
}

func TestStreamResponseStopFlagSuppressesChunks(t *testing.T) {
	llmClient := &fakeLLM{completeResult: "none", streamChunks: []string{"Hello"}}
	svc, _ := newChatFixture(llmClient, &fakeExerciseClient{})
	ws := &fakeMessageWriter{}
	user := &model.User{ID: 1, Username: "alice"}

	err := svc.StreamResponse(context.Background(), "hi", user, ws, func() bool { return true })
	require.NoError(t, err)

	// 停止标志生效后分块不下发，但 completion 通知仍会发送
	require.Len(t, ws.messages, 1)
	var notif map[string]interface{}
	require.NoError(t, json.Unmarshal(ws.messages[0], &notif))
	assert.Equal(t, "completion", notif["type"])
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "short", truncateRunes("short", 100))
	// 按字符数截断，多字节字符不会被切坏
	assert.Equal(t, "日本", truncateRunes("日本語", 2))
}
