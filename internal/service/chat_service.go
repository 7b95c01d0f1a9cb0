// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"workout-mate-go/internal/config"
	"workout-mate-go/internal/model"
	"workout-mate-go/internal/repository"
	"workout-mate-go/pkg/exercises"
	"workout-mate-go/pkg/llm"
	"workout-mate-go/pkg/log"

	"github.com/gorilla/websocket"
)

const (
	// NoMuscleGroup 是肌群提取失败或未提及肌群时的哨兵值。
	NoMuscleGroup = "none"

	// FallbackReply 是补全调用失败时返回给用户并写入 transcript 的固定回复。
	FallbackReply = "I'm having trouble generating a response right now. Please try again."

	// 提示词中最多携带的动作条数，以及每条动作说明的截断长度。
	maxExercisesInPrompt  = 3
	instructionPreviewLen = 100

	extractSystemPrompt = "You are a fitness expert. Extract the muscle group from the following text. " +
		"Reply with ONLY the muscle group name. If no muscle group is mentioned, reply with 'none'."
)

// ChatService 定义了聊天操作的接口。
type ChatService interface {
	StreamResponse(ctx context.Context, userInput string, user *model.User, ws llm.MessageWriter, shouldStop func() bool) error
}

type chatService struct {
	llmClient        llm.Client
	exerciseClient   exercises.Client
	equipmentRepo    repository.EquipmentRepository
	conversationRepo repository.ConversationRepository
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(
	llmClient llm.Client,
	exerciseClient exercises.Client,
	equipmentRepo repository.EquipmentRepository,
	conversationRepo repository.ConversationRepository,
) ChatService {
	return &chatService{
		llmClient:        llmClient,
		exerciseClient:   exerciseClient,
		equipmentRepo:    equipmentRepo,
		conversationRepo: conversationRepo,
	}
}

// StreamResponse 协调一轮完整的对话：提取肌群 → 查询动作 → 组装提示词 →
// 流式输出，并把用户输入与最终回复持久化到 transcript。
// 提示词每轮从提取与查询结果重建，不包含历史 transcript。
func (s *chatService) StreamResponse(ctx context.Context, userInput string, user *model.User, ws llm.MessageWriter, shouldStop func() bool) error {
	// 1. 先把用户输入写入 transcript，保证对话记录与界面一致
	if err := s.appendToTranscript(ctx, user.ID, model.ChatMessage{
		Role:      model.RoleUser,
		Content:   userInput,
		Timestamp: time.Now(),
	}); err != nil {
		log.Errorf("保存用户消息到 transcript 失败: %v", err)
	}

	// 2. 提取肌群；任何失败都由 extractMuscleGroup 内部退化为 "none"
	muscleGroup := s.extractMuscleGroup(ctx, userInput)

	// 3. 按分支组装提示词
	var exerciseList []exercises.Exercise
	if muscleGroup != NoMuscleGroup {
		list, err := s.exerciseClient.Lookup(ctx, muscleGroup)
		if err != nil {
			// 查询失败等同于空结果，走"无具体匹配"分支
			log.Errorf("查询动作目录失败, muscle: %s, error: %v", muscleGroup, err)
		}
		exerciseList = list
	}
	messages := s.composeMessages(userInput, muscleGroup, exerciseList)

	// 拦截 websocket writer 以捕获完整答案，并包装为 JSON 分块
	answerBuilder := &strings.Builder{}
	interceptor := &wsWriterInterceptor{conn: ws, writer: answerBuilder, shouldStop: shouldStop}

	// 4. 流式调用补全接口
	streamErr := s.llmClient.StreamChatMessages(ctx, messages, s.chatGenerationParams(), interceptor)

	fullAnswer := answerBuilder.String()
	if streamErr != nil {
		// 失败时 transcript 收到固定的致歉文案，保持对话一致
		fullAnswer = FallbackReply
	} else {
		sendCompletion(ws)
	}

	// 5. 把最终回复写入 transcript
	if len(fullAnswer) > 0 {
		// 使用后台上下文：即使原始请求被取消，也要保存已生成的答案
		if err := s.appendToTranscript(context.Background(), user.ID, model.ChatMessage{
			Role:      model.RoleAssistant,
			Content:   fullAnswer,
			Timestamp: time.Now(),
		}); err != nil {
			log.Errorf("保存助手回复到 transcript 失败: %v", err)
		}
	}

	return streamErr
}

// extractMuscleGroup 通过一次 temperature 0 的分类调用从用户输入中提取肌群。
// 网络、鉴权或响应格式的任何失败都返回哨兵 "none"，保证上层分支总是可判定。
func (s *chatService) extractMuscleGroup(ctx context.Context, text string) string {
	temperature := 0.0
	maxTokens := 50
	gen := &llm.GenerationParams{
		Model:       config.Conf.LLM.ExtractModel,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	}

	result, err := s.llmClient.Complete(ctx, []llm.Message{
		{Role: model.RoleSystem, Content: extractSystemPrompt},
		{Role: model.RoleUser, Content: text},
	}, gen)
	if err != nil {
		log.Warnf("肌群提取失败，按 'none' 处理: %v", err)
		return NoMuscleGroup
	}

	result = strings.ToLower(strings.TrimSpace(result))
	if result == "" {
		return NoMuscleGroup
	}
	return result
}

// composeMessages 根据提取与查询结果组装本轮的提示词序列：
//   - 提取到肌群且查到动作：system + user + 携带动作详情的合成 assistant 消息
//   - 提取到肌群但没查到动作：system + user + "无具体匹配"的合成 assistant 消息
//   - 未提取到肌群：仅 system + user
func (s *chatService) composeMessages(userInput, muscleGroup string, exerciseList []exercises.Exercise) []llm.Message {
	equipmentNames := strings.Join(s.equipmentRepo.Names(), ", ")

	if muscleGroup == NoMuscleGroup {
		return []llm.Message{
			{Role: model.RoleSystem, Content: fmt.Sprintf(
				"You are a knowledgeable and friendly fitness instructor. Available equipment: %s.",
				equipmentNames)},
			{Role: model.RoleUser, Content: userInput},
		}
	}

	if len(exerciseList) == 0 {
		return []llm.Message{
			{Role: model.RoleSystem, Content: fmt.Sprintf(
				"You are a knowledgeable and friendly fitness instructor. Available equipment: %s.",
				equipmentNames)},
			{Role: model.RoleUser, Content: userInput},
			{Role: model.RoleAssistant, Content: fmt.Sprintf(
				"While I couldn't find specific exercises for %s in my database, "+
					"I can provide general fitness advice based on our available equipment.",
				muscleGroup)},
		}
	}

	return []llm.Message{
		{Role: model.RoleSystem, Content: fmt.Sprintf(
			"You are a knowledgeable and friendly fitness instructor. Available equipment: %s. "+
				"Provide helpful, encouraging advice about exercises and suggest exercises using available equipment. "+
				"Keep responses concise and engaging.",
			equipmentNames)},
		{Role: model.RoleUser, Content: userInput},
		{Role: model.RoleAssistant, Content: fmt.Sprintf(
			"I found some exercises for %s. Here are the details:\n%s",
			muscleGroup, formatExerciseInfo(exerciseList))},
	}
}

// formatExerciseInfo 把动作列表渲染为带项目符号的文本，
// 最多取前 3 条，每条说明截断到 100 个字符并追加省略标记。
func formatExerciseInfo(exerciseList []exercises.Exercise) string {
	if len(exerciseList) > maxExercisesInPrompt {
		exerciseList = exerciseList[:maxExercisesInPrompt]
	}
	lines := make([]string, 0, len(exerciseList))
	for _, ex := range exerciseList {
		lines = append(lines, fmt.Sprintf("• %s: %s...", ex.Name, truncateRunes(ex.Instructions, instructionPreviewLen)))
	}
	return strings.Join(lines, "\n")
}

// truncateRunes 按字符数（而非字节数）截断字符串。
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// chatGenerationParams 返回聊天分支的生成参数，未配置时使用内置默认值。
func (s *chatService) chatGenerationParams() *llm.GenerationParams {
	temperature := 0.7
	maxTokens := 500
	if config.Conf.LLM.Generation.Temperature != 0 {
		temperature = config.Conf.LLM.Generation.Temperature
	}
	if config.Conf.LLM.Generation.MaxTokens != 0 {
		maxTokens = config.Conf.LLM.Generation.MaxTokens
	}
	gp := &llm.GenerationParams{Temperature: &temperature, MaxTokens: &maxTokens}
	if config.Conf.LLM.Generation.TopP != 0 {
		p := config.Conf.LLM.Generation.TopP
		gp.TopP = &p
	}
	return gp
}

// appendToTranscript 将一条消息追加到用户当前会话的 transcript。
func (s *chatService) appendToTranscript(ctx context.Context, userID uint, message model.ChatMessage) error {
	conversationID, err := s.conversationRepo.GetOrCreateConversationID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get or create conversation ID: %w", err)
	}
	history, err := s.conversationRepo.GetConversationHistory(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("failed to get conversation history: %w", err)
	}
	history = append(history, message)
	return s.conversationRepo.UpdateConversationHistory(ctx, conversationID, history)
}

// wsWriterInterceptor 是对 websocket.Conn 的封装，用于捕获写入的消息。
type wsWriterInterceptor struct {
	conn       llm.MessageWriter
	writer     *strings.Builder
	shouldStop func() bool
}

// WriteMessage 满足 llm.MessageWriter 接口。
func (w *wsWriterInterceptor) WriteMessage(messageType int, data []byte) error {
	if w.shouldStop != nil && w.shouldStop() {
		// 停止标志生效：跳过下发
		return nil
	}
	w.writer.Write(data)
	// 将原始分块包装成 {"chunk":"..."}
	payload := map[string]string{"chunk": string(data)}
	b, _ := json.Marshal(payload)
	return w.conn.WriteMessage(messageType, b)
}

// sendCompletion 发送完成通知 JSON
func sendCompletion(ws llm.MessageWriter) {
	notif := map[string]interface{}{
		"type":      "completion",
		"status":    "finished",
		"message":   "响应已完成",
		"timestamp": time.Now().UnixMilli(),
		"date":      time.Now().Format("2006-01-02T15:04:05"),
	}
	b, _ := json.Marshal(notif)
	_ = ws.WriteMessage(websocket.TextMessage, b)
}
