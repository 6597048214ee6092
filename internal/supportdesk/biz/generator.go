package biz

import (
	"context"
	"fmt"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/supportdesk/internal/model"
	"github.com/kart-io/supportdesk/pkg/llm"
	"github.com/kart-io/supportdesk/pkg/utils/errors"
)

// GeneratorConfig 回答生成配置。
type GeneratorConfig struct {
	// Policy 注入系统提示的客服策略文本。
	Policy string
	// HistoryWindow 提示中携带的最近消息条数。
	HistoryWindow int
}

// Generator 基于检索到的知识与会话历史生成客服回答。
type Generator struct {
	chat   llm.ChatProvider
	config *GeneratorConfig
}

// NewGenerator 创建回答生成器实例。
func NewGenerator(chat llm.ChatProvider, config *GeneratorConfig) *Generator {
	return &Generator{chat: chat, config: config}
}

// Generate 生成回答。history 为完整会话历史，提示中只携带最近的窗口。
func (g *Generator) Generate(ctx context.Context, question string, chunks []*model.ChunkSource, history []model.Message) (string, *llm.TokenUsage, error) {
	systemPrompt := g.buildSystemPrompt(chunks)
	prompt := g.buildPrompt(question, history)

	resp, err := g.chat.Generate(ctx, prompt, systemPrompt)
	if err != nil {
		return "", nil, errors.ErrChatGenerationFailed.WithCause(err)
	}

	answer := strings.TrimSpace(resp.Content)
	if answer == "" {
		return "", nil, errors.ErrChatGenerationFailed.WithCause(fmt.Errorf("provider returned empty answer"))
	}

	if resp.TokenUsage != nil {
		logger.Debugw("回答生成完成",
			"prompt_tokens", resp.TokenUsage.PromptTokens,
			"completion_tokens", resp.TokenUsage.CompletionTokens,
		)
	}

	return answer, resp.TokenUsage, nil
}

// buildSystemPrompt 组装系统提示：客服策略 + 检索到的知识片段。
// 每个片段带来源标注，便于模型在回答中引用出处。
func (g *Generator) buildSystemPrompt(chunks []*model.ChunkSource) string {
	var sb strings.Builder
	sb.WriteString(g.config.Policy)

	if len(chunks) == 0 {
		sb.WriteString("\n\nNo relevant knowledge base articles were found for this question. ")
		sb.WriteString("Tell the customer you do not have enough information to answer, ")
		sb.WriteString("and suggest contacting a human support agent. Do not invent an answer.")
		return sb.String()
	}

	sb.WriteString("\n\nRelevant knowledge base articles:\n")
	for i, chunk := range chunks {
		label := chunk.Title
		if label == "" {
			label = chunk.Filename
		}
		fmt.Fprintf(&sb, "\n[%d] %s:\n%s\n", i+1, label, chunk.Content)
	}
	sb.WriteString("\nBase your answer on the articles above whenever they are relevant.")

	return sb.String()
}

// buildPrompt 组装用户提示：最近会话历史 + 当前问题。
func (g *Generator) buildPrompt(question string, history []model.Message) string {
	window := history
	if g.config.HistoryWindow > 0 && len(window) > g.config.HistoryWindow {
		window = window[len(window)-g.config.HistoryWindow:]
	}

	var sb strings.Builder
	if len(window) > 0 {
		sb.WriteString("Conversation so far:\n")
		for _, msg := range window {
			switch msg.Role {
			case model.RoleUser:
				sb.WriteString("User: ")
			case model.RoleAssistant:
				sb.WriteString("Assistant: ")
			}
			sb.WriteString(msg.Content)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Customer question: ")
	sb.WriteString(question)

	return sb.String()
}
