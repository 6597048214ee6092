package biz

import (
	"context"
	"fmt"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/supportdesk/internal/model"
	"github.com/kart-io/supportdesk/internal/pkg/textutil"
	"github.com/kart-io/supportdesk/pkg/llm"
)

const intentPromptTemplate = `You are an intent classifier for a customer support system.
Classify the user message into exactly one of these categories:
- technical_support: product malfunctions, errors, setup and troubleshooting
- billing: invoices, charges, payment methods, subscription pricing
- product_info: product features, specifications, availability, comparisons
- account: login, registration, profile and credential management
- returns_refunds: returning items, refund requests, exchange policies
- general: greetings, small talk, anything that fits no other category

Respond with a JSON object only, no extra text:
{"category": "<category>", "confidence": <0.0-1.0>}

User message: %s`

// IntentClassifier 通过 LLM 对用户消息做意图分类。
// 分类永不失败：模型不可用或输出无效时回退到 general 意图。
type IntentClassifier struct {
	chat llm.ChatProvider
}

// NewIntentClassifier 创建意图分类器实例。
func NewIntentClassifier(chat llm.ChatProvider) *IntentClassifier {
	return &IntentClassifier{chat: chat}
}

type intentOutput struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// Classify 对用户消息分类。
// 模型调用失败返回 {general, 0.0}，输出无法解析或类别未知返回 {general, 0.5}。
func (c *IntentClassifier) Classify(ctx context.Context, message string) model.Intent {
	prompt := fmt.Sprintf(intentPromptTemplate, message)

	raw, err := c.chat.Chat(ctx, []llm.Message{
		{Role: llm.RoleUser, Content: prompt},
	})
	if err != nil {
		logger.Warnw("意图分类调用失败，回退到 general", "error", err.Error())
		return model.Intent{Category: model.IntentGeneral, Confidence: 0.0, Fallback: true}
	}

	var out intentOutput
	if err := textutil.ParseJSONObject(raw, &out); err != nil {
		logger.Warnw("意图分类输出无法解析", "output", textutil.TruncateString(raw, 200))
		return model.Intent{Category: model.IntentGeneral, Confidence: 0.5, Fallback: true}
	}

	category := strings.TrimSpace(strings.ToLower(out.Category))
	if !model.ValidIntentCategory(category) {
		logger.Warnw("意图分类返回未知类别", "category", out.Category)
		return model.Intent{Category: model.IntentGeneral, Confidence: 0.5, Fallback: true}
	}

	confidence := out.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return model.Intent{Category: model.IntentCategory(category), Confidence: confidence}
}
