// Package model provides data models for the support-desk platform.
package model

import (
	"time"
)

// MessageRole identifies the author of a chat message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// IntentCategory is one of the closed set of support intents.
type IntentCategory string

const (
	IntentTechnicalSupport IntentCategory = "technical_support"
	IntentBilling          IntentCategory = "billing"
	IntentProductInfo      IntentCategory = "product_info"
	IntentAccount          IntentCategory = "account"
	IntentReturnsRefunds   IntentCategory = "returns_refunds"
	IntentGeneral          IntentCategory = "general"
)

// IntentCategories lists every valid intent category.
var IntentCategories = []IntentCategory{
	IntentTechnicalSupport,
	IntentBilling,
	IntentProductInfo,
	IntentAccount,
	IntentReturnsRefunds,
	IntentGeneral,
}

// ValidIntentCategory reports whether s is a known intent category.
func ValidIntentCategory(s string) bool {
	for _, c := range IntentCategories {
		if string(c) == s {
			return true
		}
	}
	return false
}

// Intent is the classification result for a user message.
type Intent struct {
	Category   IntentCategory `json:"category"`
	Confidence float64        `json:"confidence"`

	// Fallback marks a degraded classification (provider failure or
	// unparsable output).
	Fallback bool `json:"-"`
}

// DocCategory maps the intent onto the knowledge-base category filter.
// General intent returns "" which means unfiltered retrieval.
func (i Intent) DocCategory() string {
	switch i.Category {
	case IntentTechnicalSupport:
		return "technical"
	case IntentBilling:
		return "billing"
	case IntentProductInfo:
		return "product"
	case IntentAccount:
		return "account"
	case IntentReturnsRefunds:
		return "returns"
	default:
		return ""
	}
}

// Session represents a support chat session.
type Session struct {
	ID           string            `json:"id" gorm:"primaryKey;type:varchar(64)"`
	UserID       string            `json:"user_id" gorm:"type:varchar(64);index"`
	Metadata     map[string]string `json:"metadata,omitempty" gorm:"serializer:json;type:text"`
	Messages     []Message         `json:"messages" gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time         `json:"created_at" gorm:"autoCreateTime"`
	LastActivity time.Time         `json:"last_activity" gorm:"index"`
	Active       bool              `json:"active"`
	EndedAt      *time.Time        `json:"ended_at,omitempty"`

	// Welcome is set on the creation response only. It is not a Message
	// and is never persisted.
	Welcome string `json:"welcome,omitempty" gorm:"-"`
}

// TableName specifies the table name for Session.
func (Session) TableName() string {
	return "chat_sessions"
}

// Expired reports whether the session idle time exceeds timeout at now.
func (s *Session) Expired(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastActivity) > timeout
}

// Message represents one immutable turn in a session.
type Message struct {
	ID         string         `json:"id" gorm:"primaryKey;type:varchar(64)"`
	SessionID  string         `json:"session_id" gorm:"type:varchar(64);index;not null"`
	Role       MessageRole    `json:"role" gorm:"type:varchar(16);not null"`
	Content    string         `json:"content" gorm:"type:text;not null"`
	Intent     IntentCategory `json:"intent,omitempty" gorm:"type:varchar(32)"`
	Confidence *float64       `json:"confidence,omitempty"`
	Sources    []ChunkSource  `json:"sources,omitempty" gorm:"serializer:json;type:text"`
	CreatedAt  time.Time      `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for Message.
func (Message) TableName() string {
	return "chat_messages"
}

// ChatResponse is the answer payload for a processed message.
type ChatResponse struct {
	SessionID  string        `json:"session_id"`
	Answer     string        `json:"answer"`
	Intent     Intent        `json:"intent"`
	Confidence float64       `json:"confidence"`
	Sources    []ChunkSource `json:"sources"`
	Timestamp  time.Time     `json:"timestamp"`
}

// SessionExport is a full transcript of a session.
type SessionExport struct {
	SessionID    string            `json:"session_id"`
	UserID       string            `json:"user_id"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	LastActivity time.Time         `json:"last_activity"`
	Active       bool              `json:"active"`
	EndedAt      *time.Time        `json:"ended_at,omitempty"`
	Messages     []Message         `json:"messages"`
}
