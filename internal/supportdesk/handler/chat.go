package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/supportdesk/internal/supportdesk/biz"
	"github.com/kart-io/supportdesk/pkg/utils/errors"
)

// defaultQueryTimeout 未配置时消息处理的上限耗时。
const defaultQueryTimeout = 60 * time.Second

// ChatHandler 处理会话相关的 HTTP 请求。
type ChatHandler struct {
	service      biz.Service
	queryTimeout time.Duration
}

// NewChatHandler 创建会话处理器。queryTimeout 覆盖分类、检索与生成的
// 总耗时，非正值时使用默认值。
func NewChatHandler(service biz.Service, queryTimeout time.Duration) *ChatHandler {
	if queryTimeout <= 0 {
		queryTimeout = defaultQueryTimeout
	}
	return &ChatHandler{service: service, queryTimeout: queryTimeout}
}

// CreateSessionRequest 创建会话请求。用户标识可缺省（匿名会话）。
type CreateSessionRequest struct {
	UserID   string            `json:"user_id"`
	Metadata map[string]string `json:"metadata"`
}

// CreateSession 创建新会话。
func (h *ChatHandler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrno(c, errors.ErrChatInvalidRequest.WithCause(err))
		return
	}

	session, err := h.service.CreateSession(c.Request.Context(), req.UserID, req.Metadata)
	if err != nil {
		writeError(c, err)
		return
	}

	writeSuccess(c, session)
}

// GetSession 获取会话。
func (h *ChatHandler) GetSession(c *gin.Context) {
	session, err := h.service.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	writeSuccess(c, session)
}

// SendMessageRequest 发送消息请求。
type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// SendMessage 处理一条用户消息并返回回答。
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrno(c, errors.ErrChatInvalidRequest.WithCause(err))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.queryTimeout)
	defer cancel()

	resp, err := h.service.ProcessMessage(ctx, c.Param("id"), req.Content)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			writeErrno(c, errors.ErrChatQueryTimeout)
			return
		}
		writeError(c, err)
		return
	}

	writeSuccess(c, resp)
}

// EndSession 结束会话。
func (h *ChatHandler) EndSession(c *gin.Context) {
	existed, err := h.service.EndSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !existed {
		writeErrno(c, errors.ErrChatSessionNotFound)
		return
	}

	writeSuccess(c, gin.H{"ended": true})
}

// ExportSession 导出会话全文。
func (h *ChatHandler) ExportSession(c *gin.Context) {
	export, err := h.service.ExportSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	writeSuccess(c, export)
}
