package handler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/kart-io/supportdesk/internal/model"
	"github.com/kart-io/supportdesk/internal/pkg/textutil"
	"github.com/kart-io/supportdesk/internal/supportdesk/biz"
	"github.com/kart-io/supportdesk/pkg/utils/errors"
	"github.com/kart-io/supportdesk/pkg/utils/id"
)

var validate = validator.New()

// KnowledgeHandler 处理知识库相关的 HTTP 请求。
type KnowledgeHandler struct {
	service biz.Service
	dataDir string
}

// NewKnowledgeHandler 创建知识库处理器。dataDir 用于暂存上传文件。
func NewKnowledgeHandler(service biz.Service, dataDir string) *KnowledgeHandler {
	return &KnowledgeHandler{service: service, dataDir: dataDir}
}

// uploadForm 文档上传表单。
type uploadForm struct {
	Title    string `form:"title"`
	Category string `form:"category" validate:"required,oneof=general technical billing product account returns"`
	Tags     string `form:"tags"`
}

// UploadDocument 上传并摄取一篇知识库文档。
func (h *KnowledgeHandler) UploadDocument(c *gin.Context) {
	var form uploadForm
	if err := c.ShouldBind(&form); err != nil {
		writeErrno(c, errors.ErrDocInvalidUpload.WithCause(err))
		return
	}
	if err := validate.Struct(&form); err != nil {
		writeErrno(c, errors.ErrDocInvalidUpload.WithCause(err))
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		writeErrno(c, errors.ErrDocInvalidUpload.WithCause(err))
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	supported := h.service.SupportedExtensions()
	if !textutil.ContainsString(supported, ext) {
		writeErrno(c, errors.ErrDocInvalidUpload.WithMessagef(
			"unsupported file type %s, supported: %s", ext, strings.Join(supported, ", ")))
		return
	}

	if err := os.MkdirAll(h.dataDir, 0o755); err != nil {
		writeErrno(c, errors.ErrInternal.WithCause(err))
		return
	}
	tmpPath := filepath.Join(h.dataDir, fmt.Sprintf("%s%s", id.NewULID(), ext))
	if err := c.SaveUploadedFile(file, tmpPath); err != nil {
		writeErrno(c, errors.ErrInternal.WithCause(err))
		return
	}

	title := form.Title
	if title == "" {
		title = strings.TrimSuffix(file.Filename, ext)
	}

	var tags []string
	for _, tag := range strings.Split(form.Tags, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}

	upload := &model.DocumentUpload{
		Path:     tmpPath,
		Filename: file.Filename,
		Title:    title,
		Category: form.Category,
		Tags:     tags,
		Size:     file.Size,
	}

	result, err := h.service.IngestDocument(c.Request.Context(), upload)
	if err != nil {
		writeError(c, err)
		return
	}

	writeSuccess(c, result)
}

// DeleteDocument 删除知识库文档。
func (h *KnowledgeHandler) DeleteDocument(c *gin.Context) {
	if err := h.service.DeleteDocument(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	writeSuccess(c, nil)
}

// SearchRequest 知识库搜索请求。
type SearchRequest struct {
	Query    string  `json:"query" binding:"required"`
	Category string  `json:"category"`
	MinScore float64 `json:"min_score"`
}

// Search 直接检索知识库，绕过会话流水线。
func (h *KnowledgeHandler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrno(c, errors.ErrInvalidParam.WithCause(err))
		return
	}

	results, err := h.service.SearchKnowledge(c.Request.Context(), req.Query, req.Category, req.MinScore)
	if err != nil {
		writeError(c, err)
		return
	}

	writeSuccess(c, gin.H{
		"query":   req.Query,
		"results": results,
		"count":   len(results),
	})
}

// Stats 返回知识库统计信息。
func (h *KnowledgeHandler) Stats(c *gin.Context) {
	stats, err := h.service.KnowledgeStats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	writeSuccess(c, stats)
}
