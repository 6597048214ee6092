package handler_test

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/supportdesk/internal/model"
	"github.com/kart-io/supportdesk/internal/supportdesk/handler"
	"github.com/kart-io/supportdesk/internal/supportdesk/router"
	"github.com/kart-io/supportdesk/pkg/utils/errors"
	"github.com/kart-io/supportdesk/pkg/utils/json"
)

// stubService 按字段覆盖各操作，未覆盖的操作返回零值。
type stubService struct {
	ingestFn  func(ctx context.Context, upload *model.DocumentUpload) (*model.IngestResult, error)
	searchFn  func(ctx context.Context, query, category string, minScore float64) ([]*model.ChunkSource, error)
	createFn  func(ctx context.Context, userID string, metadata map[string]string) (*model.Session, error)
	getFn     func(ctx context.Context, sessionID string) (*model.Session, error)
	processFn func(ctx context.Context, sessionID, content string) (*model.ChatResponse, error)
	endFn     func(ctx context.Context, sessionID string) (bool, error)
}

func (s *stubService) IngestDocument(ctx context.Context, upload *model.DocumentUpload) (*model.IngestResult, error) {
	if s.ingestFn != nil {
		return s.ingestFn(ctx, upload)
	}
	return &model.IngestResult{DocumentID: "doc-1", Filename: upload.Filename, ChunkCount: 2, UploadedAt: time.Now()}, nil
}

func (s *stubService) DeleteDocument(ctx context.Context, documentID string) error {
	return errors.ErrDocDeleteUnsupported
}

func (s *stubService) SearchKnowledge(ctx context.Context, query, category string, minScore float64) ([]*model.ChunkSource, error) {
	if s.searchFn != nil {
		return s.searchFn(ctx, query, category, minScore)
	}
	return nil, nil
}

func (s *stubService) KnowledgeStats(ctx context.Context) (*model.KnowledgeStats, error) {
	return &model.KnowledgeStats{Collection: "support_kb", ChunkCount: 42}, nil
}

func (s *stubService) SupportedExtensions() []string {
	return []string{".txt", ".md", ".markdown"}
}

func (s *stubService) CreateSession(ctx context.Context, userID string, metadata map[string]string) (*model.Session, error) {
	if s.createFn != nil {
		return s.createFn(ctx, userID, metadata)
	}
	return &model.Session{ID: "sess-1", UserID: userID, Metadata: metadata}, nil
}

func (s *stubService) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	if s.getFn != nil {
		return s.getFn(ctx, sessionID)
	}
	return &model.Session{ID: sessionID}, nil
}

func (s *stubService) ProcessMessage(ctx context.Context, sessionID, content string) (*model.ChatResponse, error) {
	if s.processFn != nil {
		return s.processFn(ctx, sessionID, content)
	}
	return &model.ChatResponse{SessionID: sessionID, Answer: "stub answer"}, nil
}

func (s *stubService) EndSession(ctx context.Context, sessionID string) (bool, error) {
	if s.endFn != nil {
		return s.endFn(ctx, sessionID)
	}
	return true, nil
}

func (s *stubService) ExportSession(ctx context.Context, sessionID string) (*model.SessionExport, error) {
	return &model.SessionExport{SessionID: sessionID, UserID: "u1"}, nil
}

// envelope 统一响应封装的测试视图。
type envelope struct {
	Code      int             `json:"code"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	RequestID string          `json:"request_id"`
}

func newTestEngine(t *testing.T, svc *stubService) *gin.Engine {
	t.Helper()
	chat := handler.NewChatHandler(svc, 0)
	knowledge := handler.NewKnowledgeHandler(svc, t.TempDir())
	return router.New(chat, knowledge)
}

func doJSON(t *testing.T, engine *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func TestCreateSession(t *testing.T) {
	engine := newTestEngine(t, &stubService{})

	w, env := doJSON(t, engine, http.MethodPost, "/v1/sessions", `{"user_id":"u1","metadata":{"channel":"web"}}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, env.Code)
	assert.NotEmpty(t, env.RequestID)

	var session model.Session
	require.NoError(t, json.Unmarshal(env.Data, &session))
	assert.Equal(t, "sess-1", session.ID)
	assert.Equal(t, "u1", session.UserID)
}

func TestCreateSessionAnonymous(t *testing.T) {
	engine := newTestEngine(t, &stubService{})

	w, env := doJSON(t, engine, http.MethodPost, "/v1/sessions", `{}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, env.Code)
}

func TestCreateSessionMalformedBody(t *testing.T) {
	engine := newTestEngine(t, &stubService{})

	w, env := doJSON(t, engine, http.MethodPost, "/v1/sessions", `{"user_id":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errors.ErrChatInvalidRequest.Code, env.Code)
}

func TestGetSessionNotFound(t *testing.T) {
	svc := &stubService{
		getFn: func(ctx context.Context, sessionID string) (*model.Session, error) {
			return nil, errors.ErrChatSessionNotFound
		},
	}
	engine := newTestEngine(t, svc)

	w, env := doJSON(t, engine, http.MethodGet, "/v1/sessions/missing", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, errors.ErrChatSessionNotFound.Code, env.Code)
}

func TestSendMessage(t *testing.T) {
	svc := &stubService{
		processFn: func(ctx context.Context, sessionID, content string) (*model.ChatResponse, error) {
			assert.Equal(t, "sess-1", sessionID)
			assert.Equal(t, "how do I reset my password?", content)
			return &model.ChatResponse{SessionID: sessionID, Answer: "reset it in settings", Confidence: 0.8}, nil
		},
	}
	engine := newTestEngine(t, svc)

	w, env := doJSON(t, engine, http.MethodPost, "/v1/sessions/sess-1/messages",
		`{"content":"how do I reset my password?"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp model.ChatResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "reset it in settings", resp.Answer)
}

func TestSendMessageMissingContent(t *testing.T) {
	engine := newTestEngine(t, &stubService{})

	w, env := doJSON(t, engine, http.MethodPost, "/v1/sessions/sess-1/messages", `{}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errors.ErrChatInvalidRequest.Code, env.Code)
}

func TestEndSession(t *testing.T) {
	engine := newTestEngine(t, &stubService{})

	w, env := doJSON(t, engine, http.MethodDelete, "/v1/sessions/sess-1", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, env.Code)
}

func TestEndSessionAlreadyGone(t *testing.T) {
	svc := &stubService{
		endFn: func(ctx context.Context, sessionID string) (bool, error) {
			return false, nil
		},
	}
	engine := newTestEngine(t, svc)

	w, env := doJSON(t, engine, http.MethodDelete, "/v1/sessions/sess-1", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, errors.ErrChatSessionNotFound.Code, env.Code)
}

func TestExportSession(t *testing.T) {
	engine := newTestEngine(t, &stubService{})

	w, env := doJSON(t, engine, http.MethodGet, "/v1/sessions/sess-1/export", "")

	assert.Equal(t, http.StatusOK, w.Code)
	var export model.SessionExport
	require.NoError(t, json.Unmarshal(env.Data, &export))
	assert.Equal(t, "sess-1", export.SessionID)
}

func TestSearchKnowledge(t *testing.T) {
	svc := &stubService{
		searchFn: func(ctx context.Context, query, category string, minScore float64) ([]*model.ChunkSource, error) {
			assert.Equal(t, "refund policy", query)
			assert.Equal(t, "returns", category)
			return []*model.ChunkSource{{ChunkID: "doc-1_chunk_0", Score: 0.9}}, nil
		},
	}
	engine := newTestEngine(t, svc)

	w, env := doJSON(t, engine, http.MethodPost, "/v1/kb/search",
		`{"query":"refund policy","category":"returns"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	var data struct {
		Count   int                  `json:"count"`
		Results []*model.ChunkSource `json:"results"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, 1, data.Count)
	require.Len(t, data.Results, 1)
	assert.Equal(t, "doc-1_chunk_0", data.Results[0].ChunkID)
}

func TestSearchKnowledgeMissingQuery(t *testing.T) {
	engine := newTestEngine(t, &stubService{})

	w, env := doJSON(t, engine, http.MethodPost, "/v1/kb/search", `{"category":"billing"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errors.ErrInvalidParam.Code, env.Code)
}

func TestKnowledgeStats(t *testing.T) {
	engine := newTestEngine(t, &stubService{})

	w, env := doJSON(t, engine, http.MethodGet, "/v1/kb/stats", "")

	assert.Equal(t, http.StatusOK, w.Code)
	var stats model.KnowledgeStats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, int64(42), stats.ChunkCount)
}

func TestDeleteDocumentUnsupported(t *testing.T) {
	engine := newTestEngine(t, &stubService{})

	w, env := doJSON(t, engine, http.MethodDelete, "/v1/documents/doc-1", "")

	assert.Equal(t, http.StatusNotImplemented, w.Code)
	assert.Equal(t, errors.ErrDocDeleteUnsupported.Code, env.Code)
}

func multipartUpload(t *testing.T, fields map[string]string, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadDocument(t *testing.T) {
	var got *model.DocumentUpload
	svc := &stubService{
		ingestFn: func(ctx context.Context, upload *model.DocumentUpload) (*model.IngestResult, error) {
			got = upload
			return &model.IngestResult{DocumentID: "doc-1", Filename: upload.Filename, ChunkCount: 3, UploadedAt: time.Now()}, nil
		},
	}
	engine := newTestEngine(t, svc)

	body, contentType := multipartUpload(t, map[string]string{
		"title":    "Refund Policy",
		"category": "returns",
		"tags":     "refund, policy",
	}, "refunds.md", "Refunds are issued within 14 days. Contact support for details.")

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, got)
	assert.Equal(t, "refunds.md", got.Filename)
	assert.Equal(t, "Refund Policy", got.Title)
	assert.Equal(t, "returns", got.Category)
	assert.Equal(t, []string{"refund", "policy"}, got.Tags)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	var result model.IngestResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 3, result.ChunkCount)
}

func TestUploadDocumentGeneralCategory(t *testing.T) {
	var got *model.DocumentUpload
	svc := &stubService{
		ingestFn: func(ctx context.Context, upload *model.DocumentUpload) (*model.IngestResult, error) {
			got = upload
			return &model.IngestResult{DocumentID: "doc-2", Filename: upload.Filename, ChunkCount: 1, UploadedAt: time.Now()}, nil
		},
	}
	engine := newTestEngine(t, svc)

	body, contentType := multipartUpload(t, map[string]string{
		"category": "general",
	}, "hours.txt", "Our support team is available Monday through Friday, 9am to 5pm.")

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, got)
	assert.Equal(t, "general", got.Category)
}

func TestUploadDocumentInvalidCategory(t *testing.T) {
	engine := newTestEngine(t, &stubService{})

	body, contentType := multipartUpload(t, map[string]string{
		"category": "gossip",
	}, "doc.txt", "text")

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, errors.ErrDocInvalidUpload.Code, env.Code)
}

func TestUploadDocumentUnsupportedExtension(t *testing.T) {
	engine := newTestEngine(t, &stubService{})

	body, contentType := multipartUpload(t, map[string]string{
		"category": "technical",
	}, "doc.pdf", "%PDF-1.4")

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, errors.ErrDocInvalidUpload.Code, env.Code)
	assert.Contains(t, env.Message, "unsupported file type")
}

func TestHealthz(t *testing.T) {
	engine := newTestEngine(t, &stubService{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestMetricsEndpoint(t *testing.T) {
	engine := newTestEngine(t, &stubService{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, w.Body.String(), "supportdesk_messages_total")
}
