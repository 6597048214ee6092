package biz

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/supportdesk/internal/model"
	"github.com/kart-io/supportdesk/internal/supportdesk/store"
	"github.com/kart-io/supportdesk/pkg/utils/errors"
)

type sessionFixture struct {
	manager  *SessionManager
	store    store.SessionStore
	chat     *fakeChat
	embedder *fakeEmbedder
	vectors  *fakeVectorStore
	config   *SessionConfig
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()

	chat := &fakeChat{
		chatReply:     `{"category": "billing", "confidence": 0.9}`,
		generateReply: "Your invoice is available in the billing portal.",
	}
	embedder := newFakeEmbedder()
	vectors := &fakeVectorStore{results: []*store.SearchResult{
		searchResult(0, "billing", 0.9),
		searchResult(1, "billing", 0.8),
	}}
	sessionStore := store.NewMemorySessionStore()
	config := testSessionConfig()

	retriever := NewRetriever(vectors, embedder, testRetrieverConfig())
	generator := NewGenerator(chat, testGeneratorConfig())
	classifier := NewIntentClassifier(chat)
	cache := NewAnswerCache(nil, nil)

	return &sessionFixture{
		manager:  NewSessionManager(sessionStore, classifier, retriever, generator, cache, nil, config),
		store:    sessionStore,
		chat:     chat,
		embedder: embedder,
		vectors:  vectors,
		config:   config,
	}
}

func TestCreateSessionWelcomeMessage(t *testing.T) {
	f := newSessionFixture(t)

	session, err := f.manager.CreateSession(context.Background(), "user-1", map[string]string{"channel": "web"})
	require.NoError(t, err)

	assert.NotEmpty(t, session.ID)
	assert.Equal(t, f.config.WelcomeMessage, session.Welcome)
	assert.Empty(t, session.Messages)

	// The welcome string lives in the creation response only.
	fetched, err := f.manager.GetSession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Empty(t, fetched.Welcome)
	assert.Empty(t, fetched.Messages)
}

func TestProcessMessagePipeline(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	session, err := f.manager.CreateSession(ctx, "user-1", nil)
	require.NoError(t, err)

	resp, err := f.manager.ProcessMessage(ctx, session.ID, "Where can I find my invoice?")
	require.NoError(t, err)

	assert.Equal(t, session.ID, resp.SessionID)
	assert.Equal(t, "Your invoice is available in the billing portal.", resp.Answer)
	assert.Equal(t, model.IntentBilling, resp.Intent.Category)

	// Intent category drives the retrieval filter.
	require.NotNil(t, f.vectors.lastFilter)
	assert.Equal(t, "billing", f.vectors.lastFilter.Category)

	// confidence = 0.7*mean(0.9,0.8) + 0.3*0.9
	assert.InDelta(t, 0.7*0.85+0.3*0.9, resp.Confidence, 1e-9)
	require.Len(t, resp.Sources, 2)

	// Both turns are persisted.
	saved, err := f.manager.GetSession(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, saved.Messages, 2)
	assert.Equal(t, model.RoleUser, saved.Messages[0].Role)
	assert.Equal(t, model.RoleAssistant, saved.Messages[1].Role)
	require.NotNil(t, saved.Messages[1].Confidence)
	assert.InDelta(t, resp.Confidence, *saved.Messages[1].Confidence, 1e-9)
	assert.Len(t, saved.Messages[1].Sources, 2)
	assert.False(t, saved.LastActivity.Before(session.LastActivity))
}

func TestProcessMessageGeneralIntentUnfiltered(t *testing.T) {
	f := newSessionFixture(t)
	f.chat.chatReply = `{"category": "general", "confidence": 0.8}`
	ctx := context.Background()

	session, err := f.manager.CreateSession(ctx, "user-1", nil)
	require.NoError(t, err)

	_, err = f.manager.ProcessMessage(ctx, session.ID, "hello there")
	require.NoError(t, err)

	assert.Nil(t, f.vectors.lastFilter)
}

func TestProcessMessageNoChunksConfidenceFloor(t *testing.T) {
	f := newSessionFixture(t)
	f.vectors.results = nil
	f.chat.chatReply = `{"category": "general", "confidence": 0.9}`
	ctx := context.Background()

	session, err := f.manager.CreateSession(ctx, "user-1", nil)
	require.NoError(t, err)

	resp, err := f.manager.ProcessMessage(ctx, session.ID, "obscure question")
	require.NoError(t, err)

	// Intent confidence is ignored when retrieval comes back empty.
	assert.InDelta(t, f.config.MinConfidence, resp.Confidence, 1e-9)
	assert.Empty(t, resp.Sources)
}

func TestProcessMessageConfidenceClamped(t *testing.T) {
	f := newSessionFixture(t)
	f.vectors.results = []*store.SearchResult{searchResult(0, "billing", 1.0)}
	ctx := context.Background()

	session, err := f.manager.CreateSession(ctx, "user-1", nil)
	require.NoError(t, err)

	f.chat.chatReply = `{"category": "billing", "confidence": 1.0}`
	resp, err := f.manager.ProcessMessage(ctx, session.ID, "invoice")
	require.NoError(t, err)

	assert.LessOrEqual(t, resp.Confidence, 1.0)
}

func TestProcessMessageEmptyContent(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	session, err := f.manager.CreateSession(ctx, "user-1", nil)
	require.NoError(t, err)

	_, err = f.manager.ProcessMessage(ctx, session.ID, "   \n ")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrChatEmptyMessage.Code))
}

func TestProcessMessageUnknownSession(t *testing.T) {
	f := newSessionFixture(t)

	_, err := f.manager.ProcessMessage(context.Background(), "missing", "hello")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrChatSessionNotFound.Code))
}

func TestGetSessionLazyExpiry(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	session, err := f.manager.CreateSession(ctx, "user-1", nil)
	require.NoError(t, err)

	// Backdate activity past the timeout.
	stored, err := f.store.Get(ctx, session.ID)
	require.NoError(t, err)
	stored.LastActivity = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, f.store.Save(ctx, stored))

	_, err = f.manager.GetSession(ctx, session.ID)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrChatSessionNotFound.Code))

	// The expired session was removed from the store.
	_, err = f.store.Get(ctx, session.ID)
	assert.ErrorIs(t, err, store.ErrSessionNotFound)
}

func TestProcessMessageHistoryCap(t *testing.T) {
	f := newSessionFixture(t)
	f.config.MaxHistory = 6
	ctx := context.Background()

	session, err := f.manager.CreateSession(ctx, "user-1", nil)
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		_, err := f.manager.ProcessMessage(ctx, session.ID, fmt.Sprintf("question %d", i))
		require.NoError(t, err)
	}

	saved, err := f.manager.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, saved.Messages, 6)

	// The oldest turns are trimmed, the newest survive.
	last := saved.Messages[len(saved.Messages)-1]
	assert.Equal(t, model.RoleAssistant, last.Role)
	assert.Equal(t, "question 3", saved.Messages[0].Content)
}

func TestEndSession(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	session, err := f.manager.CreateSession(ctx, "user-1", nil)
	require.NoError(t, err)

	existed, err := f.manager.EndSession(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, existed)

	// Ending marks the session inactive but keeps the record.
	stored, err := f.store.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)
	require.NotNil(t, stored.EndedAt)

	// Ending again is a no-op.
	existed, err = f.manager.EndSession(ctx, session.ID)
	require.NoError(t, err)
	assert.False(t, existed)

	// No new messages on an ended session.
	_, err = f.manager.ProcessMessage(ctx, session.ID, "one more thing")
	assert.True(t, errors.IsCode(err, errors.ErrChatSessionEnded.Code))

	// The transcript stays exportable after the session ends.
	export, err := f.manager.Export(ctx, session.ID)
	require.NoError(t, err)
	assert.False(t, export.Active)
	require.NotNil(t, export.EndedAt)
}

func TestExportSession(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	session, err := f.manager.CreateSession(ctx, "user-1", map[string]string{"channel": "web"})
	require.NoError(t, err)

	_, err = f.manager.ProcessMessage(ctx, session.ID, "invoice question")
	require.NoError(t, err)

	export, err := f.manager.Export(ctx, session.ID)
	require.NoError(t, err)

	assert.Equal(t, session.ID, export.SessionID)
	assert.Equal(t, "user-1", export.UserID)
	assert.Equal(t, "web", export.Metadata["channel"])
	assert.Len(t, export.Messages, 2)
}

func TestEndSessionExpired(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	session, err := f.manager.CreateSession(ctx, "user-1", nil)
	require.NoError(t, err)

	stored, err := f.store.Get(ctx, session.ID)
	require.NoError(t, err)
	stored.LastActivity = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, f.store.Save(ctx, stored))

	existed, err := f.manager.EndSession(ctx, session.ID)
	require.NoError(t, err)
	assert.False(t, existed)

	// The expired session was reaped on the way out.
	_, err = f.store.Get(ctx, session.ID)
	assert.ErrorIs(t, err, store.ErrSessionNotFound)
}

func TestSweepExpired(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	fresh, err := f.manager.CreateSession(ctx, "user-1", nil)
	require.NoError(t, err)

	stale, err := f.manager.CreateSession(ctx, "user-2", nil)
	require.NoError(t, err)
	stored, err := f.store.Get(ctx, stale.ID)
	require.NoError(t, err)
	stored.LastActivity = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, f.store.Save(ctx, stored))

	removed := f.manager.SweepExpired(ctx)
	assert.Equal(t, 1, removed)

	_, err = f.manager.GetSession(ctx, fresh.ID)
	assert.NoError(t, err)
	_, err = f.manager.GetSession(ctx, stale.ID)
	assert.Error(t, err)
}
