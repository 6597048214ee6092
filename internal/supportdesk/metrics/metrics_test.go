package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordMessage(t *testing.T) {
	m := New()

	m.RecordMessage(100*time.Millisecond, nil)
	m.RecordMessage(200*time.Millisecond, nil)
	m.RecordMessage(0, errors.New("boom"))

	stats := m.Stats()
	messages := stats["messages"].(map[string]any)
	assert.Equal(t, uint64(3), messages["total"])
	assert.Equal(t, uint64(1), messages["errors"])
	assert.InDelta(t, 0.3, messages["duration_seconds"].(float64), 1e-6)
}

func TestRecordIntent(t *testing.T) {
	m := New()

	m.RecordIntent("billing", false)
	m.RecordIntent("billing", false)
	m.RecordIntent("general", true)

	stats := m.Stats()
	intents := stats["intents"].(map[string]uint64)
	assert.Equal(t, uint64(2), intents["billing"])
	assert.Equal(t, uint64(1), intents["general"])
}

func TestRecordRetrieval(t *testing.T) {
	m := New()

	m.RecordRetrieval(3, nil)
	m.RecordRetrieval(0, nil)
	m.RecordRetrieval(0, errors.New("search failed"))

	stats := m.Stats()
	retrieval := stats["retrieval"].(map[string]any)
	assert.Equal(t, uint64(3), retrieval["total"])
	assert.Equal(t, uint64(1), retrieval["empty"])
	assert.Equal(t, uint64(1), retrieval["errors"])
}

func TestRecordIngest(t *testing.T) {
	m := New()

	m.RecordIngest(5, nil)
	m.RecordIngest(3, nil)
	m.RecordIngest(0, errors.New("extract failed"))

	stats := m.Stats()
	ingest := stats["ingest"].(map[string]any)
	assert.Equal(t, uint64(2), ingest["documents"])
	assert.Equal(t, uint64(8), ingest["chunks"])
	assert.Equal(t, uint64(1), ingest["errors"])
}

func TestRecordSessions(t *testing.T) {
	m := New()

	m.RecordSessionCreated()
	m.RecordSessionCreated()
	m.RecordSessionEnded()
	m.RecordSessionsSwept(3)
	m.RecordSessionsSwept(0)

	stats := m.Stats()
	sessions := stats["sessions"].(map[string]any)
	assert.Equal(t, uint64(2), sessions["created"])
	assert.Equal(t, uint64(1), sessions["ended"])
	assert.Equal(t, uint64(3), sessions["swept"])
}

func TestExport(t *testing.T) {
	m := New()
	m.RecordMessage(50*time.Millisecond, nil)
	m.RecordAnswerCache(true)
	m.RecordAnswerCache(false)
	m.RecordIntent("technical", false)
	m.RecordIntent("billing", false)

	out := m.Export("supportdesk")

	require.Contains(t, out, "# TYPE supportdesk_messages_total counter")
	assert.Contains(t, out, "supportdesk_messages_total 1")
	assert.Contains(t, out, "supportdesk_answer_cache_hits_total 1")
	assert.Contains(t, out, "supportdesk_answer_cache_misses_total 1")
	assert.Contains(t, out, `supportdesk_intents_total{category="billing"} 1`)
	assert.Contains(t, out, `supportdesk_intents_total{category="technical"} 1`)
	assert.Contains(t, out, "supportdesk_sessions_created_total 0")
}

func TestGetReturnsSingleton(t *testing.T) {
	assert.Same(t, Get(), Get())
}
