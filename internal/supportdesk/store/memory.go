package store

import (
	"context"
	"sync"
	"time"

	"github.com/kart-io/supportdesk/internal/model"
)

// MemorySessionStore 基于内存的会话存储，进程重启后数据丢失。
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session
}

// NewMemorySessionStore creates an in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*model.Session),
	}
}

// Create 创建新会话。
func (s *MemorySessionStore) Create(_ context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = cloneSession(session)
	return nil
}

// Get 按 ID 获取会话。
func (s *MemorySessionStore) Get(_ context.Context, id string) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return cloneSession(session), nil
}

// Save 持久化会话。
func (s *MemorySessionStore) Save(_ context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; !ok {
		return ErrSessionNotFound
	}
	s.sessions[session.ID] = cloneSession(session)
	return nil
}

// Delete 删除会话。
func (s *MemorySessionStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok, nil
}

// ExpiredIDs 返回过期会话 ID。
func (s *MemorySessionStore) ExpiredIDs(_ context.Context, now time.Time, timeout time.Duration) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, session := range s.sessions {
		if session.Expired(now, timeout) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Count 返回会话数量。
func (s *MemorySessionStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.sessions)), nil
}

// Close 关闭存储。
func (s *MemorySessionStore) Close() error {
	return nil
}

// cloneSession copies a session so callers never share mutable state with the
// store's map.
func cloneSession(src *model.Session) *model.Session {
	dst := *src
	if src.Metadata != nil {
		dst.Metadata = make(map[string]string, len(src.Metadata))
		for k, v := range src.Metadata {
			dst.Metadata[k] = v
		}
	}
	dst.Messages = make([]model.Message, len(src.Messages))
	copy(dst.Messages, src.Messages)
	return &dst
}

var _ SessionStore = (*MemorySessionStore)(nil)
