package repository

import (
	"context"
	"sync"
	"time"

	"grapevpn/keyhub/internal/model"
)

type memSession struct {
	session   model.AdminSession
	expiresAt time.Time
}

func (e memSession) isExpired() bool {
	return !e.expiresAt.IsZero() && time.Now().After(e.expiresAt)
}

type memorySessionStore struct {
	mu       sync.RWMutex
	sessions map[int64]memSession
}

func NewMemorySessionStore() AdminSessionStore {
	return &memorySessionStore{
		sessions: make(map[int64]memSession),
	}
}

func (s *memorySessionStore) Save(_ context.Context, session *model.AdminSession, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := memSession{session: *session}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	s.sessions[session.AdminID] = entry
	return nil
}

func (s *memorySessionStore) Load(_ context.Context, adminID int64) (*model.AdminSession, error) {
	s.mu.RLock()
	entry, ok := s.sessions[adminID]
	s.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	if entry.isExpired() {
		s.mu.Lock()
		delete(s.sessions, adminID)
		s.mu.Unlock()
		return nil, nil
	}
	session := entry.session
	return &session, nil
}

func (s *memorySessionStore) Take(_ context.Context, adminID int64) (*model.AdminSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[adminID]
	if !ok {
		return nil, nil
	}
	delete(s.sessions, adminID)
	if entry.isExpired() {
		return nil, nil
	}
	session := entry.session
	return &session, nil
}

func (s *memorySessionStore) Clear(_ context.Context, adminID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, adminID)
	return nil
}
