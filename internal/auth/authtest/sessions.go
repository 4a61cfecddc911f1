// Package authtest — сессии в памяти для тестов.
package authtest

import (
	"context"
	"sync"
	"time"

	"wealthfund.in/platform/internal/auth"
	"wealthfund.in/platform/internal/common"
)

type session struct {
	subject int64
	expires time.Time
}

// Sessions реализует auth.SessionStore в памяти.
type Sessions struct {
	mu   sync.Mutex
	data map[string]session
	Now  common.Clock
}

func NewSessions() *Sessions {
	return &Sessions{data: make(map[string]session), Now: time.Now}
}

var _ auth.SessionStore = (*Sessions)(nil)

func (s *Sessions) Create(_ context.Context, tokenHash string, subjectID int64, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[tokenHash] = session{subject: subjectID, expires: expiresAt}
	return nil
}

func (s *Sessions) Lookup(_ context.Context, tokenHash string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.data[tokenHash]
	if !ok || !sess.expires.After(s.Now()) {
		return 0, common.ErrSessionExpired
	}
	return sess.subject, nil
}

func (s *Sessions) Delete(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, tokenHash)
	return nil
}

func (s *Sessions) DeleteAll(_ context.Context, subjectID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.data {
		if v.subject == subjectID {
			delete(s.data, k)
		}
	}
	return nil
}

func (s *Sessions) Purge(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, v := range s.data {
		if !v.expires.After(s.Now()) {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

// Len — сколько сессий сейчас хранится.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}
