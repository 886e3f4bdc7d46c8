// Package devserver implements the backend wire contract in-memory so
// the client can run and be tested without the production API. Replies
// are canned; no AI, report, or account logic lives here.
package devserver

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agrigpt/chatclient/internal/model/chat"
)

var ErrSessionNotFound = errors.New("chat not found")

// StoredMessage is one persisted turn.
type StoredMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Service holds conversation state in memory.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]chat.Session
	messages map[string][]StoredMessage
}

// NewService bootstraps the in-memory session service.
func NewService() *Service {
	return &Service{
		sessions: make(map[string]chat.Session),
		messages: make(map[string][]StoredMessage),
	}
}

// CreateSession provisions a session titled after the first message.
func (s *Service) CreateSession(_ context.Context, firstMessage, language string) chat.Session {
	now := time.Now().UTC()
	session := chat.Session{
		ID:        uuid.NewString(),
		Title:     sessionTitle(firstMessage),
		Language:  language,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.messages[session.ID] = make([]StoredMessage, 0, 16)
	s.mu.Unlock()

	return session
}

// AppendMessage appends a turn to the session history.
func (s *Service) AppendMessage(_ context.Context, sessionID, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}

	s.messages[sessionID] = append(s.messages[sessionID], StoredMessage{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
	session.UpdatedAt = time.Now().UTC()
	s.sessions[sessionID] = session
	return nil
}

// ListSessions returns all session summaries, newest first.
func (s *Service) ListSessions(_ context.Context) []chat.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]chat.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}

	for i := 1; i < len(sessions); i++ {
		for j := i; j > 0 && sessions[j].UpdatedAt.After(sessions[j-1].UpdatedAt); j-- {
			sessions[j], sessions[j-1] = sessions[j-1], sessions[j]
		}
	}
	return sessions
}

// History returns the stored messages for a session.
func (s *Service) History(_ context.Context, sessionID string) ([]StoredMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages, ok := s.messages[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	copied := make([]StoredMessage, len(messages))
	copy(copied, messages)
	return copied, nil
}

// DeleteSession removes a session and its history.
func (s *Service) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	delete(s.messages, sessionID)
	return nil
}

// sessionTitle derives a short title from the first message.
func sessionTitle(message string) string {
	title := strings.TrimSpace(message)
	if title == "" {
		return "New chat"
	}
	const maxTitle = 40
	runes := []rune(title)
	if len(runes) > maxTitle {
		title = string(runes[:maxTitle]) + "…"
	}
	return title
}
