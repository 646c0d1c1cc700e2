// Package ledger — manager.go хранит сессии авторизованных пользователей.
package ledger

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/heartpoints/internal/common"
	"serotonyl.ru/heartpoints/internal/features/streak"
)

// Manager — реестр сессий ledger. Сессия живёт от входа до выхода
// пользователя; глобального состояния нет.
type Manager struct {
	store StatStore
	board ScorePublisher
	clock common.Clock
	rules streak.Rules

	mu       sync.Mutex
	sessions map[int64]*Session
}

// NewManager создаёт реестр сессий.
func NewManager(store StatStore, board ScorePublisher, clock common.Clock, rules streak.Rules) *Manager {
	return &Manager{
		store:    store,
		board:    board,
		clock:    clock,
		rules:    rules,
		sessions: make(map[int64]*Session),
	}
}

// Rules возвращает правила начисления.
func (m *Manager) Rules() streak.Rules { return m.rules }

// SignIn открывает сессию пользователя и загружает его статистику.
// Повторный вход возвращает уже открытую сессию.
func (m *Manager) SignIn(ctx context.Context, userID int64) (*Session, error) {
	m.mu.Lock()
	if s, ok := m.sessions[userID]; ok {
		m.mu.Unlock()
		return s, nil
	}
	s := newSession(userID, m.store, m.board, m.clock, m.rules)
	m.sessions[userID] = s
	m.mu.Unlock()

	if err := s.Load(ctx); err != nil {
		m.remove(userID, s)
		s.close()
		return nil, err
	}

	log.WithField("user_id", userID).Info("Сессия ledger открыта")
	return s, nil
}

// SignOut закрывает сессию и обнуляет её состояние.
func (m *Manager) SignOut(userID int64) {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()

	if !ok {
		return
	}
	s.close()
	log.WithField("user_id", userID).Info("Сессия ledger закрыта")
}

// Acquire возвращает открытую сессию или открывает новую.
func (m *Manager) Acquire(ctx context.Context, userID int64) (*Session, error) {
	if s, ok := m.Session(userID); ok {
		return s, nil
	}
	return m.SignIn(ctx, userID)
}

// Session возвращает открытую сессию, если она есть.
func (m *Manager) Session(userID int64) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	return s, ok
}

// Reload перечитывает статистику открытой сессии.
// Если сессии нет — ничего не делает.
func (m *Manager) Reload(ctx context.Context, userID int64) error {
	s, ok := m.Session(userID)
	if !ok {
		return nil
	}
	return s.Refresh(ctx)
}

// Count возвращает число открытых сессий.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) remove(userID int64, s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[userID] == s {
		delete(m.sessions, userID)
	}
}
