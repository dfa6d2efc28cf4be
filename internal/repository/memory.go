package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"englearn/internal/models"
)

type memoryState struct {
	users       map[string]models.User // by id
	emails      map[string]string      // email -> id
	preferences map[string]models.Preferences
}

func (s *memoryState) clone() *memoryState {
	out := &memoryState{
		users:       make(map[string]models.User, len(s.users)),
		emails:      make(map[string]string, len(s.emails)),
		preferences: make(map[string]models.Preferences, len(s.preferences)),
	}
	for id, u := range s.users {
		out.users[id] = u.Clone()
	}
	for email, id := range s.emails {
		out.emails[email] = id
	}
	for id, p := range s.preferences {
		out.preferences[id] = p
	}
	return out
}

// MemoryStore is a mutex-guarded Store for tests and local development.
// Transactions run against a private copy that replaces the shared state on
// success, and hold the write lock meanwhile.
type MemoryStore struct {
	mu    *sync.RWMutex
	state *memoryState
	inTx  bool
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mu: &sync.RWMutex{},
		state: &memoryState{
			users:       make(map[string]models.User),
			emails:      make(map[string]string),
			preferences: make(map[string]models.Preferences),
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) lock() func() {
	if m.inTx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *MemoryStore) rlock() func() {
	if m.inTx {
		return func() {}
	}
	m.mu.RLock()
	return m.mu.RUnlock
}

func (m *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if m.inTx {
		return fn(ctx, m)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &MemoryStore{mu: m.mu, state: m.state.clone(), inTx: true, now: m.now}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.state = tx.state
	return nil
}

func (m *MemoryStore) findUser(match func(models.User) bool) (models.User, error) {
	unlock := m.rlock()
	defer unlock()

	for _, u := range m.state.users {
		if match(u) {
			return u.Clone(), nil
		}
	}
	return models.User{}, ErrUserNotFound
}

func (m *MemoryStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	unlock := m.rlock()
	defer unlock()

	id, ok := m.state.emails[email]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return m.state.users[id].Clone(), nil
}

func (m *MemoryStore) FindByID(_ context.Context, id string) (models.User, error) {
	unlock := m.rlock()
	defer unlock()

	u, ok := m.state.users[id]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return u.Clone(), nil
}

func (m *MemoryStore) FindByResetToken(_ context.Context, token string) (models.User, error) {
	return m.findUser(func(u models.User) bool {
		return u.ResetPasswordToken != nil && *u.ResetPasswordToken == token
	})
}

func (m *MemoryStore) FindByVerificationToken(_ context.Context, token string) (models.User, error) {
	return m.findUser(func(u models.User) bool {
		return u.VerificationToken != nil && *u.VerificationToken == token
	})
}

func (m *MemoryStore) InsertUser(_ context.Context, user *models.User) error {
	unlock := m.lock()
	defer unlock()

	if _, exists := m.state.emails[user.Email]; exists {
		return ErrEmailTaken
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.LearningGoals == nil {
		user.LearningGoals = []string{}
	}
	now := m.now()
	user.CreatedAt = now
	user.UpdatedAt = now

	m.state.users[user.ID] = user.Clone()
	m.state.emails[user.Email] = user.ID
	return nil
}

func (m *MemoryStore) UpdateUser(_ context.Context, user *models.User) error {
	unlock := m.lock()
	defer unlock()

	existing, ok := m.state.users[user.ID]
	if !ok {
		return ErrUserNotFound
	}
	if existing.Email != user.Email {
		if _, taken := m.state.emails[user.Email]; taken {
			return ErrEmailTaken
		}
		delete(m.state.emails, existing.Email)
		m.state.emails[user.Email] = user.ID
	}

	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = m.now()
	m.state.users[user.ID] = user.Clone()
	return nil
}

func (m *MemoryStore) InsertPreferences(_ context.Context, prefs *models.Preferences) error {
	unlock := m.lock()
	defer unlock()

	if _, ok := m.state.users[prefs.UserID]; !ok {
		return ErrUserNotFound
	}
	if _, exists := m.state.preferences[prefs.UserID]; exists {
		return ErrPreferencesExist
	}
	if prefs.ID == "" {
		prefs.ID = uuid.NewString()
	}
	now := m.now()
	prefs.CreatedAt = now
	prefs.UpdatedAt = now
	m.state.preferences[prefs.UserID] = *prefs
	return nil
}

func (m *MemoryStore) FindPreferences(_ context.Context, userID string) (models.Preferences, error) {
	unlock := m.rlock()
	defer unlock()

	p, ok := m.state.preferences[userID]
	if !ok {
		return models.Preferences{}, ErrPreferencesNotFound
	}
	return p, nil
}

func (m *MemoryStore) UpdatePreferences(_ context.Context, prefs *models.Preferences) error {
	unlock := m.lock()
	defer unlock()

	existing, ok := m.state.preferences[prefs.UserID]
	if !ok {
		return ErrPreferencesNotFound
	}
	prefs.ID = existing.ID
	prefs.CreatedAt = existing.CreatedAt
	prefs.UpdatedAt = m.now()
	m.state.preferences[prefs.UserID] = *prefs
	return nil
}

func (m *MemoryStore) ClearExpiredResetTokens(_ context.Context, now time.Time) (int64, error) {
	unlock := m.lock()
	defer unlock()

	var cleared int64
	for id, u := range m.state.users {
		if u.ResetPasswordToken == nil || u.ResetPasswordExpiresAt == nil || u.ResetPasswordExpiresAt.After(now) {
			continue
		}
		u.ResetPasswordToken = nil
		u.ResetPasswordExpiresAt = nil
		u.UpdatedAt = m.now()
		m.state.users[id] = u
		cleared++
	}
	return cleared, nil
}
