// Package session replaces a process-wide "current user" with explicit
// session values. Manager is the only place that notifies subscribers.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"ledger/internal/cache"
	"ledger/internal/core"
)

type Session struct {
	Token         string    `json:"token"`
	UserID        int64     `json:"user_id"`
	Email         string    `json:"email"`
	MonthlyIncome float64   `json:"monthly_income"`
	CreatedAt     time.Time `json:"created_at"`
}

type EventType string

const (
	EventLogin         EventType = "login"
	EventLogout        EventType = "logout"
	EventIncomeChanged EventType = "income_changed"
)

type Event struct {
	Type    EventType
	Session Session
}

// Manager keeps live sessions in a TTL-bounded LRU cache.
type Manager struct {
	sessions *cache.LRUCache[Session]
	now      func() time.Time
	logger   *slog.Logger

	mu     sync.RWMutex
	nextID int
	subs   map[int]func(Event)
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
		m.sessions.WithClock(now)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

func NewManager(capacity int, ttl time.Duration, opts ...Option) *Manager {
	m := &Manager{
		sessions: cache.NewLRUCache[Session](capacity, ttl),
		now:      time.Now,
		logger:   slog.Default(),
		subs:     make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Cache exposes the backing cache for periodic cleanup.
func (m *Manager) Cache() cache.Cleaner { return m.sessions }

// Create opens a session for u and notifies a login.
func (m *Manager) Create(u core.User) Session {
	s := Session{
		Token:         uuid.NewString(),
		UserID:        u.ID,
		Email:         u.Email,
		MonthlyIncome: u.MonthlyIncome,
		CreatedAt:     m.now(),
	}
	m.sessions.Set(s.Token, s)
	m.logger.Info("Session opened", "user_id", u.ID)
	m.notify(Event{Type: EventLogin, Session: s})
	return s
}

// Get returns the live session for token.
func (m *Manager) Get(token string) (Session, bool) {
	if token == "" {
		return Session{}, false
	}
	return m.sessions.Get(token)
}

// Destroy ends the session and notifies a logout. Unknown tokens report false.
func (m *Manager) Destroy(token string) bool {
	s, ok := m.sessions.Get(token)
	if !ok {
		return false
	}
	m.sessions.Delete(token)
	m.logger.Info("Session closed", "user_id", s.UserID)
	m.notify(Event{Type: EventLogout, Session: s})
	return true
}

// SetIncome refreshes the income carried by every session of the user.
func (m *Manager) SetIncome(userID int64, income float64) {
	tokens := m.sessions.Keys(func(_ string, s Session) bool { return s.UserID == userID })
	var changed []Session
	for _, token := range tokens {
		m.sessions.Update(token, func(s Session) Session {
			s.MonthlyIncome = income
			changed = append(changed, s)
			return s
		})
	}
	for _, s := range changed {
		m.notify(Event{Type: EventIncomeChanged, Session: s})
	}
}

// DropUser ends every session of the user without notifying.
func (m *Manager) DropUser(userID int64) int {
	return m.sessions.DeleteFunc(func(_ string, s Session) bool { return s.UserID == userID })
}

// Subscribe registers fn for every session event until the returned
// function is called. fn runs on the goroutine that caused the event.
func (m *Manager) Subscribe(fn func(Event)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

func (m *Manager) notify(ev Event) {
	m.mu.RLock()
	fns := make([]func(Event), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

type ctxKey struct{}

func NewContext(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok
}
