package session

import (
	"errors"
	"sync"
	"time"

	appaddress "github.com/nileshop/checkout/internal/application/address"
	appcart "github.com/nileshop/checkout/internal/application/cart"
	appcheckout "github.com/nileshop/checkout/internal/application/checkout"
	"github.com/nileshop/checkout/internal/observability"
)

var ErrNotFound = errors.New("session: not found")

// Session is the explicit per-customer state that used to live in globals:
// the auth token, the cart, the checkout gate, the address selection, and the
// orchestrator bound to them. It is created on login and dropped on logout.
type Session struct {
	Token        string
	Cart         *appcart.Coordinator
	Gate         *appcheckout.Gate
	Addresses    *appaddress.Selector
	Orchestrator *appcheckout.Orchestrator
	StartedAt    time.Time
}

// Factory builds a fully wired session for a token. The cart mutation hook
// must already be connected to the gate's invalidation.
type Factory func(token string) *Session

// Manager owns the live sessions. Unlike the per-session state it is shared
// across requests and therefore locked.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	factory  Factory
	log      observability.Logger
}

func NewManager(factory Factory, logger observability.Logger) *Manager {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Manager{
		sessions: make(map[string]*Session),
		factory:  factory,
		log:      logger.With(observability.F("component", "session_manager")),
	}
}

// Begin creates the session for a token, or returns the existing one. This is
// the login boundary.
func (m *Manager) Begin(token string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[token]; ok {
		return s
	}
	s := m.factory(token)
	s.StartedAt = time.Now().UTC()
	m.sessions[token] = s
	m.log.Info("session_started")
	return s
}

// Get returns the live session for a token.
func (m *Manager) Get(token string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[token]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// End drops the session. This is the logout boundary; all in-flight cart and
// checkout state goes with it.
func (m *Manager) End(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[token]; ok {
		delete(m.sessions, token)
		m.log.Info("session_ended")
	}
}
