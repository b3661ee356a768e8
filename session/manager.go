package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-chat/knowledge"
)

const CookieName = "ytchat_session"

// Manager keeps one Controller per browser session. Sessions idle for longer
// than the TTL are closed the next time the manager is used.
type Manager struct {
	fetcher VideoFetcher
	factory KnowledgeFactory
	ttl     time.Duration
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Controller
}

func NewManager(fetcher VideoFetcher, factory KnowledgeFactory, ttl time.Duration) *Manager {
	return &Manager{
		fetcher:  fetcher,
		factory:  factory,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Controller),
	}
}

// KnowledgeSessions adapts knowledge.NewSession to a KnowledgeFactory. Each
// call gets its own directory under baseDir.
func KnowledgeSessions(baseDir string, cfg knowledge.Config, engines knowledge.EngineFactory) KnowledgeFactory {
	return func(ctx context.Context, credential string) (KnowledgeBase, error) {
		s, err := knowledge.NewSession(ctx, credential, baseDir, cfg, engines)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Get returns the live controller for id, or false if it is unknown or expired.
func (m *Manager) Get(id string) (*Controller, bool) {
	m.expire()

	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.sessions[id]
	if ok {
		// touched under m.mu so expire cannot close it between lookup and use
		c.touch()
	}
	return c, ok
}

func (m *Manager) Create() (string, *Controller) {
	m.expire()

	id := uuid.NewString()
	c := NewController(id, m.fetcher, m.factory)

	m.mu.Lock()
	m.sessions[id] = c
	m.mu.Unlock()

	logrus.WithField("session_id", id).Debug("Session created")
	return id, c
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Controller)
	m.mu.Unlock()

	for id, c := range sessions {
		closeSession(id, c)
	}
}

func (m *Manager) expire() {
	if m.ttl <= 0 {
		return
	}
	cutoff := m.now().Add(-m.ttl)

	m.mu.Lock()
	var expired map[string]*Controller
	for id, c := range m.sessions {
		if c.idleSince().Before(cutoff) {
			if expired == nil {
				expired = make(map[string]*Controller)
			}
			expired[id] = c
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for id, c := range expired {
		logrus.WithField("session_id", id).Info("Session expired")
		closeSession(id, c)
	}
}

func closeSession(id string, c *Controller) {
	if err := c.Close(); err != nil {
		logrus.WithError(err).WithField("session_id", id).Warn("Error closing session")
	}
}
