package conversation

import (
	"strings"
	"sync"
	"time"

	"book-sms-agent/internal/domain"
)

const DefaultTTL = 30 * time.Minute

type Option func(*Store)

// WithClock overrides the wall clock used for expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store keeps one ConversationContext per sender in memory. Entries expire
// TTL after their last update and are evicted when read past expiry.
type Store struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	contexts map[string]domain.ConversationContext

	locksMu sync.Mutex
	locks   map[string]*senderLock
}

type senderLock struct {
	mu   sync.Mutex
	refs int
}

func NewStore(ttl time.Duration, opts ...Option) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Store{
		ttl:      ttl,
		now:      time.Now,
		contexts: make(map[string]domain.ConversationContext),
		locks:    make(map[string]*senderLock),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) TTL() time.Duration { return s.ttl }

// Get returns a copy of the sender's context. An expired context is removed
// and reported as absent.
func (s *Store) Get(senderID string) (domain.ConversationContext, bool) {
	key := normalizeKey(senderID)
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contexts[key]
	if !ok {
		return domain.ConversationContext{}, false
	}
	if s.now().After(c.ExpiresAt) {
		delete(s.contexts, key)
		return domain.ConversationContext{}, false
	}
	return c.Clone(), true
}

// Update merges u into the sender's context, creating it when absent or
// expired, and restarts its TTL.
func (s *Store) Update(senderID string, u domain.ContextUpdate) domain.ConversationContext {
	key := normalizeKey(senderID)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contexts[key]
	if ok && now.After(c.ExpiresAt) {
		c = domain.ConversationContext{}
	}
	u.Apply(&c)
	c.Timestamp = now
	c.ExpiresAt = now.Add(s.ttl)
	s.contexts[key] = c
	return c.Clone()
}

func (s *Store) Clear(senderID string) {
	key := normalizeKey(senderID)
	s.mu.Lock()
	delete(s.contexts, key)
	s.mu.Unlock()
}

// Len counts stored contexts, expired ones included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.contexts)
}

// Lock serialises turns for one sender. The returned func releases the lock
// and must be called exactly once.
func (s *Store) Lock(senderID string) func() {
	key := normalizeKey(senderID)

	s.locksMu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &senderLock{}
		s.locks[key] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()
			s.locksMu.Lock()
			l.refs--
			if l.refs == 0 {
				delete(s.locks, key)
			}
			s.locksMu.Unlock()
		})
	}
}

func normalizeKey(senderID string) string {
	return strings.TrimSpace(senderID)
}
