// Package session persists per-domain challenge-pass artifacts.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/lotview/inventory-crawler/internal/scrape"
)

// Options control session validity.
type Options struct {
	// TTL bounds how long an earned session stays usable.
	TTL time.Duration
	// AuthorityCookie is the cookie name that proves the challenge pass.
	// A session missing it is invalid regardless of age.
	AuthorityCookie string
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = 24 * time.Hour
	}
	if o.AuthorityCookie == "" {
		o.AuthorityCookie = "cf_clearance"
	}
	return o
}

// Valid reports whether the session satisfies the options at the instant.
func Valid(s scrape.Session, opts Options, now time.Time) bool {
	opts = opts.withDefaults()
	if s.Expired(now) {
		return false
	}
	for _, c := range s.Cookies {
		if c.Name == opts.AuthorityCookie {
			return true
		}
	}
	return false
}

type entry struct {
	mu      sync.RWMutex
	session scrape.Session
	set     bool
}

// MemoryStore keeps sessions in process memory with one lock per domain.
type MemoryStore struct {
	mu      sync.Mutex
	domains map[string]*entry
	opts    Options
	clock   scrape.Clock
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore(opts Options, clock scrape.Clock) *MemoryStore {
	return &MemoryStore{
		domains: make(map[string]*entry),
		opts:    opts.withDefaults(),
		clock:   clock,
	}
}

func (s *MemoryStore) entryFor(domain string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.domains[domain]
	if !ok {
		e = &entry{}
		s.domains[domain] = e
	}
	return e
}

// Get returns the valid session for a domain. An expired or incomplete
// session is invalidated on read.
func (s *MemoryStore) Get(_ context.Context, domain string) (scrape.Session, error) {
	e := s.entryFor(domain)
	e.mu.RLock()
	sess, set := e.session, e.set
	e.mu.RUnlock()

	if !set {
		return scrape.Session{}, scrape.ErrNotFound
	}
	if !Valid(sess, s.opts, s.clock.Now()) {
		e.mu.Lock()
		e.set = false
		e.session = scrape.Session{}
		e.mu.Unlock()
		return scrape.Session{}, scrape.ErrSessionExpired
	}
	return sess, nil
}

// Put stores a session for its domain, stamping the expiry from the TTL
// when the caller left it zero.
func (s *MemoryStore) Put(_ context.Context, session scrape.Session) error {
	if session.ExpiresAt.IsZero() {
		session.ExpiresAt = session.EarnedAt.Add(s.opts.TTL)
	}
	e := s.entryFor(session.Domain)
	e.mu.Lock()
	e.session = session
	e.set = true
	e.mu.Unlock()
	return nil
}

// Delete removes the session for a domain.
func (s *MemoryStore) Delete(_ context.Context, domain string) error {
	e := s.entryFor(domain)
	e.mu.Lock()
	e.set = false
	e.session = scrape.Session{}
	e.mu.Unlock()
	return nil
}
