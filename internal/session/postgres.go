package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lotview/inventory-crawler/internal/scrape"
)

// Querier is the pgx surface the store needs; *pgxpool.Pool and pgxmock
// both satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists sessions in Postgres so earned challenge passes
// survive process restarts.
type PostgresStore struct {
	pool  Querier
	opts  Options
	clock scrape.Clock
}

// NewPostgresStore creates a PostgresStore over an existing pool.
func NewPostgresStore(pool Querier, opts Options, clock scrape.Clock) *PostgresStore {
	return &PostgresStore{pool: pool, opts: opts.withDefaults(), clock: clock}
}

// Get returns the valid session for a domain, deleting it when expired.
func (s *PostgresStore) Get(ctx context.Context, domain string) (scrape.Session, error) {
	query := `
		SELECT domain, cookies, earned_at, expires_at
		FROM scrape_sessions
		WHERE domain = $1;
	`
	var sess scrape.Session
	var cookiesJSON []byte
	err := s.pool.QueryRow(ctx, query, domain).Scan(
		&sess.Domain,
		&cookiesJSON,
		&sess.EarnedAt,
		&sess.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return scrape.Session{}, scrape.ErrNotFound
		}
		return scrape.Session{}, fmt.Errorf("get session: %w", err)
	}
	if err := json.Unmarshal(cookiesJSON, &sess.Cookies); err != nil {
		return scrape.Session{}, fmt.Errorf("decode cookies: %w", err)
	}
	if sess.Cookies == nil {
		sess.Cookies = []*http.Cookie{}
	}
	if !Valid(sess, s.opts, s.clock.Now()) {
		if delErr := s.Delete(ctx, domain); delErr != nil {
			return scrape.Session{}, fmt.Errorf("invalidate session: %w", delErr)
		}
		return scrape.Session{}, scrape.ErrSessionExpired
	}
	return sess, nil
}

// Put inserts or replaces the session for its domain.
func (s *PostgresStore) Put(ctx context.Context, session scrape.Session) error {
	if session.ExpiresAt.IsZero() {
		session.ExpiresAt = session.EarnedAt.Add(s.opts.TTL)
	}
	cookiesJSON, err := json.Marshal(session.Cookies)
	if err != nil {
		return fmt.Errorf("encode cookies: %w", err)
	}
	query := `
		INSERT INTO scrape_sessions (domain, cookies, earned_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (domain) DO UPDATE
		SET cookies = EXCLUDED.cookies,
			earned_at = EXCLUDED.earned_at,
			expires_at = EXCLUDED.expires_at;
	`
	if _, err := s.pool.Exec(ctx, query, session.Domain, cookiesJSON, session.EarnedAt, session.ExpiresAt); err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// Delete removes the session for a domain.
func (s *PostgresStore) Delete(ctx context.Context, domain string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM scrape_sessions WHERE domain = $1;`, domain); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
