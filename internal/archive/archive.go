// Package archive persists final captions to PostgreSQL so a captioning
// session can be read back after the fact.
//
// Each process run is one session identified by a random UUID. Captions are
// numbered in the order they were finalised.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/livecaptions/internal/segment"
)

// Schema is the SQL DDL for the caption_entries table. Execute it via
// [Store.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS caption_entries (
    id          UUID         PRIMARY KEY,
    session_id  UUID         NOT NULL,
    seq         BIGINT       NOT NULL,
    text        TEXT         NOT NULL,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    UNIQUE (session_id, seq)
);
CREATE INDEX IF NOT EXISTS idx_caption_entries_created_at ON caption_entries (created_at);
`

// DB is the database interface used by [Store]. Both *pgxpool.Pool and
// *pgx.Conn satisfy it.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Entry is one archived caption.
type Entry struct {
	ID        uuid.UUID
	SessionID uuid.UUID
	Seq       int64
	Text      string
	CreatedAt time.Time
}

// Option is a functional option for configuring a [Store].
type Option func(*Store)

// WithSessionID fixes the session ID instead of generating one.
func WithSessionID(id uuid.UUID) Option {
	return func(s *Store) { s.session = id }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithClock overrides time.Now for created_at values.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store writes final captions of one session. It implements [segment.Sink]
// and is safe for concurrent use.
type Store struct {
	db      DB
	session uuid.UUID
	seq     atomic.Int64
	now     func() time.Time
	log     *slog.Logger
}

var _ segment.Sink = (*Store)(nil)

// New returns a [Store] on db. The caller is responsible for calling
// [Store.Migrate] before the first write.
func New(db DB, opts ...Option) *Store {
	s := &Store{db: db, session: uuid.New(), now: time.Now, log: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Connect opens a pool for dsn, checks the connection and runs [Store.Migrate].
// The returned pool must be closed by the caller after the store is done.
func Connect(ctx context.Context, dsn string, opts ...Option) (*Store, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("archive: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("archive: ping: %w", err)
	}
	s := New(pool, opts...)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool, nil
}

// Migrate executes [Schema].
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("archive: migrate: %w", err)
	}
	return nil
}

// SessionID returns the ID captions of this store are written under.
func (s *Store) SessionID() uuid.UUID { return s.session }

// Append stores text as the next caption of the session.
func (s *Store) Append(ctx context.Context, text string) (Entry, error) {
	const q = `
		INSERT INTO caption_entries (id, session_id, seq, text, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	e := Entry{
		ID:        uuid.New(),
		SessionID: s.session,
		Seq:       s.seq.Add(1),
		Text:      text,
		CreatedAt: s.now().UTC(),
	}
	if _, err := s.db.Exec(ctx, q, e.ID, e.SessionID, e.Seq, e.Text, e.CreatedAt); err != nil {
		return Entry{}, fmt.Errorf("archive: append: %w", err)
	}
	return e, nil
}

// OnFinalCaption implements [segment.Sink]. The caption is stored exactly as
// displayed; captions whose trimmed text is a single character or empty are
// skipped.
func (s *Store) OnFinalCaption(ctx context.Context, text string) error {
	if len(strings.TrimSpace(text)) <= 1 {
		return nil
	}
	e, err := s.Append(ctx, text)
	if err != nil {
		return err
	}
	s.log.Debug("caption archived", "session", e.SessionID, "seq", e.Seq)
	return nil
}

// OnInterimCaption implements [segment.Sink]. Interim captions are not stored.
func (s *Store) OnInterimCaption(context.Context, string) error { return nil }

// Session returns every caption of session id in order.
func (s *Store) Session(ctx context.Context, id uuid.UUID) ([]Entry, error) {
	const q = `
		SELECT id::text, seq, text, created_at
		FROM   caption_entries
		WHERE  session_id = $1
		ORDER  BY seq`

	rows, err := s.db.Query(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("archive: session: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var (
			e   Entry
			raw string
		)
		if err := row.Scan(&raw, &e.Seq, &e.Text, &e.CreatedAt); err != nil {
			return Entry{}, err
		}
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return Entry{}, fmt.Errorf("parse id %q: %w", raw, err)
		}
		e.ID = parsed
		e.SessionID = id
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("archive: scan rows: %w", err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}
