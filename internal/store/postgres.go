// Package store adapts the registry's Loader/Persister interfaces and the
// session's Recorder interface onto real external collaborators: Postgres
// for durable snapshots and the operation log, Redis for a fast snapshot
// cache and cross-process pub/sub. Both adapters retry their initial
// connection with cenkalti/backoff rather than failing startup outright.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/sumanthd032/collabtext/internal/clock"
	"github.com/sumanthd032/collabtext/internal/document"
	"github.com/sumanthd032/collabtext/internal/session"
)

const recordQueueSize = 1024

// PostgresStore is the durable half of the session store: a snapshot table
// keyed by document_id and an append-only operation log keyed by
// (document_id, revision), both JSON-encoded through the same wire codec
// used by transport.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	ops    chan opRecord
	done   chan struct{}
}

type opRecord struct {
	documentID string
	entry      document.Entry
}

// NewPostgresStore connects to dsn and ensures its schema exists. The
// initial connection retries with exponential backoff since the database is
// often still starting when the server process is.
func NewPostgresStore(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var pool *pgxpool.Pool
	connect := func() error {
		p, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return err
		}
		pool = p
		return nil
	}
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(connect, b); err != nil {
		return nil, fmt.Errorf("store: connect to postgres: %w", err)
	}

	s := &PostgresStore{
		pool:   pool,
		logger: logger,
		ops:    make(chan opRecord, recordQueueSize),
		done:   make(chan struct{}),
	}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	go s.runRecorder()
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS document_snapshots (
	document_id  TEXT PRIMARY KEY,
	revision     BIGINT NOT NULL,
	content      TEXT NOT NULL,
	vector_clock JSONB NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS document_operations (
	document_id TEXT NOT NULL,
	revision    BIGINT NOT NULL,
	operation   JSONB NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (document_id, revision)
);`)
	return err
}

// Load implements registry.Loader.
func (s *PostgresStore) Load(ctx context.Context, documentID string) (uint64, string, clock.VectorClock, bool, error) {
	var revision uint64
	var content string
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT revision, content, vector_clock FROM document_snapshots WHERE document_id = $1`,
		documentID,
	).Scan(&revision, &content, &raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, "", nil, false, nil
		}
		return 0, "", nil, false, err
	}
	vc := clock.New()
	if err := json.Unmarshal(raw, &vc); err != nil {
		return 0, "", nil, false, fmt.Errorf("store: decode vector clock: %w", err)
	}
	return revision, content, vc, true, nil
}

// Persist implements registry.Persister.
func (s *PostgresStore) Persist(ctx context.Context, snap session.Snapshot) error {
	raw, err := json.Marshal(snap.Clock)
	if err != nil {
		return fmt.Errorf("store: encode vector clock: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO document_snapshots (document_id, revision, content, vector_clock, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (document_id) DO UPDATE SET
	revision = EXCLUDED.revision,
	content = EXCLUDED.content,
	vector_clock = EXCLUDED.vector_clock,
	updated_at = now()`,
		snap.DocumentID, snap.Revision, snap.Content, raw)
	return err
}

// Record implements session.Recorder. It must never block the session's
// serialization goroutine, so a full buffer drops the record with a logged
// warning instead of backing up.
func (s *PostgresStore) Record(documentID string, entry document.Entry) {
	select {
	case s.ops <- opRecord{documentID: documentID, entry: entry}:
	default:
		s.logger.Warn("operation log buffer full, dropping record",
			zap.String("document_id", documentID), zap.Uint64("revision", entry.Revision))
	}
}

func (s *PostgresStore) runRecorder() {
	for {
		select {
		case rec := <-s.ops:
			s.writeOp(rec)
		case <-s.done:
			return
		}
	}
}

func (s *PostgresStore) writeOp(rec opRecord) {
	raw, err := json.Marshal(rec.entry.Operation)
	if err != nil {
		s.logger.Error("encode operation for log", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = s.pool.Exec(ctx, `
INSERT INTO document_operations (document_id, revision, operation)
VALUES ($1, $2, $3)
ON CONFLICT (document_id, revision) DO NOTHING`,
		rec.documentID, rec.entry.Revision, raw)
	if err != nil {
		s.logger.Warn("failed to append operation log entry",
			zap.String("document_id", rec.documentID), zap.Error(err))
	}
}

// Close stops the background recorder and releases the connection pool.
func (s *PostgresStore) Close() {
	close(s.done)
	s.pool.Close()
}
