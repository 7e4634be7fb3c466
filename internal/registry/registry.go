// Package registry lazily creates and looks up per-document Sessions,
// collapsing concurrent first-joiners of the same document into a single
// singleflight-guarded load-or-create.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sumanthd032/collabtext/internal/clock"
	"github.com/sumanthd032/collabtext/internal/document"
	"github.com/sumanthd032/collabtext/internal/session"
)

const persistTimeout = 5 * time.Second

// Loader resolves a document's durable snapshot when a Session must be
// created from scratch. It is implemented by the store package; the
// registry only depends on this narrow interface so it can run with no
// backing store configured (session store adapters may be nil).
type Loader interface {
	Load(ctx context.Context, documentID string) (revision uint64, content string, vc clock.VectorClock, found bool, err error)
}

// Persister receives a Session's final snapshot on idle retirement.
type Persister interface {
	Persist(ctx context.Context, snap session.Snapshot) error
}

// Registry is the process-wide map from document_id to its live Session.
type Registry struct {
	sessions sync.Map // string -> *session.Session
	group    singleflight.Group

	cfg       session.Config
	logger    *zap.Logger
	loader    Loader
	persister Persister
	recorder  session.Recorder
}

// New builds a Registry. loader, persister, and recorder may all be nil, in
// which case Sessions run in-memory-only and idle retirement is a no-op
// beyond freeing the in-memory entry.
func New(cfg session.Config, logger *zap.Logger, loader Loader, persister Persister, recorder session.Recorder) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		cfg:       cfg,
		logger:    logger,
		loader:    loader,
		persister: persister,
		recorder:  recorder,
	}
}

// Get returns the live Session for documentID, creating it (and loading its
// durable snapshot, if a Loader is configured) if this is the first
// reference. Concurrent first-joiners of the same document share one
// creation via singleflight so only one Load call happens.
func (r *Registry) Get(ctx context.Context, documentID string) (*session.Session, error) {
	if v, ok := r.sessions.Load(documentID); ok {
		return v.(*session.Session), nil
	}

	v, err, _ := r.group.Do(documentID, func() (interface{}, error) {
		if v, ok := r.sessions.Load(documentID); ok {
			return v.(*session.Session), nil
		}
		doc, err := r.loadDocument(ctx, documentID)
		if err != nil {
			return nil, fmt.Errorf("registry: load document %q: %w", documentID, err)
		}
		s := session.New(documentID, doc, r.cfg, r.logger, r.retire(documentID))
		if r.recorder != nil {
			s.SetRecorder(r.recorder)
		}
		r.sessions.Store(documentID, s)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*session.Session), nil
}

func (r *Registry) loadDocument(ctx context.Context, documentID string) (*document.State, error) {
	if r.loader == nil {
		return document.New(r.cfg.HistorySize), nil
	}
	rev, content, vc, found, err := r.loader.Load(ctx, documentID)
	if err != nil {
		r.logger.Warn("session store unavailable, starting document in-memory-only",
			zap.String("document_id", documentID), zap.Error(err))
		return document.New(r.cfg.HistorySize), nil
	}
	if !found {
		return document.New(r.cfg.HistorySize), nil
	}
	return document.NewWithContent(content, rev, vc, r.cfg.HistorySize), nil
}

// retire builds the callback a Session invokes on idle shutdown: persist
// the final snapshot (best effort) and drop the registry's own reference so
// the next join re-creates it.
func (r *Registry) retire(documentID string) func(session.Snapshot) {
	return func(snap session.Snapshot) {
		r.sessions.Delete(documentID)
		if r.persister == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := r.persister.Persist(ctx, snap); err != nil {
			r.logger.Warn("failed to persist snapshot on retirement",
				zap.String("document_id", documentID), zap.Error(err))
		}
	}
}
