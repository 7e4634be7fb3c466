// Package session implements the per-document concurrency hub: a single
// actor goroutine that serializes join/submit/ack/leave against one
// document.State, in the spirit of a subscribe/broadcast hub loop. Rebase
// and commit happen inside that one goroutine, giving the "single-writer,
// no locks on the buffer" guarantee structurally instead of via a mutex.
package session

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"

	"github.com/sumanthd032/collabtext/internal/clock"
	"github.com/sumanthd032/collabtext/internal/document"
	"github.com/sumanthd032/collabtext/internal/operation"
	"github.com/sumanthd032/collabtext/internal/ot"
)

const commandQueueSize = 256

// Config bundles the tunables a Session needs, sourced from the config
// package's COLLABTEXT_SESSION_* keys.
type Config struct {
	MaxOpsPerSec      float64
	MaxClientsPerDoc  int
	HistorySize       int
	IdleTimeout       time.Duration
	OutboundQueueSize int
}

// Snapshot is what a Session hands to its retirement callback so the
// registry can persist a final copy through the session store.
type Snapshot struct {
	DocumentID string
	Revision   uint64
	Content    string
	Clock      clock.VectorClock
}

// JoinResult is the state a newly joined client needs to render its buffer.
type JoinResult struct {
	Revision uint64
	Content  string
	Clock    clock.VectorClock
}

// SubmitResult reports the outcome of a committed submission. Resynced
// means the client's base revision fell outside the retained history; the
// Session has already pushed an EventResync to that client's own adapter
// and applied nothing.
type SubmitResult struct {
	Revision uint64
	Resynced bool
}

// Session owns one document's live state and the clients currently editing
// it. clients and adapters are only ever touched from the run goroutine;
// limiters and recorder are safe for concurrent use, and the exported
// methods are safe to call from any goroutine.
type Session struct {
	id       string
	doc      *document.State
	cfg      Config
	logger   *zap.Logger
	onRetire func(Snapshot)

	commands chan command
	stopped  chan struct{}

	clients  mapset.Set[clock.ClientID]
	adapters map[clock.ClientID]*ClientAdapter

	// limiters is read from arbitrary caller goroutines in Submit (rate
	// limiting happens before a command reaches the actor channel), so it
	// is a sync.Map rather than a plain map guarded by the actor loop.
	limiters sync.Map // clock.ClientID -> *tokenBucket

	recorder atomic.Pointer[Recorder]
}

// Recorder appends a committed operation to a durable operation log.
// Record must not block: the store package's implementation buffers
// internally and drops with a logged warning under sustained overload
// rather than stall the session's serialization goroutine.
type Recorder interface {
	Record(documentID string, entry document.Entry)
}

// SetRecorder wires an operation-log sink into the session, usually called
// by the registry right after creation when a durable store is configured.
// It is safe to call concurrently with the session's own goroutine.
func (s *Session) SetRecorder(r Recorder) {
	s.recorder.Store(&r)
}

// New creates a Session over doc and starts its serialization goroutine.
// The caller (normally the registry) owns doc's lifetime up to this call;
// afterward only the Session's own goroutine mutates it.
func New(id string, doc *document.State, cfg Config, logger *zap.Logger, onRetire func(Snapshot)) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if onRetire == nil {
		onRetire = func(Snapshot) {}
	}
	s := &Session{
		id:       id,
		doc:      doc,
		cfg:      cfg,
		logger:   logger.With(zap.String("document_id", id)),
		onRetire: onRetire,
		commands: make(chan command, commandQueueSize),
		stopped:  make(chan struct{}),
		clients:  mapset.NewSet[clock.ClientID](),
		adapters: make(map[clock.ClientID]*ClientAdapter),
	}
	go s.run()
	return s
}

// ID returns the document identifier this Session serializes.
func (s *Session) ID() string { return s.id }

// Join registers adapter as a connected client and returns the state it
// needs to seed its local buffer. It fails with ErrDocumentFull once
// cfg.MaxClientsPerDoc is reached.
func (s *Session) Join(clientID clock.ClientID, adapter *ClientAdapter) (JoinResult, error) {
	resp := make(chan joinResponse, 1)
	select {
	case s.commands <- &joinCmd{clientID: clientID, adapter: adapter, resp: resp}:
	case <-s.stopped:
		return JoinResult{}, ErrSessionClosed
	}
	r := <-resp
	return r.result, r.err
}

// Submit rate-limits and enqueues op for rebase-and-commit. Rate limiting
// happens here, before the command ever reaches the serialization channel,
// so a client that is over its budget never occupies a serialization slot.
func (s *Session) Submit(clientID clock.ClientID, op operation.Operation) (SubmitResult, error) {
	if v, ok := s.limiters.Load(clientID); ok && !v.(*tokenBucket).allow() {
		return SubmitResult{}, ErrRateLimited
	}

	resp := make(chan submitResponse, 1)
	select {
	case s.commands <- &submitCmd{clientID: clientID, op: op, resp: resp}:
	case <-s.stopped:
		return SubmitResult{}, ErrSessionClosed
	}
	r := <-resp
	return r.result, r.err
}

// Ack advances clientID's acknowledgment watermark, potentially unblocking
// history eviction. It does not wait for the command to be processed.
func (s *Session) Ack(clientID clock.ClientID, revision uint64) {
	select {
	case s.commands <- &ackCmd{clientID: clientID, revision: revision}:
	case <-s.stopped:
	}
}

// Leave removes clientID from the session. It does not wait for the
// command to be processed.
func (s *Session) Leave(clientID clock.ClientID) {
	select {
	case s.commands <- &leaveCmd{clientID: clientID}:
	case <-s.stopped:
	}
}

// Cursor forwards opaque presence data to every other client, unmodified.
// It does not wait for the command to be processed.
func (s *Session) Cursor(clientID clock.ClientID, position int, selection [2]int) {
	select {
	case s.commands <- &cursorCmd{clientID: clientID, position: position, selection: selection}:
	case <-s.stopped:
	}
}

// command is the tagged-union of actor inputs, matching the operation
// tagging style used throughout the reference OT/CRDT code.
type command interface{ isCommand() }

type joinCmd struct {
	clientID clock.ClientID
	adapter  *ClientAdapter
	resp     chan joinResponse
}
type joinResponse struct {
	result JoinResult
	err    error
}

type submitCmd struct {
	clientID clock.ClientID
	op       operation.Operation
	resp     chan submitResponse
}
type submitResponse struct {
	result SubmitResult
	err    error
}

type ackCmd struct {
	clientID clock.ClientID
	revision uint64
}

type leaveCmd struct {
	clientID clock.ClientID
}

type cursorCmd struct {
	clientID  clock.ClientID
	position  int
	selection [2]int
}

func (*joinCmd) isCommand()   {}
func (*submitCmd) isCommand() {}
func (*ackCmd) isCommand()    {}
func (*leaveCmd) isCommand()  {}
func (*cursorCmd) isCommand() {}

func (s *Session) run() {
	idle := time.NewTimer(s.idleTimeout())
	defer idle.Stop()
	defer close(s.stopped)

	for {
		select {
		case cmd := <-s.commands:
			s.dispatch(cmd)
			resetTimer(idle, s.idleTimeout())
		case <-idle.C:
			if s.clients.Cardinality() == 0 {
				s.retire()
				return
			}
			resetTimer(idle, s.idleTimeout())
		}
	}
}

func (s *Session) idleTimeout() time.Duration {
	if s.cfg.IdleTimeout <= 0 {
		return 10 * time.Minute
	}
	return s.cfg.IdleTimeout
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

func (s *Session) dispatch(cmd command) {
	switch c := cmd.(type) {
	case *joinCmd:
		s.handleJoin(c)
	case *submitCmd:
		s.handleSubmit(c)
	case *ackCmd:
		s.handleAck(c)
	case *leaveCmd:
		s.handleLeave(c)
	case *cursorCmd:
		s.handleCursor(c)
	}
}

func (s *Session) handleJoin(c *joinCmd) {
	maxClients := s.cfg.MaxClientsPerDoc
	if maxClients <= 0 {
		maxClients = 64
	}
	if s.clients.Cardinality() >= maxClients && !s.clients.Contains(c.clientID) {
		c.resp <- joinResponse{err: ErrDocumentFull}
		return
	}

	rev, content, vc := s.doc.Snapshot()
	s.clients.Add(c.clientID)
	s.adapters[c.clientID] = c.adapter
	c.adapter.lastAck = rev
	s.limiters.Store(c.clientID, newTokenBucket(s.opsPerSec(), nil))

	c.resp <- joinResponse{result: JoinResult{Revision: rev, Content: content, Clock: vc}}
}

func (s *Session) opsPerSec() float64 {
	if s.cfg.MaxOpsPerSec <= 0 {
		return 50
	}
	return s.cfg.MaxOpsPerSec
}

func (s *Session) handleSubmit(c *submitCmd) {
	op := c.op

	if op.BaseRevision() > s.doc.Revision() {
		c.resp <- submitResponse{err: ErrFutureRevision}
		return
	}

	entries, err := s.doc.OperationsSince(op.BaseRevision())
	if err != nil {
		if errors.Is(err, document.ErrHistoryExhausted) {
			s.sendResync(c.clientID)
			c.resp <- submitResponse{result: SubmitResult{Resynced: true}}
			return
		}
		c.resp <- submitResponse{err: fmt.Errorf("%w: %v", ErrInvalidOperation, err)}
		return
	}

	// With nothing to rebase against, a shape failure is the client's own
	// doing; once rebase has touched the op, a shape failure can only mean
	// the transform itself is wrong.
	wasRebased := len(entries) > 0

	rebased, err := rebase(op, entries)
	if err != nil {
		s.logger.Error("ot transform failed", zap.String("client_id", string(c.clientID)), zap.Error(err))
		c.resp <- submitResponse{err: fmt.Errorf("%w: %v", ErrInternal, err)}
		return
	}

	// A split from a single commit (an Insert landing inside a concurrent
	// Delete) yields pieces positioned against the same pre-split buffer, in
	// left-to-right document order. Applying the leftmost piece first shifts
	// every position to its right, so each later piece needs its position
	// corrected by the net length change every earlier piece of this same
	// commit already caused, before it can be validated against the
	// buffer's current length. History and broadcast keep the same
	// left-to-right order the pieces arrived in; only the applied position
	// is offset-corrected.
	finalRevision := s.doc.Revision()
	offset := 0
	for _, piece := range rebased {
		if piece.IsNoop() {
			continue
		}
		adjusted := piece
		if offset != 0 {
			adjusted = piece.Repositioned(piece.Position() + offset)
		}
		rev, err := s.doc.Apply(adjusted)
		if err != nil {
			if !wasRebased {
				c.resp <- submitResponse{err: fmt.Errorf("%w: %v", ErrInvalidOperation, err)}
				return
			}
			s.logger.Error("apply rebased op failed", zap.String("client_id", string(c.clientID)), zap.Error(err))
			c.resp <- submitResponse{err: fmt.Errorf("%w: %v", ErrInternal, err)}
			return
		}
		switch adjusted.Kind() {
		case operation.Delete:
			offset -= adjusted.Length()
		case operation.Insert:
			offset += adjusted.Length()
		}
		finalRevision = rev
		if r := s.recorder.Load(); r != nil {
			(*r).Record(s.id, document.Entry{Operation: adjusted, Revision: rev})
		}
		_, _, vc := s.doc.Snapshot()
		s.broadcastExcept(c.clientID, Event{
			Kind:      EventOp,
			Operation: adjusted.WithVectorClock(vc).WithBaseRevision(rev - 1),
			Revision:  rev,
			Clock:     vc,
		})
	}

	// The originator gets an ack referencing the new revision rather than
	// a copy of its own (possibly split/rebased) op back.
	if adapter, ok := s.adapters[c.clientID]; ok {
		adapter.send(Event{Kind: EventAck, Revision: finalRevision})
	}

	c.resp <- submitResponse{result: SubmitResult{Revision: finalRevision}}
}

// rebase transforms op forward across every entry it was not already
// composed against, in commit order. An Insert splitting a concurrent
// Delete can fan a single input into two outputs; each is carried forward
// through the remaining entries independently.
func rebase(op operation.Operation, entries []document.Entry) ([]operation.Operation, error) {
	pending := []operation.Operation{op}
	for _, entry := range entries {
		var next []operation.Operation
		for _, cur := range pending {
			if cur.IsNoop() {
				next = append(next, cur)
				continue
			}
			out, err := ot.Transform(cur, entry.Operation, ot.Primary(cur, entry.Operation))
			if err != nil {
				return nil, err
			}
			next = append(next, out...)
		}
		pending = next
	}
	return pending, nil
}

func (s *Session) handleAck(c *ackCmd) {
	adapter, ok := s.adapters[c.clientID]
	if !ok {
		return
	}
	if c.revision > adapter.lastAck {
		adapter.lastAck = c.revision
	}
	s.evictAcked()
}

func (s *Session) evictAcked() {
	if len(s.adapters) == 0 {
		return
	}
	min := uint64(0)
	first := true
	for _, adapter := range s.adapters {
		if first || adapter.lastAck < min {
			min = adapter.lastAck
			first = false
		}
	}
	s.doc.EvictBefore(min)
}

func (s *Session) handleLeave(c *leaveCmd) {
	s.clients.Remove(c.clientID)
	if adapter, ok := s.adapters[c.clientID]; ok {
		adapter.disconnect(nil)
	}
	delete(s.adapters, c.clientID)
	s.limiters.Delete(c.clientID)
	s.evictAcked()
}

// handleCursor forwards presence data to every other client as-is; it never
// touches Document State and carries no causal metadata.
func (s *Session) handleCursor(c *cursorCmd) {
	s.broadcastExcept(c.clientID, Event{
		Kind:      EventCursor,
		ClientID:  c.clientID,
		Position:  c.position,
		Selection: c.selection,
	})
}

func (s *Session) sendResync(clientID clock.ClientID) {
	adapter, ok := s.adapters[clientID]
	if !ok {
		return
	}
	rev, content, vc := s.doc.Snapshot()
	if err := adapter.send(Event{Kind: EventResync, Revision: rev, Content: content, Clock: vc}); err != nil {
		s.handleLeave(&leaveCmd{clientID: clientID})
	}
}

func (s *Session) broadcastExcept(origin clock.ClientID, ev Event) {
	for clientID, adapter := range s.adapters {
		if clientID == origin {
			continue
		}
		if err := adapter.send(ev); err != nil {
			s.logger.Warn("disconnecting slow consumer", zap.String("client_id", string(clientID)))
			s.clients.Remove(clientID)
			delete(s.adapters, clientID)
			s.limiters.Delete(clientID)
		}
	}
}

func (s *Session) retire() {
	rev, content, vc := s.doc.Snapshot()
	s.logger.Info("retiring idle session", zap.Uint64("revision", rev))
	s.onRetire(Snapshot{DocumentID: s.id, Revision: rev, Content: content, Clock: vc})
}
