package session

import (
	"sync"

	"github.com/sumanthd032/collabtext/internal/clock"
	"github.com/sumanthd032/collabtext/internal/operation"
)

// EventKind tags the payload carried by an Event. Transport translates each
// kind into the corresponding server-to-client wire message.
type EventKind string

const (
	EventSnapshot EventKind = "snapshot"
	EventOp       EventKind = "op"
	EventAck      EventKind = "ack"
	EventResync   EventKind = "resync"
	EventError    EventKind = "error"
	EventCursor   EventKind = "cursor"
)

// Event is the domain-level payload a Session hands to a ClientAdapter.
// Transport is the only package that knows how to serialize it onto a wire
// connection; Session never imports transport so the two stay decoupled.
type Event struct {
	Kind      EventKind
	Operation operation.Operation
	Revision  uint64
	Clock     clock.VectorClock
	Content   string
	Err       error

	// ClientID, Position and Selection carry EventCursor's opaque presence
	// payload: the Session forwards it unmodified, so these are the only
	// fields a cursor broadcast populates.
	ClientID  clock.ClientID
	Position  int
	Selection [2]int
}

// ClientAdapter is the per-connection state a Session broadcasts through: a
// bounded outbound queue, the client's last-acknowledged revision, and a
// close signal transport watches to tear down the underlying connection.
// Its send/disconnect pair are only ever called from the owning Session's
// single goroutine; everything else here is safe for outside readers.
type ClientAdapter struct {
	ClientID clock.ClientID

	events chan Event
	closed chan struct{}

	closeOnce sync.Once
	reason    error

	lastAck uint64
}

// NewClientAdapter allocates a client adapter with the given outbound queue
// bound, defaulting to 1024.
func NewClientAdapter(clientID clock.ClientID, queueSize int) *ClientAdapter {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &ClientAdapter{
		ClientID: clientID,
		events:   make(chan Event, queueSize),
		closed:   make(chan struct{}),
	}
}

// Events is the channel transport's write pump drains to serialize messages
// onto the wire connection.
func (a *ClientAdapter) Events() <-chan Event {
	return a.events
}

// Closed is closed once the adapter has been disconnected, either by a slow
// consumer overflow or by an explicit Leave.
func (a *ClientAdapter) Closed() <-chan struct{} {
	return a.closed
}

// CloseReason reports why the adapter was disconnected, once Closed fires.
func (a *ClientAdapter) CloseReason() error {
	return a.reason
}

// send enqueues ev without blocking. A full queue means the client is not
// draining fast enough, which triggers an immediate disconnect and a drain
// of anything still queued, rather than blocking the Session's single
// serialization goroutine on one slow reader.
func (a *ClientAdapter) send(ev Event) error {
	select {
	case a.events <- ev:
		return nil
	default:
		a.disconnect(ErrSlowConsumer)
		return ErrSlowConsumer
	}
}

func (a *ClientAdapter) disconnect(reason error) {
	a.closeOnce.Do(func() {
		a.reason = reason
		close(a.closed)
	drain:
		for {
			select {
			case <-a.events:
			default:
				break drain
			}
		}
	})
}
