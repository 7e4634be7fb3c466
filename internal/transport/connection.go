package transport

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sumanthd032/collabtext/internal/clock"
	"github.com/sumanthd032/collabtext/internal/registry"
	"github.com/sumanthd032/collabtext/internal/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Conn drives one live WebSocket connection: a read pump decoding client
// messages into Session calls, and a write pump serializing Session events
// back onto the wire, one goroutine per direction.
type Conn struct {
	ws        *websocket.Conn
	registry  *registry.Registry
	logger    *zap.Logger
	queueSize int
}

// NewConn wraps an already-upgraded WebSocket connection.
func NewConn(ws *websocket.Conn, reg *registry.Registry, logger *zap.Logger, queueSize int) *Conn {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Conn{ws: ws, registry: reg, logger: logger, queueSize: queueSize}
}

// Serve blocks for the lifetime of the connection: it waits for a join
// message, then runs the read and write pumps until either side closes.
func (c *Conn) Serve(ctx context.Context) {
	defer c.ws.Close()

	var msg ClientMessage
	if err := c.ws.ReadJSON(&msg); err != nil {
		return
	}
	if msg.Kind != KindJoin || msg.ClientID == "" {
		c.writeError("invalid_request", "first message must be a join with client_id")
		return
	}

	// An empty document_id means "create a new document"; the gateway
	// allocates a fresh identifier rather than requiring the client to
	// invent one.
	documentID := msg.DocumentID
	if documentID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			c.writeError("internal_error", "failed to allocate a document id")
			return
		}
		documentID = id.String()
	}

	sess, err := c.registry.Get(ctx, documentID)
	if err != nil {
		c.logger.Warn("failed to acquire session", zap.String("document_id", documentID), zap.Error(err))
		c.writeError("internal_error", "could not open document")
		return
	}

	adapter := session.NewClientAdapter(msg.ClientID, c.queueSize)
	joined, err := sess.Join(msg.ClientID, adapter)
	if err != nil {
		c.writeError(errorCode(err), err.Error())
		return
	}

	c.write(ServerMessage{
		Kind:       KindSnapshot,
		DocumentID: documentID,
		Revision:   joined.Revision,
		Content:    joined.Content,
		Clock:      joined.Clock,
	})

	done := make(chan struct{})
	go c.writePump(adapter, done)
	c.readPump(sess, msg.ClientID)
	sess.Leave(msg.ClientID)
	<-done
}

func (c *Conn) readPump(sess *session.Session, clientID clock.ClientID) {
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg ClientMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Kind {
		case KindOp:
			if msg.Op == nil {
				continue
			}
			result, err := sess.Submit(clientID, *msg.Op)
			if err != nil {
				c.writeError(errorCode(err), err.Error())
				continue
			}
			if result.Resynced {
				continue
			}
		case KindAck:
			sess.Ack(clientID, msg.Revision)
		case KindCursor:
			sess.Cursor(clientID, msg.Position, msg.Selection)
		case KindLeave:
			return
		}
	}
}

func (c *Conn) writePump(adapter *session.ClientAdapter, done chan<- struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(done)
	}()

	for {
		select {
		case ev, ok := <-adapter.Events():
			if !ok {
				return
			}
			c.write(toServerMessage(ev))
		case <-adapter.Closed():
			return
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Conn) write(msg ServerMessage) {
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteJSON(msg); err != nil {
		c.logger.Debug("write failed, connection likely closed", zap.Error(err))
	}
}

func (c *Conn) writeError(code, message string) {
	c.write(ServerMessage{Kind: KindError, Code: code, Message: message})
}

func toServerMessage(ev session.Event) ServerMessage {
	switch ev.Kind {
	case session.EventOp:
		op := ev.Operation
		return ServerMessage{Kind: KindOp, Op: &op, Revision: ev.Revision}
	case session.EventAck:
		return ServerMessage{Kind: KindAck, Revision: ev.Revision}
	case session.EventResync:
		return ServerMessage{Kind: KindResync, Revision: ev.Revision, Content: ev.Content, Clock: ev.Clock}
	case session.EventCursor:
		return ServerMessage{Kind: KindCursor, ClientID: ev.ClientID, Position: ev.Position, Selection: ev.Selection}
	case session.EventError:
		return ServerMessage{Kind: KindError, Message: errString(ev.Err)}
	default:
		return ServerMessage{Kind: string(ev.Kind), Revision: ev.Revision, Content: ev.Content, Clock: ev.Clock}
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// errorCode maps a Session error to its wire error taxonomy code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, session.ErrInvalidOperation):
		return "invalid_operation"
	case errors.Is(err, session.ErrFutureRevision):
		return "future_revision"
	case errors.Is(err, session.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, session.ErrSlowConsumer):
		return "slow_consumer"
	case errors.Is(err, session.ErrDocumentFull):
		return "document_full"
	case errors.Is(err, session.ErrSessionClosed):
		return "session_closed"
	default:
		return "internal_error"
	}
}
