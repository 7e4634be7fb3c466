package session

import "errors"

// Sentinel errors returned by Session methods. Transport-layer callers map
// these onto wire error codes without needing to inspect message text.
var (
	ErrInvalidOperation = errors.New("session: invalid operation")
	ErrFutureRevision   = errors.New("session: base revision is ahead of the document")
	ErrRateLimited      = errors.New("session: client exceeded its operation rate")
	ErrSlowConsumer     = errors.New("session: client's outbound queue overflowed")
	ErrDocumentFull     = errors.New("session: document has reached its client limit")
	ErrSessionClosed    = errors.New("session: session is no longer accepting commands")
	ErrInternal         = errors.New("session: internal error")
)
