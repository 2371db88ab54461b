package gateway

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/echomind/coach-gateway/internal/observability"
)

// Outbox is a bounded FIFO of messages awaiting delivery. Pushing never
// blocks; when full the oldest message is evicted and logged.
type Outbox struct {
	mu     sync.Mutex
	items  []ServerMessage
	limit  int
	closed bool
	logger zerolog.Logger
}

// NewOutbox creates an outbox holding at most limit messages.
func NewOutbox(limit int, logger zerolog.Logger) *Outbox {
	return &Outbox{
		limit:  max(limit, 1),
		logger: logger,
	}
}

// Push appends msg. It reports false if the outbox was already closed.
func (o *Outbox) Push(msg ServerMessage) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return false
	}
	if len(o.items) >= o.limit {
		dropped := o.items[0]
		o.items = o.items[1:]
		observability.RecordFeedbackDropped()
		o.logger.Warn().Str("type", dropped.Type).Int("limit", o.limit).Msg("Outbox full, dropped oldest message")
	}
	o.items = append(o.items, msg)
	return true
}

// Drain removes and returns every queued message in FIFO order.
func (o *Outbox) Drain() []ServerMessage {
	o.mu.Lock()
	defer o.mu.Unlock()

	items := o.items
	o.items = nil
	return items
}

// Len returns the number of queued messages.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items)
}

// Close rejects further pushes and discards anything still queued.
func (o *Outbox) Close() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.closed = true
	n := len(o.items)
	o.items = nil
	return n
}
