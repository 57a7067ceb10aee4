package bus

import (
	"log/slog"
	"sync"
	"time"

	"solbot/internal/domain"
)

const publishTimeout = 10 * time.Second

// InMemoryBus is a Go-channel based message bus connecting the transport
// and the flow dispatcher inside one process.
type InMemoryBus struct {
	inbound chan domain.Event
	onReply func(domain.Reply)
	mu      sync.RWMutex
	closed  bool
	logger  *slog.Logger
}

// New creates a new InMemoryBus with the given buffer size.
func New(bufferSize int, logger *slog.Logger) *InMemoryBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &InMemoryBus{
		inbound: make(chan domain.Event, bufferSize),
		logger:  logger,
	}
}

// Publish queues an inbound event for the dispatcher.
// Blocks up to 10 seconds if the bus is full instead of dropping.
func (b *InMemoryBus) Publish(ev domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.Warn("attempted to publish to closed bus")
		return
	}

	select {
	case b.inbound <- ev:
	default:
		b.logger.Warn("inbound bus full, waiting...", "kind", ev.Kind, "user", ev.UserID)
		timer := time.NewTimer(publishTimeout)
		defer timer.Stop()
		select {
		case b.inbound <- ev:
			b.logger.Info("event delivered after wait", "kind", ev.Kind)
		case <-timer.C:
			b.logger.Error("event dropped: bus full for 10s",
				"kind", ev.Kind,
				"user", ev.UserID,
			)
		}
	}
}

func (b *InMemoryBus) Subscribe() <-chan domain.Event {
	return b.inbound
}

func (b *InMemoryBus) SendReply(r domain.Reply) {
	b.mu.RLock()
	handler := b.onReply
	b.mu.RUnlock()

	if handler == nil {
		b.logger.Warn("no reply handler registered", "chat", r.ChatID)
		return
	}

	handler(r)
}

func (b *InMemoryBus) OnReply(handler func(domain.Reply)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onReply = handler
}

func (b *InMemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.inbound)
	}
}
