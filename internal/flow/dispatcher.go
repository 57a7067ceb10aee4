package flow

import (
	"context"
	"log/slog"
	"sync"

	"solbot/internal/domain"
	"solbot/internal/metrics"
)

const (
	defaultConcurrency = 5
	userQueueSize      = 16
)

// Dispatcher consumes inbound events from the bus and runs the controller
// with bounded global concurrency. Each user gets a serial FIFO queue drained
// by its own worker, so events from the same user are handled to completion
// in arrival order, and an event waiting behind that user's earlier events
// never occupies a global concurrency slot.
type Dispatcher struct {
	controller  *Controller
	bus         domain.MessageBus
	logger      *slog.Logger
	metrics     *metrics.Metrics
	concurrency int

	mu     sync.Mutex
	queues map[int64]chan domain.Event
}

// DispatcherConfig holds the dispatcher's dependencies and tuning.
type DispatcherConfig struct {
	Controller  *Controller
	Bus         domain.MessageBus
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	Concurrency int
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNop()
	}
	return &Dispatcher{
		controller:  cfg.Controller,
		bus:         cfg.Bus,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		concurrency: cfg.Concurrency,
		queues:      make(map[int64]chan domain.Event),
	}
}

// Run consumes events until the context is cancelled or the bus closes.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("dispatcher started", "concurrency", d.concurrency)

	sem := make(chan struct{}, d.concurrency)
	inbound := d.bus.Subscribe()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopping")
			return
		case ev, ok := <-inbound:
			if !ok {
				d.logger.Info("inbound channel closed, dispatcher stopping")
				return
			}
			d.enqueue(ctx, sem, ev)
		}
	}
}

// enqueue routes the event to its user's queue, starting a worker the first
// time a user is seen. The send never blocks: a user publishing faster than
// their events drain loses the overflow instead of stalling intake for
// everyone else.
func (d *Dispatcher) enqueue(ctx context.Context, sem chan struct{}, ev domain.Event) {
	d.mu.Lock()
	q, ok := d.queues[ev.UserID]
	if !ok {
		q = make(chan domain.Event, userQueueSize)
		d.queues[ev.UserID] = q
		go d.runUser(ctx, sem, q)
	}
	d.mu.Unlock()

	select {
	case q <- ev:
	default:
		d.logger.Warn("user queue full, dropping event",
			"user", ev.UserID,
			"kind", ev.Kind,
			"name", ev.Name,
		)
	}
}

// runUser drains one user's events in arrival order. A concurrency slot is
// held only for the duration of a single handler call, not while an event
// waits its turn behind the same user's earlier events.
func (d *Dispatcher) runUser(ctx context.Context, sem chan struct{}, q <-chan domain.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-q:
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			d.processEvent(ctx, ev)
			<-sem
		}
	}
}

// processEvent handles a single event. A panic or failure here is converted
// into a user-facing reply; it never takes down the dispatcher or affects
// other users' in-flight events.
func (d *Dispatcher) processEvent(ctx context.Context, ev domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event handler panicked", "panic", r, "user", ev.UserID)
			d.bus.SendReply(domain.Reply{
				ChatID: ev.ChatID,
				Text:   "Sorry, something went wrong. Please try again.",
			})
		}
	}()

	d.metrics.EventsTotal.WithLabelValues(string(ev.Kind), ev.Name).Inc()
	d.logger.Info("processing event",
		"kind", ev.Kind,
		"name", ev.Name,
		"user", ev.UserID,
	)

	reply := d.controller.Handle(ctx, ev)

	mode := "send"
	if reply.Edit {
		mode = "edit"
	}
	d.metrics.RepliesTotal.WithLabelValues(mode).Inc()
	d.bus.SendReply(reply)
}
