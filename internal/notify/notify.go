// Package notify fans complaint events out to staff through pluggable
// senders. Delivery is asynchronous and best-effort: a full queue or a failing
// sender is logged and never reaches the caller.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"denuncia/backend/internal/metrics"
	"denuncia/backend/internal/models"
)

type Kind string

const (
	KindNewComplaint  Kind = "new_complaint"
	KindStatusChanged Kind = "status_changed"
)

// Notification is a complaint snapshot plus who should hear about it.
type Notification struct {
	Kind       Kind                  `json:"kind"`
	Complaint  models.ComplaintView  `json:"complaint"`
	Previous   models.Status         `json:"previous,omitempty"`
	Recipients []models.StaffContact `json:"-"`
}

// Sender delivers one notification over one channel (Telegram, websocket...).
type Sender interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}

const (
	defaultQueueSize = 256
	defaultTimeout   = 10 * time.Second
)

// Dispatcher queues notifications and delivers them from one worker
// goroutine, so senders never run on the request path.
type Dispatcher struct {
	senders []Sender
	queue   chan Notification
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

type Option func(*Dispatcher)

func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan Notification, n)
		}
	}
}

// WithTimeout bounds each individual Send call.
func WithTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.timeout = t
		}
	}
}

// NewDispatcher starts the delivery worker. Call Close to stop it.
func NewDispatcher(senders []Sender, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		senders: senders,
		queue:   make(chan Notification, defaultQueueSize),
		timeout: defaultTimeout,
		logger:  slog.Default(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	go d.run()
	return d
}

// Dispatch enqueues n without blocking. It returns false when n was dropped.
func (d *Dispatcher) Dispatch(_ context.Context, n Notification) bool {
	if len(n.Recipients) == 0 {
		d.logger.Debug("notification has no recipients", "kind", n.Kind, "protocol", n.Complaint.Protocol)
		return false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(n, "dispatcher closed")
		return false
	}
	select {
	case d.queue <- n:
		return true
	default:
		d.drop(n, "queue full")
		return false
	}
}

func (d *Dispatcher) drop(n Notification, reason string) {
	d.metrics.IncrementDropped()
	d.logger.Warn("notification dropped", "reason", reason, "kind", n.Kind, "protocol", n.Complaint.Protocol)
}

// Close stops accepting notifications and waits until the queued ones have
// been delivered or ctx expires.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for n := range d.queue {
		for _, s := range d.senders {
			d.deliver(s, n)
		}
	}
}

func (d *Dispatcher) deliver(s Sender, n Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			d.metrics.RecordNotification(s.Name(), errPanic)
			d.logger.Error("notification sender panicked", "sender", s.Name(), "panic", r)
		}
	}()

	err := s.Send(ctx, n)
	d.metrics.RecordNotification(s.Name(), err)
	if err != nil {
		d.logger.Error("notification delivery failed",
			"sender", s.Name(),
			"kind", n.Kind,
			"protocol", n.Complaint.Protocol,
			"recipients", len(n.Recipients),
			"error", err,
		)
		return
	}
	d.logger.Debug("notification delivered", "sender", s.Name(), "kind", n.Kind, "protocol", n.Complaint.Protocol)
}

var errPanic = errors.New("sender panicked")
