// Package livefeed pushes complaint events to staff dashboards connected over
// WebSocket.
package livefeed

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"denuncia/backend/internal/metrics"
	"denuncia/backend/internal/models"
	"denuncia/backend/internal/notify"
)

// ErrHubStopped is returned once Run has exited.
var ErrHubStopped = errors.New("livefeed: hub stopped")

// Event is what a dashboard receives. It carries no submitter data.
type Event struct {
	Kind            notify.Kind     `json:"kind"`
	ComplaintID     uint            `json:"complaint_id"`
	Protocol        string          `json:"protocol"`
	Status          models.Status   `json:"status"`
	StatusLabel     string          `json:"status_label"`
	Previous        models.Status   `json:"previous,omitempty"`
	CategoriesLabel string          `json:"categories_label"`
	Priority        models.Priority `json:"priority,omitempty"`
	At              time.Time       `json:"at"`
}

// EventFromNotification projects n onto the dashboard event.
func EventFromNotification(n notify.Notification) Event {
	c := n.Complaint
	at := c.UpdatedAt
	if n.Kind == notify.KindNewComplaint || at.IsZero() {
		at = c.CreatedAt
	}
	return Event{
		Kind:            n.Kind,
		ComplaintID:     c.ID,
		Protocol:        c.Protocol,
		Status:          c.Status,
		StatusLabel:     c.StatusLabel,
		Previous:        n.Previous,
		CategoriesLabel: c.CategoriesLabel,
		Priority:        c.Priority,
		At:              at,
	}
}

type delivery struct {
	event Event
	staff map[uint]struct{}
}

// Hub owns the set of connected clients. All mutations happen on the Run
// goroutine; everything else talks to it through channels.
type Hub struct {
	clients map[string]Client

	RegisterCh   chan Client
	UnregisterCh chan Client
	broadcastCh  chan delivery
	countCh      chan chan int

	done    chan struct{}
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Hub)

func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = l
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Hub) {
		h.metrics = m
	}
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients:      make(map[string]Client),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		broadcastCh:  make(chan delivery),
		countCh:      make(chan chan int),
		done:         make(chan struct{}),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run serves the hub until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for id, c := range h.clients {
				delete(h.clients, id)
				c.Close()
			}
			h.metrics.SetLiveClients(0)
			return

		case c := <-h.RegisterCh:
			h.clients[c.GetID()] = c
			h.metrics.SetLiveClients(len(h.clients))
			h.logger.Debug("live client registered", "conn_id", c.GetID(), "staff_id", c.GetStaffID())

		case c := <-h.UnregisterCh:
			h.remove(c.GetID())

		case d := <-h.broadcastCh:
			for id, c := range h.clients {
				if _, ok := d.staff[c.GetStaffID()]; !ok {
					continue
				}
				select {
				case c.GetSendChannel() <- d.event:
				default:
					h.logger.Warn("live client too slow, disconnecting", "conn_id", id, "staff_id", c.GetStaffID())
					h.remove(id)
				}
			}

		case reply := <-h.countCh:
			reply <- len(h.clients)
		}
	}
}

func (h *Hub) remove(id string) {
	c, ok := h.clients[id]
	if !ok {
		return
	}
	delete(h.clients, id)
	c.Close()
	h.metrics.SetLiveClients(len(h.clients))
	h.logger.Debug("live client unregistered", "conn_id", id)
}

// Register hands c to the hub and starts its pumps.
func (h *Hub) Register(ctx context.Context, c Client) error {
	select {
	case h.RegisterCh <- c:
		c.Run()
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unregister is safe to call for an unknown client or after the hub stopped.
func (h *Hub) Unregister(c Client) {
	select {
	case h.UnregisterCh <- c:
	case <-h.done:
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count(ctx context.Context) (int, error) {
	reply := make(chan int, 1)
	select {
	case h.countCh <- reply:
	case <-h.done:
		return 0, ErrHubStopped
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	return <-reply, nil
}

func (h *Hub) Name() string { return "livefeed" }

// Send implements notify.Sender: the event goes to every open connection of
// the notification's recipients.
func (h *Hub) Send(ctx context.Context, n notify.Notification) error {
	if len(n.Recipients) == 0 {
		return nil
	}
	d := delivery{
		event: EventFromNotification(n),
		staff: make(map[uint]struct{}, len(n.Recipients)),
	}
	for _, r := range n.Recipients {
		d.staff[r.ID] = struct{}{}
	}
	select {
	case h.broadcastCh <- d:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}
