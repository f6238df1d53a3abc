package livefeed_test

import (
	"sync"

	"denuncia/backend/internal/livefeed"
)

type MockClient struct {
	id      string
	staffID uint
	send    chan livefeed.Event

	mu      sync.Mutex
	closed  bool
	running bool
}

func newMockClient(id string, staffID uint, buffer int) *MockClient {
	return &MockClient{id: id, staffID: staffID, send: make(chan livefeed.Event, buffer)}
}

func (c *MockClient) GetID() string                         { return c.id }
func (c *MockClient) GetStaffID() uint                      { return c.staffID }
func (c *MockClient) GetSendChannel() chan<- livefeed.Event { return c.send }

func (c *MockClient) Run() {
	c.mu.Lock()
	c.running = true
	c.mu.Unlock()
}

func (c *MockClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		panic("client closed twice")
	}
	c.closed = true
}

func (c *MockClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
