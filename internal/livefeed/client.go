package livefeed

// Client is one live connection of a staff member (a dashboard tab, usually a
// WebSocket). The hub only talks to it through its send channel.
type Client interface {
	// GetID identifies the connection. A staff member may hold several.
	GetID() string
	// GetStaffID returns the authenticated staff member behind the connection.
	GetStaffID() uint
	// GetSendChannel returns the channel the hub pushes events into.
	GetSendChannel() chan<- Event
	// Run starts the read and write pumps.
	Run()
	// Close shuts down the outgoing side. Only the hub calls it, once.
	Close()
}
