package realtime

import (
	"sync"

	v1 "slate/contracts/realtime/v1"
	"slate/internal/identity"
)

// Client represents one connected websocket session.
//
// Design notes:
// - Send is intentionally NOT closed by the server to avoid panics from concurrent broadcasters.
// - done is used to signal goroutines to stop.
// - Close is idempotent.
// - The principal is cached connection-scoped after the first successful
//   authentication and reused for every later event on this connection.
type Client struct {
	SessionID string
	RemoteIP  string
	Send      chan v1.Envelope

	mu        sync.RWMutex
	principal *identity.Principal

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient constructs a Client with a bounded send queue.
func NewClient(sessionID, remoteIP string, sendQueueSize int) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = 64
	}
	return &Client{
		SessionID: sessionID,
		RemoteIP:  remoteIP,
		Send:      make(chan v1.Envelope, sendQueueSize),
		done:      make(chan struct{}),
	}
}

// Principal returns the cached identity, or nil for anonymous connections.
func (c *Client) Principal() *identity.Principal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.principal
}

// SetPrincipal caches a verified identity on the connection.
func (c *Client) SetPrincipal(p identity.Principal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.principal = &p
}

// Done returns a channel that is closed when the client is shutting down.
func (c *Client) Done() <-chan struct{} {
	if c == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.done
}

// Close signals the client goroutines to stop (idempotent).
// It does NOT close Send to keep broadcast safe under concurrency.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
