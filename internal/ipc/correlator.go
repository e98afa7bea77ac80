package ipc

import (
	"fmt"
	"sync"
)

// Correlator tracks in-flight requests by id so a single background reader
// goroutine can resolve whichever caller is waiting on a given response,
// the same shape go-memsh's client uses for its pending WebSocket
// requests (map[id]chan response), adapted here to a raw framed
// connection instead of a websocket.
type Correlator struct {
	mu      sync.Mutex
	pending map[string]chan Response
}

// NewCorrelator creates an empty correlator.
func NewCorrelator() *Correlator {
	return &Correlator{pending: make(map[string]chan Response)}
}

// Register allocates a buffered channel for id and returns it; the caller
// must call Forget(id) once it stops waiting (on success or timeout) to
// avoid leaking an entry if Resolve never arrives.
func (c *Correlator) Register(id string) <-chan Response {
	ch := make(chan Response, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	return ch
}

// Forget removes id's entry without resolving it.
func (c *Correlator) Forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Resolve delivers resp to the caller waiting on its id, if any. Returns
// false if no caller was registered for that id (a response for an id that
// already timed out and was forgotten).
func (c *Correlator) Resolve(resp Response) bool {
	c.mu.Lock()
	ch, ok := c.pending[resp.ID]
	if ok {
		delete(c.pending, resp.ID)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	ch <- resp
	return true
}

// FailAll resolves every still-pending caller with a synthetic failure,
// used when the underlying connection drops so no caller waits forever.
func (c *Correlator) FailAll(cause error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]chan Response)
	c.mu.Unlock()

	for id, ch := range pending {
		ch <- Fail(id, fmt.Errorf("ipc: connection lost: %w", cause))
	}
}
