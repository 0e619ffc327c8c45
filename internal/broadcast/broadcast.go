// Package broadcast decouples event producers from the websocket layer.
// The webserver registers itself as the Broadcaster at startup.
package broadcast

import "sync"

// Broadcaster pushes an out-of-band event to every connected widget.
type Broadcaster interface {
	BroadcastMessage(eventType string, data interface{})
}

var (
	mu          sync.RWMutex
	broadcaster Broadcaster
)

// SetBroadcaster installs the active broadcaster implementation.
func SetBroadcaster(b Broadcaster) {
	mu.Lock()
	broadcaster = b
	mu.Unlock()
}

// Send delivers an event to the widgets. A no-op until a broadcaster is
// registered, so producers never need nil checks.
func Send(eventType string, data interface{}) {
	mu.RLock()
	b := broadcaster
	mu.RUnlock()

	if b != nil {
		b.BroadcastMessage(eventType, data)
	}
}
