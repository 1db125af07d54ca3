package replication

import (
	"sync"

	"github.com/nadavnv/smart-home-core/internal/infrastructure/mqtt"
)

// Message is an encoded publication waiting for delivery.
type Message struct {
	Topic   string
	Payload []byte
	Props   mqtt.UserProperties
}

// Outbox is a mutex-guarded FIFO of undelivered messages.
type Outbox struct {
	mu    sync.Mutex
	items []Message
}

// Push appends m at the tail.
func (o *Outbox) Push(m Message) {
	o.mu.Lock()
	o.items = append(o.items, m)
	o.mu.Unlock()
}

// Drain removes and returns every queued message, oldest first.
func (o *Outbox) Drain() []Message {
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
