package eventbus

import (
	"errors"
	"sync"

	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/event"
)

type HandlerFunc func(event.Event) error

// InMemoryBus fans events out to subscribers synchronously. Handlers run
// outside the lock, so a handler may publish or subscribe itself.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[event.Type][]HandlerFunc
	catchAll []HandlerFunc
}

func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[event.Type][]HandlerFunc),
	}
}

func (b *InMemoryBus) Subscribe(eventType event.Type, handler HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// SubscribeAll registers handler for every event type.
func (b *InMemoryBus) SubscribeAll(handler HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.catchAll = append(b.catchAll, handler)
}

// Publish calls every matching handler even when one fails and returns
// the joined errors.
func (b *InMemoryBus) Publish(evt event.Event) error {
	b.mu.RLock()
	handlers := make([]HandlerFunc, 0, len(b.handlers[evt.Type])+len(b.catchAll))
	handlers = append(handlers, b.handlers[evt.Type]...)
	handlers = append(handlers, b.catchAll...)
	b.mu.RUnlock()

	var errs []error
	for _, handler := range handlers {
		if err := handler(evt); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
