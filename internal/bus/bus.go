package bus

import (
	"context"
	"sync"
	"time"

	"github.com/cx-tal-miterani/flightpulse/pkg/logger"
	"github.com/google/uuid"
)

// Event is a classified event on the bus: a workflow trigger such as
// flight.delay.major, or an outbound notification.
type Event struct {
	ID         string         `json:"id"`
	Source     string         `json:"source"`
	DetailType string         `json:"detail_type"`
	Time       time.Time      `json:"time"`
	Detail     map[string]any `json:"detail"`
}

// Handler consumes one event. Handlers that need to do long-running work
// should move it off the publishing goroutine themselves.
type Handler func(ctx context.Context, evt Event)

// Bus is a typed in-process publish/subscribe channel. Delivery is
// at-most-once from the publisher's point of view.
type Bus struct {
	mu   sync.RWMutex
	subs map[string][]Handler
	log  logger.Logger
}

// New creates an empty bus.
func New(log logger.Logger) *Bus {
	return &Bus{
		subs: make(map[string][]Handler),
		log:  log,
	}
}

// Subscribe registers a handler for one detail type.
func (b *Bus) Subscribe(detailType string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[detailType] = append(b.subs[detailType], h)
}

// Publish delivers an event to every subscriber of its detail type, in the
// caller's goroutine. Events with no subscriber are dropped.
func (b *Bus) Publish(ctx context.Context, source, detailType string, detail map[string]any) {
	evt := Event{
		ID:         uuid.New().String(),
		Source:     source,
		DetailType: detailType,
		Time:       time.Now().UTC(),
		Detail:     detail,
	}

	b.mu.RLock()
	handlers := b.subs[detailType]
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.log.Debug("no subscribers for event", "detailType", detailType)
		return
	}
	for _, h := range handlers {
		h(ctx, evt)
	}
}
