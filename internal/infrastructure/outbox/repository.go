package outbox

import (
	"context"
	"time"

	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/event"
)

type OutboxEvent struct {
	ID        string
	Type      event.Type
	Payload   []byte
	Published bool
	CreatedAt time.Time
}

type Repository interface {
	Save(OutboxEvent) error
	FindUnpublished(int) ([]OutboxEvent, error)
	MarkPublished(string) error
}

// Publisher ships a recorded event to the upstream sales service.
type Publisher interface {
	Publish(ctx context.Context, evt OutboxEvent) error
}
