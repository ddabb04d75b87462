package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/event"
)

// Recorder stores events for later delivery by the Dispatcher.
type Recorder struct {
	Repo Repository
	Now  func() time.Time
}

func (r *Recorder) Record(evt event.Event) error {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", evt.Type, err)
	}

	now := time.Now
	if r.Now != nil {
		now = r.Now
	}

	return r.Repo.Save(OutboxEvent{
		ID:        uuid.NewString(),
		Type:      evt.Type,
		Payload:   payload,
		CreatedAt: now().UTC(),
	})
}
