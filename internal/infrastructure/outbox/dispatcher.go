package outbox

import (
	"context"
	"time"

	"github.com/rcarvalho-pb/pos_terminal-go/internal/application/worker"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/infra/logging"
)

// Dispatcher drains unpublished events in creation order. An event that
// fails to publish stays in the outbox and is retried on a later pass.
// Consecutive failures back off according to Retry.
type Dispatcher struct {
	Repo         Repository
	Publisher    Publisher
	Logger       logging.Logger
	PollInterval time.Duration
	BatchSize    int
	Retry        worker.RetryPolicy
}

func (d *Dispatcher) Run(ctx context.Context) {
	failures := 0
	for {
		wait := d.PollInterval
		if failures > 0 {
			if delay := d.Retry.Delay(failures); delay > wait {
				wait = delay
			}
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if _, err := d.dispatch(ctx); err != nil {
			failures++
		} else {
			failures = 0
		}
	}
}

// DispatchOnce returns how many events were published.
func (d *Dispatcher) DispatchOnce(ctx context.Context) int {
	n, _ := d.dispatch(ctx)
	return n
}

func (d *Dispatcher) dispatch(ctx context.Context) (int, error) {
	events, err := d.Repo.FindUnpublished(d.batchSize())
	if err != nil {
		d.Logger.Error("outbox read failed", map[string]any{"error": err.Error()})
		return 0, err
	}

	published := 0
	for _, evt := range events {
		if ctx.Err() != nil {
			return published, nil
		}

		if err := d.Publisher.Publish(ctx, evt); err != nil {
			d.Logger.Warn("outbox publish failed", map[string]any{
				"id":    evt.ID,
				"event": string(evt.Type),
				"error": err.Error(),
			})
			// keep order: later events wait for this one
			return published, err
		}

		if err := d.Repo.MarkPublished(evt.ID); err != nil {
			d.Logger.Error("outbox mark failed", map[string]any{"id": evt.ID, "error": err.Error()})
			return published, err
		}
		published++
	}

	if published > 0 {
		d.Logger.Info("outbox dispatched", map[string]any{"count": published})
	}
	return published, nil
}

func (d *Dispatcher) batchSize() int {
	if d.BatchSize <= 0 {
		return 50
	}
	return d.BatchSize
}
