package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rcarvalho-pb/pos_terminal-go/internal/application/contracts"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/application/worker"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/apperr"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/event"
	domainPayment "github.com/rcarvalho-pb/pos_terminal-go/internal/domain/payment"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/infra/logging"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/infra/metrics"
)

// Poller drives status checks for one in-flight mobile-money payment and
// resolves it to exactly one outcome.
//
// State moves Idle -> Polling -> {Timeout | AwaitingAck -> Closed}; Stop
// returns to Idle from anywhere. Every transition that abandons scheduled
// work bumps the session generation, and results carrying an older
// generation are dropped.
type Poller struct {
	Gateway   domainPayment.Gateway
	Scheduler worker.Scheduler
	EventBus  contracts.EventPublisher
	Dialogs   contracts.Dialogs
	Logger    logging.Logger
	Metrics   *metrics.Counters

	Interval       time.Duration
	MaxAttempts    int
	RequestTimeout time.Duration

	mu      sync.Mutex
	gen     uint64
	session *domainPayment.Session
	task    worker.Task
}

// Snapshot is a copy of the poller state for display.
type Snapshot struct {
	State   domainPayment.State
	Session domainPayment.Session
}

func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session == nil {
		return Snapshot{State: domainPayment.StateIdle}
	}
	s := *p.session
	if s.Received != nil {
		received := *s.Received
		s.Received = &received
	}
	return Snapshot{State: s.State, Session: s}
}

// Start opens a session for transactionRef, checks its status right away
// and then every Interval. A second Start while a session is active is
// rejected and leaves that session untouched.
func (p *Poller) Start(ctx context.Context, transactionRef string) error {
	ref := strings.TrimSpace(transactionRef)
	if ref == "" {
		return apperr.Validation("transaction reference is required")
	}

	p.mu.Lock()
	if p.session != nil && p.session.Active {
		active := p.session.TransactionRef
		p.mu.Unlock()

		p.Logger.Warn("payment session already active", map[string]any{
			"transaction-ref": ref,
			"active-ref":      active,
		})
		p.notify(contracts.Notice{
			Level:   contracts.LevelWarning,
			Title:   "Payment check already in progress",
			Message: "Please wait for the current payment to complete.",
		})
		return apperr.Conflict(fmt.Sprintf("payment %s is still in progress", active))
	}

	p.cancelTaskLocked()
	p.gen++
	s := &domainPayment.Session{
		TransactionRef: ref,
		MaxAttempts:    p.maxAttempts(),
		Active:         true,
		State:          domainPayment.StatePolling,
		Generation:     p.gen,
		StartedAt:      time.Now(),
	}
	p.session = s
	gen := s.Generation
	p.mu.Unlock()

	p.Logger.Info("payment polling started", map[string]any{
		"transaction-ref": ref,
		"max-attempts":    s.MaxAttempts,
		"interval":        p.interval().String(),
	})
	p.publish(event.Event{
		Type: event.PaymentPollStarted,
		Payload: event.PaymentPollStartedPayload{
			TransactionRef: ref,
			MaxAttempts:    s.MaxAttempts,
			Interval:       p.interval(),
		},
	})

	p.begin(ctx, gen)
	return nil
}

// Tick runs one scheduled check for the current session.
func (p *Poller) Tick(ctx context.Context) {
	p.mu.Lock()
	gen := p.gen
	p.mu.Unlock()

	p.tick(ctx, gen)
}

// HandleResult applies a status result issued for generation gen. It
// reports false when the result was discarded as stale.
func (p *Poller) HandleResult(gen uint64, result domainPayment.StatusResult) bool {
	p.mu.Lock()
	s := p.session
	if !p.currentLocked(gen, domainPayment.StatePolling) {
		p.mu.Unlock()

		p.Metrics.IncStaleResults()
		p.Logger.Info("discarding stale status result", map[string]any{
			"generation": gen,
			"kind":       string(result.Kind),
		})
		return false
	}

	switch result.Kind {
	case domainPayment.ResultCompleted:
		received := result.Completed
		if received.MpesaID == "" {
			received.MpesaID = received.ReceiptCode
		}
		s.State = domainPayment.StateAwaitingAck
		s.Received = &received
		p.cancelTaskLocked()
		ref := s.TransactionRef
		p.mu.Unlock()

		p.Metrics.IncPaymentsReceived()
		p.Logger.Info("payment received", map[string]any{
			"transaction-ref": ref,
			"receipt":         received.ReceiptCode,
			"amount":          received.Amount.StringFixed(2),
		})
		p.publish(event.Event{
			Type: event.PaymentReceived,
			Payload: event.PaymentReceivedPayload{
				TransactionRef: ref,
				Amount:         received.Amount,
				PayerPhone:     received.PayerPhone,
				PayerName:      received.PayerName,
				ReceiptCode:    received.ReceiptCode,
				MpesaID:        received.MpesaID,
			},
		})
		p.notify(contracts.Notice{
			Level: contracts.LevelSuccess,
			Title: "Payment received",
			Message: fmt.Sprintf("Amount: KES %s\nPhone: %s\nCustomer: %s\nMPesa code: %s\nConfirm to complete the sale.",
				received.Amount.StringFixed(2),
				orDefault(received.PayerPhone, "N/A"),
				orDefault(received.PayerName, "Walk-in Customer"),
				orDefault(received.ReceiptCode, "N/A"),
			),
		})

	case domainPayment.ResultPending:
		ref := s.TransactionRef
		attempt := s.Attempts
		remaining := time.Duration(s.RemainingAttempts()) * p.interval()
		p.mu.Unlock()

		p.publish(event.Event{
			Type: event.PaymentPending,
			Payload: event.PaymentPendingPayload{
				TransactionRef: ref,
				Attempt:        attempt,
				Remaining:      remaining,
				TillNumber:     result.Pending.TillNumber,
				Amount:         result.Pending.Amount,
			},
		})

	default:
		ref := s.TransactionRef
		attempt := s.Attempts
		p.mu.Unlock()

		p.Metrics.IncStatusFailures()
		p.Logger.Error("payment status check failed", map[string]any{
			"transaction-ref": ref,
			"attempt":         attempt,
			"reason":          result.Failed.Reason,
		})
		p.publish(event.Event{
			Type: event.PaymentCheckFailed,
			Payload: event.PaymentCheckFailedPayload{
				TransactionRef: ref,
				Attempt:        attempt,
				Reason:         result.Failed.Reason,
			},
		})
	}

	return true
}

// Confirm finalizes a received payment with the backend. On failure the
// session stays in AwaitingAck so the operator can retry.
func (p *Poller) Confirm(ctx context.Context) error {
	p.mu.Lock()
	s := p.session
	if s == nil || s.State != domainPayment.StateAwaitingAck || s.Received == nil {
		p.mu.Unlock()
		return apperr.Validation("no received payment is awaiting confirmation")
	}
	if s.Confirming {
		p.mu.Unlock()
		return apperr.Conflict("payment confirmation already in progress")
	}
	s.Confirming = true
	gen := s.Generation
	ref := s.TransactionRef
	received := *s.Received
	p.mu.Unlock()

	reqCtx, cancel := p.requestContext(ctx)
	err := p.Gateway.ConfirmPayment(reqCtx, received.MpesaID, ref)
	cancel()

	p.mu.Lock()
	current := p.currentLocked(gen, domainPayment.StateAwaitingAck)
	if current {
		p.session.Confirming = false
	}

	if err != nil {
		p.mu.Unlock()

		if !errors.Is(err, apperr.ErrTransientNetwork) {
			err = apperr.Transient("failed to confirm payment", err)
		}
		p.Logger.Error("payment confirmation failed", map[string]any{
			"transaction-ref": ref,
			"error":           err.Error(),
		})
		p.publish(event.Event{
			Type: event.PaymentConfirmFailed,
			Payload: event.PaymentConfirmFailedPayload{
				TransactionRef: ref,
				Reason:         apperr.Message(err),
			},
		})
		p.notify(contracts.Notice{
			Level:   contracts.LevelError,
			Title:   "Payment confirmation failed",
			Message: apperr.Message(err),
		})
		return err
	}

	if current {
		p.session.State = domainPayment.StateClosed
		p.session.Active = false
		p.gen++
	}
	p.mu.Unlock()

	p.Metrics.IncPaymentsConfirmed()
	p.Logger.Info("payment confirmed", map[string]any{
		"transaction-ref": ref,
		"receipt":         received.ReceiptCode,
	})
	p.publish(event.Event{
		Type: event.PaymentConfirmed,
		Payload: event.PaymentConfirmedPayload{
			TransactionRef: ref,
			ReceiptCode:    received.ReceiptCode,
			PayerPhone:     received.PayerPhone,
			Amount:         received.Amount,
		},
	})
	p.notify(contracts.Notice{
		Level:   contracts.LevelSuccess,
		Title:   "Payment confirmed successfully",
		Message: fmt.Sprintf("Sale %s is paid.", ref),
	})
	return nil
}

// Stop discards the session from any state. Results and ticks that were
// already in flight become no-ops.
func (p *Poller) Stop() {
	p.stop("stopped by operator")
}

// Retry re-enters Polling after a timeout with a fresh attempt budget.
func (p *Poller) Retry(ctx context.Context) error {
	p.mu.Lock()
	s := p.session
	if s == nil || s.State != domainPayment.StateTimeout {
		p.mu.Unlock()
		return apperr.Validation("no timed-out payment to retry")
	}
	p.gen++
	s.Generation = p.gen
	s.Attempts = 0
	s.Active = true
	s.State = domainPayment.StatePolling
	gen := s.Generation
	ref := s.TransactionRef
	p.mu.Unlock()

	p.Logger.Info("payment polling retried", map[string]any{"transaction-ref": ref})
	p.begin(ctx, gen)
	return nil
}

// Abandon gives up on a timed-out payment.
func (p *Poller) Abandon() error {
	p.mu.Lock()
	timedOut := p.session != nil && p.session.State == domainPayment.StateTimeout
	p.mu.Unlock()

	if !timedOut {
		return apperr.Validation("no timed-out payment to abandon")
	}
	p.stop("abandoned after timeout")
	p.notify(contracts.Notice{
		Level:   contracts.LevelInfo,
		Title:   "Payment cancelled",
		Message: "You can switch to cash payment or start a new transaction.",
	})
	return nil
}

func (p *Poller) begin(ctx context.Context, gen uint64) {
	task := p.Scheduler.Every(p.interval(), func() {
		p.tick(ctx, gen)
	})

	p.mu.Lock()
	if !p.currentLocked(gen, domainPayment.StatePolling) {
		p.mu.Unlock()
		task.Cancel()
		return
	}
	p.cancelTaskLocked()
	p.task = task
	p.mu.Unlock()

	p.tick(ctx, gen)
}

func (p *Poller) tick(ctx context.Context, gen uint64) {
	p.mu.Lock()
	s := p.session
	if !p.currentLocked(gen, domainPayment.StatePolling) {
		p.mu.Unlock()
		return
	}

	s.Attempts++
	if s.Attempts > s.MaxAttempts {
		s.State = domainPayment.StateTimeout
		s.Active = false
		p.cancelTaskLocked()
		p.gen++
		s.Generation = p.gen
		ref := s.TransactionRef
		attempts := s.Attempts - 1
		timeoutGen := s.Generation
		p.mu.Unlock()

		p.timedOut(ctx, timeoutGen, ref, attempts)
		return
	}
	ref := s.TransactionRef
	p.mu.Unlock()

	p.Metrics.IncStatusChecks()

	reqCtx, cancel := p.requestContext(ctx)
	result, err := p.Gateway.CheckStatus(reqCtx, ref)
	cancel()
	if err != nil {
		result = domainPayment.FailedResult(err.Error())
	}

	p.HandleResult(gen, result)
}

func (p *Poller) timedOut(ctx context.Context, gen uint64, ref string, attempts int) {
	p.Metrics.IncPaymentTimeouts()
	p.Logger.Warn("payment polling timed out", map[string]any{
		"transaction-ref": ref,
		"attempts":        attempts,
	})
	p.publish(event.Event{
		Type: event.PaymentTimedOut,
		Payload: event.PaymentTimedOutPayload{
			TransactionRef: ref,
			Attempts:       attempts,
		},
	})

	if p.Dialogs == nil {
		return
	}

	reply := p.Dialogs.Confirm(contracts.Prompt{
		Title: "PAYMENT TIMEOUT - No payment received",
		Message: "Possible reasons: the customer cancelled, entered a wrong PIN, has insufficient funds, or the network is down.\n" +
			"Ask the customer to check their phone and verify the number.\n\n" +
			"Would you like to try the payment again?",
		Accept:  "Retry",
		Decline: "Abandon",
	})

	go func() {
		var retry bool
		select {
		case retry = <-reply:
		case <-ctx.Done():
			return
		}

		p.mu.Lock()
		current := p.currentLocked(gen, domainPayment.StateTimeout)
		p.mu.Unlock()
		if !current {
			return
		}

		if retry {
			if err := p.Retry(ctx); err != nil {
				p.Logger.Error("retry after timeout failed", map[string]any{"error": err.Error()})
			}
			return
		}
		if err := p.Abandon(); err != nil {
			p.Logger.Error("abandon after timeout failed", map[string]any{"error": err.Error()})
		}
	}()
}

func (p *Poller) stop(reason string) {
	p.mu.Lock()
	p.cancelTaskLocked()
	p.gen++
	s := p.session
	p.session = nil
	p.mu.Unlock()

	if s == nil || s.State == domainPayment.StateClosed {
		return
	}

	p.Logger.Info("payment polling stopped", map[string]any{
		"transaction-ref": s.TransactionRef,
		"state":           s.State.String(),
		"reason":          reason,
	})
	p.publish(event.Event{
		Type: event.PaymentStopped,
		Payload: event.PaymentStoppedPayload{
			TransactionRef: s.TransactionRef,
			Reason:         reason,
		},
	})
}

func (p *Poller) currentLocked(gen uint64, want domainPayment.State) bool {
	return p.session != nil && p.session.Generation == gen && p.session.State == want
}

func (p *Poller) cancelTaskLocked() {
	if p.task != nil {
		p.task.Cancel()
		p.task = nil
	}
}

func (p *Poller) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.RequestTimeout > 0 {
		return context.WithTimeout(ctx, p.RequestTimeout)
	}
	return context.WithCancel(ctx)
}

func (p *Poller) publish(evt event.Event) {
	if p.EventBus == nil {
		return
	}
	if err := p.EventBus.Publish(evt); err != nil {
		p.Logger.Error("event handler failed", map[string]any{
			"event": string(evt.Type),
			"error": err.Error(),
		})
	}
}

func (p *Poller) notify(n contracts.Notice) {
	if p.Dialogs != nil {
		p.Dialogs.Notify(n)
	}
}

func (p *Poller) interval() time.Duration {
	if p.Interval <= 0 {
		return domainPayment.DefaultPollInterval
	}
	return p.Interval
}

func (p *Poller) maxAttempts() int {
	if p.MaxAttempts <= 0 {
		return domainPayment.DefaultMaxAttempts
	}
	return p.MaxAttempts
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
