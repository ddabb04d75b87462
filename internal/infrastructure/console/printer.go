package console

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/event"
)

// Printer renders terminal events as status lines.
type Printer struct {
	Out io.Writer

	mu sync.Mutex
}

func (p *Printer) Handle(evt event.Event) error {
	line := describe(evt)
	if line == "" {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintln(p.Out, line)
	return err
}

func describe(evt event.Event) string {
	switch pl := evt.Payload.(type) {
	case event.PaymentPollStartedPayload:
		return fmt.Sprintf("... waiting for payment %s (checking every %s, up to %d times)",
			pl.TransactionRef, pl.Interval, pl.MaxAttempts)
	case event.PaymentPendingPayload:
		s := fmt.Sprintf("... payment %s pending, check %d, about %s left",
			pl.TransactionRef, pl.Attempt, pl.Remaining.Round(time.Second))
		if pl.TillNumber != "" {
			s += fmt.Sprintf(", till %s", pl.TillNumber)
		}
		if !pl.Amount.IsZero() {
			s += fmt.Sprintf(", KES %s", pl.Amount.StringFixed(2))
		}
		return s
	case event.PaymentCheckFailedPayload:
		return fmt.Sprintf("!!! status check %d for %s failed: %s", pl.Attempt, pl.TransactionRef, pl.Reason)
	case event.PaymentReceivedPayload:
		return fmt.Sprintf(">>> payment %s received: KES %s from %s (%s). Type 'confirm' to finish the sale.",
			pl.TransactionRef, pl.Amount.StringFixed(2), pl.PayerPhone, pl.ReceiptCode)
	case event.PaymentTimedOutPayload:
		return fmt.Sprintf("!!! payment %s timed out after %d checks", pl.TransactionRef, pl.Attempts)
	case event.PaymentStoppedPayload:
		return fmt.Sprintf("--- payment %s stopped: %s", pl.TransactionRef, pl.Reason)
	case event.CartUpdatedPayload:
		return fmt.Sprintf("cart: %d line(s), subtotal KES %s, VAT KES %s, total KES %s",
			pl.Lines, pl.Subtotal.StringFixed(2), pl.Tax.StringFixed(2), pl.Total.StringFixed(2))
	}
	return ""
}
