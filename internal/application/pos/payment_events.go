package pos

import (
	"errors"

	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/event"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/sale"
)

// HandlePaymentEvent completes or releases the pending mobile payment in
// response to poller outcomes. Events for other references are ignored.
func (s *Service) HandlePaymentEvent(evt event.Event) error {
	switch evt.Type {
	case event.PaymentConfirmed:
		payload, ok := evt.Payload.(event.PaymentConfirmedPayload)
		if !ok {
			return errors.New("invalid payload for PaymentConfirmed")
		}

		pending, ok := s.Pending()
		if !ok || pending.Ref != payload.TransactionRef {
			s.Logger.Warn("confirmation for unknown payment", map[string]any{
				"transaction-ref": payload.TransactionRef,
			})
			return nil
		}

		if !payload.Amount.IsZero() && !payload.Amount.Equal(pending.Totals.Total) {
			s.Logger.Warn("paid amount differs from sale total", map[string]any{
				"transaction-ref": payload.TransactionRef,
				"paid":            payload.Amount.StringFixed(2),
				"total":           pending.Totals.Total.StringFixed(2),
			})
		}

		phone := pending.Phone
		if payload.PayerPhone != "" {
			phone = payload.PayerPhone
		}
		_, err := s.completeSale(payload.TransactionRef, sale.MethodMpesa, sale.PaymentData{
			AmountReceived: payload.Amount,
			Phone:          phone,
			MpesaCode:      payload.ReceiptCode,
		})
		return err

	case event.PaymentStopped:
		payload, ok := evt.Payload.(event.PaymentStoppedPayload)
		if !ok {
			return errors.New("invalid payload for PaymentStopped")
		}

		s.mu.Lock()
		if s.pending != nil && s.pending.Ref == payload.TransactionRef {
			s.pending = nil
		}
		s.mu.Unlock()
		return nil
	}
	return nil
}
