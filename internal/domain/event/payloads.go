package event

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentPollStartedPayload struct {
	TransactionRef string
	MaxAttempts    int
	Interval       time.Duration
}

type PaymentPendingPayload struct {
	TransactionRef string
	Attempt        int
	Remaining      time.Duration
	TillNumber     string
	Amount         decimal.Decimal
}

type PaymentCheckFailedPayload struct {
	TransactionRef string
	Attempt        int
	Reason         string
}

type PaymentReceivedPayload struct {
	TransactionRef string
	Amount         decimal.Decimal
	PayerPhone     string
	PayerName      string
	ReceiptCode    string
	MpesaID        string
}

type PaymentTimedOutPayload struct {
	TransactionRef string
	Attempts       int
}

type PaymentStoppedPayload struct {
	TransactionRef string
	Reason         string
}

type PaymentConfirmedPayload struct {
	TransactionRef string
	ReceiptCode    string
	PayerPhone     string
	Amount         decimal.Decimal
}

type PaymentConfirmFailedPayload struct {
	TransactionRef string
	Reason         string
}

type BarcodeScannedPayload struct {
	Code    string
	FocusID string
}

type CartUpdatedPayload struct {
	Lines    int
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

type SaleCompletedPayload struct {
	SaleID        string          `json:"sale_id"`
	ReceiptNumber string          `json:"receipt_number"`
	PaymentMethod string          `json:"payment_method"`
	Total         decimal.Decimal `json:"total"`
	CompletedAt   time.Time       `json:"completed_at"`
}
