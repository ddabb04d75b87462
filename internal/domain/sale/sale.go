package sale

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/cart"
)

type Status string

const (
	StatusCompleted Status = "completed"
	StatusVoided    Status = "voided"
)

type Method string

const (
	MethodCash  Method = "cash"
	MethodMpesa Method = "mpesa"
)

type PaymentData struct {
	AmountReceived decimal.Decimal `json:"amount_received"`
	Change         decimal.Decimal `json:"change"`
	Phone          string          `json:"phone,omitempty"`
	MpesaCode      string          `json:"mpesa_code,omitempty"`
}

type Sale struct {
	ID            string          `json:"id"`
	ReceiptNumber string          `json:"receipt_number"`
	Items         []cart.Line     `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod Method          `json:"payment_method"`
	PaymentData   PaymentData     `json:"payment_data"`
	Timestamp     time.Time       `json:"timestamp"`
	Status        Status          `json:"status"`
}
