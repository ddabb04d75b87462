package payment

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidTransition   = errors.New("invalid transaction state")
)

type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxCompleted TxStatus = "completed"
	TxConfirmed TxStatus = "confirmed"
)

// Transaction is the backend's record of a mobile-money payment for one
// sale reference.
type Transaction struct {
	Ref          string
	Status       TxStatus
	Amount       decimal.Decimal
	Phone        string
	CustomerName string
	ReceiptCode  string
	MpesaID      string
	TillNumber   string
	SaleID       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Ledger stores backend transactions.
type Ledger interface {
	// SaveIfNotExist reports whether tx was inserted; an existing ref wins.
	SaveIfNotExist(tx *Transaction) (bool, error)
	FindByRef(ref string) (*Transaction, error)
	FindByMpesaID(mpesaID string) (*Transaction, error)
	Update(tx *Transaction) error
}
