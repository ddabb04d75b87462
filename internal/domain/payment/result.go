package payment

import "github.com/shopspring/decimal"

type ResultKind string

const (
	ResultCompleted ResultKind = "completed"
	ResultPending   ResultKind = "pending"
	ResultFailed    ResultKind = "failed"
)

type Completed struct {
	Amount      decimal.Decimal
	PayerPhone  string
	PayerName   string
	ReceiptCode string
	MpesaID     string
}

type Pending struct {
	TillNumber string
	Amount     decimal.Decimal
}

type Failed struct {
	Reason string
}

// StatusResult carries exactly one of Completed, Pending or Failed,
// selected by Kind.
type StatusResult struct {
	Kind      ResultKind
	Completed Completed
	Pending   Pending
	Failed    Failed
}

func CompletedResult(c Completed) StatusResult {
	return StatusResult{Kind: ResultCompleted, Completed: c}
}

func PendingResult(p Pending) StatusResult {
	return StatusResult{Kind: ResultPending, Pending: p}
}

func FailedResult(reason string) StatusResult {
	return StatusResult{Kind: ResultFailed, Failed: Failed{Reason: reason}}
}
