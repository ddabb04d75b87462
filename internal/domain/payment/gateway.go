package payment

import "context"

type StatusChecker interface {
	CheckStatus(ctx context.Context, transactionRef string) (StatusResult, error)
}

type Confirmer interface {
	ConfirmPayment(ctx context.Context, mpesaID, saleID string) error
}

// Gateway is the remote side of a mobile-money payment.
type Gateway interface {
	StatusChecker
	Confirmer
}
