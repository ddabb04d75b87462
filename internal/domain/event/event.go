package event

type Type string

const (
	PaymentPollStarted   Type = "PAYMENT_POLL_STARTED"
	PaymentPending       Type = "PAYMENT_PENDING"
	PaymentCheckFailed   Type = "PAYMENT_CHECK_FAILED"
	PaymentReceived      Type = "PAYMENT_RECEIVED"
	PaymentTimedOut      Type = "PAYMENT_TIMED_OUT"
	PaymentStopped       Type = "PAYMENT_STOPPED"
	PaymentConfirmed     Type = "PAYMENT_CONFIRMED"
	PaymentConfirmFailed Type = "PAYMENT_CONFIRM_FAILED"

	BarcodeScanned Type = "BARCODE_SCANNED"
	CartUpdated    Type = "CART_UPDATED"
	SaleCompleted  Type = "SALE_COMPLETED"
)

type Event struct {
	Type    Type
	Payload any
}
