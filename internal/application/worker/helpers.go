package worker

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewSaleRef returns the client-visible transaction reference of a sale.
func NewSaleRef() string {
	return "SALE-" + strings.ToUpper(uuid.NewString()[:8])
}

func NewReceiptNumber(now time.Time) string {
	return fmt.Sprintf("RCP%d", now.UnixMilli())
}

func NewID() string {
	return uuid.NewString()
}
