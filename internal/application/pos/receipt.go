package pos

import (
	"fmt"
	"strings"

	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/sale"
)

const receiptRule = "=============================="

// Receipt renders s as the plain-text slip shown after a sale.
func Receipt(s *sale.Sale) string {
	var b strings.Builder

	fmt.Fprintf(&b, "RECEIPT - %s\n", s.ReceiptNumber)
	fmt.Fprintf(&b, "Date: %s\n", s.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Payment: %s\n\n", strings.ToUpper(string(s.PaymentMethod)))

	b.WriteString(receiptRule + "\n")
	b.WriteString("ITEMS:\n")
	for _, l := range s.Items {
		fmt.Fprintf(&b, "%s\n  %d x KES %s = KES %s\n",
			l.Name, l.Quantity, l.Price.StringFixed(2), l.LineTotal.StringFixed(2))
	}
	b.WriteString("\n" + receiptRule + "\n")

	fmt.Fprintf(&b, "Subtotal: KES %s\n", s.Subtotal.StringFixed(2))
	fmt.Fprintf(&b, "VAT (16%%): KES %s\n", s.Tax.StringFixed(2))
	fmt.Fprintf(&b, "TOTAL: KES %s\n\n", s.Total.StringFixed(2))

	switch s.PaymentMethod {
	case sale.MethodMpesa:
		fmt.Fprintf(&b, "MPesa Code: %s\n", s.PaymentData.MpesaCode)
	case sale.MethodCash:
		fmt.Fprintf(&b, "Cash: KES %s\n", s.PaymentData.AmountReceived.StringFixed(2))
		fmt.Fprintf(&b, "Change: KES %s\n", s.PaymentData.Change.StringFixed(2))
	}

	b.WriteString("\nThank you for your business!\n")
	return b.String()
}
