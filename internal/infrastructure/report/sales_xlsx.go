package report

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/sale"
)

const (
	SalesSheet = "Sales"
	ItemsSheet = "Items"
)

var (
	salesHeader = []any{"Receipt", "Sale ID", "Date", "Payment", "Items", "Subtotal", "VAT", "Total", "Received", "Change", "Phone", "MPesa Code", "Status"}
	itemsHeader = []any{"Receipt", "Product ID", "Product", "Quantity", "Unit Price", "Line Total"}
)

// WriteSalesXLSX writes one row per sale and one row per sold line.
func WriteSalesXLSX(w io.Writer, sales []sale.Sale) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SalesSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(ItemsSheet); err != nil {
		return err
	}

	if err := f.SetSheetRow(SalesSheet, "A1", &salesHeader); err != nil {
		return err
	}
	if err := f.SetSheetRow(ItemsSheet, "A1", &itemsHeader); err != nil {
		return err
	}

	itemRow := 2
	for i, s := range sales {
		row := []any{
			s.ReceiptNumber,
			s.ID,
			s.Timestamp.Format("2006-01-02 15:04:05"),
			string(s.PaymentMethod),
			len(s.Items),
			money(s.Subtotal),
			money(s.Tax),
			money(s.Total),
			money(s.PaymentData.AmountReceived),
			money(s.PaymentData.Change),
			s.PaymentData.Phone,
			s.PaymentData.MpesaCode,
			string(s.Status),
		}
		if err := f.SetSheetRow(SalesSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return err
		}

		for _, l := range s.Items {
			line := []any{
				s.ReceiptNumber,
				l.ProductID,
				l.Name,
				l.Quantity,
				money(l.Price),
				money(l.LineTotal),
			}
			if err := f.SetSheetRow(ItemsSheet, fmt.Sprintf("A%d", itemRow), &line); err != nil {
				return err
			}
			itemRow++
		}
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetRowStyle(SalesSheet, 1, 1, style); err != nil {
		return err
	}
	if err := f.SetRowStyle(ItemsSheet, 1, 1, style); err != nil {
		return err
	}

	return f.Write(w)
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
