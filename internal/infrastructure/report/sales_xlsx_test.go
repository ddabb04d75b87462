package report_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/cart"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/sale"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/infrastructure/report"
)

func TestWriteSalesXLSX(t *testing.T) {
	price := decimal.RequireFromString("60.00")
	sales := []sale.Sale{
		{
			ID:            "SALE-1",
			ReceiptNumber: "RCP1",
			Items: []cart.Line{
				{ProductID: 1, Name: "Coca Cola 500ml", Price: price, Quantity: 2, LineTotal: decimal.RequireFromString("120.00")},
				{ProductID: 3, Name: "Milk 1L", Price: decimal.RequireFromString("55.00"), Quantity: 1, LineTotal: decimal.RequireFromString("55.00")},
			},
			Subtotal:      decimal.RequireFromString("175.00"),
			Tax:           decimal.RequireFromString("28.00"),
			Total:         decimal.RequireFromString("203.00"),
			PaymentMethod: sale.MethodMpesa,
			PaymentData:   sale.PaymentData{Phone: "254712345678", MpesaCode: "QKX12AB34C"},
			Timestamp:     time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC),
			Status:        sale.StatusCompleted,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, report.WriteSalesXLSX(&buf, sales))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, []string{report.SalesSheet, report.ItemsSheet}, f.GetSheetList())

	rows, err := f.GetRows(report.SalesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "Receipt", rows[0][0])
	require.Equal(t, "RCP1", rows[1][0])
	require.Equal(t, "mpesa", rows[1][3])
	require.Equal(t, "203", rows[1][7])
	require.Equal(t, "QKX12AB34C", rows[1][11])

	items, err := f.GetRows(report.ItemsSheet)
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.Equal(t, "Milk 1L", items[2][2])
}

func TestWriteSalesXLSX_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report.WriteSalesXLSX(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(report.SalesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
