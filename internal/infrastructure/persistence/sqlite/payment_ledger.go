package sqlite

import (
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/payment"
)

type PaymentLedger struct {
	db *sql.DB
}

func NewPaymentLedger(db *sql.DB) *PaymentLedger {
	return &PaymentLedger{db: db}
}

func (l *PaymentLedger) SaveIfNotExist(tx *payment.Transaction) (bool, error) {
	res, err := l.db.Exec(
		`INSERT OR IGNORE INTO transactions
		 (ref, status, amount, phone, customer_name, receipt_code, mpesa_id, till_number, sale_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.Ref,
		string(tx.Status),
		tx.Amount.String(),
		tx.Phone,
		tx.CustomerName,
		tx.ReceiptCode,
		tx.MpesaID,
		tx.TillNumber,
		tx.SaleID,
		tx.CreatedAt.UTC(),
		tx.UpdatedAt.UTC(),
	)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	// 0 rows = ref already known
	return affected == 1, nil
}

func (l *PaymentLedger) FindByRef(ref string) (*payment.Transaction, error) {
	return l.findOne(`WHERE ref = ?`, ref)
}

func (l *PaymentLedger) FindByMpesaID(mpesaID string) (*payment.Transaction, error) {
	if mpesaID == "" {
		return nil, payment.ErrTransactionNotFound
	}
	return l.findOne(`WHERE mpesa_id = ?`, mpesaID)
}

func (l *PaymentLedger) findOne(where string, arg any) (*payment.Transaction, error) {
	row := l.db.QueryRow(
		`SELECT ref, status, amount, phone, customer_name, receipt_code, mpesa_id, till_number, sale_id, created_at, updated_at
		 FROM transactions `+where+` LIMIT 1`,
		arg,
	)

	var (
		tx     payment.Transaction
		status string
		amount string
	)
	if err := row.Scan(
		&tx.Ref,
		&status,
		&amount,
		&tx.Phone,
		&tx.CustomerName,
		&tx.ReceiptCode,
		&tx.MpesaID,
		&tx.TillNumber,
		&tx.SaleID,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, payment.ErrTransactionNotFound
		}
		return nil, err
	}

	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, err
	}
	tx.Amount = amt
	tx.Status = payment.TxStatus(status)
	return &tx, nil
}

func (l *PaymentLedger) Update(tx *payment.Transaction) error {
	res, err := l.db.Exec(
		`UPDATE transactions
		 SET status = ?, amount = ?, phone = ?, customer_name = ?, receipt_code = ?,
		     mpesa_id = ?, till_number = ?, sale_id = ?, updated_at = ?
		 WHERE ref = ?`,
		string(tx.Status),
		tx.Amount.String(),
		tx.Phone,
		tx.CustomerName,
		tx.ReceiptCode,
		tx.MpesaID,
		tx.TillNumber,
		tx.SaleID,
		time.Now().UTC(),
		tx.Ref,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return payment.ErrTransactionNotFound
	}

	return nil
}
