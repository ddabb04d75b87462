package inmemory

import (
	"sync"

	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/payment"
)

type PaymentLedger struct {
	mu       sync.RWMutex
	txs      map[string]*payment.Transaction
	mpesaIDs map[string]string
}

func NewPaymentLedger() *PaymentLedger {
	return &PaymentLedger{
		txs:      make(map[string]*payment.Transaction),
		mpesaIDs: make(map[string]string),
	}
}

func (l *PaymentLedger) SaveIfNotExist(tx *payment.Transaction) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.txs[tx.Ref]; exists {
		return false, nil
	}

	cp := *tx
	l.txs[tx.Ref] = &cp
	if tx.MpesaID != "" {
		l.mpesaIDs[tx.MpesaID] = tx.Ref
	}
	return true, nil
}

func (l *PaymentLedger) FindByRef(ref string) (*payment.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	tx, ok := l.txs[ref]
	if !ok {
		return nil, payment.ErrTransactionNotFound
	}
	cp := *tx
	return &cp, nil
}

func (l *PaymentLedger) FindByMpesaID(mpesaID string) (*payment.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ref, ok := l.mpesaIDs[mpesaID]
	if !ok {
		return nil, payment.ErrTransactionNotFound
	}
	cp := *l.txs[ref]
	return &cp, nil
}

func (l *PaymentLedger) Update(tx *payment.Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.txs[tx.Ref]; !ok {
		return payment.ErrTransactionNotFound
	}

	cp := *tx
	l.txs[tx.Ref] = &cp
	if tx.MpesaID != "" {
		l.mpesaIDs[tx.MpesaID] = tx.Ref
	}
	return nil
}

func (l *PaymentLedger) Transactions() map[string]*payment.Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]*payment.Transaction, len(l.txs))
	for ref, tx := range l.txs {
		cp := *tx
		out[ref] = &cp
	}
	return out
}
