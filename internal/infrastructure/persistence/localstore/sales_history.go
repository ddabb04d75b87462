// Package localstore keeps the terminal's JSON documents in a
// storage.Store under fixed keys.
package localstore

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/sale"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/storage"
)

const DefaultSalesLimit = 100

// SalesHistory is a newest-first list of completed sales capped at Limit.
type SalesHistory struct {
	Store storage.Store
	Limit int

	mu sync.Mutex
}

func (h *SalesHistory) Save(s *sale.Sale) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	sales, err := h.load()
	if err != nil {
		return err
	}

	sales = append([]sale.Sale{*s}, sales...)
	if limit := h.limit(); len(sales) > limit {
		sales = sales[:limit]
	}

	raw, err := json.Marshal(sales)
	if err != nil {
		return err
	}
	return h.Store.Set(storage.KeySales, raw)
}

// Recent returns up to limit sales, newest first. limit <= 0 means all.
func (h *SalesHistory) Recent(limit int) ([]sale.Sale, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sales, err := h.load()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(sales) > limit {
		sales = sales[:limit]
	}
	return sales, nil
}

func (h *SalesHistory) load() ([]sale.Sale, error) {
	raw, err := h.Store.Get(storage.KeySales)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var sales []sale.Sale
	if err := json.Unmarshal(raw, &sales); err != nil {
		return nil, err
	}
	return sales, nil
}

func (h *SalesHistory) limit() int {
	if h.Limit <= 0 {
		return DefaultSalesLimit
	}
	return h.Limit
}
