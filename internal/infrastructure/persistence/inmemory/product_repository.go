package inmemory

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/cart"
)

type ProductRepository struct {
	mu       sync.RWMutex
	products []cart.Product
}

func NewProductRepository(products ...cart.Product) *ProductRepository {
	return &ProductRepository{products: slices.Clone(products)}
}

// DemoCatalog is the stock the terminal starts with when no catalog is
// configured.
func DemoCatalog() []cart.Product {
	return []cart.Product{
		{ID: 1, Name: "Coca Cola 500ml", Price: decimal.RequireFromString("60.00"), Barcode: "1234567890123", Stock: 50},
		{ID: 2, Name: "White Bread", Price: decimal.RequireFromString("45.00"), Barcode: "2345678901234", Stock: 25},
		{ID: 3, Name: "Milk 1L", Price: decimal.RequireFromString("55.00"), Barcode: "3456789012345", Stock: 30},
	}
}

func (r *ProductRepository) FindByID(id int) (cart.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.products {
		if p.ID == id {
			return p, nil
		}
	}
	return cart.Product{}, cart.ErrProductNotFound
}

func (r *ProductRepository) FindByBarcode(barcode string) (cart.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	code := strings.TrimSpace(barcode)
	for _, p := range r.products {
		if p.Barcode == code {
			return p, nil
		}
	}
	return cart.Product{}, cart.ErrProductNotFound
}

// Search matches query against name, barcode and id, case-insensitively.
func (r *ProductRepository) Search(query string) []cart.Product {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))
	var out []cart.Product
	for _, p := range r.products {
		if q == "" ||
			strings.Contains(strings.ToLower(p.Name), q) ||
			strings.Contains(p.Barcode, q) ||
			fmt.Sprint(p.ID) == q {
			out = append(out, p)
		}
	}
	return out
}

func (r *ProductRepository) DecrementStock(id, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.products {
		if r.products[i].ID != id {
			continue
		}
		if r.products[i].Stock < quantity {
			return fmt.Errorf("%w: %s has %d left", cart.ErrStockExceeded, r.products[i].Name, r.products[i].Stock)
		}
		r.products[i].Stock -= quantity
		return nil
	}
	return cart.ErrProductNotFound
}
