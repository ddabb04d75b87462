package cart

import (
	"errors"

	"github.com/shopspring/decimal"
)

var ErrProductNotFound = errors.New("product not found")

type Product struct {
	ID      int             `json:"id"`
	Name    string          `json:"name"`
	Price   decimal.Decimal `json:"price"`
	Barcode string          `json:"barcode"`
	Stock   int             `json:"stock"`
}

type Catalog interface {
	FindByID(id int) (Product, error)
	FindByBarcode(barcode string) (Product, error)
	Search(query string) []Product
	DecrementStock(id, quantity int) error
}
