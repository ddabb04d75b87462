package cart

import (
	"errors"
	"slices"

	"github.com/shopspring/decimal"
)

var (
	ErrOutOfStock    = errors.New("product is out of stock")
	ErrStockExceeded = errors.New("quantity exceeds available stock")
	ErrLineNotFound  = errors.New("product is not in the cart")
)

// DefaultTaxRate is the 16% VAT applied on top of the subtotal.
var DefaultTaxRate = decimal.NewFromFloat(0.16)

type Line struct {
	ProductID int             `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// Cart keeps at most one line per product, in insertion order.
type Cart struct {
	lines []Line
}

func New(lines ...Line) *Cart {
	c := &Cart{}
	for _, l := range lines {
		if l.Quantity <= 0 || c.index(l.ProductID) >= 0 {
			continue
		}
		c.lines = append(c.lines, l)
	}
	c.recompute()
	return c
}

func (c *Cart) Lines() []Line {
	return slices.Clone(c.lines)
}

func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

func (c *Cart) Line(productID int) (Line, bool) {
	i := c.index(productID)
	if i < 0 {
		return Line{}, false
	}
	return c.lines[i], true
}

// Add puts one unit of p in the cart, incrementing the existing line when
// the product is already there.
func (c *Cart) Add(p Product) (Line, error) {
	if p.Stock <= 0 {
		return Line{}, ErrOutOfStock
	}

	if i := c.index(p.ID); i >= 0 {
		if c.lines[i].Quantity >= p.Stock {
			return Line{}, ErrStockExceeded
		}
		c.lines[i].Quantity++
		c.recompute()
		return c.lines[i], nil
	}

	c.lines = append(c.lines, Line{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Quantity:  1,
	})
	c.recompute()
	return c.lines[len(c.lines)-1], nil
}

func (c *Cart) Increment(productID, stock int) (Line, error) {
	i := c.index(productID)
	if i < 0 {
		return Line{}, ErrLineNotFound
	}
	if c.lines[i].Quantity >= stock {
		return Line{}, ErrStockExceeded
	}
	c.lines[i].Quantity++
	c.recompute()
	return c.lines[i], nil
}

// Decrement removes one unit; the line disappears with its last unit.
func (c *Cart) Decrement(productID int) (removed bool, err error) {
	i := c.index(productID)
	if i < 0 {
		return false, ErrLineNotFound
	}
	if c.lines[i].Quantity > 1 {
		c.lines[i].Quantity--
		c.recompute()
		return false, nil
	}
	c.lines = slices.Delete(c.lines, i, i+1)
	return true, nil
}

func (c *Cart) Remove(productID int) error {
	i := c.index(productID)
	if i < 0 {
		return ErrLineNotFound
	}
	c.lines = slices.Delete(c.lines, i, i+1)
	return nil
}

func (c *Cart) Clear() {
	c.lines = nil
}

func (c *Cart) Totals(taxRate decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, l := range c.lines {
		subtotal = subtotal.Add(l.LineTotal)
	}
	tax := subtotal.Mul(taxRate).Round(2)
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}
}

func (c *Cart) index(productID int) int {
	return slices.IndexFunc(c.lines, func(l Line) bool {
		return l.ProductID == productID
	})
}

func (c *Cart) recompute() {
	for i := range c.lines {
		c.lines[i].LineTotal = c.lines[i].Price.Mul(decimal.NewFromInt(int64(c.lines[i].Quantity)))
	}
}
