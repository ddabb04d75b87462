package pos

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rcarvalho-pb/pos_terminal-go/internal/application/contracts"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/application/worker"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/apperr"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/cart"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/event"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/sale"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/infra/logging"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/infra/metrics"
)

var phonePattern = regexp.MustCompile(`^254[0-9]{9}$`)

type Action string

const (
	ActionIncrease Action = "increase"
	ActionDecrease Action = "decrease"
	ActionRemove   Action = "remove"
)

type CartStore interface {
	Save([]cart.Line) error
	Load() ([]cart.Line, error)
}

// PaymentPoller is the part of the payment poller checkout drives.
type PaymentPoller interface {
	Start(ctx context.Context, transactionRef string) error
	Stop()
}

// MobilePayment is a mobile-money payment waiting for the poller.
type MobilePayment struct {
	Ref    string
	Phone  string
	Totals cart.Totals
}

// Service is the checkout counter: it owns the cart and turns payments
// into completed sales.
type Service struct {
	Catalog  cart.Catalog
	Sales    sale.Repository
	Carts    CartStore
	Poller   PaymentPoller
	Recorder contracts.EventRecorder
	EventBus contracts.EventPublisher
	Dialogs  contracts.Dialogs
	Logger   logging.Logger
	Metrics  *metrics.Counters
	TaxRate  decimal.Decimal
	Now      func() time.Time

	mu      sync.Mutex
	cart    *cart.Cart
	pending *MobilePayment
}

// Restore reloads the cart snapshot saved by a previous run.
func (s *Service) Restore() error {
	lines, err := s.Carts.Load()
	if err != nil {
		return fmt.Errorf("restore cart: %w", err)
	}

	s.mu.Lock()
	s.cart = cart.New(lines...)
	n := len(s.cart.Lines())
	s.mu.Unlock()

	if n > 0 {
		s.Logger.Info("cart restored", map[string]any{"lines": n})
	}
	return nil
}

func (s *Service) Lines() []cart.Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cartLocked().Lines()
}

func (s *Service) Totals() cart.Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cartLocked().Totals(s.taxRate())
}

func (s *Service) Pending() (MobilePayment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil {
		return MobilePayment{}, false
	}
	return *s.pending, true
}

func (s *Service) Search(query string) []cart.Product {
	return s.Catalog.Search(query)
}

// ScanBarcode adds the product with the scanned barcode to the cart.
func (s *Service) ScanBarcode(code string) (cart.Line, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return cart.Line{}, apperr.Validation("barcode is empty")
	}

	p, err := s.Catalog.FindByBarcode(code)
	if err != nil {
		if errors.Is(err, cart.ErrProductNotFound) {
			s.notify(contracts.LevelWarning, "Product not found",
				fmt.Sprintf("No product for barcode %s. Verify the barcode or add the product to inventory first.", code))
		}
		return cart.Line{}, fmt.Errorf("barcode %s: %w", code, err)
	}

	return s.add(p)
}

func (s *Service) AddProduct(productID int) (cart.Line, error) {
	p, err := s.Catalog.FindByID(productID)
	if err != nil {
		return cart.Line{}, fmt.Errorf("product %d: %w", productID, err)
	}
	return s.add(p)
}

func (s *Service) add(p cart.Product) (cart.Line, error) {
	s.mu.Lock()
	if err := s.unlockedCartLocked(); err != nil {
		s.mu.Unlock()
		return cart.Line{}, err
	}
	line, err := s.cartLocked().Add(p)
	if err != nil {
		s.mu.Unlock()
		s.stockNotice(p, err)
		return cart.Line{}, err
	}
	lines, totals := s.snapshotLocked()
	s.mu.Unlock()

	s.cartChanged(lines, totals)
	s.notify(contracts.LevelSuccess, "Added to cart",
		fmt.Sprintf("%s x%d @ KES %s", line.Name, line.Quantity, line.Price.StringFixed(2)))
	return line, nil
}

func (s *Service) CartAction(action Action, productID int) error {
	var product cart.Product
	if action == ActionIncrease {
		p, err := s.Catalog.FindByID(productID)
		if err != nil {
			return fmt.Errorf("product %d: %w", productID, err)
		}
		product = p
	}

	s.mu.Lock()
	if err := s.unlockedCartLocked(); err != nil {
		s.mu.Unlock()
		return err
	}

	c := s.cartLocked()
	var err error
	switch action {
	case ActionIncrease:
		_, err = c.Increment(productID, product.Stock)
	case ActionDecrease:
		_, err = c.Decrement(productID)
	case ActionRemove:
		err = c.Remove(productID)
	default:
		err = apperr.Validation(fmt.Sprintf("unknown cart action %q", action))
	}
	if err != nil {
		s.mu.Unlock()
		if action == ActionIncrease {
			s.stockNotice(product, err)
		}
		return err
	}
	lines, totals := s.snapshotLocked()
	s.mu.Unlock()

	s.cartChanged(lines, totals)
	return nil
}

// PayCash completes the sale when received covers the total.
func (s *Service) PayCash(received decimal.Decimal) (*sale.Sale, error) {
	s.mu.Lock()
	if err := s.unlockedCartLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	c := s.cartLocked()
	if c.IsEmpty() {
		s.mu.Unlock()
		return nil, apperr.Validation("cart is empty, add items before taking payment")
	}
	totals := c.Totals(s.taxRate())
	s.mu.Unlock()

	if received.LessThan(totals.Total) {
		return nil, apperr.Validation(fmt.Sprintf(
			"insufficient amount received: required KES %s, received KES %s, shortage KES %s",
			totals.Total.StringFixed(2),
			received.StringFixed(2),
			totals.Total.Sub(received).StringFixed(2),
		))
	}

	return s.completeSale(worker.NewID(), sale.MethodCash, sale.PaymentData{
		AmountReceived: received,
		Change:         received.Sub(totals.Total),
	})
}

// StartMobilePayment opens a mobile-money payment for the current cart
// and hands its reference to the poller.
func (s *Service) StartMobilePayment(ctx context.Context, phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if !phonePattern.MatchString(phone) {
		return "", apperr.Validation("invalid phone number format, use 254XXXXXXXXX")
	}

	s.mu.Lock()
	if s.pending != nil {
		ref := s.pending.Ref
		s.mu.Unlock()
		return "", apperr.Conflict(fmt.Sprintf("payment %s is still in progress", ref))
	}
	c := s.cartLocked()
	if c.IsEmpty() {
		s.mu.Unlock()
		return "", apperr.Validation("cart is empty, add items before selecting payment method")
	}
	pending := &MobilePayment{
		Ref:    worker.NewSaleRef(),
		Phone:  phone,
		Totals: c.Totals(s.taxRate()),
	}
	s.pending = pending
	s.mu.Unlock()

	if err := s.Poller.Start(ctx, pending.Ref); err != nil {
		s.mu.Lock()
		if s.pending == pending {
			s.pending = nil
		}
		s.mu.Unlock()
		return "", err
	}

	s.Logger.Info("mobile payment started", map[string]any{
		"transaction-ref": pending.Ref,
		"phone":           phone,
		"total":           pending.Totals.Total.StringFixed(2),
	})
	s.notify(contracts.LevelInfo, "MPesa payment request sent",
		fmt.Sprintf("Amount KES %s to %s. Customer should check their phone. Verification has started.",
			pending.Totals.Total.StringFixed(2), phone))
	return pending.Ref, nil
}

// CancelMobilePayment stops polling and unlocks the cart.
func (s *Service) CancelMobilePayment() {
	s.Poller.Stop()

	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
}

func (s *Service) completeSale(id string, method sale.Method, data sale.PaymentData) (*sale.Sale, error) {
	now := s.now()

	s.mu.Lock()
	c := s.cartLocked()
	if c.IsEmpty() {
		s.mu.Unlock()
		return nil, apperr.Validation("cart is empty")
	}
	totals := c.Totals(s.taxRate())
	sl := &sale.Sale{
		ID:            id,
		ReceiptNumber: worker.NewReceiptNumber(now),
		Items:         c.Lines(),
		Subtotal:      totals.Subtotal,
		Tax:           totals.Tax,
		Total:         totals.Total,
		PaymentMethod: method,
		PaymentData:   data,
		Timestamp:     now,
		Status:        sale.StatusCompleted,
	}
	// The sale is stored before the cart is released so a failed write
	// leaves the cart, the pending payment and the stock untouched.
	if err := s.Sales.Save(sl); err != nil {
		s.mu.Unlock()
		s.Logger.Error("sale not stored", map[string]any{
			"sale-id": sl.ID,
			"method":  string(method),
			"error":   err.Error(),
		})
		s.notify(contracts.LevelError, "Sale could not be saved",
			fmt.Sprintf("Sale %s was not recorded and the cart was kept. Check the terminal storage and try again.", sl.ID))
		return nil, fmt.Errorf("store sale: %w", err)
	}

	completed := event.Event{
		Type: event.SaleCompleted,
		Payload: event.SaleCompletedPayload{
			SaleID:        sl.ID,
			ReceiptNumber: sl.ReceiptNumber,
			PaymentMethod: string(sl.PaymentMethod),
			Total:         sl.Total,
			CompletedAt:   sl.Timestamp,
		},
	}
	if s.Recorder != nil {
		if err := s.Recorder.Record(completed); err != nil {
			s.Logger.Error("outbox record failed", map[string]any{"sale-id": sl.ID, "error": err.Error()})
		}
	}

	c.Clear()
	s.pending = nil
	lines, cleared := s.snapshotLocked()
	s.mu.Unlock()

	for _, l := range sl.Items {
		if err := s.Catalog.DecrementStock(l.ProductID, l.Quantity); err != nil {
			s.Logger.Error("stock update failed", map[string]any{
				"sale-id":    sl.ID,
				"product-id": l.ProductID,
				"error":      err.Error(),
			})
		}
	}

	s.cartChanged(lines, cleared)
	s.Metrics.IncSalesCompleted()
	s.Logger.Info("sale completed", map[string]any{
		"sale-id": sl.ID,
		"receipt": sl.ReceiptNumber,
		"method":  string(sl.PaymentMethod),
		"total":   sl.Total.StringFixed(2),
	})
	s.publish(completed)
	s.notify(contracts.LevelSuccess, "SALE COMPLETED SUCCESSFULLY!", Receipt(sl))

	return sl, nil
}

func (s *Service) cartChanged(lines []cart.Line, totals cart.Totals) {
	if err := s.Carts.Save(lines); err != nil {
		s.Logger.Error("cart snapshot failed", map[string]any{"error": err.Error()})
	}
	s.publish(event.Event{
		Type: event.CartUpdated,
		Payload: event.CartUpdatedPayload{
			Lines:    len(lines),
			Subtotal: totals.Subtotal,
			Tax:      totals.Tax,
			Total:    totals.Total,
		},
	})
}

func (s *Service) stockNotice(p cart.Product, err error) {
	switch {
	case errors.Is(err, cart.ErrOutOfStock):
		s.notify(contracts.LevelWarning, "Out of stock",
			fmt.Sprintf("%s is out of stock. Please restock before selling.", p.Name))
	case errors.Is(err, cart.ErrStockExceeded):
		s.notify(contracts.LevelWarning, "Not enough stock",
			fmt.Sprintf("Cannot add more %s. Only %d items available in stock.", p.Name, p.Stock))
	}
}

// unlockedCartLocked rejects cart edits while a mobile payment for the
// current cart is in flight.
func (s *Service) unlockedCartLocked() error {
	if s.pending != nil {
		return apperr.Conflict(fmt.Sprintf("cart is locked by payment %s", s.pending.Ref))
	}
	return nil
}

func (s *Service) snapshotLocked() ([]cart.Line, cart.Totals) {
	c := s.cartLocked()
	return c.Lines(), c.Totals(s.taxRate())
}

func (s *Service) cartLocked() *cart.Cart {
	if s.cart == nil {
		s.cart = cart.New()
	}
	return s.cart
}

func (s *Service) taxRate() decimal.Decimal {
	if s.TaxRate.IsZero() {
		return cart.DefaultTaxRate
	}
	return s.TaxRate
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *Service) publish(evt event.Event) {
	if s.EventBus == nil {
		return
	}
	if err := s.EventBus.Publish(evt); err != nil {
		s.Logger.Error("event handler failed", map[string]any{
			"event": string(evt.Type),
			"error": err.Error(),
		})
	}
}

func (s *Service) notify(level contracts.Level, title, msg string) {
	if s.Dialogs != nil {
		s.Dialogs.Notify(contracts.Notice{Level: level, Title: title, Message: msg})
	}
}
