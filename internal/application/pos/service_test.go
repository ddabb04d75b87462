package pos_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rcarvalho-pb/pos_terminal-go/internal/application/contracts"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/application/pos"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/apperr"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/cart"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/event"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/sale"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/storage"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/infra/metrics"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/infrastructure/eventbus"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/infrastructure/persistence/inmemory"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/infrastructure/persistence/localstore"
)

type fakePoller struct {
	started []string
	stopped int
	startFn func(ref string) error
}

func (f *fakePoller) Start(_ context.Context, ref string) error {
	f.started = append(f.started, ref)
	if f.startFn != nil {
		return f.startFn(ref)
	}
	return nil
}

func (f *fakePoller) Stop() {
	f.stopped++
}

type fakeRecorder struct {
	recorded []event.Event
}

func (f *fakeRecorder) Record(evt event.Event) error {
	f.recorded = append(f.recorded, evt)
	return nil
}

type recordingDialogs struct {
	notices []contracts.Notice
}

func (d *recordingDialogs) Notify(n contracts.Notice) {
	d.notices = append(d.notices, n)
}

func (d *recordingDialogs) Confirm(contracts.Prompt) <-chan bool {
	ch := make(chan bool, 1)
	ch <- false
	close(ch)
	return ch
}

type noopLogger struct{}

func (n *noopLogger) Info(string, map[string]any)  {}
func (n *noopLogger) Warn(string, map[string]any)  {}
func (n *noopLogger) Error(string, map[string]any) {}

type fixture struct {
	svc      *pos.Service
	store    *inmemory.KVStore
	catalog  *inmemory.ProductRepository
	history  *localstore.SalesHistory
	poller   *fakePoller
	recorder *fakeRecorder
	bus      *eventbus.InMemoryBus
	counters *metrics.Counters
}

func newFixture() *fixture {
	store := inmemory.NewKVStore()
	f := &fixture{
		store:    store,
		catalog:  inmemory.NewProductRepository(inmemory.DemoCatalog()...),
		history:  &localstore.SalesHistory{Store: store},
		poller:   &fakePoller{},
		recorder: &fakeRecorder{},
		bus:      eventbus.NewInMemoryBus(),
		counters: &metrics.Counters{},
	}
	f.svc = &pos.Service{
		Catalog:  f.catalog,
		Sales:    f.history,
		Carts:    &localstore.CartSnapshots{Store: store},
		Poller:   f.poller,
		Recorder: f.recorder,
		EventBus: f.bus,
		Logger:   &noopLogger{},
		Metrics:  f.counters,
		Now:      func() time.Time { return time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC) },
	}
	f.bus.Subscribe(event.PaymentConfirmed, f.svc.HandlePaymentEvent)
	f.bus.Subscribe(event.PaymentStopped, f.svc.HandlePaymentEvent)
	return f
}

func TestService_ScanBarcode_AddsProductAndPersistsCart(t *testing.T) {
	f := newFixture()

	line, err := f.svc.ScanBarcode("1234567890123")
	require.NoError(t, err)
	require.Equal(t, "Coca Cola 500ml", line.Name)

	_, err = f.svc.ScanBarcode("1234567890123")
	require.NoError(t, err)

	lines := f.svc.Lines()
	require.Len(t, lines, 1)
	require.Equal(t, 2, lines[0].Quantity)

	raw, err := f.store.Get(storage.KeyCart)
	require.NoError(t, err)
	var saved []cart.Line
	require.NoError(t, json.Unmarshal(raw, &saved))
	require.Equal(t, 2, saved[0].Quantity)
}

func TestService_ScanBarcode_UnknownCode(t *testing.T) {
	f := newFixture()

	_, err := f.svc.ScanBarcode("0000000000000")

	require.ErrorIs(t, err, cart.ErrProductNotFound)
	require.Empty(t, f.svc.Lines())
}

func TestService_CartActions(t *testing.T) {
	f := newFixture()
	_, err := f.svc.AddProduct(2)
	require.NoError(t, err)

	require.NoError(t, f.svc.CartAction(pos.ActionIncrease, 2))
	require.Equal(t, 2, f.svc.Lines()[0].Quantity)

	require.NoError(t, f.svc.CartAction(pos.ActionDecrease, 2))
	require.NoError(t, f.svc.CartAction(pos.ActionDecrease, 2))
	require.Empty(t, f.svc.Lines())

	_, err = f.svc.AddProduct(3)
	require.NoError(t, err)
	require.NoError(t, f.svc.CartAction(pos.ActionRemove, 3))
	require.Empty(t, f.svc.Lines())

	require.ErrorIs(t, f.svc.CartAction(pos.ActionRemove, 3), cart.ErrLineNotFound)
	require.ErrorIs(t, f.svc.CartAction(pos.Action("explode"), 1), apperr.ErrValidation)
}

func TestService_Restore_LoadsSnapshot(t *testing.T) {
	f := newFixture()
	_, err := f.svc.AddProduct(1)
	require.NoError(t, err)

	restored := &pos.Service{
		Catalog: f.catalog,
		Sales:   f.history,
		Carts:   &localstore.CartSnapshots{Store: f.store},
		Poller:  f.poller,
		Logger:  &noopLogger{},
	}
	require.NoError(t, restored.Restore())

	require.Len(t, restored.Lines(), 1)
	require.Equal(t, "69.60", restored.Totals().Total.StringFixed(2))
}

func TestService_PayCash_InsufficientIsValidationError(t *testing.T) {
	f := newFixture()
	_, err := f.svc.AddProduct(1)
	require.NoError(t, err)

	_, err = f.svc.PayCash(decimal.RequireFromString("50"))

	require.ErrorIs(t, err, apperr.ErrValidation)
	require.Contains(t, apperr.Message(err), "shortage KES 19.60")
	require.Len(t, f.svc.Lines(), 1)
}

func TestService_PayCash_CompletesSale(t *testing.T) {
	f := newFixture()
	_, _ = f.svc.AddProduct(1)
	_, _ = f.svc.AddProduct(1)
	_, _ = f.svc.AddProduct(2)

	s, err := f.svc.PayCash(decimal.RequireFromString("200"))

	require.NoError(t, err)
	require.Equal(t, sale.MethodCash, s.PaymentMethod)
	require.Equal(t, "191.40", s.Total.StringFixed(2))
	require.Equal(t, "8.60", s.PaymentData.Change.StringFixed(2))
	require.True(t, strings.HasPrefix(s.ReceiptNumber, "RCP"))

	require.Empty(t, f.svc.Lines())
	cola, _ := f.catalog.FindByID(1)
	require.Equal(t, 48, cola.Stock)

	recent, err := f.history.Recent(1)
	require.NoError(t, err)
	require.Equal(t, s.ID, recent[0].ID)

	require.Len(t, f.recorder.recorded, 1)
	require.Equal(t, event.SaleCompleted, f.recorder.recorded[0].Type)
	require.Equal(t, uint64(1), f.counters.Load(&f.counters.SalesCompleted))
}

func TestService_PayCash_HistoryWriteFailsKeepsCart(t *testing.T) {
	f := newFixture()
	dialogs := &recordingDialogs{}
	f.svc.Dialogs = dialogs
	_, _ = f.svc.AddProduct(1)
	require.NoError(t, f.store.Set(storage.KeySales, []byte("{corrupt")))

	s, err := f.svc.PayCash(decimal.NewFromInt(1000))

	require.Error(t, err)
	require.Nil(t, s)
	require.Len(t, f.svc.Lines(), 1)
	cola, _ := f.catalog.FindByID(1)
	require.Equal(t, 50, cola.Stock)
	require.Empty(t, f.recorder.recorded)
	require.Zero(t, f.counters.Load(&f.counters.SalesCompleted))

	last := dialogs.notices[len(dialogs.notices)-1]
	require.Equal(t, contracts.LevelError, last.Level)

	// Once storage is healthy again the same cart can be paid.
	require.NoError(t, f.store.Delete(storage.KeySales))
	s, err = f.svc.PayCash(decimal.NewFromInt(1000))
	require.NoError(t, err)
	require.Empty(t, f.svc.Lines())
	recent, err := f.history.Recent(1)
	require.NoError(t, err)
	require.Equal(t, s.ID, recent[0].ID)
}

func TestService_PayCash_EmptyCart(t *testing.T) {
	f := newFixture()

	_, err := f.svc.PayCash(decimal.NewFromInt(100))

	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestService_StartMobilePayment_Validation(t *testing.T) {
	f := newFixture()

	_, err := f.svc.StartMobilePayment(context.Background(), "254712345678")
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, _ = f.svc.AddProduct(1)
	for _, phone := range []string{"0712345678", "25471234567", "2547123456789", "254-12345678"} {
		_, err := f.svc.StartMobilePayment(context.Background(), phone)
		require.ErrorIs(t, err, apperr.ErrValidation, phone)
	}
	require.Empty(t, f.poller.started)
}

func TestService_MobilePayment_ConfirmedCompletesSale(t *testing.T) {
	f := newFixture()
	_, _ = f.svc.AddProduct(3)

	ref, err := f.svc.StartMobilePayment(context.Background(), "254712345678")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(ref, "SALE-"))
	require.Equal(t, []string{ref}, f.poller.started)

	_, err = f.svc.AddProduct(1)
	require.ErrorIs(t, err, apperr.ErrConflict)
	_, err = f.svc.StartMobilePayment(context.Background(), "254712345678")
	require.ErrorIs(t, err, apperr.ErrConflict)

	err = f.bus.Publish(event.Event{
		Type: event.PaymentConfirmed,
		Payload: event.PaymentConfirmedPayload{
			TransactionRef: ref,
			ReceiptCode:    "QKX12AB34C",
			Amount:         decimal.RequireFromString("63.80"),
		},
	})
	require.NoError(t, err)

	_, pending := f.svc.Pending()
	require.False(t, pending)
	require.Empty(t, f.svc.Lines())

	recent, err := f.history.Recent(1)
	require.NoError(t, err)
	require.Equal(t, ref, recent[0].ID)
	require.Equal(t, sale.MethodMpesa, recent[0].PaymentMethod)
	require.Equal(t, "QKX12AB34C", recent[0].PaymentData.MpesaCode)
	require.Equal(t, "254712345678", recent[0].PaymentData.Phone)
}

func TestService_MobilePayment_HistoryWriteFailsKeepsPending(t *testing.T) {
	f := newFixture()
	_, _ = f.svc.AddProduct(3)
	ref, err := f.svc.StartMobilePayment(context.Background(), "254712345678")
	require.NoError(t, err)
	require.NoError(t, f.store.Set(storage.KeySales, []byte("{corrupt")))

	err = f.bus.Publish(event.Event{
		Type: event.PaymentConfirmed,
		Payload: event.PaymentConfirmedPayload{
			TransactionRef: ref,
			ReceiptCode:    "QKX12AB34C",
			Amount:         decimal.RequireFromString("63.80"),
		},
	})

	require.Error(t, err)
	pending, ok := f.svc.Pending()
	require.True(t, ok)
	require.Equal(t, ref, pending.Ref)
	require.Len(t, f.svc.Lines(), 1)
	milk, _ := f.catalog.FindByID(3)
	require.Equal(t, 30, milk.Stock)
	require.Empty(t, f.recorder.recorded)
}

func TestService_MobilePayment_StoppedUnlocksCart(t *testing.T) {
	f := newFixture()
	_, _ = f.svc.AddProduct(1)
	ref, err := f.svc.StartMobilePayment(context.Background(), "254712345678")
	require.NoError(t, err)

	require.NoError(t, f.bus.Publish(event.Event{
		Type:    event.PaymentStopped,
		Payload: event.PaymentStoppedPayload{TransactionRef: ref},
	}))

	_, pending := f.svc.Pending()
	require.False(t, pending)
	_, err = f.svc.AddProduct(1)
	require.NoError(t, err)
}

func TestService_MobilePayment_ConfirmationForOtherRefIsIgnored(t *testing.T) {
	f := newFixture()
	_, _ = f.svc.AddProduct(1)
	_, err := f.svc.StartMobilePayment(context.Background(), "254712345678")
	require.NoError(t, err)

	require.NoError(t, f.bus.Publish(event.Event{
		Type:    event.PaymentConfirmed,
		Payload: event.PaymentConfirmedPayload{TransactionRef: "SALE-OTHER"},
	}))

	_, pending := f.svc.Pending()
	require.True(t, pending)
	require.Len(t, f.svc.Lines(), 1)
}

func TestService_StartMobilePayment_PollerRejects(t *testing.T) {
	f := newFixture()
	f.poller.startFn = func(string) error { return apperr.Conflict("busy") }
	_, _ = f.svc.AddProduct(1)

	_, err := f.svc.StartMobilePayment(context.Background(), "254712345678")

	require.ErrorIs(t, err, apperr.ErrConflict)
	_, pending := f.svc.Pending()
	require.False(t, pending)
}

func TestService_CancelMobilePayment(t *testing.T) {
	f := newFixture()
	_, _ = f.svc.AddProduct(1)
	_, err := f.svc.StartMobilePayment(context.Background(), "254712345678")
	require.NoError(t, err)

	f.svc.CancelMobilePayment()

	require.Equal(t, 1, f.poller.stopped)
	_, pending := f.svc.Pending()
	require.False(t, pending)
}

func TestService_HandlePaymentEvent_BadPayload(t *testing.T) {
	f := newFixture()

	err := f.svc.HandlePaymentEvent(event.Event{Type: event.PaymentConfirmed, Payload: "nope"})

	require.Error(t, err)
	require.False(t, errors.Is(err, apperr.ErrValidation))
}

func TestReceipt_Cash(t *testing.T) {
	price := decimal.RequireFromString("60.00")
	s := &sale.Sale{
		ReceiptNumber: "RCP1",
		Timestamp:     time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC),
		Items:         []cart.Line{{Name: "Coca Cola 500ml", Price: price, Quantity: 2, LineTotal: price.Mul(decimal.NewFromInt(2))}},
		Subtotal:      decimal.RequireFromString("120"),
		Tax:           decimal.RequireFromString("19.20"),
		Total:         decimal.RequireFromString("139.20"),
		PaymentMethod: sale.MethodCash,
		PaymentData:   sale.PaymentData{AmountReceived: decimal.NewFromInt(150), Change: decimal.RequireFromString("10.80")},
	}

	text := pos.Receipt(s)

	require.Contains(t, text, "RECEIPT - RCP1")
	require.Contains(t, text, "Payment: CASH")
	require.Contains(t, text, "  2 x KES 60.00 = KES 120.00")
	require.Contains(t, text, "TOTAL: KES 139.20")
	require.Contains(t, text, "Change: KES 10.80")
	require.NotContains(t, text, "MPesa Code")
}
