package payment_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rcarvalho-pb/pos_terminal-go/internal/application/contracts"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/application/payment"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/apperr"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/event"
	domainPayment "github.com/rcarvalho-pb/pos_terminal-go/internal/domain/payment"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/infra/metrics"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/testutil"
)

type fakeGateway struct {
	mu        sync.Mutex
	checks    int
	confirms  []confirmCall
	checkFn   func(ref string) (domainPayment.StatusResult, error)
	confirmFn func(mpesaID, saleID string) error
}

type confirmCall struct {
	MpesaID string
	SaleID  string
}

func (f *fakeGateway) CheckStatus(_ context.Context, ref string) (domainPayment.StatusResult, error) {
	f.mu.Lock()
	f.checks++
	f.mu.Unlock()
	return f.checkFn(ref)
}

func (f *fakeGateway) ConfirmPayment(_ context.Context, mpesaID, saleID string) error {
	f.mu.Lock()
	f.confirms = append(f.confirms, confirmCall{MpesaID: mpesaID, SaleID: saleID})
	f.mu.Unlock()
	if f.confirmFn == nil {
		return nil
	}
	return f.confirmFn(mpesaID, saleID)
}

func (f *fakeGateway) Checks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checks
}

type recordingBus struct {
	mu     sync.Mutex
	events []event.Event
}

func (b *recordingBus) Publish(evt event.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, evt)
	return nil
}

func (b *recordingBus) OfType(t event.Type) []event.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []event.Event
	for _, evt := range b.events {
		if evt.Type == t {
			out = append(out, evt)
		}
	}
	return out
}

type fakeDialogs struct {
	mu      sync.Mutex
	notices []contracts.Notice
	prompts []contracts.Prompt
	replies []chan bool
}

func (d *fakeDialogs) Notify(n contracts.Notice) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notices = append(d.notices, n)
}

func (d *fakeDialogs) Confirm(p contracts.Prompt) <-chan bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := make(chan bool, 1)
	d.prompts = append(d.prompts, p)
	d.replies = append(d.replies, ch)
	return ch
}

func (d *fakeDialogs) Prompts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.prompts)
}

func (d *fakeDialogs) Answer(i int, v bool) {
	d.mu.Lock()
	ch := d.replies[i]
	d.mu.Unlock()
	ch <- v
	close(ch)
}

type noopLogger struct{}

func (n *noopLogger) Info(string, map[string]any)  {}
func (n *noopLogger) Warn(string, map[string]any)  {}
func (n *noopLogger) Error(string, map[string]any) {}

func pending() (domainPayment.StatusResult, error) {
	return domainPayment.PendingResult(domainPayment.Pending{
		TillNumber: "174379",
		Amount:     decimal.RequireFromString("500.00"),
	}), nil
}

type fixture struct {
	poller    *payment.Poller
	gateway   *fakeGateway
	scheduler *testutil.ManualScheduler
	bus       *recordingBus
	dialogs   *fakeDialogs
	counters  *metrics.Counters
}

func newFixture(checkFn func(string) (domainPayment.StatusResult, error)) *fixture {
	f := &fixture{
		gateway:   &fakeGateway{checkFn: checkFn},
		scheduler: &testutil.ManualScheduler{},
		bus:       &recordingBus{},
		dialogs:   &fakeDialogs{},
		counters:  &metrics.Counters{},
	}
	f.poller = &payment.Poller{
		Gateway:   f.gateway,
		Scheduler: f.scheduler,
		EventBus:  f.bus,
		Dialogs:   f.dialogs,
		Logger:    &noopLogger{},
		Metrics:   f.counters,
		Interval:  3 * time.Second,
	}
	return f
}

func TestPoller_Start_PendingShowsWaitIndicator(t *testing.T) {
	f := newFixture(func(string) (domainPayment.StatusResult, error) { return pending() })

	err := f.poller.Start(context.Background(), "SALE-1")

	require.NoError(t, err)
	snap := f.poller.Snapshot()
	require.Equal(t, domainPayment.StatePolling, snap.State)
	require.Equal(t, 1, snap.Session.Attempts)
	require.True(t, snap.Session.Active)
	require.Equal(t, 1, f.gateway.Checks())
	require.Equal(t, 1, f.scheduler.Live())

	evts := f.bus.OfType(event.PaymentPending)
	require.Len(t, evts, 1)
	p := evts[0].Payload.(event.PaymentPendingPayload)
	require.Equal(t, "SALE-1", p.TransactionRef)
	require.Equal(t, 1, p.Attempt)
	require.Equal(t, 59*3*time.Second, p.Remaining)
	require.Equal(t, "174379", p.TillNumber)
	require.Equal(t, "500.00", p.Amount.StringFixed(2))
}

func TestPoller_Start_RejectsEmptyRef(t *testing.T) {
	f := newFixture(func(string) (domainPayment.StatusResult, error) { return pending() })

	err := f.poller.Start(context.Background(), "  ")

	require.ErrorIs(t, err, apperr.ErrValidation)
	require.Equal(t, domainPayment.StateIdle, f.poller.Snapshot().State)
	require.Zero(t, f.gateway.Checks())
}

func TestPoller_Start_WhileActive_IsConflictAndLeavesSessionAlone(t *testing.T) {
	f := newFixture(func(string) (domainPayment.StatusResult, error) { return pending() })
	require.NoError(t, f.poller.Start(context.Background(), "SALE-1"))
	f.scheduler.FireN(2)

	err := f.poller.Start(context.Background(), "SALE-2")

	require.ErrorIs(t, err, apperr.ErrConflict)
	snap := f.poller.Snapshot()
	require.Equal(t, "SALE-1", snap.Session.TransactionRef)
	require.Equal(t, 3, snap.Session.Attempts)
	require.Equal(t, 3, f.gateway.Checks())
	require.Equal(t, 1, f.scheduler.Live())
	require.Len(t, f.bus.OfType(event.PaymentPollStarted), 1)
}

func TestPoller_TimesOutExactlyOnce(t *testing.T) {
	f := newFixture(func(string) (domainPayment.StatusResult, error) { return pending() })
	require.NoError(t, f.poller.Start(context.Background(), "SALE-1"))

	f.scheduler.FireN(60)

	require.Equal(t, 60, f.gateway.Checks())
	require.Equal(t, domainPayment.StateTimeout, f.poller.Snapshot().State)
	require.False(t, f.poller.Snapshot().Session.Active)
	require.Zero(t, f.scheduler.Live())

	f.scheduler.FireN(5)
	f.poller.Tick(context.Background())

	require.Equal(t, 60, f.gateway.Checks())
	timeouts := f.bus.OfType(event.PaymentTimedOut)
	require.Len(t, timeouts, 1)
	require.Equal(t, 60, timeouts[0].Payload.(event.PaymentTimedOutPayload).Attempts)
	require.Equal(t, uint64(1), f.counters.Load(&f.counters.PaymentTimeouts))
	require.Equal(t, 1, f.dialogs.Prompts())
}

func TestPoller_TimeoutPrompt_RetryResetsAttempts(t *testing.T) {
	f := newFixture(func(string) (domainPayment.StatusResult, error) { return pending() })
	f.poller.MaxAttempts = 3
	require.NoError(t, f.poller.Start(context.Background(), "SALE-1"))
	f.scheduler.FireN(3)
	require.Equal(t, domainPayment.StateTimeout, f.poller.Snapshot().State)

	f.dialogs.Answer(0, true)

	require.Eventually(t, func() bool {
		snap := f.poller.Snapshot()
		return snap.State == domainPayment.StatePolling && snap.Session.Attempts == 1
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, 4, f.gateway.Checks())
	require.Equal(t, 1, f.scheduler.Live())
}

func TestPoller_TimeoutPrompt_AbandonReturnsToIdle(t *testing.T) {
	f := newFixture(func(string) (domainPayment.StatusResult, error) { return pending() })
	f.poller.MaxAttempts = 2
	require.NoError(t, f.poller.Start(context.Background(), "SALE-1"))
	f.scheduler.FireN(2)

	f.dialogs.Answer(0, false)

	require.Eventually(t, func() bool {
		return f.poller.Snapshot().State == domainPayment.StateIdle
	}, time.Second, 5*time.Millisecond)
	require.Len(t, f.bus.OfType(event.PaymentStopped), 1)
}

func TestPoller_TimeoutPrompt_AnswerAfterNewStartIsIgnored(t *testing.T) {
	f := newFixture(func(string) (domainPayment.StatusResult, error) { return pending() })
	f.poller.MaxAttempts = 1
	require.NoError(t, f.poller.Start(context.Background(), "SALE-1"))
	f.scheduler.Fire()
	require.NoError(t, f.poller.Start(context.Background(), "SALE-2"))

	f.dialogs.Answer(0, false)
	time.Sleep(20 * time.Millisecond)

	snap := f.poller.Snapshot()
	require.Equal(t, domainPayment.StatePolling, snap.State)
	require.Equal(t, "SALE-2", snap.Session.TransactionRef)
}

func TestPoller_Completed_ThenConfirmCloses(t *testing.T) {
	f := newFixture(func(string) (domainPayment.StatusResult, error) {
		return domainPayment.CompletedResult(domainPayment.Completed{
			Amount:      decimal.RequireFromString("500.00"),
			PayerPhone:  "254712345678",
			PayerName:   "Jane W.",
			ReceiptCode: "QKX12AB34C",
		}), nil
	})
	require.NoError(t, f.poller.Start(context.Background(), "SALE-1"))

	snap := f.poller.Snapshot()
	require.Equal(t, domainPayment.StateAwaitingAck, snap.State)
	require.Zero(t, f.scheduler.Live())
	received := f.bus.OfType(event.PaymentReceived)
	require.Len(t, received, 1)
	p := received[0].Payload.(event.PaymentReceivedPayload)
	require.Equal(t, "500.00", p.Amount.StringFixed(2))
	require.Equal(t, "254712345678", p.PayerPhone)
	require.Equal(t, "QKX12AB34C", p.MpesaID)

	require.NoError(t, f.poller.Confirm(context.Background()))

	require.Equal(t, []confirmCall{{MpesaID: "QKX12AB34C", SaleID: "SALE-1"}}, f.gateway.confirms)
	snap = f.poller.Snapshot()
	require.Equal(t, domainPayment.StateClosed, snap.State)
	require.False(t, snap.Session.Active)
	require.Len(t, f.bus.OfType(event.PaymentConfirmed), 1)

	err := f.poller.Confirm(context.Background())
	require.ErrorIs(t, err, apperr.ErrValidation)
	require.Len(t, f.gateway.confirms, 1)

	require.NoError(t, f.poller.Start(context.Background(), "SALE-2"))
}

func TestPoller_Confirm_FailureStaysAwaitingAck(t *testing.T) {
	f := newFixture(func(string) (domainPayment.StatusResult, error) {
		return domainPayment.CompletedResult(domainPayment.Completed{
			Amount:      decimal.NewFromInt(120),
			ReceiptCode: "QKX",
			MpesaID:     "MP-77",
		}), nil
	})
	calls := 0
	f.gateway.confirmFn = func(string, string) error {
		calls++
		if calls == 1 {
			return apperr.Transient("till is closed", nil)
		}
		return nil
	}
	require.NoError(t, f.poller.Start(context.Background(), "SALE-9"))

	err := f.poller.Confirm(context.Background())

	require.ErrorIs(t, err, apperr.ErrTransientNetwork)
	require.Equal(t, "till is closed", apperr.Message(err))
	require.Equal(t, domainPayment.StateAwaitingAck, f.poller.Snapshot().State)
	require.Len(t, f.bus.OfType(event.PaymentConfirmFailed), 1)

	require.NoError(t, f.poller.Confirm(context.Background()))
	require.Equal(t, "MP-77", f.gateway.confirms[1].MpesaID)
	require.Equal(t, domainPayment.StateClosed, f.poller.Snapshot().State)
}

func TestPoller_Confirm_WrapsPlainErrorsAsTransient(t *testing.T) {
	f := newFixture(func(string) (domainPayment.StatusResult, error) {
		return domainPayment.CompletedResult(domainPayment.Completed{ReceiptCode: "R1"}), nil
	})
	f.gateway.confirmFn = func(string, string) error { return errors.New("connection refused") }
	require.NoError(t, f.poller.Start(context.Background(), "SALE-3"))

	err := f.poller.Confirm(context.Background())

	require.ErrorIs(t, err, apperr.ErrTransientNetwork)
	require.Contains(t, err.Error(), "connection refused")
}

func TestPoller_FailedResultsKeepPolling(t *testing.T) {
	f := newFixture(func(string) (domainPayment.StatusResult, error) {
		return domainPayment.StatusResult{}, errors.New("502 bad gateway")
	})
	require.NoError(t, f.poller.Start(context.Background(), "SALE-1"))

	f.scheduler.FireN(4)

	require.Equal(t, domainPayment.StatePolling, f.poller.Snapshot().State)
	require.Equal(t, 5, f.gateway.Checks())
	require.Equal(t, uint64(5), f.counters.Load(&f.counters.StatusFailures))
	failed := f.bus.OfType(event.PaymentCheckFailed)
	require.Len(t, failed, 5)
	require.Equal(t, "502 bad gateway", failed[0].Payload.(event.PaymentCheckFailedPayload).Reason)
}

func TestPoller_ResultAfterStop_IsDiscarded(t *testing.T) {
	f := newFixture(func(string) (domainPayment.StatusResult, error) { return pending() })
	require.NoError(t, f.poller.Start(context.Background(), "SALE-1"))
	gen := f.poller.Snapshot().Session.Generation

	f.poller.Stop()
	applied := f.poller.HandleResult(gen, domainPayment.CompletedResult(domainPayment.Completed{
		Amount: decimal.NewFromInt(500),
	}))

	require.False(t, applied)
	require.Equal(t, domainPayment.StateIdle, f.poller.Snapshot().State)
	require.Empty(t, f.bus.OfType(event.PaymentReceived))
	require.Zero(t, f.scheduler.Live())
	require.Equal(t, uint64(1), f.counters.Load(&f.counters.StaleResults))
}

func TestPoller_SecondCompletedForSameGeneration_IsDiscarded(t *testing.T) {
	f := newFixture(func(string) (domainPayment.StatusResult, error) { return pending() })
	require.NoError(t, f.poller.Start(context.Background(), "SALE-1"))
	gen := f.poller.Snapshot().Session.Generation
	completed := domainPayment.CompletedResult(domainPayment.Completed{
		Amount:      decimal.NewFromInt(500),
		ReceiptCode: "QKX12AB34C",
	})

	require.True(t, f.poller.HandleResult(gen, completed))
	require.False(t, f.poller.HandleResult(gen, completed))

	snap := f.poller.Snapshot()
	require.Equal(t, domainPayment.StateAwaitingAck, snap.State)
	require.Equal(t, gen, snap.Session.Generation)
	require.Len(t, f.bus.OfType(event.PaymentReceived), 1)
	require.Equal(t, uint64(1), f.counters.Load(&f.counters.PaymentsReceived))
	require.Equal(t, uint64(1), f.counters.Load(&f.counters.StaleResults))
}

func TestPoller_StopDuringInFlightCheck_DropsLateSuccess(t *testing.T) {
	var poller *payment.Poller
	calls := 0
	f := newFixture(func(string) (domainPayment.StatusResult, error) {
		calls++
		if calls == 2 {
			poller.Stop()
			return domainPayment.CompletedResult(domainPayment.Completed{Amount: decimal.NewFromInt(10)}), nil
		}
		return pending()
	})
	poller = f.poller
	require.NoError(t, f.poller.Start(context.Background(), "SALE-1"))

	f.scheduler.Fire()

	require.Equal(t, domainPayment.StateIdle, f.poller.Snapshot().State)
	require.Empty(t, f.bus.OfType(event.PaymentReceived))

	f.scheduler.FireN(3)
	require.Equal(t, 2, f.gateway.Checks())
}

func TestPoller_RetryAndAbandon_RequireTimeout(t *testing.T) {
	f := newFixture(func(string) (domainPayment.StatusResult, error) { return pending() })
	require.NoError(t, f.poller.Start(context.Background(), "SALE-1"))

	require.ErrorIs(t, f.poller.Retry(context.Background()), apperr.ErrValidation)
	require.ErrorIs(t, f.poller.Abandon(), apperr.ErrValidation)
	require.Equal(t, domainPayment.StatePolling, f.poller.Snapshot().State)
}
