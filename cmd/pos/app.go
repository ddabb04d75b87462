package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rcarvalho-pb/pos_terminal-go/internal/application/draft"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/application/payment"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/application/pos"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/application/scanner"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/application/worker"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/config"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/event"
	domainPayment "github.com/rcarvalho-pb/pos_terminal-go/internal/domain/payment"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/storage"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/infra/logging"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/infra/metrics"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/infrastructure/console"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/infrastructure/eventbus"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/infrastructure/mpesa"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/infrastructure/outbox"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/infrastructure/persistence/inmemory"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/infrastructure/persistence/localstore"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/infrastructure/persistence/sqlite"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/infrastructure/queue"
)

// deps are the pieces of the terminal that touch the outside world.
type deps struct {
	Store     storage.Store
	Outbox    *outbox.SQLiteRepository
	Gateway   domainPayment.Gateway
	Publisher outbox.Publisher
	Scheduler worker.Scheduler
	Logger    logging.Logger
	Out       io.Writer
}

// app is the composed terminal.
type app struct {
	cfg        *config.Config
	out        io.Writer
	logger     logging.Logger
	metrics    *metrics.Counters
	bus        *eventbus.InMemoryBus
	dialogs    *console.Dialogs
	poller     *payment.Poller
	checkout   *pos.Service
	scanner    *scanner.Accumulator
	drafts     *draft.Service
	sales      *localstore.SalesHistory
	outbox     *outbox.SQLiteRepository
	dispatcher *outbox.Dispatcher

	closers []func() error
}

func newApp(cfg *config.Config, d deps) (*app, error) {
	taxRate, err := cfg.TaxRate()
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		out:     d.Out,
		logger:  d.Logger,
		metrics: &metrics.Counters{},
		bus:     eventbus.NewInMemoryBus(),
		dialogs: &console.Dialogs{Out: d.Out},
		outbox:  d.Outbox,
		sales:   &localstore.SalesHistory{Store: d.Store, Limit: cfg.Store.HistoryLimit},
	}

	a.poller = &payment.Poller{
		Gateway:        d.Gateway,
		Scheduler:      d.Scheduler,
		EventBus:       a.bus,
		Dialogs:        a.dialogs,
		Logger:         a.logger,
		Metrics:        a.metrics,
		Interval:       cfg.Gateway.PollInterval,
		MaxAttempts:    cfg.Gateway.MaxAttempts,
		RequestTimeout: cfg.Gateway.RequestTimeout,
	}

	a.checkout = &pos.Service{
		Catalog:  inmemory.NewProductRepository(inmemory.DemoCatalog()...),
		Sales:    a.sales,
		Carts:    &localstore.CartSnapshots{Store: d.Store},
		Poller:   a.poller,
		Recorder: &outbox.Recorder{Repo: d.Outbox},
		EventBus: a.bus,
		Dialogs:  a.dialogs,
		Logger:   a.logger,
		Metrics:  a.metrics,
		TaxRate:  taxRate,
	}
	if err := a.checkout.Restore(); err != nil {
		return nil, err
	}

	a.scanner = &scanner.Accumulator{
		Store:     d.Store,
		Scheduler: d.Scheduler,
		EventBus:  a.bus,
		Logger:    a.logger,
		Metrics:   a.metrics,
		Default:   a.onScan,
	}
	if err := a.scanner.Load(); err != nil {
		return nil, fmt.Errorf("load scanner config: %w", err)
	}

	a.drafts = &draft.Service{Store: d.Store, Logger: a.logger, TTL: cfg.Store.DraftTTL}

	if d.Publisher != nil {
		a.dispatcher = &outbox.Dispatcher{
			Repo:         d.Outbox,
			Publisher:    d.Publisher,
			Logger:       a.logger,
			PollInterval: cfg.Outbox.Interval,
			BatchSize:    cfg.Outbox.BatchSize,
			Retry: worker.RetryPolicy{
				BaseDelay: cfg.Outbox.RetryBase,
				MaxDelay:  cfg.Outbox.RetryMax,
			},
		}
	}

	printer := &console.Printer{Out: d.Out}
	a.bus.Subscribe(event.PaymentConfirmed, a.checkout.HandlePaymentEvent)
	a.bus.Subscribe(event.PaymentStopped, a.checkout.HandlePaymentEvent)
	a.bus.SubscribeAll(printer.Handle)

	return a, nil
}

// openApp wires the terminal against the SQLite file, the configured
// payment backend and, when brokers are set, Kafka.
func openApp(cfg *config.Config) (*app, error) {
	db, err := sqlite.Open(cfg.Store.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Store.DBPath, err)
	}

	logger := &logging.StdoutLogger{Out: os.Stderr, Component: cfg.Log.Component}
	d := deps{
		Store:     sqlite.NewKVStore(db),
		Outbox:    outbox.NewSQLiteRepository(db),
		Gateway:   mpesa.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.RequestTimeout),
		Scheduler: worker.TickerScheduler{},
		Logger:    logger,
		Out:       os.Stdout,
	}

	var kafka *queue.KafkaPublisher
	if cfg.KafkaEnabled() {
		kafka = queue.NewKafkaPublisher(cfg.Outbox.KafkaBrokers, cfg.Outbox.KafkaTopic)
		d.Publisher = kafka
	}

	a, err := newApp(cfg, d)
	if err != nil {
		if kafka != nil {
			kafka.Close()
		}
		db.Close()
		return nil, err
	}

	if kafka != nil {
		a.closers = append(a.closers, kafka.Close)
	}
	a.closers = append(a.closers, db.Close)
	return a, nil
}

// run starts background work that lives as long as ctx.
func (a *app) run(ctx context.Context) {
	if a.dispatcher != nil {
		go a.dispatcher.Run(ctx)
	}
}

func (a *app) Close() error {
	a.poller.Stop()
	a.dialogs.Close()

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *app) onScan(code string) {
	line, err := a.checkout.ScanBarcode(code)
	if err != nil {
		a.printErr(err)
		return
	}
	fmt.Fprintf(a.out, "scanned %s: %s x%d\n", code, line.Name, line.Quantity)
}
