package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rcarvalho-pb/pos_terminal-go/internal/application/payment"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/application/worker"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/config"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/apperr"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/event"
	domainPayment "github.com/rcarvalho-pb/pos_terminal-go/internal/domain/payment"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/infra/logging"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/infra/metrics"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/infrastructure/console"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/infrastructure/eventbus"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/infrastructure/mpesa"
)

func pollCmd(load func() (*config.Config, error)) *cobra.Command {
	var autoConfirm bool

	cmd := &cobra.Command{
		Use:   "poll <transaction-ref>",
		Short: "Watch one mobile payment until it is confirmed, stopped or abandoned",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			w := &pollWatch{
				out:         cmd.OutOrStdout(),
				autoConfirm: autoConfirm,
				done:        make(chan struct{}),
			}
			w.wire(cfg, mpesa.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.RequestTimeout), worker.TickerScheduler{},
				&logging.StdoutLogger{Out: os.Stderr, Component: cfg.Log.Component})
			return w.run(ctx, args[0], cmd.InOrStdin())
		},
	}
	cmd.Flags().BoolVar(&autoConfirm, "confirm", false, "confirm the payment as soon as it is received")
	return cmd
}

// pollWatch drives a single poller session from the command line.
type pollWatch struct {
	out         io.Writer
	autoConfirm bool

	bus     *eventbus.InMemoryBus
	poller  *payment.Poller
	dialogs *console.Dialogs

	once sync.Once
	done chan struct{}
}

func (w *pollWatch) wire(cfg *config.Config, gateway domainPayment.Gateway, scheduler worker.Scheduler, logger logging.Logger) {
	w.bus = eventbus.NewInMemoryBus()
	w.dialogs = &console.Dialogs{Out: w.out}
	w.poller = &payment.Poller{
		Gateway:        gateway,
		Scheduler:      scheduler,
		EventBus:       w.bus,
		Dialogs:        w.dialogs,
		Logger:         logger,
		Metrics:        &metrics.Counters{},
		Interval:       cfg.Gateway.PollInterval,
		MaxAttempts:    cfg.Gateway.MaxAttempts,
		RequestTimeout: cfg.Gateway.RequestTimeout,
	}

	printer := &console.Printer{Out: w.out}
	w.bus.SubscribeAll(printer.Handle)
	w.bus.Subscribe(event.PaymentConfirmed, w.finish)
	w.bus.Subscribe(event.PaymentStopped, w.finish)
}

func (w *pollWatch) finish(event.Event) error {
	w.once.Do(func() { close(w.done) })
	return nil
}

func (w *pollWatch) run(ctx context.Context, ref string, in io.Reader) error {
	defer w.dialogs.Close()

	if w.autoConfirm {
		w.bus.Subscribe(event.PaymentReceived, func(event.Event) error {
			go w.confirm(ctx)
			return nil
		})
	}

	if err := w.poller.Start(ctx, ref); err != nil {
		return err
	}

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			w.poller.Stop()
			return nil
		case <-w.done:
			return nil
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			w.handle(ctx, line)
		}
	}
}

func (w *pollWatch) handle(ctx context.Context, line string) {
	line = strings.TrimSpace(line)
	if line == "" || w.dialogs.Answer(line) {
		return
	}

	switch strings.ToLower(line) {
	case "confirm":
		w.confirm(ctx)
	case "stop", "quit":
		w.poller.Stop()
	case "status":
		snap := w.poller.Snapshot()
		fmt.Fprintf(w.out, "poller: %s, attempt %d of %d\n", snap.State, snap.Session.Attempts, snap.Session.MaxAttempts)
	default:
		fmt.Fprintln(w.out, "commands: confirm, stop, status (answer questions with y or n)")
	}
}

func (w *pollWatch) confirm(ctx context.Context) {
	if err := w.poller.Confirm(ctx); err != nil {
		fmt.Fprintf(w.out, "error: %s\n", apperr.Message(err))
	}
}
