package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/rcarvalho-pb/pos_terminal-go/internal/application/pos"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/application/scanner"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/config"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/apperr"
)

const terminalHelp = `commands:
  scan <barcode>            feed a barcode through the scanner
  search <text>             find products by name or barcode
  add <id>                  add a product to the cart
  inc|dec|rm <id>           change or remove a cart line
  cart                      show the cart and totals
  cash <amount>             take a cash payment
  mpesa <254XXXXXXXXX>      request a mobile-money payment
  confirm                   acknowledge a received mobile payment
  stop                      stop waiting for the mobile payment
  retry | abandon           decide on a timed-out payment
  status                    show the payment poller state
  history [n]               list recent sales
  receipt                   print the last receipt
  draft save <form> k=v...  autosave form fields
  draft show|discard <form> restore or drop a form draft
  scanner [key=value...]    show or change scanner settings
  sync                      push recorded sales upstream now
  metrics                   show terminal counters
  help | quit
When a question is shown, answer with y or n.`

func terminalCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "terminal",
		Short: "Run the interactive checkout terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			a, err := openApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a.run(ctx)
			fmt.Fprintln(a.out, "POS terminal ready. Type 'help' for commands.")
			a.showCart()
			return a.repl(ctx, os.Stdin)
		},
	}
}

func (a *app) repl(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
		errc <- sc.Err()
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return <-errc
			}
			if a.exec(ctx, line) {
				return nil
			}
		}
	}
}

// exec runs one terminal command and reports whether the operator asked
// to quit.
func (a *app) exec(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if a.dialogs.Waiting() && a.dialogs.Answer(line) {
		return false
	}

	fields := strings.Fields(line)
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "help", "?":
		fmt.Fprintln(a.out, terminalHelp)
	case "quit", "exit":
		return true
	case "scan":
		if len(args) != 1 {
			a.usage("scan <barcode>")
			return false
		}
		a.scanner.Feed(ctx, args[0], scanner.Focus{})
	case "search":
		a.search(strings.Join(args, " "))
	case "add":
		id, ok := a.productID(args)
		if !ok {
			return false
		}
		if _, err := a.checkout.AddProduct(id); err != nil {
			a.printErr(err)
		}
	case "inc", "dec", "rm":
		id, ok := a.productID(args)
		if !ok {
			return false
		}
		action := map[string]pos.Action{"inc": pos.ActionIncrease, "dec": pos.ActionDecrease, "rm": pos.ActionRemove}[cmd]
		if err := a.checkout.CartAction(action, id); err != nil {
			a.printErr(err)
		}
	case "cart":
		a.showCart()
	case "cash":
		a.payCash(args)
	case "mpesa":
		if len(args) != 1 {
			a.usage("mpesa <254XXXXXXXXX>")
			return false
		}
		if _, err := a.checkout.StartMobilePayment(ctx, args[0]); err != nil {
			a.printErr(err)
		}
	case "confirm":
		if err := a.poller.Confirm(ctx); err != nil {
			a.printErr(err)
		}
	case "stop", "cancel":
		a.checkout.CancelMobilePayment()
	case "retry":
		if err := a.poller.Retry(ctx); err != nil {
			a.printErr(err)
		}
	case "abandon":
		if err := a.poller.Abandon(); err != nil {
			a.printErr(err)
		}
	case "status":
		a.showStatus()
	case "history":
		a.showHistory(args)
	case "receipt":
		a.showReceipt()
	case "draft":
		a.draft(args)
	case "scanner":
		a.configureScanner(args)
	case "sync":
		a.sync(ctx)
	case "metrics":
		a.showMetrics()
	default:
		fmt.Fprintf(a.out, "unknown command %q, type 'help'\n", cmd)
	}
	return false
}

func (a *app) productID(args []string) (int, bool) {
	if len(args) != 1 {
		a.usage("<command> <product id>")
		return 0, false
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(a.out, "invalid product id %q\n", args[0])
		return 0, false
	}
	return id, true
}

func (a *app) search(query string) {
	products := a.checkout.Search(query)
	if len(products) == 0 {
		fmt.Fprintln(a.out, "no products found")
		return
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE\tBARCODE\tSTOCK")
	for _, p := range products {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\n", p.ID, p.Name, p.Price.StringFixed(2), p.Barcode, p.Stock)
	}
	tw.Flush()
}

func (a *app) showCart() {
	lines := a.checkout.Lines()
	if len(lines) == 0 {
		fmt.Fprintln(a.out, "cart is empty")
		return
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tITEM\tQTY\tPRICE\tTOTAL")
	for _, l := range lines {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", l.ProductID, l.Name, l.Quantity, l.Price.StringFixed(2), l.LineTotal.StringFixed(2))
	}
	t := a.checkout.Totals()
	fmt.Fprintf(tw, "\t\t\tSubtotal\t%s\n", t.Subtotal.StringFixed(2))
	fmt.Fprintf(tw, "\t\t\tVAT\t%s\n", t.Tax.StringFixed(2))
	fmt.Fprintf(tw, "\t\t\tTotal\t%s\n", t.Total.StringFixed(2))
	tw.Flush()

	if p, ok := a.checkout.Pending(); ok {
		fmt.Fprintf(a.out, "cart locked: waiting for payment %s from %s\n", p.Ref, p.Phone)
	}
}

func (a *app) payCash(args []string) {
	if len(args) != 1 {
		a.usage("cash <amount>")
		return
	}
	received, err := decimal.NewFromString(args[0])
	if err != nil {
		fmt.Fprintf(a.out, "invalid amount %q\n", args[0])
		return
	}

	s, err := a.checkout.PayCash(received)
	if err != nil {
		a.printErr(err)
		return
	}
	fmt.Fprintf(a.out, "change: KES %s\n", s.PaymentData.Change.StringFixed(2))
}

func (a *app) showStatus() {
	snap := a.poller.Snapshot()
	fmt.Fprintf(a.out, "poller: %s\n", snap.State)
	if snap.Session.TransactionRef == "" {
		return
	}
	s := snap.Session
	fmt.Fprintf(a.out, "  ref %s, attempt %d of %d, %d left\n",
		s.TransactionRef, s.Attempts, s.MaxAttempts, s.RemainingAttempts())
	if s.Received != nil {
		fmt.Fprintf(a.out, "  received KES %s from %s (%s)\n",
			s.Received.Amount.StringFixed(2), s.Received.PayerPhone, s.Received.ReceiptCode)
	}
}

func (a *app) showHistory(args []string) {
	limit := 10
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			a.usage("history [n]")
			return
		}
		limit = n
	}

	sales, err := a.sales.Recent(limit)
	if err != nil {
		a.printErr(err)
		return
	}
	if len(sales) == 0 {
		fmt.Fprintln(a.out, "no sales yet")
		return
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RECEIPT\tTIME\tMETHOD\tITEMS\tTOTAL")
	for _, s := range sales {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			s.ReceiptNumber, s.Timestamp.Local().Format("2006-01-02 15:04"), s.PaymentMethod, len(s.Items), s.Total.StringFixed(2))
	}
	tw.Flush()
}

func (a *app) showReceipt() {
	sales, err := a.sales.Recent(1)
	if err != nil {
		a.printErr(err)
		return
	}
	if len(sales) == 0 {
		fmt.Fprintln(a.out, "no sales yet")
		return
	}
	fmt.Fprint(a.out, pos.Receipt(&sales[0]))
}

func (a *app) draft(args []string) {
	if len(args) < 2 {
		a.usage("draft save|show|discard <form> [k=v...]")
		return
	}
	form := args[1]

	switch args[0] {
	case "save":
		data, ok := keyValues(args[2:])
		if !ok {
			a.usage("draft save <form> k=v...")
			return
		}
		if err := a.drafts.Save(form, data); err != nil {
			a.printErr(err)
			return
		}
		fmt.Fprintf(a.out, "draft %s saved\n", form)
	case "show":
		data, ok, err := a.drafts.Restore(form)
		if err != nil {
			a.printErr(err)
			return
		}
		if !ok {
			fmt.Fprintf(a.out, "no draft for %s\n", form)
			return
		}
		keys := make([]string, 0, len(data))
		for k := range data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(a.out, "  %s=%s\n", k, data[k])
		}
	case "discard":
		if err := a.drafts.Discard(form); err != nil {
			a.printErr(err)
		}
	default:
		a.usage("draft save|show|discard <form> [k=v...]")
	}
}

func (a *app) configureScanner(args []string) {
	if len(args) > 0 {
		values, ok := keyValues(args)
		if !ok {
			a.usage("scanner [prefix=..] [suffix=..] [min=..] [timeout=..] [terminator=..]")
			return
		}
		var parseErr error
		_, err := a.scanner.UpdateConfig(func(c *scanner.Config) {
			for k, v := range values {
				switch k {
				case "prefix":
					c.Prefix = v
				case "suffix":
					c.Suffix = v
				case "terminator":
					c.Terminator = v
				case "min":
					c.MinLength, parseErr = strconv.Atoi(v)
				case "timeout":
					c.TimeoutMS, parseErr = strconv.Atoi(v)
				}
			}
		})
		if parseErr != nil {
			a.printErr(parseErr)
		}
		if err != nil {
			a.printErr(err)
			return
		}
	}

	c := a.scanner.Config()
	fmt.Fprintf(a.out, "scanner: prefix=%q suffix=%q min=%d timeout=%dms terminator=%q\n",
		c.Prefix, c.Suffix, c.MinLength, c.TimeoutMS, c.Terminator)
}

func (a *app) sync(ctx context.Context) {
	if a.dispatcher != nil {
		n := a.dispatcher.DispatchOnce(ctx)
		fmt.Fprintf(a.out, "pushed %d event(s)\n", n)
	}
	pending, err := a.outbox.Pending()
	if err != nil {
		a.printErr(err)
		return
	}
	if a.dispatcher == nil {
		fmt.Fprintf(a.out, "no upstream configured, %d event(s) kept locally\n", pending)
		return
	}
	fmt.Fprintf(a.out, "%d event(s) waiting\n", pending)
}

func (a *app) showMetrics() {
	m := a.metrics
	fmt.Fprintf(a.out, "status checks %d (failed %d, stale %d)\n",
		m.Load(&m.StatusChecks), m.Load(&m.StatusFailures), m.Load(&m.StaleResults))
	fmt.Fprintf(a.out, "payments received %d, confirmed %d, timed out %d\n",
		m.Load(&m.PaymentsReceived), m.Load(&m.PaymentsConfirmed), m.Load(&m.PaymentTimeouts))
	fmt.Fprintf(a.out, "barcodes scanned %d, sales completed %d\n",
		m.Load(&m.BarcodesScanned), m.Load(&m.SalesCompleted))
}

func (a *app) usage(s string) {
	fmt.Fprintf(a.out, "usage: %s\n", s)
}

func (a *app) printErr(err error) {
	fmt.Fprintf(a.out, "error: %s\n", apperr.Message(err))
}

func keyValues(args []string) (map[string]string, bool) {
	out := make(map[string]string, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, false
		}
		out[k] = v
	}
	return out, len(out) > 0
}
