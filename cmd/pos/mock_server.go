package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcarvalho-pb/pos_terminal-go/internal/config"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/payment"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/infra/logging"
	httpapi "github.com/rcarvalho-pb/pos_terminal-go/internal/infrastructure/http"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/infrastructure/persistence/inmemory"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/infrastructure/persistence/sqlite"
)

func mockServerCmd(load func() (*config.Config, error)) *cobra.Command {
	var (
		addr     string
		inMemory bool
	)

	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Serve a local stand-in for the mobile-money backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Mock.Addr
			}

			logger := &logging.StdoutLogger{Component: "mock-server"}

			var ledger payment.Ledger
			if inMemory {
				ledger = inmemory.NewPaymentLedger()
			} else {
				db, err := sqlite.Open(cfg.Store.DBPath)
				if err != nil {
					return err
				}
				defer db.Close()
				ledger = sqlite.NewPaymentLedger(db)
			}

			handler := &httpapi.PaymentHandler{
				Ledger:     ledger,
				Logger:     logger,
				TillNumber: cfg.Mock.TillNumber,
			}
			srv := &http.Server{
				Addr:              addr,
				Handler:           httpapi.NewRouter(handler),
				ReadHeaderTimeout: 5 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errc := make(chan error, 1)
			go func() {
				logger.Info("mock payment backend listening", map[string]any{"addr": addr})
				errc <- srv.ListenAndServe()
			}()

			select {
			case err := <-errc:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			logger.Info("mock payment backend stopping", nil)
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().BoolVar(&inMemory, "memory", false, "keep transactions in memory instead of the SQLite file")
	return cmd
}
