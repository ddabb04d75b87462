package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcarvalho-pb/pos_terminal-go/internal/config"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/infrastructure/persistence/localstore"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/infrastructure/persistence/sqlite"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/infrastructure/report"
)

func salesCmd(load func() (*config.Config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sales",
		Short: "Work with the local sales history",
	}
	cmd.AddCommand(salesExportCmd(load))
	return cmd
}

func salesExportCmd(load func() (*config.Config, error)) *cobra.Command {
	var (
		output string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the sales history to an XLSX workbook",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			db, err := sqlite.Open(cfg.Store.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			history := &localstore.SalesHistory{Store: sqlite.NewKVStore(db), Limit: cfg.Store.HistoryLimit}
			sales, err := history.Recent(limit)
			if err != nil {
				return fmt.Errorf("read sales: %w", err)
			}

			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := report.WriteSalesXLSX(f, sales); err != nil {
				f.Close()
				return fmt.Errorf("write %s: %w", output, err)
			}
			if err := f.Close(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "exported %d sale(s) to %s\n", len(sales), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "sales.xlsx", "workbook to write")
	cmd.Flags().IntVar(&limit, "limit", 0, "export at most n sales, newest first (0 for all)")
	return cmd
}
