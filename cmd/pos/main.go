package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcarvalho-pb/pos_terminal-go/internal/config"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "pos",
		Short:         "Point-of-sale terminal with mobile-money payment confirmation",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./pos.yaml)")

	load := func() (*config.Config, error) {
		return config.Load(configPath)
	}

	root.AddCommand(terminalCmd(load))
	root.AddCommand(pollCmd(load))
	root.AddCommand(mockServerCmd(load))
	root.AddCommand(salesCmd(load))
	root.AddCommand(configCmd(load))
	return root
}
