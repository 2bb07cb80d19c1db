package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "amm",
		Short:        "Constant-product pool program on an in-process ledger",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	deriveCmd := &cobra.Command{
		Use:   "derive",
		Short: "Print the program addresses of a pool",
		RunE:  runDerive,
	}

	deriveCmd.Flags().String("mint-a", "", "first mint (base58)")
	deriveCmd.Flags().String("mint-b", "", "second mint (base58)")
	_ = deriveCmd.MarkFlagRequired("mint-a")
	_ = deriveCmd.MarkFlagRequired("mint-b")

	root.AddCommand(deriveCmd)

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay a scenario file and print the resulting pool state",
		RunE:  runSimulate,
	}

	simulateCmd.Flags().String("scenario", "", "scenario YAML path")
	simulateCmd.Flags().String("export", "", "directory for the activity export, empty disables it")
	simulateCmd.Flags().String("format", "csv", "activity export format (csv, json)")
	simulateCmd.Flags().String("metrics-file", "", "write prometheus metrics in text format to this file")
	_ = simulateCmd.MarkFlagRequired("scenario")

	root.AddCommand(simulateCmd)

	return root
}
