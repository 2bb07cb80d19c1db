package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-amm/internal/amm"
	"github.com/rovshanmuradov/solana-amm/internal/config"
	"github.com/rovshanmuradov/solana-amm/internal/export"
	"github.com/rovshanmuradov/solana-amm/internal/scenario"
)

func runDerive(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return err
	}
	programID, err := cfg.Program()
	if err != nil {
		return err
	}

	rawA, _ := cmd.Flags().GetString("mint-a")
	rawB, _ := cmd.Flags().GetString("mint-b")
	mintA, err := solana.PublicKeyFromBase58(rawA)
	if err != nil {
		return fmt.Errorf("invalid mint-a: %w", err)
	}
	mintB, err := solana.PublicKeyFromBase58(rawB)
	if err != nil {
		return fmt.Errorf("invalid mint-b: %w", err)
	}
	switch bytes.Compare(mintA[:], mintB[:]) {
	case 0:
		return fmt.Errorf("mints must differ")
	case 1:
		mintA, mintB = mintB, mintA
	}

	addrs, err := amm.DerivePoolAddresses(programID, mintA, mintB)
	if err != nil {
		return err
	}
	treasury, _, err := amm.DeriveTreasury(programID)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "program\t%s\n", programID)
	fmt.Fprintf(tw, "mint a\t%s\n", addrs.MintA)
	fmt.Fprintf(tw, "mint b\t%s\n", addrs.MintB)
	fmt.Fprintf(tw, "pool\t%s\n", addrs.Pool)
	fmt.Fprintf(tw, "vault a\t%s\n", addrs.VaultA)
	fmt.Fprintf(tw, "vault b\t%s\n", addrs.VaultB)
	fmt.Fprintf(tw, "lp mint\t%s\n", addrs.LPMint)
	fmt.Fprintf(tw, "vault authority\t%s\n", addrs.VaultAuthority)
	fmt.Fprintf(tw, "treasury\t%s\n", treasury)
	for _, mint := range []solana.PublicKey{addrs.MintA, addrs.MintB} {
		vault, _, err := amm.DeriveTreasuryVault(programID, mint)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "treasury vault %s\t%s\n", mint.Short(4), vault)
	}
	return tw.Flush()
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	scenarioPath, _ := cmd.Flags().GetString("scenario")
	sc, err := scenario.NewManager(a.logger).Load(scenarioPath)
	if err != nil {
		return err
	}

	exportDir, _ := cmd.Flags().GetString("export")
	format, _ := cmd.Flags().GetString("format")
	var recorder *export.Recorder
	if exportDir != "" {
		if format != string(export.FormatCSV) && format != string(export.FormatJSON) {
			return fmt.Errorf("unsupported format: %s", format)
		}
		recorder = export.NewRecorder(a.bus)
		defer recorder.Close()
	}

	report, err := scenario.NewRunner(a.bank, a.programID, a.logger).Run(ctx, sc)
	if report != nil {
		if werr := report.Write(cmd.OutOrStdout()); werr != nil {
			a.logger.Warn("Failed to print report", zap.Error(werr))
		}
	}
	if err != nil {
		return err
	}

	// Drain queued events before exporting.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.bus.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("event bus shutdown: %w", err)
	}

	if recorder != nil {
		path, err := export.NewExporter(a.logger).Export(recorder.Records(), export.ExportOptions{
			Format:    export.ExportFormat(format),
			OutputDir: exportDir,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nactivity exported to %s\n", path)
	}

	metricsFile, _ := cmd.Flags().GetString("metrics-file")
	if metricsFile != "" {
		if a.metrics == nil {
			return fmt.Errorf("metrics-file requires metrics.enabled")
		}
		if err := prometheus.WriteToTextfile(metricsFile, a.metrics.Registry()); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}
