package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/capsaicin/scanrules/internal/alert"
	"github.com/capsaicin/scanrules/internal/config"
	"github.com/capsaicin/scanrules/internal/logging"
	"github.com/capsaicin/scanrules/internal/reporting"
	"github.com/capsaicin/scanrules/internal/scanner"
)

func newScanCmd() *cobra.Command {
	cfg := config.Default()
	var urls []string
	var progress bool

	cmd := &cobra.Command{
		Use:   "scan [URL...]",
		Short: "Fetch targets and run every enabled rule against them",
	}

	finish := config.Bind(cmd.Flags(), &cfg)
	cmd.Flags().StringArrayVarP(&urls, "url", "u", nil, "Target URL, repeatable")
	cmd.Flags().BoolVar(&progress, "progress", false, "Show a progress line on stderr")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if err := finish(); err != nil {
			return err
		}

		targets := append(append([]string(nil), urls...), args...)
		if len(targets) == 0 && stdinPiped(cmd.InOrStdin()) {
			loaded, err := scanner.LoadTargets(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read targets: %w", err)
			}
			targets = loaded
		}

		if err := config.Validate(&cfg, targets); err != nil {
			return err
		}

		logger, err := logging.New(cfg.LogLevel, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		if cfg.Verbose {
			logger = logger.Level(zerolog.DebugLevel)
		}

		out := printerFor(cmd.OutOrStdout())
		out.PrintBanner()
		out.PrintConfig(cfg, len(targets))

		engine := scanner.NewEngine(cfg, logger)
		engine.OnAlert(func(a alert.Alert) {
			logger.Debug().Int("plugin", a.PluginID).Str("uri", a.URI).Msg("alert raised")
		})

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		go func() {
			select {
			case sig := <-sigChan:
				logger.Warn().Str("signal", sig.String()).Msg("shutting down")
				cancel()
			case <-ctx.Done():
			}
		}()

		stats := scanner.NewStats(0)
		progressDone := make(chan struct{})
		progressCtx, stopProgress := context.WithCancel(ctx)
		if progress {
			errOut := printerFor(cmd.ErrOrStderr())
			go func() {
				defer close(progressDone)
				errOut.StartProgressReporter(progressCtx, stats)
			}()
		} else {
			close(progressDone)
		}

		alerts, err := engine.RunWithStats(ctx, targets, stats)
		stopProgress()
		<-progressDone

		if err != nil {
			if ctx.Err() == nil {
				return fmt.Errorf("scan: %w", err)
			}
			logger.Warn().Msg("scan cancelled")
		}

		reporting.SortAlerts(alerts)
		for _, a := range alerts {
			out.PrintAlert(a)
		}
		out.PrintSummary(stats, reporting.CountByRisk(alerts))

		if cfg.OutputFile != "" {
			if err := reporting.SaveJSONReport(alerts, cfg.OutputFile, targets, reporting.GenerateRunID(), stats.StartTime); err != nil {
				return fmt.Errorf("save JSON report: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "JSON report saved: %s\n", cfg.OutputFile)
		}

		if cfg.HTMLReport != "" {
			if err := reporting.GenerateHTML(alerts, cfg.HTMLReport); err != nil {
				return fmt.Errorf("generate HTML report: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "HTML report saved: %s\n", cfg.HTMLReport)
		}
		return nil
	}

	return cmd
}
