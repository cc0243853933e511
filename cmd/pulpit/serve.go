package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/pulpit/internal/config"
	"github.com/MrWong99/pulpit/internal/observe"
)

func serveCmd(opts *rootOptions) *cobra.Command {
	var noWatch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			shutdownOTel, err := observe.InitProvider(ctx, observe.ProviderConfig{
				ServiceName:    "pulpit",
				ServiceVersion: version,
			})
			if err != nil {
				return fmt.Errorf("init telemetry: %w", err)
			}
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdownOTel(flushCtx)
			}()

			a, providers, cfg, _, err := opts.boot(ctx, bootOptions{speech: true, announce: true})
			if err != nil {
				return err
			}
			defer providers.Close()

			slog.Info("pulpit starting",
				"version", version,
				"config", opts.configPath,
				"listen_addr", cfg.Server.ListenAddr,
				"log_level", cfg.Server.LogLevel,
			)

			if !noWatch {
				w, err := config.NewWatcher(opts.configPath, func(old, new *config.Config) {
					a.ApplyConfig(ctx, old, new)
				})
				if err != nil {
					slog.Warn("config hot reload disabled", "err", err)
				} else {
					defer w.Stop()
				}
			}

			printStartupSummary(cmd.OutOrStdout(), cfg, providers.STTModel)
			slog.Info("server ready; press Ctrl+C to shut down")

			runErr := a.Run(ctx)
			if runErr != nil && !errors.Is(runErr, context.Canceled) {
				slog.Error("run error", "err", runErr)
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout+5*time.Second)
			defer cancel()
			slog.Info("stopping")
			if err := a.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			slog.Info("goodbye")
			if errors.Is(runErr, context.Canceled) {
				return nil
			}
			return runErr
		},
	}
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "do not reload the config file when it changes")
	return cmd
}

func printStartupSummary(w io.Writer, cfg *config.Config, sttModel string) {
	fmt.Fprintln(w, "╔═══════════════════════════════════════╗")
	fmt.Fprintln(w, "║          Pulpit startup summary       ║")
	fmt.Fprintln(w, "╠═══════════════════════════════════════╣")
	printRow(w, "Version", version)
	printRow(w, "Listen addr", cfg.Server.ListenAddr)
	printRow(w, "Bible store", string(cfg.Bible.Store))
	printRow(w, "STT", orNone(sttModel))
	printRow(w, "Embeddings", orNone(firstProvider(cfg.Providers.Embeddings)))
	printRow(w, "Semantic", string(cfg.Semantic.Backend))
	printRow(w, "Phonetic", onOff(cfg.Phonetic.Enabled))
	printRow(w, "Discord", onOff(cfg.Announce.Discord.Token != ""))
	printRow(w, "Remote view", onOff(!cfg.Announce.Remote.Disabled))
	printRow(w, "MCP (/mcp)", onOff(cfg.Server.MCP))
	printRow(w, "TLS", onOff(cfg.Server.TLS != nil))
	fmt.Fprintln(w, "╚═══════════════════════════════════════╝")
}

func printRow(w io.Writer, label, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Fprintf(w, "║  %-12s    : %-19s ║\n", label, value)
}

func firstProvider(entries []config.ProviderEntry) string {
	if len(entries) == 0 {
		return ""
	}
	if entries[0].Model == "" {
		return entries[0].Name
	}
	return entries[0].Name + "/" + entries[0].Model
}

func orNone(s string) string {
	if s == "" {
		return "(not configured)"
	}
	return s
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}
