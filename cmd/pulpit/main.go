// Command pulpit listens to sermon audio, spots the Bible passages being
// cited or quoted, and serves the verse text to a display client.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrWong99/pulpit/internal/app"
	"github.com/MrWong99/pulpit/internal/config"
	"github.com/MrWong99/pulpit/internal/observe"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "pulpit",
		Short:        "Detect and resolve Scripture references in sermon audio",
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "path to the YAML configuration file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override server.log_level (debug, info, warn, error)")

	root.AddCommand(
		serveCmd(opts),
		pipeCmd(opts),
		lookupCmd(opts),
		extractCmd(opts),
		indexCmd(opts),
		mcpCmd(opts),
		importCmd(opts),
	)
	return root
}

// loadConfig reads the config file named by --config.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config file %q not found; copy configs/example.yaml to get started", o.configPath)
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging installs a stderr logger as the slog default. The returned
// LevelVar lets a config reload change the level later.
func (o *rootOptions) setupLogging(cfg *config.Config) *slog.LevelVar {
	lv := new(slog.LevelVar)
	level := string(cfg.Server.LogLevel)
	if o.logLevel != "" {
		level = o.logLevel
	}
	if l, err := observe.ParseLevel(level); err == nil {
		lv.Set(l)
	} else {
		fmt.Fprintf(os.Stderr, "pulpit: %v; using info\n", err)
	}
	slog.SetDefault(observe.NewLogger(os.Stderr, lv))
	return lv
}

// bootOptions selects what [rootOptions.boot] wires up.
type bootOptions struct {
	// speech builds the STT chain. Commands that never transcribe skip it
	// so that a native model is not loaded for nothing.
	speech bool

	// announce keeps the configured announcement sinks.
	announce bool
}

// boot loads the config, builds the providers and creates the App. The
// caller must Shutdown the App and Close the providers.
func (o *rootOptions) boot(ctx context.Context, bo bootOptions) (*app.App, *app.Providers, *config.Config, *slog.LevelVar, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	lv := o.setupLogging(cfg)

	pc := cfg.Providers
	if !bo.speech {
		pc.STT = nil
	}
	reg := config.NewRegistry()
	app.RegisterBuiltins(reg)
	providers, err := app.BuildProviders(pc, reg)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	appCfg := *cfg
	if !bo.announce {
		appCfg.Announce = config.AnnounceConfig{Remote: config.RemoteConfig{Disabled: true}}
	}
	a, err := app.New(ctx, &appCfg, providers, app.WithLevelVar(lv), app.WithVersion(version))
	if err != nil {
		_ = providers.Close()
		return nil, nil, nil, nil, err
	}
	return a, providers, cfg, lv, nil
}
