package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/daemon"
	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/version"
	"github.com/alecthomas/kong"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"sitebuilder.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Serve struct {
	} `cmd:"" help:"Start the editing and publishing server"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`

	Version struct {
	} `cmd:"" help:"Show version information"`
}

func main() {
	ctx := kong.Parse(&CLI)

	// Bootstrap logger until the configuration decides format and level.
	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	errs := ferrors.NewCLIErrorAdapter(CLI.Verbose, slog.Default())

	switch ctx.Command() {
	case "serve":
		if err := runServe(CLI.Config, CLI.Verbose); err != nil {
			errs.HandleError(err)
		}
	case "init":
		if err := runInit(CLI.Config, CLI.Init.Force); err != nil {
			errs.HandleError(err)
		}
	case "version":
		fmt.Printf("sitebuilder %s (commit %s, built %s)\n",
			version.Version, version.GitCommit, version.BuildTime)
	}
}

func runServe(configPath string, verbose bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// The level variable is shared with the daemon so configuration
	// reloads can adjust it while the process runs.
	level := new(slog.LevelVar)
	level.Set(cfg.Logging.SlogLevel())
	if verbose {
		level.Set(slog.LevelDebug)
	}
	logger := newLogger(cfg.Logging.Format, level)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	d, err := daemon.New(cfg, daemon.Options{
		ConfigPath: configPath,
		LogLevel:   level,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	var runErr error
	select {
	case err := <-d.Err():
		runErr = fmt.Errorf("daemon error: %w", err)
	case <-ctx.Done():
		logger.Info("Shutdown signal received, stopping daemon")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeoutDuration())
	defer stopCancel()

	if err := d.Stop(stopCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("stop daemon: %w", err)
	}
	return runErr
}

func runInit(configPath string, force bool) error {
	slog.Info("Initializing configuration", "path", configPath, "force", force)
	if err := config.Init(configPath, force); err != nil {
		return err
	}
	fmt.Printf("Configuration written to %s\n", configPath)
	return nil
}

func newLogger(format string, level slog.Leveler) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
