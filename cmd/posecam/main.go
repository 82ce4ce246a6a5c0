package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/teranos/posecam"
	"github.com/teranos/posecam/console"
	"github.com/teranos/posecam/internal/config"
	"github.com/teranos/posecam/simxr"
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// execute runs posecam with the given arguments and returns the process exit
// code. Deferred cleanup has run by the time it returns.
func execute(args []string, stdin *os.File, stdout, stderr io.Writer) int {
	// Parse command line flags
	flags := flag.NewFlagSet("posecam", flag.ContinueOnError)
	flags.SetOutput(stderr)
	configPath := flags.String("config", "", "Path to configuration file (defaults when empty)")
	debug := flags.Bool("debug", false, "Enable debug logging")
	outPath := flags.String("out", "", "Override the poses output path")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "posecam: %v\n", err)
		return 1
	}
	if *debug {
		cfg.LogLevel = "debug"
	}
	if *outPath != "" {
		cfg.OutputPath = *outPath
	}

	// The log file is recreated on every run
	logFile, err := os.Create(cfg.LogPath)
	if err != nil {
		fmt.Fprintf(stderr, "posecam: failed to create log file: %v\n", err)
		return 1
	}
	defer logFile.Close()

	logger := slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{
		Level: cfg.Level(),
	}))
	slog.SetDefault(logger)

	slog.Info("starting posecam",
		"config", *configPath,
		"runtime", cfg.Runtime,
		"output", cfg.OutputPath,
		"level", cfg.LogLevel,
	)

	// Create context with cancellation for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := run(ctx, cfg, logger, stdin, stdout)
	if errors.Is(err, console.ErrAborted) {
		slog.Info("capture aborted before start, nothing saved")
		return 0
	}
	if result != nil {
		if err := finish(cfg, result, stdout); err != nil {
			slog.Error("failed to save capture", "error", err)
			fmt.Fprintf(stderr, "posecam: %v\n", err)
			return 1
		}
	}
	if err != nil {
		slog.Error("capture failed", "error", err)
		fmt.Fprintf(stderr, "posecam: %v\n", err)
		return 1
	}
	slog.Info("posecam stopped")
	return 0
}

// finish prints the summary and writes the poses file and the status card.
func finish(cfg *config.Config, result *posecam.CaptureResult, stdout io.Writer) error {
	summary := console.Summary(result, cfg.OutputPath, cfg.LogPath)
	fmt.Fprint(stdout, summary)
	slog.Info("capture summary", "trips", result.TripReport)

	if err := posecam.SavePosesJSON(cfg.OutputPath, result.Poses); err != nil {
		return err
	}

	if cfg.StatusCard != "" {
		card := console.NewCard(console.DefaultCardConfig())
		card.SetText(summary)
		card.SetTrajectories(result.Poses)
		if err := card.Save(cfg.StatusCard); err != nil {
			slog.Warn("failed to save status card", "path", cfg.StatusCard, "error", err)
		}
	}
	return nil
}

// run opens the runtime, drives one capture and returns its result. The rig
// is released before run returns.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdin *os.File, stdout io.Writer) (*posecam.CaptureResult, error) {
	rt, err := openRuntime(cfg)
	if err != nil {
		return nil, err
	}

	var result *posecam.CaptureResult
	err = posecam.WithRig(rt, cfg.RigConfig(logger), func(rig *posecam.Rig) error {
		signals := &posecam.Signals{}
		op := posecam.NewOperator(rig, signals, cfg.CaptureConfig())

		captureCtx, cancelCapture := context.WithCancel(ctx)
		defer cancelCapture()
		listenCtx, stopListening := context.WithCancel(ctx)

		listenErr := make(chan error, 1)
		go func() {
			err := console.Listen(listenCtx, stdin, stdout, signals, op)
			if errors.Is(err, console.ErrAborted) {
				cancelCapture()
			}
			listenErr <- err
		}()

		var captureErr error
		result, captureErr = op.Run(captureCtx)
		stopListening()
		if err := <-listenErr; err != nil {
			return errors.Join(captureErr, err)
		}
		return captureErr
	})
	return result, err
}

func openRuntime(cfg *config.Config) (posecam.Runtime, error) {
	switch cfg.Runtime {
	case "sim":
		return simxr.New(cfg.SimRuntimeConfig()), nil
	default:
		return nil, fmt.Errorf("runtime %q: %w", cfg.Runtime, config.ErrUnknownRuntime)
	}
}
