package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/skytether/libration/internal/config"
	"github.com/skytether/libration/internal/host/rpc"
	"github.com/skytether/libration/internal/host/sim"
	"github.com/skytether/libration/internal/recorder"
	"github.com/skytether/libration/internal/showcase"
	"github.com/skytether/libration/internal/storage"
)

func runShowcase(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	trackerCfg := config.GetTrackerConfig()
	hostCfg := config.GetHostConfig()
	showCfg := config.GetShowcaseConfig()

	host, closeHost, err := newHost(hostCfg, trackerCfg.CameraUnitScale)
	if err != nil {
		return err
	}
	defer closeHost()

	backend, err := initStorage()
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			Logger.Error("Failed to close storage backend", "error", err)
		}
	}()

	rec, err := recorder.New(recorder.Dependencies{
		Backend: backend,
		Logger:  Logger,
	}, recorder.Config{
		FlushInterval: config.GetStorageConfig().FlushInterval,
	})
	if err != nil {
		return err
	}
	defer rec.Close()

	sess, err := showcase.Run(ctx, showcase.Config{
		Name:           "lunar-libration",
		HostType:       hostCfg.Type,
		Tracker:        trackerCfg,
		Start:          hostCfg.Sim.Start,
		Pace:           hostCfg.Sim.Pace,
		FPS:            hostCfg.Sim.FPS,
		Duration:       showCfg.Duration,
		CameraFraction: showCfg.CameraFraction,
	}, showcase.Dependencies{
		Host:     host,
		Recorder: rec,
		Session:  Sessions,
		Logger:   Logger,
	})
	if err != nil {
		return err
	}

	report(cmd.OutOrStdout(), sess.ID.String(), backend)
	return nil
}

// newHost builds the configured host. The returned func releases it.
func newHost(cfg config.HostConfig, cameraUnitScale float64) (showcase.Host, func(), error) {
	switch cfg.Type {
	case config.HostSim:
		h, err := sim.New(sim.Config{
			Start:           cfg.Sim.Start,
			Pace:            cfg.Sim.Pace,
			CameraUnitScale: cameraUnitScale,
		}, Logger)
		if err != nil {
			return nil, nil, err
		}
		Logger.Info("Simulated host initialized", "start", cfg.Sim.Start, "pace", cfg.Sim.Pace)
		return h, func() {}, nil

	case config.HostRPC:
		client, err := rpc.Dial(rpc.Config{
			URL:     cfg.URL,
			Secret:  cfg.Secret,
			Timeout: cfg.Timeout,
		}, Logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to host: %w", err)
		}
		return rpc.NewHostAdapter(client, Logger), func() { _ = client.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", config.ErrUnknownHost, cfg.Type)
	}
}

func initStorage() (storage.Backend, error) {
	storageCfg := config.GetStorageConfig()

	backend, err := storage.New(storageCfg, storage.Dependencies{
		DB:     config.GetDBConfig(),
		Influx: config.GetInfluxConfig(),
		Logger: Logger,
	})
	if err != nil {
		Logger.Error("Failed to create storage backend", "error", err)
		return nil, err
	}
	if err := backend.Init(); err != nil {
		Logger.Error("Failed to initialize storage backend", "type", storageCfg.Type, "error", err)
		return nil, err
	}
	Logger.Info("Storage backend initialized", "type", storageCfg.Type)
	return backend, nil
}

func report(w io.Writer, sessionID string, backend storage.Backend) {
	fmt.Fprintf(w, "session %s\n", sessionID)
	if s, ok := backend.(storage.Summarizer); ok {
		sum := s.Summary()
		fmt.Fprintf(w, "  samples %d, pushed %d, captures %d\n", sum.Samples, sum.Pushed, sum.Captures)
		fmt.Fprintf(w, "  tied path %.6g Mm, world path %.6g Mm, drift %.3g\n", sum.TiedLength, sum.WorldLength, sum.RelativeDrift)
	}
	if e, ok := backend.(storage.Exporter); ok && e.GetExportedFilePath() != "" {
		fmt.Fprintf(w, "  written to %s\n", e.GetExportedFilePath())
	}
}
