package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/skytether/libration/internal/config"
	"github.com/skytether/libration/internal/logging"
	intOtel "github.com/skytether/libration/internal/otel"
	"github.com/skytether/libration/internal/session"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	Version   string = "0.1.0"
	BuildDate string = "unknown"

	AppName string = "libration"
)

// global variables
var (
	cfgPath string

	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager = logging.NewSlogManager()

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger = slog.Default()

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	// Sessions holds the session being recorded, added to every log record
	Sessions *session.Context = session.NewContext()

	SessionStartTime time.Time = time.Now()

	openFiles []*os.File
)

var rootCmd = &cobra.Command{
	Use:   "libration",
	Short: "Hold a camera in the co-rotating frame of two bodies",
	Long: `libration parks a camera tracker on a visualization host and records
every tick. The camera stays fixed relative to the line between two bodies,
so their bulk orbital motion cancels and only libration remains visible.

Run without a subcommand to play the Earth/Moon showcase.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	RunE: runShowcase,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (built %s)\n", AppName, Version, BuildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", ".", "Config file or the directory holding "+config.FileName)
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.Flags().Duration("duration", 0, "How long simulated time runs")
	rootCmd.Flags().String("storage", "", "Storage backend: memory, sqlite, postgres, influx, none")
	rootCmd.Flags().String("host", "", "Host: sim or rpc")

	bindFlag("logLevel", rootCmd.PersistentFlags().Lookup("log-level"))
	bindFlag("showcase.duration", rootCmd.Flags().Lookup("duration"))
	bindFlag("storage.type", rootCmd.Flags().Lookup("storage"))
	bindFlag("host.type", rootCmd.Flags().Lookup("host"))

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func bindFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Errorf("binding flag for %s: %w", key, err))
	}
}

func main() {
	if err := execute(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// execute runs the root command. Logs and telemetry are flushed on every
// exit path, failed runs included.
func execute(args []string) error {
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	shutdown()
	return err
}

// setup loads the config and starts logging and telemetry.
func setup(cmd *cobra.Command, args []string) error {
	if err := config.Load(cfgPath); err != nil {
		if !config.IsNotFound(err) {
			return err
		}
		Logger.Warn("Config file not found, using defaults", "path", cfgPath)
	}
	if err := config.Validate(); err != nil {
		return err
	}

	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	logFilePath := logging.LogFilePath(logsDir, AppName, SessionStartTime)
	// keep one previous log around
	if _, err := os.Stat(logFilePath); err == nil {
		_ = os.Rename(logFilePath, logFilePath+".old")
	}
	logFile, err := openFile(logFilePath)
	if err != nil {
		return err
	}

	if err := setupOTel(logsDir); err != nil {
		return err
	}

	SlogManager.Setup(logging.Options{
		File:     logFile,
		Level:    viper.GetString("logLevel"),
		Console:  viper.GetBool("logConsole"),
		Format:   viper.GetString("logFormat"),
		Provider: OTelProvider.LoggerProvider(),
		Context:  Sessions.LogAttrs,
	})
	Logger = SlogManager.Logger()
	slog.SetDefault(Logger)

	Logger.Info("Starting up", "version", Version, "build", BuildDate, "config", viper.ConfigFileUsed())
	return nil
}

func setupOTel(logsDir string) error {
	oc := config.GetOTelConfig()
	cfg := intOtel.Config{
		Enabled:      oc.Enabled,
		ServiceName:  oc.ServiceName,
		BatchTimeout: oc.BatchTimeout,
		MetricPeriod: oc.MetricPeriod,
		Endpoint:     oc.Endpoint,
		Insecure:     oc.Insecure,
	}

	if oc.Enabled {
		stamp := SessionStartTime.Format("20060102_150405")
		f, err := openFile(filepath.Join(logsDir, fmt.Sprintf("%s.otel.%s.log", AppName, stamp)))
		if err != nil {
			return err
		}
		cfg.LogWriter = f

		if oc.MetricsFile != "" {
			mf, err := openFile(oc.MetricsFile)
			if err != nil {
				return err
			}
			cfg.MetricWriter = mf
		}
	}

	p, err := intOtel.New(cfg)
	if err != nil {
		return fmt.Errorf("starting telemetry: %w", err)
	}
	OTelProvider = p
	return nil
}

func openFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating dir for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	openFiles = append(openFiles, f)
	return f, nil
}

func shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := SlogManager.Flush(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "flushing logs:", err)
	}
	if OTelProvider != nil {
		if err := OTelProvider.Shutdown(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "shutting down telemetry:", err)
		}
	}
	for _, f := range openFiles {
		_ = f.Close()
	}
	openFiles = nil
}
