// Command airtrail polls a flight position feed and drives a map renderer
// with smoothly animated aircraft icons and their accumulated trails.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/airtrail/airtrail/internal/config"
	"github.com/airtrail/airtrail/internal/dispatcher"
	"github.com/airtrail/airtrail/internal/engine"
	"github.com/airtrail/airtrail/internal/geo"
	"github.com/airtrail/airtrail/internal/influx"
	"github.com/airtrail/airtrail/internal/logging"
	"github.com/airtrail/airtrail/internal/monitor"
	intOtel "github.com/airtrail/airtrail/internal/otel"
	"github.com/airtrail/airtrail/internal/selection"
	"github.com/airtrail/airtrail/internal/session"
	"github.com/airtrail/airtrail/internal/sink"
	"github.com/airtrail/airtrail/internal/source"
	"github.com/airtrail/airtrail/internal/trail"
	"github.com/airtrail/airtrail/internal/worker"
	"github.com/airtrail/airtrail/pkg/core"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// BuildVersion and BuildDate can be set at build time via ldflags
var (
	BuildVersion = "0.0.1"
	BuildDate    = "unknown"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.RegisterFlags(pflag.CommandLine); err != nil {
		return err
	}
	pflag.Parse()

	start := time.Now()
	slogManager := logging.NewSlogManager()
	slogManager.Setup(nil, viper.GetString("logLevel"), nil)
	logger := slogManager.Logger()

	if err := config.Load(viper.GetString("config")); err != nil {
		logger.Warn("Using default configuration", "error", err)
	}

	sourceCfg, err := config.GetSourceConfig()
	if err != nil {
		return err
	}
	engineCfg, err := config.GetEngineConfig()
	if err != nil {
		return err
	}
	sinkCfg, err := config.GetSinkConfig()
	if err != nil {
		return err
	}
	style, err := config.GetStyle()
	if err != nil {
		return err
	}
	monitorCfg, err := config.GetMonitorConfig()
	if err != nil {
		return err
	}
	proj, err := geo.ParseProjection(sourceCfg.Projection)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Logging: file, optional OTel export and optional GELF shipping.
	logsDir := viper.GetString("logsDir")
	logFile, err := logging.OpenLogFile(logsDir, "airtrail", start)
	if err != nil {
		return err
	}
	defer logFile.Close()

	sess := session.NewContext(sourceCfg.URL)
	slogManager.SetContextProvider(sess.Attrs)

	otelProvider, err := newOTelProvider(ctx, logFile)
	if err != nil {
		logger.Error("Failed to initialize OTel provider", "error", err)
		otelProvider, _ = intOtel.New(ctx, intOtel.Config{})
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}()

	var extra []slog.Handler
	if gelfHandler := newGELFHandler(logger); gelfHandler != nil {
		extra = append(extra, gelfHandler)
	}
	slogManager.Setup(logFile, viper.GetString("logLevel"), otelProvider.LoggerProvider(), extra...)
	logger = slogManager.Logger()
	logger.Info("Starting airtrail",
		"version", BuildVersion,
		"buildDate", BuildDate,
		"session", sess.ID(),
		"source", sourceCfg.URL,
		"sink", sinkCfg.Type,
		"logFile", logFile.Name(),
	)

	// Renderer events flow through the dispatcher into the engine.
	dispatcherLogger := logging.NewDispatcherLogger(
		logging.NewZerolog(logFile, "dispatcher", viper.GetString("logLevel")),
	)
	d, err := dispatcher.New(dispatcherLogger)
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}

	renderSink, err := sink.New(sinkCfg, proj, func(e dispatcher.Event) {
		if _, err := d.Dispatch(e); err != nil {
			logger.Debug("Renderer event not handled", "command", e.Command, "error", err)
		}
	}, logger.With("component", "sink"))
	if err != nil {
		return err
	}
	if err := renderSink.Init(); err != nil {
		return err
	}
	defer renderSink.Close()

	store := selection.NewStore()
	store.OnChange(func(sel *core.Selection) {
		if err := renderSink.PublishSelection(sel); err != nil {
			logger.Warn("Failed to publish selection", "error", err)
		}
	})

	eng, err := engine.New(engine.Config{
		Steps:         engineCfg.Steps,
		FrameInterval: engineCfg.FrameInterval,
	}, engine.Dependencies{
		Trails:    trail.New(),
		Sink:      renderSink,
		Style:     style,
		Logger:    logger.With("component", "engine"),
		OnSelect:  store.Select,
		OnDismiss: store.Dismiss,
	})
	if err != nil {
		return err
	}
	sess.SetTracked(func() int { return eng.Stats().TrackedEntities })

	workers := worker.NewManager(worker.Dependencies{
		Pointer: eng.Pointer(),
		Logger:  logger.With("component", "worker"),
	})
	workers.RegisterHandlers(d)

	client := source.NewClient(sourceCfg.URL,
		source.WithTimeout(sourceCfg.Timeout),
		source.WithProjection(proj),
	)
	poller := source.NewPoller(client, sourceCfg.Interval, logger.With("component", "source"))

	influxManager := newInfluxManager(ctx, logsDir, start, logFile, logger)
	var pointWriter monitor.PointWriter
	if influxManager != nil {
		defer influxManager.Close()
		pointWriter = influxManager
	}

	monitorService := monitor.NewService(monitor.Dependencies{
		Session:  sess,
		Engine:   eng,
		Poller:   poller,
		Influx:   pointWriter,
		LogsDir:  logsDir,
		Interval: monitorCfg.Interval,
		Logger:   logger.With("component", "monitor"),
	})
	if err := monitorService.Start(); err != nil {
		return err
	}
	defer monitorService.Stop()

	go poller.Run(ctx)

	err = eng.Run(ctx, poller.Snapshots())

	// Stop feeding the engine before closing the dispatcher so blocked
	// handlers return.
	workers.Stop()
	d.Close()

	flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if ferr := slogManager.Flush(flushCtx); ferr != nil {
		logger.Warn("Failed to flush OTel logs", "error", ferr)
	}

	logger.Info("Stopped airtrail", "uptime", sess.Uptime(), "stats", eng.Stats())
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newOTelProvider(ctx context.Context, w io.Writer) (*intOtel.Provider, error) {
	otelCfg, err := config.GetOTelConfig()
	if err != nil {
		return nil, err
	}
	return intOtel.New(ctx, intOtel.FromConfig(otelCfg, w))
}

func newGELFHandler(logger *slog.Logger) slog.Handler {
	cfg, err := config.GetGraylogConfig()
	if err != nil {
		logger.Error("Invalid graylog config", "error", err)
		return nil
	}
	if !cfg.Enabled {
		return nil
	}
	h, err := logging.NewGELFHandler(cfg.Address, viper.GetString("logLevel"))
	if err != nil {
		logger.Error("Failed to initialize GELF handler", "error", err)
		return nil
	}
	return h
}

func newInfluxManager(ctx context.Context, logsDir string, start time.Time, w io.Writer, logger *slog.Logger) *influx.Manager {
	cfg, err := config.GetInfluxConfig()
	if err != nil {
		logger.Error("Invalid influx config", "error", err)
		return nil
	}
	if !cfg.Enabled {
		return nil
	}

	backup := filepath.Join(logsDir, "influx_backup."+start.Format("20060102_150405")+".lp.gz")
	m := influx.NewManager(cfg, logging.NewZerolog(w, "influx", viper.GetString("logLevel")), backup)
	if err := m.Connect(ctx); err != nil {
		logger.Error("Failed to connect to InfluxDB", "error", err)
		return nil
	}
	return m
}
