package commands

import (
	"context"
	"fmt"

	"github.com/marmos91/dittoftl/internal/logger"
	"github.com/marmos91/dittoftl/internal/telemetry"
	"github.com/marmos91/dittoftl/pkg/config"
	"github.com/marmos91/dittoftl/pkg/ftl"
	"github.com/marmos91/dittoftl/pkg/ftl/mngt"
	"github.com/marmos91/dittoftl/pkg/metrics"

	// Import prometheus metrics to register init() functions
	_ "github.com/marmos91/dittoftl/pkg/metrics/prometheus"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// session holds everything a command needs around one device.
type session struct {
	cfg         *config.Config
	dev         *ftl.Device
	stepMetrics mngt.Metrics
	shutdown    []func(context.Context) error
}

// newSession loads the configuration, starts logging, tracing, profiling
// and metrics, and creates the device. Nothing is opened yet.
func newSession(ctx context.Context, create bool, override func(*config.Config) error) (*session, error) {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return nil, err
	}
	if override != nil {
		if err := override(cfg); err != nil {
			return nil, err
		}
		if err := config.Validate(cfg); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	if err := InitLogger(cfg); err != nil {
		return nil, err
	}

	s := &session{cfg: cfg}

	tracingShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "dittoftl",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	s.shutdown = append(s.shutdown, tracingShutdown)

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "dittoftl",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		Device:         cfg.Device.Name,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		s.close(ctx)
		return nil, fmt.Errorf("failed to initialize profiling: %w", err)
	}
	s.shutdown = append(s.shutdown, func(context.Context) error { return profilingShutdown() })

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		s.shutdown = append(s.shutdown, func(context.Context) error { metrics.Disable(); return nil })
	}
	s.stepMetrics = metrics.NewStepMetrics()

	opts, err := cfg.DeviceOptions(create, metrics.NewFTLMetrics())
	if err != nil {
		s.close(ctx)
		return nil, err
	}
	s.dev = ftl.NewDevice(opts)

	logger.Debug("Configuration loaded",
		"source", configSource(GetConfigFile()),
		"tracing", telemetry.IsEnabled(),
		"profiling", telemetry.IsProfilingEnabled(),
		"metrics", metrics.IsEnabled())
	return s, nil
}

// startup runs the startup process against the session device.
func (s *session) startup(ctx context.Context) (mngt.Result, error) {
	p := mngt.Startup(s.cfg.StartupOptions())
	p.Metrics = s.stepMetrics
	return p.Run(ctx, s.dev)
}

// shutdownDevice runs the shutdown process against the session device.
func (s *session) shutdownDevice(ctx context.Context, leaveDirty bool) (mngt.Result, error) {
	p := mngt.Shutdown(mngt.ShutdownOptions{LeaveDirty: leaveDirty})
	p.Metrics = s.stepMetrics
	return p.Run(ctx, s.dev)
}

// close stops what newSession started, most recent first.
func (s *session) close(ctx context.Context) {
	for i := len(s.shutdown) - 1; i >= 0; i-- {
		if err := s.shutdown[i](ctx); err != nil {
			logger.Warn("shutdown error", logger.Err(err))
		}
	}
	s.shutdown = nil
}

func configSource(path string) string {
	if path == "" {
		return config.GetDefaultConfigPath()
	}
	return path
}
