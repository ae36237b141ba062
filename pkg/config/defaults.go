package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/dittoftl/internal/bytesize"
	"github.com/marmos91/dittoftl/pkg/ftl"
	"github.com/marmos91/dittoftl/pkg/ftl/md"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyAPIDefaults(&cfg.API)
	applyDeviceDefaults(&cfg.Device)
	applyMetadataDefaults(&cfg.Metadata, cfg.Device.Name)
	applyLimitsDefaults(&cfg.Limits)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{"cpu", "inuse_space"}
	}
}

// applyAPIDefaults sets status server defaults.
func applyAPIDefaults(cfg *APIConfig) {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:9090"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
}

// applyDeviceDefaults sets the default device name and geometry.
func applyDeviceDefaults(cfg *DeviceConfig) {
	if cfg.Name == "" {
		cfg.Name = "ftl0"
	}
	if cfg.Size == 0 {
		cfg.Size = 8 * bytesize.GiB
	}
	if cfg.BlockSize == 0 {
		cfg.BlockSize = ftl.DefaultBlockSize
	}
	if cfg.BandSize == 0 {
		cfg.BandSize = ftl.DefaultBandSize
	}
	if cfg.ReclaimUnitSize == 0 {
		cfg.ReclaimUnitSize = ftl.DefaultReclaimUnitSize
	}
	if cfg.LargeDeviceThreshold == 0 {
		cfg.LargeDeviceThreshold = ftl.DefaultLargeDeviceThreshold
	}
	if cfg.MaxOpenBands == 0 {
		cfg.MaxOpenBands = ftl.DefaultMaxOpenBands
	}
}

// applyMetadataDefaults keeps band metadata next to other device state.
func applyMetadataDefaults(cfg *MetadataConfig, device string) {
	if cfg.Backend == "" {
		cfg.Backend = md.BackendMmap
	}
	cfg.Backend = strings.ToLower(cfg.Backend)

	if cfg.Path == "" && cfg.Backend != md.BackendMemory {
		cfg.Path = filepath.Join(getDataDir(), device)
	}
}

// applyLimitsDefaults fills in the default thresholds when none is set.
func applyLimitsDefaults(cfg *LimitsConfig) {
	if *cfg != (LimitsConfig{}) {
		return
	}
	d := ftl.DefaultLimitThresholds()
	cfg.Crit = d[ftl.LevelCrit]
	cfg.High = d[ftl.LevelHigh]
	cfg.Low = d[ftl.LevelLow]
	cfg.Start = d[ftl.LevelStart]
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
