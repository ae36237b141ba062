package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/dittoftl/internal/bytesize"
	"github.com/marmos91/dittoftl/pkg/ftl"
)

func TestApplyDefaults_Empty(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/var/lib")

	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" || cfg.Logging.Format != "text" || cfg.Logging.Output != "stdout" {
		t.Errorf("Unexpected logging defaults: %+v", cfg.Logging)
	}
	if cfg.Telemetry.Endpoint != "localhost:4317" || cfg.Telemetry.SampleRate != 1.0 {
		t.Errorf("Unexpected telemetry defaults: %+v", cfg.Telemetry)
	}
	if cfg.Telemetry.Profiling.Endpoint != "http://localhost:4040" {
		t.Errorf("Unexpected profiling endpoint %q", cfg.Telemetry.Profiling.Endpoint)
	}
	if cfg.Metrics.Enabled {
		t.Error("Expected metrics disabled by default")
	}
	if cfg.API.Addr != "127.0.0.1:9090" || cfg.API.ReadTimeout != 10*time.Second || cfg.API.IdleTimeout != time.Minute {
		t.Errorf("Unexpected API defaults: %+v", cfg.API)
	}
	if cfg.Device.Size != 8*bytesize.GiB {
		t.Errorf("Expected 8Gi device, got %s", cfg.Device.Size)
	}
	if cfg.Device.BandSize != ftl.DefaultBandSize || cfg.Device.ReclaimUnitSize != ftl.DefaultReclaimUnitSize {
		t.Errorf("Unexpected geometry defaults: %+v", cfg.Device)
	}
	if cfg.Metadata.Backend != "mmap" {
		t.Errorf("Expected mmap backend, got %q", cfg.Metadata.Backend)
	}
	if want := filepath.Join("/var/lib", "dittoftl", "ftl0"); cfg.Metadata.Path != want {
		t.Errorf("Expected metadata path %q, got %q", want, cfg.Metadata.Path)
	}
	if cfg.Limits != (LimitsConfig{Crit: 1, High: 2, Low: 3, Start: 5}) {
		t.Errorf("Unexpected limits %+v", cfg.Limits)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Device:   DeviceConfig{Name: "nvme3", BandSize: 128 * bytesize.MiB, MaxOpenBands: 8},
		Metadata: MetadataConfig{Backend: "MEMORY"},
		Limits:   LimitsConfig{Start: 10},
	}
	ApplyDefaults(cfg)

	if cfg.Device.Name != "nvme3" || cfg.Device.BandSize != 128*bytesize.MiB || cfg.Device.MaxOpenBands != 8 {
		t.Errorf("Explicit device values overwritten: %+v", cfg.Device)
	}
	if cfg.Metadata.Backend != "memory" {
		t.Errorf("Expected lowercased backend, got %q", cfg.Metadata.Backend)
	}
	if cfg.Metadata.Path != "" {
		t.Errorf("Expected no path for memory backend, got %q", cfg.Metadata.Path)
	}
	if cfg.Limits != (LimitsConfig{Start: 10}) {
		t.Errorf("Partially set limits overwritten: %+v", cfg.Limits)
	}
}

func TestGetDefaultConfig_IsValid(t *testing.T) {
	if err := Validate(GetDefaultConfig()); err != nil {
		t.Errorf("Expected default config to be valid, got: %v", err)
	}
}
