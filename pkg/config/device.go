package config

import (
	"github.com/marmos91/dittoftl/pkg/ftl"
	"github.com/marmos91/dittoftl/pkg/ftl/mngt"
)

// Geometry derives the band geometry from the configured sizes.
func (c DeviceConfig) Geometry() (ftl.Geometry, error) {
	return ftl.NewGeometry(
		c.BlockSize.Uint64(),
		c.BandSize.Uint64(),
		c.ReclaimUnitSize.Uint64(),
		c.LargeDeviceThreshold.Uint64(),
	)
}

// Thresholds returns the limits as ftl thresholds, most severe first.
func (c LimitsConfig) Thresholds() ftl.LimitThresholds {
	return ftl.LimitThresholds{c.Crit, c.High, c.Low, c.Start}
}

// DeviceOptions builds the options of a device. The configuration must
// have been validated.
func (c *Config) DeviceOptions(create bool, m ftl.Metrics) (ftl.Options, error) {
	geo, err := c.Device.Geometry()
	if err != nil {
		return ftl.Options{}, err
	}
	return ftl.Options{
		Name:         c.Device.Name,
		Geometry:     geo,
		MaxOpenBands: c.Device.MaxOpenBands,
		Create:       create,
		Limits:       c.Limits.Thresholds(),
		Metrics:      m,
	}, nil
}

// StartupOptions locates the base device and metadata region.
func (c *Config) StartupOptions() mngt.Options {
	return mngt.Options{
		BasePath:  c.Device.BasePath,
		Size:      c.Device.Size.Uint64(),
		MDBackend: c.Metadata.Backend,
		MDPath:    c.Metadata.Path,
	}
}
