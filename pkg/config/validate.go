package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/dittoftl/pkg/ftl"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags first, then the constraints that span
// several fields: the band geometry and the limit ordering.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return formatValidationErrors(verrs)
		}
		return err
	}

	geo, err := cfg.Device.Geometry()
	if err != nil {
		return fmt.Errorf("device: %w", err)
	}
	if cfg.Device.Size.Uint64() < geo.BlockSize*geo.BlocksPerBand {
		return fmt.Errorf("device: size %s holds no %s band: %w",
			cfg.Device.Size, cfg.Device.BandSize, ftl.ErrInvalidGeometry)
	}

	if err := cfg.Limits.Thresholds().Validate(); err != nil {
		return fmt.Errorf("limits: %w", err)
	}

	return nil
}

// formatValidationErrors renders every failed field on one line, naming the
// namespace and the failed tag, e.g. "Config.Device.Name: required".
func formatValidationErrors(verrs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fe.Namespace() + ": " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		msgs = append(msgs, msg)
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}
