package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/tcprelay/internal/bytesize"
	"github.com/marmos91/tcprelay/internal/telemetry"
)

// MaxReadChunkSize caps relay.read_chunk_size.
const MaxReadChunkSize = 16 * bytesize.MiB

var validate = validator.New()

// Validate checks cfg against its struct tags and the cross-field rules the
// tags cannot express.
//
// Struct tag failures are reported as "Field: failed 'tag' (param)" so the
// offending rule is visible in the message.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return formatValidationErrors(verrs)
		}
		return err
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry.endpoint is required when telemetry is enabled")
	}

	if cfg.Telemetry.Profiling.Enabled {
		if cfg.Telemetry.Profiling.Endpoint == "" {
			return fmt.Errorf("telemetry.profiling.endpoint is required when profiling is enabled")
		}
		for _, pt := range cfg.Telemetry.Profiling.ProfileTypes {
			if _, err := telemetry.ParseProfileType(pt); err != nil {
				return fmt.Errorf("telemetry.profiling.profile_types: %w (valid: %s)", err, strings.Join(telemetry.ProfileTypeNames(), ", "))
			}
		}
	}

	if cfg.Relay.ReadChunkSize > MaxReadChunkSize {
		return fmt.Errorf("relay.read_chunk_size %s exceeds maximum %s", cfg.Relay.ReadChunkSize, MaxReadChunkSize)
	}

	if cfg.ControlPlane.IsEnabled() && cfg.Metrics.Enabled && cfg.Metrics.Port == cfg.ControlPlane.Port {
		return fmt.Errorf("metrics.port and controlplane.port must differ (both %d)", cfg.Metrics.Port)
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Port == cfg.Relay.Port {
		return fmt.Errorf("metrics.port and relay.port must differ (both %d)", cfg.Metrics.Port)
	}

	return nil
}

// formatValidationErrors joins every failed rule into one error.
func formatValidationErrors(verrs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed '%s' (%s), got %v", field, fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed '%s', got %v", field, fe.Tag(), fe.Value()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
