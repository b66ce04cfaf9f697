package config

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig marks structural validation failures. Callers distinguish
// a malformed upload from an accepted one with errors.Is.
var ErrInvalidConfig = errors.New("invalid config")

// Validate checks structural correctness of a configuration.
// It performs declarative validation only and MUST NOT mutate anything.
//
// A config is valid when the master region has positive extent and
// non-negative origin, every lamp center lies inside the master region,
// the radius is positive and the threshold is a byte value. Whether the
// master region fits inside a particular frame is deliberately not checked
// here: frame bounds are a runtime property and an out-of-frame region
// degrades to UNKNOWN instead of being rejected.
func Validate(cfg Config) error {
	if cfg.MasterWidth <= 0 || cfg.MasterHeight <= 0 {
		return fmt.Errorf("%w: master region %dx%d must have positive extent",
			ErrInvalidConfig, cfg.MasterWidth, cfg.MasterHeight)
	}
	if cfg.MasterX < 0 || cfg.MasterY < 0 {
		return fmt.Errorf("%w: master region origin (%d,%d) must be non-negative",
			ErrInvalidConfig, cfg.MasterX, cfg.MasterY)
	}
	if cfg.LampRadius <= 0 {
		return fmt.Errorf("%w: lamp_radius %d must be positive", ErrInvalidConfig, cfg.LampRadius)
	}
	if cfg.MinBrightness < 0 || cfg.MinBrightness > 255 {
		return fmt.Errorf("%w: min_brightness_threshold %d outside 0..255",
			ErrInvalidConfig, cfg.MinBrightness)
	}

	names := [3]string{"red", "yellow", "green"}
	for i, off := range cfg.LampOffsets() {
		x, y := off[0], off[1]
		if x < 0 || y < 0 || x >= cfg.MasterWidth || y >= cfg.MasterHeight {
			return fmt.Errorf("%w: %s lamp center (%d,%d) outside master region %dx%d",
				ErrInvalidConfig, names[i], x, y, cfg.MasterWidth, cfg.MasterHeight)
		}
	}
	return nil
}
