package taxes

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidHSN  = errors.New("hsn code must be 4 to 8 digits")
	ErrInvalidRate = errors.New("gst rate must be one of 0, 5, 12, 18, 28")
	ErrNoPreset    = errors.New("unknown tax preset")
)

// ValidateHSN checks an HSN code is 4 to 8 digits.
func ValidateHSN(code string) error {
	code = strings.TrimSpace(code)
	if len(code) < 4 || len(code) > 8 {
		return ErrInvalidHSN
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return ErrInvalidHSN
		}
	}
	return nil
}

// ValidateRate checks rate is an allowed GST slab.
func ValidateRate(rate float64) error {
	for _, allowed := range GSTRates {
		if rate == allowed {
			return nil
		}
	}
	return ErrInvalidRate
}

// FindPreset returns the preset with the given name, ignoring case.
func FindPreset(name string) (Preset, error) {
	for _, p := range Presets() {
		if strings.EqualFold(p.Name, strings.TrimSpace(name)) {
			return p, nil
		}
	}
	return Preset{}, fmt.Errorf("%w: %q", ErrNoPreset, name)
}
