package weather

import (
	"fmt"
	"math"
	"strings"
)

// Unit is the temperature scale used for display. Stored values stay in Kelvin.
type Unit string

const (
	Celsius    Unit = "celsius"
	Fahrenheit Unit = "fahrenheit"
)

const absoluteZeroC = 273.15

// ParseUnit accepts the common spellings of both scales
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "c", "°c", "celsius", "metric":
		return Celsius, nil
	case "f", "°f", "fahrenheit", "imperial":
		return Fahrenheit, nil
	default:
		return "", fmt.Errorf("unknown temperature unit %q", s)
	}
}

// Valid reports whether u is one of the supported scales
func (u Unit) Valid() bool {
	return u == Celsius || u == Fahrenheit
}

// Toggle flips between Celsius and Fahrenheit
func (u Unit) Toggle() Unit {
	if u == Fahrenheit {
		return Celsius
	}
	return Fahrenheit
}

// Symbol returns the degree suffix for the scale
func (u Unit) Symbol() string {
	if u == Fahrenheit {
		return "°F"
	}
	return "°C"
}

// Exact converts Kelvin without rounding
func (u Unit) Exact(kelvin float64) float64 {
	c := kelvin - absoluteZeroC
	if u == Fahrenheit {
		return c*9/5 + 32
	}
	return c
}

// Convert converts Kelvin and rounds once, half away from zero
func (u Unit) Convert(kelvin float64) int {
	return int(math.Round(u.Exact(kelvin)))
}

// FormatTemperature renders a Kelvin value, e.g. "10°C"
func FormatTemperature(kelvin float64, u Unit) string {
	return fmt.Sprintf("%d%s", u.Convert(kelvin), u.Symbol())
}

// FormatWindSpeed renders m/s for Celsius sessions and mph for Fahrenheit ones
func FormatWindSpeed(mps float64, u Unit) string {
	if u == Fahrenheit {
		return fmt.Sprintf("%.1f mph", mps*2.23694)
	}
	return fmt.Sprintf("%.1f m/s", mps)
}
