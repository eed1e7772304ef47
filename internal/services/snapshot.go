package services

import (
	"time"

	"github.com/valpere/nebo/pkg/weather"
)

// Place is a resolved location ready to be fetched
type Place struct {
	weather.Coordinate
	CityName string `json:"city_name"`
}

// CurrentConditions holds the "now" block of a snapshot. Temperatures are Kelvin.
type CurrentConditions struct {
	TempKelvin   float64 `json:"temp_kelvin"`
	ConditionID  int     `json:"condition_id"`
	Description  string  `json:"description"`
	HumidityPct  int     `json:"humidity_pct"`
	WindSpeedMps float64 `json:"wind_speed_mps"`
	SunriseEpoch int64   `json:"sunrise_epoch"`
	SunsetEpoch  int64   `json:"sunset_epoch"`
}

// ForecastPoint is one entry of the hourly or daily series
type ForecastPoint struct {
	Epoch       int64   `json:"epoch"`
	TimeText    string  `json:"time_text"`
	TempKelvin  float64 `json:"temp_kelvin"`
	ConditionID int     `json:"condition_id"`
	Description string  `json:"description"`
}

// WeatherSnapshot is the display-ready result of one pipeline run.
// It is never mutated after BuildSnapshot returns; a new fetch replaces it wholesale.
type WeatherSnapshot struct {
	CityName string            `json:"city_name"`
	Current  CurrentConditions `json:"current"`
	Hourly   []ForecastPoint   `json:"hourly"`
	Daily    []ForecastPoint   `json:"daily"`
	AQI      *int              `json:"aqi,omitempty"`
	UVIndex  *float64          `json:"uv_index,omitempty"`
	// Seconds east of UTC for the location; nil when the provider left it out
	TimezoneOffset *int      `json:"timezone_offset,omitempty"`
	FetchedAt      time.Time `json:"fetched_at"`
}

// Location returns the zone used to render local times. UTC when unknown.
func (s *WeatherSnapshot) Location() *time.Location {
	if s == nil || s.TimezoneOffset == nil {
		return time.UTC
	}
	return time.FixedZone("", *s.TimezoneOffset)
}
