package services

import (
	"strings"
	"time"

	"github.com/valpere/nebo/pkg/weather"
)

const (
	hourlyPoints = 8
	noonSlot     = "12:00:00"
)

// BuildSnapshot reshapes one fetch's raw responses into a WeatherSnapshot.
// It is pure: FetchedAt is left zero for the caller to stamp. Nil responses yield empty sections.
func BuildSnapshot(cityName string, current *weather.CurrentResponse, forecast *weather.ForecastResponse, air *weather.AirPollutionResponse) *WeatherSnapshot {
	snap := &WeatherSnapshot{
		CityName: cityName,
		Hourly:   HourlySeries(forecast),
		Daily:    DailySeries(forecast),
		AQI:      ExtractAQI(air),
		UVIndex:  ExtractUV(current),
	}

	if current != nil {
		if snap.CityName == "" {
			snap.CityName = current.Name
		}
		id, desc := primaryCondition(current.Weather)
		snap.Current = CurrentConditions{
			TempKelvin:   current.Main.Temp,
			ConditionID:  id,
			Description:  desc,
			HumidityPct:  current.Main.Humidity,
			WindSpeedMps: current.Wind.Speed,
			SunriseEpoch: current.Sys.Sunrise,
			SunsetEpoch:  current.Sys.Sunset,
		}
		if current.Timezone != nil {
			tz := *current.Timezone
			snap.TimezoneOffset = &tz
		}
	}

	if snap.TimezoneOffset == nil && forecast != nil && forecast.City.Name != "" {
		tz := forecast.City.Timezone
		snap.TimezoneOffset = &tz
	}

	return snap
}

// Snapshot builds the bundle's snapshot and stamps it with at
func (b *RawBundle) Snapshot(cityName string, at time.Time) *WeatherSnapshot {
	snap := BuildSnapshot(cityName, b.Current, b.Forecast, b.Air)
	snap.FetchedAt = at
	return snap
}

// HourlySeries returns the first min(8, n) forecast entries verbatim
func HourlySeries(forecast *weather.ForecastResponse) []ForecastPoint {
	if forecast == nil {
		return []ForecastPoint{}
	}
	n := len(forecast.List)
	if n > hourlyPoints {
		n = hourlyPoints
	}
	points := make([]ForecastPoint, 0, n)
	for _, item := range forecast.List[:n] {
		points = append(points, toPoint(item))
	}
	return points
}

// DailySeries keeps the entries in the 12:00:00 slot. Days without one are skipped.
func DailySeries(forecast *weather.ForecastResponse) []ForecastPoint {
	points := []ForecastPoint{}
	if forecast == nil {
		return points
	}
	for _, item := range forecast.List {
		if strings.Contains(item.DtTxt, noonSlot) {
			points = append(points, toPoint(item))
		}
	}
	return points
}

// ExtractAQI reads list[0].main.aqi; nil when the list or the field is missing
func ExtractAQI(air *weather.AirPollutionResponse) *int {
	if air == nil || len(air.List) == 0 || air.List[0].Main.AQI == nil {
		return nil
	}
	aqi := *air.List[0].Main.AQI
	return &aqi
}

// ExtractUV reads current.uvi, which the plain weather endpoint does not send
func ExtractUV(current *weather.CurrentResponse) *float64 {
	if current == nil || current.Current == nil || current.Current.UVI == nil {
		return nil
	}
	uv := *current.Current.UVI
	return &uv
}

// SunTimes returns sunrise and sunset in the location's local zone
func (s *WeatherSnapshot) SunTimes() (sunrise, sunset time.Time) {
	loc := s.Location()
	return time.Unix(s.Current.SunriseEpoch, 0).In(loc), time.Unix(s.Current.SunsetEpoch, 0).In(loc)
}

func toPoint(item weather.ForecastItem) ForecastPoint {
	id, desc := primaryCondition(item.Weather)
	return ForecastPoint{
		Epoch:       item.Dt,
		TimeText:    item.DtTxt,
		TempKelvin:  item.Main.Temp,
		ConditionID: id,
		Description: desc,
	}
}

func primaryCondition(conditions []weather.ConditionInfo) (int, string) {
	if len(conditions) == 0 {
		return 0, ""
	}
	return conditions[0].ID, conditions[0].Description
}
