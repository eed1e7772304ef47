// Package fixtures holds canned OpenWeather payloads shared by package tests.
package fixtures

import (
	"encoding/json"
	"time"

	"github.com/valpere/nebo/pkg/weather"
)

// ForecastStart is the first slot of generated forecasts (a 00:00 UTC boundary)
var ForecastStart = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

// LondonGeocode is the direct geocoding result for "London"
func LondonGeocode() []weather.GeoResult {
	return []weather.GeoResult{{Name: "London", Lat: 51.5, Lon: -0.13, Country: "GB"}}
}

// LondonCurrent is a clear 10°C reading (283.15 K, condition 800)
func LondonCurrent() *weather.CurrentResponse {
	tz := 0
	resp := &weather.CurrentResponse{
		Name:     "London",
		Timezone: &tz,
		Weather:  []weather.ConditionInfo{{ID: 800, Main: "Clear", Description: "clear sky", Icon: "01d"}},
	}
	resp.Main.Temp = 283.15
	resp.Main.Humidity = 72
	resp.Wind.Speed = 4.1
	resp.Sys.Country = "GB"
	resp.Sys.Sunrise = ForecastStart.Add(6 * time.Hour).Unix()
	resp.Sys.Sunset = ForecastStart.Add(18 * time.Hour).Unix()
	return resp
}

// Forecast builds n 3-hour slots starting at ForecastStart.
// Temperatures rise by 0.5 K per slot from 280 K; every noon slot is rain (500).
func Forecast(n int) *weather.ForecastResponse {
	resp := &weather.ForecastResponse{List: make([]weather.ForecastItem, 0, n)}
	resp.City.Name = "London"
	for i := 0; i < n; i++ {
		at := ForecastStart.Add(time.Duration(i*3) * time.Hour)
		item := weather.ForecastItem{
			Dt:      at.Unix(),
			DtTxt:   at.Format("2006-01-02 15:04:05"),
			Weather: []weather.ConditionInfo{{ID: 801, Description: "few clouds"}},
		}
		if at.Hour() == 12 {
			item.Weather = []weather.ConditionInfo{{ID: 500, Description: "light rain"}}
		}
		item.Main.Temp = 280 + float64(i)*0.5
		resp.List = append(resp.List, item)
	}
	return resp
}

// AirPollution returns a single reading with the given AQI
func AirPollution(aqi int) *weather.AirPollutionResponse {
	resp := &weather.AirPollutionResponse{}
	resp.List = make([]struct {
		Main struct {
			AQI *int `json:"aqi,omitempty"`
		} `json:"main"`
	}, 1)
	resp.List[0].Main.AQI = &aqi
	return resp
}

// EmptyAirPollution has no readings
func EmptyAirPollution() *weather.AirPollutionResponse {
	return &weather.AirPollutionResponse{}
}

// JSON marshals a fixture for use as an HTTP response body
func JSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}
