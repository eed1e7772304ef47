package weather

// Raw OpenWeather payloads. Every field may be missing in a real response;
// pointers mark the ones whose absence carries meaning.

// Coordinate is a latitude/longitude pair in decimal degrees
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// GeoResult is a single entry of the direct or reverse geocoding list
type GeoResult struct {
	Name       string            `json:"name"`
	LocalNames map[string]string `json:"local_names,omitempty"`
	Lat        float64           `json:"lat"`
	Lon        float64           `json:"lon"`
	Country    string            `json:"country"`
	State      string            `json:"state,omitempty"`
}

// ConditionInfo is one element of the provider's "weather" array
type ConditionInfo struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// CurrentResponse is the /data/2.5/weather payload
type CurrentResponse struct {
	Name     string          `json:"name"`
	Timezone *int            `json:"timezone,omitempty"`
	Weather  []ConditionInfo `json:"weather"`
	Main     struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Sys struct {
		Country string `json:"country"`
		Sunrise int64  `json:"sunrise"`
		Sunset  int64  `json:"sunset"`
	} `json:"sys"`
	// Populated by the One Call API only; the plain weather endpoint leaves it out.
	Current *struct {
		UVI *float64 `json:"uvi,omitempty"`
	} `json:"current,omitempty"`
}

// ForecastItem is one 3-hour slot of the forecast list
type ForecastItem struct {
	Dt    int64  `json:"dt"`
	DtTxt string `json:"dt_txt"`
	Main  struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Weather []ConditionInfo `json:"weather"`
}

// ForecastResponse is the /data/2.5/forecast payload
type ForecastResponse struct {
	List []ForecastItem `json:"list"`
	City struct {
		Name     string `json:"name"`
		Timezone int    `json:"timezone"`
	} `json:"city"`
}

// AirPollutionResponse is the /data/2.5/air_pollution payload
type AirPollutionResponse struct {
	List []struct {
		Main struct {
			AQI *int `json:"aqi,omitempty"`
		} `json:"main"`
	} `json:"list"`
}
