package weather

// ConditionKind groups provider condition codes into display categories
type ConditionKind string

const (
	KindThunderstorm ConditionKind = "thunderstorm"
	KindDrizzle      ConditionKind = "drizzle"
	KindRain         ConditionKind = "rain"
	KindSnow         ConditionKind = "snow"
	KindAtmosphere   ConditionKind = "atmosphere"
	KindClear        ConditionKind = "clear"
	KindClouds       ConditionKind = "clouds"
	KindUnknown      ConditionKind = "unknown"
)

// Condition is the display treatment of a condition code
type Condition struct {
	Kind  ConditionKind `json:"kind"`
	Icon  string        `json:"icon"`
	Emoji string        `json:"emoji"`
	Color string        `json:"color"`
}

// Every kind owns exactly one background color; atmosphere is distinct from snow.
var conditionTable = map[ConditionKind]Condition{
	KindThunderstorm: {Kind: KindThunderstorm, Icon: "cloud-lightning", Emoji: "⛈️", Color: "#5C5F77"},
	KindDrizzle:      {Kind: KindDrizzle, Icon: "cloud-drizzle", Emoji: "🌦️", Color: "#81A4CD"},
	KindRain:         {Kind: KindRain, Icon: "cloud-rain", Emoji: "🌧️", Color: "#4A6FA5"},
	KindSnow:         {Kind: KindSnow, Icon: "cloud-snow", Emoji: "❄️", Color: "#DCEFFB"},
	KindAtmosphere:   {Kind: KindAtmosphere, Icon: "haze", Emoji: "🌫️", Color: "#B8B2A7"},
	KindClear:        {Kind: KindClear, Icon: "sun", Emoji: "☀️", Color: "#F9C74F"},
	KindClouds:       {Kind: KindClouds, Icon: "cloud", Emoji: "☁️", Color: "#9AA5B1"},
	KindUnknown:      {Kind: KindUnknown, Icon: "help-circle", Emoji: "🌡️", Color: "#607D8B"},
}

// ClassifyCondition maps a provider condition code onto its display category
func ClassifyCondition(code int) Condition {
	return conditionTable[conditionKind(code)]
}

func conditionKind(code int) ConditionKind {
	switch {
	case code >= 200 && code < 300:
		return KindThunderstorm
	case code >= 300 && code < 500:
		return KindDrizzle
	case code >= 500 && code < 600:
		return KindRain
	case code >= 600 && code < 700:
		return KindSnow
	case code >= 700 && code < 800:
		return KindAtmosphere
	case code == 800:
		return KindClear
	case code > 800 && code < 900:
		return KindClouds
	default:
		return KindUnknown
	}
}

var aqiLabels = map[int]string{
	1: "Good",
	2: "Fair",
	3: "Moderate",
	4: "Poor",
	5: "Very Poor",
}

// AQILabel names an OpenWeather air quality index (1-5)
func AQILabel(aqi int) string {
	if label, ok := aqiLabels[aqi]; ok {
		return label
	}
	return "N/A"
}
