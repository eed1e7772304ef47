// Package view turns snapshots and session state into display-ready values.
// Nothing here performs I/O; temperatures are converted exactly once, here.
package view

import (
	"fmt"
	"time"

	"github.com/valpere/nebo/internal/services"
	"github.com/valpere/nebo/pkg/weather"
)

const notAvailable = "N/A"

type CurrentView struct {
	Temperature string `json:"temperature"`
	Description string `json:"description"`
	Humidity    string `json:"humidity"`
	Wind        string `json:"wind"`
	Icon        string `json:"icon"`
	Emoji       string `json:"emoji"`
	Color       string `json:"color"`
	Sunrise     string `json:"sunrise"`
	Sunset      string `json:"sunset"`
}

type PointView struct {
	Label       string `json:"label"`
	Temperature string `json:"temperature"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Emoji       string `json:"emoji"`
}

type AQIView struct {
	Index int    `json:"index"`
	Label string `json:"label"`
}

// WeatherView is a snapshot rendered in one unit. AQI is nil when the panel should not be shown.
type WeatherView struct {
	City      string      `json:"city"`
	Unit      string      `json:"unit"`
	Current   CurrentView `json:"current"`
	Hourly    []PointView `json:"hourly"`
	Daily     []PointView `json:"daily"`
	AQI       *AQIView    `json:"aqi,omitempty"`
	UV        string      `json:"uv"`
	FetchedAt time.Time   `json:"fetched_at"`
}

// StateView is what a client shows for one session
type StateView struct {
	Loading     bool                `json:"loading"`
	Error       string              `json:"error,omitempty"`
	ErrorKind   services.ErrorKind  `json:"error_kind,omitempty"`
	Weather     *WeatherView        `json:"weather,omitempty"`
	Transcript  []services.ChatTurn `json:"transcript"`
	ChatSending bool                `json:"chat_sending"`
}

// Render converts snap for display in unit. A nil snapshot renders as nil.
func Render(snap *services.WeatherSnapshot, unit weather.Unit) *WeatherView {
	if snap == nil {
		return nil
	}

	loc := snap.Location()
	cond := weather.ClassifyCondition(snap.Current.ConditionID)
	sunrise, sunset := snap.SunTimes()

	v := &WeatherView{
		City: snap.CityName,
		Unit: unit.Symbol(),
		Current: CurrentView{
			Temperature: weather.FormatTemperature(snap.Current.TempKelvin, unit),
			Description: snap.Current.Description,
			Humidity:    fmt.Sprintf("%d%%", snap.Current.HumidityPct),
			Wind:        weather.FormatWindSpeed(snap.Current.WindSpeedMps, unit),
			Icon:        cond.Icon,
			Emoji:       cond.Emoji,
			Color:       cond.Color,
			Sunrise:     formatClock(snap.Current.SunriseEpoch, sunrise),
			Sunset:      formatClock(snap.Current.SunsetEpoch, sunset),
		},
		Hourly:    make([]PointView, 0, len(snap.Hourly)),
		Daily:     make([]PointView, 0, len(snap.Daily)),
		UV:        notAvailable,
		FetchedAt: snap.FetchedAt,
	}

	for _, p := range snap.Hourly {
		v.Hourly = append(v.Hourly, renderPoint(p, unit, time.Unix(p.Epoch, 0).In(loc).Format("15:04")))
	}
	for _, p := range snap.Daily {
		v.Daily = append(v.Daily, renderPoint(p, unit, time.Unix(p.Epoch, 0).In(loc).Format("Mon 02 Jan")))
	}

	if snap.AQI != nil {
		v.AQI = &AQIView{Index: *snap.AQI, Label: weather.AQILabel(*snap.AQI)}
	}
	if snap.UVIndex != nil {
		v.UV = fmt.Sprintf("%.1f", *snap.UVIndex)
	}

	return v
}

// RenderState renders a whole session
func RenderState(state *services.SessionState) StateView {
	sv := StateView{
		Loading:     state.Loading,
		ErrorKind:   state.ErrorKind,
		Weather:     Render(state.Snapshot, state.Unit),
		Transcript:  state.Transcript,
		ChatSending: state.ChatSending,
	}
	if state.ErrorKind != services.KindNone {
		sv.Error = ErrorMessage(state.ErrorKind)
	}
	if sv.Transcript == nil {
		sv.Transcript = []services.ChatTurn{}
	}
	return sv
}

// ErrorMessage is the single user-visible message for each failure kind
func ErrorMessage(kind services.ErrorKind) string {
	switch kind {
	case services.KindNone:
		return ""
	case services.KindCityNotFound:
		return "City not found. Check the spelling and try again."
	case services.KindPermissionDenied:
		return "Location access was not granted. Share your location or type a city name."
	case services.KindCityUndetermined:
		return "Couldn't determine a city for your location. Try typing a city name."
	case services.KindEmptyQuery:
		return "Please enter a city name."
	case services.KindChatBusy:
		return "Still waiting for the previous answer."
	case services.KindChatRequestFailed:
		return services.ChatErrorText
	default:
		return "Couldn't load the weather right now. Please try again."
	}
}

func renderPoint(p services.ForecastPoint, unit weather.Unit, label string) PointView {
	cond := weather.ClassifyCondition(p.ConditionID)
	return PointView{
		Label:       label,
		Temperature: weather.FormatTemperature(p.TempKelvin, unit),
		Description: p.Description,
		Icon:        cond.Icon,
		Emoji:       cond.Emoji,
	}
}

func formatClock(epoch int64, t time.Time) string {
	if epoch == 0 {
		return notAvailable
	}
	return t.Format("15:04")
}
