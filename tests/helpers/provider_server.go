package helpers

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/valpere/nebo/tests/fixtures"
)

// ProviderStub describes the bodies an OpenWeather fake serves.
// Empty bodies default to the London fixtures; Status overrides the code per path.
type ProviderStub struct {
	Geocode  string
	Reverse  string
	Current  string
	Forecast string
	Air      string
	Status   map[string]int
}

// ProviderServer is a running OpenWeather fake
type ProviderServer struct {
	*httptest.Server
	requests atomic.Int64
}

// Requests reports how many calls the fake has served
func (p *ProviderServer) Requests() int64 {
	return p.requests.Load()
}

func NewProviderServer(t *testing.T, stub ProviderStub) *ProviderServer {
	t.Helper()

	bodies := map[string]string{
		"/geo/1.0/direct":         or(stub.Geocode, fixtures.JSON(fixtures.LondonGeocode())),
		"/geo/1.0/reverse":        or(stub.Reverse, fixtures.JSON(fixtures.LondonGeocode())),
		"/data/2.5/weather":       or(stub.Current, fixtures.JSON(fixtures.LondonCurrent())),
		"/data/2.5/forecast":      or(stub.Forecast, fixtures.JSON(fixtures.Forecast(40))),
		"/data/2.5/air_pollution": or(stub.Air, fixtures.JSON(fixtures.AirPollution(2))),
	}

	ps := &ProviderServer{}
	ps.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ps.requests.Add(1)

		if code, ok := stub.Status[r.URL.Path]; ok {
			w.WriteHeader(code)
			return
		}
		body, ok := bodies[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ps.Close)

	return ps
}

func or(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
