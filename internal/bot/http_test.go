package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/valpere/nebo/internal/middleware"
	"github.com/valpere/nebo/internal/services"
	"github.com/valpere/nebo/internal/view"
	"github.com/valpere/nebo/pkg/assistant"
	"github.com/valpere/nebo/pkg/metrics"
	"github.com/valpere/nebo/pkg/weather"
	"github.com/valpere/nebo/tests/helpers"
	"github.com/valpere/nebo/tests/mocks"
)

type apiFixture struct {
	router   http.Handler
	provider *helpers.ProviderServer
	svcs     *services.Services
}

func newAPIFixture(t *testing.T, stub helpers.ProviderStub, generator assistant.Generator) *apiFixture {
	t.Helper()
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	m := metrics.New()
	logger := helpers.NewSilentTestLogger()

	provider := helpers.NewProviderServer(t, stub)
	client := weather.NewClient("test_key", weather.WithBaseURL(provider.URL), weather.WithObserver(m))
	svcs := services.NewWithDependencies(client, generator, services.NewMemorySessionStore(), weather.Celsius, logger, m)

	api := NewAPI(svcs, m, nil, logger, weather.Celsius)
	return &apiFixture{
		router:   api.Router(middleware.NewUserRateLimiter(rate.Inf, 1)),
		provider: provider,
		svcs:     svcs,
	}
}

func (f *apiFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t, helpers.ProviderStub{}, nil)

	w := f.do(t, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]interface{}](t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "ok", body["session_store"])
	assert.Contains(t, body, "avg_provider_ms")
	assert.Contains(t, body["version"], "version")
}

func TestMetricsEndpoint(t *testing.T) {
	f := newAPIFixture(t, helpers.ProviderStub{}, nil)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/weather?city=London", nil).Code)

	w := f.do(t, http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "provider_requests_total")
	assert.Contains(t, w.Body.String(), "snapshot_loads_total")
}

func TestWeatherByCity(t *testing.T) {
	t.Run("London in celsius", func(t *testing.T) {
		f := newAPIFixture(t, helpers.ProviderStub{}, nil)

		w := f.do(t, http.MethodGet, "/api/v1/weather?city=London", nil)

		require.Equal(t, http.StatusOK, w.Code)
		v := decode[view.WeatherView](t, w)
		assert.Equal(t, "London", v.City)
		assert.Equal(t, "°C", v.Unit)
		assert.Equal(t, "10°C", v.Current.Temperature)
		assert.Equal(t, "sun", v.Current.Icon)
		assert.Len(t, v.Hourly, 8)
		assert.Len(t, v.Daily, 5)
		require.NotNil(t, v.AQI)
		assert.Equal(t, "Fair", v.AQI.Label)
	})

	t.Run("fahrenheit", func(t *testing.T) {
		f := newAPIFixture(t, helpers.ProviderStub{}, nil)

		w := f.do(t, http.MethodGet, "/api/v1/weather?city=London&units=f", nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "50°F", decode[view.WeatherView](t, w).Current.Temperature)
	})

	t.Run("no air quality reading hides the panel", func(t *testing.T) {
		f := newAPIFixture(t, helpers.ProviderStub{Air: `{"list":[]}`}, nil)

		w := f.do(t, http.MethodGet, "/api/v1/weather?city=London", nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Nil(t, decode[view.WeatherView](t, w).AQI)
	})

	tests := []struct {
		name     string
		stub     helpers.ProviderStub
		query    string
		wantCode int
		wantKind services.ErrorKind
	}{
		{"empty query", helpers.ProviderStub{}, "city=%20%20", http.StatusBadRequest, services.KindEmptyQuery},
		{"unknown city", helpers.ProviderStub{Geocode: `[]`}, "city=Atlantis", http.StatusNotFound, services.KindCityNotFound},
		{"forecast fails", helpers.ProviderStub{Status: map[string]int{"/data/2.5/forecast": 500}}, "city=London", http.StatusBadGateway, services.KindWeatherFetchFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture(t, tt.stub, nil)

			w := f.do(t, http.MethodGet, "/api/v1/weather?"+tt.query, nil)

			require.Equal(t, tt.wantCode, w.Code)
			body := decode[map[string]string](t, w)
			assert.Equal(t, string(tt.wantKind), body["kind"])
			assert.Equal(t, view.ErrorMessage(tt.wantKind), body["error"])
		})
	}

	t.Run("bad units", func(t *testing.T) {
		f := newAPIFixture(t, helpers.ProviderStub{}, nil)

		w := f.do(t, http.MethodGet, "/api/v1/weather?city=London&units=kelvin", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, int64(0), f.provider.Requests())
	})
}

func TestWeatherByCoords(t *testing.T) {
	t.Run("resolves the city", func(t *testing.T) {
		f := newAPIFixture(t, helpers.ProviderStub{}, nil)

		w := f.do(t, http.MethodGet, "/api/v1/weather/coords?lat=51.5&lon=-0.13", nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "London", decode[view.WeatherView](t, w).City)
	})

	t.Run("no city at position", func(t *testing.T) {
		f := newAPIFixture(t, helpers.ProviderStub{Reverse: `[]`}, nil)

		w := f.do(t, http.MethodGet, "/api/v1/weather/coords?lat=0&lon=-30", nil)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	for _, query := range []string{"lat=abc&lon=1", "lat=1", "lat=91&lon=0", "lat=0&lon=181"} {
		t.Run("rejects "+query, func(t *testing.T) {
			f := newAPIFixture(t, helpers.ProviderStub{}, nil)

			w := f.do(t, http.MethodGet, "/api/v1/weather/coords?"+query, nil)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, int64(0), f.provider.Requests())
		})
	}
}

func TestSessionFlow(t *testing.T) {
	ctrl := gomock.NewController(t)
	generator := mocks.NewMockGenerator(ctrl)
	generator.EXPECT().
		Generate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, prompt string) (string, error) {
			assert.Contains(t, prompt, "Temperature: 50°F")
			return "Mild and clear.", nil
		})

	f := newAPIFixture(t, helpers.ProviderStub{}, generator)

	w := f.do(t, http.MethodGet, "/api/v1/sessions/abc", nil)
	require.Equal(t, http.StatusOK, w.Code)
	state := decode[view.StateView](t, w)
	assert.Nil(t, state.Weather)
	assert.Empty(t, state.Transcript)

	w = f.do(t, http.MethodPost, "/api/v1/sessions/abc/weather", map[string]string{"city": "London"})
	require.Equal(t, http.StatusOK, w.Code)
	state = decode[view.StateView](t, w)
	require.NotNil(t, state.Weather)
	assert.Equal(t, "10°C", state.Weather.Current.Temperature)
	assert.False(t, state.Loading)

	requestsAfterLoad := f.provider.Requests()

	w = f.do(t, http.MethodPost, "/api/v1/sessions/abc/units", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "50°F", decode[view.StateView](t, w).Weather.Current.Temperature)
	assert.Equal(t, requestsAfterLoad, f.provider.Requests(), "unit change must not refetch")

	w = f.do(t, http.MethodPost, "/api/v1/sessions/abc/chat", map[string]string{"question": "How is it?"})
	require.Equal(t, http.StatusOK, w.Code)
	state = decode[view.StateView](t, w)
	require.Len(t, state.Transcript, 2)
	assert.Equal(t, services.RoleUser, state.Transcript[0].Role)
	assert.Equal(t, "Mild and clear.", state.Transcript[1].Text)
	assert.False(t, state.ChatSending)

	// API sessions are separate from Telegram chats with the same id
	tg, err := f.svcs.Sessions.Get(context.Background(), "abc")
	require.NoError(t, err)
	assert.Nil(t, tg.Snapshot)
}

func TestSessionWeather_Errors(t *testing.T) {
	t.Run("failed load is reported with the session", func(t *testing.T) {
		f := newAPIFixture(t, helpers.ProviderStub{Geocode: `[]`}, nil)

		w := f.do(t, http.MethodPost, "/api/v1/sessions/s1/weather", map[string]string{"city": "Atlantis"})

		require.Equal(t, http.StatusNotFound, w.Code)
		state := decode[view.StateView](t, w)
		assert.Equal(t, services.KindCityNotFound, state.ErrorKind)
		assert.Equal(t, view.ErrorMessage(services.KindCityNotFound), state.Error)
		assert.Nil(t, state.Weather)
	})

	t.Run("coordinates take the device path", func(t *testing.T) {
		f := newAPIFixture(t, helpers.ProviderStub{}, nil)

		w := f.do(t, http.MethodPost, "/api/v1/sessions/s2/weather", map[string]float64{"latitude": 51.5, "longitude": -0.13})

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "London", decode[view.StateView](t, w).Weather.City)
	})

	t.Run("empty city", func(t *testing.T) {
		f := newAPIFixture(t, helpers.ProviderStub{}, nil)

		w := f.do(t, http.MethodPost, "/api/v1/sessions/s3/weather", map[string]string{"city": ""})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		f := newAPIFixture(t, helpers.ProviderStub{}, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/s4/weather", strings.NewReader("{"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSessionUnits_Explicit(t *testing.T) {
	f := newAPIFixture(t, helpers.ProviderStub{}, nil)

	w := f.do(t, http.MethodPost, "/api/v1/sessions/u/units", map[string]string{"unit": "fahrenheit"})
	require.Equal(t, http.StatusOK, w.Code)

	state, err := f.svcs.Sessions.Get(context.Background(), apiSessionPrefix+"u")
	require.NoError(t, err)
	assert.Equal(t, weather.Fahrenheit, state.Unit)

	w = f.do(t, http.MethodPost, "/api/v1/sessions/u/units", map[string]string{"unit": "rankine"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionChat_Errors(t *testing.T) {
	t.Run("empty question", func(t *testing.T) {
		f := newAPIFixture(t, helpers.ProviderStub{}, nil)

		w := f.do(t, http.MethodPost, "/api/v1/sessions/c/chat", map[string]string{"question": " "})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, string(services.KindEmptyQuery), decode[map[string]string](t, w)["kind"])
	})

	t.Run("generator failure is a transcript entry", func(t *testing.T) {
		f := newAPIFixture(t, helpers.ProviderStub{}, nil)

		w := f.do(t, http.MethodPost, "/api/v1/sessions/c/chat", map[string]string{"question": "Hi?"})

		require.Equal(t, http.StatusOK, w.Code)
		state := decode[view.StateView](t, w)
		require.Len(t, state.Transcript, 2)
		assert.Equal(t, services.ChatErrorText, state.Transcript[1].Text)
	})
}

func TestStatusForKind(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusForKind(services.KindEmptyQuery))
	assert.Equal(t, http.StatusNotFound, statusForKind(services.KindCityNotFound))
	assert.Equal(t, http.StatusForbidden, statusForKind(services.KindPermissionDenied))
	assert.Equal(t, http.StatusUnprocessableEntity, statusForKind(services.KindCityUndetermined))
	assert.Equal(t, http.StatusConflict, statusForKind(services.KindChatBusy))
	assert.Equal(t, http.StatusBadGateway, statusForKind(services.KindWeatherFetchFailed))
	assert.Equal(t, http.StatusBadGateway, statusForKind(services.KindChatRequestFailed))
}

func TestRateLimitedAPI(t *testing.T) {
	provider := helpers.NewProviderServer(t, helpers.ProviderStub{})
	client := weather.NewClient("test_key", weather.WithBaseURL(provider.URL))
	logger := helpers.NewSilentTestLogger()
	svcs := services.NewWithDependencies(client, nil, services.NewMemorySessionStore(), weather.Celsius, logger, nil)
	router := NewAPI(svcs, nil, nil, logger, weather.Celsius).Router(middleware.NewUserRateLimiter(rate.Limit(0.001), 1))

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/x", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)

	// health is outside the limited group
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
