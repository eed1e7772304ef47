package bot

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/valpere/nebo/internal/database"
	"github.com/valpere/nebo/internal/middleware"
	"github.com/valpere/nebo/internal/services"
	"github.com/valpere/nebo/internal/version"
	"github.com/valpere/nebo/internal/view"
	"github.com/valpere/nebo/pkg/metrics"
	"github.com/valpere/nebo/pkg/weather"
)

// API session ids live in their own namespace so they never collide with Telegram chats
const apiSessionPrefix = "api:"

// API serves the JSON surface for non-Telegram clients
type API struct {
	services    *services.Services
	metrics     *metrics.Metrics
	redis       *redis.Client
	logger      *zerolog.Logger
	defaultUnit weather.Unit
}

func NewAPI(svcs *services.Services, m *metrics.Metrics, rdb *redis.Client, logger *zerolog.Logger, defaultUnit weather.Unit) *API {
	return &API{
		services:    svcs,
		metrics:     m,
		redis:       rdb,
		logger:      logger,
		defaultUnit: defaultUnit,
	}
}

// Router builds the gin engine. The webhook route is added by the bot when configured.
func (a *API) Router(limiter *middleware.UserRateLimiter) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.GinLogging(a.logger))

	router.GET("/health", a.health)
	router.GET("/metrics", gin.WrapH(a.metrics.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(middleware.GinRateLimit(limiter))
	{
		v1.GET("/weather", a.weatherByCity)
		v1.GET("/weather/coords", a.weatherByCoords)

		v1.GET("/sessions/:id", a.sessionState)
		v1.POST("/sessions/:id/weather", a.sessionWeather)
		v1.POST("/sessions/:id/units", a.sessionUnits)
		v1.POST("/sessions/:id/chat", a.sessionChat)
	}

	return router
}

func (a *API) health(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{
		"status":          "healthy",
		"version":         version.GetInfo(),
		"time":            time.Now().Unix(),
		"uptime_seconds":  int64(a.services.Uptime().Seconds()),
		"avg_provider_ms": a.metrics.GetAverageDuration(metrics.ProviderRequestDuration),
		"avg_snapshot_ms": a.metrics.GetAverageDuration(metrics.SnapshotLoadDuration),
		"session_store":   "ok",
	}

	if a.redis != nil {
		if err := database.CheckRedis(c.Request.Context(), a.redis); err != nil {
			a.logger.Warn().Err(err).Msg("Health check: Redis unreachable")
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["session_store"] = "unreachable"
		}
	}

	c.JSON(status, body)
}

// GET /api/v1/weather?city=&units=
func (a *API) weatherByCity(c *gin.Context) {
	unit, ok := a.unitParam(c)
	if !ok {
		return
	}

	snap, err := a.services.Weather.SnapshotForCity(c.Request.Context(), c.Query("city"))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view.Render(snap, unit))
}

// GET /api/v1/weather/coords?lat=&lon=&units=
func (a *API) weatherByCoords(c *gin.Context) {
	unit, ok := a.unitParam(c)
	if !ok {
		return
	}
	coord, ok := coordParams(c)
	if !ok {
		return
	}

	snap, err := a.services.Weather.SnapshotForDevice(c.Request.Context(), services.StaticDevice{Position: &coord})
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view.Render(snap, unit))
}

func (a *API) sessionState(c *gin.Context) {
	state, err := a.services.Sessions.Get(c.Request.Context(), apiSessionID(c))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view.RenderState(state))
}

type sessionWeatherRequest struct {
	City      string   `json:"city"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// POST /api/v1/sessions/:id/weather loads by city, or by position when both coordinates are given
func (a *API) sessionWeather(c *gin.Context) {
	var req sessionWeatherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	ctx := c.Request.Context()
	id := apiSessionID(c)

	var (
		state *services.SessionState
		err   error
	)
	switch {
	case req.Latitude != nil && req.Longitude != nil:
		coord := weather.Coordinate{Latitude: *req.Latitude, Longitude: *req.Longitude}
		if !validCoordinate(coord) {
			badRequest(c, "coordinates out of range")
			return
		}
		state, err = a.services.Weather.LoadDevice(ctx, id, services.StaticDevice{Position: &coord})
	default:
		state, err = a.services.Weather.LoadCity(ctx, id, req.City)
	}

	a.respondState(c, state, err)
}

type sessionUnitsRequest struct {
	Unit string `json:"unit"`
}

// POST /api/v1/sessions/:id/units sets the unit, or toggles it when none is given
func (a *API) sessionUnits(c *gin.Context) {
	var req sessionUnitsRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}

	ctx := c.Request.Context()
	id := apiSessionID(c)

	var (
		state *services.SessionState
		err   error
	)
	if req.Unit == "" {
		state, err = a.services.Sessions.ToggleUnit(ctx, id)
	} else {
		unit, parseErr := weather.ParseUnit(req.Unit)
		if parseErr != nil {
			badRequest(c, parseErr.Error())
			return
		}
		state, err = a.services.Sessions.SetUnit(ctx, id, unit)
	}

	a.respondState(c, state, err)
}

type chatRequest struct {
	Question string `json:"question"`
}

// POST /api/v1/sessions/:id/chat
func (a *API) sessionChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	state, err := a.services.Assistant.Ask(c.Request.Context(), apiSessionID(c), req.Question)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view.RenderState(state))
}

// respondState answers with the session view. Load failures recorded on the session
// still answer with the state, under the status of their kind.
func (a *API) respondState(c *gin.Context, state *services.SessionState, err error) {
	if state == nil {
		if err == nil {
			err = errors.New("no session state")
		}
		a.fail(c, err)
		return
	}

	status := http.StatusOK
	if state.ErrorKind != services.KindNone {
		status = statusForKind(state.ErrorKind)
	}
	c.JSON(status, view.RenderState(state))
}

func (a *API) fail(c *gin.Context, err error) {
	kind := services.ErrorKindOf(err)
	status := statusForKind(kind)
	if errors.Is(err, services.ErrSupersededFetch) {
		status = http.StatusConflict
	}
	if status >= http.StatusInternalServerError {
		a.logger.Error().Err(err).Str("path", c.FullPath()).Msg("API request failed")
	}

	c.JSON(status, gin.H{
		"error": view.ErrorMessage(kind),
		"kind":  kind,
	})
}

func statusForKind(kind services.ErrorKind) int {
	switch kind {
	case services.KindEmptyQuery:
		return http.StatusBadRequest
	case services.KindCityNotFound:
		return http.StatusNotFound
	case services.KindPermissionDenied:
		return http.StatusForbidden
	case services.KindCityUndetermined:
		return http.StatusUnprocessableEntity
	case services.KindChatBusy:
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func (a *API) unitParam(c *gin.Context) (weather.Unit, bool) {
	raw := c.Query("units")
	if raw == "" {
		return a.defaultUnit, true
	}
	unit, err := weather.ParseUnit(raw)
	if err != nil {
		badRequest(c, err.Error())
		return "", false
	}
	return unit, true
}

func coordParams(c *gin.Context) (weather.Coordinate, bool) {
	lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
	lon, lonErr := strconv.ParseFloat(c.Query("lon"), 64)
	if latErr != nil || lonErr != nil {
		badRequest(c, "lat and lon must be numbers")
		return weather.Coordinate{}, false
	}

	coord := weather.Coordinate{Latitude: lat, Longitude: lon}
	if !validCoordinate(coord) {
		badRequest(c, "coordinates out of range")
		return weather.Coordinate{}, false
	}
	return coord, true
}

func validCoordinate(c weather.Coordinate) bool {
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

func apiSessionID(c *gin.Context) string {
	return apiSessionPrefix + strings.TrimSpace(c.Param("id"))
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}
