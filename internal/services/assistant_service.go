package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/valpere/nebo/pkg/assistant"
	"github.com/valpere/nebo/pkg/metrics"
	"github.com/valpere/nebo/pkg/weather"
)

const (
	// NoResponseText replaces an empty answer from the generator
	NoResponseText = "no response"
	// ChatErrorText is appended instead of an answer when the request fails
	ChatErrorText = "Sorry, I couldn't reach the assistant right now. Please try again."

	chatTimeout = 60 * time.Second
)

// AssistantService forwards questions plus weather context to a text generator
type AssistantService struct {
	generator assistant.Generator
	sessions  *SessionManager
	metrics   *metrics.Metrics
	logger    *zerolog.Logger
}

func NewAssistantService(generator assistant.Generator, sessions *SessionManager, metricsCollector *metrics.Metrics, logger *zerolog.Logger) *AssistantService {
	return &AssistantService{
		generator: generator,
		sessions:  sessions,
		metrics:   metricsCollector,
		logger:    logger,
	}
}

// BuildPrompt embeds the snapshot, rendered in unit, ahead of the question.
// Without a snapshot only the question is sent.
func BuildPrompt(snap *WeatherSnapshot, unit weather.Unit, question string) string {
	var b strings.Builder

	b.WriteString("You are a helpful weather assistant. Answer briefly using the weather data below.\n\n")

	if snap != nil {
		uv := "N/A"
		if snap.UVIndex != nil {
			uv = fmt.Sprintf("%.1f", *snap.UVIndex)
		}
		aqi := "N/A"
		if snap.AQI != nil {
			aqi = weather.AQILabel(*snap.AQI)
		}

		fmt.Fprintf(&b, "City: %s\n", snap.CityName)
		fmt.Fprintf(&b, "Temperature: %s\n", weather.FormatTemperature(snap.Current.TempKelvin, unit))
		fmt.Fprintf(&b, "Conditions: %s\n", snap.Current.Description)
		fmt.Fprintf(&b, "Humidity: %d%%\n", snap.Current.HumidityPct)
		fmt.Fprintf(&b, "Wind speed: %s\n", weather.FormatWindSpeed(snap.Current.WindSpeedMps, unit))
		fmt.Fprintf(&b, "Air quality: %s\n", aqi)
		fmt.Fprintf(&b, "UV index: %s\n", uv)

		if len(snap.Daily) > 0 {
			b.WriteString("Forecast:\n")
			for _, day := range snap.Daily {
				fmt.Fprintf(&b, "- %s: %s, %s\n", dayLabel(day), weather.FormatTemperature(day.TempKelvin, unit), day.Description)
			}
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Question: %s", question)
	return b.String()
}

// Ask records question in the session transcript and appends the assistant's answer.
// Generator failures become a transcript entry; only ErrEmptyQuery, ErrChatBusy and
// session storage errors are returned.
func (s *AssistantService) Ask(ctx context.Context, sessionID, question string) (*SessionState, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuery
	}

	state, err := s.sessions.BeginChat(ctx, sessionID, question)
	if err != nil {
		return nil, err
	}

	prompt := BuildPrompt(state.Snapshot, state.Unit, question)
	turn := ChatTurn{Role: RoleAssistant}

	answer, genErr := s.generate(ctx, prompt)
	switch {
	case genErr != nil:
		s.logger.Error().
			Err(genErr).
			Str("session_id", sessionID).
			Msg("Chat request failed")
		s.metrics.IncrementCounter(metrics.ChatRequestsTotal, "error")
		turn.Text = ChatErrorText
	case strings.TrimSpace(answer) == "":
		s.metrics.IncrementCounter(metrics.ChatRequestsTotal, "empty")
		turn.Text = NoResponseText
	default:
		s.metrics.IncrementCounter(metrics.ChatRequestsTotal, "success")
		turn.Text = strings.TrimSpace(answer)
	}

	// the request context may already be done; the session must still return to Idle
	done := context.WithoutCancel(ctx)
	state, err = s.sessions.CompleteChat(done, sessionID, turn)
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Retrying chat completion")
		state, err = s.sessions.CompleteChat(done, sessionID, turn)
	}
	return state, err
}

func (s *AssistantService) generate(ctx context.Context, prompt string) (string, error) {
	if s.generator == nil {
		return "", fmt.Errorf("%w: no generator configured", ErrChatRequestFailed)
	}

	ctx, cancel := context.WithTimeout(ctx, chatTimeout)
	defer cancel()

	answer, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrChatRequestFailed, err)
	}
	return answer, nil
}

// dayLabel prefers the provider's date text, falling back to the epoch
func dayLabel(p ForecastPoint) string {
	if date, _, ok := strings.Cut(p.TimeText, " "); ok && date != "" {
		return date
	}
	return time.Unix(p.Epoch, 0).UTC().Format("2006-01-02")
}
