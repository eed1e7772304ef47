package commands

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/rs/zerolog"

	"github.com/valpere/nebo/internal/services"
	"github.com/valpere/nebo/internal/version"
	"github.com/valpere/nebo/internal/view"
	"github.com/valpere/nebo/pkg/weather"
)

const (
	// NotNowText is the reply keyboard button that declines location sharing
	NotNowText        = "Not now"
	shareLocationText = "📍 Share my location"

	callbackUnits = "units_toggle"
	callbackChat  = "chat_show"

	// the assistant may take up to a minute, weather loads far less
	requestTimeout = 90 * time.Second
)

type CommandHandler struct {
	services *services.Services
	logger   *zerolog.Logger
}

func New(services *services.Services, logger *zerolog.Logger) *CommandHandler {
	return &CommandHandler{
		services: services,
		logger:   logger,
	}
}

// Start command handler
func (h *CommandHandler) Start(bot *gotgbot.Bot, ctx *ext.Context) error {
	name := "there"
	if user := ctx.EffectiveUser; user != nil && user.FirstName != "" {
		name = user.FirstName
	}

	message := fmt.Sprintf(`👋 Hi %s, I'm <b>%s</b>.

Type a city name to see its weather, or share your location.
Then ask me anything about it with /ask.`, html.EscapeString(name), version.AppName)

	return h.send(bot, ctx.EffectiveChat.Id, message, locationKeyboard())
}

// Help command handler
func (h *CommandHandler) Help(bot *gotgbot.Bot, ctx *ext.Context) error {
	return h.send(bot, ctx.EffectiveChat.Id, helpText, nil)
}

// Version command handler
func (h *CommandHandler) Version(bot *gotgbot.Bot, ctx *ext.Context) error {
	return h.send(bot, ctx.EffectiveChat.Id, FormatVersion(version.GetInfo()), nil)
}

// Weather command handler: /weather <city>
func (h *CommandHandler) Weather(bot *gotgbot.Bot, ctx *ext.Context) error {
	city := commandArgs(ctx.EffectiveMessage.Text)
	if city == "" {
		return h.send(bot, ctx.EffectiveChat.Id,
			"Which city? Use /weather &lt;city&gt; or share your location.", locationKeyboard())
	}
	return h.loadCity(bot, ctx, city)
}

// Units command handler: /units toggles, /units c|f sets
func (h *CommandHandler) Units(bot *gotgbot.Bot, ctx *ext.Context) error {
	c, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	chatID := ctx.EffectiveChat.Id
	id := sessionID(chatID)

	var (
		state *services.SessionState
		err   error
	)
	if arg := commandArgs(ctx.EffectiveMessage.Text); arg != "" {
		unit, parseErr := weather.ParseUnit(arg)
		if parseErr != nil {
			return h.send(bot, chatID, "Unknown unit. Use /units c or /units f.", nil)
		}
		state, err = h.services.Sessions.SetUnit(c, id, unit)
	} else {
		state, err = h.services.Sessions.ToggleUnit(c, id)
	}
	if err != nil {
		h.logger.Error().Err(err).Str("session_id", id).Msg("Failed to change units")
		return h.send(bot, chatID, view.ErrorMessage(services.KindWeatherFetchFailed), nil)
	}

	return h.sendUnitChange(bot, chatID, state)
}

// Ask command handler: /ask <question>
func (h *CommandHandler) Ask(bot *gotgbot.Bot, ctx *ext.Context) error {
	chatID := ctx.EffectiveChat.Id
	question := commandArgs(ctx.EffectiveMessage.Text)
	if question == "" {
		return h.send(bot, chatID, "Usage: /ask &lt;question&gt;, e.g. /ask Do I need an umbrella?", nil)
	}

	c, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	h.typing(bot, chatID)

	state, err := h.services.Assistant.Ask(c, sessionID(chatID), question)
	if err != nil {
		kind := services.ErrorKindOf(err)
		if kind == services.KindWeatherFetchFailed {
			h.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Chat request failed")
			kind = services.KindChatRequestFailed
		}
		return h.send(bot, chatID, view.ErrorMessage(kind), nil)
	}

	answer := state.Transcript[len(state.Transcript)-1]
	return h.send(bot, chatID, FormatAnswer(answer.Text), chatKeyboard())
}

// Chat command handler: shows the transcript
func (h *CommandHandler) Chat(bot *gotgbot.Bot, ctx *ext.Context) error {
	return h.sendTranscript(bot, ctx.EffectiveChat.Id)
}

// HandleTextMessage treats plain text as a city query, except the "Not now" button
func (h *CommandHandler) HandleTextMessage(bot *gotgbot.Bot, ctx *ext.Context) error {
	text := strings.TrimSpace(ctx.EffectiveMessage.Text)
	if text == NotNowText {
		return h.loadDevice(bot, ctx, services.StaticDevice{})
	}
	return h.loadCity(bot, ctx, text)
}

// HandleLocationMessage runs the device path with the shared position
func (h *CommandHandler) HandleLocationMessage(bot *gotgbot.Bot, ctx *ext.Context) error {
	loc := ctx.EffectiveMessage.Location
	if loc == nil {
		return nil
	}
	return h.loadDevice(bot, ctx, services.StaticDevice{
		Position: &weather.Coordinate{Latitude: loc.Latitude, Longitude: loc.Longitude},
	})
}

// HandleCallback serves the inline keyboard under weather and chat replies
func (h *CommandHandler) HandleCallback(bot *gotgbot.Bot, ctx *ext.Context) error {
	cq := ctx.CallbackQuery
	if _, err := cq.Answer(bot, nil); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to answer callback query")
	}
	if ctx.EffectiveChat == nil {
		return nil
	}
	chatID := ctx.EffectiveChat.Id

	switch cq.Data {
	case callbackUnits:
		c, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		state, err := h.services.Sessions.ToggleUnit(c, sessionID(chatID))
		if err != nil {
			h.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to toggle units")
			return h.send(bot, chatID, view.ErrorMessage(services.KindWeatherFetchFailed), nil)
		}
		return h.sendUnitChange(bot, chatID, state)
	case callbackChat:
		return h.sendTranscript(bot, chatID)
	default:
		h.logger.Debug().Str("data", cq.Data).Msg("Unknown callback")
		return nil
	}
}

// UnknownCommand suggests the closest known command
func (h *CommandHandler) UnknownCommand(bot *gotgbot.Bot, ctx *ext.Context) error {
	message := "Unknown command. See /help for what I can do."
	if suggestion := SuggestCommand(ctx.EffectiveMessage.Text); suggestion != "" {
		message = fmt.Sprintf("Unknown command. Did you mean /%s?", suggestion)
	}
	return h.send(bot, ctx.EffectiveChat.Id, message, nil)
}

func (h *CommandHandler) loadCity(bot *gotgbot.Bot, ctx *ext.Context, city string) error {
	c, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	chatID := ctx.EffectiveChat.Id
	h.typing(bot, chatID)

	state, err := h.services.Weather.LoadCity(c, sessionID(chatID), city)
	return h.sendState(bot, chatID, state, err)
}

func (h *CommandHandler) loadDevice(bot *gotgbot.Bot, ctx *ext.Context, device services.DeviceLocation) error {
	c, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	chatID := ctx.EffectiveChat.Id
	h.typing(bot, chatID)

	state, err := h.services.Weather.LoadDevice(c, sessionID(chatID), device)
	return h.sendState(bot, chatID, state, err)
}

// sendState replies with the outcome of a weather load
func (h *CommandHandler) sendState(bot *gotgbot.Bot, chatID int64, state *services.SessionState, err error) error {
	switch {
	case errors.Is(err, services.ErrSupersededFetch):
		// a newer load for this chat replies instead
		return nil
	case state == nil && err != nil:
		kind := services.ErrorKindOf(err)
		if kind == services.KindWeatherFetchFailed {
			h.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Weather load failed")
		}
		return h.send(bot, chatID, view.ErrorMessage(kind), nil)
	case state.ErrorKind != services.KindNone:
		return h.send(bot, chatID, view.ErrorMessage(state.ErrorKind), nil)
	}

	return h.send(bot, chatID, FormatWeather(view.Render(state.Snapshot, state.Unit)), weatherKeyboard(state.Unit))
}

func (h *CommandHandler) sendUnitChange(bot *gotgbot.Bot, chatID int64, state *services.SessionState) error {
	if state.Snapshot == nil {
		return h.send(bot, chatID, fmt.Sprintf("Units set to %s.", state.Unit.Symbol()), nil)
	}
	return h.send(bot, chatID, FormatWeather(view.Render(state.Snapshot, state.Unit)), weatherKeyboard(state.Unit))
}

func (h *CommandHandler) sendTranscript(bot *gotgbot.Bot, chatID int64) error {
	c, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	state, err := h.services.Sessions.Get(c, sessionID(chatID))
	if err != nil {
		h.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to load session")
		return h.send(bot, chatID, view.ErrorMessage(services.KindWeatherFetchFailed), nil)
	}
	return h.send(bot, chatID, FormatTranscript(state.Transcript), nil)
}

func (h *CommandHandler) send(bot *gotgbot.Bot, chatID int64, text string, markup gotgbot.ReplyMarkup) error {
	opts := &gotgbot.SendMessageOpts{ParseMode: "HTML"}
	if markup != nil {
		opts.ReplyMarkup = markup
	}
	_, err := bot.SendMessage(chatID, text, opts)
	return err
}

func (h *CommandHandler) typing(bot *gotgbot.Bot, chatID int64) {
	if _, err := bot.SendChatAction(chatID, "typing", nil); err != nil {
		h.logger.Debug().Err(err).Int64("chat_id", chatID).Msg("Failed to send chat action")
	}
}

// sessionID keys sessions by chat so group members share one view
func sessionID(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

func locationKeyboard() gotgbot.ReplyMarkup {
	return &gotgbot.ReplyKeyboardMarkup{
		Keyboard: [][]gotgbot.KeyboardButton{{
			{Text: shareLocationText, RequestLocation: true},
			{Text: NotNowText},
		}},
		ResizeKeyboard:  true,
		OneTimeKeyboard: true,
	}
}

func weatherKeyboard(unit weather.Unit) gotgbot.ReplyMarkup {
	return &gotgbot.InlineKeyboardMarkup{
		InlineKeyboard: [][]gotgbot.InlineKeyboardButton{{
			{Text: "Show in " + unit.Toggle().Symbol(), CallbackData: callbackUnits},
			{Text: "💬 Conversation", CallbackData: callbackChat},
		}},
	}
}

func chatKeyboard() gotgbot.ReplyMarkup {
	return &gotgbot.InlineKeyboardMarkup{
		InlineKeyboard: [][]gotgbot.InlineKeyboardButton{{
			{Text: "💬 Conversation", CallbackData: callbackChat},
		}},
	}
}
