package commands

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/nebo/internal/services"
	"github.com/valpere/nebo/internal/view"
	"github.com/valpere/nebo/pkg/assistant"
	"github.com/valpere/nebo/pkg/weather"
	"github.com/valpere/nebo/tests/helpers"
	"github.com/valpere/nebo/tests/mocks"
)

func newTestHandler(t *testing.T, stub helpers.ProviderStub, generator assistant.Generator) (*CommandHandler, *helpers.MockBot) {
	t.Helper()
	server := helpers.NewProviderServer(t, stub)
	client := weather.NewClient("test_key", weather.WithBaseURL(server.URL))
	svcs := services.NewWithDependencies(client, generator, services.NewMemorySessionStore(), weather.Celsius, helpers.NewSilentTestLogger(), nil)

	return New(svcs, helpers.NewSilentTestLogger()), helpers.NewMockBot()
}

func TestStart_OffersLocationKeyboard(t *testing.T) {
	h, mb := newTestHandler(t, helpers.ProviderStub{}, nil)

	err := h.Start(mb.Bot, helpers.NewMockContext(helpers.MockContextOptions{FirstName: "Ada", MessageText: "/start"}))
	require.NoError(t, err)

	sent := mb.Client.LastSent()
	assert.Contains(t, sent.Params["text"], "Hi Ada")
	assert.Equal(t, "HTML", sent.Params["parse_mode"])
	assert.Contains(t, sent.Params["reply_markup"], `"request_location":true`)
	assert.Contains(t, sent.Params["reply_markup"], NotNowText)
}

func TestHelpAndVersion(t *testing.T) {
	h, mb := newTestHandler(t, helpers.ProviderStub{}, nil)
	ctx := helpers.NewMockContext(helpers.MockContextOptions{MessageText: "/help"})

	require.NoError(t, h.Help(mb.Bot, ctx))
	require.NoError(t, h.Version(mb.Bot, ctx))

	texts := mb.Client.SentTexts()
	require.Len(t, texts, 2)
	assert.Contains(t, texts[0], "/weather")
	assert.Contains(t, texts[1], "Version:")
}

func TestHandleTextMessage_City(t *testing.T) {
	h, mb := newTestHandler(t, helpers.ProviderStub{}, nil)

	err := h.HandleTextMessage(mb.Bot, helpers.NewMockContext(helpers.MockContextOptions{MessageText: "London"}))
	require.NoError(t, err)

	sent := mb.Client.LastSent()
	assert.Contains(t, sent.Params["text"], "<b>London</b>")
	assert.Contains(t, sent.Params["text"], "10°C, clear sky")
	assert.Contains(t, sent.Params["text"], "Air quality: 2 (Fair)")
	assert.Contains(t, sent.Params["reply_markup"], callbackUnits)
	assert.Len(t, mb.Client.Requests("sendChatAction"), 1)
}

func TestHandleTextMessage_CityNotFound(t *testing.T) {
	h, mb := newTestHandler(t, helpers.ProviderStub{Geocode: `[]`}, nil)

	err := h.HandleTextMessage(mb.Bot, helpers.NewMockContext(helpers.MockContextOptions{MessageText: "Atlantis"}))
	require.NoError(t, err)

	assert.Equal(t, view.ErrorMessage(services.KindCityNotFound), mb.Client.LastSent().Params["text"])
}

func TestHandleTextMessage_NotNowDeniesPermission(t *testing.T) {
	h, mb := newTestHandler(t, helpers.ProviderStub{}, nil)

	err := h.HandleTextMessage(mb.Bot, helpers.NewMockContext(helpers.MockContextOptions{MessageText: NotNowText}))
	require.NoError(t, err)

	assert.Equal(t, view.ErrorMessage(services.KindPermissionDenied), mb.Client.LastSent().Params["text"])
}

func TestHandleTextMessage_PartialFailure(t *testing.T) {
	h, mb := newTestHandler(t, helpers.ProviderStub{Status: map[string]int{"/data/2.5/forecast": 500}}, nil)

	err := h.HandleTextMessage(mb.Bot, helpers.NewMockContext(helpers.MockContextOptions{MessageText: "London"}))
	require.NoError(t, err)

	assert.Equal(t, view.ErrorMessage(services.KindWeatherFetchFailed), mb.Client.LastSent().Params["text"])
}

func TestHandleLocationMessage(t *testing.T) {
	t.Run("resolved city", func(t *testing.T) {
		h, mb := newTestHandler(t, helpers.ProviderStub{}, nil)

		ctx := helpers.NewMockContext(helpers.MockContextOptions{
			Location: &gotgbot.Location{Latitude: 51.5, Longitude: -0.13},
		})
		require.NoError(t, h.HandleLocationMessage(mb.Bot, ctx))

		assert.Contains(t, mb.Client.LastSent().Params["text"], "<b>London</b>")
	})

	t.Run("no city for position", func(t *testing.T) {
		h, mb := newTestHandler(t, helpers.ProviderStub{Reverse: `[]`}, nil)

		ctx := helpers.NewMockContext(helpers.MockContextOptions{
			Location: &gotgbot.Location{Latitude: 0, Longitude: -30},
		})
		require.NoError(t, h.HandleLocationMessage(mb.Bot, ctx))

		assert.Equal(t, view.ErrorMessage(services.KindCityUndetermined), mb.Client.LastSent().Params["text"])
	})

	t.Run("message without location is ignored", func(t *testing.T) {
		h, mb := newTestHandler(t, helpers.ProviderStub{}, nil)

		require.NoError(t, h.HandleLocationMessage(mb.Bot, helpers.NewMockContext(helpers.MockContextOptions{})))
		assert.Empty(t, mb.Client.SentTexts())
	})
}

func TestWeather_Command(t *testing.T) {
	h, mb := newTestHandler(t, helpers.ProviderStub{}, nil)

	require.NoError(t, h.Weather(mb.Bot, helpers.NewMockContext(helpers.MockContextOptions{MessageText: "/weather"})))
	assert.Contains(t, mb.Client.LastSent().Params["text"], "Which city?")

	require.NoError(t, h.Weather(mb.Bot, helpers.NewMockContext(helpers.MockContextOptions{MessageText: "/weather London"})))
	assert.Contains(t, mb.Client.LastSent().Params["text"], "<b>London</b>")
}

func TestUnits(t *testing.T) {
	h, mb := newTestHandler(t, helpers.ProviderStub{}, nil)
	opts := helpers.MockContextOptions{ChatID: 99}

	opts.MessageText = "/units"
	require.NoError(t, h.Units(mb.Bot, helpers.NewMockContext(opts)))
	assert.Equal(t, "Units set to °F.", mb.Client.LastSent().Params["text"])

	opts.MessageText = "/units kelvin"
	require.NoError(t, h.Units(mb.Bot, helpers.NewMockContext(opts)))
	assert.Contains(t, mb.Client.LastSent().Params["text"], "Unknown unit")

	opts.MessageText = "London"
	require.NoError(t, h.HandleTextMessage(mb.Bot, helpers.NewMockContext(opts)))
	assert.Contains(t, mb.Client.LastSent().Params["text"], "50°F")

	// switching units re-renders the same snapshot without another fetch
	opts.MessageText = "/units c"
	require.NoError(t, h.Units(mb.Bot, helpers.NewMockContext(opts)))
	assert.Contains(t, mb.Client.LastSent().Params["text"], "10°C")
}

func TestHandleCallback(t *testing.T) {
	h, mb := newTestHandler(t, helpers.ProviderStub{}, nil)
	opts := helpers.MockContextOptions{ChatID: 5, MessageText: "London"}
	require.NoError(t, h.HandleTextMessage(mb.Bot, helpers.NewMockContext(opts)))

	require.NoError(t, h.HandleCallback(mb.Bot, helpers.NewMockContext(helpers.MockContextOptions{ChatID: 5, Data: callbackUnits})))
	assert.Contains(t, mb.Client.LastSent().Params["text"], "50°F")
	assert.Contains(t, mb.Client.LastSent().Params["reply_markup"], "Show in °C")

	require.NoError(t, h.HandleCallback(mb.Bot, helpers.NewMockContext(helpers.MockContextOptions{ChatID: 5, Data: callbackChat})))
	assert.Contains(t, mb.Client.LastSent().Params["text"], "No questions yet")

	sentBefore := len(mb.Client.SentTexts())
	require.NoError(t, h.HandleCallback(mb.Bot, helpers.NewMockContext(helpers.MockContextOptions{ChatID: 5, Data: "bogus"})))
	assert.Len(t, mb.Client.SentTexts(), sentBefore)

	assert.Len(t, mb.Client.Requests("answerCallbackQuery"), 3)
}

func TestAsk(t *testing.T) {
	t.Run("answer is appended and shown", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		generator := mocks.NewMockGenerator(ctrl)
		generator.EXPECT().
			Generate(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, prompt string) (string, error) {
				assert.Contains(t, prompt, "City: London")
				assert.Contains(t, prompt, "Question: Umbrella?")
				return "Take one <just in case>.", nil
			})

		h, mb := newTestHandler(t, helpers.ProviderStub{}, generator)
		require.NoError(t, h.HandleTextMessage(mb.Bot, helpers.NewMockContext(helpers.MockContextOptions{MessageText: "London"})))

		require.NoError(t, h.Ask(mb.Bot, helpers.NewMockContext(helpers.MockContextOptions{MessageText: "/ask Umbrella?"})))
		assert.Equal(t, "Take one &lt;just in case&gt;.", mb.Client.LastSent().Params["text"])

		require.NoError(t, h.Chat(mb.Bot, helpers.NewMockContext(helpers.MockContextOptions{MessageText: "/chat"})))
		assert.Equal(t, "🙋 Umbrella?\n\n🤖 Take one &lt;just in case&gt;.", mb.Client.LastSent().Params["text"])
	})

	t.Run("generator failure becomes the fixed reply", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		generator := mocks.NewMockGenerator(ctrl)
		generator.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("", errors.New("quota exceeded"))

		h, mb := newTestHandler(t, helpers.ProviderStub{}, generator)

		require.NoError(t, h.Ask(mb.Bot, helpers.NewMockContext(helpers.MockContextOptions{MessageText: "/ask Hello?"})))
		assert.Equal(t, "Sorry, I couldn&#39;t reach the assistant right now. Please try again.", mb.Client.LastSent().Params["text"])
	})

	t.Run("long answer is cut to one message", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		generator := mocks.NewMockGenerator(ctrl)
		generator.EXPECT().Generate(gomock.Any(), gomock.Any()).Return(strings.Repeat("é & ", 1500), nil)

		h, mb := newTestHandler(t, helpers.ProviderStub{}, generator)

		require.NoError(t, h.Ask(mb.Bot, helpers.NewMockContext(helpers.MockContextOptions{MessageText: "/ask Essay?"})))
		text := mb.Client.LastSent().Params["text"]
		assertWellFormed(t, text)
		assert.True(t, strings.HasSuffix(text, "…"))
	})

	t.Run("missing question", func(t *testing.T) {
		h, mb := newTestHandler(t, helpers.ProviderStub{}, nil)

		require.NoError(t, h.Ask(mb.Bot, helpers.NewMockContext(helpers.MockContextOptions{MessageText: "/ask   "})))
		assert.Contains(t, mb.Client.LastSent().Params["text"], "Usage: /ask")
	})
}

func TestUnknownCommand(t *testing.T) {
	h, mb := newTestHandler(t, helpers.ProviderStub{}, nil)

	require.NoError(t, h.UnknownCommand(mb.Bot, helpers.NewMockContext(helpers.MockContextOptions{MessageText: "/wether Paris"})))
	assert.Equal(t, "Unknown command. Did you mean /weather?", mb.Client.LastSent().Params["text"])

	require.NoError(t, h.UnknownCommand(mb.Bot, helpers.NewMockContext(helpers.MockContextOptions{MessageText: "/xyzzy"})))
	assert.Contains(t, mb.Client.LastSent().Params["text"], "See /help")
}

func TestSendState_Superseded(t *testing.T) {
	h, mb := newTestHandler(t, helpers.ProviderStub{}, nil)

	require.NoError(t, h.sendState(mb.Bot, 1, nil, services.ErrSupersededFetch))
	assert.Empty(t, mb.Client.SentTexts())
}
