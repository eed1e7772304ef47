package helpers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
)

// BotRequest is one Bot API call captured by MockBotClient. Params hold the
// values as they would go over the wire: strings as is, everything else as JSON.
type BotRequest struct {
	Method string
	Params map[string]string
}

// MockBotClient records Bot API calls and answers each with a minimal success result
type MockBotClient struct {
	mu       sync.Mutex
	requests []BotRequest
}

var _ gotgbot.BotClient = (*MockBotClient)(nil)

func (m *MockBotClient) RequestWithContext(ctx context.Context, token string, method string, params map[string]any, opts *gotgbot.RequestOpts) (json.RawMessage, error) {
	encoded := make(map[string]string, len(params))
	for k, v := range params {
		if s, ok := v.(string); ok {
			encoded[k] = s
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", k, err)
		}
		encoded[k] = string(raw)
	}

	m.mu.Lock()
	m.requests = append(m.requests, BotRequest{Method: method, Params: encoded})
	m.mu.Unlock()

	switch method {
	case "sendMessage":
		return json.RawMessage(`{"message_id":1,"date":1234567890,"chat":{"id":12345,"type":"private"},"text":"ok"}`), nil
	default:
		return json.RawMessage(`true`), nil
	}
}

func (m *MockBotClient) GetAPIURL(opts *gotgbot.RequestOpts) string {
	return "https://api.telegram.org"
}

func (m *MockBotClient) FileURL(token string, tgFilePath string, opts *gotgbot.RequestOpts) string {
	return "https://api.telegram.org/file/bot" + token + "/" + tgFilePath
}

// Requests returns every call made with the given method, in order
func (m *MockBotClient) Requests(method string) []BotRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []BotRequest
	for _, r := range m.requests {
		if r.Method == method {
			out = append(out, r)
		}
	}
	return out
}

// SentTexts returns the text of every sendMessage call
func (m *MockBotClient) SentTexts() []string {
	var texts []string
	for _, r := range m.Requests("sendMessage") {
		texts = append(texts, r.Params["text"])
	}
	return texts
}

// LastSent returns the most recent sendMessage call, or a zero value when nothing was sent
func (m *MockBotClient) LastSent() BotRequest {
	sent := m.Requests("sendMessage")
	if len(sent) == 0 {
		return BotRequest{}
	}
	return sent[len(sent)-1]
}

type MockBot struct {
	Bot    *gotgbot.Bot
	Client *MockBotClient
}

// NewMockBot creates a bot whose API calls are recorded instead of sent
func NewMockBot() *MockBot {
	client := &MockBotClient{}
	bot := &gotgbot.Bot{
		User: gotgbot.User{
			Id:        12345,
			IsBot:     true,
			FirstName: "Nebo",
			Username:  "nebo_test_bot",
		},
		Token:     "test_token",
		BotClient: client,
	}

	return &MockBot{Bot: bot, Client: client}
}

// MockContextOptions describes the update a test handler receives
type MockContextOptions struct {
	UserID      int64
	FirstName   string
	ChatID      int64
	MessageText string
	Location    *gotgbot.Location
	Data        string
}

// NewMockContext builds an ext.Context for a message, or a callback query when Data is set
func NewMockContext(opts MockContextOptions) *ext.Context {
	if opts.UserID == 0 {
		opts.UserID = 12345
	}
	if opts.FirstName == "" {
		opts.FirstName = "Test"
	}
	if opts.ChatID == 0 {
		opts.ChatID = 12345
	}

	user := &gotgbot.User{Id: opts.UserID, FirstName: opts.FirstName}
	chat := &gotgbot.Chat{Id: opts.ChatID, Type: "private"}
	message := &gotgbot.Message{
		MessageId: 1,
		From:      user,
		Chat:      *chat,
		Text:      opts.MessageText,
		Location:  opts.Location,
	}

	ctx := &ext.Context{
		Update:           &gotgbot.Update{Message: message},
		EffectiveUser:    user,
		EffectiveChat:    chat,
		EffectiveMessage: message,
		Data:             make(map[string]interface{}),
	}

	if opts.Data != "" {
		ctx.Update = &gotgbot.Update{CallbackQuery: &gotgbot.CallbackQuery{
			Id:           "callback-1",
			From:         *user,
			Message:      message,
			ChatInstance: "test_instance",
			Data:         opts.Data,
		}}
	}

	return ctx
}
