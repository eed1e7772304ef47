// Package assistant talks to generative-text endpoints on behalf of the chat panel.
package assistant

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoAPIKey is returned when a generator is used without credentials
var ErrNoAPIKey = errors.New("assistant API key is not configured")

// Generator turns a prompt into a single text answer.
// An empty answer with a nil error means the endpoint returned no candidates.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Options selects and configures one generator backend
type Options struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
}

// New builds the generator named by opts.Provider
func New(opts Options) (Generator, error) {
	switch opts.Provider {
	case "", ProviderGemini:
		return NewGeminiClient(opts.APIKey, WithGeminiBaseURL(opts.BaseURL), WithGeminiModel(opts.Model)), nil
	case ProviderOpenAI:
		return NewOpenAIClient(opts.APIKey, opts.BaseURL, opts.Model), nil
	default:
		return nil, fmt.Errorf("unknown assistant provider %q", opts.Provider)
	}
}
