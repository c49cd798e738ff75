// Package openrouter routes OpenAI-compatible chat completions through
// OpenRouter.
package openrouter

import (
	"log/slog"

	"github.com/chatforge/chatforge/internal/vendors"
	"github.com/chatforge/chatforge/internal/vendors/openai"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultReferer = "https://github.com/chatforge/chatforge"
	DefaultTitle   = "Chatforge"
)

type Adapter struct {
	*openai.ChatClient
}

func New(log *slog.Logger, cfg vendors.Config) *Adapter {
	transport := vendors.NewTransport(log, "openrouter", cfg, DefaultBaseURL)
	transport.SetDefaultHeader("Authorization", "Bearer "+cfg.APIKey)
	transport.SetDefaultHeader("HTTP-Referer", DefaultReferer)
	transport.SetDefaultHeader("X-Title", DefaultTitle)
	return &Adapter{ChatClient: openai.NewChatClient(log, transport)}
}
