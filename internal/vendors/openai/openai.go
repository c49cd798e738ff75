// Package openai adapts the Chat Completions and Images APIs.
package openai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chatforge/chatforge/internal/content"
	"github.com/chatforge/chatforge/internal/vendors"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	imageSize      = "1024x1024"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model               string        `json:"model"`
	Messages            []chatMessage `json:"messages"`
	MaxTokens           *int          `json:"max_tokens,omitempty"`
	MaxCompletionTokens *int          `json:"max_completion_tokens,omitempty"`
	ReasoningEffort     string        `json:"reasoning_effort,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content          *string `json:"content"`
			Reasoning        string  `json:"reasoning"`
			ReasoningContent string  `json:"reasoning_content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// ChatClient speaks the Chat Completions wire format. It is shared by every
// OpenAI-compatible vendor.
type ChatClient struct {
	transport *vendors.Transport
	logger    *slog.Logger
}

func NewChatClient(log *slog.Logger, transport *vendors.Transport) *ChatClient {
	return &ChatClient{
		transport: transport,
		logger:    log.With(slog.String("adapter", transport.Vendor())),
	}
}

func (c *ChatClient) Generate(ctx context.Context, req vendors.Request) (content.Message, error) {
	payload := buildChatRequest(req)

	var resp chatResponse
	if err := c.transport.PostJSON(ctx, "chat/completions", payload, &resp); err != nil {
		return content.Message{}, err
	}
	if len(resp.Choices) == 0 {
		return content.Message{}, vendors.ErrEmptyResponse
	}

	msg := resp.Choices[0].Message
	blocks := make([]content.Block, 0, 2)
	reasoning := msg.ReasoningContent
	if reasoning == "" {
		reasoning = msg.Reasoning
	}
	if strings.TrimSpace(reasoning) != "" {
		blocks = append(blocks, content.ThinkingBlock(reasoning, ""))
	}
	if msg.Content != nil && *msg.Content != "" {
		blocks = append(blocks, content.TextBlock(*msg.Content))
	}
	if len(blocks) == 0 {
		c.logger.Warn("empty completion", slog.String("finish_reason", resp.Choices[0].FinishReason))
		return content.Message{}, vendors.ErrEmptyResponse
	}
	return content.Assistant(blocks...)
}

func buildChatRequest(req vendors.Request) chatRequest {
	reasoning := isReasoningModel(req.ModelAPIName)
	messages := make([]chatMessage, 0, len(req.Transcript)+1)
	if req.SystemPrompt != "" {
		role := "system"
		if reasoning {
			role = "developer"
		}
		messages = append(messages, chatMessage{Role: role, Content: req.SystemPrompt})
	}
	for _, m := range req.Transcript {
		messages = append(messages, toChatMessage(m))
	}

	out := chatRequest{Model: req.ModelAPIName, Messages: messages}
	if reasoning {
		out.MaxCompletionTokens = req.MaxTokens
		out.ReasoningEffort = effortFor(req.Budget())
	} else {
		out.MaxTokens = req.MaxTokens
	}
	return out
}

// toChatMessage keeps user blocks as typed parts so images survive and
// collapses assistant turns to their visible text.
func toChatMessage(m content.Message) chatMessage {
	if !m.Content.IsBlockSequence() {
		return chatMessage{Role: string(m.Role), Content: m.Content.String()}
	}
	if m.Role == content.RoleAssistant {
		texts := make([]string, 0, 1)
		for _, b := range m.Content.Blocks() {
			if b.Type == content.BlockText {
				texts = append(texts, b.Text)
			}
		}
		return chatMessage{Role: string(m.Role), Content: strings.Join(texts, "\n")}
	}
	parts := make([]contentPart, 0, len(m.Content.Blocks()))
	for _, b := range m.Content.Blocks() {
		switch b.Type {
		case content.BlockText:
			parts = append(parts, contentPart{Type: "text", Text: b.Text})
		case content.BlockImage:
			parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: b.URL}})
		}
	}
	return chatMessage{Role: string(m.Role), Content: parts}
}

func isReasoningModel(name string) bool {
	name = strings.ToLower(name)
	for _, prefix := range []string{"o1", "o3", "o4"} {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func effortFor(budget int) string {
	switch {
	case budget <= 0:
		return ""
	case budget <= 2048:
		return "low"
	case budget <= 8192:
		return "medium"
	default:
		return "high"
	}
}

type imageRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size"`
}

type imageResponse struct {
	Data []struct {
		URL     string `json:"url"`
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// Adapter is the OpenAI vendor: chat completions plus image generation.
type Adapter struct {
	*ChatClient
}

func New(log *slog.Logger, cfg vendors.Config) *Adapter {
	transport := vendors.NewTransport(log, "openai", cfg, DefaultBaseURL)
	transport.SetDefaultHeader("Authorization", "Bearer "+cfg.APIKey)
	return &Adapter{ChatClient: NewChatClient(log, transport)}
}

func (a *Adapter) GenerateImage(ctx context.Context, req vendors.Request) (string, error) {
	prompt := strings.TrimSpace(req.LastUserText())
	if prompt == "" {
		return "", fmt.Errorf("image prompt is empty")
	}
	payload := imageRequest{Model: req.ModelAPIName, Prompt: prompt, N: 1, Size: imageSize}

	var resp imageResponse
	if err := a.transport.PostJSON(ctx, "images/generations", payload, &resp); err != nil {
		return "", err
	}
	if len(resp.Data) == 0 {
		return "", vendors.ErrEmptyResponse
	}
	if resp.Data[0].URL != "" {
		return resp.Data[0].URL, nil
	}
	if resp.Data[0].B64JSON != "" {
		return "data:image/png;base64," + resp.Data[0].B64JSON, nil
	}
	return "", vendors.ErrEmptyResponse
}
