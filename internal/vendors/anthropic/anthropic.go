// Package anthropic adapts the Messages API, including extended thinking
// and MCP tool use.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chatforge/chatforge/internal/content"
	"github.com/chatforge/chatforge/internal/mcp"
	"github.com/chatforge/chatforge/internal/prune"
	"github.com/chatforge/chatforge/internal/tools"
	"github.com/chatforge/chatforge/internal/vendors"
)

const (
	// Origin tags thinking blocks produced here; only those are replayed.
	Origin = "anthropic"

	DefaultBaseURL       = "https://api.anthropic.com"
	APIVersion           = "2023-06-01"
	DefaultMaxTokens     = 4096
	MinThinkingBudget    = 1024
	DefaultMaxToolRounds = 8
)

type imageSource struct {
	Type      string `json:"type"`
	URL       string `json:"url,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
}

type wireBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	Thinking  string          `json:"thinking,omitempty"`
	Signature string          `json:"signature,omitempty"`
	Data      string          `json:"data,omitempty"`
	Source    *imageSource    `json:"source,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type wireMessage struct {
	Role    string      `json:"role"`
	Content []wireBlock `json:"content"`
}

type thinkingConfig struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens"`
}

type toolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

type messageRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	System    string          `json:"system,omitempty"`
	Messages  []wireMessage   `json:"messages"`
	Thinking  *thinkingConfig `json:"thinking,omitempty"`
	Tools     []toolSpec      `json:"tools,omitempty"`
}

type messageResponse struct {
	Content    []wireBlock `json:"content"`
	StopReason string      `json:"stop_reason"`
}

type Adapter struct {
	transport     *vendors.Transport
	connector     mcp.Connector
	maxToolRounds int
	logger        *slog.Logger
}

// New builds the adapter. connector may be nil, in which case tool requests
// fail.
func New(log *slog.Logger, cfg vendors.Config, connector mcp.Connector, maxToolRounds int) *Adapter {
	transport := vendors.NewTransport(log, "anthropic", cfg, DefaultBaseURL)
	transport.SetDefaultHeader("x-api-key", cfg.APIKey)
	transport.SetDefaultHeader("anthropic-version", APIVersion)
	if maxToolRounds <= 0 {
		maxToolRounds = DefaultMaxToolRounds
	}
	return &Adapter{
		transport:     transport,
		connector:     connector,
		maxToolRounds: maxToolRounds,
		logger:        log.With(slog.String("adapter", "anthropic")),
	}
}

func (a *Adapter) Generate(ctx context.Context, req vendors.Request) (content.Message, error) {
	payload, err := buildRequest(req)
	if err != nil {
		return content.Message{}, err
	}
	resp, err := a.send(ctx, payload)
	if err != nil {
		return content.Message{}, err
	}
	return toAssistant(resp.Content)
}

// GenerateWithTool connects to the binding's MCP server, advertises its
// tools and answers tool_use turns until the model stops asking.
func (a *Adapter) GenerateWithTool(ctx context.Context, req vendors.Request, binding tools.Binding) (content.Message, error) {
	if a.connector == nil {
		return content.Message{}, fmt.Errorf("anthropic: no MCP connector configured")
	}
	payload, err := buildRequest(req)
	if err != nil {
		return content.Message{}, err
	}

	session, err := a.connector.Connect(ctx, binding)
	if err != nil {
		return content.Message{}, fmt.Errorf("connect tool %q: %w", binding.Name, err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			a.logger.Warn("close mcp session failed", slog.String("tool", binding.Name), slog.Any("error", cerr))
		}
	}()

	descriptors, err := session.ListTools(ctx)
	if err != nil {
		return content.Message{}, fmt.Errorf("list tools of %q: %w", binding.Name, err)
	}
	payload.Tools = make([]toolSpec, 0, len(descriptors))
	listed := make(map[string]struct{}, len(descriptors))
	for _, d := range descriptors {
		payload.Tools = append(payload.Tools, toolSpec{Name: d.Name, Description: d.Description, InputSchema: d.InputSchema})
		listed[d.Name] = struct{}{}
	}

	for round := 0; round < a.maxToolRounds; round++ {
		resp, err := a.send(ctx, payload)
		if err != nil {
			return content.Message{}, err
		}
		uses := toolUses(resp.Content)
		if resp.StopReason != "tool_use" || len(uses) == 0 {
			return toAssistant(resp.Content)
		}

		results := make([]wireBlock, 0, len(uses))
		for _, use := range uses {
			if _, ok := listed[use.Name]; !ok {
				a.logger.Warn("model requested unlisted tool", slog.String("name", use.Name))
				err := fmt.Errorf("%w: %q", mcp.ErrToolNotFound, use.Name)
				results = append(results, wireBlock{Type: "tool_result", ToolUseID: use.ID, Content: err.Error(), IsError: true})
				continue
			}
			results = append(results, a.callTool(ctx, session, use))
		}
		payload.Messages = append(payload.Messages,
			wireMessage{Role: "assistant", Content: replayable(resp.Content)},
			wireMessage{Role: "user", Content: results},
		)
	}
	return content.Message{}, fmt.Errorf("%w: %d rounds", vendors.ErrToolRoundsExceeded, a.maxToolRounds)
}

func (a *Adapter) callTool(ctx context.Context, session mcp.Session, use wireBlock) wireBlock {
	args := map[string]any{}
	if len(use.Input) > 0 {
		if err := json.Unmarshal(use.Input, &args); err != nil {
			return wireBlock{Type: "tool_result", ToolUseID: use.ID, Content: "invalid tool input: " + err.Error(), IsError: true}
		}
	}
	a.logger.Debug("calling mcp tool", slog.String("name", use.Name))
	result, err := session.CallTool(ctx, use.Name, args)
	if err != nil {
		a.logger.Warn("mcp tool call failed", slog.String("name", use.Name), slog.Any("error", err))
		return wireBlock{Type: "tool_result", ToolUseID: use.ID, Content: err.Error(), IsError: true}
	}
	text := result.Text
	if prune.Exceeds(text, prune.Limits{}) {
		a.logger.Debug("pruning mcp tool output", slog.String("name", use.Name), slog.Int("bytes", len(text)))
		text = prune.Text(text, prune.Limits{})
	}
	return wireBlock{Type: "tool_result", ToolUseID: use.ID, Content: text, IsError: result.IsError}
}

func (a *Adapter) send(ctx context.Context, payload messageRequest) (messageResponse, error) {
	var resp messageResponse
	if err := a.transport.PostJSON(ctx, "v1/messages", payload, &resp); err != nil {
		return messageResponse{}, err
	}
	return resp, nil
}

func buildRequest(req vendors.Request) (messageRequest, error) {
	messages := make([]wireMessage, 0, len(req.Transcript))
	for _, m := range req.Transcript {
		wm, ok := toWire(m)
		if ok {
			messages = append(messages, wm)
		}
	}
	if len(messages) == 0 {
		return messageRequest{}, fmt.Errorf("anthropic: transcript has no sendable messages")
	}

	maxTokens := DefaultMaxTokens
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		maxTokens = *req.MaxTokens
	}
	out := messageRequest{
		Model:     req.ModelAPIName,
		MaxTokens: maxTokens,
		System:    req.SystemPrompt,
		Messages:  messages,
	}
	if budget := req.Budget(); budget > 0 {
		if budget < MinThinkingBudget {
			budget = MinThinkingBudget
		}
		if out.MaxTokens <= budget {
			out.MaxTokens = budget + DefaultMaxTokens
		}
		out.Thinking = &thinkingConfig{Type: "enabled", BudgetTokens: budget}
	}
	return out, nil
}

// toWire converts one transcript entry. Thinking is replayed only when it was
// signed here; assistant images become a text placeholder since the API takes
// images in user turns only.
func toWire(m content.Message) (wireMessage, bool) {
	if !m.Content.IsBlockSequence() {
		if m.Content.String() == "" {
			return wireMessage{}, false
		}
		return wireMessage{Role: string(m.Role), Content: []wireBlock{{Type: "text", Text: m.Content.String()}}}, true
	}
	blocks := make([]wireBlock, 0, len(m.Content.Blocks()))
	for _, b := range m.Content.Blocks() {
		switch b.Type {
		case content.BlockText:
			if b.Text != "" {
				blocks = append(blocks, wireBlock{Type: "text", Text: b.Text})
			}
		case content.BlockThinking:
			if b.Origin == Origin && b.Signature != "" {
				blocks = append(blocks, wireBlock{Type: "thinking", Thinking: b.Thinking, Signature: b.Signature})
			}
		case content.BlockRedactedThinking:
			if b.Origin == Origin {
				blocks = append(blocks, wireBlock{Type: "redacted_thinking", Data: b.Data})
			}
		case content.BlockImage:
			if m.Role == content.RoleAssistant {
				blocks = append(blocks, wireBlock{Type: "text", Text: content.ImagePlaceholder})
				continue
			}
			blocks = append(blocks, wireBlock{Type: "image", Source: imageSourceFor(b.URL)})
		}
	}
	if len(blocks) == 0 {
		return wireMessage{}, false
	}
	return wireMessage{Role: string(m.Role), Content: blocks}, true
}

func imageSourceFor(url string) *imageSource {
	if mediaType, data, ok := parseDataURL(url); ok {
		return &imageSource{Type: "base64", MediaType: mediaType, Data: data}
	}
	return &imageSource{Type: "url", URL: url}
}

func parseDataURL(url string) (string, string, bool) {
	rest, ok := strings.CutPrefix(url, "data:")
	if !ok {
		return "", "", false
	}
	meta, data, ok := strings.Cut(rest, ",")
	if !ok {
		return "", "", false
	}
	mediaType, ok := strings.CutSuffix(meta, ";base64")
	if !ok || mediaType == "" {
		return "", "", false
	}
	return mediaType, data, true
}

// replayable drops empty text blocks, which the API rejects on resend.
func replayable(blocks []wireBlock) []wireBlock {
	out := make([]wireBlock, 0, len(blocks))
	for _, b := range blocks {
		if b.Type == "text" && b.Text == "" {
			continue
		}
		out = append(out, b)
	}
	return out
}

func toolUses(blocks []wireBlock) []wireBlock {
	var uses []wireBlock
	for _, b := range blocks {
		if b.Type == "tool_use" {
			uses = append(uses, b)
		}
	}
	return uses
}

func toAssistant(blocks []wireBlock) (content.Message, error) {
	out := make([]content.Block, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case "text":
			out = append(out, content.TextBlock(b.Text))
		case "thinking":
			out = append(out, content.ThinkingBlock(b.Thinking, b.Signature).From(Origin))
		case "redacted_thinking":
			out = append(out, content.RedactedThinkingBlock(b.Data).From(Origin))
		case "tool_use":
			// answered by the tool loop
		default:
			return content.Message{}, fmt.Errorf("anthropic response: %w: %q", content.ErrUnknownBlockKind, b.Type)
		}
	}
	if len(out) == 0 {
		return content.Message{}, vendors.ErrEmptyResponse
	}
	return content.Assistant(out...)
}
