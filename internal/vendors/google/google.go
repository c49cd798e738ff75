// Package google adapts the Gemini generateContent API.
package google

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/chatforge/chatforge/internal/content"
	"github.com/chatforge/chatforge/internal/vendors"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	Origin         = "google"
)

type part struct {
	Text             string      `json:"text,omitempty"`
	Thought          bool        `json:"thought,omitempty"`
	ThoughtSignature string      `json:"thoughtSignature,omitempty"`
	InlineData       *inlineData `json:"inlineData,omitempty"`
	FileData         *fileData   `json:"fileData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type fileData struct {
	MimeType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri"`
}

type contentEntry struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type thinkingConfig struct {
	ThinkingBudget  int  `json:"thinkingBudget"`
	IncludeThoughts bool `json:"includeThoughts"`
}

type generationConfig struct {
	MaxOutputTokens    *int            `json:"maxOutputTokens,omitempty"`
	ThinkingConfig     *thinkingConfig `json:"thinkingConfig,omitempty"`
	ResponseModalities []string        `json:"responseModalities,omitempty"`
}

type generateRequest struct {
	Contents          []contentEntry    `json:"contents"`
	SystemInstruction *contentEntry     `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      contentEntry `json:"content"`
		FinishReason string       `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type Adapter struct {
	transport *vendors.Transport
	logger    *slog.Logger
}

func New(log *slog.Logger, cfg vendors.Config) *Adapter {
	transport := vendors.NewTransport(log, "google", cfg, DefaultBaseURL)
	transport.SetDefaultHeader("x-goog-api-key", cfg.APIKey)
	return &Adapter{
		transport: transport,
		logger:    log.With(slog.String("adapter", "google")),
	}
}

func (a *Adapter) Generate(ctx context.Context, req vendors.Request) (content.Message, error) {
	payload := buildRequest(req)
	if len(payload.Contents) == 0 {
		return content.Message{}, fmt.Errorf("google: transcript has no sendable messages")
	}
	endpoint := fmt.Sprintf("v1beta/models/%s:generateContent", url.PathEscape(req.ModelAPIName))

	var resp generateResponse
	if err := a.transport.PostJSON(ctx, endpoint, payload, &resp); err != nil {
		return content.Message{}, err
	}
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback.BlockReason != "" {
			return content.Message{}, fmt.Errorf("google: prompt blocked: %s", resp.PromptFeedback.BlockReason)
		}
		return content.Message{}, vendors.ErrEmptyResponse
	}

	blocks := make([]content.Block, 0, len(resp.Candidates[0].Content.Parts))
	for _, p := range resp.Candidates[0].Content.Parts {
		switch {
		case p.Thought:
			blocks = append(blocks, content.ThinkingBlock(p.Text, p.ThoughtSignature).From(Origin))
		case p.InlineData != nil:
			blocks = append(blocks, content.ImageBlock("data:"+p.InlineData.MimeType+";base64,"+p.InlineData.Data))
		case p.Text != "":
			blocks = append(blocks, content.TextBlock(p.Text))
		}
	}
	if len(blocks) == 0 {
		a.logger.Warn("empty candidate", slog.String("finish_reason", resp.Candidates[0].FinishReason))
		return content.Message{}, vendors.ErrEmptyResponse
	}
	return content.Assistant(blocks...)
}

func buildRequest(req vendors.Request) generateRequest {
	out := generateRequest{Contents: make([]contentEntry, 0, len(req.Transcript))}
	for _, m := range req.Transcript {
		if entry, ok := toEntry(m); ok {
			out.Contents = append(out.Contents, entry)
		}
	}
	if req.SystemPrompt != "" {
		out.SystemInstruction = &contentEntry{Parts: []part{{Text: req.SystemPrompt}}}
	}

	gen := &generationConfig{MaxOutputTokens: req.MaxTokens}
	if budget := req.Budget(); budget > 0 {
		gen.ThinkingConfig = &thinkingConfig{ThinkingBudget: budget, IncludeThoughts: true}
	}
	if req.ImageOutput {
		gen.ResponseModalities = []string{"TEXT", "IMAGE"}
	}
	if gen.MaxOutputTokens != nil || gen.ThinkingConfig != nil || gen.ResponseModalities != nil {
		out.GenerationConfig = gen
	}
	return out
}

func toEntry(m content.Message) (contentEntry, bool) {
	role := "user"
	if m.Role == content.RoleAssistant {
		role = "model"
	}
	if !m.Content.IsBlockSequence() {
		if m.Content.String() == "" {
			return contentEntry{}, false
		}
		return contentEntry{Role: role, Parts: []part{{Text: m.Content.String()}}}, true
	}
	parts := make([]part, 0, len(m.Content.Blocks()))
	for _, b := range m.Content.Blocks() {
		switch b.Type {
		case content.BlockText:
			if b.Text != "" {
				parts = append(parts, part{Text: b.Text})
			}
		case content.BlockImage:
			parts = append(parts, imagePart(b.URL))
		}
	}
	if len(parts) == 0 {
		return contentEntry{}, false
	}
	return contentEntry{Role: role, Parts: parts}, true
}

func imagePart(ref string) part {
	if rest, ok := strings.CutPrefix(ref, "data:"); ok {
		if meta, data, ok := strings.Cut(rest, ","); ok {
			if mimeType, ok := strings.CutSuffix(meta, ";base64"); ok {
				return part{InlineData: &inlineData{MimeType: mimeType, Data: data}}
			}
		}
	}
	return part{FileData: &fileData{MimeType: guessMimeType(ref), FileURI: ref}}
}

func guessMimeType(ref string) string {
	p := ref
	if u, err := url.Parse(ref); err == nil {
		p = u.Path
	}
	if t := mime.TypeByExtension(strings.ToLower(path.Ext(p))); t != "" {
		if mediaType, _, err := mime.ParseMediaType(t); err == nil {
			return mediaType
		}
		return t
	}
	return "image/jpeg"
}
