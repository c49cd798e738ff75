package chat

import (
	"context"
	"io"

	"github.com/chatforge/chatforge/internal/content"
	"github.com/chatforge/chatforge/internal/models"
	"github.com/chatforge/chatforge/internal/outputformats"
	"github.com/chatforge/chatforge/internal/personas"
	"github.com/chatforge/chatforge/internal/tools"
	"github.com/chatforge/chatforge/internal/vendors"
)

type PersonaReader interface {
	Get(ctx context.Context, id int64) (personas.Persona, error)
}

type OutputFormatReader interface {
	Get(ctx context.Context, id int64) (outputformats.OutputFormat, error)
	RenderTypeName(ctx context.Context, outputFormatID int64) (string, error)
}

type ModelReader interface {
	GetByID(ctx context.Context, id int64) (models.Descriptor, error)
	GetByAPIName(ctx context.Context, apiName string) (models.Descriptor, error)
}

type ToolReader interface {
	Get(ctx context.Context, id int64) (tools.Binding, error)
}

// ImageUploader stores an uploaded image and returns its public URL.
type ImageUploader interface {
	Upload(ctx context.Context, filename string, reader io.Reader) (string, error)
}

type QuotaGate interface {
	Check(ctx context.Context, userID int64) error
	Record(ctx context.Context, userID int64, requestID string, amount int) error
}

type HistoryWriter interface {
	Save(ctx context.Context, userID, modelID int64, transcript []content.Message) (int64, error)
}

// Adapters looks up the vendor adapter for a model. *vendors.Registry
// satisfies it.
type Adapters interface {
	Generator(vendor models.Vendor) (vendors.Generator, error)
	ImageGenerator(vendor models.Vendor) (vendors.ImageGenerator, bool)
	ToolGenerator(vendor models.Vendor) (vendors.ToolGenerator, bool)
}

// Option is a lookup result that may be absent.
type Option[T any] struct {
	Value T
	Valid bool
}

func Some[T any](v T) Option[T] { return Option[T]{Value: v, Valid: true} }

// Route names the single dispatch path a request takes.
type Route string

const (
	RouteImage    Route = "image"
	RouteTool     Route = "tool"
	RouteThinking Route = "thinking"
	RoutePlain    Route = "plain"
)

// Result is the chat state returned to the caller.
type Result struct {
	Model           string            `json:"model"`
	ModelID         int64             `json:"model_id"`
	PersonaID       int64             `json:"persona_id"`
	OutputFormatID  int64             `json:"output_format_id"`
	RenderTypeName  string            `json:"render_type_name"`
	Prompt          string            `json:"prompt"`
	MaxTokens       *int              `json:"max_tokens"`
	BudgetTokens    *int              `json:"budget_tokens"`
	SystemPrompt    string            `json:"system_prompt"`
	ToolID          int64             `json:"tool_id"`
	VisionURL       string            `json:"vision_url"`
	ResponseHistory []content.Message `json:"response_history"`
	ImageURL        string            `json:"image_url"`
	ConversationID  int64             `json:"conversation_id,omitempty"`
}
