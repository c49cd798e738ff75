package chat

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/chatforge/chatforge/internal/models"
	"github.com/chatforge/chatforge/internal/outputformats"
	"github.com/chatforge/chatforge/internal/tools"
)

// AssembleInput carries what the assembler needs from the form and the
// resolved capability.
type AssembleInput struct {
	PersonaID      int64
	OutputFormatID int64
	ToolID         int64
	Vendor         models.Vendor
	VisionAllowed  bool
	Image          *Image
}

// Assembled is the optional context gathered before dispatch.
type Assembled struct {
	SystemPrompt   string
	RenderTypeName string
	Tool           Option[tools.Binding]
	VisionURL      string
}

// Assembler gathers persona, output format, tool and image context. None of
// its lookups can fail a request.
type Assembler struct {
	personas      PersonaReader
	outputFormats OutputFormatReader
	tools         ToolReader
	uploader      ImageUploader
	logger        *slog.Logger
}

func NewAssembler(log *slog.Logger, personas PersonaReader, outputFormats OutputFormatReader, toolReader ToolReader, uploader ImageUploader) *Assembler {
	return &Assembler{
		personas:      personas,
		outputFormats: outputFormats,
		tools:         toolReader,
		uploader:      uploader,
		logger:        log.With(slog.String("service", "chat_assembler")),
	}
}

type formatContext struct {
	prompt     Option[string]
	renderType string
}

func (a *Assembler) Assemble(ctx context.Context, in AssembleInput) Assembled {
	var (
		persona Option[string]
		format  = formatContext{renderType: outputformats.DefaultRenderType}
		tool    Option[tools.Binding]
		vision  Option[string]
	)

	var g errgroup.Group
	g.Go(func() error {
		persona = a.personaPrompt(ctx, in.PersonaID)
		return nil
	})
	g.Go(func() error {
		format = a.outputFormat(ctx, in.OutputFormatID)
		return nil
	})
	g.Go(func() error {
		tool = a.tool(ctx, in.ToolID, in.Vendor)
		return nil
	})
	g.Go(func() error {
		vision = a.upload(ctx, in.Image, in.VisionAllowed)
		return nil
	})
	_ = g.Wait()

	parts := make([]string, 0, 2)
	if persona.Valid && persona.Value != "" {
		parts = append(parts, persona.Value)
	}
	if format.prompt.Valid && format.prompt.Value != "" {
		parts = append(parts, format.prompt.Value)
	}
	return Assembled{
		SystemPrompt:   strings.Join(parts, " "),
		RenderTypeName: format.renderType,
		Tool:           tool,
		VisionURL:      vision.Value,
	}
}

func (a *Assembler) personaPrompt(ctx context.Context, id int64) Option[string] {
	if id <= 0 {
		return Option[string]{}
	}
	p, err := a.personas.Get(ctx, id)
	if err != nil {
		a.logger.Warn("persona lookup failed", slog.Int64("persona_id", id), slog.Any("error", err))
		return Option[string]{}
	}
	return Some(strings.TrimSpace(p.Prompt))
}

func (a *Assembler) outputFormat(ctx context.Context, id int64) formatContext {
	out := formatContext{renderType: outputformats.DefaultRenderType}
	if id <= 0 {
		return out
	}
	if name, err := a.outputFormats.RenderTypeName(ctx, id); err != nil {
		a.logger.Warn("render type lookup failed", slog.Int64("output_format_id", id), slog.Any("error", err))
	} else if name != "" {
		out.renderType = name
	}
	f, err := a.outputFormats.Get(ctx, id)
	if err != nil {
		a.logger.Warn("output format lookup failed", slog.Int64("output_format_id", id), slog.Any("error", err))
		return out
	}
	out.prompt = Some(strings.TrimSpace(f.Prompt))
	return out
}

// tool resolves a binding only for vendors that can drive MCP tools.
func (a *Assembler) tool(ctx context.Context, id int64, vendor models.Vendor) Option[tools.Binding] {
	if id <= 0 || vendor != models.VendorAnthropic || a.tools == nil {
		return Option[tools.Binding]{}
	}
	b, err := a.tools.Get(ctx, id)
	if err != nil {
		a.logger.Warn("tool lookup failed", slog.Int64("tool_id", id), slog.Any("error", err))
		return Option[tools.Binding]{}
	}
	return Some(b)
}

func (a *Assembler) upload(ctx context.Context, img *Image, visionAllowed bool) Option[string] {
	if img == nil {
		return Option[string]{}
	}
	if !visionAllowed {
		a.logger.Info("dropping image for model without vision", slog.String("filename", img.Filename))
		return Option[string]{}
	}
	if a.uploader == nil {
		return Option[string]{}
	}
	url, err := a.uploader.Upload(ctx, img.Filename, img.Body)
	if err != nil {
		a.logger.Warn("image upload failed", slog.String("filename", img.Filename), slog.Any("error", err))
		return Option[string]{}
	}
	return Some(url)
}
