package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/google/uuid"

	"github.com/chatforge/chatforge/internal/content"
	"github.com/chatforge/chatforge/internal/models"
	"github.com/chatforge/chatforge/internal/usage"
	"github.com/chatforge/chatforge/internal/vendors"
)

// UsageUnit is the amount charged per successful request.
const UsageUnit = 1

type state string

const (
	stateValidating        state = "validating"
	stateContextAssembling state = "context_assembling"
	stateQuotaChecking     state = "quota_checking"
	stateDispatching       state = "dispatching"
	stateMerging           state = "merging"
	stateDone              state = "done"
	stateFailed            state = "failed"
)

// Deps are the collaborators of the chat service.
type Deps struct {
	Models        ModelReader
	Personas      PersonaReader
	OutputFormats OutputFormatReader
	Tools         ToolReader
	Uploader      ImageUploader
	Quota         QuotaGate
	History       HistoryWriter
	Adapters      Adapters
}

// Service runs one chat turn from form submission to merged transcript.
type Service struct {
	resolver     *CapabilityResolver
	assembler    *Assembler
	quota        QuotaGate
	history      HistoryWriter
	adapters     Adapters
	newRequestID func() string
	logger       *slog.Logger
}

func NewService(log *slog.Logger, deps Deps) *Service {
	return &Service{
		resolver:     NewCapabilityResolver(deps.Models, deps.Adapters),
		assembler:    NewAssembler(log, deps.Personas, deps.OutputFormats, deps.Tools, deps.Uploader),
		quota:        deps.Quota,
		history:      deps.History,
		adapters:     deps.Adapters,
		newRequestID: uuid.NewString,
		logger:       log.With(slog.String("service", "chat")),
	}
}

// CreateChat validates the submission, gathers context, checks quota,
// dispatches to the model's vendor and returns the new chat state. On any
// error no result is produced and the submitted history is untouched.
func (s *Service) CreateChat(ctx context.Context, userID int64, fields url.Values, image *Image) (Result, error) {
	requestID := s.newRequestID()
	log := s.logger.With(slog.String("request_id", requestID), slog.Int64("user_id", userID))
	transition := func(to state) { log.Debug("chat state", slog.String("state", string(to))) }
	fail := func(kind string, err error) (Result, error) {
		log.Debug("chat state", slog.String("state", string(stateFailed)), slog.String("kind", kind), slog.Any("error", err))
		return Result{}, err
	}

	transition(stateValidating)
	form, err := ParseForm(fields, image)
	if err != nil {
		return fail("validation", err)
	}

	transition(stateContextAssembling)
	capability, err := s.resolver.Resolve(ctx, form.Model)
	if err != nil {
		return fail("model", err)
	}
	model := capability.Model
	assembled := s.assembler.Assemble(ctx, AssembleInput{
		PersonaID:      form.PersonaID,
		OutputFormatID: form.OutputFormatID,
		ToolID:         form.ToolID,
		Vendor:         model.Vendor,
		VisionAllowed:  capability.VisionAllowed,
		Image:          form.Image,
	})
	transcript := content.Append(form.History, content.UserTextWithImage(form.Prompt, assembled.VisionURL))

	transition(stateQuotaChecking)
	if err := s.checkQuota(ctx, userID); err != nil {
		return fail("quota", err)
	}

	transition(stateDispatching)
	req := vendors.Request{
		Transcript:   transcript,
		ModelAPIName: model.APIName,
		ModelID:      model.ID,
		SystemPrompt: assembled.SystemPrompt,
		VisionURL:    assembled.VisionURL,
		Prompt:       form.Prompt,
	}
	if !capability.VisionAllowed {
		req.Transcript = content.WithoutImages(transcript)
	}
	// Models that draw without a dedicated image endpoint answer inline.
	req.ImageOutput = model.Capabilities.ImageGeneration && !capability.ImageGenerationRoute
	if capability.ThinkingAllowed {
		req.MaxTokens = form.MaxTokens
		req.BudgetTokens = form.BudgetTokens
	}
	if assembled.Tool.Valid {
		req.ToolID = assembled.Tool.Value.ID
	}
	route := s.route(capability, assembled, req)
	log.Info("dispatching chat",
		slog.String("model", model.APIName),
		slog.String("vendor", string(model.Vendor)),
		slog.String("route", string(route)),
	)
	reply, imageURL, err := s.dispatch(ctx, route, model.Vendor, req, assembled)
	if err != nil {
		log.Error("chat dispatch failed",
			slog.String("model", model.APIName),
			slog.String("route", string(route)),
			slog.Any("error", err),
		)
		return fail("dispatch", &DispatchError{Vendor: string(model.Vendor), Route: route, Cause: err})
	}

	transition(stateMerging)
	result := Result{
		Model:          model.APIName,
		ModelID:        model.ID,
		PersonaID:      form.PersonaID,
		OutputFormatID: form.OutputFormatID,
		RenderTypeName: assembled.RenderTypeName,
		Prompt:         form.Prompt,
		MaxTokens:      req.MaxTokens,
		BudgetTokens:   req.BudgetTokens,
		SystemPrompt:   assembled.SystemPrompt,
		ToolID:         req.ToolID,
		VisionURL:      assembled.VisionURL,
	}
	if route == RouteImage {
		result.ResponseHistory = transcript
		result.ImageURL = imageURL
	} else {
		result.ResponseHistory = content.Append(transcript, reply)
		result.VisionURL = ""
	}

	if err := s.quota.Record(ctx, userID, requestID, UsageUnit); err != nil {
		log.Error("record usage failed", slog.Any("error", err))
	}
	if form.Save && s.history != nil {
		id, err := s.history.Save(ctx, userID, model.ID, result.ResponseHistory)
		if err != nil {
			log.Warn("save conversation failed", slog.Any("error", err))
		} else {
			result.ConversationID = id
		}
	}
	transition(stateDone)
	return result, nil
}

func (s *Service) checkQuota(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return ErrUnauthenticated
	}
	err := s.quota.Check(ctx, userID)
	if err == nil {
		return nil
	}
	if errors.Is(err, usage.ErrLimitExceeded) {
		return err
	}
	if errors.Is(err, usage.ErrUserUnavailable) {
		return fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	s.logger.Error("usage check failed", slog.Int64("user_id", userID), slog.Any("error", err))
	return fmt.Errorf("%w: %w", ErrUsageCheckFailed, err)
}

// route picks exactly one dispatch path.
func (s *Service) route(c Capability, a Assembled, req vendors.Request) Route {
	switch {
	case c.ImageGenerationRoute:
		return RouteImage
	case req.ToolID > 0 && c.Model.Vendor == models.VendorAnthropic && a.Tool.Valid:
		if _, ok := s.adapters.ToolGenerator(c.Model.Vendor); ok {
			return RouteTool
		}
		return RoutePlain
	case c.ThinkingAllowed && req.Budget() > 0:
		return RouteThinking
	default:
		return RoutePlain
	}
}

func (s *Service) dispatch(ctx context.Context, route Route, vendor models.Vendor, req vendors.Request, a Assembled) (content.Message, string, error) {
	switch route {
	case RouteImage:
		g, ok := s.adapters.ImageGenerator(vendor)
		if !ok {
			return content.Message{}, "", fmt.Errorf("vendor %s cannot generate images", vendor)
		}
		imageURL, err := g.GenerateImage(ctx, req)
		if err != nil {
			return content.Message{}, "", err
		}
		if imageURL == "" {
			return content.Message{}, "", vendors.ErrEmptyResponse
		}
		return content.Message{}, imageURL, nil
	case RouteTool:
		g, _ := s.adapters.ToolGenerator(vendor)
		reply, err := g.GenerateWithTool(ctx, req, a.Tool.Value)
		return reply, "", err
	default:
		g, err := s.adapters.Generator(vendor)
		if err != nil {
			return content.Message{}, "", err
		}
		reply, err := g.Generate(ctx, req)
		return reply, "", err
	}
}
