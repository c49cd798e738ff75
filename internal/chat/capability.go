package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/chatforge/chatforge/internal/models"
)

// Capability is the routing decision derived from a model descriptor.
type Capability struct {
	Model                models.Descriptor
	VisionAllowed        bool
	ImageGenerationRoute bool
	ThinkingAllowed      bool
}

type CapabilityResolver struct {
	models   ModelReader
	adapters Adapters
}

func NewCapabilityResolver(models ModelReader, adapters Adapters) *CapabilityResolver {
	return &CapabilityResolver{models: models, adapters: adapters}
}

// Resolve looks the model up by numeric id, falling back to its API name.
func (r *CapabilityResolver) Resolve(ctx context.Context, modelRef string) (Capability, error) {
	desc, err := r.lookup(ctx, modelRef)
	if err != nil {
		return Capability{}, err
	}
	_, canDraw := r.adapters.ImageGenerator(desc.Vendor)
	return Capability{
		Model:                desc,
		VisionAllowed:        desc.Capabilities.Vision,
		ImageGenerationRoute: desc.Capabilities.ImageGeneration && canDraw,
		ThinkingAllowed:      desc.Capabilities.Thinking,
	}, nil
}

func (r *CapabilityResolver) lookup(ctx context.Context, ref string) (models.Descriptor, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil && id > 0 {
		desc, err := r.models.GetByID(ctx, id)
		if err == nil {
			return desc, nil
		}
		if !errors.Is(err, models.ErrModelNotFound) {
			return models.Descriptor{}, fmt.Errorf("resolve model %q: %w", ref, err)
		}
	}
	desc, err := r.models.GetByAPIName(ctx, ref)
	if err != nil {
		if errors.Is(err, models.ErrModelNotFound) {
			return models.Descriptor{}, fmt.Errorf("%w: %s", ErrModelNotFound, ref)
		}
		return models.Descriptor{}, fmt.Errorf("resolve model %q: %w", ref, err)
	}
	return desc, nil
}
