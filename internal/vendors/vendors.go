// Package vendors defines the adapter contracts the chat flow dispatches to
// and the shared HTTP transport the concrete adapters are built on.
package vendors

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/chatforge/chatforge/internal/config"
	"github.com/chatforge/chatforge/internal/content"
	"github.com/chatforge/chatforge/internal/models"
	"github.com/chatforge/chatforge/internal/tools"
)

var (
	ErrUnknownVendor      = errors.New("no adapter registered for vendor")
	ErrEmptyResponse      = errors.New("vendor returned no content")
	ErrToolRoundsExceeded = errors.New("tool round limit exceeded")
)

// Request is the normalized input every adapter receives. The last
// transcript entry is the user message being answered.
type Request struct {
	Transcript   []content.Message
	ModelAPIName string
	ModelID      int64
	MaxTokens    *int
	BudgetTokens *int
	SystemPrompt string
	VisionURL    string
	ToolID       int64
	Prompt       string
	// ImageOutput asks vendors that can mix modalities to return images inline.
	ImageOutput bool
}

// Budget returns the thinking budget, or 0 when none was requested.
func (r Request) Budget() int {
	if r.BudgetTokens == nil || *r.BudgetTokens < 0 {
		return 0
	}
	return *r.BudgetTokens
}

// LastUserText returns the prompt, falling back to the text of the final
// transcript entry.
func (r Request) LastUserText() string {
	if r.Prompt != "" {
		return r.Prompt
	}
	if n := len(r.Transcript); n > 0 {
		return content.Flatten(r.Transcript[n-1].Content)
	}
	return ""
}

type Generator interface {
	Generate(ctx context.Context, req Request) (content.Message, error)
}

type ImageGenerator interface {
	GenerateImage(ctx context.Context, req Request) (string, error)
}

type ToolGenerator interface {
	GenerateWithTool(ctx context.Context, req Request, binding tools.Binding) (content.Message, error)
}

// Config is the per-vendor connection settings handed to an adapter.
type Config struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	Headers    map[string]string
}

const DefaultRetryDelay = 500 * time.Millisecond

func ConfigFrom(c config.VendorConfig) Config {
	headers := make(map[string]string, len(c.Headers))
	for k, v := range c.Headers {
		headers[k] = v
	}
	return Config{
		APIKey:     c.APIKey,
		BaseURL:    c.BaseURL,
		Timeout:    c.Timeout(),
		MaxRetries: c.MaxRetries,
		RetryDelay: DefaultRetryDelay,
		Headers:    headers,
	}
}

// Registry maps a vendor to its adapter. It is filled once at start-up and
// only read afterwards.
type Registry struct {
	adapters map[models.Vendor]Generator
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[models.Vendor]Generator)}
}

func (r *Registry) Register(vendor models.Vendor, adapter Generator) {
	r.adapters[vendor] = adapter
}

func (r *Registry) Generator(vendor models.Vendor) (Generator, error) {
	adapter, ok := r.adapters[vendor]
	if !ok || adapter == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVendor, vendor)
	}
	return adapter, nil
}

// ImageGenerator reports whether the vendor's adapter can produce images.
func (r *Registry) ImageGenerator(vendor models.Vendor) (ImageGenerator, bool) {
	g, ok := r.adapters[vendor].(ImageGenerator)
	return g, ok
}

func (r *Registry) ToolGenerator(vendor models.Vendor) (ToolGenerator, bool) {
	g, ok := r.adapters[vendor].(ToolGenerator)
	return g, ok
}

// Vendors lists registered vendors in sorted order.
func (r *Registry) Vendors() []models.Vendor {
	out := make([]models.Vendor, 0, len(r.adapters))
	for v := range r.adapters {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
