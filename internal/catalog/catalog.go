// Package catalog seeds render types, personas, output formats and models
// from a YAML document.
package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chatforge/chatforge/internal/models"
	"github.com/chatforge/chatforge/internal/outputformats"
	"github.com/chatforge/chatforge/internal/personas"
)

//go:embed default.yaml
var defaultCatalog []byte

type Persona struct {
	Name   string `yaml:"name"`
	Prompt string `yaml:"prompt"`
}

type OutputFormat struct {
	Name       string `yaml:"name"`
	Prompt     string `yaml:"prompt"`
	RenderType string `yaml:"render_type"`
}

type Model struct {
	APIName         string        `yaml:"api_name"`
	Name            string        `yaml:"name"`
	Vendor          models.Vendor `yaml:"vendor"`
	Vision          bool          `yaml:"vision"`
	ImageGeneration bool          `yaml:"image_generation"`
	Thinking        bool          `yaml:"thinking"`
}

type Catalog struct {
	RenderTypes   []string       `yaml:"render_types"`
	Personas      []Persona      `yaml:"personas"`
	OutputFormats []OutputFormat `yaml:"output_formats"`
	Models        []Model        `yaml:"models"`
}

// Default returns the built-in catalog.
func Default() (Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog file; an empty path selects the built-in catalog.
func Load(path string) (Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// Validate checks names are present and every output format points at a
// declared render type.
func (c Catalog) Validate() error {
	known := make(map[string]bool, len(c.RenderTypes))
	for _, rt := range c.RenderTypes {
		if strings.TrimSpace(rt) == "" {
			return errors.New("catalog: empty render type")
		}
		known[rt] = true
	}
	for _, p := range c.Personas {
		if strings.TrimSpace(p.Name) == "" {
			return errors.New("catalog: persona without name")
		}
	}
	for _, f := range c.OutputFormats {
		if strings.TrimSpace(f.Name) == "" {
			return errors.New("catalog: output format without name")
		}
		if !known[f.RenderType] {
			return fmt.Errorf("catalog: output format %q uses undeclared render type %q", f.Name, f.RenderType)
		}
	}
	for _, m := range c.Models {
		if strings.TrimSpace(m.APIName) == "" || strings.TrimSpace(m.Name) == "" {
			return errors.New("catalog: model without api_name or name")
		}
		if !m.Vendor.Valid() {
			return fmt.Errorf("catalog: model %q has unknown vendor %q", m.APIName, m.Vendor)
		}
	}
	return nil
}

type RenderTypeStore interface {
	UpsertRenderType(ctx context.Context, name string) (outputformats.RenderType, error)
}

type OutputFormatStore interface {
	Upsert(ctx context.Context, name, prompt, renderType string) (outputformats.OutputFormat, error)
}

type PersonaStore interface {
	Upsert(ctx context.Context, req personas.CreateRequest) (personas.Persona, error)
}

type ModelStore interface {
	Upsert(ctx context.Context, req models.CreateRequest) (models.Descriptor, error)
}

// Stores are the write targets of Apply. *outputformats.Service serves as
// both RenderTypes and OutputFormats.
type Stores struct {
	RenderTypes   RenderTypeStore
	OutputFormats OutputFormatStore
	Personas      PersonaStore
	Models        ModelStore
}

// Summary counts the rows Apply upserted.
type Summary struct {
	RenderTypes   int
	Personas      int
	OutputFormats int
	Models        int
}

// Apply upserts the catalog by natural key. Render types go first so output
// formats can reference them.
func Apply(ctx context.Context, log *slog.Logger, stores Stores, c Catalog) (Summary, error) {
	log = log.With(slog.String("service", "catalog"))
	var sum Summary
	for _, rt := range c.RenderTypes {
		if _, err := stores.RenderTypes.UpsertRenderType(ctx, rt); err != nil {
			return sum, fmt.Errorf("seed render type %q: %w", rt, err)
		}
		sum.RenderTypes++
	}
	for _, p := range c.Personas {
		if _, err := stores.Personas.Upsert(ctx, personas.CreateRequest{Name: p.Name, Prompt: p.Prompt}); err != nil {
			return sum, fmt.Errorf("seed persona %q: %w", p.Name, err)
		}
		sum.Personas++
	}
	for _, f := range c.OutputFormats {
		if _, err := stores.OutputFormats.Upsert(ctx, f.Name, f.Prompt, f.RenderType); err != nil {
			return sum, fmt.Errorf("seed output format %q: %w", f.Name, err)
		}
		sum.OutputFormats++
	}
	for _, m := range c.Models {
		req := models.CreateRequest{
			APIName:     m.APIName,
			DisplayName: m.Name,
			Vendor:      m.Vendor,
			Capabilities: models.Capabilities{
				Vision:          m.Vision,
				ImageGeneration: m.ImageGeneration,
				Thinking:        m.Thinking,
			},
		}
		if _, err := stores.Models.Upsert(ctx, req); err != nil {
			return sum, fmt.Errorf("seed model %q: %w", m.APIName, err)
		}
		sum.Models++
	}
	log.Info("catalog applied",
		slog.Int("render_types", sum.RenderTypes),
		slog.Int("personas", sum.Personas),
		slog.Int("output_formats", sum.OutputFormats),
		slog.Int("models", sum.Models),
	)
	return sum, nil
}
