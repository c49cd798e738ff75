package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatforge/chatforge/internal/models"
	"github.com/chatforge/chatforge/internal/outputformats"
	"github.com/chatforge/chatforge/internal/personas"
)

func TestDefaultCatalog(t *testing.T) {
	t.Parallel()

	c, err := Default()
	require.NoError(t, err)
	assert.Equal(t, []string{"markdown", "html"}, c.RenderTypes)
	require.Len(t, c.Personas, 1)
	assert.Equal(t, "You are a helpful assistant", c.Personas[0].Prompt)
	assert.Len(t, c.OutputFormats, 3)
	require.Len(t, c.Models, 9)

	byName := map[string]Model{}
	for _, m := range c.Models {
		byName[m.APIName] = m
	}
	assert.True(t, byName["dall-e-3"].ImageGeneration)
	assert.True(t, byName["claude-3-7-sonnet-20250219"].Thinking)
	assert.True(t, byName["gpt-4o"].Vision)
	assert.Equal(t, models.VendorOpenRouter, byName["deepseek/deepseek-chat"].Vendor)
}

func TestParseRejectsInvalid(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"unknown render type": "render_types: [markdown]\noutput_formats:\n  - {name: X, prompt: p, render_type: pdf}\n",
		"unknown vendor":      "models:\n  - {api_name: m, name: M, vendor: acme}\n",
		"nameless persona":    "personas:\n  - {prompt: p}\n",
		"broken yaml":         "models: [",
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("render_types: [markdown]\npersonas:\n  - {name: Pirate, prompt: Arr}\n"), 0o600))
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []Persona{{Name: "Pirate", Prompt: "Arr"}}, c.Personas)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

type recorder struct {
	order []string
	fail  string
}

func (r *recorder) UpsertRenderType(_ context.Context, name string) (outputformats.RenderType, error) {
	r.order = append(r.order, "render:"+name)
	return outputformats.RenderType{Name: name}, nil
}

func (r *recorder) Upsert(_ context.Context, name, prompt, renderType string) (outputformats.OutputFormat, error) {
	r.order = append(r.order, "format:"+name)
	return outputformats.OutputFormat{Name: name}, nil
}

type personaRecorder struct{ *recorder }

func (r personaRecorder) Upsert(_ context.Context, req personas.CreateRequest) (personas.Persona, error) {
	r.order = append(r.order, "persona:"+req.Name)
	return personas.Persona{Name: req.Name}, nil
}

type modelRecorder struct{ *recorder }

func (r modelRecorder) Upsert(_ context.Context, req models.CreateRequest) (models.Descriptor, error) {
	if req.APIName == r.fail {
		return models.Descriptor{}, errors.New("boom")
	}
	r.order = append(r.order, "model:"+req.APIName)
	return models.Descriptor{APIName: req.APIName}, nil
}

func TestApplyOrdersByDependency(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	stores := Stores{RenderTypes: rec, OutputFormats: rec, Personas: personaRecorder{rec}, Models: modelRecorder{rec}}
	c := Catalog{
		RenderTypes:   []string{"markdown"},
		Personas:      []Persona{{Name: "General", Prompt: "p"}},
		OutputFormats: []OutputFormat{{Name: "Markdown", Prompt: "md", RenderType: "markdown"}},
		Models:        []Model{{APIName: "gpt-4o", Name: "GPT-4o", Vendor: models.VendorOpenAI}},
	}
	sum, err := Apply(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)), stores, c)
	require.NoError(t, err)
	assert.Equal(t, Summary{RenderTypes: 1, Personas: 1, OutputFormats: 1, Models: 1}, sum)
	assert.Equal(t, []string{"render:markdown", "persona:General", "format:Markdown", "model:gpt-4o"}, rec.order)
}

func TestApplyStopsOnError(t *testing.T) {
	t.Parallel()

	rec := &recorder{fail: "bad"}
	stores := Stores{RenderTypes: rec, OutputFormats: rec, Personas: personaRecorder{rec}, Models: modelRecorder{rec}}
	c := Catalog{Models: []Model{{APIName: "bad", Name: "Bad", Vendor: models.VendorOpenAI}, {APIName: "next", Name: "Next", Vendor: models.VendorOpenAI}}}
	sum, err := Apply(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)), stores, c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `seed model "bad"`)
	assert.Zero(t, sum.Models)
	assert.Empty(t, rec.order)
}
