package chat

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"sync"

	"github.com/chatforge/chatforge/internal/content"
	"github.com/chatforge/chatforge/internal/models"
	"github.com/chatforge/chatforge/internal/outputformats"
	"github.com/chatforge/chatforge/internal/personas"
	"github.com/chatforge/chatforge/internal/tools"
	"github.com/chatforge/chatforge/internal/vendors"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeModels struct {
	byID map[int64]models.Descriptor
	err  error
}

func (f *fakeModels) GetByID(_ context.Context, id int64) (models.Descriptor, error) {
	if f.err != nil {
		return models.Descriptor{}, f.err
	}
	d, ok := f.byID[id]
	if !ok {
		return models.Descriptor{}, models.ErrModelNotFound
	}
	return d, nil
}

func (f *fakeModels) GetByAPIName(_ context.Context, name string) (models.Descriptor, error) {
	if f.err != nil {
		return models.Descriptor{}, f.err
	}
	for _, d := range f.byID {
		if d.APIName == name {
			return d, nil
		}
	}
	return models.Descriptor{}, models.ErrModelNotFound
}

type fakePersonas map[int64]string

func (f fakePersonas) Get(_ context.Context, id int64) (personas.Persona, error) {
	prompt, ok := f[id]
	if !ok {
		return personas.Persona{}, personas.ErrNotFound
	}
	return personas.Persona{ID: id, Prompt: prompt}, nil
}

type fakeFormats struct {
	prompts     map[int64]string
	renderTypes map[int64]string
}

func (f fakeFormats) Get(_ context.Context, id int64) (outputformats.OutputFormat, error) {
	prompt, ok := f.prompts[id]
	if !ok {
		return outputformats.OutputFormat{}, outputformats.ErrNotFound
	}
	return outputformats.OutputFormat{ID: id, Prompt: prompt}, nil
}

func (f fakeFormats) RenderTypeName(_ context.Context, id int64) (string, error) {
	name, ok := f.renderTypes[id]
	if !ok {
		return "", outputformats.ErrNotFound
	}
	return name, nil
}

type fakeTools struct {
	mu       sync.Mutex
	bindings map[int64]tools.Binding
	lookups  int
}

func (f *fakeTools) Get(_ context.Context, id int64) (tools.Binding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	b, ok := f.bindings[id]
	if !ok {
		return tools.Binding{}, tools.ErrNotFound
	}
	return b, nil
}

type fakeUploader struct {
	mu    sync.Mutex
	url   string
	err   error
	calls int
}

func (f *fakeUploader) Upload(_ context.Context, _ string, r io.Reader) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	_, _ = io.Copy(io.Discard, r)
	return f.url, f.err
}

type recordCall struct {
	userID    int64
	requestID string
	amount    int
}

type fakeQuota struct {
	checkErr error
	checks   int
	records  []recordCall
}

func (f *fakeQuota) Check(context.Context, int64) error {
	f.checks++
	return f.checkErr
}

func (f *fakeQuota) Record(_ context.Context, userID int64, requestID string, amount int) error {
	f.records = append(f.records, recordCall{userID, requestID, amount})
	return nil
}

type fakeHistory struct {
	saved []content.Message
	id    int64
}

func (f *fakeHistory) Save(_ context.Context, _, _ int64, transcript []content.Message) (int64, error) {
	f.saved = transcript
	return f.id, nil
}

// fakeAdapter records every call and answers with a fixed reply.
type fakeAdapter struct {
	reply    content.Message
	imageURL string
	err      error

	generate []vendors.Request
	images   []vendors.Request
	toolReqs []vendors.Request
	bindings []tools.Binding
}

func (f *fakeAdapter) Generate(_ context.Context, req vendors.Request) (content.Message, error) {
	f.generate = append(f.generate, req)
	return f.reply, f.err
}

func (f *fakeAdapter) calls() int { return len(f.generate) + len(f.images) + len(f.toolReqs) }

type imageAdapter struct{ *fakeAdapter }

func (f imageAdapter) GenerateImage(_ context.Context, req vendors.Request) (string, error) {
	f.images = append(f.images, req)
	return f.imageURL, f.err
}

type toolAdapter struct{ *fakeAdapter }

func (f toolAdapter) GenerateWithTool(_ context.Context, req vendors.Request, b tools.Binding) (content.Message, error) {
	f.toolReqs = append(f.toolReqs, req)
	f.bindings = append(f.bindings, b)
	return f.reply, f.err
}

const (
	modelGPT4o   int64 = 1
	modelDalle   int64 = 2
	modelClaude  int64 = 3
	modelGemini  int64 = 4
	personaID    int64 = 10
	formatID     int64 = 20
	toolSearchID int64 = 30
	userID       int64 = 99
)

type harness struct {
	svc       *Service
	openai    *fakeAdapter
	anthropic *fakeAdapter
	google    *fakeAdapter
	quota     *fakeQuota
	tools     *fakeTools
	uploader  *fakeUploader
	history   *fakeHistory
}

func newHarness() *harness {
	reply := func(text string) content.Message {
		m, _ := content.Assistant(content.TextBlock(text))
		return m
	}
	h := &harness{
		openai:    &fakeAdapter{reply: reply("Hi there"), imageURL: "https://images/goose.png"},
		anthropic: &fakeAdapter{reply: reply("Tool answer")},
		google:    &fakeAdapter{reply: reply("Gemini says hi")},
		quota:     &fakeQuota{},
		tools:     &fakeTools{bindings: map[int64]tools.Binding{toolSearchID: {ID: toolSearchID, Name: "search", InvocationPath: "/bin/search"}}},
		uploader:  &fakeUploader{url: "https://media/abc.png"},
		history:   &fakeHistory{id: 555},
	}

	registry := vendors.NewRegistry()
	registry.Register(models.VendorOpenAI, imageAdapter{h.openai})
	registry.Register(models.VendorAnthropic, toolAdapter{h.anthropic})
	registry.Register(models.VendorGoogle, h.google)

	catalog := &fakeModels{byID: map[int64]models.Descriptor{
		modelGPT4o:  {ID: modelGPT4o, APIName: "gpt-4o", Vendor: models.VendorOpenAI, Capabilities: models.Capabilities{Vision: true}},
		modelDalle:  {ID: modelDalle, APIName: "dall-e-3", Vendor: models.VendorOpenAI, Capabilities: models.Capabilities{ImageGeneration: true}},
		modelClaude: {ID: modelClaude, APIName: "claude-3-7-sonnet-latest", Vendor: models.VendorAnthropic, Capabilities: models.Capabilities{Vision: true, Thinking: true}},
		modelGemini: {ID: modelGemini, APIName: "gemini-2.0-flash-exp", Vendor: models.VendorGoogle, Capabilities: models.Capabilities{ImageGeneration: true}},
	}}

	h.svc = NewService(discardLogger(), Deps{
		Models:        catalog,
		Personas:      fakePersonas{personaID: "You are a helpful assistant"},
		OutputFormats: fakeFormats{prompts: map[int64]string{formatID: "Format in Markdown"}, renderTypes: map[int64]string{formatID: "markdown"}},
		Tools:         h.tools,
		Uploader:      h.uploader,
		Quota:         h.quota,
		History:       h.history,
		Adapters:      registry,
	})
	h.svc.newRequestID = func() string { return "req-1" }
	return h
}

func fields(kv ...string) url.Values {
	v := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		v.Set(kv[i], kv[i+1])
	}
	return v
}
