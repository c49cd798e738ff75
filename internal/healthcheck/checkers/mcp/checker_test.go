package mcpchecker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/chatforge/chatforge/internal/mcp"
	"github.com/chatforge/chatforge/internal/tools"
)

type fakeBindingLister struct {
	items []tools.Binding
	err   error
}

func (f *fakeBindingLister) List(ctx context.Context) ([]tools.Binding, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

type fakeSession struct {
	tools  []mcp.ToolDescriptor
	err    error
	closed *int
}

func (s *fakeSession) ListTools(ctx context.Context) ([]mcp.ToolDescriptor, error) {
	return s.tools, s.err
}

func (s *fakeSession) CallTool(ctx context.Context, name string, args map[string]any) (mcp.ToolResult, error) {
	return mcp.ToolResult{}, nil
}

func (s *fakeSession) Close() error {
	*s.closed++
	return nil
}

// fakeConnector serves sessions keyed by binding name.
type fakeConnector struct {
	sessions map[string]*fakeSession
	closed   int
}

func (f *fakeConnector) Connect(ctx context.Context, binding tools.Binding) (mcp.Session, error) {
	s, ok := f.sessions[binding.Name]
	if !ok {
		return nil, errors.New("exec: not found")
	}
	s.closed = &f.closed
	return s, nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCheckerListChecks(t *testing.T) {
	t.Parallel()

	connector := &fakeConnector{sessions: map[string]*fakeSession{
		"Hello World": {tools: []mcp.ToolDescriptor{{Name: "ping"}, {Name: "echo"}}},
		"NoTools":     {},
		"Broken":      {err: errors.New("protocol error")},
	}}
	checker := NewChecker(
		newTestLogger(),
		&fakeBindingLister{items: []tools.Binding{
			{ID: 2, Name: "NoTools"},
			{ID: 1, Name: "Hello World"},
			{ID: 3, Name: "Broken"},
			{ID: 4, Name: "Missing"},
		}},
		connector,
	)

	items := checker.ListChecks(context.Background())
	if len(items) != 4 {
		t.Fatalf("expected 4 checks, got %d", len(items))
	}

	want := map[string]string{
		"Broken":      "error",
		"Hello World": "ok",
		"Missing":     "error",
		"NoTools":     "warn",
	}
	order := []string{"Broken", "Hello World", "Missing", "NoTools"}
	for i, item := range items {
		if item.Subject != order[i] {
			t.Fatalf("item %d subject = %q, want %q", i, item.Subject, order[i])
		}
		if item.Status != want[item.Subject] {
			t.Fatalf("%s: status = %q, want %q", item.Subject, item.Status, want[item.Subject])
		}
	}
	if items[1].ID != "mcp.binding.1" {
		t.Fatalf("unexpected id %q", items[1].ID)
	}
	if items[1].Metadata["tool_count"] != 2 {
		t.Fatalf("unexpected tool count %v", items[1].Metadata["tool_count"])
	}
	if connector.closed != 3 {
		t.Fatalf("expected 3 sessions closed, got %d", connector.closed)
	}
}

func TestCheckerListBindingsError(t *testing.T) {
	t.Parallel()

	checker := NewChecker(newTestLogger(), &fakeBindingLister{err: errors.New("db down")}, &fakeConnector{})

	items := checker.ListChecks(context.Background())
	if len(items) != 1 {
		t.Fatalf("expected 1 check, got %d", len(items))
	}
	if items[0].Status != "error" || items[0].Detail == "" {
		t.Fatalf("unexpected item %+v", items[0])
	}
}

func TestCheckerWithoutDependencies(t *testing.T) {
	t.Parallel()

	items := NewChecker(nil, nil, nil).ListChecks(context.Background())
	if len(items) != 1 || items[0].Status != "warn" {
		t.Fatalf("unexpected items %+v", items)
	}
}
