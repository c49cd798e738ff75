package mcpchecker

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chatforge/chatforge/internal/healthcheck"
	"github.com/chatforge/chatforge/internal/mcp"
	"github.com/chatforge/chatforge/internal/tools"
)

const (
	checkTypeMCPBinding = "mcp.binding"
	defaultCheckTimeout = 8 * time.Second
	fallbackBindingName = "MCP"
)

// BindingLister lists configured tool bindings.
type BindingLister interface {
	List(ctx context.Context) ([]tools.Binding, error)
}

// Checker starts each tool binding and lists its tools.
type Checker struct {
	logger    *slog.Logger
	bindings  BindingLister
	connector mcp.Connector
	timeout   time.Duration
}

// NewChecker creates an MCP health checker.
func NewChecker(log *slog.Logger, bindings BindingLister, connector mcp.Connector) *Checker {
	if log == nil {
		log = slog.Default()
	}
	return &Checker{
		logger:    log.With(slog.String("checker", "healthcheck_mcp")),
		bindings:  bindings,
		connector: connector,
		timeout:   defaultCheckTimeout,
	}
}

// ListChecks probes every configured binding.
func (c *Checker) ListChecks(ctx context.Context) []healthcheck.CheckResult {
	if c.bindings == nil || c.connector == nil {
		c.logger.Warn(
			"mcp healthcheck dependencies are unavailable",
			slog.Bool("has_binding_lister", c.bindings != nil),
			slog.Bool("has_connector", c.connector != nil),
		)
		return []healthcheck.CheckResult{
			{
				ID:      checkTypeMCPBinding + ".service",
				Type:    checkTypeMCPBinding,
				Status:  healthcheck.StatusWarn,
				Summary: "MCP checker service is not available.",
				Detail:  "binding lister or connector is nil",
			},
		}
	}

	items, err := c.bindings.List(ctx)
	if err != nil {
		c.logger.Warn("mcp healthcheck list bindings failed", slog.Any("error", err))
		return []healthcheck.CheckResult{
			{
				ID:      checkTypeMCPBinding + ".list",
				Type:    checkTypeMCPBinding,
				Status:  healthcheck.StatusError,
				Summary: "Failed to list tool bindings.",
				Detail:  err.Error(),
			},
		}
	}
	if len(items) == 0 {
		return []healthcheck.CheckResult{}
	}

	sort.Slice(items, func(i, j int) bool {
		left := strings.TrimSpace(items[i].Name)
		right := strings.TrimSpace(items[j].Name)
		if left == right {
			return items[i].ID < items[j].ID
		}
		return left < right
	})

	results := make([]healthcheck.CheckResult, 0, len(items))
	for idx, binding := range items {
		results = append(results, c.Check(ctx, binding, idx))
	}
	return results
}

// Check probes one binding. idx only names bindings without an id.
func (c *Checker) Check(ctx context.Context, binding tools.Binding, idx int) healthcheck.CheckResult {
	name := displayBindingName(binding.Name)
	item := healthcheck.CheckResult{
		ID:      buildCheckID(binding, idx),
		Type:    checkTypeMCPBinding,
		Subject: name,
		Metadata: map[string]any{
			"tool_id": binding.ID,
			"path":    strings.TrimSpace(binding.InvocationPath),
		},
	}

	probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	session, err := c.connector.Connect(probeCtx, binding)
	if err != nil {
		c.logger.Warn("mcp healthcheck connect failed", slog.String("tool", name), slog.Any("error", err))
		item.Status = healthcheck.StatusError
		item.Summary = fmt.Sprintf("MCP server %q could not be started.", name)
		item.Detail = err.Error()
		return item
	}
	defer func() {
		if err := session.Close(); err != nil {
			c.logger.Debug("mcp healthcheck close failed", slog.String("tool", name), slog.Any("error", err))
		}
	}()

	listed, err := session.ListTools(probeCtx)
	if err != nil {
		c.logger.Warn("mcp healthcheck list tools failed", slog.String("tool", name), slog.Any("error", err))
		item.Status = healthcheck.StatusError
		item.Summary = fmt.Sprintf("MCP server %q is not reachable.", name)
		item.Detail = err.Error()
		return item
	}

	names := make([]string, 0, len(listed))
	for _, tool := range listed {
		names = append(names, tool.Name)
	}
	item.Metadata["tool_count"] = len(names)
	item.Metadata["tools"] = names
	if len(names) == 0 {
		item.Status = healthcheck.StatusWarn
		item.Summary = fmt.Sprintf("MCP server %q is reachable but no tools found.", name)
		item.Detail = "The server responded but exposed no tools."
		return item
	}
	item.Status = healthcheck.StatusOK
	item.Summary = fmt.Sprintf("MCP server %q is healthy (%d tools).", name, len(names))
	return item
}

func buildCheckID(binding tools.Binding, idx int) string {
	if binding.ID > 0 {
		return checkTypeMCPBinding + "." + strconv.FormatInt(binding.ID, 10)
	}
	return checkTypeMCPBinding + ".unknown_" + strconv.Itoa(idx+1)
}

func displayBindingName(raw string) string {
	name := strings.TrimSpace(raw)
	if name == "" {
		return fallbackBindingName
	}
	return name
}
