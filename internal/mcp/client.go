package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/chatforge/chatforge/internal/tools"
)

const (
	clientName            = "chatforge"
	clientVersion         = "v1"
	defaultConnectTimeout = 30 * time.Second
)

// StdioConnector launches a binding's executable and speaks MCP over its stdio.
type StdioConnector struct {
	logger    *slog.Logger
	timeout   time.Duration
	transport func(binding tools.Binding) (sdkmcp.Transport, error)
}

func NewStdioConnector(log *slog.Logger, connectTimeout time.Duration) *StdioConnector {
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	return &StdioConnector{
		logger:    log.With(slog.String("service", "mcp")),
		timeout:   connectTimeout,
		transport: commandTransport,
	}
}

func commandTransport(binding tools.Binding) (sdkmcp.Transport, error) {
	path := strings.TrimSpace(binding.InvocationPath)
	if path == "" {
		return nil, fmt.Errorf("tool %q has no invocation path", binding.Name)
	}
	cmd := exec.Command(path, binding.Args...)
	cmd.Env = append(os.Environ(), binding.EnvList()...)
	return &sdkmcp.CommandTransport{Command: cmd}, nil
}

// Connect starts the server process and completes the MCP handshake.
func (c *StdioConnector) Connect(ctx context.Context, binding tools.Binding) (Session, error) {
	transport, err := c.transport(binding)
	if err != nil {
		return nil, err
	}
	client := sdkmcp.NewClient(&sdkmcp.Implementation{
		Name:    clientName,
		Version: clientVersion,
	}, nil)

	connectCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	session, err := client.Connect(connectCtx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connect mcp tool %q: %w", binding.Name, err)
	}
	c.logger.Debug("mcp session opened", slog.String("tool", binding.Name), slog.Int64("tool_id", binding.ID))
	return &sdkSession{session: session, name: binding.Name, logger: c.logger}, nil
}

type sdkSession struct {
	session *sdkmcp.ClientSession
	name    string
	logger  *slog.Logger
}

func (s *sdkSession) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	result, err := s.session.ListTools(ctx, &sdkmcp.ListToolsParams{})
	if err != nil {
		return nil, fmt.Errorf("list tools of %q: %w", s.name, err)
	}
	return convertSDKTools(result.Tools), nil
}

func (s *sdkSession) CallTool(ctx context.Context, name string, arguments map[string]any) (ToolResult, error) {
	if arguments == nil {
		arguments = map[string]any{}
	}
	result, err := s.session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      name,
		Arguments: arguments,
	})
	if err != nil {
		return ToolResult{}, fmt.Errorf("call tool %q: %w", name, err)
	}
	out := resultText(result)
	s.logger.Debug("mcp tool called",
		slog.String("server", s.name),
		slog.String("tool", name),
		slog.Bool("is_error", out.IsError),
		slog.Int("result_length", len(out.Text)),
	)
	return out, nil
}

func (s *sdkSession) Close() error {
	return s.session.Close()
}
