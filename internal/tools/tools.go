package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/chatforge/chatforge/internal/db"
)

var (
	ErrNotFound     = errors.New("tool not found")
	ErrNameConflict = errors.New("tool name already exists")
)

// Binding describes an external MCP server reachable over stdio.
type Binding struct {
	ID             int64             `json:"id"`
	Name           string            `json:"name"`
	InvocationPath string            `json:"path"`
	Args           []string          `json:"args"`
	Environment    map[string]string `json:"env_vars"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// EnvList renders Environment as KEY=VALUE pairs.
func (b Binding) EnvList() []string {
	out := make([]string, 0, len(b.Environment))
	for k, v := range b.Environment {
		if strings.TrimSpace(k) == "" {
			continue
		}
		out = append(out, k+"="+v)
	}
	return out
}

type CreateRequest struct {
	Name           string            `json:"name" validate:"required"`
	InvocationPath string            `json:"path" validate:"required"`
	Args           []string          `json:"args"`
	Environment    map[string]string `json:"env_vars"`
}

type UpdateRequest struct {
	Name           *string            `json:"name,omitempty"`
	InvocationPath *string            `json:"path,omitempty"`
	Args           *[]string          `json:"args,omitempty"`
	Environment    *map[string]string `json:"env_vars,omitempty"`
}

const toolColumns = `id, name, invocation_path, args, env, created_at, updated_at`

type Service struct {
	db     db.DBTX
	logger *slog.Logger
}

func NewService(log *slog.Logger, conn db.DBTX) *Service {
	return &Service{
		db:     conn,
		logger: log.With(slog.String("service", "tools")),
	}
}

func (s *Service) Get(ctx context.Context, id int64) (Binding, error) {
	b, err := scanBinding(s.db.QueryRow(ctx, `SELECT `+toolColumns+` FROM mcp_tools WHERE id = $1`, id))
	if err != nil {
		if db.IsNotFound(err) {
			return Binding{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
		}
		return Binding{}, fmt.Errorf("get tool: %w", err)
	}
	return b, nil
}

func (s *Service) List(ctx context.Context) ([]Binding, error) {
	rows, err := s.db.Query(ctx, `SELECT `+toolColumns+` FROM mcp_tools ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	defer rows.Close()
	out := []Binding{}
	for rows.Next() {
		b, err := scanBinding(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tool: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (Binding, error) {
	b := Binding{
		Name:           strings.TrimSpace(req.Name),
		InvocationPath: strings.TrimSpace(req.InvocationPath),
		Args:           req.Args,
		Environment:    req.Environment,
	}
	if err := b.validate(); err != nil {
		return Binding{}, err
	}
	env, err := marshalEnv(b.Environment)
	if err != nil {
		return Binding{}, err
	}
	created, err := scanBinding(s.db.QueryRow(ctx,
		`INSERT INTO mcp_tools (name, invocation_path, args, env) VALUES ($1, $2, $3, $4) RETURNING `+toolColumns,
		b.Name, b.InvocationPath, nonNilArgs(b.Args), env))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Binding{}, ErrNameConflict
		}
		return Binding{}, fmt.Errorf("create tool: %w", err)
	}
	return created, nil
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (Binding, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return Binding{}, err
	}
	if req.Name != nil {
		current.Name = strings.TrimSpace(*req.Name)
	}
	if req.InvocationPath != nil {
		current.InvocationPath = strings.TrimSpace(*req.InvocationPath)
	}
	if req.Args != nil {
		current.Args = *req.Args
	}
	if req.Environment != nil {
		current.Environment = *req.Environment
	}
	if err := current.validate(); err != nil {
		return Binding{}, err
	}
	env, err := marshalEnv(current.Environment)
	if err != nil {
		return Binding{}, err
	}
	updated, err := scanBinding(s.db.QueryRow(ctx, `
UPDATE mcp_tools SET name = $2, invocation_path = $3, args = $4, env = $5, updated_at = now()
WHERE id = $1 RETURNING `+toolColumns,
		id, current.Name, current.InvocationPath, nonNilArgs(current.Args), env))
	if err != nil {
		switch {
		case db.IsNotFound(err):
			return Binding{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
		case db.IsUniqueViolation(err):
			return Binding{}, ErrNameConflict
		}
		return Binding{}, fmt.Errorf("update tool: %w", err)
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM mcp_tools WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete tool: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return nil
}

func (b Binding) validate() error {
	if b.Name == "" {
		return errors.New("name is required")
	}
	if b.InvocationPath == "" {
		return errors.New("path is required")
	}
	return nil
}

func nonNilArgs(args []string) []string {
	if args == nil {
		return []string{}
	}
	return args
}

func marshalEnv(env map[string]string) ([]byte, error) {
	if env == nil {
		env = map[string]string{}
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode env: %w", err)
	}
	return payload, nil
}

func scanBinding(row pgx.Row) (Binding, error) {
	var (
		b   Binding
		env []byte
	)
	if err := row.Scan(&b.ID, &b.Name, &b.InvocationPath, &b.Args, &env, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return Binding{}, err
	}
	b.Environment = map[string]string{}
	if len(env) > 0 {
		if err := json.Unmarshal(env, &b.Environment); err != nil {
			return Binding{}, fmt.Errorf("decode env: %w", err)
		}
	}
	if b.Args == nil {
		b.Args = []string{}
	}
	return b, nil
}
