package outputformats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/chatforge/chatforge/internal/db"
)

// DefaultRenderType is used when no render type can be resolved.
const DefaultRenderType = "markdown"

var (
	ErrNotFound           = errors.New("output format not found")
	ErrRenderTypeNotFound = errors.New("render type not found")
	ErrNameConflict       = errors.New("output format name already exists")
)

// RenderType names how a client should present a reply (markdown, html).
type RenderType struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// OutputFormat is a prompt fragment describing the reply format plus its render type.
type OutputFormat struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Prompt         string    `json:"prompt"`
	RenderTypeID   int64     `json:"render_type_id"`
	RenderTypeName string    `json:"render_type"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type CreateRequest struct {
	Name         string `json:"name" validate:"required"`
	Prompt       string `json:"prompt"`
	RenderTypeID int64  `json:"render_type_id" validate:"required,gt=0"`
}

type UpdateRequest struct {
	Name         *string `json:"name,omitempty"`
	Prompt       *string `json:"prompt,omitempty"`
	RenderTypeID *int64  `json:"render_type_id,omitempty"`
}

const selectFormat = `
SELECT f.id, f.name, f.prompt, f.render_type_id, r.name, f.created_at, f.updated_at
FROM output_formats f JOIN render_types r ON r.id = f.render_type_id`

type Service struct {
	db     db.DBTX
	logger *slog.Logger
}

func NewService(log *slog.Logger, conn db.DBTX) *Service {
	return &Service{
		db:     conn,
		logger: log.With(slog.String("service", "output_formats")),
	}
}

func (s *Service) Get(ctx context.Context, id int64) (OutputFormat, error) {
	f, err := scanFormat(s.db.QueryRow(ctx, selectFormat+` WHERE f.id = $1`, id))
	if err != nil {
		if db.IsNotFound(err) {
			return OutputFormat{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
		}
		return OutputFormat{}, fmt.Errorf("get output format: %w", err)
	}
	return f, nil
}

// RenderTypeName returns the render type name attached to an output format.
func (s *Service) RenderTypeName(ctx context.Context, outputFormatID int64) (string, error) {
	var name string
	err := s.db.QueryRow(ctx, `
SELECT r.name FROM output_formats f JOIN render_types r ON r.id = f.render_type_id
WHERE f.id = $1`, outputFormatID).Scan(&name)
	if err != nil {
		if db.IsNotFound(err) {
			return "", fmt.Errorf("%w: output format %d", ErrRenderTypeNotFound, outputFormatID)
		}
		return "", fmt.Errorf("get render type: %w", err)
	}
	return name, nil
}

func (s *Service) List(ctx context.Context) ([]OutputFormat, error) {
	rows, err := s.db.Query(ctx, selectFormat+` ORDER BY f.id`)
	if err != nil {
		return nil, fmt.Errorf("list output formats: %w", err)
	}
	defer rows.Close()
	out := []OutputFormat{}
	for rows.Next() {
		f, err := scanFormat(rows)
		if err != nil {
			return nil, fmt.Errorf("scan output format: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (OutputFormat, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return OutputFormat{}, errors.New("name is required")
	}
	var id int64
	err := s.db.QueryRow(ctx,
		`INSERT INTO output_formats (name, prompt, render_type_id) VALUES ($1, $2, $3) RETURNING id`,
		name, req.Prompt, req.RenderTypeID).Scan(&id)
	if err != nil {
		switch {
		case db.IsUniqueViolation(err):
			return OutputFormat{}, ErrNameConflict
		case db.IsForeignKeyViolation(err):
			return OutputFormat{}, fmt.Errorf("%w: id %d", ErrRenderTypeNotFound, req.RenderTypeID)
		}
		return OutputFormat{}, fmt.Errorf("create output format: %w", err)
	}
	return s.Get(ctx, id)
}

// Upsert creates or refreshes an output format keyed by name, attaching the
// render type with the given name.
func (s *Service) Upsert(ctx context.Context, name, prompt, renderType string) (OutputFormat, error) {
	var id int64
	err := s.db.QueryRow(ctx, `
INSERT INTO output_formats (name, prompt, render_type_id)
SELECT $1, $2, r.id FROM render_types r WHERE r.name = $3
ON CONFLICT (name) DO UPDATE SET prompt = EXCLUDED.prompt, render_type_id = EXCLUDED.render_type_id, updated_at = now()
RETURNING id`, strings.TrimSpace(name), prompt, renderType).Scan(&id)
	if err != nil {
		if db.IsNotFound(err) {
			return OutputFormat{}, fmt.Errorf("%w: %s", ErrRenderTypeNotFound, renderType)
		}
		return OutputFormat{}, fmt.Errorf("upsert output format: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (OutputFormat, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return OutputFormat{}, err
	}
	if req.Name != nil {
		current.Name = strings.TrimSpace(*req.Name)
	}
	if req.Prompt != nil {
		current.Prompt = *req.Prompt
	}
	if req.RenderTypeID != nil {
		current.RenderTypeID = *req.RenderTypeID
	}
	if current.Name == "" {
		return OutputFormat{}, errors.New("name is required")
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE output_formats SET name = $2, prompt = $3, render_type_id = $4, updated_at = now() WHERE id = $1`,
		id, current.Name, current.Prompt, current.RenderTypeID)
	if err != nil {
		switch {
		case db.IsUniqueViolation(err):
			return OutputFormat{}, ErrNameConflict
		case db.IsForeignKeyViolation(err):
			return OutputFormat{}, fmt.Errorf("%w: id %d", ErrRenderTypeNotFound, current.RenderTypeID)
		}
		return OutputFormat{}, fmt.Errorf("update output format: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return OutputFormat{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return s.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM output_formats WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete output format: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return nil
}

func (s *Service) ListRenderTypes(ctx context.Context) ([]RenderType, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name FROM render_types ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list render types: %w", err)
	}
	defer rows.Close()
	out := []RenderType{}
	for rows.Next() {
		var rt RenderType
		if err := rows.Scan(&rt.ID, &rt.Name); err != nil {
			return nil, fmt.Errorf("scan render type: %w", err)
		}
		out = append(out, rt)
	}
	return out, rows.Err()
}

func (s *Service) UpsertRenderType(ctx context.Context, name string) (RenderType, error) {
	rt := RenderType{}
	err := s.db.QueryRow(ctx, `
INSERT INTO render_types (name) VALUES ($1)
ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
RETURNING id, name`, strings.TrimSpace(name)).Scan(&rt.ID, &rt.Name)
	if err != nil {
		return RenderType{}, fmt.Errorf("upsert render type: %w", err)
	}
	return rt, nil
}

func scanFormat(row pgx.Row) (OutputFormat, error) {
	var f OutputFormat
	err := row.Scan(&f.ID, &f.Name, &f.Prompt, &f.RenderTypeID, &f.RenderTypeName, &f.CreatedAt, &f.UpdatedAt)
	return f, err
}
