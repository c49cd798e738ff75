package personas

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

var (
	ErrNotFound     = errors.New("persona not found")
	ErrNameConflict = errors.New("persona name already exists")
)

// Persona is a named system prompt.
type Persona struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Prompt    string    `json:"prompt"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateRequest struct {
	Name   string `json:"name" validate:"required"`
	Prompt string `json:"prompt"`
}

type UpdateRequest struct {
	Name   *string `json:"name,omitempty"`
	Prompt *string `json:"prompt,omitempty"`
}

const personaColumns = `id, name, prompt, created_at, updated_at`

type Service struct {
	db     db.DBTX
	logger *slog.Logger
}

func NewService(log *slog.Logger, conn db.DBTX) *Service {
	return &Service{
		db:     conn,
		logger: log.With(slog.String("service", "personas")),
	}
}

func (s *Service) Get(ctx context.Context, id int64) (Persona, error) {
	p, err := scanPersona(s.db.QueryRow(ctx, `SELECT `+personaColumns+` FROM personas WHERE id = $1`, id))
	if err != nil {
		if db.IsNotFound(err) {
			return Persona{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
		}
		return Persona{}, fmt.Errorf("get persona: %w", err)
	}
	return p, nil
}

func (s *Service) List(ctx context.Context) ([]Persona, error) {
	rows, err := s.db.Query(ctx, `SELECT `+personaColumns+` FROM personas ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list personas: %w", err)
	}
	defer rows.Close()
	out := []Persona{}
	for rows.Next() {
		p, err := scanPersona(rows)
		if err != nil {
			return nil, fmt.Errorf("scan persona: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (Persona, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Persona{}, errors.New("name is required")
	}
	p, err := scanPersona(s.db.QueryRow(ctx,
		`INSERT INTO personas (name, prompt) VALUES ($1, $2) RETURNING `+personaColumns, name, req.Prompt))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Persona{}, ErrNameConflict
		}
		return Persona{}, fmt.Errorf("create persona: %w", err)
	}
	return p, nil
}

// Upsert creates the persona or replaces the prompt of the one with the same name.
func (s *Service) Upsert(ctx context.Context, req CreateRequest) (Persona, error) {
	p, err := scanPersona(s.db.QueryRow(ctx, `
INSERT INTO personas (name, prompt) VALUES ($1, $2)
ON CONFLICT (name) DO UPDATE SET prompt = EXCLUDED.prompt, updated_at = now()
RETURNING `+personaColumns, strings.TrimSpace(req.Name), req.Prompt))
	if err != nil {
		return Persona{}, fmt.Errorf("upsert persona: %w", err)
	}
	return p, nil
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (Persona, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return Persona{}, err
	}
	if req.Name != nil {
		current.Name = strings.TrimSpace(*req.Name)
	}
	if req.Prompt != nil {
		current.Prompt = *req.Prompt
	}
	if current.Name == "" {
		return Persona{}, errors.New("name is required")
	}
	p, err := scanPersona(s.db.QueryRow(ctx,
		`UPDATE personas SET name = $2, prompt = $3, updated_at = now() WHERE id = $1 RETURNING `+personaColumns,
		id, current.Name, current.Prompt))
	if err != nil {
		switch {
		case db.IsNotFound(err):
			return Persona{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
		case db.IsUniqueViolation(err):
			return Persona{}, ErrNameConflict
		}
		return Persona{}, fmt.Errorf("update persona: %w", err)
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM personas WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete persona: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return nil
}

func scanPersona(row pgx.Row) (Persona, error) {
	var p Persona
	err := row.Scan(&p.ID, &p.Name, &p.Prompt, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
