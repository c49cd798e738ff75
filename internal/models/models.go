package models

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/chatforge/chatforge/internal/db"
)

var (
	ErrModelNotFound        = errors.New("model not found")
	ErrAPINameAlreadyExists = errors.New("api name already exists")
)

const modelColumns = `id, api_name, display_name, vendor, vision, image_generation, thinking, created_at, updated_at`

// Service provides CRUD operations for the model catalog
type Service struct {
	db     db.DBTX
	logger *slog.Logger
}

// NewService creates a new models service
func NewService(log *slog.Logger, conn db.DBTX) *Service {
	return &Service{
		db:     conn,
		logger: log.With(slog.String("service", "models")),
	}
}

// Create adds a new model to the catalog
func (s *Service) Create(ctx context.Context, req CreateRequest) (Descriptor, error) {
	d := Descriptor{APIName: req.APIName, DisplayName: req.DisplayName, Vendor: req.Vendor, Capabilities: req.Capabilities}
	if err := d.Validate(); err != nil {
		return Descriptor{}, fmt.Errorf("validation failed: %w", err)
	}
	row := s.db.QueryRow(ctx, `
INSERT INTO models (api_name, display_name, vendor, vision, image_generation, thinking)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+modelColumns,
		d.APIName, d.DisplayName, string(d.Vendor), d.Capabilities.Vision, d.Capabilities.ImageGeneration, d.Capabilities.Thinking)
	created, err := scanDescriptor(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Descriptor{}, ErrAPINameAlreadyExists
		}
		return Descriptor{}, fmt.Errorf("failed to create model: %w", err)
	}
	return created, nil
}

// Upsert creates or refreshes a model keyed by its API name.
func (s *Service) Upsert(ctx context.Context, req CreateRequest) (Descriptor, error) {
	d := Descriptor{APIName: req.APIName, DisplayName: req.DisplayName, Vendor: req.Vendor, Capabilities: req.Capabilities}
	if err := d.Validate(); err != nil {
		return Descriptor{}, fmt.Errorf("validation failed: %w", err)
	}
	row := s.db.QueryRow(ctx, `
INSERT INTO models (api_name, display_name, vendor, vision, image_generation, thinking)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (api_name) DO UPDATE SET
  display_name = EXCLUDED.display_name,
  vendor = EXCLUDED.vendor,
  vision = EXCLUDED.vision,
  image_generation = EXCLUDED.image_generation,
  thinking = EXCLUDED.thinking,
  updated_at = now()
RETURNING `+modelColumns,
		d.APIName, d.DisplayName, string(d.Vendor), d.Capabilities.Vision, d.Capabilities.ImageGeneration, d.Capabilities.Thinking)
	out, err := scanDescriptor(row)
	if err != nil {
		return Descriptor{}, fmt.Errorf("failed to upsert model: %w", err)
	}
	return out, nil
}

// GetByID returns a model by its catalog id
func (s *Service) GetByID(ctx context.Context, id int64) (Descriptor, error) {
	row := s.db.QueryRow(ctx, `SELECT `+modelColumns+` FROM models WHERE id = $1`, id)
	d, err := scanDescriptor(row)
	if err != nil {
		if db.IsNotFound(err) {
			return Descriptor{}, fmt.Errorf("%w: id %d", ErrModelNotFound, id)
		}
		return Descriptor{}, fmt.Errorf("failed to get model: %w", err)
	}
	return d, nil
}

// GetByAPIName returns a model by the name the vendor API knows it by
func (s *Service) GetByAPIName(ctx context.Context, apiName string) (Descriptor, error) {
	row := s.db.QueryRow(ctx, `SELECT `+modelColumns+` FROM models WHERE api_name = $1`, apiName)
	d, err := scanDescriptor(row)
	if err != nil {
		if db.IsNotFound(err) {
			return Descriptor{}, fmt.Errorf("%w: %s", ErrModelNotFound, apiName)
		}
		return Descriptor{}, fmt.Errorf("failed to get model: %w", err)
	}
	return d, nil
}

// List returns all models, optionally restricted to one vendor
func (s *Service) List(ctx context.Context, vendor Vendor) ([]Descriptor, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if vendor != "" {
		rows, err = s.db.Query(ctx, `SELECT `+modelColumns+` FROM models WHERE vendor = $1 ORDER BY id`, string(vendor))
	} else {
		rows, err = s.db.Query(ctx, `SELECT `+modelColumns+` FROM models ORDER BY id`)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	defer rows.Close()

	out := []Descriptor{}
	for rows.Next() {
		d, err := scanDescriptor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan model: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Update replaces a model's fields
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (Descriptor, error) {
	d := Descriptor{APIName: req.APIName, DisplayName: req.DisplayName, Vendor: req.Vendor, Capabilities: req.Capabilities}
	if err := d.Validate(); err != nil {
		return Descriptor{}, fmt.Errorf("validation failed: %w", err)
	}
	row := s.db.QueryRow(ctx, `
UPDATE models SET api_name = $2, display_name = $3, vendor = $4, vision = $5, image_generation = $6, thinking = $7, updated_at = now()
WHERE id = $1
RETURNING `+modelColumns,
		id, d.APIName, d.DisplayName, string(d.Vendor), d.Capabilities.Vision, d.Capabilities.ImageGeneration, d.Capabilities.Thinking)
	updated, err := scanDescriptor(row)
	if err != nil {
		switch {
		case db.IsNotFound(err):
			return Descriptor{}, fmt.Errorf("%w: id %d", ErrModelNotFound, id)
		case db.IsUniqueViolation(err):
			return Descriptor{}, ErrAPINameAlreadyExists
		}
		return Descriptor{}, fmt.Errorf("failed to update model: %w", err)
	}
	return updated, nil
}

// Delete removes a model by id
func (s *Service) Delete(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM models WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete model: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ErrModelNotFound, id)
	}
	return nil
}

func scanDescriptor(row pgx.Row) (Descriptor, error) {
	var (
		d      Descriptor
		vendor string
	)
	if err := row.Scan(
		&d.ID, &d.APIName, &d.DisplayName, &vendor,
		&d.Capabilities.Vision, &d.Capabilities.ImageGeneration, &d.Capabilities.Thinking,
		&d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return Descriptor{}, err
	}
	d.Vendor = Vendor(vendor)
	return d, nil
}
