package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/chatforge/chatforge/internal/config"
	"github.com/chatforge/chatforge/internal/db"
)

const defaultAdminPassword = "change-your-password-here"

var (
	ErrNotFound           = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInactive           = errors.New("user is inactive")
	ErrUsernameTaken      = errors.New("username already exists")
)

// User is an account together with its usage counters. A UsageLimit of 0
// means unlimited.
type User struct {
	ID              int64     `json:"id"`
	Username        string    `json:"username"`
	Email           string    `json:"email,omitempty"`
	IsAdmin         bool      `json:"is_admin"`
	IsActive        bool      `json:"is_active"`
	UsageLimit      int       `json:"usage_limit"`
	PeriodUsage     int       `json:"period_usage"`
	TotalUsage      int64     `json:"total_usage"`
	PeriodStartedAt time.Time `json:"period_started_at"`
	CreatedAt       time.Time `json:"created_at"`
}

type CreateRequest struct {
	Username   string
	Password   string
	Email      string
	IsAdmin    bool
	UsageLimit int
}

const userColumns = `id, username, COALESCE(email, ''), is_admin, is_active, usage_limit, period_usage, total_usage, period_started_at, created_at`

type Service struct {
	db     db.DBTX
	logger *slog.Logger
}

func NewService(log *slog.Logger, conn db.DBTX) *Service {
	return &Service{
		db:     conn,
		logger: log.With(slog.String("service", "accounts")),
	}
}

func (s *Service) GetByID(ctx context.Context, id int64) (User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if db.IsNotFound(err) {
			return User{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
		}
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// Login verifies the password and returns the matching active user.
func (s *Service) Login(ctx context.Context, username, password string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return User{}, ErrInvalidCredentials
	}
	var hash string
	row := s.db.QueryRow(ctx, `SELECT `+userColumns+`, password_hash FROM users WHERE username = $1`, username)
	u, err := scanUser(row, &hash)
	if err != nil {
		if db.IsNotFound(err) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, fmt.Errorf("load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if !u.IsActive {
		return User{}, ErrInactive
	}
	return u, nil
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (User, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return User{}, errors.New("username and password are required")
	}
	if req.UsageLimit < 0 {
		return User{}, errors.New("usage limit must not be negative")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	var email any
	if e := strings.TrimSpace(req.Email); e != "" {
		email = e
	}
	u, err := scanUser(s.db.QueryRow(ctx, `
INSERT INTO users (username, email, password_hash, is_admin, usage_limit)
VALUES ($1, $2, $3, $4, $5)
RETURNING `+userColumns, username, email, string(hashed), req.IsAdmin, req.UsageLimit))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return User{}, ErrUsernameTaken
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// EnsureAdmin creates the configured admin when no user exists yet.
func (s *Service) EnsureAdmin(ctx context.Context, cfg config.AdminConfig) error {
	var count int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&count); err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return nil
	}
	username := strings.TrimSpace(cfg.Username)
	password := strings.TrimSpace(cfg.Password)
	if username == "" || password == "" {
		return fmt.Errorf("admin username/password required in config.toml")
	}
	if password == defaultAdminPassword {
		s.logger.Warn("admin password uses default placeholder; please update config.toml")
	}
	if _, err := s.Create(ctx, CreateRequest{
		Username: username,
		Password: password,
		Email:    cfg.Email,
		IsAdmin:  true,
	}); err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	s.logger.Info("Admin user created", slog.String("username", username))
	return nil
}

func scanUser(row pgx.Row, extra ...any) (User, error) {
	var u User
	dest := []any{
		&u.ID, &u.Username, &u.Email, &u.IsAdmin, &u.IsActive,
		&u.UsageLimit, &u.PeriodUsage, &u.TotalUsage, &u.PeriodStartedAt, &u.CreatedAt,
	}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return User{}, err
	}
	return u, nil
}
