package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"

	"github.com/chatforge/chatforge/internal/content"
	"github.com/chatforge/chatforge/internal/db"
)

const maxTitleRunes = 80

var ErrNotFound = errors.New("conversation not found")

// Conversation is a saved transcript owned by one user.
type Conversation struct {
	ID         int64             `json:"id"`
	UserID     int64             `json:"user_id"`
	Title      string            `json:"title"`
	ModelID    *int64            `json:"model_id,omitempty"`
	Transcript []content.Message `json:"transcript,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

type Service struct {
	db     db.DBTX
	logger *slog.Logger
}

func NewService(log *slog.Logger, conn db.DBTX) *Service {
	return &Service{
		db:     conn,
		logger: log.With(slog.String("service", "history")),
	}
}

// Save stores a transcript as a new conversation and returns its id.
func (s *Service) Save(ctx context.Context, userID, modelID int64, transcript []content.Message) (int64, error) {
	if userID <= 0 {
		return 0, errors.New("user id is required")
	}
	if len(transcript) == 0 {
		return 0, errors.New("transcript is empty")
	}
	payload, err := json.Marshal(transcript)
	if err != nil {
		return 0, fmt.Errorf("encode transcript: %w", err)
	}
	var model any
	if modelID > 0 {
		model = modelID
	}
	var id int64
	err = s.db.QueryRow(ctx,
		`INSERT INTO conversations (user_id, title, model_id, transcript) VALUES ($1, $2, $3, $4) RETURNING id`,
		userID, Title(transcript), model, payload).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save conversation: %w", err)
	}
	return id, nil
}

// List returns the user's conversations newest first, without transcripts.
func (s *Service) List(ctx context.Context, userID int64) ([]Conversation, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, user_id, title, model_id, created_at, updated_at
FROM conversations WHERE user_id = $1 ORDER BY updated_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()
	out := []Conversation{}
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.ModelID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Service) Get(ctx context.Context, userID, id int64) (Conversation, error) {
	var (
		c   Conversation
		raw []byte
	)
	err := s.db.QueryRow(ctx, `
SELECT id, user_id, title, model_id, transcript, created_at, updated_at
FROM conversations WHERE id = $1 AND user_id = $2`, id, userID).
		Scan(&c.ID, &c.UserID, &c.Title, &c.ModelID, &raw, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Conversation{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
		}
		return Conversation{}, fmt.Errorf("get conversation: %w", err)
	}
	if err := json.Unmarshal(raw, &c.Transcript); err != nil {
		return Conversation{}, fmt.Errorf("decode transcript: %w", err)
	}
	return c, nil
}

func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM conversations WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return nil
}

// Title derives a conversation title from the first user message.
func Title(transcript []content.Message) string {
	for _, m := range transcript {
		if m.Role != content.RoleUser {
			continue
		}
		text := strings.Join(strings.Fields(content.Flatten(m.Content)), " ")
		if text == "" {
			continue
		}
		if utf8.RuneCountInString(text) > maxTitleRunes {
			text = string([]rune(text)[:maxTitleRunes])
		}
		return text
	}
	return "Untitled"
}
