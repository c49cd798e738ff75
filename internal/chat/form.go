package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/chatforge/chatforge/internal/content"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("form")
	})
	return v
}

type rawForm struct {
	Model        string `form:"model" validate:"required"`
	Persona      string `form:"persona" validate:"required,number"`
	OutputFormat string `form:"outputFormat" validate:"required,number"`
	Prompt       string `form:"prompt" validate:"required"`
	MaxTokens    string `form:"maxTokens" validate:"omitempty,number"`
	BudgetTokens string `form:"budgetTokens" validate:"omitempty,number"`
	MCPTool      string `form:"mcpTool" validate:"omitempty,number"`
	History      string `form:"history" validate:"omitempty,json"`
	Save         string `form:"save" validate:"omitempty,boolean"`
}

// Image is an uploaded file attached to a chat submission.
type Image struct {
	Filename string
	Body     io.Reader
}

// Form is a validated chat submission.
type Form struct {
	Model          string
	PersonaID      int64
	OutputFormatID int64
	Prompt         string
	MaxTokens      *int
	BudgetTokens   *int
	ToolID         int64
	History        []content.Message
	Save           bool
	Image          *Image
}

// ParseForm binds and validates the multipart fields of a chat submission.
// Every failure is a *ValidationError.
func ParseForm(fields url.Values, image *Image) (Form, error) {
	raw := rawForm{
		Model:        strings.TrimSpace(fields.Get("model")),
		Persona:      strings.TrimSpace(fields.Get("persona")),
		OutputFormat: strings.TrimSpace(fields.Get("outputFormat")),
		Prompt:       strings.TrimSpace(fields.Get("prompt")),
		MaxTokens:    strings.TrimSpace(fields.Get("maxTokens")),
		BudgetTokens: strings.TrimSpace(fields.Get("budgetTokens")),
		MCPTool:      strings.TrimSpace(fields.Get("mcpTool")),
		History:      strings.TrimSpace(fields.Get("history")),
		Save:         strings.TrimSpace(fields.Get("save")),
	}
	if err := validate.Struct(raw); err != nil {
		return Form{}, toValidationError(err)
	}

	form := Form{Model: raw.Model, Prompt: raw.Prompt}
	var err error
	if form.PersonaID, err = parseID("persona", raw.Persona); err != nil {
		return Form{}, err
	}
	if form.OutputFormatID, err = parseID("outputFormat", raw.OutputFormat); err != nil {
		return Form{}, err
	}
	if form.ToolID, err = parseID("mcpTool", raw.MCPTool); err != nil {
		return Form{}, err
	}
	if form.MaxTokens, err = parseTokens("maxTokens", raw.MaxTokens); err != nil {
		return Form{}, err
	}
	if form.BudgetTokens, err = parseTokens("budgetTokens", raw.BudgetTokens); err != nil {
		return Form{}, err
	}
	if raw.Save != "" {
		form.Save, _ = strconv.ParseBool(raw.Save)
	}
	if raw.History != "" {
		if form.History, err = parseHistory(raw.History); err != nil {
			return Form{}, err
		}
	}
	if image != nil && image.Body != nil && image.Filename != "" && image.Filename != "undefined" {
		form.Image = image
	}
	return form, nil
}

func toValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		reason := "is required"
		switch fe.Tag() {
		case "number":
			reason = "must be a non-negative integer"
		case "json":
			reason = "must be valid JSON"
		case "boolean":
			reason = "must be a boolean"
		}
		return &ValidationError{Field: fe.Field(), Reason: reason}
	}
	return &ValidationError{Field: "form", Reason: err.Error()}
}

func parseID(field, raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &ValidationError{Field: field, Reason: "out of range"}
	}
	return id, nil
}

func parseTokens(field, raw string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, &ValidationError{Field: field, Reason: "out of range"}
	}
	return &n, nil
}

func parseHistory(raw string) ([]content.Message, error) {
	var history []content.Message
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		return nil, &ValidationError{Field: "history", Reason: err.Error()}
	}
	for i, m := range history {
		if m.Role != content.RoleUser && m.Role != content.RoleAssistant {
			return nil, &ValidationError{Field: "history", Reason: fmt.Sprintf("entry %d has role %q", i, m.Role)}
		}
	}
	return history, nil
}
