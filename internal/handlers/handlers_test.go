package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatforge/chatforge/internal/accounts"
	"github.com/chatforge/chatforge/internal/chat"
	"github.com/chatforge/chatforge/internal/content"
	"github.com/chatforge/chatforge/internal/healthcheck"
	"github.com/chatforge/chatforge/internal/history"
	"github.com/chatforge/chatforge/internal/media"
	"github.com/chatforge/chatforge/internal/models"
	"github.com/chatforge/chatforge/internal/personas"
	"github.com/chatforge/chatforge/internal/usage"
	"github.com/chatforge/chatforge/internal/vendors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func userToken(userID int64, admin bool) *jwt.Token {
	return &jwt.Token{
		Valid: true,
		Claims: jwt.MapClaims{
			"user_id":  fmt.Sprintf("%d", userID),
			"is_admin": admin,
		},
	}
}

// newRouter registers h on a fresh echo whose requests carry the given token.
func newRouter(h interface{ Register(*echo.Echo) }, token *jwt.Token) *echo.Echo {
	e := echo.New()
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if token != nil {
				c.Set("user", token)
			}
			return next(c)
		}
	})
	h.Register(e)
	return e
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func httpStatus(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	return he.Code
}

type fakeChatter struct {
	userID    int64
	fields    url.Values
	imageName string
	imageBody string
	err       error
}

func (f *fakeChatter) CreateChat(_ context.Context, userID int64, fields url.Values, image *chat.Image) (chat.Result, error) {
	f.userID = userID
	f.fields = fields
	if image != nil {
		f.imageName = image.Filename
		body, _ := io.ReadAll(image.Body)
		f.imageBody = string(body)
	}
	if f.err != nil {
		return chat.Result{}, f.err
	}
	if userID <= 0 {
		return chat.Result{}, chat.ErrUnauthenticated
	}
	return chat.Result{
		Model:           fields.Get("model"),
		Prompt:          fields.Get("prompt"),
		RenderTypeName:  "markdown",
		ResponseHistory: []content.Message{content.UserText(fields.Get("prompt"))},
	}, nil
}

func multipartChat(t *testing.T, fields map[string]string, imageName, imageBody string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if imageName != "" {
		part, err := w.CreateFormFile("image", imageName)
		require.NoError(t, err)
		_, err = part.Write([]byte(imageBody))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, "/chat", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func TestChatHandlerForwardsMultipart(t *testing.T) {
	t.Parallel()

	fake := &fakeChatter{}
	e := newRouter(NewChatHandler(testLogger(), fake), userToken(99, false))

	req := multipartChat(t, map[string]string{
		"model":        "gpt-4o",
		"persona":      "10",
		"outputFormat": "20",
		"prompt":       "hello",
	}, "cat.png", "PNGDATA")
	rec := serve(e, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(99), fake.userID)
	assert.Equal(t, "gpt-4o", fake.fields.Get("model"))
	assert.Equal(t, "hello", fake.fields.Get("prompt"))
	assert.Equal(t, "cat.png", fake.imageName)
	assert.Equal(t, "PNGDATA", fake.imageBody)

	var got chat.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "gpt-4o", got.Model)
	assert.Equal(t, "markdown", got.RenderTypeName)
}

func TestChatHandlerWithoutImageOrToken(t *testing.T) {
	t.Parallel()

	fake := &fakeChatter{}
	e := newRouter(NewChatHandler(testLogger(), fake), nil)

	req := multipartChat(t, map[string]string{"model": "gpt-4o", "prompt": "hi"}, "", "")
	rec := serve(e, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, int64(0), fake.userID)
	assert.Empty(t, fake.imageName)
}

func TestChatHandlerURLEncodedForm(t *testing.T) {
	t.Parallel()

	fake := &fakeChatter{}
	e := newRouter(NewChatHandler(testLogger(), fake), userToken(5, false))

	form := url.Values{"model": {"gpt-4o"}, "prompt": {"plain"}}
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := serve(e, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "plain", fake.fields.Get("prompt"))
	assert.Empty(t, fake.imageName)
}

func TestChatErrorStatus(t *testing.T) {
	t.Parallel()

	limit := &usage.LimitExceededError{Limit: 10, Used: 10, Reset: time.Now()}
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"validation", &chat.ValidationError{Field: "prompt", Reason: "required"}, http.StatusBadRequest},
		{"model", fmt.Errorf("resolve: %w", chat.ErrModelNotFound), http.StatusNotFound},
		{"auth", chat.ErrUnauthenticated, http.StatusUnauthorized},
		{"limit", limit, http.StatusTooManyRequests},
		{"usage check", fmt.Errorf("%w: %w", chat.ErrUsageCheckFailed, errors.New("db down")), http.StatusServiceUnavailable},
		{"dispatch", &chat.DispatchError{Vendor: "openai", Route: chat.RoutePlain, Cause: errors.New("boom")}, http.StatusBadGateway},
		{"other", errors.New("unexpected"), http.StatusInternalServerError},
	}
	h := NewChatHandler(testLogger(), nil)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.code, httpStatus(t, h.chatError(tc.err)))
		})
	}
}

func TestChatErrorMessages(t *testing.T) {
	t.Parallel()

	h := NewChatHandler(testLogger(), nil)
	var he *echo.HTTPError
	limit := &usage.LimitExceededError{Limit: 10, Used: 10, Reset: time.Now()}
	require.ErrorAs(t, h.chatError(limit), &he)
	assert.True(t, strings.HasPrefix(fmt.Sprint(he.Message), "Usage limit exceeded"))

	require.ErrorAs(t, h.chatError(&chat.DispatchError{Cause: errors.New("upstream said 500 with secrets")}), &he)
	assert.Equal(t, chat.DispatchMessage, he.Message)

	require.ErrorAs(t, h.chatError(fmt.Errorf(`resolve model "x": %w`, errors.New("pq: relation models does not exist"))), &he)
	assert.Equal(t, http.StatusInternalServerError, he.Code)
	assert.Equal(t, "internal error", he.Message)

	require.ErrorAs(t, h.chatError(fmt.Errorf("%w: %w", chat.ErrUnauthenticated, usage.ErrUserUnavailable)), &he)
	assert.Equal(t, http.StatusUnauthorized, he.Code)
	assert.Equal(t, chat.ErrUnauthenticated.Error(), he.Message)
}

type fakePersonas struct {
	items   map[int64]personas.Persona
	created []personas.CreateRequest
}

func (f *fakePersonas) Get(_ context.Context, id int64) (personas.Persona, error) {
	p, ok := f.items[id]
	if !ok {
		return personas.Persona{}, fmt.Errorf("%w: id %d", personas.ErrNotFound, id)
	}
	return p, nil
}

func (f *fakePersonas) List(context.Context) ([]personas.Persona, error) {
	out := make([]personas.Persona, 0, len(f.items))
	for _, p := range f.items {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakePersonas) Create(_ context.Context, req personas.CreateRequest) (personas.Persona, error) {
	for _, p := range f.items {
		if p.Name == req.Name {
			return personas.Persona{}, personas.ErrNameConflict
		}
	}
	f.created = append(f.created, req)
	return personas.Persona{ID: 11, Name: req.Name, Prompt: req.Prompt}, nil
}

func (f *fakePersonas) Update(_ context.Context, id int64, req personas.UpdateRequest) (personas.Persona, error) {
	p, err := f.Get(context.Background(), id)
	if err != nil {
		return p, err
	}
	if req.Prompt != nil {
		p.Prompt = *req.Prompt
	}
	return p, nil
}

func (f *fakePersonas) Delete(_ context.Context, id int64) error {
	if _, ok := f.items[id]; !ok {
		return personas.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

func newFakePersonas() *fakePersonas {
	return &fakePersonas{items: map[int64]personas.Persona{
		10: {ID: 10, Name: "General", Prompt: "You are a helpful assistant"},
	}}
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func TestPersonasReadsAreOpenWritesNeedAdmin(t *testing.T) {
	t.Parallel()

	store := newFakePersonas()
	e := newRouter(NewPersonasHandler(testLogger(), store), userToken(7, false))

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/personas/10", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "General")

	rec = serve(e, jsonRequest(http.MethodPost, "/personas", `{"name":"Pirate","prompt":"Arr"}`))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, store.created)

	rec = serve(e, httptest.NewRequest(http.MethodDelete, "/personas/10", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPersonasAdminCRUD(t *testing.T) {
	t.Parallel()

	store := newFakePersonas()
	e := newRouter(NewPersonasHandler(testLogger(), store), userToken(1, true))

	rec := serve(e, jsonRequest(http.MethodPost, "/personas", `{"name":"Pirate","prompt":"Arr"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, store.created, 1)

	rec = serve(e, jsonRequest(http.MethodPost, "/personas", `{"prompt":"nameless"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "name")

	rec = serve(e, jsonRequest(http.MethodPost, "/personas", `{"name":"General"}`))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = serve(e, jsonRequest(http.MethodPut, "/personas/10", `{"prompt":"Be brief"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Be brief")

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/personas/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(e, httptest.NewRequest(http.MethodDelete, "/personas/10", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/personas/10", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type fakeModels struct {
	vendor models.Vendor
}

func (f *fakeModels) GetByID(context.Context, int64) (models.Descriptor, error) {
	return models.Descriptor{}, models.ErrModelNotFound
}

func (f *fakeModels) List(_ context.Context, vendor models.Vendor) ([]models.Descriptor, error) {
	f.vendor = vendor
	return []models.Descriptor{{ID: 1, APIName: "gpt-4o", DisplayName: "GPT-4o", Vendor: models.VendorOpenAI}}, nil
}

func (f *fakeModels) Create(_ context.Context, req models.CreateRequest) (models.Descriptor, error) {
	return models.Descriptor{ID: 2, APIName: req.APIName, DisplayName: req.DisplayName, Vendor: req.Vendor}, nil
}

func (f *fakeModels) Update(context.Context, int64, models.UpdateRequest) (models.Descriptor, error) {
	return models.Descriptor{}, models.ErrModelNotFound
}

func (f *fakeModels) Delete(context.Context, int64) error { return nil }

type textOnlyAdapter struct{}

func (textOnlyAdapter) Generate(context.Context, vendors.Request) (content.Message, error) {
	return content.Assistant(content.TextBlock("ok"))
}

type imageAdapter struct{ textOnlyAdapter }

func (imageAdapter) GenerateImage(context.Context, vendors.Request) (string, error) {
	return "http://img", nil
}

func TestModelsListFiltersAndValidates(t *testing.T) {
	t.Parallel()

	store := &fakeModels{}
	e := newRouter(NewModelsHandler(testLogger(), store, nil), userToken(1, true))

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/models?vendor=openai", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.VendorOpenAI, store.vendor)

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/models?vendor=ollama", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(e, jsonRequest(http.MethodPost, "/models", `{"api_name":"m","name":"M","vendor":"ollama"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(e, jsonRequest(http.MethodPost, "/models", `{"api_name":"m","name":"M","vendor":"google"}`))
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/models/9", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListVendorsReportsAdapters(t *testing.T) {
	t.Parallel()

	registry := vendors.NewRegistry()
	registry.Register(models.VendorOpenAI, imageAdapter{})
	registry.Register(models.VendorGoogle, textOnlyAdapter{})
	e := newRouter(NewModelsHandler(testLogger(), &fakeModels{}, registry), userToken(1, false))

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/vendors", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got []VendorInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, len(models.Vendors()))
	byName := map[models.Vendor]VendorInfo{}
	for _, v := range got {
		byName[v.Name] = v
	}
	assert.Equal(t, VendorInfo{Name: models.VendorOpenAI, Configured: true, ImageGeneration: true}, byName[models.VendorOpenAI])
	assert.Equal(t, VendorInfo{Name: models.VendorGoogle, Configured: true}, byName[models.VendorGoogle])
	assert.False(t, byName[models.VendorAnthropic].Configured)
}

type fakeHistory struct {
	deletedFor int64
}

func (f *fakeHistory) List(_ context.Context, userID int64) ([]history.Conversation, error) {
	return []history.Conversation{{ID: 1, UserID: userID, Title: "hello"}}, nil
}

func (f *fakeHistory) Get(_ context.Context, userID, id int64) (history.Conversation, error) {
	if userID != 99 {
		return history.Conversation{}, history.ErrNotFound
	}
	return history.Conversation{ID: id, UserID: userID, Title: "hello"}, nil
}

func (f *fakeHistory) Delete(_ context.Context, userID, _ int64) error {
	f.deletedFor = userID
	return nil
}

func TestHistoryScopedToCaller(t *testing.T) {
	t.Parallel()

	store := &fakeHistory{}
	owner := newRouter(NewHistoryHandler(testLogger(), store), userToken(99, false))
	other := newRouter(NewHistoryHandler(testLogger(), store), userToken(5, false))
	anonymous := newRouter(NewHistoryHandler(testLogger(), store), nil)

	assert.Equal(t, http.StatusOK, serve(owner, httptest.NewRequest(http.MethodGet, "/history/3", nil)).Code)
	assert.Equal(t, http.StatusNotFound, serve(other, httptest.NewRequest(http.MethodGet, "/history/3", nil)).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(anonymous, httptest.NewRequest(http.MethodGet, "/history", nil)).Code)

	rec := serve(owner, httptest.NewRequest(http.MethodDelete, "/history/3", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(99), store.deletedFor)
}

type fakeAuthenticator struct{}

func (fakeAuthenticator) Login(_ context.Context, username, password string) (accounts.User, error) {
	switch {
	case username == "admin" && password == "secret":
		return accounts.User{ID: 1, Username: "admin", IsAdmin: true, IsActive: true}, nil
	case username == "gone":
		return accounts.User{}, accounts.ErrInactive
	default:
		return accounts.User{}, accounts.ErrInvalidCredentials
	}
}

func (fakeAuthenticator) GetByID(_ context.Context, id int64) (accounts.User, error) {
	switch id {
	case 1:
		return accounts.User{ID: 1, Username: "admin", IsAdmin: false, IsActive: true}, nil
	case 2:
		return accounts.User{ID: 2, Username: "gone", IsActive: false}, nil
	default:
		return accounts.User{}, fmt.Errorf("%w: id %d", accounts.ErrNotFound, id)
	}
}

func TestRefreshReloadsAccount(t *testing.T) {
	t.Parallel()

	handler := NewAuthHandler(testLogger(), fakeAuthenticator{}, "test-secret", time.Hour)

	demoted := newRouter(handler, userToken(1, true))
	rec := serve(demoted, httptest.NewRequest(http.MethodPost, "/auth/refresh", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp RefreshResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	parsed, err := jwt.Parse(resp.AccessToken, func(*jwt.Token) (any, error) { return []byte("test-secret"), nil })
	require.NoError(t, err)
	assert.Equal(t, false, parsed.Claims.(jwt.MapClaims)["is_admin"])

	inactive := newRouter(handler, userToken(2, false))
	assert.Equal(t, http.StatusUnauthorized, serve(inactive, httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)).Code)

	deleted := newRouter(handler, userToken(3, false))
	assert.Equal(t, http.StatusUnauthorized, serve(deleted, httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)).Code)
}

func TestLogin(t *testing.T) {
	t.Parallel()

	e := newRouter(NewAuthHandler(testLogger(), fakeAuthenticator{}, "test-secret", time.Hour), nil)

	rec := serve(e, jsonRequest(http.MethodPost, "/auth/login", `{"username":"admin","password":"secret"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int64(1), resp.User.ID)

	parsed, err := jwt.Parse(resp.AccessToken, func(*jwt.Token) (any, error) { return []byte("test-secret"), nil })
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, "1", claims["user_id"])
	assert.Equal(t, true, claims["is_admin"])

	rec = serve(e, jsonRequest(http.MethodPost, "/auth/login", `{"username":"admin","password":"wrong"}`))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(e, jsonRequest(http.MethodPost, "/auth/login", `{"username":"gone","password":"x"}`))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(e, jsonRequest(http.MethodPost, "/auth/login", `{"username":"admin"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeUsers struct{}

func (fakeUsers) GetByID(_ context.Context, id int64) (accounts.User, error) {
	return accounts.User{ID: id, Username: "u"}, nil
}

type fakeUsage struct{ err error }

func (f fakeUsage) Status(context.Context, int64) (usage.Status, error) {
	if f.err != nil {
		return usage.Status{}, f.err
	}
	return usage.Status{Limit: 100, Used: 3, Remaining: 97}, nil
}

func TestUsersMe(t *testing.T) {
	t.Parallel()

	e := newRouter(NewUsersHandler(testLogger(), fakeUsers{}, fakeUsage{}), userToken(42, false))

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/users/me", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":42`)

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/users/me/usage", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"remaining":97`)

	deactivated := newRouter(NewUsersHandler(testLogger(), fakeUsers{}, fakeUsage{err: usage.ErrUserUnavailable}), userToken(42, false))
	rec = serve(deactivated, httptest.NewRequest(http.MethodGet, "/users/me/usage", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	broken := newRouter(NewUsersHandler(testLogger(), fakeUsers{}, fakeUsage{err: errors.New("db")}), userToken(42, false))
	rec = serve(broken, httptest.NewRequest(http.MethodGet, "/users/me/usage", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type fakeMedia struct{}

func (fakeMedia) Open(_ context.Context, key string) (io.ReadCloser, string, error) {
	if key != "ab/abc.png" {
		return nil, "", errors.Join(media.ErrAssetNotFound, errors.New("no such file"))
	}
	return io.NopCloser(strings.NewReader("PNG")), "image/png", nil
}

func TestMediaServe(t *testing.T) {
	t.Parallel()

	e := newRouter(NewMediaHandler(testLogger(), fakeMedia{}), nil)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/media/ab/abc.png", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, "PNG", rec.Body.String())

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/media/ab/missing.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCleanMediaKey(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw string
		ok  bool
	}{
		{"ab/abc.png", true},
		{"", false},
		{"../etc/passwd", false},
		{"ab/../../x", false},
		{"/abs.png", false},
		{"ab//abc.png", false},
	}
	for _, tc := range cases {
		_, ok := cleanMediaKey(tc.raw)
		if ok != tc.ok {
			t.Fatalf("cleanMediaKey(%q) ok=%v want %v", tc.raw, ok, tc.ok)
		}
	}
}

func TestStoreError(t *testing.T) {
	t.Parallel()

	assert.Equal(t, http.StatusNotFound, httpStatus(t, storeError(fmt.Errorf("%w: id 3", personas.ErrNotFound))))
	assert.Equal(t, http.StatusConflict, httpStatus(t, storeError(models.ErrAPINameAlreadyExists)))
	assert.Equal(t, http.StatusInternalServerError, httpStatus(t, storeError(errors.New("db down"))))
}

type staticChecker []healthcheck.CheckResult

func (s staticChecker) ListChecks(context.Context) []healthcheck.CheckResult { return s }

func TestHealthChecks(t *testing.T) {
	t.Parallel()

	healthy := []healthcheck.Checker{staticChecker{{ID: "db.connection", Status: healthcheck.StatusOK}}}
	e := newRouter(NewHealthHandler(testLogger(), healthy), userToken(1, true))
	rec := serve(e, httptest.NewRequest(http.MethodGet, "/health/checks", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	failing := append(healthy, staticChecker{{ID: "mcp.binding.1", Status: healthcheck.StatusError}})
	e = newRouter(NewHealthHandler(testLogger(), failing), userToken(1, true))
	rec = serve(e, httptest.NewRequest(http.MethodGet, "/health/checks", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	e = newRouter(NewHealthHandler(testLogger(), healthy), userToken(2, false))
	rec = serve(e, httptest.NewRequest(http.MethodGet, "/health/checks", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPingAndAlive(t *testing.T) {
	t.Parallel()

	e := newRouter(NewPingHandler(testLogger()), nil)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp PingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "chatforge", resp.Service)
	assert.GreaterOrEqual(t, resp.UptimeSeconds, int64(0))

	rec = serve(e, httptest.NewRequest(http.MethodHead, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, rec.Body.Len())
}
