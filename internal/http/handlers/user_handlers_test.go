package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ringring/ringring-server/internal/domain"
	"github.com/ringring/ringring-server/pkg/auth"
	"github.com/ringring/ringring-server/pkg/config"
)

type mockService struct {
	registerFn func(ctx context.Context, email string) (*domain.User, error)
	activateFn func(ctx context.Context, email, code string) (*domain.User, error)
	renewFn    func(ctx context.Context, email string) error
	inviteFn   func(ctx context.Context, from, to string) error
	getUserFn  func(ctx context.Context, email string, onlyActivated bool) (*domain.User, error)
	getUsersFn func(ctx context.Context, emails []string, onlyActivated bool) ([]domain.User, error)

	resetUsersCalled   bool
	resetInvitesCalled bool
}

func (m *mockService) Register(ctx context.Context, email string) (*domain.User, error) {
	return m.registerFn(ctx, email)
}

func (m *mockService) Activate(ctx context.Context, email, code string) (*domain.User, error) {
	return m.activateFn(ctx, email, code)
}

func (m *mockService) RenewActivationCode(ctx context.Context, email string) error {
	return m.renewFn(ctx, email)
}

func (m *mockService) Invite(ctx context.Context, from, to string) error {
	return m.inviteFn(ctx, from, to)
}

func (m *mockService) GetUser(ctx context.Context, email string, onlyActivated bool) (*domain.User, error) {
	return m.getUserFn(ctx, email, onlyActivated)
}

func (m *mockService) GetUsers(ctx context.Context, emails []string, onlyActivated bool) ([]domain.User, error) {
	return m.getUsersFn(ctx, emails, onlyActivated)
}

func (m *mockService) ResetUsers(context.Context) error   { m.resetUsersCalled = true; return nil }
func (m *mockService) ResetInvites(context.Context) error { m.resetInvitesCalled = true; return nil }

func newTestRouter(svc *mockService, cfg *config.Config) http.Handler {
	h := New(svc, cfg)

	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		r.Post("/users", h.Register)
		r.Get("/users", h.GetUsers)
		r.Get("/users/{email}", h.GetUser)
		r.Put("/users/{email}/activate", h.Activate)
		r.Post("/users/{email}/activation-code", h.RenewActivationCode)
		r.Post("/invites", h.Invite)

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.RequireAdmin)
			r.Post("/reset/users", h.ResetUsers)
			r.Post("/reset/invites", h.ResetInvites)
		})
	})
	return r
}

func doRequest(t *testing.T, router http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) statusResponse {
	t.Helper()
	var resp statusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestRegisterHandler(t *testing.T) {
	svc := &mockService{
		registerFn: func(_ context.Context, email string) (*domain.User, error) {
			return &domain.User{Email: email, ActivationCode: domain.MaskedActivationCode}, nil
		},
	}
	router := newTestRouter(svc, config.Load())

	rec := doRequest(t, router, http.MethodPost, "/v1/users", `{"email":"alice@example.com"}`, nil)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	resp := decodeStatus(t, rec)
	if resp.Status != domain.StatusOkay {
		t.Fatalf("status code = %q", resp.Status)
	}
	if resp.User == nil || resp.User.ActivationCode != domain.MaskedActivationCode {
		t.Fatalf("unexpected user payload: %+v", resp.User)
	}
}

func TestRegisterHandlerDuplicate(t *testing.T) {
	svc := &mockService{
		registerFn: func(context.Context, string) (*domain.User, error) {
			return nil, domain.ErrEmailAlreadyRegistered
		},
	}
	router := newTestRouter(svc, config.Load())

	rec := doRequest(t, router, http.MethodPost, "/v1/users", `{"email":"alice@example.com"}`, nil)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if resp := decodeStatus(t, rec); resp.Status != domain.StatusEmailAlreadyRegistered {
		t.Fatalf("status code = %q", resp.Status)
	}
}

func TestRegisterHandlerBadJSON(t *testing.T) {
	svc := &mockService{}
	router := newTestRouter(svc, config.Load())

	rec := doRequest(t, router, http.MethodPost, "/v1/users", `{not json`, nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestActivateHandlerAlreadyActivated(t *testing.T) {
	svc := &mockService{
		activateFn: func(_ context.Context, email, _ string) (*domain.User, error) {
			return &domain.User{Email: email, ActivationCode: domain.MaskedActivationCode, IsActivated: true},
				domain.ErrUserAlreadyActivated
		},
	}
	router := newTestRouter(svc, config.Load())

	rec := doRequest(t, router, http.MethodPut, "/v1/users/alice@example.com/activate",
		`{"activation_code":"12345678"}`, nil)

	// Informational outcome: 200 with the user attached.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeStatus(t, rec)
	if resp.Status != domain.StatusUserAlreadyActivated {
		t.Fatalf("status code = %q", resp.Status)
	}
	if resp.User == nil {
		t.Fatal("already-activated response must carry the user")
	}
}

func TestActivateHandlerWrongCode(t *testing.T) {
	svc := &mockService{
		activateFn: func(context.Context, string, string) (*domain.User, error) {
			return nil, domain.ErrInvalidActivationCode
		},
	}
	router := newTestRouter(svc, config.Load())

	rec := doRequest(t, router, http.MethodPut, "/v1/users/alice@example.com/activate",
		`{"activation_code":"nope"}`, nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	resp := decodeStatus(t, rec)
	if resp.Status != domain.StatusInvalidActivationCode {
		t.Fatalf("status code = %q", resp.Status)
	}
	if resp.User != nil {
		t.Fatal("failed activation must not leak a user payload")
	}
}

func TestInviteHandlerRateLimited(t *testing.T) {
	svc := &mockService{
		inviteFn: func(context.Context, string, string) error {
			return domain.ErrInvitationLimit
		},
	}
	router := newTestRouter(svc, config.Load())

	rec := doRequest(t, router, http.MethodPost, "/v1/invites",
		`{"from":"alice@example.com","to":"bob@example.org"}`, nil)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if resp := decodeStatus(t, rec); resp.Status != domain.StatusInvitationLimitNotExceeded {
		t.Fatalf("status code = %q", resp.Status)
	}
}

func TestGetUsersHandler(t *testing.T) {
	var gotEmails []string
	svc := &mockService{
		getUsersFn: func(_ context.Context, emails []string, _ bool) ([]domain.User, error) {
			gotEmails = emails
			users := make([]domain.User, len(emails))
			for i, email := range emails {
				users[i] = domain.User{Email: email, ActivationCode: domain.MaskedActivationCode}
			}
			return users, nil
		},
	}
	router := newTestRouter(svc, config.Load())

	rec := doRequest(t, router, http.MethodGet,
		"/v1/users?email=alice@example.com&email=bob@example.org", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(gotEmails) != 2 {
		t.Fatalf("expected 2 emails passed through, got %v", gotEmails)
	}
	if resp := decodeStatus(t, rec); len(resp.Users) != 2 {
		t.Fatalf("expected 2 users in response, got %d", len(resp.Users))
	}
}

func TestGetUserHandlerNotFound(t *testing.T) {
	svc := &mockService{
		getUserFn: func(context.Context, string, bool) (*domain.User, error) {
			return nil, domain.ErrUserNotFound
		},
	}
	router := newTestRouter(svc, config.Load())

	rec := doRequest(t, router, http.MethodGet, "/v1/users/ghost@example.com", "", nil)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestAdminResetRequiresToken(t *testing.T) {
	svc := &mockService{}
	router := newTestRouter(svc, config.Load())

	rec := doRequest(t, router, http.MethodPost, "/v1/admin/reset/users", "", nil)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if svc.resetUsersCalled {
		t.Fatal("reset must not run without credentials")
	}
}

func TestAdminResetRejectsNonAdminRole(t *testing.T) {
	svc := &mockService{}
	cfg := config.Load()
	router := newTestRouter(svc, cfg)

	token, err := auth.NewToken("user@example.com", "user", cfg.Auth.JWTSecret, cfg.Auth.AdminTokenTTL)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	rec := doRequest(t, router, http.MethodPost, "/v1/admin/reset/users", "",
		map[string]string{"Authorization": "Bearer " + token})

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if svc.resetUsersCalled {
		t.Fatal("reset must not run for non-admin roles")
	}
}

func TestAdminResetWithValidToken(t *testing.T) {
	svc := &mockService{}
	cfg := config.Load()
	router := newTestRouter(svc, cfg)

	token, err := auth.NewAdminToken("ops@ringring.io", cfg.Auth.JWTSecret, cfg.Auth.AdminTokenTTL)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	rec := doRequest(t, router, http.MethodPost, "/v1/admin/reset/invites", "",
		map[string]string{"Authorization": "Bearer " + token})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !svc.resetInvitesCalled {
		t.Fatal("reset handler must reach the service")
	}
	if resp := decodeStatus(t, rec); resp.Status != domain.StatusOkay {
		t.Fatalf("status code = %q", resp.Status)
	}
}
