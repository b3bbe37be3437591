package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/Jabakyo/next-class/internal/config"
	"github.com/Jabakyo/next-class/internal/lock"
	"github.com/Jabakyo/next-class/internal/modules/user"
	"github.com/Jabakyo/next-class/internal/modules/verification"
	"github.com/Jabakyo/next-class/internal/notification"
	"github.com/Jabakyo/next-class/internal/notification/templates"
	"github.com/Jabakyo/next-class/internal/store"
	"github.com/Jabakyo/next-class/internal/upload"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

type inbox struct {
	mu       sync.Mutex
	messages []notification.Message
}

func (b *inbox) Notify(_ context.Context, msg notification.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, msg)
}

func (b *inbox) signupToken(t *testing.T, email string) string {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.messages) - 1; i >= 0; i-- {
		m := b.messages[i]
		if m.Kind == notification.KindEmailVerification && m.Recipient == email {
			return m.Data.(templates.EmailVerificationData).Token
		}
	}
	t.Fatalf("no verification email for %s", email)
	return ""
}

type testServer struct {
	router chi.Router
	inbox  *inbox
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := config.Default()
	cfg.Auth.JWTSecret = "server-test-secret"
	cfg.Auth.AllowedDomains = []string{"school.edu"}
	cfg.Auth.AdminEmails = []string{"admin@school.edu"}
	cfg.Upload.MaxBytes = 1024

	s, err := store.NewFile(t.TempDir(), 2*time.Second, log)
	require.NoError(t, err)
	disk, err := upload.NewDisk(t.TempDir())
	require.NoError(t, err)
	locker := lock.NewLocal(2 * time.Second)
	box := &inbox{}

	userRepo := user.NewRepository(s)
	verificationService := verification.NewService(&verification.Config{
		Users:    userRepo,
		Requests: verification.NewRepository(s),
		Store:    s,
		Locker:   locker,
		Uploads:  disk,
		Notifier: box,
		Logger:   log,
		Config:   cfg,
	})
	userService := user.NewService(&user.Config{
		Repo:     userRepo,
		Store:    s,
		Locker:   locker,
		Notifier: box,
		Schedule: verificationService,
		Logger:   log,
		Config:   cfg,
	})

	return &testServer{
		router: New(cfg, log, Services{Users: userService, Verification: verificationService}),
		inbox:  box,
	}
}

func (s *testServer) do(t *testing.T, method, path, token, contentType string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) json(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	return s.do(t, method, path, token, "application/json", r)
}

// register signs up and confirms an account, returning its JWT.
func (s *testServer) register(t *testing.T, email string) string {
	t.Helper()
	rec := s.json(t, http.MethodPost, "/auth/signup", "", map[string]any{
		"email":           email,
		"password":        "correct horse",
		"confirmPassword": "correct horse",
		"name":            "Test Person",
		"studentId":       "S100",
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	rec = s.json(t, http.MethodPost, "/auth/verify-email", "", map[string]any{
		"token": s.inbox.signupToken(t, email),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotEmpty(t, out.Token)
	return out.Token
}

func screenshotBody(t *testing.T) (string, io.Reader) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="screenshot"; filename="schedule.png"`)
	h.Set("Content-Type", "image/png")
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(pngHeader)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return w.FormDataContentType(), &buf
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/health", "", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	// huma adds a $schema link next to the payload.
	require.Equal(t, "ok", decode[map[string]any](t, rec)["status"])
}

func TestSecuredRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/users/me", "", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	require.Equal(t, "ErrUnauthorized", decode[map[string]any](t, rec)["code"])

	rec = s.do(t, http.MethodGet, "/users/me", "not-a-jwt", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVerificationOverHTTP(t *testing.T) {
	s := newTestServer(t)
	student := s.register(t, "ada@school.edu")
	admin := s.register(t, "admin@school.edu")

	rec := s.json(t, http.MethodPost, "/users/me/classes", student, map[string]any{
		"subject": "cs", "courseNumber": "101", "section": "A",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, "CS-101-A", decode[map[string]any](t, rec)["id"])

	// Sharing is gated on verification.
	rec = s.json(t, http.MethodPut, "/users/me/sharing", student, map[string]any{"shared": true})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "ErrVerificationRequired", decode[map[string]any](t, rec)["code"])

	contentType, body := screenshotBody(t)
	rec = s.do(t, http.MethodPost, "/users/me/verification", student, contentType, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	submitted := decode[verification.Request](t, rec)
	require.Equal(t, verification.RequestPending, submitted.Status)

	contentType, body = screenshotBody(t)
	rec = s.do(t, http.MethodPost, "/users/me/verification", student, contentType, body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "ErrAlreadyPending", decode[map[string]any](t, rec)["code"])

	// Students cannot reach the review routes.
	rec = s.do(t, http.MethodGet, "/admin/verifications", student, "", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/admin/verifications?status=pending", admin, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	listed := decode[struct {
		Requests []verification.Request `json:"requests"`
	}](t, rec)
	require.Len(t, listed.Requests, 1)
	require.Equal(t, submitted.ID, listed.Requests[0].ID)

	rec = s.do(t, http.MethodGet, "/verifications/"+submitted.ID+"/screenshot", admin, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	require.Equal(t, pngHeader, rec.Body.Bytes())

	rec = s.json(t, http.MethodPost, "/admin/verifications/"+submitted.ID+"/decision", admin, map[string]any{
		"decision": "approve",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decided := decode[verification.Request](t, rec)
	require.Equal(t, verification.RequestApproved, decided.Status)
	require.NotEmpty(t, decided.ReviewedBy)
	require.NotEqual(t, "admin", decided.ReviewedBy)

	rec = s.json(t, http.MethodPut, "/users/me/sharing", student, map[string]any{"shared": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Editing the verified schedule invalidates it.
	rec = s.do(t, http.MethodDelete, "/users/me/classes/CS-101-A", student, "", nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/users/me/verification", student, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	overview := decode[verification.Overview](t, rec)
	require.Equal(t, user.StatusNone, overview.Status)
	require.Len(t, overview.Requests, 1)

	// Only owners delete accounts.
	rec = s.do(t, http.MethodDelete, "/admin/users/whoever", admin, "", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}
