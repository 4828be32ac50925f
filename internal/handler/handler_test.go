package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/celiaho/HocusFocusToDo/internal/crypto"
	"github.com/celiaho/HocusFocusToDo/internal/metrics"
	"github.com/celiaho/HocusFocusToDo/internal/middleware"
	"github.com/celiaho/HocusFocusToDo/internal/repository"
	"github.com/celiaho/HocusFocusToDo/internal/repository/repotest"
	"github.com/celiaho/HocusFocusToDo/internal/service"
)

type codeSink struct {
	mu    sync.Mutex
	codes map[string]string
}

func (s *codeSink) SendResetCode(_ context.Context, email, code string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[email] = code
	return nil
}

func (s *codeSink) code(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[email]
}

type testAPI struct {
	handler http.Handler
	codes   *codeSink
}

func newTestAPI(t *testing.T, limiter *middleware.Limiter) *testAPI {
	t.Helper()
	db := repotest.Open(t)
	users := repository.NewUserRepository(db)
	docs := repository.NewDocumentRepository(db)
	resets := repository.NewResetRepository(db)
	codes := &codeSink{codes: map[string]string{}}

	codec := crypto.NewCodec("handler-test-secret", time.Hour)
	hasher := crypto.NewPasswordHasher(crypto.HashParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	documents := service.NewDocumentService(docs, users, metrics.Nop{})

	svc := Services{
		Auth:          service.NewAuthService(users, resets, codec, hasher, codes, metrics.Nop{}, service.AuthOptions{}),
		Authenticator: service.NewAuthenticator(codec, users),
		Documents:     documents,
		Tasks:         service.NewTaskService(documents),
		Profiles:      service.NewProfileService(users, resets),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &testAPI{
		handler: NewRouter(svc, RouterOptions{
			Logger:         logger,
			MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("# metrics")) }),
			AuthLimiter:    limiter,
		}),
		codes: codes,
	}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rr.Code, want, rr.Body.String())
	}
}

// signup registers an account and returns its id and a fresh token.
func (a *testAPI) signup(t *testing.T, email string) (string, string) {
	t.Helper()
	rr := a.do(t, http.MethodPost, "/auth/signup", "", map[string]any{
		"email": email, "password": "password1", "first_name": "Test", "last_name": "User",
	})
	expectStatus(t, rr, http.StatusCreated)
	profile := decode[map[string]any](t, rr)

	rr = a.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": "password1"})
	expectStatus(t, rr, http.StatusOK)
	login := decode[map[string]string](t, rr)
	return profile["id"].(string), login["token"]
}
