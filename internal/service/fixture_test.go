package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/celiaho/HocusFocusToDo/internal/crypto"
	"github.com/celiaho/HocusFocusToDo/internal/metrics"
	"github.com/celiaho/HocusFocusToDo/internal/model"
	"github.com/celiaho/HocusFocusToDo/internal/repository"
	"github.com/celiaho/HocusFocusToDo/internal/repository/repotest"
)

// cheapHash keeps argon2 fast in tests.
var cheapHash = crypto.HashParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// captureSender remembers the last code sent to each address.
type captureSender struct {
	mu    sync.Mutex
	codes map[string]string
	fail  error
}

func (s *captureSender) SendResetCode(_ context.Context, email, code string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.codes[email] = code
	return nil
}

func (s *captureSender) code(email string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[email]
	return c, ok
}

type fixture struct {
	clock    *testClock
	users    *repository.UserRepository
	docRepo  *repository.DocumentRepository
	resets   *repository.ResetRepository
	sender   *captureSender
	authn    *Authenticator
	auth     *AuthService
	docs     *DocumentService
	tasks    *TaskService
	profiles *ProfileService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := repotest.Open(t)
	clock := &testClock{now: time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)}

	f := &fixture{
		clock:   clock,
		users:   repository.NewUserRepository(db),
		docRepo: repository.NewDocumentRepository(db),
		resets:  repository.NewResetRepository(db),
		sender:  &captureSender{codes: map[string]string{}},
	}

	codec := crypto.NewCodec("test-secret", time.Hour).WithClock(clock.Now)
	f.authn = NewAuthenticator(codec, f.users)
	f.auth = NewAuthService(f.users, f.resets, codec, crypto.NewPasswordHasher(cheapHash), f.sender, metrics.Nop{},
		AuthOptions{ResetCodeTTL: 15 * time.Minute, ResetMaxAttempts: 5})
	f.auth.now = clock.Now
	f.docs = NewDocumentService(f.docRepo, f.users, metrics.Nop{})
	f.docs.now = clock.Now
	f.tasks = NewTaskService(f.docs)
	f.profiles = NewProfileService(f.users, f.resets)
	f.profiles.now = clock.Now
	return f
}

// account signs up and logs in, returning the identity and its token.
func (f *fixture) account(t *testing.T, email, first string) (Identity, string) {
	t.Helper()
	ctx := context.Background()
	profile, err := f.auth.Signup(ctx, model.SignupRequest{
		Email:     email,
		Password:  "password1",
		FirstName: first,
		LastName:  "Tester",
	})
	if err != nil {
		t.Fatalf("Signup(%s): %v", email, err)
	}
	resp, err := f.auth.Login(ctx, model.LoginRequest{Email: email, Password: "password1"})
	if err != nil {
		t.Fatalf("Login(%s): %v", email, err)
	}
	return Identity{UserID: profile.ID}, resp.Token
}

func (f *fixture) document(t *testing.T, owner Identity, content map[string]any) model.DocumentResponse {
	t.Helper()
	doc, err := f.docs.Create(context.Background(), owner, model.DocumentRequest{Content: content})
	if err != nil {
		t.Fatalf("Create document: %v", err)
	}
	return doc
}

func wantErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("error = %v, want %v", err, target)
	}
}
