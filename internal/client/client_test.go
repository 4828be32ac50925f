package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/celiaho/HocusFocusToDo/internal/crypto"
	"github.com/celiaho/HocusFocusToDo/internal/handler"
	"github.com/celiaho/HocusFocusToDo/internal/metrics"
	"github.com/celiaho/HocusFocusToDo/internal/model"
	"github.com/celiaho/HocusFocusToDo/internal/repository"
	"github.com/celiaho/HocusFocusToDo/internal/repository/repotest"
	"github.com/celiaho/HocusFocusToDo/internal/service"
	"github.com/celiaho/HocusFocusToDo/internal/session"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// newServer runs the real API on a throwaway SQLite database.
func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	db := repotest.Open(t)
	users := repository.NewUserRepository(db)
	resets := repository.NewResetRepository(db)
	codec := crypto.NewCodec("client-test-secret", time.Hour)
	hasher := crypto.NewPasswordHasher(crypto.HashParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	docs := service.NewDocumentService(repository.NewDocumentRepository(db), users, metrics.Nop{})

	router := handler.NewRouter(handler.Services{
		Auth:          service.NewAuthService(users, resets, codec, hasher, service.NewLogCodeSender(quiet, false), metrics.Nop{}, service.AuthOptions{}),
		Authenticator: service.NewAuthenticator(codec, users),
		Documents:     docs,
		Tasks:         service.NewTaskService(docs),
		Profiles:      service.NewProfileService(users, resets),
	}, handler.RouterOptions{Logger: quiet})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func signedIn(t *testing.T, srv *httptest.Server, email string) (*Client, model.ProfileResponse) {
	t.Helper()
	ctx := context.Background()
	c := New(srv.URL, session.NewMemoryStore(), srv.Client(), quiet)

	profile, err := c.Signup(ctx, model.SignupRequest{Email: email, Password: "password1", FirstName: "T", LastName: "U"})
	if err != nil {
		t.Fatalf("Signup(%s) unexpected error: %v", email, err)
	}
	if _, err := c.Login(ctx, email, "password1"); err != nil {
		t.Fatalf("Login(%s) unexpected error: %v", email, err)
	}
	return c, profile
}

func TestClientEndToEnd(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t)
	owner, ownerProfile := signedIn(t, srv, "owner@x.com")
	reader, readerProfile := signedIn(t, srv, "reader@x.com")

	sess, ok := owner.Session()
	if !ok || sess.SubjectID != ownerProfile.ID || !owner.Authenticated() {
		t.Fatalf("Session() = %+v, %v", sess, ok)
	}

	me, err := owner.Me(ctx)
	if err != nil || me.Email != "owner@x.com" {
		t.Fatalf("Me() = %+v, %v", me, err)
	}

	doc, err := owner.CreateDocument(ctx, map[string]any{"title": "Plan"})
	if err != nil {
		t.Fatalf("CreateDocument() unexpected error: %v", err)
	}

	if err := owner.SaveDraft(doc.ID, map[string]any{"title": "Plan v2"}); err != nil {
		t.Fatalf("SaveDraft() unexpected error: %v", err)
	}
	if _, err := owner.UpdateDocument(ctx, doc.ID, map[string]any{"title": "Plan v2"}); err != nil {
		t.Fatalf("UpdateDocument() unexpected error: %v", err)
	}
	if _, ok := owner.Draft(doc.ID); ok {
		t.Error("draft should be dropped after a successful save")
	}

	_, err = reader.Document(ctx, doc.ID)
	if !errors.Is(err, model.ErrForbidden) {
		t.Errorf("Document() as stranger error = %v, want ErrForbidden", err)
	}

	shared, err := owner.Share(ctx, doc.ID, readerProfile.ID)
	if err != nil || len(shared) != 1 {
		t.Fatalf("Share() = %v, %v", shared, err)
	}
	if _, err := owner.Share(ctx, doc.ID, ownerProfile.ID); !errors.Is(err, model.ErrSelfShare) {
		t.Errorf("Share(self) error = %v, want ErrSelfShare", err)
	}

	got, err := reader.Document(ctx, doc.ID)
	if err != nil || got.Content["title"] != "Plan v2" {
		t.Fatalf("Document() as recipient = %+v, %v", got, err)
	}
	if _, err := reader.UpdateDocument(ctx, doc.ID, map[string]any{}); !errors.Is(err, model.ErrForbidden) {
		t.Errorf("UpdateDocument() as recipient error = %v, want ErrForbidden", err)
	}

	page, err := reader.Documents(ctx, ListOptions{Scope: model.ScopeShared})
	if err != nil || page.Total != 1 {
		t.Errorf("Documents(shared) = %+v, %v", page, err)
	}

	task, err := owner.AddTask(ctx, doc.ID, model.TaskRequest{Text: "Do it", Quadrant: model.QuadrantUrgentImportant})
	if err != nil || task.Quadrant != model.QuadrantUrgentImportant {
		t.Fatalf("AddTask() = %+v, %v", task, err)
	}
	board, err := reader.Tasks(ctx, doc.ID)
	if err != nil || len(board[model.QuadrantUrgentImportant]) != 1 {
		t.Errorf("Tasks() = %+v, %v", board, err)
	}

	collabs, err := owner.Collaborators(ctx, doc.ID)
	if err != nil || len(collabs) != 1 || !collabs[0].Shared {
		t.Errorf("Collaborators() = %+v, %v", collabs, err)
	}

	if _, err := owner.Unshare(ctx, doc.ID, readerProfile.ID); err != nil {
		t.Fatalf("Unshare() unexpected error: %v", err)
	}
	if _, err := reader.Document(ctx, doc.ID); !errors.Is(err, model.ErrForbidden) {
		t.Errorf("Document() after unshare error = %v, want ErrForbidden", err)
	}

	if err := owner.DeleteAccount(ctx); err != nil {
		t.Fatalf("DeleteAccount() unexpected error: %v", err)
	}
	if owner.Authenticated() {
		t.Error("DeleteAccount() should sign out")
	}
}

func TestClientLoginFailure(t *testing.T) {
	srv := newServer(t)
	c := New(srv.URL, session.NewMemoryStore(), srv.Client(), quiet)

	_, err := c.Login(context.Background(), "nobody@x.com", "password1")
	if !errors.Is(err, model.ErrInvalidCredentials) {
		t.Errorf("Login() error = %v, want ErrInvalidCredentials", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("Login() error = %#v, want APIError 401", err)
	}
	if _, ok := c.Session(); ok {
		t.Error("failed login stored a session")
	}
}

func TestClientRequiresSession(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c := New(srv.URL, session.NewMemoryStore(), srv.Client(), quiet)
	if _, err := c.Me(context.Background()); !errors.Is(err, model.ErrAuthentication) {
		t.Errorf("Me() error = %v, want ErrAuthentication", err)
	}
	if hits.Load() != 0 {
		t.Errorf("server saw %d requests, want none", hits.Load())
	}
}

func issue(t *testing.T, subject string) session.Session {
	t.Helper()
	token, _, err := crypto.NewCodec("any", time.Hour).Issue(subject, 0)
	if err != nil {
		t.Fatalf("Issue() unexpected error: %v", err)
	}
	sess, err := session.FromToken(token)
	if err != nil {
		t.Fatalf("FromToken() unexpected error: %v", err)
	}
	return sess
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"invalid or expired token"}`))
}

func TestClientClearsRejectedSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		unauthorized(w)
	}))
	defer srv.Close()

	store := session.NewMemoryStore()
	if err := store.Save(issue(t, "u1")); err != nil {
		t.Fatal(err)
	}
	store.SaveDraft("d1", map[string]any{"title": "draft"})

	c := New(srv.URL, store, srv.Client(), quiet)
	_, err := c.Me(context.Background())
	if !errors.Is(err, model.ErrAuthentication) {
		t.Errorf("Me() error = %v, want ErrAuthentication", err)
	}
	if _, ok := store.Current(); ok {
		t.Error("rejected session should be cleared")
	}
	if _, ok := store.Draft("d1"); ok {
		t.Error("drafts should go with the rejected session")
	}
}

func TestClientKeepsNewerSessionOn401(t *testing.T) {
	store := session.NewMemoryStore()
	newer := issue(t, "u2")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Another login lands while this request is in flight.
		store.Save(newer)
		unauthorized(w)
	}))
	defer srv.Close()

	if err := store.Save(issue(t, "u1")); err != nil {
		t.Fatal(err)
	}
	c := New(srv.URL, store, srv.Client(), quiet)
	c.Me(context.Background())

	cur, ok := store.Current()
	if !ok || cur.Token != newer.Token {
		t.Errorf("Current() = %+v, %v, want the newer session kept", cur, ok)
	}
}

func TestClientLoginSupersededByLogout(t *testing.T) {
	sess := issue(t, "u1")
	arrived := make(chan struct{})
	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(arrived)
		<-release
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token":"` + sess.Token + `"}`))
	}))
	defer srv.Close()

	store := session.NewMemoryStore()
	c := New(srv.URL, store, srv.Client(), quiet)

	var (
		wg       sync.WaitGroup
		loginErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, loginErr = c.Login(context.Background(), "a@x.com", "password1")
	}()

	<-arrived
	if err := c.Logout(); err != nil {
		t.Fatalf("Logout() unexpected error: %v", err)
	}
	close(release)
	wg.Wait()

	if !errors.Is(loginErr, ErrSuperseded) {
		t.Errorf("Login() error = %v, want ErrSuperseded", loginErr)
	}
	if _, ok := store.Current(); ok {
		t.Error("superseded login stored its session")
	}
}

func TestClientLoginCancelled(t *testing.T) {
	sess := issue(t, "u1")
	ctx, cancel := context.WithCancel(context.Background())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token":"` + sess.Token + `"}`))
		cancel()
	}))
	defer srv.Close()

	store := session.NewMemoryStore()
	c := New(srv.URL, store, srv.Client(), quiet)

	if _, err := c.Login(ctx, "a@x.com", "password1"); err == nil {
		t.Fatal("Login() with cancelled context should fail")
	}
	if _, ok := store.Current(); ok {
		t.Error("cancelled login stored its session")
	}
}

func TestClientTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, session.NewMemoryStore(), nil, quiet)
	err := c.ForgotPassword(context.Background(), "a@x.com")
	if !errors.Is(err, model.ErrTransport) {
		t.Errorf("ForgotPassword() error = %v, want ErrTransport", err)
	}
}

// failingDrafts is a store whose draft deletion always fails.
type failingDrafts struct {
	*session.MemoryStore
}

func (failingDrafts) DeleteDraft(string) error { return errors.New("disk full") }

func TestUpdateDocumentIgnoresDraftFailure(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()

	store := failingDrafts{session.NewMemoryStore()}
	c := New(srv.URL, store, srv.Client(), quiet)
	if _, err := c.Signup(ctx, model.SignupRequest{Email: "a@x.com", Password: "password1", FirstName: "A", LastName: "B"}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Login(ctx, "a@x.com", "password1"); err != nil {
		t.Fatal(err)
	}

	doc, err := c.CreateDocument(ctx, map[string]any{"title": "x"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.UpdateDocument(ctx, doc.ID, map[string]any{"title": "y"}); err != nil {
		t.Errorf("UpdateDocument() error = %v, want success despite draft failure", err)
	}
}

func TestListOptionsEncode(t *testing.T) {
	if got := (ListOptions{}).encode(); got != "" {
		t.Errorf("encode() = %q, want empty", got)
	}
	got := ListOptions{Scope: model.ScopeOwned, SortBy: model.SortByCreated, Ascending: true, Page: 2, Limit: 5}.encode()
	want := "?limit=5&order=asc&page=2&scope=owned&sort_by=creation_date"
	if got != want {
		t.Errorf("encode() = %q, want %q", got, want)
	}
}
